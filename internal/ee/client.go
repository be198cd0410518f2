package ee

import "context"

// Client is the full backend surface consumed by the façade. Implementations
// must be safe for concurrent use; every method honors ctx cancellation and
// deadlines.
//
// Errors returned by implementations are classified with the sentinel
// errors in errors.go so callers can decide whether to degrade and retry.
type Client interface {
	// SearchCatalog finds datasets matching a free-text query.
	SearchCatalog(ctx context.Context, query string, limit int) ([]CatalogEntry, error)

	// CollectionInfo returns metadata for one collection.
	CollectionInfo(ctx context.Context, collectionID string) (*CollectionInfo, error)

	// FilterCollection narrows a collection and reports its contents.
	FilterCollection(ctx context.Context, req FilterRequest) (*FilterResult, error)

	// Composite flattens a filtered collection into a single image handle.
	Composite(ctx context.Context, req CompositeRequest) (Handle, error)

	// BandMath evaluates a band expression against an input handle and
	// returns the derived image named as rename.
	BandMath(ctx context.Context, input Handle, expression, rename string) (Handle, error)

	// MaskClouds applies the collection's QA cloud mask to an image handle.
	MaskClouds(ctx context.Context, input Handle, collectionID string) (Handle, error)

	// ReduceRegion computes per-band statistics of a handle over a region.
	ReduceRegion(ctx context.Context, req ReduceRequest) (map[string]float64, error)

	// ThumbnailURL renders a computation to a fetchable image URL. May fail
	// with ErrBackendRejected or ErrTimeout on oversized requests.
	ThumbnailURL(ctx context.Context, req ThumbnailRequest) (string, error)

	// TileURLTemplate publishes a computation as an XYZ tile layer and
	// returns the {z}/{x}/{y} URL template.
	TileURLTemplate(ctx context.Context, input Handle, spec VisualizationSpec) (string, error)

	// StartExport submits a batch export and returns the backend task ID.
	StartExport(ctx context.Context, req ExportRequest) (string, error)

	// TaskStatus queries a batch export task by ID.
	TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)

	// LookupBoundary finds administrative boundary features by name in one
	// boundary dataset. An empty result is not an error.
	LookupBoundary(ctx context.Context, q BoundaryQuery) ([]BoundaryFeature, error)

	// Ping verifies the credentials with a minimal request that always
	// reaches the backend.
	Ping(ctx context.Context) error
}
