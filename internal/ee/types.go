// Package ee defines the boundary to the remote Earth Engine compute
// backend: the Client interface the rest of the system programs against,
// the request/response types that cross it, and a REST implementation.
//
// Everything behind Client is opaque computation. The façade never inspects
// a Handle; it only threads handles between operations and the store.
package ee

import (
	"time"

	"github.com/paulmach/orb"
)

// Handle is an opaque reference to a server-side computation graph
// (a composite, a derived index, a model output). Handles are produced by
// backend-producing calls and consumed by later ones; they are never
// interpreted by the caller.
type Handle string

// CatalogEntry describes one dataset in the imagery catalog.
type CatalogEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Provider    string   `json:"provider"`
	Bands       []string `json:"bands"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"` // empty means ongoing
	GSDMeters   float64  `json:"gsd_meters"`
	Tags        []string `json:"tags"`
}

// CollectionInfo is the metadata returned for a single collection.
type CollectionInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Provider    string   `json:"provider"`
	Bands       []string `json:"bands"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	GSDMeters   float64  `json:"gsd_meters"`
}

// FilterRequest narrows a collection by date range, region and cloud cover.
type FilterRequest struct {
	Collection    string
	StartDate     string // ISO date, inclusive
	EndDate       string // ISO date, exclusive
	Region        orb.Geometry
	CloudCoverMax float64 // 0 disables the filter
}

// FilterResult reports what the filtered collection contains.
type FilterResult struct {
	Handle     Handle
	ImageCount int
	Bands      []string
}

// CompositeMethod selects how a filtered collection is flattened to one image.
type CompositeMethod string

const (
	CompositeMedian   CompositeMethod = "median"
	CompositeMean     CompositeMethod = "mean"
	CompositeMosaic   CompositeMethod = "mosaic"
	CompositeGreenest CompositeMethod = "greenest"
)

// CompositeRequest builds a single image from a filtered collection.
type CompositeRequest struct {
	Collection string
	StartDate  string
	EndDate    string
	Region     orb.Geometry
	Method     CompositeMethod
	MaskClouds bool
	Bands      []string // optional band selection applied after compositing
}

// ReduceRequest computes regional statistics over a handle.
type ReduceRequest struct {
	Input       Handle
	Region      orb.Geometry
	Reducers    []string // mean, min, max, stdDev
	ScaleMeters float64
}

// ThumbnailRequest asks for a rendered PNG of a computation.
type ThumbnailRequest struct {
	Input      Handle
	Spec       VisualizationSpec
	Region     orb.Geometry
	Dimensions int // longest edge in pixels
}

// ExportRequest submits a batch export of a computation to Drive.
type ExportRequest struct {
	Input          Handle
	Description    string
	Folder         string
	FileNamePrefix string
	Region         orb.Geometry
	ScaleMeters    float64
	CRS            string
	MaxPixels      int64
	FileFormat     string
	CloudOptimized bool
}

// TaskState is the lifecycle state of a batch export task.
type TaskState string

const (
	TaskStatePending   TaskState = "PENDING"
	TaskStateRunning   TaskState = "RUNNING"
	TaskStateCompleted TaskState = "COMPLETED"
	TaskStateFailed    TaskState = "FAILED"
	TaskStateCancelled TaskState = "CANCELLED"
)

// Terminal reports whether the state will never change again.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled:
		return true
	}
	return false
}

// TaskStatus is a point-in-time view of a batch export task.
type TaskStatus struct {
	ID              string    `json:"id"`
	State           TaskState `json:"state"`
	Description     string    `json:"description"`
	Progress        float64   `json:"progress"`
	Error           string    `json:"error,omitempty"`
	DestinationURIs []string  `json:"destination_uris,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BoundaryDataset identifies one administrative boundary table and the
// property that carries feature names at that admin level.
type BoundaryDataset struct {
	ID              string
	AdminLevel      int
	NameProperty    string
	CountryProperty string // empty at admin level 0
}

// BoundaryQuery looks a place name up in one boundary dataset.
type BoundaryQuery struct {
	Name    string
	Country string // optional exact-match filter on CountryProperty
	Dataset BoundaryDataset
}

// BoundaryFeature is one matching administrative boundary.
type BoundaryFeature struct {
	Name       string
	Geometry   orb.Geometry
	AreaKm2    float64
	Properties map[string]any
}
