package router

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/geometry"
)

func (r *Router) handleData(ctx context.Context, op string, args map[string]any) Response {
	switch op {
	case OpSearchCatalog:
		return r.searchCatalog(ctx, args)
	case OpFilterCollection:
		return r.filterCollection(ctx, args)
	case OpGetGeometry:
		return r.getGeometry(ctx, args)
	case OpGetInfo:
		return r.getInfo(ctx, args)
	default:
		return fail(fmt.Errorf("%w: %s", ErrUnknownOperation, op))
	}
}

func (r *Router) searchCatalog(ctx context.Context, args map[string]any) Response {
	query, err := stringArg(args, "query")
	if err != nil {
		return fail(err)
	}
	limit, err := optIntArg(args, "limit", 10, 1, 50)
	if err != nil {
		return fail(err)
	}

	entries, err := r.client.SearchCatalog(ctx, query, limit)
	if err != nil {
		return fail(fmt.Errorf("catalog search failed: %w", err))
	}
	return ok(map[string]any{
		"datasets": entries,
		"count":    len(entries),
	})
}

func (r *Router) filterCollection(ctx context.Context, args map[string]any) Response {
	collection, err := stringArg(args, "collection")
	if err != nil {
		return fail(err)
	}
	startDate, err := dateArg(args, "start_date")
	if err != nil {
		return fail(err)
	}
	endDate, err := dateArg(args, "end_date")
	if err != nil {
		return fail(err)
	}
	cloudMax, err := optFloatArg(args, "cloud_cover_max", 0)
	if err != nil {
		return fail(err)
	}

	resolved, err := r.resolveRegion(ctx, args)
	if err != nil {
		return fail(err)
	}

	req := ee.FilterRequest{
		Collection:    collection,
		StartDate:     startDate,
		EndDate:       endDate,
		CloudCoverMax: cloudMax,
	}
	if resolved != nil {
		req.Region = resolved.Geometry
	}

	result, err := r.client.FilterCollection(ctx, req)
	if err != nil {
		return fail(fmt.Errorf("collection filter failed: %w", err))
	}

	fields := map[string]any{
		"collection":  collection,
		"image_count": result.ImageCount,
		"bands":       result.Bands,
	}
	if resolved != nil {
		fields["region_area_km2"] = resolved.AreaKm2
	}
	return ok(fields)
}

func (r *Router) getGeometry(ctx context.Context, args map[string]any) Response {
	place, err := optStringArg(args, "place_name", "")
	if err != nil {
		return fail(err)
	}
	if place != "" {
		args["region"] = place
	}

	resolved, err := r.requireRegion(ctx, args)
	if err != nil {
		return fail(err)
	}
	return ok(geometryFields(resolved))
}

func (r *Router) getInfo(ctx context.Context, args map[string]any) Response {
	collection, err := stringArg(args, "collection")
	if err != nil {
		return fail(err)
	}
	info, err := r.client.CollectionInfo(ctx, collection)
	if err != nil {
		return fail(fmt.Errorf("collection info failed: %w", err))
	}
	return ok(map[string]any{
		"collection":  info.ID,
		"name":        info.Name,
		"description": info.Description,
		"provider":    info.Provider,
		"bands":       info.Bands,
		"start_date":  info.StartDate,
		"end_date":    info.EndDate,
		"gsd_meters":  info.GSDMeters,
	})
}

// geometryFields flattens a resolution result for the response.
func geometryFields(resolved *geometry.Resolved) map[string]any {
	fields := map[string]any{
		"area_km2":    resolved.AreaKm2,
		"admin_level": resolved.AdminLevel,
		"bbox": []float64{
			resolved.Bound.Min[0], resolved.Bound.Min[1],
			resolved.Bound.Max[0], resolved.Bound.Max[1],
		},
	}
	if resolved.SourceDataset != "" {
		fields["source_dataset"] = resolved.SourceDataset
	}
	if resolved.PlaceName != "" {
		fields["place_name"] = resolved.PlaceName
	}
	if resolved.Geometry != nil {
		fields["geometry"] = geojson.NewGeometry(resolved.Geometry)
	}
	return fields
}
