package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhenenjay/earth-engine-mcp/internal/artifacts"
	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/geometry"
)

func (r *Router) handleProcess(ctx context.Context, op string, args map[string]any) Response {
	switch op {
	case OpComposite:
		return r.composite(ctx, args)
	case OpSpectralIndex:
		return r.spectralIndex(ctx, args)
	case OpMaskClouds:
		return r.maskClouds(ctx, args)
	case OpAnalyzeRegion:
		return r.analyzeRegion(ctx, args)
	case OpRunModel:
		return r.runModel(ctx, args)
	default:
		return fail(fmt.Errorf("%w: %s", ErrUnknownOperation, op))
	}
}

func (r *Router) composite(ctx context.Context, args map[string]any) Response {
	handle, resolved, collection, resp := r.buildComposite(ctx, args)
	if resp != nil {
		return resp
	}

	bands := defaultBandsFor(collection)
	key := r.store.Put(artifacts.KindComposite, handle, artifacts.Hints{
		Region: regionHint(args, resolved),
		Bands:  bands,
	})
	fields := map[string]any{
		"composite_key": key,
		"collection":    collection,
	}
	if resolved != nil {
		fields["region_area_km2"] = resolved.AreaKm2
	}
	return ok(fields)
}

// buildComposite shares composite construction between composite,
// spectral_index and run_model. A non-nil Response short-circuits with the
// validation or backend failure.
func (r *Router) buildComposite(ctx context.Context, args map[string]any) (ee.Handle, *geometry.Resolved, string, Response) {
	collection, err := stringArg(args, "collection")
	if err != nil {
		return "", nil, "", fail(err)
	}
	startDate, err := dateArg(args, "start_date")
	if err != nil {
		return "", nil, "", fail(err)
	}
	endDate, err := dateArg(args, "end_date")
	if err != nil {
		return "", nil, "", fail(err)
	}
	method, err := optStringArg(args, "method", string(ee.CompositeMedian))
	if err != nil {
		return "", nil, "", fail(err)
	}
	switch ee.CompositeMethod(method) {
	case ee.CompositeMedian, ee.CompositeMean, ee.CompositeMosaic, ee.CompositeGreenest:
	default:
		return "", nil, "", fail(fmt.Errorf("%w: unknown composite method %q", ErrBadArgument, method))
	}
	maskClouds, err := optBoolArg(args, "mask_clouds", true)
	if err != nil {
		return "", nil, "", fail(err)
	}
	bands, err := optStringSliceArg(args, "bands")
	if err != nil {
		return "", nil, "", fail(err)
	}

	resolved, err := r.resolveRegion(ctx, args)
	if err != nil {
		return "", nil, "", fail(err)
	}

	req := ee.CompositeRequest{
		Collection: collection,
		StartDate:  startDate,
		EndDate:    endDate,
		Method:     ee.CompositeMethod(method),
		MaskClouds: maskClouds,
		Bands:      bands,
	}
	if resolved != nil {
		req.Region = resolved.Geometry
	}

	handle, err := r.client.Composite(ctx, req)
	if err != nil {
		return "", nil, "", fail(fmt.Errorf("composite failed: %w", err))
	}
	return handle, resolved, collection, nil
}

func (r *Router) spectralIndex(ctx context.Context, args map[string]any) Response {
	index, err := stringArg(args, "index")
	if err != nil {
		return fail(err)
	}
	collection, err := optStringArg(args, "collection", "COPERNICUS/S2_SR_HARMONIZED")
	if err != nil {
		return fail(err)
	}
	args["collection"] = collection

	input, fallbackUsed, resp := r.processInput(ctx, args, "composite_key")
	if resp != nil {
		return resp
	}

	expression, err := buildIndexExpression(index, collection)
	if err != nil {
		return fail(err)
	}
	indexName := strings.ToUpper(index)

	handle, err := r.client.BandMath(ctx, input.Handle, expression, indexName)
	if err != nil {
		return fail(fmt.Errorf("index computation failed: %w", err))
	}

	key := r.store.Put(artifacts.KindIndex, handle, artifacts.Hints{
		Region: input.RegionHint,
		Bands:  []string{indexName},
	})
	return withFallback(ok(map[string]any{
		"index_key": key,
		"index":     indexName,
		"based_on":  input.Key,
	}), fallbackUsed, input.Key)
}

func (r *Router) maskClouds(ctx context.Context, args map[string]any) Response {
	collection, err := optStringArg(args, "collection", "COPERNICUS/S2_SR_HARMONIZED")
	if err != nil {
		return fail(err)
	}
	args["collection"] = collection

	input, fallbackUsed, resp := r.processInput(ctx, args, "composite_key")
	if resp != nil {
		return resp
	}

	handle, err := r.client.MaskClouds(ctx, input.Handle, collection)
	if err != nil {
		return fail(fmt.Errorf("cloud masking failed: %w", err))
	}

	key := r.store.Put(artifacts.KindImage, handle, artifacts.Hints{
		Region: input.RegionHint,
		Bands:  input.BandHint,
	})
	return withFallback(ok(map[string]any{
		"image_key": key,
		"based_on":  input.Key,
	}), fallbackUsed, input.Key)
}

func (r *Router) analyzeRegion(ctx context.Context, args map[string]any) Response {
	kind, err := kindArg(args, artifacts.KindComposite)
	if err != nil {
		return fail(err)
	}
	input, fallbackUsed, err := r.resolveArtifact(args, "input", kind)
	if err != nil {
		return fail(err)
	}

	reducers, err := optStringSliceArg(args, "reducers")
	if err != nil {
		return fail(err)
	}
	scale, err := optFloatArg(args, "scale_meters", 30)
	if err != nil {
		return fail(err)
	}

	resolved, err := r.regionOrHint(ctx, args, input)
	if err != nil {
		return fail(err)
	}

	stats, err := r.client.ReduceRegion(ctx, ee.ReduceRequest{
		Input:       input.Handle,
		Region:      resolved.Geometry,
		Reducers:    reducers,
		ScaleMeters: scale,
	})
	if err != nil {
		return fail(fmt.Errorf("region analysis failed: %w", err))
	}

	return withFallback(ok(map[string]any{
		"input":      input.Key,
		"statistics": stats,
		"area_km2":   resolved.AreaKm2,
	}), fallbackUsed, input.Key)
}

func (r *Router) runModel(ctx context.Context, args map[string]any) Response {
	model, err := stringArg(args, "model")
	if err != nil {
		return fail(err)
	}
	collection, err := optStringArg(args, "collection", "COPERNICUS/S2_SR_HARMONIZED")
	if err != nil {
		return fail(err)
	}

	expression, outputBand, err := buildModelExpression(model, collection)
	if err != nil {
		return fail(err)
	}
	args["collection"] = collection

	input, fallbackUsed, resp := r.processInput(ctx, args, "composite_key")
	if resp != nil {
		return resp
	}

	handle, err := r.client.BandMath(ctx, input.Handle, expression, outputBand)
	if err != nil {
		return fail(fmt.Errorf("model run failed: %w", err))
	}

	key := r.store.Put(artifacts.KindModel, handle, artifacts.Hints{
		Region: input.RegionHint,
		Bands:  []string{outputBand},
	})
	return withFallback(ok(map[string]any{
		"model_key": key,
		"model":     strings.ToLower(model),
		"based_on":  input.Key,
	}), fallbackUsed, input.Key)
}

// processInput supplies the composite a processing operation works on:
// either a referenced (or fallback) stored composite, or a fresh one built
// from collection/date arguments when the request carries them.
func (r *Router) processInput(ctx context.Context, args map[string]any, keyArg string) (*artifacts.Record, bool, Response) {
	_, hasStart := args["start_date"]
	_, hasEnd := args["end_date"]
	_, hasKey := args[keyArg]

	if !hasKey && hasStart && hasEnd {
		handle, resolved, collection, resp := r.buildComposite(ctx, args)
		if resp != nil {
			return nil, false, resp
		}
		key := r.store.Put(artifacts.KindComposite, handle, artifacts.Hints{
			Region: regionHint(args, resolved),
			Bands:  defaultBandsFor(collection),
		})
		rec, err := r.store.Get(key)
		if err != nil {
			return nil, false, fail(err)
		}
		return rec, false, nil
	}

	rec, fallbackUsed, err := r.resolveArtifact(args, keyArg, artifacts.KindComposite)
	if err != nil {
		return nil, false, fail(err)
	}
	return rec, fallbackUsed, nil
}

// regionOrHint prefers an explicit region argument, then the artifact's
// region hint, for operations that need a region to reduce over.
func (r *Router) regionOrHint(ctx context.Context, args map[string]any, rec *artifacts.Record) (*geometry.Resolved, error) {
	resolved, err := r.resolveRegion(ctx, args)
	if err != nil {
		return nil, err
	}
	if resolved != nil {
		return resolved, nil
	}
	if rec != nil && rec.RegionHint != "" {
		return r.resolver.Resolve(ctx, geometry.Query{PlaceName: rec.RegionHint, AdminLevelHint: -1})
	}
	return nil, ErrMissingRegion
}

// withFallback annotates a success response when the artifact reference was
// recovered via most-recent fallback, so silently substituted inputs stay
// visible to the caller.
func withFallback(resp Response, fallbackUsed bool, substitutedKey string) Response {
	if fallbackUsed {
		resp["fallback_used"] = true
		resp["substituted_key"] = substitutedKey
	}
	return resp
}

func regionHint(args map[string]any, resolved *geometry.Resolved) string {
	if name, ok := args["region"].(string); ok {
		return name
	}
	if resolved != nil && resolved.PlaceName != "" {
		return resolved.PlaceName
	}
	return ""
}

// defaultBandsFor picks the default visualization bands for a collection.
func defaultBandsFor(collection string) []string {
	entry, known := ee.LookupBuiltin(collection)
	if !known {
		return nil
	}
	spec := ee.DefaultViz(entry.Bands)
	return spec.Bands
}
