package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/Dhenenjay/earth-engine-mcp/internal/artifacts"
	"github.com/Dhenenjay/earth-engine-mcp/internal/config"
	"github.com/Dhenenjay/earth-engine-mcp/internal/degrade"
	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/geometry"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
	"github.com/Dhenenjay/earth-engine-mcp/internal/tasks"
)

// Router owns the shared collaborators and dispatches operations. All
// state lives in the injected store and resolver; the router itself is
// stateless and safe for concurrent use.
type Router struct {
	client   ee.Client
	store    *artifacts.Store
	resolver *geometry.Resolver
	degrader *degrade.Controller
	journal  *tasks.Journal // nil disables the export journal
	cfg      *config.Config
}

// New wires a router. The journal may be nil; task_status then queries the
// backend directly.
func New(client ee.Client, store *artifacts.Store, resolver *geometry.Resolver, degrader *degrade.Controller, journal *tasks.Journal, cfg *config.Config) *Router {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Router{
		client:   client,
		store:    store,
		resolver: resolver,
		degrader: degrader,
		journal:  journal,
		cfg:      cfg,
	}
}

// Handle executes one operation. The operation name travels inside args
// under "operation". Handle never panics and never returns a raw backend
// error shape; every outcome is a normalized Response.
func (r *Router) Handle(ctx context.Context, tool string, args map[string]any) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Errorf(logging.CategoryRouter, "panic in %s: %v", tool, rec)
			resp = fail(fmt.Errorf("internal error: %v", rec))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	op, err := stringArg(args, "operation")
	if err != nil {
		return fail(err)
	}

	group := Group(tool)
	ops, known := operationsByGroup[group]
	if !known {
		return fail(fmt.Errorf("%w: %s", ErrUnknownTool, tool))
	}
	if !contains(ops, op) {
		return fail(fmt.Errorf("%w: %s/%s", ErrUnknownOperation, tool, op))
	}

	start := time.Now()
	logging.RouterDebug("dispatch %s/%s", tool, op)

	switch group {
	case GroupData:
		resp = r.handleData(ctx, op, args)
	case GroupProcess:
		resp = r.handleProcess(ctx, op, args)
	case GroupExport:
		resp = r.handleExport(ctx, op, args)
	case GroupSystem:
		resp = r.handleSystem(ctx, op, args)
	}

	success, _ := resp["success"].(bool)
	logging.RouterDebug("%s/%s completed in %v (success=%v)", tool, op, time.Since(start), success)
	return resp
}

// resolveRegion extracts the region for an operation. A string region is a
// place name and goes through the resolver; a map region is inline GeoJSON;
// a "coordinates" argument bypasses the gazetteer entirely. Returns nil
// when the request carries no region at all.
func (r *Router) resolveRegion(ctx context.Context, args map[string]any) (*geometry.Resolved, error) {
	levelHint, err := optIntArg(args, "admin_level", -1, 0, 2)
	if err != nil {
		return nil, err
	}

	if raw, present := args["region"]; present && raw != nil {
		switch region := raw.(type) {
		case string:
			return r.resolver.Resolve(ctx, geometry.Query{
				PlaceName:      region,
				AdminLevelHint: levelHint,
			})
		case map[string]any:
			return resolvedFromGeoJSON(region)
		default:
			return nil, fmt.Errorf("%w: region must be a place name or GeoJSON geometry", ErrBadArgument)
		}
	}

	if raw, present := args["coordinates"]; present && raw != nil {
		coords, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: coordinates must be a list", ErrBadArgument)
		}
		buffer, err := optFloatArg(args, "buffer_meters", r.cfg.Resolver.BufferMeters)
		if err != nil {
			return nil, err
		}
		return r.resolver.Resolve(ctx, geometry.Query{
			Coordinates:    coords,
			BufferMeters:   buffer,
			AdminLevelHint: -1,
		})
	}

	return nil, nil
}

// requireRegion is resolveRegion for operations that cannot run without one.
func (r *Router) requireRegion(ctx context.Context, args map[string]any) (*geometry.Resolved, error) {
	resolved, err := r.resolveRegion(ctx, args)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, ErrMissingRegion
	}
	return resolved, nil
}

func resolvedFromGeoJSON(raw map[string]any) (*geometry.Resolved, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: unencodable region: %v", ErrBadArgument, err)
	}
	g, err := geojson.UnmarshalGeometry(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: region is not valid GeoJSON: %v", ErrBadArgument, err)
	}
	return geometry.FromGeoJSON(g.Geometry()), nil
}

// resolveArtifact looks up the artifact reference under keyArg. Fallback to
// the most recent artifact of the kind is on unless the caller disables it
// with allow_fallback=false. The returned bool reports whether a fallback
// substitution happened.
func (r *Router) resolveArtifact(args map[string]any, keyArg string, kind artifacts.Kind) (*artifacts.Record, bool, error) {
	key, err := optStringArg(args, keyArg, "")
	if err != nil {
		return nil, false, err
	}
	allowFallback, err := optBoolArg(args, "allow_fallback", true)
	if err != nil {
		return nil, false, err
	}
	return r.store.Resolve(key, kind, allowFallback)
}

// kindArg reads an artifact kind argument with a default.
func kindArg(args map[string]any, def artifacts.Kind) (artifacts.Kind, error) {
	s, err := optStringArg(args, "kind", string(def))
	if err != nil {
		return "", err
	}
	kind := artifacts.Kind(s)
	if !artifacts.ValidKind(kind) {
		return "", fmt.Errorf("%w: unknown artifact kind %q", ErrBadArgument, s)
	}
	return kind, nil
}

// parseVizSpec builds the visualization from arguments, falling back to the
// artifact's band hints and then to sensible defaults.
func parseVizSpec(args map[string]any, rec *artifacts.Record) (ee.VisualizationSpec, error) {
	bands, err := optStringSliceArg(args, "bands")
	if err != nil {
		return ee.VisualizationSpec{}, err
	}
	if len(bands) == 0 && rec != nil {
		bands = rec.BandHint
	}

	palette, err := optStringSliceArg(args, "palette")
	if err != nil {
		return ee.VisualizationSpec{}, err
	}
	min, err := optFloatSliceArg(args, "min")
	if err != nil {
		return ee.VisualizationSpec{}, err
	}
	max, err := optFloatSliceArg(args, "max")
	if err != nil {
		return ee.VisualizationSpec{}, err
	}
	gamma, err := optFloatArg(args, "gamma", 0)
	if err != nil {
		return ee.VisualizationSpec{}, err
	}

	if len(bands) == 0 && len(palette) == 0 && min == nil && max == nil {
		return ee.VisualizationSpec{}, fmt.Errorf("%w: no bands given and the artifact has no band hints", ErrBadArgument)
	}

	spec := ee.VisualizationSpec{Bands: bands, Min: min, Max: max, Palette: palette, Gamma: gamma}
	if len(palette) == 0 && min == nil && max == nil && gamma == 0 {
		spec = ee.DefaultViz(bands)
	}
	if err := spec.Validate(); err != nil {
		return ee.VisualizationSpec{}, fmt.Errorf("%w: %v", ErrBadArgument, err)
	}
	return spec, nil
}

func contains(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}
