package router

import (
	"context"
	"fmt"
	"sort"
)

func (r *Router) handleSystem(ctx context.Context, op string, args map[string]any) Response {
	switch op {
	case OpAuthStatus:
		return r.authStatus(ctx)
	case OpCapabilities:
		return r.capabilities()
	case OpHelp:
		return r.help(args)
	default:
		return fail(fmt.Errorf("%w: %s", ErrUnknownOperation, op))
	}
}

func (r *Router) authStatus(ctx context.Context) Response {
	configured := r.cfg.Auth.KeyFile != ""

	fields := map[string]any{
		"authenticated": false,
		"key_file_set":  configured,
		"project":       r.cfg.Auth.Project,
	}
	if !configured {
		fields["hint"] = "set auth.key_file or GOOGLE_APPLICATION_CREDENTIALS"
		return ok(fields)
	}

	// The probe must be a real backend request; builtin catalog metadata
	// would succeed even with revoked credentials.
	if err := r.client.Ping(ctx); err != nil {
		fields["error"] = err.Error()
		return ok(fields)
	}
	fields["authenticated"] = true
	return ok(fields)
}

func (r *Router) capabilities() Response {
	tools := make(map[string]any, len(operationsByGroup))
	for group, ops := range operationsByGroup {
		sorted := append([]string(nil), ops...)
		sort.Strings(sorted)
		tools[string(group)] = sorted
	}
	return ok(map[string]any{
		"name":    r.cfg.Name,
		"version": r.cfg.Version,
		"tools":   tools,
		"indices": knownIndices(),
		"models":  knownModels(),
	})
}

// operationUsage documents each operation for the help response. Kept next
// to the dispatch table so a new operation shows up here or the help test
// fails.
var operationUsage = map[string]string{
	OpSearchCatalog:    "search_catalog(query, limit?) finds datasets matching a free-text query",
	OpFilterCollection: "filter_collection(collection, start_date, end_date, cloud_cover_max?, region?) reports image count and bands",
	OpGetGeometry:      "get_geometry(place_name | region | coordinates, admin_level?, buffer_meters?) resolves a boundary polygon",
	OpGetInfo:          "get_info(collection) returns collection metadata",
	OpComposite:        "composite(collection, start_date, end_date, method?, mask_clouds?, bands?, region?) builds a composite and returns its key",
	OpSpectralIndex:    "spectral_index(index, composite_key? | collection+dates, allow_fallback?) derives an index image",
	OpMaskClouds:       "mask_clouds(composite_key? | collection+dates, collection?) applies the QA cloud mask",
	OpAnalyzeRegion:    "analyze_region(input?, kind?, region?, reducers?, scale_meters?) computes regional statistics",
	OpRunModel:         "run_model(model, composite_key? | collection+dates) runs a named risk model",
	OpExportToDrive:    "export_to_drive(input?, kind?, region?, folder?, file_name_prefix?, scale_meters?, crs?) submits a batch export",
	OpTaskStatus:       "task_status(task_id?) queries one export task, or lists recent tasks",
	OpThumbnail:        "thumbnail(input?, kind?, region?, dimensions?, bands?, min?, max?, palette?, gamma?) renders a PNG URL, degrading on timeouts",
	OpTiles:            "tiles(input?, kind?, bands?, min?, max?, palette?) publishes an XYZ tile layer",
	OpAuthStatus:       "auth_status() reports credential configuration and backend reachability",
	OpCapabilities:     "capabilities() lists every tool group, operation, index and model",
	OpHelp:             "help(operation?) explains one operation or lists all of them",
}

func (r *Router) help(args map[string]any) Response {
	op, err := optStringArg(args, "op", "")
	if err != nil {
		return fail(err)
	}
	if op != "" {
		usage, known := operationUsage[op]
		if !known {
			return fail(fmt.Errorf("%w: %s", ErrUnknownOperation, op))
		}
		return ok(map[string]any{
			"operation": op,
			"usage":     usage,
		})
	}

	ops := make([]string, 0, len(operationUsage))
	for name := range operationUsage {
		ops = append(ops, name)
	}
	sort.Strings(ops)
	usages := make([]string, len(ops))
	for i, name := range ops {
		usages[i] = operationUsage[name]
	}
	return ok(map[string]any{
		"operations": usages,
	})
}
