// Package router is the single entry point for every façade operation. It
// maps a tool group and operation name onto a handler, validates arguments,
// resolves region names and artifact references, and normalizes every
// outcome into a {success, ...} response.
package router

// Group is one of the four capability groups exposed to callers.
type Group string

const (
	// GroupData covers catalog search, collection filtering and geometry
	// lookups.
	GroupData Group = "earth_engine_data"

	// GroupProcess covers composites, spectral indices, masking, regional
	// statistics and models.
	GroupProcess Group = "earth_engine_process"

	// GroupExport covers Drive exports, task status, thumbnails and tiles.
	GroupExport Group = "earth_engine_export"

	// GroupSystem covers auth status, capability listing and help.
	GroupSystem Group = "earth_engine_system"
)

// Data operations.
const (
	OpSearchCatalog    = "search_catalog"
	OpFilterCollection = "filter_collection"
	OpGetGeometry      = "get_geometry"
	OpGetInfo          = "get_info"
)

// Process operations.
const (
	OpComposite     = "composite"
	OpSpectralIndex = "spectral_index"
	OpMaskClouds    = "mask_clouds"
	OpAnalyzeRegion = "analyze_region"
	OpRunModel      = "run_model"
)

// Export operations.
const (
	OpExportToDrive = "export_to_drive"
	OpTaskStatus    = "task_status"
	OpThumbnail     = "thumbnail"
	OpTiles         = "tiles"
)

// System operations.
const (
	OpAuthStatus   = "auth_status"
	OpCapabilities = "capabilities"
	OpHelp         = "help"
)

// operationsByGroup is the authoritative dispatch table. The capabilities
// operation reports it, and Handle validates membership against it before
// any handler runs.
var operationsByGroup = map[Group][]string{
	GroupData:    {OpSearchCatalog, OpFilterCollection, OpGetGeometry, OpGetInfo},
	GroupProcess: {OpComposite, OpSpectralIndex, OpMaskClouds, OpAnalyzeRegion, OpRunModel},
	GroupExport:  {OpExportToDrive, OpTaskStatus, OpThumbnail, OpTiles},
	GroupSystem:  {OpAuthStatus, OpCapabilities, OpHelp},
}

// Response is the normalized operation result. Every response carries a
// boolean "success"; failures carry "error" and nothing else beyond
// diagnostic fields.
type Response map[string]any

// ok builds a success response from operation-specific fields.
func ok(fields map[string]any) Response {
	resp := Response{"success": true}
	for k, v := range fields {
		resp[k] = v
	}
	return resp
}

// fail builds a failure response. Extra diagnostic fields (degradation
// attempts, substituted keys) may be merged in.
func fail(err error, extra ...map[string]any) Response {
	resp := Response{"success": false, "error": err.Error()}
	for _, fields := range extra {
		for k, v := range fields {
			resp[k] = v
		}
	}
	return resp
}
