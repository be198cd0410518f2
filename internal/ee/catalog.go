package ee

import (
	"sort"
	"strings"
)

// builtinCatalog lists the datasets the façade knows without a backend
// round-trip. The backend catalog is far larger; this slice covers the
// collections the operation handlers have first-class support for
// (cloud masking, default visualization, index band mappings).
var builtinCatalog = []CatalogEntry{
	{
		ID:          "COPERNICUS/S2_SR_HARMONIZED",
		Name:        "Sentinel-2 Surface Reflectance (Harmonized)",
		Description: "Level-2A orthorectified surface reflectance, 10-60 m, with QA60 cloud flags.",
		Provider:    "European Union/ESA/Copernicus",
		Bands:       []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B8A", "B9", "B11", "B12", "QA60"},
		StartDate:   "2017-03-28",
		GSDMeters:   10,
		Tags:        []string{"sentinel", "optical", "surface reflectance", "ndvi", "agriculture", "vegetation"},
	},
	{
		ID:          "COPERNICUS/S2_HARMONIZED",
		Name:        "Sentinel-2 Top-of-Atmosphere (Harmonized)",
		Description: "Level-1C top-of-atmosphere reflectance, 10-60 m.",
		Provider:    "European Union/ESA/Copernicus",
		Bands:       []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8", "B8A", "B9", "B10", "B11", "B12", "QA60"},
		StartDate:   "2015-06-27",
		GSDMeters:   10,
		Tags:        []string{"sentinel", "optical", "toa"},
	},
	{
		ID:          "LANDSAT/LC08/C02/T1_L2",
		Name:        "Landsat 8 Collection 2 Level-2",
		Description: "Atmospherically corrected surface reflectance and temperature, 30 m, QA_PIXEL flags.",
		Provider:    "USGS",
		Bands:       []string{"SR_B1", "SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B6", "SR_B7", "ST_B10", "QA_PIXEL"},
		StartDate:   "2013-03-18",
		GSDMeters:   30,
		Tags:        []string{"landsat", "optical", "surface reflectance", "thermal"},
	},
	{
		ID:          "LANDSAT/LC09/C02/T1_L2",
		Name:        "Landsat 9 Collection 2 Level-2",
		Description: "Atmospherically corrected surface reflectance and temperature, 30 m, QA_PIXEL flags.",
		Provider:    "USGS",
		Bands:       []string{"SR_B1", "SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B6", "SR_B7", "ST_B10", "QA_PIXEL"},
		StartDate:   "2021-10-31",
		GSDMeters:   30,
		Tags:        []string{"landsat", "optical", "surface reflectance", "thermal"},
	},
	{
		ID:          "MODIS/061/MOD13Q1",
		Name:        "MODIS Terra Vegetation Indices 16-Day",
		Description: "Precomputed NDVI/EVI at 250 m every 16 days.",
		Provider:    "NASA LP DAAC",
		Bands:       []string{"NDVI", "EVI", "sur_refl_b01", "sur_refl_b02", "SummaryQA"},
		StartDate:   "2000-02-18",
		GSDMeters:   250,
		Tags:        []string{"modis", "ndvi", "evi", "vegetation", "time series"},
	},
	{
		ID:          "COPERNICUS/S1_GRD",
		Name:        "Sentinel-1 SAR GRD",
		Description: "C-band synthetic aperture radar ground range detected, 10 m, all-weather.",
		Provider:    "European Union/ESA/Copernicus",
		Bands:       []string{"VV", "VH", "HH", "HV", "angle"},
		StartDate:   "2014-10-03",
		GSDMeters:   10,
		Tags:        []string{"sentinel", "sar", "radar", "flood", "all-weather"},
	},
	{
		ID:          "NASA/GPM_L3/IMERG_V07",
		Name:        "GPM IMERG Precipitation",
		Description: "Half-hourly global precipitation estimates, ~11 km.",
		Provider:    "NASA GES DISC",
		Bands:       []string{"precipitation", "precipitationQualityIndex"},
		StartDate:   "2000-06-01",
		GSDMeters:   11132,
		Tags:        []string{"precipitation", "rainfall", "climate", "drought"},
	},
	{
		ID:          "USGS/SRTMGL1_003",
		Name:        "SRTM Digital Elevation 30m",
		Description: "Global digital elevation model from the Shuttle Radar Topography Mission.",
		Provider:    "USGS",
		Bands:       []string{"elevation"},
		StartDate:   "2000-02-11",
		EndDate:     "2000-02-22",
		GSDMeters:   30,
		Tags:        []string{"elevation", "terrain", "dem", "slope"},
	},
}

// SearchBuiltinCatalog scores builtin datasets against a free-text query.
// Matching is case-insensitive over ID, name, tags and band names; results
// come back most-relevant first.
func SearchBuiltinCatalog(query string, limit int) []CatalogEntry {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		entry CatalogEntry
		score int
	}
	var hits []scored
	for _, e := range builtinCatalog {
		s := catalogScore(e, terms)
		if s > 0 {
			hits = append(hits, scored{e, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]CatalogEntry, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.entry)
	}
	return out
}

// LookupBuiltin returns the builtin entry for a collection ID, if present.
func LookupBuiltin(collectionID string) (CatalogEntry, bool) {
	for _, e := range builtinCatalog {
		if e.ID == collectionID {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

func catalogScore(e CatalogEntry, terms []string) int {
	id := strings.ToLower(e.ID)
	name := strings.ToLower(e.Name)
	desc := strings.ToLower(e.Description)

	score := 0
	for _, t := range terms {
		switch {
		case strings.Contains(id, t):
			score += 4
		case containsFold(e.Tags, t):
			score += 3
		case strings.Contains(name, t):
			score += 2
		case containsFold(e.Bands, t) || strings.Contains(desc, t):
			score++
		}
	}
	return score
}

func containsFold(list []string, term string) bool {
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}
