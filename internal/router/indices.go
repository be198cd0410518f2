package router

import (
	"fmt"
	"sort"
	"strings"
)

// Spectral index formulas, written against band roles. Roles are mapped to
// concrete band names per sensor family before the expression travels to
// the backend.
var indexFormulas = map[string]string{
	"NDVI": "({NIR} - {RED}) / ({NIR} + {RED})",
	"NDWI": "({GREEN} - {NIR}) / ({GREEN} + {NIR})",
	"EVI":  "2.5 * (({NIR} - {RED}) / ({NIR} + 6 * {RED} - 7.5 * {BLUE} + 1))",
	"SAVI": "1.5 * (({NIR} - {RED}) / ({NIR} + {RED} + 0.5))",
	"NBR":  "({NIR} - {SWIR2}) / ({NIR} + {SWIR2})",
	"NDBI": "({SWIR1} - {NIR}) / ({SWIR1} + {NIR})",
}

// bandRoles maps collection ID prefixes onto role -> band tables.
var bandRoles = []struct {
	prefix string
	roles  map[string]string
}{
	{
		prefix: "COPERNICUS/S2",
		roles: map[string]string{
			"BLUE": "B2", "GREEN": "B3", "RED": "B4",
			"NIR": "B8", "SWIR1": "B11", "SWIR2": "B12",
		},
	},
	{
		prefix: "LANDSAT/",
		roles: map[string]string{
			"BLUE": "SR_B2", "GREEN": "SR_B3", "RED": "SR_B4",
			"NIR": "SR_B5", "SWIR1": "SR_B6", "SWIR2": "SR_B7",
		},
	},
}

// modelRecipes are named risk/condition models expressed as weighted
// combinations of index formulas. Outputs are normalized to roughly 0..1
// where higher means more of the modeled condition.
var modelRecipes = map[string]struct {
	Description string
	Formula     string
	OutputBand  string
}{
	"wildfire_risk": {
		Description: "Fuel dryness from inverted NBR and vegetation stress from inverted NDVI.",
		Formula:     "0.6 * (1 - ({NIR} - {SWIR2}) / ({NIR} + {SWIR2})) / 2 + 0.4 * (1 - ({NIR} - {RED}) / ({NIR} + {RED})) / 2",
		OutputBand:  "wildfire_risk",
	},
	"flood_risk": {
		Description: "Surface water presence from NDWI, weighted toward saturated ground.",
		Formula:     "(({GREEN} - {NIR}) / ({GREEN} + {NIR}) + 1) / 2",
		OutputBand:  "flood_risk",
	},
	"deforestation": {
		Description: "Vegetation loss signal from inverted NDVI over the composite window.",
		Formula:     "(1 - ({NIR} - {RED}) / ({NIR} + {RED})) / 2",
		OutputBand:  "deforestation",
	},
	"water_quality": {
		Description: "Turbidity proxy from the green/blue ratio against NDWI.",
		Formula:     "({GREEN} / {BLUE}) * (({GREEN} - {NIR}) / ({GREEN} + {NIR}) + 1) / 2",
		OutputBand:  "water_quality",
	},
}

// buildIndexExpression resolves an index formula against a collection's
// band names, producing the backend expression in terms of img.<band>.
func buildIndexExpression(index, collection string) (string, error) {
	formula, known := indexFormulas[strings.ToUpper(index)]
	if !known {
		return "", fmt.Errorf("%w: unknown index %q (supported: %s)", ErrBadArgument, index, strings.Join(knownIndices(), ", "))
	}
	return substituteRoles(formula, collection)
}

// buildModelExpression resolves a model recipe against a collection.
func buildModelExpression(model, collection string) (expression, outputBand string, err error) {
	recipe, known := modelRecipes[strings.ToLower(model)]
	if !known {
		return "", "", fmt.Errorf("%w: unknown model %q (supported: %s)", ErrBadArgument, model, strings.Join(knownModels(), ", "))
	}
	expression, err = substituteRoles(recipe.Formula, collection)
	if err != nil {
		return "", "", err
	}
	return expression, recipe.OutputBand, nil
}

func substituteRoles(formula, collection string) (string, error) {
	roles := rolesFor(collection)
	out := formula
	for role, band := range roles {
		out = strings.ReplaceAll(out, "{"+role+"}", "img."+band)
	}
	if strings.Contains(out, "{") {
		return "", fmt.Errorf("%w: collection %q lacks the bands this formula needs", ErrBadArgument, collection)
	}
	return out, nil
}

func rolesFor(collection string) map[string]string {
	for _, entry := range bandRoles {
		if strings.HasPrefix(collection, entry.prefix) {
			return entry.roles
		}
	}
	// Sentinel-2 band naming is the default for unrecognized optical sets.
	return bandRoles[0].roles
}

func knownIndices() []string {
	names := make([]string, 0, len(indexFormulas))
	for name := range indexFormulas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func knownModels() []string {
	names := make([]string, 0, len(modelRecipes))
	for name := range modelRecipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
