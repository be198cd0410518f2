package ee

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Expressions are built client-side as algebraic invocation trees and
// serialized into the Handle. The backend evaluates them lazily; the façade
// only ever composes and forwards them.

type expr map[string]any

func invoke(fn string, args map[string]any) expr {
	return expr{"functionName": fn, "arguments": args}
}

// encodeHandle serializes an expression tree into an opaque Handle.
func encodeHandle(e expr) (Handle, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode expression: %w", err)
	}
	return Handle(raw), nil
}

// decodeHandle recovers the expression tree from a Handle for composition.
func decodeHandle(h Handle) (expr, error) {
	var e expr
	if err := json.Unmarshal([]byte(h), &e); err != nil {
		return nil, fmt.Errorf("malformed computation handle: %w", err)
	}
	return e, nil
}

func geometryValue(g orb.Geometry) any {
	if g == nil {
		return nil
	}
	raw, _ := geojson.NewGeometry(g).MarshalJSON()
	var out any
	_ = json.Unmarshal(raw, &out)
	return out
}

func collectionExpr(req FilterRequest) expr {
	e := invoke("ImageCollection.load", map[string]any{"id": req.Collection})
	if req.StartDate != "" || req.EndDate != "" {
		e = invoke("ImageCollection.filterDate", map[string]any{
			"collection": e,
			"start":      req.StartDate,
			"end":        req.EndDate,
		})
	}
	if req.Region != nil {
		e = invoke("ImageCollection.filterBounds", map[string]any{
			"collection": e,
			"geometry":   geometryValue(req.Region),
		})
	}
	if req.CloudCoverMax > 0 {
		e = invoke("ImageCollection.filterMetadata", map[string]any{
			"collection": e,
			"property":   cloudCoverProperty(req.Collection),
			"operator":   "not_greater_than",
			"value":      req.CloudCoverMax,
		})
	}
	return e
}

func compositeExpr(collection expr, method CompositeMethod) expr {
	switch method {
	case CompositeMean:
		return invoke("ImageCollection.mean", map[string]any{"collection": collection})
	case CompositeMosaic:
		return invoke("ImageCollection.mosaic", map[string]any{"collection": collection})
	case CompositeGreenest:
		return invoke("ImageCollection.qualityMosaic", map[string]any{
			"collection":  collection,
			"qualityBand": "NDVI",
		})
	default:
		return invoke("ImageCollection.median", map[string]any{"collection": collection})
	}
}

func selectExpr(image expr, bands []string) expr {
	if len(bands) == 0 {
		return image
	}
	return invoke("Image.select", map[string]any{"input": image, "bandSelectors": bands})
}

func bandMathExpr(image expr, expression, rename string) expr {
	e := invoke("Image.expression", map[string]any{
		"expression": expression,
		"map":        map[string]any{"img": image},
	})
	if rename != "" {
		e = invoke("Image.rename", map[string]any{"input": e, "names": []string{rename}})
	}
	return e
}

// cloudMaskExpr applies the per-sensor QA mask: Sentinel-2 flags clouds in
// QA60 bits 10 (opaque) and 11 (cirrus); Landsat Collection 2 flags them in
// QA_PIXEL bits 3 (cloud) and 4 (cloud shadow).
func cloudMaskExpr(image expr, collectionID string) expr {
	qaBand, bits, scale := cloudMaskParams(collectionID)
	masked := invoke("Image.updateMask", map[string]any{
		"input": image,
		"mask": invoke("Image.bitwiseMaskZero", map[string]any{
			"input": selectExpr(image, []string{qaBand}),
			"bits":  bits,
		}),
	})
	if scale != 1 {
		masked = invoke("Image.divide", map[string]any{
			"image1": masked,
			"image2": scale,
		})
	}
	return masked
}

func cloudMaskParams(collectionID string) (qaBand string, bits []int, scale float64) {
	if info, ok := LookupBuiltin(collectionID); ok {
		for _, b := range info.Bands {
			if b == "QA_PIXEL" {
				return "QA_PIXEL", []int{3, 4}, 1
			}
		}
	}
	// Sentinel-2 default: QA60 flags, reflectance stored as 0-10000.
	return "QA60", []int{10, 11}, 10000
}

func cloudCoverProperty(collectionID string) string {
	if info, ok := LookupBuiltin(collectionID); ok {
		for _, b := range info.Bands {
			if b == "QA_PIXEL" {
				return "CLOUD_COVER"
			}
		}
	}
	return "CLOUDY_PIXEL_PERCENTAGE"
}
