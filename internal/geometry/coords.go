package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// defaultBufferMeters is the half-width of the box built around a bare
// point coordinate.
const defaultBufferMeters = 10000

// FromCoordinates builds a geometry from raw coordinate input without any
// gazetteer lookup. Accepted shapes:
//
//	[lon, lat]                      point, buffered to a box
//	[minLon, minLat, maxLon, maxLat] bounding box
//	[[lon, lat], ...]               single polygon ring
//	[[[lon, lat], ...], ...]        polygon with holes
func FromCoordinates(raw []any, bufferMeters float64) (orb.Geometry, error) {
	if bufferMeters <= 0 {
		bufferMeters = defaultBufferMeters
	}

	nums, ok := asFloats(raw)
	if ok {
		switch len(nums) {
		case 2:
			return pointBox(orb.Point{nums[0], nums[1]}, bufferMeters), nil
		case 4:
			b := orb.Bound{
				Min: orb.Point{nums[0], nums[1]},
				Max: orb.Point{nums[2], nums[3]},
			}
			return b.ToPolygon(), nil
		default:
			return nil, fmt.Errorf("%w: %d numbers (want 2 or 4)", ErrBadCoordinates, len(nums))
		}
	}

	ring, ok := asRing(raw)
	if ok {
		return orb.Polygon{ring}, nil
	}

	// Polygon with holes: a list of rings.
	poly := orb.Polygon{}
	for _, el := range raw {
		inner, ok := el.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: mixed coordinate nesting", ErrBadCoordinates)
		}
		r, ok := asRing(inner)
		if !ok {
			return nil, fmt.Errorf("%w: ring is not a list of [lon, lat] pairs", ErrBadCoordinates)
		}
		poly = append(poly, r)
	}
	if len(poly) == 0 {
		return nil, ErrBadCoordinates
	}
	return poly, nil
}

// pointBox builds a closed box of +-meters around a point. The longitude
// span widens with latitude so the box stays roughly square on the ground.
func pointBox(p orb.Point, meters float64) orb.Polygon {
	dLat := meters / 111320.0
	cos := math.Cos(p[1] * math.Pi / 180)
	if math.Abs(cos) < 0.01 {
		cos = 0.01
	}
	dLon := meters / (111320.0 * cos)

	b := orb.Bound{
		Min: orb.Point{p[0] - dLon, p[1] - dLat},
		Max: orb.Point{p[0] + dLon, p[1] + dLat},
	}
	return b.ToPolygon()
}

func asFloats(raw []any) ([]float64, bool) {
	out := make([]float64, 0, len(raw))
	for _, el := range raw {
		f, ok := toFloat(el)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, len(out) > 0
}

func asRing(raw []any) (orb.Ring, bool) {
	ring := make(orb.Ring, 0, len(raw))
	for _, el := range raw {
		pair, ok := el.([]any)
		if !ok {
			return nil, false
		}
		nums, ok := asFloats(pair)
		if !ok || len(nums) != 2 {
			return nil, false
		}
		ring = append(ring, orb.Point{nums[0], nums[1]})
	}
	if len(ring) < 3 {
		return nil, false
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case jsonNumber:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// jsonNumber lets callers pass values decoded with json.Decoder.UseNumber.
type jsonNumber interface{ Float64() (float64, error) }
