package geometry

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
)

// fakeGazetteer serves canned features keyed by dataset ID + name and counts
// lookups per dataset.
type fakeGazetteer struct {
	features map[string][]ee.BoundaryFeature // key: datasetID + "/" + name (+ "@" + country)
	calls    map[string]int
	err      error
}

func newFakeGazetteer() *fakeGazetteer {
	return &fakeGazetteer{
		features: make(map[string][]ee.BoundaryFeature),
		calls:    make(map[string]int),
	}
}

func (f *fakeGazetteer) add(datasetID, name, country string, feats ...ee.BoundaryFeature) {
	f.features[gazKey(datasetID, name, country)] = feats
}

func (f *fakeGazetteer) LookupBoundary(_ context.Context, q ee.BoundaryQuery) ([]ee.BoundaryFeature, error) {
	f.calls[q.Dataset.ID]++
	if f.err != nil {
		return nil, f.err
	}
	return f.features[gazKey(q.Dataset.ID, q.Name, q.Country)], nil
}

func gazKey(datasetID, name, country string) string {
	return datasetID + "/" + name + "@" + country
}

func squareAround(lon, lat, halfDeg float64) orb.Polygon {
	return orb.Bound{
		Min: orb.Point{lon - halfDeg, lat - halfDeg},
		Max: orb.Point{lon + halfDeg, lat + halfDeg},
	}.ToPolygon()
}

const (
	level2 = "FAO/GAUL_SIMPLIFIED_500m/2015/level2"
	level1 = "FAO/GAUL_SIMPLIFIED_500m/2015/level1"
	level0 = "FAO/GAUL_SIMPLIFIED_500m/2015/level0"
)

func TestResolveFineTierHit(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level2, "San Francisco", "", ee.BoundaryFeature{
		Name:     "San Francisco",
		Geometry: squareAround(-122.44, 37.76, 0.05),
		AreaKm2:  122,
	})
	// A coarse-tier feature with the same name must not win.
	gaz.add(level1, "San Francisco", "", ee.BoundaryFeature{
		Name:     "San Francisco",
		Geometry: squareAround(-122.44, 37.76, 2),
		AreaKm2:  48000,
	})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "San Francisco", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.AdminLevel != 2 {
		t.Errorf("admin level = %d, want 2 (fine tier)", got.AdminLevel)
	}
	if got.SourceDataset != level2 {
		t.Errorf("source dataset = %q, want %q", got.SourceDataset, level2)
	}
	if math.Abs(got.AreaKm2-122)/122 > 0.10 {
		t.Errorf("area = %.1f km2, want 122 +-10%%", got.AreaKm2)
	}
	if gaz.calls[level1] != 0 {
		t.Errorf("coarse tier consulted %d times after fine-tier hit", gaz.calls[level1])
	}
}

func TestResolveCoarseTierFallback(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level1, "California", "", ee.BoundaryFeature{
		Name:     "California",
		Geometry: squareAround(-119.4, 36.7, 3),
		AreaKm2:  423970,
	})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "California", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.AdminLevel != 1 {
		t.Errorf("admin level = %d, want 1 (coarse tier)", got.AdminLevel)
	}
	if math.Abs(got.AreaKm2-424000)/424000 > 0.05 {
		t.Errorf("area = %.0f km2, want ~424000 +-5%%", got.AreaKm2)
	}
	if gaz.calls[level2] != 1 {
		t.Errorf("fine tier tried %d times, want exactly 1 before falling through", gaz.calls[level2])
	}
}

func TestResolveTieBreakPrefersLargerFeature(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level2, "Springfield", "",
		ee.BoundaryFeature{Name: "Springfield", Geometry: squareAround(-89.6, 39.8, 0.2), AreaKm2: 1550},
		ee.BoundaryFeature{Name: "Springfield", Geometry: squareAround(-72.6, 42.1, 0.05), AreaKm2: 85},
	)

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "Springfield", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if math.Abs(got.AreaKm2-1550) > 1 {
		t.Errorf("area = %.0f, want the larger feature (1550)", got.AreaKm2)
	}
}

func TestResolveCountryQualifiedQuery(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level2, "Punjab", "India", ee.BoundaryFeature{
		Name:     "Punjab",
		Geometry: squareAround(75.3, 31.1, 1),
		AreaKm2:  50362,
	})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "Punjab, India", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.PlaceName != "Punjab" {
		t.Errorf("place name = %q, want the base name", got.PlaceName)
	}
}

func TestResolveCommaNameRetriesUnsplit(t *testing.T) {
	gaz := newFakeGazetteer()
	// The comma suffix is part of the gazetteer name, not a country.
	gaz.add(level2, "Washington, D.C.", "", ee.BoundaryFeature{
		Name:     "Washington, D.C.",
		Geometry: squareAround(-77.03, 38.9, 0.1),
		AreaKm2:  177,
	})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "Washington, D.C.", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.PlaceName != "Washington, D.C." {
		t.Errorf("place name = %q, want the unsplit input", got.PlaceName)
	}
	if got.AreaKm2 != 177 {
		t.Errorf("area = %.0f, want 177", got.AreaKm2)
	}
	if gaz.calls[level2] != 2 {
		t.Errorf("fine tier consulted %d times, want 2 (qualified miss, then unsplit)", gaz.calls[level2])
	}
}

func TestResolveCountryHintRetry(t *testing.T) {
	gaz := newFakeGazetteer()
	// Only findable when qualified with the first country hint.
	gaz.add(level2, "Marin", "United States of America", ee.BoundaryFeature{
		Name:     "Marin",
		Geometry: squareAround(-122.7, 38.0, 0.2),
		AreaKm2:  2145,
	})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "Marin", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.AreaKm2 != 2145 {
		t.Errorf("area = %.0f, want 2145", got.AreaKm2)
	}
}

func TestResolveAllTiersMiss(t *testing.T) {
	r := NewResolver(newFakeGazetteer(), nil)
	_, err := r.Resolve(context.Background(), Query{PlaceName: "Atlantis", AdminLevelHint: -1})
	if !errors.Is(err, ErrPlaceNotFound) {
		t.Errorf("got %v, want ErrPlaceNotFound", err)
	}
}

func TestResolveCachesByExactInput(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level2, "San Francisco", "", ee.BoundaryFeature{
		Name:     "San Francisco",
		Geometry: squareAround(-122.44, 37.76, 0.05),
		AreaKm2:  122,
	})

	r := NewResolver(gaz, nil)
	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), Query{PlaceName: "San Francisco", AdminLevelHint: -1}); err != nil {
			t.Fatalf("Resolve #%d failed: %v", i+1, err)
		}
	}
	if gaz.calls[level2] != 1 {
		t.Errorf("backend consulted %d times, want 1 (cache)", gaz.calls[level2])
	}
	if r.CacheSize() != 1 {
		t.Errorf("cache size = %d, want 1", r.CacheSize())
	}
}

func TestResolveAdminLevelHintSkipsFinerTiers(t *testing.T) {
	gaz := newFakeGazetteer()
	gaz.add(level1, "California", "", ee.BoundaryFeature{
		Name:     "California",
		Geometry: squareAround(-119.4, 36.7, 3),
		AreaKm2:  423970,
	})

	r := NewResolver(gaz, nil)
	if _, err := r.Resolve(context.Background(), Query{PlaceName: "California", AdminLevelHint: 1}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if gaz.calls[level2] != 0 {
		t.Errorf("fine tier consulted despite level hint 1")
	}
}

func TestResolveCoordinatesBypassGazetteer(t *testing.T) {
	gaz := newFakeGazetteer()
	r := NewResolver(gaz, nil)

	t.Run("point is buffered", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), Query{
			Coordinates:    []any{-122.44, 37.76},
			AdminLevelHint: -1,
		})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		// 10 km half-width box -> 20x20 km -> ~400 km2.
		if got.AreaKm2 < 300 || got.AreaKm2 > 500 {
			t.Errorf("buffered point area = %.0f km2, want ~400", got.AreaKm2)
		}
	})

	t.Run("bbox", func(t *testing.T) {
		got, err := r.Resolve(context.Background(), Query{
			Coordinates:    []any{-122.55, 37.65, -122.3, 37.9},
			AdminLevelHint: -1,
		})
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got.AreaKm2 <= 0 {
			t.Error("bbox area must be positive")
		}
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), Query{
			Coordinates:    []any{1.0, 2.0, 3.0},
			AdminLevelHint: -1,
		})
		if !errors.Is(err, ErrBadCoordinates) {
			t.Errorf("got %v, want ErrBadCoordinates", err)
		}
	})

	if len(gaz.calls) != 0 {
		t.Errorf("gazetteer consulted for coordinate input: %v", gaz.calls)
	}
}

func TestBoundContainsPolygon(t *testing.T) {
	gaz := newFakeGazetteer()
	poly := squareAround(-122.44, 37.76, 0.05)
	gaz.add(level2, "San Francisco", "", ee.BoundaryFeature{Name: "San Francisco", Geometry: poly, AreaKm2: 122})

	r := NewResolver(gaz, nil)
	got, err := r.Resolve(context.Background(), Query{PlaceName: "San Francisco", AdminLevelHint: -1})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !got.Bound.Contains(poly[0][0]) {
		t.Error("bounding box does not contain the polygon")
	}
}
