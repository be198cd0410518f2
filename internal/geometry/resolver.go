// Package geometry resolves place names and raw coordinates into boundary
// polygons. Name resolution walks a tier ladder of administrative boundary
// datasets from fine (district) to coarse (country), then retries with a
// country qualifier before giving up.
package geometry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/simplify"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

// maxPolygonVertices caps boundary complexity before it is handed to the
// backend. GAUL country outlines can carry tens of thousands of vertices.
const maxPolygonVertices = 1000

// Query is one resolution request. Coordinates win over PlaceName when both
// are present.
type Query struct {
	PlaceName      string
	Coordinates    []any   // see FromCoordinates for accepted shapes
	BufferMeters   float64 // point buffer half-width, 0 = default
	AdminLevelHint int     // -1 = no hint; 0..2 starts the ladder at that level
}

// Resolved is an immutable resolution result.
type Resolved struct {
	PlaceName     string       `json:"place_name,omitempty"`
	Geometry      orb.Geometry `json:"-"`
	AreaKm2       float64      `json:"area_km2"`
	SourceDataset string       `json:"source_dataset,omitempty"`
	AdminLevel    int          `json:"admin_level"`
	Bound         orb.Bound    `json:"-"`
}

// BoundaryLookup is the slice of the backend surface the resolver needs.
type BoundaryLookup interface {
	LookupBoundary(ctx context.Context, q ee.BoundaryQuery) ([]ee.BoundaryFeature, error)
}

// Resolver caches successful name resolutions for the process lifetime.
// Concurrent misses for the same name may each hit the backend; resolution
// is idempotent so the duplicate work is accepted rather than locked out.
type Resolver struct {
	client BoundaryLookup
	tiers  []ee.BoundaryDataset

	// countryHints are tried, in order, for the country-qualified retry
	// when the query itself carries no country.
	countryHints []string

	mu    sync.RWMutex
	cache map[string]*Resolved
}

// DefaultTiers returns the gazetteer ladder: GAUL district, state, country.
func DefaultTiers() []ee.BoundaryDataset {
	return []ee.BoundaryDataset{
		{ID: "FAO/GAUL_SIMPLIFIED_500m/2015/level2", AdminLevel: 2, NameProperty: "ADM2_NAME", CountryProperty: "ADM0_NAME"},
		{ID: "FAO/GAUL_SIMPLIFIED_500m/2015/level1", AdminLevel: 1, NameProperty: "ADM1_NAME", CountryProperty: "ADM0_NAME"},
		{ID: "FAO/GAUL_SIMPLIFIED_500m/2015/level0", AdminLevel: 0, NameProperty: "ADM0_NAME"},
	}
}

// defaultCountryHints covers the countries that dominate ambiguous
// single-word queries in practice.
var defaultCountryHints = []string{
	"United States of America",
	"India",
	"Brazil",
	"China",
	"Australia",
	"Canada",
}

// NewResolver builds a resolver over the given backend client.
func NewResolver(client BoundaryLookup, tiers []ee.BoundaryDataset) *Resolver {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	return &Resolver{
		client:       client,
		tiers:        tiers,
		countryHints: defaultCountryHints,
		cache:        make(map[string]*Resolved),
	}
}

// Resolve turns a query into a boundary geometry.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Resolved, error) {
	if len(q.Coordinates) > 0 {
		return r.fromCoordinates(q)
	}

	name := strings.TrimSpace(q.PlaceName)
	if name == "" {
		return nil, ErrEmptyQuery
	}

	if cached := r.cached(name); cached != nil {
		logging.GeometryDebug("cache hit: %q", name)
		return cached, nil
	}

	resolved, err := r.lookup(ctx, name, q.AdminLevelHint)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = resolved
	r.mu.Unlock()
	return resolved, nil
}

// CacheSize reports the number of cached resolutions.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

func (r *Resolver) cached(name string) *Resolved {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cache[name]
}

// FromGeoJSON wraps an inline GeoJSON geometry in a Resolved. No lookup
// and no caching; the caller already has the exact boundary.
func FromGeoJSON(g orb.Geometry) *Resolved {
	return &Resolved{
		Geometry:   g,
		AreaKm2:    geo.Area(g) / 1e6,
		AdminLevel: -1,
		Bound:      g.Bound(),
	}
}

func (r *Resolver) fromCoordinates(q Query) (*Resolved, error) {
	g, err := FromCoordinates(q.Coordinates, q.BufferMeters)
	if err != nil {
		return nil, err
	}
	return &Resolved{
		Geometry:   g,
		AreaKm2:    geo.Area(g) / 1e6,
		AdminLevel: -1,
		Bound:      g.Bound(),
	}, nil
}

func (r *Resolver) lookup(ctx context.Context, name string, levelHint int) (*Resolved, error) {
	// "San Francisco, USA" carries its own country qualifier.
	base, country := splitCountry(name)

	resolved, err := r.walkTiers(ctx, base, country, levelHint)
	if err != nil || resolved != nil {
		return resolved, err
	}

	if country != "" {
		// The comma suffix may be part of the name itself, as in
		// "Washington, D.C.". Retry the unsplit string before giving up.
		resolved, err = r.walkTiers(ctx, name, "", levelHint)
		if err != nil || resolved != nil {
			return resolved, err
		}
	} else {
		// Country-qualified retry: only useful when the query itself
		// carried no qualifier.
		for _, hint := range r.countryHints {
			for _, tier := range r.tiers {
				if tier.CountryProperty == "" {
					continue
				}
				feature, err := r.lookupTier(ctx, tier, base, hint)
				if err != nil {
					return nil, err
				}
				if feature != nil {
					logging.GeometryDebug("resolved %q with country hint %q at level %d", name, hint, tier.AdminLevel)
					return r.fromFeature(base, tier, feature), nil
				}
			}
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrPlaceNotFound, name)
}

// walkTiers runs the fine-to-coarse ladder once; nil, nil means every tier
// missed cleanly.
func (r *Resolver) walkTiers(ctx context.Context, name, country string, levelHint int) (*Resolved, error) {
	for _, tier := range r.tiers {
		if levelHint >= 0 && tier.AdminLevel > levelHint {
			continue
		}
		feature, err := r.lookupTier(ctx, tier, name, country)
		if err != nil {
			return nil, err
		}
		if feature != nil {
			logging.GeometryDebug("resolved %q at admin level %d (%s)", name, tier.AdminLevel, tier.ID)
			return r.fromFeature(name, tier, feature), nil
		}
	}
	return nil, nil
}

// lookupTier queries one boundary dataset; a nil feature means a clean miss.
func (r *Resolver) lookupTier(ctx context.Context, tier ee.BoundaryDataset, name, country string) (*ee.BoundaryFeature, error) {
	features, err := r.client.LookupBoundary(ctx, ee.BoundaryQuery{
		Name:    name,
		Country: country,
		Dataset: tier,
	})
	if err != nil {
		return nil, fmt.Errorf("boundary lookup failed on %s: %w", tier.ID, err)
	}
	return pickLargest(features), nil
}

func (r *Resolver) fromFeature(name string, tier ee.BoundaryDataset, f *ee.BoundaryFeature) *Resolved {
	g := simplifyGeometry(f.Geometry)
	area := f.AreaKm2
	if area <= 0 {
		area = geo.Area(g) / 1e6
	}
	return &Resolved{
		PlaceName:     name,
		Geometry:      g,
		AreaKm2:       area,
		SourceDataset: tier.ID,
		AdminLevel:    tier.AdminLevel,
		Bound:         g.Bound(),
	}
}

// pickLargest breaks same-tier name collisions in favor of the largest
// feature, so a major region beats a small homonymous locality.
func pickLargest(features []ee.BoundaryFeature) *ee.BoundaryFeature {
	var best *ee.BoundaryFeature
	for i := range features {
		if best == nil || features[i].AreaKm2 > best.AreaKm2 {
			best = &features[i]
		}
	}
	return best
}

// simplifyGeometry thins very dense boundary polygons before they travel to
// the backend on every subsequent call.
func simplifyGeometry(g orb.Geometry) orb.Geometry {
	if vertexCount(g) <= maxPolygonVertices {
		return g
	}
	return simplify.DouglasPeucker(0.001).Simplify(g)
}

func vertexCount(g orb.Geometry) int {
	switch t := g.(type) {
	case orb.Polygon:
		n := 0
		for _, ring := range t {
			n += len(ring)
		}
		return n
	case orb.MultiPolygon:
		n := 0
		for _, p := range t {
			n += vertexCount(p)
		}
		return n
	}
	return 0
}

func splitCountry(name string) (base, country string) {
	i := strings.LastIndex(name, ",")
	if i < 0 {
		return name, ""
	}
	base = strings.TrimSpace(name[:i])
	country = canonicalCountry(strings.TrimSpace(name[i+1:]))
	if base == "" {
		return name, ""
	}
	return base, country
}

// canonicalCountry maps common short forms onto GAUL ADM0 names.
func canonicalCountry(c string) string {
	switch strings.ToUpper(c) {
	case "USA", "US", "UNITED STATES":
		return "United States of America"
	case "UK", "UNITED KINGDOM", "GREAT BRITAIN":
		return "U.K. of Great Britain and Northern Ireland"
	case "UAE":
		return "United Arab Emirates"
	}
	return c
}
