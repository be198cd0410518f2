package ee

import (
	"errors"
	"fmt"
)

// Visualization validation errors.
var (
	ErrVizNoBands      = errors.New("visualization requires at least one band")
	ErrVizBandCount    = errors.New("visualization requires one band or three bands")
	ErrVizPaletteRGB   = errors.New("palette is only valid for single-band visualization")
	ErrVizRangeLength  = errors.New("min/max must be scalar or match the band count")
	ErrVizInvertedStop = errors.New("min must be below max")
)

// VisualizationSpec controls how a computation is rendered. One band renders
// through a palette; three bands render as an RGB stretch. Min/Max may be a
// single value applied to every band or one value per band.
type VisualizationSpec struct {
	Bands   []string  `json:"bands"`
	Min     []float64 `json:"min,omitempty"`
	Max     []float64 `json:"max,omitempty"`
	Palette []string  `json:"palette,omitempty"`
	Gamma   float64   `json:"gamma,omitempty"`
}

// Validate checks the band/palette/stretch consistency rules.
func (v VisualizationSpec) Validate() error {
	switch len(v.Bands) {
	case 0:
		return ErrVizNoBands
	case 1:
		// palette allowed
	case 3:
		if len(v.Palette) > 0 {
			return ErrVizPaletteRGB
		}
	default:
		return fmt.Errorf("%w: got %d", ErrVizBandCount, len(v.Bands))
	}

	if err := v.checkRange(len(v.Min)); err != nil {
		return err
	}
	if err := v.checkRange(len(v.Max)); err != nil {
		return err
	}
	for i := range v.Min {
		if i < len(v.Max) && v.Min[i] >= v.Max[i] {
			return fmt.Errorf("%w: min[%d]=%g max[%d]=%g", ErrVizInvertedStop, i, v.Min[i], i, v.Max[i])
		}
	}
	return nil
}

func (v VisualizationSpec) checkRange(n int) error {
	if n != 0 && n != 1 && n != len(v.Bands) {
		return fmt.Errorf("%w: %d values for %d bands", ErrVizRangeLength, n, len(v.Bands))
	}
	return nil
}

// DefaultViz returns a sensible rendering for well-known band sets when the
// caller supplies none: true color for optical composites, a green palette
// ramp for vegetation indices.
func DefaultViz(bands []string) VisualizationSpec {
	if containsAll(bands, "B4", "B3", "B2") {
		return VisualizationSpec{
			Bands: []string{"B4", "B3", "B2"},
			Min:   []float64{0},
			Max:   []float64{0.3},
			Gamma: 1.4,
		}
	}
	if containsAll(bands, "SR_B4", "SR_B3", "SR_B2") {
		return VisualizationSpec{
			Bands: []string{"SR_B4", "SR_B3", "SR_B2"},
			Min:   []float64{0},
			Max:   []float64{0.3},
			Gamma: 1.4,
		}
	}
	if len(bands) >= 3 {
		return VisualizationSpec{
			Bands: []string{bands[0], bands[1], bands[2]},
			Min:   []float64{0},
			Max:   []float64{0.3},
		}
	}
	if len(bands) == 0 {
		return VisualizationSpec{}
	}
	// One or two band hints render the first band through the ramp; a
	// two-band RGB never validates.
	return VisualizationSpec{
		Bands:   []string{bands[0]},
		Min:     []float64{-1},
		Max:     []float64{1},
		Palette: []string{"d73027", "fee08b", "1a9850"},
	}
}

func containsAll(haystack []string, wanted ...string) bool {
	set := make(map[string]bool, len(haystack))
	for _, b := range haystack {
		set[b] = true
	}
	for _, w := range wanted {
		if !set[w] {
			return false
		}
	}
	return true
}
