package degrade

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
)

// scriptedRenderer fails the first n attempts with err, then succeeds.
type scriptedRenderer struct {
	failures int
	err      error
	requests []ee.ThumbnailRequest
}

func (s *scriptedRenderer) ThumbnailURL(_ context.Context, req ee.ThumbnailRequest) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.requests) <= s.failures {
		return "", s.err
	}
	return fmt.Sprintf("https://example.test/thumb/%d", len(s.requests)), nil
}

func wideRegion() orb.Geometry {
	return orb.Polygon{{
		{-122.55, 37.65}, {-122.3, 37.65}, {-122.3, 37.9}, {-122.55, 37.9}, {-122.55, 37.65},
	}}
}

func TestFirstAttemptSuccess(t *testing.T) {
	r := &scriptedRenderer{}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	res, err := c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"B4", "B3", "B2"}}, wideRegion(), 1024)
	if err != nil {
		t.Fatalf("ProduceVisualization failed: %v", err)
	}
	if res.Degraded {
		t.Error("first-attempt success must not be marked degraded")
	}
	if res.FinalDimensions != 1024 {
		t.Errorf("final dimensions = %d, want requested 1024", res.FinalDimensions)
	}
	if res.FinalRegionForm != RegionExact {
		t.Errorf("region form = %s, want exact", res.FinalRegionForm)
	}
}

func TestTwoTimeoutsThenDegradedSuccess(t *testing.T) {
	r := &scriptedRenderer{failures: 2, err: ee.ErrTimeout}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	res, err := c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}, Palette: []string{"red", "green"}}, wideRegion(), 2048)
	if err != nil {
		t.Fatalf("ProduceVisualization failed: %v", err)
	}
	if !res.Degraded {
		t.Error("expected degraded result")
	}
	if res.FinalDimensions != 128 {
		t.Errorf("final dimensions = %d, want 128", res.FinalDimensions)
	}
	if res.FinalRegionForm != RegionBoundingBox {
		t.Errorf("region form = %s, want boundingBox", res.FinalRegionForm)
	}
	if got := len(res.Attempts); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if res.Attempts[0].Outcome != "timeout" || res.Attempts[1].Outcome != "timeout" || res.Attempts[2].Outcome != "success" {
		t.Errorf("unexpected outcomes: %+v", res.Attempts)
	}
}

func TestAttemptCostsAreMonotonic(t *testing.T) {
	r := &scriptedRenderer{failures: 3, err: ee.ErrBackendRejected}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	_, err = c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, wideRegion(), 2048)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want ExhaustedError", err)
	}

	attempts := exhausted.Attempts
	boxed := false
	for i := 1; i < len(attempts); i++ {
		if attempts[i].Dimensions > attempts[i-1].Dimensions {
			t.Errorf("dimensions increased at attempt %d: %d -> %d", i, attempts[i-1].Dimensions, attempts[i].Dimensions)
		}
		if attempts[i].BudgetMs > attempts[i-1].BudgetMs {
			t.Errorf("budget increased at attempt %d", i)
		}
	}
	for _, a := range attempts {
		if a.RegionForm == RegionBoundingBox {
			boxed = true
		} else if boxed {
			t.Error("region form reverted from boundingBox to exact")
		}
	}
}

func TestExhaustedCarriesLastError(t *testing.T) {
	r := &scriptedRenderer{failures: 99, err: ee.ErrBackendRejected}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	_, err = c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, wideRegion(), 2048)
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %v, want ExhaustedError", err)
	}
	if !errors.Is(exhausted, ee.ErrBackendRejected) {
		t.Error("exhausted error must unwrap to the last backend error")
	}
	if len(exhausted.Attempts) != len(DefaultLadder()) {
		t.Errorf("attempts = %d, want one per rung (%d)", len(exhausted.Attempts), len(DefaultLadder()))
	}
	if len(r.requests) != len(DefaultLadder()) {
		t.Errorf("backend saw %d requests, want %d", len(r.requests), len(DefaultLadder()))
	}
}

func TestNonDegradableErrorAbortsImmediately(t *testing.T) {
	r := &scriptedRenderer{failures: 99, err: ee.ErrUnauthorized}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	_, err = c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, wideRegion(), 512)
	if !errors.Is(err, ee.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if len(r.requests) != 1 {
		t.Errorf("backend saw %d requests, want 1 (no degradation on auth failure)", len(r.requests))
	}
}

func TestCallerCancellationStopsLadder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &scriptedRenderer{failures: 99, err: ee.ErrTimeout}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	cancel()
	_, err = c.ProduceVisualization(ctx, "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, wideRegion(), 512)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(r.requests) > 1 {
		t.Errorf("ladder continued after caller cancellation: %d requests", len(r.requests))
	}
}

func TestRegionFormSentToBackend(t *testing.T) {
	r := &scriptedRenderer{failures: 1, err: ee.ErrBackendRejected}
	c, err := NewController(r, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	region := wideRegion()
	if _, err := c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, region, 2048); err != nil {
		t.Fatalf("ProduceVisualization failed: %v", err)
	}
	if len(r.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(r.requests))
	}

	// Second attempt must carry the bounding box, not the exact polygon.
	sent, ok := r.requests[1].Region.(orb.Polygon)
	if !ok {
		t.Fatalf("second request region is %T, want polygon", r.requests[1].Region)
	}
	want := region.Bound().ToPolygon()
	if len(sent) != 1 || len(sent[0]) != len(want[0]) {
		t.Errorf("second request region is not the bounding box")
	}

	ladder := DefaultLadder()
	if r.requests[1].Dimensions != ladder[1].MaxDimensions {
		t.Errorf("second attempt dims = %d, want %d", r.requests[1].Dimensions, ladder[1].MaxDimensions)
	}
}

func TestTimeBudgetAppliedPerAttempt(t *testing.T) {
	deadlines := make([]time.Duration, 0, 2)
	c, err := NewController(renderFunc(func(ctx context.Context, req ee.ThumbnailRequest) (string, error) {
		dl, ok := ctx.Deadline()
		if !ok {
			return "", fmt.Errorf("attempt context has no deadline")
		}
		deadlines = append(deadlines, time.Until(dl))
		if len(deadlines) == 1 {
			return "", ee.ErrTimeout
		}
		return "https://example.test/thumb", nil
	}), nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}

	if _, err := c.ProduceVisualization(context.Background(), "h", ee.VisualizationSpec{Bands: []string{"NDVI"}}, wideRegion(), 2048); err != nil {
		t.Fatalf("ProduceVisualization failed: %v", err)
	}
	if len(deadlines) != 2 {
		t.Fatalf("attempts = %d, want 2", len(deadlines))
	}
	if deadlines[1] >= deadlines[0] {
		t.Errorf("second attempt budget (%v) not shorter than first (%v)", deadlines[1], deadlines[0])
	}
}

type renderFunc func(ctx context.Context, req ee.ThumbnailRequest) (string, error)

func (f renderFunc) ThumbnailURL(ctx context.Context, req ee.ThumbnailRequest) (string, error) {
	return f(ctx, req)
}
