package degrade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

// Renderer is the slice of the backend surface the controller drives.
type Renderer interface {
	ThumbnailURL(ctx context.Context, req ee.ThumbnailRequest) (string, error)
}

// Attempt records one try of the ladder for the caller's benefit.
type Attempt struct {
	Dimensions int           `json:"dimensions"`
	RegionForm RegionForm    `json:"region_form"`
	Budget     time.Duration `json:"-"`
	BudgetMs   int64         `json:"budget_ms"`
	Outcome    string        `json:"outcome"` // success | timeout | backend_error
}

// Result is a successful (possibly degraded) visualization.
type Result struct {
	URL             string
	FinalDimensions int
	FinalRegionForm RegionForm
	Degraded        bool // true when any rung below the first succeeded
	Attempts        []Attempt
}

// ExhaustedError reports that every rung failed. It carries the last
// backend error and the attempt history so callers can split the region or
// lower expectations manually.
type ExhaustedError struct {
	LastErr  error
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("visualization failed after %d degradation attempts: %v", len(e.Attempts), e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Controller walks the ladder for one request at a time. Attempts are
// strictly sequential; there is no speculative parallelism, so a struggling
// backend sees at most one in-flight attempt per request.
type Controller struct {
	renderer Renderer
	ladder   []Rung
}

// NewController validates the ladder and builds a controller.
func NewController(renderer Renderer, ladder []Rung) (*Controller, error) {
	if len(ladder) == 0 {
		ladder = DefaultLadder()
	}
	if err := ValidateLadder(ladder); err != nil {
		return nil, fmt.Errorf("invalid degradation ladder: %w", err)
	}
	return &Controller{renderer: renderer, ladder: ladder}, nil
}

// ProduceVisualization renders input over region, degrading on timeout or
// backend size rejection. Non-degradable errors (auth, malformed handle)
// abort immediately without consuming further rungs.
func (c *Controller) ProduceVisualization(ctx context.Context, input ee.Handle, spec ee.VisualizationSpec, region orb.Geometry, dimensions int) (*Result, error) {
	attempts := make([]Attempt, 0, len(c.ladder))
	var lastErr error

	for i, rung := range c.ladder {
		dims := dimensions
		if dims <= 0 || dims > rung.MaxDimensions {
			dims = rung.MaxDimensions
		}

		attempt := Attempt{
			Dimensions: dims,
			RegionForm: rung.RegionForm,
			Budget:     rung.Budget,
			BudgetMs:   rung.Budget.Milliseconds(),
		}

		attemptCtx, cancel := context.WithTimeout(ctx, rung.Budget)
		url, err := c.renderer.ThumbnailURL(attemptCtx, ee.ThumbnailRequest{
			Input:      input,
			Spec:       spec,
			Region:     regionFor(region, rung.RegionForm),
			Dimensions: dims,
		})
		cancel()

		if err == nil {
			attempt.Outcome = "success"
			attempts = append(attempts, attempt)
			logging.ExportDebug("visualization succeeded at rung %d (dims=%d form=%s)", i, dims, rung.RegionForm)
			return &Result{
				URL:             url,
				FinalDimensions: dims,
				FinalRegionForm: rung.RegionForm,
				Degraded:        i > 0,
				Attempts:        attempts,
			}, nil
		}

		attempt.Outcome = outcomeOf(err)
		attempts = append(attempts, attempt)
		lastErr = err

		// The caller's context going away is not a backend failure; stop.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !ee.Degradable(err) {
			return nil, err
		}
		logging.ExportDebug("rung %d failed (%s), degrading: %v", i, attempt.Outcome, err)
	}

	return nil, &ExhaustedError{LastErr: lastErr, Attempts: attempts}
}

func regionFor(region orb.Geometry, form RegionForm) orb.Geometry {
	if region == nil {
		return nil
	}
	if form == RegionBoundingBox {
		return region.Bound().ToPolygon()
	}
	return region
}

func outcomeOf(err error) string {
	if errors.Is(err, ee.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "backend_error"
}
