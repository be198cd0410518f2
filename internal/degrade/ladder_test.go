package degrade

import (
	"testing"
	"time"
)

func TestDefaultLadderIsValid(t *testing.T) {
	if err := ValidateLadder(DefaultLadder()); err != nil {
		t.Fatalf("default ladder invalid: %v", err)
	}
}

func TestValidateLadder(t *testing.T) {
	tests := []struct {
		name    string
		rungs   []Rung
		wantErr bool
	}{
		{
			name:    "empty",
			rungs:   nil,
			wantErr: true,
		},
		{
			name: "single rung",
			rungs: []Rung{
				{MaxDimensions: 1024, RegionForm: RegionExact, Budget: 30 * time.Second},
			},
		},
		{
			name: "dimensions increase",
			rungs: []Rung{
				{MaxDimensions: 512, RegionForm: RegionExact, Budget: 30 * time.Second},
				{MaxDimensions: 1024, RegionForm: RegionBoundingBox, Budget: 20 * time.Second},
			},
			wantErr: true,
		},
		{
			name: "budget increases",
			rungs: []Rung{
				{MaxDimensions: 1024, RegionForm: RegionExact, Budget: 10 * time.Second},
				{MaxDimensions: 512, RegionForm: RegionBoundingBox, Budget: 20 * time.Second},
			},
			wantErr: true,
		},
		{
			name: "region form reverts",
			rungs: []Rung{
				{MaxDimensions: 1024, RegionForm: RegionBoundingBox, Budget: 30 * time.Second},
				{MaxDimensions: 512, RegionForm: RegionExact, Budget: 20 * time.Second},
			},
			wantErr: true,
		},
		{
			name: "zero budget",
			rungs: []Rung{
				{MaxDimensions: 1024, RegionForm: RegionExact},
			},
			wantErr: true,
		},
		{
			name: "flat dims at floor",
			rungs: []Rung{
				{MaxDimensions: 128, RegionForm: RegionBoundingBox, Budget: 15 * time.Second},
				{MaxDimensions: 128, RegionForm: RegionBoundingBox, Budget: 10 * time.Second},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLadder(tt.rungs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLadder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
