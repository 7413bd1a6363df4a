package mosaic

import (
	"math"
	"testing"
)

func TestNormalizeRotation(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{10, 10},
		{370, 10},
		{-10, 350},
		{360, 0},
		{-360, 0},
		{725.5, 5.5},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}

	for _, tt := range tests {
		got := NormalizeRotation(tt.in)
		if got < 0 || got >= 360 {
			t.Errorf("NormalizeRotation(%v) = %v, outside [0, 360)", tt.in, got)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeRotation(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRotationPeriodic(t *testing.T) {
	for _, base := range []float64{0, 12.5, 179, 359.9} {
		for k := -3; k <= 3; k++ {
			got := NormalizeRotation(base + 360*float64(k))
			if math.Abs(got-base) > 1e-9 {
				t.Errorf("NormalizeRotation(%v + 360*%d) = %v, want %v", base, k, got, base)
			}
		}
	}
}

func TestClampPanels(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{7, 7},
		{20, 20},
		{21, 20},
	}

	for _, tt := range tests {
		if got := ClampPanels(tt.in); got != tt.want {
			t.Errorf("ClampPanels(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClampOverlap(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{25, 25},
		{50, 50},
		{99, 50},
		{math.NaN(), 0},
	}

	for _, tt := range tests {
		if got := ClampOverlap(tt.in); got != tt.want {
			t.Errorf("ClampOverlap(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigValidated(t *testing.T) {
	cfg := Config{PanelsX: 0, PanelsY: 40, RotationDeg: -90, OverlapPercent: 100}
	got := cfg.Validated()
	want := Config{PanelsX: 1, PanelsY: 20, RotationDeg: 270, OverlapPercent: 50}
	if got != want {
		t.Errorf("Validated() = %+v, want %+v", got, want)
	}

	if d := DefaultConfig(); d.Validated() != d {
		t.Errorf("DefaultConfig() is not already valid: %+v", d)
	}
}

func TestFOVValid(t *testing.T) {
	tests := []struct {
		name string
		fov  FOV
		want bool
	}{
		{"zero value", FOV{}, false},
		{"typical", FOV{XDeg: 1.2, YDeg: 0.8, ChipRotationDeg: 15}, true},
		{"negative", FOV{XDeg: -1, YDeg: 1}, false},
		{"hemisphere", FOV{XDeg: 180, YDeg: 1}, false},
		{"nan", FOV{XDeg: math.NaN(), YDeg: 1}, false},
		{"nan rotation", FOV{XDeg: 1, YDeg: 1, ChipRotationDeg: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fov.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
