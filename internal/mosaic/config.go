package mosaic

import (
	"math"

	"github.com/star/mosaicplanner/internal/transform"
)

// Configuration limits enforced by Validated.
const (
	MinPanels         = 1
	MaxPanels         = 20
	MinOverlapPercent = 0.0
	MaxOverlapPercent = 50.0
)

// Config describes the panel grid of a mosaic. A Config is treated as an
// immutable value for the duration of one layout computation.
type Config struct {
	PanelsX        int     `json:"panels_x"`
	PanelsY        int     `json:"panels_y"`
	RotationDeg    float64 `json:"rotation_deg"`    // grid rotation, counter-clockwise positive
	OverlapPercent float64 `json:"overlap_percent"` // overlap between adjacent panels
}

// DefaultConfig returns a 3x3 grid with no rotation and 20% overlap.
func DefaultConfig() Config {
	return Config{
		PanelsX:        3,
		PanelsY:        3,
		RotationDeg:    0,
		OverlapPercent: 20,
	}
}

// Validated returns a copy of c with panel counts clamped to [1, 20], overlap
// clamped to [0, 50] and rotation normalized into [0, 360).
func (c Config) Validated() Config {
	return Config{
		PanelsX:        ClampPanels(c.PanelsX),
		PanelsY:        ClampPanels(c.PanelsY),
		RotationDeg:    NormalizeRotation(c.RotationDeg),
		OverlapPercent: ClampOverlap(c.OverlapPercent),
	}
}

// RotationRadians returns the grid rotation in radians.
func (c Config) RotationRadians() float64 {
	return transform.DegToRad(c.RotationDeg)
}

// PanelCount returns the number of panels the grid produces.
func (c Config) PanelCount() int {
	return c.PanelsX * c.PanelsY
}

// ClampPanels bounds a panel count to [MinPanels, MaxPanels].
func ClampPanels(n int) int {
	if n < MinPanels {
		return MinPanels
	}
	if n > MaxPanels {
		return MaxPanels
	}
	return n
}

// ClampOverlap bounds an overlap percentage to [0, 50]. NaN maps to 0.
func ClampOverlap(p float64) float64 {
	if math.IsNaN(p) || p < MinOverlapPercent {
		return MinOverlapPercent
	}
	if p > MaxOverlapPercent {
		return MaxOverlapPercent
	}
	return p
}

// NormalizeRotation maps an angle in degrees onto [0, 360) with period 360.
// Non-finite input maps to 0.
func NormalizeRotation(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	n := deg - 360.0*math.Floor(deg/360.0)
	if n >= 360.0 {
		n = 0
	}
	return n
}
