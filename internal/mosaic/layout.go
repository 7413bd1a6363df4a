// Package mosaic computes the geometry of a rectangular imaging mosaic on the
// celestial sphere.
//
// Two pure stages make up the pipeline:
//   - ComputePanels lays out the panel grid around a view center.
//   - ComputeOutline turns one panel into a projected polygon using a
//     caller-supplied projection.
//
// Neither function keeps state between calls. Every call allocates its own
// output, so outlines for different panels may be computed concurrently.
package mosaic

import (
	"math"

	"github.com/star/mosaicplanner/internal/transform"
)

// poleCosLimit is the |cos(dec)| at or below which the RA offset is forced to
// zero. It corresponds to roughly 0.57 degrees from either pole. Panels laid
// out this close to a pole only spread in declination.
const poleCosLimit = 0.01

// Panel is one sensor footprint of the mosaic.
type Panel struct {
	IndexX int // grid column, 0..PanelsX-1
	IndexY int // grid row, 0..PanelsY-1

	// Center is the panel center, in the same frame as the view center.
	Center transform.Direction

	// Longitude (RA in the equatorial frame) in [0, 2π) and latitude of the
	// panel center, in radians. Latitude is not folded back when a grid
	// reaches over a pole.
	Longitude float64
	Latitude  float64

	// Orientation is grid rotation plus chip rotation, in radians.
	Orientation float64
}

// StepSize returns the angular distance in degrees between adjacent panel
// centers along each grid axis.
func StepSize(cfg Config, fov FOV) (stepX, stepY float64) {
	factor := 1.0 - cfg.OverlapPercent/100.0
	return fov.XDeg * factor, fov.YDeg * factor
}

// GridOffsets returns the n offsets of panel centers along one axis,
// symmetric about zero. Even counts put the view center between two panels.
func GridOffsets(n int, step float64) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	mid := float64(n-1) / 2.0
	for i := range out {
		out[i] = (float64(i) - mid) * step
	}
	return out
}

// ComputePanels lays out the mosaic grid centered on center.
//
// center is expected to be a unit vector; a panel with zero offset reuses it
// verbatim. An invalid fov means no equipment is selected and yields an empty
// result.
// cfg is validated before use, so out-of-range values are clamped rather than
// producing non-positive step sizes. Panels are emitted column by column
// (IndexX outer, IndexY inner).
func ComputePanels(cfg Config, fov FOV, center transform.Direction) []Panel {
	if !fov.Valid() {
		return nil
	}
	cfg = cfg.Validated()

	centerRA, centerDec := transform.ToSpherical(center.Vec)

	stepX, stepY := StepSize(cfg, fov)
	offsetsX := GridOffsets(cfg.PanelsX, stepX)
	offsetsY := GridOffsets(cfg.PanelsY, stepY)

	sinRot, cosRot := math.Sincos(cfg.RotationRadians())
	cosDec := math.Cos(centerDec)
	orientation := cfg.RotationRadians() + fov.ChipRotationRadians()

	panels := make([]Panel, 0, cfg.PanelCount())
	for i, localX := range offsetsX {
		for j, localY := range offsetsY {
			rotatedX := localX*cosRot - localY*sinRot
			rotatedY := localX*sinRot + localY*cosRot

			raOffset := 0.0
			if math.Abs(cosDec) > poleCosLimit {
				raOffset = rotatedX / cosDec
			}
			decOffset := rotatedY

			panel := Panel{
				IndexX:      i,
				IndexY:      j,
				Orientation: orientation,
			}
			if raOffset == 0 && decOffset == 0 {
				panel.Longitude = centerRA
				panel.Latitude = centerDec
				panel.Center = center
			} else {
				panel.Longitude = transform.WrapTwoPi(centerRA + transform.DegToRad(raOffset))
				panel.Latitude = centerDec + transform.DegToRad(decOffset)
				panel.Center = transform.DirectionFromSpherical(center.Frame, panel.Longitude, panel.Latitude)
			}
			panels = append(panels, panel)
		}
	}
	return panels
}
