package mosaic

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/star/mosaicplanner/internal/transform"
)

// PointsPerEdge is the number of samples taken along each sensor edge,
// shared corners included.
const PointsPerEdge = 30

// OutlineLen is the number of points ComputeOutline returns for a valid input.
const OutlineLen = 4 * (PointsPerEdge - 1)

// Point is a projected 2D position.
type Point struct {
	X, Y float64
}

// ProjectFunc maps a sky direction to a 2D point. It may be non-linear and
// may return sentinel values for directions it cannot show; ComputeOutline
// passes its output through untouched.
type ProjectFunc func(v r3.Vector) Point

// Derotation returns the rotation taking the camera frame to the sky frame of
// panel: camera forward (1,0,0) lands on the panel center, and the sensor is
// rolled by the panel orientation about that axis.
func Derotation(panel Panel) mgl64.Mat3 {
	lon, lat := transform.ToSpherical(panel.Center.Vec)
	return mgl64.Rotate3DZ(lon).
		Mul3(mgl64.Rotate3DY(-lat)).
		Mul3(mgl64.Rotate3DX(panel.Orientation))
}

// ComputeOutline returns the closed polygon approximating the sensor footprint
// of panel as seen through project.
//
// Each edge of the rectangle is sampled at a constant parameter step in the
// undistorted camera frame, walking left, top, right then bottom. The start
// corner of every edge after the first is skipped, as is the end corner of
// the bottom edge, so the polygon has no duplicate points; the renderer closes
// the loop. An invalid fov or nil project yields nil.
func ComputeOutline(panel Panel, fov FOV, project ProjectFunc) []Point {
	if !fov.Valid() || project == nil {
		return nil
	}

	r := Derotation(panel)
	tanX := math.Tan(transform.DegToRad(fov.XDeg) / 2)
	tanY := math.Tan(transform.DegToRad(fov.YDeg) / 2)

	out := make([]Point, 0, OutlineLen)
	emit := func(y, z float64) {
		out = append(out, project(transform.Rotate(r, r3.Vector{X: 1, Y: y, Z: z})))
	}

	step := 2.0 / float64(PointsPerEdge-1)
	// Left: bottom-left to top-left.
	for n := 0; n < PointsPerEdge; n++ {
		emit(tanX, tanY*(step*float64(n)-1))
	}
	// Top: toward top-right.
	for n := 1; n < PointsPerEdge; n++ {
		emit(-tanX*(step*float64(n)-1), tanY)
	}
	// Right: toward bottom-right.
	for n := 1; n < PointsPerEdge; n++ {
		emit(-tanX, tanY*(1-step*float64(n)))
	}
	// Bottom: back toward bottom-left, which the loop closes onto.
	for n := 1; n < PointsPerEdge-1; n++ {
		emit(tanX*(step*float64(n)-1), -tanY)
	}

	return out
}
