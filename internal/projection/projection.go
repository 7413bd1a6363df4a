// Package projection maps sky directions onto a 2D viewport in pixels.
//
// Screen coordinates follow image conventions: X grows to the right, Y grows
// downward, and (0,0) is the top-left corner. With zero roll the frame's pole
// is up and increasing longitude points left, as on a sky chart seen from
// inside the sphere.
//
// Projectors are immutable once built, so a single value may be shared by the
// concurrent outline workers.
package projection

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/transform"
)

// Kind selects a projection.
type Kind int

const (
	KindGnomonic Kind = iota
	KindStereographic
)

func (k Kind) String() string {
	switch k {
	case KindGnomonic:
		return "gnomonic"
	case KindStereographic:
		return "stereographic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses a projection name. The empty string selects gnomonic.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "gnomonic", "tan":
		return KindGnomonic, nil
	case "stereographic", "stereo", "stg":
		return KindStereographic, nil
	default:
		return KindGnomonic, fmt.Errorf("unknown projection %q", s)
	}
}

// Behind is returned for directions the projection cannot show.
var Behind = mosaic.Point{X: math.NaN(), Y: math.NaN()}

// IsBehind reports whether p is the Behind sentinel.
func IsBehind(p mosaic.Point) bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// View describes the viewport.
type View struct {
	Center transform.Direction
	Roll   float64 // radians, counter-clockwise on screen
	Scale  float64 // pixels per radian at the center
	Width  int
	Height int
}

// Projector is a viewport projection.
type Projector struct {
	kind   Kind
	toCam  mgl64.Mat3
	scale  float64
	cx, cy float64
}

// New builds a projector for view.
func New(kind Kind, view View) Projector {
	lon, lat := view.Center.Spherical()
	toSky := mgl64.Rotate3DZ(lon).
		Mul3(mgl64.Rotate3DY(-lat)).
		Mul3(mgl64.Rotate3DX(view.Roll))
	return Projector{
		kind:  kind,
		toCam: toSky.Transpose(),
		scale: view.Scale,
		cx:    float64(view.Width) / 2,
		cy:    float64(view.Height) / 2,
	}
}

// Kind returns the projection kind.
func (p Projector) Kind() Kind { return p.kind }

// Project maps v to screen pixels. Its method value is a mosaic.ProjectFunc.
func (p Projector) Project(v r3.Vector) mosaic.Point {
	c := transform.Rotate(p.toCam, v)

	var k float64
	switch p.kind {
	case KindStereographic:
		n := c.Norm()
		if n == 0 || c.X/n <= -1+1e-9 {
			return Behind
		}
		k = 2 / (n + c.X)
	default:
		if c.X <= 0 {
			return Behind
		}
		k = 1 / c.X
	}

	return mosaic.Point{
		X: p.cx - p.scale*k*c.Y,
		Y: p.cy - p.scale*k*c.Z,
	}
}

// ScaleForFOV returns the scale that fits fovDeg across widthPx pixels.
func ScaleForFOV(kind Kind, fovDeg float64, widthPx int) float64 {
	half := transform.DegToRad(fovDeg) / 2
	switch kind {
	case KindStereographic:
		return float64(widthPx) / 2 / (2 * math.Tan(half/2))
	default:
		return float64(widthPx) / 2 / math.Tan(half)
	}
}
