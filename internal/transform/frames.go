// Package transform provides the celestial reference frames used by the mosaic
// planner and the pure conversions between them.
//
// Every sky direction is a unit r3.Vector tagged with the Frame it is expressed
// in. Spherical coordinates follow the usual right-handed convention: the
// longitude (RA in the equatorial frame) is measured counter-clockwise from +X
// in the XY plane and the latitude (Dec) from the XY plane toward +Z.
//
// Frames:
//   - FrameEquatorial: X toward the vernal equinox, Z toward the north celestial pole.
//   - FrameHorizontal: X toward the south point of the horizon, Y toward east, Z toward
//     the zenith. This is the alt-azimuth frame planetarium renderers use, so its
//     longitude is an azimuth counted from south through east.
package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"
)

// Frame identifies the reference frame of a direction vector.
type Frame int

const (
	// FrameEquatorial is the equinox-of-date equatorial frame (RA/Dec).
	FrameEquatorial Frame = iota
	// FrameHorizontal is the observer's alt-azimuth frame.
	FrameHorizontal
)

// String returns the lower-case frame name.
func (f Frame) String() string {
	switch f {
	case FrameEquatorial:
		return "equatorial"
	case FrameHorizontal:
		return "horizontal"
	default:
		return fmt.Sprintf("frame(%d)", int(f))
	}
}

// ParseFrame parses a frame name as produced by Frame.String.
// "equ", "altaz" and "horizon" are accepted as aliases.
func ParseFrame(s string) (Frame, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equatorial", "equ", "radec":
		return FrameEquatorial, nil
	case "horizontal", "horizon", "altaz":
		return FrameHorizontal, nil
	default:
		return FrameEquatorial, fmt.Errorf("unknown reference frame %q", s)
	}
}

// Direction is a unit vector on the celestial sphere tagged with its frame.
type Direction struct {
	Frame Frame
	Vec   r3.Vector
}

// NewDirection returns a Direction with v normalized to unit length.
func NewDirection(frame Frame, v r3.Vector) Direction {
	return Direction{Frame: frame, Vec: v.Normalize()}
}

// DirectionFromSpherical builds a Direction from longitude/latitude in radians.
func DirectionFromSpherical(frame Frame, lon, lat float64) Direction {
	return Direction{Frame: frame, Vec: FromSpherical(lon, lat)}
}

// Spherical returns the direction's longitude in [0, 2π) and latitude in [-π/2, π/2].
func (d Direction) Spherical() (lon, lat float64) {
	return ToSpherical(d.Vec)
}

// ToSpherical converts a vector to longitude in [0, 2π) and latitude in radians.
// The vector does not need to be normalized. The zero vector maps to (0, 0).
func ToSpherical(v r3.Vector) (lon, lat float64) {
	if v.X == 0 && v.Y == 0 && v.Z == 0 {
		return 0, 0
	}
	lat = math.Atan2(v.Z, math.Hypot(v.X, v.Y))
	lon = WrapTwoPi(math.Atan2(v.Y, v.X))
	return lon, lat
}

// FromSpherical converts longitude/latitude in radians to a unit vector.
func FromSpherical(lon, lat float64) r3.Vector {
	cosLat := math.Cos(lat)
	return r3.Vector{
		X: cosLat * math.Cos(lon),
		Y: cosLat * math.Sin(lon),
		Z: math.Sin(lat),
	}
}

// WrapTwoPi maps an angle in radians onto [0, 2π).
func WrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	// math.Mod of a tiny negative value can round up to exactly 2π.
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180.0 / math.Pi
}
