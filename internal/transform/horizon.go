package transform

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// Site is a ground observer location used for equatorial/horizontal conversion.
type Site struct {
	LatRad float64 // geodetic latitude, north positive
	LonRad float64 // longitude, east positive
}

// NewSite creates a Site from latitude and longitude in degrees.
func NewSite(latDeg, lonDeg float64) Site {
	return Site{
		LatRad: DegToRad(latDeg),
		LonRad: DegToRad(lonDeg),
	}
}

// EquatorialToHorizontalMatrix returns the rotation taking equatorial vectors
// into the site's horizontal frame at the given local sidereal time.
//
// The equatorial vector is first rotated by -LST about the pole, which puts the
// upper meridian on +X and east on +Y (hour-angle frame). The second rotation
// tilts the pole down to the site latitude:
//
//	south  =  sinφ·x - cosφ·z
//	east   =  y
//	zenith =  cosφ·x + sinφ·z
func EquatorialToHorizontalMatrix(site Site, lst float64) mgl64.Mat3 {
	sinLat, cosLat := math.Sincos(site.LatRad)
	tilt := mgl64.Mat3FromRows(
		mgl64.Vec3{sinLat, 0, -cosLat},
		mgl64.Vec3{0, 1, 0},
		mgl64.Vec3{cosLat, 0, sinLat},
	)
	return tilt.Mul3(mgl64.Rotate3DZ(-lst))
}

// EquatorialToHorizontal converts an equatorial vector to the horizontal frame
// of site at time t.
func EquatorialToHorizontal(v r3.Vector, site Site, t time.Time) r3.Vector {
	m := EquatorialToHorizontalMatrix(site, LocalSiderealTime(t, site.LonRad))
	return Rotate(m, v)
}

// HorizontalToEquatorial converts a horizontal vector of site at time t back to
// the equatorial frame. It is the exact inverse of EquatorialToHorizontal.
func HorizontalToEquatorial(v r3.Vector, site Site, t time.Time) r3.Vector {
	m := EquatorialToHorizontalMatrix(site, LocalSiderealTime(t, site.LonRad))
	return Rotate(m.Transpose(), v)
}

// Convert expresses d in the target frame. Converting to the frame d is
// already in returns d unchanged. Unknown frames are treated as equatorial.
func Convert(d Direction, to Frame, site Site, t time.Time) Direction {
	if to != FrameHorizontal {
		to = FrameEquatorial
	}
	if d.Frame == to {
		return d
	}
	switch to {
	case FrameHorizontal:
		return Direction{Frame: FrameHorizontal, Vec: EquatorialToHorizontal(d.Vec, site, t)}
	default:
		return Direction{Frame: FrameEquatorial, Vec: HorizontalToEquatorial(d.Vec, site, t)}
	}
}

// CompassAzimuth returns the azimuth of a horizontal-frame vector in radians,
// measured from north through east, in [0, 2π).
func CompassAzimuth(v r3.Vector) float64 {
	// North is -X and east is +Y in the horizontal frame.
	return WrapTwoPi(math.Atan2(v.Y, -v.X))
}

// Altitude returns the elevation above the horizon of a horizontal-frame
// vector in radians.
func Altitude(v r3.Vector) float64 {
	_, lat := ToSpherical(v)
	return lat
}

// Rotate applies a 3x3 rotation to an r3.Vector.
func Rotate(m mgl64.Mat3, v r3.Vector) r3.Vector {
	out := m.Mul3x1(mgl64.Vec3{v.X, v.Y, v.Z})
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}
