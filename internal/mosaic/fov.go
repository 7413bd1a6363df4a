package mosaic

import (
	"math"

	"github.com/star/mosaicplanner/internal/transform"
)

// FOV is the angular footprint of the selected camera, telescope and lens.
// The zero value is invalid and stands for "no equipment selected".
type FOV struct {
	XDeg            float64 `json:"fov_x_deg"`
	YDeg            float64 `json:"fov_y_deg"`
	ChipRotationDeg float64 `json:"chip_rotation_deg"` // intrinsic sensor rotation
}

// Valid reports whether the footprint can be laid out: both extents must be
// finite, positive and below 180 degrees.
func (f FOV) Valid() bool {
	return validExtent(f.XDeg) && validExtent(f.YDeg) &&
		!math.IsNaN(f.ChipRotationDeg) && !math.IsInf(f.ChipRotationDeg, 0)
}

// ChipRotationRadians returns the sensor rotation in radians.
func (f FOV) ChipRotationRadians() float64 {
	return transform.DegToRad(f.ChipRotationDeg)
}

func validExtent(deg float64) bool {
	return deg > 0 && deg < 180 && !math.IsInf(deg, 0)
}
