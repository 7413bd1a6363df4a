// Package equipment holds the optical equipment catalog and resolves the
// active CCD, telescope and lens into the field of view used for mosaic
// layout.
//
// The catalog owns every record by value and selections refer to records by
// index only, so a Catalog can be swapped atomically without leaving dangling
// references behind.
package equipment

import "math"

// CCD describes an imaging sensor.
type CCD struct {
	Name string `toml:"name" json:"name"`

	// Physical chip size in millimetres. When zero the size is derived from
	// the resolution and pixel size.
	ChipWidthMM  float64 `toml:"chip_width_mm" json:"chip_width_mm"`
	ChipHeightMM float64 `toml:"chip_height_mm" json:"chip_height_mm"`

	ResolutionX   int     `toml:"resolution_x" json:"resolution_x"`
	ResolutionY   int     `toml:"resolution_y" json:"resolution_y"`
	PixelWidthUM  float64 `toml:"pixel_width_um" json:"pixel_width_um"`
	PixelHeightUM float64 `toml:"pixel_height_um" json:"pixel_height_um"`

	// RotationDeg is the rotation of the chip relative to the mount axes.
	RotationDeg float64 `toml:"rotation_deg" json:"rotation_deg"`

	BinningX int `toml:"binning_x" json:"binning_x"`
	BinningY int `toml:"binning_y" json:"binning_y"`
}

// ChipSize returns the chip extents in millimetres.
func (c CCD) ChipSize() (w, h float64) {
	w, h = c.ChipWidthMM, c.ChipHeightMM
	if w <= 0 {
		w = float64(c.ResolutionX) * c.PixelWidthUM / 1000
	}
	if h <= 0 {
		h = float64(c.ResolutionY) * c.PixelHeightUM / 1000
	}
	return w, h
}

// Binning returns the binning factors, treating unset values as 1.
func (c CCD) Binning() (x, y int) {
	x, y = c.BinningX, c.BinningY
	if x < 1 {
		x = 1
	}
	if y < 1 {
		y = 1
	}
	return x, y
}

// Telescope describes an optical tube on its mount.
type Telescope struct {
	Name          string  `toml:"name" json:"name"`
	FocalLengthMM float64 `toml:"focal_length_mm" json:"focal_length_mm"`
	DiameterMM    float64 `toml:"diameter_mm" json:"diameter_mm"`

	// Equatorial is true for equatorially mounted telescopes. Their mosaic is
	// drawn in the equatorial frame; alt-az mounts use the horizontal frame.
	Equatorial bool `toml:"equatorial" json:"equatorial"`
}

// FocalRatio returns focal length over aperture, or 0 if the diameter is unset.
func (t Telescope) FocalRatio() float64 {
	if t.DiameterMM <= 0 {
		return 0
	}
	return t.FocalLengthMM / t.DiameterMM
}

// Lens is a Barlow or focal reducer placed in front of the sensor.
type Lens struct {
	Name       string  `toml:"name" json:"name"`
	Multiplier float64 `toml:"multiplier" json:"multiplier"`
}

// fieldAngleDeg returns the full angle in degrees subtended by size mm at
// the effective focal length.
func fieldAngleDeg(size, focal float64) float64 {
	return 2 * math.Atan(size/(2*focal)) * 180 / math.Pi
}

// pixelScaleArcsec returns the sky angle covered by one (binned) pixel.
func pixelScaleArcsec(pixelUM float64, binning int, focal float64) float64 {
	return 206.264806 * pixelUM * float64(binning) / focal
}
