package equipment

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/transform"
)

// NoLens selects no lens in front of the sensor.
const NoLens = -1

// ErrNoSelection is returned when a selection does not name a CCD and a
// telescope present in the catalog.
var ErrNoSelection = errors.New("no equipment selected")

// Catalog is the set of known equipment.
type Catalog struct {
	CCDs       []CCD       `json:"ccds"`
	Telescopes []Telescope `json:"telescopes"`
	Lenses     []Lens      `json:"lenses"`
}

// Selection picks one record of each kind by index.
type Selection struct {
	CCD       int `toml:"ccd" json:"ccd"`
	Telescope int `toml:"telescope" json:"telescope"`
	Lens      int `toml:"lens" json:"lens"`
}

// DefaultSelection selects the first CCD and telescope without a lens.
func DefaultSelection() Selection {
	return Selection{CCD: 0, Telescope: 0, Lens: NoLens}
}

// Equipment is a resolved selection.
type Equipment struct {
	CCD       CCD
	Telescope Telescope
	Lens      *Lens
}

// LensMultiplier returns the lens multiplier, or 1 without a lens.
func (e Equipment) LensMultiplier() float64 {
	if e.Lens == nil || e.Lens.Multiplier <= 0 {
		return 1
	}
	return e.Lens.Multiplier
}

// EffectiveFocalLength returns the telescope focal length scaled by the lens.
func (e Equipment) EffectiveFocalLength() float64 {
	return e.Telescope.FocalLengthMM * e.LensMultiplier()
}

// FOV returns the field of view of the sensor behind the telescope and lens.
// The result is invalid when the focal length or chip size is not positive.
func (e Equipment) FOV() mosaic.FOV {
	focal := e.EffectiveFocalLength()
	w, h := e.CCD.ChipSize()
	if focal <= 0 || w <= 0 || h <= 0 {
		return mosaic.FOV{}
	}
	return mosaic.FOV{
		XDeg:            fieldAngleDeg(w, focal),
		YDeg:            fieldAngleDeg(h, focal),
		ChipRotationDeg: e.CCD.RotationDeg,
	}
}

// PixelScale returns the binned pixel scale in arcseconds per pixel, or zeros
// when the pixel size is unknown.
func (e Equipment) PixelScale() (x, y float64) {
	focal := e.EffectiveFocalLength()
	if focal <= 0 {
		return 0, 0
	}
	bx, by := e.CCD.Binning()
	return pixelScaleArcsec(e.CCD.PixelWidthUM, bx, focal),
		pixelScaleArcsec(e.CCD.PixelHeightUM, by, focal)
}

// Lookup resolves sel against the catalog. A lens index outside the catalog
// means no lens.
func (c *Catalog) Lookup(sel Selection) (Equipment, error) {
	if sel.CCD < 0 || sel.CCD >= len(c.CCDs) {
		return Equipment{}, fmt.Errorf("ccd %d: %w", sel.CCD, ErrNoSelection)
	}
	if sel.Telescope < 0 || sel.Telescope >= len(c.Telescopes) {
		return Equipment{}, fmt.Errorf("telescope %d: %w", sel.Telescope, ErrNoSelection)
	}
	eq := Equipment{
		CCD:       c.CCDs[sel.CCD],
		Telescope: c.Telescopes[sel.Telescope],
	}
	if sel.Lens >= 0 && sel.Lens < len(c.Lenses) {
		lens := c.Lenses[sel.Lens]
		eq.Lens = &lens
	}
	return eq, nil
}

// Resolve returns the field of view for sel. ok is false when nothing usable
// is selected, in which case no mosaic should be laid out.
func (c *Catalog) Resolve(sel Selection) (fov mosaic.FOV, ok bool) {
	eq, err := c.Lookup(sel)
	if err != nil {
		return mosaic.FOV{}, false
	}
	fov = eq.FOV()
	return fov, fov.Valid()
}

// Frame returns the reference frame the mosaic for sel is drawn in. Without a
// valid telescope the horizontal frame is used.
func (c *Catalog) Frame(sel Selection) transform.Frame {
	if sel.Telescope >= 0 && sel.Telescope < len(c.Telescopes) && c.Telescopes[sel.Telescope].Equatorial {
		return transform.FrameEquatorial
	}
	return transform.FrameHorizontal
}

// Validate reports the first malformed record.
func (c *Catalog) Validate() error {
	for i, ccd := range c.CCDs {
		if strings.TrimSpace(ccd.Name) == "" {
			return fmt.Errorf("ccd[%d]: name is required", i)
		}
		w, h := ccd.ChipSize()
		if !(w > 0) || !(h > 0) || math.IsInf(w, 0) || math.IsInf(h, 0) {
			return fmt.Errorf("ccd[%d] %q: chip size unknown", i, ccd.Name)
		}
	}
	for i, tel := range c.Telescopes {
		if strings.TrimSpace(tel.Name) == "" {
			return fmt.Errorf("telescope[%d]: name is required", i)
		}
		if !(tel.FocalLengthMM > 0) {
			return fmt.Errorf("telescope[%d] %q: focal length must be positive", i, tel.Name)
		}
	}
	for i, lens := range c.Lenses {
		if strings.TrimSpace(lens.Name) == "" {
			return fmt.Errorf("lens[%d]: name is required", i)
		}
		if !(lens.Multiplier > 0) {
			return fmt.Errorf("lens[%d] %q: multiplier must be positive", i, lens.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	return &Catalog{
		CCDs:       append([]CCD(nil), c.CCDs...),
		Telescopes: append([]Telescope(nil), c.Telescopes...),
		Lenses:     append([]Lens(nil), c.Lenses...),
	}
}
