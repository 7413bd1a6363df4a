package equipment

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// fileCatalog mirrors the on-disk layout:
//
//	[[ccd]]
//	name = "ASI2600MM"
//	resolution_x = 6248
//	...
//	[[telescope]]
//	[[lens]]
//	[selection]
//	ccd = 0
//	telescope = 0
//	lens = -1
type fileCatalog struct {
	CCDs       []CCD       `toml:"ccd"`
	Telescopes []Telescope `toml:"telescope"`
	Lenses     []Lens      `toml:"lens"`
	Selection  Selection   `toml:"selection"`
}

// Load reads a catalog and its stored selection from a TOML file.
func Load(path string) (*Catalog, Selection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Selection{}, fmt.Errorf("load equipment (%s): %w", path, err)
	}
	defer f.Close()

	cat, sel, err := Decode(f)
	if err != nil {
		return nil, Selection{}, fmt.Errorf("load equipment (%s): %w", path, err)
	}
	return cat, sel, nil
}

// Decode parses a catalog from r. Missing selection keys fall back to
// DefaultSelection.
func Decode(r io.Reader) (*Catalog, Selection, error) {
	var raw fileCatalog
	meta, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, Selection{}, fmt.Errorf("parse equipment: %w", err)
	}

	sel := DefaultSelection()
	if meta.IsDefined("selection", "ccd") {
		sel.CCD = raw.Selection.CCD
	}
	if meta.IsDefined("selection", "telescope") {
		sel.Telescope = raw.Selection.Telescope
	}
	if meta.IsDefined("selection", "lens") {
		sel.Lens = raw.Selection.Lens
	}

	cat := &Catalog{
		CCDs:       raw.CCDs,
		Telescopes: raw.Telescopes,
		Lenses:     raw.Lenses,
	}
	if err := cat.Validate(); err != nil {
		return nil, Selection{}, fmt.Errorf("invalid equipment: %w", err)
	}
	return cat, sel, nil
}
