// Package settings persists the user-facing mosaic settings in a TOML file.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/star/mosaicplanner/internal/mosaic"
)

// DefaultLineColor is the outline color used when none is configured.
const DefaultLineColor = "#ffff00"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Settings is the persisted planner state.
type Settings struct {
	Enabled   bool
	Mosaic    mosaic.Config
	LineColor string
}

// Default returns the settings used when no file exists yet.
func Default() Settings {
	return Settings{
		Enabled:   false,
		Mosaic:    mosaic.DefaultConfig(),
		LineColor: DefaultLineColor,
	}
}

type fileSettings struct {
	Enabled        bool    `toml:"enabled"`
	PanelsX        int     `toml:"panels_x"`
	PanelsY        int     `toml:"panels_y"`
	RotationDeg    float64 `toml:"rotation_deg"`
	OverlapPercent float64 `toml:"overlap_percent"`
	LineColor      string  `toml:"line_color"`
}

// Load reads settings from path. A missing file yields Default; keys that are
// absent keep their defaults and out-of-range values are clamped.
func Load(path string) (Settings, error) {
	s := Default()

	var raw fileSettings
	meta, err := toml.DecodeFile(path, &raw)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings (%s): %w", path, err)
	}

	if meta.IsDefined("enabled") {
		s.Enabled = raw.Enabled
	}
	if meta.IsDefined("panels_x") {
		s.Mosaic.PanelsX = raw.PanelsX
	}
	if meta.IsDefined("panels_y") {
		s.Mosaic.PanelsY = raw.PanelsY
	}
	if meta.IsDefined("rotation_deg") {
		s.Mosaic.RotationDeg = raw.RotationDeg
	}
	if meta.IsDefined("overlap_percent") {
		s.Mosaic.OverlapPercent = raw.OverlapPercent
	}
	if meta.IsDefined("line_color") {
		s.LineColor = strings.TrimSpace(raw.LineColor)
	}

	return s.Normalized(), nil
}

// Normalized clamps the mosaic configuration and replaces a malformed line
// color with the default.
func (s Settings) Normalized() Settings {
	s.Mosaic = s.Mosaic.Validated()
	if !ValidColor(s.LineColor) {
		s.LineColor = DefaultLineColor
	}
	return s
}

// ValidColor reports whether c is a #rrggbb color.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// Save writes s to path. The file is replaced atomically so a crash never
// leaves a truncated settings file behind.
func Save(path string, s Settings) error {
	s = s.Normalized()
	raw := fileSettings{
		Enabled:        s.Enabled,
		PanelsX:        s.Mosaic.PanelsX,
		PanelsY:        s.Mosaic.PanelsY,
		RotationDeg:    s.Mosaic.RotationDeg,
		OverlapPercent: s.Mosaic.OverlapPercent,
		LineColor:      s.LineColor,
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(raw); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
