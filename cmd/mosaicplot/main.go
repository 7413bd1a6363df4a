// Command mosaicplot prints the panel layout for a target and renders the
// panel outlines to a PNG.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gg"

	"github.com/star/mosaicplanner/internal/equipment"
	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/planner"
	"github.com/star/mosaicplanner/internal/projection"
	"github.com/star/mosaicplanner/internal/settings"
	"github.com/star/mosaicplanner/internal/transform"
)

func main() {
	var (
		equipmentPath = flag.String("equipment", "equipment.toml", "equipment catalog (TOML)")
		settingsPath  = flag.String("settings", "mosaicplanner.toml", "mosaic settings (TOML); missing file uses defaults")
		raDeg         = flag.Float64("ra", 83.82, "target right ascension in degrees")
		decDeg        = flag.Float64("dec", -5.39, "target declination in degrees")
		latDeg        = flag.Float64("lat", 0, "site latitude in degrees, used by alt-az mounts")
		lonDeg        = flag.Float64("lon", 0, "site longitude in degrees, east positive")
		at            = flag.String("time", "", "observation time (RFC3339); empty means now")
		fovDeg        = flag.Float64("fov", 0, "viewport width in degrees; 0 fits the mosaic")
		width         = flag.Int("width", 1200, "image width in pixels")
		height        = flag.Int("height", 900, "image height in pixels")
		kindName      = flag.String("projection", "gnomonic", "gnomonic or stereographic")
		out           = flag.String("out", "mosaic.png", "output PNG path; empty skips rendering")
	)
	grid := registerGridFlags(flag.CommandLine)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cat, sel, err := equipment.Load(*equipmentPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	s, err := settings.Load(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	s.Enabled = true

	t := time.Now().UTC()
	if *at != "" {
		if t, err = time.Parse(time.RFC3339, *at); err != nil {
			fmt.Fprintln(os.Stderr, "ERROR: -time:", err)
			os.Exit(1)
		}
	}
	site := transform.NewSite(*latDeg, *lonDeg)

	p := planner.New(s, cat, sel, planner.Config{}, logger)
	grid.apply(flag.CommandLine, p)

	eq, err := cat.Lookup(sel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	fov := eq.FOV()
	psX, psY := eq.PixelScale()
	fmt.Printf("Equipment: %s on %s (focal %.0f mm)\n", eq.CCD.Name, eq.Telescope.Name, eq.EffectiveFocalLength())
	fmt.Printf("Field: %.3f° x %.3f°, %.2f\"/px x %.2f\"/px, frame %s\n", fov.XDeg, fov.YDeg, psX, psY, p.Frame())

	cfg := p.Config()
	fmt.Printf("Grid: %d x %d, rotation %.1f°, overlap %.0f%%\n", cfg.PanelsX, cfg.PanelsY, cfg.RotationDeg, cfg.OverlapPercent)

	target := transform.DirectionFromSpherical(transform.FrameEquatorial,
		transform.DegToRad(*raDeg), transform.DegToRad(*decDeg))
	center := p.ViewCenter(target, site, t)
	if center.Frame == transform.FrameHorizontal {
		fmt.Printf("Target at Az %.2f° Alt %+.2f° (%s)\n",
			transform.RadToDeg(transform.CompassAzimuth(center.Vec)),
			transform.RadToDeg(transform.Altitude(center.Vec)), t.Format(time.RFC3339))
	}

	panels := p.Panels(center)
	for _, pn := range panels {
		ra, dec := transform.Convert(pn.Center, transform.FrameEquatorial, site, t).Spherical()
		fmt.Printf("  panel (%d,%d): RA %8.4f°  Dec %+8.4f°  PA %6.2f°\n",
			pn.IndexX, pn.IndexY,
			transform.RadToDeg(ra), transform.RadToDeg(dec),
			transform.RadToDeg(pn.Orientation))
	}

	if *out == "" {
		return
	}

	kind, err := projection.ParseKind(*kindName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	viewFOV := *fovDeg
	if viewFOV <= 0 {
		viewFOV = fitFOV(cfg, fov)
	}

	proj := projection.New(kind, projection.View{
		Center: center,
		Scale:  projection.ScaleForFOV(kind, viewFOV, *width),
		Width:  *width,
		Height: *height,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	outlines, err := p.Outlines(ctx, panels, proj.Project)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	if err := render(*out, *width, *height, s.LineColor, outlines); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s (%d outlines, %.1f° view)\n", *out, len(outlines), viewFOV)
}

// fitFOV returns a viewport width that shows the whole grid with a margin.
func fitFOV(cfg mosaic.Config, fov mosaic.FOV) float64 {
	stepX, stepY := mosaic.StepSize(cfg, fov)
	spanX := stepX*float64(cfg.PanelsX-1) + fov.XDeg
	spanY := stepY*float64(cfg.PanelsY-1) + fov.YDeg
	return min(1.5*max(spanX, spanY), 170)
}

func render(path string, width, height int, color string, outlines [][]mosaic.Point) error {
	dc := gg.NewContext(width, height)
	defer dc.Close()

	dc.ClearWithColor(gg.Black)

	// Crosshair on the target.
	cx, cy := float64(width)/2, float64(height)/2
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetLineWidth(1)
	dc.DrawLine(cx-10, cy, cx+10, cy)
	dc.DrawLine(cx, cy-10, cx, cy+10)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("draw crosshair: %w", err)
	}

	dc.SetHexColor(color)
	dc.SetLineWidth(1.5)
	for _, pts := range outlines {
		visible := true
		pen := false
		for _, pt := range pts {
			if projection.IsBehind(pt) {
				visible = false
				pen = false
				continue
			}
			if pen {
				dc.LineTo(pt.X, pt.Y)
			} else {
				dc.MoveTo(pt.X, pt.Y)
				pen = true
			}
		}
		if visible {
			dc.ClosePath()
		}
		if err := dc.Stroke(); err != nil {
			return fmt.Errorf("draw outline: %w", err)
		}
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
