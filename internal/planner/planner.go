// Package planner owns the live mosaic state: the persisted settings, the
// equipment catalog and selection, the layout cache and the outline worker
// pool. It is the stateful layer in front of the pure mosaic package.
//
// Readers take a snapshot of the state without locking. Writers go through
// the Set* methods, which clamp their input, ignore no-op changes, drop every
// cached layout and notify subscribers.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/mosaicplanner/internal/cache"
	"github.com/star/mosaicplanner/internal/equipment"
	"github.com/star/mosaicplanner/internal/metrics"
	"github.com/star/mosaicplanner/internal/mosaic"
	"github.com/star/mosaicplanner/internal/settings"
	"github.com/star/mosaicplanner/internal/transform"
)

// changeTolerance is the smallest change to a float setting that counts.
const changeTolerance = 0.001

// ErrInvalidColor is returned by SetLineColor for anything but #rrggbb.
var ErrInvalidColor = errors.New("line color must be #rrggbb")

// Field names a planner setting in change events.
type Field string

const (
	FieldEnabled   Field = "enabled"
	FieldPanelsX   Field = "panels_x"
	FieldPanelsY   Field = "panels_y"
	FieldRotation  Field = "rotation_deg"
	FieldOverlap   Field = "overlap_percent"
	FieldLineColor Field = "line_color"
	FieldSelection Field = "selection"
	FieldCatalog   Field = "catalog"
)

// Event describes one accepted change. Value holds the new, clamped value and
// Settings the settings as of this change.
type Event struct {
	Field    Field
	Value    any
	Settings settings.Settings
}

// Config holds planner configuration loaded from environment variables.
type Config struct {
	OutlineWorkers int
	Cache          cache.Config
}

// state is an immutable snapshot. Writers replace it wholesale.
type state struct {
	settings  settings.Settings
	catalog   *equipment.Catalog
	selection equipment.Selection
}

// Planner is safe for concurrent use.
type Planner struct {
	writeMu sync.Mutex // serializes writers
	state   atomic.Pointer[state]

	// publishMu is taken before writeMu is released, so subscribers see
	// changes in commit order.
	publishMu sync.Mutex

	layouts *cache.LayoutCache
	pool    *OutlinePool
	logger  *slog.Logger

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a planner. A nil catalog is treated as empty.
func New(s settings.Settings, cat *equipment.Catalog, sel equipment.Selection, cfg Config, logger *slog.Logger) *Planner {
	if cat == nil {
		cat = &equipment.Catalog{}
	}
	p := &Planner{
		layouts: cache.NewLayoutCache(cfg.Cache, logger),
		pool:    NewOutlinePool(cfg.OutlineWorkers, logger),
		logger:  logger,
		subs:    make(map[int]func(Event)),
	}
	p.state.Store(&state{
		settings:  s.Normalized(),
		catalog:   cat.Clone(),
		selection: sel,
	})
	metrics.SetOutlineWorkers(p.pool.Workers())
	return p
}

// Settings returns the current settings.
func (p *Planner) Settings() settings.Settings {
	return p.state.Load().settings
}

// Config returns the current mosaic configuration.
func (p *Planner) Config() mosaic.Config {
	return p.state.Load().settings.Mosaic
}

// Enabled reports whether mosaic mode is on.
func (p *Planner) Enabled() bool {
	return p.state.Load().settings.Enabled
}

// Selection returns the current equipment selection.
func (p *Planner) Selection() equipment.Selection {
	return p.state.Load().selection
}

// Catalog returns a copy of the equipment catalog.
func (p *Planner) Catalog() *equipment.Catalog {
	return p.state.Load().catalog.Clone()
}

// FOV resolves the current selection. ok is false when nothing usable is
// selected.
func (p *Planner) FOV() (mosaic.FOV, bool) {
	st := p.state.Load()
	return st.catalog.Resolve(st.selection)
}

// Frame returns the frame the mosaic should be drawn in for the selected
// telescope's mount.
func (p *Planner) Frame() transform.Frame {
	st := p.state.Load()
	return st.catalog.Frame(st.selection)
}

// ViewCenter expresses target in the mount's frame as seen from site at t.
// An alt-az mount lays the grid out along azimuth and altitude.
func (p *Planner) ViewCenter(target transform.Direction, site transform.Site, t time.Time) transform.Direction {
	return transform.Convert(target, p.Frame(), site, t)
}

// CacheStats returns layout cache statistics.
func (p *Planner) CacheStats() cache.CacheStats {
	return p.layouts.Stats()
}

// Panels returns the layout around center. It is empty while mosaic mode is
// disabled or no equipment is selected. Layouts are cached until the next
// accepted change.
func (p *Planner) Panels(center transform.Direction) []mosaic.Panel {
	st := p.state.Load()
	if !st.settings.Enabled {
		return nil
	}
	fov, ok := st.catalog.Resolve(st.selection)
	if !ok {
		return nil
	}

	key := cache.Key{Config: st.settings.Mosaic, FOV: fov, Center: center}
	return p.layouts.GetOrCompute(key, func() []mosaic.Panel {
		start := time.Now()
		panels := mosaic.ComputePanels(key.Config, key.FOV, key.Center)
		metrics.ObserveLayout(time.Since(start), len(panels))
		return panels
	})
}

// Outlines generates the outline of every panel with project, using the
// field of view of the current selection. Outlines are never cached.
func (p *Planner) Outlines(ctx context.Context, panels []mosaic.Panel, project mosaic.ProjectFunc) ([][]mosaic.Point, error) {
	fov, ok := p.FOV()
	if !ok || len(panels) == 0 {
		return nil, nil
	}

	start := time.Now()
	out, err := p.pool.Generate(ctx, panels, fov, project)
	if err != nil {
		return nil, fmt.Errorf("generate outlines: %w", err)
	}
	metrics.ObserveOutlines(time.Since(start), len(out))
	return out, nil
}

// Subscribe registers fn for change events and returns a function that
// removes it. fn runs on the writer's goroutine after the change is visible,
// one change at a time and in commit order. fn must not call the setters.
func (p *Planner) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
}

// SetEnabled turns mosaic mode on or off.
func (p *Planner) SetEnabled(on bool) bool {
	return p.update(FieldEnabled, func(st *state) (any, bool) {
		if st.settings.Enabled == on {
			return nil, false
		}
		st.settings.Enabled = on
		return on, true
	})
}

// SetPanelsX sets the number of columns, clamped to [1, 20].
func (p *Planner) SetPanelsX(n int) bool {
	return p.update(FieldPanelsX, func(st *state) (any, bool) {
		n = mosaic.ClampPanels(n)
		if st.settings.Mosaic.PanelsX == n {
			return nil, false
		}
		st.settings.Mosaic.PanelsX = n
		return n, true
	})
}

// SetPanelsY sets the number of rows, clamped to [1, 20].
func (p *Planner) SetPanelsY(n int) bool {
	return p.update(FieldPanelsY, func(st *state) (any, bool) {
		n = mosaic.ClampPanels(n)
		if st.settings.Mosaic.PanelsY == n {
			return nil, false
		}
		st.settings.Mosaic.PanelsY = n
		return n, true
	})
}

// SetRotation sets the grid rotation, normalized into [0, 360).
func (p *Planner) SetRotation(deg float64) bool {
	return p.update(FieldRotation, func(st *state) (any, bool) {
		deg = mosaic.NormalizeRotation(deg)
		if math.Abs(st.settings.Mosaic.RotationDeg-deg) < changeTolerance {
			return nil, false
		}
		st.settings.Mosaic.RotationDeg = deg
		return deg, true
	})
}

// SetOverlap sets the overlap percentage, clamped to [0, 50].
func (p *Planner) SetOverlap(pct float64) bool {
	return p.update(FieldOverlap, func(st *state) (any, bool) {
		pct = mosaic.ClampOverlap(pct)
		if math.Abs(st.settings.Mosaic.OverlapPercent-pct) < changeTolerance {
			return nil, false
		}
		st.settings.Mosaic.OverlapPercent = pct
		return pct, true
	})
}

// SetLineColor sets the outline color used by renderers.
func (p *Planner) SetLineColor(c string) (bool, error) {
	if !settings.ValidColor(c) {
		return false, ErrInvalidColor
	}
	return p.update(FieldLineColor, func(st *state) (any, bool) {
		if st.settings.LineColor == c {
			return nil, false
		}
		st.settings.LineColor = c
		return c, true
	}), nil
}

// SetSelection changes the selected equipment. Indices outside the catalog
// are accepted and resolve to "nothing selected".
func (p *Planner) SetSelection(sel equipment.Selection) bool {
	return p.update(FieldSelection, func(st *state) (any, bool) {
		if st.selection == sel {
			return nil, false
		}
		st.selection = sel
		return sel, true
	})
}

// SetCatalog replaces the equipment catalog and selection together.
func (p *Planner) SetCatalog(cat *equipment.Catalog, sel equipment.Selection) error {
	if cat == nil {
		return errors.New("nil catalog")
	}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("set catalog: %w", err)
	}
	cat = cat.Clone()
	p.update(FieldCatalog, func(st *state) (any, bool) {
		st.catalog = cat
		st.selection = sel
		return sel, true
	})
	return nil
}

// update applies mutate to a copy of the current state and, if it reports a
// change, publishes the copy, drops cached layouts and notifies subscribers.
func (p *Planner) update(field Field, mutate func(st *state) (any, bool)) bool {
	p.writeMu.Lock()
	next := *p.state.Load()
	value, changed := mutate(&next)
	if !changed {
		p.writeMu.Unlock()
		return false
	}
	p.state.Store(&next)
	p.publishMu.Lock()
	p.writeMu.Unlock()
	defer p.publishMu.Unlock()

	p.layouts.Invalidate()
	metrics.IncConfigChange(string(field))
	p.logger.Info("mosaic setting changed", "field", string(field), "value", value)
	p.publish(Event{Field: field, Value: value, Settings: next.settings})
	return true
}

func (p *Planner) publish(ev Event) {
	p.subMu.Lock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
