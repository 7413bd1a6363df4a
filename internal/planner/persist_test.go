package planner

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/star/mosaicplanner/internal/equipment"
	"github.com/star/mosaicplanner/internal/settings"
)

func TestSaveOnChangeConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosaicplanner.toml")

	for round := 0; round < 50; round++ {
		p := newTestPlanner(t, true)
		unsubscribe := p.Subscribe(SaveOnChange(path, testLogger()))

		var wg sync.WaitGroup
		for n := 2; n <= 9; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				p.SetPanelsX(n)
				p.SetOverlap(float64(n))
			}(n)
		}
		wg.Wait()
		unsubscribe()

		got, err := settings.Load(path)
		if err != nil {
			t.Fatalf("round %d: load: %v", round, err)
		}
		if want := p.Settings(); got != want {
			t.Fatalf("round %d: file = %+v, memory = %+v", round, got, want)
		}
	}
}

func TestSaveOnChangeSkipsEquipment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosaicplanner.toml")
	p := newTestPlanner(t, true)
	p.Subscribe(SaveOnChange(path, testLogger()))

	p.SetSelection(equipment.Selection{CCD: 0, Telescope: 0, Lens: 0})
	if matches, _ := filepath.Glob(path); len(matches) != 0 {
		t.Errorf("selection change wrote %v", matches)
	}

	p.SetPanelsY(4)
	got, err := settings.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Mosaic.PanelsY != 4 {
		t.Errorf("saved panels_y = %d, want 4", got.Mosaic.PanelsY)
	}
}

func TestEventCarriesSettings(t *testing.T) {
	p := newTestPlanner(t, false)
	var got Event
	p.Subscribe(func(ev Event) { got = ev })

	p.SetRotation(45)
	if got.Field != FieldRotation {
		t.Fatalf("field = %q, want %q", got.Field, FieldRotation)
	}
	if got.Settings.Mosaic.RotationDeg != 45 {
		t.Errorf("event settings rotation = %v, want 45", got.Settings.Mosaic.RotationDeg)
	}
}
