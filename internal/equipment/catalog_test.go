package equipment

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/star/mosaicplanner/internal/transform"
)

func testCatalog() *Catalog {
	return &Catalog{
		CCDs: []CCD{
			{Name: "square", ChipWidthMM: 2 * 1000 * math.Tan(transform.DegToRad(0.5)), ChipHeightMM: 2 * 1000 * math.Tan(transform.DegToRad(0.5)), RotationDeg: 15},
			{Name: "pixels", ResolutionX: 6000, ResolutionY: 4000, PixelWidthUM: 3.76, PixelHeightUM: 3.76, BinningX: 2, BinningY: 2},
		},
		Telescopes: []Telescope{
			{Name: "refractor", FocalLengthMM: 1000, DiameterMM: 125, Equatorial: true},
			{Name: "dob", FocalLengthMM: 1200, DiameterMM: 250},
		},
		Lenses: []Lens{
			{Name: "barlow", Multiplier: 2},
			{Name: "reducer", Multiplier: 0.5},
		},
	}
}

func TestChipSizeDerived(t *testing.T) {
	ccd := CCD{ResolutionX: 6000, ResolutionY: 4000, PixelWidthUM: 3.76, PixelHeightUM: 3.76}
	w, h := ccd.ChipSize()
	if math.Abs(w-22.56) > 1e-9 || math.Abs(h-15.04) > 1e-9 {
		t.Errorf("ChipSize() = (%v, %v), want (22.56, 15.04)", w, h)
	}

	ccd.ChipWidthMM = 23.5
	if w, _ := ccd.ChipSize(); w != 23.5 {
		t.Errorf("explicit chip width ignored: %v", w)
	}
}

func TestResolve(t *testing.T) {
	cat := testCatalog()

	tests := []struct {
		name         string
		sel          Selection
		wantOK       bool
		wantX, wantY float64
	}{
		{"no lens", Selection{CCD: 0, Telescope: 0, Lens: NoLens}, true, 1, 1},
		{"barlow halves field", Selection{CCD: 0, Telescope: 0, Lens: 0}, true, 0.5, 0.5},
		{"reducer doubles field", Selection{CCD: 0, Telescope: 0, Lens: 1}, true, 2, 2},
		{"out of range lens", Selection{CCD: 0, Telescope: 0, Lens: 9}, true, 1, 1},
		{"missing ccd", Selection{CCD: 5, Telescope: 0, Lens: NoLens}, false, 0, 0},
		{"missing telescope", Selection{CCD: 0, Telescope: -1, Lens: NoLens}, false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fov, ok := cat.Resolve(tt.sel)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				if fov.Valid() {
					t.Errorf("unresolved selection returned valid FOV %+v", fov)
				}
				return
			}
			if math.Abs(fov.XDeg-tt.wantX) > 1e-3 || math.Abs(fov.YDeg-tt.wantY) > 1e-3 {
				t.Errorf("FOV = (%v, %v), want (%v, %v)", fov.XDeg, fov.YDeg, tt.wantX, tt.wantY)
			}
			if fov.ChipRotationDeg != 15 {
				t.Errorf("chip rotation = %v, want 15", fov.ChipRotationDeg)
			}
		})
	}
}

func TestResolveExactNoLens(t *testing.T) {
	fov, ok := testCatalog().Resolve(DefaultSelection())
	if !ok {
		t.Fatal("default selection did not resolve")
	}
	if math.Abs(fov.XDeg-1) > 1e-12 {
		t.Errorf("XDeg = %v, want 1", fov.XDeg)
	}
}

func TestLookupNoSelection(t *testing.T) {
	_, err := (&Catalog{}).Lookup(DefaultSelection())
	if !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
}

func TestPixelScale(t *testing.T) {
	eq, err := testCatalog().Lookup(Selection{CCD: 1, Telescope: 0, Lens: NoLens})
	if err != nil {
		t.Fatal(err)
	}
	x, y := eq.PixelScale()
	// 3.76 µm binned 2x2 at 1000 mm.
	want := 206.264806 * 3.76 * 2 / 1000
	if math.Abs(x-want) > 1e-9 || math.Abs(y-want) > 1e-9 {
		t.Errorf("PixelScale() = (%v, %v), want %v", x, y, want)
	}
}

func TestFrameFollowsMount(t *testing.T) {
	cat := testCatalog()
	if got := cat.Frame(Selection{Telescope: 0}); got != transform.FrameEquatorial {
		t.Errorf("equatorial mount frame = %v", got)
	}
	if got := cat.Frame(Selection{Telescope: 1}); got != transform.FrameHorizontal {
		t.Errorf("alt-az mount frame = %v", got)
	}
	if got := cat.Frame(Selection{Telescope: 7}); got != transform.FrameHorizontal {
		t.Errorf("missing telescope frame = %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cat     Catalog
		wantErr string
	}{
		{"ok", *testCatalog(), ""},
		{"unnamed ccd", Catalog{CCDs: []CCD{{ChipWidthMM: 1, ChipHeightMM: 1}}}, "name is required"},
		{"no chip size", Catalog{CCDs: []CCD{{Name: "x"}}}, "chip size unknown"},
		{"zero focal", Catalog{Telescopes: []Telescope{{Name: "t"}}}, "focal length"},
		{"bad lens", Catalog{Lenses: []Lens{{Name: "l", Multiplier: -2}}}, "multiplier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cat.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cat := testCatalog()
	cp := cat.Clone()
	cp.Telescopes[0].FocalLengthMM = 1
	if cat.Telescopes[0].FocalLengthMM != 1000 {
		t.Error("Clone shares telescope storage")
	}
}
