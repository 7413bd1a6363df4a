package mosaic

import (
	"math"
	"sort"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/star/mosaicplanner/internal/transform"
)

func equatorialCenter(raDeg, decDeg float64) transform.Direction {
	return transform.DirectionFromSpherical(transform.FrameEquatorial,
		transform.DegToRad(raDeg), transform.DegToRad(decDeg))
}

func TestComputePanelsCount(t *testing.T) {
	fov := FOV{XDeg: 1.5, YDeg: 1.0}
	center := equatorialCenter(83.8, -5.4)

	for _, nx := range []int{1, 2, 3, 7, 20} {
		for _, ny := range []int{1, 4, 20} {
			cfg := Config{PanelsX: nx, PanelsY: ny, RotationDeg: 33, OverlapPercent: 15}
			panels := ComputePanels(cfg, fov, center)
			if len(panels) != nx*ny {
				t.Errorf("%dx%d: got %d panels, want %d", nx, ny, len(panels), nx*ny)
			}
		}
	}
}

func TestComputePanelsNoEquipment(t *testing.T) {
	panels := ComputePanels(DefaultConfig(), FOV{}, equatorialCenter(10, 10))
	if len(panels) != 0 {
		t.Errorf("got %d panels for invalid FOV, want 0", len(panels))
	}
}

func TestComputePanelsOrderAndIndices(t *testing.T) {
	cfg := Config{PanelsX: 3, PanelsY: 2, OverlapPercent: 10}
	panels := ComputePanels(cfg, FOV{XDeg: 1, YDeg: 1}, equatorialCenter(0, 0))

	k := 0
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			p := panels[k]
			if p.IndexX != i || p.IndexY != j {
				t.Errorf("panel %d has index (%d,%d), want (%d,%d)", k, p.IndexX, p.IndexY, i, j)
			}
			k++
		}
	}
}

func TestGridOffsetsSymmetric(t *testing.T) {
	tests := []struct {
		n    int
		step float64
		want []float64
	}{
		{1, 2, []float64{0}},
		{2, 2, []float64{-1, 1}},
		{3, 2, []float64{-2, 0, 2}},
		{4, 1, []float64{-1.5, -0.5, 0.5, 1.5}},
	}

	for _, tt := range tests {
		got := GridOffsets(tt.n, tt.step)
		if len(got) != len(tt.want) {
			t.Fatalf("GridOffsets(%d) len = %d, want %d", tt.n, len(got), len(tt.want))
		}
		var sum float64
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("GridOffsets(%d, %v)[%d] = %v, want %v", tt.n, tt.step, i, got[i], tt.want[i])
			}
			sum += got[i]
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("GridOffsets(%d) not symmetric, sum = %v", tt.n, sum)
		}
	}

	if got := GridOffsets(0, 1); got != nil {
		t.Errorf("GridOffsets(0) = %v, want nil", got)
	}
}

func TestStepSize(t *testing.T) {
	fov := FOV{XDeg: 2, YDeg: 1.5}
	tests := []struct {
		overlap      float64
		wantX, wantY float64
	}{
		{0, 2, 1.5},
		{20, 1.6, 1.2},
		{50, 1, 0.75},
	}

	for _, tt := range tests {
		x, y := StepSize(Config{OverlapPercent: tt.overlap}, fov)
		if math.Abs(x-tt.wantX) > 1e-12 || math.Abs(y-tt.wantY) > 1e-12 {
			t.Errorf("overlap %v: step = (%v, %v), want (%v, %v)", tt.overlap, x, y, tt.wantX, tt.wantY)
		}
	}
}

// TestThreeByOneScenario: three 1° panels edge to edge around RA=0, Dec=0.
func TestThreeByOneScenario(t *testing.T) {
	cfg := Config{PanelsX: 3, PanelsY: 1, RotationDeg: 0, OverlapPercent: 0}
	fov := FOV{XDeg: 1, YDeg: 1}
	panels := ComputePanels(cfg, fov, equatorialCenter(0, 0))

	want := []float64{
		2*math.Pi - transform.DegToRad(1),
		0,
		transform.DegToRad(1),
	}
	if len(panels) != 3 {
		t.Fatalf("got %d panels, want 3", len(panels))
	}
	for i, p := range panels {
		if math.Abs(p.Longitude-want[i]) > 1e-12 {
			t.Errorf("panel %d RA = %v rad, want %v", i, p.Longitude, want[i])
		}
		if math.Abs(p.Latitude) > 1e-12 {
			t.Errorf("panel %d Dec = %v rad, want 0", i, p.Latitude)
		}
		if p.Longitude < 0 || p.Longitude >= 2*math.Pi {
			t.Errorf("panel %d RA %v outside [0, 2π)", i, p.Longitude)
		}
		lon, lat := p.Center.Spherical()
		if math.Abs(lon-p.Longitude) > 1e-9 || math.Abs(lat-p.Latitude) > 1e-9 {
			t.Errorf("panel %d vector (%v, %v) disagrees with angles (%v, %v)", i, lon, lat, p.Longitude, p.Latitude)
		}
	}
}

func TestRAWraparound(t *testing.T) {
	// Center just below 2π; the eastern panel must wrap past zero.
	center := transform.DirectionFromSpherical(transform.FrameEquatorial, 2*math.Pi-0.05, 0)
	fovDeg := transform.RadToDeg(0.15)
	cfg := Config{PanelsX: 3, PanelsY: 1}
	panels := ComputePanels(cfg, FOV{XDeg: fovDeg, YDeg: 1}, center)

	east := panels[2]
	if math.Abs(east.Longitude-0.1) > 1e-9 {
		t.Errorf("wrapped RA = %v, want 0.1", east.Longitude)
	}
	for _, p := range panels {
		if p.Longitude < 0 || p.Longitude >= 2*math.Pi {
			t.Errorf("RA %v outside [0, 2π)", p.Longitude)
		}
	}
}

func TestRAOffsetScaledByDeclination(t *testing.T) {
	cfg := Config{PanelsX: 3, PanelsY: 1}
	fov := FOV{XDeg: 1, YDeg: 1}
	panels := ComputePanels(cfg, fov, equatorialCenter(180, 60))

	// At Dec 60° one degree on the sky is two degrees of RA.
	got := transform.RadToDeg(panels[2].Longitude - panels[1].Longitude)
	if math.Abs(got-2) > 1e-9 {
		t.Errorf("RA step at Dec 60 = %v deg, want 2", got)
	}
}

func TestPoleFallback(t *testing.T) {
	cfg := Config{PanelsX: 4, PanelsY: 3, RotationDeg: 37, OverlapPercent: 10}
	fov := FOV{XDeg: 2, YDeg: 1.3}

	for _, decDeg := range []float64{89.7, -89.5} {
		center := equatorialCenter(45, decDeg)
		centerRA, _ := center.Spherical()

		panels := ComputePanels(cfg, fov, center)
		for _, p := range panels {
			if p.Longitude != centerRA {
				t.Errorf("dec %v panel (%d,%d): RA = %v, want exactly %v", decDeg, p.IndexX, p.IndexY, p.Longitude, centerRA)
			}
		}
	}
}

func TestSinglePanelAtCenter(t *testing.T) {
	cfg := Config{PanelsX: 1, PanelsY: 1, RotationDeg: 30, OverlapPercent: 20}
	fov := FOV{XDeg: 1.2, YDeg: 0.9, ChipRotationDeg: 12}
	center := equatorialCenter(250.4, 36.5)

	panels := ComputePanels(cfg, fov, center)
	if len(panels) != 1 {
		t.Fatalf("got %d panels, want 1", len(panels))
	}
	p := panels[0]
	if p.Center.Vec != center.Vec {
		t.Errorf("center = %v, want %v", p.Center.Vec, center.Vec)
	}
	if p.Center.Frame != center.Frame {
		t.Errorf("frame = %v, want %v", p.Center.Frame, center.Frame)
	}
	wantOrient := transform.DegToRad(30) + transform.DegToRad(12)
	if math.Abs(p.Orientation-wantOrient) > 1e-15 {
		t.Errorf("orientation = %v, want %v", p.Orientation, wantOrient)
	}
}

func TestOrientationAdditive(t *testing.T) {
	fov := FOV{XDeg: 1, YDeg: 1, ChipRotationDeg: -20}
	cfg := Config{PanelsX: 2, PanelsY: 2, RotationDeg: 50}
	for _, p := range ComputePanels(cfg, fov, equatorialCenter(10, 20)) {
		want := transform.DegToRad(50) + transform.DegToRad(-20)
		if math.Abs(p.Orientation-want) > 1e-15 {
			t.Errorf("orientation = %v, want %v", p.Orientation, want)
		}
	}
}

func TestFramePreserved(t *testing.T) {
	center := transform.NewDirection(transform.FrameHorizontal, r3.Vector{X: 1, Y: 1, Z: 1})
	for _, p := range ComputePanels(DefaultConfig(), FOV{XDeg: 3, YDeg: 2}, center) {
		if p.Center.Frame != transform.FrameHorizontal {
			t.Fatalf("panel frame = %v, want horizontal", p.Center.Frame)
		}
		if math.Abs(p.Center.Vec.Norm()-1) > 1e-12 {
			t.Errorf("panel vector not unit: %v", p.Center.Vec.Norm())
		}
	}
}

// TestRotationPreservesSpacing: the angular distances from the grid center are
// independent of rotation near the equator.
func TestRotationPreservesSpacing(t *testing.T) {
	fov := FOV{XDeg: 1, YDeg: 1}
	center := equatorialCenter(120, 0)

	distances := func(rot float64) []float64 {
		cfg := Config{PanelsX: 3, PanelsY: 3, RotationDeg: rot}
		var out []float64
		for _, p := range ComputePanels(cfg, fov, center) {
			out = append(out, p.Center.Vec.Angle(center.Vec).Degrees())
		}
		sort.Float64s(out)
		return out
	}

	base := distances(0)
	rotated := distances(90)
	for i := range base {
		if math.Abs(base[i]-rotated[i]) > 1e-6 {
			t.Errorf("distance %d: %v at 0°, %v at 90°", i, base[i], rotated[i])
		}
	}
}

func TestComputePanelsClampsConfig(t *testing.T) {
	cfg := Config{PanelsX: 50, PanelsY: -2, OverlapPercent: 100}
	panels := ComputePanels(cfg, FOV{XDeg: 1, YDeg: 1}, equatorialCenter(0, 0))
	if len(panels) != MaxPanels*MinPanels {
		t.Fatalf("got %d panels, want %d", len(panels), MaxPanels*MinPanels)
	}
	// Overlap is clamped to 50%, so neighbours stay half a field apart.
	got := transform.RadToDeg(panels[1].Longitude - panels[0].Longitude)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("step = %v deg, want 0.5", got)
	}
}

func TestComputePanelsDeterministic(t *testing.T) {
	cfg := Config{PanelsX: 5, PanelsY: 4, RotationDeg: 17, OverlapPercent: 33}
	fov := FOV{XDeg: 0.7, YDeg: 0.45, ChipRotationDeg: 3}
	center := equatorialCenter(10.68, 41.27)

	a := ComputePanels(cfg, fov, center)
	b := ComputePanels(cfg, fov, center)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("panel %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
