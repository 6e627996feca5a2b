package voxel

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQuantizeRoundTrip(t *testing.T) {
	const tolerance = 1.0/510 + 1e-6
	for i := 0; i <= 10000; i++ {
		v := float32(i) / 10000
		got := Dequantize(Quantize(v))
		if diff := math.Abs(float64(got - v)); diff > tolerance {
			t.Fatalf("Dequantize(Quantize(%v)) = %v, diff %v exceeds %v", v, got, diff, tolerance)
		}
	}
}

func TestQuantizeClamps(t *testing.T) {
	tests := []struct {
		in   float32
		want uint8
	}{
		{-1, 0},
		{0, 0},
		{1, 255},
		{2.5, 255},
		{0.5, 128},
	}
	for _, tc := range tests {
		if got := Quantize(tc.in); got != tc.want {
			t.Errorf("Quantize(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewGridIsZero(t *testing.T) {
	g := New(8, 100)

	if g.DensityFillState() != FillZero {
		t.Errorf("expected ZERO fill state, got %s", g.DensityFillState())
	}
	if g.LODCount() != DefaultLODCount {
		t.Errorf("expected %d LODs, got %d", DefaultLODCount, g.LODCount())
	}
	if g.HasMaterialData() {
		t.Error("expected no material buffer")
	}
}

func TestUniformStateShortCircuit(t *testing.T) {
	tests := []struct {
		state FillState
		want  float32
	}{
		{FillZero, 0},
		{FillAll, 1},
	}

	for _, tc := range tests {
		t.Run(tc.state.String(), func(t *testing.T) {
			g := New(5, 10)
			g.CollapseDensity(tc.state)

			for x := 0; x < 5; x++ {
				for y := 0; y < 5; y++ {
					for z := 0; z < 5; z++ {
						if got := g.Density(x, y, z); got != tc.want {
							t.Fatalf("Density(%d,%d,%d) = %v, want %v", x, y, z, got, tc.want)
						}
					}
				}
			}
			if g.density != nil {
				t.Error("reads must not allocate the density buffer")
			}
		})
	}
}

func TestSetDensityNoOpWritesSkipAllocation(t *testing.T) {
	g := New(4, 10)
	g.SetDensity(1, 1, 1, 0)
	g.SetDensity(1, 1, 1, -3)
	if g.DensityFillState() != FillZero || g.density != nil {
		t.Fatal("writing 0 to a ZERO grid must not allocate")
	}

	g.CollapseDensity(FillAll)
	g.SetDensity(2, 2, 2, 1)
	g.SetDensity(2, 2, 2, 7)
	if g.DensityFillState() != FillAll || g.density != nil {
		t.Fatal("writing 1 to an ALL grid must not allocate")
	}
}

func TestSetDensityTransitionsToMix(t *testing.T) {
	g := New(4, 10)
	g.CollapseDensity(FillAll)
	g.SetDensity(1, 2, 3, 0.25)

	if g.DensityFillState() != FillMix {
		t.Fatalf("expected MIX, got %s", g.DensityFillState())
	}
	if len(g.density) != 4*4*4 {
		t.Fatalf("expected %d bytes, got %d", 4*4*4, len(g.density))
	}
	// untouched voxels keep the prior uniform value
	if got := g.Density(0, 0, 0); got != 1 {
		t.Errorf("expected prior fill 1, got %v", got)
	}
	if got := g.RawDensity(1, 2, 3); got != Quantize(0.25) {
		t.Errorf("expected raw %d, got %d", Quantize(0.25), got)
	}
}

func TestOutOfRangeAccess(t *testing.T) {
	g := New(4, 10, WithBaseFillMaterial(3))
	g.SetDensity(1, 1, 1, 1)

	g.SetDensity(4, 0, 0, 1)
	g.SetDensity(0, -1, 0, 1)
	g.SetMaterial(0, 0, 9, 5)
	if g.HasMaterialData() {
		t.Error("out-of-range material write must be dropped")
	}

	if got := g.Density(4, 1, 1); got != 0 {
		t.Errorf("Density past the edge = %v, want 0", got)
	}
	if got := g.Density(-1, 1, 1); got != 0 {
		t.Errorf("Density before the edge = %v, want 0", got)
	}
	if got := g.Material(1, 1, 4); got != 3 {
		t.Errorf("Material past the edge = %d, want base 3", got)
	}
}

func TestMaterialLazyAllocation(t *testing.T) {
	g := New(4, 10, WithBaseFillMaterial(2))

	if got := g.Material(1, 1, 1); got != 2 {
		t.Fatalf("expected base material 2, got %d", got)
	}

	// writing the base value still allocates
	g.SetMaterial(0, 0, 0, 2)
	if !g.HasMaterialData() {
		t.Fatal("expected material buffer after write")
	}

	g.SetMaterial(3, 3, 3, 9)
	if got := g.Material(3, 3, 3); got != 9 {
		t.Errorf("expected material 9, got %d", got)
	}
	if got := g.Material(1, 1, 1); got != 2 {
		t.Errorf("expected seeded base material 2, got %d", got)
	}

	g.CollapseMaterial(4)
	if g.HasMaterialData() {
		t.Error("expected material buffer freed")
	}
	if got := g.Material(3, 3, 3); got != 4 {
		t.Errorf("expected new base material 4, got %d", got)
	}
}

func TestSetSampleForcesAllocation(t *testing.T) {
	g := New(3, 10)
	g.SetSample(1, 1, 1, 0, 0)

	if g.DensityFillState() != FillMix {
		t.Errorf("expected MIX after SetSample, got %s", g.DensityFillState())
	}
	if !g.HasMaterialData() {
		t.Error("expected material buffer after SetSample")
	}

	g2 := New(3, 10)
	g2.SetSampleDensity(0, 0, 0, 0)
	if g2.DensityFillState() != FillMix {
		t.Error("SetSampleDensity must allocate even for zero")
	}
	if g2.HasMaterialData() {
		t.Error("SetSampleDensity must not touch materials")
	}

	g3 := New(3, 10)
	g3.SetSampleMaterial(2, 2, 2, 7)
	if g3.DensityFillState() != FillZero {
		t.Error("SetSampleMaterial must not touch densities")
	}
	if s := g3.Sample(2, 2, 2); s.Material != 7 || s.Density != 0 {
		t.Errorf("unexpected sample %+v", s)
	}
}

func TestSampleOnUniformGrid(t *testing.T) {
	g := New(3, 10, WithBaseFillMaterial(5))
	g.CollapseDensity(FillAll)

	s := g.Sample(1, 1, 1)
	if s.Density != 255 || s.Material != 5 {
		t.Errorf("expected {255 5}, got %+v", s)
	}
}

func TestCollapseDensityRefusesMix(t *testing.T) {
	g := New(3, 10)
	g.SetDensity(0, 0, 0, 0.5)

	if g.CollapseDensity(FillMix) {
		t.Error("collapse to MIX must be refused")
	}
	if g.DensityFillState() != FillMix || g.density == nil {
		t.Error("refused collapse must leave the buffer alone")
	}

	if !g.CollapseDensity(FillZero) {
		t.Error("collapse to ZERO must succeed")
	}
	if g.density != nil || g.DensityFillState() != FillZero {
		t.Error("expected buffer freed and ZERO state")
	}
}

func TestPositions(t *testing.T) {
	g := New(5, 8, WithOrigin(mgl32.Vec3{100, 200, 300}))

	if g.Step() != 2 {
		t.Fatalf("expected step 2, got %v", g.Step())
	}

	tests := []struct {
		x, y, z int
		local   mgl32.Vec3
	}{
		{0, 0, 0, mgl32.Vec3{-4, -4, -4}},
		{4, 4, 4, mgl32.Vec3{4, 4, 4}},
		{2, 0, 4, mgl32.Vec3{0, -4, 4}},
	}
	for _, tc := range tests {
		if got := g.LocalPosition(tc.x, tc.y, tc.z); got != tc.local {
			t.Errorf("LocalPosition(%d,%d,%d) = %v, want %v", tc.x, tc.y, tc.z, got, tc.local)
		}
		want := tc.local.Add(mgl32.Vec3{100, 200, 300})
		if got := g.WorldPosition(tc.x, tc.y, tc.z); got != want {
			t.Errorf("WorldPosition(%d,%d,%d) = %v, want %v", tc.x, tc.y, tc.z, got, want)
		}
	}

	lower, upper := g.Bounds()
	if lower != (mgl32.Vec3{92, 192, 292}) || upper != (mgl32.Vec3{108, 208, 308}) {
		t.Errorf("unexpected bounds %v %v", lower, upper)
	}
}

func TestLinearIndexRoundTrip(t *testing.T) {
	g := New(6, 10)
	for i := 0; i < 6*6*6; i++ {
		x, y, z := g.Coords(i)
		if got := g.LinearIndex(x, y, z); got != i {
			t.Fatalf("LinearIndex(Coords(%d)) = %d", i, got)
		}
	}
	if g.LinearIndex(1, 2, 3) != 1*36+2*6+3 {
		t.Error("expected x-major ordering with z innermost")
	}
}

func TestReplaceWithKeepsOrigin(t *testing.T) {
	g := New(3, 10, WithOrigin(mgl32.Vec3{1, 2, 3}))
	other := New(5, 20)
	other.SetDensity(1, 1, 1, 1)

	g.ReplaceWith(other)

	if g.N() != 5 || g.Size() != 20 {
		t.Errorf("expected N=5 size=20, got N=%d size=%v", g.N(), g.Size())
	}
	if g.Origin() != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("origin changed to %v", g.Origin())
	}
	if g.Density(1, 1, 1) != 1 {
		t.Error("density not carried over")
	}
}
