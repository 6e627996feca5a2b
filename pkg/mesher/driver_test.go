package mesher

import (
	"testing"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

func TestSelectStrategy(t *testing.T) {
	empty := voxel.New(9, 8)
	cached := sphereGrid(9, 3)

	tests := []struct {
		name        string
		grid        *voxel.Grid
		generateLOD bool
		want        Strategy
	}{
		{"no cache", empty, false, StrategyGridNoLOD},
		{"no cache with LOD", empty, true, StrategyGridLOD},
		{"cache", cached, false, StrategyCacheNoLOD},
		{"cache with LOD", cached, true, StrategyCacheLOD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.GenerateLOD = tt.generateLOD
			if got := SelectStrategy(tt.grid, p); got != tt.want {
				t.Errorf("SelectStrategy() = %v, want %v", got, tt.want)
			}
			if md := Generate(tt.grid, p); md.Strategy != tt.want {
				t.Errorf("Generate().Strategy = %v, want %v", md.Strategy, tt.want)
			}
		})
	}
}

func TestSelectStrategyChecksRequestedLOD(t *testing.T) {
	// only LOD 0 is cached
	g := sphereGrid(17, 5)
	g.ClearCache()
	for i := 0; i < 17*17*17; i++ {
		g.CacheCellLOD0(g.Coords(i))
	}

	p := DefaultParams()
	if got := SelectStrategy(g, p); got != StrategyCacheNoLOD {
		t.Errorf("LOD 0: SelectStrategy() = %v, want %v", got, StrategyCacheNoLOD)
	}

	p.LOD = 1
	if got := SelectStrategy(g, p); got != StrategyGridNoLOD {
		t.Errorf("LOD 1: SelectStrategy() = %v, want %v", got, StrategyGridNoLOD)
	}

	md := Generate(g, p)
	brute := PolygonizeGridNoLOD(g, p)
	got, want := md.Sections[0].Main.TriangleCount(), brute.Sections[0].Main.TriangleCount()
	if want == 0 {
		t.Fatal("expected a surface at LOD 1")
	}
	if got != want {
		t.Errorf("LOD 1 extraction produced %d triangles, brute force %d", got, want)
	}

	// any cached LOD is enough for the multi-LOD pass
	p.GenerateLOD = true
	if got := SelectStrategy(g, p); got != StrategyCacheLOD {
		t.Errorf("GenerateLOD: SelectStrategy() = %v, want %v", got, StrategyCacheLOD)
	}
}

func TestGridLODSkipsStridesPastLattice(t *testing.T) {
	// 9³ samples: strides up to 8 fit, LODs 4..6 reach past the lattice
	g := voxel.New(9, 8, voxel.WithBaseFillMaterial(DefaultBaseMaterial))
	g.SetDensity(0, 0, 0, 1)

	p := DefaultParams()
	p.GenerateLOD = true
	md := PolygonizeGridLOD(g, p)
	if len(md.Sections) != voxel.DefaultLODCount {
		t.Fatalf("expected %d sections, got %d", voxel.DefaultLODCount, len(md.Sections))
	}

	for lod := range md.Sections {
		s := &md.Sections[lod]
		if lod <= 3 {
			if s.Main.IsEmpty() {
				t.Errorf("LOD %d: expected the corner cell to be meshed", lod)
			}
			continue
		}
		if !s.Main.IsEmpty() {
			t.Errorf("LOD %d: stride %d exceeds the lattice but produced %d triangles", lod, 1<<lod, s.Main.TriangleCount())
		}
		for f := range s.Transitions {
			if !s.Transitions[f].IsEmpty() {
				t.Errorf("LOD %d: unexpected %s seam", lod, Face(f))
			}
		}
	}
}

func TestStrategyString(t *testing.T) {
	tests := map[Strategy]string{
		StrategyGridNoLOD:  "grid",
		StrategyCacheNoLOD: "cache",
		StrategyGridLOD:    "grid_lod",
		StrategyCacheLOD:   "cache_lod",
		Strategy(9):        "Strategy(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestCacheMatchesBruteForce(t *testing.T) {
	g := sphereGrid(17, 5)

	for _, lod := range []int{0, 1, 2} {
		p := DefaultParams()
		p.LOD = lod

		grid := PolygonizeGridNoLOD(g, p).Sections[0].Main
		cache := PolygonizeCacheNoLOD(g, p).Sections[0].Main

		if grid.IsEmpty() {
			t.Fatalf("lod %d: empty surface", lod)
		}
		if grid.TriangleCount() != cache.TriangleCount() {
			t.Errorf("lod %d: grid %d triangles, cache %d", lod, grid.TriangleCount(), cache.TriangleCount())
		}
		if len(grid.Vertices) != len(cache.Vertices) {
			t.Errorf("lod %d: grid %d vertices, cache %d", lod, len(grid.Vertices), len(cache.Vertices))
		}
		if grid.Bounds != cache.Bounds {
			t.Errorf("lod %d: grid bounds %+v, cache %+v", lod, grid.Bounds, cache.Bounds)
		}
	}
}

func TestMultiLODSections(t *testing.T) {
	g := sphereGrid(17, 5)
	p := DefaultParams()
	p.GenerateLOD = true

	gridLOD := PolygonizeGridLOD(g, p)
	cacheLOD := PolygonizeCacheLOD(g, p)

	if len(gridLOD.Sections) != g.LODCount() {
		t.Fatalf("expected %d sections, got %d", g.LODCount(), len(gridLOD.Sections))
	}
	if gridLOD.Collision != &gridLOD.Sections[0].Main {
		t.Error("collision surface must be the LOD 0 main section")
	}

	for lod := 0; lod < 3; lod++ {
		single := DefaultParams()
		single.LOD = lod
		want := PolygonizeGridNoLOD(g, single).Sections[0].Main.TriangleCount()

		if got := gridLOD.Sections[lod].Main.TriangleCount(); got != want {
			t.Errorf("grid lod %d: %d triangles, want %d", lod, got, want)
		}
		if got := cacheLOD.Sections[lod].Main.TriangleCount(); got != want {
			t.Errorf("cache lod %d: %d triangles, want %d", lod, got, want)
		}
	}

	// the sphere never touches the chunk faces
	for lod := range gridLOD.Sections {
		if _, transition := gridLOD.Sections[lod].TriangleCount(); transition != 0 {
			t.Errorf("lod %d: %d unexpected seam triangles", lod, transition)
		}
	}
}

func TestStaleCacheUntilRebuild(t *testing.T) {
	g := sphereGrid(9, 3)
	p := DefaultParams()

	// clearing every voxel leaves the cached cells in place
	g.Fill(func(x, y, z int) (float32, uint8) { return 0, DefaultBaseMaterial })
	md := PolygonizeCacheNoLOD(g, p)
	if !md.Sections[0].Main.IsEmpty() {
		t.Errorf("stale cache cells must not produce triangles, got %d", md.Sections[0].Main.TriangleCount())
	}

	g.RebuildCache()
	if got := SelectStrategy(g, p); got != StrategyGridNoLOD {
		t.Errorf("after rebuild SelectStrategy() = %v, want %v", got, StrategyGridNoLOD)
	}
}

func TestEmptyGridProducesNothing(t *testing.T) {
	for _, state := range []voxel.FillState{voxel.FillZero, voxel.FillAll} {
		g := voxel.New(9, 8)
		g.CollapseDensity(state)

		p := DefaultParams()
		p.GenerateLOD = true
		md := Generate(g, p)
		for lod := range md.Sections {
			main, _ := md.Sections[lod].TriangleCount()
			if main != 0 {
				t.Errorf("%v grid, lod %d: %d triangles", state, lod, main)
			}
		}
	}
}
