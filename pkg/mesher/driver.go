package mesher

import (
	"fmt"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// Strategy is the cell visiting strategy chosen for an extraction.
type Strategy int

// Cell visiting strategies.
const (
	StrategyGridNoLOD  Strategy = iota // every cell at one stride
	StrategyCacheNoLOD                 // cached cells of one LOD
	StrategyGridLOD                    // every cell at every LOD, with transitions
	StrategyCacheLOD                   // cached cells of every LOD, with transitions
)

// String returns a short strategy name suitable for metric labels.
func (s Strategy) String() string {
	switch s {
	case StrategyGridNoLOD:
		return "grid"
	case StrategyCacheNoLOD:
		return "cache"
	case StrategyGridLOD:
		return "grid_lod"
	case StrategyCacheLOD:
		return "cache_lod"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// SelectStrategy prefers the substance cache when it holds cells for the
// requested LODs: p.LOD alone, or any LOD when GenerateLOD is set.
func SelectStrategy(g *voxel.Grid, p Params) Strategy {
	if p.GenerateLOD {
		if g.CacheValid() {
			return StrategyCacheLOD
		}
		return StrategyGridLOD
	}
	if g.CacheValidFor(p.LOD) {
		return StrategyCacheNoLOD
	}
	return StrategyGridNoLOD
}

// Generate extracts the surface of g with the strategy SelectStrategy picks.
func Generate(g *voxel.Grid, p Params) *MeshData {
	switch SelectStrategy(g, p) {
	case StrategyCacheLOD:
		return PolygonizeCacheLOD(g, p)
	case StrategyCacheNoLOD:
		return PolygonizeCacheNoLOD(g, p)
	case StrategyGridLOD:
		return PolygonizeGridLOD(g, p)
	default:
		return PolygonizeGridNoLOD(g, p)
	}
}

// PolygonizeCacheNoLOD visits the cached cells of p.LOD and writes them to section 0.
func PolygonizeCacheNoLOD(g *voxel.Grid, p Params) *MeshData {
	md := newMeshData(g.LODCount(), StrategyCacheNoLOD)
	e := NewExtractor(g, p, &md.Sections[0])
	for _, index := range g.CacheCells(p.LOD) {
		e.GenerateCell(g.Coords(index))
	}
	return md
}

// PolygonizeCacheLOD visits the cached cells of every LOD into that LOD's section.
func PolygonizeCacheLOD(g *voxel.Grid, p Params) *MeshData {
	md := newMeshData(g.LODCount(), StrategyCacheLOD)
	for lod := range md.Sections {
		lp := p
		lp.LOD = lod
		e := NewExtractor(g, lp, &md.Sections[lod])
		for _, index := range g.CacheCells(lod) {
			e.GenerateCell(g.Coords(index))
		}
	}
	return md
}

// PolygonizeGridNoLOD visits every cell at the stride of p.LOD and writes to section 0.
func PolygonizeGridNoLOD(g *voxel.Grid, p Params) *MeshData {
	md := newMeshData(g.LODCount(), StrategyGridNoLOD)
	e := NewExtractor(g, p, &md.Sections[0])

	step := p.Step()
	n := g.N()
	for x := 0; x < n-step; x += step {
		for y := 0; y < n-step; y += step {
			for z := 0; z < n-step; z += step {
				e.GenerateCell(x, y, z)
			}
		}
	}
	return md
}

// PolygonizeGridLOD walks the lattice at the stride of p.LOD and hands each
// cell to every LOD whose stride divides its coordinates.
func PolygonizeGridLOD(g *voxel.Grid, p Params) *MeshData {
	md := newMeshData(g.LODCount(), StrategyGridLOD)
	extractors := make([]*Extractor, len(md.Sections))
	for lod := range md.Sections {
		lp := p
		lp.LOD = lod
		extractors[lod] = NewExtractor(g, lp, &md.Sections[lod])
	}

	step := p.Step()
	n := g.N()
	for x := 0; x < n-step; x += step {
		for y := 0; y < n-step; y += step {
			for z := 0; z < n-step; z += step {
				for lod, e := range extractors {
					s := 1 << lod
					if x+s >= n || y+s >= n || z+s >= n {
						continue
					}
					if x%s == 0 && y%s == 0 && z%s == 0 {
						e.GenerateCell(x, y, z)
					}
				}
			}
		}
	}
	return md
}
