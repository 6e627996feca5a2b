package voxel

// The substance cache lists, per LOD, the linear index of the near corner of
// every cell found to straddle the isolevel. It is append-only: overwriting a
// voxel never removes entries, so after edits that may clear a surface the
// caller must RebuildCache. Duplicates are possible when a cell is probed twice.

// CacheCell probes the cell whose far corner is (x, y, z) at the given stride.
// If the eight corner densities are neither all solid nor all empty, the near
// corner (x-step, y-step, z-step) is appended to the LOD's list and CacheCell
// returns true.
func (g *Grid) CacheCell(x, y, z, lod, step int) bool {
	if g.density == nil || lod < 0 || lod >= len(g.cache) {
		return false
	}
	if x <= 0 || y <= 0 || z <= 0 {
		return false
	}
	if x < step || y < step || z < step {
		return false
	}
	if x >= g.n || y >= g.n || z >= g.n {
		return false
	}

	rx, ry, rz := x-step, y-step, z-step
	corners := [8]uint8{
		g.density[g.LinearIndex(x, ry, z)],
		g.density[g.LinearIndex(x, y, z)],
		g.density[g.LinearIndex(rx, ry, z)],
		g.density[g.LinearIndex(rx, y, z)],
		g.density[g.LinearIndex(x, ry, rz)],
		g.density[g.LinearIndex(x, y, rz)],
		g.density[g.LinearIndex(rx, ry, rz)],
		g.density[g.LinearIndex(rx, y, rz)],
	}

	solid := 0
	for _, d := range corners {
		if d > IsolevelByte {
			solid++
		}
	}
	if solid == 0 || solid == len(corners) {
		return false
	}

	g.cache[lod] = append(g.cache[lod], g.LinearIndex(rx, ry, rz))
	return true
}

// CacheCellAllLODs probes (x, y, z) as a far corner at every LOD whose stride
// divides all three coordinates.
func (g *Grid) CacheCellAllLODs(x, y, z int) {
	if g.density == nil {
		return
	}
	for lod := range g.cache {
		s := 1 << lod
		if x < s || y < s || z < s {
			continue
		}
		if x%s == 0 && y%s == 0 && z%s == 0 {
			g.CacheCell(x, y, z, lod, s)
		}
	}
}

// CacheCellLOD0 probes (x, y, z) as a far corner at full resolution only.
func (g *Grid) CacheCellLOD0(x, y, z int) {
	if g.density == nil {
		return
	}
	g.CacheCell(x, y, z, 0, 1)
}

// CacheCells returns the cached near-corner indices for lod. The slice is
// owned by the grid.
func (g *Grid) CacheCells(lod int) []int {
	if lod < 0 || lod >= len(g.cache) {
		return nil
	}
	return g.cache[lod]
}

// CacheValid reports whether any LOD has cached cells.
func (g *Grid) CacheValid() bool {
	for _, cells := range g.cache {
		if len(cells) > 0 {
			return true
		}
	}
	return false
}

// CacheValidFor reports whether lod has cached cells.
func (g *Grid) CacheValidFor(lod int) bool {
	return len(g.CacheCells(lod)) > 0
}

// ClearCache drops every cached cell.
func (g *Grid) ClearCache() {
	for lod := range g.cache {
		g.cache[lod] = nil
	}
}

// RebuildCache clears the cache and probes every lattice point again.
func (g *Grid) RebuildCache() {
	g.ClearCache()
	if g.density == nil {
		return
	}
	for x := 0; x < g.n; x++ {
		for y := 0; y < g.n; y++ {
			for z := 0; z < g.n; z++ {
				g.CacheCellAllLODs(x, y, z)
			}
		}
	}
}
