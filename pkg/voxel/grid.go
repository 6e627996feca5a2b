// Package voxel stores density and material samples on a cubic lattice.
//
// A Grid keeps two optional per-voxel byte buffers. The density buffer is only
// allocated once a write disagrees with the current uniform fill, so empty air
// and solid rock zones cost a few bytes instead of N³.
package voxel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Isolevel is the normalized density separating solid from empty space.
const Isolevel float32 = 0.5

// IsolevelByte is Isolevel in quantized form. Raw densities strictly above it
// are solid.
const IsolevelByte uint8 = 127

// DefaultLODCount is the number of LOD levels a grid caches when not told otherwise.
const DefaultLODCount = 7

// FillState describes how the density buffer is represented.
type FillState uint8

// Fill states. The numeric values are the on-disk encoding.
const (
	FillZero FillState = 0 // uniform density 0, no buffer
	FillAll  FillState = 1 // uniform density 1, no buffer
	FillMix  FillState = 2 // per-voxel buffer present
)

// String returns the fill state name.
func (s FillState) String() string {
	switch s {
	case FillZero:
		return "ZERO"
	case FillAll:
		return "ALL"
	case FillMix:
		return "MIX"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Sample is a combined density and material read at one lattice point.
type Sample struct {
	Density  uint8
	Material int
}

// Grid is a cubic lattice of N×N×N density and material samples.
// A Grid is not safe for concurrent use.
type Grid struct {
	n    int
	size float32

	origin mgl32.Vec3
	lower  mgl32.Vec3
	upper  mgl32.Vec3

	density      []uint8
	densityState FillState

	material         []uint8
	baseFillMaterial uint8

	lodCount int
	cache    [][]int
}

// Option configures a Grid at construction time.
type Option func(*Grid)

// WithLODCount sets how many LOD levels the substance cache tracks.
func WithLODCount(n int) Option {
	return func(g *Grid) {
		if n > 0 {
			g.lodCount = n
		}
	}
}

// WithBaseFillMaterial sets the material reported while no material buffer exists.
func WithBaseFillMaterial(m uint8) Option {
	return func(g *Grid) {
		g.baseFillMaterial = m
	}
}

// WithOrigin places the grid center in world space.
func WithOrigin(o mgl32.Vec3) Option {
	return func(g *Grid) {
		g.SetOrigin(o)
	}
}

// New creates an empty grid (fill state ZERO) with n samples per side spanning size world units.
func New(n int, size float32, opts ...Option) *Grid {
	g := &Grid{
		n:            n,
		size:         size,
		densityState: FillZero,
		lodCount:     DefaultLODCount,
	}
	g.SetOrigin(mgl32.Vec3{})
	for _, opt := range opts {
		opt(g)
	}
	g.cache = make([][]int, g.lodCount)
	return g
}

// N returns the number of samples per side.
func (g *Grid) N() int { return g.n }

// Size returns the world extent of the grid.
func (g *Grid) Size() float32 { return g.size }

// Step returns the world distance between adjacent samples.
func (g *Grid) Step() float32 {
	if g.n < 2 {
		return 0
	}
	return g.size / float32(g.n-1)
}

// LODCount returns the number of LOD levels tracked by the substance cache.
func (g *Grid) LODCount() int { return g.lodCount }

// Origin returns the world position of the grid center.
func (g *Grid) Origin() mgl32.Vec3 { return g.origin }

// SetOrigin moves the grid and recomputes its world bounds.
func (g *Grid) SetOrigin(o mgl32.Vec3) {
	g.origin = o
	g.lower = mgl32.Vec3{o.X() - g.size, o.Y() - g.size, o.Z() - g.size}
	g.upper = mgl32.Vec3{o.X() + g.size, o.Y() + g.size, o.Z() + g.size}
}

// Bounds returns the lower and upper corners recorded by SetOrigin.
func (g *Grid) Bounds() (lower, upper mgl32.Vec3) {
	return g.lower, g.upper
}

// DensityFillState reports how the density buffer is represented.
func (g *Grid) DensityFillState() FillState { return g.densityState }

// HasMaterialData reports whether a per-voxel material buffer is allocated.
func (g *Grid) HasMaterialData() bool { return g.material != nil }

// BaseFillMaterial returns the implicit material used while no material buffer exists.
func (g *Grid) BaseFillMaterial() uint8 { return g.baseFillMaterial }

func (g *Grid) inRange(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.n && y < g.n && z < g.n
}

// LinearIndex returns the buffer offset of (x, y, z): x-major, z innermost.
func (g *Grid) LinearIndex(x, y, z int) int {
	return x*g.n*g.n + y*g.n + z
}

// Coords is the inverse of LinearIndex.
func (g *Grid) Coords(index int) (x, y, z int) {
	return index / (g.n * g.n), (index / g.n) % g.n, index % g.n
}

// Quantize clamps v to [0, 1] and rounds it to a byte.
func Quantize(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

// Dequantize maps a density byte back to [0, 1].
func Dequantize(b uint8) float32 {
	return float32(b) / 255
}

// ensureDensity allocates the density buffer, seeded with the current uniform value.
func (g *Grid) ensureDensity() {
	if g.density != nil {
		return
	}
	g.density = make([]uint8, g.n*g.n*g.n)
	if g.densityState == FillAll {
		for i := range g.density {
			g.density[i] = 255
		}
	}
	g.densityState = FillMix
}

// ensureMaterial allocates the material buffer, seeded with the base fill material.
func (g *Grid) ensureMaterial() {
	if g.material != nil {
		return
	}
	g.material = make([]uint8, g.n*g.n*g.n)
	if g.baseFillMaterial != 0 {
		for i := range g.material {
			g.material[i] = g.baseFillMaterial
		}
	}
}

// SetDensity writes a normalized density. Writes that match the uniform fill do
// not allocate; out-of-range coordinates are ignored.
func (g *Grid) SetDensity(x, y, z int, value float32) {
	if !g.inRange(x, y, z) {
		return
	}
	if g.density == nil {
		if g.densityState == FillZero && value <= 0 {
			return
		}
		if g.densityState == FillAll && value >= 1 {
			return
		}
		g.ensureDensity()
	}
	g.density[g.LinearIndex(x, y, z)] = Quantize(value)
}

// Density returns the normalized density at (x, y, z), or 0 outside the grid.
func (g *Grid) Density(x, y, z int) float32 {
	if !g.inRange(x, y, z) {
		return 0
	}
	if g.density == nil {
		if g.densityState == FillAll {
			return 1
		}
		return 0
	}
	return Dequantize(g.density[g.LinearIndex(x, y, z)])
}

// RawDensity returns the quantized density at (x, y, z), or 0 outside the grid.
func (g *Grid) RawDensity(x, y, z int) uint8 {
	if !g.inRange(x, y, z) {
		return 0
	}
	if g.density == nil {
		if g.densityState == FillAll {
			return 255
		}
		return 0
	}
	return g.density[g.LinearIndex(x, y, z)]
}

// SetMaterial writes a material id. The material buffer is allocated on the
// first write regardless of value.
func (g *Grid) SetMaterial(x, y, z int, material int) {
	if !g.inRange(x, y, z) {
		return
	}
	g.ensureMaterial()
	g.material[g.LinearIndex(x, y, z)] = uint8(material)
}

// Material returns the material id at (x, y, z). Without a material buffer, or
// outside the grid, it returns the base fill material.
func (g *Grid) Material(x, y, z int) int {
	if g.material == nil || !g.inRange(x, y, z) {
		return int(g.baseFillMaterial)
	}
	return int(g.material[g.LinearIndex(x, y, z)])
}

// Sample returns density and material at (x, y, z).
func (g *Grid) Sample(x, y, z int) Sample {
	return Sample{
		Density:  g.RawDensity(x, y, z),
		Material: g.Material(x, y, z),
	}
}

// SetSample writes raw density and material, allocating both buffers.
func (g *Grid) SetSample(x, y, z int, density, material uint8) {
	if !g.inRange(x, y, z) {
		return
	}
	g.ensureDensity()
	g.ensureMaterial()
	i := g.LinearIndex(x, y, z)
	g.density[i] = density
	g.material[i] = material
}

// SetSampleDensity writes a raw density byte, allocating the density buffer.
func (g *Grid) SetSampleDensity(x, y, z int, density uint8) {
	if !g.inRange(x, y, z) {
		return
	}
	g.ensureDensity()
	g.density[g.LinearIndex(x, y, z)] = density
}

// SetSampleMaterial writes a material byte, allocating the material buffer.
func (g *Grid) SetSampleMaterial(x, y, z int, material uint8) {
	if !g.inRange(x, y, z) {
		return
	}
	g.ensureMaterial()
	g.material[g.LinearIndex(x, y, z)] = material
}

// CollapseDensity frees the density buffer and marks the grid uniform. The
// caller asserts the buffer held only that value; nothing is checked.
// Collapsing to FillMix is refused.
func (g *Grid) CollapseDensity(state FillState) bool {
	if state != FillZero && state != FillAll {
		return false
	}
	g.densityState = state
	g.density = nil
	return true
}

// CollapseMaterial frees the material buffer and sets the uniform fallback.
func (g *Grid) CollapseMaterial(base uint8) {
	g.baseFillMaterial = base
	g.material = nil
}

// LocalPosition maps a lattice index to grid-local space, centered on the grid.
func (g *Grid) LocalPosition(x, y, z int) mgl32.Vec3 {
	step := g.Step()
	s := -g.size / 2
	return mgl32.Vec3{
		s + float32(x)*step,
		s + float32(y)*step,
		s + float32(z)*step,
	}
}

// WorldPosition maps a lattice index to world space.
func (g *Grid) WorldPosition(x, y, z int) mgl32.Vec3 {
	return g.origin.Add(g.LocalPosition(x, y, z))
}

// Fill writes every sample in x, y, z order and caches cells for every LOD as
// their far corners are written. Materials equal to the base fill material do
// not allocate a material buffer.
func (g *Grid) Fill(fn func(x, y, z int) (density float32, material uint8)) {
	for x := 0; x < g.n; x++ {
		for y := 0; y < g.n; y++ {
			for z := 0; z < g.n; z++ {
				d, m := fn(x, y, z)
				g.SetDensity(x, y, z, d)
				if g.material != nil || m != g.baseFillMaterial {
					g.SetSampleMaterial(x, y, z, m)
				}
				g.CacheCellAllLODs(x, y, z)
			}
		}
	}
}

// ReplaceWith moves the contents of other into g, keeping g's origin.
// other must not be used afterwards.
func (g *Grid) ReplaceWith(other *Grid) {
	origin := g.origin
	*g = *other
	g.SetOrigin(origin)
}
