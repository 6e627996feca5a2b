// Package terrain fills zone grids with procedural terrain and turns them into meshes.
package terrain

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// Generator writes density and material for one world position. Positions
// are in world space so neighbouring zones line up.
type Generator interface {
	Sample(p mgl32.Vec3) (density float32, material uint8)
}

// Populate fills g from gen and builds its substance cache.
func Populate(g *voxel.Grid, gen Generator) {
	g.Fill(func(x, y, z int) (float32, uint8) {
		return gen.Sample(g.WorldPosition(x, y, z))
	})
}

// surface maps a signed distance (positive inside) to a density centered on
// the 0.5 iso level, reaching solid or empty over falloff world units.
func surface(dist, falloff float32) float32 {
	if falloff <= 0 {
		falloff = 1
	}
	return mgl32.Clamp(0.5+dist/(2*falloff), 0, 1)
}

// Sphere is a solid ball.
type Sphere struct {
	Center   mgl32.Vec3
	Radius   float32
	Falloff  float32
	Material uint8
}

// Sample implements Generator.
func (s Sphere) Sample(p mgl32.Vec3) (float32, uint8) {
	return surface(s.Radius-p.Sub(s.Center).Len(), s.Falloff), s.Material
}

// Plane is solid below Height on the Z axis.
type Plane struct {
	Height   float32
	Falloff  float32
	Material uint8
}

// Sample implements Generator.
func (pl Plane) Sample(p mgl32.Vec3) (float32, uint8) {
	return surface(pl.Height-p.Z(), pl.Falloff), pl.Material
}

// Heightmap is a regular lattice of surface heights over the XY plane.
type Heightmap struct {
	Heights  [][]float32 // [x][y]
	CellSize float32
	// Origin is the world XY position of Heights[0][0].
	Origin   mgl32.Vec2
	Falloff  float32
	Material uint8
}

// HeightAt returns the bilinearly interpolated height at world (x, y),
// clamped to the edge of the lattice.
func (h *Heightmap) HeightAt(x, y float32) float32 {
	w := len(h.Heights)
	if w == 0 || len(h.Heights[0]) == 0 {
		return 0
	}
	d := len(h.Heights[0])

	fx := mgl32.Clamp((x-h.Origin.X())/h.CellSize, 0, float32(w-1))
	fy := mgl32.Clamp((y-h.Origin.Y())/h.CellSize, 0, float32(d-1))
	cx, cy := int(fx), int(fy)
	if cx >= w-1 {
		cx = max(w-2, 0)
	}
	if cy >= d-1 {
		cy = max(d-2, 0)
	}
	tx, ty := fx-float32(cx), fy-float32(cy)

	at := func(i, j int) float32 {
		return h.Heights[min(i, w-1)][min(j, d-1)]
	}
	south := at(cx, cy)*(1-tx) + at(cx+1, cy)*tx
	north := at(cx, cy+1)*(1-tx) + at(cx+1, cy+1)*tx
	return south*(1-ty) + north*ty
}

// Sample implements Generator.
func (h *Heightmap) Sample(p mgl32.Vec3) (float32, uint8) {
	return surface(h.HeightAt(p.X(), p.Y())-p.Z(), h.Falloff), h.Material
}

// Noise is fractal value noise biased by altitude, which gives rolling ground
// with overhangs and caves near BaseHeight.
type Noise struct {
	Seed        int64
	Scale       float64 // noise frequency per world unit
	BaseHeight  float32
	Gradient    float32 // world units over which altitude overrides the noise
	Octaves     int
	Persistence float64
	Lacunarity  float64
	// Ground is used at or below BaseHeight, Rock above it.
	Ground, Rock uint8
}

// NewNoise returns a Noise with defaults scaled to a zone of the given size.
func NewNoise(seed int64, size float32) *Noise {
	return &Noise{
		Seed:        seed,
		Scale:       4 / float64(size),
		BaseHeight:  0,
		Gradient:    size / 4,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
		Ground:      1,
		Rock:        2,
	}
}

// Sample implements Generator.
func (n *Noise) Sample(p mgl32.Vec3) (float32, uint8) {
	v := fractalNoise(float64(p.X())*n.Scale, float64(p.Y())*n.Scale, float64(p.Z())*n.Scale,
		n.Seed, n.Octaves, n.Persistence, n.Lacunarity)
	signed := float32(v*2-1) + (n.BaseHeight-p.Z())/n.Gradient

	material := n.Ground
	if p.Z() > n.BaseHeight {
		material = n.Rock
	}
	return mgl32.Clamp(0.5+signed/2, 0, 1), material
}

// Generator kinds accepted by NewGenerator.
const (
	KindSphere = "sphere"
	KindPlane  = "plane"
	KindNoise  = "noise"
)

// NewGenerator builds a generator by kind for zones of the given size.
func NewGenerator(kind string, seed int64, size float32, material uint8) (Generator, error) {
	switch kind {
	case KindSphere:
		return Sphere{Radius: size * 0.4, Falloff: size / 64, Material: material}, nil
	case KindPlane:
		return Plane{Falloff: size / 64, Material: material}, nil
	case KindNoise:
		n := NewNoise(seed, size)
		n.Ground = material
		return n, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", kind)
	}
}
