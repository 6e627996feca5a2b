// Package mesher extracts triangle surfaces from voxel grids with the
// Transvoxel regular and transition cell algorithm.
package mesher

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// DefaultBaseMaterial is the material treated as plain terrain when blending.
const DefaultBaseMaterial = 1

// interpolationEpsilon snaps edge vertices to an endpoint when densities are
// too close to divide by.
const interpolationEpsilon = 0.00001

// Params configures one extraction pass.
type Params struct {
	// LOD selects the sampling stride 1<<LOD.
	LOD int
	// GenerateLOD extracts every LOD with transition cells at chunk faces.
	GenerateLOD bool
	// BaseMaterial is the material blended against.
	BaseMaterial int
	// ZCut treats everything above ZCutLevel (world Z) as empty.
	ZCut      bool
	ZCutLevel float32
}

// DefaultParams returns single-LOD parameters at full resolution.
func DefaultParams() Params {
	return Params{BaseMaterial: DefaultBaseMaterial}
}

// Step returns the lattice stride of the configured LOD.
func (p Params) Step() int {
	return 1 << p.LOD
}

// point is one sampled lattice corner.
type point struct {
	x, y, z  int
	pos      mgl32.Vec3
	density  float32
	material int
}

// edgePoint is an interpolated surface vertex before it reaches a sink.
type edgePoint struct {
	pos    mgl32.Vec3
	matID  int
	weight float32
}

// meshBuilder welds vertices by exact position and writes into a Sink.
type meshBuilder struct {
	sink      Sink
	welded    map[mgl32.Vec3]uint32
	triangles int
}

func newMeshBuilder(sink Sink) *meshBuilder {
	return &meshBuilder{
		sink:   sink,
		welded: make(map[mgl32.Vec3]uint32),
	}
}

// addVertex reuses an existing vertex at the same position, averaging its
// stored normal with n as (old+n)/2. The average is not renormalized.
func (b *meshBuilder) addVertex(p edgePoint, n mgl32.Vec3) {
	if i, ok := b.welded[p.pos]; ok {
		b.sink.SetNormal(i, b.sink.Normal(i).Add(n).Mul(0.5))
		b.sink.AddIndex(i)
		return
	}

	i := b.sink.AddVertex(Vertex{
		Position:       p.pos,
		Normal:         n,
		MaterialID:     p.matID,
		MaterialWeight: p.weight,
		Color:          [4]uint8{uint8(p.weight * 255), 0, 0, 0},
	})
	b.welded[p.pos] = i
	b.sink.AddIndex(i)
}

func (b *meshBuilder) addTriangle(p1, p2, p3 edgePoint) {
	n := faceNormal(p1.pos, p2.pos, p3.pos)
	b.addVertex(p1, n)
	b.addVertex(p2, n)
	b.addVertex(p3, n)
	b.triangles++
}

// faceNormal is the outward normal of a triangle whose corners wind
// counter-clockwise around the solid side.
func faceNormal(p1, p2, p3 mgl32.Vec3) mgl32.Vec3 {
	n := p2.Sub(p1).Cross(p3.Sub(p1))
	if n.Len() == 0 {
		return mgl32.Vec3{}
	}
	return n.Normalize().Mul(-1)
}

// Extractor triangulates cells of one grid at one LOD.
type Extractor struct {
	grid   *voxel.Grid
	params Params

	main        *meshBuilder
	transitions [FaceCount]*meshBuilder
}

// NewExtractor writes into the sections of out.
func NewExtractor(g *voxel.Grid, p Params, out *MeshLodSection) *Extractor {
	var transitions [FaceCount]Sink
	for i := range out.Transitions {
		transitions[i] = &out.Transitions[i]
	}
	return NewExtractorWithSinks(g, p, &out.Main, transitions)
}

// NewExtractorWithSinks writes the main surface into main and each seam into
// the sink of its face.
func NewExtractorWithSinks(g *voxel.Grid, p Params, main Sink, transitions [FaceCount]Sink) *Extractor {
	e := &Extractor{
		grid:   g,
		params: p,
		main:   newMeshBuilder(main),
	}
	for i, s := range transitions {
		e.transitions[i] = newMeshBuilder(s)
	}
	return e
}

// Triangles returns how many main and transition triangles were emitted.
func (e *Extractor) Triangles() (main, transition int) {
	for _, b := range e.transitions {
		transition += b.triangles
	}
	return e.main.triangles, transition
}

func (e *Extractor) density(x, y, z int) float32 {
	if e.params.ZCut {
		if e.grid.WorldPosition(x, y, z).Z() > e.params.ZCutLevel {
			return 0
		}
	}
	return e.grid.Density(x, y, z)
}

func (e *Extractor) point(x, y, z int) point {
	return point{
		x:        x,
		y:        y,
		z:        z,
		pos:      e.grid.LocalPosition(x, y, z),
		density:  e.density(x, y, z),
		material: e.grid.Material(x, y, z),
	}
}

func interpolate(p1, p2 mgl32.Vec3, v1, v2 float32) mgl32.Vec3 {
	if abs32(voxel.Isolevel-v1) < interpolationEpsilon {
		return p1
	}
	if abs32(voxel.Isolevel-v2) < interpolationEpsilon {
		return p2
	}
	if abs32(v1-v2) < interpolationEpsilon {
		return p1
	}
	mu := (voxel.Isolevel - v1) / (v2 - v1)
	return mgl32.Vec3{
		p1.X() + mu*(p2.X()-p1.X()),
		p1.Y() + mu*(p2.Y()-p1.Y()),
		p1.Z() + mu*(p2.Z()-p1.Z()),
	}
}

// blendByDistance weights full resolution vertices by how far the surface
// point lies from the endpoint that departs from the base material.
func (e *Extractor) blendByDistance(ep *edgePoint, a, b point) {
	base := e.params.BaseMaterial
	ep.matID = base

	if a.material == base && b.material == base {
		ep.weight = 0
		return
	}
	if a.material == b.material {
		ep.matID = a.material
		ep.weight = 1
		return
	}

	edge := a.pos.Sub(b.pos).Len()
	if a.material != base {
		ep.matID = a.material
		ep.weight = a.pos.Sub(ep.pos).Len() / edge
		return
	}
	ep.matID = b.material
	ep.weight = b.pos.Sub(ep.pos).Len() / edge
}

// blendByNearestSample picks the material of the lattice point nearest to the
// interpolated lattice coordinate; coarse LODs blend all or nothing.
func (e *Extractor) blendByNearestSample(ep *edgePoint, a, b point) {
	mu := (voxel.Isolevel - a.density) / (b.density - a.density)
	x := roundLattice(a.x, b.x, mu)
	y := roundLattice(a.y, b.y, mu)
	z := roundLattice(a.z, b.z, mu)

	ep.matID = e.grid.Material(x, y, z)
	if ep.matID == e.params.BaseMaterial {
		ep.weight = 0
	} else {
		ep.weight = 1
	}
}

func roundLattice(a, b int, mu float32) int {
	return int(math.Round(float64(float32(a) + mu*float32(b-a))))
}

func (e *Extractor) edgeVertex(a, b point) edgePoint {
	ep := edgePoint{pos: interpolate(a.pos, b.pos, a.density, b.density)}
	if e.params.LOD == 0 {
		e.blendByDistance(&ep, a, b)
	} else {
		e.blendByNearestSample(&ep, a, b)
	}
	return ep
}

func (e *Extractor) extractRegularCell(d *[8]point) {
	var caseCode int
	for i := range d {
		if d[i].density < voxel.Isolevel {
			caseCode |= 1 << i
		}
	}
	if caseCode == 0 {
		return
	}

	data := regularCellData[regularCellClass[caseCode]]
	edges := regularVertexData[caseCode]
	vertices := make([]edgePoint, data.vertexCount)
	for i := range vertices {
		code := edges[i]
		vertices[i] = e.edgeVertex(d[(code>>4)&0x0F], d[code&0x0F])
	}

	for i := 0; i < len(data.indices); i += 3 {
		e.main.addTriangle(
			vertices[data.indices[i]],
			vertices[data.indices[i+1]],
			vertices[data.indices[i+2]],
		)
	}
}

func midpoint(a, b point) (int, int, int) {
	return (b.x-a.x)/2 + a.x, (b.y-a.y)/2 + a.y, (b.z-a.z)/2 + a.z
}

// extractTransitionCell stitches the face spanned by the coarse corners
// d0, d2, d6, d8 against full resolution samples fetched at the edge
// midpoints and the face center.
func (e *Extractor) extractTransitionCell(face Face, d0, d2, d6, d8 point) {
	var d [13]point

	d[0] = d0
	d[1] = e.point(midpoint(d0, d2))
	d[2] = d2

	x3, y3, z3 := midpoint(d0, d6)
	x5, y5, z5 := midpoint(d2, d8)
	d[3] = e.point(x3, y3, z3)
	d[4] = e.point((x5-x3)/2+x3, (y5-y3)/2+y3, (z5-z3)/2+z3)
	d[5] = e.point(x5, y5, z5)

	d[6] = d6
	d[7] = e.point(midpoint(d6, d8))
	d[8] = d8

	d[9], d[10], d[11], d[12] = d0, d2, d6, d8

	var caseCode uint16
	for i, bit := range transitionCaseBits {
		if d[i].density < voxel.Isolevel {
			caseCode |= bit
		}
	}
	if caseCode == 0 {
		return
	}

	class := transitionCellClass[caseCode]
	inverse := class&transitionInverse != 0
	data := transitionCellData[class&^transitionInverse]
	edges := transitionVertexData[caseCode]

	vertices := make([]edgePoint, data.vertexCount)
	for i := range vertices {
		code := edges[i]
		vertices[i] = e.edgeVertex(d[(code>>4)&0x0F], d[code&0x0F])
	}

	b := e.transitions[face]
	for i := 0; i < len(data.indices); i += 3 {
		t1 := vertices[data.indices[i]]
		t2 := vertices[data.indices[i+1]]
		t3 := vertices[data.indices[i+2]]
		if inverse {
			b.addTriangle(t3, t2, t1)
		} else {
			b.addTriangle(t1, t2, t3)
		}
	}
}

// GenerateCell triangulates the cell whose near corner is (x, y, z) and, for
// LOD > 0 with GenerateLOD set, the transition cells of any chunk face it touches.
func (e *Extractor) GenerateCell(x, y, z int) {
	s := e.params.Step()

	d := [8]point{
		e.point(x, y+s, z),
		e.point(x, y, z),
		e.point(x+s, y+s, z),
		e.point(x+s, y, z),
		e.point(x, y+s, z+s),
		e.point(x, y, z+s),
		e.point(x+s, y+s, z+s),
		e.point(x+s, y, z+s),
	}

	e.extractRegularCell(&d)

	if !e.params.GenerateLOD || e.params.LOD == 0 {
		return
	}

	last := e.grid.N() - s - 1
	if x == 0 {
		e.extractTransitionCell(FaceXMin, d[1], d[0], d[5], d[4])
	}
	if x == last {
		e.extractTransitionCell(FaceXMax, d[2], d[3], d[6], d[7])
	}
	if y == 0 {
		e.extractTransitionCell(FaceYMin, d[3], d[1], d[7], d[5])
	}
	if y == last {
		e.extractTransitionCell(FaceYMax, d[0], d[2], d[4], d[6])
	}
	if z == 0 {
		e.extractTransitionCell(FaceZMin, d[3], d[2], d[1], d[0])
	}
	if z == last {
		e.extractTransitionCell(FaceZMax, d[6], d[7], d[4], d[5])
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
