package mesher

import (
	"slices"
	"strconv"
	"strings"
)

// Lookup tables for regular and transition cells, in the Transvoxel layout:
//
//	cellClass[caseCode]      -> equivalence class
//	cellData[class]          -> vertex count + triangle index triples
//	vertexData[caseCode][i]  -> edge code, (v0<<4)|v1 over the cell's sample indices
//
// The tables are derived once at init from the cell polyhedra instead of being
// typed in. Every face of a cell is walked counter-clockwise as seen from
// outside; each sign change is a contour crossing, and each crossing leaving
// solid space is joined to the crossing that entered it. On ambiguous faces
// this keeps solid corners apart, which only depends on the face itself, so
// neighbouring cells always agree on the shared contour. The joined segments
// close into loops that are fan-triangulated. Loops keep solid space on their
// left, so every triangle's (p2-p1)×(p3-p1) points into solid space.

// transitionInverse marks transition cases that reuse the class of their
// complement with the triangle winding reversed.
const transitionInverse uint16 = 0x8000

// cellData is the triangulation shared by every case of one class.
type cellData struct {
	vertexCount int
	indices     []uint8
}

func (c cellData) triangleCount() int { return len(c.indices) / 3 }

var (
	regularCellClass  [256]uint8
	regularCellData   []cellData
	regularVertexData [256][]uint16

	transitionCellClass  [512]uint16
	transitionCellData   []cellData
	transitionVertexData [512][]uint16
)

// transitionCaseBits are the case-code weights of the nine full resolution
// samples of a transition cell face.
var transitionCaseBits = [9]uint16{0x01, 0x02, 0x04, 0x80, 0x100, 0x08, 0x40, 0x20, 0x10}

// cellShape is a closed convex cell: sample positions and faces listed
// counter-clockwise around their outward normal.
type cellShape struct {
	corners [][3]int
	faces   [][]int
}

// regularShape uses the corner layout GenerateCell samples in:
// corner i sits at x=(i>>1)&1, y=1-(i&1), z=(i>>2)&1.
var regularShape = cellShape{
	corners: [][3]int{
		{0, 1, 0}, {0, 0, 0}, {1, 1, 0}, {1, 0, 0},
		{0, 1, 1}, {0, 0, 1}, {1, 1, 1}, {1, 0, 1},
	},
	faces: [][]int{
		{1, 5, 4, 0}, // x min
		{3, 2, 6, 7}, // x max
		{1, 3, 7, 5}, // y min
		{0, 4, 6, 2}, // y max
		{1, 0, 2, 3}, // z min
		{5, 7, 6, 4}, // z max
	},
}

// transitionShape places the nine full resolution samples on the w=0 face as
// a 3×3 grid (sample i at u=i%3, v=i/3) and the four coarse samples 0x9..0xC
// on the w=1 face. w points into the chunk for every boundary face.
var transitionShape = cellShape{
	corners: [][3]int{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0},
		{0, 1, 0}, {1, 1, 0}, {2, 1, 0},
		{0, 2, 0}, {1, 2, 0}, {2, 2, 0},
		{0, 0, 1}, {2, 0, 1}, {0, 2, 1}, {2, 2, 1},
	},
	faces: [][]int{
		{0, 3, 4, 1},
		{1, 4, 5, 2},
		{3, 6, 7, 4},
		{4, 7, 8, 5},
		{9, 10, 12, 11},
		{0, 1, 2, 10, 9},
		{8, 7, 6, 11, 12},
		{6, 3, 0, 9, 11},
		{2, 5, 8, 12, 10},
	},
}

func init() {
	buildRegularTables()
	buildTransitionTables()
}

// edgeCode orders the endpoints so the lower lattice position comes first.
// Cells sharing an edge then interpolate it in the same direction and produce
// bit-identical vertices.
func (s *cellShape) edgeCode(a, b int) uint16 {
	if slices.Compare(s.corners[b][:], s.corners[a][:]) < 0 {
		a, b = b, a
	}
	return uint16(a<<4 | b)
}

// contourLoops returns the closed crossing loops for the given corner signs.
func (s *cellShape) contourLoops(outside []bool) [][]uint16 {
	next := make(map[uint16]uint16)
	var order []uint16

	for _, face := range s.faces {
		var crossings []uint16
		var exits []bool
		for i, a := range face {
			b := face[(i+1)%len(face)]
			if outside[a] == outside[b] {
				continue
			}
			code := s.edgeCode(a, b)
			crossings = append(crossings, code)
			exits = append(exits, !outside[a])
			if !slices.Contains(order, code) {
				order = append(order, code)
			}
		}
		for i, code := range crossings {
			if exits[i] {
				next[code] = crossings[(i+len(crossings)-1)%len(crossings)]
			}
		}
	}

	visited := make(map[uint16]bool, len(order))
	var loops [][]uint16
	for _, start := range order {
		if visited[start] {
			continue
		}
		var loop []uint16
		for c := start; !visited[c]; c = next[c] {
			visited[c] = true
			loop = append(loop, c)
		}
		loops = append(loops, loop)
	}
	return loops
}

// fan flattens loops into a vertex list and fan-triangulates each loop.
func fan(loops [][]uint16) ([]uint16, cellData) {
	var vertices []uint16
	var indices []uint8
	for _, loop := range loops {
		base := len(vertices)
		vertices = append(vertices, loop...)
		for i := 1; i+1 < len(loop); i++ {
			indices = append(indices, uint8(base), uint8(base+i), uint8(base+i+1))
		}
	}
	return vertices, cellData{vertexCount: len(vertices), indices: indices}
}

// layoutKey identifies a triangulation layout by its loop sizes.
func layoutKey(loops [][]uint16) string {
	parts := make([]string, len(loops))
	for i, loop := range loops {
		parts[i] = strconv.Itoa(len(loop))
	}
	return strings.Join(parts, ",")
}

func buildRegularTables() {
	classes := make(map[string]uint8)
	outside := make([]bool, 8)

	for code := 0; code < 256; code++ {
		for i := range outside {
			outside[i] = code&(1<<i) != 0
		}
		loops := regularShape.contourLoops(outside)
		vertices, data := fan(loops)

		key := layoutKey(loops)
		class, ok := classes[key]
		if !ok {
			class = uint8(len(regularCellData))
			classes[key] = class
			regularCellData = append(regularCellData, data)
		}
		regularCellClass[code] = class
		regularVertexData[code] = vertices
	}
}

func buildTransitionTables() {
	classes := make(map[string]uint16)
	outside := make([]bool, 13)
	caseLoops := make([][][]uint16, 512)

	for code := 0; code < 512; code++ {
		for i, bit := range transitionCaseBits {
			outside[i] = uint16(code)&bit != 0
		}
		outside[9], outside[10], outside[11], outside[12] = outside[0], outside[2], outside[6], outside[8]

		loops := transitionShape.contourLoops(outside)
		caseLoops[code] = loops

		complement := code ^ 0x1FF
		if complement < code && sameLoopsReversed(loops, caseLoops[complement]) {
			transitionCellClass[code] = transitionCellClass[complement] | transitionInverse
			transitionVertexData[code] = transitionVertexData[complement]
			continue
		}

		vertices, data := fan(loops)
		key := layoutKey(loops)
		class, ok := classes[key]
		if !ok {
			class = uint16(len(transitionCellData))
			classes[key] = class
			transitionCellData = append(transitionCellData, data)
		}
		transitionCellClass[code] = class
		transitionVertexData[code] = vertices
	}
}

// sameLoopsReversed reports whether b holds exactly the loops of a traversed
// in the opposite direction.
func sameLoopsReversed(a, b [][]uint16) bool {
	if len(a) != len(b) {
		return false
	}
	want := make(map[string]int, len(a))
	for _, loop := range a {
		rev := slices.Clone(loop)
		slices.Reverse(rev)
		want[loopKey(rev)]++
	}
	for _, loop := range b {
		k := loopKey(loop)
		if want[k] == 0 {
			return false
		}
		want[k]--
	}
	return true
}

// loopKey renders a loop rotated to start at its smallest edge code.
func loopKey(loop []uint16) string {
	if len(loop) == 0 {
		return ""
	}
	start := 0
	for i, c := range loop {
		if c < loop[start] {
			start = i
		}
	}
	var sb strings.Builder
	for i := range loop {
		sb.WriteString(strconv.Itoa(int(loop[(start+i)%len(loop)])))
		sb.WriteByte('.')
	}
	return sb.String()
}
