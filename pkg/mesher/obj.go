package mesher

import (
	"bufio"
	"fmt"
	"io"
)

// WriteOBJ writes the sections of md as Wavefront OBJ groups, one per LOD main
// surface and, with transitions set, one per non-empty seam.
func WriteOBJ(w io.Writer, md *MeshData, transitions bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# voxelmesh strategy=%s lods=%d\n", md.Strategy, len(md.Sections))

	base := uint32(1)
	for lod := range md.Sections {
		s := &md.Sections[lod]
		base = writeOBJGroup(bw, fmt.Sprintf("lod%d_main", lod), &s.Main, base)
		if !transitions {
			continue
		}
		for f := range s.Transitions {
			if s.Transitions[f].IsEmpty() {
				continue
			}
			base = writeOBJGroup(bw, fmt.Sprintf("lod%d_seam%s", lod, Face(f)), &s.Transitions[f], base)
		}
	}
	return bw.Flush()
}

// writeOBJGroup writes one section whose first vertex gets the 1-based index
// base and returns the index after its last vertex.
func writeOBJGroup(w *bufio.Writer, name string, s *Section, base uint32) uint32 {
	fmt.Fprintf(w, "g %s\n", name)
	for _, v := range s.Vertices {
		fmt.Fprintf(w, "v %g %g %g\n", v.Position.X(), v.Position.Y(), v.Position.Z())
	}
	for _, v := range s.Vertices {
		fmt.Fprintf(w, "vn %g %g %g\n", v.Normal.X(), v.Normal.Y(), v.Normal.Z())
	}
	for i := 0; i+2 < len(s.Indices); i += 3 {
		a, b, c := s.Indices[i]+base, s.Indices[i+1]+base, s.Indices[i+2]+base
		fmt.Fprintf(w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
	}
	return base + uint32(len(s.Vertices))
}
