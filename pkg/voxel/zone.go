package voxel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// CubeRange is the default zone edge used by CubeIndex.
const CubeRange float32 = 200

// Zone identifies a grid by its integer position on the zone lattice.
type Zone struct {
	X, Y, Z int
}

// String returns "x:y:z".
func (z Zone) String() string {
	return fmt.Sprintf("%d:%d:%d", z.X, z.Y, z.Z)
}

// ParseZone parses the "x:y:z" form produced by String.
func ParseZone(s string) (Zone, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Zone{}, fmt.Errorf("invalid zone %q: want x:y:z", s)
	}
	var c [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Zone{}, fmt.Errorf("invalid zone %q: %w", s, err)
		}
		c[i] = v
	}
	return Zone{X: c[0], Y: c[1], Z: c[2]}, nil
}

// Origin returns the world position of the zone for a zone edge of r.
func (z Zone) Origin(r float32) mgl32.Vec3 {
	return mgl32.Vec3{float32(z.X) * r, float32(z.Y) * r, float32(z.Z) * r}
}

// SnapToGrid truncates v toward zero onto a lattice of spacing r.
func SnapToGrid(v mgl32.Vec3, r float32) mgl32.Vec3 {
	return mgl32.Vec3{
		float32(int(float32(int(v.X()/r)) * r)),
		float32(int(float32(int(v.Y()/r)) * r)),
		float32(int(float32(int(v.Z()/r)) * r)),
	}
}

// ZoneOf returns the zone containing v for a zone edge of r.
func ZoneOf(v mgl32.Vec3, r float32) Zone {
	s := SnapToGrid(v, r)
	return Zone{
		X: int(s.X() / r),
		Y: int(s.Y() / r),
		Z: int(s.Z() / r),
	}
}

// CubeIndex snaps v to the CubeRange lattice.
func CubeIndex(v mgl32.Vec3) mgl32.Vec3 {
	return SnapToGrid(v, CubeRange)
}
