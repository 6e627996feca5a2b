package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// createTestGrid assembles a grid file field by field.
func createTestGrid(n int32, size float32, state uint8, densities []byte, matState, base uint8, materials []byte, marker int32) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, n)
	binary.Write(buf, binary.LittleEndian, size)
	buf.WriteByte(state)
	buf.Write(densities)
	buf.WriteByte(matState)
	buf.WriteByte(base)
	buf.Write(materials)
	binary.Write(buf, binary.LittleEndian, marker)
	return buf.Bytes()
}

// ballGrid is a 9³ grid with a solid ball of material 3 inside material 1.
func ballGrid() *voxel.Grid {
	g := voxel.New(9, 8, voxel.WithBaseFillMaterial(1))
	g.Fill(func(x, y, z int) (float32, uint8) {
		dx, dy, dz := float32(x-4), float32(y-4), float32(z-4)
		d := 0.5 + (3-float32(math.Sqrt(float64(dx*dx+dy*dy+dz*dz))))*0.3
		if d > 0.5 {
			return d, 3
		}
		return d, 1
	})
	return g
}

func requireSameGrid(t *testing.T, want, got *voxel.Grid) {
	t.Helper()
	if got.N() != want.N() || got.Size() != want.Size() {
		t.Fatalf("got N=%d size=%v, want N=%d size=%v", got.N(), got.Size(), want.N(), want.Size())
	}
	if got.DensityFillState() != want.DensityFillState() {
		t.Errorf("density state %v, want %v", got.DensityFillState(), want.DensityFillState())
	}
	if got.BaseFillMaterial() != want.BaseFillMaterial() {
		t.Errorf("base material %d, want %d", got.BaseFillMaterial(), want.BaseFillMaterial())
	}
	if got.HasMaterialData() != want.HasMaterialData() {
		t.Errorf("material data %v, want %v", got.HasMaterialData(), want.HasMaterialData())
	}
	n := want.N()
	for i := 0; i < n*n*n; i++ {
		x, y, z := want.Coords(i)
		if got.Sample(x, y, z) != want.Sample(x, y, z) {
			t.Fatalf("sample (%d,%d,%d) = %+v, want %+v", x, y, z, got.Sample(x, y, z), want.Sample(x, y, z))
		}
	}
}

func TestEncodeGrid_RoundTrip(t *testing.T) {
	g := ballGrid()

	var buf bytes.Buffer
	if err := EncodeGrid(&buf, g); err != nil {
		t.Fatalf("EncodeGrid failed: %v", err)
	}

	// header + densities + material header + materials + marker
	wantLen := 9 + 729 + 2 + 729 + 4
	if buf.Len() != wantLen {
		t.Errorf("expected %d bytes, got %d", wantLen, buf.Len())
	}

	loaded, err := ParseGrid(buf.Bytes(), DecodeOptions{})
	if err != nil {
		t.Fatalf("ParseGrid failed: %v", err)
	}
	requireSameGrid(t, g, loaded)

	for lod := 0; lod < g.LODCount(); lod++ {
		if !slices.Equal(loaded.CacheCells(lod), g.CacheCells(lod)) {
			t.Errorf("lod %d: cache %v, want %v", lod, loaded.CacheCells(lod), g.CacheCells(lod))
		}
	}
	if !loaded.CacheValid() {
		t.Error("expected cache rebuilt on load")
	}
}

func TestEncodeGrid_UniformStates(t *testing.T) {
	tests := []struct {
		name  string
		state voxel.FillState
		base  uint8
	}{
		{"zero", voxel.FillZero, 0},
		{"all", voxel.FillAll, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := voxel.New(17, 100, voxel.WithBaseFillMaterial(tt.base))
			g.CollapseDensity(tt.state)

			var buf bytes.Buffer
			if err := EncodeGrid(&buf, g); err != nil {
				t.Fatalf("EncodeGrid failed: %v", err)
			}
			want := createTestGrid(17, 100, uint8(tt.state), nil, MaterialUniform, tt.base, nil, GridEndMarker)
			if !bytes.Equal(buf.Bytes(), want) {
				t.Fatalf("encoded %x, want %x", buf.Bytes(), want)
			}

			loaded, err := ParseGrid(buf.Bytes(), DecodeOptions{})
			if err != nil {
				t.Fatalf("ParseGrid failed: %v", err)
			}
			requireSameGrid(t, g, loaded)
			if loaded.CacheValid() {
				t.Error("uniform grid must not populate the cache")
			}
		})
	}
}

func TestEncodeGridCompressed(t *testing.T) {
	g := ballGrid()

	var plain, packed bytes.Buffer
	if err := EncodeGrid(&plain, g); err != nil {
		t.Fatalf("EncodeGrid failed: %v", err)
	}
	if err := EncodeGridCompressed(&packed, g); err != nil {
		t.Fatalf("EncodeGridCompressed failed: %v", err)
	}

	if IsCompressed(plain.Bytes()) {
		t.Error("plain grid detected as compressed")
	}
	if !IsCompressed(packed.Bytes()) {
		t.Fatal("compressed grid not detected")
	}
	if packed.Len() >= plain.Len() {
		t.Errorf("compressed %d bytes, plain %d", packed.Len(), plain.Len())
	}

	loaded, err := DecodeGrid(&packed, DecodeOptions{})
	if err != nil {
		t.Fatalf("DecodeGrid failed: %v", err)
	}
	requireSameGrid(t, g, loaded)
}

func TestParseGrid_Errors(t *testing.T) {
	mix := make([]byte, 8)
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrEmptyGridData},
		{"short header", []byte{2, 0, 0, 0, 0}, ErrTruncatedGridData},
		{"zero side", createTestGrid(0, 1, 0, nil, 0, 0, nil, GridEndMarker), ErrInvalidGridHeader},
		{"huge side", createTestGrid(4096, 1, 0, nil, 0, 0, nil, GridEndMarker), ErrInvalidGridHeader},
		{"negative size", createTestGrid(2, -1, 0, nil, 0, 0, nil, GridEndMarker), ErrInvalidGridHeader},
		{"nan size", createTestGrid(2, float32(math.NaN()), 0, nil, 0, 0, nil, GridEndMarker), ErrInvalidGridHeader},
		{"density state", createTestGrid(2, 1, 7, nil, 0, 0, nil, GridEndMarker), ErrUnknownFillState},
		{"material state", createTestGrid(2, 1, 0, nil, 5, 0, nil, GridEndMarker), ErrUnknownFillState},
		{"truncated densities", createTestGrid(2, 1, 2, nil, 0, 0, nil, GridEndMarker)[:12], ErrTruncatedGridData},
		{"missing marker", createTestGrid(2, 1, 2, mix, 0, 0, nil, GridEndMarker)[:19], ErrTruncatedGridData},
		{"bad marker", createTestGrid(2, 1, 2, mix, 0, 0, nil, 12345), ErrBadEndMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGrid(tt.data, DecodeOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseGrid_Lenient(t *testing.T) {
	densities := []byte{255, 255, 255, 255, 255, 255, 255, 255}

	t.Run("truncated payload", func(t *testing.T) {
		data := createTestGrid(2, 1, 2, densities, 0, 0, nil, GridEndMarker)[:13]

		var warnings []string
		g, err := ParseGrid(data, DecodeOptions{Lenient: true, Warn: func(msg string) { warnings = append(warnings, msg) }})
		if err != nil {
			t.Fatalf("ParseGrid failed: %v", err)
		}
		if len(warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", warnings)
		}
		if g.RawDensity(0, 0, 0) != 255 || g.RawDensity(0, 0, 1) != 255 {
			t.Error("expected the samples that were present")
		}
		if g.RawDensity(1, 1, 1) != 0 {
			t.Errorf("missing sample = %d, want 0", g.RawDensity(1, 1, 1))
		}
	})

	t.Run("bad marker", func(t *testing.T) {
		data := createTestGrid(2, 1, 2, densities, 0, 6, nil, 0)

		var warnings []string
		g, err := ParseGrid(data, DecodeOptions{Lenient: true, Warn: func(msg string) { warnings = append(warnings, msg) }})
		if err != nil {
			t.Fatalf("ParseGrid failed: %v", err)
		}
		if len(warnings) != 1 {
			t.Errorf("expected 1 warning, got %v", warnings)
		}
		if g.BaseFillMaterial() != 6 {
			t.Errorf("base material %d, want 6", g.BaseFillMaterial())
		}
	})

	t.Run("header still required", func(t *testing.T) {
		_, err := ParseGrid([]byte{2, 0, 0}, DecodeOptions{Lenient: true})
		if !errors.Is(err, ErrTruncatedGridData) {
			t.Errorf("expected ErrTruncatedGridData, got %v", err)
		}
	})
}

func TestParseGrid_LODCount(t *testing.T) {
	data := createTestGrid(2, 1, 0, nil, 0, 0, nil, GridEndMarker)
	g, err := ParseGrid(data, DecodeOptions{LODCount: 3})
	if err != nil {
		t.Fatalf("ParseGrid failed: %v", err)
	}
	if g.LODCount() != 3 {
		t.Errorf("expected 3 LODs, got %d", g.LODCount())
	}
}

func TestSaveGridFile(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		path := filepath.Join(dir, "zones", "zone.grid")
		g := ballGrid()

		if err := SaveGridFile(path, g, compress); err != nil {
			t.Fatalf("SaveGridFile failed: %v", err)
		}
		// overwrite in place
		if err := SaveGridFile(path, g, compress); err != nil {
			t.Fatalf("second SaveGridFile failed: %v", err)
		}

		entries, err := os.ReadDir(filepath.Dir(path))
		if err != nil {
			t.Fatalf("ReadDir failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the grid file, found %d entries", len(entries))
		}

		loaded, err := LoadGridFile(path, DecodeOptions{})
		if err != nil {
			t.Fatalf("LoadGridFile failed: %v", err)
		}
		requireSameGrid(t, g, loaded)
	}
}

func TestLoadGridFile_Missing(t *testing.T) {
	_, err := LoadGridFile(filepath.Join(t.TempDir(), "missing.grid"), DecodeOptions{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadGridFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.grid")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGridFile(path, DecodeOptions{}); !errors.Is(err, ErrEmptyGridData) {
		t.Errorf("expected ErrEmptyGridData, got %v", err)
	}
}

func TestLoadInto(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ball.grid")
	src := ballGrid()
	if err := SaveGridFile(path, src, false); err != nil {
		t.Fatalf("SaveGridFile failed: %v", err)
	}

	origin := mgl32.Vec3{200, 0, -200}
	g := voxel.New(3, 1, voxel.WithOrigin(origin), voxel.WithLODCount(4))
	g.SetDensity(1, 1, 1, 1)

	if err := LoadInto(g, filepath.Join(dir, "missing.grid"), DecodeOptions{}); err == nil {
		t.Fatal("expected error for missing file")
	}
	if g.N() != 3 || g.RawDensity(1, 1, 1) != 255 {
		t.Fatal("grid modified by failed load")
	}

	if err := LoadInto(g, path, DecodeOptions{}); err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}
	requireSameGrid(t, src, g)
	if g.Origin() != origin {
		t.Errorf("origin %v, want %v", g.Origin(), origin)
	}
	if g.LODCount() != 4 {
		t.Errorf("expected the grid's 4 LODs, got %d", g.LODCount())
	}
}
