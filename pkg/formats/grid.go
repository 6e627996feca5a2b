package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// Grid format errors.
var (
	ErrEmptyGridData     = errors.New("empty grid data")
	ErrTruncatedGridData = errors.New("truncated grid data")
	ErrInvalidGridHeader = errors.New("invalid grid header")
	ErrBadEndMarker      = errors.New("bad grid end marker")
	ErrUnknownFillState  = errors.New("unknown fill state")
)

// GridEndMarker is written after the last field of every grid.
const GridEndMarker int32 = 666999

// MaxGridSide bounds N so a corrupt header cannot request an absurd allocation.
const MaxGridSide = 1025

// Material block states.
const (
	MaterialUniform  uint8 = 0
	MaterialPerVoxel uint8 = 2
)

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// DecodeOptions controls how strictly a grid is decoded.
type DecodeOptions struct {
	// Lenient zero-fills a truncated payload and ignores the end marker, the
	// way older files were read. The header must still be complete.
	Lenient bool
	// Warn receives tolerated problems in lenient mode.
	Warn func(msg string)
	// LODCount sizes the substance cache of the decoded grid. Zero means
	// voxel.DefaultLODCount.
	LODCount int
}

func (o DecodeOptions) warn(format string, args ...any) {
	if o.Warn != nil {
		o.Warn(fmt.Sprintf(format, args...))
	}
}

// IsCompressed reports whether data is a zstd container.
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}

// EncodeGrid writes g in the binary grid layout:
//
//	int32   N
//	float32 size
//	uint8   density state (0 zero, 1 all, 2 mix)
//	[N³]    densities, only for mix, x-major then y then z
//	uint8   material state (0 uniform, 2 per voxel)
//	uint8   base fill material
//	[N³]    materials, only per voxel
//	int32   666999
func EncodeGrid(w io.Writer, g *voxel.Grid) error {
	bw := bufio.NewWriter(w)
	n := g.N()

	if err := binary.Write(bw, binary.LittleEndian, int32(n)); err != nil {
		return fmt.Errorf("writing side: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, g.Size()); err != nil {
		return fmt.Errorf("writing size: %w", err)
	}

	state := g.DensityFillState()
	if err := bw.WriteByte(uint8(state)); err != nil {
		return fmt.Errorf("writing density state: %w", err)
	}

	block := make([]byte, n*n*n)
	if state == voxel.FillMix {
		for i := range block {
			block[i] = g.RawDensity(g.Coords(i))
		}
		if _, err := bw.Write(block); err != nil {
			return fmt.Errorf("writing densities: %w", err)
		}
	}

	materialState := MaterialUniform
	if g.HasMaterialData() {
		materialState = MaterialPerVoxel
	}
	if err := bw.WriteByte(materialState); err != nil {
		return fmt.Errorf("writing material state: %w", err)
	}
	if err := bw.WriteByte(g.BaseFillMaterial()); err != nil {
		return fmt.Errorf("writing base material: %w", err)
	}
	if materialState == MaterialPerVoxel {
		for i := range block {
			block[i] = uint8(g.Material(g.Coords(i)))
		}
		if _, err := bw.Write(block); err != nil {
			return fmt.Errorf("writing materials: %w", err)
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, GridEndMarker); err != nil {
		return fmt.Errorf("writing end marker: %w", err)
	}
	return bw.Flush()
}

// EncodeGridCompressed writes g wrapped in a zstd frame.
func EncodeGridCompressed(w io.Writer, g *voxel.Grid) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := EncodeGrid(enc, g); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// gridReader reads fixed-size fields, zero-filling short reads when lenient.
type gridReader struct {
	r       *bytes.Reader
	lenient bool
	short   bool
}

func (gr *gridReader) read(buf []byte, what string) error {
	n, err := io.ReadFull(gr.r, buf)
	if err == nil {
		return nil
	}
	if !gr.lenient {
		return fmt.Errorf("%w: reading %s", ErrTruncatedGridData, what)
	}
	clear(buf[n:])
	gr.short = true
	return nil
}

func (gr *gridReader) readByte(what string) (uint8, error) {
	var b [1]byte
	err := gr.read(b[:], what)
	return b[0], err
}

func (gr *gridReader) readInt32(what string) (int32, error) {
	var b [4]byte
	err := gr.read(b[:], what)
	return int32(binary.LittleEndian.Uint32(b[:])), err
}

// ParseGrid decodes a grid from raw bytes, plain or zstd-compressed. The
// substance cache is rebuilt from the densities as they are read.
func ParseGrid(data []byte, opts DecodeOptions) (*voxel.Grid, error) {
	if len(data) == 0 {
		return nil, ErrEmptyGridData
	}

	if IsCompressed(data) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing grid: %w", err)
		}
		if len(data) == 0 {
			return nil, ErrEmptyGridData
		}
	}

	// 4-byte side, 4-byte size and the density state always have to be there.
	if len(data) < 9 {
		return nil, fmt.Errorf("%w: %d header bytes", ErrTruncatedGridData, len(data))
	}

	r := bytes.NewReader(data)
	var (
		side  int32
		size  float32
		state uint8
	)
	if err := binary.Read(r, binary.LittleEndian, &side); err != nil {
		return nil, fmt.Errorf("%w: reading side", ErrTruncatedGridData)
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: reading size", ErrTruncatedGridData)
	}
	if err := binary.Read(r, binary.LittleEndian, &state); err != nil {
		return nil, fmt.Errorf("%w: reading density state", ErrTruncatedGridData)
	}

	if side < 1 || side > MaxGridSide {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidGridHeader, side)
	}
	if math.IsNaN(float64(size)) || math.IsInf(float64(size), 0) || size <= 0 {
		return nil, fmt.Errorf("%w: size %v", ErrInvalidGridHeader, size)
	}
	densityState := voxel.FillState(state)
	if densityState != voxel.FillZero && densityState != voxel.FillAll && densityState != voxel.FillMix {
		return nil, fmt.Errorf("%w: density state %d", ErrUnknownFillState, state)
	}

	n := int(side)
	var gridOpts []voxel.Option
	if opts.LODCount > 0 {
		gridOpts = append(gridOpts, voxel.WithLODCount(opts.LODCount))
	}
	g := voxel.New(n, size, gridOpts...)
	gr := &gridReader{r: r, lenient: opts.Lenient}

	block := make([]byte, n*n*n)
	switch densityState {
	case voxel.FillAll:
		g.CollapseDensity(voxel.FillAll)
	case voxel.FillMix:
		if err := gr.read(block, "densities"); err != nil {
			return nil, err
		}
		for i, d := range block {
			x, y, z := g.Coords(i)
			g.SetSampleDensity(x, y, z, d)
			g.CacheCellAllLODs(x, y, z)
		}
	}

	materialState, err := gr.readByte("material state")
	if err != nil {
		return nil, err
	}
	base, err := gr.readByte("base material")
	if err != nil {
		return nil, err
	}
	g.CollapseMaterial(base)

	switch materialState {
	case MaterialUniform:
	case MaterialPerVoxel:
		if err := gr.read(block, "materials"); err != nil {
			return nil, err
		}
		for i, m := range block {
			x, y, z := g.Coords(i)
			g.SetSampleMaterial(x, y, z, m)
		}
	default:
		if !opts.Lenient {
			return nil, fmt.Errorf("%w: material state %d", ErrUnknownFillState, materialState)
		}
		opts.warn("unknown material state %d, treating materials as uniform", materialState)
	}

	marker, err := gr.readInt32("end marker")
	if err != nil {
		return nil, err
	}
	switch {
	case gr.short:
		opts.warn("grid data truncated, missing samples read as zero")
	case marker != GridEndMarker && opts.Lenient:
		opts.warn("grid end marker is %d, expected %d", marker, GridEndMarker)
	case marker != GridEndMarker:
		return nil, fmt.Errorf("%w: got %d", ErrBadEndMarker, marker)
	}

	return g, nil
}

// DecodeGrid reads a whole grid from r.
func DecodeGrid(r io.Reader, opts DecodeOptions) (*voxel.Grid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading grid: %w", err)
	}
	return ParseGrid(data, opts)
}

// LoadGridFile parses a grid file from disk.
func LoadGridFile(path string, opts DecodeOptions) (*voxel.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid file: %w", err)
	}
	return ParseGrid(data, opts)
}

// LoadInto replaces the contents of g with the grid stored at path, keeping
// g's origin. On any error g is left untouched.
func LoadInto(g *voxel.Grid, path string, opts DecodeOptions) error {
	if opts.LODCount == 0 {
		opts.LODCount = g.LODCount()
	}
	loaded, err := LoadGridFile(path, opts)
	if err != nil {
		return err
	}
	g.ReplaceWith(loaded)
	return nil
}

// SaveGridFile writes g to path through a temporary file in the same
// directory, so a failed write never leaves a partial grid behind.
func SaveGridFile(path string, g *voxel.Grid, compress bool) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating grid directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating grid file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if compress {
		err = EncodeGridCompressed(f, g)
	} else {
		err = EncodeGrid(f, g)
	}
	if err != nil {
		return fmt.Errorf("encoding grid: %w", err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing grid file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing grid file: %w", err)
	}
	if err = os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("renaming grid file: %w", err)
	}
	return nil
}
