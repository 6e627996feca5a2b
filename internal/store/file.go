package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Faultbox/voxelmesh/pkg/formats"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

const (
	fileBackend = "file"
	gridExt     = ".grid"
)

// FileStore keeps one grid file per zone in a directory, named x_y_z.grid.
type FileStore struct {
	dir  string
	opts Options
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, opts Options) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("empty zone directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating zone directory: %w", err)
	}
	return &FileStore{dir: dir, opts: opts}, nil
}

// Path returns the file a zone is stored in.
func (s *FileStore) Path(zone voxel.Zone) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d_%d_%d%s", zone.X, zone.Y, zone.Z, gridExt))
}

// Save implements Store. The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, zone voxel.Zone, g *voxel.Grid) (err error) {
	defer func() { instrument(fileBackend, "save", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return formats.SaveGridFile(s.Path(zone), g, s.opts.Compress)
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, zone voxel.Zone) (g *voxel.Grid, err error) {
	defer func() { instrument(fileBackend, "load", err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, err = formats.LoadGridFile(s.Path(zone), s.opts.Decode)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	if err != nil {
		return nil, fmt.Errorf("loading zone %s: %w", zone, err)
	}
	return g, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, zone voxel.Zone) (err error) {
	defer func() { instrument(fileBackend, "delete", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	err = os.Remove(s.Path(zone))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zone)
	}
	return err
}

// List implements Store. Zones are returned in x, y, z order.
func (s *FileStore) List(ctx context.Context) (zones []voxel.Zone, err error) {
	defer func() { instrument(fileBackend, "list", err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading zone directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if zone, ok := parseZoneFile(e.Name()); ok {
			zones = append(zones, zone)
		}
	}
	slices.SortFunc(zones, compareZones)
	return zones, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func parseZoneFile(name string) (voxel.Zone, bool) {
	base, ok := strings.CutSuffix(name, gridExt)
	if !ok {
		return voxel.Zone{}, false
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return voxel.Zone{}, false
	}
	var c [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return voxel.Zone{}, false
		}
		c[i] = v
	}
	return voxel.Zone{X: c[0], Y: c[1], Z: c[2]}, true
}

func compareZones(a, b voxel.Zone) int {
	if a.X != b.X {
		return a.X - b.X
	}
	if a.Y != b.Y {
		return a.Y - b.Y
	}
	return a.Z - b.Z
}
