// Package store persists zone grids on disk or in sqlite.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/voxelmesh/internal/config"
	"github.com/Faultbox/voxelmesh/internal/metrics"
	"github.com/Faultbox/voxelmesh/pkg/formats"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// ErrZoneNotFound is returned when a zone has never been saved.
var ErrZoneNotFound = errors.New("zone not found")

// Store saves and restores the grid of each zone. Implementations are safe
// for concurrent use; the grids passed in are not.
type Store interface {
	Save(ctx context.Context, zone voxel.Zone, g *voxel.Grid) error
	Load(ctx context.Context, zone voxel.Zone) (*voxel.Grid, error)
	Delete(ctx context.Context, zone voxel.Zone) error
	List(ctx context.Context) ([]voxel.Zone, error)
	Close() error
}

// Options are shared by every backend.
type Options struct {
	// Compress writes zstd-wrapped grids.
	Compress bool
	// Decode is passed to the grid decoder on Load.
	Decode formats.DecodeOptions
}

// Open returns the backend selected by cfg.
func Open(cfg config.StorageConfig, opts Options) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Dir, opts)
	case config.BackendSQLite:
		return OpenSQLite(cfg.SQLitePath, opts)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// isCorrupt reports whether err came from decoding a malformed grid.
func isCorrupt(err error) bool {
	return errors.Is(err, formats.ErrEmptyGridData) ||
		errors.Is(err, formats.ErrTruncatedGridData) ||
		errors.Is(err, formats.ErrInvalidGridHeader) ||
		errors.Is(err, formats.ErrBadEndMarker) ||
		errors.Is(err, formats.ErrUnknownFillState)
}

// Result maps a load or save error to a metric result label.
func Result(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrZoneNotFound):
		return metrics.ResultNotFound
	case isCorrupt(err):
		return metrics.ResultCorrupt
	default:
		return metrics.ResultError
	}
}

func instrument(backend, operation string, err error) {
	metrics.InstrumentStore(backend, operation, Result(err))
	switch operation {
	case "load":
		if !errors.Is(err, ErrZoneNotFound) {
			metrics.InstrumentGridLoad(Result(err))
		}
	case "save":
		metrics.InstrumentGridSave(Result(err))
	}
}
