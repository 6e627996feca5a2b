package terrain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/voxelmesh/internal/config"
	"github.com/Faultbox/voxelmesh/internal/logger"
	"github.com/Faultbox/voxelmesh/internal/metrics"
	"github.com/Faultbox/voxelmesh/internal/store"
	"github.com/Faultbox/voxelmesh/pkg/formats"
	"github.com/Faultbox/voxelmesh/pkg/mesher"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

// Service loads zones from a store, generating and saving the ones that are
// missing, and extracts their surfaces.
type Service struct {
	cfg   *config.Config
	store store.Store
	gen   Generator
	log   *zap.Logger

	// serializes generation so a missing zone is built once
	genMu sync.Mutex
}

// NewService wires a store and generator to the terrain settings of cfg.
func NewService(cfg *config.Config, st store.Store, gen Generator) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		gen:   gen,
		log:   logger.Named("terrain"),
	}
}

// Params returns the extraction parameters of the mesh config.
func Params(cfg *config.Config) mesher.Params {
	p := mesher.DefaultParams()
	p.GenerateLOD = cfg.Mesh.GenerateLOD
	p.BaseMaterial = cfg.Mesh.BaseMaterial
	p.ZCut = cfg.Mesh.ZCut
	p.ZCutLevel = cfg.Mesh.ZCutLevel
	return p
}

// DecodeOptions returns the grid decoder options of the codec config. Lenient
// decoding reports tolerated damage to log.
func DecodeOptions(cfg *config.Config, log *zap.Logger) formats.DecodeOptions {
	opts := formats.DecodeOptions{LODCount: cfg.Terrain.LODCount}
	if !cfg.Codec.VerifyEndMarker {
		opts.Lenient = true
		opts.Warn = func(msg string) {
			log.Warn("tolerated corrupt grid", zap.String("detail", msg))
		}
	}
	return opts
}

// StoreOptions returns the store options of cfg.
func StoreOptions(cfg *config.Config, log *zap.Logger) store.Options {
	return store.Options{
		Compress: cfg.Codec.Compress,
		Decode:   DecodeOptions(cfg, log),
	}
}

// NewGrid returns an empty grid placed at zone.
func NewGrid(cfg *config.Config, zone voxel.Zone) *voxel.Grid {
	t := cfg.Terrain
	return voxel.New(t.VoxelNum, t.Size,
		voxel.WithLODCount(t.LODCount),
		voxel.WithBaseFillMaterial(t.BaseFillMaterial),
		voxel.WithOrigin(zone.Origin(t.Size)),
	)
}

// Generate builds the grid of zone without touching the store.
func (s *Service) Generate(zone voxel.Zone) *voxel.Grid {
	start := time.Now()
	g := NewGrid(s.cfg, zone)
	Populate(g, s.gen)

	cached := 0
	for lod := 0; lod < g.LODCount(); lod++ {
		cached += len(g.CacheCells(lod))
	}
	s.log.Debug("generated zone",
		zap.Stringer("zone", zone),
		zap.Int("voxels", g.N()),
		zap.Int("cachedCells", cached),
		zap.Duration("took", time.Since(start)))
	return g
}

// Zone returns the grid of zone, generating and saving it on first use.
func (s *Service) Zone(ctx context.Context, zone voxel.Zone) (*voxel.Grid, error) {
	g, err := s.load(ctx, zone)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, store.ErrZoneNotFound) {
		return nil, err
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()

	// another caller may have generated it while we waited
	if g, err := s.load(ctx, zone); err == nil {
		return g, nil
	} else if !errors.Is(err, store.ErrZoneNotFound) {
		return nil, err
	}

	g = s.Generate(zone)
	if err := s.store.Save(ctx, zone, g); err != nil {
		return nil, fmt.Errorf("saving zone %s: %w", zone, err)
	}
	s.log.Info("zone generated", zap.Stringer("zone", zone))
	return g, nil
}

func (s *Service) load(ctx context.Context, zone voxel.Zone) (*voxel.Grid, error) {
	g, err := s.store.Load(ctx, zone)
	if err != nil {
		if !errors.Is(err, store.ErrZoneNotFound) {
			s.log.Error("failed to load zone", zap.Stringer("zone", zone), zap.Error(err))
		}
		return nil, err
	}
	g.SetOrigin(zone.Origin(s.cfg.Terrain.Size))
	return g, nil
}

// Mesh returns the surface of zone.
func (s *Service) Mesh(ctx context.Context, zone voxel.Zone) (*mesher.MeshData, error) {
	g, err := s.Zone(ctx, zone)
	if err != nil {
		return nil, err
	}
	md := Extract(g, Params(s.cfg), s.log)
	s.log.Debug("zone meshed", zap.Stringer("zone", zone), zap.Stringer("strategy", md.Strategy))
	return md, nil
}

// Extract meshes g and records the extraction metrics.
func Extract(g *voxel.Grid, p mesher.Params, log *zap.Logger) *mesher.MeshData {
	start := time.Now()
	md := mesher.Generate(g, p)

	var main, transition int
	for i := range md.Sections {
		m, t := md.Sections[i].TriangleCount()
		main += m
		transition += t
	}
	metrics.InstrumentExtraction(md.Strategy.String(), start, main, transition)

	log.Debug("extracted surface",
		zap.Stringer("strategy", md.Strategy),
		zap.Int("triangles", main),
		zap.Int("transitionTriangles", transition),
		zap.Duration("took", time.Since(start)))
	return md
}

// LoadGridFile decodes a grid file with the codec settings of cfg.
func LoadGridFile(cfg *config.Config, path string, log *zap.Logger) (*voxel.Grid, error) {
	g, err := formats.LoadGridFile(path, DecodeOptions(cfg, log))
	metrics.InstrumentGridLoad(store.Result(err))
	if err != nil {
		return nil, err
	}
	log.Debug("grid loaded",
		zap.String("path", path),
		zap.Int("voxels", g.N()),
		zap.Stringer("density", g.DensityFillState()))
	return g, nil
}

// SaveGridFile writes g to path with the codec settings of cfg.
func SaveGridFile(cfg *config.Config, path string, g *voxel.Grid, log *zap.Logger) error {
	err := formats.SaveGridFile(path, g, cfg.Codec.Compress)
	metrics.InstrumentGridSave(store.Result(err))
	if err != nil {
		return err
	}
	log.Debug("grid saved", zap.String("path", path), zap.Bool("compressed", cfg.Codec.Compress))
	return nil
}
