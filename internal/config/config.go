// Package config handles voxel terrain configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all terrain settings.
type Config struct {
	Terrain TerrainConfig `yaml:"terrain"`
	Mesh    MeshConfig    `yaml:"mesh"`
	Codec   CodecConfig   `yaml:"codec"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// TerrainConfig describes the grid of one zone.
type TerrainConfig struct {
	VoxelNum         int     `yaml:"voxel_num"` // samples per side, 2^k+1 for full LOD coverage
	Size             float32 `yaml:"size"`      // world extent of a zone
	LODCount         int     `yaml:"lod_count"`
	BaseFillMaterial uint8   `yaml:"base_fill_material"`
	Generator        string  `yaml:"generator"` // sphere, plane or noise
	Seed             int64   `yaml:"seed"`
}

// MeshConfig holds extraction settings.
type MeshConfig struct {
	GenerateLOD  bool    `yaml:"generate_lod"`
	BaseMaterial int     `yaml:"base_material"`
	ZCut         bool    `yaml:"z_cut"`
	ZCutLevel    float32 `yaml:"z_cut_level"`
}

// CodecConfig holds grid file settings.
type CodecConfig struct {
	VerifyEndMarker bool `yaml:"verify_end_marker"`
	Compress        bool `yaml:"compress"`
}

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// StorageConfig selects where zones are persisted.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// ServerConfig holds the mesh/metrics HTTP endpoint settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Terrain: TerrainConfig{
			VoxelNum:         65,
			Size:             1000,
			LODCount:         7,
			BaseFillMaterial: 1,
			Generator:        "noise",
			Seed:             1,
		},
		Mesh: MeshConfig{
			GenerateLOD:  false,
			BaseMaterial: 1,
		},
		Codec: CodecConfig{
			VerifyEndMarker: true,
			Compress:        false,
		},
		Storage: StorageConfig{
			Backend:    BackendFile,
			Dir:        "zones",
			SQLitePath: "zones.db",
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8089",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate rejects settings no grid or store can be built from.
func (c *Config) Validate() error {
	if c.Terrain.VoxelNum < 2 || c.Terrain.VoxelNum > 1025 {
		return fmt.Errorf("%w: terrain.voxel_num %d outside [2, 1025]", ErrInvalidConfig, c.Terrain.VoxelNum)
	}
	if c.Terrain.Size <= 0 {
		return fmt.Errorf("%w: terrain.size must be positive", ErrInvalidConfig)
	}
	if c.Terrain.LODCount < 1 || c.Terrain.LODCount > 16 {
		return fmt.Errorf("%w: terrain.lod_count %d outside [1, 16]", ErrInvalidConfig, c.Terrain.LODCount)
	}
	switch c.Terrain.Generator {
	case "sphere", "plane", "noise":
	default:
		return fmt.Errorf("%w: unknown terrain.generator %q", ErrInvalidConfig, c.Terrain.Generator)
	}
	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("%w: storage.dir is empty", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: storage.sqlite_path is empty", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	return nil
}
