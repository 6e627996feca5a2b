package config

import "flag"

// Flags are command-line overrides. Zero values leave the config untouched.
type Flags struct {
	Config      string
	Debug       bool
	VoxelNum    int
	Size        float64
	LODCount    int
	Generator   string
	Seed        int64
	GenerateLOD bool
	ZCut        bool
	ZCutLevel   float64
	Compress    bool
	Lenient     bool
	Backend     string
	Dir         string
	SQLitePath  string
	Addr        string
}

// Register adds the override flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&f.VoxelNum, "voxels", 0, "Samples per grid side")
	fs.Float64Var(&f.Size, "size", 0, "World extent of a zone")
	fs.IntVar(&f.LODCount, "lods", 0, "Number of LOD levels")
	fs.StringVar(&f.Generator, "gen", "", "Terrain generator (sphere, plane, noise)")
	fs.Int64Var(&f.Seed, "seed", 0, "Noise seed")
	fs.BoolVar(&f.GenerateLOD, "lod", false, "Extract every LOD with transition cells")
	fs.BoolVar(&f.ZCut, "zcut", false, "Treat everything above -zcut-level as empty")
	fs.Float64Var(&f.ZCutLevel, "zcut-level", 0, "World Z of the cut")
	fs.BoolVar(&f.Compress, "compress", false, "Write zstd-compressed grids")
	fs.BoolVar(&f.Lenient, "lenient", false, "Accept truncated grids and bad end markers")
	fs.StringVar(&f.Backend, "backend", "", "Storage backend (file, sqlite)")
	fs.StringVar(&f.Dir, "dir", "", "Zone directory for the file backend")
	fs.StringVar(&f.SQLitePath, "db", "", "Database path for the sqlite backend")
	fs.StringVar(&f.Addr, "addr", "", "HTTP listen address")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.VoxelNum > 0 {
		cfg.Terrain.VoxelNum = f.VoxelNum
	}
	if f.Size > 0 {
		cfg.Terrain.Size = float32(f.Size)
	}
	if f.LODCount > 0 {
		cfg.Terrain.LODCount = f.LODCount
	}
	if f.Generator != "" {
		cfg.Terrain.Generator = f.Generator
	}
	if f.Seed != 0 {
		cfg.Terrain.Seed = f.Seed
	}
	if f.GenerateLOD {
		cfg.Mesh.GenerateLOD = true
	}
	if f.ZCut {
		cfg.Mesh.ZCut = true
		cfg.Mesh.ZCutLevel = float32(f.ZCutLevel)
	}
	if f.Compress {
		cfg.Codec.Compress = true
	}
	if f.Lenient {
		cfg.Codec.VerifyEndMarker = false
	}
	if f.Backend != "" {
		cfg.Storage.Backend = f.Backend
	}
	if f.Dir != "" {
		cfg.Storage.Dir = f.Dir
	}
	if f.SQLitePath != "" {
		cfg.Storage.SQLitePath = f.SQLitePath
	}
	if f.Addr != "" {
		cfg.Server.Addr = f.Addr
	}
}
