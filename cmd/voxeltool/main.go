// voxeltool generates, inspects, converts and meshes voxel zone grids.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/voxelmesh/internal/config"
	"github.com/Faultbox/voxelmesh/internal/logger"
	"github.com/Faultbox/voxelmesh/internal/server"
	"github.com/Faultbox/voxelmesh/internal/store"
	"github.com/Faultbox/voxelmesh/internal/terrain"
	"github.com/Faultbox/voxelmesh/pkg/formats"
	"github.com/Faultbox/voxelmesh/pkg/mesher"
	"github.com/Faultbox/voxelmesh/pkg/voxel"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "gen":
		cmdGen(args)
	case "info":
		cmdInfo(args)
	case "mesh":
		cmdMesh(args)
	case "convert":
		cmdConvert(args)
	case "zones", "ls":
		cmdZones(args)
	case "rm":
		cmdRemove(args)
	case "serve":
		cmdServe(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`voxeltool - voxel terrain grid utility

Usage:
  voxeltool <command> [options]

Commands:
  gen [-zone x:y:z] [-o file.grid]     Generate a zone into the store or a file
  info <file.grid>                     Show grid header, fill states and cache sizes
  mesh [-zone x:y:z | file.grid]       Extract a surface as Wavefront OBJ
  convert <in.grid> <out.grid>         Rewrite a grid, -compress for zstd
  zones                                List stored zones
  rm <x:y:z>                           Delete a stored zone
  serve                                Serve zone meshes and /metrics over HTTP

Common options:
  -config <file>  -debug  -voxels N  -size S  -lods N  -gen sphere|plane|noise
  -seed N  -lod  -zcut -zcut-level Z  -compress  -lenient
  -backend file|sqlite  -dir <zones>  -db <zones.db>  -addr host:port

Examples:
  voxeltool gen -gen sphere -zone 0:0:0
  voxeltool mesh -zone 0:0:0 -o zone.obj
  voxeltool mesh -lod -seams terrain.grid > terrain.obj
  voxeltool convert -compress terrain.grid terrain.grid.zst`)
}

// newFlagSet returns a flag set carrying the config overrides.
func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var f config.Flags
	f.Register(fs)
	return fs, &f
}

// setup loads the config and starts logging after fs has been parsed.
func setup(f *config.Flags) *config.Config {
	cfg, err := config.Load(f)
	if err != nil {
		fatal(err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal(err)
	}
	return cfg
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	logger.Sync()
	os.Exit(1)
}

func openService(cfg *config.Config) (*terrain.Service, store.Store) {
	st, err := store.Open(cfg.Storage, terrain.StoreOptions(cfg, logger.Named("store")))
	if err != nil {
		fatal(err)
	}
	gen, err := terrain.NewGenerator(cfg.Terrain.Generator, cfg.Terrain.Seed, cfg.Terrain.Size, cfg.Terrain.BaseFillMaterial)
	if err != nil {
		st.Close()
		fatal(err)
	}
	return terrain.NewService(cfg, st, gen), st
}

func parseZone(s string) voxel.Zone {
	zone, err := voxel.ParseZone(s)
	if err != nil {
		fatal(err)
	}
	return zone
}

func cmdGen(args []string) {
	fs, f := newFlagSet("gen")
	zoneFlag := fs.String("zone", "0:0:0", "Zone to generate")
	out := fs.String("o", "", "Write the grid to this file instead of the store")
	fs.Parse(args)

	cfg := setup(f)
	defer logger.Sync()
	zone := parseZone(*zoneFlag)

	if *out != "" {
		gen, err := terrain.NewGenerator(cfg.Terrain.Generator, cfg.Terrain.Seed, cfg.Terrain.Size, cfg.Terrain.BaseFillMaterial)
		if err != nil {
			fatal(err)
		}
		g := terrain.NewGrid(cfg, zone)
		terrain.Populate(g, gen)
		if err := terrain.SaveGridFile(cfg, *out, g, logger.Named("codec")); err != nil {
			fatal(err)
		}
		fmt.Printf("Generated: %s (%s, %d³)\n", *out, zone, g.N())
		return
	}

	svc, st := openService(cfg)
	defer st.Close()

	g := svc.Generate(zone)
	if err := st.Save(context.Background(), zone, g); err != nil {
		fatal(err)
	}
	fmt.Printf("Generated: zone %s (%d³) into %s store\n", zone, g.N(), cfg.Storage.Backend)
}

func cmdInfo(args []string) {
	fs, f := newFlagSet("info")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: voxeltool info <file.grid>")
		os.Exit(1)
	}
	cfg := setup(f)
	defer logger.Sync()

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	g, err := terrain.LoadGridFile(cfg, fs.Arg(0), logger.Named("codec"))
	if err != nil {
		fatal(err)
	}

	fmt.Printf("File:       %s (%d bytes)\n", fs.Arg(0), len(data))
	fmt.Printf("Compressed: %v\n", formats.IsCompressed(data))
	fmt.Printf("Samples:    %d³ (step %g)\n", g.N(), g.Step())
	fmt.Printf("Size:       %g\n", g.Size())
	fmt.Printf("Density:    %s\n", g.DensityFillState())
	if g.HasMaterialData() {
		fmt.Println("Material:   per voxel")
	} else {
		fmt.Printf("Material:   uniform %d\n", g.BaseFillMaterial())
	}
	fmt.Println()
	fmt.Println("Substance cache:")
	for lod := 0; lod < g.LODCount(); lod++ {
		fmt.Printf("  LOD %d  %d cells\n", lod, len(g.CacheCells(lod)))
	}
}

func cmdMesh(args []string) {
	fs, f := newFlagSet("mesh")
	zoneFlag := fs.String("zone", "", "Mesh a stored zone, generating it if missing")
	out := fs.String("o", "", "Output OBJ file (default stdout)")
	seams := fs.Bool("seams", false, "Include transition seams")
	fs.Parse(args)

	if *zoneFlag == "" && fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: voxeltool mesh [-zone x:y:z | <file.grid>] [-o out.obj]")
		os.Exit(1)
	}
	cfg := setup(f)
	defer logger.Sync()
	log := logger.Named("mesh")

	var md *mesher.MeshData
	if *zoneFlag != "" {
		svc, st := openService(cfg)
		defer st.Close()

		var err error
		md, err = svc.Mesh(context.Background(), parseZone(*zoneFlag))
		if err != nil {
			fatal(err)
		}
	} else {
		g, err := terrain.LoadGridFile(cfg, fs.Arg(0), logger.Named("codec"))
		if err != nil {
			fatal(err)
		}
		md = terrain.Extract(g, terrain.Params(cfg), log)
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			fatal(err)
		}
		defer file.Close()
		w = file
	}
	if err := mesher.WriteOBJ(w, md, *seams); err != nil {
		fatal(err)
	}

	tris, seamTris := 0, 0
	for i := range md.Sections {
		m, t := md.Sections[i].TriangleCount()
		tris += m
		seamTris += t
	}
	log.Info("mesh written",
		zap.Stringer("strategy", md.Strategy),
		zap.Int("triangles", tris),
		zap.Int("transitionTriangles", seamTris),
		zap.Int("collisionTriangles", md.Collision.TriangleCount()))
}

func cmdConvert(args []string) {
	fs, f := newFlagSet("convert")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: voxeltool convert [-compress] <in.grid> <out.grid>")
		os.Exit(1)
	}
	cfg := setup(f)
	defer logger.Sync()
	log := logger.Named("codec")

	g, err := terrain.LoadGridFile(cfg, fs.Arg(0), log)
	if err != nil {
		fatal(err)
	}
	if err := terrain.SaveGridFile(cfg, fs.Arg(1), g, log); err != nil {
		fatal(err)
	}
	fmt.Printf("Converted: %s -> %s (compressed: %v)\n", fs.Arg(0), fs.Arg(1), cfg.Codec.Compress)
}

func cmdZones(args []string) {
	fs, f := newFlagSet("zones")
	fs.Parse(args)

	cfg := setup(f)
	defer logger.Sync()
	st, err := store.Open(cfg.Storage, terrain.StoreOptions(cfg, logger.Named("store")))
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	zones, err := st.List(context.Background())
	if err != nil {
		fatal(err)
	}
	for _, z := range zones {
		fmt.Println(z)
	}
	fmt.Fprintf(os.Stderr, "\n(%d zones)\n", len(zones))
}

func cmdRemove(args []string) {
	fs, f := newFlagSet("rm")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: voxeltool rm <x:y:z>")
		os.Exit(1)
	}
	cfg := setup(f)
	defer logger.Sync()
	zone := parseZone(fs.Arg(0))

	st, err := store.Open(cfg.Storage, terrain.StoreOptions(cfg, logger.Named("store")))
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	if err := st.Delete(context.Background(), zone); err != nil {
		fatal(err)
	}
	fmt.Printf("Deleted: zone %s\n", zone)
}

func cmdServe(args []string) {
	fs, f := newFlagSet("serve")
	fs.Parse(args)

	cfg := setup(f)
	defer logger.Sync()
	svc, st := openService(cfg)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: server.NewHandler(svc, st)}
	if err := server.ListenAndServe(ctx, srv, cfg.Server.ShutdownTimeout); err != nil {
		fatal(err)
	}
}
