// Command pointmesh reconstructs a triangle mesh from an ASCII PCD point
// cloud and writes it as Wavefront OBJ, with optional previews and a run
// history database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pointmesh/internal/config"
	"github.com/banshee-data/pointmesh/internal/fsutil"
	"github.com/banshee-data/pointmesh/internal/meshio"
	"github.com/banshee-data/pointmesh/internal/monitoring"
	"github.com/banshee-data/pointmesh/internal/pcd"
	"github.com/banshee-data/pointmesh/internal/preview"
	"github.com/banshee-data/pointmesh/internal/reconstruct"
	"github.com/banshee-data/pointmesh/internal/runstore"
	"github.com/banshee-data/pointmesh/internal/version"
)

var (
	inPath      = flag.String("in", "", "Input point cloud (ASCII .pcd)")
	outPath     = flag.String("out", "mesh.obj", "Output mesh (.obj, or .obj.zst for zstd)")
	configPath  = flag.String("config", "", "Reconstruction config JSON (defaults apply when empty)")
	pngPath     = flag.String("png", "", "Write a top-down PNG preview to this path")
	htmlPath    = flag.String("html", "", "Write an interactive 3D HTML preview to this path")
	dbPath      = flag.String("db", "", "Record the run in this SQLite database")
	verbose     = flag.Bool("v", false, "Log per-stage diagnostics to stderr")
	trace       = flag.Bool("trace", false, "Log high-frequency trace output to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// overrideFlags maps command-line flags onto config keys. Only flags the
// user actually set are applied, so file values survive unset flags.
var overrideFlags = map[string]string{
	"target":    "target_points",
	"strategy":  "strategy",
	"radius":    "radius",
	"k":         "k",
	"sampling":  "sampling",
	"normals":   "normal_mode",
	"workers":   "workers",
	"normalize": "normalize",
	"seed":      "seed",
	"timeout":   "timeout",
}

func init() {
	flag.Int("target", 0, "Target vertex count (0 picks a budget from the input size)")
	flag.String("strategy", "knn-pairing", "Triangulation: radius-pairing, knn-pairing, grid-stitching, sequential-fallback")
	flag.Float64("radius", 0.1, "Neighbour radius for radius pairing and PCA normals")
	flag.Int("k", 8, "Neighbour count for knn pairing and PCA normals")
	flag.String("sampling", "centroid", "Downsampling: centroid, first-seen or stride (scan order, for grid-stitching)")
	flag.String("normals", "pca", "Normal estimation: pca, centroid or constant")
	flag.Int("workers", 1, "Parallel workers for normal estimation")
	flag.Bool("normalize", true, "Re-centre and scale the cloud into the unit cube first")
	flag.Uint64("seed", 0, "Seed for voxel supplementation (0 uses a random seed)")
	flag.Duration("timeout", 0, "Abort reconstruction after this long (0 for none)")
}

// options holds everything a run needs after flag parsing.
type options struct {
	in, out, png, html, db string
	cfg                    *config.ReconstructionConfig
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	writers := monitoring.LogWriters{Ops: os.Stderr}
	if *verbose {
		writers.Diag = os.Stderr
	}
	if *trace {
		writers.Trace = os.Stderr
	}
	monitoring.SetLogWriters(writers)

	if *inPath == "" {
		log.Fatal("-in is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	var setErr error
	flag.Visit(func(f *flag.Flag) {
		key, ok := overrideFlags[f.Name]
		if !ok || setErr != nil {
			return
		}
		if err := cfg.Set(key, f.Value.String()); err != nil {
			setErr = fmt.Errorf("-%s: %w", f.Name, err)
		}
	})
	if setErr != nil {
		log.Fatalf("Invalid flag: %v", setErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := options{in: *inPath, out: *outPath, png: *pngPath, html: *htmlPath, db: *dbPath, cfg: cfg}
	res, err := run(ctx, fsutil.OSFileSystem{}, opts)
	if err != nil {
		log.Fatalf("pointmesh: %v", err)
	}
	st := res.Stats
	log.Printf("wrote %s: %d vertices, %d triangles from %d points (%s, %v)",
		opts.out, res.Mesh.VertexCount(), res.Mesh.TriangleCount(), st.InputPoints, st.Strategy, st.Total.Round(time.Millisecond))
}

func loadConfig(path string) (*config.ReconstructionConfig, error) {
	if path == "" {
		return config.EmptyReconstructionConfig(), nil
	}
	return config.LoadReconstructionConfig(path)
}

// run decodes, reconstructs and exports. It is separated from main so the
// whole flow can be exercised against an in-memory filesystem.
func run(ctx context.Context, fsys fsutil.FileSystem, o options) (*reconstruct.Result, error) {
	rc, err := o.cfg.ToReconstruct()
	if err != nil {
		return nil, err
	}
	if d := o.cfg.GetTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	c, err := pcd.Load(fsys, o.in)
	if err != nil {
		return nil, err
	}
	if o.cfg.GetNormalize() {
		c.Normalize()
	}

	res, err := reconstruct.Reconstruct(ctx, c, rc)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("reconstruction timed out after %v: %w", o.cfg.GetTimeout(), err)
		}
		return nil, err
	}

	if err := meshio.Save(fsys, o.out, res.Mesh); err != nil {
		return nil, err
	}
	if o.png != "" {
		po := preview.DefaultPNGOptions()
		po.Title = o.in
		if err := preview.SavePNG(fsys, o.png, res.Mesh, po); err != nil {
			return nil, fmt.Errorf("png preview: %w", err)
		}
	}
	if o.html != "" {
		if err := preview.SaveHTML(fsys, o.html, res.Mesh, preview.HTMLOptions{Title: o.in}); err != nil {
			return nil, fmt.Errorf("html preview: %w", err)
		}
	}

	if o.db != "" {
		if err := record(o, res.Stats); err != nil {
			// The mesh is already written; a failed history insert is not fatal.
			monitoring.Opsf("failed to record run: %v", err)
		}
	}
	return res, nil
}

func record(o options, st reconstruct.Stats) error {
	store, err := runstore.Open(o.db)
	if err != nil {
		return err
	}
	defer store.Close()

	cfgJSON, err := json.Marshal(o.cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	id, err := store.Insert(runstore.NewRun(o.in, o.out, st, string(cfgJSON)))
	if err != nil {
		return err
	}
	monitoring.Opsf("recorded run %s in %s", id, o.db)
	return nil
}
