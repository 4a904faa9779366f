package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plus3/hopper/fs"
	"github.com/plus3/hopper/game"
	"github.com/plus3/hopper/heap"
	"github.com/plus3/hopper/script"
)

// duration lets TOML config files spell durations as "10s" or "2m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

type config struct {
	Duration     duration `toml:"duration"`
	Grow         int      `toml:"grow"`
	Limit        int64    `toml:"limit"`
	ChurnWorkers int      `toml:"churn_workers"`
	FSChurn      bool     `toml:"fs_churn"`
	ScriptsDir   string   `toml:"scripts_dir"`
	Diagnostics  bool     `toml:"diagnostics"`
}

func main() {
	configPath := flag.String("config", "", "Optional TOML config file; flags override its values.")
	durationFlag := flag.Duration("duration", 10*time.Second, "Total duration the test should run for.")
	growFlag := flag.Int("grow", 1<<20, "Heap arena grow increment in bytes.")
	limitFlag := flag.Int64("limit", 0, "Heap byte budget, 0 for unlimited.")
	churnFlag := flag.Int("churn-workers", 4, "Concurrent allocate/free workers on the shared heap.")
	fsChurnFlag := flag.Bool("fs-churn", false, "Run compressed file write/read churn alongside the frames.")
	scriptsFlag := flag.String("scripts", "", "Directory of Lua scripts to run against the world before the loop.")
	diagFlag := flag.Bool("diagnostics", true, "Capture allocation call stacks for the leak report.")
	flag.Parse()

	cfg := config{
		Duration:     duration{*durationFlag},
		Grow:         *growFlag,
		Limit:        *limitFlag,
		ChurnWorkers: *churnFlag,
		FSChurn:      *fsChurnFlag,
		ScriptsDir:   *scriptsFlag,
		Diagnostics:  *diagFlag,
	}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		// Flags given explicitly win over the file.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "duration":
				cfg.Duration = duration{*durationFlag}
			case "grow":
				cfg.Grow = *growFlag
			case "limit":
				cfg.Limit = *limitFlag
			case "churn-workers":
				cfg.ChurnWorkers = *churnFlag
			case "fs-churn":
				cfg.FSChurn = *fsChurnFlag
			case "scripts":
				cfg.ScriptsDir = *scriptsFlag
			case "diagnostics":
				cfg.Diagnostics = *diagFlag
			}
		})
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("stress test failed", zap.Error(err))
	}
}

func run(cfg config, log *zap.Logger) error {
	log.Info("starting stress test",
		zap.Duration("duration", cfg.Duration.Duration),
		zap.Int("grow", cfg.Grow),
		zap.Int("churn_workers", cfg.ChurnWorkers))

	opts := []heap.Option{heap.WithLogger(log)}
	if cfg.Diagnostics {
		opts = append(opts, heap.WithDiagnostics())
	}
	if cfg.Limit > 0 {
		opts = append(opts, heap.WithLimit(cfg.Limit))
	}
	h, err := heap.New(cfg.Grow, opts...)
	if err != nil {
		return err
	}

	g, err := game.New(h, nil)
	if err != nil {
		return err
	}

	if cfg.ScriptsDir != "" {
		if err := runScripts(g, cfg.ScriptsDir, log); err != nil {
			return err
		}
	}

	report := &Report{
		Duration:      cfg.Duration.Duration,
		GrowIncrement: cfg.Grow,
		ChurnWorkers:  cfg.ChurnWorkers,
		FSChurn:       cfg.FSChurn,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration.Duration)
	defer cancel()

	var churned atomic.Int64
	workers, wctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.ChurnWorkers; i++ {
		seed := int64(i + 1)
		workers.Go(func() error {
			return churnHeap(wctx, h, seed, &churned)
		})
	}
	if cfg.FSChurn {
		workers.Go(func() error {
			return churnFiles(wctx, h, log)
		})
	}

	log.Info("running frame loop")
	startTime := time.Now()
	lastFrameTime := startTime
	rng := rand.New(rand.NewSource(42))

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			frameStart := time.Now()
			g.Update(deltaTime.Seconds(), game.Keys(rng.Intn(16)))
			report.FrameTime.Samples = append(report.FrameTime.Samples, time.Since(frameStart))
			report.TotalFrames++
		}
	}

	if err := workers.Wait(); err != nil {
		return err
	}

	report.TotalTime = time.Since(startTime)
	report.FrameTime.Finalize()
	report.ChurnedAllocs = churned.Load()
	runtime.ReadMemStats(&report.MemStatsEnd)

	g.Close()
	report.HeapStats = h.Stats()

	err = h.Close()
	var leaks *heap.LeakError
	if errors.As(err, &leaks) {
		report.Leaks = len(leaks.Leaks)
		log.Warn("heap reported leaks", zap.Int("count", report.Leaks))
	} else if err != nil {
		return err
	}

	log.Info("simulation finished", zap.Int64("frames", report.TotalFrames))

	fmt.Println("\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	fmt.Println("--- End of Report ---")
	return nil
}

// churnHeap hammers the shared allocator with short-lived blocks of varied
// size and alignment while the frame loop runs.
func churnHeap(ctx context.Context, h *heap.Heap, seed int64, churned *atomic.Int64) error {
	rng := rand.New(rand.NewSource(seed))
	aligns := []int{8, 16, 32, 64}

	var held [][]byte
	for {
		select {
		case <-ctx.Done():
			for _, buf := range held {
				h.Free(buf)
			}
			return nil
		default:
		}

		size := 16 + rng.Intn(4096)
		buf := h.Alloc(size, aligns[rng.Intn(len(aligns))])
		if buf == nil {
			// Budget exhausted; release everything and go again.
			for _, b := range held {
				h.Free(b)
			}
			held = held[:0]
			continue
		}
		buf[0] = byte(size)
		churned.Add(1)

		held = append(held, buf)
		if len(held) > 32 {
			idx := rng.Intn(len(held))
			h.Free(held[idx])
			held[idx] = held[len(held)-1]
			held = held[:len(held)-1]
		}
	}
}

// churnFiles round-trips compressed payloads through the async file layer.
func churnFiles(ctx context.Context, h *heap.Heap, log *zap.Logger) error {
	dir, err := os.MkdirTemp("", "hopper-stress-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	f := fs.New(h, 16, log)

	rng := rand.New(rand.NewSource(7))
	payload := make([]byte, 1<<16)
	for i := range payload {
		payload[i] = byte(rng.Intn(8)) // compressible
	}

	i := 0
	for {
		select {
		case <-ctx.Done():
			return f.Close()
		default:
		}

		path := filepath.Join(dir, fmt.Sprintf("chunk%d.bin", i%8))
		w := f.Write(path, payload, fs.WithCompression())
		w.Wait()
		if err := w.Err(); err != nil {
			f.Close()
			return err
		}
		w.Release()

		r := f.Read(path, fs.WithCompression())
		r.Wait()
		if err := r.Err(); err != nil {
			f.Close()
			return err
		}
		r.Release()
		i++
	}
}

// runScripts binds the game's component types into a Lua engine and runs
// every script in the directory against the live world.
func runScripts(g *game.Game, dir string, log *zap.Logger) error {
	eng := script.New(g.World(), log)
	defer eng.Close()

	types := g.ComponentTypes()
	eng.Bind("TransformComponent", types["TransformComponent"], game.TransformAccessor{})
	eng.Bind("PlayerComponent", types["PlayerComponent"], game.PlayerAccessor{})
	eng.Bind("TrafficComponent", types["TrafficComponent"], game.TrafficAccessor{})
	eng.Bind("NameComponent", types["NameComponent"], game.NameAccessor{})

	return eng.LoadDir(dir)
}
