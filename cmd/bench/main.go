package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"voxelcore.ai/internal/assets"
	"voxelcore.ai/internal/config"
	"voxelcore.ai/internal/entity"
	"voxelcore.ai/internal/parallel"
	"voxelcore.ai/internal/persistence/indexdb"
	persistlog "voxelcore.ai/internal/persistence/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to voxelcore.yaml (optional)")
		workers    = flag.Int("workers", 0, "worker count (0: config value, or GOMAXPROCS)")
		begin      = flag.Int("begin", 0, "range begin (overrides config)")
		end        = flag.Int("end", 0, "range end (overrides config)")
		repeat     = flag.Int("repeat", 0, "runs per benchmark (overrides config)")
		packPath   = flag.String("pack", "", "asset pack to preload through the pool (overrides config)")
		entities   = flag.Int("entities", 0, "entities to integrate per step (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bench] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "begin":
			cfg.Bench.Begin = *begin
		case "end":
			cfg.Bench.End = *end
		case "repeat":
			cfg.Bench.Repeat = *repeat
		case "pack":
			cfg.Assets.Pack = *packPath
			cfg.Assets.Preload = *packPath != ""
		case "entities":
			cfg.Bench.Entities = *entities
		}
	})
	cfg.Normalize("")
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := run(cfg, logger, os.Stdout); err != nil {
		logger.Fatalf("%v", err)
	}
}

// run wires the observers and the pool for cfg, then runs the range bench,
// the entity bench and the pack preload in that order. Everything it opens
// is closed before it returns, including on error.
func run(cfg config.Config, logger *log.Logger, out io.Writer) (err error) {
	var observers []parallel.Observer
	if cfg.RunLog.Enabled {
		rl := persistlog.NewRunLogger(cfg.RunLog.Dir)
		rl.OnError = func(err error) { logger.Printf("run log: %v", err) }
		defer func() {
			if cerr := rl.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close run log: %w", cerr)
			}
		}()
		observers = append(observers, rl)
	}
	if cfg.Index.Enabled {
		idx, err := indexdb.OpenSQLite(cfg.Index.Path)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer func() {
			if cerr := idx.Close(); cerr != nil {
				logger.Printf("close index: %v", cerr)
			}
			ist := idx.Stats()
			fmt.Fprintf(out, "index written=%d dropped=%d\n", ist.WrittenTotal, ist.DroppedTotal)
		}()
		observers = append(observers, idx)
	}

	pool, err := parallel.NewPool(cfg.Workers,
		parallel.WithLogger(logger),
		parallel.WithObserver(fanOut(observers)),
	)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	defer pool.Kill()

	if err := bench(pool, cfg.Bench, logger); err != nil {
		return fmt.Errorf("bench: %w", err)
	}
	if cfg.Bench.Entities > 0 {
		if err := benchEntities(pool, cfg.Bench, logger); err != nil {
			return fmt.Errorf("entities: %w", err)
		}
	}
	if cfg.Assets.Preload {
		if err := preload(pool, cfg.Assets.Pack, logger); err != nil {
			return fmt.Errorf("preload %s: %w", cfg.Assets.Pack, err)
		}
	}

	pool.Kill()
	st := pool.Stats()
	fmt.Fprintf(out, "runs=%d indices=%d workers=%d\n", st.Runs, st.Indices, pool.Workers())
	return nil
}

func fanOut(obs []parallel.Observer) parallel.Observer {
	if len(obs) == 0 {
		return nil
	}
	return parallel.ObserverFunc(func(ri parallel.RunInfo) {
		for _, o := range obs {
			o.ObserveRun(ri)
		}
	})
}

func preload(pool *parallel.Pool, path string, logger *log.Logger) error {
	pk, err := assets.OpenPack(path)
	if err != nil {
		return err
	}
	defer pk.Close()

	start := time.Now()
	all, err := pk.Preload(pool)
	if err != nil {
		return err
	}
	var total int
	for _, b := range all {
		total += len(b)
	}
	logger.Printf("preloaded pack=%s entries=%d bytes=%d in %s", path, len(all), total, time.Since(start))
	return nil
}

// bench runs the configured range Repeat times, incrementing one counter
// per index, and checks that every counter ends at Repeat.
func bench(pool *parallel.Pool, bc config.BenchConfig, logger *log.Logger) error {
	n := bc.End - bc.Begin
	hits := make([]uint32, n)
	work := func(i int) { hits[i-bc.Begin]++ }

	var total time.Duration
	for r := 0; r < bc.Repeat; r++ {
		start := time.Now()
		if err := pool.Run(work, bc.Begin, bc.End); err != nil {
			return err
		}
		d := time.Since(start)
		total += d
		logger.Printf("run=%d range=[%d,%d) took=%s", r, bc.Begin, bc.End, d)
	}
	for i, h := range hits {
		if h != uint32(bc.Repeat) {
			return fmt.Errorf("index %d visited %d times, want %d", bc.Begin+i, h, bc.Repeat)
		}
	}
	if bc.Repeat > 0 {
		logger.Printf("avg=%s over %d runs", total/time.Duration(bc.Repeat), bc.Repeat)
	}
	return nil
}

// benchEntities integrates bc.Entities entities inside a unit box for
// bc.Repeat steps and checks that none of them leaves it.
func benchEntities(pool *parallel.Pool, bc config.BenchConfig, logger *log.Logger) error {
	bounds := entity.Box{Max: entity.Vec3{X: 1, Y: 1, Z: 1}}
	ents := make([]entity.Entity, bc.Entities)
	for i := range ents {
		f := float64(i%7 + 1)
		ents[i] = entity.Entity{
			ID:  entity.ID(i + 1),
			Pos: entity.Vec3{X: 0.5, Y: 0.5, Z: 0.5},
			Vel: entity.Vec3{X: f, Y: -f / 2, Z: f / 4},
			HP:  100,
		}
	}

	var sets, walls int
	hooks := entity.Hooks{
		OnSet: func(*entity.Entity) { sets++ },
		OnCollision: func(_, b *entity.Entity) {
			if b == nil {
				walls++
			}
		},
	}

	const dt = 1.0 / 60
	start := time.Now()
	for step := 0; step < bc.Repeat; step++ {
		if err := entity.Integrate(pool, ents, dt, bounds, hooks); err != nil {
			return err
		}
	}
	for _, e := range ents {
		if _, outside := bounds.Clamp(e.Pos); outside {
			return fmt.Errorf("entity %d left bounds at %+v", e.ID, e.Pos)
		}
	}
	if want := bc.Entities * bc.Repeat; sets != want {
		return fmt.Errorf("set hook fired %d times, want %d", sets, want)
	}
	logger.Printf("entities=%d steps=%d wall_hits=%d took=%s", bc.Entities, bc.Repeat, walls, time.Since(start))
	return nil
}
