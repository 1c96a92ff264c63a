package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/archestore/internal/config"
	"github.com/l1jgo/archestore/internal/core/ecs"
	"github.com/l1jgo/archestore/internal/core/event"
	coresys "github.com/l1jgo/archestore/internal/core/system"
	"github.com/l1jgo/archestore/internal/core/task"
	"github.com/l1jgo/archestore/internal/data"
	"github.com/l1jgo/archestore/internal/persist"
	"github.com/l1jgo/archestore/internal/scripting"
	"github.com/l1jgo/archestore/internal/system"
	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfgPath := flag.String("config", "config/server.toml", "config file (ARCHESTORE_CONFIG overrides)")
	prof := flag.String("profile", "", "write a profile to the working directory: cpu, mem, block, mutex or goroutine")
	flag.Parse()

	err := profiled(startProfile(*prof), func() error { return run(*cfgPath) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// profiled runs fn and flushes the profile before returning, so a failed
// run still leaves a complete profile behind.
func profiled(stop func(), fn func() error) error {
	if stop != nil {
		defer stop()
	}
	return fn()
}

func startProfile(mode string) func() {
	var opt func(*profile.Profile)
	switch mode {
	case "":
		return nil
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfileAllocs
	case "block":
		opt = profile.BlockProfile
	case "mutex":
		opt = profile.MutexProfile
	case "goroutine":
		opt = profile.GoroutineProfile
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q, profiling disabled\n", mode)
		return nil
	}
	p := profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet)
	return p.Stop
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            archestore  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m       archetype entity storage core       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run(cfgPath string) error {
	// 1. Load config
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Server.StartTime = time.Now().Unix()

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Component kinds
	printSection("components")
	defs, err := data.LoadComponentDefs(cfg.Data.Components)
	if err != nil {
		return fmt.Errorf("load components: %w", err)
	}
	reg, kinds := system.NewRegistry(defs)
	printStat("kinds registered", reg.Len())
	printStat("mask words", reg.MaskWords())
	fmt.Println()

	// 4. World, observers, task pool
	runner := coresys.NewRunner()
	bus := event.NewBus()
	pool := task.NewPool(cfg.World.TaskWorkers, log)
	world := ecs.NewWorld(reg,
		ecs.WithLogger(log),
		ecs.WithObserver(runner),
		ecs.WithObserver(event.NewObserver(bus)),
		ecs.WithTasks(pool),
		ecs.WithCapacity(cfg.World.InitialCapacity),
		ecs.WithDebugChecks(cfg.World.DebugChecks),
	)

	event.Subscribe(bus, func(event.WorldLoaded) {
		log.Info("world reloaded", zap.Int("live", world.LiveCount()))
	})
	event.Subscribe(bus, func(ev event.EntityRemoved) {
		log.Debug("entity removed", zap.Uint64("entity", uint64(ev.Entity.ID)), zap.Int("kinds", ev.Entity.Mask.Count()))
	})

	// 5. Snapshot store and restore
	printSection("persistence")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	switch err := persist.LoadWorld(ctx, world, store); {
	case errors.Is(err, persist.ErrNoSnapshot):
		printOK("no snapshot, starting empty")
	case err != nil:
		return fmt.Errorf("restore world: %w", err)
	default:
		printOK("snapshot restored")
		printStat("live entities", world.LiveCount())
		printStat("free ids", world.FreeCount())
	}
	fmt.Println()

	// 6. Lua scripts
	printSection("scripts")
	engine, err := scripting.NewEngine(cfg.Data.ScriptsDir, world, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printStat("entities after seed", world.LiveCount())
	printStat("archetypes", len(world.ArchetypeStats()))
	fmt.Println()

	// 7. Systems
	var watcher *scripting.Watcher
	if cfg.Data.WatchScripts {
		watcher, err = scripting.NewWatcher(engine.CoreDir())
		if err != nil {
			return fmt.Errorf("watch scripts: %w", err)
		}
		defer watcher.Close()
		printOK("watching " + engine.CoreDir())
	}
	if engine.HasTick() || watcher != nil {
		runner.Register(system.NewScriptSystem(engine, watcher, log))
	}
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewLifetimeSystem(world, kinds.Lifetime, log))
	runner.Register(system.NewCensusSystem(world, log, cfg.World.CensusTicks))
	autosave := system.NewAutosaveSystem(world, store, log, cfg.Persistence.AutosaveTicks)
	runner.Register(autosave)

	// 8. Start tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.World.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("tick loop started (tick: %s, workers: %d)", cfg.World.TickRate, pool.Workers()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.World.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := autosave.SaveNow(saveCtx)
			saveCancel()
			if err != nil {
				return fmt.Errorf("final save: %w", err)
			}
			log.Info("server stopped")
			return nil
		}
	}
}

// openStore returns the configured snapshot store and its cleanup func.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (persist.SnapshotStore, func(), error) {
	switch cfg.Persistence.Backend {
	case "postgres":
		db, err := persist.OpenDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		printOK(fmt.Sprintf("PostgreSQL connected, schema v%d", db.Version))
		return persist.NewSnapshotRepo(db, cfg.Server.ID, cfg.Persistence.Keep), db.Close, nil
	default:
		printOK("file store " + cfg.Persistence.Path)
		return persist.NewFileStore(cfg.Persistence.Path, log), func() {}, nil
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
