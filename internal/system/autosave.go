package system

import (
	"context"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
	coresys "github.com/l1jgo/archestore/internal/core/system"
	"github.com/l1jgo/archestore/internal/persist"
	"go.uber.org/zap"
)

// AutosaveSystem writes the world to a snapshot store every N ticks.
// Phase 5 (Persist).
type AutosaveSystem struct {
	world     *ecs.World
	store     persist.SnapshotStore
	log       *zap.Logger
	tickCount int
	interval  int // save every N ticks, 0 disables
	timeout   time.Duration
}

func NewAutosaveSystem(w *ecs.World, store persist.SnapshotStore, log *zap.Logger, intervalTicks int) *AutosaveSystem {
	return &AutosaveSystem{
		world:    w,
		store:    store,
		log:      log,
		interval: intervalTicks,
		timeout:  10 * time.Second,
	}
}

func (s *AutosaveSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AutosaveSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.SaveNow(ctx); err != nil {
		s.log.Error("autosave failed", zap.Error(err))
	}
}

// SaveNow saves immediately. Used for graceful shutdown.
func (s *AutosaveSystem) SaveNow(ctx context.Context) error {
	start := time.Now()
	if err := persist.SaveWorld(ctx, s.world, s.store); err != nil {
		return err
	}
	s.log.Info("world autosaved",
		zap.Int("live", s.world.LiveCount()), zap.Duration("took", time.Since(start)))
	return nil
}

// OnLoad restarts the countdown so a freshly loaded world is not saved
// straight back.
func (s *AutosaveSystem) OnLoad() {
	s.tickCount = 0
}
