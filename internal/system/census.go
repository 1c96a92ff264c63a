package system

import (
	"sync/atomic"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
	coresys "github.com/l1jgo/archestore/internal/core/system"
	"go.uber.org/zap"
)

// CensusSystem logs population and archetype counts every N ticks, along
// with how many entities were created and removed since the last report.
// Phase 4 (Output).
type CensusSystem struct {
	world     *ecs.World
	log       *zap.Logger
	interval  int
	tickCount int
	created   atomic.Int64
	removed   atomic.Int64
}

func NewCensusSystem(w *ecs.World, log *zap.Logger, intervalTicks int) *CensusSystem {
	return &CensusSystem{world: w, log: log, interval: intervalTicks}
}

func (s *CensusSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *CensusSystem) RegisterEntity(ecs.Entity) { s.created.Add(1) }

func (s *CensusSystem) RemoveEntity(ecs.Entity) { s.removed.Add(1) }

func (s *CensusSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Report()
}

// Census is one report.
type Census struct {
	Live       int
	Free       int
	Records    int
	Archetypes int
	Populated  int
	Created    int64
	Removed    int64
}

// Report logs and returns the current census and resets the churn counters.
func (s *CensusSystem) Report() Census {
	stats := s.world.ArchetypeStats()
	c := Census{
		Live:       s.world.LiveCount(),
		Free:       s.world.FreeCount(),
		Records:    s.world.Len(),
		Archetypes: len(stats),
		Created:    s.created.Swap(0),
		Removed:    s.removed.Swap(0),
	}
	for _, st := range stats {
		if st.Entities > 0 {
			c.Populated++
		}
	}
	s.log.Info("census",
		zap.Int("live", c.Live),
		zap.Int("free", c.Free),
		zap.Int("records", c.Records),
		zap.Int("archetypes", c.Archetypes),
		zap.Int("populated", c.Populated),
		zap.Int64("created", c.Created),
		zap.Int64("removed", c.Removed),
	)
	return c
}
