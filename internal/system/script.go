package system

import (
	"time"

	coresys "github.com/l1jgo/archestore/internal/core/system"
	"github.com/l1jgo/archestore/internal/scripting"
	"go.uber.org/zap"
)

// ScriptSystem reloads changed core scripts and calls the Lua on_tick hook.
// Phase 0 (Input).
type ScriptSystem struct {
	engine  *scripting.Engine
	watcher *scripting.Watcher // nil when hot reload is off
	log     *zap.Logger
}

func NewScriptSystem(engine *scripting.Engine, watcher *scripting.Watcher, log *zap.Logger) *ScriptSystem {
	return &ScriptSystem{engine: engine, watcher: watcher, log: log}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ScriptSystem) Update(dt time.Duration) {
	s.drainReloads()
	if err := s.engine.Tick(dt); err != nil {
		s.log.Error("script tick failed", zap.Error(err))
	}
}

func (s *ScriptSystem) drainReloads() {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case path, ok := <-s.watcher.Events:
			if !ok {
				s.watcher = nil
				return
			}
			if _, err := s.engine.Reload(path); err != nil {
				s.log.Error("script reload failed", zap.Error(err))
			}
		case err, ok := <-s.watcher.Errors:
			if ok {
				s.log.Warn("script watcher error", zap.Error(err))
			}
		default:
			return
		}
	}
}
