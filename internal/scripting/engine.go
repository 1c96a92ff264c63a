package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM bound to a world. The VM is not
// goroutine-safe; call it from the tick loop only.
type Engine struct {
	vm    *lua.LState
	world *ecs.World
	log   *zap.Logger
	dir   string
}

// NewEngine creates a Lua engine exposing w as the global table "world" and
// loads every script under scriptsDir: core/ first, then seed/. Scripts in
// core/ may be reloaded later; seed/ runs once.
func NewEngine(scriptsDir string, w *ecs.World, log *zap.Logger) (*Engine, error) {
	e := newEngine(w, log)
	e.dir = scriptsDir
	for _, sub := range []string{"core", "seed"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			e.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

func newEngine(w *ecs.World, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	e := &Engine{vm: vm, world: w, log: log}
	e.bindWorld()
	return e
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// CoreDir is the directory of reloadable scripts.
func (e *Engine) CoreDir() string {
	return filepath.Join(e.dir, "core")
}

// Reload re-runs one script from core/. Globals it defines, on_tick
// included, replace the previous definitions. Paths outside core/ are
// ignored and reported as not reloaded.
func (e *Engine) Reload(path string) (bool, error) {
	rel, err := filepath.Rel(e.CoreDir(), path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return false, nil
	}
	if err := e.vm.DoFile(path); err != nil {
		return false, fmt.Errorf("reload %s: %w", path, err)
	}
	e.log.Info("reloaded lua script", zap.String("file", path))
	return true, nil
}

// DoString runs a chunk of Lua source.
func (e *Engine) DoString(src string) error {
	if err := e.vm.DoString(src); err != nil {
		return fmt.Errorf("run lua: %w", err)
	}
	return nil
}

// HasTick reports whether a script defined on_tick.
func (e *Engine) HasTick() bool {
	return e.vm.GetGlobal("on_tick") != lua.LNil
}

// Tick calls the global on_tick(dt_seconds) if one is defined.
func (e *Engine) Tick(dt time.Duration) error {
	fn := e.vm.GetGlobal("on_tick")
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(dt.Seconds())); err != nil {
		return fmt.Errorf("lua on_tick: %w", err)
	}
	return nil
}

func (e *Engine) Close() {
	e.vm.Close()
}
