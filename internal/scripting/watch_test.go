package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
)

func TestReloadOnlyCoreScripts(t *testing.T) {
	dir := t.TempDir()
	core := filepath.Join(dir, "core")
	seed := filepath.Join(dir, "seed")
	for _, d := range []string{core, seed} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	tick := filepath.Join(core, "tick.lua")
	if err := os.WriteFile(tick, []byte(`version = 1`), 0o644); err != nil {
		t.Fatal(err)
	}
	once := filepath.Join(seed, "once.lua")
	if err := os.WriteFile(once, []byte(`seeds = (seeds or 0) + 1`), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := NewEngine(dir, ecs.NewWorld(ecs.NewRegistry()), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := os.WriteFile(tick, []byte(`version = 2`), 0o644); err != nil {
		t.Fatal(err)
	}
	if ok, err := e.Reload(tick); !ok || err != nil {
		t.Fatalf("reload core: %v %v", ok, err)
	}
	if got := e.vm.GetGlobal("version").String(); got != "2" {
		t.Fatalf("version = %s", got)
	}
	if ok, _ := e.Reload(once); ok {
		t.Fatal("seed scripts must not reload")
	}
	if got := e.vm.GetGlobal("seeds").String(); got != "1" {
		t.Fatalf("seed ran %s times", got)
	}

	if err := os.WriteFile(tick, []byte(`version = `), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reload(tick); err == nil {
		t.Fatal("expected syntax error")
	}
	if got := e.vm.GetGlobal("version").String(); got != "2" {
		t.Fatalf("failed reload changed state: %s", got)
	}
}

func TestWatcherReportsLuaWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tick.lua")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Events:
		if got != path {
			t.Fatalf("unexpected event for %s", got)
		}
	case err := <-w.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for the lua write")
	}
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = w.Close()
	if _, ok := <-w.Events; ok {
		t.Fatal("events channel should be closed")
	}
}
