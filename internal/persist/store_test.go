package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/archestore/internal/config"
	"github.com/l1jgo/archestore/internal/core/ecs"
	"go.uber.org/zap"
)

func newTestWorld(t *testing.T) (*ecs.World, ecs.KindID, ecs.KindID) {
	t.Helper()
	reg := ecs.NewRegistry()
	model := reg.RegisterTag("model")
	recast := reg.RegisterTag("recast", ecs.Transient())
	return ecs.NewWorld(reg), model, recast
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "save", "world.snap"), nil)

	if _, err := store.Latest(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("empty store: expected ErrNoSnapshot, got %v", err)
	}

	w, model, recast := newTestWorld(t)
	w.CreateEntity(func(e ecs.Entity) {
		w.AddComponent(e.ID, model)
		w.AddComponent(e.ID, recast)
	})
	w.CreateEntity(nil)
	if err := SaveWorld(ctx, w, store); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, model2, recast2 := newTestWorld(t)
	if err := LoadWorld(ctx, restored, store); err != nil {
		t.Fatalf("load: %v", err)
	}
	e := restored.Entity(0)
	if !e.Has(model2) || e.Has(recast2) {
		t.Fatalf("unexpected mask after restore: %v", e.Mask)
	}
	if restored.FreeCount() != 1 {
		t.Fatalf("empty record should be free, free=%d", restored.FreeCount())
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestFileStoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "world.snap"), zap.NewNop())
	if err := store.Save(ctx, []byte{1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(store.Path(), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Latest(ctx); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}

	if err := os.WriteFile(store.Path(), []byte("short"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Latest(ctx); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum for a short file, got %v", err)
	}
}

func TestLoadWorldEmptyStore(t *testing.T) {
	w, _, _ := newTestWorld(t)
	store := NewFileStore(filepath.Join(t.TempDir(), "none.snap"), nil)
	if err := LoadWorld(context.Background(), w, store); err != ErrNoSnapshot {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestLoadWorldRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "bad.snap"), nil)
	if err := store.Save(ctx, []byte{5, 0, 0}); err != nil {
		t.Fatalf("save: %v", err)
	}
	w, _, _ := newTestWorld(t)
	if err := LoadWorld(ctx, w, store); !errors.Is(err, ecs.ErrSnapshotTruncated) {
		t.Fatalf("expected truncated snapshot, got %v", err)
	}
}

func TestSnapshotRepoPostgres(t *testing.T) {
	dsn := os.Getenv("ARCHESTORE_TEST_DSN")
	if dsn == "" {
		t.Skip("ARCHESTORE_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := OpenDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if db.Version < 1 {
		t.Fatalf("expected schema version >= 1, got %d", db.Version)
	}

	serverID := int(time.Now().UnixNano() % 1_000_000)
	repo := NewSnapshotRepo(db, serverID, 2)
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM world_snapshots WHERE server_id = $1`, serverID)
	})

	if _, err := repo.Latest(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}

	w, model, _ := newTestWorld(t)
	for i := 0; i < 3; i++ {
		w.CreateEntity(func(e ecs.Entity) { w.AddComponent(e.ID, model) })
		if err := SaveWorld(ctx, w, repo); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if n, err := repo.Count(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 retained snapshots, got %d (%v)", n, err)
	}
	infos, err := repo.List(ctx)
	if err != nil || len(infos) != 2 {
		t.Fatalf("list: %v %v", infos, err)
	}
	if infos[0].Records != 3 || infos[1].Records != 2 || infos[0].ID == infos[1].ID {
		t.Fatalf("unexpected listing %+v", infos)
	}

	restored, _, _ := newTestWorld(t)
	if err := LoadWorld(ctx, restored, repo); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.LiveCount() != 3 {
		t.Fatalf("expected the newest snapshot with 3 entities, got %d", restored.LiveCount())
	}

	if _, err := db.Pool.Exec(ctx,
		`UPDATE world_snapshots SET checksum = '\x00' WHERE server_id = $1`, serverID); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	if _, err := repo.Latest(ctx); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestOpenDBRejectsBadDSN(t *testing.T) {
	_, err := OpenDB(context.Background(), config.DatabaseConfig{DSN: "postgres://u@localhost:notaport/db"}, nil)
	if err == nil {
		t.Fatal("expected a dsn error")
	}
}
