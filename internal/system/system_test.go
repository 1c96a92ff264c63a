package system

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/archestore/internal/core/ecs"
	"github.com/l1jgo/archestore/internal/core/event"
	coresys "github.com/l1jgo/archestore/internal/core/system"
	"github.com/l1jgo/archestore/internal/persist"
	"github.com/l1jgo/archestore/internal/scripting"
	"go.uber.org/zap"
)

type fixture struct {
	world    *ecs.World
	runner   *coresys.Runner
	lifetime *ecs.Kind[Lifetime]
	model    ecs.KindID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := ecs.NewRegistry()
	f := &fixture{runner: coresys.NewRunner()}
	f.lifetime = RegisterLifetime(reg)
	f.model = reg.RegisterTag("model")
	f.world = ecs.NewWorld(reg, ecs.WithObserver(f.runner), ecs.WithDebugChecks(true))
	return f
}

func TestLifetimeSystemExpiresEntities(t *testing.T) {
	f := newFixture(t)
	sys := NewLifetimeSystem(f.world, f.lifetime, zap.NewNop())
	f.runner.Register(sys)

	var short, long []ecs.EntityID
	for i := 0; i < 20; i++ {
		ttl := 100 * time.Millisecond
		if i%2 == 1 {
			ttl = time.Second
		}
		e := f.world.CreateEntity(func(e ecs.Entity) {
			f.lifetime.Attach(f.world, e.ID, Lifetime{Remaining: ttl})
			f.world.AddComponent(e.ID, f.model)
		})
		if i%2 == 1 {
			long = append(long, e.ID)
		} else {
			short = append(short, e.ID)
		}
	}

	f.runner.Tick(60 * time.Millisecond)
	if f.world.LiveCount() != 20 {
		t.Fatalf("nothing should expire yet, live=%d", f.world.LiveCount())
	}
	f.runner.Tick(60 * time.Millisecond)
	for _, id := range short {
		if f.world.Alive(id) {
			t.Fatalf("entity %d should have expired", id)
		}
		if _, ok := f.lifetime.Get(id); ok {
			t.Fatalf("expired entity %d kept its payload", id)
		}
	}
	for _, id := range long {
		if !f.world.Alive(id) {
			t.Fatalf("entity %d expired early", id)
		}
	}
	if sys.Expired() != int64(len(short)) {
		t.Fatalf("expired count %d", sys.Expired())
	}
	if f.world.FreeCount() != len(short) || f.world.Depth() != 0 {
		t.Fatalf("free=%d depth=%d", f.world.FreeCount(), f.world.Depth())
	}
}

func TestCensusCountsChurn(t *testing.T) {
	f := newFixture(t)
	census := NewCensusSystem(f.world, zap.NewNop(), 2)
	f.runner.Register(census)

	a := f.world.CreateEntity(func(e ecs.Entity) { f.world.AddComponent(e.ID, f.model) })
	f.world.CreateEntity(nil)
	f.world.RemoveEntity(a.ID)

	c := census.Report()
	if c.Created != 2 || c.Removed != 1 || c.Live != 1 || c.Free != 1 || c.Records != 2 {
		t.Fatalf("unexpected census %+v", c)
	}
	if c.Archetypes != 1 || c.Populated != 0 {
		t.Fatalf("archetype counts %+v", c)
	}
	if again := census.Report(); again.Created != 0 || again.Removed != 0 {
		t.Fatalf("churn not reset: %+v", again)
	}
}

func TestAutosaveSystem(t *testing.T) {
	f := newFixture(t)
	store := persist.NewFileStore(filepath.Join(t.TempDir(), "world.snap"), nil)
	save := NewAutosaveSystem(f.world, store, zap.NewNop(), 3)
	f.runner.Register(save)

	f.world.CreateEntity(func(e ecs.Entity) { f.world.AddComponent(e.ID, f.model) })
	ctx := context.Background()

	f.runner.Tick(time.Millisecond)
	f.runner.Tick(time.Millisecond)
	if _, err := store.Latest(ctx); !errors.Is(err, persist.ErrNoSnapshot) {
		t.Fatalf("saved before the interval: %v", err)
	}
	f.runner.Tick(time.Millisecond)
	if _, err := store.Latest(ctx); err != nil {
		t.Fatalf("expected a snapshot after 3 ticks: %v", err)
	}

	f.runner.Tick(time.Millisecond)
	if err := persist.LoadWorld(ctx, f.world, store); err != nil {
		t.Fatalf("load: %v", err)
	}
	if save.tickCount != 0 {
		t.Fatalf("load should restart the countdown, at %d", save.tickCount)
	}
	if !f.world.Entity(0).Has(f.model) {
		t.Fatal("snapshot lost the model kind")
	}
}

func TestScriptAndEventSystems(t *testing.T) {
	f := newFixture(t)
	bus := event.NewBus()
	reg := ecs.NewRegistry()
	model := reg.RegisterTag("model")
	w := ecs.NewWorld(reg, ecs.WithObserver(event.NewObserver(bus)))

	engine, err := scripting.NewEngine(t.TempDir(), w, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	if err := engine.DoString(`function on_tick(dt) world.create({"model"}) end`); err != nil {
		t.Fatal(err)
	}

	var created []ecs.Entity
	event.Subscribe(bus, func(ev event.EntityCreated) { created = append(created, ev.Entity) })
	f.runner.Register(NewEventDispatchSystem(bus))
	f.runner.Register(NewScriptSystem(engine, nil, zap.NewNop()))

	// Input runs before PreUpdate, so a script's creations are dispatched
	// in the same tick.
	f.runner.Tick(time.Millisecond)
	if w.LiveCount() != 1 || len(created) != 1 || !created[0].Has(model) {
		t.Fatalf("live=%d created=%+v after first tick", w.LiveCount(), created)
	}
	f.runner.Tick(time.Millisecond)
	if w.LiveCount() != 2 || len(created) != 2 {
		t.Fatalf("live=%d created=%d after second tick", w.LiveCount(), len(created))
	}
}
