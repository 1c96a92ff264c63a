package event

import (
	"bytes"
	"sync"
	"testing"

	"github.com/l1jgo/archestore/internal/core/ecs"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []ecs.EntityID
	Subscribe(b, func(ev EntityCreated) { got = append(got, ev.Entity.ID) })

	Emit(b, EntityCreated{Entity: ecs.Entity{ID: 7}})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatal("event delivered in the tick it was emitted")
	}
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("got %v", got)
	}
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 {
		t.Fatal("event delivered twice")
	}
}

func TestBusConcurrentEmit(t *testing.T) {
	b := NewBus()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				Emit(b, WorldSaved{})
			}
		}()
	}
	wg.Wait()
	if n := Pending[WorldSaved](b); n != 800 {
		t.Fatalf("expected 800 pending, got %d", n)
	}
}

func TestObserverEmitsLifecycle(t *testing.T) {
	b := NewBus()
	reg := ecs.NewRegistry()
	tag := reg.RegisterTag("tag")
	w := ecs.NewWorld(reg, ecs.WithObserver(NewObserver(b)))

	e := w.CreateEntity(func(e ecs.Entity) { w.AddComponent(e.ID, tag) })
	w.RemoveEntity(e.ID)
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := w.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}

	var removed []ecs.Entity
	created, saved, loaded := 0, 0, 0
	Subscribe(b, func(EntityCreated) { created++ })
	Subscribe(b, func(ev EntityRemoved) { removed = append(removed, ev.Entity) })
	Subscribe(b, func(WorldSaved) { saved++ })
	Subscribe(b, func(WorldLoaded) { loaded++ })
	b.SwapBuffers()
	b.DispatchAll()

	if created != 1 || saved != 1 || loaded != 1 {
		t.Fatalf("created %d saved %d loaded %d", created, saved, loaded)
	}
	if len(removed) != 1 || !removed[0].Has(tag) {
		t.Fatalf("removal should carry the last mask, got %+v", removed)
	}
}
