package ecs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	obs := &recordingObserver{}
	w, k := setupWorld(t, WithObserver(obs))

	a := MaskOf(k.pos.ID(), k.tag)
	b := MaskOf(k.vel.ID(), k.scrap) // scrap is transient
	masks := []Mask{a, {}, b, a}
	for _, m := range masks {
		w.CreateEntity(func(e Entity) {
			m.ForEach(func(id KindID) { w.AddComponent(e.ID, id) })
		})
	}
	w.RemoveEntity(1)

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if obs.saves != 1 {
		t.Fatalf("expected one save hook call, got %d", obs.saves)
	}
	// 8-byte count plus 4 masks of one word each.
	if buf.Len() != 8+4*8 {
		t.Fatalf("unexpected snapshot size %d", buf.Len())
	}
	if n := binary.LittleEndian.Uint64(buf.Bytes()); n != 4 {
		t.Fatalf("header count %d, want 4", n)
	}

	loaded, k2 := setupWorld(t, WithObserver(obs))
	loaded.CreateEntity(func(e Entity) { k2.pos.Attach(loaded, e.ID, Position{X: 9}) })
	obs.registered, obs.removed = nil, nil

	if err := loaded.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("load: %v", err)
	}

	bPrime := b.Without(k.scrap)
	want := []Mask{a, {}, bPrime, a}
	for i, m := range want {
		if got := loaded.Entity(EntityID(i)).Mask; got != m {
			t.Errorf("entity %d: mask %v, want %v", i, got, m)
		}
	}
	if loaded.Alive(1) || loaded.FreeCount() != 1 {
		t.Fatalf("destroyed slot should be in the reuse pool (alive=%v free=%d)", loaded.Alive(1), loaded.FreeCount())
	}
	if len(obs.removed) != 1 {
		t.Fatalf("expected the stale entity to be detached, got %d removals", len(obs.removed))
	}
	if len(obs.registered) != 3 || obs.loads != 1 {
		t.Fatalf("expected 3 registrations and one load hook, got %d and %d", len(obs.registered), obs.loads)
	}
	if _, ok := k2.pos.Get(0); ok {
		t.Fatal("kind load hook should drop stale payloads")
	}
	if got := loaded.CreateEntity(nil).ID; got != 1 {
		t.Fatalf("expected id 1 from the reuse pool, got %d", got)
	}
	checkPartition(t, loaded)

	n := 0
	for range loaded.All() {
		n++
	}
	if n != 3 {
		t.Fatalf("loaded entities should be active, iterated %d", n)
	}
}

func TestLoadRejectsBadSnapshots(t *testing.T) {
	w, k := setupWorld(t)
	w.CreateEntity(func(e Entity) { w.AddComponent(e.ID, k.tag) })
	w.CreateEntity(func(e Entity) { w.AddComponent(e.ID, k.marker) })

	var good bytes.Buffer
	if err := w.Save(&good); err != nil {
		t.Fatalf("save: %v", err)
	}
	unknown := make([]byte, 16)
	binary.LittleEndian.PutUint64(unknown, 1)
	binary.LittleEndian.PutUint64(unknown[8:], 1<<40)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrSnapshotTruncated},
		{"short header", []byte{1, 2, 3}, ErrSnapshotTruncated},
		{"missing masks", good.Bytes()[:12], ErrSnapshotTruncated},
		{"trailing bytes", append(append([]byte{}, good.Bytes()...), 0, 0, 0, 0, 0, 0, 0, 0), ErrSnapshotFormat},
		{"unregistered kind", unknown, ErrSnapshotFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Load(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if w.LiveCount() != 2 || !w.Entity(0).Has(k.tag) || !w.Entity(1).Has(k.marker) {
				t.Fatal("failed load modified the world")
			}
			checkPartition(t, w)
		})
	}
}

func TestLoadWhileSuspendedPanics(t *testing.T) {
	w, _ := setupWorld(t)
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	s := w.Suspend()
	mustPanic(t, func() { _ = w.Load(bytes.NewReader(buf.Bytes())) })
	s.Release()
	if err := w.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("load after release: %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestSaveSurfacesWriteErrors(t *testing.T) {
	w, _ := setupWorld(t)
	if err := w.Save(failingWriter{}); err == nil {
		t.Fatal("expected write error")
	}
}

func TestSnapshotWidthFollowsRegistry(t *testing.T) {
	reg := NewRegistry()
	var last KindID
	for i := 0; i < 70; i++ {
		last = reg.RegisterTag(string(rune('a'+i%26)) + string(rune('0'+i/26)))
	}
	w := NewWorld(reg)
	w.CreateEntity(func(e Entity) { w.AddComponent(e.ID, last) })

	if reg.MaskWords() != 2 {
		t.Fatalf("70 kinds should need 2 words, got %d", reg.MaskWords())
	}
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	if buf.Len() != 8+16 {
		t.Fatalf("expected 24 bytes, got %d", buf.Len())
	}
	if err := w.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !w.Entity(0).Has(last) {
		t.Fatal("high kind bit lost in round trip")
	}
}

func TestLoadIndexesFreshCompositions(t *testing.T) {
	w, k := setupWorld(t)
	for i := 0; i < 3; i++ {
		w.CreateEntity(func(e Entity) { w.AddComponent(e.ID, k.tag) })
	}
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Loading over the same compositions must not double-index anything.
	if err := w.Load(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}
	n := 0
	for range w.Matching(NewFilter(With(k.tag))) {
		n++
	}
	if n != 3 {
		t.Fatalf("expected 3 tagged entities after load, got %d", n)
	}
	checkPartition(t, w)
}

func TestLoadBoundsRecordCountWithoutKinds(t *testing.T) {
	w := NewWorld(NewRegistry())
	huge := make([]byte, 8)
	binary.LittleEndian.PutUint64(huge, 1<<31-2)
	if err := w.Load(bytes.NewReader(huge)); !errors.Is(err, ErrSnapshotFormat) {
		t.Fatalf("expected ErrSnapshotFormat, got %v", err)
	}

	small := make([]byte, 8)
	binary.LittleEndian.PutUint64(small, 3)
	if err := w.Load(bytes.NewReader(small)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if w.FreeCount() != 3 || w.LiveCount() != 0 {
		t.Fatalf("expected 3 free slots, got free=%d live=%d", w.FreeCount(), w.LiveCount())
	}
}
