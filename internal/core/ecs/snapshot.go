package ecs

import (
	"errors"
	"fmt"
	"io"

	"github.com/l1jgo/archestore/internal/codec"
	"go.uber.org/zap"
)

// maxBareRecords caps the record count of a snapshot taken with no kinds
// registered, where the header is the only thing bounding the allocation.
const maxBareRecords = 1 << 20

var (
	ErrSnapshotTruncated = errors.New("snapshot truncated")
	ErrSnapshotFormat    = errors.New("malformed snapshot")
)

// Save writes every record's mask, with non-serializable kinds cleared, as
// [8-byte record count N][N masks]. Each mask is Registry.MaskWords()
// little-endian uint64 words. Observers implementing SaveHook run first.
func (w *World) Save(out io.Writer) error {
	for _, o := range w.observers {
		if h, ok := o.(SaveHook); ok {
			h.OnSave()
		}
	}

	data, n := w.encodeSnapshot()
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.log.Info("world saved", zap.Int("records", n), zap.Int("bytes", len(data)))
	return nil
}

func (w *World) encodeSnapshot() ([]byte, int) {
	keep := w.registry.serializableMask()
	words := w.registry.MaskWords()

	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	n := len(w.entities)
	buf := codec.NewWriter(8 + n*words*8)
	buf.WriteQ(uint64(n))
	for i := range w.entities {
		m := w.entities[i].mask.And(keep)
		buf.WriteWords(m[:words])
	}
	return buf.Bytes(), n
}

func decodeSnapshot(data []byte, words int, known Mask) ([]Mask, error) {
	r := codec.NewReader(data)
	n := r.ReadQ()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read record count: %w", ErrSnapshotTruncated)
	}

	rowSize := uint64(words) * 8
	remaining := uint64(r.Remaining())
	switch {
	case rowSize == 0:
		if remaining != 0 {
			return nil, fmt.Errorf("%d trailing bytes with no registered kinds: %w", remaining, ErrSnapshotFormat)
		}
		if n > maxBareRecords {
			return nil, fmt.Errorf("record count %d exceeds %d: %w", n, maxBareRecords, ErrSnapshotFormat)
		}
	case remaining/rowSize < n:
		return nil, fmt.Errorf("%d records need %d bytes, have %d: %w", n, n*rowSize, remaining, ErrSnapshotTruncated)
	case remaining != n*rowSize:
		return nil, fmt.Errorf("%d records of %d bytes leave %d trailing bytes: %w",
			n, rowSize, remaining-n*rowSize, ErrSnapshotFormat)
	}

	masks := make([]Mask, n)
	for i := range masks {
		r.ReadWords(masks[i][:words])
		if masks[i].And(known) != masks[i] {
			return nil, fmt.Errorf("record %d carries unregistered kinds: %w", i, ErrSnapshotFormat)
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read masks: %w", ErrSnapshotTruncated)
	}
	return masks, nil
}

// Load replaces the whole world with a snapshot written by Save. The stream
// is decoded before anything is touched, so a truncated or malformed
// snapshot leaves the world as it was.
//
// On success the index and reuse pool are cleared, observers are told every
// live entity is gone, each kind's load hook runs, then every non-zero
// record is indexed and announced and every zero record goes to the reuse
// pool. Loading while a suspension is open panics.
func (w *World) Load(in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	masks, err := decodeSnapshot(data, w.registry.MaskWords(), w.registry.knownMask())
	if err != nil {
		return err
	}
	w.replace(masks)
	return nil
}

func (w *World) replace(masks []Mask) {
	w.updatesMu.Lock()
	if w.depth != 0 {
		w.updatesMu.Unlock()
		panic("ecs: load while suspended")
	}
	stale := w.liveEntities()
	w.index.reset()
	w.pool.reset()
	w.updatesMu.Unlock()

	for _, e := range stale {
		for _, o := range w.observers {
			o.RemoveEntity(e)
		}
	}
	for _, k := range w.registry.Kinds() {
		k.Load()
	}

	records := make([]record, len(masks), max(len(masks), w.capacity))
	fresh := make([]Entity, 0, len(masks))

	for i, m := range masks {
		id := EntityID(i)
		if m.IsZero() {
			records[i] = record{shouldActivateAfterInit: true}
			continue
		}
		records[i] = record{active: true, shouldActivateAfterInit: true, alive: true}
		fresh = append(fresh, Entity{ID: id, Mask: m})
	}

	w.updatesMu.Lock()
	w.entitiesMu.Lock()
	w.entities = records
	w.entitiesMu.Unlock()
	for i, m := range masks {
		if m.IsZero() {
			w.pool.put(EntityID(i))
		}
	}
	for _, e := range fresh {
		w.doUpdateMask(e.ID, e.Mask, true)
	}
	w.updatesMu.Unlock()

	for _, e := range fresh {
		for _, o := range w.observers {
			o.RegisterEntity(e)
		}
	}
	for _, o := range w.observers {
		if h, ok := o.(LoadHook); ok {
			h.OnLoad()
		}
	}
	w.log.Info("world loaded",
		zap.Int("records", len(masks)), zap.Int("live", len(fresh)), zap.Int("free", len(masks)-len(fresh)))
}

// caller holds updatesMu
func (w *World) liveEntities() []Entity {
	w.entitiesMu.RLock()
	defer w.entitiesMu.RUnlock()
	out := make([]Entity, 0, len(w.entities))
	for i := range w.entities {
		if w.entities[i].alive {
			out = append(out, Entity{ID: EntityID(i), Mask: w.entities[i].mask})
		}
	}
	return out
}
