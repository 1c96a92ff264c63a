package persist

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/l1jgo/archestore/internal/core/ecs"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrNoSnapshot is returned by Latest when nothing has been saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
	// ErrChecksum means a stored snapshot does not match its checksum.
	ErrChecksum = errors.New("snapshot checksum mismatch")
)

// SnapshotStore keeps serialized worlds. Latest returns the most recent
// snapshot passed to Save.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	Latest(ctx context.Context) ([]byte, error)
}

const checksumSize = blake2b.Size256

func checksum(data []byte) [checksumSize]byte {
	return blake2b.Sum256(data)
}

func verify(data, sum []byte) error {
	want := checksum(data)
	if !bytes.Equal(want[:], sum) {
		return ErrChecksum
	}
	return nil
}

// recordCount reads the header of a snapshot without decoding it.
func recordCount(data []byte) int64 {
	if len(data) < 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(data))
}

// SaveWorld serializes w into store.
func SaveWorld(ctx context.Context, w *ecs.World, store SnapshotStore) error {
	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		return fmt.Errorf("serialize world: %w", err)
	}
	if err := store.Save(ctx, buf.Bytes()); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// LoadWorld replaces w with the latest snapshot in store. It returns
// ErrNoSnapshot, unwrapped, when the store is empty.
func LoadWorld(ctx context.Context, w *ecs.World, store SnapshotStore) error {
	data, err := store.Latest(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	if err := w.Load(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("restore world: %w", err)
	}
	return nil
}
