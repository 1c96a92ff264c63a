package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SnapshotInfo describes one stored snapshot without its data.
type SnapshotInfo struct {
	ID        uuid.UUID
	Records   int64
	Bytes     int
	CreatedAt time.Time
}

// SnapshotRepo stores snapshots in the world_snapshots table, one row per
// save, keeping the newest keep rows per server.
type SnapshotRepo struct {
	db       *DB
	serverID int
	keep     int
}

func NewSnapshotRepo(db *DB, serverID, keep int) *SnapshotRepo {
	if keep < 1 {
		keep = 1
	}
	return &SnapshotRepo{db: db, serverID: serverID, keep: keep}
}

// Save inserts the snapshot and prunes old rows in one transaction.
func (r *SnapshotRepo) Save(ctx context.Context, data []byte) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sum := checksum(data)
	id := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO world_snapshots (snapshot_id, server_id, records, checksum, data)
		 VALUES ($1, $2, $3, $4, $5)`,
		id.String(), r.serverID, recordCount(data), sum[:], data,
	); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM world_snapshots
		 WHERE server_id = $1 AND id NOT IN (
		     SELECT id FROM world_snapshots WHERE server_id = $1 ORDER BY id DESC LIMIT $2)`,
		r.serverID, r.keep,
	)
	if err != nil {
		return fmt.Errorf("snapshot prune: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("snapshot commit: %w", err)
	}
	r.db.log.Debug("snapshot stored",
		zap.Stringer("snapshot", id), zap.Int("bytes", len(data)), zap.Int64("pruned", tag.RowsAffected()))
	return nil
}

// Latest returns the newest snapshot for this server.
func (r *SnapshotRepo) Latest(ctx context.Context) ([]byte, error) {
	var (
		id   string
		sum  []byte
		data []byte
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT snapshot_id::text, checksum, data FROM world_snapshots
		 WHERE server_id = $1 ORDER BY id DESC LIMIT 1`,
		r.serverID,
	).Scan(&id, &sum, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot select: %w", err)
	}
	if err := verify(data, sum); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return data, nil
}

// Count returns how many snapshots are kept for this server.
func (r *SnapshotRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM world_snapshots WHERE server_id = $1`, r.serverID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("snapshot count: %w", err)
	}
	return n, nil
}

// List returns the retained snapshots for this server, newest first.
func (r *SnapshotRepo) List(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT snapshot_id::text, records, octet_length(data), created_at
		 FROM world_snapshots WHERE server_id = $1 ORDER BY id DESC`,
		r.serverID,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot list: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var (
			info SnapshotInfo
			id   string
		)
		if err := rows.Scan(&id, &info.Records, &info.Bytes, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("snapshot id %q: %w", id, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
