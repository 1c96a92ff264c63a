package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/l1jgo/archestore/internal/config"
	"go.uber.org/zap"
)

const pingTimeout = 5 * time.Second

// DB is the Postgres pool behind SnapshotRepo.
type DB struct {
	Pool    *pgxpool.Pool
	Version int64 // snapshot schema version after OpenDB
	log     *zap.Logger
}

// OpenDB connects, checks the connection and brings the snapshot schema up
// to date. The returned DB is ready for NewSnapshotRepo.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	poolCfg.MinConns = int32(min(cfg.MaxIdleConns, int(poolCfg.MaxConns)))
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	db := &DB{Pool: pool, log: log.Named("db")}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if db.Version, err = db.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	db.log.Info("snapshot database ready",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int64("schema", db.Version))
	return db, nil
}

func (db *DB) Close() {
	db.Pool.Close()
	db.log.Debug("snapshot database closed")
}
