// snapconv moves world snapshots between the file store and PostgreSQL and
// prints a summary of a snapshot's contents.
//
// Usage:
//
//	go run ./cmd/snapconv <command> [-config path] [-file path]
//
// Commands: push (file → postgres), pull (postgres → file), list, inspect
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/l1jgo/archestore/internal/config"
	"github.com/l1jgo/archestore/internal/core/ecs"
	"github.com/l1jgo/archestore/internal/data"
	"github.com/l1jgo/archestore/internal/persist"
	"github.com/l1jgo/archestore/internal/system"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type summaryYAML struct {
	Records    int             `yaml:"records"`
	Live       int             `yaml:"live"`
	Free       int             `yaml:"free"`
	Archetypes []archetypeYAML `yaml:"archetypes"`
}

type archetypeYAML struct {
	Kinds    []string `yaml:"kinds"`
	Entities int      `yaml:"entities"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: snapconv <push|pull|list|inspect> [-config path] [-file path]")
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/server.toml", "server config")
	file := fs.String("file", "", "snapshot file (default: persistence.path)")
	fs.Parse(os.Args[2:])

	if err := run(cmd, *cfgPath, *file); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func run(cmd, cfgPath, file string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if file == "" {
		file = cfg.Persistence.Path
	}
	log := zap.NewNop()
	fileStore := persist.NewFileStore(file, log)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd {
	case "push":
		repo, closeDB, err := openRepo(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		return copySnapshot(ctx, fileStore, repo)
	case "pull":
		repo, closeDB, err := openRepo(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		return copySnapshot(ctx, repo, fileStore)
	case "list":
		repo, closeDB, err := openRepo(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		infos, err := repo.List(ctx)
		if err != nil {
			return err
		}
		for _, in := range infos {
			fmt.Printf("%s  %s  records=%d  bytes=%d\n",
				in.ID, in.CreatedAt.Format(time.RFC3339), in.Records, in.Bytes)
		}
		return nil
	case "inspect":
		return inspect(ctx, cfg, fileStore)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openRepo(ctx context.Context, cfg *config.Config, log *zap.Logger) (*persist.SnapshotRepo, func(), error) {
	db, err := persist.OpenDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return persist.NewSnapshotRepo(db, cfg.Server.ID, cfg.Persistence.Keep), db.Close, nil
}

func copySnapshot(ctx context.Context, from, to persist.SnapshotStore) error {
	snap, err := from.Latest(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := to.Save(ctx, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	fmt.Printf("copied %d bytes\n", len(snap))
	return nil
}

func inspect(ctx context.Context, cfg *config.Config, store persist.SnapshotStore) error {
	defs, err := data.LoadComponentDefs(cfg.Data.Components)
	if err != nil {
		return err
	}
	reg, _ := system.NewRegistry(defs)
	w := ecs.NewWorld(reg, ecs.WithCapacity(cfg.World.InitialCapacity))
	if err := persist.LoadWorld(ctx, w, store); err != nil {
		return err
	}

	out := summaryYAML{
		Records: w.Len(),
		Live:    w.LiveCount(),
		Free:    w.FreeCount(),
	}
	for _, st := range w.ArchetypeStats() {
		if st.Entities == 0 {
			continue
		}
		var kinds []string
		st.Mask.ForEach(func(id ecs.KindID) { kinds = append(kinds, reg.Kind(id).Name()) })
		out.Archetypes = append(out.Archetypes, archetypeYAML{Kinds: kinds, Entities: st.Entities})
	}
	sort.SliceStable(out.Archetypes, func(i, j int) bool {
		return out.Archetypes[i].Entities > out.Archetypes[j].Entities
	})

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
