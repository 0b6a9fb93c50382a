// Command migrate runs the SQL schema migrations against Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"veritas/internal/config"
	"veritas/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|down|status|version>")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != config.StorePostgres {
		return fmt.Errorf("sql migrations only apply to the postgres store (STORE_DRIVER=%s)", cfg.StoreDriver)
	}

	db, err := database.OpenSQL(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	m, err := database.NewMigrator(db, config.StorePostgres)
	if err != nil {
		return err
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		if err := m.Up(ctx); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "down":
		if err := m.Down(ctx); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Println("rolled back latest migration")
	case "status":
		applied, err := m.Applied(ctx)
		if err != nil {
			return err
		}
		all, err := database.GetMigrations()
		if err != nil {
			return err
		}
		done := make(map[int64]bool, len(applied))
		for _, v := range applied {
			done[v] = true
		}
		for _, mig := range all {
			state := "pending"
			if done[mig.Version] {
				state = "applied"
			}
			log.Printf("%-8s %s", state, mig)
		}
	case "version":
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		log.Printf("schema version %d", v)
	default:
		return usage()
	}

	return nil
}
