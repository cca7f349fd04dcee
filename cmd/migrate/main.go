package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: STOREFRONT_POSTGRES_DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("STOREFRONT_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			fail("migrate up failed: %v", err)
		}
		printStatus(ctx, store, "migrate up ok")
	case "down":
		if err := store.MigrateDown(ctx, steps); err != nil {
			fail("migrate down failed: %v", err)
		}
		printStatus(ctx, store, "migrate down ok")
	case "status":
		printStatus(ctx, store, "migration status")
	default:
		fail("unsupported direction: %s (use up|down|status)", direction)
	}
}

func printStatus(ctx context.Context, store *postgres.Store, prefix string) {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	fmt.Println(formatState(prefix, state))
}

func formatState(prefix string, state postgres.MigrationState) string {
	return fmt.Sprintf("%s: version=%d applied=%d pending=%d", prefix, state.Version, state.Applied, state.Pending)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
