package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	migrationsDir = "sql/migrations"
	// migrationLockKey — ключ pg_advisory_lock, сериализующий параллельные запуски миграций.
	migrationLockKey  = int64(20261019)
	migrationTableDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	embeddedMigrations embed.FS

	migrationFileName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

// MigrationDirection — направление применения миграций.
type MigrationDirection string

const (
	// MigrationUp применяет миграции.
	MigrationUp MigrationDirection = "up"
	// MigrationDown откатывает миграции.
	MigrationDown MigrationDirection = "down"
)

// MigrationState описывает состояние схемы.
type MigrationState struct {
	Version int64
	Applied int
	Pending int
}

type migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

func (m migration) script(direction MigrationDirection) string {
	if direction == MigrationDown {
		return m.Down
	}
	return m.Up
}

// MigrateUp применяет up-миграции. steps=0 означает "все доступные".
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.Migrate(ctx, MigrationUp, steps)
}

// MigrateDown откатывает миграции. steps<=0 трактуется как один шаг.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.Migrate(ctx, MigrationDown, steps)
}

// Migrate применяет или откатывает до steps миграций под advisory lock.
func (s *Store) Migrate(ctx context.Context, direction MigrationDirection, steps int) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	if direction != MigrationUp && direction != MigrationDown {
		return fmt.Errorf("unsupported migration direction: %q", direction)
	}

	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockKey)
	}()

	if _, err := conn.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	plan := planMigrations(migrations, applied, direction, steps)
	for _, m := range plan {
		if err := runMigration(ctx, conn, m, direction); err != nil {
			return err
		}
	}
	return nil
}

// MigrationStatus возвращает текущую версию схемы и число применённых и ожидающих миграций.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, errStoreNotInitialized
	}

	migrations, err := parseMigrations(embeddedMigrations)
	if err != nil {
		return MigrationState{}, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(queryCtx, migrationTableDDL); err != nil {
		return MigrationState{}, fmt.Errorf("ensure migration table: %w", err)
	}

	var state MigrationState
	if err := s.db.QueryRowContext(queryCtx, `
		SELECT COALESCE(MAX(version), 0), COUNT(*)
		FROM schema_migrations
	`).Scan(&state.Version, &state.Applied); err != nil {
		return MigrationState{}, fmt.Errorf("query migration status: %w", err)
	}
	if pending := len(migrations) - state.Applied; pending > 0 {
		state.Pending = pending
	}
	return state, nil
}

// planMigrations выбирает миграции для применения: возрастающие неприменённые для up,
// убывающие применённые для down.
func planMigrations(all []migration, applied map[int64]bool, direction MigrationDirection, steps int) []migration {
	plan := make([]migration, 0, len(all))
	if direction == MigrationUp {
		for _, m := range all {
			if !applied[m.Version] {
				plan = append(plan, m)
			}
		}
	} else {
		for i := len(all) - 1; i >= 0; i-- {
			if applied[all[i].Version] {
				plan = append(plan, all[i])
			}
		}
	}
	if steps > 0 && len(plan) > steps {
		plan = plan[:steps]
	}
	return plan
}

func runMigration(ctx context.Context, conn *sql.Conn, m migration, direction MigrationDirection) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (%s %d): %w", direction, m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.script(direction)); err != nil {
		return fmt.Errorf("execute %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}

	if direction == MigrationUp {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s migration %d_%s: %w", direction, m.Version, m.Name, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]bool)
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		result[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return result, nil
}

// parseMigrations читает пары NNNN_name.up.sql / NNNN_name.down.sql из fsys.
func parseMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsDir+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, file := range files {
		base := path.Base(file)
		parts := migrationFileName.FindStringSubmatch(base)
		if parts == nil {
			return nil, fmt.Errorf("invalid migration file name: %s", base)
		}

		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version from %s: %w", base, err)
		}

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", file, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration file is empty: %s", base)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: parts[2]}
			byVersion[version] = m
		} else if m.Name != parts[2] {
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", version, m.Name, parts[2])
		}

		target := &m.Up
		if MigrationDirection(parts[3]) == MigrationDown {
			target = &m.Down
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", parts[3], version)
		}
		*target = body
	}

	result := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" || m.Down == "" {
			return nil, fmt.Errorf("migration %d_%s must have both up and down files", m.Version, m.Name)
		}
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}
