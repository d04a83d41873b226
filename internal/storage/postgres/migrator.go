package postgres

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsDir = "sql/migrations"
	// schemaLockID сериализует миграции нескольких экземпляров сервиса.
	schemaLockID   = int64(0x53_46_52_4e_54)
	schemaLockWait = 10 * time.Second

	ledgerDDL = `
CREATE TABLE IF NOT EXISTS storefront_schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

//go:embed sql/migrations/*.sql
var migrationFiles embed.FS

var migrationFileName = regexp.MustCompile(`^(\d+)_(\w+)\.(up|down)\.sql$`)

// ErrMigrationDrift означает, что файл уже применённой миграции изменён после применения.
var ErrMigrationDrift = errors.New("applied migration does not match its file")

// schemaMigration объединяет up- и down-скрипты одной версии.
type schemaMigration struct {
	version  int64
	name     string
	up       string
	down     string
	checksum string
}

func (m schemaMigration) String() string {
	return fmt.Sprintf("%04d_%s", m.version, m.name)
}

// MigrationState описывает схему: последнюю применённую версию, число применённых
// и число ещё не применённых миграций.
type MigrationState struct {
	Version int64
	Applied int
	Pending int
}

// EnsureSchema доводит схему до последней версии. Вызывается при старте сервиса.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// MigrateUp применяет до steps неприменённых миграций по возрастанию версии; 0 означает все.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withSchemaLock(ctx, func(r *migrationRun) error {
		return r.forward(ctx, steps)
	})
}

// MigrateDown откатывает steps последних миграций; steps<=0 откатывает одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withSchemaLock(ctx, func(r *migrationRun) error {
		return r.backward(ctx, steps)
	})
}

// MigrationStatus сверяет журнал миграций с файлами и возвращает состояние схемы.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	var state MigrationState
	err := s.withSchemaLock(ctx, func(r *migrationRun) error {
		applied, err := r.ledger(ctx)
		if err != nil {
			return err
		}
		state.Applied = len(applied)
		if n := len(applied); n > 0 {
			state.Version = applied[n-1].version
		}
		state.Pending = len(r.pending(applied))
		return nil
	})
	return state, err
}

// migrationRun выполняет миграции на одном соединении, удерживающем advisory-лок.
type migrationRun struct {
	conn  *sql.Conn
	known []schemaMigration
}

type ledgerEntry struct {
	version  int64
	checksum string
}

func (s *Store) withSchemaLock(ctx context.Context, fn func(r *migrationRun) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	known, err := parseMigrations(migrationFiles)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, schemaLockWait)
	_, err = conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, schemaLockID)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, schemaLockID)
	}()

	if _, err := conn.ExecContext(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	return fn(&migrationRun{conn: conn, known: known})
}

// ledger читает журнал по возрастанию версии и проверяет контрольные суммы.
func (r *migrationRun) ledger(ctx context.Context) ([]ledgerEntry, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT version, checksum FROM storefront_schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	var entries []ledgerEntry
	for rows.Next() {
		var e ledgerEntry
		if err := rows.Scan(&e.version, &e.checksum); err != nil {
			return nil, fmt.Errorf("scan migration ledger: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}

	for _, e := range entries {
		if m, ok := r.lookup(e.version); ok && m.checksum != e.checksum {
			return nil, fmt.Errorf("%w: %s", ErrMigrationDrift, m)
		}
	}
	return entries, nil
}

func (r *migrationRun) lookup(version int64) (schemaMigration, bool) {
	i, found := slices.BinarySearchFunc(r.known, version, func(m schemaMigration, v int64) int {
		return cmp.Compare(m.version, v)
	})
	if !found {
		return schemaMigration{}, false
	}
	return r.known[i], true
}

// pending возвращает известные, но не применённые миграции по возрастанию версии.
func (r *migrationRun) pending(applied []ledgerEntry) []schemaMigration {
	done := make(map[int64]struct{}, len(applied))
	for _, e := range applied {
		done[e.version] = struct{}{}
	}
	var out []schemaMigration
	for _, m := range r.known {
		if _, ok := done[m.version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func (r *migrationRun) forward(ctx context.Context, steps int) error {
	applied, err := r.ledger(ctx)
	if err != nil {
		return err
	}
	todo := r.pending(applied)
	if steps > 0 && len(todo) > steps {
		todo = todo[:steps]
	}
	for _, m := range todo {
		err := r.exec(ctx, m.up, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO storefront_schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
				m.version, m.name, m.checksum)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m, err)
		}
	}
	return nil
}

func (r *migrationRun) backward(ctx context.Context, steps int) error {
	applied, err := r.ledger(ctx)
	if err != nil {
		return err
	}
	for i := len(applied) - 1; i >= 0 && steps > 0; i, steps = i-1, steps-1 {
		m, ok := r.lookup(applied[i].version)
		if !ok {
			return fmt.Errorf("roll back migration %d: no down script", applied[i].version)
		}
		err := r.exec(ctx, m.down, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM storefront_schema_migrations WHERE version = $1`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("roll back migration %s: %w", m, err)
		}
	}
	return nil
}

// exec выполняет скрипт и запись в журнал одной транзакцией.
func (r *migrationRun) exec(ctx context.Context, script string, record func(tx *sql.Tx) error) (err error) {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if err = record(tx); err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	return tx.Commit()
}

// parseMigrations читает пары NNNN_name.up.sql / NNNN_name.down.sql из каталога миграций.
func parseMigrations(fsys fs.FS) ([]schemaMigration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*schemaMigration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts := migrationFileName.FindStringSubmatch(entry.Name())
		if parts == nil {
			return nil, fmt.Errorf("unexpected file in migrations: %s", entry.Name())
		}
		version, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration version in %s: %w", entry.Name(), err)
		}
		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		script := strings.TrimSpace(string(raw))
		if script == "" {
			return nil, fmt.Errorf("migration %s is empty", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &schemaMigration{version: version, name: parts[2]}
			byVersion[version] = m
		}
		if m.name != parts[2] {
			return nil, fmt.Errorf("version %d used by %s and %s", version, m.name, parts[2])
		}
		slot := &m.up
		if parts[3] == "down" {
			slot = &m.down
		}
		if *slot != "" {
			return nil, fmt.Errorf("duplicate %s script for version %d", parts[3], version)
		}
		*slot = script
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migrations found")
	}

	out := make([]schemaMigration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" || m.down == "" {
			return nil, fmt.Errorf("migration %s needs both up and down scripts", m)
		}
		sum := sha256.Sum256([]byte(m.up))
		m.checksum = hex.EncodeToString(sum[:])
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b schemaMigration) int { return cmp.Compare(a.version, b.version) })
	return out, nil
}
