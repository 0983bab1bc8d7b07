package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"opportunity-hunter/migrations"
	"opportunity-hunter/pkg/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = "usage: migrate [up|down|version|status] [steps]"

var (
	loadEnvFunc = godotenv.Load
	openPool    = func(ctx context.Context, dsn string) (migrationPool, error) {
		return pgxpool.New(ctx, dsn)
	}
	exitFunc = os.Exit
)

// migrationPool is the pgxpool subset the runner needs.
type migrationPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func main() {
	_ = loadEnvFunc()

	logger, err := logging.New(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	if err := run(context.Background(), logger, os.Args[1:]); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		exitFunc(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	all, err := loadMigrations(migrations.FS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := openPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	r := &runner{pool: pool, logger: logger}
	if err := r.ensureTable(ctx); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	switch args[0] {
	case "up":
		n, err := r.up(ctx, all)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int("count", n))
	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps <= 0 {
				return fmt.Errorf("invalid down steps %q", args[1])
			}
		}
		n, err := r.down(ctx, all, steps)
		if err != nil {
			return err
		}
		logger.Info("migrations rolled back", zap.Int("count", n))
	case "version":
		version, name, err := r.current(ctx)
		if err != nil {
			return err
		}
		logger.Info("current schema version", zap.Int64("version", version), zap.String("name", name))
	case "status":
		applied, err := r.applied(ctx)
		if err != nil {
			return err
		}
		for _, m := range pending(all, applied) {
			logger.Info("pending migration", zap.Int64("version", m.Version), zap.String("name", m.Name))
		}
	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	return nil
}

var migrationFilePattern = regexp.MustCompile(`^([0-9]+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// loadMigrations pairs up/down files by version and returns them ascending.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration)
	for _, p := range paths {
		m := migrationFilePattern.FindStringSubmatch(p)
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename: %s", p)
		}
		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version in %s: %w", p, err)
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("empty migration file: %s", p)
		}

		entry, ok := byVersion[version]
		if !ok {
			entry = &migration{Version: version, Name: m[2]}
			byVersion[version] = entry
		}
		if entry.Name != m[2] {
			return nil, fmt.Errorf("version %d has two names: %s and %s", version, entry.Name, m[2])
		}
		target := &entry.UpSQL
		if m[3] == "down" {
			target = &entry.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", m[3], version)
		}
		*target = body
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %d needs both up and down files", m.Version)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// pending returns migrations not yet applied, ascending.
func pending(migrations []migration, applied map[int64]struct{}) []migration {
	var out []migration
	for _, m := range migrations {
		if _, ok := applied[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// rollbackPlan picks the applied migrations to revert, newest first.
func rollbackPlan(migrations []migration, applied map[int64]struct{}, steps int) ([]migration, error) {
	known := make(map[int64]bool, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
	}
	for v := range applied {
		if !known[v] {
			return nil, fmt.Errorf("no migration source for applied version %d", v)
		}
	}

	var out []migration
	for i := len(migrations) - 1; i >= 0 && len(out) < steps; i-- {
		if _, ok := applied[migrations[i].Version]; ok {
			out = append(out, migrations[i])
		}
	}
	return out, nil
}

type runner struct {
	pool   migrationPool
	logger *zap.Logger
}

func (r *runner) ensureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    name        TEXT NOT NULL,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`)
	return err
}

func (r *runner) applied(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(versions))
	for _, v := range versions {
		out[v] = struct{}{}
	}
	return out, nil
}

func (r *runner) up(ctx context.Context, migrations []migration) (int, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range pending(migrations, applied) {
		err := r.inTx(ctx, m.UpSQL, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
		if err != nil {
			return count, fmt.Errorf("version %d up: %w", m.Version, err)
		}
		r.logger.Info("applied", zap.Int64("version", m.Version), zap.String("name", m.Name))
		count++
	}
	return count, nil
}

func (r *runner) down(ctx context.Context, migrations []migration, steps int) (int, error) {
	applied, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	plan, err := rollbackPlan(migrations, applied, steps)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, m := range plan {
		if err := r.inTx(ctx, m.DownSQL, `DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
			return count, fmt.Errorf("version %d down: %w", m.Version, err)
		}
		r.logger.Info("rolled back", zap.Int64("version", m.Version), zap.String("name", m.Name))
		count++
	}
	return count, nil
}

// inTx runs a migration body and its bookkeeping statement atomically.
func (r *runner) inTx(ctx context.Context, body, bookkeeping string, args ...any) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, body); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *runner) current(ctx context.Context) (int64, string, error) {
	var (
		version int64
		name    string
	)
	err := r.pool.QueryRow(ctx, `SELECT version, name FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", nil
	}
	return version, name, err
}
