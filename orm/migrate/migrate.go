// Package migrate applies embedded SQL migrations to PostgreSQL inside a single
// advisory-locked transaction and records them in pizzeria_schema_migrations.
package migrate

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deicod/pizzeria/errors"
)

const (
	defaultDirectory = "migrations"
	// "pizza" in ASCII.
	defaultAdvisoryLock = int64(0x70697a7a61)

	trackingTable = "pizzeria_schema_migrations"
)

var (
	createTrackingSQL = `CREATE TABLE IF NOT EXISTS ` + trackingTable + ` (
    version    text PRIMARY KEY,
    name       text NOT NULL,
    applied_at timestamptz NOT NULL DEFAULT now()
)`
	listAppliedSQL  = "SELECT version FROM " + trackingTable + " ORDER BY applied_at, version"
	latestSQL       = "SELECT version FROM " + trackingTable + " ORDER BY applied_at DESC, version DESC LIMIT 1"
	recordSQL       = "INSERT INTO " + trackingTable + " (version, name) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	forgetSQL       = "DELETE FROM " + trackingTable + " WHERE version = $1"
	advisoryLockSQL = "SELECT pg_advisory_xact_lock($1)"
)

// ErrNoAppliedMigrations is returned by Rollback when nothing has been applied.
var ErrNoAppliedMigrations = errors.New("migrate: no applied migrations to rollback")

// Direction distinguishes forward scripts from their rollback counterparts.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}
	return "up"
}

// TxStarter is satisfied by *pgx.Conn, *pgxpool.Pool and the pgxmock doubles.
type TxStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Migration is one SQL file found in the migrations directory.
type Migration struct {
	Version   string
	Name      string
	Path      string
	Direction Direction
}

// Options configures discovery and locking.
type Options struct {
	Directory      string
	BatchSize      int
	AdvisoryLockID int64
}

// Option mutates Options.
type Option func(*Options)

// WithDirectory changes the directory scanned inside the fs.FS.
func WithDirectory(dir string) Option {
	return func(o *Options) {
		if dir != "" {
			o.Directory = dir
		}
	}
}

// WithBatchSize caps how many pending migrations a single Apply runs.
func WithBatchSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.BatchSize = size
		}
	}
}

// WithAdvisoryLock overrides the pg_advisory_xact_lock key.
func WithAdvisoryLock(id int64) Option {
	return func(o *Options) {
		if id != 0 {
			o.AdvisoryLockID = id
		}
	}
}

// Plan describes the pending work without executing it.
type Plan struct {
	Pending []Migration
	Applied []string
}

// DriftError reports recorded versions whose files no longer exist.
type DriftError struct {
	Missing []string
}

func (e DriftError) Error() string {
	return "migrate: schema drift detected: " + strings.Join(e.Missing, ", ")
}

// ParseVersion returns the part of a file name before the first separator.
func ParseVersion(name string) (string, error) {
	stem := strings.TrimSuffix(name, path.Ext(name))
	if stem == "" {
		return "", errors.Newf("migrate: could not derive version from %q", name)
	}
	for _, sep := range []string{"__", "_", "-"} {
		if idx := strings.Index(stem, sep); idx > 0 {
			return stem[:idx], nil
		}
	}
	return stem, nil
}

// Discover lists the .sql files under dir sorted by version. A missing
// directory yields no migrations.
func Discover(ctx context.Context, fsys fs.FS, dir string) ([]Migration, error) {
	if fsys == nil {
		return nil, errors.New("migrate: nil filesystem")
	}
	if dir == "" {
		dir = defaultDirectory
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "migrate: read %s", dir)
	}

	var out []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(path.Ext(entry.Name()), ".sql") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		version, err := ParseVersion(entry.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{
			Version:   version,
			Name:      entry.Name(),
			Path:      path.Join(dir, entry.Name()),
			Direction: directionOf(entry.Name()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		return out[i].Path < out[j].Path
	})

	seen := make(map[string]string, len(out))
	for _, m := range out {
		if m.Direction == Down {
			continue
		}
		if prev, ok := seen[m.Version]; ok {
			return nil, errors.Newf("migrate: duplicate version %q in %s and %s", m.Version, prev, m.Path)
		}
		seen[m.Version] = m.Path
	}
	return out, nil
}

// Inspect returns the pending forward migrations. A missing tracking table
// means nothing has been applied yet.
func Inspect(ctx context.Context, conn TxStarter, fsys fs.FS, opts ...Option) (Plan, error) {
	settings := resolveOptions(opts...)
	ups, err := discoverUp(ctx, fsys, settings.Directory)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	err = locked(ctx, conn, settings, false, func(tx pgx.Tx) error {
		applied, err := appliedVersions(ctx, tx)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
				plan.Pending = limit(ups, settings.BatchSize)
				return nil
			}
			return err
		}
		known := make(map[string]struct{}, len(ups))
		for _, m := range ups {
			known[m.Version] = struct{}{}
		}
		var missing []string
		for _, v := range applied {
			if _, ok := known[v]; !ok {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			return DriftError{Missing: missing}
		}
		plan.Applied = applied
		plan.Pending = limit(pending(ups, applied), settings.BatchSize)
		return nil
	})
	return plan, err
}

// Apply runs every pending forward migration and returns the ones it applied.
func Apply(ctx context.Context, conn TxStarter, fsys fs.FS, opts ...Option) ([]Migration, error) {
	settings := resolveOptions(opts...)
	ups, err := discoverUp(ctx, fsys, settings.Directory)
	if err != nil {
		return nil, err
	}

	var ran []Migration
	err = locked(ctx, conn, settings, true, func(tx pgx.Tx) error {
		applied, err := appliedVersions(ctx, tx)
		if err != nil {
			return err
		}
		for _, m := range limit(pending(ups, applied), settings.BatchSize) {
			if err := execFile(ctx, tx, fsys, m); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, recordSQL, m.Version, m.Name); err != nil {
				return errors.Wrapf(err, "migrate: record %s", m.Version)
			}
			ran = append(ran, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ran, nil
}

// Rollback reverts the most recently applied migration using its down script.
func Rollback(ctx context.Context, conn TxStarter, fsys fs.FS, opts ...Option) (Migration, error) {
	settings := resolveOptions(opts...)
	all, err := Discover(ctx, fsys, settings.Directory)
	if err != nil {
		return Migration{}, err
	}
	ups := make(map[string]Migration)
	downs := make(map[string]Migration)
	for _, m := range all {
		if m.Direction == Down {
			downs[m.Version] = m
		} else {
			ups[m.Version] = m
		}
	}

	var reverted Migration
	err = locked(ctx, conn, settings, true, func(tx pgx.Tx) error {
		var latest string
		if err := tx.QueryRow(ctx, latestSQL).Scan(&latest); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoAppliedMigrations
			}
			return errors.Wrap(err, "migrate: inspect applied migrations")
		}
		if _, ok := ups[latest]; !ok {
			return DriftError{Missing: []string{latest}}
		}
		down, ok := downs[latest]
		if !ok {
			return errors.Newf("migrate: no rollback script for version %s", latest)
		}
		if err := execFile(ctx, tx, fsys, down); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, forgetSQL, latest); err != nil {
			return errors.Wrapf(err, "migrate: remove %s", latest)
		}
		reverted = down
		return nil
	})
	return reverted, err
}

// locked runs fn in a transaction holding the advisory lock. The tracking
// table is created first when ensure is set. Only a successful write run commits.
func locked(ctx context.Context, conn TxStarter, settings Options, ensure bool, fn func(pgx.Tx) error) error {
	if conn == nil {
		return errors.New("migrate: nil connection")
	}
	tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "migrate: begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, advisoryLockSQL, settings.AdvisoryLockID); err != nil {
		return errors.Wrap(err, "migrate: acquire advisory lock")
	}
	if ensure {
		if _, err := tx.Exec(ctx, createTrackingSQL); err != nil {
			return errors.Wrap(err, "migrate: ensure tracking table")
		}
	}
	if err := fn(tx); err != nil {
		return err
	}
	if !ensure {
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "migrate: commit transaction")
	}
	committed = true
	return nil
}

func appliedVersions(ctx context.Context, tx pgx.Tx) ([]string, error) {
	rows, err := tx.Query(ctx, listAppliedSQL)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "migrate: read applied versions")
	}
	return versions, nil
}

func discoverUp(ctx context.Context, fsys fs.FS, dir string) ([]Migration, error) {
	all, err := Discover(ctx, fsys, dir)
	if err != nil {
		return nil, err
	}
	ups := all[:0:0]
	for _, m := range all {
		if m.Direction == Up {
			ups = append(ups, m)
		}
	}
	return ups, nil
}

func pending(ups []Migration, applied []string) []Migration {
	done := make(map[string]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var out []Migration
	for _, m := range ups {
		if _, ok := done[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func limit(ms []Migration, n int) []Migration {
	if n > 0 && len(ms) > n {
		return ms[:n]
	}
	return ms
}

func execFile(ctx context.Context, tx pgx.Tx, fsys fs.FS, m Migration) error {
	raw, err := fs.ReadFile(fsys, m.Path)
	if err != nil {
		return errors.Wrapf(err, "migrate: %s", m.Path)
	}
	if _, err := tx.Exec(ctx, string(raw)); err != nil {
		return wrapExecError(m.Path, string(raw), err)
	}
	return nil
}

func resolveOptions(opts ...Option) Options {
	settings := Options{Directory: defaultDirectory, AdvisoryLockID: defaultAdvisoryLock}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return settings
}

func directionOf(name string) Direction {
	lower := strings.ToLower(name)
	for _, marker := range []string{".down.", "_down.sql", "-down.sql", ".rollback."} {
		if strings.Contains(lower, marker) {
			return Down
		}
	}
	return Up
}

// wrapExecError prefixes the failure with file:line[:column] when Postgres
// reports where the statement broke.
func wrapExecError(file, sql string, execErr error) error {
	var pgErr *pgconn.PgError
	if errors.As(execErr, &pgErr) {
		if pgErr.Line > 0 {
			return errors.Wrapf(execErr, "%s:%d", file, pgErr.Line)
		}
		if pgErr.Position > 0 {
			line, col := lineColumn(sql, int(pgErr.Position))
			return errors.Wrapf(execErr, "%s:%d:%d", file, line, col)
		}
	}
	return errors.Wrap(execErr, file)
}

// lineColumn converts a 1-based character offset into a line and column.
func lineColumn(sql string, position int) (int, int) {
	line, col := 1, 1
	for i, r := range []rune(sql) {
		if i+1 >= position {
			break
		}
		if r == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
