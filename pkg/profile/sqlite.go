package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/gatekeeper/pkg/limits"
)

// SQLiteStore persists profiles in a SQLite database. It suits
// deployments where profiles are managed by API or CLI rather than a file.
//
// Only rule strings are stored; limiter state always lives in memory.
type SQLiteStore struct {
	listeners
	db        *sql.DB
	logger    *slog.Logger
	closeOnce sync.Once

	getStmt    *sql.Stmt
	listStmt   *sql.Stmt
	upsertStmt *sql.Stmt
	deleteStmt *sql.Stmt
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (and if needed creates) the profile database.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "profile.sqlite"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	s.logger.Info("profile database opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenant_profiles (
		tenant_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		tenant_rules TEXT NOT NULL DEFAULT '',
		customer_rules TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT tenant_id, name, tenant_rules, customer_rules, updated_at
		FROM tenant_profiles
		WHERE tenant_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT tenant_id, name, tenant_rules, customer_rules, updated_at
		FROM tenant_profiles
		ORDER BY tenant_id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.upsertStmt, err = s.db.Prepare(`
		INSERT INTO tenant_profiles (tenant_id, name, tenant_rules, customer_rules, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			name = excluded.name,
			tenant_rules = excluded.tenant_rules,
			customer_rules = excluded.customer_rules,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM tenant_profiles WHERE tenant_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p         Profile
		tenant    string
		updatedAt int64
	)
	if err := row.Scan(&tenant, &p.Name, &p.RateLimits.Tenant, &p.RateLimits.Customer, &updatedAt); err != nil {
		return nil, err
	}
	p.TenantID = limits.TenantID(tenant)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// Get returns the tenant's profile, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, tenant limits.TenantID) (*Profile, error) {
	p, err := scanProfile(s.getStmt.QueryRowContext(ctx, string(tenant)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// List returns all profiles ordered by tenant ID.
func (s *SQLiteStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Put validates and upserts p, then notifies listeners.
func (s *SQLiteStore) Put(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := s.upsertStmt.ExecContext(ctx,
		string(p.TenantID),
		p.Name,
		p.RateLimits.Tenant,
		p.RateLimits.Customer,
		updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.notify(p.TenantID)
	return nil
}

// Delete removes the tenant's profile.
func (s *SQLiteStore) Delete(ctx context.Context, tenant limits.TenantID) error {
	res, err := s.deleteStmt.ExecContext(ctx, string(tenant))
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.notify(tenant)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.getStmt, s.listStmt, s.upsertStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
