// Package store persists user accounts and saved CVs in Postgres via the
// pgx stdlib driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cvbuilder/internal/config"
)

var (
	// ErrNotFound signals that the requested row does not exist or is not
	// owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken signals that a user with this email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CV is one saved résumé document. Data is the structured CV payload as
// JSON, validated against the CV schema before it gets here.
type CV struct {
	ID        string
	OwnerID   string
	Country   string
	Title     string
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

var database struct {
	sync.Mutex
	dsn string
	db  *sql.DB
}

func postgresPort(cfg config.PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg config.PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	// Handle IPv6 or explicit host:port strings.
	if strings.HasPrefix(hostPort, "[") {
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	} else if strings.Count(hostPort, ":") >= 2 {
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	} else if !strings.Contains(hostPort, ":") {
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func getDB(cfg config.PostgresConfig) (*sql.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	database.Lock()
	defer database.Unlock()

	if database.db != nil && database.dsn == dsn {
		return database.db, nil
	}
	if database.db != nil {
		_ = database.db.Close()
		database.db = nil
		database.dsn = ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	database.db = db
	database.dsn = dsn
	return database.db, nil
}

// Store wraps the database handle with the queries the handlers need.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(cfg config.PostgresConfig) (*Store, error) {
	db, err := getDB(cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing handle. Intended for tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS cvs (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			country TEXT NOT NULL,
			title TEXT NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cvs_owner ON cvs (owner_id);`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser inserts a new account. Returns ErrEmailTaken when the email
// is already registered.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		u.ID, u.Email, u.PasswordHash,
	)
	if err != nil && strings.Contains(err.Error(), "unique") {
		return ErrEmailTaken
	}
	return err
}

// UserByEmail fetches an account by email. Returns ErrNotFound when no
// such user exists.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// SaveCV inserts or updates a CV owned by cv.OwnerID.
func (s *Store) SaveCV(ctx context.Context, cv CV) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cvs (id, owner_id, country, title, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
			country = EXCLUDED.country,
			title = EXCLUDED.title,
			data = EXCLUDED.data,
			updated_at = now()
		 WHERE cvs.owner_id = EXCLUDED.owner_id`,
		cv.ID, cv.OwnerID, cv.Country, cv.Title, cv.Data,
	)
	return err
}

// CVByID fetches one CV, scoped to its owner.
func (s *Store) CVByID(ctx context.Context, id, ownerID string) (CV, error) {
	var cv CV
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, country, title, data, created_at, updated_at
		 FROM cvs WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&cv.ID, &cv.OwnerID, &cv.Country, &cv.Title, &cv.Data, &cv.CreatedAt, &cv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CV{}, ErrNotFound
	}
	return cv, err
}

// PreviewCV fetches one CV by id without owner scoping. Only the preview
// page uses this; preview URLs are constructed server-side for the
// exporter, so the id is trusted same-origin input.
func (s *Store) PreviewCV(ctx context.Context, id string) (CV, error) {
	var cv CV
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, country, title, data, created_at, updated_at
		 FROM cvs WHERE id = $1`,
		id,
	).Scan(&cv.ID, &cv.OwnerID, &cv.Country, &cv.Title, &cv.Data, &cv.CreatedAt, &cv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CV{}, ErrNotFound
	}
	return cv, err
}

// ListCVs returns all CVs owned by ownerID, newest first.
func (s *Store) ListCVs(ctx context.Context, ownerID string) ([]CV, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, country, title, data, created_at, updated_at
		 FROM cvs WHERE owner_id = $1 ORDER BY updated_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CV
	for rows.Next() {
		var cv CV
		if err := rows.Scan(&cv.ID, &cv.OwnerID, &cv.Country, &cv.Title, &cv.Data, &cv.CreatedAt, &cv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, cv)
	}
	return out, rows.Err()
}

// DeleteCV removes one CV, scoped to its owner. Returns ErrNotFound when
// nothing was deleted.
func (s *Store) DeleteCV(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cvs WHERE id = $1 AND owner_id = $2`, id, ownerID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
