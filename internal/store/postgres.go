package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    username      TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    locale        TEXT NOT NULL DEFAULT 'en',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS saved_tables (
    id        TEXT PRIMARY KEY,
    owner     TEXT NOT NULL REFERENCES users(username),
    name      TEXT NOT NULL,
    game_type TEXT NOT NULL,
    snapshot  BYTEA NOT NULL,
    saved_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS saved_tables_owner_idx ON saved_tables(owner);
`

// Postgres is the pgx-backed Store.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the given DSN and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	row := p.pool.QueryRow(ctx,
		`SELECT username, password_hash, locale, created_at FROM users WHERE username = $1`, username)
	if err := row.Scan(&u.Username, &u.PasswordHash, &u.Locale, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash, locale) VALUES ($1, $2, $3)
         ON CONFLICT (username) DO NOTHING`,
		u.Username, u.PasswordHash, u.Locale)
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (p *Postgres) UpdateUserLocale(ctx context.Context, username, locale string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET locale = $2 WHERE username = $1`, username, locale)
	if err != nil {
		return fmt.Errorf("store: update locale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PutSave(ctx context.Context, s SavedTable) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO saved_tables (id, owner, name, game_type, snapshot, saved_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (id) DO UPDATE SET snapshot = $5, saved_at = $6`,
		s.ID, s.Owner, s.Name, s.GameType, s.Snapshot, s.SavedAt)
	if err != nil {
		return fmt.Errorf("store: put save: %w", err)
	}
	return nil
}

func (p *Postgres) GetSave(ctx context.Context, id string) (SavedTable, error) {
	var s SavedTable
	row := p.pool.QueryRow(ctx,
		`SELECT id, owner, name, game_type, snapshot, saved_at FROM saved_tables WHERE id = $1`, id)
	if err := row.Scan(&s.ID, &s.Owner, &s.Name, &s.GameType, &s.Snapshot, &s.SavedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SavedTable{}, ErrNotFound
		}
		return SavedTable{}, fmt.Errorf("store: get save: %w", err)
	}
	return s, nil
}

func (p *Postgres) ListSaves(ctx context.Context, owner string) ([]SavedTable, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner, name, game_type, snapshot, saved_at
         FROM saved_tables WHERE owner = $1 ORDER BY saved_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("store: list saves: %w", err)
	}
	defer rows.Close()

	var out []SavedTable
	for rows.Next() {
		var s SavedTable
		if err := rows.Scan(&s.ID, &s.Owner, &s.Name, &s.GameType, &s.Snapshot, &s.SavedAt); err != nil {
			return nil, fmt.Errorf("store: scan save: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSave(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM saved_tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete save: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
