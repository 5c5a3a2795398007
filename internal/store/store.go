// Package store persists user accounts and saved tables. The server talks to
// the Store interface; Postgres backs production and the in-memory
// implementation backs tests and dev runs without a database.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for lookups of absent users or saves.
var ErrNotFound = errors.New("store: not found")

// ErrExists is returned by CreateUser when the username is already taken, so
// a registration race can never overwrite an existing account.
var ErrExists = errors.New("store: already exists")

// User is one account row. The password is stored as a bcrypt hash only.
type User struct {
	Username     string
	PasswordHash string
	Locale       string
	CreatedAt    time.Time
}

// SavedTable is one persisted table snapshot, keyed by its owner (the host
// at save time).
type SavedTable struct {
	ID       string
	Owner    string
	Name     string
	GameType string
	Snapshot []byte
	SavedAt  time.Time
}

// Store is the persistence contract.
type Store interface {
	GetUser(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, u User) error
	UpdateUserLocale(ctx context.Context, username, locale string) error

	PutSave(ctx context.Context, s SavedTable) error
	GetSave(ctx context.Context, id string) (SavedTable, error)
	ListSaves(ctx context.Context, owner string) ([]SavedTable, error)
	DeleteSave(ctx context.Context, id string) error

	Close()
}
