package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/idp/internal/idp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories. Transactions hand back a Tx-scoped Store whose
// own Tx/WithTx refuse to nest.
type Store interface {
	Users() Users
	Clients() Clients
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used by the login page.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user; ErrAlreadyExists on a username clash.
	CreateUser(ctx context.Context, u domain.User) error

	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error
	SetActive(ctx context.Context, userID string, active bool) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by creation date (newest first).
	ListClients(ctx context.Context) ([]domain.Client, error)

	// CreateClient inserts a new client; ErrAlreadyExists on an id clash.
	CreateClient(ctx context.Context, c domain.Client) error

	// UpdateClient replaces every mutable column of an existing client.
	UpdateClient(ctx context.Context, c domain.Client) error

	// DeleteClient cascades to tokens (per schema).
	DeleteClient(ctx context.Context, clientID string) error

	IsEmpty(ctx context.Context) (bool, error)
}

type Tokens interface {
	// CreateToken stores a new hashed token; ErrAlreadyExists when the
	// (type, hash) pair is taken.
	CreateToken(ctx context.Context, t domain.Token) error

	// GetTokenByHash returns the token of the given type whose hash matches
	// and which has not expired at now.
	GetTokenByHash(ctx context.Context, typ domain.TokenType, hash string, now time.Time) (domain.Token, error)

	// DeleteTokenByID removes a single row. Missing rows are not an error.
	DeleteTokenByID(ctx context.Context, id string) error

	// DeleteTokensByHash removes matching rows of the given types, or of every
	// type when types is empty. It returns the number of rows removed.
	DeleteTokensByHash(ctx context.Context, hash string, types ...domain.TokenType) (int64, error)

	// DeleteTokensForClientUser removes every token a client holds for a user.
	DeleteTokensForClientUser(ctx context.Context, clientID, userID string) (int64, error)

	// DeleteExpiredTokens is housekeeping.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}
