package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// PostgresStore persists user records in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE users (
//	    contact_hash TEXT PRIMARY KEY,
//	    notify_hash  TEXT NOT NULL,
//	    chain_hash   TEXT NOT NULL,
//	    owner_hash   TEXT NOT NULL,
//	    platform     TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, u User) error {
	const query = `
		INSERT INTO users (contact_hash, notify_hash, chain_hash, owner_hash, platform, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (contact_hash) DO UPDATE SET
			notify_hash = EXCLUDED.notify_hash,
			chain_hash  = EXCLUDED.chain_hash,
			owner_hash  = EXCLUDED.owner_hash,
			platform    = EXCLUDED.platform,
			updated_at  = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		string(u.ContactHash), string(u.NotifyHash), string(u.ChainHash),
		string(u.OwnerHash), u.Platform, now)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByContactHash(ctx context.Context, h domain.ContactHash) (User, error) {
	const query = `
		SELECT contact_hash, notify_hash, chain_hash, owner_hash, platform, created_at, updated_at
		FROM users WHERE contact_hash = $1
	`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, string(h)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sentinel.ErrNotFound
		}
		return User{}, fmt.Errorf("find user by contact hash: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByContactHashes(ctx context.Context, hashes []domain.ContactHash) ([]User, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	const query = `
		SELECT contact_hash, notify_hash, chain_hash, owner_hash, platform, created_at, updated_at
		FROM users WHERE contact_hash = ANY($1)
	`
	raw := make([]string, len(hashes))
	for i, h := range hashes {
		raw[i] = string(h)
	}
	rows, err := s.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("bulk find users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		contactHash, notifyHash, chainHash, ownerHash, platform string
		createdAt, updatedAt                                    time.Time
	)
	if err := row.Scan(&contactHash, &notifyHash, &chainHash, &ownerHash, &platform, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	return User{
		ContactHash: domain.ContactHash(contactHash),
		NotifyHash:  domain.NotifyHash(notifyHash),
		ChainHash:   domain.ChainHash(chainHash),
		OwnerHash:   domain.OwnerHash(ownerHash),
		Platform:    platform,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
