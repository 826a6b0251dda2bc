package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chainrelay/pkg/domain"
)

// PostgresStore persists contacts in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE contacts (
//	    id           UUID PRIMARY KEY,
//	    owner_hash   TEXT NOT NULL,
//	    partner_hash TEXT NOT NULL,
//	    recorded_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX contacts_partner_recorded_idx ON contacts (partner_hash, recorded_at);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, c Contact) error {
	const query = `
		INSERT INTO contacts (id, owner_hash, partner_hash, recorded_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(c.ID), string(c.OwnerHash), string(c.PartnerHash), c.RecordedAt)
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRecordersOf(ctx context.Context, node domain.ContactHash, start, end time.Time, limit int) ([]Contact, error) {
	const query = `
		SELECT id, owner_hash, partner_hash, recorded_at
		FROM contacts
		WHERE partner_hash = $1 AND recorded_at >= $2 AND recorded_at <= $3
		ORDER BY recorded_at DESC
		LIMIT $4
	`
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, query, string(node), start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("find recorders of %s: %w", node, err)
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		var (
			id             uuid.UUID
			owner, partner string
			recordedAt     time.Time
		)
		if err := rows.Scan(&id, &owner, &partner, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, Contact{
			ID:          domain.ContactID(id),
			OwnerHash:   domain.ContactHash(owner),
			PartnerHash: domain.ContactHash(partner),
			RecordedAt:  recordedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}
