package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// PostgresStore persists reports in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE reports (
//	    id                     UUID PRIMARY KEY,
//	    owner_hash             TEXT NOT NULL,
//	    contact_hash           TEXT NOT NULL,
//	    notify_hash            TEXT NOT NULL,
//	    chain_hash             TEXT NOT NULL,
//	    conditions             TEXT[] NOT NULL,
//	    test_date              TIMESTAMPTZ NOT NULL,
//	    disclosure             TEXT NOT NULL,
//	    result                 TEXT NOT NULL,
//	    status                 TEXT NOT NULL,
//	    status_message         TEXT NOT NULL DEFAULT '',
//	    linked_report_id       UUID,
//	    target_notification_id UUID,
//	    deleted                BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at             TIMESTAMPTZ NOT NULL,
//	    updated_at             TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed report store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r Report) error {
	const query = `
		INSERT INTO reports (
			id, owner_hash, contact_hash, notify_hash, chain_hash,
			conditions, test_date, disclosure, result,
			status, status_message, linked_report_id, target_notification_id,
			deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
	`
	conditions := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		conditions[i] = string(c)
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(r.ID), string(r.OwnerHash), string(r.ContactHash),
		string(r.NotifyHash), string(r.ChainHash),
		pq.Array(conditions), r.TestDate, string(r.Disclosure), string(r.Result),
		string(r.Status), r.StatusMessage,
		nullableUUID((*uuid.UUID)(r.LinkedReportID)),
		nullableUUID((*uuid.UUID)(r.TargetNotificationID)),
		r.Deleted, now)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ReportID) (Report, error) {
	const query = `
		SELECT id, owner_hash, contact_hash, notify_hash, chain_hash,
		       conditions, test_date, disclosure, result,
		       status, status_message, linked_report_id, target_notification_id,
		       deleted, created_at, updated_at
		FROM reports WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(id))

	var (
		r                  Report
		rid                uuid.UUID
		owner, contactH    string
		notifyH, chainH    string
		conditions         pq.StringArray
		disclosure, result string
		status             string
		linked, target     sql.Null[uuid.UUID]
	)
	err := row.Scan(&rid, &owner, &contactH, &notifyH, &chainH,
		&conditions, &r.TestDate, &disclosure, &result,
		&status, &r.StatusMessage, &linked, &target,
		&r.Deleted, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Report{}, sentinel.ErrNotFound
		}
		return Report{}, fmt.Errorf("find report by id: %w", err)
	}

	r.ID = domain.ReportID(rid)
	r.OwnerHash = domain.OwnerHash(owner)
	r.ContactHash = domain.ContactHash(contactH)
	r.NotifyHash = domain.NotifyHash(notifyH)
	r.ChainHash = domain.ChainHash(chainH)
	r.Conditions = make([]domain.ConditionType, len(conditions))
	for i, c := range conditions {
		r.Conditions[i] = domain.ConditionType(c)
	}
	r.Disclosure = domain.DisclosureLevel(disclosure)
	r.Result = Result(result)
	r.Status = Status(status)
	if linked.Valid {
		id := domain.ReportID(linked.V)
		r.LinkedReportID = &id
	}
	if target.Valid {
		id := domain.NotificationID(target.V)
		r.TargetNotificationID = &id
	}
	return r, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id domain.ReportID, status Status, message string) error {
	// The WHERE clause enforces the monotonic transition table in the
	// store itself; concurrent processors cannot regress a status.
	var allowedFrom []string
	for from, next := range allowedTransitions {
		for _, to := range next {
			if to == status {
				allowedFrom = append(allowedFrom, string(from))
			}
		}
	}
	const query = `
		UPDATE reports SET status = $2, status_message = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(id), string(status), message, pq.Array(allowedFrom))
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, id); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) MarkDeleted(ctx context.Context, id domain.ReportID) error {
	const query = `UPDATE reports SET deleted = TRUE, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("mark report deleted: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark report deleted: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func nullableUUID(u *uuid.UUID) any {
	if u == nil {
		return nil
	}
	return *u
}
