package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"chainrelay/pkg/domain"
	"chainrelay/pkg/platform/sentinel"
)

// PostgresStore persists notifications in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE notifications (
//	    id             UUID PRIMARY KEY,
//	    recipient_hash TEXT NOT NULL,
//	    type           TEXT NOT NULL,
//	    condition      TEXT,
//	    exposure_date  TIMESTAMPTZ,
//	    chain_path     TEXT[] NOT NULL,
//	    chain_paths    JSONB NOT NULL DEFAULT '[]',
//	    hop_depth      INT NOT NULL,
//	    report_id      UUID NOT NULL,
//	    read           BOOLEAN NOT NULL DEFAULT FALSE,
//	    deleted        BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL,
//	    UNIQUE (report_id, recipient_hash)
//	);
//	CREATE INDEX notifications_recipient_idx ON notifications (recipient_hash, created_at DESC);
//	CREATE INDEX notifications_path_idx ON notifications USING GIN (chain_path);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed notification store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const notificationColumns = `
	id, recipient_hash, type, condition, exposure_date,
	chain_path, chain_paths, hop_depth, report_id,
	read, deleted, created_at, updated_at
`

const upsertQuery = `
	INSERT INTO notifications (
		id, recipient_hash, type, condition, exposure_date,
		chain_path, chain_paths, hop_depth, report_id,
		read, deleted, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	ON CONFLICT (report_id, recipient_hash) DO UPDATE SET
		type = EXCLUDED.type,
		condition = EXCLUDED.condition,
		exposure_date = EXCLUDED.exposure_date,
		chain_path = EXCLUDED.chain_path,
		chain_paths = EXCLUDED.chain_paths,
		hop_depth = EXCLUDED.hop_depth,
		deleted = EXCLUDED.deleted,
		updated_at = EXCLUDED.updated_at
`

func (s *PostgresStore) Create(ctx context.Context, n Notification) error {
	return s.exec(ctx, s.db, n)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) exec(ctx context.Context, db execer, n Notification) error {
	path := make([]string, len(n.ChainPath))
	for i, h := range n.ChainPath {
		path[i] = string(h)
	}
	paths := n.ChainPaths
	if paths == nil {
		paths = [][]domain.ChainHash{}
	}
	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("encode chain paths: %w", err)
	}
	var condition any
	if n.Condition != nil {
		condition = string(*n.Condition)
	}
	_, err = db.ExecContext(ctx, upsertQuery,
		uuid.UUID(n.ID), string(n.RecipientHash), string(n.Type),
		condition, n.ExposureDate,
		pq.Array(path), pathsJSON, n.HopDepth, uuid.UUID(n.ReportID),
		n.Read, n.Deleted, time.Now())
	if err != nil {
		return fmt.Errorf("upsert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) BulkUpsert(ctx context.Context, notifications []Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upsert: %w", err)
	}
	defer tx.Rollback()

	for _, n := range notifications {
		if err := s.exec(ctx, tx, n); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.NotificationID) (Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(id)), "find notification by id")
}

func (s *PostgresStore) FindByReportAndRecipient(ctx context.Context, reportID domain.ReportID, recipient domain.NotifyHash) (Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE report_id = $1 AND recipient_hash = $2`
	return s.scanOne(s.db.QueryRowContext(ctx, query, uuid.UUID(reportID), string(recipient)), "find notification by report and recipient")
}

func (s *PostgresStore) ListByReport(ctx context.Context, reportID domain.ReportID, limit int) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE report_id = $1 ORDER BY created_at`
	return s.list(ctx, query, limit, uuid.UUID(reportID))
}

func (s *PostgresStore) ListByRecipient(ctx context.Context, recipient domain.NotifyHash, limit int) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE recipient_hash = $1 AND NOT deleted ORDER BY created_at DESC`
	return s.list(ctx, query, limit, string(recipient))
}

func (s *PostgresStore) FindByPathMember(ctx context.Context, member domain.ChainHash, limit int) ([]Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE $1 = ANY(chain_path) ORDER BY created_at`
	return s.list(ctx, query, limit, string(member))
}

func (s *PostgresStore) list(ctx context.Context, query string, limit int, args ...any) ([]Notification, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id domain.NotificationID, recipient domain.NotifyHash) error {
	const query = `
		UPDATE notifications SET read = TRUE, updated_at = NOW()
		WHERE id = $1 AND recipient_hash = $2
	`
	res, err := s.db.ExecContext(ctx, query, uuid.UUID(id), string(recipient))
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner, op string) (Notification, error) {
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, sentinel.ErrNotFound
		}
		return Notification{}, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func scanNotification(row rowScanner) (Notification, error) {
	var (
		n            Notification
		id, reportID uuid.UUID
		recipient    string
		typ          string
		condition    sql.NullString
		exposureDate sql.NullTime
		path         pq.StringArray
		pathsJSON    []byte
	)
	err := row.Scan(&id, &recipient, &typ, &condition, &exposureDate,
		&path, &pathsJSON, &n.HopDepth, &reportID,
		&n.Read, &n.Deleted, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Notification{}, err
	}
	n.ID = domain.NotificationID(id)
	n.ReportID = domain.ReportID(reportID)
	n.RecipientHash = domain.NotifyHash(recipient)
	n.Type = Type(typ)
	if condition.Valid {
		c := domain.ConditionType(condition.String)
		n.Condition = &c
	}
	if exposureDate.Valid {
		t := exposureDate.Time
		n.ExposureDate = &t
	}
	n.ChainPath = make([]domain.ChainHash, len(path))
	for i, h := range path {
		n.ChainPath[i] = domain.ChainHash(h)
	}
	if len(pathsJSON) > 0 {
		if err := json.Unmarshal(pathsJSON, &n.ChainPaths); err != nil {
			return Notification{}, fmt.Errorf("decode chain paths: %w", err)
		}
	}
	return n, nil
}
