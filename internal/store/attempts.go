// Package store persists the audit log of free trial and checkout attempts
// in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DukeRupert/storefront/internal/domain"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const insertAttempt = `
INSERT INTO attempts (
    id, action, user_id, package_id, custom_package_id, product_id,
    url_type, audiences, outcome, error_code, metadata, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

// AttemptLog writes attempts to the attempts table.
type AttemptLog struct {
	db DBTX
}

// NewAttemptLog creates an attempt log on the given connection.
func NewAttemptLog(db DBTX) *AttemptLog {
	return &AttemptLog{db: db}
}

// Record inserts one attempt.
func (l *AttemptLog) Record(ctx context.Context, a domain.Attempt) error {
	audiences := make([]string, 0, len(a.Audiences))
	for _, aud := range a.Audiences {
		audiences = append(audiences, string(aud))
	}

	var metadata pqtype.NullRawMessage
	if len(a.Metadata) > 0 {
		data, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("marshal attempt metadata: %w", err)
		}
		metadata = pqtype.NullRawMessage{
			RawMessage: data,
			Valid:      true,
		}
	}

	_, err := l.db.ExecContext(ctx, insertAttempt,
		a.ID,
		string(a.Action),
		a.UserID,
		nullString(a.PackageID),
		nullString(a.CustomPackageID),
		nullString(a.ProductID),
		nullString(string(a.URLType)),
		pq.Array(audiences),
		string(a.Outcome),
		nullString(a.ErrorCode),
		metadata,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
