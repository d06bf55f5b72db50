package logentry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS log_entry (
    idx               INTEGER PRIMARY KEY,
    medicaid_id       TEXT NOT NULL,
    note_category     TEXT NOT NULL,
    coordinator_email TEXT NOT NULL DEFAULT '',
    service_day       TEXT NOT NULL DEFAULT '',
    claim_status      TEXT NOT NULL DEFAULT '',
    body              TEXT NOT NULL,
    created_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    updated_at        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_log_entry_member_day ON log_entry (medicaid_id, service_day);
CREATE INDEX IF NOT EXISTS idx_log_entry_category ON log_entry (note_category);
`

const entryCols = `idx, body`

// SQLiteRepo stores one row per entry in an embedded database.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo creates the log_entry table when it is missing.
func NewSQLiteRepo(ctx context.Context, db *sql.DB) (*SQLiteRepo, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create log_entry table: %w", err)
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Append(ctx context.Context, e *LogEntry) (int, error) {
	rw, err := toRow(e)
	if err != nil {
		return 0, err
	}
	var idx int
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO log_entry (idx, medicaid_id, note_category, coordinator_email, service_day, claim_status, body)
		SELECT COALESCE(MAX(idx) + 1, 0), ?, ?, ?, ?, ?, ? FROM log_entry
		RETURNING idx`,
		rw.MedicaidID, rw.NoteCategory, rw.CoordinatorEmail, rw.ServiceDay, rw.ClaimStatus, string(rw.Body),
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("insert log entry: %w", err)
	}
	return idx, nil
}

func (r *SQLiteRepo) Get(ctx context.Context, index int) (*LogEntry, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM log_entry WHERE idx = ?`, index).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBody([]byte(body))
}

func (r *SQLiteRepo) Replace(ctx context.Context, index int, e *LogEntry) error {
	rw, err := toRow(e)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE log_entry SET medicaid_id = ?, note_category = ?, coordinator_email = ?,
			service_day = ?, claim_status = ?, body = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE idx = ?`,
		rw.MedicaidID, rw.NoteCategory, rw.CoordinatorEmail, rw.ServiceDay, rw.ClaimStatus, string(rw.Body), index)
	if err != nil {
		return fmt.Errorf("update log entry %d: %w", index, err)
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

func (r *SQLiteRepo) List(ctx context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	qb := newSearchQuery("log_entry", entryCols, question, "LIMIT -1")
	qb.apply(f)

	var total int
	if err := r.db.QueryRowContext(ctx, qb.countSQL(), qb.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := qb.dataSQL(limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []*IndexedEntry{}
	for rows.Next() {
		var idx int
		var body string
		if err := rows.Scan(&idx, &body); err != nil {
			return nil, 0, err
		}
		e, err := fromBody([]byte(body))
		if err != nil {
			return nil, 0, err
		}
		items = append(items, &IndexedEntry{Index: idx, LogEntry: e})
	}
	return items, total, rows.Err()
}

func (r *SQLiteRepo) ExistsForMemberOnDate(ctx context.Context, medicaidID string, day time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM log_entry WHERE medicaid_id = ? AND service_day = ?`,
		strings.ToUpper(strings.TrimSpace(medicaidID)), dayString(day)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
