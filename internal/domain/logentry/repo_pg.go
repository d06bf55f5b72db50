package logentry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shanthivalli/tcm-claims-focus/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type logEntryRepoPG struct{ pool *pgxpool.Pool }

// NewRepoPG stores entries in the log_entry table created by the migrations.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &logEntryRepoPG{pool: pool}
}

func (r *logEntryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *logEntryRepoPG) scanIndexed(row pgx.Row) (*IndexedEntry, error) {
	var idx int
	var body []byte
	if err := row.Scan(&idx, &body); err != nil {
		return nil, err
	}
	e, err := fromBody(body)
	if err != nil {
		return nil, err
	}
	return &IndexedEntry{Index: idx, LogEntry: e}, nil
}

// Append takes a table lock so concurrent writers receive consecutive
// indices.
func (r *logEntryRepoPG) Append(ctx context.Context, e *LogEntry) (int, error) {
	rw, err := toRow(e)
	if err != nil {
		return 0, err
	}
	var idx int
	err = db.InTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `LOCK TABLE log_entry IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("lock log_entry: %w", err)
		}
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO log_entry (idx, medicaid_id, note_category, coordinator_email, service_day, claim_status, body)
			SELECT COALESCE(MAX(idx) + 1, 0), $1, $2, $3, $4, $5, $6 FROM log_entry
			RETURNING idx`,
			rw.MedicaidID, rw.NoteCategory, rw.CoordinatorEmail, rw.ServiceDay, rw.ClaimStatus, rw.Body,
		).Scan(&idx)
	})
	if err != nil {
		return 0, fmt.Errorf("insert log entry: %w", err)
	}
	return idx, nil
}

func (r *logEntryRepoPG) Get(ctx context.Context, index int) (*LogEntry, error) {
	ie, err := r.scanIndexed(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM log_entry WHERE idx = $1`, index))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ie.LogEntry, nil
}

func (r *logEntryRepoPG) Replace(ctx context.Context, index int, e *LogEntry) error {
	rw, err := toRow(e)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE log_entry SET medicaid_id=$2, note_category=$3, coordinator_email=$4,
			service_day=$5, claim_status=$6, body=$7, updated_at=NOW()
		WHERE idx = $1`,
		index, rw.MedicaidID, rw.NoteCategory, rw.CoordinatorEmail, rw.ServiceDay, rw.ClaimStatus, rw.Body)
	if err != nil {
		return fmt.Errorf("update log entry %d: %w", index, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *logEntryRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	qb := newSearchQuery("log_entry", entryCols, dollar, "LIMIT ALL")
	qb.apply(f)

	var total int
	if err := r.conn(ctx).QueryRow(ctx, qb.countSQL(), qb.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args := qb.dataSQL(limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*IndexedEntry{}
	for rows.Next() {
		ie, err := r.scanIndexed(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ie)
	}
	return items, total, rows.Err()
}

func (r *logEntryRepoPG) ExistsForMemberOnDate(ctx context.Context, medicaidID string, day time.Time) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM log_entry WHERE medicaid_id = $1 AND service_day = $2)`,
		strings.ToUpper(strings.TrimSpace(medicaidID)), dayString(day)).Scan(&exists)
	return exists, err
}

func (r *logEntryRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
