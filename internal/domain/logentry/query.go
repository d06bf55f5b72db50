package logentry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dayLayout is the sortable form of a service day stored in SQL backends.
const dayLayout = "2006-01-02"

// placeholder renders the n-th (1-based) bind parameter for a SQL dialect.
type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

// searchQuery builds the WHERE clause of a log_entry listing from a Filter.
type searchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	ph      placeholder
	// noLimit is the dialect's spelling of an unbounded LIMIT.
	noLimit string
}

func newSearchQuery(table, cols string, ph placeholder, noLimit string) *searchQuery {
	return &searchQuery{table: table, cols: cols, idx: 1, ph: ph, noLimit: noLimit}
}

// add appends a clause whose bind parameters are written as %s.
func (q *searchQuery) add(clause string, args ...interface{}) {
	marks := make([]interface{}, len(args))
	for i := range args {
		marks[i] = q.ph(q.idx + i)
	}
	q.where += " AND " + fmt.Sprintf(clause, marks...)
	q.args = append(q.args, args...)
	q.idx += len(args)
}

func (q *searchQuery) apply(f Filter) {
	if f.MedicaidID != "" {
		q.add("medicaid_id = %s", strings.ToUpper(strings.TrimSpace(f.MedicaidID)))
	}
	if f.NoteCategory != "" {
		q.add("note_category = %s", f.NoteCategory)
	}
	if f.CoordinatorEmail != "" {
		q.add("coordinator_email = %s", strings.ToLower(strings.TrimSpace(f.CoordinatorEmail)))
	}
	if f.ClaimStatus != "" {
		q.add("claim_status = %s", f.ClaimStatus)
	}
	if f.From != nil {
		q.add("service_day >= %s", f.From.Format(dayLayout))
	}
	if f.To != nil {
		q.add("service_day <= %s", f.To.Format(dayLayout))
	}
	if f.From != nil || f.To != nil {
		q.where += " AND service_day <> ''"
	}
}

func (q *searchQuery) countSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

// dataSQL orders by index. A non-positive limit returns every row.
func (q *searchQuery) dataSQL(limit, offset int) (string, []interface{}) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s ORDER BY idx", q.cols, q.table, q.where)
	args := append([]interface{}{}, q.args...)
	if limit > 0 {
		sql += fmt.Sprintf(" LIMIT %s OFFSET %s", q.ph(q.idx), q.ph(q.idx+1))
		args = append(args, limit, offset)
	} else if offset > 0 {
		sql += fmt.Sprintf(" %s OFFSET %s", q.noLimit, q.ph(q.idx))
		args = append(args, offset)
	}
	return sql, args
}

// row is the column projection shared by the SQL backends.
type row struct {
	MedicaidID       string
	NoteCategory     string
	CoordinatorEmail string
	ServiceDay       string
	ClaimStatus      string
	Body             []byte
}

func toRow(e *LogEntry) (*row, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode log entry: %w", err)
	}
	r := &row{
		MedicaidID:       strings.ToUpper(strings.TrimSpace(e.MedicaidID)),
		NoteCategory:     e.NoteCategory,
		CoordinatorEmail: strings.ToLower(strings.TrimSpace(e.CoordinatorEmail)),
		ClaimStatus:      e.EffectiveClaimStatus(),
		Body:             body,
	}
	if d, ok := e.ServiceDay(); ok {
		r.ServiceDay = d.Format(dayLayout)
	}
	return r, nil
}

func fromBody(body []byte) (*LogEntry, error) {
	var e LogEntry
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("decode log entry: %w", err)
	}
	return &e, nil
}

func dayString(t time.Time) string {
	return truncateDay(t).Format(dayLayout)
}
