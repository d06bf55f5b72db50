package logentry

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when an index does not address a stored entry.
var ErrNotFound = errors.New("log entry not found")

// Repository is the record store. Indices are zero-based positions in
// submission order.
type Repository interface {
	Append(ctx context.Context, e *LogEntry) (int, error)
	Get(ctx context.Context, index int) (*LogEntry, error)
	Replace(ctx context.Context, index int, e *LogEntry) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error)
	ExistsForMemberOnDate(ctx context.Context, medicaidID string, day time.Time) (bool, error)
	Ping(ctx context.Context) error
}

// Filter selects entries for the admin views. Zero values match everything.
// From and To are inclusive calendar days compared against the service date.
type Filter struct {
	MedicaidID       string
	NoteCategory     string
	CoordinatorEmail string
	From             *time.Time
	To               *time.Time
	ClaimStatus      string
}

// Match reports whether e passes every populated criterion.
func (f Filter) Match(e *LogEntry) bool {
	if f.MedicaidID != "" && !strings.EqualFold(strings.TrimSpace(e.MedicaidID), strings.TrimSpace(f.MedicaidID)) {
		return false
	}
	if f.NoteCategory != "" && e.NoteCategory != f.NoteCategory {
		return false
	}
	if f.CoordinatorEmail != "" && !strings.EqualFold(strings.TrimSpace(e.CoordinatorEmail), strings.TrimSpace(f.CoordinatorEmail)) {
		return false
	}
	if f.ClaimStatus != "" {
		if !e.IsBillable() || e.EffectiveClaimStatus() != f.ClaimStatus {
			return false
		}
	}
	if f.From != nil || f.To != nil {
		day, ok := e.ServiceDay()
		if !ok {
			return false
		}
		if f.From != nil && day.Before(truncateDay(*f.From)) {
			return false
		}
		if f.To != nil && day.After(truncateDay(*f.To)) {
			return false
		}
	}
	return true
}

// EffectiveClaimStatus treats billable entries that were never submitted as
// pending.
func (e *LogEntry) EffectiveClaimStatus() string {
	if !e.IsBillable() {
		return ""
	}
	if e.ClaimStatus == "" || e.ClaimStatus == "none" {
		return ClaimPending
	}
	return e.ClaimStatus
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// sameDay reports whether e belongs to medicaidID on the calendar day.
func sameDay(e *LogEntry, medicaidID string, day time.Time) bool {
	if !strings.EqualFold(strings.TrimSpace(e.MedicaidID), strings.TrimSpace(medicaidID)) {
		return false
	}
	d, ok := e.ServiceDay()
	return ok && d.Equal(truncateDay(day))
}

// page applies limit/offset to a filtered slice.
func page(all []*IndexedEntry, limit, offset int) []*IndexedEntry {
	if offset >= len(all) {
		return []*IndexedEntry{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
