package wizard

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GuardResult is the outcome of the duplicate-date check.
type GuardResult int

const (
	Clean GuardResult = iota
	DuplicateFound
)

func (g GuardResult) String() string {
	if g == DuplicateFound {
		return "duplicate_found"
	}
	return "clean"
}

// Recorder is the part of the record store the guard reads.
type Recorder interface {
	ExistsForMemberOnDate(ctx context.Context, medicaidID string, day time.Time) (bool, error)
}

// Guard warns about a second note for the same member on the same day.
type Guard struct {
	records Recorder
	logger  zerolog.Logger
}

func NewGuard(records Recorder, logger zerolog.Logger) *Guard {
	return &Guard{records: records, logger: logger}
}

// Check never fails the session: an unreadable store is reported as Clean.
func (g *Guard) Check(ctx context.Context, medicaidID string, serviceDate time.Time) GuardResult {
	exists, err := g.records.ExistsForMemberOnDate(ctx, medicaidID, serviceDate)
	if err != nil {
		g.logger.Warn().Err(err).
			Str("medicaid_id", medicaidID).
			Str("service_date", serviceDate.Format("2006-01-02")).
			Msg("duplicate check skipped, record store unreadable")
		return Clean
	}
	if exists {
		return DuplicateFound
	}
	return Clean
}
