package logentry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
)

// DefaultPayRate is the hourly rate applied to payroll when none is
// configured.
const DefaultPayRate = 25.00

// ValidationError rejects a caller-supplied record or argument.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

type Service struct {
	repo    Repository
	rule    UnitRule
	payRate float64
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repo Repository, rule UnitRule, payRate float64, logger zerolog.Logger) *Service {
	if rule == nil {
		rule = BaselineUnits
	}
	if payRate <= 0 {
		payRate = DefaultPayRate
	}
	return &Service{
		repo:    repo,
		rule:    rule,
		payRate: payRate,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) UnitRule() UnitRule { return s.rule }

func (s *Service) PayRate() float64 { return s.payRate }

// Record stamps and appends a completed wizard entry.
func (s *Service) Record(ctx context.Context, e *LogEntry) (int, error) {
	if e.SubmissionTimestamp == "" {
		e.SubmissionTimestamp = s.now().Format(fieldmap.TimestampLayout)
	}
	if e.IsBillable() && e.ClaimStatus == "" {
		e.ClaimStatus = ClaimPending
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ExistsForMemberOnDate(ctx context.Context, medicaidID string, day time.Time) (bool, error) {
	return s.repo.ExistsForMemberOnDate(ctx, medicaidID, day)
}

func (s *Service) Get(ctx context.Context, index int) (*LogEntry, error) {
	return s.repo.Get(ctx, index)
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// Replace overwrites the entry at index. The replacement is validated and its
// units are re-derived. Store bookkeeping the console does not edit
// (submission time and claim state) carries over when left blank.
func (s *Service) Replace(ctx context.Context, index int, e *LogEntry, actor string) error {
	prev, err := s.repo.Get(ctx, index)
	if err != nil {
		return err
	}
	if e.SubmissionTimestamp == "" {
		e.SubmissionTimestamp = prev.SubmissionTimestamp
	}
	e.NoteCategory = fieldmap.CanonicalCategory(e.NoteCategory)
	if err := e.Validate(s.rule); err != nil {
		return &ValidationError{Reason: err.Error()}
	}

	if e.IsBillable() {
		if e.ClaimStatus == "" {
			e.ClaimStatus = prev.ClaimStatus
			e.ClaimSubmittedAt = prev.ClaimSubmittedAt
		}
		if e.ClaimStatus == "" {
			e.ClaimStatus = ClaimPending
		}
	} else {
		e.ClaimStatus = ""
		e.ClaimSubmittedAt = ""
	}

	if err := s.repo.Replace(ctx, index, e); err != nil {
		return err
	}
	s.logger.Info().
		Str("type", "audit").
		Str("action", "replace").
		Str("actor", actor).
		Int("index", index).
		Str("medicaid_id", e.MedicaidID).
		Str("note_category", e.NoteCategory).
		Msg("log entry replaced")
	return nil
}

// Dashboard is the admin landing summary.
type Dashboard struct {
	TotalForms    int `json:"total_forms"`
	FormsToday    int `json:"forms_today"`
	UniqueMembers int `json:"unique_members"`
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	items, _, err := s.repo.List(ctx, Filter{}, 0, 0)
	if err != nil {
		return nil, err
	}
	today := s.now()
	members := make(map[string]struct{})
	d := &Dashboard{TotalForms: len(items)}
	for _, it := range items {
		if at, ok := it.SubmittedAt(); ok && sameCalendarDay(at, today) {
			d.FormsToday++
		}
		if id := strings.ToUpper(strings.TrimSpace(it.MedicaidID)); present(id) {
			members[id] = struct{}{}
		}
	}
	d.UniqueMembers = len(members)
	return d, nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Claims lists billable entries only.
func (s *Service) Claims(ctx context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	f.NoteCategory = CategoryBillable
	return s.repo.List(ctx, f, limit, offset)
}

// SubmitClaims marks the billable entries at indices as Submitted. Every
// index is checked before anything is written. Entries already submitted keep
// their original submission time.
func (s *Service) SubmitClaims(ctx context.Context, indices []int, actor string) ([]*IndexedEntry, error) {
	if len(indices) == 0 {
		return nil, invalid("indices are required")
	}
	seen := make(map[int]bool, len(indices))
	var targets []*IndexedEntry
	for _, idx := range indices {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		e, err := s.repo.Get(ctx, idx)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("entry %d: %w", idx, ErrNotFound)
			}
			return nil, err
		}
		if !e.IsBillable() {
			return nil, invalid("entry %d is not a billable entry", idx)
		}
		targets = append(targets, &IndexedEntry{Index: idx, LogEntry: e})
	}

	stamp := s.now().Format(fieldmap.TimestampLayout)
	for _, t := range targets {
		if t.EffectiveClaimStatus() == ClaimSubmitted {
			continue
		}
		t.ClaimStatus = ClaimSubmitted
		t.ClaimSubmittedAt = stamp
		if err := s.repo.Replace(ctx, t.Index, t.LogEntry); err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("type", "audit").
			Str("action", "submit_claim").
			Str("actor", actor).
			Int("index", t.Index).
			Str("medicaid_id", t.MedicaidID).
			Msg("claim submitted")
	}
	return targets, nil
}

// PayPeriod is an inclusive range of service days.
type PayPeriod struct {
	From time.Time
	To   time.Time
}

// DefaultPayPeriod covers the 14 days up to and including now.
func DefaultPayPeriod(now time.Time) PayPeriod {
	to := truncateDay(now)
	return PayPeriod{From: to.AddDate(0, 0, -14), To: to}
}

type PayrollRow struct {
	Index            int     `json:"index"`
	Coordinator      string  `json:"coordinator"`
	CoordinatorEmail string  `json:"coordinator_email"`
	MedicaidID       string  `json:"medicaid_id"`
	ServiceDate      string  `json:"service_date"`
	TCMHours         float64 `json:"tcm_hours"`
	TravelHours      float64 `json:"travel_hours"`
	TotalHours       float64 `json:"total_hours"`
	PayRate          float64 `json:"pay_rate"`
	PayAmount        float64 `json:"pay_amount"`
}

type CoordinatorPay struct {
	Coordinator string  `json:"coordinator"`
	Entries     int     `json:"entries"`
	TCMHours    float64 `json:"tcm_hours"`
	TravelHours float64 `json:"travel_hours"`
	TotalHours  float64 `json:"total_hours"`
	PayAmount   float64 `json:"pay_amount"`
}

type PayrollTotals struct {
	TCMHours    float64 `json:"total_tcm_hours"`
	TravelHours float64 `json:"total_travel_hours"`
	TotalHours  float64 `json:"total_hours"`
	TotalPay    float64 `json:"total_pay"`
}

type PayrollReport struct {
	From         string           `json:"from"`
	To           string           `json:"to"`
	PayRate      float64          `json:"pay_rate"`
	Rows         []PayrollRow     `json:"rows"`
	Coordinators []CoordinatorPay `json:"coordinators"`
	Totals       PayrollTotals    `json:"totals"`
}

// Payroll pays tcm_hours plus travel_time at the configured rate for every
// entry whose service day falls in period, optionally for one coordinator.
func (s *Service) Payroll(ctx context.Context, period PayPeriod, coordinatorEmail string) (*PayrollReport, error) {
	if period.To.Before(period.From) {
		return nil, invalid("pay period ends before it starts")
	}
	from, to := truncateDay(period.From), truncateDay(period.To)
	items, _, err := s.repo.List(ctx, Filter{From: &from, To: &to, CoordinatorEmail: coordinatorEmail}, 0, 0)
	if err != nil {
		return nil, err
	}

	report := &PayrollReport{
		From:    from.Format(fieldmap.DateLayout),
		To:      to.Format(fieldmap.DateLayout),
		PayRate: s.payRate,
		Rows:    make([]PayrollRow, 0, len(items)),
	}
	byCoordinator := make(map[string]*CoordinatorPay)
	for _, it := range items {
		total := it.TCMHours + it.TravelTime
		row := PayrollRow{
			Index:            it.Index,
			Coordinator:      coordinatorLabel(it.LogEntry),
			CoordinatorEmail: it.CoordinatorEmail,
			MedicaidID:       it.MedicaidID,
			ServiceDate:      it.ServiceDate,
			TCMHours:         it.TCMHours,
			TravelHours:      it.TravelTime,
			TotalHours:       total,
			PayRate:          s.payRate,
			PayAmount:        cents(total * s.payRate),
		}
		report.Rows = append(report.Rows, row)

		cp, ok := byCoordinator[row.Coordinator]
		if !ok {
			cp = &CoordinatorPay{Coordinator: row.Coordinator}
			byCoordinator[row.Coordinator] = cp
		}
		cp.Entries++
		cp.TCMHours += row.TCMHours
		cp.TravelHours += row.TravelHours
		cp.TotalHours += row.TotalHours
		cp.PayAmount = cents(cp.PayAmount + row.PayAmount)

		report.Totals.TCMHours += row.TCMHours
		report.Totals.TravelHours += row.TravelHours
		report.Totals.TotalHours += row.TotalHours
		report.Totals.TotalPay = cents(report.Totals.TotalPay + row.PayAmount)
	}

	report.Coordinators = make([]CoordinatorPay, 0, len(byCoordinator))
	for _, cp := range byCoordinator {
		report.Coordinators = append(report.Coordinators, *cp)
	}
	sort.Slice(report.Coordinators, func(i, j int) bool {
		return report.Coordinators[i].Coordinator < report.Coordinators[j].Coordinator
	})
	return report, nil
}

func coordinatorLabel(e *LogEntry) string {
	if present(e.CoordinatorName) {
		return e.CoordinatorName
	}
	if present(e.CoordinatorEmail) {
		return strings.ToLower(e.CoordinatorEmail)
	}
	return "unassigned"
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
