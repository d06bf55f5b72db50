package logentry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type mockRepo struct {
	entries  []*LogEntry
	readErr  error
	writeErr error
	replaced []int
}

func newMockRepo(entries ...*LogEntry) *mockRepo {
	return &mockRepo{entries: entries}
}

func (m *mockRepo) Append(_ context.Context, e *LogEntry) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.entries = append(m.entries, e)
	return len(m.entries) - 1, nil
}

func (m *mockRepo) Get(_ context.Context, index int) (*LogEntry, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if index < 0 || index >= len(m.entries) {
		return nil, ErrNotFound
	}
	cp := *m.entries[index]
	return &cp, nil
}

func (m *mockRepo) Replace(_ context.Context, index int, e *LogEntry) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if index < 0 || index >= len(m.entries) {
		return ErrNotFound
	}
	m.entries[index] = e
	m.replaced = append(m.replaced, index)
	return nil
}

func (m *mockRepo) List(_ context.Context, f Filter, limit, offset int) ([]*IndexedEntry, int, error) {
	if m.readErr != nil {
		return nil, 0, m.readErr
	}
	var matched []*IndexedEntry
	for i, e := range m.entries {
		if f.Match(e) {
			matched = append(matched, &IndexedEntry{Index: i, LogEntry: e})
		}
	}
	return page(matched, limit, offset), len(matched), nil
}

func (m *mockRepo) ExistsForMemberOnDate(_ context.Context, medicaidID string, day time.Time) (bool, error) {
	if m.readErr != nil {
		return false, m.readErr
	}
	for _, e := range m.entries {
		if sameDay(e, medicaidID, day) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Ping(context.Context) error { return m.readErr }

var fixedNow = time.Date(2025, 3, 20, 10, 15, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	svc := NewService(repo, nil, 0, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(newMockRepo(), nil, 0, zerolog.Nop())
	if svc.PayRate() != DefaultPayRate {
		t.Errorf("expected default pay rate, got %v", svc.PayRate())
	}
	if svc.UnitRule()(1.0) != 4 {
		t.Error("expected baseline unit rule by default")
	}
}

func TestService_Record(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	idx, err := svc.Record(context.Background(), billableEntry())
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected index 0, got %d", idx)
	}
	got := repo.entries[0]
	if got.SubmissionTimestamp != "03/20/2025 10:15:00" {
		t.Errorf("unexpected timestamp %q", got.SubmissionTimestamp)
	}
	if got.ClaimStatus != ClaimPending {
		t.Errorf("expected pending claim, got %q", got.ClaimStatus)
	}

	if _, err := svc.Record(context.Background(), adminEntry()); err != nil {
		t.Fatal(err)
	}
	if repo.entries[1].ClaimStatus != "" {
		t.Error("administrative entries carry no claim state")
	}
}

func TestService_Replace(t *testing.T) {
	stored := billableEntry()
	stored.SubmissionTimestamp = "03/14/2025 09:00:00"
	stored.ClaimStatus = ClaimSubmitted
	stored.ClaimSubmittedAt = "03/15/2025 08:00:00"
	repo := newMockRepo(stored)
	svc := newTestService(repo)

	e := billableEntry()
	e.TCMHours = 2.25
	e.NoteCategory = "Billable- TCM"
	if err := svc.Replace(context.Background(), 0, e, "admin"); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	got := repo.entries[0]
	if got.TCMUnits != 9 {
		t.Errorf("expected units re-derived to 9, got %d", got.TCMUnits)
	}
	if got.SubmissionTimestamp != stored.SubmissionTimestamp {
		t.Errorf("expected timestamp carried over, got %q", got.SubmissionTimestamp)
	}
	if got.ClaimStatus != ClaimSubmitted || got.ClaimSubmittedAt != stored.ClaimSubmittedAt {
		t.Errorf("expected claim state carried over, got %q %q", got.ClaimStatus, got.ClaimSubmittedAt)
	}
	if got.NoteCategory != CategoryBillable {
		t.Errorf("expected canonical category, got %q", got.NoteCategory)
	}
}

func TestService_ReplaceToAdministrativeClearsClaim(t *testing.T) {
	stored := billableEntry()
	stored.ClaimStatus = ClaimPending
	repo := newMockRepo(stored)
	svc := newTestService(repo)

	if err := svc.Replace(context.Background(), 0, adminEntry(), "admin"); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}
	if repo.entries[0].ClaimStatus != "" || repo.entries[0].TCMUnits != 0 {
		t.Errorf("expected claim fields cleared, got %+v", repo.entries[0])
	}
}

func TestService_ReplaceErrors(t *testing.T) {
	svc := newTestService(newMockRepo(billableEntry()))

	bad := billableEntry()
	bad.TCMHours = 0.3
	if err := svc.Replace(context.Background(), 0, bad, "admin"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := svc.Replace(context.Background(), 4, billableEntry(), "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_Dashboard(t *testing.T) {
	a := billableEntry()
	a.SubmissionTimestamp = "03/20/2025 08:00:00"
	b := billableEntry()
	b.MedicaidID = "a123456"
	b.SubmissionTimestamp = "03/19/2025 08:00:00"
	c := adminEntry()
	c.SubmissionTimestamp = "03/20/2025 09:00:00"
	svc := newTestService(newMockRepo(a, b, c))

	d, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error: %v", err)
	}
	want := Dashboard{TotalForms: 3, FormsToday: 2, UniqueMembers: 2}
	if *d != want {
		t.Errorf("Dashboard() = %+v, want %+v", *d, want)
	}
}

func TestService_Claims(t *testing.T) {
	svc := newTestService(newMockRepo(billableEntry(), adminEntry(), billableEntry()))
	items, total, err := svc.Claims(context.Background(), Filter{NoteCategory: CategoryAdministrative}, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || items[0].Index != 0 || items[1].Index != 2 {
		t.Errorf("expected only billable entries, got total=%d", total)
	}
}

func TestService_SubmitClaims(t *testing.T) {
	already := billableEntry()
	already.ClaimStatus = ClaimSubmitted
	already.ClaimSubmittedAt = "03/01/2025 12:00:00"
	repo := newMockRepo(billableEntry(), already, adminEntry())
	svc := newTestService(repo)

	items, err := svc.SubmitClaims(context.Background(), []int{0, 1, 0}, "admin")
	if err != nil {
		t.Fatalf("SubmitClaims() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(items))
	}
	if repo.entries[0].ClaimStatus != ClaimSubmitted || repo.entries[0].ClaimSubmittedAt != "03/20/2025 10:15:00" {
		t.Errorf("claim 0 not submitted: %+v", repo.entries[0])
	}
	if repo.entries[1].ClaimSubmittedAt != "03/01/2025 12:00:00" {
		t.Errorf("already submitted claim was re-stamped: %q", repo.entries[1].ClaimSubmittedAt)
	}
	if len(repo.replaced) != 1 {
		t.Errorf("expected one write, got %v", repo.replaced)
	}
}

func TestService_SubmitClaimsAllOrNothing(t *testing.T) {
	repo := newMockRepo(billableEntry(), adminEntry())
	svc := newTestService(repo)

	if _, err := svc.SubmitClaims(context.Background(), []int{0, 1}, "admin"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.SubmitClaims(context.Background(), []int{0, 9}, "admin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.SubmitClaims(context.Background(), nil, "admin"); !IsValidation(err) {
		t.Errorf("expected validation error for empty indices, got %v", err)
	}
	if len(repo.replaced) != 0 {
		t.Errorf("expected no writes, got %v", repo.replaced)
	}
}

func TestDefaultPayPeriod(t *testing.T) {
	p := DefaultPayPeriod(fixedNow)
	if !p.To.Equal(*day(2025, 3, 20)) || !p.From.Equal(*day(2025, 3, 6)) {
		t.Errorf("unexpected period %v - %v", p.From, p.To)
	}
}

func TestService_Payroll(t *testing.T) {
	a := billableEntry()
	a.TravelTime = 0.5
	b := billableEntry()
	b.ServiceDate = "03/18/2025"
	b.TCMHours = 1
	c := adminEntry()
	c.CoordinatorName = "Sam Admin"
	c.TravelTime = 0.25
	outside := billableEntry()
	outside.ServiceDate = "01/02/2025"
	svc := newTestService(newMockRepo(a, b, c, outside))

	r, err := svc.Payroll(context.Background(), PayPeriod{From: *day(2025, 3, 1), To: *day(2025, 3, 31)}, "")
	if err != nil {
		t.Fatalf("Payroll() error: %v", err)
	}
	if len(r.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(r.Rows))
	}
	if r.Rows[0].TotalHours != 2 || r.Rows[0].PayAmount != 50 {
		t.Errorf("unexpected first row %+v", r.Rows[0])
	}
	if r.Totals.TotalHours != 3.25 || r.Totals.TotalPay != 81.25 {
		t.Errorf("unexpected totals %+v", r.Totals)
	}
	if len(r.Coordinators) != 2 || r.Coordinators[0].Coordinator != "Pat Coordinator" || r.Coordinators[0].Entries != 2 {
		t.Errorf("unexpected coordinator summary %+v", r.Coordinators)
	}
	if r.From != "03/01/2025" || r.To != "03/31/2025" {
		t.Errorf("unexpected period labels %s - %s", r.From, r.To)
	}

	r, err = svc.Payroll(context.Background(), PayPeriod{From: *day(2025, 3, 1), To: *day(2025, 3, 31)}, "SAM@example.org")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Rows) != 1 || r.Rows[0].Coordinator != "Sam Admin" {
		t.Errorf("expected coordinator filter to apply, got %+v", r.Rows)
	}
}

func TestService_PayrollInvertedPeriod(t *testing.T) {
	svc := newTestService(newMockRepo())
	_, err := svc.Payroll(context.Background(), PayPeriod{From: *day(2025, 3, 2), To: *day(2025, 3, 1)}, "")
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCoordinatorLabel(t *testing.T) {
	e := &LogEntry{CoordinatorEmail: "TC@Example.org"}
	if got := coordinatorLabel(e); got != "tc@example.org" {
		t.Errorf("expected email label, got %q", got)
	}
	if got := coordinatorLabel(&LogEntry{CoordinatorName: "none"}); got != "unassigned" {
		t.Errorf("expected unassigned, got %q", got)
	}
}
