package logentry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
)

// Note categories.
const (
	CategoryAdministrative = "Administrative"
	CategoryBillable       = "Billable-TCM"
)

// Claim states for billable entries.
const (
	ClaimPending   = "Pending"
	ClaimSubmitted = "Submitted"
)

// LogEntry is one submitted service note in the canonical storage schema.
type LogEntry struct {
	MedicaidID       string `json:"medicaid_id" mapstructure:"medicaid_id"`
	MemberName       string `json:"member_name" mapstructure:"member_name"`
	MemberID         int64  `json:"member_id" mapstructure:"member_id"`
	MemberDOB        string `json:"member_dob" mapstructure:"member_dob"`
	CoordinatorName  string `json:"coordinator_name" mapstructure:"coordinator_name"`
	CoordinatorEmail string `json:"coordinator_email" mapstructure:"coordinator_email"`
	StartTime        string `json:"start_time" mapstructure:"start_time"`
	EndTime          string `json:"end_time" mapstructure:"end_time"`

	NoteType        string `json:"note_type" mapstructure:"note_type"`
	AmendmentReason string `json:"amendment_reason" mapstructure:"amendment_reason"`
	NoteCategory    string `json:"note_category" mapstructure:"note_category"`

	TraveledToClient string  `json:"traveled_to_client" mapstructure:"traveled_to_client"`
	TravelTime       float64 `json:"travel_time" mapstructure:"travel_time"`
	TravelDetails    string  `json:"travel_details" mapstructure:"travel_details"`
	TotalTravelTime  float64 `json:"total_travel_time" mapstructure:"total_travel_time"`
	TravelLocations  string  `json:"travel_locations" mapstructure:"travel_locations"`
	TravelComments   string  `json:"travel_comments" mapstructure:"travel_comments"`

	TCMHours  float64 `json:"tcm_hours" mapstructure:"tcm_hours"`
	TCMUnits  int     `json:"tcm_units" mapstructure:"tcm_units"`
	ICD10Flag string  `json:"icd_10_flag" mapstructure:"icd_10_flag"`
	CPTCode   string  `json:"cpt_code" mapstructure:"cpt_code"`

	AdminType     string `json:"admin_type" mapstructure:"admin_type"`
	AdminComments string `json:"admin_comments" mapstructure:"admin_comments"`

	TasksCompleted   string    `json:"tasks_completed" mapstructure:"tasks_completed"`
	NextSteps        string    `json:"next_steps" mapstructure:"next_steps"`
	ContactTypes     string    `json:"contact_types" mapstructure:"contact_types"`
	OtherContactType string    `json:"other_contact_type" mapstructure:"other_contact_type"`
	Contacts         []Contact `json:"contacts" mapstructure:"contacts"`
	FinalComments    string    `json:"final_comments" mapstructure:"final_comments"`

	ServiceDate         string `json:"service_date" mapstructure:"service_date"`
	SubmissionTimestamp string `json:"submission_timestamp" mapstructure:"submission_timestamp"`

	ClaimStatus      string `json:"claim_status,omitempty" mapstructure:"claim_status"`
	ClaimSubmittedAt string `json:"claim_submitted_at,omitempty" mapstructure:"claim_submitted_at"`
}

type Contact struct {
	Name         string `json:"name" mapstructure:"name"`
	Email        string `json:"email" mapstructure:"email"`
	Phone        string `json:"phone" mapstructure:"phone"`
	Outcome      string `json:"outcome" mapstructure:"outcome"`
	OtherOutcome string `json:"other_outcome" mapstructure:"other_outcome"`
}

// IndexedEntry pairs an entry with its position in the store. Positions are
// stable because entries are only ever appended or replaced in place.
type IndexedEntry struct {
	Index int `json:"index"`
	*LogEntry
}

// FromMap decodes a mapped record (the output of fieldmap.Map or
// fieldmap.Normalize) into a LogEntry.
func FromMap(m map[string]any) (*LogEntry, error) {
	var e LogEntry
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &e,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode log entry: %w", err)
	}
	return &e, nil
}

// ToMap renders the entry as a canonical field map, the input shape
// fieldmap.Map expects.
func (e *LogEntry) ToMap() map[string]any {
	data, _ := json.Marshal(e)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

// ServiceDay parses the service date, falling back to the submission day for
// records written before the service date was captured.
func (e *LogEntry) ServiceDay() (time.Time, bool) {
	if d, ok := fieldmap.ParseDate(e.ServiceDate); ok {
		return d, true
	}
	if ts, ok := fieldmap.ParseTimestamp(e.SubmissionTimestamp); ok {
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// SubmittedAt parses the submission timestamp.
func (e *LogEntry) SubmittedAt() (time.Time, bool) {
	return fieldmap.ParseTimestamp(e.SubmissionTimestamp)
}

func (e *LogEntry) IsBillable() bool {
	return e.NoteCategory == CategoryBillable
}

func present(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && s != fieldmap.Placeholder
}

// hasAdministrativeFields reports whether any administrative-only field is
// populated.
func (e *LogEntry) hasAdministrativeFields() bool {
	return present(e.AdminType) || present(e.AdminComments)
}

// hasBillableFields reports whether any billable-only field is populated.
func (e *LogEntry) hasBillableFields() bool {
	return e.TCMHours > 0 || e.TCMUnits > 0 || present(e.CPTCode) || e.ICD10Flag == "Yes" ||
		present(e.TasksCompleted) || present(e.NextSteps) || len(e.Contacts) > 0
}

// UnitRule converts TCM hours into billable units.
type UnitRule func(hours float64) int

// Unit conversion limits.
const (
	MaxHours = 24.0
	MaxUnits = 96
)

// BaselineUnits is units = hours x 4.
func BaselineUnits(hours float64) int {
	return int(math.Round(hours * 4))
}

// AdjustedUnits adds a quarter hour before converting whenever hours > 0.
func AdjustedUnits(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int((hours + 0.25) * 4)
}

// OnQuarterHour reports whether v falls on the 0.25 hour grid.
func OnQuarterHour(v float64) bool {
	q := v * 4
	return math.Abs(q-math.Round(q)) < 1e-9
}

// Validate checks a replacement record from the admin console. It enforces
// the one-group-per-category rule and the numeric limits, and re-derives
// tcm_units with rule.
func (e *LogEntry) Validate(rule UnitRule) error {
	if !present(e.MedicaidID) {
		return fmt.Errorf("medicaid_id is required")
	}
	switch e.NoteCategory {
	case CategoryAdministrative:
		if e.hasBillableFields() {
			return fmt.Errorf("administrative entries cannot carry billable fields")
		}
	case CategoryBillable:
		if e.hasAdministrativeFields() {
			return fmt.Errorf("billable entries cannot carry administrative fields")
		}
	default:
		return fmt.Errorf("invalid note_category: %s", e.NoteCategory)
	}
	for name, v := range map[string]float64{
		"tcm_hours":         e.TCMHours,
		"travel_time":       e.TravelTime,
		"total_travel_time": e.TotalTravelTime,
	} {
		if v < 0 || v > MaxHours {
			return fmt.Errorf("%s must be between 0 and %.0f", name, MaxHours)
		}
		if !OnQuarterHour(v) {
			return fmt.Errorf("%s must be in 0.25 hour increments", name)
		}
	}
	if len(e.Contacts) > 4 {
		return fmt.Errorf("at most 4 contacts are allowed")
	}
	if e.IsBillable() {
		units := rule(e.TCMHours)
		if units > MaxUnits {
			return fmt.Errorf("tcm_units cannot exceed %d", MaxUnits)
		}
		e.TCMUnits = units
	} else {
		e.TCMUnits = 0
	}
	if _, ok := e.ServiceDay(); !ok {
		return fmt.Errorf("service_date is not a valid date")
	}
	return nil
}
