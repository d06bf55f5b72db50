package wizard

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
)

// Payload is the decoded body of one section submit. Validation only looks
// at the payload itself, never at other sections.
type Payload interface {
	validate(s State, r Rules) FieldErrors
}

type DemographicsPayload struct {
	Confirmed bool `json:"confirmed" schema:"confirmed"`
}

type ClassificationPayload struct {
	NoteCategory     string  `json:"note_category" schema:"note_category"`
	NoteType         string  `json:"note_type" schema:"note_type"`
	AmendmentReason  string  `json:"amendment_reason" schema:"amendment_reason"`
	StartTime        string  `json:"start_time" schema:"start_time"`
	EndTime          string  `json:"end_time" schema:"end_time"`
	TraveledToClient string  `json:"traveled_to_client" schema:"traveled_to_client"`
	TravelTime       float64 `json:"travel_time" schema:"travel_time"`
	TravelDetails    string  `json:"travel_details" schema:"travel_details"`

	AdminType     string `json:"admin_type" schema:"admin_type"`
	AdminComments string `json:"admin_comments" schema:"admin_comments"`

	TCMHours  float64 `json:"tcm_hours" schema:"tcm_hours"`
	ICD10Flag string  `json:"icd_10_flag" schema:"icd_10_flag"`
	CPTCode   string  `json:"cpt_code" schema:"cpt_code"`
}

type TravelPayload struct {
	TotalTravelTime float64 `json:"total_travel_time" schema:"total_travel_time"`
	TravelLocations string  `json:"travel_locations" schema:"travel_locations"`
	TravelComments  string  `json:"travel_comments" schema:"travel_comments"`
}

type TasksPayload struct {
	TasksCompleted   string   `json:"tasks_completed" schema:"tasks_completed"`
	NextSteps        string   `json:"next_steps" schema:"next_steps"`
	ContactTypes     []string `json:"contact_types" schema:"contact_types"`
	OtherContactType string   `json:"other_contact_type" schema:"other_contact_type"`
}

type ContactPayload struct {
	Name         string `json:"name" schema:"name"`
	Email        string `json:"email" schema:"email"`
	Phone        string `json:"phone" schema:"phone"`
	Outcome      string `json:"outcome" schema:"outcome"`
	OtherOutcome string `json:"other_outcome" schema:"other_outcome"`
	NeedAnother  string `json:"need_another" schema:"need_another"`
}

type FinalPayload struct {
	FinalComments string `json:"final_comments" schema:"final_comments"`
}

// NewPayload returns an empty payload of the type section expects, ready to
// be decoded into.
func NewPayload(s Section) (Payload, error) {
	switch {
	case s == SectionDemographics:
		return &DemographicsPayload{}, nil
	case s == SectionClassification:
		return &ClassificationPayload{}, nil
	case s == SectionTravel:
		return &TravelPayload{}, nil
	case s == SectionTasks:
		return &TasksPayload{}, nil
	case s.isContact():
		return &ContactPayload{}, nil
	case s == SectionFinal:
		return &FinalPayload{}, nil
	}
	return nil, fmt.Errorf("unknown section %d", s)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func yesNo(v string) bool { return v == "Yes" || v == "No" }

// checkHours validates a value against the 24 hour ceiling and the quarter
// hour grid. With positive set, zero is rejected too.
func checkHours(errs FieldErrors, field string, v float64, positive bool) {
	switch {
	case positive && v <= 0:
		errs[field] = "must be greater than 0"
	case v < 0 || v > logentry.MaxHours:
		errs[field] = fmt.Sprintf("must be between 0 and %.0f", logentry.MaxHours)
	case !logentry.OnQuarterHour(v):
		errs[field] = "must be in 0.25 hour increments"
	}
}

func parseClock(v string) (time.Time, bool) {
	t, err := time.Parse(fieldmap.TimeLayout, strings.TrimSpace(v))
	return t, err == nil
}

// normalizeCPT accepts either the bare code or the code followed by its
// description.
func normalizeCPT(v string) string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func (p *DemographicsPayload) validate(State, Rules) FieldErrors {
	errs := FieldErrors{}
	if !p.Confirmed {
		errs["confirmed"] = "member details and service date must be confirmed"
	}
	return errs
}

// category resolves the note category a classification submit applies to.
func (p *ClassificationPayload) category(s State) string {
	if !blank(p.NoteCategory) {
		return fieldmap.CanonicalCategory(p.NoteCategory)
	}
	return s.Category
}

func (p *ClassificationPayload) validate(s State, r Rules) FieldErrors {
	errs := FieldErrors{}

	category := p.category(s)
	switch {
	case category == "":
		errs["note_category"] = "is required"
	case category != logentry.CategoryAdministrative && category != logentry.CategoryBillable:
		errs["note_category"] = "must be Administrative or Billable-TCM"
	case s.CategoryLocked && category != s.Category:
		errs["note_category"] = "cannot change after classification is submitted"
	}

	if !oneOf(p.NoteType, NoteTypes) {
		errs["note_type"] = "must be New Note or Amendment"
	} else if p.NoteType == "Amendment" && blank(p.AmendmentReason) {
		errs["amendment_reason"] = "is required for an amendment"
	}

	var start, end time.Time
	var haveStart, haveEnd bool
	if !blank(p.StartTime) {
		if start, haveStart = parseClock(p.StartTime); !haveStart {
			errs["start_time"] = "must be HH:MM"
		}
	}
	if !blank(p.EndTime) {
		if end, haveEnd = parseClock(p.EndTime); !haveEnd {
			errs["end_time"] = "must be HH:MM"
		}
	}
	if haveStart && haveEnd && !end.After(start) {
		errs["end_time"] = "must be after start_time"
	}

	if !yesNo(p.TraveledToClient) {
		errs["traveled_to_client"] = "must be Yes or No"
	} else if p.TraveledToClient == "Yes" {
		checkHours(errs, "travel_time", p.TravelTime, true)
		if blank(p.TravelDetails) {
			errs["travel_details"] = "is required when travelling to the client"
		}
	}

	switch category {
	case logentry.CategoryAdministrative:
		if !oneOf(p.AdminType, AdminTypes) {
			errs["admin_type"] = "must be Meeting, Training or Travel"
		}
		if blank(p.AdminComments) {
			errs["admin_comments"] = "is required"
		}
	case logentry.CategoryBillable:
		checkHours(errs, "tcm_hours", p.TCMHours, true)
		if _, bad := errs["tcm_hours"]; !bad && r.units(p.TCMHours) > logentry.MaxUnits {
			errs["tcm_hours"] = fmt.Sprintf("converts to more than %d units", logentry.MaxUnits)
		}
		if !yesNo(p.ICD10Flag) {
			errs["icd_10_flag"] = "must be Yes or No"
		}
		if !oneOf(normalizeCPT(p.CPTCode), CPTCodes) {
			errs["cpt_code"] = "must be one of " + strings.Join(CPTCodes, ", ")
		}
	}
	return errs
}

func (p *TravelPayload) validate(State, Rules) FieldErrors {
	errs := FieldErrors{}
	checkHours(errs, "total_travel_time", p.TotalTravelTime, false)
	if p.TotalTravelTime > 0 && blank(p.TravelLocations) {
		errs["travel_locations"] = "is required when travel time is recorded"
	}
	return errs
}

func (p *TasksPayload) validate(State, Rules) FieldErrors {
	errs := FieldErrors{}
	if blank(p.TasksCompleted) {
		errs["tasks_completed"] = "is required"
	}
	if blank(p.NextSteps) {
		errs["next_steps"] = "is required"
	}
	if len(p.ContactTypes) == 0 {
		errs["contact_types"] = "select at least one contact type"
	}
	for _, t := range p.ContactTypes {
		if !oneOf(t, ContactTypes) {
			errs["contact_types"] = "unknown contact type " + t
			break
		}
	}
	if oneOf("Other", p.ContactTypes) && blank(p.OtherContactType) {
		errs["other_contact_type"] = "is required when Other is selected"
	}
	return errs
}

// validPhone accepts 10 digits with an optional leading +1. Spaces, dots,
// dashes and parentheses are ignored.
func validPhone(v string) bool {
	digits := make([]rune, 0, len(v))
	for i, r := range strings.TrimSpace(v) {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return false
		}
	}
	if strings.HasPrefix(strings.TrimSpace(v), "+") {
		return len(digits) == 11 && digits[0] == '1'
	}
	return len(digits) == 10
}

func (p *ContactPayload) validate(s State, _ Rules) FieldErrors {
	errs := FieldErrors{}
	if blank(p.Name) {
		errs["name"] = "is required"
	}
	switch {
	case blank(p.Outcome):
		errs["outcome"] = "is required"
	case !oneOf(p.Outcome, OutcomeValues):
		errs["outcome"] = "unknown outcome"
	case p.Outcome == "Other" && blank(p.OtherOutcome):
		errs["other_outcome"] = "is required when the outcome is Other"
	}
	if !blank(p.Email) {
		if _, err := mail.ParseAddress(strings.TrimSpace(p.Email)); err != nil {
			errs["email"] = "is not a valid email address"
		}
	}
	if !blank(p.Phone) && !validPhone(p.Phone) {
		errs["phone"] = "must have 10 digits"
	}
	if s.Section != SectionContact4 && !yesNo(p.NeedAnother) {
		errs["need_another"] = "must be Yes or No"
	}
	return errs
}

func (p *FinalPayload) validate(State, Rules) FieldErrors {
	return FieldErrors{}
}
