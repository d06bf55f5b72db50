package wizard

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
)

// Section is one step of the note wizard.
type Section int

const (
	SectionDemographics Section = iota
	SectionClassification
	SectionTravel
	SectionTasks
	SectionContact1
	SectionContact2
	SectionContact3
	SectionContact4
	SectionFinal
)

// MaxContacts is the length limit of the contact chain.
const MaxContacts = 4

var sectionNames = map[Section]string{
	SectionDemographics:   "demographics",
	SectionClassification: "classification",
	SectionTravel:         "travel",
	SectionTasks:          "tasks",
	SectionContact1:       "contact_1",
	SectionContact2:       "contact_2",
	SectionContact3:       "contact_3",
	SectionContact4:       "contact_4",
	SectionFinal:          "final",
}

func (s Section) String() string {
	if n, ok := sectionNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Section) Valid() bool {
	return s >= SectionDemographics && s <= SectionFinal
}

// contactSlot is the zero-based contact position a contact section edits.
func (s Section) contactSlot() int {
	return int(s - SectionContact1)
}

func (s Section) isContact() bool {
	return s >= SectionContact1 && s <= SectionContact4
}

var (
	ErrSessionNotFound = errors.New("wizard session not found")
	// ErrSectionMismatch is returned when a submit targets a section other
	// than the current one.
	ErrSectionMismatch = errors.New("section is not the current section")
	ErrCategoryLocked  = errors.New("note category is fixed once classification is submitted")
	ErrNoPrevious      = errors.New("no previous section")
	ErrSessionDone     = errors.New("wizard session already completed")
	// ErrAwaitingConfirmation blocks wizard events until a duplicate date
	// has been confirmed or replaced.
	ErrAwaitingConfirmation = errors.New("duplicate service date must be confirmed first")
	// ErrSaveFailed means the assembled entry could not be persisted. The
	// session and its data are kept so the submit can be retried.
	ErrSaveFailed = errors.New("save failed, please retry")
	// ErrSubmitInProgress is returned while another request is recording
	// the session's entry.
	ErrSubmitInProgress = errors.New("entry is already being saved")
)

// FieldErrors maps a field name to a user-facing message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid section: " + strings.Join(parts, "; ")
}

// Enumerations offered by the form.
var (
	NoteTypes     = []string{"New Note", "Amendment"}
	AdminTypes    = []string{"Meeting", "Training", "Travel"}
	CPTCodes      = []string{"T1017", "T2038"}
	ContactTypes  = []string{"CALL", "EMAIL", "IN PERSON", "DOCUMENTATION", "Other"}
	OutcomeValues = []string{
		"DISCONNECTED/WRONG NUMBER",
		"EMAIL",
		"LEFT MESSAGE",
		"NO ANSWER",
		"SPOKE TO CONTACT",
		"VOICEMAIL FULL",
		"Other",
	}
)

// Demographics is the member and coordinator context a session is opened
// with. It is copied into every entry the session produces.
type Demographics struct {
	MedicaidID       string     `json:"medicaid_id"`
	MemberName       string     `json:"member_name"`
	MemberID         int64      `json:"member_id"`
	MemberDOB        *time.Time `json:"member_dob,omitempty"`
	CoordinatorName  string     `json:"coordinator_name"`
	CoordinatorEmail string     `json:"coordinator_email"`
}

// Classification holds the section 1 fields shared by both categories.
type Classification struct {
	NoteType         string  `json:"note_type"`
	AmendmentReason  string  `json:"amendment_reason,omitempty"`
	StartTime        string  `json:"start_time,omitempty"`
	EndTime          string  `json:"end_time,omitempty"`
	TraveledToClient string  `json:"traveled_to_client"`
	TravelTime       float64 `json:"travel_time"`
	TravelDetails    string  `json:"travel_details,omitempty"`
}

type AdministrativeNote struct {
	AdminType     string `json:"admin_type"`
	AdminComments string `json:"admin_comments"`
}

type TravelDetail struct {
	TotalTravelTime float64 `json:"total_travel_time"`
	TravelLocations string  `json:"travel_locations,omitempty"`
	TravelComments  string  `json:"travel_comments,omitempty"`
}

type Tasks struct {
	TasksCompleted   string   `json:"tasks_completed"`
	NextSteps        string   `json:"next_steps"`
	ContactTypes     []string `json:"contact_types"`
	OtherContactType string   `json:"other_contact_type,omitempty"`
}

// ContactEntry is one link of the contact chain.
type ContactEntry struct {
	logentry.Contact
	NeedAnother bool `json:"need_another"`
}

type BillableNote struct {
	TCMHours      float64        `json:"tcm_hours"`
	TCMUnits      int            `json:"tcm_units"`
	ICD10Flag     string         `json:"icd_10_flag"`
	CPTCode       string         `json:"cpt_code"`
	Travel        *TravelDetail  `json:"travel,omitempty"`
	Tasks         *Tasks         `json:"tasks,omitempty"`
	Contacts      []ContactEntry `json:"contacts,omitempty"`
	FinalComments string         `json:"final_comments,omitempty"`
}

// Draft accumulates a note across sections. At most one of Administrative
// and Billable is set.
type Draft struct {
	Member         Demographics        `json:"member"`
	Confirmed      bool                `json:"confirmed"`
	Classification *Classification     `json:"classification,omitempty"`
	Administrative *AdministrativeNote `json:"administrative,omitempty"`
	Billable       *BillableNote       `json:"billable,omitempty"`
}

func (d Draft) clone() Draft {
	out := Draft{Member: d.Member, Confirmed: d.Confirmed}
	if d.Member.MemberDOB != nil {
		dob := *d.Member.MemberDOB
		out.Member.MemberDOB = &dob
	}
	if d.Classification != nil {
		c := *d.Classification
		out.Classification = &c
	}
	if d.Administrative != nil {
		a := *d.Administrative
		out.Administrative = &a
	}
	if d.Billable != nil {
		b := *d.Billable
		if b.Travel != nil {
			t := *b.Travel
			b.Travel = &t
		}
		if b.Tasks != nil {
			t := *b.Tasks
			t.ContactTypes = append([]string(nil), t.ContactTypes...)
			b.Tasks = &t
		}
		b.Contacts = append([]ContactEntry(nil), b.Contacts...)
		out.Billable = &b
	}
	return out
}

// State is the full wizard position. Advance never mutates a State it is
// given.
type State struct {
	Section        Section   `json:"section"`
	Category       string    `json:"note_category,omitempty"`
	CategoryLocked bool      `json:"category_locked"`
	ServiceDate    time.Time `json:"service_date"`
	Draft          Draft     `json:"draft"`
	History        []Section `json:"history"`
}

// NewState opens a wizard at section 0 for a member and locked service date.
func NewState(member Demographics, serviceDate time.Time) State {
	return State{
		Section:     SectionDemographics,
		ServiceDate: serviceDate,
		Draft:       Draft{Member: member},
		History:     []Section{},
	}
}

func (s State) clone() State {
	out := s
	out.Draft = s.Draft.clone()
	out.History = append([]Section{}, s.History...)
	return out
}

// Effect is the side effect a transition asks the caller to perform.
type Effect int

const (
	EffectNone Effect = iota
	// EffectPersist means the draft is complete and must be stored. The
	// session ends once the store accepts it.
	EffectPersist
)

// Event is an input to Advance.
type Event interface {
	isEvent()
}

// Submit carries the payload of the current section.
type Submit struct {
	Section Section
	Payload Payload
}

// SelectCategory picks the note category before classification is
// submitted. A different category discards the draft's section data.
type SelectCategory struct {
	Category string
}

// Back returns to the previously visited section.
type Back struct{}

func (Submit) isEvent()         {}
func (SelectCategory) isEvent() {}
func (Back) isEvent()           {}

// Rules are the configurable parts of validation.
type Rules struct {
	Units logentry.UnitRule
}

func (r Rules) units(hours float64) int {
	if r.Units == nil {
		return logentry.BaselineUnits(hours)
	}
	return r.Units(hours)
}
