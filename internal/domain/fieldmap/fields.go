package fieldmap

// Kind selects the defaulting and coercion rule applied to a field.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindHours
	KindFlag
	KindList
	KindDate
	KindTime
	KindTimestamp
	KindContacts
)

// Field is one entry of the fixed output schema.
type Field struct {
	Name string
	Kind Kind
}

// Placeholder is written for absent text and list values.
const Placeholder = "none"

// Canonical output field names.
const (
	MedicaidID          = "medicaid_id"
	MemberName          = "member_name"
	MemberID            = "member_id"
	MemberDOB           = "member_dob"
	CoordinatorName     = "coordinator_name"
	CoordinatorEmail    = "coordinator_email"
	StartTime           = "start_time"
	EndTime             = "end_time"
	NoteType            = "note_type"
	AmendmentReason     = "amendment_reason"
	NoteCategory        = "note_category"
	TraveledToClient    = "traveled_to_client"
	TravelTime          = "travel_time"
	TravelDetails       = "travel_details"
	TotalTravelTime     = "total_travel_time"
	TravelLocations     = "travel_locations"
	TravelComments      = "travel_comments"
	TCMHours            = "tcm_hours"
	TCMUnits            = "tcm_units"
	ICD10Flag           = "icd_10_flag"
	CPTCode             = "cpt_code"
	AdminType           = "admin_type"
	AdminComments       = "admin_comments"
	TasksCompleted      = "tasks_completed"
	NextSteps           = "next_steps"
	ContactTypes        = "contact_types"
	OtherContactType    = "other_contact_type"
	Contacts            = "contacts"
	FinalComments       = "final_comments"
	ServiceDate         = "service_date"
	SubmissionTimestamp = "submission_timestamp"

	ClaimStatus      = "claim_status"
	ClaimSubmittedAt = "claim_submitted_at"
)

// Contact sub-record field names.
const (
	ContactName         = "name"
	ContactEmail        = "email"
	ContactPhone        = "phone"
	ContactOutcome      = "outcome"
	ContactOtherOutcome = "other_outcome"
)

// RequiredFields is the fixed schema every mapped record carries, in the
// order used for exports.
var RequiredFields = []Field{
	{MedicaidID, KindText},
	{MemberName, KindText},
	{MemberID, KindInt},
	{MemberDOB, KindDate},
	{CoordinatorName, KindText},
	{CoordinatorEmail, KindText},
	{StartTime, KindTime},
	{EndTime, KindTime},
	{NoteType, KindText},
	{AmendmentReason, KindText},
	{NoteCategory, KindText},
	{TraveledToClient, KindFlag},
	{TravelTime, KindHours},
	{TravelDetails, KindText},
	{TotalTravelTime, KindHours},
	{TravelLocations, KindText},
	{TravelComments, KindText},
	{TCMHours, KindHours},
	{TCMUnits, KindInt},
	{ICD10Flag, KindFlag},
	{CPTCode, KindText},
	{AdminType, KindText},
	{AdminComments, KindText},
	{TasksCompleted, KindText},
	{NextSteps, KindText},
	{ContactTypes, KindList},
	{OtherContactType, KindText},
	{Contacts, KindContacts},
	{FinalComments, KindText},
	{ServiceDate, KindDate},
	{SubmissionTimestamp, KindTimestamp},
}

// ContactFields is the fixed schema of each nested contact.
var ContactFields = []Field{
	{ContactName, KindText},
	{ContactEmail, KindText},
	{ContactPhone, KindText},
	{ContactOutcome, KindText},
	{ContactOtherOutcome, KindText},
}

// passThrough keys are bookkeeping fields owned by the record store. They are
// copied verbatim when present and never defaulted.
var passThrough = []string{ClaimStatus, ClaimSubmittedAt}

// NameTable renames canonical fields on output. Names missing from the table
// are emitted unchanged.
type NameTable map[string]string

func (t NameTable) out(name string) string {
	if n, ok := t[name]; ok {
		return n
	}
	return name
}

// Canonical emits the storage schema as is.
var Canonical = NameTable{}

// LegacyExport emits the upper-case column names used by the historical
// spreadsheet exports.
var LegacyExport = NameTable{
	MedicaidID:          "MEDICAID ID",
	MemberName:          "MEMBER NAME",
	MemberID:            "MEMBER ID",
	MemberDOB:           "DOB",
	CoordinatorName:     "TRANSITION COORDINATOR",
	CoordinatorEmail:    "TC EMAIL",
	StartTime:           "START TIME",
	EndTime:             "END TIME",
	NoteType:            "NOTE TYPE",
	AmendmentReason:     "AMENDMENT REASON",
	NoteCategory:        "NOTE CATEGORY",
	TraveledToClient:    "TRAVELED TO CLIENT",
	TravelTime:          "TRAVEL TIME",
	TravelDetails:       "TRAVEL DETAILS",
	TotalTravelTime:     "TOTAL TRAVEL TIME",
	TravelLocations:     "TRAVEL LOCATIONS",
	TravelComments:      "TRAVEL COMMENTS",
	TCMHours:            "TCM HOURS",
	TCMUnits:            "TCM UNITS",
	ICD10Flag:           "ICD 10",
	CPTCode:             "CPT CODE",
	AdminType:           "ADMIN TYPE",
	AdminComments:       "ADMIN COMMENTS",
	TasksCompleted:      "TASKS COMPLETED",
	NextSteps:           "NEXT STEPS",
	ContactTypes:        "CONTACT TYPES",
	OtherContactType:    "OTHER CONTACT TYPE",
	Contacts:            "CONTACTS",
	FinalComments:       "FINAL COMMENTS",
	ServiceDate:         "SERVICE DATE",
	SubmissionTimestamp: "TIMESTAMP",
}

// Header returns the output name of a canonical field under t.
func (t NameTable) Header(name string) string {
	return t.out(name)
}
