package wizard

import (
	"errors"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
)

var errIncompleteDraft = errors.New("draft has no note for its category")

// Accumulated flattens the draft into the working map the field mapper
// consumes. Only values the user supplied are present.
func Accumulated(s State) map[string]any {
	d := s.Draft
	acc := map[string]any{
		fieldmap.MedicaidID:       d.Member.MedicaidID,
		fieldmap.MemberName:       d.Member.MemberName,
		fieldmap.MemberID:         d.Member.MemberID,
		fieldmap.CoordinatorName:  d.Member.CoordinatorName,
		fieldmap.CoordinatorEmail: d.Member.CoordinatorEmail,
		fieldmap.NoteCategory:     s.Category,
		fieldmap.ServiceDate:      s.ServiceDate,
	}
	if d.Member.MemberDOB != nil {
		acc[fieldmap.MemberDOB] = *d.Member.MemberDOB
	}

	if c := d.Classification; c != nil {
		acc[fieldmap.NoteType] = c.NoteType
		acc[fieldmap.TraveledToClient] = c.TraveledToClient
		if c.AmendmentReason != "" {
			acc[fieldmap.AmendmentReason] = c.AmendmentReason
		}
		if c.StartTime != "" {
			acc[fieldmap.StartTime] = c.StartTime
		}
		if c.EndTime != "" {
			acc[fieldmap.EndTime] = c.EndTime
		}
		if c.TraveledToClient == "Yes" {
			acc[fieldmap.TravelTime] = c.TravelTime
			acc[fieldmap.TravelDetails] = c.TravelDetails
		}
	}

	if a := d.Administrative; a != nil {
		acc[fieldmap.AdminType] = a.AdminType
		acc[fieldmap.AdminComments] = a.AdminComments
	}

	if b := d.Billable; b != nil {
		acc[fieldmap.TCMHours] = b.TCMHours
		acc[fieldmap.TCMUnits] = b.TCMUnits
		acc[fieldmap.ICD10Flag] = b.ICD10Flag
		acc[fieldmap.CPTCode] = b.CPTCode
		if t := b.Travel; t != nil {
			acc[fieldmap.TotalTravelTime] = t.TotalTravelTime
			if t.TravelLocations != "" {
				acc[fieldmap.TravelLocations] = t.TravelLocations
			}
			if t.TravelComments != "" {
				acc[fieldmap.TravelComments] = t.TravelComments
			}
		}
		if t := b.Tasks; t != nil {
			acc[fieldmap.TasksCompleted] = t.TasksCompleted
			acc[fieldmap.NextSteps] = t.NextSteps
			acc[fieldmap.ContactTypes] = t.ContactTypes
			if t.OtherContactType != "" {
				acc[fieldmap.OtherContactType] = t.OtherContactType
			}
		}
		if len(b.Contacts) > 0 {
			contacts := make([]map[string]any, 0, len(b.Contacts))
			for _, c := range b.Contacts {
				m := map[string]any{
					fieldmap.ContactName:    c.Name,
					fieldmap.ContactOutcome: c.Outcome,
				}
				if c.Email != "" {
					m[fieldmap.ContactEmail] = c.Email
				}
				if c.Phone != "" {
					m[fieldmap.ContactPhone] = c.Phone
				}
				if c.OtherOutcome != "" {
					m[fieldmap.ContactOtherOutcome] = c.OtherOutcome
				}
				contacts = append(contacts, m)
			}
			acc[fieldmap.Contacts] = contacts
		}
		if b.FinalComments != "" {
			acc[fieldmap.FinalComments] = b.FinalComments
		}
	}
	return acc
}

// Assemble maps a completed draft into the canonical log entry.
func Assemble(s State) (*logentry.LogEntry, error) {
	switch s.Category {
	case logentry.CategoryAdministrative:
		if s.Draft.Administrative == nil {
			return nil, errIncompleteDraft
		}
	case logentry.CategoryBillable:
		if s.Draft.Billable == nil {
			return nil, errIncompleteDraft
		}
	default:
		return nil, errIncompleteDraft
	}
	return logentry.FromMap(fieldmap.Map(Accumulated(s), fieldmap.Canonical))
}
