package wizard

import (
	"fmt"
	"strings"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
)

// Advance applies one event to a state and returns the resulting state and
// the effect the caller must carry out. It performs no I/O. On error the
// returned state equals the input.
//
// A failed submit leaves the state untouched, so data merged by earlier
// sections stays in the draft.
func Advance(s State, ev Event, r Rules) (State, Effect, error) {
	switch e := ev.(type) {
	case Submit:
		return submit(s, e, r)
	case SelectCategory:
		return selectCategory(s, e)
	case Back:
		return back(s)
	}
	return s, EffectNone, fmt.Errorf("unknown event %T", ev)
}

func submit(s State, e Submit, r Rules) (State, Effect, error) {
	if e.Section != s.Section {
		return s, EffectNone, fmt.Errorf("%w: submitted %s, current %s", ErrSectionMismatch, e.Section, s.Section)
	}
	if e.Payload == nil {
		return s, EffectNone, FieldErrors{"payload": "is required"}
	}
	if err := checkPayloadType(e.Section, e.Payload); err != nil {
		return s, EffectNone, err
	}
	if errs := e.Payload.validate(s, r); len(errs) > 0 {
		return s, EffectNone, errs
	}

	next := s.clone()
	var to Section
	effect := EffectNone

	switch p := e.Payload.(type) {
	case *DemographicsPayload:
		next.Draft.Confirmed = true
		to = SectionClassification

	case *ClassificationPayload:
		category := p.category(s)
		if category != next.Category {
			resetSections(&next, category)
		}
		next.CategoryLocked = true
		mergeClassification(&next.Draft, p)
		if category == logentry.CategoryAdministrative {
			next.Draft.Billable = nil
			next.Draft.Administrative = &AdministrativeNote{
				AdminType:     p.AdminType,
				AdminComments: strings.TrimSpace(p.AdminComments),
			}
			return next, EffectPersist, nil
		}
		next.Draft.Administrative = nil
		b := next.billable()
		b.TCMHours = p.TCMHours
		b.TCMUnits = r.units(p.TCMHours)
		b.ICD10Flag = p.ICD10Flag
		b.CPTCode = normalizeCPT(p.CPTCode)
		to = SectionTravel

	case *TravelPayload:
		next.billable().Travel = &TravelDetail{
			TotalTravelTime: p.TotalTravelTime,
			TravelLocations: strings.TrimSpace(p.TravelLocations),
			TravelComments:  strings.TrimSpace(p.TravelComments),
		}
		to = SectionTasks

	case *TasksPayload:
		t := &Tasks{
			TasksCompleted: strings.TrimSpace(p.TasksCompleted),
			NextSteps:      strings.TrimSpace(p.NextSteps),
			ContactTypes:   append([]string(nil), p.ContactTypes...),
		}
		if oneOf("Other", p.ContactTypes) {
			t.OtherContactType = strings.TrimSpace(p.OtherContactType)
		}
		next.billable().Tasks = t
		to = SectionContact1

	case *ContactPayload:
		to = mergeContact(next.billable(), s.Section, p)

	case *FinalPayload:
		next.billable().FinalComments = strings.TrimSpace(p.FinalComments)
		to = SectionFinal
		effect = EffectPersist
	}

	if effect == EffectNone {
		next.History = append(next.History, s.Section)
		next.Section = to
	}
	return next, effect, nil
}

func checkPayloadType(sec Section, p Payload) error {
	var ok bool
	switch p.(type) {
	case *DemographicsPayload:
		ok = sec == SectionDemographics
	case *ClassificationPayload:
		ok = sec == SectionClassification
	case *TravelPayload:
		ok = sec == SectionTravel
	case *TasksPayload:
		ok = sec == SectionTasks
	case *ContactPayload:
		ok = sec.isContact()
	case *FinalPayload:
		ok = sec == SectionFinal
	}
	if !ok {
		return FieldErrors{"payload": fmt.Sprintf("section %s does not accept %T", sec, p)}
	}
	return nil
}

// billable returns the billable note, creating it on first use.
func (s *State) billable() *BillableNote {
	if s.Draft.Billable == nil {
		s.Draft.Billable = &BillableNote{}
	}
	return s.Draft.Billable
}

// resetSections discards everything entered after section 0 and switches to
// category.
func resetSections(s *State, category string) {
	s.Category = category
	s.Draft.Classification = nil
	s.Draft.Administrative = nil
	s.Draft.Billable = nil
}

func mergeClassification(d *Draft, p *ClassificationPayload) {
	c := &Classification{
		NoteType:         p.NoteType,
		StartTime:        strings.TrimSpace(p.StartTime),
		EndTime:          strings.TrimSpace(p.EndTime),
		TraveledToClient: p.TraveledToClient,
	}
	if p.NoteType == "Amendment" {
		c.AmendmentReason = strings.TrimSpace(p.AmendmentReason)
	}
	if p.TraveledToClient == "Yes" {
		c.TravelTime = p.TravelTime
		c.TravelDetails = strings.TrimSpace(p.TravelDetails)
	}
	d.Classification = c
}

// mergeContact stores the contact for sec and returns the next section. A
// "No" answer drops any contacts entered further down the chain earlier in
// the session.
func mergeContact(b *BillableNote, sec Section, p *ContactPayload) Section {
	slot := sec.contactSlot()
	entry := ContactEntry{
		Contact: logentry.Contact{
			Name:    strings.TrimSpace(p.Name),
			Email:   strings.TrimSpace(p.Email),
			Phone:   strings.TrimSpace(p.Phone),
			Outcome: p.Outcome,
		},
		NeedAnother: p.NeedAnother == "Yes" && slot < MaxContacts-1,
	}
	if p.Outcome == "Other" {
		entry.OtherOutcome = strings.TrimSpace(p.OtherOutcome)
	}

	if slot < len(b.Contacts) {
		b.Contacts[slot] = entry
	} else {
		b.Contacts = append(b.Contacts, entry)
	}
	if entry.NeedAnother {
		return sec + 1
	}
	b.Contacts = b.Contacts[:slot+1]
	return SectionFinal
}

func selectCategory(s State, e SelectCategory) (State, Effect, error) {
	if s.CategoryLocked {
		return s, EffectNone, ErrCategoryLocked
	}
	category := fieldmap.CanonicalCategory(e.Category)
	if category != logentry.CategoryAdministrative && category != logentry.CategoryBillable {
		return s, EffectNone, FieldErrors{"note_category": "must be Administrative or Billable-TCM"}
	}
	if category == s.Category {
		return s, EffectNone, nil
	}
	next := s.clone()
	resetSections(&next, category)
	return next, EffectNone, nil
}

func back(s State) (State, Effect, error) {
	if len(s.History) == 0 {
		return s, EffectNone, ErrNoPrevious
	}
	next := s.clone()
	next.Section = next.History[len(next.History)-1]
	next.History = next.History[:len(next.History)-1]
	return next, EffectNone, nil
}
