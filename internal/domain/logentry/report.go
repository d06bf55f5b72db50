package logentry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/export"
)

// Sheet names used by the admin exports.
const (
	SheetSubmissions = "Form Submissions"
	SheetClaims      = "Claims"
	SheetPayroll     = "Payroll"
	SheetSummary     = "Summary"
)

// SubmissionsSheet renders the admin table columns.
func SubmissionsSheet(items []*IndexedEntry) export.Sheet {
	s := export.Sheet{
		Name:   SheetSubmissions,
		Header: []string{"Timestamp", "Medicaid ID", "Member Name", "Service Date", "Note Category", "TCM Hours", "Travel Time"},
	}
	for _, it := range items {
		s.Rows = append(s.Rows, []interface{}{
			it.SubmissionTimestamp, it.MedicaidID, it.MemberName, it.ServiceDate,
			it.NoteCategory, it.TCMHours, it.TravelTime,
		})
	}
	return s
}

// FullSubmissionsSheet renders every schema field under the legacy export
// names. Contacts collapse into one cell.
func FullSubmissionsSheet(items []*IndexedEntry) export.Sheet {
	s := export.Sheet{Name: SheetSubmissions}
	for _, f := range fieldmap.RequiredFields {
		s.Header = append(s.Header, fieldmap.LegacyExport.Header(f.Name))
	}
	for _, it := range items {
		m := fieldmap.Map(it.ToMap(), fieldmap.LegacyExport)
		row := make([]interface{}, 0, len(s.Header))
		for _, h := range s.Header {
			v := m[h]
			if contacts, ok := v.([]map[string]any); ok {
				v = contactSummary(contacts)
			}
			row = append(row, v)
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

func contactSummary(contacts []map[string]any) string {
	if len(contacts) == 0 {
		return fieldmap.Placeholder
	}
	parts := make([]string, 0, len(contacts))
	for _, c := range contacts {
		outcome := fmt.Sprint(c[fieldmap.ContactOutcome])
		if outcome == "Other" {
			outcome = fmt.Sprint(c[fieldmap.ContactOtherOutcome])
		}
		parts = append(parts, fmt.Sprintf("%v (%s)", c[fieldmap.ContactName], outcome))
	}
	return strings.Join(parts, "; ")
}

// ClaimsSheet renders billable entries with their claim state.
func ClaimsSheet(items []*IndexedEntry) export.Sheet {
	s := export.Sheet{
		Name:   SheetClaims,
		Header: []string{"Medicaid ID", "Member Name", "Service Date", "TCM Hours", "TCM Units", "CPT Code", "Claim Status", "Claim Submitted At", "Timestamp"},
	}
	for _, it := range items {
		s.Rows = append(s.Rows, []interface{}{
			it.MedicaidID, it.MemberName, it.ServiceDate, it.TCMHours, it.TCMUnits,
			it.CPTCode, it.EffectiveClaimStatus(), it.ClaimSubmittedAt, it.SubmissionTimestamp,
		})
	}
	return s
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func hours(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PayrollSheets renders the per-entry payroll and its summary.
func PayrollSheets(r *PayrollReport) []export.Sheet {
	detail := export.Sheet{
		Name:   SheetPayroll,
		Header: []string{"TC Name", "Service Date", "Medicaid ID", "TCM Hours", "Travel Hours", "Total Hours", "Pay Rate", "Pay Amount"},
	}
	for _, row := range r.Rows {
		detail.Rows = append(detail.Rows, []interface{}{
			row.Coordinator, row.ServiceDate, row.MedicaidID, row.TCMHours, row.TravelHours,
			row.TotalHours, money(row.PayRate), money(row.PayAmount),
		})
	}

	summary := export.Sheet{
		Name:   SheetSummary,
		Header: []string{"Metric", "Value"},
		Rows: [][]interface{}{
			{"Pay Period", r.From + " - " + r.To},
			{"Total TCM Hours", hours(r.Totals.TCMHours)},
			{"Total Travel Hours", hours(r.Totals.TravelHours)},
			{"Total Hours", hours(r.Totals.TotalHours)},
			{"Total Pay", money(r.Totals.TotalPay)},
		},
	}
	for _, cp := range r.Coordinators {
		summary.Rows = append(summary.Rows, []interface{}{
			cp.Coordinator,
			fmt.Sprintf("%d entries, %s hours, %s", cp.Entries, hours(cp.TotalHours), money(cp.PayAmount)),
		})
	}
	return []export.Sheet{detail, summary}
}

// Document lays out one entry for the PDF export.
func Document(index int, e *LogEntry) export.Document {
	m := fieldmap.Map(e.ToMap(), fieldmap.Canonical)
	text := func(name string) string { return fmt.Sprint(m[name]) }
	field := func(label, name string) export.Field { return export.Field{Label: label, Value: text(name)} }

	doc := export.Document{
		Title:    "TCM Service Note",
		Subtitle: fmt.Sprintf("Record %d, submitted %s", index, text(fieldmap.SubmissionTimestamp)),
	}
	doc.Sections = append(doc.Sections,
		export.Section{Title: "Member", Fields: []export.Field{
			field("Medicaid ID", fieldmap.MedicaidID),
			field("Member Name", fieldmap.MemberName),
			field("Member ID", fieldmap.MemberID),
			field("Date of Birth", fieldmap.MemberDOB),
			field("Coordinator", fieldmap.CoordinatorName),
			field("Coordinator Email", fieldmap.CoordinatorEmail),
		}},
		export.Section{Title: "Note", Fields: []export.Field{
			field("Service Date", fieldmap.ServiceDate),
			field("Start Time", fieldmap.StartTime),
			field("End Time", fieldmap.EndTime),
			field("Note Type", fieldmap.NoteType),
			field("Amendment Reason", fieldmap.AmendmentReason),
			field("Note Category", fieldmap.NoteCategory),
		}},
		export.Section{Title: "Travel", Fields: []export.Field{
			field("Traveled to Client", fieldmap.TraveledToClient),
			field("Travel Time", fieldmap.TravelTime),
			field("Travel Details", fieldmap.TravelDetails),
			field("Total Travel Time", fieldmap.TotalTravelTime),
			field("Travel Locations", fieldmap.TravelLocations),
			field("Travel Comments", fieldmap.TravelComments),
		}},
	)

	if e.IsBillable() {
		doc.Sections = append(doc.Sections,
			export.Section{Title: "Billing", Fields: []export.Field{
				field("TCM Hours", fieldmap.TCMHours),
				field("TCM Units", fieldmap.TCMUnits),
				field("ICD-10", fieldmap.ICD10Flag),
				field("CPT Code", fieldmap.CPTCode),
				{Label: "Claim Status", Value: e.EffectiveClaimStatus()},
			}},
			export.Section{Title: "Tasks", Fields: []export.Field{
				field("Tasks Completed", fieldmap.TasksCompleted),
				field("Next Steps", fieldmap.NextSteps),
				field("Contact Types", fieldmap.ContactTypes),
				field("Other Contact Type", fieldmap.OtherContactType),
			}},
		)
		contacts := export.Section{Title: "Contacts"}
		for i, c := range e.Contacts {
			outcome := c.Outcome
			if outcome == "Other" && c.OtherOutcome != "" {
				outcome = "Other: " + c.OtherOutcome
			}
			contacts.Fields = append(contacts.Fields, export.Field{
				Label: fmt.Sprintf("Contact %d", i+1),
				Value: strings.Join(nonEmpty(c.Name, c.Email, c.Phone, outcome), " | "),
			})
		}
		doc.Sections = append(doc.Sections, contacts)
	} else {
		doc.Sections = append(doc.Sections, export.Section{Title: "Administrative", Fields: []export.Field{
			field("Admin Type", fieldmap.AdminType),
			field("Comments", fieldmap.AdminComments),
		}})
	}

	doc.Sections = append(doc.Sections, export.Section{Title: "Comments", Fields: []export.Field{
		field("Final Comments", fieldmap.FinalComments),
	}})
	return doc
}

func nonEmpty(vals ...string) []string {
	out := vals[:0]
	for _, v := range vals {
		if present(v) {
			out = append(out, v)
		}
	}
	return out
}
