package fieldmap

import (
	"strings"
)

// aliases maps folded legacy key spellings to canonical names. Keys are
// folded with foldKey before lookup, so "MEDICAID ID", "Medicaid_ID" and
// "medicaid id" all hit the same entry.
var aliases = map[string]string{
	"medicaidid":             MedicaidID,
	"membername":             MemberName,
	"name":                   MemberName,
	"memberid":               MemberID,
	"memberdob":              MemberDOB,
	"dob":                    MemberDOB,
	"dateofbirth":            MemberDOB,
	"coordinatorname":        CoordinatorName,
	"transitioncoordinator":  CoordinatorName,
	"tcname":                 CoordinatorName,
	"coordinatoremail":       CoordinatorEmail,
	"tcemail":                CoordinatorEmail,
	"starttime":              StartTime,
	"endtime":                EndTime,
	"notetype":               NoteType,
	"amendmentreason":        AmendmentReason,
	"notecategory":           NoteCategory,
	"category":               NoteCategory,
	"traveledtoclient":       TraveledToClient,
	"traveltoclient":         TraveledToClient,
	"traveltime":             TravelTime,
	"traveldetails":          TravelDetails,
	"totaltraveltime":        TotalTravelTime,
	"travellocations":        TravelLocations,
	"travelcomments":         TravelComments,
	"tcmhours":               TCMHours,
	"hours":                  TCMHours,
	"tcmunits":               TCMUnits,
	"units":                  TCMUnits,
	"icd10flag":              ICD10Flag,
	"icd10":                  ICD10Flag,
	"cptcode":                CPTCode,
	"cpt":                    CPTCode,
	"admintype":              AdminType,
	"administrativetype":     AdminType,
	"admincomments":          AdminComments,
	"administrativecomments": AdminComments,
	"taskscompleted":         TasksCompleted,
	"nextsteps":              NextSteps,
	"contacttypes":           ContactTypes,
	"contacttype":            ContactTypes,
	"othercontacttype":       OtherContactType,
	"finalcomments":          FinalComments,
	"servicedate":            ServiceDate,
	"dateofservice":          ServiceDate,
	"date":                   ServiceDate,
	"submissiontimestamp":    SubmissionTimestamp,
	"timestamp":              SubmissionTimestamp,
	"claimstatus":            ClaimStatus,
	"claimsubmittedat":       ClaimSubmittedAt,
}

// legacyContactKeys are the per-slot contact objects older records carry
// instead of a contacts list, in chain order.
var legacyContactKeys = []string{"firstcontact", "secondcontact", "thirdcontact", "fourthcontact"}

var contactAliases = map[string]string{
	"name":                ContactName,
	"contactname":         ContactName,
	"email":               ContactEmail,
	"contactemail":        ContactEmail,
	"phone":               ContactPhone,
	"contactphone":        ContactPhone,
	"outcome":             ContactOutcome,
	"contactoutcome":      ContactOutcome,
	"otheroutcome":        ContactOtherOutcome,
	"othercontactoutcome": ContactOtherOutcome,
}

func foldKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		switch r {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Normalize is the single read-time pass over a stored record of any
// historical shape. Legacy spellings resolve to canonical names, legacy
// per-slot contacts become a contacts list, and the result is mapped with
// the Canonical table. A canonical key wins over an alias of it.
func Normalize(raw map[string]any) map[string]any {
	acc := make(map[string]any, len(raw))
	var slots [4]map[string]any

	for k, v := range raw {
		folded := foldKey(k)
		if i := slotIndex(folded); i >= 0 {
			if m, ok := v.(map[string]any); ok {
				slots[i] = m
			}
			continue
		}
		canon, ok := aliases[folded]
		if !ok {
			continue
		}
		if _, exact := raw[canon]; exact && k != canon {
			continue
		}
		acc[canon] = v
	}

	if _, ok := acc[Contacts]; !ok {
		if list, ok := raw["contacts"]; ok {
			acc[Contacts] = list
		}
	}
	if list, ok := acc[Contacts]; ok {
		acc[Contacts] = normalizeContacts(list)
	} else {
		var chain []any
		for _, s := range slots {
			if s == nil || isEmptyContact(s) {
				break
			}
			chain = append(chain, s)
		}
		if len(chain) > 0 {
			acc[Contacts] = normalizeContacts(chain)
		}
	}

	if c, ok := acc[NoteCategory].(string); ok {
		acc[NoteCategory] = CanonicalCategory(c)
	}
	return Map(acc, Canonical)
}

func slotIndex(folded string) int {
	for i, k := range legacyContactKeys {
		if folded == k {
			return i
		}
	}
	return -1
}

func normalizeContacts(v any) []any {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case []map[string]any:
		for _, m := range t {
			items = append(items, m)
		}
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := make(map[string]any, len(m))
		for k, cv := range m {
			if canon, ok := contactAliases[foldKey(k)]; ok {
				c[canon] = cv
			}
		}
		out = append(out, c)
	}
	return out
}

func isEmptyContact(m map[string]any) bool {
	for _, v := range m {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return false
		}
	}
	return true
}

// CanonicalCategory folds historical spellings such as "Billable- TCM" to
// the canonical category names. Unknown values are returned trimmed.
func CanonicalCategory(s string) string {
	switch foldKey(s) {
	case "billabletcm", "billable":
		return "Billable-TCM"
	case "administrative", "admin":
		return "Administrative"
	}
	return strings.TrimSpace(s)
}
