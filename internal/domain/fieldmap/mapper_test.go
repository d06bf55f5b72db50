package fieldmap

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMap_ContactTypesDefault(t *testing.T) {
	out := Map(map[string]any{}, Canonical)
	if out[ContactTypes] != "none" {
		t.Errorf("expected contact_types 'none', got %v", out[ContactTypes])
	}
}

func TestMap_ContactTypesJoined(t *testing.T) {
	out := Map(map[string]any{ContactTypes: []string{"CALL", "EMAIL"}}, Canonical)
	if out[ContactTypes] != "CALL, EMAIL" {
		t.Errorf("expected 'CALL, EMAIL', got %v", out[ContactTypes])
	}
}

func TestMap_ContactTypesEmptyList(t *testing.T) {
	out := Map(map[string]any{ContactTypes: []string{}}, Canonical)
	if out[ContactTypes] != "none" {
		t.Errorf("expected 'none' for empty list, got %v", out[ContactTypes])
	}
}

func TestMap_EveryRequiredFieldPresent(t *testing.T) {
	out := Map(nil, Canonical)
	for _, f := range RequiredFields {
		if _, ok := out[f.Name]; !ok {
			t.Errorf("missing field %s", f.Name)
		}
	}
	if len(out) != len(RequiredFields) {
		t.Errorf("expected %d fields, got %d", len(RequiredFields), len(out))
	}
}

func TestMap_Defaults(t *testing.T) {
	out := Map(map[string]any{}, Canonical)
	want := map[string]any{
		MedicaidID:       "none",
		MemberID:         int64(0),
		TCMUnits:         int64(0),
		TCMHours:         float64(0),
		TraveledToClient: "No",
		ICD10Flag:        "No",
		StartTime:        "",
		EndTime:          "",
		ServiceDate:      "",
	}
	for k, v := range want {
		if out[k] != v {
			t.Errorf("%s: expected %#v, got %#v", k, v, out[k])
		}
	}
	if diff := cmp.Diff([]map[string]any{}, out[Contacts]); diff != "" {
		t.Errorf("contacts mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_Coercions(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	clock := time.Date(0, 1, 1, 9, 5, 0, 0, time.UTC)
	stamp := time.Date(2025, 3, 10, 14, 30, 15, 0, time.UTC)
	out := Map(map[string]any{
		ServiceDate:         day,
		StartTime:           clock,
		SubmissionTimestamp: stamp,
		ICD10Flag:           true,
		TraveledToClient:    false,
		MemberID:            "12345",
		TCMHours:            "1.75",
	}, Canonical)

	if out[ServiceDate] != "03/10/2025" {
		t.Errorf("expected 03/10/2025, got %v", out[ServiceDate])
	}
	if out[StartTime] != "09:05" {
		t.Errorf("expected 09:05, got %v", out[StartTime])
	}
	if out[SubmissionTimestamp] != "03/10/2025 14:30:15" {
		t.Errorf("unexpected timestamp %v", out[SubmissionTimestamp])
	}
	if out[ICD10Flag] != "Yes" || out[TraveledToClient] != "No" {
		t.Errorf("unexpected flags %v %v", out[ICD10Flag], out[TraveledToClient])
	}
	if out[MemberID] != int64(12345) {
		t.Errorf("expected member_id 12345, got %#v", out[MemberID])
	}
	if out[TCMHours] != 1.75 {
		t.Errorf("expected tcm_hours 1.75, got %#v", out[TCMHours])
	}
}

func TestMap_LooselyTypedValues(t *testing.T) {
	stamp := time.Date(2025, 3, 10, 14, 30, 15, 0, time.UTC)
	out := Map(map[string]any{
		ServiceDate:         &stamp,
		SubmissionTimestamp: "Mon, 10 Mar 2025 14:30:15 UTC",
		MemberID:            "0123",
		TCMHours:            json.Number("2.5"),
		TravelTime:          " 0.25 ",
		MedicaidID:          json.Number("987"),
		ContactTypes:        []any{"Phone", 7, " "},
	}, Canonical)

	if out[ServiceDate] != "03/10/2025" {
		t.Errorf("expected 03/10/2025 from a time pointer, got %v", out[ServiceDate])
	}
	if out[SubmissionTimestamp] != "03/10/2025 14:30:15" {
		t.Errorf("expected RFC 1123 timestamp to be accepted, got %v", out[SubmissionTimestamp])
	}
	if out[MemberID] != int64(123) {
		t.Errorf("expected decimal member_id 123, got %#v", out[MemberID])
	}
	if out[TCMHours] != 2.5 || out[TravelTime] != 0.25 {
		t.Errorf("unexpected hours %#v %#v", out[TCMHours], out[TravelTime])
	}
	if out[MedicaidID] != "987" {
		t.Errorf("expected numeric text to render, got %#v", out[MedicaidID])
	}
	if out[ContactTypes] != "Phone, 7" {
		t.Errorf("expected mixed list to join, got %v", out[ContactTypes])
	}
}

func TestMap_UnparseableFallsBackToDefault(t *testing.T) {
	out := Map(map[string]any{
		ServiceDate: "not a date",
		StartTime:   "25:99",
		MemberID:    "abc",
		TravelTime:  "lots",
		TCMHours:    -2.0,
		ICD10Flag:   "maybe",
		MedicaidID:  map[string]any{"id": 1},
	}, Canonical)

	if out[MedicaidID] != "none" {
		t.Errorf("expected placeholder for a map value, got %v", out[MedicaidID])
	}
	if out[ServiceDate] != "" {
		t.Errorf("expected empty service_date, got %v", out[ServiceDate])
	}
	if out[StartTime] != "" {
		t.Errorf("expected empty start_time, got %v", out[StartTime])
	}
	if out[MemberID] != int64(0) {
		t.Errorf("expected member_id 0, got %#v", out[MemberID])
	}
	if out[TravelTime] != float64(0) {
		t.Errorf("expected travel_time 0, got %#v", out[TravelTime])
	}
	if out[TCMHours] != float64(0) {
		t.Errorf("expected tcm_hours 0, got %#v", out[TCMHours])
	}
	if out[ICD10Flag] != "No" {
		t.Errorf("expected icd_10_flag No, got %v", out[ICD10Flag])
	}
}

func TestMap_BlankTextIsPlaceholder(t *testing.T) {
	out := Map(map[string]any{TasksCompleted: "   "}, Canonical)
	if out[TasksCompleted] != "none" {
		t.Errorf("expected 'none', got %v", out[TasksCompleted])
	}
}

func TestMap_Contacts(t *testing.T) {
	out := Map(map[string]any{
		Contacts: []map[string]any{
			{ContactName: "Jane Roe", ContactOutcome: "LEFT MESSAGE"},
		},
	}, Canonical)

	want := []map[string]any{{
		ContactName:         "Jane Roe",
		ContactEmail:        "none",
		ContactPhone:        "none",
		ContactOutcome:      "LEFT MESSAGE",
		ContactOtherOutcome: "none",
	}}
	if diff := cmp.Diff(want, out[Contacts]); diff != "" {
		t.Errorf("contacts mismatch (-want +got):\n%s", diff)
	}
}

func TestMap_LegacyExportNames(t *testing.T) {
	out := Map(map[string]any{MedicaidID: "A123456"}, LegacyExport)
	if out["MEDICAID ID"] != "A123456" {
		t.Errorf("expected MEDICAID ID column, got %v", out["MEDICAID ID"])
	}
	if _, ok := out[MedicaidID]; ok {
		t.Error("canonical name should not appear under LegacyExport")
	}
}

func TestMap_PassThroughClaimFields(t *testing.T) {
	out := Map(map[string]any{ClaimStatus: "Submitted"}, Canonical)
	if out[ClaimStatus] != "Submitted" {
		t.Errorf("expected claim_status to pass through, got %v", out[ClaimStatus])
	}
	out = Map(map[string]any{}, Canonical)
	if _, ok := out[ClaimStatus]; ok {
		t.Error("claim_status should not be defaulted")
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"03/10/2025", "2025-03-10", "3/10/2025"} {
		d, ok := ParseDate(s)
		if !ok {
			t.Errorf("ParseDate(%q) failed", s)
			continue
		}
		if d.Year() != 2025 || d.Month() != time.March || d.Day() != 10 {
			t.Errorf("ParseDate(%q) = %v", s, d)
		}
	}
	if _, ok := ParseDate("tomorrow"); ok {
		t.Error("expected ParseDate to reject 'tomorrow'")
	}
}
