package fieldmap

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Output formats for rendered dates and times.
const (
	DateLayout      = "01/02/2006"
	TimeLayout      = "15:04"
	TimestampLayout = "01/02/2006 15:04:05"
)

var dateLayouts = []string{
	DateLayout,
	"2006-01-02",
	"1/2/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	TimestampLayout,
}

var timeLayouts = []string{
	TimeLayout,
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"03:04 PM",
}

var timestampLayouts = []string{
	TimestampLayout,
	"01/02/2006 15:04",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// Map converts an accumulated working map into the fixed output schema.
// Every field in RequiredFields is present in the result. Absent or
// unparseable values are replaced by the field's default; Map never fails.
func Map(acc map[string]any, table NameTable) map[string]any {
	out := make(map[string]any, len(RequiredFields)+len(passThrough))
	for _, f := range RequiredFields {
		v, ok := acc[f.Name]
		out[table.out(f.Name)] = coerce(f.Kind, v, ok)
	}
	for _, k := range passThrough {
		if v, ok := acc[k]; ok && v != nil {
			out[table.out(k)] = v
		}
	}
	return out
}

func coerce(kind Kind, v any, present bool) any {
	if !present || v == nil {
		return defaultFor(kind)
	}
	switch kind {
	case KindText:
		return toText(v)
	case KindInt:
		return toInt(v)
	case KindHours:
		return toHours(v)
	case KindFlag:
		return toFlag(v)
	case KindList:
		return toList(v)
	case KindDate:
		return toDate(v)
	case KindTime:
		return toClock(v)
	case KindTimestamp:
		return toTimestamp(v)
	case KindContacts:
		return toContacts(v)
	}
	return v
}

func defaultFor(kind Kind) any {
	switch kind {
	case KindText, KindList:
		return Placeholder
	case KindInt:
		return int64(0)
	case KindHours:
		return float64(0)
	case KindFlag:
		return "No"
	case KindContacts:
		return []map[string]any{}
	default:
		// dates and times are never fabricated
		return ""
	}
}

func toText(v any) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		return Placeholder
	}
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return Placeholder
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case bool:
		return 0, false
	case string:
		v = strings.TrimSpace(t)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt truncates toward zero. Strings are read as decimals, so "0123" is 123.
func toInt(v any) int64 {
	switch v.(type) {
	case bool:
		return 0
	case string, float32, float64, json.Number:
		f, ok := toFloat(v)
		if !ok {
			return 0
		}
		return int64(f)
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0
	}
	return n
}

func toHours(v any) float64 {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

func toFlag(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "1", "r99":
			return "Yes"
		}
	}
	return "No"
}

func toList(v any) string {
	if t, ok := v.(string); ok {
		if s := strings.TrimSpace(t); s != "" {
			return s
		}
		return Placeholder
	}
	items, err := cast.ToStringSliceE(v)
	if err != nil {
		return Placeholder
	}
	kept := items[:0:0]
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return Placeholder
	}
	return strings.Join(kept, ", ")
}

func toDate(v any) string {
	if t, ok := asTime(v, dateLayouts); ok {
		return t.Format(DateLayout)
	}
	return ""
}

func toClock(v any) string {
	if t, ok := asTime(v, timeLayouts); ok {
		return t.Format(TimeLayout)
	}
	return ""
}

func toTimestamp(v any) string {
	if t, ok := asTime(v, timestampLayouts); ok {
		return t.Format(TimestampLayout)
	}
	return ""
}

func asTime(v any, layouts []string) (time.Time, bool) {
	if s, ok := v.(string); ok {
		return parseWith(strings.TrimSpace(s), layouts)
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}

// parseWith tries the record layouts first so slash dates stay month-first,
// then the wider set cast recognises.
func parseWith(s string, layouts []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	t, err := cast.StringToDate(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDate accepts any of the date shapes found in stored records and
// returns the calendar day.
func ParseDate(s string) (time.Time, bool) {
	t, ok := parseWith(strings.TrimSpace(s), dateLayouts)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// ParseTimestamp accepts any of the submission timestamp shapes found in
// stored records.
func ParseTimestamp(s string) (time.Time, bool) {
	return parseWith(strings.TrimSpace(s), timestampLayouts)
}

func toContacts(v any) []map[string]any {
	var raw []map[string]any
	switch t := v.(type) {
	case []map[string]any:
		raw = t
	case []any:
		for _, it := range t {
			if m, ok := it.(map[string]any); ok {
				raw = append(raw, m)
			}
		}
	}
	out := make([]map[string]any, 0, len(raw))
	for _, c := range raw {
		m := make(map[string]any, len(ContactFields))
		for _, f := range ContactFields {
			cv, ok := c[f.Name]
			m[f.Name] = coerce(f.Kind, cv, ok)
		}
		out = append(out, m)
	}
	return out
}
