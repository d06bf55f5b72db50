package member

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
)

// RosterSource loads the member roster. ModTime lets callers cache the
// parsed roster until the underlying file changes.
type RosterSource interface {
	Load(ctx context.Context) ([]*Member, error)
	ModTime() (time.Time, error)
}

// NewRosterSource picks a reader by file extension: .csv files are read as
// CSV, everything else as an xlsx workbook.
func NewRosterSource(path string) RosterSource {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return &CSVRoster{Path: path}
	}
	return &XLSXRoster{Path: path}
}

// XLSXRoster reads the first sheet of a workbook such as Master_db.xlsx.
type XLSXRoster struct {
	Path  string
	Sheet string
}

func (r *XLSXRoster) Load(ctx context.Context) ([]*Member, error) {
	f, err := excelize.OpenFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", r.Path, err)
	}
	defer f.Close()

	sheet := r.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("roster %s has no sheets", r.Path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read roster sheet %s: %w", sheet, err)
	}
	return parseRows(rows)
}

func (r *XLSXRoster) ModTime() (time.Time, error) {
	return fileModTime(r.Path)
}

// CSVRoster reads a roster exported as CSV with the same headers.
type CSVRoster struct {
	Path string
}

func (r *CSVRoster) Load(ctx context.Context) ([]*Member, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster %s: %w", r.Path, err)
	}
	defer f.Close()
	return readCSV(f)
}

func (r *CSVRoster) ModTime() (time.Time, error) {
	return fileModTime(r.Path)
}

func readCSV(rd io.Reader) ([]*Member, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse roster csv: %w", err)
	}
	return parseRows(rows)
}

func fileModTime(path string) (time.Time, error) {
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime(), nil
}

type column int

const (
	colFirst column = iota
	colLast
	colMedicaid
	colMemberID
	colDOB
	colCoordinator
	colCoordinatorEmail
)

// headerAliases are folded header spellings seen across roster versions.
var headerAliases = map[string]column{
	"firstname":             colFirst,
	"first":                 colFirst,
	"lastname":              colLast,
	"last":                  colLast,
	"medicaidid":            colMedicaid,
	"medicaid":              colMedicaid,
	"memberid":              colMemberID,
	"dob":                   colDOB,
	"dateofbirth":           colDOB,
	"birthdate":             colDOB,
	"transitioncoordinator": colCoordinator,
	"coordinator":           colCoordinator,
	"coordinatorname":       colCoordinator,
	"tcname":                colCoordinator,
	"tcemail":               colCoordinatorEmail,
	"coordinatoremail":      colCoordinatorEmail,
}

func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if r == ' ' || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseRows(rows [][]string) ([]*Member, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	idx := map[column]int{}
	for i, h := range rows[0] {
		if col, ok := headerAliases[foldHeader(h)]; ok {
			if _, seen := idx[col]; !seen {
				idx[col] = i
			}
		}
	}
	for _, required := range []column{colMedicaid, colFirst, colLast} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("roster is missing required columns (need FIRST NAME, LAST NAME, MedicaidID)")
		}
	}

	cell := func(row []string, col column) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	members := make([]*Member, 0, len(rows)-1)
	for _, row := range rows[1:] {
		mid := NormalizeMedicaidID(cell(row, colMedicaid))
		if mid == "" {
			continue
		}
		m := &Member{
			MedicaidID:       mid,
			MemberID:         parseMemberID(cell(row, colMemberID)),
			FirstName:        cell(row, colFirst),
			LastName:         cell(row, colLast),
			CoordinatorName:  cell(row, colCoordinator),
			CoordinatorEmail: cell(row, colCoordinatorEmail),
		}
		m.FullName = fullName(m.FirstName, m.LastName)
		if dob, ok := parseDOB(cell(row, colDOB)); ok {
			m.DateOfBirth = &dob
		}
		members = append(members, m)
	}
	return members, nil
}

func parseMemberID(s string) int64 {
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	// spreadsheets often store integer ids as floats
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// parseDOB accepts ISO and US dates as well as raw Excel serial numbers.
func parseDOB(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if d, ok := fieldmap.ParseDate(s); ok {
		return d, true
	}
	for _, l := range []string{"01-02-06", "1/2/06", "01/02/06"} {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
