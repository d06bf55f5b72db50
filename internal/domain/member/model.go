package member

import (
	"strings"
	"time"
)

// Member is a read-only projection of one roster row.
type Member struct {
	MedicaidID       string     `json:"medicaid_id"`
	MemberID         int64      `json:"member_id"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	FullName         string     `json:"full_name"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	CoordinatorName  string     `json:"assigned_coordinator_name"`
	CoordinatorEmail string     `json:"assigned_coordinator_email"`
}

// NormalizeMedicaidID trims and upper-cases an ID as typed by a user.
func NormalizeMedicaidID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// ValidateMedicaidID checks the Medicaid ID format: exactly 7 characters
// after trimming and upper-casing, a letter first, letters or digits after.
// The reason is empty when the ID is valid.
func ValidateMedicaidID(id string) (bool, string) {
	id = NormalizeMedicaidID(id)
	if id == "" {
		return false, "Medicaid ID is required"
	}
	runes := []rune(id)
	if len(runes) != 7 {
		return false, "Medicaid ID must be exactly 7 characters long"
	}
	if !isASCIILetter(runes[0]) {
		return false, "Medicaid ID must start with a letter"
	}
	for _, r := range runes[1:] {
		if !isASCIILetter(r) && !(r >= '0' && r <= '9') {
			return false, "Medicaid ID can only contain letters and numbers"
		}
	}
	return true, ""
}

func isASCIILetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func fullName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
