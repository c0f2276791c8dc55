package enums

import "fmt"

// SubjectType identifies what a promotion is attached to.
type SubjectType string

const (
	SubjectListing    SubjectType = "LISTING"
	SubjectSpecialist SubjectType = "SPECIALIST"
)

var validSubjectTypes = []SubjectType{
	SubjectListing,
	SubjectSpecialist,
}

// String implements fmt.Stringer.
func (s SubjectType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubjectType.
func (s SubjectType) IsValid() bool {
	for _, candidate := range validSubjectTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubjectType converts raw input into a SubjectType.
func ParseSubjectType(value string) (SubjectType, error) {
	for _, candidate := range validSubjectTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subject type %q", value)
}
