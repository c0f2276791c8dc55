package enums

import "fmt"

// ActivationStatus moves ACTIVE -> EXPIRED and never back.
type ActivationStatus string

const (
	ActivationActive  ActivationStatus = "ACTIVE"
	ActivationExpired ActivationStatus = "EXPIRED"
)

var validActivationStatuses = []ActivationStatus{
	ActivationActive,
	ActivationExpired,
}

// String implements fmt.Stringer.
func (s ActivationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ActivationStatus.
func (s ActivationStatus) IsValid() bool {
	for _, candidate := range validActivationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseActivationStatus converts raw input into an ActivationStatus.
func ParseActivationStatus(value string) (ActivationStatus, error) {
	for _, candidate := range validActivationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activation status %q", value)
}
