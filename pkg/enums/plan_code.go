package enums

import "fmt"

// PlanCode is the promotion tier sold through pricing plans.
type PlanCode string

const (
	PlanVIP       PlanCode = "VIP"
	PlanTop       PlanCode = "TOP"
	PlanHighlight PlanCode = "HIGHLIGHT"
	PlanAutobump  PlanCode = "AUTOBUMP"
)

var validPlanCodes = []PlanCode{
	PlanVIP,
	PlanTop,
	PlanHighlight,
	PlanAutobump,
}

var planBoosts = map[PlanCode]float64{
	PlanVIP:       2.0,
	PlanTop:       1.5,
	PlanHighlight: 0.3,
	PlanAutobump:  0,
}

// String implements fmt.Stringer.
func (p PlanCode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanCode.
func (p PlanCode) IsValid() bool {
	for _, candidate := range validPlanCodes {
		if candidate == p {
			return true
		}
	}
	return false
}

// Boost returns the tier weight used for ranking. Unknown codes weigh 0.
func (p PlanCode) Boost() float64 {
	return planBoosts[p]
}

// ParsePlanCode converts raw input into a PlanCode.
func ParsePlanCode(value string) (PlanCode, error) {
	for _, candidate := range validPlanCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan code %q", value)
}
