package domain

import "fmt"

// DisclosureLevel is chosen by the discloser and controls which report
// fields survive into the notifications derived from it.
type DisclosureLevel string

const (
	// DisclosureFull shares both condition type and exposure date.
	DisclosureFull DisclosureLevel = "full"
	// DisclosureConditionOnly shares the condition type, no date.
	DisclosureConditionOnly DisclosureLevel = "condition_only"
	// DisclosureDateOnly shares the exposure date, no condition.
	DisclosureDateOnly DisclosureLevel = "date_only"
	// DisclosureAnonymous shares neither.
	DisclosureAnonymous DisclosureLevel = "anonymous"
)

// ParseDisclosureLevel validates and returns a DisclosureLevel.
func ParseDisclosureLevel(s string) (DisclosureLevel, error) {
	switch l := DisclosureLevel(s); l {
	case DisclosureFull, DisclosureConditionOnly, DisclosureDateOnly, DisclosureAnonymous:
		return l, nil
	default:
		return "", fmt.Errorf("unknown disclosure level: %q", s)
	}
}

// SharesCondition reports whether the condition type may be disclosed.
func (l DisclosureLevel) SharesCondition() bool {
	return l == DisclosureFull || l == DisclosureConditionOnly
}

// SharesDate reports whether the exposure date may be disclosed.
func (l DisclosureLevel) SharesDate() bool {
	return l == DisclosureFull || l == DisclosureDateOnly
}
