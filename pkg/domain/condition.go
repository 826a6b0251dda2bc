package domain

import (
	"fmt"
	"time"
)

// ConditionType names a reportable condition. The set is closed; unknown
// values are rejected at the trust boundary.
type ConditionType string

const (
	ConditionChlamydia      ConditionType = "chlamydia"
	ConditionGonorrhea      ConditionType = "gonorrhea"
	ConditionSyphilis       ConditionType = "syphilis"
	ConditionTrichomoniasis ConditionType = "trichomoniasis"
	ConditionHIV            ConditionType = "hiv"
	ConditionHerpes         ConditionType = "herpes"
	ConditionHepatitisB     ConditionType = "hepatitis_b"
)

// maxIncubationDays maps each condition to the maximum number of days
// between a relevant contact and a positive test. These bound the exposure
// window; a contact older than the largest reported incubation cannot have
// caused the reported result.
var maxIncubationDays = map[ConditionType]int{
	ConditionChlamydia:      30,
	ConditionGonorrhea:      14,
	ConditionSyphilis:       90,
	ConditionTrichomoniasis: 28,
	ConditionHIV:            90,
	ConditionHerpes:         12,
	ConditionHepatitisB:     180,
}

// ParseConditionType validates and returns a ConditionType.
func ParseConditionType(s string) (ConditionType, error) {
	c := ConditionType(s)
	if _, ok := maxIncubationDays[c]; !ok {
		return "", fmt.Errorf("unknown condition type: %q", s)
	}
	return c, nil
}

// IncubationPeriod returns the maximum incubation for the condition.
func (c ConditionType) IncubationPeriod() time.Duration {
	return time.Duration(maxIncubationDays[c]) * 24 * time.Hour
}

// MaxIncubation returns the longest incubation across the given conditions.
// Zero when the slice is empty.
func MaxIncubation(conditions []ConditionType) time.Duration {
	var max time.Duration
	for _, c := range conditions {
		if d := c.IncubationPeriod(); d > max {
			max = d
		}
	}
	return max
}
