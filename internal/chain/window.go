// Package chain implements the propagation engine: exposure windows,
// bounded breadth-first traversal over the contact relation, and multi-path
// deduplication of the recipients it discovers.
package chain

import (
	"fmt"
	"time"

	"chainrelay/pkg/domain"
)

// Window is the date interval inside which a recorded contact is medically
// relevant to a reported result.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowPolicy selects how hop windows are derived.
type WindowPolicy string

const (
	// WindowFixed computes the window once from the test date and reuses
	// it for every hop.
	WindowFixed WindowPolicy = "fixed"
	// WindowRolling re-derives each hop's window using the discovered
	// contact's recorded-at as the new upper bound.
	WindowRolling WindowPolicy = "rolling"
)

// ParseWindowPolicy validates and returns a WindowPolicy.
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch p := WindowPolicy(s); p {
	case WindowFixed, WindowRolling:
		return p, nil
	default:
		return "", fmt.Errorf("unknown window policy: %q", s)
	}
}

// ComputeWindow returns [testDate − maxIncubation, testDate] where the
// incubation is the longest across the reported conditions.
func ComputeWindow(testDate time.Time, conditions []domain.ConditionType) Window {
	return Window{
		Start: testDate.Add(-domain.MaxIncubation(conditions)),
		End:   testDate,
	}
}
