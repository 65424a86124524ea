// Package validation holds the per-group expectation suites evaluated
// before any batch reaches the feature store. A batch passes whole or is
// rejected whole; a rejection reports every violated predicate, not just
// the first.
package validation

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// lowerBound is the shared tolerance for physically non-negative columns.
// Upstream rounding produces tiny negative readings; anything at or below
// this is a real violation.
const lowerBound = -0.1

// Violation is one failed predicate on one row.
type Violation struct {
	Column  string
	Row     int
	Message string
}

func (v Violation) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", v.Row, v.Column, v.Message)
}

// Result is the outcome of running a suite over a batch.
type Result struct {
	Group      string
	Rows       int
	Violations []Violation
}

func (r *Result) add(row int, column, message string) {
	r.Violations = append(r.Violations, Violation{Column: column, Row: row, Message: message})
}

// Passed reports whether the batch may be loaded.
func (r *Result) Passed() bool {
	return len(r.Violations) == 0
}

// Err aggregates every violation into a single error, or nil when the
// batch passed.
func (r *Result) Err() error {
	if r.Passed() {
		return nil
	}
	merr := &multierror.Error{}
	for _, v := range r.Violations {
		merr = multierror.Append(merr, v)
	}
	return fmt.Errorf("%s: %w", r.Group, merr)
}

// ColumnCounts tallies violations per column, for the metrics counters.
func (r *Result) ColumnCounts() map[string]int {
	if len(r.Violations) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, v := range r.Violations {
		counts[v.Column]++
	}
	return counts
}

func zoneSet(zones []string) map[string]bool {
	set := make(map[string]bool, len(zones))
	for _, z := range zones {
		set[z] = true
	}
	return set
}
