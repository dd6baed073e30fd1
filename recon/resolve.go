/*
resolve.go - Operator decision points, abstracted as synchronous callbacks

PURPOSE:
  Two situations need a human (or a fixed policy) during a merge run:

  1. NAME RESOLUTION: an employee name from an import is not in the roster.
     The resolver maps it to an existing employee, registers it as new, or
     skips the candidate entirely.
  2. CONFLICT RESOLUTION: an incoming insurer record matches an existing
     one but with a materially different amount. The resolver updates or
     skips - once, or blanket for the rest of the run.

  The engine blocks on these callbacks; its accumulated state (indexes,
  counters) stays valid across the pause. A non-interactive implementation
  supplies a fixed policy for automated use.

"APPLY TO ALL" SEMANTICS:
  A blanket choice is engine-run-scoped state, modeled explicitly as a
  ConflictPolicy threaded through the merge loop. Once set, the per-record
  resolver is no longer consulted for that run.
*/
package recon

import (
	"sort"

	"github.com/schollz/closestmatch"
)

// =============================================================================
// NAME RESOLUTION
// =============================================================================

// NameAction is the outcome kind of a name resolution.
type NameAction int

const (
	// NameSkip drops the candidate; it is counted separately from
	// duplicates in the import report.
	NameSkip NameAction = iota
	// NameMap maps the candidate onto an existing roster name.
	NameMap
	// NameRegister registers the candidate as a new employee.
	NameRegister
)

// NameDecision is a resolver's answer for one unrecognized name.
type NameDecision struct {
	Action NameAction
	MapTo  string // roster name when Action == NameMap
}

// NameResolver resolves an employee name that is not in the roster.
// candidates holds the closest known names, best first, to help the
// operator pick; known is the full roster name set.
type NameResolver interface {
	ResolveName(name string, candidates []string, known []string) (NameDecision, error)
}

// SkipUnknownNames is a non-interactive NameResolver that drops every
// unrecognized candidate. Suitable for automated runs.
type SkipUnknownNames struct{}

func (SkipUnknownNames) ResolveName(string, []string, []string) (NameDecision, error) {
	return NameDecision{Action: NameSkip}, nil
}

// RegisterUnknownNames is a non-interactive NameResolver that registers
// every unrecognized candidate as a new employee.
type RegisterUnknownNames struct{}

func (RegisterUnknownNames) ResolveName(string, []string, []string) (NameDecision, error) {
	return NameDecision{Action: NameRegister}, nil
}

// SuggestNames ranks the known roster names by similarity to an
// unrecognized candidate, best first, capped at limit. Used to populate
// the candidates argument of NameResolver.
func SuggestNames(name string, known []string, limit int) []string {
	if len(known) == 0 || limit <= 0 {
		return nil
	}
	sorted := make([]string, len(known))
	copy(sorted, known)
	sort.Strings(sorted)

	cm := closestmatch.New(sorted, []int{2, 3})
	matches := cm.ClosestN(name, limit)

	// closestmatch can return empty strings when the dictionary is small.
	out := matches[:0]
	for _, m := range matches {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// =============================================================================
// CONFLICT RESOLUTION
// =============================================================================

// ConflictPolicy is the run-scoped blanket decision for amount conflicts.
type ConflictPolicy int

const (
	// Undecided: ask the resolver per record.
	Undecided ConflictPolicy = iota
	// AlwaysUpdate: overwrite every remaining conflicting record.
	AlwaysUpdate
	// AlwaysSkip: leave every remaining conflicting record untouched.
	AlwaysSkip
)

// ConflictChoice is a resolver's answer for one amount conflict.
type ConflictChoice int

const (
	ChoiceSkip ConflictChoice = iota
	ChoiceUpdate
	ChoiceUpdateAll // update this one and set AlwaysUpdate for the run
	ChoiceSkipAll   // skip this one and set AlwaysSkip for the run
)

// Conflict describes an existing record vs. an incoming one with a
// materially different amount.
type Conflict struct {
	Employee string
	Start    string // normalized DD/MM/YYYY
	Existing InsurerPaymentRecord
	Incoming InsurerPaymentRecord
}

// ConflictResolver decides what to do with a conflicting insurer amount.
type ConflictResolver interface {
	ResolveConflict(c Conflict) (ConflictChoice, error)
}

// FixedConflictPolicy is a non-interactive ConflictResolver that always
// answers the same way. Suitable for automated runs.
type FixedConflictPolicy ConflictChoice

func (p FixedConflictPolicy) ResolveConflict(Conflict) (ConflictChoice, error) {
	return ConflictChoice(p), nil
}
