// Package selector narrows a list of already-fetched candidates to
// exactly one. It is pure: no I/O, no state, and the same candidate
// list always yields the same outcome, with upstream ordering
// preserved for choice lists.
package selector

// Decision is the three-way outcome of a selection.
type Decision string

const (
	// DecisionNotFound: zero candidates.
	DecisionNotFound Decision = "not_found"
	// DecisionSelected: exactly one candidate, auto-selected.
	DecisionSelected Decision = "selected"
	// DecisionRequiresChoice: multiple candidates, an explicit user
	// choice is required. Not an error, a control-flow branch.
	DecisionRequiresChoice Decision = "requires_choice"
)

// Selection is the result of narrowing a candidate list.
type Selection[T any] struct {
	Decision Decision
	// Choice holds the auto-selected candidate when Decision is
	// DecisionSelected.
	Choice T
	// Options holds all candidates, in upstream order, when Decision
	// is DecisionRequiresChoice.
	Options []T
}

// Select narrows candidates: zero yields not found, one is
// auto-selected, many require a choice presented in the original order.
func Select[T any](candidates []T) Selection[T] {
	switch len(candidates) {
	case 0:
		return Selection[T]{Decision: DecisionNotFound}
	case 1:
		return Selection[T]{Decision: DecisionSelected, Choice: candidates[0]}
	default:
		return Selection[T]{Decision: DecisionRequiresChoice, Options: candidates}
	}
}
