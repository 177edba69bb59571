package slot

import "sort"

// LossCase is the outcome of classifying a parent slot against its direct
// children when the parent's owner is expropriated.
type LossCase int

const (
	// CasePlatformReplaces: both children user-owned, the platform takes
	// the parent slot back.
	CasePlatformReplaces LossCase = 1
	// CaseSinglePromotes: exactly one child user-owned, that child's owner
	// moves up into the parent slot and the child slot is vacated.
	CaseSinglePromotes LossCase = 2
	// CaseNoChildrenVacant: no user-owned children, the parent slot goes
	// vacant.
	CaseNoChildrenVacant LossCase = 4
	// CaseUnknown is a defensive terminal. The two-valued left/right check
	// cannot reach it; the engine still refuses to mutate anything when it
	// appears.
	CaseUnknown LossCase = 0
)

// Classification is the result of classifying a loss event.
type Classification struct {
	Case LossCase
	// PromotingChild is set only for CaseSinglePromotes: the user-owned
	// child whose owner moves up.
	PromotingChild *Slot
}

// Classify maps a parent slot and its direct children (unordered) to exactly
// one loss case. Pure: no side effects, no I/O.
func Classify(parent Slot, children []Slot) Classification {
	sorted := make([]Slot, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})

	var left, right *Slot
	if len(sorted) > 0 {
		left = &sorted[0]
	}
	if len(sorted) > 1 {
		right = &sorted[1]
	}

	leftUser := left != nil && left.UserOwned()
	rightUser := right != nil && right.UserOwned()

	switch {
	case leftUser && rightUser:
		return Classification{Case: CasePlatformReplaces}
	case leftUser:
		return Classification{Case: CaseSinglePromotes, PromotingChild: left}
	case rightUser:
		return Classification{Case: CaseSinglePromotes, PromotingChild: right}
	case !leftUser && !rightUser:
		return Classification{Case: CaseNoChildrenVacant}
	}
	return Classification{Case: CaseUnknown}
}
