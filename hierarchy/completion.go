/*
completion.go - Weighted completion calculation and derived status

PURPOSE:
  A node's completion percentage is the weighted average of its children's
  completion, rounded half-up to 2 decimal places. The calculation is PURE:
  it never persists anything. The caller (tracker's completion service)
  decides whether to store the derived status, replacing the original
  design's hidden write-inside-a-getter.

ALGORITHM:
  1. No weighted children: 100.00 when the node is completed, else 0.00.
     Leaf nodes earn no partial credit.
  2. Otherwise: sum(child.completion * child.weight) / 100, rounded.
  3. The derived status is computed separately by DeriveStatus:
     - completion == 100.00 promotes a non-completed node to completed
     - the overdue check is delegated to an OverduePolicy

OVERDUE POLICY:
  The source system marked nodes overdue when end_date > today, which flags
  future work as late. That condition is isolated behind the OverduePolicy
  type so the fix needs no call-site changes: OverdueWhenPastDue is the
  corrected default, LegacyFutureOverdue reproduces the source behavior.
*/
package hierarchy

import (
	"github.com/shopspring/decimal"
)

// ComputeCompletion returns the weighted completion percentage for a node
// with the given status and weighted children. Pure; rounded half-up to 2 dp.
func ComputeCompletion(status Status, children []WeightedChild) decimal.Decimal {
	if len(children) == 0 {
		if status == StatusCompleted {
			return Hundred
		}
		return decimal.Zero.Round(2)
	}

	sum := decimal.Zero
	for _, c := range children {
		sum = sum.Add(c.Completion.Mul(c.Weight))
	}
	// Round is half away from zero, which equals half-up for the
	// non-negative values completion can take.
	return sum.Div(Hundred).Round(2)
}

// OverduePolicy decides whether a node with the given end date and current
// status should be marked overdue as of now.
type OverduePolicy func(end Date, now Date, current Status) bool

// OverdueWhenPastDue marks a node overdue once its end date has passed and
// it is not in a terminal state.
func OverdueWhenPastDue(end Date, now Date, current Status) bool {
	return end.Before(now) && !current.Terminal()
}

// LegacyFutureOverdue reproduces the original system's condition verbatim:
// end date strictly in the future and status not completed. Kept only for
// bug-compatible deployments.
func LegacyFutureOverdue(end Date, now Date, current Status) bool {
	return end.After(now) && current != StatusCompleted
}

// DeriveStatus returns the status a node should carry after a completion
// read, and whether it changed. Completion-driven promotion wins over the
// overdue check, matching the source's evaluation order.
func DeriveStatus(current Status, completion decimal.Decimal, end Date, now Date, overdue OverduePolicy) (Status, bool) {
	if completion.Equal(Hundred) && current != StatusCompleted {
		return StatusCompleted, true
	}
	if overdue != nil && overdue(end, now, current) && current != StatusOverdue {
		return StatusOverdue, true
	}
	return current, false
}
