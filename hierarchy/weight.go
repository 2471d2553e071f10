/*
weight.go - Shared weight-budget validation

PURPOSE:
  Siblings under one parent share a 100.00 budget. Any create or update of
  a weighted child must re-check the sum of its siblings (excluding itself,
  so updates validate correctly) plus the candidate weight.

CONTRACT:
  ValidateWeightBudget(candidate, siblings, excluding, max, context)
  - candidate must already be range-checked via ValidateWeightRange
  - total = sum(sibling.weight where sibling.id != excluding) + candidate
  - fails when total > max; equality to max is allowed
  - pure function: no reads, no writes; caller supplies the sibling set

CONCURRENCY:
  The function is pure, but the read-validate-write sequence around it is
  not atomic on its own. Callers MUST run it inside a store transaction
  that serializes weight mutations per parent (see tracker.Service and
  store/sqlite), otherwise two concurrent sibling writes can race past
  the ceiling.
*/
package hierarchy

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SiblingWeight is the minimal projection of a weighted sibling.
type SiblingWeight struct {
	ID     uuid.UUID
	Weight decimal.Decimal
}

// ValidateWeightBudget checks that candidate fits into the budget shared with
// siblings. The entity being updated is excluded from the sum via excluding
// (pass uuid.Nil on create). context names the sibling collection for the
// error message. Returns *WeightExceededError on overflow, nil otherwise.
func ValidateWeightBudget(candidate decimal.Decimal, siblings []SiblingWeight, excluding uuid.UUID, max decimal.Decimal, context string) error {
	currentTotal := decimal.Zero
	for _, s := range siblings {
		if excluding != uuid.Nil && s.ID == excluding {
			continue
		}
		currentTotal = currentTotal.Add(s.Weight)
	}

	if currentTotal.Add(candidate).GreaterThan(max) {
		return &WeightExceededError{
			Context:      context,
			CurrentTotal: currentTotal,
			Attempted:    candidate,
			Max:          max,
		}
	}
	return nil
}
