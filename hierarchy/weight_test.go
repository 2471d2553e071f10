package hierarchy_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func siblings(weights ...string) []hierarchy.SiblingWeight {
	out := make([]hierarchy.SiblingWeight, 0, len(weights))
	for _, w := range weights {
		out = append(out, hierarchy.SiblingWeight{ID: uuid.New(), Weight: dec(w)})
	}
	return out
}

func TestWeightBudget_RejectsOverflow(t *testing.T) {
	// GIVEN: One sibling at 50 under the same parent
	// WHEN: A new child with weight 51 is validated
	// THEN: The budget check fails and reports the current total

	err := hierarchy.ValidateWeightBudget(dec("51.00"), siblings("50.00"), uuid.Nil,
		hierarchy.MaxWeight, "milestones under the KSI 'X'")
	if err == nil {
		t.Fatal("expected weight budget rejection")
	}

	var werr *hierarchy.WeightExceededError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WeightExceededError, got %T", err)
	}
	if !werr.CurrentTotal.Equal(dec("50.00")) {
		t.Errorf("current total: want 50.00, got %s", werr.CurrentTotal)
	}
	if !errors.Is(err, hierarchy.ErrWeightExceeded) {
		t.Error("should unwrap to ErrWeightExceeded")
	}
}

func TestWeightBudget_BoundaryInclusive(t *testing.T) {
	// Exactly 100.00 total is allowed, not an overflow.
	err := hierarchy.ValidateWeightBudget(dec("50.00"), siblings("50.00"), uuid.Nil,
		hierarchy.MaxWeight, "milestones under the KSI 'X'")
	if err != nil {
		t.Fatalf("50 + 50 = 100.00 must be accepted: %v", err)
	}
}

func TestWeightBudget_ExcludesSelfOnUpdate(t *testing.T) {
	// GIVEN: A child already holding 60 of the budget, plus a sibling at 40
	// WHEN: That child is updated to 60 again (no net change)
	// THEN: Its old weight is excluded from the sum, so the update passes

	self := hierarchy.SiblingWeight{ID: uuid.New(), Weight: dec("60.00")}
	sibs := append(siblings("40.00"), self)

	if err := hierarchy.ValidateWeightBudget(dec("60.00"), sibs, self.ID,
		hierarchy.MaxWeight, "tasks under the major activity 'Y'"); err != nil {
		t.Fatalf("self weight must be excluded on update: %v", err)
	}

	// Raising self to 61 overflows.
	if err := hierarchy.ValidateWeightBudget(dec("61.00"), sibs, self.ID,
		hierarchy.MaxWeight, "tasks under the major activity 'Y'"); err == nil {
		t.Fatal("61 + 40 should exceed the budget")
	}
}

func TestWeightBudget_EmptySiblings(t *testing.T) {
	if err := hierarchy.ValidateWeightBudget(dec("100.00"), nil, uuid.Nil,
		hierarchy.MaxWeight, "milestones under the KSI 'X'"); err != nil {
		t.Fatalf("sole child may take the full budget: %v", err)
	}
}

func TestWeightRange(t *testing.T) {
	cases := []struct {
		weight string
		ok     bool
	}{
		{"0.00", true},
		{"100.00", true},
		{"50.25", true},
		{"-0.01", false},
		{"100.01", false},
	}
	for _, tc := range cases {
		err := hierarchy.ValidateWeightRange(dec(tc.weight))
		if tc.ok && err != nil {
			t.Errorf("weight %s: unexpected error %v", tc.weight, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("weight %s: expected range error", tc.weight)
		}
	}
}
