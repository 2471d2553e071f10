/*
completion_test.go - Specification tests for the completion calculator

These tests document the calculator's contract:
  1. Leaf defaults - no children means all-or-nothing by status
  2. Weighted average - sum(child% * weight) / 100, half-up to 2 dp
  3. Derived status - pure computation, persistence is the caller's call
  4. Overdue policy - the named policy isolates the legacy condition
*/
package hierarchy_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
)

func child(completion, weight string) hierarchy.WeightedChild {
	return hierarchy.WeightedChild{Completion: dec(completion), Weight: dec(weight)}
}

func TestCompletion_LeafDefaults(t *testing.T) {
	// No weighted children: 100.00 when completed, else 0.00. No partial credit.
	got := hierarchy.ComputeCompletion(hierarchy.StatusCompleted, nil)
	if !got.Equal(dec("100.00")) {
		t.Errorf("completed leaf: want 100.00, got %s", got)
	}

	for _, s := range []hierarchy.Status{
		hierarchy.StatusNotStarted, hierarchy.StatusOngoing,
		hierarchy.StatusOnReview, hierarchy.StatusOverdue, hierarchy.StatusTerminated,
	} {
		got := hierarchy.ComputeCompletion(s, nil)
		if !got.Equal(decimal.Zero) {
			t.Errorf("%s leaf: want 0.00, got %s", s, got)
		}
	}
}

func TestCompletion_WeightedAverage(t *testing.T) {
	// GIVEN: Two children, one done (weight 60), one at 50% (weight 40)
	// THEN: 100*60/100 + 50*40/100 = 60 + 20 = 80.00
	got := hierarchy.ComputeCompletion(hierarchy.StatusOngoing, []hierarchy.WeightedChild{
		child("100.00", "60.00"),
		child("50.00", "40.00"),
	})
	if !got.Equal(dec("80.00")) {
		t.Errorf("want 80.00, got %s", got)
	}
}

func TestCompletion_RoundsHalfUp(t *testing.T) {
	// 33.335 must round to 33.34, not 33.33.
	got := hierarchy.ComputeCompletion(hierarchy.StatusOngoing, []hierarchy.WeightedChild{
		child("33.335", "100.00"),
	})
	if !got.Equal(dec("33.34")) {
		t.Errorf("half-up rounding: want 33.34, got %s", got)
	}
}

func TestCompletion_FullBudgetFullyDone(t *testing.T) {
	got := hierarchy.ComputeCompletion(hierarchy.StatusOngoing, []hierarchy.WeightedChild{
		child("100.00", "100.00"),
	})
	if !got.Equal(dec("100.00")) {
		t.Errorf("want 100.00, got %s", got)
	}
}

func TestDeriveStatus_PromotesToCompleted(t *testing.T) {
	now := hierarchy.NewDate(2024, time.June, 1)
	end := hierarchy.NewDate(2024, time.December, 31)

	status, changed := hierarchy.DeriveStatus(
		hierarchy.StatusOngoing, dec("100.00"), end, now, hierarchy.OverdueWhenPastDue)
	if !changed || status != hierarchy.StatusCompleted {
		t.Fatalf("100.00 must promote to completed, got %s changed=%v", status, changed)
	}

	// Already completed: no change.
	_, changed = hierarchy.DeriveStatus(
		hierarchy.StatusCompleted, dec("100.00"), end, now, hierarchy.OverdueWhenPastDue)
	if changed {
		t.Fatal("already-completed node must not report a change")
	}
}

func TestDeriveStatus_OverdueWhenPastDue(t *testing.T) {
	now := hierarchy.NewDate(2024, time.June, 1)
	past := hierarchy.NewDate(2024, time.May, 1)
	future := hierarchy.NewDate(2024, time.July, 1)

	// Past end date, not terminal: demote to overdue.
	status, changed := hierarchy.DeriveStatus(
		hierarchy.StatusOngoing, dec("40.00"), past, now, hierarchy.OverdueWhenPastDue)
	if !changed || status != hierarchy.StatusOverdue {
		t.Fatalf("past-due node must become overdue, got %s", status)
	}

	// Future end date: untouched.
	_, changed = hierarchy.DeriveStatus(
		hierarchy.StatusOngoing, dec("40.00"), future, now, hierarchy.OverdueWhenPastDue)
	if changed {
		t.Fatal("future-dated node must not be marked overdue")
	}

	// Terminated is terminal: never overdue.
	_, changed = hierarchy.DeriveStatus(
		hierarchy.StatusTerminated, dec("40.00"), past, now, hierarchy.OverdueWhenPastDue)
	if changed {
		t.Fatal("terminated node must stay terminated")
	}
}

func TestDeriveStatus_LegacyPolicyFlagsFutureWork(t *testing.T) {
	// The legacy condition marks FUTURE-dated, non-completed nodes overdue.
	now := hierarchy.NewDate(2024, time.June, 1)
	future := hierarchy.NewDate(2024, time.July, 1)

	status, changed := hierarchy.DeriveStatus(
		hierarchy.StatusOngoing, dec("40.00"), future, now, hierarchy.LegacyFutureOverdue)
	if !changed || status != hierarchy.StatusOverdue {
		t.Fatalf("legacy policy must flag future-dated work, got %s", status)
	}
}

func TestDeriveStatus_PromotionWinsOverOverdue(t *testing.T) {
	// A fully-complete node is promoted even when the overdue condition holds.
	now := hierarchy.NewDate(2024, time.June, 1)
	past := hierarchy.NewDate(2024, time.May, 1)

	status, _ := hierarchy.DeriveStatus(
		hierarchy.StatusOngoing, dec("100.00"), past, now, hierarchy.OverdueWhenPastDue)
	if status != hierarchy.StatusCompleted {
		t.Fatalf("promotion must win over overdue, got %s", status)
	}
}
