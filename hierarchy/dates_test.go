package hierarchy_test

import (
	"testing"
	"time"

	"github.com/warp/initiative-engine/hierarchy"
)

func date(y int, m time.Month, d int) hierarchy.Date { return hierarchy.NewDate(y, m, d) }

func ksiWindow() *hierarchy.ParentWindow {
	return &hierarchy.ParentWindow{
		Bounds: hierarchy.Bounds{
			Start: date(2024, time.January, 1),
			End:   date(2024, time.December, 31),
		},
		Kind: "KSI",
		Name: "Expand APAC",
	}
}

func TestDateContainment_Accepted(t *testing.T) {
	fields := hierarchy.ValidateRange(
		date(2024, time.February, 1), date(2024, time.June, 30), ksiWindow(), 0)
	if !fields.Empty() {
		t.Fatalf("range inside parent window must pass: %v", fields)
	}
}

func TestDateContainment_EndPastParent(t *testing.T) {
	fields := hierarchy.ValidateRange(
		date(2024, time.February, 1), date(2025, time.January, 1), ksiWindow(), 0)
	if len(fields["end_date"]) == 0 {
		t.Fatal("end past the parent window must fail end_date")
	}
}

func TestDateContainment_StartBeforeParent(t *testing.T) {
	fields := hierarchy.ValidateRange(
		date(2023, time.December, 31), date(2024, time.June, 30), ksiWindow(), 0)
	if len(fields["start_date"]) == 0 {
		t.Fatal("start before the parent window must fail start_date")
	}
}

func TestDateOrdering_Inverted(t *testing.T) {
	fields := hierarchy.ValidateRange(
		date(2024, time.June, 30), date(2024, time.February, 1), ksiWindow(), 0)
	if len(fields["end_date"]) == 0 {
		t.Fatal("end before start must fail end_date")
	}
}

func TestSpanCeiling_RejectedEvenInsideParent(t *testing.T) {
	// GIVEN: A parent spanning the whole year
	// WHEN: A 45-day task range is validated with the 30-day ceiling
	// THEN: Rejected for span even though it fits the parent window
	fields := hierarchy.ValidateRange(
		date(2024, time.January, 1), date(2024, time.February, 15), ksiWindow(),
		hierarchy.MaxActivityTaskSpanDays)
	if len(fields["end_date"]) == 0 {
		t.Fatal("45-day span must exceed the 30-day ceiling")
	}
}

func TestSpanCeiling_ThirtyDaysAllowed(t *testing.T) {
	fields := hierarchy.ValidateRange(
		date(2024, time.January, 1), date(2024, time.January, 31), ksiWindow(),
		hierarchy.MaxActivityTaskSpanDays)
	if !fields.Empty() {
		t.Fatalf("exactly 30 days after start must be allowed: %v", fields)
	}
}

func TestRootOnlySelfConstrains(t *testing.T) {
	// KSI has no parent: only end >= start applies.
	fields := hierarchy.ValidateRange(
		date(2020, time.January, 1), date(2030, time.December, 31), nil, 0)
	if !fields.Empty() {
		t.Fatalf("root range must only self-constrain: %v", fields)
	}
}

func TestActuals_EndBeforeStart(t *testing.T) {
	start := date(2024, time.March, 10)
	end := date(2024, time.March, 5)
	fields := hierarchy.ValidateActuals(&start, &end)
	if len(fields["actual_end_date"]) == 0 {
		t.Fatal("actual end before actual start must fail")
	}

	if !hierarchy.ValidateActuals(&start, nil).Empty() {
		t.Fatal("absent actual end must pass")
	}
}
