/*
level.go - Per-level descriptors for the five-level tree

PURPOSE:
  KSI, Milestone, KPI, MajorActivity and Task share one validation and
  completion engine, parametrized by a small descriptor instead of five
  copy-pasted validators. The descriptor captures what actually differs
  per level: whether the node is weighted, whether its dates must nest in
  a parent window, the span ceiling, and how error messages name things.

THE KPI SPECIAL CASE:
  KPI carries no weight and no computed completion: it is a status gate
  between Milestone and MajorActivity. In the completion direction the
  KPI layer is skipped entirely - a Milestone's weighted children are the
  MajorActivities under ALL of its KPIs.
*/
package hierarchy

// Level identifies a node's position in the tree.
type Level string

const (
	LevelKSI           Level = "ksi"
	LevelMilestone     Level = "milestone"
	LevelKPI           Level = "kpi"
	LevelMajorActivity Level = "major_activity"
	LevelTask          Level = "task"
)

// MaxActivityTaskSpanDays caps the calendar span of major activities
// and tasks.
const MaxActivityTaskSpanDays = 30

// LevelSpec describes the rules a level is subject to.
type LevelSpec struct {
	Level Level

	// Weighted nodes carry a weight, share the sibling budget, and have a
	// computed completion percentage. KSI (root, implicit weight) and KPI
	// (status gate) are not weighted.
	Weighted bool

	// ParentBounded nodes must nest their dates in the parent window.
	ParentBounded bool

	// MaxSpanDays caps the node's own range; 0 means unbounded.
	MaxSpanDays int

	// DatesOptional nodes may omit start/end entirely (KPI only).
	DatesOptional bool

	// Label is the human name used in validation messages.
	Label string
}

var levelSpecs = map[Level]LevelSpec{
	LevelKSI:           {Level: LevelKSI, Label: "KSI"},
	LevelMilestone:     {Level: LevelMilestone, Weighted: true, ParentBounded: true, Label: "milestone"},
	LevelKPI:           {Level: LevelKPI, ParentBounded: true, DatesOptional: true, Label: "KPI"},
	LevelMajorActivity: {Level: LevelMajorActivity, Weighted: true, ParentBounded: true, MaxSpanDays: MaxActivityTaskSpanDays, Label: "major activity"},
	LevelTask:          {Level: LevelTask, Weighted: true, ParentBounded: true, MaxSpanDays: MaxActivityTaskSpanDays, Label: "task"},
}

// Spec returns the descriptor for a level.
func Spec(l Level) LevelSpec { return levelSpecs[l] }
