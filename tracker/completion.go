/*
completion.go - Recursive weighted completion with explicit persistence

PURPOSE:
  Walks the tree bottom-up and returns each node's completion percentage,
  computed by hierarchy.ComputeCompletion. The derived-status write that
  the calculation can trigger (promotion to completed, overdue marking) is
  done HERE, through an explicit SetStatus call, so reads stay pure in the
  engine and every write is visible in this file.

AGGREGATION SHAPE:
  task      <- weighted subtasks (leaf: status alone)
  activity  <- weighted top-level tasks
  milestone <- weighted activities across all of its KPIs (the KPI layer
               carries no weight and is skipped)
  ksi       <- weighted milestones

CONCURRENCY:
  The status write is last-write-wins against concurrent direct updates.
  Derived status is recomputed on every read, so a lost write heals on
  the next pass.
*/
package tracker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
)

// deriveAndPersist applies the derived-status rule and stores the result
// when it changed. current is updated in place so callers observe the
// promotion without a re-read.
func (s *Service) deriveAndPersist(ctx context.Context, level hierarchy.Level, id uuid.UUID, current *hierarchy.Status, completion decimal.Decimal, end hierarchy.Date) error {
	next, changed := hierarchy.DeriveStatus(*current, completion, end, s.now(), s.overdue)
	if !changed {
		return nil
	}
	if err := s.store.SetStatus(ctx, level, id, next); err != nil {
		return err
	}
	*current = next
	return nil
}

// TaskCompletion returns the task's completion percentage. A task without
// subtasks is a leaf: 100.00 when completed, else 0.00. Subtask statuses
// may be promoted as a side effect of the recursive walk.
func (s *Service) TaskCompletion(ctx context.Context, t *Task) (decimal.Decimal, error) {
	subs, err := s.store.ListSubtasks(ctx, t.ID)
	if err != nil {
		return decimal.Zero, err
	}

	children := make([]hierarchy.WeightedChild, 0, len(subs))
	for i := range subs {
		c, err := s.TaskCompletion(ctx, &subs[i])
		if err != nil {
			return decimal.Zero, err
		}
		children = append(children, hierarchy.WeightedChild{Completion: c, Weight: subs[i].Weight})
	}

	completion := hierarchy.ComputeCompletion(t.Status, children)
	if err := s.deriveAndPersist(ctx, hierarchy.LevelTask, t.ID, &t.Status, completion, t.EndDate); err != nil {
		return decimal.Zero, err
	}
	return completion, nil
}

// ActivityCompletion aggregates the activity's top-level tasks.
func (s *Service) ActivityCompletion(ctx context.Context, a *MajorActivity) (decimal.Decimal, error) {
	tasks, err := s.store.ListTasksByActivity(ctx, a.ID, true)
	if err != nil {
		return decimal.Zero, err
	}

	children := make([]hierarchy.WeightedChild, 0, len(tasks))
	for i := range tasks {
		c, err := s.TaskCompletion(ctx, &tasks[i])
		if err != nil {
			return decimal.Zero, err
		}
		children = append(children, hierarchy.WeightedChild{Completion: c, Weight: tasks[i].Weight})
	}

	completion := hierarchy.ComputeCompletion(a.Status, children)
	if err := s.deriveAndPersist(ctx, hierarchy.LevelMajorActivity, a.ID, &a.Status, completion, a.EndDate); err != nil {
		return decimal.Zero, err
	}
	return completion, nil
}

// MilestoneCompletion aggregates the activities under every KPI of the
// milestone. The KPI layer is unweighted and contributes nothing itself.
func (s *Service) MilestoneCompletion(ctx context.Context, m *Milestone) (decimal.Decimal, error) {
	activities, err := s.store.ListActivitiesByMilestone(ctx, m.ID)
	if err != nil {
		return decimal.Zero, err
	}

	children := make([]hierarchy.WeightedChild, 0, len(activities))
	for i := range activities {
		c, err := s.ActivityCompletion(ctx, &activities[i])
		if err != nil {
			return decimal.Zero, err
		}
		children = append(children, hierarchy.WeightedChild{Completion: c, Weight: activities[i].Weight})
	}

	completion := hierarchy.ComputeCompletion(m.Status, children)
	if err := s.deriveAndPersist(ctx, hierarchy.LevelMilestone, m.ID, &m.Status, completion, m.EndDate); err != nil {
		return decimal.Zero, err
	}
	return completion, nil
}

// KSICompletion aggregates the KSI's milestones.
func (s *Service) KSICompletion(ctx context.Context, k *KSI) (decimal.Decimal, error) {
	milestones, err := s.store.ListMilestonesByKSI(ctx, k.ID)
	if err != nil {
		return decimal.Zero, err
	}

	children := make([]hierarchy.WeightedChild, 0, len(milestones))
	for i := range milestones {
		c, err := s.MilestoneCompletion(ctx, &milestones[i])
		if err != nil {
			return decimal.Zero, err
		}
		children = append(children, hierarchy.WeightedChild{Completion: c, Weight: milestones[i].Weight})
	}

	completion := hierarchy.ComputeCompletion(k.Status, children)
	if err := s.deriveAndPersist(ctx, hierarchy.LevelKSI, k.ID, &k.Status, completion, k.EndDate); err != nil {
		return decimal.Zero, err
	}
	return completion, nil
}
