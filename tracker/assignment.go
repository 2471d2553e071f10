/*
assignment.go - Task position assignment

Assigning a position to a task is what puts the task (and its subtasks)
into an Expert's scope. Both mutations are idempotent so clients can
retry them safely.
*/
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
)

// validatePositionIDs checks that every referenced position exists,
// collecting one field error per missing id.
func (s *Service) validatePositionIDs(ctx context.Context, ids []uuid.UUID) error {
	fields := hierarchy.FieldErrors{}
	for _, id := range ids {
		if _, err := s.store.GetPosition(ctx, id); errors.Is(err, ErrNotFound) {
			fields.Add("positions", fmt.Sprintf("Position '%s' does not exist.", id))
		} else if err != nil {
			return err
		}
	}
	if !fields.Empty() {
		return fields
	}
	return nil
}

// AddPositions assigns the given positions to a task. Positions already
// assigned are left alone.
func (s *Service) AddPositions(ctx context.Context, actor Actor, taskID uuid.UUID, positionIDs []uuid.UUID) (*Task, error) {
	t, err := s.GetTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if len(positionIDs) == 0 {
		fields := hierarchy.FieldErrors{}
		fields.Add("positions", "This field is required.")
		return nil, fields
	}
	if err := s.validatePositionIDs(ctx, positionIDs); err != nil {
		return nil, err
	}
	if err := s.store.AddTaskPositions(ctx, taskID, positionIDs); err != nil {
		return nil, err
	}
	return s.refreshTaskPositions(ctx, t)
}

// RemovePositions unassigns the given positions. Absent positions are
// ignored.
func (s *Service) RemovePositions(ctx context.Context, actor Actor, taskID uuid.UUID, positionIDs []uuid.UUID) (*Task, error) {
	t, err := s.GetTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if len(positionIDs) == 0 {
		fields := hierarchy.FieldErrors{}
		fields.Add("positions", "This field is required.")
		return nil, fields
	}
	if err := s.validatePositionIDs(ctx, positionIDs); err != nil {
		return nil, err
	}
	if err := s.store.RemoveTaskPositions(ctx, taskID, positionIDs); err != nil {
		return nil, err
	}
	return s.refreshTaskPositions(ctx, t)
}

// TaskPositions lists the positions currently assigned to a task.
func (s *Service) TaskPositions(ctx context.Context, taskID uuid.UUID) ([]orgdata.Position, error) {
	return s.store.ListTaskPositions(ctx, taskID)
}

// TaskChallengeGroups lists the challenge groups attached to a task.
func (s *Service) TaskChallengeGroups(ctx context.Context, taskID uuid.UUID) ([]orgdata.ChallengeGroup, error) {
	return s.store.ListTaskChallengeGroups(ctx, taskID)
}

func (s *Service) refreshTaskPositions(ctx context.Context, t *Task) (*Task, error) {
	positions, err := s.store.ListTaskPositions(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.ID)
	}
	t.PositionIDs = ids
	return t, nil
}
