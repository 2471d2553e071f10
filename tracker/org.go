/*
org.go - CRUD services for the supporting orgdata entities

Departments, positions, and the challenge taxonomy. These are open to any
authenticated actor; scoping applies only to the tree. Deletes are
protected: a referenced entity returns ErrInUse, surfaced as a conflict.
*/
package tracker

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
)

// =============================================================================
// DEPARTMENTS
// =============================================================================

type DepartmentInput struct {
	Name        string
	Description string
}

func (s *Service) CreateDepartment(ctx context.Context, in DepartmentInput) (*orgdata.Department, error) {
	if fields := orgdata.ValidateName(in.Name); !fields.Empty() {
		return nil, fields
	}
	d := &orgdata.Department{ID: uuid.New(), Name: in.Name, Description: in.Description}
	if err := s.store.CreateDepartment(ctx, d); err != nil {
		return nil, duplicateToField(err)
	}
	return d, nil
}

func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*orgdata.Department, error) {
	return s.store.GetDepartment(ctx, id)
}

func (s *Service) ListDepartments(ctx context.Context, q Query) ([]orgdata.Department, error) {
	return s.store.ListDepartments(ctx, q)
}

func (s *Service) UpdateDepartment(ctx context.Context, id uuid.UUID, in DepartmentInput) (*orgdata.Department, error) {
	d, err := s.store.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields := orgdata.ValidateName(in.Name); !fields.Empty() {
		return nil, fields
	}
	d.Name = in.Name
	d.Description = in.Description
	if err := s.store.UpdateDepartment(ctx, d); err != nil {
		return nil, duplicateToField(err)
	}
	return d, nil
}

func (s *Service) DeleteDepartment(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetDepartment(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteDepartment(ctx, id)
}

// =============================================================================
// POSITIONS
// =============================================================================

type PositionInput struct {
	DepartmentID uuid.UUID
	Name         string
	Description  string
	UserID       *uuid.UUID
}

func (s *Service) CreatePosition(ctx context.Context, in PositionInput) (*orgdata.Position, error) {
	fields := orgdata.ValidateName(in.Name)
	if _, err := s.store.GetDepartment(ctx, in.DepartmentID); errors.Is(err, ErrNotFound) {
		fields.Add("department", (&hierarchy.ParentNotFoundError{ParentKind: "department"}).Error())
	} else if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	p := &orgdata.Position{
		ID:           uuid.New(),
		DepartmentID: in.DepartmentID,
		Name:         in.Name,
		Description:  in.Description,
		UserID:       in.UserID,
	}
	if err := s.store.CreatePosition(ctx, p); err != nil {
		return nil, duplicateToField(err)
	}
	return p, nil
}

func (s *Service) GetPosition(ctx context.Context, id uuid.UUID) (*orgdata.Position, error) {
	return s.store.GetPosition(ctx, id)
}

func (s *Service) ListPositions(ctx context.Context, q Query) ([]orgdata.Position, error) {
	return s.store.ListPositions(ctx, q)
}

func (s *Service) UpdatePosition(ctx context.Context, id uuid.UUID, in PositionInput) (*orgdata.Position, error) {
	p, err := s.store.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := orgdata.ValidateName(in.Name)
	if _, err := s.store.GetDepartment(ctx, in.DepartmentID); errors.Is(err, ErrNotFound) {
		fields.Add("department", (&hierarchy.ParentNotFoundError{ParentKind: "department"}).Error())
	} else if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	p.DepartmentID = in.DepartmentID
	p.Name = in.Name
	p.Description = in.Description
	p.UserID = in.UserID
	if err := s.store.UpdatePosition(ctx, p); err != nil {
		return nil, duplicateToField(err)
	}
	return p, nil
}

func (s *Service) DeletePosition(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetPosition(ctx, id); err != nil {
		return err
	}
	return s.store.DeletePosition(ctx, id)
}

// =============================================================================
// CHALLENGE TAXONOMY
// =============================================================================

type ChallengeTypeInput struct {
	Name        string
	Description string
}

func (s *Service) CreateChallengeType(ctx context.Context, in ChallengeTypeInput) (*orgdata.ChallengeType, error) {
	if fields := orgdata.ValidateName(in.Name); !fields.Empty() {
		return nil, fields
	}
	t := &orgdata.ChallengeType{ID: uuid.New(), Name: in.Name, Description: in.Description}
	if err := s.store.CreateChallengeType(ctx, t); err != nil {
		return nil, duplicateToField(err)
	}
	return t, nil
}

func (s *Service) GetChallengeType(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeType, error) {
	return s.store.GetChallengeType(ctx, id)
}

func (s *Service) ListChallengeTypes(ctx context.Context, q Query) ([]orgdata.ChallengeType, error) {
	return s.store.ListChallengeTypes(ctx, q)
}

func (s *Service) UpdateChallengeType(ctx context.Context, id uuid.UUID, in ChallengeTypeInput) (*orgdata.ChallengeType, error) {
	t, err := s.store.GetChallengeType(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields := orgdata.ValidateName(in.Name); !fields.Empty() {
		return nil, fields
	}
	t.Name = in.Name
	t.Description = in.Description
	if err := s.store.UpdateChallengeType(ctx, t); err != nil {
		return nil, duplicateToField(err)
	}
	return t, nil
}

func (s *Service) DeleteChallengeType(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetChallengeType(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteChallengeType(ctx, id)
}

type ChallengeGroupInput struct {
	ChallengeTypeID uuid.UUID
	Name            string
	Description     string
}

func (s *Service) CreateChallengeGroup(ctx context.Context, in ChallengeGroupInput) (*orgdata.ChallengeGroup, error) {
	fields := orgdata.ValidateName(in.Name)
	if _, err := s.store.GetChallengeType(ctx, in.ChallengeTypeID); errors.Is(err, ErrNotFound) {
		fields.Add("challenge_type", (&hierarchy.ParentNotFoundError{ParentKind: "challenge type"}).Error())
	} else if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	g := &orgdata.ChallengeGroup{
		ID:              uuid.New(),
		ChallengeTypeID: in.ChallengeTypeID,
		Name:            in.Name,
		Description:     in.Description,
	}
	if err := s.store.CreateChallengeGroup(ctx, g); err != nil {
		return nil, duplicateToField(err)
	}
	return g, nil
}

func (s *Service) GetChallengeGroup(ctx context.Context, id uuid.UUID) (*orgdata.ChallengeGroup, error) {
	return s.store.GetChallengeGroup(ctx, id)
}

func (s *Service) ListChallengeGroups(ctx context.Context, q Query) ([]orgdata.ChallengeGroup, error) {
	return s.store.ListChallengeGroups(ctx, q)
}

func (s *Service) UpdateChallengeGroup(ctx context.Context, id uuid.UUID, in ChallengeGroupInput) (*orgdata.ChallengeGroup, error) {
	g, err := s.store.GetChallengeGroup(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := orgdata.ValidateName(in.Name)
	if _, err := s.store.GetChallengeType(ctx, in.ChallengeTypeID); errors.Is(err, ErrNotFound) {
		fields.Add("challenge_type", (&hierarchy.ParentNotFoundError{ParentKind: "challenge type"}).Error())
	} else if err != nil {
		return nil, err
	}
	if !fields.Empty() {
		return nil, fields
	}

	g.ChallengeTypeID = in.ChallengeTypeID
	g.Name = in.Name
	g.Description = in.Description
	if err := s.store.UpdateChallengeGroup(ctx, g); err != nil {
		return nil, duplicateToField(err)
	}
	return g, nil
}

func (s *Service) DeleteChallengeGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetChallengeGroup(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteChallengeGroup(ctx, id)
}

// duplicateToField converts the store's unique-name violation into a
// field-level error so it renders as a 400 on the name field.
func duplicateToField(err error) error {
	if errors.Is(err, orgdata.ErrDuplicateName) {
		fields := hierarchy.FieldErrors{}
		fields.Add("name", "An entry with this name already exists.")
		return fields
	}
	return err
}
