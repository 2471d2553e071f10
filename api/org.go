/*
org.go - HTTP handlers for the supporting org taxonomy

PURPOSE:
  CRUD endpoints for departments, positions, challenge types and challenge
  groups. These are unscoped reference data: any authenticated principal
  can read them, and writes are validated by the tracker org services
  (unique names, parent existence, delete protection).

SEE ALSO:
  - tracker/org.go: The services behind these endpoints
  - orgdata/: Entity definitions and name validation
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/initiative-engine/orgdata"
	"github.com/warp/initiative-engine/tracker"
)

// =============================================================================
// DTO CONVERSION
// =============================================================================

func toDepartmentDTO(d *orgdata.Department) DepartmentDTO {
	return DepartmentDTO{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedDate: d.CreatedDate,
		UpdatedDate: d.UpdatedDate,
	}
}

func (h *Handler) toPositionDTO(ctx context.Context, p *orgdata.Position) PositionDTO {
	return PositionDTO{
		ID:          p.ID,
		Department:  h.departmentRef(ctx, p.DepartmentID),
		Name:        p.Name,
		Description: p.Description,
		UserID:      p.UserID,
		CreatedDate: p.CreatedDate,
		UpdatedDate: p.UpdatedDate,
	}
}

func toChallengeTypeDTO(t *orgdata.ChallengeType) ChallengeTypeDTO {
	return ChallengeTypeDTO{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedDate: t.CreatedDate,
		UpdatedDate: t.UpdatedDate,
	}
}

func (h *Handler) toChallengeGroupDTO(ctx context.Context, g *orgdata.ChallengeGroup) ChallengeGroupDTO {
	typeRef := RefDTO{ID: g.ChallengeTypeID}
	if t, err := h.store.GetChallengeType(ctx, g.ChallengeTypeID); err == nil {
		typeRef.Name = t.Name
	}
	return ChallengeGroupDTO{
		ID:            g.ID,
		ChallengeType: typeRef,
		Name:          g.Name,
		Description:   g.Description,
		CreatedDate:   g.CreatedDate,
		UpdatedDate:   g.UpdatedDate,
	}
}

// =============================================================================
// DEPARTMENT ENDPOINTS
// =============================================================================

// GET /api/departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.svc.ListDepartments(r.Context(), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]DepartmentDTO, 0, len(departments))
	for i := range departments {
		dtos = append(dtos, toDepartmentDTO(&departments[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/departments/{id}
func (h *Handler) GetDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	d, err := h.svc.GetDepartment(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepartmentDTO(d))
}

// POST /api/departments
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req DepartmentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	d, err := h.svc.CreateDepartment(r.Context(), tracker.DepartmentInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDepartmentDTO(d))
}

// PUT /api/departments/{id}
func (h *Handler) UpdateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req DepartmentRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	d, err := h.svc.UpdateDepartment(r.Context(), id, tracker.DepartmentInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDepartmentDTO(d))
}

// DELETE /api/departments/{id}
func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteDepartment(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// POSITION ENDPOINTS
// =============================================================================

// GET /api/positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.ListPositions(r.Context(), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]PositionDTO, 0, len(positions))
	for i := range positions {
		dtos = append(dtos, h.toPositionDTO(r.Context(), &positions[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/positions/{id}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	p, err := h.svc.GetPosition(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPositionDTO(r.Context(), p))
}

// POST /api/positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	p, err := h.svc.CreatePosition(r.Context(), tracker.PositionInput{
		DepartmentID: req.Department,
		Name:         req.Name,
		Description:  req.Description,
		UserID:       req.UserID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toPositionDTO(r.Context(), p))
}

// PUT /api/positions/{id}
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req PositionRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	p, err := h.svc.UpdatePosition(r.Context(), id, tracker.PositionInput{
		DepartmentID: req.Department,
		Name:         req.Name,
		Description:  req.Description,
		UserID:       req.UserID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPositionDTO(r.Context(), p))
}

// DELETE /api/positions/{id}
func (h *Handler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeletePosition(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CHALLENGE TYPE ENDPOINTS
// =============================================================================

// GET /api/challenge-types
func (h *Handler) ListChallengeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.ListChallengeTypes(r.Context(), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ChallengeTypeDTO, 0, len(types))
	for i := range types {
		dtos = append(dtos, toChallengeTypeDTO(&types[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/challenge-types/{id}
func (h *Handler) GetChallengeType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	t, err := h.svc.GetChallengeType(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeTypeDTO(t))
}

// POST /api/challenge-types
func (h *Handler) CreateChallengeType(w http.ResponseWriter, r *http.Request) {
	var req ChallengeTypeRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	t, err := h.svc.CreateChallengeType(r.Context(), tracker.ChallengeTypeInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeTypeDTO(t))
}

// PUT /api/challenge-types/{id}
func (h *Handler) UpdateChallengeType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req ChallengeTypeRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	t, err := h.svc.UpdateChallengeType(r.Context(), id, tracker.ChallengeTypeInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChallengeTypeDTO(t))
}

// DELETE /api/challenge-types/{id}
func (h *Handler) DeleteChallengeType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteChallengeType(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CHALLENGE GROUP ENDPOINTS
// =============================================================================

// GET /api/challenge-groups
func (h *Handler) ListChallengeGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.ListChallengeGroups(r.Context(), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]ChallengeGroupDTO, 0, len(groups))
	for i := range groups {
		dtos = append(dtos, h.toChallengeGroupDTO(r.Context(), &groups[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/challenge-groups/{id}
func (h *Handler) GetChallengeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	g, err := h.svc.GetChallengeGroup(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toChallengeGroupDTO(r.Context(), g))
}

// POST /api/challenge-groups
func (h *Handler) CreateChallengeGroup(w http.ResponseWriter, r *http.Request) {
	var req ChallengeGroupRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	g, err := h.svc.CreateChallengeGroup(r.Context(), tracker.ChallengeGroupInput{
		ChallengeTypeID: req.ChallengeType,
		Name:            req.Name,
		Description:     req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toChallengeGroupDTO(r.Context(), g))
}

// PUT /api/challenge-groups/{id}
func (h *Handler) UpdateChallengeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req ChallengeGroupRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	g, err := h.svc.UpdateChallengeGroup(r.Context(), id, tracker.ChallengeGroupInput{
		ChallengeTypeID: req.ChallengeType,
		Name:            req.Name,
		Description:     req.Description,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toChallengeGroupDTO(r.Context(), g))
}

// DELETE /api/challenge-groups/{id}
func (h *Handler) DeleteChallengeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteChallengeGroup(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
