/*
handlers.go - HTTP handlers for the initiative tracking API

PURPOSE:
  Implements the REST endpoints over the tracker services. Handlers do
  transport work only: decode and shape-validate the body, resolve the
  authenticated actor from the JWT claims, call the service, convert the
  result to DTOs. All domain rules live in tracker/ and hierarchy/.

ACTOR RESOLUTION:
  The auth middleware leaves verified claims in the request context. The
  handler resolves the claimed position against the store so scoping works
  from current org data, not from whatever the token was minted with. A
  position that no longer exists degrades to "no position" rather than
  failing the request.

VALIDATION LAYERS:
  1. JSON decoding           -> 400 {"detail": "..."} on malformed bodies
  2. validator/v10 tags      -> 400 field map (required, min length, url)
  3. tracker domain rules    -> 400 field map (budget, dates, parents)

SEE ALSO:
  - dto.go: Request/response shapes
  - render.go: Error translation
  - server.go: Routing
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/initiative-engine/auth"
	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/tracker"
)

const tokenTTL = 24 * time.Hour

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	svc      *tracker.Service
	store    tracker.Store
	secret   []byte
	log      *logrus.Logger
	validate *validator.Validate
}

// NewHandler creates a handler backed by the given service. The secret
// signs and verifies the bearer tokens.
func NewHandler(svc *tracker.Service, secret []byte, log *logrus.Logger) *Handler {
	v := validator.New()
	// Report errors under the json key, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		svc:      svc,
		store:    svc.Store(),
		secret:   secret,
		log:      log,
		validate: v,
	}
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// actor resolves the authenticated principal from the request context.
func (h *Handler) actor(r *http.Request) tracker.Actor {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		return tracker.Actor{}
	}
	a := tracker.Actor{
		ID:        claims.UserID,
		Superuser: claims.Superuser,
		Roles:     claims.Roles,
	}
	if claims.PositionID != nil {
		if pos, err := h.store.GetPosition(r.Context(), *claims.PositionID); err == nil {
			a.Position = pos
		}
	}
	return a
}

// decode reads the JSON body into dst and runs the validator tags.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadBody
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationFields(verrs)
		}
		return err
	}
	return nil
}

var errBadBody = errors.New("malformed request body")

// validationFields maps validator tag failures onto the field-keyed shape
// the domain validators use.
func validationFields(verrs validator.ValidationErrors) hierarchy.FieldErrors {
	fields := hierarchy.FieldErrors{}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields.Add(fe.Field(), "This field is required.")
		case "min":
			fields.Add(fe.Field(), fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param()))
		case "url":
			fields.Add(fe.Field(), "Enter a valid URL.")
		default:
			fields.Add(fe.Field(), "Invalid value.")
		}
	}
	return fields
}

func (h *Handler) handleDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadBody) {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return
	}
	h.writeError(w, err)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func listQuery(r *http.Request) tracker.Query {
	return tracker.Query{
		Search:   r.URL.Query().Get("search"),
		Ordering: r.URL.Query().Get("ordering"),
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// DTO CONVERSION
// =============================================================================

func auditDTO(a tracker.Audit) AuditDTO {
	return AuditDTO{
		CreatedBy:   a.CreatedBy,
		UpdatedBy:   a.UpdatedBy,
		CreatedDate: a.CreatedDate,
		UpdatedDate: a.UpdatedDate,
	}
}

func (h *Handler) departmentRef(ctx context.Context, id uuid.UUID) RefDTO {
	ref := RefDTO{ID: id}
	if d, err := h.store.GetDepartment(ctx, id); err == nil {
		ref.Name = d.Name
	}
	return ref
}

func (h *Handler) toKSIDTO(ctx context.Context, k *tracker.KSI) (KSIDTO, error) {
	completion, err := h.svc.KSICompletion(ctx, k)
	if err != nil {
		return KSIDTO{}, err
	}
	return KSIDTO{
		ID:          k.ID,
		Department:  h.departmentRef(ctx, k.DepartmentID),
		Name:        k.Name,
		Description: k.Description,
		StartDate:   k.StartDate,
		EndDate:     k.EndDate,
		Status:      k.Status,
		Completion:  money(completion),
		AuditDTO:    auditDTO(k.Audit),
	}, nil
}

func (h *Handler) toMilestoneDTO(ctx context.Context, m *tracker.Milestone) (MilestoneDTO, error) {
	completion, err := h.svc.MilestoneCompletion(ctx, m)
	if err != nil {
		return MilestoneDTO{}, err
	}
	ksiRef := RefDTO{ID: m.KSIID}
	if k, err := h.store.GetKSI(ctx, m.KSIID); err == nil {
		ksiRef.Name = k.Name
	}
	return MilestoneDTO{
		ID:          m.ID,
		KSI:         ksiRef,
		Name:        m.Name,
		Description: m.Description,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		Weight:      money(m.Weight),
		Status:      m.Status,
		Completion:  money(completion),
		AuditDTO:    auditDTO(m.Audit),
	}, nil
}

func (h *Handler) toKPIDTO(ctx context.Context, k *tracker.KPI) KPIDTO {
	msRef := RefDTO{ID: k.MilestoneID}
	if m, err := h.store.GetMilestone(ctx, k.MilestoneID); err == nil {
		msRef.Name = m.Name
	}
	return KPIDTO{
		ID:          k.ID,
		Milestone:   msRef,
		Name:        k.Name,
		Description: k.Description,
		StartDate:   k.StartDate,
		EndDate:     k.EndDate,
		Status:      k.Status,
		PlannedKPI:  k.PlannedKPI,
		AuditDTO:    auditDTO(k.Audit),
	}
}

func (h *Handler) toActivityDTO(ctx context.Context, a *tracker.MajorActivity) (MajorActivityDTO, error) {
	completion, err := h.svc.ActivityCompletion(ctx, a)
	if err != nil {
		return MajorActivityDTO{}, err
	}
	kpiRef := RefDTO{ID: a.KPIID}
	if k, err := h.store.GetKPI(ctx, a.KPIID); err == nil {
		kpiRef.Name = k.Name
	}
	var deptRef *RefDTO
	if a.DepartmentID != nil {
		ref := h.departmentRef(ctx, *a.DepartmentID)
		deptRef = &ref
	}
	return MajorActivityDTO{
		ID:          a.ID,
		KPI:         kpiRef,
		Department:  deptRef,
		Name:        a.Name,
		Description: a.Description,
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		Weight:      money(a.Weight),
		Status:      a.Status,
		Completion:  money(completion),
		AuditDTO:    auditDTO(a.Audit),
	}, nil
}

func (h *Handler) toTaskDTO(ctx context.Context, t *tracker.Task) (TaskDTO, error) {
	completion, err := h.svc.TaskCompletion(ctx, t)
	if err != nil {
		return TaskDTO{}, err
	}
	actRef := RefDTO{ID: t.MajorActivityID}
	if a, err := h.store.GetActivity(ctx, t.MajorActivityID); err == nil {
		actRef.Name = a.Name
	}
	var parentRef *RefDTO
	if t.ParentTaskID != nil {
		ref := RefDTO{ID: *t.ParentTaskID}
		if p, err := h.store.GetTask(ctx, *t.ParentTaskID); err == nil {
			ref.Name = p.Name
		}
		parentRef = &ref
	}

	positions, err := h.svc.TaskPositions(ctx, t.ID)
	if err != nil {
		return TaskDTO{}, err
	}
	posRefs := make([]RefDTO, 0, len(positions))
	for _, p := range positions {
		posRefs = append(posRefs, RefDTO{ID: p.ID, Name: p.Name})
	}

	groups, err := h.svc.TaskChallengeGroups(ctx, t.ID)
	if err != nil {
		return TaskDTO{}, err
	}
	groupRefs := make([]RefDTO, 0, len(groups))
	for _, g := range groups {
		groupRefs = append(groupRefs, RefDTO{ID: g.ID, Name: g.Name})
	}

	subs, err := h.svc.Subtasks(ctx, t.ID)
	if err != nil {
		return TaskDTO{}, err
	}
	subDTOs := make([]TaskDTO, 0, len(subs))
	for i := range subs {
		dto, err := h.toTaskDTO(ctx, &subs[i])
		if err != nil {
			return TaskDTO{}, err
		}
		subDTOs = append(subDTOs, dto)
	}

	return TaskDTO{
		ID:              t.ID,
		MajorActivity:   actRef,
		ParentTask:      parentRef,
		Name:            t.Name,
		Description:     t.Description,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		ActualStartDate: t.ActualStartDate,
		ActualEndDate:   t.ActualEndDate,
		Weight:          money(t.Weight),
		Status:          t.Status,
		ApprovalStatus:  t.ApprovalStatus,
		Feedback:        t.Feedback,
		OtherChallenge:  t.OtherChallenge,
		Link:            t.Link,
		Completion:      money(completion),
		Positions:       posRefs,
		ChallengeGroups: groupRefs,
		SubTasks:        subDTOs,
		AuditDTO:        auditDTO(t.Audit),
	}, nil
}

// =============================================================================
// KSI ENDPOINTS
// =============================================================================

// ListKSIs returns the KSIs in the actor's scope.
// GET /api/ksis?search=&ordering=
func (h *Handler) ListKSIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ksis, err := h.svc.ListKSIs(ctx, h.actor(r), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]KSIDTO, 0, len(ksis))
	for i := range ksis {
		dto, err := h.toKSIDTO(ctx, &ksis[i])
		if err != nil {
			h.writeError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetKSI returns a single KSI with its computed completion.
// GET /api/ksis/{id}
func (h *Handler) GetKSI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	k, err := h.svc.GetKSI(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toKSIDTO(r.Context(), k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateKSI creates a KSI owned by the actor's department.
// POST /api/ksis
func (h *Handler) CreateKSI(w http.ResponseWriter, r *http.Request) {
	var req CreateKSIRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	k, err := h.svc.CreateKSI(r.Context(), h.actor(r), tracker.KSIInput{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      defaultStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toKSIDTO(r.Context(), k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// UpdateKSI partially updates a KSI; absent fields keep current values.
// PUT/PATCH /api/ksis/{id}
func (h *Handler) UpdateKSI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req UpdateKSIRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	k, err := h.svc.UpdateKSI(r.Context(), h.actor(r), id, tracker.KSIPatch{
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toKSIDTO(r.Context(), k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeleteKSI removes a childless KSI.
// DELETE /api/ksis/{id}
func (h *Handler) DeleteKSI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteKSI(r.Context(), h.actor(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Structure returns the scope-filtered KSI->Milestone->KPI->MajorActivity
// name tree.
// GET /api/ksis/structure
func (h *Handler) Structure(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.svc.Structure(r.Context(), h.actor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStructureDTOs(nodes))
}

func toStructureDTOs(nodes []tracker.StructureNode) []StructureDTO {
	dtos := make([]StructureDTO, 0, len(nodes))
	for _, n := range nodes {
		dtos = append(dtos, StructureDTO{
			ID:       n.ID,
			Name:     n.Name,
			Children: toStructureDTOs(n.Children),
		})
	}
	return dtos
}

// =============================================================================
// MILESTONE ENDPOINTS
// =============================================================================

// GET /api/milestones
func (h *Handler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	milestones, err := h.svc.ListMilestones(ctx, h.actor(r), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]MilestoneDTO, 0, len(milestones))
	for i := range milestones {
		dto, err := h.toMilestoneDTO(ctx, &milestones[i])
		if err != nil {
			h.writeError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/milestones/{id}
func (h *Handler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	m, err := h.svc.GetMilestone(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toMilestoneDTO(r.Context(), m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// POST /api/milestones
func (h *Handler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	var req CreateMilestoneRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	m, err := h.svc.CreateMilestone(r.Context(), h.actor(r), tracker.MilestoneInput{
		KSIID:       req.KSI,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Weight:      req.Weight,
		Status:      defaultStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toMilestoneDTO(r.Context(), m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// PUT/PATCH /api/milestones/{id}
func (h *Handler) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req UpdateMilestoneRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	m, err := h.svc.UpdateMilestone(r.Context(), h.actor(r), id, tracker.MilestonePatch{
		KSIID:       req.KSI,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Weight:      req.Weight,
		Status:      req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toMilestoneDTO(r.Context(), m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DELETE /api/milestones/{id}
func (h *Handler) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteMilestone(r.Context(), h.actor(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// KPI ENDPOINTS
// =============================================================================

// GET /api/kpis
func (h *Handler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kpis, err := h.svc.ListKPIs(ctx, h.actor(r), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]KPIDTO, 0, len(kpis))
	for i := range kpis {
		dtos = append(dtos, h.toKPIDTO(ctx, &kpis[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/kpis/{id}
func (h *Handler) GetKPI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	k, err := h.svc.GetKPI(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toKPIDTO(r.Context(), k))
}

// POST /api/kpis
func (h *Handler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	var req CreateKPIRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	k, err := h.svc.CreateKPI(r.Context(), h.actor(r), tracker.KPIInput{
		MilestoneID: req.Milestone,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      req.Status,
		PlannedKPI:  req.PlannedKPI,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toKPIDTO(r.Context(), k))
}

// PUT/PATCH /api/kpis/{id}
func (h *Handler) UpdateKPI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req UpdateKPIRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	k, err := h.svc.UpdateKPI(r.Context(), h.actor(r), id, tracker.KPIPatch{
		MilestoneID: req.Milestone,
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      req.Status,
		PlannedKPI:  req.PlannedKPI,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toKPIDTO(r.Context(), k))
}

// DELETE /api/kpis/{id}
func (h *Handler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteKPI(r.Context(), h.actor(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MAJOR ACTIVITY ENDPOINTS
// =============================================================================

// GET /api/major-activities
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activities, err := h.svc.ListActivities(ctx, h.actor(r), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeActivityList(ctx, w, activities)
}

// AssignedActivities returns the activities tagged with the actor's own
// department.
// GET /api/major-activities/assigned
func (h *Handler) AssignedActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activities, err := h.svc.AssignedActivities(ctx, h.actor(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeActivityList(ctx, w, activities)
}

func (h *Handler) writeActivityList(ctx context.Context, w http.ResponseWriter, activities []tracker.MajorActivity) {
	dtos := make([]MajorActivityDTO, 0, len(activities))
	for i := range activities {
		dto, err := h.toActivityDTO(ctx, &activities[i])
		if err != nil {
			h.writeError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/major-activities/{id}
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	a, err := h.svc.GetActivity(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toActivityDTO(r.Context(), a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// POST /api/major-activities
func (h *Handler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req CreateMajorActivityRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	a, err := h.svc.CreateActivity(r.Context(), h.actor(r), tracker.ActivityInput{
		KPIID:        req.KPI,
		DepartmentID: req.Department,
		Name:         req.Name,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Weight:       req.Weight,
		Status:       defaultStatus(req.Status),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toActivityDTO(r.Context(), a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// PUT/PATCH /api/major-activities/{id}
func (h *Handler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req UpdateMajorActivityRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	a, err := h.svc.UpdateActivity(r.Context(), h.actor(r), id, tracker.ActivityPatch{
		KPIID:        req.KPI,
		DepartmentID: req.Department,
		Name:         req.Name,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Weight:       req.Weight,
		Status:       req.Status,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toActivityDTO(r.Context(), a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DELETE /api/major-activities/{id}
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteActivity(r.Context(), h.actor(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TASK ENDPOINTS
// =============================================================================

// GET /api/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tasks, err := h.svc.ListTasks(ctx, h.actor(r), listQuery(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	dtos := make([]TaskDTO, 0, len(tasks))
	for i := range tasks {
		dto, err := h.toTaskDTO(ctx, &tasks[i])
		if err != nil {
			h.writeError(w, err)
			return
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	t, err := h.svc.GetTask(r.Context(), h.actor(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toTaskDTO(r.Context(), t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	approval := req.ApprovalStatus
	if approval == "" {
		approval = hierarchy.ApprovalPending
	}
	t, err := h.svc.CreateTask(r.Context(), h.actor(r), tracker.TaskInput{
		MajorActivityID: req.MajorActivity,
		ParentTaskID:    req.ParentTask,
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		ActualStartDate: req.ActualStartDate,
		ActualEndDate:   req.ActualEndDate,
		Weight:          req.Weight,
		Status:          defaultStatus(req.Status),
		ApprovalStatus:  approval,
		Feedback:        req.Feedback,
		OtherChallenge:  req.OtherChallenge,
		Link:            req.Link,
		ChallengeGroups: req.ChallengeGroups,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toTaskDTO(r.Context(), t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// PUT/PATCH /api/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req UpdateTaskRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	t, err := h.svc.UpdateTask(r.Context(), h.actor(r), id, tracker.TaskPatch{
		MajorActivityID: req.MajorActivity,
		ParentTaskID:    req.ParentTask,
		Name:            req.Name,
		Description:     req.Description,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		ActualStartDate: req.ActualStartDate,
		ActualEndDate:   req.ActualEndDate,
		Weight:          req.Weight,
		Status:          req.Status,
		ApprovalStatus:  req.ApprovalStatus,
		Feedback:        req.Feedback,
		OtherChallenge:  req.OtherChallenge,
		Link:            req.Link,
		ChallengeGroups: req.ChallengeGroups,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toTaskDTO(r.Context(), t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	if err := h.svc.DeleteTask(r.Context(), h.actor(r), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddPositions assigns position holders to a task. Idempotent.
// POST /api/tasks/{id}/add_positions
func (h *Handler) AddPositions(w http.ResponseWriter, r *http.Request) {
	h.changePositions(w, r, h.svc.AddPositions)
}

// RemovePositions unassigns position holders from a task.
// POST /api/tasks/{id}/remove_positions
func (h *Handler) RemovePositions(w http.ResponseWriter, r *http.Request) {
	h.changePositions(w, r, h.svc.RemovePositions)
}

func (h *Handler) changePositions(w http.ResponseWriter, r *http.Request, op func(context.Context, tracker.Actor, uuid.UUID, []uuid.UUID) (*tracker.Task, error)) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, tracker.ErrNotFound)
		return
	}
	var req PositionsRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	t, err := op(r.Context(), h.actor(r), id, req.Positions)
	if err != nil {
		h.writeError(w, err)
		return
	}
	dto, err := h.toTaskDTO(r.Context(), t)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// AUTH
// =============================================================================

// IssueToken mints a demo bearer token for the given principal.
// POST /api/auth/token
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}
	token, err := auth.SignToken(h.secret, auth.Claims{
		UserID:     req.UserID,
		Roles:      req.Roles,
		PositionID: req.PositionID,
		Superuser:  req.Superuser,
	}, tokenTTL)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func defaultStatus(s hierarchy.Status) hierarchy.Status {
	if s == "" {
		return hierarchy.StatusNotStarted
	}
	return s
}
