/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario resets the store and then builds an org
	(departments, positions, challenge taxonomy) plus a KSI hierarchy
	through the service layer, so every seeded row passed the same
	validation real requests do.

AVAILABLE SCENARIOS:

	product-launch:    One department, full five-level hierarchy with
	                   subtasks and position assignments
	multi-department:  Two departments with separate KSIs, for exploring
	                   Lead/Expert scoping

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "product-launch"}

NOTE:

	Scenarios reset the database. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: Shared request plumbing
  - tracker/service.go: The services the loaders drive
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/tracker"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "product-launch",
		Name:        "Product Launch",
		Description: "One department, full five-level hierarchy with subtasks and assignments",
	},
	{
		ID:          "multi-department",
		Name:        "Multi Department",
		Description: "Two departments with separate KSIs for exploring role scoping",
	},
}

// resetter is implemented by stores that can wipe themselves for a reload.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the store and loads the named scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decode(r, &req); err != nil {
		h.handleDecodeError(w, err)
		return
	}

	rs, ok := h.store.(resetter)
	if !ok {
		writeDetail(w, http.StatusNotImplemented, "This store does not support scenario loading.")
		return
	}
	if err := rs.Reset(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "product-launch":
		err = h.loadProductLaunch(r.Context())
	case "multi-department":
		err = h.loadMultiDepartment(r.Context())
	default:
		fields := hierarchy.FieldErrors{}
		fields.Add("scenario_id", fmt.Sprintf("Unknown scenario '%s'.", req.ScenarioID))
		h.writeError(w, fields)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.WithField("scenario", req.ScenarioID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func weight(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedDepartment builds a department with one lead position and returns a
// superuser actor holding that position, ready to create the KSI.
func (h *Handler) seedDepartment(ctx context.Context, name, positionName string) (tracker.Actor, error) {
	dept, err := h.svc.CreateDepartment(ctx, tracker.DepartmentInput{
		Name:        name,
		Description: fmt.Sprintf("%s department (demo)", name),
	})
	if err != nil {
		return tracker.Actor{}, err
	}
	holder := uuid.New()
	pos, err := h.svc.CreatePosition(ctx, tracker.PositionInput{
		DepartmentID: dept.ID,
		Name:         positionName,
		UserID:       &holder,
	})
	if err != nil {
		return tracker.Actor{}, err
	}
	return tracker.Actor{
		ID:        holder,
		Superuser: true,
		Roles:     []string{tracker.RoleLeads, tracker.RoleOperationTeam},
		Position:  pos,
	}, nil
}

func (h *Handler) loadProductLaunch(ctx context.Context) error {
	actor, err := h.seedDepartment(ctx, "Engineering", "Engineering Lead")
	if err != nil {
		return err
	}

	challengeType, err := h.svc.CreateChallengeType(ctx, tracker.ChallengeTypeInput{
		Name: "Delivery Risk",
	})
	if err != nil {
		return err
	}
	blockedGroup, err := h.svc.CreateChallengeGroup(ctx, tracker.ChallengeGroupInput{
		ChallengeTypeID: challengeType.ID,
		Name:            "Blocked by vendor",
	})
	if err != nil {
		return err
	}

	today := hierarchy.Today()

	ksi, err := h.svc.CreateKSI(ctx, actor, tracker.KSIInput{
		Name:        "Launch platform v2",
		Description: "Ship the second generation platform to all customers",
		StartDate:   today.AddDays(-30),
		EndDate:     today.AddDays(180),
		Status:      hierarchy.StatusOngoing,
	})
	if err != nil {
		return err
	}

	alpha, err := h.svc.CreateMilestone(ctx, actor, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "Alpha release",
		StartDate: today.AddDays(-30),
		EndDate:   today.AddDays(60),
		Weight:    weight("60.00"),
		Status:    hierarchy.StatusOngoing,
	})
	if err != nil {
		return err
	}
	_, err = h.svc.CreateMilestone(ctx, actor, tracker.MilestoneInput{
		KSIID:     ksi.ID,
		Name:      "General availability",
		StartDate: today.AddDays(60),
		EndDate:   today.AddDays(180),
		Weight:    weight("40.00"),
		Status:    hierarchy.StatusNotStarted,
	})
	if err != nil {
		return err
	}

	kpi, err := h.svc.CreateKPI(ctx, actor, tracker.KPIInput{
		MilestoneID: alpha.ID,
		Name:        "Ten design partners onboarded",
		Status:      hierarchy.KPIPending,
		PlannedKPI:  10,
	})
	if err != nil {
		return err
	}

	activity, err := h.svc.CreateActivity(ctx, actor, tracker.ActivityInput{
		KPIID:     kpi.ID,
		Name:      "Onboarding pipeline",
		StartDate: today,
		EndDate:   today.AddDays(21),
		Weight:    weight("100.00"),
		Status:    hierarchy.StatusOngoing,
	})
	if err != nil {
		return err
	}

	buildTask, err := h.svc.CreateTask(ctx, actor, tracker.TaskInput{
		MajorActivityID: activity.ID,
		Name:            "Build signup flow",
		StartDate:       today,
		EndDate:         today.AddDays(14),
		Weight:          weight("70.00"),
		Status:          hierarchy.StatusOngoing,
		ApprovalStatus:  hierarchy.ApprovalPending,
		ChallengeGroups: []uuid.UUID{blockedGroup.ID},
	})
	if err != nil {
		return err
	}
	_, err = h.svc.CreateTask(ctx, actor, tracker.TaskInput{
		MajorActivityID: activity.ID,
		Name:            "Write partner playbook",
		StartDate:       today.AddDays(7),
		EndDate:         today.AddDays(21),
		Weight:          weight("30.00"),
		Status:          hierarchy.StatusNotStarted,
		ApprovalStatus:  hierarchy.ApprovalPending,
	})
	if err != nil {
		return err
	}

	// Subtasks under the build task: one already done, one in flight.
	_, err = h.svc.CreateTask(ctx, actor, tracker.TaskInput{
		MajorActivityID: activity.ID,
		ParentTaskID:    &buildTask.ID,
		Name:            "Design signup screens",
		StartDate:       today,
		EndDate:         today.AddDays(7),
		Weight:          weight("40.00"),
		Status:          hierarchy.StatusCompleted,
		ApprovalStatus:  hierarchy.ApprovalApproved,
	})
	if err != nil {
		return err
	}
	_, err = h.svc.CreateTask(ctx, actor, tracker.TaskInput{
		MajorActivityID: activity.ID,
		ParentTaskID:    &buildTask.ID,
		Name:            "Wire signup backend",
		StartDate:       today.AddDays(5),
		EndDate:         today.AddDays(14),
		Weight:          weight("60.00"),
		Status:          hierarchy.StatusOngoing,
		ApprovalStatus:  hierarchy.ApprovalPending,
	})
	if err != nil {
		return err
	}

	// An expert position assigned to the in-flight work.
	expertHolder := uuid.New()
	expert, err := h.svc.CreatePosition(ctx, tracker.PositionInput{
		DepartmentID: actor.Position.DepartmentID,
		Name:         "Backend Engineer",
		UserID:       &expertHolder,
	})
	if err != nil {
		return err
	}
	if _, err := h.svc.AddPositions(ctx, actor, buildTask.ID, []uuid.UUID{expert.ID}); err != nil {
		return err
	}
	return nil
}

func (h *Handler) loadMultiDepartment(ctx context.Context) error {
	type seed struct {
		dept     string
		position string
		ksi      string
	}
	seeds := []seed{
		{"Engineering", "Engineering Lead", "Launch platform v2"},
		{"Operations", "Operations Lead", "Cut fulfilment time in half"},
	}

	today := hierarchy.Today()
	for _, sd := range seeds {
		actor, err := h.seedDepartment(ctx, sd.dept, sd.position)
		if err != nil {
			return err
		}
		ksi, err := h.svc.CreateKSI(ctx, actor, tracker.KSIInput{
			Name:      sd.ksi,
			StartDate: today,
			EndDate:   today.AddDays(120),
			Status:    hierarchy.StatusOngoing,
		})
		if err != nil {
			return err
		}
		milestone, err := h.svc.CreateMilestone(ctx, actor, tracker.MilestoneInput{
			KSIID:     ksi.ID,
			Name:      sd.dept + " phase one",
			StartDate: today,
			EndDate:   today.AddDays(60),
			Weight:    weight("100.00"),
			Status:    hierarchy.StatusOngoing,
		})
		if err != nil {
			return err
		}
		if _, err := h.svc.CreateKPI(ctx, actor, tracker.KPIInput{
			MilestoneID: milestone.ID,
			Name:        sd.dept + " readiness gate",
			Status:      hierarchy.KPIPending,
			PlannedKPI:  1,
		}); err != nil {
			return err
		}
	}
	return nil
}
