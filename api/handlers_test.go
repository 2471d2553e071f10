/*
handlers_test.go - HTTP-level tests for the tracking API

Exercises the full stack: router, auth middleware, JSON decoding, the
tracker services, and the in-memory store. Each test mints real bearer
tokens so the claims-to-actor resolution runs exactly as in production.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/warp/initiative-engine/auth"
	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/tracker"
	memstore "github.com/warp/initiative-engine/tracker/store"
)

var testSecret = []byte("test-secret")

func newTestAPI(t *testing.T) (http.Handler, *tracker.Service) {
	t.Helper()
	svc := tracker.NewService(memstore.NewMemory())
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := NewHandler(svc, testSecret, log)
	return NewRouter(h), svc
}

func mintToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := auth.SignToken(testSecret, claims, time.Hour)
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// seedAdmin creates a department plus a position and returns a superuser
// token bound to that position.
func seedAdmin(t *testing.T, svc *tracker.Service) (string, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	dept, err := svc.CreateDepartment(ctx, tracker.DepartmentInput{Name: "Engineering"})
	require.NoError(t, err)
	holder := uuid.New()
	pos, err := svc.CreatePosition(ctx, tracker.PositionInput{
		DepartmentID: dept.ID,
		Name:         "Engineering Lead",
		UserID:       &holder,
	})
	require.NoError(t, err)
	token := mintToken(t, auth.Claims{
		UserID:     holder,
		Roles:      []string{tracker.RoleLeads, tracker.RoleOperationTeam},
		PositionID: &pos.ID,
		Superuser:  true,
	})
	return token, pos.ID
}

func TestRequiresAuth(t *testing.T) {
	// GIVEN a router with the auth middleware
	router, _ := newTestAPI(t)

	// WHEN listing KSIs without a bearer token
	rec := doJSON(t, router, http.MethodGet, "/api/ksis", "", nil)

	// THEN the request is rejected before reaching the handler
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKSILifecycleOverHTTP(t *testing.T) {
	router, svc := newTestAPI(t)
	token, _ := seedAdmin(t, svc)
	today := hierarchy.Today()

	// GIVEN a created KSI
	rec := doJSON(t, router, http.MethodPost, "/api/ksis", token, CreateKSIRequest{
		Name:      "Launch platform v2",
		StartDate: today,
		EndDate:   today.AddDays(120),
		Status:    hierarchy.StatusOngoing,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[KSIDTO](t, rec)
	require.Equal(t, "Launch platform v2", created.Name)
	require.Equal(t, "Engineering", created.Department.Name)
	require.Equal(t, "0.00", created.Completion)

	// WHEN listing
	rec = doJSON(t, router, http.MethodGet, "/api/ksis", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decodeBody[[]KSIDTO](t, rec)
	require.Len(t, listed, 1)

	// AND patching the name
	newName := "Launch platform v3"
	rec = doJSON(t, router, http.MethodPatch, "/api/ksis/"+created.ID.String(), token, UpdateKSIRequest{Name: &newName})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, newName, decodeBody[KSIDTO](t, rec).Name)

	// AND deleting it
	rec = doJSON(t, router, http.MethodDelete, "/api/ksis/"+created.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// THEN it reads back as not found
	rec = doJSON(t, router, http.MethodGet, "/api/ksis/"+created.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateKSIValidation(t *testing.T) {
	router, svc := newTestAPI(t)
	token, _ := seedAdmin(t, svc)

	// WHEN posting a KSI without a name
	rec := doJSON(t, router, http.MethodPost, "/api/ksis", token, map[string]any{
		"start_date": "2026-01-01",
		"end_date":   "2026-06-30",
	})

	// THEN the shape validator rejects it with a field-keyed body
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeBody[map[string][]string](t, rec)
	require.Contains(t, fields, "name")
	require.Contains(t, fields["name"][0], "required")
}

func TestWeightBudgetConflictOverHTTP(t *testing.T) {
	router, svc := newTestAPI(t)
	token, _ := seedAdmin(t, svc)
	today := hierarchy.Today()

	// GIVEN a KSI with a milestone already holding 60.00
	rec := doJSON(t, router, http.MethodPost, "/api/ksis", token, CreateKSIRequest{
		Name:      "Budget KSI",
		StartDate: today,
		EndDate:   today.AddDays(120),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ksi := decodeBody[KSIDTO](t, rec)

	first := CreateMilestoneRequest{
		KSI:       ksi.ID,
		Name:      "Phase one",
		StartDate: today,
		EndDate:   today.AddDays(60),
		Weight:    mustDecimal(t, "60.00"),
	}
	rec = doJSON(t, router, http.MethodPost, "/api/milestones", token, first)
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN a sibling asks for 50.00 more
	second := first
	second.Name = "Phase two"
	second.Weight = mustDecimal(t, "50.00")
	rec = doJSON(t, router, http.MethodPost, "/api/milestones", token, second)

	// THEN the budget validator answers with a weight field error
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeBody[map[string][]string](t, rec)
	require.Contains(t, fields, "weight")
	require.Contains(t, fields["weight"][0], "milestones under the KSI")
}

func TestTaskCompletionRendering(t *testing.T) {
	router, svc := newTestAPI(t)
	token, _ := seedAdmin(t, svc)
	today := hierarchy.Today()

	// GIVEN a chain down to a task with two weighted subtasks
	ksi := decodeBody[KSIDTO](t, doJSON(t, router, http.MethodPost, "/api/ksis", token, CreateKSIRequest{
		Name: "Completion KSI", StartDate: today, EndDate: today.AddDays(120),
	}))
	milestone := decodeBody[MilestoneDTO](t, doJSON(t, router, http.MethodPost, "/api/milestones", token, CreateMilestoneRequest{
		KSI: ksi.ID, Name: "Phase one", StartDate: today, EndDate: today.AddDays(60),
		Weight: mustDecimal(t, "100.00"),
	}))
	kpi := decodeBody[KPIDTO](t, doJSON(t, router, http.MethodPost, "/api/kpis", token, CreateKPIRequest{
		Milestone: milestone.ID, Name: "Readiness gate",
	}))
	activity := decodeBody[MajorActivityDTO](t, doJSON(t, router, http.MethodPost, "/api/major-activities", token, CreateMajorActivityRequest{
		KPI: kpi.ID, Name: "Pipeline", StartDate: today, EndDate: today.AddDays(20),
		Weight: mustDecimal(t, "100.00"),
	}))
	task := decodeBody[TaskDTO](t, doJSON(t, router, http.MethodPost, "/api/tasks", token, CreateTaskRequest{
		MajorActivity: activity.ID, Name: "Build it", StartDate: today, EndDate: today.AddDays(14),
		Weight: mustDecimal(t, "100.00"),
	}))

	rec := doJSON(t, router, http.MethodPost, "/api/tasks", token, CreateTaskRequest{
		MajorActivity: activity.ID, ParentTask: &task.ID, Name: "Design phase",
		StartDate: today, EndDate: today.AddDays(7),
		Weight:    mustDecimal(t, "40.00"),
		Status:    hierarchy.StatusCompleted,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/tasks", token, CreateTaskRequest{
		MajorActivity: activity.ID, ParentTask: &task.ID, Name: "Build phase",
		StartDate: today.AddDays(5), EndDate: today.AddDays(14),
		Weight: mustDecimal(t, "60.00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN reading the parent task
	rec = doJSON(t, router, http.MethodGet, "/api/tasks/"+task.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	parent := decodeBody[TaskDTO](t, rec)

	// THEN completion is the weighted sum and subtasks embed
	require.Equal(t, "40.00", parent.Completion)
	require.Len(t, parent.SubTasks, 2)

	// AND the completion propagates up to the KSI
	rec = doJSON(t, router, http.MethodGet, "/api/ksis/"+ksi.ID.String(), token, nil)
	require.Equal(t, "40.00", decodeBody[KSIDTO](t, rec).Completion)
}

func TestCompleteTaskRequiresLeadsRole(t *testing.T) {
	router, svc := newTestAPI(t)
	admin, _ := seedAdmin(t, svc)
	today := hierarchy.Today()

	ksi := decodeBody[KSIDTO](t, doJSON(t, router, http.MethodPost, "/api/ksis", admin, CreateKSIRequest{
		Name: "Gate KSI", StartDate: today, EndDate: today.AddDays(120),
	}))
	milestone := decodeBody[MilestoneDTO](t, doJSON(t, router, http.MethodPost, "/api/milestones", admin, CreateMilestoneRequest{
		KSI: ksi.ID, Name: "Phase one", StartDate: today, EndDate: today.AddDays(60),
		Weight: mustDecimal(t, "100.00"),
	}))
	kpi := decodeBody[KPIDTO](t, doJSON(t, router, http.MethodPost, "/api/kpis", admin, CreateKPIRequest{
		Milestone: milestone.ID, Name: "Gate",
	}))
	activity := decodeBody[MajorActivityDTO](t, doJSON(t, router, http.MethodPost, "/api/major-activities", admin, CreateMajorActivityRequest{
		KPI: kpi.ID, Name: "Pipeline", StartDate: today, EndDate: today.AddDays(20),
		Weight: mustDecimal(t, "100.00"),
	}))
	task := decodeBody[TaskDTO](t, doJSON(t, router, http.MethodPost, "/api/tasks", admin, CreateTaskRequest{
		MajorActivity: activity.ID, Name: "Build it", StartDate: today, EndDate: today.AddDays(14),
		Weight: mustDecimal(t, "100.00"),
	}))

	// GIVEN an authenticated user without the Leads role
	plain := mintToken(t, auth.Claims{UserID: uuid.New()})

	// WHEN they try to mark the task completed
	done := hierarchy.StatusCompleted
	rec := doJSON(t, router, http.MethodPatch, "/api/tasks/"+task.ID.String(), plain, UpdateTaskRequest{Status: &done})

	// THEN the transition is forbidden with the role message
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody[ErrorResponse](t, rec)
	require.Contains(t, body.Detail, "Leads")
}

func TestScenarioEndpoints(t *testing.T) {
	router, svc := newTestAPI(t)
	token, _ := seedAdmin(t, svc)

	// GIVEN the scenario catalog
	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decodeBody[[]ScenarioDTO](t, rec)
	require.Len(t, catalog, 2)

	// WHEN loading the product-launch scenario
	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", token, LoadScenarioRequest{ScenarioID: "product-launch"})
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN a fresh superuser sees the seeded KSI
	super := mintToken(t, auth.Claims{UserID: uuid.New(), Superuser: true})
	rec = doJSON(t, router, http.MethodGet, "/api/ksis", super, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody[[]KSIDTO](t, rec), 1)

	// AND an unknown scenario id is a field error
	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", token, LoadScenarioRequest{ScenarioID: "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemoTokenEndpoint(t *testing.T) {
	router, _ := newTestAPI(t)

	// WHEN minting a token without authentication
	rec := doJSON(t, router, http.MethodPost, "/api/auth/token", "", TokenRequest{
		UserID:    uuid.New(),
		Superuser: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	minted := decodeBody[TokenResponse](t, rec)
	require.NotEmpty(t, minted.Token)

	// THEN the minted token passes the auth gate
	rec = doJSON(t, router, http.MethodGet, "/api/ksis", minted.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
