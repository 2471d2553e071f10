// Package store provides tracker.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
	"github.com/warp/initiative-engine/orgdata"
	"github.com/warp/initiative-engine/tracker"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps behind one RWMutex. WithTx serializes
// mutating bodies with a second mutex and restores a snapshot on error,
// which gives the same weight-budget guarantee as sqlite's write lock.
type Memory struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	departments     map[uuid.UUID]orgdata.Department
	positions       map[uuid.UUID]orgdata.Position
	challengeTypes  map[uuid.UUID]orgdata.ChallengeType
	challengeGroups map[uuid.UUID]orgdata.ChallengeGroup

	ksis       map[uuid.UUID]tracker.KSI
	milestones map[uuid.UUID]tracker.Milestone
	kpis       map[uuid.UUID]tracker.KPI
	activities map[uuid.UUID]tracker.MajorActivity
	tasks      map[uuid.UUID]tracker.Task

	taskPositions map[uuid.UUID]map[uuid.UUID]struct{}
	taskGroups    map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		departments:     make(map[uuid.UUID]orgdata.Department),
		positions:       make(map[uuid.UUID]orgdata.Position),
		challengeTypes:  make(map[uuid.UUID]orgdata.ChallengeType),
		challengeGroups: make(map[uuid.UUID]orgdata.ChallengeGroup),
		ksis:            make(map[uuid.UUID]tracker.KSI),
		milestones:      make(map[uuid.UUID]tracker.Milestone),
		kpis:            make(map[uuid.UUID]tracker.KPI),
		activities:      make(map[uuid.UUID]tracker.MajorActivity),
		tasks:           make(map[uuid.UUID]tracker.Task),
		taskPositions:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
		taskGroups:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) WithTx(_ context.Context, fn func(tracker.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Reset drops all stored data. Used by the demo scenario loaders.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := NewMemory()
	m.departments = fresh.departments
	m.positions = fresh.positions
	m.challengeTypes = fresh.challengeTypes
	m.challengeGroups = fresh.challengeGroups
	m.ksis = fresh.ksis
	m.milestones = fresh.milestones
	m.kpis = fresh.kpis
	m.activities = fresh.activities
	m.tasks = fresh.tasks
	m.taskPositions = fresh.taskPositions
	m.taskGroups = fresh.taskGroups
	return nil
}

type memSnapshot struct {
	departments     map[uuid.UUID]orgdata.Department
	positions       map[uuid.UUID]orgdata.Position
	challengeTypes  map[uuid.UUID]orgdata.ChallengeType
	challengeGroups map[uuid.UUID]orgdata.ChallengeGroup
	ksis            map[uuid.UUID]tracker.KSI
	milestones      map[uuid.UUID]tracker.Milestone
	kpis            map[uuid.UUID]tracker.KPI
	activities      map[uuid.UUID]tracker.MajorActivity
	tasks           map[uuid.UUID]tracker.Task
	taskPositions   map[uuid.UUID]map[uuid.UUID]struct{}
	taskGroups      map[uuid.UUID]map[uuid.UUID]struct{}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copySetMap(src map[uuid.UUID]map[uuid.UUID]struct{}) map[uuid.UUID]map[uuid.UUID]struct{} {
	dst := make(map[uuid.UUID]map[uuid.UUID]struct{}, len(src))
	for k, set := range src {
		dst[k] = copyMap(set)
	}
	return dst
}

func (m *Memory) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memSnapshot{
		departments:     copyMap(m.departments),
		positions:       copyMap(m.positions),
		challengeTypes:  copyMap(m.challengeTypes),
		challengeGroups: copyMap(m.challengeGroups),
		ksis:            copyMap(m.ksis),
		milestones:      copyMap(m.milestones),
		kpis:            copyMap(m.kpis),
		activities:      copyMap(m.activities),
		tasks:           copyMap(m.tasks),
		taskPositions:   copySetMap(m.taskPositions),
		taskGroups:      copySetMap(m.taskGroups),
	}
}

func (m *Memory) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments = s.departments
	m.positions = s.positions
	m.challengeTypes = s.challengeTypes
	m.challengeGroups = s.challengeGroups
	m.ksis = s.ksis
	m.milestones = s.milestones
	m.kpis = s.kpis
	m.activities = s.activities
	m.tasks = s.tasks
	m.taskPositions = s.taskPositions
	m.taskGroups = s.taskGroups
}

// =============================================================================
// QUERY HELPERS
// =============================================================================

func matchSearch(name, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(search))
}

type orderable struct {
	name    string
	created time.Time
}

// sortSlice applies the whitelisted ordering keys; anything unrecognized
// falls back to creation order with a name tie-break.
func sortSlice[T any](items []T, ordering string, key func(T) orderable) {
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")

	less := func(a, b orderable) bool {
		if field == "name" {
			if a.name != b.name {
				return a.name < b.name
			}
			return a.created.Before(b.created)
		}
		if !a.created.Equal(b.created) {
			return a.created.Before(b.created)
		}
		return a.name < b.name
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i]), key(items[j])
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

// =============================================================================
// SCOPE RESOLUTION (department chain lookups, lock held)
// =============================================================================

func (m *Memory) ksiDeptLocked(ksiID uuid.UUID) (uuid.UUID, bool) {
	k, ok := m.ksis[ksiID]
	if !ok {
		return uuid.Nil, false
	}
	return k.DepartmentID, true
}

func (m *Memory) milestoneDeptLocked(id uuid.UUID) (uuid.UUID, bool) {
	ms, ok := m.milestones[id]
	if !ok {
		return uuid.Nil, false
	}
	return m.ksiDeptLocked(ms.KSIID)
}

func (m *Memory) kpiDeptLocked(id uuid.UUID) (uuid.UUID, bool) {
	k, ok := m.kpis[id]
	if !ok {
		return uuid.Nil, false
	}
	return m.milestoneDeptLocked(k.MilestoneID)
}

func (m *Memory) activityVisibleLocked(a tracker.MajorActivity, dept uuid.UUID) bool {
	if a.DepartmentID != nil && *a.DepartmentID == dept {
		return true
	}
	d, ok := m.kpiDeptLocked(a.KPIID)
	return ok && d == dept
}

func (m *Memory) taskAssignedLocked(t tracker.Task, posID uuid.UUID) bool {
	if _, ok := m.taskPositions[t.ID][posID]; ok {
		return true
	}
	if t.ParentTaskID == nil {
		return false
	}
	_, ok := m.taskPositions[*t.ParentTaskID][posID]
	return ok
}

// =============================================================================
// ORGDATA
// =============================================================================

func (m *Memory) nameTakenLocked(name string, excluding uuid.UUID, kind string) bool {
	switch kind {
	case "department":
		for _, d := range m.departments {
			if d.Name == name && d.ID != excluding {
				return true
			}
		}
	case "position":
		for _, p := range m.positions {
			if p.Name == name && p.ID != excluding {
				return true
			}
		}
	case "challenge_type":
		for _, t := range m.challengeTypes {
			if t.Name == name && t.ID != excluding {
				return true
			}
		}
	case "challenge_group":
		for _, g := range m.challengeGroups {
			if g.Name == name && g.ID != excluding {
				return true
			}
		}
	}
	return false
}

func (m *Memory) CreateDepartment(_ context.Context, d *orgdata.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTakenLocked(d.Name, d.ID, "department") {
		return orgdata.ErrDuplicateName
	}
	now := time.Now().UTC()
	d.CreatedDate, d.UpdatedDate = now, now
	m.departments[d.ID] = *d
	return nil
}

func (m *Memory) GetDepartment(_ context.Context, id uuid.UUID) (*orgdata.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &d, nil
}

func (m *Memory) ListDepartments(_ context.Context, q tracker.Query) ([]orgdata.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.Department, 0, len(m.departments))
	for _, d := range m.departments {
		if matchSearch(d.Name, q.Search) {
			out = append(out, d)
		}
	}
	sortSlice(out, q.Ordering, func(d orgdata.Department) orderable {
		return orderable{d.Name, d.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateDepartment(_ context.Context, d *orgdata.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.departments[d.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	if m.nameTakenLocked(d.Name, d.ID, "department") {
		return orgdata.ErrDuplicateName
	}
	d.CreatedDate = cur.CreatedDate
	d.UpdatedDate = time.Now().UTC()
	m.departments[d.ID] = *d
	return nil
}

func (m *Memory) DeleteDepartment(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.departments[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, p := range m.positions {
		if p.DepartmentID == id {
			return tracker.ErrInUse
		}
	}
	for _, k := range m.ksis {
		if k.DepartmentID == id {
			return tracker.ErrInUse
		}
	}
	for _, a := range m.activities {
		if a.DepartmentID != nil && *a.DepartmentID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.departments, id)
	return nil
}

func (m *Memory) CreatePosition(_ context.Context, p *orgdata.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTakenLocked(p.Name, p.ID, "position") {
		return orgdata.ErrDuplicateName
	}
	now := time.Now().UTC()
	p.CreatedDate, p.UpdatedDate = now, now
	m.positions[p.ID] = *p
	return nil
}

func (m *Memory) GetPosition(_ context.Context, id uuid.UUID) (*orgdata.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListPositions(_ context.Context, q tracker.Query) ([]orgdata.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.Position, 0, len(m.positions))
	for _, p := range m.positions {
		if matchSearch(p.Name, q.Search) {
			out = append(out, p)
		}
	}
	sortSlice(out, q.Ordering, func(p orgdata.Position) orderable {
		return orderable{p.Name, p.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdatePosition(_ context.Context, p *orgdata.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.positions[p.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	if m.nameTakenLocked(p.Name, p.ID, "position") {
		return orgdata.ErrDuplicateName
	}
	p.CreatedDate = cur.CreatedDate
	p.UpdatedDate = time.Now().UTC()
	m.positions[p.ID] = *p
	return nil
}

func (m *Memory) DeletePosition(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, set := range m.taskPositions {
		if _, ok := set[id]; ok {
			return tracker.ErrInUse
		}
	}
	delete(m.positions, id)
	return nil
}

func (m *Memory) CreateChallengeType(_ context.Context, t *orgdata.ChallengeType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTakenLocked(t.Name, t.ID, "challenge_type") {
		return orgdata.ErrDuplicateName
	}
	now := time.Now().UTC()
	t.CreatedDate, t.UpdatedDate = now, now
	m.challengeTypes[t.ID] = *t
	return nil
}

func (m *Memory) GetChallengeType(_ context.Context, id uuid.UUID) (*orgdata.ChallengeType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.challengeTypes[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &t, nil
}

func (m *Memory) ListChallengeTypes(_ context.Context, q tracker.Query) ([]orgdata.ChallengeType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.ChallengeType, 0, len(m.challengeTypes))
	for _, t := range m.challengeTypes {
		if matchSearch(t.Name, q.Search) {
			out = append(out, t)
		}
	}
	sortSlice(out, q.Ordering, func(t orgdata.ChallengeType) orderable {
		return orderable{t.Name, t.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateChallengeType(_ context.Context, t *orgdata.ChallengeType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.challengeTypes[t.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	if m.nameTakenLocked(t.Name, t.ID, "challenge_type") {
		return orgdata.ErrDuplicateName
	}
	t.CreatedDate = cur.CreatedDate
	t.UpdatedDate = time.Now().UTC()
	m.challengeTypes[t.ID] = *t
	return nil
}

func (m *Memory) DeleteChallengeType(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challengeTypes[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, g := range m.challengeGroups {
		if g.ChallengeTypeID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.challengeTypes, id)
	return nil
}

func (m *Memory) CreateChallengeGroup(_ context.Context, g *orgdata.ChallengeGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTakenLocked(g.Name, g.ID, "challenge_group") {
		return orgdata.ErrDuplicateName
	}
	now := time.Now().UTC()
	g.CreatedDate, g.UpdatedDate = now, now
	m.challengeGroups[g.ID] = *g
	return nil
}

func (m *Memory) GetChallengeGroup(_ context.Context, id uuid.UUID) (*orgdata.ChallengeGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.challengeGroups[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &g, nil
}

func (m *Memory) ListChallengeGroups(_ context.Context, q tracker.Query) ([]orgdata.ChallengeGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.ChallengeGroup, 0, len(m.challengeGroups))
	for _, g := range m.challengeGroups {
		if matchSearch(g.Name, q.Search) {
			out = append(out, g)
		}
	}
	sortSlice(out, q.Ordering, func(g orgdata.ChallengeGroup) orderable {
		return orderable{g.Name, g.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateChallengeGroup(_ context.Context, g *orgdata.ChallengeGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.challengeGroups[g.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	if m.nameTakenLocked(g.Name, g.ID, "challenge_group") {
		return orgdata.ErrDuplicateName
	}
	g.CreatedDate = cur.CreatedDate
	g.UpdatedDate = time.Now().UTC()
	m.challengeGroups[g.ID] = *g
	return nil
}

func (m *Memory) DeleteChallengeGroup(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challengeGroups[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, set := range m.taskGroups {
		if _, ok := set[id]; ok {
			return tracker.ErrInUse
		}
	}
	delete(m.challengeGroups, id)
	return nil
}

// =============================================================================
// TREE: KSI
// =============================================================================

func (m *Memory) CreateKSI(_ context.Context, k *tracker.KSI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	k.CreatedDate, k.UpdatedDate = now, now
	m.ksis[k.ID] = *k
	return nil
}

func (m *Memory) GetKSI(_ context.Context, id uuid.UUID) (*tracker.KSI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.ksis[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &k, nil
}

func (m *Memory) ListKSIs(_ context.Context, q tracker.Query) ([]tracker.KSI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.KSI, 0, len(m.ksis))
	for _, k := range m.ksis {
		if !matchSearch(k.Name, q.Search) {
			continue
		}
		if q.Scope.LeadDepartment != nil && k.DepartmentID != *q.Scope.LeadDepartment {
			continue
		}
		out = append(out, k)
	}
	sortSlice(out, q.Ordering, func(k tracker.KSI) orderable {
		return orderable{k.Name, k.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateKSI(_ context.Context, k *tracker.KSI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ksis[k.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	k.CreatedDate = cur.CreatedDate
	k.UpdatedDate = time.Now().UTC()
	m.ksis[k.ID] = *k
	return nil
}

func (m *Memory) DeleteKSI(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ksis[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, ms := range m.milestones {
		if ms.KSIID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.ksis, id)
	return nil
}

// =============================================================================
// TREE: MILESTONE
// =============================================================================

func (m *Memory) CreateMilestone(_ context.Context, ms *tracker.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	ms.CreatedDate, ms.UpdatedDate = now, now
	m.milestones[ms.ID] = *ms
	return nil
}

func (m *Memory) GetMilestone(_ context.Context, id uuid.UUID) (*tracker.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, ok := m.milestones[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &ms, nil
}

func (m *Memory) ListMilestones(_ context.Context, q tracker.Query) ([]tracker.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.Milestone, 0, len(m.milestones))
	for _, ms := range m.milestones {
		if !matchSearch(ms.Name, q.Search) {
			continue
		}
		if q.Scope.LeadDepartment != nil {
			dept, ok := m.ksiDeptLocked(ms.KSIID)
			if !ok || dept != *q.Scope.LeadDepartment {
				continue
			}
		}
		out = append(out, ms)
	}
	sortSlice(out, q.Ordering, func(ms tracker.Milestone) orderable {
		return orderable{ms.Name, ms.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListMilestonesByKSI(_ context.Context, ksiID uuid.UUID) ([]tracker.Milestone, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.Milestone, 0)
	for _, ms := range m.milestones {
		if ms.KSIID == ksiID {
			out = append(out, ms)
		}
	}
	sortSlice(out, "", func(ms tracker.Milestone) orderable {
		return orderable{ms.Name, ms.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateMilestone(_ context.Context, ms *tracker.Milestone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.milestones[ms.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	ms.CreatedDate = cur.CreatedDate
	ms.UpdatedDate = time.Now().UTC()
	m.milestones[ms.ID] = *ms
	return nil
}

func (m *Memory) DeleteMilestone(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.milestones[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, k := range m.kpis {
		if k.MilestoneID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.milestones, id)
	return nil
}

// =============================================================================
// TREE: KPI
// =============================================================================

func (m *Memory) CreateKPI(_ context.Context, k *tracker.KPI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	k.CreatedDate, k.UpdatedDate = now, now
	m.kpis[k.ID] = *k
	return nil
}

func (m *Memory) GetKPI(_ context.Context, id uuid.UUID) (*tracker.KPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.kpis[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &k, nil
}

func (m *Memory) ListKPIs(_ context.Context, q tracker.Query) ([]tracker.KPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.KPI, 0, len(m.kpis))
	for _, k := range m.kpis {
		if !matchSearch(k.Name, q.Search) {
			continue
		}
		if q.Scope.LeadDepartment != nil {
			dept, ok := m.milestoneDeptLocked(k.MilestoneID)
			if !ok || dept != *q.Scope.LeadDepartment {
				continue
			}
		}
		out = append(out, k)
	}
	sortSlice(out, q.Ordering, func(k tracker.KPI) orderable {
		return orderable{k.Name, k.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListKPIsByMilestone(_ context.Context, milestoneID uuid.UUID) ([]tracker.KPI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.KPI, 0)
	for _, k := range m.kpis {
		if k.MilestoneID == milestoneID {
			out = append(out, k)
		}
	}
	sortSlice(out, "", func(k tracker.KPI) orderable {
		return orderable{k.Name, k.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateKPI(_ context.Context, k *tracker.KPI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.kpis[k.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	k.CreatedDate = cur.CreatedDate
	k.UpdatedDate = time.Now().UTC()
	m.kpis[k.ID] = *k
	return nil
}

func (m *Memory) DeleteKPI(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.kpis[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, a := range m.activities {
		if a.KPIID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.kpis, id)
	return nil
}

// =============================================================================
// TREE: MAJOR ACTIVITY
// =============================================================================

func (m *Memory) CreateActivity(_ context.Context, a *tracker.MajorActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	a.CreatedDate, a.UpdatedDate = now, now
	m.activities[a.ID] = *a
	return nil
}

func (m *Memory) GetActivity(_ context.Context, id uuid.UUID) (*tracker.MajorActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) ListActivities(_ context.Context, q tracker.Query) ([]tracker.MajorActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.MajorActivity, 0, len(m.activities))
	for _, a := range m.activities {
		if !matchSearch(a.Name, q.Search) {
			continue
		}
		if q.Scope.LeadDepartment != nil && !m.activityVisibleLocked(a, *q.Scope.LeadDepartment) {
			continue
		}
		out = append(out, a)
	}
	sortSlice(out, q.Ordering, func(a tracker.MajorActivity) orderable {
		return orderable{a.Name, a.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListActivitiesByKPI(_ context.Context, kpiID uuid.UUID) ([]tracker.MajorActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.MajorActivity, 0)
	for _, a := range m.activities {
		if a.KPIID == kpiID {
			out = append(out, a)
		}
	}
	sortSlice(out, "", func(a tracker.MajorActivity) orderable {
		return orderable{a.Name, a.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListActivitiesByMilestone(_ context.Context, milestoneID uuid.UUID) ([]tracker.MajorActivity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.MajorActivity, 0)
	for _, a := range m.activities {
		k, ok := m.kpis[a.KPIID]
		if ok && k.MilestoneID == milestoneID {
			out = append(out, a)
		}
	}
	sortSlice(out, "", func(a tracker.MajorActivity) orderable {
		return orderable{a.Name, a.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateActivity(_ context.Context, a *tracker.MajorActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.activities[a.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	a.CreatedDate = cur.CreatedDate
	a.UpdatedDate = time.Now().UTC()
	m.activities[a.ID] = *a
	return nil
}

func (m *Memory) DeleteActivity(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.activities[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, t := range m.tasks {
		if t.MajorActivityID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.activities, id)
	return nil
}

// =============================================================================
// TREE: TASK
// =============================================================================

func (m *Memory) withJoinsLocked(t tracker.Task) tracker.Task {
	t.PositionIDs = sortedIDs(m.taskPositions[t.ID])
	t.ChallengeGroups = sortedIDs(m.taskGroups[t.ID])
	return t
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (m *Memory) CreateTask(_ context.Context, t *tracker.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	t.CreatedDate, t.UpdatedDate = now, now
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) GetTask(_ context.Context, id uuid.UUID) (*tracker.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, tracker.ErrNotFound
	}
	t = m.withJoinsLocked(t)
	return &t, nil
}

func (m *Memory) ListTasks(_ context.Context, q tracker.Query) ([]tracker.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if !matchSearch(t.Name, q.Search) {
			continue
		}
		if q.Scope.TopLevelOnly && t.ParentTaskID != nil {
			continue
		}
		if q.Scope.LeadDepartment != nil {
			a, ok := m.activities[t.MajorActivityID]
			if !ok || !m.activityVisibleLocked(a, *q.Scope.LeadDepartment) {
				continue
			}
		}
		if q.Scope.ExpertPosition != nil && !m.taskAssignedLocked(t, *q.Scope.ExpertPosition) {
			continue
		}
		out = append(out, m.withJoinsLocked(t))
	}
	sortSlice(out, q.Ordering, func(t tracker.Task) orderable {
		return orderable{t.Name, t.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListTasksByActivity(_ context.Context, activityID uuid.UUID, topLevelOnly bool) ([]tracker.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.Task, 0)
	for _, t := range m.tasks {
		if t.MajorActivityID != activityID {
			continue
		}
		if topLevelOnly && t.ParentTaskID != nil {
			continue
		}
		out = append(out, m.withJoinsLocked(t))
	}
	sortSlice(out, "", func(t tracker.Task) orderable {
		return orderable{t.Name, t.CreatedDate}
	})
	return out, nil
}

func (m *Memory) ListSubtasks(_ context.Context, parentID uuid.UUID) ([]tracker.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]tracker.Task, 0)
	for _, t := range m.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == parentID {
			out = append(out, m.withJoinsLocked(t))
		}
	}
	sortSlice(out, "", func(t tracker.Task) orderable {
		return orderable{t.Name, t.CreatedDate}
	})
	return out, nil
}

func (m *Memory) UpdateTask(_ context.Context, t *tracker.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tasks[t.ID]
	if !ok {
		return tracker.ErrNotFound
	}
	t.CreatedDate = cur.CreatedDate
	t.UpdatedDate = time.Now().UTC()
	m.tasks[t.ID] = *t
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return tracker.ErrNotFound
	}
	for _, t := range m.tasks {
		if t.ParentTaskID != nil && *t.ParentTaskID == id {
			return tracker.ErrInUse
		}
	}
	delete(m.tasks, id)
	delete(m.taskPositions, id)
	delete(m.taskGroups, id)
	return nil
}

func (m *Memory) SetStatus(_ context.Context, level hierarchy.Level, id uuid.UUID, status hierarchy.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch level {
	case hierarchy.LevelKSI:
		k, ok := m.ksis[id]
		if !ok {
			return tracker.ErrNotFound
		}
		k.Status = status
		m.ksis[id] = k
	case hierarchy.LevelMilestone:
		ms, ok := m.milestones[id]
		if !ok {
			return tracker.ErrNotFound
		}
		ms.Status = status
		m.milestones[id] = ms
	case hierarchy.LevelMajorActivity:
		a, ok := m.activities[id]
		if !ok {
			return tracker.ErrNotFound
		}
		a.Status = status
		m.activities[id] = a
	case hierarchy.LevelTask:
		t, ok := m.tasks[id]
		if !ok {
			return tracker.ErrNotFound
		}
		t.Status = status
		m.tasks[id] = t
	default:
		return tracker.ErrNotFound
	}
	return nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (m *Memory) AddTaskPositions(_ context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return tracker.ErrNotFound
	}
	set := m.taskPositions[taskID]
	if set == nil {
		set = make(map[uuid.UUID]struct{})
		m.taskPositions[taskID] = set
	}
	for _, id := range positionIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (m *Memory) RemoveTaskPositions(_ context.Context, taskID uuid.UUID, positionIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return tracker.ErrNotFound
	}
	set := m.taskPositions[taskID]
	for _, id := range positionIDs {
		delete(set, id)
	}
	return nil
}

func (m *Memory) ListTaskPositions(_ context.Context, taskID uuid.UUID) ([]orgdata.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.Position, 0)
	for id := range m.taskPositions[taskID] {
		if p, ok := m.positions[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SetTaskChallengeGroups(_ context.Context, taskID uuid.UUID, groupIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; !ok {
		return tracker.ErrNotFound
	}
	set := make(map[uuid.UUID]struct{}, len(groupIDs))
	for _, id := range groupIDs {
		set[id] = struct{}{}
	}
	m.taskGroups[taskID] = set
	return nil
}

func (m *Memory) ListTaskChallengeGroups(_ context.Context, taskID uuid.UUID) ([]orgdata.ChallengeGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orgdata.ChallengeGroup, 0)
	for id := range m.taskGroups[taskID] {
		if g, ok := m.challengeGroups[id]; ok {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
