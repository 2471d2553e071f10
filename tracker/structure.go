/*
structure.go - Names-only hierarchy view

A single nested payload of the KSI -> Milestone -> KPI -> MajorActivity
tree, for navigation sidebars. Tasks are excluded: the tree stops at the
activity layer. The view is scope-filtered the same way the per-level
list endpoints are.
*/
package tracker

import (
	"context"

	"github.com/google/uuid"

	"github.com/warp/initiative-engine/hierarchy"
)

type StructureNode struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Children []StructureNode `json:"children"`
}

// Structure builds the nested tree of the actor's visible KSIs.
func (s *Service) Structure(ctx context.Context, actor Actor) ([]StructureNode, error) {
	ksis, err := s.store.ListKSIs(ctx, Query{Scope: ResolveScope(hierarchy.LevelKSI, actor)})
	if err != nil {
		return nil, err
	}

	out := make([]StructureNode, 0, len(ksis))
	for _, ksi := range ksis {
		node := StructureNode{ID: ksi.ID, Name: ksi.Name, Children: []StructureNode{}}

		milestones, err := s.store.ListMilestonesByKSI(ctx, ksi.ID)
		if err != nil {
			return nil, err
		}
		for _, ms := range milestones {
			msNode := StructureNode{ID: ms.ID, Name: ms.Name, Children: []StructureNode{}}

			kpis, err := s.store.ListKPIsByMilestone(ctx, ms.ID)
			if err != nil {
				return nil, err
			}
			for _, kpi := range kpis {
				kpiNode := StructureNode{ID: kpi.ID, Name: kpi.Name, Children: []StructureNode{}}

				activities, err := s.store.ListActivitiesByKPI(ctx, kpi.ID)
				if err != nil {
					return nil, err
				}
				for _, a := range activities {
					kpiNode.Children = append(kpiNode.Children, StructureNode{
						ID:       a.ID,
						Name:     a.Name,
						Children: []StructureNode{},
					})
				}
				msNode.Children = append(msNode.Children, kpiNode)
			}
			node.Children = append(node.Children, msNode)
		}
		out = append(out, node)
	}
	return out, nil
}
