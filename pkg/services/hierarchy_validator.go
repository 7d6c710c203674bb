package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// HierarchyValidator checks the group parentage graph and orders it.
type HierarchyValidator interface {
	// Validate returns the topologically ordered hierarchy. Parents that are
	// not declared groups are reported as warnings and ignored for ordering.
	// A cycle fails with *apperrors.CyclicHierarchyError; the returned
	// hierarchy then carries only diagnostics.
	Validate(model *models.SchemaModel) (*models.GroupHierarchy, error)
}

type hierarchyValidator struct {
	logger *zap.Logger
}

// NewHierarchyValidator creates a new HierarchyValidator.
func NewHierarchyValidator(logger *zap.Logger) HierarchyValidator {
	return &hierarchyValidator{
		logger: logger.Named("hierarchy-validator"),
	}
}

// groupGraph is the child -> parent adjacency restricted to declared groups.
type groupGraph struct {
	names    []string            // sorted
	parents  map[string][]string // declared parents, sorted
	children map[string][]string // sorted
	orphans  map[string][]string // undeclared parents, sorted
}

func newGroupGraph(groups map[string]*models.Group) *groupGraph {
	g := &groupGraph{
		parents:  make(map[string][]string, len(groups)),
		children: make(map[string][]string, len(groups)),
		orphans:  make(map[string][]string),
	}
	for name := range groups {
		g.names = append(g.names, name)
	}
	sort.Strings(g.names)

	for _, name := range g.names {
		for _, parent := range groups[name].Parents {
			if _, ok := groups[parent]; !ok {
				g.orphans[name] = append(g.orphans[name], parent)
				continue
			}
			g.parents[name] = append(g.parents[name], parent)
			g.children[parent] = append(g.children[parent], name)
		}
	}
	for _, kids := range g.children {
		sort.Strings(kids)
	}
	return g
}

func (v *hierarchyValidator) Validate(model *models.SchemaModel) (*models.GroupHierarchy, error) {
	graph := newGroupGraph(model.Groups)

	var diags []models.Diagnostic
	for _, name := range graph.names {
		for _, orphan := range graph.orphans[name] {
			diags = append(diags, models.Diagnostic{
				Kind:     models.DiagnosticOrphanParentReference,
				Severity: models.SeverityWarning,
				Subject:  orphan,
				Message:  fmt.Sprintf("group %s declares parent %s, which is not a declared group", name, orphan),
				Related:  []string{name},
			})
		}
	}

	if cycle := graph.findCycle(); cycle != nil {
		v.logger.Warn("Group hierarchy contains a cycle", zap.Strings("cycle", cycle))
		return &models.GroupHierarchy{Diagnostics: diags}, &apperrors.CyclicHierarchyError{Cycle: cycle}
	}

	order := graph.topologicalOrder()

	levels := make(map[string]int, len(order))
	ancestors := make(map[string]map[string]bool, len(order))
	for _, name := range order {
		level := 0
		set := make(map[string]bool)
		for _, parent := range graph.parents[name] {
			if levels[parent]+1 > level {
				level = levels[parent] + 1
			}
			set[parent] = true
			for a := range ancestors[parent] {
				set[a] = true
			}
		}
		levels[name] = level
		ancestors[name] = set
	}

	descendants := make(map[string]map[string]bool, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		set := make(map[string]bool)
		for _, child := range graph.children[name] {
			set[child] = true
			for d := range descendants[child] {
				set[d] = true
			}
		}
		descendants[name] = set
	}

	nodes := make([]models.GroupNode, 0, len(order))
	for _, name := range order {
		group := model.Groups[name]
		nodes = append(nodes, models.GroupNode{
			Name:          name,
			Description:   group.Description,
			Level:         levels[name],
			IsRoot:        len(graph.parents[name]) == 0,
			Parents:       graph.parents[name],
			OrphanParents: graph.orphans[name],
			Children:      graph.children[name],
			Ancestors:     sortedSet(ancestors[name]),
			Descendants:   sortedSet(descendants[name]),
			Tables:        group.Tables,
		})
	}

	hierarchy := models.NewGroupHierarchy(nodes)
	hierarchy.Diagnostics = diags

	v.logger.Debug("Validated group hierarchy",
		zap.Int("groups", len(order)),
		zap.Int("roots", len(hierarchy.Roots)),
		zap.Int("orphan_references", len(diags)))

	return hierarchy, nil
}

// findCycle runs an iterative three-color DFS along parent edges and returns
// the first cycle found as [A, B, ..., A], or nil.
func (g *groupGraph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.names))

	type frame struct {
		name string
		next int
	}

	for _, start := range g.names {
		if color[start] != white {
			continue
		}
		stack := []frame{{name: start}}
		color[start] = gray

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			parents := g.parents[top.name]
			if top.next >= len(parents) {
				color[top.name] = black
				stack = stack[:len(stack)-1]
				continue
			}
			parent := parents[top.next]
			top.next++

			switch color[parent] {
			case white:
				color[parent] = gray
				stack = append(stack, frame{name: parent})
			case gray:
				// parent is on the stack: the cycle runs from it to the top.
				var cycle []string
				for i := range stack {
					if stack[i].name == parent {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.name)
						}
						break
					}
				}
				return append(cycle, parent)
			}
		}
	}
	return nil
}

// topologicalOrder returns groups with every parent before its children.
// Ties are broken lexicographically. Assumes the graph is acyclic.
func (g *groupGraph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.names))
	var ready []string
	for _, name := range g.names {
		indegree[name] = len(g.parents[name])
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(g.names))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, child := range g.children[next] {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
				sort.Strings(ready)
			}
		}
	}
	return order
}

func sortedSet(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	return sortedKeys(set)
}
