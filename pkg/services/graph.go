package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// TableGraph represents a graph of tables connected by relationship candidates.
type TableGraph struct {
	// Adjacency list: table -> list of tables it's connected to
	edges map[string][]string
	// All unique tables in the graph
	tables map[string]bool
}

// NewTableGraph creates a new empty table graph.
func NewTableGraph() *TableGraph {
	return &TableGraph{
		edges:  make(map[string][]string),
		tables: make(map[string]bool),
	}
}

// AddRelationship adds a candidate to the graph as an undirected edge.
// Self-references only register the table.
func (g *TableGraph) AddRelationship(c *models.RelationshipCandidate) {
	g.tables[c.SourceTable] = true
	g.tables[c.TargetTable] = true
	if c.SourceTable == c.TargetTable {
		return
	}
	g.edges[c.SourceTable] = append(g.edges[c.SourceTable], c.TargetTable)
	g.edges[c.TargetTable] = append(g.edges[c.TargetTable], c.SourceTable)
}

// AddTable adds a table to the graph without any edges.
// Used to track tables that have no relationships.
func (g *TableGraph) AddTable(table string) {
	g.tables[table] = true
}

// FindConnectedComponents identifies all connected components in the graph using DFS.
// Returns components sorted by size (largest first, then first table name)
// and the sorted list of island tables.
func (g *TableGraph) FindConnectedComponents() ([]models.ConnectedComponent, []string) {
	visited := make(map[string]bool)
	var nonIslands []models.ConnectedComponent
	var islands []string

	names := make([]string, 0, len(g.tables))
	for table := range g.tables {
		names = append(names, table)
	}
	sort.Strings(names)

	for _, table := range names {
		if visited[table] {
			continue
		}
		component := g.dfs(table, visited)
		sort.Strings(component)
		if len(component) == 1 {
			islands = append(islands, component[0])
			continue
		}
		nonIslands = append(nonIslands, models.ConnectedComponent{
			Tables: component,
			Size:   len(component),
		})
	}

	sort.SliceStable(nonIslands, func(i, j int) bool {
		if nonIslands[i].Size != nonIslands[j].Size {
			return nonIslands[i].Size > nonIslands[j].Size
		}
		return nonIslands[i].Tables[0] < nonIslands[j].Tables[0]
	})

	return nonIslands, islands
}

// dfs performs depth-first search starting from a table.
// Returns all tables in the connected component.
func (g *TableGraph) dfs(start string, visited map[string]bool) []string {
	var component []string
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}

		visited[current] = true
		component = append(component, current)

		for _, neighbor := range g.edges[current] {
			if !visited[neighbor] {
				stack = append(stack, neighbor)
			}
		}
	}

	return component
}

// LogConnectivity logs the connectivity analysis results in a human-readable format.
func LogConnectivity(
	relationshipCount int,
	components []models.ConnectedComponent,
	islands []string,
	logger *zap.Logger,
) {
	logger.Debug("Relationship connectivity",
		zap.Int("relationships", relationshipCount),
		zap.Int("components", len(components)),
		zap.Int("islands", len(islands)))

	for i, comp := range components {
		// Show first 5 tables, then "..."
		preview := comp.Tables
		suffix := ""
		if len(preview) > 5 {
			preview = preview[:5]
			suffix = fmt.Sprintf(", ... (%d more)", len(comp.Tables)-5)
		}
		logger.Debug(fmt.Sprintf("Component %d (%d tables): %v%s", i+1, comp.Size, preview, suffix))
	}

	if len(islands) > 0 {
		preview := islands
		suffix := ""
		if len(islands) > 5 {
			preview = islands[:5]
			suffix = fmt.Sprintf(", ... (%d more)", len(islands)-5)
		}
		logger.Debug(fmt.Sprintf("Island tables (%d): %v%s", len(islands), preview, suffix))
	}
}
