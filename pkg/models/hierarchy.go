package models

// GroupHierarchy is the validated group DAG.
type GroupHierarchy struct {
	// Order lists every declared group, roots first, each group strictly
	// after all of its declared parents.
	Order       []string     `json:"order" yaml:"order"`
	Roots       []string     `json:"roots" yaml:"roots"`
	Nodes       []GroupNode  `json:"groups" yaml:"groups"` // same order as Order
	Diagnostics []Diagnostic `json:"-" yaml:"-"`

	index map[string]int
}

// GroupNode describes one group inside the validated hierarchy.
type GroupNode struct {
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Level         int      `json:"level" yaml:"level"`
	IsRoot        bool     `json:"is_root" yaml:"is_root"`
	Parents       []string `json:"parents,omitempty" yaml:"parents,omitempty"`
	OrphanParents []string `json:"orphan_parents,omitempty" yaml:"orphan_parents,omitempty"`
	Children      []string `json:"children,omitempty" yaml:"children,omitempty"`
	Ancestors     []string `json:"ancestors,omitempty" yaml:"ancestors,omitempty"`
	Descendants   []string `json:"descendants,omitempty" yaml:"descendants,omitempty"`
	Tables        []string `json:"tables,omitempty" yaml:"tables,omitempty"`
}

// NewGroupHierarchy creates a hierarchy from nodes already in topological order.
func NewGroupHierarchy(nodes []GroupNode) *GroupHierarchy {
	h := &GroupHierarchy{
		Nodes: nodes,
		index: make(map[string]int, len(nodes)),
	}
	for i, n := range nodes {
		h.Order = append(h.Order, n.Name)
		if n.IsRoot {
			h.Roots = append(h.Roots, n.Name)
		}
		h.index[n.Name] = i
	}
	return h
}

// Node returns the named node and whether it exists.
func (h *GroupHierarchy) Node(name string) (GroupNode, bool) {
	if h == nil {
		return GroupNode{}, false
	}
	i, ok := h.index[name]
	if !ok {
		return GroupNode{}, false
	}
	return h.Nodes[i], true
}

// Position returns the index of a group in the topological order, or -1.
func (h *GroupHierarchy) Position(name string) int {
	if h == nil {
		return -1
	}
	if i, ok := h.index[name]; ok {
		return i
	}
	return -1
}
