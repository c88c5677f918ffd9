package pipeline

import (
	"fmt"
	"strings"

	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/pkg/models"
)

// Tree is the renderable form of a flat cluster list: nodes indexed by id
// plus the root ids in input order.
type Tree struct {
	Nodes map[string]*models.ClusterTreeNode
	Roots []string
}

// BuildTree inverts parent pointers into child lists and validates the
// structure: every parent id must resolve, ids must be unique, and the
// parent relation must be acyclic. Validation walks a dense-index adjacency
// list with a visited set, so malformed data fails here rather than
// overflowing the renderer's stack.
func BuildTree(clusters []models.Cluster) (*Tree, error) {
	index := make(map[string]int, len(clusters))
	for i, c := range clusters {
		if _, ok := index[c.ID]; ok {
			return nil, fmt.Errorf("duplicate cluster id %s: %w", c.ID, errdefs.ErrValidation)
		}
		index[c.ID] = i
	}

	children := make([][]int, len(clusters))
	var rootIdx []int
	for i, c := range clusters {
		if c.ParentID == "" {
			rootIdx = append(rootIdx, i)
			continue
		}
		parent, ok := index[c.ParentID]
		if !ok {
			return nil, fmt.Errorf("cluster %s references missing parent %s: %w", c.ID, c.ParentID, errdefs.ErrValidation)
		}
		children[parent] = append(children[parent], i)
	}

	// Every node must be reachable from a root exactly once; a node left
	// unvisited sits on a cycle among non-roots.
	visited := make([]bool, len(clusters))
	stack := append([]int(nil), rootIdx...)
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[i] {
			return nil, fmt.Errorf("cluster %s reachable through multiple paths: %w", clusters[i].ID, errdefs.ErrValidation)
		}
		visited[i] = true
		stack = append(stack, children[i]...)
	}
	for i, ok := range visited {
		if !ok {
			return nil, fmt.Errorf("cluster %s unreachable from any root (parent cycle): %w", clusters[i].ID, errdefs.ErrValidation)
		}
	}

	nodes := make(map[string]*models.ClusterTreeNode, len(clusters))
	for _, c := range clusters {
		nodes[c.ID] = &models.ClusterTreeNode{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Count:       c.Count,
		}
	}
	for _, c := range clusters {
		if c.ParentID != "" {
			parent := nodes[c.ParentID]
			parent.Children = append(parent.Children, c.ID)
		}
	}

	roots := make([]string, len(rootIdx))
	for i, idx := range rootIdx {
		roots[i] = clusters[idx].ID
	}
	return &Tree{Nodes: nodes, Roots: roots}, nil
}

// RenderTree formats the hierarchy with box-drawing prefixes under a
// synthetic display-only root that aggregates all top-level roots.
func RenderTree(clusters []models.Cluster) (string, error) {
	tree, err := BuildTree(clusters)
	if err != nil {
		return "", err
	}

	total := 0
	for _, id := range tree.Roots {
		total += tree.Nodes[id].Count
	}
	root := &models.ClusterTreeNode{
		ID:       "root",
		Name:     "Clusters",
		Count:    total,
		Children: tree.Roots,
	}

	var sb strings.Builder
	renderNode(&sb, root, tree.Nodes, 0, false, "")
	return sb.String(), nil
}

// renderNode walks depth-first, drawing ╠══/╚══ connectors and carrying the
// ║ continuation line for non-last children.
func renderNode(sb *strings.Builder, node *models.ClusterTreeNode, nodes map[string]*models.ClusterTreeNode, level int, isLast bool, prefix string) {
	current := prefix
	if level > 0 {
		if isLast {
			current += "╚══ "
		} else {
			current += "╠══ "
		}
	}
	fmt.Fprintf(sb, "%s%s (%d conversations)\n", current, node.Name, node.Count)

	childPrefix := prefix
	if level > 0 {
		if isLast {
			childPrefix += "    "
		} else {
			childPrefix += "║   "
		}
	}
	for i, childID := range node.Children {
		renderNode(sb, nodes[childID], nodes, level+1, i == len(node.Children)-1, childPrefix)
	}
}
