// Package filetree builds the hierarchical destination namespace from flat
// entity rows and serializes it for deterministic prompt construction.
package filetree

import (
	"sort"
	"strings"

	"github.com/starford/raido/internal/store"
)

// Node is one entry in the materialized tree.
type Node struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Kind     string  `json:"kind"`
	Path     string  `json:"path"`
	Children []*Node `json:"children,omitempty"`
}

// Build groups flat entities by parent id and computes each node's
// materialized path. Entities whose parent is missing are treated as roots
// rather than dropped.
func Build(entities []store.Entity) []*Node {
	byID := make(map[string]*Node, len(entities))
	for _, e := range entities {
		byID[e.ID] = &Node{ID: e.ID, Title: e.Title, Kind: e.Kind}
	}

	var roots []*Node
	for _, e := range entities {
		n := byID[e.ID]
		if e.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[e.ParentID]
		if !ok {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sortLevel(roots)
	var walk func(nodes []*Node, prefix string)
	walk = func(nodes []*Node, prefix string) {
		for _, n := range nodes {
			n.Path = prefix + "/" + n.Title
			sortLevel(n.Children)
			walk(n.Children, n.Path)
		}
	}
	walk(roots, "")
	return roots
}

// sortLevel orders siblings folders-first, then alphabetically.
func sortLevel(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == store.KindFolder
		}
		return strings.ToLower(nodes[i].Title) < strings.ToLower(nodes[j].Title)
	})
}

// Serialize renders the tree as an indented [DIR]/[FILE] listing.
func Serialize(roots []*Node) string {
	var sb strings.Builder
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			sb.WriteString(strings.Repeat("  ", depth))
			if n.Kind == store.KindFolder {
				sb.WriteString("[DIR] ")
			} else {
				sb.WriteString("[FILE] ")
			}
			sb.WriteString(n.Title)
			sb.WriteString("\n")
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
	return sb.String()
}
