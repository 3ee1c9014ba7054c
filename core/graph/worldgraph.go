package graph

import (
	"strings"

	"github.com/nvollmer/fabula/model"
)

// NodeType classifies a world graph node
type NodeType string

const (
	NodeCharacter NodeType = "character"
	NodeItem      NodeType = "item"
	NodeLocation  NodeType = "location"
)

const (
	// EdgeConnected links bidirectionally adjacent locations
	EdgeConnected = "connected"
	// EdgeBelongsTo links a location to its enclosing parent
	EdgeBelongsTo = "belongs-to"
	// EdgeHolds links a character to an item it owns
	EdgeHolds = "holds"
)

// Node is one entity in the world graph
type Node struct {
	Name string
	Type NodeType
	Desc string
}

// Edge is a directed, labeled connection between two nodes
type Edge struct {
	From   string
	To     string
	Label  string
	Weight float64
}

// WorldGraph is a stateless directed graph derived from the entity
// collections. It is rebuilt before each use and holds no state across calls;
// the entity store stays the single source of truth.
type WorldGraph struct {
	nodes map[string]*Node
	edges []Edge
	out   map[string][]int
	in    map[string][]int
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// Build derives a fresh world graph from the three entity collections.
// Descriptions are truncated to descLimit runes. Entities with missing
// optional fields are defaulted, never skipped; only a missing name drops an
// entity, since a nameless node cannot be addressed.
func Build(characters []*model.Character, items []*model.Item, locations []*model.Location, descLimit int) *WorldGraph {
	g := &WorldGraph{
		nodes: map[string]*Node{},
		out:   map[string][]int{},
		in:    map[string][]int{},
	}

	for _, character := range characters {
		if character == nil || character.Name == "" {
			continue
		}
		g.addNode(character.Name, NodeCharacter, truncate(character.Bio, descLimit))
	}
	for _, item := range items {
		if item == nil || item.Name == "" {
			continue
		}
		g.addNode(item.Name, NodeItem, truncate(item.Desc, descLimit))
	}
	for _, location := range locations {
		if location == nil || location.Name == "" {
			continue
		}
		g.addNode(location.Name, NodeLocation, truncate(location.Desc, descLimit))
	}

	for _, character := range characters {
		if character == nil || character.Name == "" {
			continue
		}
		for _, relation := range character.Relations {
			if relation.Target == "" {
				continue
			}
			label := relation.Type
			if label == "" {
				label = "related-to"
			}
			g.addEdge(character.Name, relation.Target, label, 1)
		}
	}

	for _, location := range locations {
		if location == nil || location.Name == "" {
			continue
		}
		for _, neighbor := range location.Neighbors {
			if neighbor == "" {
				continue
			}
			g.addEdge(location.Name, neighbor, EdgeConnected, 1)
		}
		if location.Parent != "" {
			g.addEdge(location.Name, location.Parent, EdgeBelongsTo, 0.5)
		}
	}

	for _, item := range items {
		if item == nil || item.Name == "" {
			continue
		}
		if item.Owner != "" {
			g.addEdge(item.Owner, item.Name, EdgeHolds, 1)
		}
	}

	return g
}

func (g *WorldGraph) addNode(name string, nodeType NodeType, desc string) {
	if existing, ok := g.nodes[name]; ok {
		// A typed node wins over a placeholder created by an earlier edge
		if existing.Type == "" {
			existing.Type = nodeType
			existing.Desc = desc
		}
		return
	}
	g.nodes[name] = &Node{Name: name, Type: nodeType, Desc: desc}
}

// addEdge inserts a directed edge, creating placeholder nodes for endpoints
// that are referenced but not defined in any collection
func (g *WorldGraph) addEdge(from string, to string, label string, weight float64) {
	if _, ok := g.nodes[from]; !ok {
		g.nodes[from] = &Node{Name: from}
	}
	if _, ok := g.nodes[to]; !ok {
		g.nodes[to] = &Node{Name: to}
	}

	idx := len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to, Label: label, Weight: weight})
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)
}

// NodeCount returns the number of nodes in the graph
func (g *WorldGraph) NodeCount() int {
	return len(g.nodes)
}

// HasNode reports whether an entity is present in the graph
func (g *WorldGraph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Neighborhood collects every node within hops steps of the given entity,
// traversing both outgoing and incoming edges, and renders the induced
// subgraph as "{source} {label} {target}" lines. An unknown entity yields
// empty text.
func (g *WorldGraph) Neighborhood(entityName string, hops int) string {
	if _, ok := g.nodes[entityName]; !ok {
		return ""
	}
	if hops < 1 {
		hops = 1
	}

	visited := map[string]bool{entityName: true}
	frontier := []string{entityName}

	for depth := 0; depth < hops; depth++ {
		var next []string
		for _, name := range frontier {
			for _, idx := range g.out[name] {
				target := g.edges[idx].To
				if !visited[target] {
					visited[target] = true
					next = append(next, target)
				}
			}
			for _, idx := range g.in[name] {
				source := g.edges[idx].From
				if !visited[source] {
					visited[source] = true
					next = append(next, source)
				}
			}
		}
		frontier = next
	}

	var lines []string
	for _, edge := range g.edges {
		if visited[edge.From] && visited[edge.To] {
			lines = append(lines, edge.From+" "+edge.Label+" "+edge.To)
		}
	}

	return strings.Join(lines, "\n")
}

// ShortestPath finds a shortest directed path from a to b by edge count.
// It returns the node sequence and true, or nil and false when either
// endpoint is absent or no path exists.
func (g *WorldGraph) ShortestPath(a string, b string) ([]string, bool) {
	if _, ok := g.nodes[a]; !ok {
		return nil, false
	}
	if _, ok := g.nodes[b]; !ok {
		return nil, false
	}
	if a == b {
		return []string{a}, true
	}

	previous := map[string]string{a: ""}
	queue := []string{a}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, idx := range g.out[current] {
			target := g.edges[idx].To
			if _, seen := previous[target]; seen {
				continue
			}
			previous[target] = current

			if target == b {
				var path []string
				for node := b; node != ""; node = previous[node] {
					path = append([]string{node}, path...)
				}
				return path, true
			}

			queue = append(queue, target)
		}
	}

	return nil, false
}

// ShortestPathString renders the shortest path as an arrow-joined line, or an
// explicit no-path result
func (g *WorldGraph) ShortestPathString(a string, b string) string {
	path, ok := g.ShortestPath(a, b)
	if !ok {
		return "no path found"
	}
	return strings.Join(path, " -> ")
}
