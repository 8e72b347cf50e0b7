// Package graph implements the weighted undirected card-correlation graph
// that community detection strategies operate on.
package graph

import "sort"

// Graph is an undirected graph with float64 edge weights. Nodes are card
// blueprint ids.
type Graph struct {
	adj map[string]map[string]float64
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{adj: make(map[string]map[string]float64)}
}

// AddNode ensures a node exists.
func (g *Graph) AddNode(id string) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = make(map[string]float64)
	}
}

// AddEdge adds an undirected weighted edge, creating nodes as needed.
// Re-adding an edge overwrites its weight. Self-loops are ignored.
func (g *Graph) AddEdge(a, b string, weight float64) {
	if a == b {
		return
	}
	g.AddNode(a)
	g.AddNode(b)
	g.adj[a][b] = weight
	g.adj[b][a] = weight
}

// RemoveNode deletes a node and all incident edges.
func (g *Graph) RemoveNode(id string) {
	for neighbor := range g.adj[id] {
		delete(g.adj[neighbor], id)
	}
	delete(g.adj, id)
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.adj[id]
	return ok
}

// Weight returns the edge weight and whether the edge exists.
func (g *Graph) Weight(a, b string) (float64, bool) {
	w, ok := g.adj[a][b]
	return w, ok
}

// Neighbors returns the adjacency map of a node. Callers must not mutate it.
func (g *Graph) Neighbors(id string) map[string]float64 {
	return g.adj[id]
}

// Degree returns the number of edges incident to a node.
func (g *Graph) Degree(id string) int {
	return len(g.adj[id])
}

// WeightedDegree returns the sum of incident edge weights.
func (g *Graph) WeightedDegree(id string) float64 {
	var sum float64
	for _, w := range g.adj[id] {
		sum += w
	}
	return sum
}

// Nodes returns all node ids in sorted order for deterministic iteration.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.adj))
	for id := range g.adj {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// Order returns the node count.
func (g *Graph) Order() int {
	return len(g.adj)
}

// Size returns the edge count.
func (g *Graph) Size() int {
	var n int
	for _, neighbors := range g.adj {
		n += len(neighbors)
	}
	return n / 2
}

// TotalWeight returns the sum of all edge weights.
func (g *Graph) TotalWeight() float64 {
	var sum float64
	for _, neighbors := range g.adj {
		for _, w := range neighbors {
			sum += w
		}
	}
	return sum / 2
}

// Subgraph returns a copy of the graph induced by the given nodes.
func (g *Graph) Subgraph(nodes []string) *Graph {
	keep := make(map[string]struct{}, len(nodes))
	for _, id := range nodes {
		keep[id] = struct{}{}
	}

	sub := New()
	for _, id := range nodes {
		if !g.HasNode(id) {
			continue
		}
		sub.AddNode(id)
		for neighbor, w := range g.adj[id] {
			if _, ok := keep[neighbor]; ok {
				sub.AddEdge(id, neighbor, w)
			}
		}
	}
	return sub
}

// StripHighDegree removes nodes whose degree exceeds the ceiling and returns
// the removed ids. Ubiquitous splash cards distort cluster boundaries, so
// detection optionally drops them before running. A ceiling <= 0 disables
// stripping.
func (g *Graph) StripHighDegree(ceiling int) []string {
	if ceiling <= 0 {
		return nil
	}
	var removed []string
	for _, id := range g.Nodes() {
		if g.Degree(id) > ceiling {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		g.RemoveNode(id)
	}
	return removed
}

// ConnectedComponents returns the node sets of each connected component,
// largest first.
func (g *Graph) ConnectedComponents() [][]string {
	seen := make(map[string]bool, len(g.adj))
	var components [][]string

	for _, start := range g.Nodes() {
		if seen[start] {
			continue
		}
		var component []string
		stack := []string{start}
		seen[start] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, id)
			for neighbor := range g.adj[id] {
				if !seen[neighbor] {
					seen[neighbor] = true
					stack = append(stack, neighbor)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}

	sort.SliceStable(components, func(i, j int) bool {
		return len(components[i]) > len(components[j])
	})
	return components
}

// IsConnected reports whether every node is reachable from every other.
func (g *Graph) IsConnected() bool {
	return len(g.ConnectedComponents()) <= 1
}

// LargestComponent returns the subgraph induced by the largest connected
// component. An empty graph returns an empty graph.
func (g *Graph) LargestComponent() *Graph {
	components := g.ConnectedComponents()
	if len(components) == 0 {
		return New()
	}
	return g.Subgraph(components[0])
}

// KCliques enumerates all cliques of exactly k nodes, each sorted, in
// deterministic order. Cliques are built by extending with strictly greater
// nodes only, so each is produced once.
func (g *Graph) KCliques(k int) [][]string {
	if k < 2 {
		return nil
	}

	nodes := g.Nodes()
	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		index[id] = i
	}

	var cliques [][]string
	var extend func(clique []string)
	extend = func(clique []string) {
		if len(clique) == k {
			out := make([]string, k)
			copy(out, clique)
			cliques = append(cliques, out)
			return
		}

		last := clique[len(clique)-1]
		// Candidates must follow the last node in sort order and connect to
		// every clique member.
		candidates := make([]string, 0, len(g.adj[last]))
		for neighbor := range g.adj[last] {
			if index[neighbor] <= index[last] {
				continue
			}
			ok := true
			for _, member := range clique[:len(clique)-1] {
				if _, connected := g.adj[member][neighbor]; !connected {
					ok = false
					break
				}
			}
			if ok {
				candidates = append(candidates, neighbor)
			}
		}
		sort.Strings(candidates)
		for _, c := range candidates {
			extend(append(clique, c))
		}
	}

	for _, id := range nodes {
		extend([]string{id})
	}
	return cliques
}
