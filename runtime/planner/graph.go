package planner

import (
	"sort"

	"github.com/scriptshift/scriptshift/core/script"
)

// graph is the unit dependency graph: i depends on j when unit i references
// a symbol unit j defines. Node order is the sorted unit-name order, so every
// derived ordering is deterministic.
type graph struct {
	names     []string
	index     map[string]int
	dependsOn [][]int
}

func buildGraph(units []*script.Unit) *graph {
	names := make([]string, 0, len(units))
	byName := make(map[string]*script.Unit, len(units))
	for _, u := range units {
		names = append(names, u.Name)
		byName[u.Name] = u
	}
	sort.Strings(names)

	g := &graph{
		names:     names,
		index:     make(map[string]int, len(names)),
		dependsOn: make([][]int, len(names)),
	}
	for i, name := range names {
		g.index[name] = i
	}

	// definers[symbol] = units that define it. A symbol defined by several
	// units makes the referencing unit depend on all of them.
	definers := make(map[string][]int)
	for i, name := range names {
		for _, sym := range byName[name].Defines {
			definers[sym] = append(definers[sym], i)
		}
	}

	for i, name := range names {
		seen := make(map[int]struct{})
		for _, sym := range byName[name].References {
			for _, j := range definers[sym] {
				if j == i {
					continue
				}
				if _, dup := seen[j]; dup {
					continue
				}
				seen[j] = struct{}{}
				g.dependsOn[i] = append(g.dependsOn[i], j)
			}
		}
		sort.Ints(g.dependsOn[i])
	}
	return g
}

// toposort runs Kahn's algorithm, emitting waves of units whose dependencies
// are all scheduled. Dependencies on bridge-only units do not block: their
// legacy behavior stays reachable through the bridge from the first phase.
// Returns the waves and the nodes left unscheduled by a cycle.
func (g *graph) toposort(bridgeOnly map[string]bool) (batches [][]int, leftover []int) {
	n := len(g.names)
	indeg := make([]int, n)
	dependents := make([][]int, n)
	for i, deps := range g.dependsOn {
		for _, j := range deps {
			if bridgeOnly[g.names[j]] {
				continue
			}
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	current := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			current = append(current, i)
		}
	}
	sort.Ints(current)

	visited := 0
	for len(current) > 0 {
		batch := make([]int, len(current))
		copy(batch, current)
		batches = append(batches, batch)

		next := make([]int, 0)
		for _, i := range batch {
			visited++
			for _, dep := range dependents[i] {
				indeg[dep]--
				if indeg[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Ints(next)
		current = next
	}

	if visited == n {
		return batches, nil
	}
	for i := 0; i < n; i++ {
		if indeg[i] > 0 {
			leftover = append(leftover, i)
		}
	}
	return batches, leftover
}

// cycleMembers reduces the unscheduled set to the nodes actually on a cycle.
// Nodes that merely sit downstream of a cycle are trimmed away by repeatedly
// removing anything with no in-set predecessor or no in-set successor.
func (g *graph) cycleMembers(leftover []int) []int {
	inSet := make(map[int]bool, len(leftover))
	for _, i := range leftover {
		inSet[i] = true
	}

	for changed := true; changed; {
		changed = false
		for _, i := range leftover {
			if !inSet[i] {
				continue
			}
			hasPred := false
			for _, j := range g.dependsOn[i] {
				if inSet[j] {
					hasPred = true
					break
				}
			}
			hasSucc := false
			for _, k := range leftover {
				if !inSet[k] || k == i {
					continue
				}
				for _, j := range g.dependsOn[k] {
					if j == i {
						hasSucc = true
						break
					}
				}
				if hasSucc {
					break
				}
			}
			if !hasPred || !hasSucc {
				inSet[i] = false
				changed = true
			}
		}
	}

	members := make([]int, 0, len(leftover))
	for _, i := range leftover {
		if inSet[i] {
			members = append(members, i)
		}
	}
	return members
}
