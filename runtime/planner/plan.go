// Package planner orders converted script units into migration phases along
// their dependency graph: simplest-first within a phase, cycles broken by
// demoting the costliest member to bridge-only execution.
package planner

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/scriptshift/scriptshift/core/invariant"
	"github.com/scriptshift/scriptshift/core/script"
	"github.com/scriptshift/scriptshift/runtime/transpile"
)

// PlannedUnit is one script unit's slot in a phase.
type PlannedUnit struct {
	Name       string `yaml:"name"`
	Hash       string `yaml:"hash,omitempty"`
	Complexity int    `yaml:"complexity"`
	// BridgeOnly marks a unit whose conversion was discarded: it keeps
	// running in the interpreter behind a bridge wrapper, either because it
	// sat on a dependency cycle or because it never parsed.
	BridgeOnly bool `yaml:"bridgeOnly,omitempty"`
}

// Phase is one migration wave. Units inside a phase are mutually
// independent, ordered by ascending complexity.
type Phase struct {
	Units []PlannedUnit `yaml:"units"`
}

// Complete reports whether the phase is done: every member unit's
// compatibility cases pass, as judged by the supplied predicate.
func (p Phase) Complete(passed func(unit string) bool) bool {
	for _, u := range p.Units {
		if !passed(u.Name) {
			return false
		}
	}
	return true
}

// Plan is the ordered phase list, serializable for external dashboards.
type Plan struct {
	Phases []Phase `yaml:"phases"`
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Unmarshal parses a YAML plan.
func Unmarshal(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse migration plan: %w", err)
	}
	return &p, nil
}

// Build produces a migration plan from parsed units and their conversion
// results, matched by unit name. Units whose conversion failed to parse are
// planned bridge-only from the start.
func Build(units []*script.Unit, results []transpile.Result) (*Plan, error) {
	byName := make(map[string]transpile.Result, len(results))
	for _, r := range results {
		if _, dup := byName[r.Unit]; dup {
			return nil, fmt.Errorf("duplicate conversion result for unit %q", r.Unit)
		}
		byName[r.Unit] = r
	}

	bridgeOnly := make(map[string]bool)
	parsed := make(map[string]bool, len(units))
	for _, u := range units {
		parsed[u.Name] = true
		r, ok := byName[u.Name]
		if !ok {
			return nil, fmt.Errorf("unit %q has no conversion result", u.Name)
		}
		if r.Failure != nil {
			bridgeOnly[u.Name] = true
		}
	}

	// A result without a parsed unit can only be a parse failure: the unit
	// never produced a construct tree, so it cannot join the graph. It is
	// planned bridge-only in the leading phase.
	var orphans []PlannedUnit
	for _, r := range results {
		if parsed[r.Unit] {
			continue
		}
		if r.Failure == nil {
			return nil, fmt.Errorf("conversion result for unknown unit %q", r.Unit)
		}
		orphans = append(orphans, PlannedUnit{Name: r.Unit, BridgeOnly: true})
	}
	sort.Slice(orphans, func(a, b int) bool { return orphans[a].Name < orphans[b].Name })

	g := buildGraph(units)

	for {
		batches, leftover := g.toposort(bridgeOnly)
		if len(leftover) == 0 {
			plan := assemble(g, byName, bridgeOnly, batches)
			if len(orphans) > 0 {
				plan.Phases = append([]Phase{{Units: orphans}}, plan.Phases...)
			}
			return plan, nil
		}

		members := g.cycleMembers(leftover)
		invariant.Invariant(len(members) > 0, "unscheduled units imply a cycle")

		// Demote the costliest cycle member: its conversion is discarded and
		// its legacy form stays reachable through the bridge, so it stops
		// blocking the rest of the cycle.
		demoted := members[0]
		for _, i := range members[1:] {
			if unitComplexity(byName, g.names[i]) > unitComplexity(byName, g.names[demoted]) {
				demoted = i
			}
		}
		bridgeOnly[g.names[demoted]] = true
	}
}

func unitComplexity(results map[string]transpile.Result, name string) int {
	return results[name].Complexity
}

func assemble(g *graph, results map[string]transpile.Result, bridgeOnly map[string]bool, batches [][]int) *Plan {
	plan := &Plan{Phases: make([]Phase, 0, len(batches))}
	planned := 0
	for _, batch := range batches {
		phase := Phase{Units: make([]PlannedUnit, 0, len(batch))}
		for _, i := range batch {
			name := g.names[i]
			r := results[name]
			phase.Units = append(phase.Units, PlannedUnit{
				Name:       name,
				Hash:       r.UnitHash,
				Complexity: r.Complexity,
				BridgeOnly: bridgeOnly[name],
			})
		}
		sort.Slice(phase.Units, func(a, b int) bool {
			ua, ub := phase.Units[a], phase.Units[b]
			if ua.Complexity != ub.Complexity {
				return ua.Complexity < ub.Complexity
			}
			return ua.Name < ub.Name
		})
		planned += len(phase.Units)
		plan.Phases = append(plan.Phases, phase)
	}
	invariant.Postcondition(planned == len(g.names), "every unit lands in exactly one phase")
	return plan
}
