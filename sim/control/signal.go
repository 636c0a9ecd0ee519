package control

import (
	"fmt"
	"sort"

	"github.com/traffic-sim/traffic-sim/sim/network"
)

// DefaultPhaseTicks is the fixed duration of one signal phase. At 100ms per
// tick this is the 30s cycle common for urban signals.
const DefaultPhaseTicks int64 = 300

// Phase is one conflict-free set of turns simultaneously permitted by a
// signal plan.
type Phase struct {
	Turns   []network.TurnID // sorted
	members map[network.TurnID]bool
}

// Contains reports whether the phase permits the given turn.
func (p *Phase) Contains(t network.TurnID) bool {
	return p.members[t]
}

func (p *Phase) add(t network.TurnID) {
	if p.members[t] {
		return
	}
	p.members[t] = true
	p.Turns = append(p.Turns, t)
	sort.Slice(p.Turns, func(i, j int) bool { return p.Turns[i] < p.Turns[j] })
}

// SignalPlan is the precomputed phase schedule for one signalized
// intersection: an ordered list of conflict-free phases, each active for
// PhaseTicks, cycling forever. Immutable once built.
type SignalPlan struct {
	Intersection network.IntersectionID
	Phases       []*Phase
	PhaseTicks   int64
}

// BuildSignalPlan partitions an intersection's turns into conflict-free
// phases. Greedy first pass: seed a phase with the lowest unassigned turn,
// then sweep the remaining unassigned turns in order, adding any that
// conflict with nothing already in the phase; close the phase when nothing
// more fits. Second pass: re-add every compatible turn, assigned elsewhere or
// not, to every phase it fits in, so a turn is green in as many phases as the
// conflict relation allows.
func BuildSignalPlan(inter *network.Intersection, conflicts *network.ConflictGraph, phaseTicks int64) (*SignalPlan, error) {
	if len(inter.Turns) == 0 {
		return nil, fmt.Errorf("intersection %d has no turns to signalize", inter.ID)
	}
	if phaseTicks <= 0 {
		return nil, fmt.Errorf("intersection %d: phase duration must be positive, got %d", inter.ID, phaseTicks)
	}
	for _, t := range inter.Turns {
		if conflicts.Conflicts(t, t) {
			return nil, fmt.Errorf("intersection %d: turn %d conflicts with itself, no phase can contain it", inter.ID, t)
		}
	}

	plan := &SignalPlan{Intersection: inter.ID, PhaseTicks: phaseTicks}

	remaining := make([]network.TurnID, len(inter.Turns))
	copy(remaining, inter.Turns)
	current := newPhase()
	for len(remaining) > 0 {
		idx := -1
		for i, t := range remaining {
			if phaseCompatible(current, t, conflicts) {
				idx = i
				break
			}
		}
		if idx < 0 {
			plan.Phases = append(plan.Phases, current)
			current = newPhase()
			continue
		}
		current.add(remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	if len(current.Turns) > 0 {
		plan.Phases = append(plan.Phases, current)
	}

	// Expansion pass over the full turn set.
	for _, ph := range plan.Phases {
		for _, t := range inter.Turns {
			if !ph.Contains(t) && phaseCompatible(ph, t, conflicts) {
				ph.add(t)
			}
		}
	}

	if err := plan.validate(inter, conflicts); err != nil {
		return nil, err
	}
	return plan, nil
}

func newPhase() *Phase {
	return &Phase{members: make(map[network.TurnID]bool)}
}

func phaseCompatible(p *Phase, t network.TurnID, conflicts *network.ConflictGraph) bool {
	for _, other := range p.Turns {
		if conflicts.Conflicts(t, other) {
			return false
		}
	}
	return true
}

// validate checks the plan covers every legal turn and that no phase holds a
// conflicting pair. A failure here is a bug in plan construction or a
// malformed conflict graph, surfaced at build time rather than as a livelock
// mid-simulation.
func (p *SignalPlan) validate(inter *network.Intersection, conflicts *network.ConflictGraph) error {
	covered := make(map[network.TurnID]bool)
	for _, ph := range p.Phases {
		if len(ph.Turns) == 0 {
			return fmt.Errorf("intersection %d: signal plan contains an empty phase", p.Intersection)
		}
		for i, a := range ph.Turns {
			covered[a] = true
			for _, b := range ph.Turns[i+1:] {
				if conflicts.Conflicts(a, b) {
					return fmt.Errorf("intersection %d: phase permits conflicting turns %d and %d", p.Intersection, a, b)
				}
			}
		}
	}
	for _, t := range inter.Turns {
		if !covered[t] {
			return fmt.Errorf("intersection %d: turn %d appears in no phase", p.Intersection, t)
		}
	}
	return nil
}

// PhaseAt returns the phase active at the given time and how many ticks of it
// remain. A pure function of time, so any call site may consult it without
// touching mutable state.
func (p *SignalPlan) PhaseAt(now int64) (*Phase, int64) {
	cycleIdx := now / p.PhaseTicks
	phase := p.Phases[int(cycleIdx)%len(p.Phases)]
	remaining := (cycleIdx+1)*p.PhaseTicks - now
	return phase, remaining
}
