package sim

import (
	"github.com/traffic-sim/traffic-sim/sim/control"
	"github.com/traffic-sim/traffic-sim/sim/network"
)

// Step is one leg of a trip: traverse a segment, then (unless it is the final
// leg) execute a turn at the segment's downstream intersection.
type Step struct {
	Segment network.SegmentID
	// Turn is the movement taken after the segment. Valid only when HasTurn.
	Turn    network.TurnID
	HasTurn bool
}

// Trip is one agent's precomputed route: an ordered step sequence supplied by
// pathfinding, plus a departure time. The kernel only consumes "what turn is
// next"; how routes are computed is the supplier's business.
type Trip struct {
	ID     TripID
	Kind   control.AgentKind
	Depart int64
	Steps  []Step
}

// Agent returns the identity the trip's agent moves under.
func (t *Trip) Agent() AgentID {
	return AgentID{Kind: t.Kind, Num: int(t.ID)}
}

// agentPhase tracks where in its current step an agent is.
type agentPhase int

const (
	// phaseTraverse: the agent is moving along its current step's segment.
	phaseTraverse agentPhase = iota
	// phaseWait: the agent is at an intersection, denied so far.
	phaseWait
	// phaseCross: the agent is executing its granted turn.
	phaseCross
)

// agentState is the mutable position of one in-flight agent.
type agentState struct {
	trip  *Trip
	step  int
	phase agentPhase
}

func (a *agentState) currentStep() Step {
	return a.trip.Steps[a.step]
}
