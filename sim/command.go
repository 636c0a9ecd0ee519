package sim

import (
	"fmt"

	"github.com/traffic-sim/traffic-sim/sim/control"
	"github.com/traffic-sim/traffic-sim/sim/network"
)

// AgentID identifies one agent across the simulation.
type AgentID = control.AgentID

// TripID identifies one trip.
type TripID int

// CommandKind enumerates the closed set of deferred-work kinds the scheduler
// dispatches. Kept as a tagged enum rather than an interface so the dispatch
// switch in Simulator.Run is exhaustive and commands stay comparable.
type CommandKind int

const (
	// CommandStartTrip spawns a trip's agent onto the network.
	CommandStartTrip CommandKind = iota
	// CommandUpdateAgent re-evaluates one agent: it finished its current
	// activity, or was woken while waiting at an intersection.
	CommandUpdateAgent
	// CommandUpdateIntersection wakes the waiters of one intersection after
	// a turn was released there.
	CommandUpdateIntersection
)

// Command is one identified unit of deferred work. Equality is by value
// (kind plus payload), never by scheduled time: rescheduling the same
// Command replaces its pending occurrence instead of duplicating it.
type Command struct {
	Kind         CommandKind
	Trip         TripID
	Agent        AgentID
	Intersection network.IntersectionID
}

// StartTrip builds the command that spawns trip id.
func StartTrip(id TripID) Command {
	return Command{Kind: CommandStartTrip, Trip: id}
}

// UpdateAgent builds the command that re-evaluates agent a.
func UpdateAgent(a AgentID) Command {
	return Command{Kind: CommandUpdateAgent, Agent: a}
}

// UpdateIntersection builds the command that wakes intersection i's waiters.
func UpdateIntersection(i network.IntersectionID) Command {
	return Command{Kind: CommandUpdateIntersection, Intersection: i}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandStartTrip:
		return fmt.Sprintf("StartTrip(%d)", c.Trip)
	case CommandUpdateAgent:
		return fmt.Sprintf("UpdateAgent(%s)", c.Agent)
	case CommandUpdateIntersection:
		return fmt.Sprintf("UpdateIntersection(%d)", c.Intersection)
	default:
		return fmt.Sprintf("Command(kind=%d)", int(c.Kind))
	}
}
