package control

import "fmt"

// AgentKind distinguishes the kinds of agents that move through intersections.
type AgentKind int

const (
	AgentCar AgentKind = iota
	AgentPedestrian
	AgentBike
	AgentBus
)

func (k AgentKind) String() string {
	switch k {
	case AgentCar:
		return "car"
	case AgentPedestrian:
		return "ped"
	case AgentBike:
		return "bike"
	case AgentBus:
		return "bus"
	default:
		return fmt.Sprintf("AgentKind(%d)", int(k))
	}
}

// AgentID identifies one agent. Comparable, so it can key maps and appear in
// scheduler commands.
type AgentID struct {
	Kind AgentKind
	Num  int
}

func (a AgentID) String() string {
	return fmt.Sprintf("%s%d", a.Kind, a.Num)
}
