// Package control implements per-intersection admission control: each
// Controller owns the set of in-flight turns at one intersection and decides,
// under the intersection's policy, whether an agent may start a turn without
// conflicting with agents already committed.
package control

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/traffic-sim/traffic-sim/sim/network"
)

// DefaultMinStopWait is how long an agent on a stop approach must wait at the
// sign before it may be granted a turn. 1.5s at 100ms per tick.
const DefaultMinStopWait int64 = 15

// Config carries the tunables shared by all controllers of a simulation.
type Config struct {
	// MinStopWait is the stop-sign dwell requirement in ticks. Zero means
	// DefaultMinStopWait; negative disables the dwell entirely.
	MinStopWait int64
	// PhaseTicks is the signal phase duration in ticks. Zero means
	// DefaultPhaseTicks.
	PhaseTicks int64
}

func (c Config) minStopWait() int64 {
	if c.MinStopWait == 0 {
		return DefaultMinStopWait
	}
	if c.MinStopWait < 0 {
		return 0
	}
	return c.MinStopWait
}

func (c Config) phaseTicks() int64 {
	if c.PhaseTicks == 0 {
		return DefaultPhaseTicks
	}
	return c.PhaseTicks
}

type waiter struct {
	turn  network.TurnID
	since int64 // when the agent first asked for this turn
}

// Controller arbitrates one intersection. It exclusively owns the accepted
// set; nothing else mutates it. The invariant held at all times: no two
// accepted turns conflict.
type Controller struct {
	id          network.IntersectionID
	kind        network.ControlKind
	net         *network.Network
	conflicts   *network.ConflictGraph
	plan        *SignalPlan // nil unless kind == ControlSignal
	minStopWait int64

	accepted map[AgentID]network.TurnID
	waiting  map[AgentID]waiter
}

// NewController builds the controller for one intersection, constructing a
// signal plan when the intersection is signalized.
func NewController(net *network.Network, id network.IntersectionID, cfg Config) (*Controller, error) {
	inter := net.Intersection(id)
	c := &Controller{
		id:          id,
		kind:        inter.Control,
		net:         net,
		conflicts:   net.ConflictsAt(id),
		minStopWait: cfg.minStopWait(),
		accepted:    make(map[AgentID]network.TurnID),
		waiting:     make(map[AgentID]waiter),
	}
	if inter.Control == network.ControlSignal {
		plan, err := BuildSignalPlan(inter, c.conflicts, cfg.phaseTicks())
		if err != nil {
			return nil, err
		}
		c.plan = plan
	}
	return c, nil
}

// ID returns the intersection this controller arbitrates.
func (c *Controller) ID() network.IntersectionID { return c.id }

// Kind returns the intersection's control policy.
func (c *Controller) Kind() network.ControlKind { return c.kind }

// Plan returns the signal plan, or nil for unsignalized intersections.
func (c *Controller) Plan() *SignalPlan { return c.plan }

// RequestTurn decides whether agent may begin turn at the given time. A true
// return grants the turn and obligates the agent to start it immediately; a
// false return records the agent as waiting, to be retried later. Callers of
// a granted turn must call ReleaseTurn exactly once on completion.
func (c *Controller) RequestTurn(agent AgentID, turn network.TurnID, now int64) bool {
	t := c.net.Turn(turn)
	if t.Intersection != c.id {
		logrus.Panicf("turn %d belongs to intersection %d, requested at %d", turn, t.Intersection, c.id)
	}
	if held, ok := c.accepted[agent]; ok {
		logrus.Panicf("%s requested turn %d while already granted turn %d at intersection %d", agent, turn, held, c.id)
	}

	if c.conflictsWithAccepted(turn) {
		c.deny(agent, turn, now)
		return false
	}

	switch c.kind {
	case network.ControlFreeform:
		// Conflict check above is the whole policy.
	case network.ControlStopSign:
		if !t.Priority {
			if c.conflictingPriorityWaiter(agent, turn) {
				c.deny(agent, turn, now)
				return false
			}
			w, asked := c.waiting[agent]
			if !asked || w.turn != turn {
				// First ask for this turn: the agent has just pulled up to
				// the sign and must dwell before proceeding.
				w = waiter{turn: turn, since: now}
			}
			if now-w.since < c.minStopWait {
				c.waiting[agent] = w
				return false
			}
		}
	case network.ControlSignal:
		phase, _ := c.plan.PhaseAt(now)
		if !phase.Contains(turn) {
			c.deny(agent, turn, now)
			return false
		}
	default:
		logrus.Panicf("intersection %d has unknown control kind %d", c.id, c.kind)
	}

	delete(c.waiting, agent)
	c.accepted[agent] = turn
	return true
}

// ReleaseTurn removes a previously granted turn. Releasing a turn that was
// never granted is an invariant violation.
func (c *Controller) ReleaseTurn(agent AgentID, turn network.TurnID) {
	held, ok := c.accepted[agent]
	if !ok || held != turn {
		logrus.Panicf("%s released turn %d at intersection %d without holding it (holds %d, granted=%v)",
			agent, turn, c.id, held, ok)
	}
	delete(c.accepted, agent)
}

// Holds returns the turn currently granted to agent, if any.
func (c *Controller) Holds(agent AgentID) (network.TurnID, bool) {
	t, ok := c.accepted[agent]
	return t, ok
}

// AcceptedCount returns how many turns are currently in flight.
func (c *Controller) AcceptedCount() int { return len(c.accepted) }

// Waiters returns the agents currently waiting at this intersection, in a
// deterministic order.
func (c *Controller) Waiters() []AgentID {
	agents := make([]AgentID, 0, len(c.waiting))
	for a := range c.waiting {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Kind != agents[j].Kind {
			return agents[i].Kind < agents[j].Kind
		}
		return agents[i].Num < agents[j].Num
	})
	return agents
}

// RetryAt returns the earliest future tick at which a denied request could
// succeed for a time-dependent reason: the end of a stop-sign dwell, or the
// next phase boundary of a signal. False means the denial can only clear when
// some agent releases a turn, so the caller should rely on the wake issued on
// release rather than polling.
func (c *Controller) RetryAt(agent AgentID, turn network.TurnID, now int64) (int64, bool) {
	switch c.kind {
	case network.ControlStopSign:
		if t := c.net.Turn(turn); !t.Priority {
			if w, ok := c.waiting[agent]; ok && w.turn == turn {
				if at := w.since + c.minStopWait; at > now {
					return at, true
				}
			}
		}
	case network.ControlSignal:
		if phase, remaining := c.plan.PhaseAt(now); !phase.Contains(turn) {
			return now + remaining, true
		}
	}
	return 0, false
}

func (c *Controller) conflictsWithAccepted(turn network.TurnID) bool {
	for _, held := range c.accepted {
		if c.conflicts.Conflicts(turn, held) {
			return true
		}
	}
	return false
}

// conflictingPriorityWaiter reports whether some other agent is waiting on a
// priority approach whose turn conflicts with this one. Stop-approach agents
// must yield to them even before they are granted.
func (c *Controller) conflictingPriorityWaiter(agent AgentID, turn network.TurnID) bool {
	for other, w := range c.waiting {
		if other == agent {
			continue
		}
		if c.net.Turn(w.turn).Priority && c.conflicts.Conflicts(turn, w.turn) {
			return true
		}
	}
	return false
}

func (c *Controller) deny(agent AgentID, turn network.TurnID, now int64) {
	w, ok := c.waiting[agent]
	if !ok || w.turn != turn {
		w = waiter{turn: turn, since: now}
	}
	c.waiting[agent] = w
}
