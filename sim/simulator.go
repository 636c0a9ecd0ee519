// sim/simulator.go
package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/traffic-sim/traffic-sim/sim/control"
	"github.com/traffic-sim/traffic-sim/sim/network"
)

// Simulator is the core object that holds simulation time, system state, and
// the dispatch loop. The simulation is single-threaded cooperative: commands
// run to completion one at a time, so the Scheduler's total time-ordering is
// the only synchronization mechanism there is.
type Simulator struct {
	Clock   int64
	Horizon int64 // 0 means run until the queue drains

	Scheduler   *Scheduler
	Network     *network.Network
	Controllers map[network.IntersectionID]*control.Controller
	Metrics     *Metrics

	trips  map[TripID]*Trip
	agents map[AgentID]*agentState
}

// NewSimulator builds a simulator over a loaded network, constructing one
// controller per intersection (including signal plans for signalized ones).
func NewSimulator(net *network.Network, cfg control.Config, horizon int64) (*Simulator, error) {
	s := &Simulator{
		Horizon:     horizon,
		Scheduler:   NewScheduler(),
		Network:     net,
		Controllers: make(map[network.IntersectionID]*control.Controller),
		Metrics:     &Metrics{},
		trips:       make(map[TripID]*Trip),
		agents:      make(map[AgentID]*agentState),
	}
	for _, id := range net.Intersections() {
		ctrl, err := control.NewController(net, id, cfg)
		if err != nil {
			return nil, err
		}
		s.Controllers[id] = ctrl
	}
	return s, nil
}

// AddTrip validates a trip against the network and schedules its start.
// Every step but the last must name the turn connecting its segment to the
// next step's segment; the last step is the destination segment.
func (s *Simulator) AddTrip(t *Trip) error {
	if _, ok := s.trips[t.ID]; ok {
		return fmt.Errorf("duplicate trip %d", t.ID)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("trip %d has no steps", t.ID)
	}
	if t.Depart < 0 {
		return fmt.Errorf("trip %d departs at negative time %d", t.ID, t.Depart)
	}
	for i, st := range t.Steps {
		last := i == len(t.Steps)-1
		if last {
			if st.HasTurn {
				return fmt.Errorf("trip %d: final step must not carry a turn", t.ID)
			}
			break
		}
		if !st.HasTurn {
			return fmt.Errorf("trip %d: step %d has no turn connecting to the next segment", t.ID, i)
		}
		turn := s.Network.Turn(st.Turn)
		if turn.From != st.Segment {
			return fmt.Errorf("trip %d: step %d traverses segment %d but turn %d enters from %d",
				t.ID, i, st.Segment, st.Turn, turn.From)
		}
		if turn.To != t.Steps[i+1].Segment {
			return fmt.Errorf("trip %d: turn %d exits to segment %d but step %d is on %d",
				t.ID, st.Turn, turn.To, i+1, t.Steps[i+1].Segment)
		}
	}
	s.trips[t.ID] = t
	s.Scheduler.Push(t.Depart, StartTrip(t.ID))
	return nil
}

// Run drives the dispatch loop: pop the next command, advance the clock to
// it, dispatch. Stops when the queue drains or the horizon is reached.
func (s *Simulator) Run() {
	for {
		now, cmd, ok := s.Scheduler.GetNext()
		if !ok {
			break
		}
		if s.Horizon > 0 && now > s.Horizon {
			s.Clock = s.Horizon
			break
		}
		s.Clock = now
		logrus.Debugf("[tick %07d] Dispatching %s", now, cmd)
		s.dispatch(now, cmd)
	}
	logrus.Infof("[tick %07d] Simulation ended", s.Clock)
}

func (s *Simulator) dispatch(now int64, cmd Command) {
	switch cmd.Kind {
	case CommandStartTrip:
		s.startTrip(now, cmd.Trip)
	case CommandUpdateAgent:
		s.updateAgent(now, cmd.Agent)
	case CommandUpdateIntersection:
		s.updateIntersection(now, cmd.Intersection)
	default:
		logrus.Panicf("dispatching unknown command kind %d", cmd.Kind)
	}
}

func (s *Simulator) startTrip(now int64, id TripID) {
	trip := s.trips[id]
	agent := trip.Agent()
	s.agents[agent] = &agentState{trip: trip, phase: phaseTraverse}
	s.Metrics.TripsStarted++
	logrus.Debugf("[tick %07d] %s departs on trip %d", now, agent, id)
	travel := s.Network.Segment(trip.Steps[0].Segment).TravelTicks
	s.Scheduler.Push(now+travel, UpdateAgent(agent))
}

func (s *Simulator) updateAgent(now int64, agent AgentID) {
	a, ok := s.agents[agent]
	if !ok {
		// A wake raced with trip completion in the same tick; nothing to do.
		return
	}
	switch a.phase {
	case phaseTraverse:
		st := a.currentStep()
		if !st.HasTurn {
			s.completeTrip(now, agent, a)
			return
		}
		s.tryTurn(now, agent, a)
	case phaseWait:
		s.tryTurn(now, agent, a)
	case phaseCross:
		st := a.currentStep()
		interID := s.Network.Turn(st.Turn).Intersection
		s.Controllers[interID].ReleaseTurn(agent, st.Turn)
		// Event-driven wake: waiters get one retry now instead of polling.
		s.Scheduler.Update(now, UpdateIntersection(interID))
		a.step++
		a.phase = phaseTraverse
		travel := s.Network.Segment(a.currentStep().Segment).TravelTicks
		s.Scheduler.Push(now+travel, UpdateAgent(agent))
	}
}

// tryTurn asks the intersection for admission. A grant starts the crossing
// immediately; a denial leaves the agent waiting, with a timed retry only
// when the controller can name a tick worth retrying at (stop dwell expiry,
// next signal phase). Otherwise the agent sleeps until a release wakes it.
func (s *Simulator) tryTurn(now int64, agent AgentID, a *agentState) {
	st := a.currentStep()
	turn := s.Network.Turn(st.Turn)
	ctrl := s.Controllers[turn.Intersection]
	if ctrl.RequestTurn(agent, st.Turn, now) {
		s.Metrics.TurnGrants++
		a.phase = phaseCross
		s.Scheduler.Push(now+turn.CrossTicks, UpdateAgent(agent))
		return
	}
	s.Metrics.TurnDenials++
	a.phase = phaseWait
	if at, ok := ctrl.RetryAt(agent, st.Turn, now); ok {
		s.Scheduler.Update(at, UpdateAgent(agent))
	}
}

func (s *Simulator) updateIntersection(now int64, id network.IntersectionID) {
	for _, agent := range s.Controllers[id].Waiters() {
		s.Scheduler.Update(now, UpdateAgent(agent))
	}
}

func (s *Simulator) completeTrip(now int64, agent AgentID, a *agentState) {
	s.Metrics.TripsCompleted++
	s.Metrics.TotalTripTicks += now - a.trip.Depart
	delete(s.agents, agent)
	logrus.Debugf("[tick %07d] %s finished trip %d", now, agent, a.trip.ID)
}
