package control

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-sim/traffic-sim/sim/network"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

var (
	carX  = AgentID{Kind: AgentCar, Num: 1}
	carY  = AgentID{Kind: AgentCar, Num: 2}
	carZ  = AgentID{Kind: AgentCar, Num: 3}
	turnA = network.TurnID(10)
	turnB = network.TurnID(11)
	turnC = network.TurnID(12)
)

// crossNetwork builds one intersection with three turns: turnA and turnB
// conflict, turnC conflicts with neither. turnA approaches with priority,
// turnB and turnC without.
func crossNetwork(t *testing.T, kind network.ControlKind) *network.Network {
	t.Helper()
	net, err := network.New(network.Def{
		Segments: []network.Segment{
			{ID: 1, TravelTicks: 10}, {ID: 2, TravelTicks: 10},
			{ID: 3, TravelTicks: 10}, {ID: 4, TravelTicks: 10},
			{ID: 5, TravelTicks: 10}, {ID: 6, TravelTicks: 10},
		},
		Intersections: []network.IntersectionDef{{
			ID:      1,
			Control: kind,
			Turns: []network.Turn{
				{ID: turnA, From: 1, To: 2, CrossTicks: 5, Priority: true},
				{ID: turnB, From: 3, To: 4, CrossTicks: 5},
				{ID: turnC, From: 5, To: 6, CrossTicks: 5},
			},
			Conflicts: [][2]network.TurnID{{turnA, turnB}},
		}},
	})
	require.NoError(t, err)
	return net
}

func newTestController(t *testing.T, kind network.ControlKind, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(crossNetwork(t, kind), 1, cfg)
	require.NoError(t, err)
	return c
}

func TestFreeform_ConflictingTurnWaitsForRelease(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})

	require.True(t, c.RequestTurn(carX, turnA, 0))
	assert.False(t, c.RequestTurn(carY, turnB, 1), "conflicting turn must be denied while held")
	assert.False(t, c.RequestTurn(carY, turnB, 2), "retry before release must still be denied")

	c.ReleaseTurn(carX, turnA)
	assert.True(t, c.RequestTurn(carY, turnB, 3))
}

func TestFreeform_CompatibleTurnsRunConcurrently(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})

	require.True(t, c.RequestTurn(carX, turnA, 0))
	assert.True(t, c.RequestTurn(carZ, turnC, 0), "non-conflicting turn must be admitted alongside")
	assert.Equal(t, 2, c.AcceptedCount())
}

func TestController_AcceptedSetNeverConflicts(t *testing.T) {
	// Random grant/release interleave; the invariant must hold after every
	// operation. turnA/turnB conflict, turnC is compatible with both.
	c := newTestController(t, network.ControlFreeform, Config{})
	net := c.net
	agents := []AgentID{carX, carY, carZ}
	turns := []network.TurnID{turnA, turnB, turnC}

	checkInvariant := func() {
		held := make([]network.TurnID, 0, len(c.accepted))
		for _, tr := range c.accepted {
			held = append(held, tr)
		}
		for i, a := range held {
			for _, b := range held[i+1:] {
				require.False(t, net.ConflictsAt(1).Conflicts(a, b),
					"accepted set holds conflicting turns %d and %d", a, b)
			}
		}
	}

	now := int64(0)
	for round := 0; round < 50; round++ {
		for i, agent := range agents {
			now++
			if _, holds := c.Holds(agent); holds {
				tr, _ := c.Holds(agent)
				c.ReleaseTurn(agent, tr)
			} else {
				c.RequestTurn(agent, turns[(round+i)%len(turns)], now)
			}
			checkInvariant()
		}
	}
}

func TestController_ReleaseWithoutGrantPanics(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})
	assert.Panics(t, func() {
		c.ReleaseTurn(carX, turnA)
	})
}

func TestController_DoubleReleasePanics(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})
	require.True(t, c.RequestTurn(carX, turnA, 0))
	c.ReleaseTurn(carX, turnA)
	assert.Panics(t, func() {
		c.ReleaseTurn(carX, turnA)
	})
}

func TestController_RequestWhileHoldingPanics(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})
	require.True(t, c.RequestTurn(carX, turnA, 0))
	assert.Panics(t, func() {
		c.RequestTurn(carX, turnC, 1)
	})
}

func TestStopSign_PriorityApproachProceedsImmediately(t *testing.T) {
	c := newTestController(t, network.ControlStopSign, Config{})
	assert.True(t, c.RequestTurn(carX, turnA, 0), "priority approach needs no dwell")
}

func TestStopSign_StopApproachDwellsBeforeGrant(t *testing.T) {
	c := newTestController(t, network.ControlStopSign, Config{MinStopWait: 15})

	assert.False(t, c.RequestTurn(carY, turnB, 0), "first ask starts the dwell")
	assert.False(t, c.RequestTurn(carY, turnB, 14), "dwell not yet served")
	assert.True(t, c.RequestTurn(carY, turnB, 15))
}

func TestStopSign_RetryAtReportsDwellExpiry(t *testing.T) {
	c := newTestController(t, network.ControlStopSign, Config{MinStopWait: 15})
	require.False(t, c.RequestTurn(carY, turnB, 100))

	at, ok := c.RetryAt(carY, turnB, 100)
	require.True(t, ok)
	assert.Equal(t, int64(115), at)
}

func TestStopSign_YieldsToWaitingPriorityApproach(t *testing.T) {
	c := newTestController(t, network.ControlStopSign, Config{MinStopWait: -1})

	// carZ occupies turnC; carX (priority, turnA) is blocked by nothing,
	// so force its wait by occupying turnB first.
	require.True(t, c.RequestTurn(carZ, turnB, 0))
	require.False(t, c.RequestTurn(carX, turnA, 1), "priority approach blocked by in-flight conflict")
	c.ReleaseTurn(carZ, turnB)

	// carY's stop approach conflicts with the waiting priority agent's turn.
	assert.False(t, c.RequestTurn(carY, turnB, 2),
		"stop approach must yield while a priority approach waits on a conflicting turn")
	assert.True(t, c.RequestTurn(carX, turnA, 3))
	c.ReleaseTurn(carX, turnA)
	assert.True(t, c.RequestTurn(carY, turnB, 4))
}

func TestStopSign_DisabledDwellGrantsFirstAsk(t *testing.T) {
	c := newTestController(t, network.ControlStopSign, Config{MinStopWait: -1})
	assert.True(t, c.RequestTurn(carY, turnB, 0))
}

func TestSignal_GrantsOnlyDuringTurnsPhase(t *testing.T) {
	c := newTestController(t, network.ControlSignal, Config{PhaseTicks: 100})
	plan := c.Plan()
	require.NotNil(t, plan)

	// Find a tick whose phase contains turnB and one whose phase doesn't.
	inPhase, outOfPhase := int64(-1), int64(-1)
	for i := 0; i < len(plan.Phases); i++ {
		at := int64(i) * plan.PhaseTicks
		ph, _ := plan.PhaseAt(at)
		if ph.Contains(turnB) {
			inPhase = at
		} else {
			outOfPhase = at
		}
	}
	require.NotEqual(t, int64(-1), inPhase, "every legal turn appears in some phase")
	require.NotEqual(t, int64(-1), outOfPhase, "conflicting turns force at least two phases")

	assert.False(t, c.RequestTurn(carY, turnB, outOfPhase))
	at, ok := c.RetryAt(carY, turnB, outOfPhase)
	require.True(t, ok)
	assert.Equal(t, outOfPhase+100, at, "denied signal requests retry at the phase boundary")

	c2 := newTestController(t, network.ControlSignal, Config{PhaseTicks: 100})
	assert.True(t, c2.RequestTurn(carY, turnB, inPhase))
}

func TestSignal_InProgressTurnOutlivesItsPhase(t *testing.T) {
	c := newTestController(t, network.ControlSignal, Config{PhaseTicks: 100})
	plan := c.Plan()

	var grantAt int64 = -1
	for i := 0; i < len(plan.Phases); i++ {
		at := int64(i) * plan.PhaseTicks
		if ph, _ := plan.PhaseAt(at); ph.Contains(turnB) {
			grantAt = at
			break
		}
	}
	require.NotEqual(t, int64(-1), grantAt)
	require.True(t, c.RequestTurn(carY, turnB, grantAt))

	// Phases advance; the grant is never re-checked or evicted, and a newly
	// legal conflicting turn still waits for the release.
	afterPhase := grantAt + 100
	assert.False(t, c.RequestTurn(carX, turnA, afterPhase),
		"conflicting turn must wait for the in-progress turn even in its own phase")
	c.ReleaseTurn(carY, turnB)
}

func TestController_WaitersAreDeterministicallyOrdered(t *testing.T) {
	c := newTestController(t, network.ControlFreeform, Config{})
	require.True(t, c.RequestTurn(carZ, turnA, 0))
	require.False(t, c.RequestTurn(carY, turnB, 1))
	require.False(t, c.RequestTurn(carX, turnB, 2))

	assert.Equal(t, []AgentID{carX, carY}, c.Waiters())
}
