// Package workload generates trips to run through the kernel: Poisson
// departures from a seeded RNG, with routes built as random walks over the
// network's legal turns. Real deployments replace this with a pathfinding
// collaborator; the kernel only ever sees the resulting step sequences.
package workload

import (
	"fmt"
	"math/rand"

	"github.com/traffic-sim/traffic-sim/sim"
	"github.com/traffic-sim/traffic-sim/sim/control"
	"github.com/traffic-sim/traffic-sim/sim/network"
)

// Config controls trip generation.
type Config struct {
	Rate     float64 // expected departures per tick
	MaxTrips int     // hard cap on generated trips
	MaxSteps int     // route length bound in segments (default 8)
}

// Generate produces trips departing as a Poisson process until the horizon or
// MaxTrips is reached. The same network, config, and RNG state always produce
// the same trips.
func Generate(net *network.Network, cfg Config, rng *rand.Rand, horizon int64) ([]*sim.Trip, error) {
	if cfg.Rate <= 0 {
		return nil, fmt.Errorf("departure rate must be positive, got %v", cfg.Rate)
	}
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 8
	}
	segments := net.Segments()
	if len(segments) == 0 {
		return nil, fmt.Errorf("network has no segments to route over")
	}

	var trips []*sim.Trip
	currentTime := int64(0)
	for id := 1; cfg.MaxTrips <= 0 || id <= cfg.MaxTrips; id++ {
		iat := int64(rng.ExpFloat64() / cfg.Rate)
		if iat < 1 {
			iat = 1
		}
		currentTime += iat
		if horizon > 0 && currentTime > horizon {
			break
		}
		trips = append(trips, &sim.Trip{
			ID:     sim.TripID(id),
			Kind:   sampleKind(rng),
			Depart: currentTime,
			Steps:  randomWalk(net, segments, rng, maxSteps),
		})
	}
	return trips, nil
}

// sampleKind picks an agent kind with a fixed urban mix: mostly cars, the
// rest split among bikes, pedestrians, and buses.
func sampleKind(rng *rand.Rand) control.AgentKind {
	switch rng.Intn(10) {
	case 0:
		return control.AgentBike
	case 1:
		return control.AgentPedestrian
	case 2:
		return control.AgentBus
	default:
		return control.AgentCar
	}
}

// randomWalk builds a route by repeatedly taking a random legal turn out of
// the current segment, ending early at dead ends.
func randomWalk(net *network.Network, segments []network.SegmentID, rng *rand.Rand, maxSteps int) []sim.Step {
	current := segments[rng.Intn(len(segments))]
	var steps []sim.Step
	for len(steps) < maxSteps-1 {
		turns := net.TurnsFrom(current)
		if len(turns) == 0 {
			break
		}
		turn := turns[rng.Intn(len(turns))]
		steps = append(steps, sim.Step{Segment: current, Turn: turn, HasTurn: true})
		current = net.Turn(turn).To
	}
	return append(steps, sim.Step{Segment: current})
}
