// Package sim provides the timing kernel of the traffic microsimulation.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - command.go: the closed set of Command kinds the scheduler dispatches
//   - scheduler.go: the time-ordered work queue with lazy deletion
//   - simulator.go: the dispatch loop and the agent/trip state machine
//
// # Architecture
//
// One tick is 100ms of simulated time. The sim package owns the clock and
// the event loop; the hard domain logic lives in sub-packages:
//   - sim/network/: read-only topology (segments, turns, conflict graphs)
//   - sim/control/: per-intersection admission control and signal plans
//   - sim/workload/: deterministic trip generation
//
// The Scheduler's live map is the single source of truth for what is
// pending; the heap underneath it is a sorted, possibly-stale cache.
// Equal-time commands dispatch in push order, which together with the
// per-subsystem seeded RNG makes runs bit-reproducible.
package sim
