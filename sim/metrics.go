package sim

import "fmt"

// Metrics aggregates simulation-wide counters for final reporting.
type Metrics struct {
	TripsStarted   int   // agents spawned onto the network
	TripsCompleted int   // trips that reached their final segment
	TurnGrants     int   // successful intersection admissions
	TurnDenials    int   // denied requests (normal contention, not errors)
	TotalTripTicks int64 // sum over completed trips of (finish - depart)
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print(endTime int64, sched SchedulerStats) {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Simulated time       : %d ticks\n", endTime)
	fmt.Printf("Trips started        : %d\n", m.TripsStarted)
	fmt.Printf("Trips completed      : %d\n", m.TripsCompleted)
	fmt.Printf("Turn grants          : %d\n", m.TurnGrants)
	fmt.Printf("Turn denials         : %d\n", m.TurnDenials)
	if m.TripsCompleted > 0 {
		avg := float64(m.TotalTripTicks) / float64(m.TripsCompleted)
		fmt.Printf("Average trip duration: %.2f ticks\n", avg)
	}
	fmt.Printf("Scheduler pushes     : %d\n", sched.Pushes)
	fmt.Printf("Stale discards       : %d\n", sched.StaleDiscards)
	fmt.Printf("Heap compactions     : %d\n", sched.Compactions)
}
