package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/traffic-sim/traffic-sim/sim"
	"github.com/traffic-sim/traffic-sim/sim/control"
	"github.com/traffic-sim/traffic-sim/sim/network"
	"github.com/traffic-sim/traffic-sim/sim/workload"
)

var (
	// CLI flags for the simulation run
	networkFile       string  // Path to the network YAML file
	simulationHorizon int64   // Total simulation time (in ticks)
	logLevel          string  // Log verbosity level
	seed              int64   // Master seed for trip generation
	rate              float64 // Trip departures per tick
	maxTrips          int     // Number of trips to generate
	maxRouteSteps     int     // Max segments per generated route
	phaseTicks        int64   // Signal phase duration (in ticks)
	minStopWait       int64   // Stop-sign dwell requirement (in ticks)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "traffic-sim",
	Short: "Discrete-event microsimulator for urban traffic",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the traffic simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if networkFile == "" {
			logrus.Fatalf("Network file not provided. Exiting simulation.")
		}
		net, err := LoadNetwork(networkFile)
		if err != nil {
			logrus.Fatalf("Unable to load network: %v", err)
		}

		logrus.Infof("Starting simulation with %d intersections, horizon=%d ticks, seed=%d, rate=%v trips/tick",
			len(net.Intersections()), simulationHorizon, seed, rate)

		startTime := time.Now() // Get current time (start)

		s, err := sim.NewSimulator(net, control.Config{
			MinStopWait: minStopWait,
			PhaseTicks:  phaseTicks,
		}, simulationHorizon)
		if err != nil {
			logrus.Fatalf("Unable to build simulator: %v", err)
		}

		rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemTrips)
		trips, err := workload.Generate(net, workload.Config{
			Rate:     rate,
			MaxTrips: maxTrips,
			MaxSteps: maxRouteSteps,
		}, rng, simulationHorizon)
		if err != nil {
			logrus.Fatalf("Unable to generate trips: %v", err)
		}
		for _, t := range trips {
			if err := s.AddTrip(t); err != nil {
				logrus.Fatalf("Rejected generated trip: %v", err)
			}
		}

		s.Run()
		s.Metrics.Print(s.Clock, s.Scheduler.Stats())
		fmt.Printf("Wall-clock time      : %v\n", time.Since(startTime))

		logrus.Info("Simulation complete.")
	},
}

// signalsCmd prints the computed signal plan of every signalized intersection
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Print the computed signal phases for each signalized intersection",
	Run: func(cmd *cobra.Command, args []string) {
		if networkFile == "" {
			logrus.Fatalf("Network file not provided.")
		}
		net, err := LoadNetwork(networkFile)
		if err != nil {
			logrus.Fatalf("Unable to load network: %v", err)
		}
		for _, id := range net.Intersections() {
			inter := net.Intersection(id)
			if inter.Control != network.ControlSignal {
				continue
			}
			plan, err := control.BuildSignalPlan(inter, net.ConflictsAt(id), phaseTicks)
			if err != nil {
				logrus.Fatalf("Unable to build signal plan for intersection %d: %v", id, err)
			}
			fmt.Printf("intersection %d: %d phases, %d ticks each\n", id, len(plan.Phases), plan.PhaseTicks)
			for i, ph := range plan.Phases {
				fmt.Printf("  phase %d: turns %v\n", i, ph.Turns)
			}
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, signalsCmd} {
		c.Flags().StringVar(&networkFile, "network", "", "Path to the network YAML file")
		c.Flags().Int64Var(&phaseTicks, "phase-ticks", control.DefaultPhaseTicks, "Signal phase duration in ticks")
	}
	runCmd.Flags().Int64Var(&simulationHorizon, "horizon", 36000, "Total simulation time in ticks (0 = run to completion)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log verbosity level (debug, info, warn, error)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for trip generation")
	runCmd.Flags().Float64Var(&rate, "rate", 0.05, "Trip departures per tick")
	runCmd.Flags().IntVar(&maxTrips, "max-trips", 1000, "Number of trips to generate (0 = unbounded)")
	runCmd.Flags().IntVar(&maxRouteSteps, "max-route-steps", 8, "Maximum segments per generated route")
	runCmd.Flags().Int64Var(&minStopWait, "min-stop-wait", control.DefaultMinStopWait, "Stop-sign dwell requirement in ticks (-1 disables)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(signalsCmd)
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
