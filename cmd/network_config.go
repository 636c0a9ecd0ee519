package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/traffic-sim/traffic-sim/sim/network"
)

// Define structs for the network YAML schema.
type NetworkConfig struct {
	Segments      []SegmentConfig      `yaml:"segments"`
	Intersections []IntersectionConfig `yaml:"intersections"`
}

type SegmentConfig struct {
	ID          int   `yaml:"id"`
	TravelTicks int64 `yaml:"travel_ticks"`
}

type IntersectionConfig struct {
	ID        int          `yaml:"id"`
	Control   string       `yaml:"control"` // freeform | stop-sign | signal
	Turns     []TurnConfig `yaml:"turns"`
	Conflicts [][]int      `yaml:"conflicts"`
}

type TurnConfig struct {
	ID         int   `yaml:"id"`
	From       int   `yaml:"from"`
	To         int   `yaml:"to"`
	CrossTicks int64 `yaml:"cross_ticks"`
	Priority   bool  `yaml:"priority"`
}

// LoadNetwork reads a network YAML file and builds the immutable topology
// from it.
func LoadNetwork(path string) (*network.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read network file: %w", err)
	}
	var cfg NetworkConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse network file %s: %w", path, err)
	}
	return BuildNetwork(cfg)
}

// BuildNetwork maps the YAML config onto a network.Def and validates it.
func BuildNetwork(cfg NetworkConfig) (*network.Network, error) {
	var def network.Def
	for _, s := range cfg.Segments {
		def.Segments = append(def.Segments, network.Segment{
			ID:          network.SegmentID(s.ID),
			TravelTicks: s.TravelTicks,
		})
	}
	for _, ic := range cfg.Intersections {
		kind, err := network.ParseControlKind(ic.Control)
		if err != nil {
			return nil, fmt.Errorf("intersection %d: %w", ic.ID, err)
		}
		idef := network.IntersectionDef{
			ID:      network.IntersectionID(ic.ID),
			Control: kind,
		}
		for _, tc := range ic.Turns {
			idef.Turns = append(idef.Turns, network.Turn{
				ID:         network.TurnID(tc.ID),
				From:       network.SegmentID(tc.From),
				To:         network.SegmentID(tc.To),
				CrossTicks: tc.CrossTicks,
				Priority:   tc.Priority,
			})
		}
		for _, pair := range ic.Conflicts {
			if len(pair) != 2 {
				return nil, fmt.Errorf("intersection %d: conflict entries must be pairs, got %v", ic.ID, pair)
			}
			idef.Conflicts = append(idef.Conflicts, [2]network.TurnID{
				network.TurnID(pair[0]),
				network.TurnID(pair[1]),
			})
		}
		def.Intersections = append(def.Intersections, idef)
	}
	return network.New(def)
}
