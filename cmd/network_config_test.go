package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traffic-sim/traffic-sim/sim/network"
)

const sampleNetwork = `
segments:
  - id: 1
    travel_ticks: 40
  - id: 2
    travel_ticks: 25
  - id: 3
    travel_ticks: 25
intersections:
  - id: 1
    control: stop-sign
    turns:
      - id: 10
        from: 1
        to: 2
        cross_ticks: 8
        priority: true
      - id: 11
        from: 2
        to: 3
        cross_ticks: 8
    conflicts:
      - [10, 11]
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "network.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadNetwork_ParsesSampleFile(t *testing.T) {
	net, err := LoadNetwork(writeTemp(t, sampleNetwork))
	require.NoError(t, err)

	assert.Equal(t, []network.IntersectionID{1}, net.Intersections())
	assert.Equal(t, network.ControlStopSign, net.Intersection(1).Control)
	assert.True(t, net.Turn(10).Priority)
	assert.False(t, net.Turn(11).Priority)
	assert.True(t, net.ConflictsAt(1).Conflicts(11, 10))
	assert.Equal(t, int64(40), net.Segment(1).TravelTicks)
}

func TestLoadNetwork_MissingFile(t *testing.T) {
	_, err := LoadNetwork(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadNetwork_MalformedYAML(t *testing.T) {
	_, err := LoadNetwork(writeTemp(t, "segments: [whoops"))
	assert.Error(t, err)
}

func TestBuildNetwork_RejectsBadControlKind(t *testing.T) {
	_, err := BuildNetwork(NetworkConfig{
		Segments: []SegmentConfig{{ID: 1, TravelTicks: 10}},
		Intersections: []IntersectionConfig{{
			ID:      1,
			Control: "roundabout",
		}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown control kind")
}

func TestBuildNetwork_RejectsNonPairConflicts(t *testing.T) {
	_, err := BuildNetwork(NetworkConfig{
		Segments: []SegmentConfig{{ID: 1, TravelTicks: 10}, {ID: 2, TravelTicks: 10}},
		Intersections: []IntersectionConfig{{
			ID:        1,
			Control:   "freeform",
			Turns:     []TurnConfig{{ID: 10, From: 1, To: 2, CrossTicks: 5}},
			Conflicts: [][]int{{10}},
		}},
	})
	assert.Error(t, err)
}
