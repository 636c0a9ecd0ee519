// Package network holds the read-only road topology the simulation runs on:
// segments, intersections, the legal turns through each intersection, and the
// precomputed conflict relation between turns. A Network is immutable after
// construction; editing the road network means building a new one and
// rebuilding the controllers derived from it.
package network

import (
	"fmt"
	"sort"
)

// SegmentID identifies one directed road segment.
type SegmentID int

// IntersectionID identifies one intersection.
type IntersectionID int

// TurnID identifies one legal entry->exit movement, unique across the network.
type TurnID int

// ControlKind selects the admission policy at an intersection.
type ControlKind int

const (
	ControlFreeform ControlKind = iota
	ControlStopSign
	ControlSignal
)

func (k ControlKind) String() string {
	switch k {
	case ControlFreeform:
		return "freeform"
	case ControlStopSign:
		return "stop-sign"
	case ControlSignal:
		return "signal"
	default:
		return fmt.Sprintf("ControlKind(%d)", int(k))
	}
}

// ParseControlKind maps a config string to a ControlKind.
func ParseControlKind(s string) (ControlKind, error) {
	switch s {
	case "", "freeform":
		return ControlFreeform, nil
	case "stop-sign":
		return ControlStopSign, nil
	case "signal":
		return ControlSignal, nil
	default:
		return 0, fmt.Errorf("unknown control kind %q; valid kinds: [freeform, stop-sign, signal]", s)
	}
}

// Segment is one directed road segment with a fixed traversal cost.
type Segment struct {
	ID          SegmentID
	TravelTicks int64
}

// Turn is one legal movement through an intersection, from an inbound segment
// to an outbound one. Priority marks the approach as having right-of-way at a
// stop-sign intersection; it is ignored under other control kinds.
type Turn struct {
	ID           TurnID
	Intersection IntersectionID
	From         SegmentID
	To           SegmentID
	CrossTicks   int64
	Priority     bool
}

// Intersection groups the turns of one intersection and how it is controlled.
type Intersection struct {
	ID      IntersectionID
	Control ControlKind
	Turns   []TurnID // sorted
}

// ConflictGraph is the symmetric conflict relation among one intersection's
// turns. Two conflicting turns must never be granted concurrently.
type ConflictGraph struct {
	conflicts map[TurnID]map[TurnID]bool
}

// Conflicts reports whether a and b cannot safely execute at the same time.
func (g *ConflictGraph) Conflicts(a, b TurnID) bool {
	return g.conflicts[a][b]
}

// Def is the plain description a Network is built from. The cmd package maps
// scenario files onto this.
type Def struct {
	Segments      []Segment
	Intersections []IntersectionDef
}

// IntersectionDef describes one intersection: its turns and which pairs of
// them conflict. Conflict pairs are given one way; symmetry is implied.
type IntersectionDef struct {
	ID        IntersectionID
	Control   ControlKind
	Turns     []Turn
	Conflicts [][2]TurnID
}

// Network is the loaded topology. All lookups panic on unknown IDs: the graph
// is validated at construction, so a miss is a bug in the caller.
type Network struct {
	segments      map[SegmentID]Segment
	intersections map[IntersectionID]*Intersection
	turns         map[TurnID]Turn
	conflicts     map[IntersectionID]*ConflictGraph
	turnsFrom     map[SegmentID][]TurnID // sorted
}

// New validates a Def and builds the immutable Network from it.
func New(def Def) (*Network, error) {
	n := &Network{
		segments:      make(map[SegmentID]Segment),
		intersections: make(map[IntersectionID]*Intersection),
		turns:         make(map[TurnID]Turn),
		conflicts:     make(map[IntersectionID]*ConflictGraph),
		turnsFrom:     make(map[SegmentID][]TurnID),
	}
	for _, s := range def.Segments {
		if _, ok := n.segments[s.ID]; ok {
			return nil, fmt.Errorf("duplicate segment %d", s.ID)
		}
		if s.TravelTicks <= 0 {
			return nil, fmt.Errorf("segment %d: travel_ticks must be positive, got %d", s.ID, s.TravelTicks)
		}
		n.segments[s.ID] = s
	}
	for _, idef := range def.Intersections {
		if _, ok := n.intersections[idef.ID]; ok {
			return nil, fmt.Errorf("duplicate intersection %d", idef.ID)
		}
		inter := &Intersection{ID: idef.ID, Control: idef.Control}
		cg := &ConflictGraph{conflicts: make(map[TurnID]map[TurnID]bool)}
		for _, t := range idef.Turns {
			if _, ok := n.turns[t.ID]; ok {
				return nil, fmt.Errorf("duplicate turn %d", t.ID)
			}
			if _, ok := n.segments[t.From]; !ok {
				return nil, fmt.Errorf("turn %d: unknown entry segment %d", t.ID, t.From)
			}
			if _, ok := n.segments[t.To]; !ok {
				return nil, fmt.Errorf("turn %d: unknown exit segment %d", t.ID, t.To)
			}
			if t.CrossTicks <= 0 {
				return nil, fmt.Errorf("turn %d: cross_ticks must be positive, got %d", t.ID, t.CrossTicks)
			}
			t.Intersection = idef.ID
			n.turns[t.ID] = t
			inter.Turns = append(inter.Turns, t.ID)
			cg.conflicts[t.ID] = make(map[TurnID]bool)
			n.turnsFrom[t.From] = append(n.turnsFrom[t.From], t.ID)
		}
		sort.Slice(inter.Turns, func(i, j int) bool { return inter.Turns[i] < inter.Turns[j] })
		for _, pair := range idef.Conflicts {
			a, b := pair[0], pair[1]
			if _, ok := cg.conflicts[a]; !ok {
				return nil, fmt.Errorf("intersection %d: conflict references unknown turn %d", idef.ID, a)
			}
			if _, ok := cg.conflicts[b]; !ok {
				return nil, fmt.Errorf("intersection %d: conflict references unknown turn %d", idef.ID, b)
			}
			if a == b {
				// A self-conflicting turn could never be granted at all.
				return nil, fmt.Errorf("intersection %d: turn %d conflicts with itself", idef.ID, a)
			}
			cg.conflicts[a][b] = true
			cg.conflicts[b][a] = true
		}
		n.intersections[idef.ID] = inter
		n.conflicts[idef.ID] = cg
	}
	for seg := range n.turnsFrom {
		ts := n.turnsFrom[seg]
		sort.Slice(ts, func(i, j int) bool { return ts[i] < ts[j] })
	}
	return n, nil
}

// Segment returns the segment with the given ID.
func (n *Network) Segment(id SegmentID) Segment {
	s, ok := n.segments[id]
	if !ok {
		panic(fmt.Sprintf("unknown segment %d", id))
	}
	return s
}

// Turn returns the turn with the given ID.
func (n *Network) Turn(id TurnID) Turn {
	t, ok := n.turns[id]
	if !ok {
		panic(fmt.Sprintf("unknown turn %d", id))
	}
	return t
}

// Intersection returns the intersection with the given ID.
func (n *Network) Intersection(id IntersectionID) *Intersection {
	i, ok := n.intersections[id]
	if !ok {
		panic(fmt.Sprintf("unknown intersection %d", id))
	}
	return i
}

// Intersections returns all intersection IDs in ascending order.
func (n *Network) Intersections() []IntersectionID {
	ids := make([]IntersectionID, 0, len(n.intersections))
	for id := range n.intersections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ConflictsAt returns the conflict graph of one intersection.
func (n *Network) ConflictsAt(id IntersectionID) *ConflictGraph {
	g, ok := n.conflicts[id]
	if !ok {
		panic(fmt.Sprintf("unknown intersection %d", id))
	}
	return g
}

// TurnsFrom returns the legal turns leaving a segment, in ascending TurnID
// order. Empty for dead-end segments.
func (n *Network) TurnsFrom(seg SegmentID) []TurnID {
	return n.turnsFrom[seg]
}

// Segments returns all segment IDs in ascending order.
func (n *Network) Segments() []SegmentID {
	ids := make([]SegmentID, 0, len(n.segments))
	for id := range n.segments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
