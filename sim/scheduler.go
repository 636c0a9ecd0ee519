package sim

import (
	"container/heap"

	"github.com/sirupsen/logrus"
)

// Compaction fires once the heap is this large and mostly stale. Purely a
// memory bound; it never changes dispatch order.
const compactionMinHeapSize = 10000

// scheduledItem is one (time, command) entry in the heap. seq is a monotone
// push counter: it breaks ties at equal times in insertion order, and an item
// is live only while the authoritative map still records its seq.
type scheduledItem struct {
	time int64
	seq  uint64
	cmd  Command
}

// itemHeap orders items by time, then by insertion order. Insertion-order
// tie-break keeps runs byte-reproducible: two commands pushed at the same
// time always dispatch in push order, never heap-internal order.
type itemHeap []scheduledItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) {
	*h = append(*h, x.(scheduledItem))
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[0 : n-1]
	return item
}

type liveEntry struct {
	time int64
	seq  uint64
}

// Scheduler is the global time-ordered work queue: every "thing that should
// happen at time T" is a Command pushed at T, and GetNext yields them in
// strictly non-decreasing time order.
//
// Update and Cancel never search the heap. The live map is the single source
// of truth for which (time, command) pair is authoritative; superseded heap
// entries go stale in place and are discarded when they surface. That makes
// Update and Cancel O(log n) pushes and O(1) map flips instead of O(n)
// removals.
type Scheduler struct {
	items itemHeap
	live  map[Command]liveEntry
	seq   uint64

	// lastTime is the time of the most recent dispatch; pushing before it
	// would corrupt ordering.
	lastTime int64

	pushes        uint64
	staleDiscards uint64
	compactions   uint64
}

// SchedulerStats is a snapshot of queue occupancy and churn counters.
type SchedulerStats struct {
	QueueLen      int    // heap entries, live and stale
	Live          int    // commands with a pending dispatch
	Pushes        uint64 // total insertions, including updates
	StaleDiscards uint64 // superseded entries dropped so far
	Compactions   uint64 // heap rebuilds triggered by churn
}

// NewScheduler creates an empty scheduler starting at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{
		live: make(map[Command]liveEntry),
	}
}

// Push schedules cmd to fire at time at. Scheduling into the past is a
// programming error and panics rather than silently clamping, which would
// corrupt dispatch order. Pushing a command that already has a live entry
// replaces it, same as Update.
func (s *Scheduler) Push(at int64, cmd Command) {
	if at < s.lastTime {
		logrus.Panicf("scheduling %s at %d, before current time %d", cmd, at, s.lastTime)
	}
	s.seq++
	s.live[cmd] = liveEntry{time: at, seq: s.seq}
	heap.Push(&s.items, scheduledItem{time: at, seq: s.seq, cmd: cmd})
	s.pushes++
	s.maybeCompact()
}

// Update reschedules cmd to fire at time at, replacing any live entry. With
// no live entry it behaves exactly like Push. The superseded heap entry is
// left in place as stale.
func (s *Scheduler) Update(at int64, cmd Command) {
	s.Push(at, cmd)
}

// Cancel removes cmd's pending dispatch, leaving any queued entries
// permanently stale. Idempotent: cancelling an unscheduled command is a no-op.
func (s *Scheduler) Cancel(cmd Command) {
	delete(s.live, cmd)
}

// PeekNextTime returns the time of the next live entry without consuming it.
// False means the queue is drained.
func (s *Scheduler) PeekNextTime() (int64, bool) {
	s.skimStale()
	if len(s.items) == 0 {
		return 0, false
	}
	return s.items[0].time, true
}

// GetNext pops the next live (time, command). Times are non-decreasing across
// calls. False means the queue is drained, the normal termination signal.
func (s *Scheduler) GetNext() (int64, Command, bool) {
	s.skimStale()
	if len(s.items) == 0 {
		return 0, Command{}, false
	}
	item := heap.Pop(&s.items).(scheduledItem)
	delete(s.live, item.cmd)
	s.lastTime = item.time
	return item.time, item.cmd, true
}

// Stats returns current occupancy and churn counters.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		QueueLen:      len(s.items),
		Live:          len(s.live),
		Pushes:        s.pushes,
		StaleDiscards: s.staleDiscards,
		Compactions:   s.compactions,
	}
}

// isLive reports whether a heap item is still the authoritative entry for its
// command. Matching on seq, not time, so a command cancelled and re-pushed at
// the same time never resurrects its older entry.
func (s *Scheduler) isLive(item scheduledItem) bool {
	e, ok := s.live[item.cmd]
	return ok && e.seq == item.seq
}

// skimStale discards superseded entries sitting at the top of the heap.
func (s *Scheduler) skimStale() {
	for len(s.items) > 0 && !s.isLive(s.items[0]) {
		heap.Pop(&s.items)
		s.staleDiscards++
	}
}

// maybeCompact rebuilds the heap with only live entries once churn has made
// it large and mostly stale. seq values are preserved, so the subsequent
// dispatch sequence is identical with or without the rebuild.
func (s *Scheduler) maybeCompact() {
	if len(s.items) <= compactionMinHeapSize || len(s.items) < 2*len(s.live) {
		return
	}
	kept := make(itemHeap, 0, len(s.live))
	for _, item := range s.items {
		if s.isLive(item) {
			kept = append(kept, item)
		} else {
			s.staleDiscards++
		}
	}
	heap.Init(&kept)
	s.items = kept
	s.compactions++
	logrus.Debugf("scheduler compacted to %d live entries", len(kept))
}
