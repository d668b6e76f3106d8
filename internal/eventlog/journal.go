package eventlog

import (
	"sync"
	"time"
)

// Sink receives finalized events in emission order. Ordering guarantees
// derive from call order; implementations must not reorder.
type Sink interface {
	Record(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

func (f SinkFunc) Record(event Event) {
	if f == nil {
		return
	}
	f(event)
}

// FanoutSink forwards each event to every child sink in order.
type FanoutSink []Sink

func (s FanoutSink) Record(event Event) {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		sink.Record(event)
	}
}

// Telemetry captures the metrics adapter used by the journal to report drops.
type Telemetry interface {
	RecordJournalDrop(metric string)
}

const (
	metricJournalNonMonotonicSeq = "journal_nonmonotonic_seq"
	metricJournalNilEvent        = "journal_nil_event"
)

// Journal buffers canonical events generated during a combat window and keeps
// a rolling buffer of recent snapshot keyframes so a lagging consumer can
// rehydrate without replaying the whole stream.
type Journal struct {
	mu        sync.RWMutex
	events    []Event
	lastSeq   uint64
	keyframes []Keyframe
	maxFrames int
	maxAge    time.Duration
	telemetry Telemetry
}

// NewJournal constructs a journal retaining the configured number of
// keyframes within the retention window.
func NewJournal(keyframeCapacity int, maxAge time.Duration) *Journal {
	if keyframeCapacity < 0 {
		keyframeCapacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		events:    make([]Event, 0),
		keyframes: make([]Keyframe, 0, keyframeCapacity),
		maxFrames: keyframeCapacity,
		maxAge:    maxAge,
	}
}

// Record appends an event, enforcing strict sequence monotonicity. An event
// whose seq does not advance the cursor is dropped and counted; the dispatcher
// is the only writer, so a drop here indicates a programming error upstream.
func (j *Journal) Record(event Event) {
	if event == nil {
		j.recordDrop(metricJournalNilEvent)
		return
	}
	seq := event.Head().Seq
	j.mu.Lock()
	defer j.mu.Unlock()
	if seq <= j.lastSeq {
		j.recordDropLocked(metricJournalNonMonotonicSeq)
		return
	}
	j.lastSeq = seq
	j.events = append(j.events, event)
}

// LastSeq reports the highest sequence the journal has accepted.
func (j *Journal) LastSeq() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastSeq
}

// Drain returns all buffered events and clears the buffer. Callers receive
// clones so later mutation cannot corrupt the journal.
func (j *Journal) Drain() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.events) == 0 {
		return nil
	}
	drained := make([]Event, len(j.events))
	for i, event := range j.events {
		drained[i] = CloneEvent(event)
	}
	j.events = j.events[:0]
	return drained
}

// Snapshot returns a copy of the buffered events without clearing the journal.
func (j *Journal) Snapshot() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.events) == 0 {
		return nil
	}
	snapshot := make([]Event, len(j.events))
	for i, event := range j.events {
		snapshot[i] = CloneEvent(event)
	}
	return snapshot
}

// Restore prepends drained events back into the buffer. It is used when a
// caller drains the journal but the transport write fails and the batch must
// not be lost.
func (j *Journal) Restore(events []Event) {
	if len(events) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	restored := make([]Event, 0, len(events)+len(j.events))
	restored = append(restored, events...)
	restored = append(restored, j.events...)
	j.events = restored
}

// Keyframe captures one state_snapshot checkpoint for resync lookups.
type Keyframe struct {
	Tick       uint64
	Sequence   uint64
	State      GameState
	RecordedAt time.Time
}

type KeyframeEviction struct {
	Sequence uint64
	Tick     uint64
	Reason   string
}

type KeyframeRecordResult struct {
	Size           int
	OldestSequence uint64
	NewestSequence uint64
	Evicted        []KeyframeEviction
}

// RecordKeyframe stores a keyframe enforcing retention limits by count and age.
func (j *Journal) RecordKeyframe(frame Keyframe) KeyframeRecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return KeyframeRecordResult{}
	}

	frame.RecordedAt = time.Now()
	frame.State = CloneGameState(frame.State)
	j.keyframes = append(j.keyframes, frame)

	evicted := make([]KeyframeEviction, 0)
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.keyframes) {
			if !j.keyframes[idx].RecordedAt.Before(cutoff) {
				break
			}
			evicted = append(evicted, KeyframeEviction{
				Sequence: j.keyframes[idx].Sequence,
				Tick:     j.keyframes[idx].Tick,
				Reason:   "expired",
			})
			idx++
		}
		if idx > 0 {
			copy(j.keyframes, j.keyframes[idx:])
			j.keyframes = j.keyframes[:len(j.keyframes)-idx]
		}
	}

	if j.maxFrames > 0 && len(j.keyframes) > j.maxFrames {
		overflow := len(j.keyframes) - j.maxFrames
		for i := 0; i < overflow; i++ {
			evicted = append(evicted, KeyframeEviction{
				Sequence: j.keyframes[i].Sequence,
				Tick:     j.keyframes[i].Tick,
				Reason:   "count",
			})
		}
		copy(j.keyframes, j.keyframes[overflow:])
		j.keyframes = j.keyframes[:len(j.keyframes)-overflow]
	}

	size := len(j.keyframes)
	result := KeyframeRecordResult{Size: size, Evicted: evicted}
	if size > 0 {
		result.OldestSequence = j.keyframes[0].Sequence
		result.NewestSequence = j.keyframes[size-1].Sequence
	}
	return result
}

// KeyframeBySequence returns the keyframe matching the provided sequence.
func (j *Journal) KeyframeBySequence(sequence uint64) (Keyframe, bool) {
	if sequence == 0 {
		return Keyframe{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, frame := range j.keyframes {
		if frame.Sequence == sequence {
			cloned := frame
			cloned.State = CloneGameState(frame.State)
			return cloned, true
		}
	}
	return Keyframe{}, false
}

// KeyframeWindow reports the current retention window.
func (j *Journal) KeyframeWindow() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.keyframes)
	if size == 0 {
		return size, 0, 0
	}
	return size, j.keyframes[0].Sequence, j.keyframes[size-1].Sequence
}

func (j *Journal) AttachTelemetry(t Telemetry) {
	j.mu.Lock()
	j.telemetry = t
	j.mu.Unlock()
}

func (j *Journal) recordDrop(metric string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recordDropLocked(metric)
}

func (j *Journal) recordDropLocked(metric string) {
	if j.telemetry == nil || metric == "" {
		return
	}
	j.telemetry.RecordJournalDrop(metric)
}
