package arena

import (
	"sync"

	"autoarena/server/internal/combat"
	"autoarena/server/internal/eventlog"
)

// subscriberBuffer bounds how far a consumer may lag before it is dropped.
const subscriberBuffer = 256

// Subscriber is one live event feed. The channel closes when the combat
// finishes or the subscriber falls too far behind.
type Subscriber struct {
	ch      chan eventlog.Event
	dropped bool
}

// C is the receive side of the feed.
func (s *Subscriber) C() <-chan eventlog.Event {
	return s.ch
}

// Dropped reports whether the feed was closed because the consumer lagged.
func (s *Subscriber) Dropped() bool {
	return s.dropped
}

// Combat is one running or finished combat instance. Each combat owns its
// state, journal, and loop; instances share nothing, so any number resolve
// concurrently.
type Combat struct {
	id      string
	journal *eventlog.Journal
	loop    *combat.Loop

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	backlog  []eventlog.Event
	subs     map[*Subscriber]struct{}
	finished bool
	outcome  combat.Outcome
}

// ID returns the combat identifier.
func (c *Combat) ID() string {
	return c.id
}

// Journal exposes the combat's event journal for resync lookups.
func (c *Combat) Journal() *eventlog.Journal {
	return c.journal
}

// Done closes when the combat reached a terminal state or was cancelled.
func (c *Combat) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the terminal summary; valid once Done is closed.
func (c *Combat) Outcome() combat.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Finished reports whether the combat has terminated.
func (c *Combat) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Cancel requests a stop. The loop observes it at the next tick boundary, so
// the stream never cuts off mid-tick.
func (c *Combat) Cancel() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Subscribe returns every event emitted so far plus a live feed for the
// rest. The backlog and feed together contain each event exactly once.
func (c *Combat) Subscribe() ([]eventlog.Event, *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	backlog := make([]eventlog.Event, len(c.backlog))
	copy(backlog, c.backlog)
	sub := &Subscriber{ch: make(chan eventlog.Event, subscriberBuffer)}
	if c.finished {
		close(sub.ch)
		return backlog, sub
	}
	c.subs[sub] = struct{}{}
	return backlog, sub
}

// Unsubscribe detaches a live feed.
func (c *Combat) Unsubscribe(sub *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[sub]; ok {
		delete(c.subs, sub)
		close(sub.ch)
	}
}

// record receives each canonical event from the dispatcher. Events are
// cloned once and shared read-only with every consumer. A subscriber whose
// buffer is full is dropped rather than allowed to stall the simulation.
func (c *Combat) record(event eventlog.Event) {
	clone := eventlog.CloneEvent(event)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backlog = append(c.backlog, clone)
	for sub := range c.subs {
		select {
		case sub.ch <- clone:
		default:
			sub.dropped = true
			delete(c.subs, sub)
			close(sub.ch)
		}
	}
}

// finish marks the combat terminal and closes every live feed.
func (c *Combat) finish(outcome combat.Outcome) {
	c.mu.Lock()
	c.finished = true
	c.outcome = outcome
	for sub := range c.subs {
		delete(c.subs, sub)
		close(sub.ch)
	}
	c.mu.Unlock()
	close(c.done)
}

// Events returns the full stream emitted so far.
func (c *Combat) Events() []eventlog.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]eventlog.Event, len(c.backlog))
	copy(out, c.backlog)
	return out
}
