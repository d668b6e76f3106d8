package logging

import (
	"context"
	"log"
	"os"
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type sinkPublisher struct {
	sinks       []Sink
	minSeverity Severity
	clock       Clock
	fallback    *log.Logger
}

// NewSinkPublisher fans events out to the provided sinks synchronously.
// Ordering across sinks follows call order, so a combat's event stream is
// never reordered by logging.
func NewSinkPublisher(clock Clock, minSeverity Severity, sinks ...Sink) Publisher {
	if clock == nil {
		clock = SystemClock{}
	}
	return &sinkPublisher{
		sinks:       sinks,
		minSeverity: minSeverity,
		clock:       clock,
		fallback:    log.New(os.Stderr, "[logging] ", log.LstdFlags),
	}
}

func (p *sinkPublisher) Publish(_ context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Severity < p.minSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = p.clock.Now()
	}
	for _, sink := range p.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Write(event); err != nil {
			p.fallback.Printf("sink write failed type=%s err=%v", event.Type, err)
		}
	}
}
