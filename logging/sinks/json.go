package sinks

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"autoarena/server/logging"
)

// JSONSink writes one JSON object per line, the format the log shipper
// ingests.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Write(event logging.Event) error {
	if s == nil || s.enc == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(event)
}

func (s *JSONSink) Close(context.Context) error {
	return nil
}
