package spawn

import "sync"

// Sink is the default destination for child output. Every chunk written to
// it is handed to its data subscribers and then dropped, so callers that do
// not supply a writer can still observe the output.
type Sink struct {
	mu   sync.RWMutex
	subs []func([]byte)
}

// NewSink creates a Sink with no subscribers.
func NewSink() *Sink {
	return &Sink{}
}

// OnData registers fn to receive every chunk written to the sink.
// Returns a function that removes the subscription.
func (s *Sink) OnData(fn func([]byte)) func() {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < len(s.subs) {
			s.subs[idx] = nil
		}
	}
}

// Write implements io.Writer. It never fails.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.RLock()
	subs := make([]func([]byte), 0, len(s.subs))
	for _, fn := range s.subs {
		if fn != nil {
			subs = append(subs, fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		fn(chunk)
	}
	return len(p), nil
}
