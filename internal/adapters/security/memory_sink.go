package security

import (
	"sync"

	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

// Event é um evento capturado pelo MemorySink.
type Event struct {
	Type    string
	Details map[string]any
}

// MemorySink acumula eventos em memória. Útil para testes e desenvolvimento.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

var _ ports.SecurityEventSink = (*MemorySink)(nil)

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) LogEvent(eventType string, details map[string]any) {
	copied := make(map[string]any, len(details))
	for k, v := range details {
		copied[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Type: eventType, Details: copied})
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
