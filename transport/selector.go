package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-donations/core"
)

// ErrNoMechanism is returned when every registered mechanism is unavailable.
var ErrNoMechanism = core.ErrNoTransport

// Selector keeps mechanisms in preference order and hands out the first one
// that reports itself available.
type Selector struct {
	mu         sync.RWMutex
	mechanisms []core.TransportMechanism
	names      map[string]int
}

func NewSelector(mechanisms ...core.TransportMechanism) (*Selector, error) {
	selector := &Selector{names: map[string]int{}}
	for _, mechanism := range mechanisms {
		if err := selector.Register(mechanism); err != nil {
			return nil, err
		}
	}
	return selector, nil
}

// NewDefaultSelector prefers the HTTP client and falls back to a raw socket,
// honoring the disable switches of cfg.
func NewDefaultSelector(cfg core.VerificationConfig, client HTTPDoer) *Selector {
	selector := &Selector{names: map[string]int{}}
	if !cfg.DisableHTTPClient {
		_ = selector.Register(NewHTTPClientMechanism(client))
	}
	if !cfg.DisableSocket {
		socket := NewSocketMechanism(nil)
		if cfg.Timeout > 0 {
			socket.Timeout = cfg.Timeout
		}
		_ = selector.Register(socket)
	}
	return selector
}

func (s *Selector) Register(mechanism core.TransportMechanism) error {
	if s == nil {
		return fmt.Errorf("transport: selector is nil")
	}
	if mechanism == nil {
		return fmt.Errorf("transport: mechanism is nil")
	}
	name := normalizeName(mechanism.Name())
	if name == "" {
		return fmt.Errorf("transport: mechanism name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = map[string]int{}
	}
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("transport: mechanism %q already registered", name)
	}
	s.names[name] = len(s.mechanisms)
	s.mechanisms = append(s.mechanisms, mechanism)
	return nil
}

func (s *Selector) Select(ctx context.Context) (core.TransportMechanism, error) {
	if s == nil {
		return nil, ErrNoMechanism
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, mechanism := range s.List() {
		if mechanism.Available(ctx) {
			return mechanism, nil
		}
	}
	return nil, ErrNoMechanism
}

func (s *Selector) Get(name string) (core.TransportMechanism, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.names[normalizeName(name)]
	if !ok {
		return nil, false
	}
	return s.mechanisms[index], true
}

// List returns the mechanisms in preference order.
func (s *Selector) List() []core.TransportMechanism {
	if s == nil {
		return []core.TransportMechanism{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TransportMechanism(nil), s.mechanisms...)
}

func normalizeName(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}

var _ core.TransportSelector = (*Selector)(nil)
