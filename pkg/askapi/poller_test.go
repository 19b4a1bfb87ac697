package askapi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedChecker struct {
	mu      sync.Mutex
	reports []HealthReport
	errs    []error
	calls   int
}

func (s *scriptedChecker) Health(context.Context) (HealthReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.reports) {
		i = len(s.reports) - 1
	}
	s.calls++
	return s.reports[i], s.errs[i]
}

func TestPollerReportsOnlyChanges(t *testing.T) {
	up := HealthReport{Services: map[string]string{"embeddings": "up", "ollama": "up"}}
	partial := HealthReport{Services: map[string]string{"embeddings": "up", "ollama": "down"}}
	checker := &scriptedChecker{
		reports: []HealthReport{up, up, partial, {}},
		errs:    []error{nil, nil, nil, errors.New("connection refused")},
	}

	var seen []Connection
	p := NewPoller(checker, time.Hour, func(c Connection) { seen = append(seen, c) }, nil)
	for i := 0; i < 4; i++ {
		p.Check(context.Background())
	}

	want := []Connection{Connected, Partial, Disconnected}
	if len(seen) != len(want) {
		t.Fatalf("unexpected transitions: %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transition %d: expected %v, got %v", i, want[i], seen[i])
		}
	}
	if p.State() != Disconnected {
		t.Fatalf("unexpected final state: %v", p.State())
	}
}

func TestPollerRunChecksImmediately(t *testing.T) {
	checker := &scriptedChecker{
		reports: []HealthReport{{Services: map[string]string{"a": "up"}}},
		errs:    []error{nil},
	}
	done := make(chan Connection, 1)
	p := NewPoller(checker, time.Hour, func(c Connection) { done <- c }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(finished)
	}()

	select {
	case c := <-done:
		if c != Connected {
			t.Fatalf("unexpected state: %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not check on start")
	}
	cancel()
	<-finished
}

func TestConnectionLabels(t *testing.T) {
	if Connected.String() != "Estado: Conectado ✓" {
		t.Fatalf("unexpected label: %s", Connected)
	}
	if Unknown.String() == "" {
		t.Fatal("unknown state should still have a label")
	}
}
