package resilience

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/pixcache/internal/config"
	"github.com/LavishGent/pixcache/internal/store"
)

var errStoreDown = errors.New("store down")

func TestCircuitBreakerStateString(t *testing.T) {
	//nolint:govet // Test table - alignment not critical
	tests := []struct {
		state    State
		expected string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("State.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("creates with config values", func(t *testing.T) {
		cb := NewCircuitBreaker("disk-store", config.CircuitBreakerConfig{
			FailureThreshold:    10,
			SuccessThreshold:    5,
			OpenDuration:        time.Minute,
			HalfOpenMaxRequests: 7,
		})

		if cb.Name() != "disk-store" {
			t.Errorf("Name() = %s, want disk-store", cb.Name())
		}
		if cb.failureThreshold != 10 || cb.successThreshold != 5 {
			t.Errorf("thresholds = %d/%d, want 10/5", cb.failureThreshold, cb.successThreshold)
		}
		if cb.openDuration != time.Minute {
			t.Errorf("openDuration = %v, want 1m", cb.openDuration)
		}
		if cb.State() != StateClosed {
			t.Errorf("initial state = %v, want closed", cb.State())
		}
	})

	t.Run("applies defaults for zero values", func(t *testing.T) {
		cb := NewCircuitBreaker("x", config.CircuitBreakerConfig{})

		if cb.failureThreshold != 5 {
			t.Errorf("failureThreshold = %v, want 5", cb.failureThreshold)
		}
		if cb.successThreshold != 2 {
			t.Errorf("successThreshold = %v, want 2", cb.successThreshold)
		}
		if cb.openDuration != 30*time.Second {
			t.Errorf("openDuration = %v, want 30s", cb.openDuration)
		}
		if cb.halfOpenMaxRequests != 3 {
			t.Errorf("halfOpenMaxRequests = %v, want 3", cb.halfOpenMaxRequests)
		}
	})
}

func TestCircuitBreakerExecute(t *testing.T) {
	newBreaker := func() *CircuitBreaker {
		return NewCircuitBreaker("test", config.CircuitBreakerConfig{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			OpenDuration:        50 * time.Millisecond,
			HalfOpenMaxRequests: 1,
		})
	}
	fail := func() error { return errStoreDown }
	ok := func() error { return nil }

	t.Run("opens after consecutive failures", func(t *testing.T) {
		cb := newBreaker()
		for i := 0; i < 3; i++ {
			if err := cb.Execute(fail); !errors.Is(err, errStoreDown) {
				t.Fatalf("Execute() error = %v, want store down", err)
			}
		}
		if !cb.IsOpen() {
			t.Fatalf("State() = %v, want open", cb.State())
		}

		var called bool
		err := cb.Execute(func() error { called = true; return nil })
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("Execute() error = %v, want ErrCircuitOpen", err)
		}
		if !strings.Contains(err.Error(), errStoreDown.Error()) {
			t.Errorf("Execute() error = %v, want the tripping failure named", err)
		}
		if called {
			t.Error("fn called while circuit open")
		}
		if stats := cb.Stats(); stats.Trips != 1 || !errors.Is(stats.LastFailure, errStoreDown) {
			t.Errorf("Stats() = %+v, want one trip caused by store down", stats)
		}
	})

	t.Run("success resets the failure streak", func(t *testing.T) {
		cb := newBreaker()
		_ = cb.Execute(fail)
		_ = cb.Execute(fail)
		_ = cb.Execute(ok)
		_ = cb.Execute(fail)
		_ = cb.Execute(fail)

		if cb.State() != StateClosed {
			t.Errorf("State() = %v, want closed", cb.State())
		}
	})

	t.Run("misses do not trip the circuit", func(t *testing.T) {
		cb := newBreaker()
		for i := 0; i < 10; i++ {
			err := cb.Execute(func() error {
				return fmt.Errorf("get abc: %w", store.ErrNotFound)
			})
			if !store.IsNotFound(err) {
				t.Fatalf("Execute() error = %v, want not found", err)
			}
		}
		if cb.State() != StateClosed {
			t.Errorf("State() = %v, want closed", cb.State())
		}
	})

	t.Run("half-open closes after enough successes", func(t *testing.T) {
		cb := newBreaker()
		for i := 0; i < 3; i++ {
			_ = cb.Execute(fail)
		}
		time.Sleep(60 * time.Millisecond)

		if err := cb.Execute(ok); err != nil {
			t.Fatalf("probe error = %v", err)
		}
		if cb.State() != StateHalfOpen {
			t.Fatalf("State() = %v, want half-open", cb.State())
		}
		// The single half-open slot is used up until the next success closes it.
		if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("second probe error = %v, want ErrCircuitOpen", err)
		}
		cb.RecordSuccess()
		if cb.State() != StateClosed {
			t.Errorf("State() = %v, want closed", cb.State())
		}
	})

	t.Run("half-open failure reopens", func(t *testing.T) {
		cb := newBreaker()
		for i := 0; i < 3; i++ {
			_ = cb.Execute(fail)
		}
		time.Sleep(60 * time.Millisecond)

		_ = cb.Execute(fail)
		if !cb.IsOpen() {
			t.Errorf("State() = %v, want open", cb.State())
		}
	})
}

func TestCircuitBreakerStateChangeCallback(t *testing.T) {
	cb := NewCircuitBreaker("test", config.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenDuration:     10 * time.Millisecond,
	})

	var mu sync.Mutex
	var seen []string
	cb.SetOnStateChange(func(from, to State) {
		// Reading state from the callback must not deadlock.
		_ = cb.Stats()
		mu.Lock()
		seen = append(seen, from.String()+"->"+to.String())
		mu.Unlock()
	})

	_ = cb.Execute(func() error { return errStoreDown })
	time.Sleep(20 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Errorf("transitions = %v, want %v", seen, want)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", config.CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Execute(func() error { return errStoreDown })
	if !cb.IsOpen() {
		t.Fatal("expected open circuit")
	}

	cb.Reset()

	stats := cb.Stats()
	if stats.State != StateClosed || stats.ConsecutiveFails != 0 || stats.LastFailure != nil {
		t.Errorf("Stats() = %+v, want closed with no failures", stats)
	}
	if stats.Trips != 1 {
		t.Errorf("Trips = %d, want 1 after reset", stats.Trips)
	}
}

func TestCircuitBreakerConcurrent(t *testing.T) {
	cb := NewCircuitBreaker("test", config.CircuitBreakerConfig{
		FailureThreshold: 1000,
		OpenDuration:     time.Second,
	})

	var calls atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cb.Execute(func() error {
					calls.Add(1)
					if (i+j)%2 == 0 {
						return errStoreDown
					}
					return nil
				})
			}
		}(i)
	}
	wg.Wait()

	if calls.Load() != 5000 {
		t.Errorf("calls = %d, want 5000", calls.Load())
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestDisabledCircuitBreaker(t *testing.T) {
	cb := NewDisabledCircuitBreaker()
	for i := 0; i < 100; i++ {
		_ = cb.Execute(func() error { return errStoreDown })
	}
	if cb.IsOpen() || cb.State() != StateClosed {
		t.Error("disabled circuit breaker opened")
	}
}
