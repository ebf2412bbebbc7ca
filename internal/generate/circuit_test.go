package generate

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Minute})

	for range 2 {
		cb.Failure()
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v before threshold, want closed", cb.State())
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v after threshold, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow after timeout = %v, want nil (half-open probe)", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	cb.Success()
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v after one success, want still half-open", cb.State())
	}
	cb.Success()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v after success threshold, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	cb.Failure()
	time.Sleep(20 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow = %v", err)
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v after half-open failure, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})

	cb.Failure()
	cb.Success()
	cb.Failure()
	if cb.State() != CircuitClosed {
		t.Fatalf("state = %v, want closed (success reset the count)", cb.State())
	}
}
