package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
)

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("dex-aggregator")
	cfg.ConsecutiveFailures = 2

	var transitions []gobreaker.State
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := New[int](cfg)
	boom := errors.New("rpc down")

	for i := 0; i < 2; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want %v", i, err, boom)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}

	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestCircuitBreaker_PassesResult(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))

	got, err := cb.Execute(func() (string, error) { return "0x01", nil })
	if err != nil || got != "0x01" {
		t.Errorf("Execute() = %q, %v", got, err)
	}
	if cb.Name() != "ok" {
		t.Errorf("Name() = %q", cb.Name())
	}
}
