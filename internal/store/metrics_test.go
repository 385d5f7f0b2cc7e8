package store

import (
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestStateCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	orig := stateReg
	stateReg = reg
	t.Cleanup(func() { stateReg = orig })

	b := NewBreakers()
	registerStateCollector(b)
	b.Get(CmdGet, DefaultBreakerConfig(), zerolog.Nop())
	b.Get(CmdSet, DefaultBreakerConfig(), zerolog.Nop()).Open()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 1 || families[0].GetName() != "flash_circuit_breaker_state" {
		t.Fatalf("Expected flash_circuit_breaker_state, got %v", families)
	}

	values := map[string]float64{}
	for _, m := range families[0].GetMetric() {
		values[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	if values[CmdGet] != 0 {
		t.Errorf("Expected get closed (0), got %v", values[CmdGet])
	}
	if values[CmdSet] != 2 {
		t.Errorf("Expected set open (2), got %v", values[CmdSet])
	}
}

func TestStateValue(t *testing.T) {
	tests := []struct {
		state circuitbreaker.State
		want  float64
	}{
		{circuitbreaker.ClosedState, 0},
		{circuitbreaker.HalfOpenState, 1},
		{circuitbreaker.OpenState, 2},
	}
	for _, tt := range tests {
		if got := stateValue(tt.state); got != tt.want {
			t.Errorf("stateValue(%v) = %v, want %v", tt.state, got, tt.want)
		}
	}
}
