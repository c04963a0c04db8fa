package arbiter

import (
	"context"
	"errors"
	"testing"

	"autobattler/arbiter/internal/input"
)

func TestSimulateManyKeepsOrderAndMatchesSequential(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()
	inputs := make([]input.Combat, 12)
	for i := range inputs {
		inputs[i] = compactCombat("batch", int64(1000+i))
	}
	inputs[5].Round = 0

	outcomes, err := svc.SimulateMany(ctx, inputs, 4)
	if err != nil {
		t.Fatalf("simulate many: %v", err)
	}
	for i, outcome := range outcomes {
		if i == 5 {
			var verr *input.ValidationError
			if !errors.As(outcome.Err, &verr) {
				t.Fatalf("entry 5 should fail validation, got %v", outcome.Err)
			}
			continue
		}
		if outcome.Err != nil {
			t.Fatalf("entry %d: %v", i, outcome.Err)
		}
		single, err := svc.Simulate(ctx, inputs[i])
		if err != nil {
			t.Fatalf("sequential %d: %v", i, err)
		}
		if single.ResultHash != outcome.Result.ResultHash {
			t.Fatalf("entry %d differs from sequential run", i)
		}
	}
}

func TestSimulateManyHonoursCancellation(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, err := svc.SimulateMany(ctx, []input.Combat{compactCombat("a", 1), compactCombat("b", 2)}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for i, outcome := range outcomes {
		if !errors.Is(outcome.Err, context.Canceled) {
			t.Fatalf("entry %d should be cancelled, got %v", i, outcome.Err)
		}
	}
}
