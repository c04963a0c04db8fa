package arbiter

import (
	"context"
	"sync"

	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
)

// Outcome is the result of one entry of a batch.
type Outcome struct {
	Result combat.Result
	Err    error
}

// SimulateMany runs independent simulations on a bounded worker pool and keeps
// request order. Cancellation is observed between simulations only; a running
// simulation always completes.
func (s *Service) SimulateMany(ctx context.Context, inputs []input.Combat, workers int) ([]Outcome, error) {
	outcomes := make([]Outcome, len(inputs))
	if len(inputs) == 0 {
		return outcomes, ctx.Err()
	}
	if workers <= 0 {
		workers = s.workers
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				//1.- Each slot is written by exactly one worker so no lock is needed.
				if err := ctx.Err(); err != nil {
					outcomes[index] = Outcome{Err: err}
					continue
				}
				result, err := s.Simulate(ctx, inputs[index])
				outcomes[index] = Outcome{Result: result, Err: err}
			}
		}()
	}
	for index := range inputs {
		jobs <- index
	}
	close(jobs)
	wg.Wait()
	return outcomes, ctx.Err()
}
