package xcpindex

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// processFunc runs one phase's work on a consolidated multibatch
type processFunc func(mb *MultiBatch) (*PhaseResult, error)

// consumeFunc folds one result into session state; called only from the
// orchestrator goroutine, so no locking is needed on the state it updates
type consumeFunc func(res *PhaseResult) error

// runPhase streams batch windows through a pool of workers under token
// flow control. The token pool starts full; dispatching a multibatch
// consumes a token and consuming its result returns it, so at most
// `tokens` multibatches are in flight and memory stays bounded no matter
// how large the index is. Results arrive in completion order, not
// dispatch order.
func runPhase(ctx context.Context, reader *IndexReader, overlay map[Handle]Entry, window, tokens int, process processFunc, consume consumeFunc) error {
	if window <= 0 {
		window = DefaultWindow
	}
	if tokens <= 0 {
		tokens = DefaultTokens
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tok := make(chan struct{}, tokens)
	for i := 0; i < tokens; i++ {
		tok <- struct{}{}
	}
	results := make(chan *PhaseResult, tokens)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			batches, err := reader.NextWindow(window)
			if errors.Is(err, ErrEndOfIndex) {
				return nil
			}
			if err != nil {
				return err
			}

			select {
			case <-tok:
			case <-gctx.Done():
				return gctx.Err()
			}

			mb := ConsolidateBatches(batches, overlay)
			g.Go(func() error {
				res, err := process(mb)
				if err != nil {
					return err
				}
				select {
				case results <- res:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
	})

	// Close results once dispatcher and all workers are done, so the
	// consume loop below terminates
	waitErr := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(results)
		waitErr <- err
	}()

	var consumeErr error
	for res := range results {
		if consumeErr == nil {
			if err := consume(res); err != nil {
				consumeErr = err
				cancel()
			}
		}
		tok <- struct{}{}
	}

	err := <-waitErr
	if consumeErr != nil {
		// The group error is just the cancellation fallout
		return consumeErr
	}
	return err
}
