package xcpindex

import (
	"context"
	"sync/atomic"
	"time"
)

// phaseStats tracks running counters for one phase, updated by the
// orchestrator and read by the progress reporter goroutine.
type phaseStats struct {
	phase        Phase
	multibatches atomic.Int64
	entries      atomic.Int64
	missing      atomic.Int64
	located      atomic.Int64
	gotAncestry  atomic.Int64
	ancestries   atomic.Int64
}

// statsInterval is how often progress is logged for long phases
const statsInterval = 5 * time.Second

// reportProgress logs running counters until ctx is cancelled. Started
// per phase; stop by cancelling ctx.
func (s *phaseStats) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logProgress()
		}
	}
}

func (s *phaseStats) logProgress() {
	switch s.phase {
	case Diagnosing:
		log.Infof("  %s: %d multibatches, %d entries, %d missing",
			s.phase, s.multibatches.Load(), s.entries.Load(), s.missing.Load())
	case Locating:
		log.Infof("  %s: %d multibatches, %d located, %d with ancestry, %d ancestry entries",
			s.phase, s.multibatches.Load(), s.located.Load(), s.gotAncestry.Load(), s.ancestries.Load())
	case Rebuilding:
		log.Infof("  %s: %d multibatches, %d entries rewritten",
			s.phase, s.multibatches.Load(), s.entries.Load())
	}
}
