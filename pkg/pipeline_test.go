package xcpindex

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineTestIndex(t *testing.T, batchCount int) *IndexReader {
	t.Helper()
	root := testDir("root", HandleNone)
	var batches []*Batch
	for i := 0; i < batchCount; i++ {
		batches = append(batches, &Batch{
			Files:    []Entry{testFile("f", root.Handle, uint64(i))},
			Ancestry: ancestryOf(root),
		})
	}
	path := writeTestIndex(t, t.TempDir(), batches)
	reader, err := OpenIndex(path)
	require.NoError(t, err)
	t.Cleanup(func() { reader.Close() })
	return reader
}

func TestRunPhaseProcessesEveryWindow(t *testing.T) {
	reader := pipelineTestIndex(t, 10)

	var seen []uint32
	err := runPhase(context.Background(), reader, nil, 3, 2,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return &PhaseResult{Seqs: mb.Seqs}, nil
		},
		func(res *PhaseResult) error {
			seen = append(seen, res.Seqs...)
			return nil
		})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestRunPhaseBoundsInFlightWork(t *testing.T) {
	reader := pipelineTestIndex(t, 12)
	const tokens = 3

	var inFlight, peak atomic.Int32
	err := runPhase(context.Background(), reader, nil, 1, tokens,
		func(mb *MultiBatch) (*PhaseResult, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return &PhaseResult{Seqs: mb.Seqs}, nil
		},
		func(res *PhaseResult) error { return nil })
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(tokens),
		"in-flight multibatches must never exceed the token pool")
}

func TestRunPhasePropagatesProcessError(t *testing.T) {
	reader := pipelineTestIndex(t, 8)
	boom := errors.New("boom")

	err := runPhase(context.Background(), reader, nil, 1, 2,
		func(mb *MultiBatch) (*PhaseResult, error) {
			if mb.Seqs[0] == 4 {
				return nil, boom
			}
			return &PhaseResult{Seqs: mb.Seqs}, nil
		},
		func(res *PhaseResult) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestRunPhasePropagatesConsumeError(t *testing.T) {
	reader := pipelineTestIndex(t, 8)
	boom := errors.New("fold failed")

	count := 0
	err := runPhase(context.Background(), reader, nil, 1, 2,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return &PhaseResult{Seqs: mb.Seqs}, nil
		},
		func(res *PhaseResult) error {
			count++
			if count == 3 {
				return boom
			}
			return nil
		})
	assert.ErrorIs(t, err, boom)
}

func TestRunPhaseHonoursCancellation(t *testing.T) {
	reader := pipelineTestIndex(t, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runPhase(ctx, reader, nil, 1, 2,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return &PhaseResult{Seqs: mb.Seqs}, nil
		},
		func(res *PhaseResult) error { return nil })
	// A cancelled run either finished the little work it had or reports
	// the cancellation; it must not hang
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
