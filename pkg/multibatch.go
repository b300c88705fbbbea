package xcpindex

import (
	"fmt"
)

// MultiBatch consolidates a window of consecutive batches into one unit
// of work. Later batches carry fresher directory info than earlier ones,
// and the renames overlay is fresher still, so folding order is
// batch order first, overlay last.
type MultiBatch struct {
	Seqs     []uint32
	Files    []Entry
	Dirs     []Entry
	Ancestry map[Handle]Entry
}

// ConsolidateBatches folds a window of batches plus the renames overlay
// into a MultiBatch. Listing dir entries superseded by the overlay are
// replaced in place so phase workers only ever see latest-known info.
func ConsolidateBatches(batches []*Batch, overlay map[Handle]Entry) *MultiBatch {
	mb := &MultiBatch{
		Ancestry: make(map[Handle]Entry),
	}
	for _, batch := range batches {
		mb.Seqs = append(mb.Seqs, batch.Seq)
		mb.Files = append(mb.Files, batch.Files...)
		mb.Dirs = append(mb.Dirs, batch.Dirs...)
		for h, e := range batch.Ancestry {
			mb.Ancestry[h] = e
		}
	}
	for h, e := range overlay {
		if _, known := mb.Ancestry[h]; known {
			mb.Ancestry[h] = e
		}
		for i := range mb.Dirs {
			if mb.Dirs[i].Handle == h {
				mb.Dirs[i] = e
			}
		}
	}
	return mb
}

// Name labels the multibatch by its sequence range for logs
func (mb *MultiBatch) Name() string {
	if len(mb.Seqs) == 0 {
		return "mb []"
	}
	if len(mb.Seqs) == 1 {
		return fmt.Sprintf("mb [%d]", mb.Seqs[0])
	}
	return fmt.Sprintf("mb [%d..%d]", mb.Seqs[0], mb.Seqs[len(mb.Seqs)-1])
}

// Entries returns the listing entry count across the window
func (mb *MultiBatch) Entries() int {
	return len(mb.Files) + len(mb.Dirs)
}
