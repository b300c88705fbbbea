package xcpindex

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Phase identifies one pass of the repair pipeline
type Phase int

const (
	Diagnosing Phase = iota + 1
	Locating
	Rebuilding
)

func (p Phase) String() string {
	switch p {
	case Diagnosing:
		return "Diagnosing"
	case Locating:
		return "Locating"
	case Rebuilding:
		return "Rebuilding"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Snapshot is the immutable session state handed to phase workers. It is
// built once per phase and only read by workers; all mutation happens in
// the orchestrator when folding results.
type Snapshot struct {
	Missing  map[Handle]struct{} // dirs diagnosed missing, not yet resolved
	Resolved map[Handle]Entry    // dirs with transitively complete ancestry
}

// PhaseResult is a worker's delta for one multibatch. Folding results is
// commutative, so arrival order does not matter.
type PhaseResult struct {
	Seqs        []uint32
	Entries     int              // listing entries examined in this multibatch
	Missing     []Handle         // Diagnosing: first missing ancestor per broken chain
	Located     map[Handle]Entry // Locating: missing dirs found in this multibatch
	GotAncestry []Handle         // Locating: located dirs whose full chain was recovered
	Ancestries  map[Handle]Entry // Locating: recovered chain entries, root-complete
	Rebuilt     *MultiBatch      // Rebuilding: multibatch with repaired ancestry
}

// diagnoseBatch walks every listing entry's ancestor chain through the
// multibatch ancestry and reports the first missing ancestor of each
// broken chain. Ancestors past the first hole are deliberately not
// reported: they may only look missing because the chain broke early,
// and later repair rounds see them once the hole is filled. With
// tryMissing set, every listing dir's own handle is marked missing on
// top of the normal walk, exercising the locate/rebuild phases on a
// healthy index.
func diagnoseBatch(mb *MultiBatch, tryMissing bool) (*PhaseResult, error) {
	res := &PhaseResult{Seqs: mb.Seqs, Entries: mb.Entries()}

	// complete caches handles whose chain walked through to the root, so
	// shared ancestor prefixes are not re-walked per entry
	complete, err := lru.New[Handle, struct{}](walkCacheSize)
	if err != nil {
		return nil, err
	}

	reported := make(map[Handle]struct{})
	walk := func(start Handle) {
		var chain []Handle
		h := start
		for !h.IsNone() {
			if _, ok := complete.Get(h); ok {
				break
			}
			parent, ok := mb.Ancestry[h]
			if !ok {
				if _, dup := reported[h]; !dup {
					reported[h] = struct{}{}
					res.Missing = append(res.Missing, h)
				}
				return
			}
			chain = append(chain, h)
			h = parent.Parent
		}
		for _, c := range chain {
			complete.Add(c, struct{}{})
		}
	}

	for i := range mb.Files {
		walk(mb.Files[i].Parent)
	}
	for i := range mb.Dirs {
		walk(mb.Dirs[i].Parent)
	}

	if tryMissing {
		for i := range mb.Dirs {
			h := mb.Dirs[i].Handle
			if _, dup := reported[h]; !dup {
				reported[h] = struct{}{}
				res.Missing = append(res.Missing, h)
			}
		}
	}
	return res, nil
}

// fullAncestry walks h to the root through ancestry and returns the
// complete chain, or nil if any link is missing. No partial credit: a
// chain is only useful for path reconstruction if it reaches the root.
func fullAncestry(h Handle, ancestry map[Handle]Entry) map[Handle]Entry {
	chain := make(map[Handle]Entry)
	for !h.IsNone() {
		if _, ok := chain[h]; ok {
			// Parent cycle; treat as unreachable root
			return nil
		}
		e, ok := ancestry[h]
		if !ok {
			return nil
		}
		chain[h] = e
		h = e.Parent
	}
	return chain
}

// locateBatch searches one multibatch for globally missing dirs. A dir
// already resolved by an earlier result is skipped. Finding the dir and
// recovering its full chain are recorded independently: a located dir
// whose own ancestors are absent here may still be completed by a chain
// another multibatch recovers.
func locateBatch(mb *MultiBatch, snap *Snapshot) (*PhaseResult, error) {
	res := &PhaseResult{
		Seqs:       mb.Seqs,
		Located:    make(map[Handle]Entry),
		Ancestries: make(map[Handle]Entry),
	}

	for h := range snap.Missing {
		if _, done := snap.Resolved[h]; done {
			continue
		}
		if e, ok := mb.Ancestry[h]; ok {
			res.Located[h] = e
		}
		if chain := fullAncestry(h, mb.Ancestry); chain != nil {
			res.GotAncestry = append(res.GotAncestry, h)
			for ch, ce := range chain {
				res.Ancestries[ch] = ce
			}
		}
	}
	return res, nil
}

// rebuildBatch overlays the globally recovered ancestries onto one
// multibatch, making its broken chains whole. Recovered chains are
// root-complete, so the result is self-sufficient again.
func rebuildBatch(mb *MultiBatch, snap *Snapshot) (*PhaseResult, error) {
	for h, e := range snap.Resolved {
		mb.Ancestry[h] = e
	}
	return &PhaseResult{Seqs: mb.Seqs, Rebuilt: mb}, nil
}
