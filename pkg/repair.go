package xcpindex

import (
	"context"
	"fmt"
	"os"
)

// RepairOptions controls the repair pipeline
type RepairOptions struct {
	Rebuild    bool // write a repaired copy alongside the index
	Replace    bool // commit the repaired copy over the original
	TryMissing bool // fault injection: treat every dir as missing
	Tokens     int  // in-flight multibatches per phase (0 = default)
	Window     int  // batches consolidated per multibatch (0 = default)
}

// RepairReport summarises a repair run: the four session counts plus
// what was written and committed.
type RepairReport struct {
	Missing     int // dirs diagnosed missing
	Located     int // missing dirs found in some batch
	GotAncestry int // located dirs with a fully recovered chain
	Ancestries  int // recovered ancestry entries overall
	Rebuilt     bool
	Replaced    bool
	OldSize     int64
	NewSize     int64
}

// repairSession accumulates state across phases. Only the orchestrator
// goroutine touches it: workers get immutable snapshots and return
// deltas, folded here one result at a time.
type repairSession struct {
	missing     map[Handle]struct{}
	located     map[Handle]Entry
	gotAncestry map[Handle]struct{}
	ancestries  map[Handle]Entry
}

// Repair diagnoses an index's directory ancestry and optionally rebuilds
// and commits a repaired copy. Diagnosis alone never modifies anything.
func Repair(ctx context.Context, indexPath string, opts RepairOptions) (*RepairReport, error) {
	if opts.Replace && !opts.Rebuild {
		return nil, NewUsageError("option -replace requires -rebuild")
	}

	lock, err := acquireIndexLock(ctx, indexPath)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	overlayPath := indexPath + OverlaySuffix
	overlay, err := ReadOverlay(overlayPath)
	if err != nil {
		return nil, err
	}
	if len(overlay) > 0 {
		log.Infof("loaded %d rename records from %s", len(overlay), overlayPath)
	}

	reader, err := OpenIndex(indexPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	session := &repairSession{
		missing:     make(map[Handle]struct{}),
		located:     make(map[Handle]Entry),
		gotAncestry: make(map[Handle]struct{}),
		ancestries:  make(map[Handle]Entry),
	}
	report := &RepairReport{OldSize: reader.Size()}

	if err := session.diagnose(ctx, reader, overlay, opts); err != nil {
		return nil, err
	}
	report.Missing = len(session.missing)

	if len(session.missing) > 0 {
		reader.Rewind()
		if err := session.locate(ctx, reader, overlay, opts); err != nil {
			return nil, err
		}
	}
	report.Located = len(session.located)
	report.GotAncestry = len(session.gotAncestry)
	report.Ancestries = len(session.ancestries)

	if opts.Rebuild {
		if len(session.missing) == 0 {
			log.Infof("no missing directories, nothing to rebuild")
		} else {
			reader.Rewind()
			newSize, err := session.rebuild(ctx, reader, overlay, indexPath, opts)
			if err != nil {
				return nil, err
			}
			report.Rebuilt = true
			report.NewSize = newSize
			log.Infof("  index size old %d new %d", report.OldSize, newSize)

			if opts.Replace {
				if err := replaceIndex(indexPath); err != nil {
					return report, err
				}
				report.Replaced = true
			}
		}
	}

	log.Infof("repair summary: %d missing, %d located, %d with ancestry, %d ancestry entries",
		report.Missing, report.Located, report.GotAncestry, report.Ancestries)
	return report, nil
}

// diagnose runs phase 1: find the first missing ancestor of every broken
// chain across all multibatches.
func (s *repairSession) diagnose(ctx context.Context, reader *IndexReader, overlay map[Handle]Entry, opts RepairOptions) error {
	log.Infof("index diagnostics phase 1 (%s)", Diagnosing)
	stats := &phaseStats{phase: Diagnosing}
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go stats.reportProgress(statsCtx)

	err := runPhase(ctx, reader, overlay, opts.Window, opts.Tokens,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return diagnoseBatch(mb, opts.TryMissing)
		},
		func(res *PhaseResult) error {
			for _, h := range res.Missing {
				s.missing[h] = struct{}{}
			}
			stats.multibatches.Add(1)
			stats.entries.Add(int64(res.Entries))
			stats.missing.Store(int64(len(s.missing)))
			return nil
		})
	if err != nil {
		return err
	}
	log.Infof("  total missing %d", len(s.missing))
	return nil
}

// locate runs phase 2: search every multibatch for the missing dirs and
// their full ancestor chains.
func (s *repairSession) locate(ctx context.Context, reader *IndexReader, overlay map[Handle]Entry, opts RepairOptions) error {
	log.Infof("index diagnostics phase 2 (%s)", Locating)
	stats := &phaseStats{phase: Locating}
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go stats.reportProgress(statsCtx)

	// The snapshot is frozen here: workers read it while the consume
	// callback below grows the live session maps, so Resolved must be a
	// copy, never an alias of s.ancestries.
	snap := &Snapshot{
		Missing:  s.missing,
		Resolved: make(map[Handle]Entry, len(s.ancestries)),
	}
	for h, e := range s.ancestries {
		snap.Resolved[h] = e
	}
	err := runPhase(ctx, reader, overlay, opts.Window, opts.Tokens,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return locateBatch(mb, snap)
		},
		func(res *PhaseResult) error {
			for h, e := range res.Located {
				s.located[h] = e
			}
			for _, h := range res.GotAncestry {
				s.gotAncestry[h] = struct{}{}
			}
			for h, e := range res.Ancestries {
				s.ancestries[h] = e
			}
			stats.multibatches.Add(1)
			stats.located.Store(int64(len(s.located)))
			stats.gotAncestry.Store(int64(len(s.gotAncestry)))
			stats.ancestries.Store(int64(len(s.ancestries)))
			return nil
		})
	if err != nil {
		return err
	}
	log.Infof("  located %d of %d, full ancestry for %d (%d entries)",
		len(s.located), len(s.missing), len(s.gotAncestry), len(s.ancestries))
	return nil
}

// rebuild runs phase 3: overlay the recovered ancestries onto every
// multibatch and write the result to <index>.new. Each consolidated
// multibatch becomes one batch frame in the new index, appended in
// result-arrival order; batch order carries no meaning since every
// rebuilt batch is self-sufficient.
func (s *repairSession) rebuild(ctx context.Context, reader *IndexReader, overlay map[Handle]Entry, indexPath string, opts RepairOptions) (int64, error) {
	log.Infof("index diagnostics phase 3 (%s)", Rebuilding)
	stats := &phaseStats{phase: Rebuilding}
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	go stats.reportProgress(statsCtx)

	newPath := indexPath + RebuildSuffix
	writer, err := NewIndexWriter(newPath)
	if err != nil {
		return 0, err
	}
	defer writer.Close()

	snap := &Snapshot{Resolved: s.ancestries}
	err = runPhase(ctx, reader, overlay, opts.Window, opts.Tokens,
		func(mb *MultiBatch) (*PhaseResult, error) {
			return rebuildBatch(mb, snap)
		},
		func(res *PhaseResult) error {
			mb := res.Rebuilt
			stats.multibatches.Add(1)
			stats.entries.Add(int64(mb.Entries()))
			return writer.AppendBatch(&Batch{
				Files:    mb.Files,
				Dirs:     mb.Dirs,
				Ancestry: mb.Ancestry,
			})
		})
	if err != nil {
		os.Remove(newPath)
		return 0, err
	}
	if err := writer.Finalize(); err != nil {
		os.Remove(newPath)
		return 0, err
	}
	log.Infof("  rebuilt %d batches to %s", writer.Batches(), newPath)
	return writer.Size(), nil
}

// replaceIndex commits <index>.new over the index, moving the originals
// aside as .ORIG. A failure midway is reported with the renames that
// completed so the operator can recover by hand.
func replaceIndex(indexPath string) error {
	newPath := indexPath + RebuildSuffix
	overlayPath := indexPath + OverlaySuffix
	var completed []string

	rename := func(from, to string) error {
		desc := fmt.Sprintf("%s -> %s", from, to)
		if err := os.Rename(from, to); err != nil {
			return &PartialReplaceError{Completed: completed, Failed: desc, Err: err}
		}
		completed = append(completed, desc)
		log.Infof("  renamed %s", desc)
		return nil
	}

	if err := rename(indexPath, indexPath+BackupSuffix); err != nil {
		return err
	}
	if _, err := os.Stat(overlayPath); err == nil {
		// Rebuilt batches have the renames folded in; the overlay no
		// longer applies to the new index
		if err := rename(overlayPath, overlayPath+BackupSuffix); err != nil {
			return err
		}
	}
	return rename(newPath, indexPath)
}
