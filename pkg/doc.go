// Package xcpindex reads, diagnoses and repairs batch-structured scan
// index files whose directory ancestry may be incomplete.
//
// A scan index is written by parallel workers covering disjoint subtrees,
// so the metadata needed to reconstruct a directory's full path can land
// in a different batch than the directory's own entry. Repair runs three
// phases over the index:
//
//	report, err := xcpindex.Repair(ctx, "/path/to/scan.xidx", xcpindex.RepairOptions{
//		Rebuild: true,
//		Replace: true,
//	})
//
// Diagnosing finds directories whose ancestor chain breaks inside their
// own batch window, Locating searches every batch for the missing
// directories and their complete chains, and Rebuilding writes a new
// index in which every batch is self-sufficient again. Without the
// Rebuild option nothing on disk is modified.
//
// # Index access
//
// OpenIndex streams decoded batches out of a memory-mapped index:
//
//	reader, err := xcpindex.OpenIndex(path)
//	defer reader.Close()
//	for {
//		batch, err := reader.NextBatch()
//		if errors.Is(err, xcpindex.ErrEndOfIndex) {
//			break
//		}
//		...
//	}
//
// IndexWriter and BuildIndex cover the append side, including the
// trailer frame and the clean-finalize protocol.
package xcpindex
