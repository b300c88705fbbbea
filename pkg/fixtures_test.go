package xcpindex

import (
	"path/filepath"
	"testing"
	"time"
)

// testDir fabricates a directory entry under parent
func testDir(name string, parent Handle) Entry {
	return Entry{
		Handle:    NewHandle(),
		Parent:    parent,
		Kind:      EntryKindDir,
		Name:      name,
		Mode:      0755,
		MTimeWall: timeToWall(time.Now()),
		CTimeWall: timeToWall(time.Now()),
	}
}

// testFile fabricates a file entry under parent
func testFile(name string, parent Handle, size uint64) Entry {
	return Entry{
		Handle:    NewHandle(),
		Parent:    parent,
		Kind:      EntryKindFile,
		Name:      name,
		FileSize:  size,
		Mode:      0644,
		MTimeWall: timeToWall(time.Now()),
		CTimeWall: timeToWall(time.Now()),
	}
}

// ancestryOf builds an ancestry map from dir entries
func ancestryOf(dirs ...Entry) map[Handle]Entry {
	m := make(map[Handle]Entry, len(dirs))
	for _, d := range dirs {
		m[d.Handle] = d
	}
	return m
}

// writeTestIndex builds an index file under dir and returns its path
func writeTestIndex(t *testing.T, dir string, batches []*Batch) string {
	t.Helper()
	path := filepath.Join(dir, "scan"+IndexSuffix)
	if err := BuildIndex(path, batches); err != nil {
		t.Fatalf("failed to build test index: %v", err)
	}
	return path
}

// brokenScanIndex is the canonical repairable scenario: batch 0 indexes
// root and dir b with full ancestry, batch 1 indexes a file under b but
// lost b from its ancestry, so the file's chain breaks at b. Returns the
// batches plus the handles of root and b.
func brokenScanIndex() ([]*Batch, Handle, Handle) {
	root := testDir("root", HandleNone)
	b := testDir("b", root.Handle)
	f1 := testFile("f1", b.Handle, 100)

	batch0 := &Batch{
		Dirs:     []Entry{root, b},
		Ancestry: ancestryOf(root, b),
	}
	batch1 := &Batch{
		Files:    []Entry{f1},
		Ancestry: ancestryOf(), // b lost: f1's chain breaks immediately
	}
	return []*Batch{batch0, batch1}, root.Handle, b.Handle
}
