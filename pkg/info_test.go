package xcpindex

import (
	"testing"
)

func TestInspectIndex(t *testing.T) {
	root := testDir("root", HandleNone)
	sub := testDir("sub", root.Handle)
	batches := []*Batch{
		{
			Files:    []Entry{testFile("a", root.Handle, 1), testFile("b", root.Handle, 2)},
			Dirs:     []Entry{sub},
			Ancestry: ancestryOf(root, sub),
		},
		{
			Files:    []Entry{testFile("c", sub.Handle, 3)},
			Ancestry: ancestryOf(root, sub),
		},
	}
	path := writeTestIndex(t, t.TempDir(), batches)

	info, err := InspectIndex(path)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if !info.Clean {
		t.Error("expected clean index")
	}
	if info.BatchCount != 2 || len(info.Batches) != 2 {
		t.Errorf("batch count: header %d, frames %d", info.BatchCount, len(info.Batches))
	}
	if info.TotalFiles != 3 || info.TotalDirs != 1 || info.TotalAncestry != 4 {
		t.Errorf("totals: %d files %d dirs %d ancestry", info.TotalFiles, info.TotalDirs, info.TotalAncestry)
	}
	if len(info.Checksum) != 40 {
		t.Errorf("checksum hex length: %d", len(info.Checksum))
	}
}
