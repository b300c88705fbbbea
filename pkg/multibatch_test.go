package xcpindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateLaterBatchWins(t *testing.T) {
	root := testDir("root", HandleNone)
	d := testDir("old-name", root.Handle)

	renamed := d
	renamed.Name = "new-name"

	early := &Batch{Seq: 0, Dirs: []Entry{d}, Ancestry: ancestryOf(root, d)}
	late := &Batch{Seq: 1, Ancestry: ancestryOf(renamed)}

	mb := ConsolidateBatches([]*Batch{early, late}, nil)
	require.Contains(t, mb.Ancestry, d.Handle)
	assert.Equal(t, "new-name", mb.Ancestry[d.Handle].Name)
	assert.Equal(t, []uint32{0, 1}, mb.Seqs)
	assert.Equal(t, 1, mb.Entries())
}

func TestConsolidateOverlayWins(t *testing.T) {
	root := testDir("root", HandleNone)
	d := testDir("scan-time-name", root.Handle)

	moved := d
	moved.Name = "renamed"
	moved.Parent = HandleNone // moved to the top during the scan
	overlay := map[Handle]Entry{d.Handle: moved}

	batch := &Batch{Dirs: []Entry{d}, Ancestry: ancestryOf(root, d)}
	mb := ConsolidateBatches([]*Batch{batch}, overlay)

	// Both the ancestry map and the listing entry reflect the overlay
	assert.Equal(t, "renamed", mb.Ancestry[d.Handle].Name)
	assert.Equal(t, HandleNone, mb.Ancestry[d.Handle].Parent)
	require.Len(t, mb.Dirs, 1)
	assert.Equal(t, "renamed", mb.Dirs[0].Name)
}

func TestConsolidateOverlayIgnoresUnknownHandles(t *testing.T) {
	root := testDir("root", HandleNone)
	stranger := testDir("elsewhere", HandleNone)
	overlay := map[Handle]Entry{stranger.Handle: stranger}

	batch := &Batch{Ancestry: ancestryOf(root)}
	mb := ConsolidateBatches([]*Batch{batch}, overlay)

	assert.NotContains(t, mb.Ancestry, stranger.Handle,
		"overlay records replace known dirs, they do not introduce new ones")
}

func TestMultiBatchName(t *testing.T) {
	assert.Equal(t, "mb []", (&MultiBatch{}).Name())
	assert.Equal(t, "mb [7]", (&MultiBatch{Seqs: []uint32{7}}).Name())
	assert.Equal(t, "mb [2..5]", (&MultiBatch{Seqs: []uint32{2, 3, 4, 5}}).Name())
}
