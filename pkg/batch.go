package xcpindex

import (
	"unsafe"
)

// batchHeader frames one batch of entry records within an index file,
// in host byte order, cast directly to/from mmap'd memory.
type batchHeader struct {
	Marker        [4]byte // "xbat" batch / "xtrl" trailer
	Seq           uint32  // Batch sequence number within the file
	Size          uint64  // Total frame size including this header
	EntryCount    uint32  // Listing records (files and dirs)
	AncestryCount uint32  // Ancestry dir records following the listing
	_             [8]byte // Pad to 8-byte multiple, reserved
}

// batchHeaderSize is the on-disk frame header size in bytes
const batchHeaderSize = int(unsafe.Sizeof(batchHeader{}))

var _ [0]struct{} = [batchHeaderSize % 8]struct{}{}
var _ [0]struct{} = [batchHeaderSize - 32]struct{}{}

// Batch is one decoded batch: the files and directories it indexed plus
// the ancestry map of directories recorded for path reconstruction. A
// batch is self-sufficient when every listing entry's ancestor chain is
// present in Ancestry up to the root.
type Batch struct {
	Seq      uint32
	Files    []Entry
	Dirs     []Entry
	Ancestry map[Handle]Entry
}

// Entries returns the listing entry count
func (b *Batch) Entries() int {
	return len(b.Files) + len(b.Dirs)
}

// decodeBatchFrame decodes one frame starting at data[0]. It returns the
// decoded batch and the frame size consumed, or ErrEndOfIndex for the
// trailer. base is the frame's file offset, used for corruption reporting.
func decodeBatchFrame(data []byte, path string, base int64) (*Batch, int, error) {
	if len(data) < batchHeaderSize {
		return nil, 0, corruptf(path, base, "truncated frame header")
	}
	bh := (*batchHeader)(unsafe.Pointer(&data[0]))

	if bh.Marker == trailerMarker {
		if bh.Size != uint64(batchHeaderSize) || bh.EntryCount != 0 || bh.AncestryCount != 0 {
			return nil, 0, corruptf(path, base, "malformed trailer frame")
		}
		return nil, batchHeaderSize, ErrEndOfIndex
	}
	if bh.Marker != batchMarker {
		return nil, 0, corruptf(path, base, "bad frame marker %q", string(bh.Marker[:]))
	}

	size := int(bh.Size)
	if size < batchHeaderSize || size%8 != 0 {
		return nil, 0, corruptf(path, base, "invalid frame size %d", size)
	}
	if size > len(data) {
		return nil, 0, corruptf(path, base, "frame overruns file")
	}

	batch := &Batch{
		Seq:      bh.Seq,
		Ancestry: make(map[Handle]Entry, bh.AncestryCount),
	}

	body := data[batchHeaderSize:size]
	off := batchHeaderSize
	for i := uint32(0); i < bh.EntryCount; i++ {
		e, n, reason := decodeEntry(body)
		if reason != "" {
			return nil, 0, corruptf(path, base+int64(off), "%s", reason)
		}
		if e.IsDir() {
			batch.Dirs = append(batch.Dirs, e)
		} else {
			batch.Files = append(batch.Files, e)
		}
		body = body[n:]
		off += n
	}
	for i := uint32(0); i < bh.AncestryCount; i++ {
		e, n, reason := decodeEntry(body)
		if reason != "" {
			return nil, 0, corruptf(path, base+int64(off), "%s", reason)
		}
		if !e.IsDir() {
			return nil, 0, corruptf(path, base+int64(off), "non-directory ancestry record")
		}
		batch.Ancestry[e.Handle] = e
		body = body[n:]
		off += n
	}
	if len(body) != 0 {
		return nil, 0, corruptf(path, base+int64(off), "trailing bytes in frame")
	}

	return batch, size, nil
}
