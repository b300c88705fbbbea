package xcpindex

import (
	"time"
	"unsafe"
)

// binaryEntry is the fixed prefix of an on-disk entry record in host byte
// order, cast directly to/from mmap'd memory. Size is first so records can
// be chained without decoding the rest. Name holds the first 8 bytes of the
// null-terminated name region; the record is padded to an 8-byte multiple.
type binaryEntry struct {
	Size      uint32   // Total record size including name and padding
	Kind      uint16   // EntryKindFile / EntryKindDir
	Flags     uint16   // Entry flags (Overlay)
	Handle    Handle   // Opaque filesystem identity
	Parent    Handle   // Parent directory handle (zero = no parent)
	FileSize  uint64   // File size in bytes (0 for directories)
	MTimeWall uint64   // Modification time, wall encoding
	CTimeWall uint64   // Change time, wall encoding
	Mode      uint32   // Unix mode bits
	UID       uint32   // Owner uid
	GID       uint32   // Owner gid
	_         uint32   // Pad Name to 8-byte offset
	Name      [8]byte  // Start of null-terminated name region
}

const (
	// binaryEntrySize is the minimum record size (name of up to 7 bytes)
	binaryEntrySize = int(unsafe.Sizeof(binaryEntry{}))
	// entryFixedSize is the record offset where the name region starts
	entryFixedSize = int(unsafe.Offsetof(binaryEntry{}.Name))
	// maxEntrySize bounds record sizes during chained decoding
	maxEntrySize = 64 * 1024
)

// Layout assertions: records must stay 8-byte aligned end to end
var _ [0]struct{} = [binaryEntrySize % 8]struct{}{}
var _ [0]struct{} = [binaryEntrySize - 88]struct{}{}

// Entry is a decoded index entry, copied out of the mapping
type Entry struct {
	Handle    Handle
	Parent    Handle
	Kind      uint16
	Flags     uint16
	Name      string
	FileSize  uint64
	Mode      uint32
	UID       uint32
	GID       uint32
	MTimeWall uint64
	CTimeWall uint64
}

// IsDir reports whether the entry describes a directory
func (e *Entry) IsDir() bool {
	return e.Kind == EntryKindDir
}

// MTime decodes the wall-encoded modification time
func (e *Entry) MTime() time.Time {
	return wallToTime(e.MTimeWall)
}

// CTime decodes the wall-encoded change time
func (e *Entry) CTime() time.Time {
	return wallToTime(e.CTimeWall)
}

// timeToWall packs a time into 34 bits of seconds and 30 bits of nanoseconds
func timeToWall(t time.Time) uint64 {
	return uint64(t.Unix())<<30 | uint64(t.Nanosecond())
}

// wallToTime unpacks the wall encoding
func wallToTime(w uint64) time.Time {
	return time.Unix(int64(w>>30), int64(w&(1<<30-1)))
}

// encodedEntrySize returns the padded record size for a name
func encodedEntrySize(name string) int {
	size := entryFixedSize + len(name) + 1 // fixed prefix + name + null
	return (size + 7) &^ 7
}

// encodeEntry appends the on-disk record for e to buf and returns the
// extended slice. The record is built in an aligned scratch header then
// copied, so buf itself needs no alignment.
func encodeEntry(buf []byte, e *Entry) []byte {
	size := encodedEntrySize(e.Name)

	var be binaryEntry
	be.Size = uint32(size)
	be.Kind = e.Kind
	be.Flags = e.Flags
	be.Handle = e.Handle
	be.Parent = e.Parent
	be.FileSize = e.FileSize
	be.MTimeWall = e.MTimeWall
	be.CTimeWall = e.CTimeWall
	be.Mode = e.Mode
	be.UID = e.UID
	be.GID = e.GID

	raw := (*[binaryEntrySize]byte)(unsafe.Pointer(&be))[:entryFixedSize]
	buf = append(buf, raw...)
	buf = append(buf, e.Name...)
	for pad := size - entryFixedSize - len(e.Name); pad > 0; pad-- {
		buf = append(buf, 0)
	}
	return buf
}

// decodeEntry decodes one chained record starting at data[0] and returns
// the entry plus the record size, or a corruption reason. The name is
// recovered by scanning backward from the end of the record past padding
// nulls, which avoids storing a separate name length.
func decodeEntry(data []byte) (Entry, int, string) {
	if len(data) < binaryEntrySize {
		return Entry{}, 0, "truncated entry record"
	}
	be := (*binaryEntry)(unsafe.Pointer(&data[0]))
	size := int(be.Size)
	if size < binaryEntrySize || size > maxEntrySize || size%8 != 0 {
		return Entry{}, 0, "invalid entry size"
	}
	if size > len(data) {
		return Entry{}, 0, "entry record overruns frame"
	}
	if be.Kind != EntryKindFile && be.Kind != EntryKindDir {
		return Entry{}, 0, "invalid entry kind"
	}

	nameEnd := size
	for nameEnd > entryFixedSize && data[nameEnd-1] == 0 {
		nameEnd--
	}

	e := Entry{
		Handle:    be.Handle,
		Parent:    be.Parent,
		Kind:      be.Kind,
		Flags:     be.Flags,
		Name:      string(data[entryFixedSize:nameEnd]),
		FileSize:  be.FileSize,
		Mode:      be.Mode,
		UID:       be.UID,
		GID:       be.GID,
		MTimeWall: be.MTimeWall,
		CTimeWall: be.CTimeWall,
	}
	return e, size, ""
}
