package xcpindex

// File signatures for the index family of files
var (
	indexSignature   = [4]byte{'x', 'i', 'd', 'x'} // completed sync index
	overlaySignature = [4]byte{'x', 'r', 'n', 'm'} // renames overlay file
)

// Batch frame markers
var (
	batchMarker   = [4]byte{'x', 'b', 'a', 't'} // data batch frame
	trailerMarker = [4]byte{'x', 't', 'r', 'l'} // closing trailer frame
)

// Byte order magic for file format validation
const ByteOrderMagic uint64 = 0x0102030405060708

// CurrentIndexVersion is the supported index file format version
const CurrentIndexVersion uint32 = 1

// Index header flags
const (
	IndexFlagClean uint16 = 1 << 0 // Index file was finalised cleanly
)

// Checksum type constants
const (
	ChecksumSHA1 uint16 = 1 // SHA-1 (20 bytes)
)

// Entry kind constants
const (
	EntryKindFile uint16 = 1
	EntryKindDir  uint16 = 2
)

// Entry flags
const (
	EntryFlagOverlay uint16 = 1 << 0 // Entry came from the renames overlay
)

// File naming conventions
const (
	IndexSuffix   = ".xidx"    // catalog index file suffix
	OverlaySuffix = ".renames" // renames overlay next to the index
	RebuildSuffix = ".new"     // uncommitted rebuilt index
	BackupSuffix  = ".ORIG"    // renamed-aside originals during replace
	LockSuffix    = ".lock"    // advisory repair lock
)

// Pipeline tuning defaults
const (
	DefaultTokens  = 5  // in-flight batch processing units per phase
	DefaultWindow  = 8  // physical batches consolidated per multibatch
	DefaultWorkers = 4  // reserved for config compatibility; tokens bound concurrency
)

// walkCacheSize bounds the per-multibatch ancestry walk memoisation cache
const walkCacheSize = 65536
