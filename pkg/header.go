package xcpindex

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"unsafe"
)

// indexHeader is the fixed-size file header in host byte order, cast
// directly to/from mmap'd memory. ByteOrder MUST be checked before any
// other multi-byte field is interpreted.
type indexHeader struct {
	Signature    [4]byte  // "xidx" index / "xrnm" overlay
	Version      uint32   // File format version (host order)
	ByteOrder    uint64   // Byte order detection magic (0x0102030405060708)
	BatchCount   uint32   // Number of batch frames (excludes trailer)
	Flags        uint16   // Index flags (Clean)
	ChecksumType uint16   // Checksum algorithm type
	Checksum     [20]byte // SHA-1 of all frame data following the header
	_            [4]byte  // Pad to 8-byte multiple
}

// HeaderSize is the on-disk header size in bytes
const HeaderSize = int(unsafe.Sizeof(indexHeader{}))

// Compile-time layout assertions: the header must pack without implicit
// padding and stay 8-byte aligned so frames start aligned.
var _ [0]struct{} = [HeaderSize % 8]struct{}{}
var _ [0]struct{} = [HeaderSize - 48]struct{}{}

// ValidateSignature checks if the signature matches the expected value
func (ih *indexHeader) ValidateSignature(expected [4]byte) error {
	if ih.Signature != expected {
		return fmt.Errorf("invalid signature: got %q, expected %q",
			string(ih.Signature[:]), string(expected[:]))
	}
	return nil
}

// ValidateByteOrder checks if the byte order matches the host machine
func (ih *indexHeader) ValidateByteOrder() error {
	if ih.ByteOrder != ByteOrderMagic {
		return fmt.Errorf("byte order mismatch: file byte order 0x%016x does not match host byte order 0x%016x",
			ih.ByteOrder, ByteOrderMagic)
	}
	return nil
}

// ValidateVersion checks if the version is supported
func (ih *indexHeader) ValidateVersion(expected uint32) error {
	if ih.Version != expected {
		return fmt.Errorf("unsupported version: got %d, expected %d", ih.Version, expected)
	}
	return nil
}

// IsClean reports whether the file was finalised cleanly. Value
// receiver so it can be called on the copy Header() returns.
func (ih indexHeader) IsClean() bool {
	return ih.Flags&IndexFlagClean != 0
}

// setHeader initialises all non-checksum fields
func (ih *indexHeader) setHeader(signature [4]byte, version uint32, batchCount uint32, flags uint16, checksumType uint16) {
	ih.Signature = signature
	ih.ByteOrder = ByteOrderMagic
	ih.Version = version
	ih.BatchCount = batchCount
	ih.Flags = flags
	ih.ChecksumType = checksumType
}

// headerBytes returns the header's on-disk byte representation
func (ih *indexHeader) headerBytes() []byte {
	return (*[HeaderSize]byte)(unsafe.Pointer(ih))[:]
}

// validateChecksum verifies the stored checksum against the frame data.
// The checksum covers only the bytes after the header, so a writer can
// hash frames incrementally while appending and fill the header last.
func (ih *indexHeader) validateChecksum(frameData []byte) error {
	if ih.ChecksumType != ChecksumSHA1 {
		return fmt.Errorf("unsupported checksum type %d", ih.ChecksumType)
	}
	sum := sha1.Sum(frameData)
	if !bytes.Equal(sum[:], ih.Checksum[:]) {
		return fmt.Errorf("checksum mismatch: expected %x, got %x", sum, ih.Checksum)
	}
	return nil
}
