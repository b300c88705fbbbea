package xcpindex

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"hash"
	"os"
	"sort"
	"syscall"
	"unsafe"

	"github.com/google/vectorio"
)

// maxIovecs caps iovecs per writev call below any platform IOV_MAX
const maxIovecs = 1024

// IndexWriter appends batch frames to a new index file using writev, one
// iovec per record. The header is written last: the file stays marked
// unclean until Finalize lands the frame checksum and Clean flag.
type IndexWriter struct {
	path      string
	signature [4]byte
	file      *os.File
	hasher    hash.Hash // running SHA-1 of all frame bytes
	batches   uint32
	nextSeq   uint32
	size      int64
	finalized bool
}

// NewIndexWriter creates path and writes a placeholder unclean header
func NewIndexWriter(path string) (*IndexWriter, error) {
	return newFramedWriter(path, indexSignature)
}

// NewOverlayWriter creates a renames overlay file writer
func NewOverlayWriter(path string) (*IndexWriter, error) {
	return newFramedWriter(path, overlaySignature)
}

func newFramedWriter(path string, signature [4]byte) (*IndexWriter, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := &IndexWriter{
		path:      path,
		signature: signature,
		file:      file,
		hasher:    sha1.New(),
	}

	var header indexHeader
	header.setHeader(signature, CurrentIndexVersion, 0, 0, ChecksumSHA1)
	if _, err := file.Write(header.headerBytes()); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
	}
	w.size = int64(HeaderSize)
	return w, nil
}

// AppendBatch encodes one batch frame and appends it. Ancestry records
// are written in handle order so rebuilding the same batch twice yields
// identical bytes.
func (w *IndexWriter) AppendBatch(batch *Batch) error {
	if w.finalized {
		return fmt.Errorf("index writer for %s already finalized", w.path)
	}

	// One encoded buffer per record, referenced by one iovec each
	records := make([][]byte, 0, batch.Entries()+len(batch.Ancestry))
	for i := range batch.Files {
		records = append(records, encodeEntry(nil, &batch.Files[i]))
	}
	for i := range batch.Dirs {
		records = append(records, encodeEntry(nil, &batch.Dirs[i]))
	}

	handles := make([]Handle, 0, len(batch.Ancestry))
	for h := range batch.Ancestry {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return bytes.Compare(handles[i][:], handles[j][:]) < 0
	})
	for _, h := range handles {
		e := batch.Ancestry[h]
		records = append(records, encodeEntry(nil, &e))
	}

	frameSize := batchHeaderSize
	for _, rec := range records {
		frameSize += len(rec)
	}

	bh := batchHeader{
		Marker:        batchMarker,
		Seq:           w.nextSeq,
		Size:          uint64(frameSize),
		EntryCount:    uint32(batch.Entries()),
		AncestryCount: uint32(len(batch.Ancestry)),
	}
	headerBuf := (*[batchHeaderSize]byte)(unsafe.Pointer(&bh))[:]

	iovecs := make([]syscall.Iovec, 0, len(records)+1)
	iovecs = append(iovecs, syscall.Iovec{Base: &headerBuf[0], Len: uint64(len(headerBuf))})
	for _, rec := range records {
		iovecs = append(iovecs, syscall.Iovec{Base: &rec[0], Len: uint64(len(rec))})
	}

	if err := w.writev(iovecs); err != nil {
		return err
	}

	w.hasher.Write(headerBuf)
	for _, rec := range records {
		w.hasher.Write(rec)
	}
	w.size += int64(frameSize)
	w.batches++
	w.nextSeq++
	return nil
}

// writev writes iovecs in chunks below the platform iovec limit
func (w *IndexWriter) writev(iovecs []syscall.Iovec) error {
	for offset := 0; offset < len(iovecs); offset += maxIovecs {
		end := offset + maxIovecs
		if end > len(iovecs) {
			end = len(iovecs)
		}
		chunk := iovecs[offset:end]
		var want uint64
		for _, iov := range chunk {
			want += iov.Len
		}
		n, err := vectorio.WritevRaw(uintptr(w.file.Fd()), chunk)
		if err != nil {
			return fmt.Errorf("failed to write batch to %s: %w", w.path, err)
		}
		if uint64(n) != want {
			return fmt.Errorf("short write to %s: wrote %d of %d bytes", w.path, n, want)
		}
	}
	return nil
}

// Size returns the bytes written so far including the header
func (w *IndexWriter) Size() int64 {
	return w.size
}

// Batches returns the number of batch frames appended
func (w *IndexWriter) Batches() uint32 {
	return w.batches
}

// Finalize appends the trailer frame and rewrites the header with the
// frame checksum and Clean flag, then syncs. The file is only trusted
// by readers once this completes.
func (w *IndexWriter) Finalize() error {
	if w.finalized {
		return fmt.Errorf("index writer for %s already finalized", w.path)
	}

	trailer := batchHeader{
		Marker: trailerMarker,
		Size:   uint64(batchHeaderSize),
	}
	trailerBuf := (*[batchHeaderSize]byte)(unsafe.Pointer(&trailer))[:]
	if _, err := w.file.Write(trailerBuf); err != nil {
		return fmt.Errorf("failed to write trailer to %s: %w", w.path, err)
	}
	w.hasher.Write(trailerBuf)
	w.size += int64(batchHeaderSize)

	var header indexHeader
	header.setHeader(w.signature, CurrentIndexVersion, w.batches, IndexFlagClean, ChecksumSHA1)
	copy(header.Checksum[:], w.hasher.Sum(nil))
	if _, err := w.file.WriteAt(header.headerBytes(), 0); err != nil {
		return fmt.Errorf("failed to write final header to %s: %w", w.path, err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	w.finalized = true
	return nil
}

// BuildIndex writes a complete index file from in-memory batches
func BuildIndex(path string, batches []*Batch) error {
	return buildFramedFile(path, batches, NewIndexWriter)
}

// BuildOverlay writes a renames overlay file from in-memory batches
func BuildOverlay(path string, batches []*Batch) error {
	return buildFramedFile(path, batches, NewOverlayWriter)
}

func buildFramedFile(path string, batches []*Batch, create func(string) (*IndexWriter, error)) error {
	w, err := create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	for _, batch := range batches {
		if err := w.AppendBatch(batch); err != nil {
			return err
		}
	}
	return w.Finalize()
}

// Close closes the underlying file; an unfinalized file stays unclean
func (w *IndexWriter) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
