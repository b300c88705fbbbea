package xcpindex

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// IndexReader streams decoded batches out of a memory-mapped index file.
// Decoded entries are copied out of the mapping, so batches stay valid
// after Close. Rewind restarts the stream for the next repair phase.
type IndexReader struct {
	path   string
	file   *os.File
	data   []byte
	offset int   // current frame offset
	size   int64 // file size
	done   bool  // trailer reached
}

// OpenIndex maps an index file and validates its header. An unclean file
// is readable (checksum validation is skipped) so a crashed build can
// still be diagnosed; a clean file with a bad checksum is corrupt.
func OpenIndex(path string) (*IndexReader, error) {
	return openFramedFile(path, indexSignature)
}

func openFramedFile(path string, signature [4]byte) (*IndexReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if stat.Size() < int64(HeaderSize) {
		file.Close()
		return nil, corruptf(path, 0, "file too small for header: %d bytes", stat.Size())
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}

	r := &IndexReader{
		path:   path,
		file:   file,
		data:   data,
		offset: HeaderSize,
		size:   stat.Size(),
	}
	if err := r.validateHeader(signature); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *IndexReader) validateHeader(signature [4]byte) error {
	header := (*indexHeader)(unsafe.Pointer(&r.data[0]))
	if err := header.ValidateSignature(signature); err != nil {
		return corruptf(r.path, 0, "%v", err)
	}
	if err := header.ValidateByteOrder(); err != nil {
		return corruptf(r.path, 0, "%v", err)
	}
	if err := header.ValidateVersion(CurrentIndexVersion); err != nil {
		return corruptf(r.path, 0, "%v", err)
	}
	if header.IsClean() {
		if err := header.validateChecksum(r.data[HeaderSize:]); err != nil {
			return corruptf(r.path, 0, "%v", err)
		}
	} else {
		log.Warnf("index %s was not finalised cleanly, skipping checksum validation", r.path)
	}
	return nil
}

// Header returns a copy of the index file header
func (r *IndexReader) Header() indexHeader {
	return *(*indexHeader)(unsafe.Pointer(&r.data[0]))
}

// Size returns the index file size in bytes
func (r *IndexReader) Size() int64 {
	return r.size
}

// NextBatch decodes and returns the next batch frame. It returns
// ErrEndOfIndex after the trailer; a file that ends without a trailer,
// or carries bytes after it, is corrupt.
func (r *IndexReader) NextBatch() (*Batch, error) {
	if r.done {
		return nil, ErrEndOfIndex
	}
	if r.offset >= len(r.data) {
		return nil, corruptf(r.path, int64(r.offset), "index ends without trailer")
	}

	batch, n, err := decodeBatchFrame(r.data[r.offset:], r.path, int64(r.offset))
	if errors.Is(err, ErrEndOfIndex) {
		if r.offset+n != len(r.data) {
			return nil, corruptf(r.path, int64(r.offset+n), "data after trailer frame")
		}
		r.done = true
		return nil, ErrEndOfIndex
	}
	if err != nil {
		return nil, err
	}
	r.offset += n
	return batch, nil
}

// NextWindow reads up to n consecutive batches for multi-batch
// consolidation. It returns ErrEndOfIndex only when no batches remain.
func (r *IndexReader) NextWindow(n int) ([]*Batch, error) {
	var batches []*Batch
	for len(batches) < n {
		batch, err := r.NextBatch()
		if errors.Is(err, ErrEndOfIndex) {
			if len(batches) == 0 {
				return nil, ErrEndOfIndex
			}
			return batches, nil
		}
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// Rewind restarts the batch stream from the first frame
func (r *IndexReader) Rewind() {
	r.offset = HeaderSize
	r.done = false
}

// Close unmaps and closes the index file
func (r *IndexReader) Close() error {
	if r.data != nil {
		if err := unix.Munmap(r.data); err != nil {
			return fmt.Errorf("failed to unmap %s: %w", r.path, err)
		}
		r.data = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", r.path, err)
		}
		r.file = nil
	}
	return nil
}

// ReadOverlay folds an index's renames overlay file into a single
// dir-info map, later records winning. A missing overlay is an empty
// map: most indexes never saw a rename.
func ReadOverlay(path string) (map[Handle]Entry, error) {
	r, err := openFramedFile(path, overlaySignature)
	if err != nil {
		if os.IsNotExist(err) {
			return map[Handle]Entry{}, nil
		}
		return nil, err
	}
	defer r.Close()

	overlay := make(map[Handle]Entry)
	for {
		batch, err := r.NextBatch()
		if errors.Is(err, ErrEndOfIndex) {
			break
		}
		if err != nil {
			return nil, err
		}
		for h, e := range batch.Ancestry {
			e.Flags |= EntryFlagOverlay
			overlay[h] = e
		}
		for _, e := range batch.Dirs {
			e.Flags |= EntryFlagOverlay
			overlay[e.Handle] = e
		}
	}
	return overlay, nil
}
