package xcpindex

import (
	"encoding/hex"
	"errors"
)

// BatchInfo summarises one batch frame for inspection
type BatchInfo struct {
	Seq      uint32 `json:"seq"`
	Files    int    `json:"files"`
	Dirs     int    `json:"dirs"`
	Ancestry int    `json:"ancestry"`
}

// IndexInfo summarises an index file's header and frames
type IndexInfo struct {
	Path          string      `json:"path"`
	Size          int64       `json:"size"`
	Version       uint32      `json:"version"`
	Clean         bool        `json:"clean"`
	Checksum      string      `json:"checksum"`
	BatchCount    uint32      `json:"batch_count"`
	TotalFiles    int         `json:"total_files"`
	TotalDirs     int         `json:"total_dirs"`
	TotalAncestry int         `json:"total_ancestry"`
	Batches       []BatchInfo `json:"batches"`
}

// InspectIndex decodes an index's header and per-batch summary
func InspectIndex(path string) (*IndexInfo, error) {
	reader, err := OpenIndex(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	header := reader.Header()
	info := &IndexInfo{
		Path:       path,
		Size:       reader.Size(),
		Version:    header.Version,
		Clean:      header.IsClean(),
		Checksum:   hex.EncodeToString(header.Checksum[:]),
		BatchCount: header.BatchCount,
	}

	for {
		batch, err := reader.NextBatch()
		if errors.Is(err, ErrEndOfIndex) {
			break
		}
		if err != nil {
			return nil, err
		}
		info.Batches = append(info.Batches, BatchInfo{
			Seq:      batch.Seq,
			Files:    len(batch.Files),
			Dirs:     len(batch.Dirs),
			Ancestry: len(batch.Ancestry),
		})
		info.TotalFiles += len(batch.Files)
		info.TotalDirs += len(batch.Dirs)
		info.TotalAncestry += len(batch.Ancestry)
	}
	return info, nil
}
