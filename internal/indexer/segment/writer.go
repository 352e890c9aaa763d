// Package segment persists index snapshots as immutable on-disk segment
// files and reads them back. A segment holds a term dictionary plus JSON
// posting lists, framed by a fixed-size header and a CRC-checked footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/studykit/qadex/internal/indexer/index"
)

// MagicBytes identifies a valid .qdx segment file ("QDX1").
const (
	MagicBytes    uint32 = 0x51445831
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileSuffix           = ".qdx"
)

// Header is the fixed-size header written at the start of every segment.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	EntryCount uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
}

// DictEntry maps a term to its postings offset, length, and entry frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	EntryFreq  int    `json:"d"`
}

// Writer serialises TermEntry slices into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file containing the given term
// entries. It writes to a .tmp file first and renames on success, returning
// the segment file name.
func (w *Writer) Write(entries []index.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileSuffix)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(entries)))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart, _ := f.Seek(0, 1)
	dict := make([]DictEntry, 0, len(entries))
	entryIDs := make(map[string]struct{})
	for _, entry := range entries {
		offset, _ := f.Seek(0, 1)
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: offset - postingsStart,
			PostLen:    len(postingsData),
			EntryFreq:  len(entry.Postings),
		})
		for _, p := range entry.Postings {
			entryIDs[p.EntryID] = struct{}{}
		}
	}

	postingsEnd, _ := f.Seek(0, 1)
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(entryIDs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(postingsEnd))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(postingsEnd-postingsStart))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	// Back-fill the offsets the first header write could not know yet.
	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(len(entryIDs)))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(postingsEnd))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(postingsEnd-postingsStart))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
