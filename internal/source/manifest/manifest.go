// Package manifest reads the episode manifest CSV that drives text extraction.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/timmy/stash/internal/domain"
)

// Well-known manifest columns.
const (
	ColumnFileName = "file_name"
	ColumnSeason   = "season"
	ColumnEpisode  = "episode"
	ColumnChecksum = "checksum"
)

// LoadFile reads every data row of the manifest at path.
func LoadFile(path string) ([]domain.ManifestEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	entries, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Read parses a manifest with a header row. Cells are trimmed and empty
// cells are treated as absent. Rows may be shorter than the header.
func Read(r io.Reader) ([]domain.ManifestEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[i] = name
	}

	var entries []domain.ManifestEntry
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read manifest row %d: %w", row, err)
		}
		if isBlank(record) {
			row--
			continue
		}
		entries = append(entries, newEntry(row, columns, record))
	}
	return entries, nil
}

func newEntry(row int, columns, record []string) domain.ManifestEntry {
	entry := domain.ManifestEntry{
		Row:     row,
		Columns: make(map[string]string, len(columns)),
	}
	for i, name := range columns {
		if name == "" {
			continue
		}
		entry.Order = append(entry.Order, name)
		if i < len(record) {
			if v := strings.TrimSpace(record[i]); v != "" {
				entry.Columns[name] = v
			}
		}
	}
	entry.FileName = entry.Columns[ColumnFileName]
	entry.Season = entry.Columns[ColumnSeason]
	entry.Episode = entry.Columns[ColumnEpisode]
	return entry
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
