/*
Package upload reads uploaded third-party record files into raw row
sequences for reconciliation.

PURPOSE:
  Insurer uploads arrive as CSV with arbitrary, insurer-specific column
  headers. This package does no interpretation at all: every cell stays
  raw text keyed by its column label. Column translation and
  normalization belong to the recon package.

FORMAT TOLERANCE:
  - Header row required; it defines the column labels
  - Rows may be ragged (missing trailing cells read as absent)
  - Extra cells beyond the header are dropped
  - Fully blank rows are skipped

SEE ALSO:
  - recon/mapping.go: Translation of these rows to canonical fields
*/
package upload

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HeshMedia/insurezeal-sub006/recon"
)

// CSVSource resolves file references against a base directory. It
// implements recon.UploadSource.
type CSVSource struct {
	dir string
}

// NewCSVSource creates a source rooted at dir. File references are
// resolved relative to it; absolute references are rejected so a
// reference can never escape the upload area.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// FetchUploadedRecords reads one uploaded CSV file into raw rows.
func (s *CSVSource) FetchUploadedRecords(fileRef string) ([]recon.Row, error) {
	if filepath.IsAbs(fileRef) || fileRef != filepath.Clean(fileRef) ||
		fileRef == ".." || strings.HasPrefix(fileRef, "../") {
		return nil, fmt.Errorf("invalid file reference %q", fileRef)
	}
	f, err := os.Open(filepath.Join(s.dir, fileRef))
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fileRef, err)
	}
	defer f.Close()
	return ReadRows(f)
}

// ReadRows parses CSV content into raw rows, header first.
func ReadRows(r io.Reader) ([]recon.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("upload is empty: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []recon.Row
	for line := 2; ; line++ {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := make(recon.Row, len(header))
		blank := true
		for i, label := range header {
			if i >= len(cells) {
				break
			}
			row[label] = cells[i]
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
