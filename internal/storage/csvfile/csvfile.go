// Package csvfile reads and writes the tabular export of normalized rows.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/JakeFAU/vacancy-crawler/internal/vacancy"
)

// Write encodes rows under a header of vacancy.Columns.
func Write(w io.Writer, rows []vacancy.NormalizedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(vacancy.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return fmt.Errorf("write row %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Read decodes an export. Columns are located by header name, so exports
// with reordered or extra columns load too; the id column is required.
func Read(r io.Reader) ([]vacancy.NormalizedRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: empty input")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	if _, ok := index["id"]; !ok {
		return nil, fmt.Errorf("read header: missing id column")
	}

	var rows []vacancy.NormalizedRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row, err := vacancy.RowFromRecord(index, record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}

// ReadFile decodes the export at path.
func ReadFile(path string) ([]vacancy.NormalizedRow, error) {
	f, err := os.Open(path) // #nosec G304 -- path is operator supplied.
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}
