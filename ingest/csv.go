// Package ingest supplies each party's raw identifier sequence from its
// private data source. The protocol core never reads storage directly; it
// only ever sees the ordered identifier strings this package returns.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadColumn extracts one named column from a CSV file with a header row.
// An empty column name selects the first column. It returns the column's
// values in file order, untouched: normalization policy (including rejection
// of empty identifiers) belongs to the token layer, not here.
func ReadColumn(path string, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return readColumn(f, column, path)
}

func readColumn(r io.Reader, column, name string) ([]string, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", name, err)
	}

	col := 0
	if column != "" {
		col = -1
		for i, h := range header {
			if h == column {
				col = i
				break
			}
		}
		if col == -1 {
			return nil, fmt.Errorf("column %q not found in %s", column, name)
		}
	}

	var values []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		values = append(values, record[col])
	}
	return values, nil
}
