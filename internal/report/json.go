// Package report writes the aggregated crawl snapshot for downstream
// consumers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/formpick/picklist-crawler/internal/catalog"
)

// WriteJSON writes the snapshot as a JSON array to w.
func WriteJSON(w io.Writer, records []catalog.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []catalog.Record{}
	}
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Write sends the snapshot to path, with "-" (or empty) meaning stdout.
func Write(path string, records []catalog.Record) error {
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, records)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := WriteJSON(file, records); err != nil {
		closeErr := file.Close()
		if closeErr != nil {
			return fmt.Errorf("%w (close report file: %v)", err, closeErr)
		}
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}
