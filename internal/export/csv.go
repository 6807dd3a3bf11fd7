// Package export serializes completed assets to the stock metadata CSV.
//
// The format is fixed by what stock agencies ingest: title, description and
// the joined keyword list are always double-quote wrapped with internal
// quotes doubled, while the filename is written as-is. encoding/csv only
// quotes fields that need it, so the rows are written by hand.
package export

import (
	"fmt"
	"io"
	"strings"

	"stockstudio/internal/asset"
)

// Filename is the fixed download name for the exported document.
const Filename = "stock_metadata.csv"

var header = []string{"Filename", "Title", "Description", "Keywords"}

// WriteCSV writes the header row plus one row per completed asset with
// metadata, in the given collection order. Assets in any other state are
// silently excluded; an empty qualifying set produces a header-only
// document.
func WriteCSV(w io.Writer, assets []asset.Asset) error {
	lines := []string{strings.Join(header, ",")}
	for _, a := range assets {
		if a.Status != asset.StatusCompleted || a.Metadata == nil {
			continue
		}
		fields := []string{
			a.Name,
			quote(a.Metadata.Title),
			quote(a.Metadata.Description),
			quote(strings.Join(a.Metadata.Keywords, ", ")),
		}
		lines = append(lines, strings.Join(fields, ","))
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")+"\n"); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// quote wraps a field in double quotes, doubling internal quotes.
func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
