/*
Package ingest reads the two external xlsx exports the engine consumes:
the MECANO attendance export and the BTL insurer export (the 40% bonus
file shares the BTL format).

PURPOSE:
  Keep all xlsx plumbing out of the engine. Readers return ordered rows
  as field-name-to-raw-value maps; dates and amounts stay unparsed, the
  engine normalizes them itself.

SEE ALSO:
  - recon/match.go: field names and the merge that consumes these rows
  - store/workbook: the system file (a different xlsx, different layout)
*/
package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// ReadMecano reads a MECANO attendance export: the first row is the
// header, every following row one day of attendance. Row order is
// preserved.
func ReadMecano(r io.Reader) ([]recon.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open attendance export: %w", err)
	}
	defer f.Close()
	return readTable(f, firstSheet(f), 1)
}

// ReadMecanoFile reads a MECANO attendance export from disk.
func ReadMecanoFile(path string) ([]recon.Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readTable(f, firstSheet(f), 1)
}

func firstSheet(f *excelize.File) string {
	list := f.GetSheetList()
	if len(list) == 0 {
		return ""
	}
	return list[0]
}

// readTable returns the rows below the given 1-based header row as
// field-name-to-value maps. Columns with a blank header are dropped.
func readTable(f *excelize.File, sheet string, headerRow int) ([]recon.Row, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < headerRow {
		return nil, nil
	}
	header := rows[headerRow-1]

	var out []recon.Row
	for _, raw := range rows[headerRow:] {
		row := make(recon.Row, len(header))
		empty := true
		for col, name := range header {
			if name == "" {
				continue
			}
			var v string
			if col < len(raw) {
				v = raw[col]
			}
			if v != "" {
				empty = false
			}
			row[name] = v
		}
		if empty {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
