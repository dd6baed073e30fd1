/*
btl.go - Fixed-position reader for the BTL insurer export

FORMAT (positional, set by the payer, not negotiable):
  row 3  col 2: batch (mana) number
  row 10 col 2: payment date
  row 12:       column headers
  row 13+:      data rows; trailer rows carry a blank identity field and
                are dropped

The 40% bonus export uses the same shape and goes through the same
reader; the merge engine decides how to treat the rows.
*/
package ingest

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/yelush19/Litay-Panda-miluim/recon"
)

// Fixed positions in the BTL export, 1-based.
const (
	btlBatchRow  = 3
	btlDateRow   = 10
	btlMetaCol   = 2
	btlHeaderRow = 12
)

// ReadBTL reads a BTL (or 40% bonus) export. name is recorded as the
// source filename on every imported record.
func ReadBTL(r io.Reader, name string) (*recon.InsurerFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open insurer export: %w", err)
	}
	defer f.Close()
	return readBTL(f, name)
}

// ReadBTLFile reads a BTL (or 40% bonus) export from disk.
func ReadBTLFile(path string) (*recon.InsurerFile, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return readBTL(f, filepath.Base(path))
}

func readBTL(f *excelize.File, name string) (*recon.InsurerFile, error) {
	sheet := firstSheet(f)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) < btlHeaderRow {
		return nil, fmt.Errorf("%s: insurer export too short (%d rows)", name, len(rows))
	}

	data, err := readTable(f, sheet, btlHeaderRow)
	if err != nil {
		return nil, err
	}

	// Trailer rows (totals lines) carry no identity.
	kept := data[:0]
	for _, row := range data {
		if row[recon.FieldIdentity] == "" {
			continue
		}
		kept = append(kept, row)
	}

	return &recon.InsurerFile{
		BatchNumber: at(rows, btlBatchRow, btlMetaCol),
		PaymentDate: at(rows, btlDateRow, btlMetaCol),
		Rows:        kept,
		SourceFile:  name,
	}, nil
}

// at returns the cell at 1-based (row, col), "" when absent.
func at(rows [][]string, row, col int) string {
	if row > len(rows) {
		return ""
	}
	r := rows[row-1]
	if col > len(r) {
		return ""
	}
	return r[col-1]
}
