// Package export serializes transactions for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"spendboard/internal/core"
)

// Header is the first CSV row.
var Header = []string{"reason", "amount", "type", "category", "date"}

// Filename is the download name for an export of month m.
func Filename(m core.Month) string {
	return fmt.Sprintf("transactions_%s.csv", m.String())
}

// WriteCSV writes a header and one row per transaction, in order. Quoting of
// separators, quotes and newlines follows RFC 4180.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			tx.Reason,
			tx.Amount.String(),
			string(tx.Type),
			tx.Category,
			tx.Date.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", tx.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
