package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ReportHeader is the first line of an inventory report.
const ReportHeader = "Items Report"

// Report writes the header followed by one "<item> -> <quantity>" line per entry.
func (inv *Inventory) Report(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, ReportHeader); err != nil {
		return err
	}
	for _, e := range inv.Items() {
		if _, err := fmt.Fprintf(bw, "%s -> %d\n", e.Item, e.Quantity); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// PrintData writes the report to standard output.
func (inv *Inventory) PrintData() error {
	return inv.Report(os.Stdout)
}
