package core

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// PrintTable writes table as an ASCII table; the first row is the header.
func PrintTable(w io.Writer, table [][]string) {
	if len(table) == 0 {
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(table[0])
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, row := range table[1:] {
		tw.Append(row)
	}
	tw.Render()
}
