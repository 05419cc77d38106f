package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pmt/internal/writer"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// renderTable lays rows out under headers. Short rows are padded and extra
// cells are dropped.
func renderTable(out io.Writer, headers []string, rows [][]string, aligns []columnAlignment) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleDefault)
	if isTerminal(out) {
		tw.SetStyle(table.StyleRounded)
	}
	tw.AppendHeader(toRow(headers, len(headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(headers)))
	}
	configs := make([]table.ColumnConfig, len(headers))
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
		if i < len(aligns) && aligns[i] == alignRight {
			configs[i].Align = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printResult renders per-kind counts followed by writer warnings.
func printResult(out io.Writer, result *writer.Result) {
	if result == nil {
		return
	}
	rows := make([][]string, 0, len(result.Counts)+1)
	for _, kind := range result.Kinds() {
		c := result.Counts[kind]
		rows = append(rows, []string{string(kind), strconv.Itoa(c.Created), strconv.Itoa(c.Updated), strconv.Itoa(c.Skipped)})
	}
	total := result.Totals()
	rows = append(rows, []string{"total", strconv.Itoa(total.Created), strconv.Itoa(total.Updated), strconv.Itoa(total.Skipped)})
	fmt.Fprintf(out, "Writer %s -> %s\n", result.Writer, result.Target)
	fmt.Fprintln(out, renderTable(out,
		[]string{"Kind", "Created", "Updated", "Skipped"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}

// sortRows orders rows by their first column.
func sortRows(rows [][]string) {
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
}
