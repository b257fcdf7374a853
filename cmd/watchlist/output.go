package main

import (
	"encoding/json"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column describes one table column. Cells wider than wrap are soft-wrapped.
type column struct {
	title string
	align text.Align
	wrap  int
}

const providerWrap = 40

func textColumn(title string) column {
	return column{title: title, align: text.AlignLeft, wrap: providerWrap}
}

func numberColumn(title string) column {
	return column{title: title, align: text.AlignRight}
}

// renderTable draws rows under columns. Short rows are padded with empty cells
// and extra cells are dropped.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	configs := make([]table.ColumnConfig, len(columns))
	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col.title
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       col.align,
			AlignHeader: text.AlignLeft,
		}
		if col.wrap > 0 {
			configs[i].WidthMax = col.wrap
			configs[i].WidthMaxEnforcer = text.WrapSoft
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range rows {
		tw.AppendRow(fitRow(cells, len(columns)))
	}
	return tw.Render()
}

func fitRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		row[i] = ""
		if i < len(cells) {
			row[i] = cells[i]
		}
	}
	return row
}

// writeJSON prints v indented with HTML escaping off, keeping provider names
// such as "Sky & NOW" intact.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
