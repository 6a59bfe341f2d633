package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// wideColumnMax caps free-text columns so long engine error messages and
// script descriptions wrap instead of stretching the whole table.
const wideColumnMax = 60

type column struct {
	title string
	right bool // progress and count columns read better right-aligned
	wide  bool // engine messages and descriptions wrap at wideColumnMax
}

// textColumns builds plain left-aligned columns from titles.
func textColumns(titles ...string) []column {
	cols := make([]column, len(titles))
	for i, title := range titles {
		cols[i] = column{title: title}
	}
	return cols
}

func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col.title
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(cols))
		for i := range cols {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, col := range cols {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if col.right {
			cfg.Align = text.AlignRight
		}
		if col.wide {
			cfg.WidthMax = wideColumnMax
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
