package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"vibedocs/internal/checkpoint"
	"vibedocs/internal/documents"
	"vibedocs/internal/generation"
	"vibedocs/internal/pipeline"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

var docHeaders = []string{"#", "Document", "File", "Status", "Size"}
var docAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight}

// machineTable renders the per-document state of a run.
func machineTable(m *generation.Machine) string {
	rows := make([][]string, 0, documents.Count)
	for i, d := range m.Docs() {
		status := string(d.Status)
		if d.Status == pipeline.JobError && d.Error != "" {
			status += ": " + truncate(d.Error, 48)
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1), documents.Title(d.Key), documents.FileName(d.Key), status, size(d.Content),
		})
	}
	return renderTable(docHeaders, rows, docAligns)
}

// checkpointTable renders what a saved checkpoint holds.
func checkpointTable(cp *checkpoint.Checkpoint) string {
	failed := map[documents.Key]bool{}
	for _, k := range cp.FailedDocs {
		failed[k] = true
	}
	rows := make([][]string, 0, documents.Count)
	for i, k := range documents.Keys() {
		status, content := "pending", ""
		if c, ok := cp.CompletedDocs[k]; ok {
			status, content = "completed", c
		} else if failed[k] {
			status = "failed"
		}
		rows = append(rows, []string{
			fmt.Sprint(i + 1), documents.Title(k), documents.FileName(k), status, size(content),
		})
	}
	return renderTable(docHeaders, rows, docAligns)
}

func size(content string) string {
	if content == "" {
		return "-"
	}
	n := len(content)
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
