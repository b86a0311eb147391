package document

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nikhilbhutani/docconvert/internal/models"
)

// sheet is one table-shaped region of a spreadsheet-like input.
type sheet struct {
	name  string
	table models.Table
}

func readXLSX(r io.Reader) ([]sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var sheets []sheet
	for i, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read worksheet %q: %w", name, err)
		}
		rows = dropEmptyRows(rows)
		if len(rows) == 0 {
			continue
		}
		page := i + 1
		sheets = append(sheets, sheet{name: name, table: newTable(len(sheets), &page, rows)})
	}
	return sheets, nil
}

func readCSV(r io.Reader) ([]sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	rows = dropEmptyRows(rows)
	if len(rows) == 0 {
		return nil, nil
	}
	page := 1
	return []sheet{{name: "Sheet1", table: newTable(0, &page, rows)}}, nil
}

// newTable treats the first row as the header and pads ragged rows.
func newTable(index int, page *int, rows [][]string) models.Table {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	norm := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, width)
		for j, cell := range r {
			row[j] = strings.TrimSpace(cell)
		}
		norm[i] = row
	}

	t := models.Table{
		ID:      fmt.Sprintf("table_%d", index),
		Page:    page,
		Headers: norm[0],
		Rows:    norm[1:],
	}
	if t.Rows == nil {
		t.Rows = [][]string{}
	}
	t.Markdown = TableMarkdown(t.Headers, t.Rows)
	return t
}

func dropEmptyRows(rows [][]string) [][]string {
	out := rows[:0]
	for _, r := range rows {
		for _, cell := range r {
			if strings.TrimSpace(cell) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// TableMarkdown renders a GitHub-flavoured pipe table.
func TableMarkdown(headers []string, rows [][]string) string {
	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = strings.ReplaceAll(cells[i], "|", `\|`)
				cell = strings.ReplaceAll(cell, "\n", " ")
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(headers)
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeRow(r)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// markdownTables finds pipe tables in markdown text.
func markdownTables(text string, startIndex int) []models.Table {
	var (
		tables []models.Table
		block  []string
	)
	flush := func() {
		if len(block) >= 2 && isDelimiterRow(block[1]) {
			rows := [][]string{splitPipeRow(block[0])}
			for _, line := range block[2:] {
				rows = append(rows, splitPipeRow(line))
			}
			tables = append(tables, newTable(startIndex+len(tables), nil, rows))
		}
		block = block[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") {
			block = append(block, trimmed)
			continue
		}
		flush()
	}
	flush()
	return tables
}

func splitPipeRow(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func isDelimiterRow(line string) bool {
	for _, cell := range splitPipeRow(line) {
		if strings.Trim(cell, ":-") != "" || !strings.Contains(cell, "-") {
			return false
		}
	}
	return true
}
