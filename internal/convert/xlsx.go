// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExtractXLSX renders every sheet of the workbook as a Markdown pipe table
// under a "## <sheet>" heading. The first non-empty row is the header.
func ExtractXLSX(_ context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		table := pipeTable(rows)
		if table == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n", sheet, table)
	}
	return sb.String(), nil
}

// pipeTable renders rows as a Markdown table. Empty rows are dropped and
// short rows are padded to the widest row.
func pipeTable(rows [][]string) string {
	var kept [][]string
	width := 0
	for _, r := range rows {
		if isBlankRow(r) {
			continue
		}
		kept = append(kept, r)
		width = max(width, len(r))
	}
	if len(kept) == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(r []string) {
		sb.WriteByte('|')
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(r) {
				cell = tableCell(r[i])
			}
			sb.WriteString(" " + cell + " |")
		}
		sb.WriteByte('\n')
	}

	writeRow(kept[0])
	sb.WriteByte('|')
	for i := 0; i < width; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteByte('\n')
	for _, r := range kept[1:] {
		writeRow(r)
	}
	return sb.String()
}

func isBlankRow(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
