package report

import (
	"strconv"
	"strings"
)

// Table renders rows as a column-aligned table under a subsection header.
// Numeric columns are right-justified, text columns left-justified; ties in
// the underlying query keep the order the query produced. maxRows caps the
// rendered rows when positive.
func (r *Reporter) Table(title string, headers []string, rows [][]string, maxRows int) {
	r.Subsection(title)

	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	if len(rows) == 0 {
		r.Line("(no data)")
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) && len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	numeric := numericColumns(headers, rows)

	format := func(row []string) string {
		parts := make([]string, len(headers))
		for i := range headers {
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if numeric[i] {
				parts[i] = pad(val, widths[i], true)
			} else {
				parts[i] = pad(val, widths[i], false)
			}
		}
		return strings.Join(parts, " ")
	}

	r.Line(format(headers))

	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w)
	}
	r.Line(strings.Join(rules, " "))

	for _, row := range rows {
		r.Line(format(row))
	}
}

// numericColumns marks each column whose every non-empty cell parses as a
// number. Header text is not considered.
func numericColumns(headers []string, rows [][]string) []bool {
	numeric := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = true
	}
	for _, row := range rows {
		for i := range headers {
			if !numeric[i] || i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if cell == "" {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric[i] = false
			}
		}
	}
	return numeric
}

func pad(s string, width int, right bool) string {
	if len(s) >= width {
		return s
	}
	fill := strings.Repeat(" ", width-len(s))
	if right {
		return fill + s
	}
	return s + fill
}
