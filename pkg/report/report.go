// Package report renders the end-of-run summary table printed to stdout.
package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Summary accumulates label/value pairs in insertion order.
type Summary struct {
	labels []string
	values []string
}

// Add appends one row. Values are formatted with %v.
func (s *Summary) Add(label string, value any) {
	s.labels = append(s.labels, label)
	s.values = append(s.values, fmt.Sprintf("%v", value))
}

// String renders the summary as an aligned two-column table. Column widths
// use display width so wide characters keep the grid straight.
func (s *Summary) String() string {
	if len(s.labels) == 0 {
		return ""
	}

	labelWidth, valueWidth := 3, 3
	for i := range s.labels {
		if w := runewidth.StringWidth(s.labels[i]); w > labelWidth {
			labelWidth = w
		}

		if w := runewidth.StringWidth(s.values[i]); w > valueWidth {
			valueWidth = w
		}
	}

	var sb strings.Builder

	writeRule := func() {
		sb.WriteString("+")
		sb.WriteString(strings.Repeat("-", labelWidth+2))
		sb.WriteString("+")
		sb.WriteString(strings.Repeat("-", valueWidth+2))
		sb.WriteString("+\n")
	}

	writeCell := func(content string, width int) {
		sb.WriteString(" ")
		sb.WriteString(content)

		if padding := width - runewidth.StringWidth(content); padding > 0 {
			sb.WriteString(strings.Repeat(" ", padding))
		}

		sb.WriteString(" |")
	}

	writeRule()

	for i := range s.labels {
		sb.WriteString("|")
		writeCell(s.labels[i], labelWidth)
		writeCell(s.values[i], valueWidth)
		sb.WriteString("\n")
	}

	writeRule()

	return sb.String()
}
