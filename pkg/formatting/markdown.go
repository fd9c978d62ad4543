package formatting

import (
	"fmt"
	"strings"
)

// Item is a single key/value line of a Markdown summary.
type Item struct {
	Key   string
	Value any
}

// Summary renders a level-one heading followed by a bullet per item
// in the form "- **key**: value".
func Summary(title string, items []Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(&b, "- **%s**: %v\n", it.Key, it.Value)
	}
	return b.String()
}

// Table renders a GitHub-flavored Markdown table. Pipes and newlines in
// cells are escaped so each row stays on one line.
func Table(headers []string, rows [][]string) string {
	var b strings.Builder
	writeRow(&b, headers)

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(&b, sep)

	for _, r := range rows {
		cells := make([]string, len(headers))
		copy(cells, r)
		writeRow(&b, cells)
	}
	return b.String()
}

// Truncate returns at most limit values joined by ", ", followed by a
// "(+N more)" marker when values were dropped.
func Truncate(values []string, limit int) string {
	if len(values) <= limit {
		return strings.Join(values, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(values[:limit], ", "), len(values)-limit)
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ")

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(cellEscaper.Replace(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
