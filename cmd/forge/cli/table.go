package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
)

// table renders aligned columns with a colored header. Cells of the last
// column are truncated to fit the terminal when stdout is one.
type table struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

func newTable(w io.Writer, headers ...string) *table {
	return &table{w: w, headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) render() {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	last := len(widths) - 1
	if limit := terminalWidth(); limit > 0 && last >= 0 {
		used := 0
		for _, w := range widths[:last] {
			used += w + 2
		}
		if avail := limit - used; avail >= 10 && widths[last] > avail {
			widths[last] = avail
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	for i, h := range t.headers {
		header.Fprint(t.w, pad(h, widths[i], i == last))
		if i < last {
			fmt.Fprint(t.w, "  ")
		}
	}
	fmt.Fprintln(t.w)

	rule := color.New(color.FgHiBlack)
	for i, w := range widths {
		rule.Fprint(t.w, strings.Repeat("─", w))
		if i < last {
			fmt.Fprint(t.w, "  ")
		}
	}
	fmt.Fprintln(t.w)

	for _, row := range t.rows {
		for i, cell := range row {
			if i > last {
				break
			}
			fmt.Fprint(t.w, pad(truncate(cell, widths[i]), widths[i], i == last))
			if i < last {
				fmt.Fprint(t.w, "  ")
			}
		}
		fmt.Fprintln(t.w)
	}
}

// pad right-pads s to width. The last column is not padded.
func pad(s string, width int, last bool) string {
	if last || len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, width int) string {
	if len(s) <= width || width < 4 {
		return s
	}
	return s[:width-3] + "..."
}

// terminalWidth returns the width of stdout, or 0 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// printStats prints one line of object counts for a snapshot.
func printStats(w io.Writer, service string, st catalog.Stats) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s", service)
	fmt.Fprintf(w, ": %d schemas, %d tables, %d views, %d functions, %d procedures, %d triggers\n",
		st.Schemas, st.Tables, st.Views, st.Functions, st.Procedures, st.Triggers)
}
