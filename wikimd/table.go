package wikimd

import (
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

type tableCell struct {
	text   string
	header bool
}

// tableModel is a rectangular grid: every emitted row has len(header) cells.
type tableModel struct {
	header []string
	rows   [][]string
}

var cellEscaper = strings.NewReplacer("\n", "<br>", "|", `\|`)

// renderTable renders a table as a pipe table, or as an HTML table block
// when a cell holds another table.
func (c *converter) renderTable(n *html.Node) string {
	if hasNestedTable(n) {
		return c.renderHTMLTable(n)
	}

	var rows [][]tableCell
	for _, tr := range tableRows(n) {
		var cells []tableCell
		for _, td := range tableCells(tr) {
			text := cellEscaper.Replace(strings.TrimSpace(c.cellContent(td)))
			cells = append(cells, tableCell{text: text, header: dom.NodeName(td) == "th"})
		}
		rows = append(rows, cells)
	}

	m, ok := newTableModel(rows)
	if !ok {
		return ""
	}
	return m.String() + "\n"
}

// newTableModel uses the first row as header when it has header cells;
// otherwise an empty header of the same width is synthesised and the first
// row stays data.
func newTableModel(rows [][]tableCell) (*tableModel, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	m := &tableModel{}
	first := rows[0]
	data := rows
	if hasHeaderCell(first) {
		m.header = cellTexts(first)
		data = rows[1:]
	} else {
		m.header = make([]string, len(first))
	}
	if len(m.header) == 0 {
		width := 0
		for _, r := range data {
			width = max(width, len(r))
		}
		if width == 0 {
			return nil, false
		}
		m.header = make([]string, width)
	}
	for _, r := range data {
		m.rows = append(m.rows, fitRow(cellTexts(r), len(m.header)))
	}
	return m, true
}

func hasHeaderCell(row []tableCell) bool {
	for _, c := range row {
		if c.header {
			return true
		}
	}
	return false
}

func cellTexts(row []tableCell) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.text
	}
	return out
}

// fitRow pads short rows with empty cells and truncates long ones.
func fitRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

func (m *tableModel) String() string {
	var b strings.Builder
	writeTableLine(&b, m.header)
	sep := make([]string, len(m.header))
	for i := range sep {
		sep[i] = "---"
	}
	writeTableLine(&b, sep)
	for _, r := range m.rows {
		writeTableLine(&b, r)
	}
	return b.String()
}

func writeTableLine(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		if cell == "" {
			b.WriteString(" |")
			continue
		}
		b.WriteString(" " + cell + " |")
	}
	b.WriteString("\n")
}

// tableRows returns the rows of n in document order, looking through
// thead/tbody/tfoot but not into nested tables.
func tableRows(n *html.Node) []*html.Node {
	var rows []*html.Node
	for _, ch := range childElements(n) {
		switch dom.NodeName(ch) {
		case "tr":
			rows = append(rows, ch)
		case "thead", "tbody", "tfoot":
			for _, tr := range childElements(ch) {
				if dom.NodeName(tr) == "tr" {
					rows = append(rows, tr)
				}
			}
		}
	}
	return rows
}

func tableCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for _, ch := range childElements(tr) {
		if name := dom.NodeName(ch); name == "td" || name == "th" {
			cells = append(cells, ch)
		}
	}
	return cells
}

func hasNestedTable(n *html.Node) bool {
	for _, tr := range tableRows(n) {
		for _, td := range tableCells(tr) {
			if firstDescendant(td, "table") != nil {
				return true
			}
		}
	}
	return false
}

// cellContent renders a cell for a single pipe-table line. Lists become
// "• item" / "N. item" lines instead of block lists.
func (c *converter) cellContent(n *html.Node) string {
	var b strings.Builder
	newline := func() {
		if strings.TrimSpace(b.String()) != "" {
			b.WriteString("\n")
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		switch classify(ch) {
		case kindText:
			if strings.TrimSpace(ch.Data) != "" {
				b.WriteString(ch.Data)
			}
		case kindIgnored:
		case kindList, kindTaskList:
			newline()
			b.WriteString(c.cellList(ch, func(int) string { return "• " }))
		case kindOrderedList:
			newline()
			b.WriteString(c.cellList(ch, func(i int) string { return strconv.Itoa(i+1) + ". " }))
		case kindParagraph:
			content := c.inline(ch)
			if strings.TrimSpace(content) != "" {
				newline()
			}
			b.WriteString(content)
		case kindBreak:
			b.WriteString("\n")
		case kindContainer:
			b.WriteString(c.cellContent(ch))
		default:
			b.WriteString(c.renderBlock(ch))
		}
	}
	return b.String()
}

func (c *converter) cellList(n *html.Node, marker func(int) string) string {
	var items []string
	for _, li := range childElements(n) {
		if dom.NodeName(li) != "li" {
			continue
		}
		items = append(items, marker(len(items))+strings.TrimSpace(c.inline(li)))
	}
	return strings.Join(items, "\n")
}

// renderHTMLTable emits the table as an HTML block. Cell contents are
// Markdown separated from the tags by blank lines.
func (c *converter) renderHTMLTable(n *html.Node) string {
	var b strings.Builder
	b.WriteString("\n<table>\n")
	for _, tr := range tableRows(n) {
		b.WriteString("\n<tr>\n")
		for _, td := range tableCells(tr) {
			tag := dom.NodeName(td)
			content := strings.TrimSpace(c.renderChildren(td))
			b.WriteString("\n<" + tag + ">\n\n" + content + "\n\n</" + tag + ">\n")
		}
		b.WriteString("\n</tr>\n")
	}
	b.WriteString("\n</table>\n\n")
	return b.String()
}
