package wikimd

import (
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// renderList renders ul, ol and task lists. Nested lists found directly
// inside an item are indented two spaces per level; the outermost list is
// followed by a blank line.
func (c *converter) renderList(n *html.Node, level int) string {
	kind := classify(n)
	indent := strings.Repeat("  ", level)

	var b strings.Builder
	index := 1
	for _, li := range childElements(n) {
		if dom.NodeName(li) != "li" {
			continue
		}

		var marker string
		switch kind {
		case kindOrderedList:
			marker = strconv.Itoa(index) + ". "
			index++
		case kindTaskList:
			if dom.HasClass(li, "checked") {
				marker = "- [x] "
			} else {
				marker = "- [ ] "
			}
		default:
			marker = "- "
		}

		parts := c.listItem(li, level)
		head := ""
		if len(parts) > 0 && !parts[0].nested {
			head, parts = parts[0].text, parts[1:]
		}
		pad := writeItem(&b, indent, marker, head)
		for _, p := range parts {
			if p.nested {
				b.WriteString(p.text)
				continue
			}
			writeIndented(&b, pad, strings.Split(p.text, "\n"))
		}
	}

	if level == 0 {
		b.WriteString("\n")
	}
	return b.String()
}

// itemPart is a run of item content or one rendered nested list.
type itemPart struct {
	text   string
	nested bool
}

// listItem splits an item into content runs and nested lists, keeping
// source order.
func (c *converter) listItem(li *html.Node, level int) []itemPart {
	var parts []itemPart
	var run strings.Builder
	flush := func() {
		if t := strings.TrimSpace(run.String()); t != "" {
			parts = append(parts, itemPart{text: t})
		}
		run.Reset()
	}
	for ch := li.FirstChild; ch != nil; ch = ch.NextSibling {
		switch classify(ch) {
		case kindText:
			run.WriteString(ch.Data)
		case kindList, kindTaskList, kindOrderedList:
			flush()
			parts = append(parts, itemPart{text: c.renderList(ch, level+1), nested: true})
		default:
			if ch.Type == html.ElementNode {
				run.WriteString(c.renderBlock(ch))
			}
		}
	}
	flush()
	return parts
}

// writeItem writes the item line; further lines of a multi-line item are
// aligned under the item text. It returns that alignment.
func writeItem(b *strings.Builder, indent, marker, head string) string {
	lines := strings.Split(head, "\n")
	first := indent + marker + lines[0]
	if lines[0] == "" {
		first = strings.TrimRight(first, " ")
	}
	b.WriteString(first + "\n")

	pad := indent + strings.Repeat(" ", len(marker))
	writeIndented(b, pad, lines[1:])
	return pad
}

func writeIndented(b *strings.Builder, pad string, lines []string) {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(pad + l + "\n")
	}
}
