package wikimd

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// renderChildren renders the children of n as block content. Whitespace-only
// text between blocks is dropped.
func (c *converter) renderChildren(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		switch ch.Type {
		case html.TextNode:
			if strings.TrimSpace(ch.Data) != "" {
				b.WriteString(ch.Data)
			}
		case html.ElementNode:
			b.WriteString(c.renderBlock(ch))
		}
	}
	return b.String()
}

// renderBlock renders one element in block context.
func (c *converter) renderBlock(n *html.Node) string {
	switch kind := classify(n); kind {
	case kindIgnored:
		return ""
	case kindText:
		return n.Data
	case kindHeading:
		return strings.Repeat("#", headingLevel(n)) + " " + collapseSpace(textContent(n)) + "\n\n"
	case kindParagraph:
		content := c.inline(n)
		if strings.TrimSpace(content) == "" {
			return "\n"
		}
		return content + "\n\n"
	case kindBlockquote:
		content := strings.TrimSpace(c.renderChildren(n))
		return strings.Join(prefixLines(content, "> "), "\n") + "\n\n"
	case kindList, kindTaskList, kindOrderedList:
		return c.renderList(n, 0)
	case kindListItem:
		return c.inline(n)
	case kindTable:
		return c.renderTable(n)
	case kindTableWrap:
		if t := firstDescendant(n, "table"); t != nil {
			return c.renderTable(t)
		}
		return c.renderChildren(n)
	case kindCodePanel:
		return c.renderCodePanel(n)
	case kindPre:
		return renderPre(n)
	case kindRule:
		return "\n---\n\n"
	case kindCode, kindBreak, kindImage, kindLink, kindUnderline, kindSpan, kindTime,
		kindBold, kindItalic, kindStrike:
		return c.inlineNode(n)
	}
	return c.renderChildren(n)
}

// firstDescendant returns the first element below n with the given tag.
func firstDescendant(n *html.Node, tag string) *html.Node {
	return dom.FindFirstNode(n, func(x *html.Node) bool {
		return x != n && x.Type == html.ElementNode && dom.NodeName(x) == tag
	})
}
