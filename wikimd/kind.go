package wikimd

import (
	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// nodeKind is the closed set of node variants the converter dispatches on.
type nodeKind int

const (
	kindContainer nodeKind = iota // unrecognised element: render its children
	kindText
	kindIgnored
	kindHeading
	kindParagraph
	kindBlockquote
	kindList
	kindTaskList
	kindOrderedList
	kindListItem
	kindTable
	kindTableWrap
	kindCodePanel
	kindPre
	kindCode
	kindBreak
	kindRule
	kindImage
	kindLink
	kindBold
	kindItalic
	kindStrike
	kindUnderline
	kindSpan
	kindTime
)

// classify maps a node to its variant by exact tag name, consulting the class
// list only for the wrapper elements whose meaning depends on it.
func classify(n *html.Node) nodeKind {
	switch n.Type {
	case html.TextNode:
		return kindText
	case html.ElementNode:
	default:
		return kindIgnored
	}

	switch dom.NodeName(n) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return kindHeading
	case "p":
		return kindParagraph
	case "blockquote":
		return kindBlockquote
	case "ul":
		if dom.HasClass(n, "inline-task-list") {
			return kindTaskList
		}
		return kindList
	case "ol":
		return kindOrderedList
	case "li":
		return kindListItem
	case "table":
		return kindTable
	case "div":
		switch {
		case dom.HasClass(n, "table-wrap"):
			return kindTableWrap
		case dom.HasClass(n, "code") && dom.HasClass(n, "panel"):
			return kindCodePanel
		}
		return kindContainer
	case "pre":
		return kindPre
	case "code":
		return kindCode
	case "br":
		return kindBreak
	case "hr":
		return kindRule
	case "img":
		return kindImage
	case "a":
		return kindLink
	case "strong", "b":
		return kindBold
	case "em", "i":
		return kindItalic
	case "s", "del", "strike":
		return kindStrike
	case "u":
		return kindUnderline
	case "span":
		return kindSpan
	case "time":
		return kindTime
	case "colgroup", "col", "fieldset", "script", "style":
		return kindIgnored
	}
	return kindContainer
}

// headingLevel returns 1-6 for h1-h6.
func headingLevel(n *html.Node) int {
	name := dom.NodeName(n)
	return int(name[1] - '0')
}
