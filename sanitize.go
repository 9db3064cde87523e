// HTML to XHTML sanitization for EPUB 3 sections.
// Rendered pages are cleaned into XHTML that epub readers accept.
package main

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseBodyFragment parses an HTML fragment in <body> context.
func parseBodyFragment(fragment string) ([]*html.Node, error) {
	return html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
}

// stripInvalidXMLChars removes characters not allowed in XML 1.0 content.
func stripInvalidXMLChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0x9 || r == 0xA || r == 0xD ||
			(r >= 0x20 && r <= 0xD7FF) ||
			(r >= 0xE000 && r <= 0xFFFD) ||
			(r >= 0x10000 && r <= 0x10FFFF) {
			return r
		}
		return -1
	}, s)
}

// sanitizeID cleans an id attribute value: no whitespace, never empty.
func sanitizeID(val string) string {
	val = strings.TrimSpace(val)
	var b strings.Builder
	for _, r := range val {
		if unicode.IsSpace(r) {
			b.WriteByte('-')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isPhrasingElement returns true if the tag cannot contain block-level
// elements in EPUB XHTML.
func isPhrasingElement(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p",
		"span", "b", "strong", "i", "em", "a",
		"code", "sub", "sup", "small", "s", "u", "del", "ins", "time":
		return true
	}
	return false
}

// isBlockElement returns true if the tag is a block-level element.
func isBlockElement(tag string) bool {
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote", "section",
		"table", "pre", "hr":
		return true
	}
	return false
}

// isStructuralBlock returns true for blocks whose internal structure must
// survive being moved out of a phrasing parent.
func isStructuralBlock(tag string) bool {
	switch tag {
	case "table", "pre", "ul", "ol", "blockquote":
		return true
	}
	return false
}

func isAllowedAttr(a html.Attribute) bool {
	switch a.Key {
	case "id", "class", "title", "lang", "dir",
		"href", "src", "alt",
		"colspan", "rowspan", "scope",
		"datetime", "start", "type", "checked", "disabled":
		return true
	}
	return a.Key == "epub:type" || strings.HasPrefix(a.Key, "aria-")
}

// isAllowedElement returns true if the tag may appear in a section body.
func isAllowedElement(tag string) bool {
	switch tag {
	case "div", "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"hr", "pre", "blockquote", "em", "strong", "small", "s", "del", "ins",
		"time", "code", "sub", "sup", "i", "b", "u", "span", "br", "img", "input",
		"table", "caption", "colgroup", "col", "tbody", "thead", "tfoot", "tr", "td", "th",
		"section", "a":
		return true
	}
	return false
}

// voidElements are HTML elements that must be self-closing in XHTML.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Wbr: true,
}

// imageResolver maps a local img src to the path used inside the epub.
// An error drops the image.
type imageResolver func(src string) (string, error)

// remoteImageLink replaces a remote image, which epub readers may not load,
// with a link to it.
func remoteImageLink(src, alt string) *html.Node {
	if alt == "" {
		alt = "image"
	}
	link := &html.Node{
		Type:     html.ElementNode,
		Data:     "a",
		DataAtom: atom.A,
		Attr:     []html.Attribute{{Key: "href", Val: src}},
	}
	link.AppendChild(&html.Node{Type: html.TextNode, Data: "[Image: " + alt + "]"})
	return link
}

// sanitizeForXHTML converts a rendered page fragment to epub-safe XHTML.
// Disallowed elements and attributes are dropped, blocks are lifted out of
// phrasing parents, and local images are routed through resolve.
func sanitizeForXHTML(fragment string, resolve imageResolver) string {
	nodes, err := parseBodyFragment(stripInvalidXMLChars(fragment))
	if err != nil {
		return fragment
	}
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	ids := map[string]bool{}
	var collectIDs func(*html.Node)
	collectIDs = func(n *html.Node) {
		for _, a := range n.Attr {
			if a.Key == "id" {
				if id := sanitizeID(a.Val); id != "" {
					ids[id] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectIDs(c)
		}
	}
	collectIDs(root)
	liftAll(root)
	usedIDs := map[string]bool{}

	var clean func(*html.Node) *html.Node
	clean = func(n *html.Node) *html.Node {
		if n.Type == html.CommentNode {
			return nil
		}
		if n.Type == html.ElementNode && n != root {
			if !isAllowedElement(n.Data) {
				return nil
			}

			if n.Data == "img" {
				src, alt := "", ""
				for _, a := range n.Attr {
					switch a.Key {
					case "src":
						src = strings.TrimSpace(a.Val)
					case "alt":
						alt = a.Val
					}
				}
				switch {
				case src == "":
					return nil
				case isRemote(src) && !strings.HasPrefix(src, "data:"):
					return remoteImageLink(src, alt)
				case resolve != nil:
					internal, err := resolve(src)
					if err != nil {
						fmt.Fprintf(logOut, "Warning: dropping image %s: %v\n", src, err)
						return nil
					}
					n.Attr = []html.Attribute{{Key: "src", Val: internal}, {Key: "alt", Val: alt}}
					return n
				}
			}

			var filtered []html.Attribute
			for _, a := range n.Attr {
				if !isAllowedAttr(a) {
					continue
				}
				if a.Key == "href" && strings.HasPrefix(a.Val, "#") {
					if frag := a.Val[1:]; frag != "" && !ids[frag] {
						continue
					}
				}
				if a.Key == "id" {
					id := sanitizeID(a.Val)
					if id == "" {
						continue
					}
					for i := 2; usedIDs[id]; i++ {
						id = fmt.Sprintf("%s-%d", sanitizeID(a.Val), i)
					}
					usedIDs[id] = true
					a.Val = id
				}
				filtered = append(filtered, a)
			}
			n.Attr = filtered
		}

		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if result := clean(c); result == nil {
				n.RemoveChild(c)
			} else if result != c {
				n.InsertBefore(result, c)
				n.RemoveChild(c)
			}
			c = next
		}
		return n
	}
	clean(root)

	var buf bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		renderXHTML(&buf, c)
	}
	return buf.String()
}

// liftAll runs liftBlocks bottom-up, so blocks that get moved have already
// been fixed themselves.
func liftAll(n *html.Node) {
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		liftAll(c)
	}
	if n.Type == html.ElementNode && isPhrasingElement(n.Data) {
		liftBlocks(n)
	}
}

// liftBlocks fixes block children of a phrasing element: structural blocks
// move above the outermost phrasing ancestor, simple wrappers are unwrapped.
func liftBlocks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.ElementNode || !isBlockElement(c.Data) {
			c = next
			continue
		}
		if isStructuralBlock(c.Data) && n.Parent != nil {
			n.RemoveChild(c)
			target := n
			for target.Parent != nil && target.Parent.Type == html.ElementNode && isPhrasingElement(target.Parent.Data) {
				target = target.Parent
			}
			if target.Parent != nil {
				target.Parent.InsertBefore(c, target)
			}
		} else {
			for cc := c.FirstChild; cc != nil; {
				cnext := cc.NextSibling
				c.RemoveChild(cc)
				n.InsertBefore(cc, c)
				cc = cnext
			}
			n.RemoveChild(c)
		}
		c = next
	}
}

// renderXHTML renders an html.Node tree as XHTML (self-closing void elements).
func renderXHTML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		for _, a := range n.Attr {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(html.EscapeString(a.Val))
			buf.WriteByte('"')
		}
		if voidElements[n.DataAtom] && n.FirstChild == nil {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
	case html.RawNode:
		buf.WriteString(n.Data)
	}
}
