package wikimd

import (
	"strings"

	"golang.org/x/net/html"
)

// styleSet is the set of emphasis markers active on a run of text. It is a
// value type: every level of the recursion gets its own copy.
type styleSet uint8

const (
	styleBold styleSet = 1 << iota
	styleItalic
	styleStrike
)

func (s styleSet) with(t styleSet) styleSet { return s | t }
func (s styleSet) has(t styleSet) bool      { return s&t != 0 }

// styleOf reports the marker an element contributes. Spans that declare a
// text color are rendered as italic.
func styleOf(n *html.Node) (styleSet, bool) {
	switch classify(n) {
	case kindBold:
		return styleBold, true
	case kindItalic:
		return styleItalic, true
	case kindStrike:
		return styleStrike, true
	case kindSpan:
		if hasTextColor(n) {
			return styleItalic, true
		}
	}
	return 0, false
}

// hasTextColor reports whether the inline style declares the color property.
func hasTextColor(n *html.Node) bool {
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		prop, _, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(prop), "color") {
			return true
		}
	}
	return false
}

// hasStyledDescendant reports whether any element below n adds a marker.
func hasStyledDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if _, ok := styleOf(c); ok {
			return true
		}
		if hasStyledDescendant(c) {
			return true
		}
	}
	return false
}

// applyStyle wraps text in the markers for s. Surrounding whitespace stays
// outside the markers so renderers recognise the emphasis.
func applyStyle(text string, s styleSet) string {
	if text == "" || s == 0 {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	start := strings.Index(text, trimmed)
	leading, trailing := text[:start], text[start+len(trimmed):]

	var prefix, suffix string
	if s.has(styleStrike) {
		prefix += "~~"
		suffix = "~~" + suffix
	}
	switch {
	case s.has(styleBold) && s.has(styleItalic):
		prefix += "***"
		suffix = "***" + suffix
	case s.has(styleBold):
		prefix += "**"
		suffix = "**" + suffix
	case s.has(styleItalic):
		prefix += "*"
		suffix = "*" + suffix
	}
	return leading + prefix + trimmed + suffix + trailing
}

// inline renders the children of n as inline Markdown with no active style.
func (c *converter) inline(n *html.Node) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		b.WriteString(c.inlineNode(ch))
	}
	return b.String()
}

// inlineNode renders a single node in inline context.
func (c *converter) inlineNode(n *html.Node) string {
	if s, ok := styleOf(n); ok {
		return c.formatted(n, 0, s)
	}
	switch classify(n) {
	case kindText:
		return n.Data
	case kindIgnored:
		return ""
	case kindUnderline:
		return "<u>" + c.inline(n) + "</u>"
	case kindCode:
		return "`" + textContent(n) + "`"
	case kindLink:
		return c.renderLink(n, strings.TrimSpace(c.inline(n)))
	case kindImage:
		return c.renderImage(n)
	case kindBreak:
		return "\n"
	case kindTime:
		return renderTime(n)
	}
	return c.inline(n)
}

// formatted renders a bold, italic, strike or colored element. Without
// nested markers the whole content is one run; otherwise the content is
// split into runs that each carry the union of inherited and own styles.
func (c *converter) formatted(n *html.Node, inherited, own styleSet) string {
	s := inherited.with(own)
	if !hasStyledDescendant(n) {
		return applyStyle(c.inline(n), s)
	}
	return c.runs(n, s)
}

// runs renders the children of n, styling each text run or atomic inline
// element with s and descending into wrappers that hold further markers.
func (c *converter) runs(n *html.Node, s styleSet) string {
	var b strings.Builder
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if own, ok := styleOf(ch); ok {
			b.WriteString(c.formatted(ch, s, own))
			continue
		}
		switch classify(ch) {
		case kindText:
			b.WriteString(applyStyle(ch.Data, s))
		case kindIgnored:
		case kindBreak:
			b.WriteString("\n")
		case kindUnderline:
			if hasStyledDescendant(ch) {
				b.WriteString("<u>" + c.runs(ch, s) + "</u>")
			} else {
				b.WriteString(applyStyle(c.inlineNode(ch), s))
			}
		case kindLink:
			if hasStyledDescendant(ch) {
				b.WriteString(c.renderLink(ch, strings.TrimSpace(c.runs(ch, s))))
			} else {
				b.WriteString(applyStyle(c.inlineNode(ch), s))
			}
		case kindCode, kindImage, kindTime:
			b.WriteString(applyStyle(c.inlineNode(ch), s))
		default:
			if hasStyledDescendant(ch) {
				b.WriteString(c.runs(ch, s))
			} else {
				b.WriteString(applyStyle(c.inline(ch), s))
			}
		}
	}
	return b.String()
}

// renderTime prefers the displayed text over the datetime attribute.
func renderTime(n *html.Node) string {
	if text := textContent(n); text != "" {
		return text
	}
	return attr(n, "datetime")
}
