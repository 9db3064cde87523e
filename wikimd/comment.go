package wikimd

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"
)

var (
	commentThreadSel  = cascadia.MustCompile(`#page-comments > .comment-thread`)
	commentAuthorSel  = cascadia.MustCompile(`.comment-header .author a`)
	commentContentSel = cascadia.MustCompile(`.comment-content.wiki-content`)
	commentDateSel    = cascadia.MustCompile(`.comment-date a`)
	commentTimeSel    = cascadia.MustCompile(`.comment-date time`)
)

// comment is one rendered discussion entry.
type comment struct {
	author string
	body   string // Markdown
	when   string
	depth  int
}

// lines renders the comment as a quote block nested depth+1 levels deep,
// followed by a blank separator line.
func (cm comment) lines() []string {
	prefix := strings.Repeat("> ", cm.depth+1)
	header := "**" + cm.author + "**"
	if cm.when != "" {
		header += " (" + cm.when + ")"
	}
	out := []string{prefix + header + ":"}
	out = append(out, prefixLines(cm.body, prefix)...)
	return append(out, "")
}

// renderComments renders every top-level thread of the page.
func (c *converter) renderComments(doc *html.Node) string {
	var lines []string
	for _, thread := range commentThreadSel.MatchAll(doc) {
		lines = append(lines, c.threadComments(thread, 0)...)
	}
	return strings.Join(lines, "\n")
}

// threadComments walks the direct children of a thread: comments at this
// depth and sub-thread containers one level deeper.
func (c *converter) threadComments(thread *html.Node, depth int) []string {
	var lines []string
	for _, ch := range childElements(thread) {
		switch {
		case dom.HasClass(ch, "comment"):
			cm := c.readComment(ch, depth)
			if cm.body == "" {
				continue
			}
			lines = append(lines, cm.lines()...)
		case dom.HasClass(ch, "comment-threads"):
			for _, sub := range childElements(ch) {
				if dom.HasClass(sub, "comment-thread") {
					lines = append(lines, c.threadComments(sub, depth+1)...)
				}
			}
		}
	}
	return lines
}

func (c *converter) readComment(n *html.Node, depth int) comment {
	cm := comment{author: "Unknown", depth: depth}
	if a := commentAuthorSel.MatchFirst(n); a != nil {
		if name := collapseSpace(textContent(a)); name != "" {
			cm.author = name
		}
	}
	if body := commentContentSel.MatchFirst(n); body != nil {
		cm.body = strings.TrimSpace(c.renderChildren(body))
	}
	cm.when = commentDate(n)
	return cm
}

// commentDate prefers the wiki's friendly date text and falls back to the
// raw timestamp.
func commentDate(n *html.Node) string {
	var raw string
	if a := commentDateSel.MatchFirst(n); a != nil {
		if text := collapseSpace(textContent(a)); text != "" {
			return text
		}
		raw = attr(a, "title")
	}
	if raw == "" {
		if t := commentTimeSel.MatchFirst(n); t != nil {
			raw = attr(t, "datetime")
		}
	}
	return FormatTimestamp(raw)
}

// FormatTimestamp renders a raw timestamp as "2006-01-02 15:04". Values
// that cannot be parsed are returned trimmed but otherwise unchanged.
func FormatTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return t.Format("2006-01-02 15:04")
}
