package wikimd

import (
	"regexp"

	"golang.org/x/net/html"
)

var brushRe = regexp.MustCompile(`brush:\s*(\w+)`)

// codeLanguage extracts the language from a syntax highlighter parameter
// string such as "brush: java; gutter: false".
func codeLanguage(params string) string {
	if m := brushRe.FindStringSubmatch(params); m != nil {
		return m[1]
	}
	return ""
}

// renderCodePanel renders the pre block inside a code panel.
func (c *converter) renderCodePanel(n *html.Node) string {
	if pre := firstDescendant(n, "pre"); pre != nil {
		return renderPre(pre)
	}
	return c.renderChildren(n)
}

// renderPre emits a fenced block. The text is taken verbatim; fence-like
// sequences inside the code are not escaped.
func renderPre(n *html.Node) string {
	lang := codeLanguage(attr(n, "data-syntaxhighlighter-params"))
	return "```" + lang + "\n" + textContent(n) + "\n```\n\n"
}
