// Search excerpt rendering: highlighted HTML snippets to inline Markdown.
package main

import (
	"strings"
	"sync"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	excerptConverter     *converter.Converter
	excerptConverterOnce sync.Once

	// The search API marks hits either with these markers or with
	// <span class="highlight">.
	hlMarkers = strings.NewReplacer(
		"@@@hl@@@", `<span class="highlight">`,
		"@@@endhl@@@", "</span>",
	)
)

// getExcerptConverter returns a shared converter that renders highlighted
// spans as bold and flattens images to their alt text.
func getExcerptConverter() *converter.Converter {
	excerptConverterOnce.Do(func() {
		excerptConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
		excerptConverter.Register.RendererFor("span", converter.TagTypeInline,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				if !dom.HasClass(n, "highlight") {
					return converter.RenderTryNext
				}
				w.WriteString("**")
				ctx.RenderChildNodes(ctx, w, n)
				w.WriteString("**")
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
		excerptConverter.Register.RendererFor("img", converter.TagTypeInline,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				if alt := strings.TrimSpace(dom.GetAttributeOr(n, "alt", "")); alt != "" {
					w.WriteString(alt)
				}
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
	})
	return excerptConverter
}

// excerptText converts a search excerpt to a single line of Markdown.
// Unconvertible input falls back to the text with tags removed.
func excerptText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	md, err := getExcerptConverter().ConvertString(hlMarkers.Replace(raw))
	if err != nil {
		md = stripTags(hlMarkers.Replace(raw))
	}
	return strings.Join(strings.Fields(md), " ")
}

// stripTags returns the text content of an HTML fragment.
func stripTags(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div})
	if err != nil {
		return fragment
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}
