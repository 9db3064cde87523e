// Markdown to HTML rendering for export, and the standalone HTML document.
package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	gohtml "html"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

var (
	mdRenderer     goldmark.Markdown
	mdRendererOnce sync.Once

	headingRe = regexp.MustCompile(`(?i)<(/?)h([1-6])([^>]*)>`)
)

// getMarkdownRenderer returns a shared GFM renderer. Raw HTML is kept
// because converted pages use <u>, <br> and HTML tables.
func getMarkdownRenderer() goldmark.Markdown {
	mdRendererOnce.Do(func() {
		mdRenderer = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
				gmhtml.WithXHTML(),
			),
		)
	})
	return mdRenderer
}

// markdownToHTML renders a converted page as an HTML fragment.
func markdownToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := getMarkdownRenderer().Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// shiftHeadings moves every heading down one level, clamped at h6.
func shiftHeadings(text string) string {
	return headingRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := headingRe.FindStringSubmatch(match)
		level, _ := strconv.Atoi(parts[2])
		level = min(level+1, 6)
		if parts[1] == "/" {
			return fmt.Sprintf("</h%d>", level)
		}
		return fmt.Sprintf("<h%d%s>", level, parts[3])
	})
}

// isRemote reports whether src points off the local page directory.
func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "//") || strings.HasPrefix(src, "data:")
}

// localImagePath maps an img src written by the save step to the file in dir.
func localImagePath(dir, src string) string {
	if dec, err := url.PathUnescape(src); err == nil {
		src = dec
	}
	return filepath.Join(dir, filepath.Base(filepath.FromSlash(src)))
}

// inlineImages replaces local image references with data URIs so the HTML
// document is self-contained. Unreadable files are left as they are.
func inlineImages(fragment, dir string) string {
	nodes, err := parseBodyFragment(fragment)
	if err != nil {
		return fragment
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			for i, a := range n.Attr {
				if a.Key != "src" || a.Val == "" || isRemote(a.Val) {
					continue
				}
				data, err := os.ReadFile(localImagePath(dir, a.Val))
				if err != nil {
					fmt.Fprintf(logOut, "Warning: could not embed %s: %v\n", a.Val, err)
					continue
				}
				n.Attr[i].Val = "data:" + mimetype.Detect(data).String() + ";base64," +
					base64.StdEncoding.EncodeToString(data)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&buf, n); err != nil {
			return fragment
		}
	}
	return buf.String()
}

// buildHTMLDocument joins the pages into one standalone document. With more
// than one page the book title becomes the only h1.
func buildHTMLDocument(pages []exportPage, title string) string {
	var b strings.Builder
	multi := len(pages) > 1
	if multi {
		fmt.Fprintf(&b, "<h1>%s</h1>\n", gohtml.EscapeString(title))
	}
	for i, p := range pages {
		if i > 0 {
			b.WriteString("<hr/>\n")
		}
		body := inlineImages(p.HTML, p.Dir)
		if multi {
			body = shiftHeadings(body)
		}
		b.WriteString(body)
		if p.Source != "" {
			fmt.Fprintf(&b, "<p class=\"source\">Source: <a href=\"%s\">%s</a></p>\n",
				gohtml.EscapeString(p.Source), gohtml.EscapeString(p.Source))
		}
	}
	return renderFullHTML(b.String(), title)
}

// renderFullHTML wraps a fragment in a complete HTML document.
func renderFullHTML(fragment, title string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<meta name="generator" content="wikicli">
	<title>%s</title>
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
			line-height: 1.6;
			color: #333;
			max-width: 860px;
			margin: 0 auto;
			padding: 2rem 1rem;
		}
		img { max-width: 100%%; height: auto; }
		pre { white-space: pre-wrap; word-wrap: break-word; background: #f6f8fa; padding: 0.75rem; }
		table { border-collapse: collapse; }
		th, td { border: 1px solid #ccc; padding: 0.25rem 0.5rem; vertical-align: top; }
		blockquote { border-left: 4px solid #eee; padding-left: 1rem; margin-left: 0; color: #666; }
		.source { color: #666; font-size: 0.85em; }
	</style>
</head>
<body>
%s
</body>
</html>
`, gohtml.EscapeString(title), fragment)
}
