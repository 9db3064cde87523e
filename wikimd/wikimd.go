// Package wikimd converts rendered Confluence wiki pages into Markdown.
//
// The conversion is a pure function of the page markup: it performs no I/O,
// keeps no state between calls and is safe for concurrent use.
package wikimd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultBaseOrigin is the origin relative image and link URLs are resolved
// against when Options.BaseOrigin is empty.
const DefaultBaseOrigin = "https://wiki.p1.cn"

// ErrParse is reported (wrapped in a *ParseError) when the input cannot be
// turned into a node tree at all.
var ErrParse = errors.New("markup could not be parsed")

// ParseError describes a terminal parse failure.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failure: %s: %v", e.Reason, e.Err)
	}
	return "parse failure: " + e.Reason
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Options controls URL resolution during a conversion.
type Options struct {
	// BaseOrigin is prefixed to relative URLs, e.g. "https://wiki.example".
	BaseOrigin string

	// ImageTarget maps a resolved image URL to the reference written into the
	// Markdown. A nil func, or an empty return, keeps the remote URL.
	ImageTarget func(resolvedURL string) string
}

// Image is an image reference encountered during conversion.
type Image struct {
	URL string // resolved absolute URL
	Alt string
}

// Result is the outcome of ConvertDocument.
type Result struct {
	Markdown string
	Title    string
	PageID   string
	Images   []Image // unique by URL, in document order
}

var (
	titleMetaSel   = cascadia.MustCompile(`meta[name="ajs-page-title"]`)
	pageIDMetaSel  = cascadia.MustCompile(`meta[name="ajs-page-id"]`)
	titleTextSel   = cascadia.MustCompile(`h1#title-text`)
	h1Sel          = cascadia.MustCompile(`h1`)
	mainContentSel = cascadia.MustCompile(`#main-content.wiki-content`)
)

// Convert parses markup and returns the Markdown document.
func Convert(markup string, opts Options) (string, error) {
	res, err := ConvertDocument(markup, opts)
	if err != nil {
		return "", err
	}
	return res.Markdown, nil
}

// ConvertDocument parses markup and returns the Markdown document together
// with the page metadata and the images it references.
func ConvertDocument(markup string, opts Options) (*Result, error) {
	doc, err := parse(markup)
	if err != nil {
		return nil, err
	}
	return ConvertNode(doc, opts), nil
}

// parse builds the node tree. Invalid UTF-8 sequences become U+FFFD.
func parse(markup string) (*html.Node, error) {
	return parseReader(strings.NewReader(strings.ToValidUTF8(markup, "\uFFFD")))
}

func parseReader(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: "building node tree", Err: err}
	}
	return doc, nil
}

// ConvertNode converts an already parsed document. The tree is not modified.
func ConvertNode(doc *html.Node, opts Options) *Result {
	c := newConverter(opts)
	main := mainContentSel.MatchFirst(doc)

	var parts []string
	title := pageTitle(doc, main)
	if title != "" {
		parts = append(parts, "# "+title, "")
	}

	if main != nil {
		parts = append(parts, c.renderChildren(main))
	}

	if comments := c.renderComments(doc); comments != "" {
		parts = append(parts, "", "---", "", "## Comments", "", comments)
	}

	return &Result{
		Markdown: strings.TrimSpace(strings.Join(parts, "\n")),
		Title:    title,
		PageID:   metaContent(doc, pageIDMetaSel),
		Images:   c.images,
	}
}

// pageTitle prefers the page-title meta tag and falls back to the page's
// title heading outside the content region.
func pageTitle(doc, main *html.Node) string {
	if t := metaContent(doc, titleMetaSel); t != "" {
		return t
	}
	if n := titleTextSel.MatchFirst(doc); n != nil {
		if t := collapseSpace(textContent(n)); t != "" {
			return t
		}
	}
	for _, n := range h1Sel.MatchAll(doc) {
		if main != nil && isInside(n, main) {
			continue
		}
		if t := collapseSpace(textContent(n)); t != "" {
			return t
		}
	}
	return ""
}

func metaContent(doc *html.Node, sel cascadia.Selector) string {
	n := sel.MatchFirst(doc)
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

// converter carries per-call options and collects image references.
// A new one is created for every conversion.
type converter struct {
	base        string
	imageTarget func(string) string
	images      []Image
	seenImages  map[string]bool
}

func newConverter(opts Options) *converter {
	base := strings.TrimRight(opts.BaseOrigin, "/")
	if base == "" {
		base = DefaultBaseOrigin
	}
	return &converter{
		base:        base,
		imageTarget: opts.ImageTarget,
		seenImages:  map[string]bool{},
	}
}
