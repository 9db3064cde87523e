package wikimd

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// resolveURL prefixes URLs without a scheme with the base origin.
func (c *converter) resolveURL(raw string) string {
	switch {
	case raw == "", schemeRe.MatchString(raw):
		return raw
	case strings.HasPrefix(raw, "//"):
		if scheme, _, ok := strings.Cut(c.base, "://"); ok {
			return scheme + ":" + raw
		}
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return c.base + raw
	}
	return c.base + "/" + raw
}

// renderImage emits an image reference. The original-source attribute wins
// over src, which the wiki often points at a thumbnail.
func (c *converter) renderImage(n *html.Node) string {
	src := attr(n, "data-image-src")
	if src == "" {
		src = attr(n, "src")
	}
	full := c.resolveURL(src)

	alt := attr(n, "alt")
	if alt == "" {
		alt = attr(n, "data-linked-resource-default-alias")
	}
	if alt == "" {
		alt = "image"
	}

	c.recordImage(full, alt)
	target := full
	if c.imageTarget != nil && full != "" {
		if t := c.imageTarget(full); t != "" {
			target = t
		}
	}
	return "![" + alt + "](" + target + ")"
}

func (c *converter) recordImage(url, alt string) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return
	}
	if c.seenImages[url] {
		return
	}
	c.seenImages[url] = true
	c.images = append(c.images, Image{URL: url, Alt: alt})
}

// renderLink emits [label](href). Fragment and mail links are kept as they
// are; an empty label yields the bare URL.
func (c *converter) renderLink(n *html.Node, label string) string {
	href := attr(n, "href")
	if !strings.HasPrefix(href, "#") {
		href = c.resolveURL(href)
	}
	if label == "" {
		return href
	}
	return "[" + label + "](" + href + ")"
}
