// Epub generation from exported pages using go-epub.
package main

import (
	"encoding/base64"
	"fmt"
	gohtml "html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	epub "github.com/go-shiori/go-epub"
)

const epubCSS = `body { margin: 1em; line-height: 1.5; }
img { max-width: 100%; height: auto; }
pre, code { font-size: 0.85em; }
pre { white-space: pre-wrap; }
table { border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 0.2em 0.4em; }
blockquote { margin-left: 1em; padding-left: 0.5em; border-left: 2px solid #999; }
.source { font-size: 0.85em; color: #666; }
.toc { list-style-type: none; padding-left: 0; }
.toc li { margin-bottom: 1.2em; }
.toc a { text-decoration: none; }
.toc-meta { font-size: 0.85em; color: #666; margin-top: 0.1em; }`

func sectionFile(i int) string {
	return fmt.Sprintf("page%03d.xhtml", i+1)
}

func sectionTitle(p exportPage, i int) string {
	if p.Title != "" {
		return p.Title
	}
	return fmt.Sprintf("Page %d", i+1)
}

// buildTOCBody generates the contents page: one linked entry per page with
// its source URL.
func buildTOCBody(pages []exportPage) string {
	var b strings.Builder
	b.WriteString("<h1>Contents</h1>\n<ol class=\"toc\">\n")
	for i, p := range pages {
		fmt.Fprintf(&b, "<li>\n<a href=\"%s\">%s</a>\n", sectionFile(i), gohtml.EscapeString(sectionTitle(p, i)))
		if p.Source != "" {
			display := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(p.Source, "https://"), "http://"), "/")
			fmt.Fprintf(&b, "<p class=\"toc-meta\"><a href=\"%s\">%s</a></p>\n",
				gohtml.EscapeString(p.Source), gohtml.EscapeString(display))
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ol>\n")
	return b.String()
}

// epubImages returns a resolver that adds a page's local images to e.
// Each file is added once per section under a unique internal name.
func epubImages(e *epub.Epub, p exportPage, section int) imageResolver {
	added := map[string]string{}
	n := 0
	return func(src string) (string, error) {
		if strings.HasPrefix(src, "data:") {
			mime, _, _ := strings.Cut(strings.TrimPrefix(src, "data:"), ";")
			ext := ".img"
			if m := mimetype.Lookup(mime); m != nil {
				ext = m.Extension()
			}
			name := fmt.Sprintf("p%03d_img%03d%s", section+1, n, ext)
			n++
			return e.AddImage(src, name)
		}
		file := localImagePath(p.Dir, src)
		if internal, ok := added[file]; ok {
			return internal, nil
		}
		if _, err := os.Stat(file); err != nil {
			return "", err
		}
		name := fmt.Sprintf("p%03d_img%03d%s", section+1, n, strings.ToLower(filepath.Ext(file)))
		n++
		internal, err := e.AddImage(file, name)
		if err != nil {
			return "", err
		}
		added[file] = internal
		return internal, nil
	}
}

// addCover generates the cover image and sets it on e.
func addCover(e *epub.Epub, title string, pageCount int) error {
	png, err := generateCover(title, pageCount)
	if err != nil {
		return err
	}
	internal, err := e.AddImage("data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), "cover.png")
	if err != nil {
		return err
	}
	return e.SetCover(internal, "")
}

// buildEpub creates an epub3 file with a contents page followed by one
// section per page.
func buildEpub(pages []exportPage, title string, outputPath string) error {
	e, err := epub.NewEpub(title)
	if err != nil {
		return fmt.Errorf("creating epub: %w", err)
	}
	e.SetLang("en")
	e.SetAuthor("wikicli")

	cssPath, err := e.AddCSS("data:text/css;base64,"+base64.StdEncoding.EncodeToString([]byte(epubCSS)), "styles.css")
	if err != nil {
		fmt.Fprintf(logOut, "Warning: could not add CSS: %v\n", err)
		cssPath = ""
	}

	if err := addCover(e, title, len(pages)); err != nil {
		fmt.Fprintf(logOut, "Warning: could not add cover: %v\n", err)
	}

	if _, err := e.AddSection(buildTOCBody(pages), "Contents", "contents.xhtml", cssPath); err != nil {
		fmt.Fprintf(logOut, "Warning: could not add table of contents: %v\n", err)
	}

	for i, p := range pages {
		body := sanitizeForXHTML(p.HTML, epubImages(e, p, i))
		if p.Source != "" {
			body += fmt.Sprintf("<p class=\"source\">Source: <a href=\"%s\">%s</a></p>",
				gohtml.EscapeString(p.Source), gohtml.EscapeString(p.Source))
		}
		if _, err := e.AddSection(body, sectionTitle(p, i), sectionFile(i), cssPath); err != nil {
			fmt.Fprintf(logOut, "Warning: could not add section %q: %v\n", sectionTitle(p, i), err)
		}
	}

	if err := e.Write(outputPath); err != nil {
		return fmt.Errorf("writing epub: %w", err)
	}
	return nil
}
