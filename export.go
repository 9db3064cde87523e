package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const exportConcurrency = 5

// exportConfig holds the options of the export command.
type exportConfig struct {
	output string
	format string
	title  string
	opts   optimizeOpts
	args   []string
}

// exportPage is one saved page rendered to an HTML fragment.
type exportPage struct {
	Title  string
	PageID string
	Source string // page URL
	Dir    string // directory holding the page's local images
	HTML   string
}

// outputFormat returns the requested format, or the one implied by the
// output file extension.
func (ec exportConfig) outputFormat() (string, error) {
	f := strings.ToLower(strings.TrimSpace(ec.format))
	if f == "" {
		switch strings.ToLower(filepath.Ext(ec.output)) {
		case ".html", ".htm":
			f = "html"
		default:
			f = "epub"
		}
	}
	if f != "epub" && f != "html" {
		return "", fmt.Errorf("unknown format %q (want epub or html)", ec.format)
	}
	return f, nil
}

// readPageList reads a file with one page URL or id per line, skipping
// blanks and comments.
func readPageList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pages = append(pages, line)
	}
	return pages, scanner.Err()
}

// collectTargets expands .txt arguments into their page lists. listName is
// the base name of the first list file, used as a book title fallback.
func collectTargets(args []string) (targets []string, listName string, err error) {
	for _, arg := range args {
		if !strings.HasSuffix(arg, ".txt") {
			targets = append(targets, arg)
			continue
		}
		pages, err := readPageList(arg)
		if err != nil {
			return nil, "", fmt.Errorf("reading %s: %w", arg, err)
		}
		targets = append(targets, pages...)
		if listName == "" {
			listName = strings.TrimSuffix(filepath.Base(arg), ".txt")
		}
	}
	return targets, listName, nil
}

// bookTitle picks the title: --title, then the list file name, then the
// first page title, then the output file name.
func bookTitle(override, listName, output string, pages []exportPage) string {
	switch {
	case override != "":
		return override
	case listName != "":
		return listName
	case len(pages) > 1 && pages[0].Title != "":
		return pages[0].Title + " & more"
	case len(pages) == 1 && pages[0].Title != "":
		return pages[0].Title
	}
	return strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
}

// exportOne saves a page and renders its Markdown to HTML.
func exportOne(ctx context.Context, client *wikiClient, cfg *config, target string, opts optimizeOpts) (*exportPage, error) {
	source, err := client.pageURL(target)
	if err != nil {
		return nil, err
	}
	markup, err := client.pageHTML(ctx, target)
	if err != nil {
		return nil, err
	}
	sp, err := savePage(ctx, client, cfg.CacheDir, cfg.ImageConcurrency, markup, opts)
	if err != nil {
		return nil, err
	}
	body, err := markdownToHTML(sp.Markdown)
	if err != nil {
		return nil, err
	}
	return &exportPage{
		Title:  sp.Title,
		PageID: sp.PageID,
		Source: source,
		Dir:    sp.Dir,
		HTML:   body,
	}, nil
}

// runExport converts every page and writes them as one HTML document or
// epub. Pages that fail are skipped.
func runExport(ctx context.Context, cfg *config, ec exportConfig) error {
	if ec.output == "" {
		return errMissingOutput
	}
	format, err := ec.outputFormat()
	if err != nil {
		return err
	}
	targets, listName, err := collectTargets(ec.args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no pages provided")
	}

	client, err := newWikiClient(cfg)
	if err != nil {
		return err
	}

	results := make([]*exportPage, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(exportConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			pprintf("[%d/%d] %s\n", i+1, len(targets), shortURL(target))
			p, err := exportOne(gctx, client, cfg, target, ec.opts)
			if err != nil {
				fmt.Fprintf(logOut, "  Error: %s: %v (skipping)\n", target, err)
				return nil
			}
			results[i] = p
			return nil
		})
	}
	g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	var pages []exportPage
	for _, p := range results {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	if len(pages) == 0 {
		return errors.New("no pages converted")
	}

	title := bookTitle(ec.title, listName, ec.output, pages)
	fmt.Fprintf(logOut, "Building %s from %d pages...\n", format, len(pages))
	switch format {
	case "html":
		doc := buildHTMLDocument(pages, title)
		if err := os.WriteFile(ec.output, []byte(doc), 0o644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	default:
		if err := buildEpub(pages, title, ec.output); err != nil {
			return fmt.Errorf("building epub: %w", err)
		}
	}
	fmt.Fprintf(logOut, "✓ %s (%d pages)\n", ec.output, len(pages))
	return nil
}
