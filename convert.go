package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adammathes/wikicli/wikimd"
)

// convertConfig holds the options of the convert command.
type convertConfig struct {
	url    string
	pageID string
	args   []string
	save   bool
	output string
	opts   optimizeOpts
}

// target picks the page to fetch: --url, then --page-id, then the
// positional argument.
func (cc convertConfig) target() (string, error) {
	for _, v := range []string{cc.url, cc.pageID} {
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	if len(cc.args) > 0 && strings.TrimSpace(cc.args[0]) != "" {
		return strings.TrimSpace(cc.args[0]), nil
	}
	return "", errMissingTarget
}

// runConvert fetches one page and prints or saves its Markdown.
func runConvert(ctx context.Context, cfg *config, cc convertConfig, out io.Writer) error {
	target, err := cc.target()
	if err != nil {
		return err
	}
	client, err := newWikiClient(cfg)
	if err != nil {
		return err
	}
	markup, err := client.pageHTML(ctx, target)
	if err != nil {
		return fmt.Errorf("fetching page: %w", err)
	}

	if !cc.save {
		md, err := wikimd.Convert(markup, wikimd.Options{BaseOrigin: client.origin()})
		if err != nil {
			return err
		}
		return writeOutput(out, cc.output, md)
	}

	sp, err := savePage(ctx, client, cfg.CacheDir, cfg.ImageConcurrency, markup, cc.opts)
	if err != nil {
		return err
	}
	return writeOutput(out, cc.output, saveSummary(sp))
}

// saveSummary is the report printed after a page was saved.
func saveSummary(sp *savedPage) string {
	var b strings.Builder
	b.WriteString("## Conversion complete\n\n")
	fmt.Fprintf(&b, "**Markdown file**: %s\n", sp.File)
	fmt.Fprintf(&b, "**Output directory**: %s\n", sp.Dir)
	fmt.Fprintf(&b, "**Downloaded images**: %d\n\n", len(sp.Images))
	b.WriteString("---\n\n")
	b.WriteString(sp.Markdown)
	return b.String()
}

// writeOutput writes content to path, or to out when path is empty.
func writeOutput(out io.Writer, path, content string) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if path == "" {
		_, err := io.WriteString(out, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(logOut, "Wrote %s (%s)\n", path, humanSize(int64(len(content))))
	return nil
}
