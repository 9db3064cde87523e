// wikicli: convert wiki pages to Markdown, search the wiki, and export
// pages as HTML or epub.
//
//	wikicli convert [options] <URL|PAGE_ID>
//	wikicli search [options] <QUERY>
//	wikicli export [options] -o book.epub <URL|PAGE_ID|file.txt> [...]
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// logOut is the writer for informational output.
// In silent mode it is set to io.Discard so only errors reach the user.
var logOut io.Writer = os.Stderr

var (
	errMissingTarget = errors.New("a page URL or page id is required")
	errMissingQuery  = errors.New("a search query is required")
	errMissingOutput = errors.New("export requires -o <file>")
)

// globalOptions holds the flags shared by every command. Only flags the
// user actually set override the config file and environment.
type globalOptions struct {
	configPath      string
	baseURL         string
	cacheDir        string
	proxy           string
	userAgent       string
	timeout         time.Duration
	maxResponseSize int64
	silent          bool
}

func (g *globalOptions) load(cmd *cobra.Command) (*config, error) {
	cfg, err := loadConfig(g.configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = g.baseURL
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = g.cacheDir
	}
	if flags.Changed("proxy") {
		cfg.Proxy = g.proxy
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = g.userAgent
	}
	if flags.Changed("timeout") {
		cfg.Timeout = g.timeout
	}
	if flags.Changed("max-response-size") {
		cfg.MaxResponseSize = g.maxResponseSize
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	var g globalOptions

	root := &cobra.Command{
		Use:           "wikicli",
		Short:         "Convert wiki pages to Markdown, search the wiki, export pages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.silent {
				logOut = io.Discard
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default: $WIKICLI_CONFIG or ~/.config/wikicli/config.yaml)")
	pf.StringVar(&g.baseURL, "base-url", "", "Wiki base URL (overrides WIKI_BASE_URL)")
	pf.StringVar(&g.cacheDir, "cache-dir", "", "Directory for saved pages and images")
	pf.StringVar(&g.proxy, "proxy", "", "HTTP(S) proxy URL")
	pf.StringVar(&g.userAgent, "user-agent", defaultUA, "HTTP User-Agent header")
	pf.DurationVar(&g.timeout, "timeout", 30*time.Second, "HTTP fetch timeout")
	pf.Int64Var(&g.maxResponseSize, "max-response-size", 128*1024*1024, "Maximum response body size in bytes")
	pf.BoolVar(&g.silent, "silent", false, "Suppress all output except errors")

	root.AddCommand(
		newConvertCommand(&g),
		newSearchCommand(&g),
		newExportCommand(&g),
	)
	return root
}

func newConvertCommand(g *globalOptions) *cobra.Command {
	var cc convertConfig

	cmd := &cobra.Command{
		Use:   "convert [URL|PAGE_ID]",
		Short: "Convert a wiki page to Markdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			cc.args = args
			return runConvert(cmd.Context(), cfg, cc, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cc.url, "url", "u", "", "Page URL")
	f.StringVarP(&cc.pageID, "page-id", "p", "", "Page id")
	f.BoolVar(&cc.save, "save", false, "Save the Markdown and its images to the cache directory")
	f.StringVarP(&cc.output, "output", "o", "", "Output file (default: stdout)")
	addOptimizeFlags(cmd, &cc.opts)
	return cmd
}

func newSearchCommand(g *globalOptions) *cobra.Command {
	var sc searchConfig

	cmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search the wiki",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if sc.query == "" && len(args) == 1 {
				sc.query = args[0]
			}
			return runSearch(cmd.Context(), cfg, sc, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&sc.query, "query", "q", "", "Search query")
	f.IntVarP(&sc.limit, "limit", "l", defaultSearchLimit, fmt.Sprintf("Number of results (1-%d)", maxSearchLimit))
	f.IntVar(&sc.start, "start", 0, "Offset of the first result")
	return cmd
}

func newExportCommand(g *globalOptions) *cobra.Command {
	var ec exportConfig

	cmd := &cobra.Command{
		Use:   "export -o OUTPUT <URL|PAGE_ID|file.txt> [...]",
		Short: "Export pages as one HTML document or an epub",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if !g.silent {
				progressOut = cmd.OutOrStdout()
			}
			ec.args = args
			return runExport(cmd.Context(), cfg, ec)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ec.output, "output", "o", "", "Output file (.epub or .html)")
	f.StringVar(&ec.format, "format", "", "Output format: epub or html (default: from the output extension)")
	f.StringVar(&ec.title, "title", "", "Book title")
	addOptimizeFlags(cmd, &ec.opts)
	return cmd
}

func addOptimizeFlags(cmd *cobra.Command, opts *optimizeOpts) {
	f := cmd.Flags()
	f.IntVar(&opts.maxWidth, "max-width", 0, "Max pixel width of saved images, 0 keeps the original size")
	f.IntVar(&opts.quality, "quality", 85, "JPEG quality 1-95 for re-encoded images")
	f.BoolVar(&opts.grayscale, "grayscale", false, "Convert saved images to grayscale")
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
