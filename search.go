package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/adammathes/wikicli/wikimd"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type searchResponse struct {
	Results        []searchResult `json:"results"`
	Start          int            `json:"start"`
	Limit          int            `json:"limit"`
	TotalSize      int            `json:"totalSize"`
	CQLQuery       string         `json:"cqlQuery"`
	SearchDuration int            `json:"searchDuration"`
}

type searchResult struct {
	Content               *searchContent   `json:"content"`
	Title                 string           `json:"title"`
	Excerpt               string           `json:"excerpt"`
	URL                   string           `json:"url"`
	ResultGlobalContainer *searchContainer `json:"resultGlobalContainer"`
	EntityType            string           `json:"entityType"`
	IconCSSClass          string           `json:"iconCssClass"`
	LastModified          string           `json:"lastModified"`
	FriendlyLastModified  string           `json:"friendlyLastModified"`
}

type searchContent struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	Expandable struct {
		Space string `json:"space"`
	} `json:"_expandable"`
}

type searchContainer struct {
	Title      string `json:"title"`
	DisplayURL string `json:"displayUrl"`
}

// searchConfig holds the options of the search command.
type searchConfig struct {
	query string
	start int
	limit int
}

// clampLimit keeps the result count within 1..50.
func clampLimit(n int) int {
	return max(1, min(n, maxSearchLimit))
}

func (r searchResult) displayTitle() string {
	switch {
	case strings.TrimSpace(r.Title) != "":
		return excerptText(r.Title)
	case r.Content != nil && r.Content.Title != "":
		return r.Content.Title
	}
	return "Untitled"
}

func (r searchResult) space() string {
	if r.ResultGlobalContainer != nil && r.ResultGlobalContainer.Title != "" {
		return r.ResultGlobalContainer.Title
	}
	if r.Content != nil {
		return r.Content.Expandable.Space
	}
	return ""
}

func (r searchResult) modified() string {
	if r.FriendlyLastModified != "" {
		return r.FriendlyLastModified
	}
	return wikimd.FormatTimestamp(r.LastModified)
}

// writeSearchResults renders a search response as Markdown.
func writeSearchResults(w io.Writer, query, baseOrigin string, resp *searchResponse) {
	fmt.Fprintf(w, "## Search results: %q\n\n", query)
	fmt.Fprintf(w, "Found %d results, showing %d:\n\n", resp.TotalSize, len(resp.Results))

	for i, r := range resp.Results {
		fmt.Fprintf(w, "### %d. %s\n", i+1, r.displayTitle())
		if s := r.space(); s != "" {
			fmt.Fprintf(w, "- **Space**: %s\n", s)
		}
		if m := r.modified(); m != "" {
			fmt.Fprintf(w, "- **Last modified**: %s\n", m)
		}
		if e := excerptText(r.Excerpt); e != "" {
			fmt.Fprintf(w, "- **Excerpt**: %s\n", e)
		}
		if r.URL != "" {
			fmt.Fprintf(w, "- **URL**: %s%s\n", baseOrigin, r.URL)
		}
		fmt.Fprintln(w)
	}
}

// runSearch executes one search and prints the results.
func runSearch(ctx context.Context, cfg *config, sc searchConfig, out io.Writer) error {
	if strings.TrimSpace(sc.query) == "" {
		return errMissingQuery
	}
	client, err := newWikiClient(cfg)
	if err != nil {
		return err
	}
	resp, err := client.search(ctx, sc.query, max(sc.start, 0), clampLimit(sc.limit))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	writeSearchResults(out, sc.query, client.origin(), resp)
	return nil
}
