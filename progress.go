// Progress lines for multi-page export.
package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

// progressOut receives progress lines. export points it at stdout unless
// --silent is set; everywhere else it stays io.Discard.
var progressOut io.Writer = io.Discard

// progressMu serialises writes so concurrent page exports don't interleave
// lines.
var progressMu sync.Mutex

func pprintf(format string, args ...any) {
	progressMu.Lock()
	defer progressMu.Unlock()
	fmt.Fprintf(progressOut, format, args...)
}

// shortURL returns host + path without scheme, truncated to 60 characters.
// Values that are not URLs, such as page ids, are returned unchanged.
func shortURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	display := strings.TrimSuffix(u.Host+u.Path, "/")
	if r := []rune(display); len(r) > 60 {
		display = string(r[:57]) + "..."
	}
	return display
}
