package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var errUnsupportedScheme = errors.New("only http and https URLs can be fetched")

// checkFetchURL parses rawURL and rejects anything but absolute http(s) URLs.
func checkFetchURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", errUnsupportedScheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", rawURL)
	}
	return u, nil
}

// effectivePort returns the explicit port, or the scheme default.
func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "http" {
		return "80"
	}
	return "443"
}

// sameHost reports whether a and b name the same host and port.
func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname()) && effectivePort(a) == effectivePort(b)
}

// sendsCredentials reports whether the wiki cookie may be attached to a
// request for u. Images hosted elsewhere are fetched anonymously.
func (c *wikiClient) sendsCredentials(u *url.URL) bool {
	return c.cookie != "" && sameHost(u, c.base)
}

// checkRedirect keeps redirects on http(s) and strips the cookie when a
// redirect leaves the wiki host. net/http ignores ports when it decides
// whether to forward the cookie, so that alone is not enough.
func (c *wikiClient) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return errors.New("stopped after 10 redirects")
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("%w: redirect to %q", errUnsupportedScheme, req.URL.String())
	}
	if !c.sendsCredentials(req.URL) {
		req.Header.Del("Cookie")
	}
	return nil
}
