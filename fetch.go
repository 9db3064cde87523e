package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

const defaultUA = "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0"

// httpStatusError reports a non-2xx response.
type httpStatusError struct {
	Code int
	URL  string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.Code, e.URL)
}

// wikiClient issues single, non-retried requests against one wiki.
type wikiClient struct {
	base      *url.URL
	cookie    string
	userAgent string
	maxBytes  int64
	client    *http.Client
}

// newWikiClient builds a client from cfg. Without a proxy it uses a
// browser-fingerprinted transport; with one it falls back to standard TLS so
// the request can tunnel through the proxy.
func newWikiClient(cfg *config) (*wikiClient, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Cookie == "" {
		fmt.Fprintf(logOut, "Warning: WIKI_COOKIE is not set; requests may be rejected\n")
	}

	var hc *http.Client
	if cfg.Proxy != "" {
		hc = newProxyClient(cfg.Proxy, cfg.Timeout)
	} else {
		hc = newBrowserClient(cfg.Timeout)
	}
	c := &wikiClient{
		base:      base,
		cookie:    cfg.Cookie,
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxResponseSize,
		client:    hc,
	}
	hc.CheckRedirect = c.checkRedirect
	return c, nil
}

// origin is the base the converter resolves relative URLs against.
func (c *wikiClient) origin() string {
	return origin(c.base)
}

// newProxyClient creates an HTTP client that routes through the given proxy
// address using standard TLS.
func newProxyClient(proxyAddr string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: timeout}).DialContext,
	}
	if proxyURL, err := url.Parse(proxyAddr); err == nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// readLimited reads up to limit bytes from r. A body over the limit is an
// error; limit <= 0 reads without limit.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds maximum allowed size (%s)", humanSize(limit))
	}
	return data, nil
}

// utlsConn wraps a utls.UConn and satisfies net.Conn + the
// ConnectionState interface that net/http2 needs.
type utlsConn struct {
	*utls.UConn
}

func (c *utlsConn) ConnectionState() tls.ConnectionState {
	cs := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:                    cs.Version,
		HandshakeComplete:          cs.HandshakeComplete,
		CipherSuite:                cs.CipherSuite,
		NegotiatedProtocol:         cs.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: cs.NegotiatedProtocolIsMutual,
		ServerName:                 cs.ServerName,
		PeerCertificates:           cs.PeerCertificates,
		VerifiedChains:             cs.VerifiedChains,
		OCSPResponse:               cs.OCSPResponse,
		TLSUnique:                  cs.TLSUnique,
	}
}

// newBrowserClient creates an HTTP client that presents a Firefox TLS
// fingerprint on https and speaks HTTP/1.1 or HTTP/2 as negotiated.
func newBrowserClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	rt := &browserTransport{
		dialer: dialer,
		h1:     &http.Transport{DialContext: dialer.DialContext},
		h2:     &http2.Transport{},
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

type browserTransport struct {
	dialer *net.Dialer
	h1     *http.Transport
	h2     *http2.Transport
}

func (bt *browserTransport) dialUTLS(ctx context.Context, network, addr string) (net.Conn, string, error) {
	conn, err := bt.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, "", err
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloFirefox_120)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, "", err
	}
	return &utlsConn{tlsConn}, tlsConn.ConnectionState().NegotiatedProtocol, nil
}

func (bt *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return bt.h1.RoundTrip(req)
	}

	addr := req.URL.Host
	if !hasPort(addr) {
		addr = addr + ":443"
	}

	conn, alpn, err := bt.dialUTLS(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	if alpn == "h2" {
		h2conn, err := bt.h2.NewClientConn(conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return h2conn.RoundTrip(req)
	}

	// HTTP/1.1: hand the established TLS conn to a one-shot transport.
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return conn, nil
		},
	}
	return transport.RoundTrip(req)
}

func hasPort(host string) bool {
	_, _, err := net.SplitHostPort(host)
	return err == nil
}

// decodedBody undoes the Content-Encoding. Accept-Encoding is set by hand,
// so net/http leaves compressed bodies alone. Closing the result does not
// close resp.Body.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "br":
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return nil, fmt.Errorf("unsupported Content-Encoding %q", enc)
	}
}

// get performs one GET. The wiki cookie is attached only for the wiki host.
func (c *wikiClient) get(ctx context.Context, rawURL, accept string) ([]byte, http.Header, error) {
	u, err := checkFetchURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, br")
	if c.sendsCredentials(u) {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &httpStatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := decodedBody(resp)
	if err != nil {
		return nil, nil, err
	}
	defer body.Close()
	data, err := readLimited(body, c.maxBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	fmt.Fprintf(logOut, "Fetched %s (%s)\n", shortURL(rawURL), humanSize(int64(len(data))))
	return data, resp.Header, nil
}

// pageURL maps a page id or page URL to the URL to fetch. Values starting
// with "http" or containing the wiki host are URLs; anything else is an id.
func (c *wikiClient) pageURL(pageIDOrURL string) (string, error) {
	v := strings.TrimSpace(pageIDOrURL)
	switch {
	case v == "":
		return "", errMissingTarget
	case strings.HasPrefix(v, "http"):
		return v, nil
	case strings.Contains(v, c.base.Host):
		return c.base.Scheme + "://" + strings.TrimPrefix(v, "//"), nil
	}
	return c.origin() + "/pages/viewpage.action?pageId=" + url.QueryEscape(v), nil
}

// pageHTML returns the rendered page markup.
func (c *wikiClient) pageHTML(ctx context.Context, pageIDOrURL string) (string, error) {
	u, err := c.pageURL(pageIDOrURL)
	if err != nil {
		return "", err
	}
	data, _, err := c.get(ctx, u, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// cqlQuote escapes a value for use inside a double-quoted CQL string.
var cqlQuote = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// searchURL builds the site search request for one page of results.
func (c *wikiClient) searchURL(query string, start, limit int) string {
	q := url.Values{}
	q.Set("cql", fmt.Sprintf(`siteSearch ~ "%s" AND type in ("space","user","page","blogpost","attachment")`, cqlQuote.Replace(query)))
	q.Set("start", strconv.Itoa(start))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("excerpt", "highlight")
	q.Set("expand", "space.icon")
	q.Set("includeArchivedSpaces", "false")
	q.Set("src", "next.ui.search")
	return c.origin() + "/rest/api/search?" + q.Encode()
}

// search runs a site search.
func (c *wikiClient) search(ctx context.Context, query string, start, limit int) (*searchResponse, error) {
	data, _, err := c.get(ctx, c.searchURL(query, start, limit), "application/json")
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &resp, nil
}

// binary downloads a resource and returns its bytes and sniffed MIME type.
func (c *wikiClient) binary(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, header, err := c.get(ctx, rawURL, "image/avif,image/webp,image/png,image/*;q=0.8,*/*;q=0.5")
	if err != nil {
		return nil, "", err
	}
	mime := mimetype.Detect(data).String()
	if ct := header.Get("Content-Type"); strings.HasPrefix(mime, "application/octet-stream") && ct != "" {
		mime = ct
	}
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	return data, strings.TrimSpace(mime), nil
}
