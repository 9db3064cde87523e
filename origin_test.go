package main

import (
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCheckFetchURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://wiki.example/page", false},
		{"http://127.0.0.1:8080/x", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"/relative/path", true},
		{"https://", true},
	}
	for _, tt := range tests {
		_, err := checkFetchURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkFetchURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestSameHost(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"https://wiki.example/a", "https://wiki.example/b", true},
		{"https://WIKI.example", "https://wiki.example", true},
		{"https://wiki.example", "https://wiki.example:443", true},
		{"http://wiki.example", "https://wiki.example", false},
		{"https://wiki.example", "https://cdn.wiki.example", false},
		{"http://127.0.0.1:8080", "http://127.0.0.1:9090", false},
	}
	for _, tt := range tests {
		if got := sameHost(mustParse(t, tt.a), mustParse(t, tt.b)); got != tt.want {
			t.Errorf("sameHost(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSendsCredentials(t *testing.T) {
	c := &wikiClient{base: mustParse(t, "https://wiki.example"), cookie: "s=1"}
	if !c.sendsCredentials(mustParse(t, "https://wiki.example/download/attachments/1/a.png")) {
		t.Error("cookie should go to the wiki host")
	}
	if c.sendsCredentials(mustParse(t, "https://images.example/a.png")) {
		t.Error("cookie must not go to other hosts")
	}

	anon := &wikiClient{base: mustParse(t, "https://wiki.example")}
	if anon.sendsCredentials(mustParse(t, "https://wiki.example/")) {
		t.Error("no cookie configured, nothing to send")
	}
}

func TestCheckRedirect(t *testing.T) {
	c := &wikiClient{base: mustParse(t, "https://wiki.example"), cookie: "s=1"}

	req := &http.Request{URL: mustParse(t, "https://elsewhere.example/x"), Header: http.Header{"Cookie": {"s=1"}}}
	if err := c.checkRedirect(req, make([]*http.Request, 1)); err != nil {
		t.Fatal(err)
	}
	if req.Header.Get("Cookie") != "" {
		t.Error("cookie should be stripped on redirect to another host")
	}

	req = &http.Request{URL: mustParse(t, "https://wiki.example/y"), Header: http.Header{"Cookie": {"s=1"}}}
	if err := c.checkRedirect(req, make([]*http.Request, 1)); err != nil {
		t.Fatal(err)
	}
	if req.Header.Get("Cookie") != "s=1" {
		t.Error("cookie should survive a same-host redirect")
	}

	req = &http.Request{URL: mustParse(t, "ftp://wiki.example/"), Header: http.Header{}}
	if err := c.checkRedirect(req, nil); !errors.Is(err, errUnsupportedScheme) {
		t.Errorf("expected errUnsupportedScheme, got %v", err)
	}

	req = &http.Request{URL: mustParse(t, "https://wiki.example/"), Header: http.Header{}}
	if err := c.checkRedirect(req, make([]*http.Request, 10)); err == nil {
		t.Error("expected error after 10 redirects")
	}
}
