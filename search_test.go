package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const searchJSON = `{
  "results": [
    {
      "content": {"id": "101", "type": "page", "status": "current", "title": "Release Notes",
                  "_expandable": {"space": "/rest/api/space/ENG"}},
      "title": "@@@hl@@@Release@@@endhl@@@ Notes",
      "excerpt": "What changed in the @@@hl@@@release@@@endhl@@@ and why",
      "url": "/display/ENG/Release+Notes",
      "resultGlobalContainer": {"title": "Engineering", "displayUrl": "/display/ENG"},
      "entityType": "content",
      "lastModified": "2024-03-01T10:15:00.000Z",
      "friendlyLastModified": "Mar 01, 2024"
    },
    {
      "content": {"id": "102", "type": "page", "title": "Fallback Title",
                  "_expandable": {"space": "/rest/api/space/OPS"}},
      "title": "",
      "excerpt": "",
      "url": "/pages/viewpage.action?pageId=102",
      "lastModified": "2024-03-02T08:05:00Z"
    },
    {
      "title": "",
      "url": ""
    }
  ],
  "start": 0,
  "limit": 10,
  "totalSize": 42,
  "cqlQuery": "siteSearch ~ \"release\"",
  "searchDuration": 17
}`

func TestWriteSearchResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchJSON))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).search(context.Background(), "release", 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	writeSearchResults(&buf, "release", "https://wiki.example", resp)
	out := buf.String()

	wants := []string{
		"## Search results: \"release\"\n\n",
		"Found 42 results, showing 3:\n\n",
		"### 1. **Release** Notes\n",
		"- **Space**: Engineering\n",
		"- **Last modified**: Mar 01, 2024\n",
		"- **Excerpt**: What changed in the **release** and why\n",
		"- **URL**: https://wiki.example/display/ENG/Release+Notes\n",
		"### 2. Fallback Title\n",
		"- **Space**: /rest/api/space/OPS\n",
		"- **Last modified**: 2024-03-02 08:05\n",
		"### 3. Untitled\n",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q\n--- got ---\n%s", w, out)
		}
	}
	if strings.Contains(out, "@@@") {
		t.Error("highlight markers should not leak into the output")
	}
}

func TestSearch_RequestShape(t *testing.T) {
	var gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("cql")
		w.Write([]byte(`{"results": [], "totalSize": 0}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv.URL).search(context.Background(), "on-call", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if gotPath != "/rest/api/search" || !strings.Contains(gotQuery, `siteSearch ~ "on-call"`) {
		t.Errorf("unexpected request %s cql=%s", gotPath, gotQuery)
	}
	if len(resp.Results) != 0 {
		t.Errorf("expected no results, got %d", len(resp.Results))
	}
}

func TestSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL).search(context.Background(), "x", 0, 5); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRunSearch_MissingQuery(t *testing.T) {
	err := runSearch(context.Background(), testConfig("https://wiki.example"), searchConfig{query: "  "}, &bytes.Buffer{})
	if !errors.Is(err, errMissingQuery) {
		t.Errorf("got %v, want errMissingQuery", err)
	}
}

func TestRunSearch_ClampsLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := runSearch(context.Background(), testConfig(srv.URL), searchConfig{query: "x", limit: 500}, &buf); err != nil {
		t.Fatal(err)
	}
	if gotLimit != "50" {
		t.Errorf("limit = %s, want 50", gotLimit)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {10, 10}, {50, 50}, {51, 50},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
