package main

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var testPages = map[string]string{
	"100": `<html><head><meta name="ajs-page-title" content="Onboarding"><meta name="ajs-page-id" content="100"></head><body>
<div id="main-content" class="wiki-content">
<h2>Accounts</h2>
<p>Ask <b>IT</b> for a laptop.</p>
<p><img src="/download/attachments/100/laptop.png" alt="laptop"></p>
</div></body></html>`,
	"200": `<html><head><meta name="ajs-page-title" content="Deploys"><meta name="ajs-page-id" content="200"></head><body>
<div id="main-content" class="wiki-content">
<ul><li>build</li><li>ship</li></ul>
</div></body></html>`,
}

// newWikiServer serves the pages above by id, one attachment and a search
// endpoint. Every request must carry the test cookie.
func newWikiServer(t *testing.T) *httptest.Server {
	t.Helper()
	png := makePNG(30, 30, color.NRGBA{0, 200, 0, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "JSESSIONID=cli" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/pages/viewpage.action":
			page, ok := testPages[r.URL.Query().Get("pageId")]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, page)
		case "/download/attachments/100/laptop.png":
			w.Write(png)
		case "/rest/api/search":
			fmt.Fprintf(w, `{"results":[{"title":"Onboarding","excerpt":"get a @@@hl@@@%s@@@endhl@@@","url":"/display/HR/Onboarding",
				"resultGlobalContainer":{"title":"HR"},"friendlyLastModified":"yesterday"}],"totalSize":1}`, r.URL.Query().Get("limit"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runCLI executes the root command with a clean environment pointing at
// base, and returns stdout.
func runCLI(t *testing.T, base string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WIKI_BASE_URL", base)
	t.Setenv("WIKI_COOKIE", "JSESSIONID=cli")
	t.Setenv("WIKICLI_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	savedLog, savedProgress := logOut, progressOut
	logOut = io.Discard
	defer func() { logOut, progressOut = savedLog, savedProgress }()

	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_ConvertByPositionalID(t *testing.T) {
	srv := newWikiServer(t)
	out, err := runCLI(t, srv.URL, "convert", "100")
	if err != nil {
		t.Fatal(err)
	}
	wants := []string{
		"# Onboarding",
		"## Accounts",
		"Ask **IT** for a laptop.",
		"![laptop](" + srv.URL + "/download/attachments/100/laptop.png)",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in:\n%s", w, out)
		}
	}
}

func TestCLI_ConvertFlagPriority(t *testing.T) {
	srv := newWikiServer(t)
	out, err := runCLI(t, srv.URL, "convert", "--page-id", "200", "100")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# Deploys") {
		t.Errorf("--page-id should win over the positional argument:\n%s", out)
	}

	out, err = runCLI(t, srv.URL, "convert", "-u", srv.URL+"/pages/viewpage.action?pageId=100", "-p", "200")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# Onboarding") {
		t.Errorf("--url should win over --page-id:\n%s", out)
	}
}

func TestCLI_ConvertToFile(t *testing.T) {
	srv := newWikiServer(t)
	path := filepath.Join(t.TempDir(), "out.md")
	out, err := runCLI(t, srv.URL, "convert", "200", "-o", path)
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("stdout should be empty with -o, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	if !strings.HasPrefix(md, "# Deploys\n\n") || !strings.Contains(md, "- build\n- ship") || !strings.HasSuffix(md, "\n") {
		t.Errorf("got %q", md)
	}
}

func TestCLI_ConvertSave(t *testing.T) {
	srv := newWikiServer(t)
	cacheDir := t.TempDir()
	out, err := runCLI(t, srv.URL, "convert", "100", "--save", "--cache-dir", cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(cacheDir, "Onboarding-100")
	wants := []string{
		"## Conversion complete",
		"**Markdown file**: " + filepath.Join(dir, "Onboarding.md"),
		"**Output directory**: " + dir,
		"**Downloaded images**: 1",
		"---",
		"![laptop](100_laptop.png)",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in:\n%s", w, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "100_laptop.png")); err != nil {
		t.Errorf("image not saved: %v", err)
	}
}

func TestCLI_ConvertErrors(t *testing.T) {
	srv := newWikiServer(t)
	if _, err := runCLI(t, srv.URL, "convert"); !errors.Is(err, errMissingTarget) {
		t.Errorf("no target: got %v", err)
	}

	_, err := runCLI(t, srv.URL, "convert", "999")
	var se *httpStatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("unknown page: got %v", err)
	}

	if _, err := runCLI(t, srv.URL, "convert", "100", "--base-url", "not-a-url"); err == nil {
		t.Error("invalid --base-url should fail validation")
	}
}

func TestCLI_Search(t *testing.T) {
	srv := newWikiServer(t)
	out, err := runCLI(t, srv.URL, "search", "laptop", "--limit", "99")
	if err != nil {
		t.Fatal(err)
	}
	wants := []string{
		`## Search results: "laptop"`,
		"Found 1 results, showing 1:",
		"### 1. Onboarding",
		"- **Space**: HR",
		"- **Last modified**: yesterday",
		"- **Excerpt**: get a **50**",
		"- **URL**: " + srv.URL + "/display/HR/Onboarding",
	}
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("missing %q in:\n%s", w, out)
		}
	}

	if _, err := runCLI(t, srv.URL, "search"); !errors.Is(err, errMissingQuery) {
		t.Errorf("no query: got %v", err)
	}
	if _, err := runCLI(t, srv.URL, "search", "-q", "laptop"); err != nil {
		t.Errorf("--query: %v", err)
	}
}

func TestCLI_ExportHTML(t *testing.T) {
	srv := newWikiServer(t)
	dir := t.TempDir()
	list := filepath.Join(dir, "Team Handbook.txt")
	if err := os.WriteFile(list, []byte("# pages\n100\n\n999\n200\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(dir, "book.html")

	progress, err := runCLI(t, srv.URL, "export", "-o", output, list)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(progress, "[1/3] 100") || !strings.Contains(progress, "[3/3] 200") {
		t.Errorf("expected progress lines, got %q", progress)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	doc := string(data)
	wants := []string{
		"<title>Team Handbook</title>",
		"<h1>Team Handbook</h1>",
		"<h2>Onboarding</h2>",
		"<h2>Deploys</h2>",
		`src="data:image/png;base64,`,
		"<hr/>",
	}
	for _, w := range wants {
		if !strings.Contains(doc, w) {
			t.Errorf("missing %q", w)
		}
	}
	if strings.Index(doc, "Onboarding") > strings.Index(doc, "Deploys") {
		t.Error("pages should keep list order")
	}
}

func TestCLI_ExportEpub(t *testing.T) {
	srv := newWikiServer(t)
	output := filepath.Join(t.TempDir(), "pages.epub")
	if _, err := runCLI(t, srv.URL, "export", "-o", output, "--title", "Ops", "100", "200", "--silent"); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(output)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	names := zipNames(zr)
	if !names["EPUB/xhtml/page001.xhtml"] || !names["EPUB/xhtml/page002.xhtml"] {
		t.Errorf("expected two sections, got %v", names)
	}
	if !names["EPUB/images/p001_img000.png"] {
		t.Errorf("expected the saved attachment in the epub, got %v", names)
	}
}

func TestCLI_ExportErrors(t *testing.T) {
	srv := newWikiServer(t)
	if _, err := runCLI(t, srv.URL, "export", "100"); !errors.Is(err, errMissingOutput) {
		t.Errorf("no -o: got %v", err)
	}
	out := filepath.Join(t.TempDir(), "x.epub")
	if _, err := runCLI(t, srv.URL, "export", "-o", out); err == nil {
		t.Error("no pages should be an error")
	}
	if _, err := runCLI(t, srv.URL, "export", "-o", out, "998", "999"); err == nil || !strings.Contains(err.Error(), "no pages converted") {
		t.Errorf("all pages failing: got %v", err)
	}
	if _, err := runCLI(t, srv.URL, "export", "-o", out, "--format", "pdf", "100"); err == nil {
		t.Error("unknown format should be an error")
	}
}

func TestBookTitle(t *testing.T) {
	two := []exportPage{{Title: "A"}, {Title: "B"}}
	tests := []struct {
		override, list, output string
		pages                  []exportPage
		want                   string
	}{
		{"Given", "list", "out.epub", two, "Given"},
		{"", "list", "out.epub", two, "list"},
		{"", "", "out.epub", two, "A & more"},
		{"", "", "out.epub", two[:1], "A"},
		{"", "", "/tmp/my-book.epub", []exportPage{{}}, "my-book"},
	}
	for _, tt := range tests {
		if got := bookTitle(tt.override, tt.list, tt.output, tt.pages); got != tt.want {
			t.Errorf("bookTitle(%q, %q, %q) = %q, want %q", tt.override, tt.list, tt.output, got, tt.want)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		format, output, want string
	}{
		{"", "book.epub", "epub"},
		{"", "book.HTML", "html"},
		{"", "book", "epub"},
		{"html", "book.epub", "html"},
	}
	for _, tt := range tests {
		got, err := exportConfig{format: tt.format, output: tt.output}.outputFormat()
		if err != nil || got != tt.want {
			t.Errorf("outputFormat(%q, %q) = %q, %v", tt.format, tt.output, got, err)
		}
	}
}

func TestReadPageList(t *testing.T) {
	p := filepath.Join(t.TempDir(), "pages.txt")
	if err := os.WriteFile(p, []byte("  100  \n# comment\n\nhttps://wiki.example/x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readPageList(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "100" || got[1] != "https://wiki.example/x" {
		t.Errorf("got %q", got)
	}
}
