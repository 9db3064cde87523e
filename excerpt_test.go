package main

import (
	"strings"
	"testing"
)

func TestExcerptText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"plain", "just text", "just text"},
		{"markers", "a @@@hl@@@hit@@@endhl@@@ b", "a **hit** b"},
		{"highlight span", `see <span class="highlight">deploy</span> guide`, "see **deploy** guide"},
		{"image alt", `<img src="x.png" alt="logo"> Docs`, "logo Docs"},
		{"newlines collapse", "line one\n\n  line two", "line one line two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := excerptText(tt.in); got != tt.want {
				t.Errorf("excerptText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExcerptText_PlainSpanUnchanged(t *testing.T) {
	got := excerptText(`<span class="other">word</span>`)
	if strings.Contains(got, "**") || !strings.Contains(got, "word") {
		t.Errorf("non-highlight span should render as text, got %q", got)
	}
}

func TestStripTags(t *testing.T) {
	if got := stripTags(`<p>Hello <b>wiki</b></p><script></script>`); got != "Hello wiki" {
		t.Errorf("got %q", got)
	}
}
