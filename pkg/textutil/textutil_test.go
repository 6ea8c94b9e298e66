package textutil

import (
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	in := `<p>Join us <b>downtown</b> for a rally.</p><script>alert("x")</script>`

	got := StripHTML(in)
	if got != "Join us downtown for a rally." {
		t.Errorf("StripHTML = %q", got)
	}
}

func TestStripHTML_Entities(t *testing.T) {
	got := StripHTML("Fish &amp; chips &mdash; 6pm")
	if !strings.Contains(got, "Fish & chips") {
		t.Errorf("entities not unescaped: %q", got)
	}
}

func TestStripHTML_StyleBlock(t *testing.T) {
	got := StripHTML("<style>p { color: red }</style>Hello")
	if got != "Hello" {
		t.Errorf("style body leaked: %q", got)
	}
}

func TestCleanText_Truncates(t *testing.T) {
	long := strings.Repeat("a", 5000)

	got := CleanText(long, 0)
	if len(got) != MaxDescriptionLen {
		t.Errorf("len = %d, want %d", len(got), MaxDescriptionLen)
	}
}

func TestCleanText_CollapsesWhitespace(t *testing.T) {
	got := CleanText("a \t b\n\n\n\nc", 100)
	if got != "a b\n\nc" {
		t.Errorf("CleanText = %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := NormalizeWhitespace("  a \n b\tc  ")
	if got != "a b c" {
		t.Errorf("NormalizeWhitespace = %q", got)
	}
}
