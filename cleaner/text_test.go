package cleaner

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Breaking news", "Breaking news"},
		{"empty", "", ""},
		{"inline tags", "<b>Bold</b> and <a href=\"/x\">linked</a> text", "Bold and linked text"},
		{"entities", "Caf&eacute; &amp; bar &quot;De Zwaan&quot;", `Café & bar "De Zwaan"`},
		{"collapse whitespace", "  lots   of \n\t space ", "lots of space"},
		{"line break", "first<br>second<br/>third", "first\nsecond\nthird"},
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"script dropped", "<script>var x = 1;</script>visible<style>p{}</style>", "visible"},
		{"nested markup", "<span class=\"x\"><em>Vandaag</em></span> in <strong>Brussel</strong>", "Vandaag in Brussel"},
		{"non-breaking space entity", "a&nbsp;b", "a b"},
		{"raw non-breaking spaces", "a\u00a0\u00a0b", "a b"},
		{"non-breaking space between tags", "<p>a\u00a0</p><p>\u00a0b</p>", "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
