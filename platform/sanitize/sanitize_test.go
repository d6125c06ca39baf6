package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "leaking kitchen tap", 0, "leaking kitchen tap"},
		{"html", "<b>burst</b> pipe &lt;script&gt;x&lt;/script&gt;", 0, "burst pipe x"},
		{"spaces", "  12   High\tStreet \x07", 0, "12 High Street"},
		{"truncate", "abcdef", 3, "abc"},
		{"keeps newlines", "line one\nline two", 0, "line one\nline two"},
		{"tab separates words", "12 High\tStreet", 0, "12 High Street"},
		{"carriage returns", "flat 2\r\nlow road\rnorth", 0, "flat 2\nlow road north"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Text(tc.in, tc.max); got != tc.want {
				t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
