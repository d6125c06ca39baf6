package phone

import "testing"

func TestE164(t *testing.T) {
	n := NewNormalizer("GB")
	cases := []struct {
		in, want string
	}{
		{"07400 123456", "+447400123456"},
		{"+44 7400 123456", "+447400123456"},
		{"447400123456", "+447400123456"},
		{"  ", ""},
		{"not a number", "not a number"},
	}
	for _, tc := range cases {
		if got := n.E164(tc.in); got != tc.want {
			t.Fatalf("E164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppIDDropsPlus(t *testing.T) {
	n := NewNormalizer("")
	if got := n.WhatsAppID("+447700900123"); got != "447700900123" {
		t.Fatalf("expected bare digits, got %q", got)
	}
}

func TestUnassignedRangesStillFormat(t *testing.T) {
	n := NewNormalizer("GB")
	cases := []struct {
		in, e164, whatsapp string
	}{
		{"+44 7700 900123", "+447700900123", "447700900123"},
		{"07700 900123", "+447700900123", "447700900123"},
		{"447700900123", "+447700900123", "447700900123"},
	}
	for _, tc := range cases {
		if got := n.E164(tc.in); got != tc.e164 {
			t.Fatalf("E164(%q) = %q, want %q", tc.in, got, tc.e164)
		}
		if got := n.WhatsAppID(tc.in); got != tc.whatsapp {
			t.Fatalf("WhatsAppID(%q) = %q, want %q", tc.in, got, tc.whatsapp)
		}
	}
}

func TestWhatsAppIDNeverContainsSeparators(t *testing.T) {
	n := NewNormalizer("GB")
	for _, in := range []string{"+44 7700 900123", "(0)7400-123-456", "not a number 12"} {
		got := n.WhatsAppID(in)
		for _, r := range got {
			if r < '0' || r > '9' {
				t.Fatalf("WhatsAppID(%q) = %q contains %q", in, got, r)
			}
		}
	}
}
