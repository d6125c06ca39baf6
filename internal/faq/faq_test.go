package faq

import (
	"strings"
	"testing"
)

func TestMatchFirstEntryWins(t *testing.T) {
	cases := []struct {
		text   string
		prefix string
	}{
		{"Are you open on Saturday?", "📅 *Opening Hours*"},
		{"HOW MUCH is a call-out?", "💰 *Standard Rates*"},
		{"it's an emergency", "🚨 *Emergency Service*"},
		{"do you cover SE1?", "📍 *Coverage Area*"},
		{"can I pay by card", "💳 *Payment Methods*"},
		{"how long does it take", "⏱️ *Job Duration*"},
		// "hours" belongs to both the opening-hours and duration entries.
		{"what are your hours", "📅 *Opening Hours*"},
		{"I need to reschedule", "🔄 *Cancellations"},
	}
	for _, tc := range cases {
		got, ok := Match(tc.text)
		if !ok {
			t.Fatalf("expected a match for %q", tc.text)
		}
		if !strings.HasPrefix(got, tc.prefix) {
			t.Fatalf("Match(%q) returned %q, want prefix %q", tc.text, got[:20], tc.prefix)
		}
	}
}

func TestMatchNoKeyword(t *testing.T) {
	if _, ok := Match("my boiler makes a noise"); ok {
		t.Fatalf("expected no match")
	}
	if _, ok := Match("   "); ok {
		t.Fatalf("expected no match for blank text")
	}
}

func TestTopicAnswer(t *testing.T) {
	for topic := range topics {
		got, ok := TopicAnswer(topic)
		if !ok {
			t.Fatalf("expected answer for %s", topic)
		}
		if !strings.HasSuffix(got, TopicFooter) {
			t.Fatalf("expected footer on %s answer", topic)
		}
	}

	price, _ := TopicAnswer("faq_price")
	if !strings.HasPrefix(price, "💰 *Standard Rates*") {
		t.Fatalf("faq_price resolved to the wrong entry: %q", price)
	}
	if _, ok := TopicAnswer("faq_unknown"); ok {
		t.Fatalf("expected unknown topic to report false")
	}
}
