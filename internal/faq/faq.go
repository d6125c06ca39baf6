// Package faq answers common customer questions from a fixed keyword table.
package faq

import "strings"

// TopicFooter is appended to answers picked from the FAQ menu.
const TopicFooter = "\n\n_Type anything to continue or say \"menu\" to go back._"

// Entry is one FAQ answer and the lowercase keywords that select it.
type Entry struct {
	Keywords []string
	Answer   string
}

// Entries is ordered: the first entry with a matching keyword wins.
var Entries = []Entry{
	{
		Keywords: []string{"weekend", "saturday", "sunday", "open", "hours", "opening"},
		Answer: "📅 *Opening Hours*\n\nYes, we're available 7 days a week, including weekends and bank holidays.\n\n" +
			"• Mon–Fri: 7am–9pm\n• Sat–Sun: 8am–6pm\n\nEmergency call-outs are available 24/7 (out-of-hours surcharge applies).",
	},
	{
		Keywords: []string{"call-out", "callout", "charge", "fee", "cost", "price", "rate", "quote", "much"},
		Answer: "💰 *Standard Rates*\n\n• Plumber: £80–£120 call-out + parts/labour\n• Locksmith: £60–£100 call-out\n" +
			"• Electrician: £60–£100 call-out\n• Handyman: £40–£60/hr (min. 1 hour)\n\nUrgent/out-of-hours: +30–50%\n\n" +
			"Send me the details and I'll give you a more accurate estimate! 👇",
	},
	{
		Keywords: []string{"urgent", "emergency", "asap", "tonight", "now", "immediately", "quickly"},
		Answer: "🚨 *Emergency Service*\n\nYes, we offer same-day and emergency call-outs. An engineer can usually be with you within 60–90 minutes.\n\n" +
			"Shall I book an urgent job for you now? Just tell me what you need! 🔧",
	},
	{
		Keywords: []string{"area", "cover", "location", "zone", "travel", "come to", "radius"},
		Answer: "📍 *Coverage Area*\n\nWe currently cover central London and surrounding areas up to 15 miles. " +
			"If you're unsure if we cover your area, share your postcode and I'll check!",
	},
	{
		Keywords: []string{"guarantee", "warranty", "insured", "insurance", "accredited"},
		Answer: "✅ *Our Guarantee*\n\nAll our engineers are fully insured and accredited. Every job comes with a *12-month workmanship guarantee*.\n\n" +
			"If anything isn't right after the job, we'll come back and fix it at no extra cost.",
	},
	{
		Keywords: []string{"payment", "pay", "card", "cash", "invoice", "bank transfer", "bacs"},
		Answer: "💳 *Payment Methods*\n\nWe accept:\n• Cash\n• Credit/debit card\n• Bank transfer (BACS)\n\n" +
			"Payment is due on completion of work. We can email an invoice if needed.",
	},
	{
		Keywords: []string{"how long", "long take", "duration", "time", "wait", "minutes", "hours"},
		Answer: "⏱️ *Job Duration*\n\nMost standard jobs take 1–2 hours. Larger or more complex jobs may take longer.\n\n" +
			"We'll give you a time estimate on-site before starting any work.",
	},
	{
		Keywords: []string{"cancel", "rescheduled", "reschedule", "postpone", "change"},
		Answer: "🔄 *Cancellations & Rescheduling*\n\nYou can cancel or reschedule at no cost up to *2 hours before* the appointment.\n\n" +
			"To change a booking, just reply here or call us directly.",
	},
}

// topics maps FAQ menu ids to the keywords that identify their entry.
var topics = map[string][]string{
	"faq_hours":     {"weekend", "open"},
	"faq_price":     {"cost", "price"},
	"faq_urgent":    {"urgent", "emergency"},
	"faq_area":      {"area", "cover"},
	"faq_payment":   {"payment", "pay"},
	"faq_guarantee": {"guarantee", "insured"},
}

// Match returns the answer of the first entry with a keyword contained in
// text, compared case-insensitively.
func Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, e := range Entries {
		for _, k := range e.Keywords {
			if strings.Contains(lower, k) {
				return e.Answer, true
			}
		}
	}
	return "", false
}

// IsTopic reports whether token looks like an FAQ menu selection.
func IsTopic(token string) bool {
	return strings.HasPrefix(token, "faq_")
}

// TopicAnswer returns the footer-suffixed answer for an FAQ menu id. Unknown
// ids report false.
func TopicAnswer(topic string) (string, bool) {
	keys, ok := topics[topic]
	if !ok {
		return "", false
	}
	for _, e := range Entries {
		for _, k := range e.Keywords {
			for _, want := range keys {
				if k == want {
					return e.Answer + TopicFooter, true
				}
			}
		}
	}
	return "", false
}
