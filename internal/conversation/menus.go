package conversation

import (
	"fmt"
	"strconv"
	"time"
)

// Menu and button tokens echoed back by the channel.
const (
	TokenMenuRequest = "menu_request"
	TokenMenuQuote   = "menu_quote"
	TokenMenuFAQ     = "menu_faq"
	TokenMenuHuman   = "menu_human"
	TokenUrgentYes   = "intake_urgent_yes"
	TokenUrgentNo    = "intake_urgent_no"
	TokenConfirmYes  = "confirm_yes"
	TokenConfirmNo   = "confirm_no"
	slotTokenPrefix  = "slot_"
)

// Service is a bookable trade.
type Service struct {
	ID          string
	Title       string
	Description string
}

// Services lists the trades offered in the service menu.
var Services = []Service{
	{ID: "svc_plumber", Title: "Plumber", Description: "Leaks, pipes, boilers"},
	{ID: "svc_locksmith", Title: "Locksmith", Description: "Locks, keys, security"},
	{ID: "svc_electrician", Title: "Electrician", Description: "Wiring, fuses, sockets"},
	{ID: "svc_handyman", Title: "Handyman", Description: "General repairs & fixes"},
}

// LookupService finds a service by its menu id.
func LookupService(id string) (Service, bool) {
	for _, s := range Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

const (
	msgGeneratingQuote = "⏳ Generating your quote..."
	msgCheckingSlots   = "📅 Checking available appointment slots..."
	msgCancelled       = "No problem! Feel free to message us anytime you need help. 😊"
	msgInternalError   = "Sorry, something went wrong on our side. Please try again in a moment."
)

const msgNoSlots = "✅ *Booking confirmed!*\n\nWe couldn't find an automatic slot right now. " +
	"Our team will contact you shortly to arrange a convenient time. 📞\n\nIs there anything else I can help with?"

const msgAIUnavailable = "Sorry, I couldn't answer that right now. Type \"menu\" to see the options, " +
	"or choose \"Speak to Someone\" to reach our team."

const msgHandoffCustomer = "I'm connecting you with a member of our team now. 👤\n\n" +
	"They'll reply to you shortly. Thank you for your patience!"

func welcomeMenu() Outbound {
	return List(
		"👋 Welcome! I'm your service booking assistant.\n\nHow can I help you today?",
		"Choose an option",
		Option{ID: TokenMenuRequest, Title: "🔧 Request a Service", Description: "Book a plumber, locksmith, electrician..."},
		Option{ID: TokenMenuQuote, Title: "💰 Get a Quote", Description: "Estimate cost before booking"},
		Option{ID: TokenMenuFAQ, Title: "❓ FAQ", Description: "Hours, pricing, coverage & more"},
		Option{ID: TokenMenuHuman, Title: "👤 Speak to Someone", Description: "Connect with our team directly"},
	)
}

func faqMenu() Outbound {
	return List(
		"❓ *Frequently Asked Questions*\n\nSelect a topic or just type your question:",
		"Browse FAQs",
		Option{ID: "faq_hours", Title: "🕐 Opening Hours", Description: "When are you available?"},
		Option{ID: "faq_price", Title: "💰 Pricing & Rates", Description: "How much does it cost?"},
		Option{ID: "faq_urgent", Title: "🚨 Emergency Service", Description: "Same-day or urgent help"},
		Option{ID: "faq_area", Title: "📍 Coverage Area", Description: "Do you cover my location?"},
		Option{ID: "faq_payment", Title: "💳 Payment Methods", Description: "Cash, card, bank transfer?"},
		Option{ID: "faq_guarantee", Title: "✅ Guarantee & Insurance", Description: "Are you insured?"},
	)
}

func serviceMenu() Outbound {
	options := make([]Option, 0, len(Services))
	for _, s := range Services {
		options = append(options, Option{ID: s.ID, Title: s.Title, Description: s.Description})
	}
	return List("Which service do you need?\n\nSelect from the list below 👇", "Choose a service", options...)
}

func intakeQuestion(step IntakeStep, serviceType string) Outbound {
	switch step {
	case StepDescription:
		return Text(fmt.Sprintf("Great choice! To get started with your *%s* request, could you briefly describe the problem? (e.g. \"leaking kitchen tap\")", serviceType))
	case StepAddress:
		return Text("Thanks! What's the address where you need the service?")
	default:
		return Buttons("Is this urgent? 🚨",
			Option{ID: TokenUrgentYes, Title: "🚨 Yes, urgent"},
			Option{ID: TokenUrgentNo, Title: "📅 No, can wait"},
		)
	}
}

func jobSummary(b Booking) Outbound {
	priority := "📅 Scheduled"
	if b.Urgent {
		priority = "🚨 Urgent (within 2 hours)"
	}
	body := "✅ *Here's your job summary:*\n\n" +
		"🔧 Service: " + b.ServiceType + "\n" +
		"📝 Problem: " + b.Description + "\n" +
		"📍 Address: " + b.Address + "\n" +
		"⏰ Priority: " + priority + "\n" +
		fmt.Sprintf("💰 Estimated quote: £%d–£%d\n\n", b.QuoteMin, b.QuoteMax) +
		"Shall I confirm this booking?"
	return Buttons(body,
		Option{ID: TokenConfirmYes, Title: "✅ Confirm Booking"},
		Option{ID: TokenConfirmNo, Title: "❌ Cancel"},
	)
}

func slotPicker(candidates []time.Time, now time.Time, loc *time.Location) Outbound {
	options := make([]Option, 0, len(candidates))
	for i, c := range candidates {
		options = append(options, Option{
			ID:          slotTokenPrefix + strconv.Itoa(i),
			Title:       SlotLabel(c, now, loc),
			Description: "Tap to confirm this time",
		})
	}
	return List("📅 *Choose your appointment slot*\n\nHere are the next available times for your booking:", "Pick a slot", options...)
}

func bookedMessage(at time.Time, address string, loc *time.Location) Outbound {
	return Text("✅ *Appointment booked!*\n\n" +
		"📅 " + at.In(loc).Format("Monday 2 January, 3:04pm") + "\n" +
		"📍 " + address + "\n\n" +
		"Your engineer will arrive at the scheduled time. You'll receive a reminder closer to the date.\n\n" +
		"Is there anything else I can help with?")
}

func handoffAlert(customerPhone, reason string) Outbound {
	body := "🔔 *Handoff Alert*\n\nA customer needs your attention.\n\n" +
		"Customer: " + customerPhone + "\nPhone: " + customerPhone
	if reason != "" {
		body += "\nReason: " + reason
	}
	body += "\n\nReply directly to this number on WhatsApp to respond."
	return Text(body)
}

// SlotLabel renders a slot as "Today 2:00pm", "Tomorrow 9:30am" or
// "Mon 14 Apr 10:00am" in loc.
func SlotLabel(slot, now time.Time, loc *time.Location) string {
	slot, now = slot.In(loc), now.In(loc)
	clock := slot.Format("3:04pm")

	sy, sm, sd := slot.Date()
	if y, m, d := now.Date(); sy == y && sm == m && sd == d {
		return "Today " + clock
	}
	if y, m, d := now.AddDate(0, 0, 1).Date(); sy == y && sm == m && sd == d {
		return "Tomorrow " + clock
	}
	return slot.Format("Mon 2 Jan") + " " + clock
}
