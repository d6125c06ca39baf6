package whatsapp

import "strings"

// ObjectBusinessAccount is the only webhook object this service handles.
const ObjectBusinessAccount = "whatsapp_business_account"

// WebhookPayload is the subset of a Cloud API webhook body the service reads.
type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				MessagingProduct string `json:"messaging_product"`
				Metadata         struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Messages []webhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Button *struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
}

// IncomingMessage is one customer message with the business number it was
// sent to. Text holds the typed text or the id of the chosen option.
type IncomingMessage struct {
	ID            string
	PhoneNumberID string
	From          string
	Text          string
	Timestamp     string
}

// Messages flattens the payload to the messages that carry usable content.
// Statuses, media and unknown objects are skipped.
func (p WebhookPayload) Messages() []IncomingMessage {
	if p.Object != ObjectBusinessAccount {
		return nil
	}
	var out []IncomingMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				text := m.content()
				if text == "" || m.From == "" {
					continue
				}
				out = append(out, IncomingMessage{
					ID:            m.ID,
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					From:          m.From,
					Text:          text,
					Timestamp:     m.Timestamp,
				})
			}
		}
	}
	return out
}

func (m webhookMessage) content() string {
	switch m.Type {
	case "text":
		if m.Text != nil {
			return strings.TrimSpace(m.Text.Body)
		}
	case "interactive":
		if m.Interactive == nil {
			return ""
		}
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.ID
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.ID
		}
	case "button":
		if m.Button != nil {
			return m.Button.Payload
		}
	}
	return ""
}
