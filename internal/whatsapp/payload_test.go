package whatsapp

import (
	"encoding/json"
	"testing"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "1098765"},
        "messages": [
          {"id": "wamid.1", "from": "447700900123", "timestamp": "1713085200", "type": "text", "text": {"body": "  Hi there  "}},
          {"id": "wamid.2", "from": "447700900123", "type": "interactive", "interactive": {"type": "button_reply", "button_reply": {"id": "confirm_yes", "title": "Confirm"}}},
          {"id": "wamid.3", "from": "447700900124", "type": "interactive", "interactive": {"type": "list_reply", "list_reply": {"id": "svc_plumber", "title": "Plumber"}}},
          {"id": "wamid.4", "from": "447700900124", "type": "image", "image": {"id": "media"}},
          {"id": "wamid.5", "from": "447700900124", "type": "button", "button": {"payload": "menu_request", "text": "Book"}}
        ]
      }
    }]
  }]
}`

func TestMessagesExtractsContent(t *testing.T) {
	var p WebhookPayload
	if err := json.Unmarshal([]byte(samplePayload), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	msgs := p.Messages()
	want := []struct{ id, text string }{
		{"wamid.1", "Hi there"},
		{"wamid.2", "confirm_yes"},
		{"wamid.3", "svc_plumber"},
		{"wamid.5", "menu_request"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].ID != w.id || msgs[i].Text != w.text || msgs[i].PhoneNumberID != "1098765" {
			t.Fatalf("message %d: expected %+v, got %+v", i, w, msgs[i])
		}
	}
}

func TestMessagesIgnoresOtherObjects(t *testing.T) {
	var p WebhookPayload
	if err := json.Unmarshal([]byte(`{"object":"page","entry":[]}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msgs := p.Messages(); len(msgs) != 0 {
		t.Fatalf("expected no messages, got %+v", msgs)
	}
}
