// Package whatsapp talks to the WhatsApp Cloud API: outbound text and
// interactive messages, read receipts and inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"tradesdesk_backend/platform/config"
	"tradesdesk_backend/platform/logger"
	"tradesdesk_backend/platform/phone"
)

// Cloud API limits on interactive elements.
const (
	maxButtons          = 3
	maxButtonTitleRunes = 20
	maxListRows         = 10
	maxRowTitleRunes    = 24
	maxRowDescRunes     = 72
	maxListLabelRunes   = 20
	listSectionTitle    = "Options"
)

// Account is the sending identity of one business number.
type Account struct {
	PhoneNumberID string
	AccessToken   string
}

type Client struct {
	baseURL string
	http    *http.Client
	phones  phone.Normalizer
	log     *logger.Logger
}

// Button is a reply button. Title is cut to the API limit.
type Button struct {
	ID    string
	Title string
}

// Row is an entry of a list message.
type Row struct {
	ID          string
	Title       string
	Description string
}

func NewClient(cfg config.WhatsAppConfig, phones phone.Normalizer, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetWhatsAppAPIBaseURL(), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		phones:  phones,
		log:     log,
	}
}

type textBody struct {
	Body string `json:"body"`
}

type interactiveBody struct {
	Type   string            `json:"type"`
	Body   textBody          `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveAction struct {
	Buttons  []buttonPayload  `json:"buttons,omitempty"`
	Button   string           `json:"button,omitempty"`
	Sections []sectionPayload `json:"sections,omitempty"`
}

type buttonPayload struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type sectionPayload struct {
	Title string       `json:"title"`
	Rows  []rowPayload `json:"rows"`
}

type rowPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type messageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to,omitempty"`
	Type             string           `json:"type,omitempty"`
	Text             *textBody        `json:"text,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
	Status           string           `json:"status,omitempty"`
	MessageID        string           `json:"message_id,omitempty"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, acct Account, to, body string) error {
	return c.post(ctx, acct, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               c.phones.WhatsAppID(to),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendButtons sends up to three reply buttons.
func (c *Client) SendButtons(ctx context.Context, acct Account, to, body string, buttons []Button) error {
	if len(buttons) == 0 || len(buttons) > maxButtons {
		return fmt.Errorf("whatsapp button message needs 1 to %d buttons, got %d", maxButtons, len(buttons))
	}
	payload := make([]buttonPayload, 0, len(buttons))
	for _, b := range buttons {
		var p buttonPayload
		p.Type = "reply"
		p.Reply.ID = b.ID
		p.Reply.Title = truncate(b.Title, maxButtonTitleRunes)
		payload = append(payload, p)
	}
	return c.post(ctx, acct, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               c.phones.WhatsAppID(to),
		Type:             "interactive",
		Interactive: &interactiveBody{
			Type:   "button",
			Body:   textBody{Body: body},
			Action: interactiveAction{Buttons: payload},
		},
	})
}

// SendList sends a single-section list message.
func (c *Client) SendList(ctx context.Context, acct Account, to, body, label string, rows []Row) error {
	if len(rows) == 0 || len(rows) > maxListRows {
		return fmt.Errorf("whatsapp list message needs 1 to %d rows, got %d", maxListRows, len(rows))
	}
	payload := make([]rowPayload, 0, len(rows))
	for _, r := range rows {
		payload = append(payload, rowPayload{
			ID:          r.ID,
			Title:       truncate(r.Title, maxRowTitleRunes),
			Description: truncate(r.Description, maxRowDescRunes),
		})
	}
	return c.post(ctx, acct, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               c.phones.WhatsAppID(to),
		Type:             "interactive",
		Interactive: &interactiveBody{
			Type: "list",
			Body: textBody{Body: body},
			Action: interactiveAction{
				Button:   truncate(label, maxListLabelRunes),
				Sections: []sectionPayload{{Title: listSectionTitle, Rows: payload}},
			},
		},
	})
}

// MarkRead acknowledges an inbound message so the customer sees blue ticks.
func (c *Client) MarkRead(ctx context.Context, acct Account, messageID string) error {
	return c.post(ctx, acct, messageRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
}

func (c *Client) post(ctx context.Context, acct Account, payload messageRequest) error {
	if acct.PhoneNumberID == "" || acct.AccessToken == "" {
		return fmt.Errorf("whatsapp account not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, acct.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+acct.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Debug("whatsapp message sent", "type", payload.Type, "to", payload.To)
	return nil
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
