package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultSendGridURL = "https://api.sendgrid.com"

type SendGridSender struct {
	apiKey   string
	baseURL  string
	fromName string
	client   *http.Client
}

func NewSendGridSender(apiKey, baseURL, fromName string, timeout time.Duration) *SendGridSender {
	if baseURL == "" {
		baseURL = defaultSendGridURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SendGridSender{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		fromName: fromName,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *SendGridSender) Name() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if s.apiKey == "" {
		return errors.New("sendgrid: api key not configured")
	}
	from := map[string]string{"email": msg.From}
	if s.fromName != "" {
		from["name"] = s.fromName
	}
	content := []map[string]string{}
	if msg.Text != "" {
		content = append(content, map[string]string{"type": "text/plain", "value": msg.Text})
	}
	if msg.HTML != "" {
		content = append(content, map[string]string{"type": "text/html", "value": msg.HTML})
	}
	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": msg.To}}},
		},
		"from":    from,
		"subject": msg.Subject,
		"content": content,
	}
	if len(msg.Headers) > 0 {
		payload["headers"] = msg.Headers
	}
	return postJSON(ctx, s.client, "sendgrid", s.baseURL+"/v3/mail/send", s.apiKey, payload)
}
