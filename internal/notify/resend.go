package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultResendURL = "https://api.resend.com"

type ResendSender struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewResendSender(apiKey, baseURL string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = defaultResendURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ResendSender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *ResendSender) Name() string { return "resend" }

func (r *ResendSender) Send(ctx context.Context, msg Message) error {
	if r.apiKey == "" {
		return errors.New("resend: api key not configured")
	}
	payload := map[string]any{
		"from":    msg.From,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"html":    msg.HTML,
		"text":    msg.Text,
	}
	if len(msg.Headers) > 0 {
		payload["headers"] = msg.Headers
	}
	return postJSON(ctx, r.client, "resend", r.baseURL+"/emails", r.apiKey, payload)
}
