package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type stubSender struct {
	name  string
	err   error
	calls int
}

func (s *stubSender) Name() string { return s.name }

func (s *stubSender) Send(ctx context.Context, msg Message) error {
	s.calls++
	return s.err
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	a := &stubSender{name: "a", err: errors.New("down")}
	b := &stubSender{name: "b"}
	c := &stubSender{name: "c"}
	chain := NewChain(zap.NewNop(), a, b, c)

	if err := chain.Send(context.Background(), Message{To: "x@example.com"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if a.calls != 1 || b.calls != 1 || c.calls != 0 {
		t.Fatalf("calls a=%d b=%d c=%d", a.calls, b.calls, c.calls)
	}
	if chain.Name() != "chain(a,b,c)" {
		t.Fatalf("name=%s", chain.Name())
	}
}

func TestChainAllFail(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	chain := NewChain(nil, &stubSender{name: "a", err: errA}, &stubSender{name: "b", err: errB})
	err := chain.Send(context.Background(), Message{})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err=%v want both causes", err)
	}
}

func TestChainEmpty(t *testing.T) {
	if err := NewChain(nil).Send(context.Background(), Message{}); !errors.Is(err, ErrNoSenders) {
		t.Fatalf("err=%v want ErrNoSenders", err)
	}
}

func TestResendSender(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	s := NewResendSender("re_key", srv.URL, 0)
	err := s.Send(context.Background(), Message{
		From:    "news@example.com",
		To:      "a@example.com",
		Subject: "Breaking",
		HTML:    "<p>hi</p>",
		Headers: map[string]string{"List-Unsubscribe": "<https://example.com/unsubscribe?token=t>"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if auth != "Bearer re_key" {
		t.Fatalf("auth=%q", auth)
	}
	if got["subject"] != "Breaking" || got["headers"] == nil {
		t.Fatalf("payload=%v", got)
	}
}

func TestSendGridSenderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("sg_key", srv.URL, "Breaking Markets", 0)
	err := s.Send(context.Background(), Message{From: "n@example.com", To: "a@example.com", Text: "hi"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Provider != "sendgrid" {
		t.Fatalf("err=%v", err)
	}
}

func TestSendersRequireKey(t *testing.T) {
	if err := NewResendSender("", "", 0).Send(context.Background(), Message{}); err == nil {
		t.Fatalf("resend without key should fail")
	}
	if err := NewSendGridSender("", "", "", 0).Send(context.Background(), Message{}); err == nil {
		t.Fatalf("sendgrid without key should fail")
	}
	if err := (LogSender{}).Send(context.Background(), Message{}); err != nil {
		t.Fatalf("log sender: %v", err)
	}
}
