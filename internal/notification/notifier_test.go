package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signal-systemv1/internal/model"
)

func testSignal() model.Signal {
	return model.Signal{
		Asset:       "EURUSD_otc",
		TF:          model.TF1m,
		Direction:   model.DirectionBuy,
		Confidence:  100,
		Reason:      "trend up",
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestFormatSignal(t *testing.T) {
	got := FormatSignal(testSignal())
	want := "EURUSD_otc 1m signal: BUY (100%)"
	if got != want {
		t.Errorf("FormatSignal = %q, want %q", got, want)
	}
}

func TestWebhookNotifier_PostsSignalJSON(t *testing.T) {
	type received struct {
		Asset     string `json:"asset"`
		Direction string `json:"direction"`
		Text      string `json:"text"`
	}
	var got received
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if n.Name() != "webhook" {
		t.Errorf("Name = %q", n.Name())
	}
	if err := n.Send(context.Background(), testSignal()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.Asset != "EURUSD_otc" || got.Direction != "BUY" {
		t.Errorf("payload = %+v", got)
	}
	if got.Text != "EURUSD_otc 1m signal: BUY (100%)" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestWebhookNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), testSignal()); err == nil {
		t.Fatal("Send succeeded on a 502 response")
	}
}

func TestWebhookNotifier_UnreachableEndpoint(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1/never")
	if err := n.Send(context.Background(), testSignal()); err == nil {
		t.Fatal("Send succeeded against a closed port")
	}
}

func TestTelegramNotifier_EmptyChatListIsNoop(t *testing.T) {
	n := NewTelegramNotifier("token", []string{"", ""})
	if n.Name() != "telegram" {
		t.Errorf("Name = %q", n.Name())
	}
	if err := n.Send(context.Background(), testSignal()); err != nil {
		t.Errorf("Send with only blank chat IDs: %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier()
	if n.Name() != "log" {
		t.Errorf("Name = %q", n.Name())
	}
	if err := n.Send(context.Background(), testSignal()); err != nil {
		t.Errorf("Send: %v", err)
	}
}
