package factorgate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var webhookSecret = []byte("test-webhook-secret")

func testWebhookAlert() Alert {
	return Alert{
		ID:         "alert-1",
		MerchantID: "merchant-1",
		Severity:   "BLOCK_PERMANENT",
		Message:    "device compromised",
		CreatedAt:  time.Now(),
	}
}

func TestWebhookDeliversSignedToken(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	channel, err := NewWebhookChannel(WebhookChannelConfig{
		URL:    server.URL,
		Secret: webhookSecret,
	})
	if err != nil {
		t.Fatalf("NewWebhookChannel failed: %v", err)
	}

	if err := channel.Deliver(context.Background(), testWebhookAlert()); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
	if gotContentType != "application/jwt" {
		t.Fatalf("got content type %q, want application/jwt", gotContentType)
	}

	// The merchant verifies signature and payload in one parse.
	var claims webhookClaims
	token, err := jwt.ParseWithClaims(string(gotBody), &claims, func(*jwt.Token) (interface{}, error) {
		return webhookSecret, nil
	})
	if err != nil || !token.Valid {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Issuer != "factorgate" || claims.Subject != "merchant-1" {
		t.Fatalf("unexpected claims: %+v", claims.RegisteredClaims)
	}
	if claims.Alert.ID != "alert-1" || claims.Alert.Severity != "BLOCK_PERMANENT" {
		t.Fatalf("unexpected alert payload: %+v", claims.Alert)
	}
}

func TestWebhookRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	channel, err := NewWebhookChannel(WebhookChannelConfig{
		URL:            server.URL,
		Secret:         webhookSecret,
		MaxElapsedTime: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewWebhookChannel failed: %v", err)
	}

	if err := channel.Deliver(context.Background(), testWebhookAlert()); err != nil {
		t.Fatalf("Deliver failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("got %d calls, want 3", calls.Load())
	}
}

func TestWebhookDoesNotRetryRejection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	channel, err := NewWebhookChannel(WebhookChannelConfig{
		URL:    server.URL,
		Secret: webhookSecret,
	})
	if err != nil {
		t.Fatalf("NewWebhookChannel failed: %v", err)
	}

	err = channel.Deliver(context.Background(), testWebhookAlert())
	if !errors.Is(err, ErrWebhookRejected) {
		t.Fatalf("got %v, want ErrWebhookRejected", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("got %d calls, want exactly 1 for a 4xx", calls.Load())
	}
}

func TestWebhookRequiresConfig(t *testing.T) {
	if _, err := NewWebhookChannel(WebhookChannelConfig{Secret: webhookSecret}); err == nil {
		t.Fatal("expected error for missing URL")
	}
	if _, err := NewWebhookChannel(WebhookChannelConfig{URL: "http://example.com"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestWebhookChannelKind(t *testing.T) {
	channel, err := NewWebhookChannel(WebhookChannelConfig{
		URL:    "http://example.com",
		Secret: webhookSecret,
	})
	if err != nil {
		t.Fatalf("NewWebhookChannel failed: %v", err)
	}
	if channel.Kind() != ChannelWebhook {
		t.Fatal("expected webhook channel kind")
	}
}
