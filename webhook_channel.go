package factorgate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
)

// ErrWebhookRejected means the merchant backend answered with a 4xx status.
// The delivery is not retried; a rejected payload stays rejected.
var ErrWebhookRejected = errors.New("webhook rejected by merchant backend")

// WebhookChannelConfig tunes one merchant webhook endpoint.
type WebhookChannelConfig struct {
	// URL is the merchant backend endpoint alerts are posted to.
	URL string
	// Secret signs the payload token so the merchant can authenticate the
	// sender. Required.
	Secret []byte
	// Issuer is the iss claim on the payload token. Defaults to "factorgate".
	Issuer string
	// MaxElapsedTime bounds in-call retries; the dispatcher's redelivery
	// schedule handles anything slower. Defaults to 15s.
	MaxElapsedTime time.Duration
	// Client overrides the HTTP client. Defaults to one with a 10s timeout.
	Client *http.Client
}

// WebhookChannel posts merchant alerts as signed JWTs. Transient transport
// and 5xx failures retry with exponential backoff inside the delivery
// timeout; 4xx responses are terminal.
type WebhookChannel struct {
	cfg WebhookChannelConfig
}

// webhookClaims is the token body: the alert rides inside registered JWT
// claims so the merchant verifies sender, freshness, and payload in one step.
type webhookClaims struct {
	jwt.RegisteredClaims
	Alert Alert `json:"alert"`
}

func NewWebhookChannel(cfg WebhookChannelConfig) (*WebhookChannel, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook channel requires a URL")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("webhook channel requires a signing secret")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "factorgate"
	}
	if cfg.MaxElapsedTime <= 0 {
		cfg.MaxElapsedTime = 15 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookChannel{cfg: cfg}, nil
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Kind() AlertChannelKind { return ChannelWebhook }

func (c *WebhookChannel) Deliver(ctx context.Context, alert Alert) error {
	token, err := c.sign(alert)
	if err != nil {
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.cfg.MaxElapsedTime

	return backoff.Retry(func() error {
		return c.post(ctx, token)
	}, backoff.WithContext(policy, ctx))
}

func (c *WebhookChannel) sign(alert Alert) (string, error) {
	now := time.Now()
	claims := webhookClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Subject:   alert.MerchantID,
			ID:        alert.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
		},
		Alert: alert,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
}

func (c *WebhookChannel) post(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewBufferString(token))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/jwt")

	resp, err := c.cfg.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("%w: status %d", ErrWebhookRejected, resp.StatusCode))
	default:
		return fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
	}
}
