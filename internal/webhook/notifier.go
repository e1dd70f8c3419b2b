// Package webhook delivers signed result payloads to caller callback URLs.
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/signing"
)

// ErrDelivery means the callback could not be reached or answered non-2xx.
var ErrDelivery = eris.New("webhook delivery failed")

// Sender delivers a payload to a callback URL.
type Sender interface {
	Deliver(ctx context.Context, url string, payload any) error
}

// Notifier signs and POSTs JSON payloads. Deliveries are attempted once.
type Notifier struct {
	signer *signing.Signer
	client *http.Client
}

// NewNotifier creates a Notifier with the given request timeout.
func NewNotifier(signer *signing.Signer, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Notifier{
		signer: signer,
		client: &http.Client{Timeout: timeout},
	}
}

// Deliver marshals payload, signs the exact bytes and POSTs them to url.
func (n *Notifier) Deliver(ctx context.Context, url string, payload any) error {
	env, err := n.signer.SignJSON(payload)
	if err != nil {
		return eris.Wrap(err, "webhook: sign payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(env.Body))
	if err != nil {
		return eris.Wrapf(ErrDelivery, "webhook: create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signing.HeaderTimestamp, env.Timestamp)
	req.Header.Set(signing.HeaderSignature, env.Signature)

	start := time.Now()
	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrapf(ErrDelivery, "webhook: post: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return eris.Wrapf(ErrDelivery, "webhook: callback returned status %d", resp.StatusCode)
	}

	zap.L().Debug("webhook: delivered",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(env.Body)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
