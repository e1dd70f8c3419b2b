package server

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/sells-group/extract-relay/internal/model"
)

// resolveCallback picks the request's callback or the configured default and
// checks it against the allowed hosts. An empty result with a nil error
// means no callback when required is false.
func (s *Server) resolveCallback(raw string, required bool) (string, error) {
	if raw == "" {
		raw = s.Callback.DefaultURL
	}
	if raw == "" {
		if required {
			return "", badRequest("callbackUrl is required")
		}
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", badRequest("callbackUrl %q is not an absolute http(s) URL", raw)
	}
	if len(s.Callback.AllowedHosts) > 0 && !hostAllowed(u.Hostname(), s.Callback.AllowedHosts) {
		return "", badRequest("callback host %q is not allowed", u.Hostname())
	}
	return u.String(), nil
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return true
		}
	}
	return false
}

func validBase64(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

func validateItems(items []model.BatchItem) error {
	if len(items) == 0 {
		return badRequest("items must not be empty")
	}
	for i, it := range items {
		if !it.Modality.Valid() {
			return badRequest("items[%d]: unknown modality %q", i, it.Modality)
		}
		if it.Modality == model.ModalityImage && !validBase64(it.Content) {
			return badRequest("items[%d]: content is not valid base64", i)
		}
		if it.Modality == model.ModalityText && strings.TrimSpace(it.Content) == "" {
			return badRequest("items[%d]: content is empty", i)
		}
	}
	return nil
}

// allow applies the owner's daily quota.
func (s *Server) allow(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return badRequest("ownerId is required")
	}
	return s.Limiter.Allow(ctx, ownerID)
}
