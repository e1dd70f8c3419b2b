package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/model"
	"github.com/sells-group/extract-relay/internal/quota"
	"github.com/sells-group/extract-relay/internal/schema"
	"github.com/sells-group/extract-relay/internal/signing"
)

// ErrBadRequest marks request validation failures.
var ErrBadRequest = eris.New("bad request")

func badRequest(format string, args ...any) error {
	return eris.Wrapf(ErrBadRequest, format, args...)
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, signing.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, signing.ErrReplayRejected):
		return http.StatusUnauthorized
	case errors.Is(err, signing.ErrSignatureMismatch):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), schema.IsDefinitionError(err), errors.Is(err, job.ErrDuplicateID):
		return http.StatusBadRequest
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quota.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// fail logs err and writes its mapped status.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		zap.L().Error("server: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		zap.L().Info("server: request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	msg := err.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	respondError(w, status, msg)
}

// readSigned reads the raw body and decodes it into T only after the
// signature over those exact bytes has been verified.
func readSigned[T any](s *Server, w http.ResponseWriter, r *http.Request) (T, error) {
	var zero T
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return zero, badRequest("server: read body: %v", err)
	}
	out, err := signing.DecodeVerified[T](s.Guard,
		r.Header.Get(signing.HeaderSignature),
		r.Header.Get(signing.HeaderTimestamp),
		body,
	)
	if err != nil {
		if signing.IsSignatureError(err) {
			return zero, err
		}
		return zero, badRequest("server: %v", err)
	}
	return out, nil
}

// ack writes the signed acceptance body.
func (s *Server) ack(w http.ResponseWriter, jobID, note string) error {
	env, err := s.Signer.SignJSON(model.Ack{
		Status:    "accepted",
		Note:      note,
		Timestamp: s.nowFunc().UnixMilli(),
		JobID:     jobID,
	})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(signing.HeaderTimestamp, env.Timestamp)
	w.Header().Set(signing.HeaderSignature, env.Signature)
	w.Header().Set("Content-Length", strconv.Itoa(len(env.Body)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(env.Body)
	return err
}
