// Package server is the signed HTTP surface of the relay. Every POST is
// verified, validated, checked against the owner's daily quota and
// acknowledged with a signed body before its work is dispatched.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/extract-relay/internal/config"
	"github.com/sells-group/extract-relay/internal/extract"
	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/nutrition"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/quota"
	"github.com/sells-group/extract-relay/internal/resilience"
	"github.com/sells-group/extract-relay/internal/signing"
	"github.com/sells-group/extract-relay/internal/webhook"
)

// maxBodyBytes bounds inbound request bodies, images included.
const maxBodyBytes = 32 << 20

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Guard        *signing.Guard
	Signer       *signing.Signer
	Notifier     webhook.Sender
	Limiter      *quota.Limiter
	Dispatcher   *job.Dispatcher
	Hub          *progress.Hub
	Orchestrator *extract.Orchestrator
	Extractor    extract.Extractor
	Analyzer     *nutrition.Analyzer
	Breakers     *resilience.Breakers
	Callback     config.CallbackConfig
}

// Server handles relay HTTP requests.
type Server struct {
	Deps

	// streams ends open progress streams when cancelled.
	streams      context.Context
	closeStreams context.CancelFunc

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// New creates a Server.
func New(deps Deps) *Server {
	streams, closeStreams := context.WithCancel(context.Background())
	return &Server{Deps: deps, streams: streams, closeStreams: closeStreams, nowFunc: time.Now}
}

// CloseStreams ends every open progress stream. Register it with
// http.Server.RegisterOnShutdown so long-lived streams do not hold Shutdown.
func (s *Server) CloseStreams() {
	s.closeStreams()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", signing.HeaderSignature, signing.HeaderTimestamp, "X-Request-Id"},
		ExposedHeaders: []string{signing.HeaderSignature, signing.HeaderTimestamp, "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Post("/schema", s.handleSchema)
		r.Post("/nutrition", s.handleNutrition)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Get("/progress/{jobID}", s.handleProgress)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.Breakers != nil {
		body["breakers"] = s.Breakers.States()
	}
	if s.Dispatcher != nil {
		body["jobs"] = s.Dispatcher.Registry().Len()
	}
	respondJSON(w, http.StatusOK, body)
}
