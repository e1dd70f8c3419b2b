package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/extract-relay/internal/config"
	"github.com/sells-group/extract-relay/internal/extract"
	"github.com/sells-group/extract-relay/internal/job"
	"github.com/sells-group/extract-relay/internal/nutrition"
	"github.com/sells-group/extract-relay/internal/progress"
	"github.com/sells-group/extract-relay/internal/quota"
	"github.com/sells-group/extract-relay/internal/resilience"
	"github.com/sells-group/extract-relay/internal/server"
	"github.com/sells-group/extract-relay/internal/signing"
	"github.com/sells-group/extract-relay/internal/webhook"
	anthropicpkg "github.com/sells-group/extract-relay/pkg/anthropic"
	"github.com/sells-group/extract-relay/pkg/fooddata"
	"github.com/sells-group/extract-relay/pkg/gemini"
)

// Breaker names.
const (
	breakerExtraction = "extraction"
	breakerReference  = "reference"
)

// relayEnv holds everything the serve command runs.
type relayEnv struct {
	Server     *server.Server
	Dispatcher *job.Dispatcher
	Limiter    *quota.Limiter
	closers    []func() error
}

// Close releases resources held by the environment.
func (e *relayEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close resource", zap.Error(err))
		}
	}
}

// initRelay validates configuration and wires the server. Callers should
// defer env.Close().
func initRelay(ctx context.Context, c *config.Config) (*relayEnv, error) {
	if err := c.Validate("serve"); err != nil {
		return nil, err
	}
	env := &relayEnv{}

	store, err := quota.Open(ctx, c.Quota.Driver, c.Quota.DSN)
	if err != nil {
		return nil, err
	}
	env.closers = append(env.closers, store.Close)
	env.Limiter = quota.NewLimiter(store, c.Quota.DailyLimit)

	breakers := resilience.NewBreakers(resilience.NewConfig(c.Extraction.BreakerThreshold, c.Extraction.BreakerResetSecs))

	extractor, closeExtractor, err := initExtractor(ctx, c, breakers.Get(breakerExtraction))
	if err != nil {
		env.Close()
		return nil, err
	}
	if closeExtractor != nil {
		env.closers = append(env.closers, closeExtractor)
	}

	source, err := initReferenceSource(c, breakers.Get(breakerReference))
	if err != nil {
		env.Close()
		return nil, err
	}
	analyzer, err := nutrition.NewAnalyzer(extractor, nutrition.NewEnricher(source, c.Reference.LookupConcurrency))
	if err != nil {
		env.Close()
		return nil, err
	}

	hub := progress.NewHub(progress.DefaultBuffer)
	env.Dispatcher = job.NewDispatcher(job.NewRegistry(), hub)
	signer := signing.NewSigner(c.Security.Secret)

	env.Server = server.New(server.Deps{
		Guard:        signing.NewGuard(c.Security.Secret, c.Security.ReplayWindow()),
		Signer:       signer,
		Notifier:     webhook.NewNotifier(signer, c.Webhook.Timeout()),
		Limiter:      env.Limiter,
		Dispatcher:   env.Dispatcher,
		Hub:          hub,
		Orchestrator: extract.NewOrchestrator(extractor),
		Extractor:    extractor,
		Analyzer:     analyzer,
		Breakers:     breakers,
		Callback:     c.Callback,
	})

	zap.L().Info("relay initialized",
		zap.String("extraction_provider", c.Extraction.Provider),
		zap.String("reference_provider", c.Reference.Provider),
		zap.String("quota_driver", c.Quota.Driver),
		zap.Int("daily_limit", c.Quota.DailyLimit),
	)
	return env, nil
}

// initExtractor builds the configured extraction provider. The returned
// closer may be nil.
func initExtractor(ctx context.Context, c *config.Config, breaker *resilience.Breaker) (extract.Extractor, func() error, error) {
	switch c.Extraction.Provider {
	case "anthropic":
		client := anthropicpkg.NewClient(c.Anthropic.Key)
		return extract.NewAnthropicExtractor(client, c.Anthropic.Model, c.Anthropic.MaxTokens, breaker), nil, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, c.Gemini.Key)
		if err != nil {
			return nil, nil, err
		}
		return extract.NewGeminiExtractor(client, c.Gemini.Model, breaker), client.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported extraction provider %q", c.Extraction.Provider)
	}
}

// initReferenceSource builds the configured nutrient reference source.
func initReferenceSource(c *config.Config, breaker *resilience.Breaker) (nutrition.ReferenceSource, error) {
	switch c.Reference.Provider {
	case "fooddata":
		client := fooddata.NewClient(c.Reference.FoodDataKey,
			fooddata.WithBaseURL(c.Reference.FoodDataBaseURL),
			fooddata.WithRate(c.Reference.RatePerSec),
		)
		return nutrition.NewCachedSource(nutrition.NewFoodDataSource(client, breaker), c.Reference.CacheSize)
	case "catalog":
		catalog, err := nutrition.LoadCatalog(c.Reference.CatalogPath)
		if err != nil {
			return nil, err
		}
		zap.L().Info("reference catalog loaded", zap.Int("entries", catalog.Len()))
		return catalog, nil
	default:
		return nil, eris.Errorf("unsupported reference provider %q", c.Reference.Provider)
	}
}
