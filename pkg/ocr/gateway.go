package ocr

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	extractionImages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidya",
		Subsystem: "extraction",
		Name:      "images_total",
		Help:      "Number of images processed per provider",
	}, []string{"provider", "outcome"})
)

const defaultConcurrency = 4

// GatewayConfig customises gateway behaviour.
type GatewayConfig struct {
	Concurrency int
	Logger      zerolog.Logger
}

// Gateway fans image extraction out over an ordered provider list. Failed
// positions are retried against the next provider; the call always yields one
// result per input, in input order. Adding a provider is a list append.
type Gateway struct {
	providers   []Provider
	concurrency int
	logger      zerolog.Logger
}

// NewGateway builds a gateway over the given providers, first provider is
// primary.
func NewGateway(providers []Provider, cfg GatewayConfig) *Gateway {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	return &Gateway{
		providers:   providers,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "ocr_gateway").Logger(),
	}
}

// Extract returns exactly one result per ref, order preserved. It never
// returns an error: per-image failures degrade to a sentinel text and a
// missing provider list degrades to the unavailable placeholder.
func (g *Gateway) Extract(ctx context.Context, refs []Ref) []Result {
	results := make([]Result, len(refs))
	if len(refs) == 0 {
		return results
	}

	if len(g.providers) == 0 {
		for i := range results {
			results[i] = Result{Text: Unavailable, Failed: true}
		}
		return results
	}

	pending := make([]int, 0, len(refs))
	for i := range refs {
		pending = append(pending, i)
	}

	lastErr := make([]error, len(refs))

	for _, provider := range g.providers {
		if len(pending) == 0 {
			break
		}
		pending = g.runProvider(ctx, provider, refs, pending, results, lastErr)
		if len(pending) > 0 {
			g.logger.Warn().
				Str("provider", provider.Name()).
				Int("failed", len(pending)).
				Msg("provider left images unextracted, trying next")
		}
	}

	for _, i := range pending {
		results[i] = Result{Text: FailureText(lastErr[i]), Failed: true}
	}

	return results
}

// runProvider extracts the pending indices concurrently and returns the
// indices that still failed. Each goroutine writes only its own slot.
func (g *Gateway) runProvider(ctx context.Context, provider Provider, refs []Ref, pending []int, results []Result, lastErr []error) []int {
	sem := make(chan struct{}, g.concurrency)
	var wg sync.WaitGroup

	for _, i := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			text, err := provider.ExtractText(ctx, refs[i])
			if err != nil {
				lastErr[i] = err
				extractionImages.WithLabelValues(provider.Name(), "failure").Inc()
				return
			}

			results[i] = Result{Text: text, Provider: provider.Name()}
			lastErr[i] = nil
			extractionImages.WithLabelValues(provider.Name(), "success").Inc()
		}(i)
	}

	wg.Wait()

	failed := pending[:0]
	for _, i := range pending {
		if lastErr[i] != nil {
			failed = append(failed, i)
		}
	}

	return failed
}
