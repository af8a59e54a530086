// Package nlp fans out per-ticket enrichment requests to an external
// chat-completion-compatible model, bounded by a hot-swappable
// concurrency limiter, and recomputes priority locally instead of
// trusting the model's own score.
package nlp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ticketfire/backend/internal/priority"
)

// RawResult is what a Client returns: the model's raw (Russian) labels,
// untouched. The pool canonicalizes and scores from these.
type RawResult struct {
	RequestType string
	Sentiment   string
	Language    string
	Summary     string
	NextActions string
}

// Client issues one chat-completion request per call. Implementations:
// HTTPClient (real model endpoint) and MockClient (deterministic fake,
// used when no model base URL is configured).
type Client interface {
	Analyze(ctx context.Context, description string, index, total int) (RawResult, error)
}

// Enriched is the merged per-ticket output: canonical enums, the
// recomputed priority, and inference timing.
type Enriched struct {
	RequestType string
	Sentiment   string
	Language    string
	Summary     string
	NextActions string
	Priority    int
	InferTimeMs int64
}

// Settings is the small, swappable configuration object the orchestrator
// owns and hands to the pool, rather than a package-level global.
type Settings struct {
	ModelID     string
	Concurrency int64
}

// Pool bounds in-flight NLP requests with a semaphore that can be
// replaced at runtime without disturbing in-flight callers: they keep
// holding a reference to the semaphore they acquired from, and it is
// simply dropped once every holder has released it.
type Pool struct {
	client Client

	mu       sync.RWMutex
	settings Settings
	sem      *semaphore.Weighted
}

// NewPool builds a Pool with the given initial settings.
func NewPool(client Client, settings Settings) *Pool {
	if settings.Concurrency <= 0 {
		settings.Concurrency = 6
	}
	return &Pool{
		client:   client,
		settings: settings,
		sem:      semaphore.NewWeighted(settings.Concurrency),
	}
}

// UpdateSettings swaps in a fresh semaphore and model id. In-flight
// calls complete against the old semaphore.
func (p *Pool) UpdateSettings(modelID string, concurrency int64) {
	if concurrency <= 0 {
		concurrency = 6
	}
	p.mu.Lock()
	p.settings = Settings{ModelID: modelID, Concurrency: concurrency}
	p.sem = semaphore.NewWeighted(concurrency)
	p.mu.Unlock()

	if ms, ok := p.client.(interface{ SetModel(string) }); ok {
		ms.SetModel(modelID)
	}
}

// Settings returns the pool's current settings snapshot.
func (p *Pool) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

func (p *Pool) currentSem() *semaphore.Weighted {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sem
}

// AnalyzeBatch fans out Analyze calls across descriptions, bounded by the
// pool's current semaphore, and returns results in input order regardless
// of completion order.
func (p *Pool) AnalyzeBatch(ctx context.Context, descriptions []string, segments []string) ([]Enriched, error) {
	total := len(descriptions)
	results := make([]Enriched, total)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			sem := p.currentSem()
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			start := time.Now()
			raw, err := p.client.Analyze(gctx, descriptions[i], i, total)
			elapsed := time.Since(start).Milliseconds()

			if err != nil {
				results[i] = fallback(segments[i])
				return nil
			}

			canonicalType := mapRequestType(raw.RequestType)
			canonicalSentiment := mapSentiment(raw.Sentiment)
			results[i] = Enriched{
				RequestType: canonicalType,
				Sentiment:   canonicalSentiment,
				Language:    raw.Language,
				Summary:     raw.Summary,
				NextActions: raw.NextActions,
				Priority:    priority.ScoreRaw(raw.RequestType, raw.Sentiment, segments[i]),
				InferTimeMs: elapsed,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fallback is the local degradation record: on any model failure the
// ticket still progresses with a safe default.
func fallback(segment string) Enriched {
	return Enriched{
		RequestType: "Consultation",
		Sentiment:   "Neutral",
		Language:    "RU",
		Summary:     "manual review required",
		NextActions: "route to manual handling",
		Priority:    priority.ScoreRaw("Консультация", "Нейтральная", segment),
		InferTimeMs: 0,
	}
}
