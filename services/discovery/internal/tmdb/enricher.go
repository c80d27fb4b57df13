package tmdb

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/example/movie-discovery/services/discovery/internal/metrics"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

// Searcher is the port for the external movie catalog.
type Searcher interface {
	SearchMovie(ctx context.Context, query string) (*movie.Match, error)
	MovieRuntime(ctx context.Context, id int64) (int, error)
}

var _ Searcher = (*Client)(nil)

// Enricher merges backend items with catalog poster/year data.
// Enrich never fails: lookup errors degrade to the placeholder view model.
type Enricher struct {
	Catalog      Searcher
	Cache        Cache // optional
	FetchRuntime bool
	Log          *zap.Logger
}

func NewEnricher(catalog Searcher, cache Cache, fetchRuntime bool, log *zap.Logger) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Enricher{Catalog: catalog, Cache: cache, FetchRuntime: fetchRuntime, Log: log}
}

func (e *Enricher) Enrich(ctx context.Context, item movie.CatalogItem) movie.Enriched {
	query := movie.CleanTitle(item.Title)
	if query == "" {
		metrics.Enrichments.WithLabelValues(metrics.OutcomeMiss).Inc()
		return movie.Placeholder(item)
	}
	key := strings.ToLower(query)

	if e.Cache != nil {
		cached, ok, err := e.Cache.Get(ctx, key)
		if err != nil {
			e.Log.Warn("enrichment cache get failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			metrics.Enrichments.WithLabelValues(metrics.OutcomeCacheHit).Inc()
			if !cached.Found {
				return movie.Placeholder(item)
			}
			m := cached.Match
			return movie.Merge(item, &m)
		}
	}

	m, err := e.Catalog.SearchMovie(ctx, query)
	if err != nil {
		metrics.Enrichments.WithLabelValues(metrics.OutcomeError).Inc()
		e.Log.Warn("catalog lookup failed", zap.String("title", item.Title), zap.Error(err))
		out := movie.Placeholder(item)
		out.Degraded = true
		return out
	}
	if m == nil {
		metrics.Enrichments.WithLabelValues(metrics.OutcomeMiss).Inc()
		e.store(ctx, key, Entry{Found: false})
		return movie.Placeholder(item)
	}

	if e.FetchRuntime && m.Runtime == 0 {
		runtime, err := e.Catalog.MovieRuntime(ctx, m.ID)
		if err != nil {
			e.Log.Debug("catalog runtime lookup failed", zap.Int64("tmdb_id", m.ID), zap.Error(err))
		} else {
			m.Runtime = runtime
		}
	}

	metrics.Enrichments.WithLabelValues(metrics.OutcomeMatch).Inc()
	e.store(ctx, key, Entry{Found: true, Match: *m})
	return movie.Merge(item, m)
}

func (e *Enricher) store(ctx context.Context, key string, entry Entry) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Set(ctx, key, entry); err != nil {
		e.Log.Warn("enrichment cache set failed", zap.String("key", key), zap.Error(err))
	}
}
