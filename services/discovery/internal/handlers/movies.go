package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/movie-discovery/internal/platform/analytics"
	"github.com/example/movie-discovery/internal/platform/api"
	"github.com/example/movie-discovery/internal/platform/httpserver"
	"github.com/example/movie-discovery/services/discovery/internal/feeds"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
)

// MovieList is the JSON body of every /v1/movies endpoint. Loading is true
// when the request deadline passed before the list settled.
type MovieList struct {
	Movies  []movie.Enriched `json:"movies"`
	Loading bool             `json:"loading"`
}

// Deps are the collaborators shared by the discovery handlers.
type Deps struct {
	Backend     recommender.Provider
	Enricher    feeds.Enricher
	Cache       Cache // optional
	Analytics   *analytics.Publisher
	Log         *zap.Logger
	Concurrency int
	Timeout     time.Duration
}

func (d Deps) logger() *zap.Logger {
	if d.Log == nil {
		return zap.NewNop()
	}
	return d.Log
}

// load runs one feed cycle, serving and filling the cache for settled lists.
// A list with an item degraded by a failed lookup is served but not cached.
func (d Deps) load(ctx context.Context, key string, kind feeds.Kind, p feeds.Params) MovieList {
	if d.Cache != nil {
		if v, ok := d.Cache.Get(key); ok {
			d.shelfServed(kind, v, true)
			return v
		}
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	st, err := feeds.Load(ctx, kind, d.Backend, d.Enricher, p,
		feeds.WithLogger(d.logger()), feeds.WithConcurrency(d.Concurrency))
	if err != nil {
		d.logger().Warn("feed did not settle", zap.String("feed", string(kind)), zap.Error(err))
	}
	out := MovieList{Movies: st.Movies, Loading: st.Loading}
	if out.Movies == nil {
		out.Movies = []movie.Enriched{}
	}
	if d.Cache != nil && !out.Loading && len(out.Movies) > 0 && !movie.AnyDegraded(out.Movies) {
		d.Cache.Set(key, out)
	}
	d.shelfServed(kind, out, false)
	return out
}

func (d Deps) shelfServed(kind feeds.Kind, l MovieList, cached bool) {
	d.Analytics.Publish(analytics.SubjectShelfServed, "shelf_served", "", map[string]any{
		"feed":    string(kind),
		"movies":  len(l.Movies),
		"loading": l.Loading,
		"cached":  cached,
	})
}

// PopularMovies handles GET /v1/movies/popular
func PopularMovies(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		topN, ok := queryTopN(w, r, rid, feeds.DefaultTopN)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, d.load(r.Context(), cacheKey(r), feeds.KindPopular, feeds.PopularParams(topN)))
	}
}

// RecommendedMovies handles GET /v1/movies/recommended
func RecommendedMovies(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := queryUserID(w, r, rid)
		if !ok {
			return
		}
		title := strings.TrimSpace(r.URL.Query().Get("movie_title"))
		if title == "" {
			api.BadRequest(w, "MISSING_MOVIE_TITLE", "movie_title is required", rid, nil)
			return
		}
		alpha, ok := queryAlpha(w, r, rid, feeds.DefaultAlpha)
		if !ok {
			return
		}
		topN, ok := queryTopN(w, r, rid, feeds.DefaultTopN)
		if !ok {
			return
		}
		p := feeds.RecommendedParams(userID, title)
		p.Alpha = alpha
		p.TopN = topN
		api.WriteJSON(w, http.StatusOK, d.load(r.Context(), cacheKey(r), feeds.KindRecommended, p))
	}
}

// GenreMovies handles GET /v1/movies/genre/{genre}
func GenreMovies(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		genre := strings.TrimSpace(chi.URLParam(r, "genre"))
		if genre == "" {
			api.BadRequest(w, "MISSING_GENRE", "genre is required", rid, nil)
			return
		}
		topN, ok := queryTopN(w, r, rid, feeds.DefaultTopN)
		if !ok {
			return
		}
		api.WriteJSON(w, http.StatusOK, d.load(r.Context(), cacheKey(r), feeds.KindGenre, feeds.GenreParams(genre, topN)))
	}
}

// SearchMovies handles GET /v1/movies/search. Without query and genre the
// result is empty and the backend is not called.
func SearchMovies(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		topN, ok := queryTopN(w, r, rid, feeds.DefaultSearchTopN)
		if !ok {
			return
		}
		q := r.URL.Query()
		p := feeds.SearchParams(q.Get("query"), q.Get("genre"), topN)
		if p.Query == "" && p.Genre == "" {
			api.WriteJSON(w, http.StatusOK, MovieList{Movies: []movie.Enriched{}})
			return
		}

		out := d.load(r.Context(), cacheKey(r), feeds.KindSearch, p)
		d.Analytics.Publish(analytics.SubjectSearchPerformed, "search_performed", "", map[string]any{
			"query":   p.Query,
			"genre":   p.Genre,
			"results": len(out.Movies),
			"request": rid,
		})
		api.WriteJSON(w, http.StatusOK, out)
	}
}
