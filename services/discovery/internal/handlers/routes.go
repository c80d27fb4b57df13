package handlers

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	discoveryhttp "github.com/example/movie-discovery/services/discovery/internal/http"
	"github.com/example/movie-discovery/services/discovery/internal/page"
	"github.com/example/movie-discovery/services/discovery/internal/view"
)

const (
	StaticPrefix = "/static"
	WSPath       = "/ws"
)

type Routes struct {
	Deps             Deps
	Builder          *page.Builder
	Renderer         *view.Renderer
	RateLimiter      *discoveryhttp.RateLimiter // optional
	CarouselInterval time.Duration
	AllowedOrigins   []string
}

// Register mounts the discovery surface on r. The router must already carry
// the platform middlewares.
func Register(r chi.Router, rt Routes) error {
	static, err := fs.Sub(view.StaticFS, "static")
	if err != nil {
		return err
	}

	r.Get("/", Home(rt.Builder, rt.Renderer, rt.Deps.Analytics, rt.Deps.logger()))
	r.Handle(StaticPrefix+"/*", http.StripPrefix(StaticPrefix, http.FileServer(http.FS(static))))
	r.Get(WSPath, Session(rt.Deps, Upgrader(rt.AllowedOrigins), rt.CarouselInterval))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/movies", func(r chi.Router) {
		if rt.RateLimiter != nil {
			r.Use(rt.RateLimiter.Middleware)
		}
		r.Get("/popular", PopularMovies(rt.Deps))
		r.Get("/recommended", RecommendedMovies(rt.Deps))
		r.Get("/genre/{genre}", GenreMovies(rt.Deps))
		r.Get("/search", SearchMovies(rt.Deps))
	})
	return nil
}
