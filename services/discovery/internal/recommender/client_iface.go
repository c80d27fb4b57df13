package recommender

import (
	"context"

	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

// Provider is the port for the recommendation backend.
type Provider interface {
	Recommend(ctx context.Context, userID int, movieTitle string, alpha float64, topN int) ([]movie.CatalogItem, error)
	Popular(ctx context.Context, topN int) ([]movie.CatalogItem, error)
	Genre(ctx context.Context, genre string, topN int) ([]movie.CatalogItem, error)
	Search(ctx context.Context, query, genre string, topN int) ([]movie.CatalogItem, error)
}

var _ Provider = (*Client)(nil)
