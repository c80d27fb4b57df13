package feeds

import (
	"context"
	"strings"

	"github.com/example/movie-discovery/services/discovery/internal/movie"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
)

type Kind string

const (
	KindPopular     Kind = "popular"
	KindRecommended Kind = "recommended"
	KindGenre       Kind = "genre"
	KindSearch      Kind = "search"
)

const (
	DefaultTopN       = 10
	DefaultSearchTopN = 50
	DefaultAlpha      = 0.6
)

// Params are the inputs of a feed. A change of any field triggers a re-fetch.
type Params struct {
	UserID     int
	MovieTitle string
	Alpha      float64
	Query      string
	Genre      string
	TopN       int
}

func PopularParams(topN int) Params {
	return Params{TopN: orDefault(topN, DefaultTopN)}
}

func RecommendedParams(userID int, movieTitle string) Params {
	return Params{UserID: userID, MovieTitle: strings.TrimSpace(movieTitle), Alpha: DefaultAlpha, TopN: DefaultTopN}
}

func GenreParams(genre string, topN int) Params {
	return Params{Genre: strings.TrimSpace(genre), TopN: orDefault(topN, DefaultTopN)}
}

func SearchParams(query, genre string, topN int) Params {
	return Params{Query: strings.TrimSpace(query), Genre: strings.TrimSpace(genre), TopN: orDefault(topN, DefaultSearchTopN)}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// fetchFunc loads the raw items of one fetch cycle with a single backend request.
type fetchFunc func(ctx context.Context, backend recommender.Provider, p Params) ([]movie.CatalogItem, error)

// skipFor reports params that select nothing; no backend request is issued for them.
func skipFor(kind Kind, p Params) bool {
	switch kind {
	case KindGenre:
		return p.Genre == ""
	case KindSearch:
		return p.Query == "" && p.Genre == ""
	default:
		return false
	}
}

func fetchFor(kind Kind) fetchFunc {
	switch kind {
	case KindPopular:
		return func(ctx context.Context, b recommender.Provider, p Params) ([]movie.CatalogItem, error) {
			return b.Popular(ctx, p.TopN)
		}
	case KindRecommended:
		return func(ctx context.Context, b recommender.Provider, p Params) ([]movie.CatalogItem, error) {
			return b.Recommend(ctx, p.UserID, p.MovieTitle, p.Alpha, p.TopN)
		}
	case KindGenre:
		return func(ctx context.Context, b recommender.Provider, p Params) ([]movie.CatalogItem, error) {
			return b.Genre(ctx, p.Genre, p.TopN)
		}
	case KindSearch:
		return func(ctx context.Context, b recommender.Provider, p Params) ([]movie.CatalogItem, error) {
			// genre-only searches go to the genre endpoint
			if p.Query == "" {
				return b.Genre(ctx, p.Genre, p.TopN)
			}
			return b.Search(ctx, p.Query, p.Genre, p.TopN)
		}
	default:
		return nil
	}
}
