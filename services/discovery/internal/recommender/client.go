package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/movie-discovery/services/discovery/internal/metrics"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

const DefaultBaseURL = "http://127.0.0.1:8000"

// ErrStatus is wrapped by every non-200 backend response.
var ErrStatus = errors.New("recommender: unexpected status")

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

type recommendResponse struct {
	UserID          int                 `json:"user_id"`
	MovieTitle      string              `json:"movie_title"`
	Recommendations []movie.CatalogItem `json:"recommendations"`
}

type popularResponse struct {
	PopularMovies []movie.CatalogItem `json:"popular_movies"`
}

type resultsResponse struct {
	Results []movie.CatalogItem `json:"results"`
}

// Recommend calls GET /recommend (hybrid collaborative + content recommendations).
func (c *Client) Recommend(ctx context.Context, userID int, movieTitle string, alpha float64, topN int) ([]movie.CatalogItem, error) {
	q := url.Values{}
	q.Set("user_id", strconv.Itoa(userID))
	q.Set("movie_title", movieTitle)
	q.Set("alpha", strconv.FormatFloat(alpha, 'f', -1, 64))
	q.Set("top_n", strconv.Itoa(topN))

	var out recommendResponse
	if err := c.get(ctx, "/recommend", q, &out); err != nil {
		return nil, err
	}
	return out.Recommendations, nil
}

// Popular calls GET /popular-movies.
func (c *Client) Popular(ctx context.Context, topN int) ([]movie.CatalogItem, error) {
	q := url.Values{}
	q.Set("top_n", strconv.Itoa(topN))

	var out popularResponse
	if err := c.get(ctx, "/popular-movies", q, &out); err != nil {
		return nil, err
	}
	return out.PopularMovies, nil
}

// Genre calls GET /genre-movies.
func (c *Client) Genre(ctx context.Context, genre string, topN int) ([]movie.CatalogItem, error) {
	q := url.Values{}
	q.Set("genre", genre)
	q.Set("top_n", strconv.Itoa(topN))

	var out resultsResponse
	if err := c.get(ctx, "/genre-movies", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Search calls GET /search; an empty genre is sent as an empty filter.
func (c *Client) Search(ctx context.Context, query, genre string, topN int) ([]movie.CatalogItem, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("genre", genre)
	q.Set("top_n", strconv.Itoa(topN))

	var out resultsResponse
	if err := c.get(ctx, "/search", q, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, dst any) (err error) {
	start := time.Now()
	defer func() {
		metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	}()

	rawURL := c.BaseURL + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "movie-discovery/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("recommender %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s status %d body=%q", ErrStatus, endpoint, resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("recommender %s: decode error: %w body=%q", endpoint, err, string(b[:min(len(b), 200)]))
	}
	return nil
}
