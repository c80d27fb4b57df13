package tmdb

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

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

const DefaultBaseURL = "https://api.themoviedb.org/3"

// ErrStatus is wrapped by every non-200 catalog response.
var ErrStatus = errors.New("tmdb: unexpected status")

// StatusError carries the HTTP status so retries can skip client errors.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: status %d body=%q", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// ClientConfig holds retry settings for catalog lookups.
type ClientConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker[[]byte]
	Limiter    *rate.Limiter
	Log        *zap.Logger
}

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker[[]byte]) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.Limiter = l }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL, apiKey string, cfg ClientConfig, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewCircuitBreaker builds the breaker shared by all catalog lookups.
func NewCircuitBreaker(maxRequests uint32, interval, timeout time.Duration, failureThreshold uint32, log *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// client errors and caller cancellation say nothing about upstream health
			var se *StatusError
			if errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests {
				return true
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

type searchResponse struct {
	Page    int `json:"page"`
	Results []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		PosterPath  string `json:"poster_path"`
		ReleaseDate string `json:"release_date"`
	} `json:"results"`
	TotalResults int `json:"total_results"`
}

type movieDetails struct {
	ID      int64 `json:"id"`
	Runtime int   `json:"runtime"`
}

// SearchMovie returns the first /search/movie result for query, or nil when
// the catalog has no match.
func (c *Client) SearchMovie(ctx context.Context, query string) (*movie.Match, error) {
	q := url.Values{}
	q.Set("query", query)

	var out searchResponse
	if err := c.getJSON(ctx, "/search/movie", q, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	r := out.Results[0]
	return &movie.Match{ID: r.ID, Title: r.Title, PosterPath: r.PosterPath, ReleaseDate: r.ReleaseDate}, nil
}

// MovieRuntime returns the runtime in minutes of a catalog movie.
func (c *Client) MovieRuntime(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, fmt.Errorf("tmdb: movie id required")
	}
	var out movieDetails
	if err := c.getJSON(ctx, "/movie/"+strconv.FormatInt(id, 10), url.Values{}, &out); err != nil {
		return 0, err
	}
	return out.Runtime, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	b, err := c.doWithBreaker(ctx, path, q)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("tmdb: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}
	return nil
}

func (c *Client) doWithBreaker(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.CB == nil {
		return c.doWithRetry(ctx, path, q)
	}
	return c.CB.Execute(func() ([]byte, error) {
		return c.doWithRetry(ctx, path, q)
	})
}

func (c *Client) doWithRetry(ctx context.Context, path string, q url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := c.do(ctx, path, q)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.Config.MaxRetries+1)),
		retry.Delay(c.Config.RetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			c.Log.Debug("retrying catalog request", zap.String("path", path), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	return body, err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) do(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	q.Set("api_key", c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "movie-discovery/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// the url error embeds the query string, which carries the api key
		var ue *url.Error
		if errors.As(err, &ue) {
			return nil, fmt.Errorf("tmdb %s: %w", path, ue.Err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(b[:min(len(b), 200)])}
	}
	return b, nil
}
