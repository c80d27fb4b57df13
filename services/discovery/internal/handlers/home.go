package handlers

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/movie-discovery/internal/platform/analytics"
	"github.com/example/movie-discovery/internal/platform/api"
	"github.com/example/movie-discovery/internal/platform/httpserver"
	"github.com/example/movie-discovery/services/discovery/internal/page"
	"github.com/example/movie-discovery/services/discovery/internal/session"
	"github.com/example/movie-discovery/services/discovery/internal/view"
)

// Home handles GET /. Query params: search=1 opens the overlay with query and
// genre; user_id pins the profile instead of a random one.
func Home(builder *page.Builder, renderer *view.Renderer, pub *analytics.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		q := r.URL.Query()

		pq := page.Query{
			SearchOpen:  q.Get("search") == "1",
			SearchQuery: strings.TrimSpace(q.Get("query")),
			SearchGenre: strings.TrimSpace(q.Get("genre")),
		}
		if v := strings.TrimSpace(q.Get("user_id")); v != "" {
			uid, err := strconv.Atoi(v)
			if err != nil || uid < 1 || uid > page.MaxUserID {
				api.BadRequest(w, "INVALID_USER_ID", "user_id must be between 1 and 610", rid, map[string]any{"user_id": v})
				return
			}
			pq.UserID = uid
		}

		home, err := builder.Home(r.Context(), pq)
		if err != nil {
			log.Error("build home page", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		var buf bytes.Buffer
		if err := renderer.Home(&buf, home); err != nil {
			log.Error("render home page", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		pub.Publish(analytics.SubjectHomeViewed, "home_viewed", strconv.Itoa(home.UserID), map[string]any{
			"search_open": pq.SearchOpen,
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// Upgrader accepts same-host origins and the configured CORS origins.
func Upgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			for _, a := range allowed {
				if a == "*" || a == origin {
					return true
				}
			}
			return false
		},
	}
}

// Session handles GET /ws: one interactive carousel and search session per
// connection.
func Session(d Deps, upgrader websocket.Upgrader, carouselInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already replied with an error status.
			d.logger().Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		s, err := session.New(conn, d.Backend, d.Enricher, session.Config{
			CarouselInterval: carouselInterval,
			Concurrency:      d.Concurrency,
		}, d.logger())
		if err != nil {
			d.logger().Error("start session", zap.Error(err))
			_ = conn.Close()
			return
		}
		s.Serve(r.Context())
	}
}
