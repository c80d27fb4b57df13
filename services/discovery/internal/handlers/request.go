package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/movie-discovery/internal/platform/api"
)

const maxTopN = 100

// queryTopN reads an optional top_n in 1..maxTopN. On failure it writes a 400
// response and returns false.
func queryTopN(w http.ResponseWriter, r *http.Request, rid string, def int) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("top_n"))
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxTopN {
		api.BadRequest(w, "INVALID_TOP_N", "top_n must be an integer between 1 and 100", rid, map[string]any{"top_n": v})
		return 0, false
	}
	return n, true
}

func queryUserID(w http.ResponseWriter, r *http.Request, rid string) (int, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("user_id"))
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		api.BadRequest(w, "INVALID_USER_ID", "user_id must be a positive integer", rid, map[string]any{"user_id": v})
		return 0, false
	}
	return n, true
}

func queryAlpha(w http.ResponseWriter, r *http.Request, rid string, def float64) (float64, bool) {
	v := strings.TrimSpace(r.URL.Query().Get("alpha"))
	if v == "" {
		return def, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		api.BadRequest(w, "INVALID_ALPHA", "alpha must be a number between 0 and 1", rid, map[string]any{"alpha": v})
		return 0, false
	}
	return f, true
}

// cacheKey is the request path plus its canonical (sorted) query.
func cacheKey(r *http.Request) string {
	q := r.URL.Query().Encode()
	if q == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q
}
