package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

type stubBackend struct {
	mu       sync.Mutex
	searches []string
}

func (s *stubBackend) Recommend(context.Context, int, string, float64, int) ([]movie.CatalogItem, error) {
	return nil, nil
}

func (s *stubBackend) Popular(_ context.Context, topN int) ([]movie.CatalogItem, error) {
	out := make([]movie.CatalogItem, topN)
	for i := range out {
		out[i] = movie.CatalogItem{Rank: i + 1, Title: "Slide"}
	}
	return out, nil
}

func (s *stubBackend) Genre(_ context.Context, genre string, _ int) ([]movie.CatalogItem, error) {
	return []movie.CatalogItem{{Title: genre + " pick"}}, nil
}

func (s *stubBackend) Search(_ context.Context, query, _ string, _ int) ([]movie.CatalogItem, error) {
	s.mu.Lock()
	s.searches = append(s.searches, query)
	s.mu.Unlock()
	return []movie.CatalogItem{{Title: "Toy Story (1995)"}}, nil
}

type placeholderEnricher struct{}

func (placeholderEnricher) Enrich(_ context.Context, item movie.CatalogItem) movie.Enriched {
	return movie.Placeholder(item)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startSession(t *testing.T, interval time.Duration) (*websocket.Conn, *stubBackend) {
	t.Helper()
	backend := &stubBackend{}
	done := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s, err := New(conn, backend, placeholderEnricher{}, Config{CarouselInterval: interval}, nil)
		if err != nil {
			t.Errorf("new session: %v", err)
			return
		}
		s.Serve(context.Background())
	}))

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("session did not shut down")
		}
		server.Close()
	})
	return conn, backend
}

// next reads frames until one of type typ matches accept.
func next(t *testing.T, conn *websocket.Conn, typ string, accept func(json.RawMessage) bool) json.RawMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ && (accept == nil || accept(f.Data)) {
			return f.Data
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Message{Type: typ, Data: raw}); err != nil {
		t.Fatal(err)
	}
}

func TestSession_CarouselSlidesAndTicks(t *testing.T) {
	conn, _ := startSession(t, 20*time.Millisecond)

	var slides CarouselSlides
	if err := json.Unmarshal(next(t, conn, TypeCarouselSlides, nil), &slides); err != nil {
		t.Fatal(err)
	}
	if len(slides.Slides) != 3 {
		t.Fatalf("expected 3 slides, got %d", len(slides.Slides))
	}

	var got []int
	for len(got) < 3 {
		var idx CarouselIndex
		if err := json.Unmarshal(next(t, conn, TypeCarouselIndex, nil), &idx); err != nil {
			t.Fatal(err)
		}
		got = append(got, idx.Index)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 0 {
		t.Fatalf("expected [1 2 0], got %v", got)
	}
}

func TestSession_SlidesPrecedeIndex(t *testing.T) {
	conn, _ := startSession(t, 5*time.Millisecond)
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	if f.Type != TypeCarouselSlides {
		t.Fatalf("the client must receive the slides before any index, got %s first", f.Type)
	}
}

func TestSession_CarouselJump(t *testing.T) {
	conn, _ := startSession(t, time.Hour)
	next(t, conn, TypeCarouselSlides, nil)

	send(t, conn, TypeCarouselJump, CarouselJump{Index: 2})
	var idx CarouselIndex
	if err := json.Unmarshal(next(t, conn, TypeCarouselIndex, nil), &idx); err != nil {
		t.Fatal(err)
	}
	if idx.Index != 2 {
		t.Fatalf("expected index 2, got %d", idx.Index)
	}
}

func TestSession_SearchFlow(t *testing.T) {
	conn, backend := startSession(t, time.Hour)

	send(t, conn, TypeSearchOpen, struct{}{})
	var st SearchState
	if err := json.Unmarshal(next(t, conn, TypeSearchState, nil), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Open || st.Loading || len(st.Movies) != 0 {
		t.Fatalf("unexpected state after open: %+v", st)
	}

	send(t, conn, TypeSearchInput, SearchInput{Query: "toy"})
	next(t, conn, TypeSearchState, func(raw json.RawMessage) bool {
		var s SearchState
		_ = json.Unmarshal(raw, &s)
		return !s.Loading && len(s.Movies) == 1
	})

	backend.mu.Lock()
	searches := append([]string(nil), backend.searches...)
	backend.mu.Unlock()
	if len(searches) != 1 || searches[0] != "toy" {
		t.Fatalf("expected a single search for toy, got %v", searches)
	}

	send(t, conn, TypeSearchClose, struct{}{})
	next(t, conn, TypeSearchState, func(raw json.RawMessage) bool {
		var s SearchState
		_ = json.Unmarshal(raw, &s)
		return !s.Open
	})
}

func TestSession_SearchSurvivesCloseAndReopen(t *testing.T) {
	conn, backend := startSession(t, time.Hour)

	send(t, conn, TypeSearchOpen, struct{}{})
	send(t, conn, TypeSearchInput, SearchInput{Query: "toy", Genre: "Animation"})
	next(t, conn, TypeSearchState, func(raw json.RawMessage) bool {
		var s SearchState
		_ = json.Unmarshal(raw, &s)
		return !s.Loading && len(s.Movies) == 1
	})

	send(t, conn, TypeSearchClose, struct{}{})
	var closed SearchState
	if err := json.Unmarshal(next(t, conn, TypeSearchState, func(raw json.RawMessage) bool {
		var s SearchState
		_ = json.Unmarshal(raw, &s)
		return !s.Open
	}), &closed); err != nil {
		t.Fatal(err)
	}
	if closed.Query != "toy" || closed.Genre != "Animation" || len(closed.Movies) != 1 {
		t.Fatalf("closing must only hide the overlay, got %+v", closed)
	}

	send(t, conn, TypeSearchOpen, struct{}{})
	var reopened SearchState
	if err := json.Unmarshal(next(t, conn, TypeSearchState, func(raw json.RawMessage) bool {
		var s SearchState
		_ = json.Unmarshal(raw, &s)
		return s.Open
	}), &reopened); err != nil {
		t.Fatal(err)
	}
	if reopened.Query != "toy" || reopened.Genre != "Animation" || len(reopened.Movies) != 1 || reopened.Movies[0].Title != "Toy Story (1995)" {
		t.Fatalf("expected the previous search on reopen, got %+v", reopened)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.searches) != 1 {
		t.Fatalf("reopening must not search again, got %v", backend.searches)
	}
}

func TestSession_InputIgnoredWhileClosed(t *testing.T) {
	conn, backend := startSession(t, time.Hour)

	send(t, conn, TypeSearchInput, SearchInput{Query: "toy"})
	send(t, conn, TypePing, nil)
	next(t, conn, TypePong, nil)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	if len(backend.searches) != 0 {
		t.Fatalf("closed overlay must not search, got %v", backend.searches)
	}
}

func TestSession_PingPong(t *testing.T) {
	conn, _ := startSession(t, time.Hour)
	send(t, conn, TypePing, nil)
	next(t, conn, TypePong, nil)
}
