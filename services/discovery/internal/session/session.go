// Package session drives one interactive browser session over a websocket:
// the auto-advancing carousel and the live search overlay.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/movie-discovery/services/discovery/internal/feeds"
	"github.com/example/movie-discovery/services/discovery/internal/metrics"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
	"github.com/example/movie-discovery/services/discovery/internal/page"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
	"github.com/example/movie-discovery/services/discovery/internal/view"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Client message types.
const (
	TypeSearchOpen   = "search.open"
	TypeSearchClose  = "search.close"
	TypeSearchInput  = "search.input"
	TypeCarouselJump = "carousel.jump"
	TypePing         = "ping"
)

// Server message types.
const (
	TypeCarouselSlides = "carousel.slides"
	TypeCarouselIndex  = "carousel.index"
	TypeSearchState    = "search.state"
	TypePong           = "pong"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SearchInput struct {
	Query string `json:"query"`
	Genre string `json:"genre"`
}

type CarouselJump struct {
	Index int `json:"index"`
}

type CarouselIndex struct {
	Index int `json:"index"`
}

type CarouselSlides struct {
	Slides     []movie.Enriched `json:"slides"`
	IntervalMS int64            `json:"interval_ms"`
}

type SearchState struct {
	Open    bool             `json:"open"`
	Query   string           `json:"query"`
	Genre   string           `json:"genre"`
	Loading bool             `json:"loading"`
	Movies  []movie.Enriched `json:"movies"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Config struct {
	CarouselInterval time.Duration
	Concurrency      int
}

type Session struct {
	conn     *websocket.Conn
	backend  recommender.Provider
	enricher feeds.Enricher
	cfg      Config
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	send   chan outbound

	carousel *view.Carousel
	search   *feeds.Feed

	mu         sync.Mutex
	searchOpen bool
}

func New(conn *websocket.Conn, backend recommender.Provider, enricher feeds.Enricher, cfg Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.CarouselInterval <= 0 {
		cfg.CarouselInterval = view.DefaultCarouselInterval
	}
	search, err := feeds.New(feeds.KindSearch, backend, enricher,
		feeds.WithLogger(log), feeds.WithConcurrency(cfg.Concurrency))
	if err != nil {
		return nil, err
	}
	return &Session{
		conn:     conn,
		backend:  backend,
		enricher: enricher,
		cfg:      cfg,
		log:      log,
		send:     make(chan outbound, sendBuffer),
		search:   search,
	}, nil
}

// Serve runs the session until the client disconnects or ctx is done. On
// return the carousel timer is stopped, the search feed closed and the
// connection released.
func (s *Session) Serve(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	s.carousel = view.NewCarousel(0, s.cfg.CarouselInterval, func(i int) {
		s.enqueue(TypeCarouselIndex, CarouselIndex{Index: i})
	})

	var wg sync.WaitGroup
	changes, unsubscribe := s.search.Subscribe()
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.writePump()
	}()
	go func() {
		defer wg.Done()
		for st := range changes {
			s.enqueue(TypeSearchState, s.searchState(st))
		}
	}()
	go func() {
		defer wg.Done()
		s.loadSlides()
	}()

	s.readPump()

	s.cancel()
	s.carousel.Stop()
	unsubscribe()
	s.search.Close()
	wg.Wait()
	_ = s.conn.Close()
}

func (s *Session) loadSlides() {
	st, err := feeds.Load(s.ctx, feeds.KindPopular, s.backend, s.enricher,
		feeds.PopularParams(page.CarouselSlides), feeds.WithLogger(s.log), feeds.WithConcurrency(s.cfg.Concurrency))
	if err != nil {
		return
	}
	s.enqueue(TypeCarouselSlides, CarouselSlides{Slides: st.Movies, IntervalMS: s.cfg.CarouselInterval.Milliseconds()})
	s.carousel.SetLength(len(st.Movies))
}

// enqueue hands a frame to the write pump unless the session is over.
func (s *Session) enqueue(typ string, data any) {
	select {
	case s.send <- outbound{Type: typ, Data: data}:
	case <-s.ctx.Done():
	}
}

func (s *Session) searchState(st feeds.State) SearchState {
	s.mu.Lock()
	open := s.searchOpen
	s.mu.Unlock()
	return SearchState{
		Open:    open,
		Query:   st.Params.Query,
		Genre:   st.Params.Genre,
		Loading: st.Loading,
		Movies:  st.Movies,
	}
}

func (s *Session) setOpen(open bool) {
	s.mu.Lock()
	s.searchOpen = open
	s.mu.Unlock()
}

func (s *Session) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchOpen
}

func (s *Session) handle(msg Message) {
	switch msg.Type {
	case TypePing:
		s.enqueue(TypePong, nil)
	case TypeSearchOpen:
		s.setOpen(true)
		s.enqueue(TypeSearchState, s.searchState(s.search.State()))
	case TypeSearchClose:
		// hidden, not reset: query, genre and results survive a reopen
		s.setOpen(false)
		s.enqueue(TypeSearchState, s.searchState(s.search.State()))
	case TypeSearchInput:
		var in SearchInput
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			s.log.Debug("bad search input", zap.Error(err))
			return
		}
		if !s.isOpen() {
			return
		}
		s.search.SetParams(s.ctx, feeds.SearchParams(in.Query, in.Genre, feeds.DefaultSearchTopN))
	case TypeCarouselJump:
		var in CarouselJump
		if err := json.Unmarshal(msg.Data, &in); err != nil {
			s.log.Debug("bad carousel jump", zap.Error(err))
			return
		}
		s.carousel.Jump(in.Index)
	default:
		s.log.Debug("unknown message type", zap.String("type", msg.Type))
	}
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Error("failed to set read deadline", zap.Error(err))
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(msg)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Error("failed to set write deadline", zap.Error(err))
				s.abort()
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Debug("websocket write failed", zap.Error(err))
				s.abort()
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.abort()
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.abort()
				return
			}
		}
	}
}

// abort ends the session after a write failure; closing the connection
// unblocks the read pump.
func (s *Session) abort() {
	s.cancel()
	_ = s.conn.Close()
}
