// Package page composes the home page: the popular carousel, the recommended
// and popular shelves, one shelf per featured genre and the search overlay.
package page

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/example/movie-discovery/services/discovery/internal/feeds"
	"github.com/example/movie-discovery/services/discovery/internal/movie"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
	"github.com/example/movie-discovery/services/discovery/internal/view"
)

const (
	MaxUserID          = 610
	SeedMovieTitle     = "Fluke"
	CarouselSlides     = 3
	AvatarFallbackURL  = "https://via.placeholder.com/40x40.png?text=U"
	avatarURLFormat    = "https://randomuser.me/api/portraits/men/%d.jpg"
	defaultPageTimeout = 10 * time.Second
)

// GenreShelf maps a shelf title to the backend genre it lists.
type GenreShelf struct {
	Title string
	Genre string
}

var DefaultGenreShelves = []GenreShelf{
	{Title: "Animated", Genre: "Animation"},
	{Title: "Horror", Genre: "Horror"},
	{Title: "Comedy", Genre: "Comedy"},
	{Title: "Romance", Genre: "Romance"},
	{Title: "Adventure", Genre: "Adventure"},
}

// AvatarURL is the profile picture of a user id.
func AvatarURL(userID int) string {
	return fmt.Sprintf(avatarURLFormat, userID%100)
}

// RandomUserID picks a user id in 1..MaxUserID.
func RandomUserID() int {
	return rand.IntN(MaxUserID) + 1
}

type Config struct {
	Timeout          time.Duration
	CarouselInterval time.Duration
	Concurrency      int
	GenreShelves     []GenreShelf
	WSPath           string
	StaticPrefix     string
}

// Query carries the per-request inputs of the home page.
type Query struct {
	UserID      int // 0 picks a random user
	SearchOpen  bool
	SearchQuery string
	SearchGenre string
}

type Builder struct {
	backend  recommender.Provider
	enricher feeds.Enricher
	cfg      Config
	log      *zap.Logger
	userID   func() int
}

func NewBuilder(backend recommender.Provider, enricher feeds.Enricher, cfg Config, log *zap.Logger) *Builder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPageTimeout
	}
	if cfg.GenreShelves == nil {
		cfg.GenreShelves = DefaultGenreShelves
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{backend: backend, enricher: enricher, cfg: cfg, log: log, userID: RandomUserID}
}

type slot struct {
	title      string
	feed       *feeds.Feed
	params     feeds.Params
	loadIfNone bool
}

// Home loads every feed concurrently and renders once all of them settled or
// the page deadline passed. Unsettled shelves render as skeletons.
func (b *Builder) Home(ctx context.Context, q Query) (view.Home, error) {
	uid := q.UserID
	if uid <= 0 {
		uid = b.userID()
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	opts := []feeds.Option{feeds.WithLogger(b.log), feeds.WithConcurrency(b.cfg.Concurrency)}

	slots := []*slot{
		{title: "Recommended", params: feeds.RecommendedParams(uid, SeedMovieTitle), loadIfNone: true},
		{title: "Popular", params: feeds.PopularParams(feeds.DefaultTopN), loadIfNone: true},
	}
	kinds := []feeds.Kind{feeds.KindRecommended, feeds.KindPopular}
	for _, g := range b.cfg.GenreShelves {
		slots = append(slots, &slot{title: g.Title, params: feeds.GenreParams(g.Genre, feeds.DefaultTopN)})
		kinds = append(kinds, feeds.KindGenre)
	}

	carousel := &slot{params: feeds.PopularParams(CarouselSlides)}
	slots = append(slots, carousel)
	kinds = append(kinds, feeds.KindPopular)

	var search *slot
	if q.SearchOpen {
		search = &slot{params: feeds.SearchParams(q.SearchQuery, q.SearchGenre, feeds.DefaultSearchTopN)}
		slots = append(slots, search)
		kinds = append(kinds, feeds.KindSearch)
	}

	for i, s := range slots {
		f, err := feeds.New(kinds[i], b.backend, b.enricher, opts...)
		if err != nil {
			for _, prev := range slots[:i] {
				prev.feed.Close()
			}
			return view.Home{}, err
		}
		s.feed = f
	}
	defer func() {
		for _, s := range slots {
			s.feed.Close()
		}
	}()

	for _, s := range slots {
		s.feed.SetParams(ctx, s.params)
	}
	for _, s := range slots {
		if err := s.feed.WaitContext(ctx); err != nil {
			b.log.Warn("page deadline passed before all feeds settled", zap.Error(err))
			break
		}
	}

	home := view.Home{
		UserID:         uid,
		AvatarURL:      AvatarURL(uid),
		AvatarFallback: AvatarFallbackURL,
		WSPath:         b.cfg.WSPath,
		StaticPrefix:   b.cfg.StaticPrefix,
	}

	carouselState := carousel.feed.State()
	home.Carousel = view.CarouselView{
		Slides:     carouselState.Movies,
		IntervalMS: b.carouselInterval().Milliseconds(),
	}

	for _, s := range slots {
		if s == carousel || s == search {
			continue
		}
		home.Shelves = append(home.Shelves, shelfFrom(s.title, s.feed.State(), s.loadIfNone))
	}

	home.Search = view.SearchOverlay{Open: q.SearchOpen, Query: q.SearchQuery, Genre: q.SearchGenre, Movies: []movie.Enriched{}}
	if search != nil {
		st := search.feed.State()
		home.Search.Loading = st.Loading
		home.Search.Movies = st.Movies
	}
	return home, nil
}

func (b *Builder) carouselInterval() time.Duration {
	if b.cfg.CarouselInterval <= 0 {
		return view.DefaultCarouselInterval
	}
	return b.cfg.CarouselInterval
}

// shelfFrom maps a feed state to a shelf. Recommended and popular shelves show
// skeletons for as long as they have nothing to list.
func shelfFrom(title string, st feeds.State, loadIfNone bool) view.Shelf {
	loading := st.Loading
	if loadIfNone {
		loading = len(st.Movies) == 0
	}
	return view.Shelf{Title: title, Loading: loading, Movies: st.Movies}
}
