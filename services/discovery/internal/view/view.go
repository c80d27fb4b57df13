// Package view renders the discovery UI: carousel, shelves, cards and the
// search overlay. All views are stateless; the page and session packages own
// the data.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/example/movie-discovery/services/discovery/internal/movie"
)

// ShelfSkeletons is the number of placeholder cards shown while a shelf loads.
const ShelfSkeletons = 5

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var StaticFS embed.FS

type Shelf struct {
	Title   string
	Loading bool
	Movies  []movie.Enriched
}

// Skeletons returns one element per placeholder card, none when not loading.
func (s Shelf) Skeletons() []int {
	if !s.Loading {
		return nil
	}
	return make([]int, ShelfSkeletons)
}

type CarouselView struct {
	Slides     []movie.Enriched
	Index      int
	IntervalMS int64
}

type SearchOverlay struct {
	Open    bool
	Query   string
	Genre   string
	Loading bool
	Movies  []movie.Enriched
}

type Home struct {
	UserID         int
	AvatarURL      string
	AvatarFallback string
	Carousel       CarouselView
	Shelves        []Shelf
	Search         SearchOverlay
	WSPath         string
	StaticPrefix   string
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("discovery").Funcs(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Home(w io.Writer, h Home) error {
	return r.tmpl.ExecuteTemplate(w, "home", h)
}
