// Package movie holds the raw backend item and the enriched view model
// rendered by shelves, cards and the carousel.
package movie

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	PlaceholderImage = "https://via.placeholder.com/300x450?text=No+Image"
	PosterBaseURL    = "https://image.tmdb.org/t/p/w500"
	UnknownYear      = "N/A"
)

// CatalogItem is one movie as returned by the recommendation backend.
// The backend endpoints return different subsets of these fields.
type CatalogItem struct {
	MovieID         int64    `json:"movieId,omitempty"`
	Rank            int      `json:"rank,omitempty"`
	Title           string   `json:"title"`
	Score           *float64 `json:"score,omitempty"`
	Genres          string   `json:"genres,omitempty"`
	AvgRating       *float64 `json:"avg_rating,omitempty"`
	RatingsCount    int      `json:"ratings_count,omitempty"`
	PopularityScore *float64 `json:"popularity_score,omitempty"`
}

// Match is the subset of an external catalog record used for enrichment.
type Match struct {
	ID          int64
	Title       string
	PosterPath  string
	ReleaseDate string
	Runtime     int // minutes, 0 when unknown
}

// Enriched is the display-ready movie. Image and Year are never empty.
type Enriched struct {
	ID       string   `json:"id,omitempty"`
	Rank     int      `json:"rank,omitempty"`
	Title    string   `json:"title"`
	Name     string   `json:"name"`
	Image    string   `json:"image"`
	Year     string   `json:"year"`
	Score    *float64 `json:"score,omitempty"`
	Duration string   `json:"duration,omitempty"`
	Rating   string   `json:"rating,omitempty"`
	Genres   []string `json:"genres,omitempty"`

	// Degraded marks a placeholder caused by a failed lookup rather than a
	// clean miss.
	Degraded bool `json:"-"`
}

var yearSuffix = regexp.MustCompile(`\(\d+\)`)

// CleanTitle drops the first parenthesised number ("Aliens (1986)" -> "Aliens")
// so the title can be used as a catalog search query.
func CleanTitle(title string) string {
	loc := yearSuffix.FindStringIndex(title)
	if loc == nil {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(title[:loc[0]] + title[loc[1]:])
}

// ParseYear returns the four-digit year prefix of a release date such as
// "2010-07-15", or UnknownYear.
func ParseYear(releaseDate string) string {
	releaseDate = strings.TrimSpace(releaseDate)
	if len(releaseDate) < 4 {
		return UnknownYear
	}
	y := releaseDate[:4]
	if _, err := strconv.Atoi(y); err != nil {
		return UnknownYear
	}
	if len(releaseDate) > 4 && releaseDate[4] != '-' {
		return UnknownYear
	}
	return y
}

// PosterURL builds the w500 poster URL, falling back to the placeholder.
func PosterURL(posterPath string) string {
	posterPath = strings.TrimSpace(posterPath)
	if posterPath == "" {
		return PlaceholderImage
	}
	if !strings.HasPrefix(posterPath, "/") {
		posterPath = "/" + posterPath
	}
	return PosterBaseURL + posterPath
}

// FormatDuration renders a runtime in minutes as "2h 28min".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
}

// Placeholder builds the view model for an item without a catalog match.
func Placeholder(item CatalogItem) Enriched {
	return Merge(item, nil)
}

// Merge combines a backend item with its catalog match. A nil match yields the
// placeholder image and UnknownYear.
func Merge(item CatalogItem, m *Match) Enriched {
	e := Enriched{
		ID:     itemID(item),
		Rank:   item.Rank,
		Title:  item.Title,
		Name:   item.Title,
		Image:  PlaceholderImage,
		Year:   UnknownYear,
		Score:  item.Score,
		Genres: splitGenres(item.Genres),
	}
	if item.AvgRating != nil {
		e.Rating = strconv.FormatFloat(*item.AvgRating, 'f', 1, 64) + "/5"
	}
	if m == nil {
		return e
	}
	e.Image = PosterURL(m.PosterPath)
	e.Year = ParseYear(m.ReleaseDate)
	e.Duration = FormatDuration(m.Runtime)
	if e.ID == "" && m.ID > 0 {
		e.ID = "tmdb-" + strconv.FormatInt(m.ID, 10)
	}
	return e
}

// AnyDegraded reports whether any item fell back to the placeholder because
// its lookup failed.
func AnyDegraded(ms []Enriched) bool {
	for _, m := range ms {
		if m.Degraded {
			return true
		}
	}
	return false
}

// Key is the stable identity used when rendering lists: id, then rank, then title.
func (e Enriched) Key() string {
	switch {
	case e.ID != "":
		return e.ID
	case e.Rank > 0:
		return "rank-" + strconv.Itoa(e.Rank)
	default:
		return e.Title
	}
}

// ScoreLabel formats the score badge, empty when there is no (non-zero) score.
func (e Enriched) ScoreLabel() string {
	if e.Score == nil || *e.Score == 0 {
		return ""
	}
	return strconv.FormatFloat(*e.Score, 'f', 1, 64)
}

func itemID(item CatalogItem) string {
	if item.MovieID > 0 {
		return strconv.FormatInt(item.MovieID, 10)
	}
	return ""
}

func splitGenres(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
