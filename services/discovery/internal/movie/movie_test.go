package movie

import (
	"encoding/json"
	"testing"
)

func TestCleanTitle(t *testing.T) {
	tests := map[string]string{
		"Aliens (1986)":               "Aliens",
		"  Fluke (1995) ":             "Fluke",
		"Inception":                   "Inception",
		"Se7en (a.k.a. Seven) (1995)": "Se7en (a.k.a. Seven)",
		"":                            "",
	}
	for input, expect := range tests {
		if got := CleanTitle(input); got != expect {
			t.Fatalf("CleanTitle(%q) = %q, want %q", input, got, expect)
		}
	}
}

func TestParseYear(t *testing.T) {
	tests := map[string]string{
		"2010-07-15": "2010",
		"1986":       "1986",
		"":           UnknownYear,
		"199":        UnknownYear,
		"abcd-01-01": UnknownYear,
		"19860":      UnknownYear,
	}
	for input, expect := range tests {
		if got := ParseYear(input); got != expect {
			t.Fatalf("ParseYear(%q) = %q, want %q", input, got, expect)
		}
	}
}

func TestPosterURL(t *testing.T) {
	if got := PosterURL(""); got != PlaceholderImage {
		t.Fatalf("expected placeholder, got %s", got)
	}
	if got := PosterURL("/abc.jpg"); got != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Fatalf("unexpected poster url: %s", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(148); got != "2h 28min" {
		t.Fatalf("expected 2h 28min, got %q", got)
	}
	if got := FormatDuration(0); got != "" {
		t.Fatalf("expected empty duration, got %q", got)
	}
}

func TestMerge_NoMatchUsesPlaceholder(t *testing.T) {
	e := Merge(CatalogItem{Title: "Inception"}, nil)
	if e.Image != PlaceholderImage {
		t.Fatalf("expected placeholder image, got %s", e.Image)
	}
	if e.Year != UnknownYear {
		t.Fatalf("expected N/A year, got %s", e.Year)
	}
	if e.Name != "Inception" || e.Title != "Inception" {
		t.Fatalf("unexpected names: %+v", e)
	}
}

func TestPlaceholder_JSONShape(t *testing.T) {
	b, err := json.Marshal([]Enriched{Placeholder(CatalogItem{Title: "Inception"})})
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"title":"Inception","name":"Inception","image":"https://via.placeholder.com/300x450?text=No+Image","year":"N/A"}]`
	if string(b) != want {
		t.Fatalf("unexpected json:\n got %s\nwant %s", b, want)
	}
}

func TestMerge_WithMatch(t *testing.T) {
	score := 4.25
	avg := 4.43
	item := CatalogItem{MovieID: 79132, Title: "Inception (2010)", Score: &score, Genres: "Action|Sci-Fi", AvgRating: &avg}
	e := Merge(item, &Match{ID: 27205, PosterPath: "/p.jpg", ReleaseDate: "2010-07-15", Runtime: 148})

	if e.ID != "79132" {
		t.Fatalf("expected backend id, got %s", e.ID)
	}
	if e.Year != "2010" {
		t.Fatalf("expected year 2010, got %s", e.Year)
	}
	if e.Image != "https://image.tmdb.org/t/p/w500/p.jpg" {
		t.Fatalf("unexpected image: %s", e.Image)
	}
	if e.Duration != "2h 28min" {
		t.Fatalf("unexpected duration: %s", e.Duration)
	}
	if e.Rating != "4.4/5" {
		t.Fatalf("unexpected rating: %s", e.Rating)
	}
	if len(e.Genres) != 2 || e.Genres[1] != "Sci-Fi" {
		t.Fatalf("unexpected genres: %v", e.Genres)
	}
	if e.ScoreLabel() != "4.2" && e.ScoreLabel() != "4.3" {
		t.Fatalf("unexpected score label: %s", e.ScoreLabel())
	}
}

func TestMerge_MatchWithoutPosterOrDate(t *testing.T) {
	e := Merge(CatalogItem{Title: "Obscure"}, &Match{ID: 5})
	if e.Image != PlaceholderImage || e.Year != UnknownYear {
		t.Fatalf("expected defaults, got %+v", e)
	}
	if e.ID != "tmdb-5" {
		t.Fatalf("expected catalog id fallback, got %s", e.ID)
	}
}

func TestKey(t *testing.T) {
	if k := (Enriched{ID: "1", Rank: 2, Title: "x"}).Key(); k != "1" {
		t.Fatalf("expected id key, got %s", k)
	}
	if k := (Enriched{Rank: 2, Title: "x"}).Key(); k != "rank-2" {
		t.Fatalf("expected rank key, got %s", k)
	}
	if k := (Enriched{Title: "x"}).Key(); k != "x" {
		t.Fatalf("expected title key, got %s", k)
	}
}

func TestScoreLabel_ZeroHidden(t *testing.T) {
	zero := 0.0
	if l := (Enriched{Score: &zero}).ScoreLabel(); l != "" {
		t.Fatalf("expected empty label, got %q", l)
	}
}
