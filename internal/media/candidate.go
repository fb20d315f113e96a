package media

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidResult marks an upstream record that cannot be turned into a
// displayable candidate.
var ErrInvalidResult = errors.New("invalid result record")

// Kind distinguishes the two candidate variants.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

const (
	imageBaseURL       = "https://image.tmdb.org/t/p/original"
	posterPlaceholder  = "https://image.tmdb.org/"
	permalinkBaseURL   = "https://www.themoviedb.org"
	preferredRatingKey = "imdb"
)

// RatingSource is one entry of a ratings-by-source mapping.
type RatingSource struct {
	Value float64 `json:"value"`
}

// RawRecord is the upstream record shape a candidate is built from. Movie
// records carry title/release_date, series records name/first_air_date;
// detail responses may additionally carry an explicit year and a
// ratings-by-source mapping.
type RawRecord struct {
	ID           int64                   `json:"id"`
	TmdbID       int64                   `json:"tmdbId"`
	Title        string                  `json:"title"`
	Name         string                  `json:"name"`
	ReleaseDate  string                  `json:"release_date"`
	FirstAirDate string                  `json:"first_air_date"`
	Year         int                     `json:"year"`
	PosterPath   *string                 `json:"poster_path"`
	BackdropPath *string                 `json:"backdrop_path"`
	VoteAverage  *float64                `json:"vote_average"`
	Ratings      map[string]RatingSource `json:"ratings"`
}

// Candidate is one normalized search result awaiting user confirmation.
// Immutable after construction.
type Candidate struct {
	Kind      Kind     `json:"kind"`
	ID        int64    `json:"id"`
	TmdbID    int64    `json:"tmdbId"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	PosterURL string   `json:"posterUrl"`
	Rating    *float64 `json:"rating,omitempty"`
}

// Normalize builds a Candidate from an upstream record. A record without a
// title, or whose year cannot be derived from an explicit year field or a
// YYYY-MM-DD date, is rejected with ErrInvalidResult. A missing rating is
// not an error; the candidate simply renders "N/A".
func Normalize(raw RawRecord, kind Kind) (*Candidate, error) {
	title := raw.Title
	if title == "" {
		title = raw.Name
	}
	if title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidResult)
	}

	year, err := deriveYear(raw)
	if err != nil {
		return nil, err
	}

	tmdbID := raw.TmdbID
	if tmdbID == 0 {
		tmdbID = raw.ID
	}

	return &Candidate{
		Kind:      kind,
		ID:        raw.ID,
		TmdbID:    tmdbID,
		Title:     title,
		Year:      year,
		PosterURL: buildPosterURL(raw),
		Rating:    resolveRating(raw),
	}, nil
}

// NormalizeBatch normalizes every record, skipping and logging the ones that
// fail validation. A batch of N inputs may yield fewer than N candidates;
// relative order is preserved.
func NormalizeBatch(raws []RawRecord, kind Kind, log zerolog.Logger) []Candidate {
	candidates := make([]Candidate, 0, len(raws))
	for _, raw := range raws {
		c, err := Normalize(raw, kind)
		if err != nil {
			log.Warn().
				Err(err).
				Int64("id", raw.ID).
				Str("kind", string(kind)).
				Msg("Skipping invalid result")
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates
}

// deriveYear prefers an explicit year field, then the year component of a
// YYYY-MM-DD release or first-air date.
func deriveYear(raw RawRecord) (int, error) {
	if raw.Year > 0 {
		return raw.Year, nil
	}

	dateStr := raw.ReleaseDate
	if dateStr == "" {
		dateStr = raw.FirstAirDate
	}
	if dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err == nil {
			return date.Year(), nil
		}
	}

	return 0, fmt.Errorf("%w: release date or year is required", ErrInvalidResult)
}

// resolveRating picks the authoritative rating input. A ratings-by-source
// mapping wins over the plain vote average; within the mapping only the
// preferred source counts, anything else is treated as no rating.
func resolveRating(raw RawRecord) *float64 {
	if raw.Ratings != nil {
		if src, ok := raw.Ratings[preferredRatingKey]; ok {
			v := src.Value
			return &v
		}
		return nil
	}

	if raw.VoteAverage != nil {
		v := math.Round(*raw.VoteAverage*10) / 10
		return &v
	}

	return nil
}

// buildPosterURL prefers the poster path over the backdrop path, both
// rendered at original size. With neither present it falls back to a fixed
// placeholder.
func buildPosterURL(raw RawRecord) string {
	if raw.PosterPath == nil && raw.BackdropPath == nil {
		return posterPlaceholder
	}
	if raw.PosterPath != nil {
		return imageBaseURL + *raw.PosterPath
	}
	return imageBaseURL + *raw.BackdropPath
}

// RatingText renders the rating for display, "N/A" when absent.
func (c *Candidate) RatingText() string {
	if c.Rating == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f/10", *c.Rating)
}

// Permalink returns the themoviedb.org URL for the candidate.
func (c *Candidate) Permalink() string {
	section := "movie"
	if c.Kind == KindSeries {
		section = "tv"
	}
	return fmt.Sprintf("%s/%s/%d", permalinkBaseURL, section, c.TmdbID)
}

// Caption renders the display text shown with the candidate's poster.
func (c *Candidate) Caption() string {
	return fmt.Sprintf("%s (%d)\nRating: %s\nLink: %s", c.Title, c.Year, c.RatingText(), c.Permalink())
}
