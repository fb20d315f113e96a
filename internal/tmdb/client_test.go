package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/config"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func newTestClient(server *httptest.Server) *Client {
	cfg := config.TMDBConfig{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Timeout: 5,
	}
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_IsConfigured(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		want   bool
	}{
		{"with key", "abc123", true},
		{"without key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(config.TMDBConfig{APIKey: tt.apiKey}, zerolog.Nop())
			if got := client.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_SearchMovies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if query := r.URL.Query().Get("query"); query != "Matrix" {
			t.Errorf("unexpected query: %s", query)
		}
		if key := r.URL.Query().Get("api_key"); key != "test-api-key" {
			t.Errorf("unexpected api key: %s", key)
		}

		response := SearchMoviesResponse{
			Page:         1,
			TotalResults: 2,
			TotalPages:   1,
			Results: []MovieResult{
				{
					ID:          603,
					Title:       "The Matrix",
					ReleaseDate: "1999-03-30",
					PosterPath:  strPtr("/matrix.jpg"),
					VoteAverage: floatPtr(8.2),
				},
				{
					ID:          604,
					Title:       "The Matrix Reloaded",
					ReleaseDate: "2003-05-15",
				},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	records, err := client.SearchMovies(context.Background(), "Matrix")
	if err != nil {
		t.Fatalf("SearchMovies() unexpected error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("SearchMovies() returned %d records, want 2", len(records))
	}

	// upstream order preserved as-is
	if records[0].ID != 603 || records[1].ID != 604 {
		t.Errorf("record order = [%d, %d], want [603, 604]", records[0].ID, records[1].ID)
	}
	if records[0].Title != "The Matrix" {
		t.Errorf("Title = %q, want %q", records[0].Title, "The Matrix")
	}
	if records[0].PosterPath == nil || *records[0].PosterPath != "/matrix.jpg" {
		t.Error("PosterPath not carried through")
	}
	if records[0].VoteAverage == nil || *records[0].VoteAverage != 8.2 {
		t.Error("VoteAverage not carried through")
	}
}

func TestClient_SearchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		response := SearchTVResponse{
			Page:         1,
			TotalResults: 1,
			TotalPages:   1,
			Results: []TVResult{
				{ID: 1438, Name: "The Wire", FirstAirDate: "2002-06-02"},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := newTestClient(server)
	records, err := client.SearchSeries(context.Background(), "The Wire")
	if err != nil {
		t.Fatalf("SearchSeries() unexpected error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("SearchSeries() returned %d records, want 1", len(records))
	}
	if records[0].Name != "The Wire" {
		t.Errorf("Name = %q, want %q", records[0].Name, "The Wire")
	}
	if records[0].FirstAirDate != "2002-06-02" {
		t.Errorf("FirstAirDate = %q, want %q", records[0].FirstAirDate, "2002-06-02")
	}
}

func TestClient_GetMovie(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/603" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		details := MovieDetails{
			ID:          603,
			Title:       "The Matrix",
			ReleaseDate: "1999-03-30",
			VoteAverage: floatPtr(8.2),
			ImdbID:      "tt0133093",
		}
		json.NewEncoder(w).Encode(details)
	}))
	defer server.Close()

	client := newTestClient(server)
	record, err := client.GetMovie(context.Background(), 603)
	if err != nil {
		t.Fatalf("GetMovie() unexpected error: %v", err)
	}

	if record.ID != 603 || record.TmdbID != 603 {
		t.Errorf("ids = (%d, %d), want (603, 603)", record.ID, record.TmdbID)
	}
	if record.Title != "The Matrix" {
		t.Errorf("Title = %q, want %q", record.Title, "The Matrix")
	}
}

func TestClient_GetMovieNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{StatusCode: 34, StatusMessage: "The resource you requested could not be found."})
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.GetMovie(context.Background(), 99999999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMovie() error = %v, want ErrNotFound", err)
	}
}

func TestClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.SearchMovies(context.Background(), "Matrix")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("SearchMovies() error = %v, want ErrRateLimited", err)
	}
}

func TestClient_MissingAPIKey(t *testing.T) {
	client := NewClient(config.TMDBConfig{}, zerolog.Nop())
	if _, err := client.SearchMovies(context.Background(), "Matrix"); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("SearchMovies() error = %v, want ErrAPIKeyMissing", err)
	}
}
