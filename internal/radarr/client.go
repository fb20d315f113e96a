package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/config"
)

var ErrAPIKeyMissing = errors.New("radarr API key is not configured")

// Client triggers downloads against a Radarr v3 instance.
type Client struct {
	httpClient *http.Client
	config     config.RadarrConfig
	logger     zerolog.Logger
}

// NewClient creates a new Radarr client.
func NewClient(cfg config.RadarrConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "radarr").Logger(),
	}
}

// IsConfigured returns true if the URL and API key are set.
func (c *Client) IsConfigured() bool {
	return c.config.URL != "" && c.config.APIKey != ""
}

// Test verifies connectivity by requesting the system status.
func (c *Client) Test(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAPIKeyMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/system/status", c.config.URL), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("radarr returned status %d", resp.StatusCode)
	}
	return nil
}

// addRequest is the add-to-library payload shared by movies and series.
type addRequest struct {
	TmdbID           int64      `json:"tmdbId"`
	QualityProfileID int        `json:"qualityProfileId"`
	RootFolderPath   string     `json:"rootFolderPath"`
	Monitored        bool       `json:"monitored"`
	AddOptions       addOptions `json:"addOptions"`
}

type addOptions struct {
	SearchForMovie           bool `json:"searchForMovie,omitempty"`
	SearchForMissingEpisodes bool `json:"searchForMissingEpisodes,omitempty"`
}

// AddMovie asks Radarr to add and monitor the movie. The outcome is the
// service's accepted/rejected decision; a rejected add is not an error.
func (c *Client) AddMovie(ctx context.Context, tmdbID int64) (bool, error) {
	return c.add(ctx, "movie", tmdbID, addOptions{SearchForMovie: true})
}

// AddSeries asks a Sonarr-compatible series endpoint behind the same base
// URL to add and monitor the series. Radarr itself has no series resource.
func (c *Client) AddSeries(ctx context.Context, tmdbID int64) (bool, error) {
	return c.add(ctx, "series", tmdbID, addOptions{SearchForMissingEpisodes: true})
}

func (c *Client) add(ctx context.Context, resource string, tmdbID int64, opts addOptions) (bool, error) {
	if !c.IsConfigured() {
		return false, ErrAPIKeyMissing
	}

	payload := addRequest{
		TmdbID:           tmdbID,
		QualityProfileID: c.config.QualityProfileID,
		RootFolderPath:   c.config.RootFolder,
		Monitored:        true,
		AddOptions:       opts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.config.URL, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("resource", resource).Int64("tmdbID", tmdbID).Msg("HTTP request failed")
		return false, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		c.logger.Info().Str("resource", resource).Int64("tmdbID", tmdbID).Msg("Added to radarr")
		return true, nil
	}

	c.logger.Warn().
		Str("resource", resource).
		Int64("tmdbID", tmdbID).
		Int("status", resp.StatusCode).
		Msg("Radarr rejected add request")

	return false, nil
}
