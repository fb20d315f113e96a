package picker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/media"
)

// User-facing acceptance outcomes. The wording is fixed; callers send these
// verbatim.
const (
	MovieAcceptedText = "Movie has been added!"
	MovieRejectedText = "Movie has not been added!"
	SerieAcceptedText = "Serie has been added!"
	SerieRejectedText = "Serie has not been added!"
)

// ErrNoResults signals that a search produced no displayable candidates.
var ErrNoResults = errors.New("no results")

// Page is one candidate ready for display, together with the store index the
// "Next" button must consume. The envelope index is always exactly the store
// index to read: displaying the candidate from index i hands out NextIdx=i+1.
type Page struct {
	NextIdx   int
	Candidate *media.Candidate
}

// Service drives the present-candidate / accept-or-advance interaction.
type Service struct {
	store    SessionStore
	searcher Searcher
	trigger  Trigger
	logger   zerolog.Logger
}

// NewService creates a picker service.
func NewService(store SessionStore, searcher Searcher, trigger Trigger, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		searcher: searcher,
		trigger:  trigger,
		logger:   logger.With().Str("component", "picker").Logger(),
	}
}

// StartSearch clears the chat's previous session, runs the search, writes
// the surviving candidates as a new session and consumes index 0 for the
// first display. Returns ErrNoResults when nothing normalizes.
func (s *Service) StartSearch(ctx context.Context, chatID int64, query string, kind media.Kind) (*Page, error) {
	s.store.Clear(ctx, chatID)

	var (
		records []media.RawRecord
		err     error
	)
	switch kind {
	case media.KindSeries:
		records, err = s.searcher.SearchSeries(ctx, query)
	default:
		records, err = s.searcher.SearchMovies(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	candidates := media.NormalizeBatch(records, kind, s.logger)
	if len(candidates) == 0 {
		return nil, ErrNoResults
	}

	searchID, err := s.store.Write(ctx, chatID, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().
		Int64("chatID", chatID).
		Str("searchID", searchID).
		Str("kind", string(kind)).
		Int("candidates", len(candidates)).
		Msg("Search session started")

	page := s.Advance(ctx, chatID, 0)
	if page == nil {
		// The write succeeded but the first read came back empty, so the
		// store is misbehaving underneath us.
		return nil, fmt.Errorf("session %s lost its first candidate before display", searchID)
	}
	return page, nil
}

// Advance consumes the candidate at idx. A nil return means the session is
// exhausted at or before that index; exhaustion is terminal since indices
// are consume-once and handed out in order.
func (s *Service) Advance(ctx context.Context, chatID int64, idx int) *Page {
	candidate := s.store.ReadAndEvict(ctx, chatID, idx)
	if candidate == nil {
		return nil
	}
	return &Page{NextIdx: idx + 1, Candidate: candidate}
}

// Lookup fetches a single movie by id for a confirm-only display. No
// session is involved; there is nothing to page through.
func (s *Service) Lookup(ctx context.Context, id int64) (*media.Candidate, error) {
	record, err := s.searcher.GetMovie(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup failed: %w", err)
	}
	return media.Normalize(*record, media.KindMovie)
}

// AcceptMovie delegates the accepted movie to the download trigger and
// reports the outcome as fixed user-facing text. Trigger faults never
// propagate; they read as a rejection.
func (s *Service) AcceptMovie(ctx context.Context, movieID string) string {
	if s.acceptOne(ctx, movieID, media.KindMovie) {
		return MovieAcceptedText
	}
	return MovieRejectedText
}

// AcceptSeries is the series variant of AcceptMovie.
func (s *Service) AcceptSeries(ctx context.Context, serieID string) string {
	if s.acceptOne(ctx, serieID, media.KindSeries) {
		return SerieAcceptedText
	}
	return SerieRejectedText
}

func (s *Service) acceptOne(ctx context.Context, rawID string, kind media.Kind) bool {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		s.logger.Error().Err(err).Str("id", rawID).Str("kind", string(kind)).Msg("Unparseable candidate id")
		return false
	}

	var ok bool
	if kind == media.KindSeries {
		ok, err = s.trigger.AddSeries(ctx, id)
	} else {
		ok, err = s.trigger.AddMovie(ctx, id)
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("id", id).Str("kind", string(kind)).Msg("Download trigger failed")
		return false
	}

	return ok
}
