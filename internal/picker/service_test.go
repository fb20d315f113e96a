package picker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/media"
)

// fakeStore is an in-memory SessionStore with the same consume-once
// semantics as the real one.
type fakeStore struct {
	sessions map[int64]map[int]media.Candidate
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[int64]map[int]media.Candidate)}
}

func (f *fakeStore) Clear(ctx context.Context, chatID int64) {
	delete(f.sessions, chatID)
}

func (f *fakeStore) Write(ctx context.Context, chatID int64, candidates []media.Candidate) (string, error) {
	entries := make(map[int]media.Candidate, len(candidates))
	for idx, c := range candidates {
		entries[idx] = c
	}
	f.sessions[chatID] = entries
	f.writes++
	return "test-search", nil
}

func (f *fakeStore) ReadAndEvict(ctx context.Context, chatID int64, idx int) *media.Candidate {
	entries, ok := f.sessions[chatID]
	if !ok {
		return nil
	}
	c, ok := entries[idx]
	if !ok {
		return nil
	}
	delete(entries, idx)
	return &c
}

// faultyStore accepts writes but loses every read, like a store whose
// backing file failed between the write and the first read.
type faultyStore struct{}

func (faultyStore) Clear(ctx context.Context, chatID int64) {}

func (faultyStore) Write(ctx context.Context, chatID int64, candidates []media.Candidate) (string, error) {
	return "test-search", nil
}

func (faultyStore) ReadAndEvict(ctx context.Context, chatID int64, idx int) *media.Candidate {
	return nil
}

type fakeSearcher struct {
	movies []media.RawRecord
	series []media.RawRecord
	detail *media.RawRecord
	err    error
}

func (f *fakeSearcher) SearchMovies(ctx context.Context, query string) ([]media.RawRecord, error) {
	return f.movies, f.err
}

func (f *fakeSearcher) SearchSeries(ctx context.Context, query string) ([]media.RawRecord, error) {
	return f.series, f.err
}

func (f *fakeSearcher) GetMovie(ctx context.Context, id int64) (*media.RawRecord, error) {
	return f.detail, f.err
}

type fakeTrigger struct {
	ok     bool
	err    error
	calls  int
	lastID int64
}

func (f *fakeTrigger) AddMovie(ctx context.Context, tmdbID int64) (bool, error) {
	f.calls++
	f.lastID = tmdbID
	return f.ok, f.err
}

func (f *fakeTrigger) AddSeries(ctx context.Context, tmdbID int64) (bool, error) {
	f.calls++
	f.lastID = tmdbID
	return f.ok, f.err
}

func matrixRecords() []media.RawRecord {
	return []media.RawRecord{
		{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30"},
		{ID: 604, Title: "The Matrix Reloaded", ReleaseDate: "2003-05-15"},
		{ID: 605, Title: "The Matrix Revolutions", ReleaseDate: "2003-11-05"},
	}
}

func newTestService(store SessionStore, searcher Searcher, trigger Trigger) *Service {
	return NewService(store, searcher, trigger, zerolog.Nop())
}

func TestStartSearch_ConsumesIndexZero(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSearcher{movies: matrixRecords()}, &fakeTrigger{})

	page, err := svc.StartSearch(context.Background(), 100, "The Matrix", media.KindMovie)
	if err != nil {
		t.Fatalf("StartSearch() unexpected error: %v", err)
	}

	if page.Candidate.Title != "The Matrix" {
		t.Errorf("first candidate = %q, want %q", page.Candidate.Title, "The Matrix")
	}
	if page.NextIdx != 1 {
		t.Errorf("NextIdx = %d, want 1", page.NextIdx)
	}
	// index 0 was evicted by the initial display step
	if got := store.ReadAndEvict(context.Background(), 100, 0); got != nil {
		t.Errorf("index 0 still present after initial display: %+v", got)
	}
}

// Verifies the paging index bookkeeping end to end: the Next button rendered
// with the first candidate carries idx=1, and pressing it consumes exactly
// the entity originally written at index 1.
func TestAdvance_OffByOneConvention(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSearcher{movies: matrixRecords()}, &fakeTrigger{})
	ctx := context.Background()

	page, err := svc.StartSearch(ctx, 100, "The Matrix", media.KindMovie)
	if err != nil {
		t.Fatalf("StartSearch() unexpected error: %v", err)
	}

	next := svc.Advance(ctx, 100, page.NextIdx)
	if next == nil {
		t.Fatal("Advance() = nil, want second candidate")
	}
	if next.Candidate.Title != "The Matrix Reloaded" {
		t.Errorf("second candidate = %q, want %q", next.Candidate.Title, "The Matrix Reloaded")
	}
	if next.NextIdx != 2 {
		t.Errorf("NextIdx = %d, want 2", next.NextIdx)
	}

	// the consumed index is gone for good
	if svc.Advance(ctx, 100, page.NextIdx) != nil {
		t.Error("re-advancing the same index returned a candidate")
	}
}

func TestAdvance_Exhausted(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSearcher{movies: matrixRecords()[:1]}, &fakeTrigger{})
	ctx := context.Background()

	page, err := svc.StartSearch(ctx, 100, "The Matrix", media.KindMovie)
	if err != nil {
		t.Fatalf("StartSearch() unexpected error: %v", err)
	}

	if got := svc.Advance(ctx, 100, page.NextIdx); got != nil {
		t.Errorf("Advance() past the end = %+v, want nil", got)
	}
}

func TestStartSearch_StoreReadFault(t *testing.T) {
	svc := newTestService(faultyStore{}, &fakeSearcher{movies: matrixRecords()}, &fakeTrigger{})

	page, err := svc.StartSearch(context.Background(), 100, "The Matrix", media.KindMovie)
	if err == nil {
		t.Fatal("StartSearch() returned no error when the store lost the first candidate")
	}
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
}

func TestStartSearch_NoResults(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSearcher{}, &fakeTrigger{})

	_, err := svc.StartSearch(context.Background(), 100, "zzzzz", media.KindMovie)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("StartSearch() error = %v, want ErrNoResults", err)
	}
}

func TestStartSearch_AllRecordsInvalid(t *testing.T) {
	searcher := &fakeSearcher{movies: []media.RawRecord{{Title: "No Year"}}}
	svc := newTestService(newFakeStore(), searcher, &fakeTrigger{})

	_, err := svc.StartSearch(context.Background(), 100, "no year", media.KindMovie)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("StartSearch() error = %v, want ErrNoResults", err)
	}
}

func TestStartSearch_ClearsPreviousSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeSearcher{movies: matrixRecords()}, &fakeTrigger{})
	ctx := context.Background()

	if _, err := svc.StartSearch(ctx, 100, "The Matrix", media.KindMovie); err != nil {
		t.Fatalf("StartSearch() unexpected error: %v", err)
	}
	if _, err := svc.StartSearch(ctx, 100, "The Matrix", media.KindMovie); err != nil {
		t.Fatalf("StartSearch() unexpected error: %v", err)
	}

	if store.writes != 2 {
		t.Errorf("writes = %d, want 2", store.writes)
	}
	// only the new session's remaining entries exist
	if len(store.sessions[100]) != 2 {
		t.Errorf("remaining entries = %d, want 2", len(store.sessions[100]))
	}
}

func TestAcceptMovie_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		trigger *fakeTrigger
		want    string
	}{
		{"accepted", &fakeTrigger{ok: true}, MovieAcceptedText},
		{"rejected", &fakeTrigger{ok: false}, MovieRejectedText},
		{"trigger error", &fakeTrigger{err: errors.New("connection refused")}, MovieRejectedText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newFakeStore(), &fakeSearcher{}, tt.trigger)
			if got := svc.AcceptMovie(context.Background(), "603"); got != tt.want {
				t.Errorf("AcceptMovie() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAcceptSeries_Outcomes(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeSearcher{}, &fakeTrigger{ok: true})
	if got := svc.AcceptSeries(context.Background(), "1438"); got != SerieAcceptedText {
		t.Errorf("AcceptSeries() = %q, want %q", got, SerieAcceptedText)
	}

	svc = newTestService(newFakeStore(), &fakeSearcher{}, &fakeTrigger{err: errors.New("boom")})
	if got := svc.AcceptSeries(context.Background(), "1438"); got != SerieRejectedText {
		t.Errorf("AcceptSeries() = %q, want %q", got, SerieRejectedText)
	}
}

func TestAccept_UnparseableID(t *testing.T) {
	trigger := &fakeTrigger{ok: true}
	svc := newTestService(newFakeStore(), &fakeSearcher{}, trigger)

	if got := svc.AcceptMovie(context.Background(), "not-a-number"); got != MovieRejectedText {
		t.Errorf("AcceptMovie() = %q, want %q", got, MovieRejectedText)
	}
	if trigger.calls != 0 {
		t.Errorf("trigger called %d times for an unparseable id", trigger.calls)
	}
}
