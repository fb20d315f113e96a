package picker

import (
	"context"

	"github.com/reelbot/reelbot/internal/media"
)

// Searcher is the metadata-search collaborator.
type Searcher interface {
	SearchMovies(ctx context.Context, query string) ([]media.RawRecord, error)
	SearchSeries(ctx context.Context, query string) ([]media.RawRecord, error)
	GetMovie(ctx context.Context, id int64) (*media.RawRecord, error)
}

// Trigger is the download-trigger collaborator.
type Trigger interface {
	AddMovie(ctx context.Context, tmdbID int64) (bool, error)
	AddSeries(ctx context.Context, tmdbID int64) (bool, error)
}

// SessionStore holds the ordered, consumable candidate list per chat.
type SessionStore interface {
	Clear(ctx context.Context, chatID int64)
	Write(ctx context.Context, chatID int64, candidates []media.Candidate) (string, error)
	ReadAndEvict(ctx context.Context, chatID int64, idx int) *media.Candidate
}
