package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/media"
)

// Store persists the ordered candidate list of one active search per chat.
// Keys are dense integer indices starting at 0; a successful read evicts the
// index, so the same index is never read twice.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a session store on top of an open database.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Clear drops the chat's session. Idempotent; faults are logged, never
// surfaced, so a failed clear cannot abort the search that requested it.
func (s *Store) Clear(ctx context.Context, chatID int64) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		s.logger.Error().Err(err).Int64("chatID", chatID).Msg("Failed to clear session")
	}
}

// Write replaces the chat's session with the given candidates at dense
// indices 0..n-1, in a single transaction. A concurrent reader observes
// either the previous session or the complete new one, never a partial
// write. Returns the search ID stamped on the rows.
func (s *Store) Write(ctx context.Context, chatID int64, candidates []media.Candidate) (string, error) {
	searchID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin session write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID); err != nil {
		return "", fmt.Errorf("failed to clear previous session: %w", err)
	}

	for idx, candidate := range candidates {
		payload, err := json.Marshal(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to serialize candidate %d: %w", idx, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sessions (chat_id, idx, search_id, payload) VALUES (?, ?, ?, ?)`,
			chatID, idx, searchID, string(payload))
		if err != nil {
			return "", fmt.Errorf("failed to write candidate %d: %w", idx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit session write: %w", err)
	}

	s.logger.Debug().
		Int64("chatID", chatID).
		Str("searchID", searchID).
		Int("candidates", len(candidates)).
		Msg("Session written")

	return searchID, nil
}

// ReadAndEvict returns the candidate at idx and deletes it, atomically. A
// missing index, a decode failure, or any I/O fault yields nil; the fault is
// logged here and the caller treats nil uniformly as "nothing at this index".
// A row that fails to decode is still evicted so it cannot poison the session.
func (s *Store) ReadAndEvict(ctx context.Context, chatID int64, idx int) *media.Candidate {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Int64("chatID", chatID).Int("idx", idx).Msg("Failed to begin session read")
		return nil
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE chat_id = ? AND idx = ?`, chatID, idx).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error().Err(err).Int64("chatID", chatID).Int("idx", idx).Msg("Failed to read session entry")
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE chat_id = ? AND idx = ?`, chatID, idx); err != nil {
		s.logger.Error().Err(err).Int64("chatID", chatID).Int("idx", idx).Msg("Failed to evict session entry")
		return nil
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Int64("chatID", chatID).Int("idx", idx).Msg("Failed to commit session read")
		return nil
	}

	var candidate media.Candidate
	if err := json.Unmarshal([]byte(payload), &candidate); err != nil {
		s.logger.Error().Err(err).Int64("chatID", chatID).Int("idx", idx).Msg("Failed to decode session entry")
		return nil
	}

	return &candidate
}

// PruneStale deletes sessions older than the given age. Abandoned searches
// are never drained by reads, so without pruning they accumulate forever.
func (s *Store) PruneStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale sessions: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if pruned > 0 {
		s.logger.Info().Int64("pruned", pruned).Msg("Pruned stale session entries")
	}

	return pruned, nil
}

// Count returns the number of pending candidates across all chats.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}
