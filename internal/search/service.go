// Package search provides note search: Meilisearch when configured and
// healthy, SQL substring matching otherwise.
package search

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"topicbridge/internal/store"
)

// Fallback is the store-backed side of the service: substring search when
// Meilisearch is absent or down, and the source of truth for reindexing.
type Fallback interface {
	SearchNotes(ctx context.Context, query string, limit, offset int) ([]store.Note, error)
	ListNotes(ctx context.Context) ([]store.Note, error)
}

// Service is the facade that tries Meilisearch first and falls back to SQL.
type Service struct {
	meili    *Meili
	fallback Fallback
	log      zerolog.Logger
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Fallback, log zerolog.Logger) *Service {
	s := &Service{meili: meili, fallback: fallback, log: log}
	if meili != nil {
		meili.SetRecoverHook(func() { s.Reindex(context.Background()) })
	}
	return s
}

// Reindex pushes every stored note into Meilisearch. Called at startup and
// whenever Meilisearch comes back after an outage; the index may be empty
// then while the notes still sit in the database.
func (s *Service) Reindex(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	notes, err := s.fallback.ListNotes(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("reindex: list notes")
		return
	}
	if len(notes) == 0 {
		return
	}
	records := make([]NoteRecord, 0, len(notes))
	for _, note := range notes {
		records = append(records, NoteRecord{
			ID:       note.ID,
			Message:  note.Message,
			LastUsed: note.LastUsedDate.Unix(),
		})
	}
	if err := s.meili.IndexNotes(records); err != nil {
		s.log.Warn().Err(err).Int("count", len(records)).Msg("reindex notes")
		return
	}
	s.log.Info().Int("count", len(records)).Msg("reindexed notes")
}

// Search returns matching notes ordered by most recent use.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]store.Note, error) {
	if s.meili != nil && s.meili.Healthy() {
		records, err := s.meili.Search(query, limit, offset)
		if err == nil {
			notes := make([]store.Note, 0, len(records))
			for _, r := range records {
				notes = append(notes, store.Note{
					ID:           r.ID,
					Message:      r.Message,
					LastUsedDate: time.Unix(r.LastUsed, 0),
				})
			}
			return notes, nil
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to sql")
	}
	return s.fallback.SearchNotes(ctx, query, limit, offset)
}

// IndexNote indexes a note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(note store.Note) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		record := NoteRecord{ID: note.ID, Message: note.Message, LastUsed: note.LastUsedDate.Unix()}
		if err := s.meili.IndexNote(record); err != nil {
			s.log.Warn().Err(err).Int64("note_id", note.ID).Msg("index note")
		}
	}()
}

// RemoveNote removes a note from the index (fire-and-forget).
func (s *Service) RemoveNote(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			s.log.Warn().Err(err).Int64("note_id", id).Msg("remove note from index")
		}
	}()
}
