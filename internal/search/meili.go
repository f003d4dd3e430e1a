package search

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
)

const idxNotes = "bridge_notes"

// NoteRecord is the indexed shape of a note.
type NoteRecord struct {
	ID       int64  `json:"id"`
	Message  string `json:"message"`
	LastUsed int64  `json:"lastUsed"`
}

// Meili indexes and searches notes via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     zerolog.Logger

	mu        sync.Mutex
	onRecover func()
}

// NewMeili creates a Meilisearch client and configures the notes index.
// The returned client keeps probing an unreachable server in the
// background; callers fall back to SQL while it is unhealthy.
func NewMeili(url, apiKey string, log zerolog.Logger) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		log:    log,
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxNotes,
		PrimaryKey: "id",
	}); err != nil {
		m.log.Debug().Err(err).Msg("create notes index (may already exist)")
	}

	index := m.client.Index(idxNotes)
	searchable := []string{"message"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.log.Warn().Err(err).Msg("update searchable attrs")
	}
	sortable := []string{"lastUsed"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.log.Warn().Err(err).Msg("update sortable attrs")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info().Msg("meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.mu.Lock()
				hook := m.onRecover
				m.mu.Unlock()
				if hook != nil {
					hook()
				}
			}
		}
	}
}

// SetRecoverHook registers a callback run after the index is reconfigured
// on an unhealthy-to-healthy transition. A recovered server may have lost
// its index; the hook repopulates it.
func (m *Meili) SetRecoverHook(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns matching notes, most recently used first.
func (m *Meili) Search(query string, limit, offset int) ([]NoteRecord, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 10
	}

	resp, err := m.client.Index(idxNotes).Search(query, &meili.SearchRequest{
		Limit:  int64(limit),
		Offset: int64(offset),
		Sort:   []string{"lastUsed:desc"},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]NoteRecord, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToNote(hit))
	}
	return results, nil
}

// IndexNote adds or replaces a note in the index.
func (m *Meili) IndexNote(record NoteRecord) error {
	_, err := m.client.Index(idxNotes).AddDocuments([]NoteRecord{record}, nil)
	return err
}

// IndexNotes adds or replaces notes in bulk.
func (m *Meili) IndexNotes(records []NoteRecord) error {
	_, err := m.client.Index(idxNotes).AddDocuments(records, nil)
	return err
}

// DeleteNote removes a note from the index.
func (m *Meili) DeleteNote(id int64) error {
	_, err := m.client.Index(idxNotes).DeleteDocument(strconv.FormatInt(id, 10), nil)
	return err
}

func hitToNote(hit meili.Hit) NoteRecord {
	var record NoteRecord
	if raw, ok := hit["id"]; ok {
		_ = json.Unmarshal(raw, &record.ID)
	}
	if raw, ok := hit["message"]; ok {
		_ = json.Unmarshal(raw, &record.Message)
	}
	if raw, ok := hit["lastUsed"]; ok {
		_ = json.Unmarshal(raw, &record.LastUsed)
	}
	return record
}
