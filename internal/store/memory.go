package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store adapter. It backs tests and the
// loopback gateway mode; it honors the same uniqueness invariants as the
// Postgres schema.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User // by platform user id
	notes  map[int64]*Note
	pairs  map[int64]*Pair

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[int64]*User),
		notes: make(map[int64]*Note),
		pairs: make(map[int64]*Pair),
		now:   time.Now,
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) EnsureUser(ctx context.Context, userID int64) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[userID]; ok {
		return *user, false, nil
	}
	user := &User{ID: s.id(), UserID: userID, RegistrationDate: s.now()}
	s.users[userID] = user
	return *user, true, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return *user, nil
}

func (s *MemoryStore) GetUserByTopic(ctx context.Context, topicID int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.TopicID == topicID && topicID != 0 {
			return *user, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) SetUserTopic(ctx context.Context, userID, topicID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.TopicID = topicID
	return nil
}

func (s *MemoryStore) CreateNote(ctx context.Context, message string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note := &Note{ID: s.id(), Message: message, LastUsedDate: s.now()}
	s.notes[note.ID] = note
	return *note, nil
}

func (s *MemoryStore) GetNote(ctx context.Context, id int64) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	return *note, nil
}

func (s *MemoryStore) DeleteNote(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) TouchNote(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if note, ok := s.notes[id]; ok {
		note.LastUsedDate = s.now()
	}
	return nil
}

func (s *MemoryStore) SearchNotes(ctx context.Context, query string, limit, offset int) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	needle := strings.ToLower(query)
	matched := make([]Note, 0)
	for _, note := range s.notes {
		if needle == "" || strings.Contains(strings.ToLower(note.Message), needle) {
			matched = append(matched, *note)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastUsedDate.Equal(matched[j].LastUsedDate) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].LastUsedDate.After(matched[j].LastUsedDate)
	})
	if offset >= len(matched) {
		return []Note{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) ListNotes(ctx context.Context) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Note, 0, len(s.notes))
	for _, note := range s.notes {
		items = append(items, *note)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) CreatePair(ctx context.Context, pair Pair) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.pairs {
		if existing.GroupMessageID == pair.GroupMessageID {
			return Pair{}, ErrConflict
		}
		if existing.UserID == pair.UserID && existing.UserMessageID == pair.UserMessageID {
			return Pair{}, ErrConflict
		}
	}
	pair.ID = s.id()
	copied := pair
	s.pairs[pair.ID] = &copied
	return pair, nil
}

func (s *MemoryStore) PairByUserMessage(ctx context.Context, userMessageID int64) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range s.pairs {
		if pair.UserMessageID == userMessageID {
			return *pair, nil
		}
	}
	return Pair{}, ErrNotFound
}

func (s *MemoryStore) PairByGroupMessage(ctx context.Context, groupMessageID int64) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range s.pairs {
		if pair.GroupMessageID == groupMessageID {
			return *pair, nil
		}
	}
	return Pair{}, ErrNotFound
}

func (s *MemoryStore) DeletePair(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairs, id)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
