package gateway

import (
	"context"
	"sync"
)

// Memory is an in-process platform: one shared world observed through any
// number of role clients. It backs the bridge tests and the "memory"
// loopback gateway mode. State mutators without a Client counterpart
// (CloseThread, SeedProfile, ...) exist for tests to arrange scenarios.
type Memory struct {
	mu       sync.Mutex
	groupID  int64
	nextID   int64
	chats    map[int64]map[int64]*memMessage
	sent     []SentRecord
	threads  map[int64]*Thread
	members  map[int64]bool
	profiles map[int64]Profile
	photos   map[int64]*Attachment
	files    map[string][]byte
	blocked  map[int64]bool
	pinned   map[int64]int64
	wiped    []int64
	purged   []int64

	inlineAnswers   []InlineAnswer
	callbackAnswers []CallbackAnswer

	events chan Event

	// Optional failure hooks for tests.
	SendHook func(role string, chatID int64, text string) error
	EditHook func(role string, chatID, messageID int64) error
}

type memMessage struct {
	msg  Message
	role string
	opts SendOptions
}

// SentRecord is one observed send, in order.
type SentRecord struct {
	Role   string
	ChatID int64
	ID     int64
	Text   string
	Opts   SendOptions
}

// InlineAnswer is one recorded inline-query answer.
type InlineAnswer struct {
	QueryID    string
	Results    []InlineResult
	NextOffset string
}

// CallbackAnswer is one recorded callback-query answer.
type CallbackAnswer struct {
	CallbackID string
	Text       string
	Alert      bool
}

func NewMemory(groupID int64) *Memory {
	return &Memory{
		groupID:  groupID,
		chats:    make(map[int64]map[int64]*memMessage),
		threads:  make(map[int64]*Thread),
		members:  make(map[int64]bool),
		profiles: make(map[int64]Profile),
		photos:   make(map[int64]*Attachment),
		files:    make(map[string][]byte),
		blocked:  make(map[int64]bool),
		pinned:   make(map[int64]int64),
		events:   make(chan Event, 64),
	}
}

// Client returns a role-scoped view of the world.
func (m *Memory) Client(role string) Client {
	return &memoryClient{world: m, role: role}
}

// Events implements Source.
func (m *Memory) Events() <-chan Event { return m.events }

// Close implements Source.
func (m *Memory) Close() error {
	close(m.events)
	return nil
}

// Emit injects an inbound event, as the platform dispatch would.
func (m *Memory) Emit(ev Event) {
	m.events <- ev
}

func (m *Memory) chat(chatID int64) map[int64]*memMessage {
	if m.chats[chatID] == nil {
		m.chats[chatID] = make(map[int64]*memMessage)
	}
	return m.chats[chatID]
}

// SeedProfile registers a user profile.
func (m *Memory) SeedProfile(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// SeedMember marks a user as a support-group member.
func (m *Memory) SeedMember(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[userID] = true
}

// SeedFile registers downloadable content under a file reference.
func (m *Memory) SeedFile(ref string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[ref] = data
}

// SeedProfilePhoto registers a user's profile photo.
func (m *Memory) SeedProfilePhoto(userID int64, att Attachment, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := att
	m.photos[userID] = &copied
	m.files[att.Ref] = data
}

// CloseThread marks a thread closed.
func (m *Memory) CloseThread(threadID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[threadID]; ok {
		t.Closed = true
	}
}

// ReopenThread clears a thread's closed flag.
func (m *Memory) ReopenThread(threadID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[threadID]; ok {
		t.Closed = false
	}
}

// DeleteThread removes a thread, as a staff deletion would.
func (m *Memory) DeleteThread(threadID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
}

// Sent returns every recorded send in order.
func (m *Memory) Sent() []SentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentRecord, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the sends into one chat, in order.
func (m *Memory) SentTo(chatID int64) []SentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentRecord
	for _, r := range m.sent {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out
}

// MessageText returns the current text of a stored message.
func (m *Memory) MessageText(chatID, messageID int64) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return "", false
	}
	return stored.msg.Text, true
}

// MessageButtons returns the inline buttons currently attached to a stored message.
func (m *Memory) MessageButtons(chatID, messageID int64) [][]Button {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return nil
	}
	return stored.opts.Buttons
}

// Reactions returns the current reaction set of a stored message.
func (m *Memory) Reactions(chatID, messageID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return nil
	}
	out := make([]string, len(stored.msg.Reactions))
	copy(out, stored.msg.Reactions)
	return out
}

// HasMessage reports whether a message still exists.
func (m *Memory) HasMessage(chatID, messageID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chat(chatID)[messageID]
	return ok
}

// Pinned returns the pinned message id in a chat, 0 when none.
func (m *Memory) Pinned(chatID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pinned[chatID]
}

// IsBlocked reports whether a user has been blocked.
func (m *Memory) IsBlocked(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocked[userID]
}

// WipedPeers returns the peers whose history was wiped, in order.
func (m *Memory) WipedPeers() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.wiped))
	copy(out, m.wiped)
	return out
}

// PurgedThreads returns the purged thread ids, in order.
func (m *Memory) PurgedThreads() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, len(m.purged))
	copy(out, m.purged)
	return out
}

// InlineAnswers returns the recorded inline answers, in order.
func (m *Memory) InlineAnswers() []InlineAnswer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InlineAnswer, len(m.inlineAnswers))
	copy(out, m.inlineAnswers)
	return out
}

// CallbackAnswers returns the recorded callback answers, in order.
func (m *Memory) CallbackAnswers() []CallbackAnswer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallbackAnswer, len(m.callbackAnswers))
	copy(out, m.callbackAnswers)
	return out
}

type memoryClient struct {
	world *Memory
	role  string
}

func (c *memoryClient) Send(ctx context.Context, chatID int64, text string, opts SendOptions) (int64, error) {
	m := c.world
	if m.SendHook != nil {
		if err := m.SendHook(c.role, chatID, text); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.chat(chatID)[id] = &memMessage{
		msg: Message{
			ID:        id,
			ChatID:    chatID,
			Text:      text,
			ReplyToID: opts.ReplyTo,
		},
		role: c.role,
		opts: opts,
	}
	m.sent = append(m.sent, SentRecord{Role: c.role, ChatID: chatID, ID: id, Text: text, Opts: opts})
	return id, nil
}

func (c *memoryClient) Edit(ctx context.Context, chatID, messageID int64, text string) error {
	m := c.world
	if m.EditHook != nil {
		if err := m.EditHook(c.role, chatID, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return ErrNotFound
	}
	if stored.msg.Text == text {
		return ErrNotModified
	}
	stored.msg.Text = text
	return nil
}

func (c *memoryClient) EditCard(ctx context.Context, chatID, messageID int64, text string, buttons [][]Button) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return ErrNotFound
	}
	stored.msg.Text = text
	stored.opts.Buttons = buttons
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, chatID int64, messageIDs ...int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range messageIDs {
		delete(m.chat(chatID), id)
	}
	return nil
}

func (c *memoryClient) GetMessage(ctx context.Context, chatID, messageID int64) (Message, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return Message{}, ErrNotFound
	}
	return stored.msg, nil
}

func (c *memoryClient) React(ctx context.Context, chatID, messageID int64, reactions []string) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.chat(chatID)[messageID]
	if !ok {
		return ErrNotFound
	}
	stored.msg.Reactions = append([]string(nil), reactions...)
	return nil
}

func (c *memoryClient) Pin(ctx context.Context, chatID, messageID int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chat(chatID)[messageID]; !ok {
		return ErrNotFound
	}
	m.pinned[chatID] = messageID
	return nil
}

func (c *memoryClient) CreateThread(ctx context.Context, groupID int64, title string) (int64, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.threads[id] = &Thread{ID: id, Title: title}
	return id, nil
}

func (c *memoryClient) QueryThread(ctx context.Context, groupID, threadID int64) (Thread, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[threadID]
	if !ok {
		return Thread{}, ErrNotFound
	}
	return *t, nil
}

func (c *memoryClient) PurgeThread(ctx context.Context, groupID, threadID int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, stored := range m.chat(groupID) {
		if stored.opts.ReplyTo == threadID || id == threadID {
			delete(m.chat(groupID), id)
		}
	}
	m.purged = append(m.purged, threadID)
	return nil
}

func (c *memoryClient) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[userID], nil
}

func (c *memoryClient) Profile(ctx context.Context, userID int64) (Profile, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (c *memoryClient) ProfilePhoto(ctx context.Context, userID int64) (*Attachment, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	att, ok := m.photos[userID]
	if !ok {
		return nil, nil
	}
	copied := *att
	return &copied, nil
}

func (c *memoryClient) Download(ctx context.Context, att Attachment) ([]byte, error) {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[att.Ref]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *memoryClient) Block(ctx context.Context, userID int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocked[userID] = true
	return nil
}

func (c *memoryClient) Unblock(ctx context.Context, userID int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocked, userID)
	return nil
}

func (c *memoryClient) WipeHistory(ctx context.Context, peerID int64) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[peerID] = make(map[int64]*memMessage)
	m.wiped = append(m.wiped, peerID)
	return nil
}

func (c *memoryClient) AnswerInline(ctx context.Context, queryID string, results []InlineResult, nextOffset string) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inlineAnswers = append(m.inlineAnswers, InlineAnswer{QueryID: queryID, Results: results, NextOffset: nextOffset})
	return nil
}

func (c *memoryClient) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	m := c.world
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbackAnswers = append(m.callbackAnswers, CallbackAnswer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}
