package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"topicbridge/internal/cache"
	"topicbridge/internal/gateway"
	"topicbridge/internal/search"
	"topicbridge/internal/store"
)

const (
	testGroupID = int64(-100200)
	adminID     = int64(900)
	endUserID   = int64(100)
)

// fixture assembles a full bridge over the in-memory world, store, and
// cache. The admin is a seeded group member; the end user has a profile.
type fixture struct {
	t       *testing.T
	world   *gateway.Memory
	store   *store.MemoryStore
	cache   *cache.MemoryCache
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	world := gateway.NewMemory(testGroupID)
	st := store.NewMemoryStore()
	mc := cache.NewMemoryCache()
	searchService := search.NewService(nil, st, zerolog.Nop())
	roles := gateway.NewRoles(world.Client("bot"), world.Client("operator"), nil)
	service := NewService(st, mc, searchService, roles, Options{
		GroupID:       testGroupID,
		DownloadLimit: 1024,
		ConfirmTTL:    10 * time.Second,
	}, zerolog.Nop())

	world.SeedMember(adminID)
	world.SeedProfile(gateway.Profile{ID: endUserID, FirstName: "Jo", LastName: "Doe", Username: "jodoe"})

	return &fixture{t: t, world: world, store: st, cache: mc, service: service}
}

func (f *fixture) dispatch(ev gateway.Event) {
	f.t.Helper()
	f.service.Dispatch(context.Background(), ev)
}

// userMessage is an end-user message observed by the operator leg.
func userMessage(id int64, text string) gateway.Event {
	return gateway.Event{
		Kind:     gateway.KindNewMessage,
		Leg:      gateway.LegOperator,
		Chat:     gateway.ChatPrivate,
		ChatID:   endUserID,
		SenderID: endUserID,
		Msg:      &gateway.Message{ID: id, ChatID: endUserID, SenderID: endUserID, Text: text},
	}
}

// staffMessage is a staff message inside a support topic, observed by the
// bot leg.
func staffMessage(id, topicID int64, text string) gateway.Event {
	return gateway.Event{
		Kind:     gateway.KindNewMessage,
		Leg:      gateway.LegBot,
		Chat:     gateway.ChatGroup,
		ChatID:   testGroupID,
		SenderID: adminID,
		Msg: &gateway.Message{
			ID:       id,
			ChatID:   testGroupID,
			SenderID: adminID,
			Text:     text,
			TopicID:  topicID,
		},
	}
}

// adminMessage is a message in the admin's private chat with the bot.
func adminMessage(id int64, text string) gateway.Event {
	return gateway.Event{
		Kind:     gateway.KindNewMessage,
		Leg:      gateway.LegBot,
		Chat:     gateway.ChatPrivate,
		ChatID:   adminID,
		SenderID: adminID,
		Msg:      &gateway.Message{ID: id, ChatID: adminID, SenderID: adminID, Text: text},
	}
}

func callbackEvent(chatID, messageID int64, data string) gateway.Event {
	chat := gateway.ChatPrivate
	if chatID == testGroupID {
		chat = gateway.ChatGroup
	}
	return gateway.Event{
		Kind:     gateway.KindCallback,
		Leg:      gateway.LegBot,
		Chat:     chat,
		ChatID:   chatID,
		SenderID: adminID,
		Callback: &gateway.Callback{ID: "cb", SenderID: adminID, ChatID: chatID, MessageID: messageID, Data: data},
	}
}

// startConversation runs one end-user message through the bridge and
// returns the created topic id.
func (f *fixture) startConversation(msgID int64, text string) int64 {
	f.t.Helper()
	f.dispatch(userMessage(msgID, text))
	user, err := f.store.GetUser(context.Background(), endUserID)
	if err != nil {
		f.t.Fatalf("user not registered: %v", err)
	}
	if user.TopicID == 0 {
		f.t.Fatal("no topic created")
	}
	return user.TopicID
}

// lastAnswer returns the most recent callback answer.
func (f *fixture) lastAnswer() gateway.CallbackAnswer {
	f.t.Helper()
	answers := f.world.CallbackAnswers()
	if len(answers) == 0 {
		f.t.Fatal("no callback answers recorded")
	}
	return answers[len(answers)-1]
}
