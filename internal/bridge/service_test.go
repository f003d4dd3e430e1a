package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"topicbridge/internal/cache"
	"topicbridge/internal/gateway"
	"topicbridge/internal/search"
	"topicbridge/internal/store"
)

func TestFirstUserMessageCreatesTopic(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")

	thread, err := f.world.Client("relay").QueryThread(context.Background(), testGroupID, topic)
	if err != nil {
		t.Fatalf("QueryThread failed: %v", err)
	}
	if thread.Title != "Jo Doe(@jodoe)" {
		t.Errorf("unexpected topic title %q", thread.Title)
	}

	sends := f.world.SentTo(testGroupID)
	if len(sends) != 2 {
		t.Fatalf("expected profile card and mirror, got %d sends", len(sends))
	}

	card := sends[0]
	if !strings.Contains(card.Text, "• ID: 100") {
		t.Errorf("card missing user id: %q", card.Text)
	}
	if card.Opts.ReplyTo != topic {
		t.Errorf("card not posted into the topic: reply-to %d", card.Opts.ReplyTo)
	}
	if len(card.Opts.Buttons) == 0 || card.Opts.Buttons[0][0].Data != "block:100" {
		t.Error("card missing the block button")
	}
	if f.world.Pinned(testGroupID) != card.ID {
		t.Error("profile card not pinned")
	}

	mirror := sends[1]
	if mirror.Text != "hello" || mirror.Opts.ReplyTo != topic {
		t.Errorf("bad mirror: text=%q reply-to=%d", mirror.Text, mirror.Opts.ReplyTo)
	}

	pair, err := f.store.PairByUserMessage(context.Background(), 1001)
	if err != nil {
		t.Fatalf("pair not recorded: %v", err)
	}
	if pair.GroupMessageID != mirror.ID {
		t.Errorf("pair points at %d, mirror is %d", pair.GroupMessageID, mirror.ID)
	}
}

func TestSecondMessageReusesTopic(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")
	f.dispatch(userMessage(1002, "are you there?"))

	user, err := f.store.GetUser(context.Background(), endUserID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.TopicID != topic {
		t.Errorf("topic changed from %d to %d", topic, user.TopicID)
	}
	// One card plus two mirrors, no second card.
	if sends := f.world.SentTo(testGroupID); len(sends) != 3 {
		t.Errorf("expected 3 sends, got %d", len(sends))
	}
}

func TestClosedTopicMutesUser(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")
	f.world.CloseThread(topic)

	f.dispatch(userMessage(1002, "anyone?"))
	if sends := f.world.SentTo(testGroupID); len(sends) != 2 {
		t.Errorf("closed topic should drop the message, got %d sends", len(sends))
	}

	f.world.ReopenThread(topic)
	f.dispatch(userMessage(1003, "hello again"))
	if sends := f.world.SentTo(testGroupID); len(sends) != 3 {
		t.Errorf("reopened topic should mirror again, got %d sends", len(sends))
	}
}

func TestDeletedTopicIsRecreated(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")
	f.world.DeleteThread(topic)

	f.dispatch(userMessage(1002, "i'm back"))

	user, err := f.store.GetUser(context.Background(), endUserID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.TopicID == 0 || user.TopicID == topic {
		t.Errorf("expected a fresh topic, got %d", user.TopicID)
	}
	// A fresh card was posted into the new topic.
	sends := f.world.SentTo(testGroupID)
	if len(sends) != 4 {
		t.Fatalf("expected 4 sends, got %d", len(sends))
	}
	if sends[2].Opts.ReplyTo != user.TopicID {
		t.Errorf("new card not in the new topic")
	}
}

func TestStaffReplyReachesUser(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")

	f.dispatch(staffMessage(2001, topic, "hi, how can we help?"))

	sends := f.world.SentTo(endUserID)
	if len(sends) != 1 {
		t.Fatalf("expected 1 send to the user, got %d", len(sends))
	}
	if sends[0].Role != "operator" {
		t.Errorf("user-facing copy sent by %q, want operator", sends[0].Role)
	}
	if sends[0].Text != "hi, how can we help?" {
		t.Errorf("unexpected text %q", sends[0].Text)
	}
	if sends[0].Opts.ReplyTo != 0 {
		t.Errorf("reply to the thread root should not carry a reply target, got %d", sends[0].Opts.ReplyTo)
	}

	pair, err := f.store.PairByGroupMessage(context.Background(), 2001)
	if err != nil {
		t.Fatalf("pair not recorded: %v", err)
	}
	if pair.UserMessageID != sends[0].ID {
		t.Errorf("pair points at %d, copy is %d", pair.UserMessageID, sends[0].ID)
	}
}

func TestReplyLinkageBothWays(t *testing.T) {
	f := newFixture(t)
	topic := f.startConversation(1001, "hello")
	mirrorID := f.world.SentTo(testGroupID)[1].ID

	// Staff reply to the mirrored message maps to the user's original.
	ev := staffMessage(2001, topic, "answering that")
	ev.Msg.ReplyToID = mirrorID
	f.dispatch(ev)

	userSends := f.world.SentTo(endUserID)
	if len(userSends) != 1 {
		t.Fatalf("expected 1 send to the user, got %d", len(userSends))
	}
	if userSends[0].Opts.ReplyTo != 1001 {
		t.Errorf("expected reply to the user's message 1001, got %d", userSends[0].Opts.ReplyTo)
	}

	// User reply to the staff copy maps back to the staff original.
	reply := userMessage(1002, "thanks!")
	reply.Msg.ReplyToID = userSends[0].ID
	f.dispatch(reply)

	groupSends := f.world.SentTo(testGroupID)
	last := groupSends[len(groupSends)-1]
	if last.Opts.ReplyTo != 2001 {
		t.Errorf("expected reply to the staff message 2001, got %d", last.Opts.ReplyTo)
	}
}

func TestUnlinkedTopicWarns(t *testing.T) {
	f := newFixture(t)
	f.dispatch(staffMessage(2001, 777, "hello?"))

	sends := f.world.SentTo(testGroupID)
	if len(sends) != 1 {
		t.Fatalf("expected 1 warning send, got %d", len(sends))
	}
	if sends[0].Text != textInvalidTopic {
		t.Errorf("unexpected warning %q", sends[0].Text)
	}
	if sends[0].Opts.ReplyTo != 777 {
		t.Errorf("warning not posted into topic 777")
	}
}

func TestGeneralGroupChatterIgnored(t *testing.T) {
	f := newFixture(t)
	f.dispatch(staffMessage(2001, 0, "lunch?"))
	if sends := f.world.Sent(); len(sends) != 0 {
		t.Errorf("expected no sends, got %d", len(sends))
	}
}

func TestNonAdminPrivateChatIsSilent(t *testing.T) {
	f := newFixture(t)
	ev := gateway.Event{
		Kind:     gateway.KindNewMessage,
		Leg:      gateway.LegBot,
		Chat:     gateway.ChatPrivate,
		ChatID:   333,
		SenderID: 333,
		Msg:      &gateway.Message{ID: 1, ChatID: 333, SenderID: 333, Text: "/start"},
	}
	f.dispatch(ev)
	if sends := f.world.Sent(); len(sends) != 0 {
		t.Errorf("expected silence for a non-admin, got %d sends", len(sends))
	}
}

func TestSuperAdminBypassesMembership(t *testing.T) {
	world := gateway.NewMemory(testGroupID)
	st := store.NewMemoryStore()
	roles := gateway.NewRoles(world.Client("bot"), world.Client("operator"), nil)
	service := NewService(st, cache.NewMemoryCache(), search.NewService(nil, st, zerolog.Nop()), roles, Options{
		GroupID:       testGroupID,
		SuperAdminIDs: []int64{333},
		DownloadLimit: 1024,
		ConfirmTTL:    10 * time.Second,
	}, zerolog.Nop())

	// 333 is not a group member but is on the allow list.
	service.Dispatch(context.Background(), gateway.Event{
		Kind:     gateway.KindNewMessage,
		Leg:      gateway.LegBot,
		Chat:     gateway.ChatPrivate,
		ChatID:   333,
		SenderID: 333,
		Msg:      &gateway.Message{ID: 1, ChatID: 333, SenderID: 333, Text: "/start"},
	})

	sends := world.SentTo(333)
	if len(sends) != 1 || sends[0].Text != textWelcome {
		t.Fatalf("expected the welcome menu, got %+v", sends)
	}
}

func TestAttachmentWithinBudgetMirrored(t *testing.T) {
	f := newFixture(t)
	f.startConversation(1001, "hello")
	f.world.SeedFile("photo-1", []byte("jpeg bytes"))

	ev := userMessage(1002, "look at this")
	ev.Msg.Attachment = &gateway.Attachment{Kind: "photo", Size: 512, Ref: "photo-1"}
	f.dispatch(ev)

	sends := f.world.SentTo(testGroupID)
	last := sends[len(sends)-1]
	if last.Opts.File == nil {
		t.Fatal("expected the attachment to be re-sent")
	}
	if last.Opts.File.Name != "photo-1" || string(last.Opts.File.Data) != "jpeg bytes" {
		t.Errorf("unexpected upload %+v", last.Opts.File)
	}
}

func TestOversizedAttachmentDegrades(t *testing.T) {
	f := newFixture(t)
	f.startConversation(1001, "hello")

	ev := userMessage(1002, "huge file")
	ev.Msg.Attachment = &gateway.Attachment{Kind: "document", Size: 1 << 20, Ref: "big-1"}
	f.dispatch(ev)

	sends := f.world.SentTo(testGroupID)
	last := sends[len(sends)-1]
	if last.Opts.File != nil {
		t.Error("oversized attachment should mirror as text only")
	}
	if last.Text != "huge file" {
		t.Errorf("text lost: %q", last.Text)
	}
	// The message itself still made it across.
	if _, err := f.store.PairByUserMessage(context.Background(), 1002); err != nil {
		t.Errorf("pair missing: %v", err)
	}
}

func TestProfileCardCarriesPhoto(t *testing.T) {
	f := newFixture(t)
	f.world.SeedProfilePhoto(endUserID, gateway.Attachment{Kind: "photo", Size: 128, Ref: "avatar-100"}, []byte("png"))

	f.startConversation(1001, "hello")

	card := f.world.SentTo(testGroupID)[0]
	if card.Opts.File == nil || card.Opts.File.Name != "avatar-100" {
		t.Errorf("expected the avatar on the card, got %+v", card.Opts.File)
	}
}

func TestStoreErrorAbandonsEvent(t *testing.T) {
	f := newFixture(t)
	f.startConversation(1001, "hello")

	// A send failure on the mirror must not leave a pair behind.
	f.world.SendHook = func(role string, chatID int64, text string) error {
		if chatID == testGroupID {
			return errors.New("flood wait")
		}
		return nil
	}
	f.dispatch(userMessage(1002, "dropped"))
	f.world.SendHook = nil

	if _, err := f.store.PairByUserMessage(context.Background(), 1002); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no pair for the failed mirror, got %v", err)
	}

	// The bridge keeps serving afterwards.
	f.dispatch(userMessage(1003, "still here"))
	if _, err := f.store.PairByUserMessage(context.Background(), 1003); err != nil {
		t.Errorf("bridge did not recover: %v", err)
	}
}
