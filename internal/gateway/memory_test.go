package gateway

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryEditSemantics(t *testing.T) {
	world := NewMemory(-1)
	client := world.Client("bot")
	ctx := context.Background()

	id, err := client.Send(ctx, 10, "hello", SendOptions{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := client.Edit(ctx, 10, id, "hello!"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if text, _ := world.MessageText(10, id); text != "hello!" {
		t.Errorf("unexpected text %q", text)
	}

	// Editing to identical content reports not-modified.
	if err := client.Edit(ctx, 10, id, "hello!"); !errors.Is(err, ErrNotModified) {
		t.Errorf("expected ErrNotModified, got %v", err)
	}
	// Editing a missing message reports not-found.
	if err := client.Edit(ctx, 10, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryThreadLifecycle(t *testing.T) {
	world := NewMemory(-1)
	client := world.Client("relay")
	ctx := context.Background()

	id, err := client.CreateThread(ctx, -1, "Jo Doe(@jodoe)")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}

	thread, err := client.QueryThread(ctx, -1, id)
	if err != nil {
		t.Fatalf("QueryThread failed: %v", err)
	}
	if thread.Title != "Jo Doe(@jodoe)" || thread.Closed {
		t.Errorf("unexpected thread %+v", thread)
	}

	world.CloseThread(id)
	thread, err = client.QueryThread(ctx, -1, id)
	if err != nil {
		t.Fatalf("QueryThread after close failed: %v", err)
	}
	if !thread.Closed {
		t.Error("expected the thread closed")
	}

	world.DeleteThread(id)
	if _, err := client.QueryThread(ctx, -1, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryPurgeThread(t *testing.T) {
	world := NewMemory(-1)
	client := world.Client("bot")
	ctx := context.Background()

	topicID, err := client.CreateThread(ctx, -1, "t")
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	inTopic, err := client.Send(ctx, -1, "inside", SendOptions{ReplyTo: topicID})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	outside, err := client.Send(ctx, -1, "outside", SendOptions{})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := client.PurgeThread(ctx, -1, topicID); err != nil {
		t.Fatalf("PurgeThread failed: %v", err)
	}
	if world.HasMessage(-1, inTopic) {
		t.Error("topic message should be purged")
	}
	if !world.HasMessage(-1, outside) {
		t.Error("messages outside the topic should survive")
	}
}
