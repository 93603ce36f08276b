package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"convivo.im.messaging/internal/model"
)

// These tests need a running Redis instance; they are skipped otherwise.

func getTestRedisClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping: cannot connect to Redis: %v", err)
	}

	client.FlushDB(ctx)

	return client
}

func testMessage(id, convID, userID int64, content string) *model.Message {
	return &model.Message{
		ID:             id,
		ConversationID: convID,
		UserID:         userID,
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func TestConversationCache_TouchForSender(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	c := NewConversationCache(client)
	ctx := context.Background()

	userID := int64(1001)
	convID := int64(4001)
	msg := testMessage(3001, convID, userID, "hello")

	if err := c.TouchForSender(ctx, userID, convID, msg); err != nil {
		t.Fatalf("TouchForSender failed: %v", err)
	}

	members, err := client.ZRange(ctx, indexKey(userID), 0, -1).Result()
	if err != nil {
		t.Fatalf("Failed to get index: %v", err)
	}
	if len(members) != 1 || members[0] != "4001" {
		t.Errorf("Expected index member '4001', got %v", members)
	}

	lm, unread, err := c.Snapshot(ctx, userID, convID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if lm == nil || lm.ID != msg.ID {
		t.Fatalf("Expected snapshot for message %d, got %+v", msg.ID, lm)
	}
	if unread != 0 {
		t.Errorf("Expected sender unread 0, got %d", unread)
	}
}

func TestConversationCache_TouchForRecipients(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	c := NewConversationCache(client)
	ctx := context.Background()

	senderID := int64(1001)
	recipientID := int64(1002)
	convID := int64(4001)
	members := []int64{senderID, recipientID}

	msg := testMessage(3001, convID, senderID, "first")
	if err := c.TouchForRecipients(ctx, members, senderID, convID, msg); err != nil {
		t.Fatalf("TouchForRecipients failed: %v", err)
	}

	_, unread, err := c.Snapshot(ctx, recipientID, convID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if unread != 1 {
		t.Errorf("Expected unread 1, got %d", unread)
	}

	// the sender never counts their own message as unread
	if _, senderUnread, _ := c.Snapshot(ctx, senderID, convID); senderUnread != 0 {
		t.Errorf("Expected sender unread 0, got %d", senderUnread)
	}

	msg2 := testMessage(3002, convID, senderID, "second")
	if err := c.TouchForRecipients(ctx, members, senderID, convID, msg2); err != nil {
		t.Fatalf("Second TouchForRecipients failed: %v", err)
	}

	lm, unread, _ := c.Snapshot(ctx, recipientID, convID)
	if unread != 2 {
		t.Errorf("Expected unread 2, got %d", unread)
	}
	if lm.ID != msg2.ID {
		t.Errorf("Expected snapshot to follow newest message %d, got %d", msg2.ID, lm.ID)
	}
}

func TestConversationCache_MarkRead(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	c := NewConversationCache(client)
	ctx := context.Background()

	userID := int64(1002)
	convID := int64(4001)
	msg := testMessage(3001, convID, 1001, "unread me")

	if err := c.TouchForRecipients(ctx, []int64{1001, userID}, 1001, convID, msg); err != nil {
		t.Fatalf("TouchForRecipients failed: %v", err)
	}

	if err := c.MarkRead(ctx, userID, convID, msg.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	_, unread, err := c.Snapshot(ctx, userID, convID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if unread != 0 {
		t.Errorf("Expected unread 0 after MarkRead, got %d", unread)
	}

	lastRead, err := client.HGet(ctx, conversationKey(userID, convID), "last_read_message_id").Int64()
	if err != nil {
		t.Fatalf("Failed to get last_read_message_id: %v", err)
	}
	if lastRead != msg.ID {
		t.Errorf("Expected last_read_message_id %d, got %d", msg.ID, lastRead)
	}
}

func TestConversationCache_TotalUnread(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	c := NewConversationCache(client)
	ctx := context.Background()

	userID := int64(1002)
	for i := int64(1); i <= 3; i++ {
		convID := 4000 + i
		msg := testMessage(3000+i, convID, 1001, "hi")
		if err := c.TouchForRecipients(ctx, []int64{1001, userID}, 1001, convID, msg); err != nil {
			t.Fatalf("TouchForRecipients failed: %v", err)
		}
	}

	total, err := c.TotalUnread(ctx, userID)
	if err != nil {
		t.Fatalf("TotalUnread failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected total unread 3, got %d", total)
	}
}

func TestConversationCache_RecentConversationIDs(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	c := NewConversationCache(client)
	ctx := context.Background()

	userID := int64(1001)
	for i := int64(1); i <= 3; i++ {
		convID := 4000 + i
		msg := testMessage(3000+i, convID, userID, "hi")
		if err := c.TouchForSender(ctx, userID, convID, msg); err != nil {
			t.Fatalf("TouchForSender failed: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	ids, err := c.RecentConversationIDs(ctx, userID, 0, 10)
	if err != nil {
		t.Fatalf("RecentConversationIDs failed: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("Expected 3 conversations, got %d", len(ids))
	}
	if ids[0] != 4003 {
		t.Errorf("Expected most recent conversation 4003 first, got %d", ids[0])
	}
}
