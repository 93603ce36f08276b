package service

import (
	"context"
	"testing"

	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/pkg/wire"
)

// Validation runs before any store access, so these paths are testable
// without a database.

func TestSend_EmptyContentNoAttachments(t *testing.T) {
	s := &MessageService{}
	ctx := context.Background()

	_, err := s.Send(ctx, 1, 100, "", nil)
	if !apperrors.Is(err, apperrors.ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage, got %v", err)
	}
}

func TestSend_WhitespaceOnlyContent(t *testing.T) {
	s := &MessageService{}
	ctx := context.Background()

	_, err := s.Send(ctx, 1, 100, "   \n\t  ", nil)
	if !apperrors.Is(err, apperrors.ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage for blank content, got %v", err)
	}
}

func TestSend_AttachmentOnlyPassesValidation(t *testing.T) {
	s := &MessageService{}
	ctx := context.Background()

	// a blank message with an attachment must get past validation; the
	// nil participant repository then panics, which is how we know
	// validation did not reject it
	defer func() {
		if recover() == nil {
			t.Error("Expected the call to reach the store layer")
		}
	}()

	_, _ = s.Send(ctx, 1, 100, "", []wire.AttachmentUpload{
		{FileName: "minutes.pdf", ContentType: "application/pdf", Data: []byte("x")},
	})
}

func TestAddReaction_EmptyEmoji(t *testing.T) {
	s := &MessageService{}
	ctx := context.Background()

	err := s.AddReaction(ctx, 1, 100, "")
	if !apperrors.Is(err, apperrors.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestCreateConversation_NoParticipants(t *testing.T) {
	s := &ConversationService{}
	ctx := context.Background()

	_, err := s.Create(ctx, "board", nil, true)
	if !apperrors.Is(err, apperrors.ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestDedupeIDs(t *testing.T) {
	got := dedupeIDs([]int64{3, 1, 3, 2, 1})
	want := []int64{3, 1, 2}

	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Position %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}
