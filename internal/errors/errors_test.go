package errors

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(12001, "test error")

	if err.Code != 12001 {
		t.Errorf("Expected code 12001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(12001, "test error"),
			expected: "[12001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(12001, "test error").Wrap(errors.New("original error")),
			expected: "[12001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Wrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrMessageNotFound.Wrap(originalErr)

	if appErr.Code != ErrMessageNotFound.Code {
		t.Errorf("Expected code %d, got %d", ErrMessageNotFound.Code, appErr.Code)
	}
	if appErr.Message != ErrMessageNotFound.Message {
		t.Errorf("Expected message '%s', got '%s'", ErrMessageNotFound.Message, appErr.Message)
	}
	if appErr.Err != originalErr {
		t.Error("Expected wrapped error to be the original error")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrDBError.Wrap(originalErr)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Error("Expected unwrapped error to be the original error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *AppError
		expected bool
	}{
		{
			name:     "same error",
			err:      ErrNotAuthor,
			target:   ErrNotAuthor,
			expected: true,
		},
		{
			name:     "wrapped same error",
			err:      ErrNotAuthor.Wrap(errors.New("wrapped")),
			target:   ErrNotAuthor,
			expected: true,
		},
		{
			name:     "different error",
			err:      ErrEmptyMessage,
			target:   ErrNotAuthor,
			expected: false,
		},
		{
			name:     "non-app error",
			err:      errors.New("standard error"),
			target:   ErrNotAuthor,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "app error",
			err:      ErrConversationNotFound,
			expected: CodeConversationNotFound,
		},
		{
			name:     "wrapped app error",
			err:      ErrEmptyMessage.Wrap(errors.New("wrapped")),
			expected: CodeEmptyMessage,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestGetMessage(t *testing.T) {
	if got := GetMessage(ErrNotParticipant); got != ErrNotParticipant.Message {
		t.Errorf("Expected '%s', got '%s'", ErrNotParticipant.Message, got)
	}
	if got := GetMessage(errors.New("boom")); got != "internal server error" {
		t.Errorf("Expected fallback message, got '%s'", got)
	}
}
