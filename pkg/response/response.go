// Package response defines the JSON envelope shared by every HTTP endpoint.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "convivo.im.messaging/internal/errors"
)

// Response is the uniform envelope.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

var codeMessages = map[int]string{
	apperrors.CodeSuccess:              "success",
	apperrors.CodeTokenInvalid:         "token is invalid",
	apperrors.CodeTokenExpired:         "token has expired",
	apperrors.CodeForbidden:            "forbidden",
	apperrors.CodeInvalidParams:        "invalid parameters",
	apperrors.CodeEmptyMessage:         "message has no content",
	apperrors.CodeConversationNotFound: "conversation not found",
	apperrors.CodeMessageNotFound:      "message not found",
	apperrors.CodeNotParticipant:       "not a participant of this conversation",
	apperrors.CodeNotAuthor:            "not the author of this message",
	apperrors.CodeServerError:          "internal server error",
	apperrors.CodeDBError:              "database error",
	apperrors.CodeStorageError:         "storage error",
}

// Success 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    apperrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error responds with the canonical message for code.
func Error(c *gin.Context, code int) {
	message := codeMessages[code]
	if message == "" {
		message = "unknown error"
	}
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorWithMsg responds with a custom message.
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError maps an error to its business code, falling back to
// CodeServerError for unclassified failures.
func ErrorFromAppError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	message := apperrors.GetMessage(err)
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// Unauthorized 401 with the token-invalid code.
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    apperrors.CodeTokenInvalid,
		Message: codeMessages[apperrors.CodeTokenInvalid],
		Data:    nil,
	})
}
