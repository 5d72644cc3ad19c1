package sdk

import (
	"encoding/json"
	"time"

	"github.com/ethanbaker/api/pkg/api_types"
)

// ApiResponse represents a standard API response structure
type ApiResponse[T any] struct {
	Status  api_types.StatusType `json:"status"`          // Status message
	Code    int                  `json:"code"`            // Status code
	Message string               `json:"message"`         // Human-readable message
	Data    T                    `json:"data,omitempty"`  // Optional data field for successful responses
	Error   any                  `json:"error,omitempty"` // Optional errors field for error responses
}

// AsGinResponse converts the ApiResponse to a format suitable for Gin framework
func (r ApiResponse[T]) AsGinResponse() (int, any) {
	return r.Code, r
}

// AsJSON converts the ApiResponse to a JSON string
func (r ApiResponse[T]) AsJSON() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func NewSuccessResponse[T any](message string, data T) ApiResponse[T] {
	return ApiResponse[T]{
		Status:  api_types.StatusSuccess,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(code int, message string, err any) ApiResponse[any] {
	return ApiResponse[any]{
		Status:  api_types.StatusError,
		Code:    code,
		Message: message,
		Error:   err,
	}
}

// ErrorBody is returned by the voice endpoints on failure
type ErrorBody struct {
	Error   string `json:"error"`            // Machine-readable classification (e.g. "audio_too_large")
	Message string `json:"message"`          // Human-readable message
	Detail  string `json:"detail,omitempty"` // Internal error text, only in non-production mode
}

/** Voice headers */

const (
	HeaderSessionID     = "X-Session-Id"
	HeaderTranscript    = "X-Transcript" // Percent-encoded
	HeaderTurnPersisted = "X-Turn-Persisted"
	HeaderTurnError     = "X-Turn-Error"
	HeaderRequestID     = "X-Request-Id"
)

/** Requests */

// CreateSessionRequest represents the optional body for creating a session
type CreateSessionRequest struct {
	Metadata map[string]any `json:"metadata"`
}

/** Responses */

// Session represents a conversation session
type Session struct {
	ID             string         `json:"id"`
	OwnerID        string         `json:"owner_id"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Message represents one stored half of a turn
type Message struct {
	ID        uint      `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageList is the response of the message listing endpoint
type MessageList struct {
	SessionID string    `json:"session_id"`
	Limit     int       `json:"limit"`
	Messages  []Message `json:"messages"`
}

// TurnResponse is a completed voice turn as seen by a client
type TurnResponse struct {
	RequestID   string
	SessionID   string
	Transcript  string
	Persisted   bool
	TurnError   string
	ContentType string
	Audio       []byte
}
