package websocket

import (
	"encoding/json"
	"time"

	"relay-service/internal/events"
	"relay-service/pkg/apperror"

	"github.com/google/uuid"
)

// Message is the envelope of every frame, inbound and outbound
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      events.Type     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage wraps payload in an envelope with a fresh id
func NewMessage(msgType events.Type, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) *Message {
	msg, _ := NewMessage(events.Error, events.ErrorPayload{Code: code, Message: message})
	return msg
}

// errorMessageFor maps err to the error event sent to the client
func errorMessageFor(err error) *Message {
	return NewErrorMessage(apperror.KindOf(err).String(), apperror.Message(err))
}
