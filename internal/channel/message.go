package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amishk599/jobradar/internal/model"
)

// Message types exchanged between the scanner and analyzer contexts.
const (
	TypeAnalyze = "analyze"
	TypeStatus  = "status"
)

// Error kinds carried by replies, mapped back onto sentinels by Err.
const (
	KindConfiguration = "configuration"
	KindService       = "service"
)

// Message is the wire envelope. Requests and replies share an ID; Reply
// distinguishes them on a shared bus.
type Message struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Reply     bool            `json:"reply,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind string          `json:"errorKind,omitempty"`
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s message %s: empty payload", m.Type, m.ID)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s message %s: %w", m.Type, m.ID, err)
	}
	return nil
}

// Err returns the error a reply carries, or nil.
func (m Message) Err() error {
	if m.Error == "" && m.ErrorKind == "" {
		return nil
	}
	switch m.ErrorKind {
	case KindConfiguration:
		return fmt.Errorf("%s: %w", m.Error, model.ErrServiceConfiguration)
	default:
		return errors.New(m.Error)
	}
}

// NewReply builds the reply to req. A non-nil err is carried instead of the
// payload.
func NewReply(req Message, payload any, err error) (Message, error) {
	reply := Message{Type: req.Type, ID: req.ID, Reply: true}
	if err != nil {
		reply.Error = err.Error()
		reply.ErrorKind = KindService
		if errors.Is(err, model.ErrServiceConfiguration) {
			reply.ErrorKind = KindConfiguration
		}
		return reply, nil
	}
	if payload != nil {
		body, mErr := json.Marshal(payload)
		if mErr != nil {
			return Message{}, fmt.Errorf("encode %s reply: %w", req.Type, mErr)
		}
		reply.Payload = body
	}
	return reply, nil
}
