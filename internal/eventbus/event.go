// README: Event kinds pushed to session subscribers; a closed set of payloads with flat JSON.
package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tripmate/internal/types"
)

type Type string

const (
	TypeConnected     Type = "connected"
	TypeStart         Type = "start"
	TypeResponseStart Type = "response_start"
	TypeAction        Type = "action"
	TypeMemory        Type = "memory"
	TypeToken         Type = "token"
	TypeResponse      Type = "response"
	TypeTyping        Type = "typing"
	TypeError         Type = "error"
	TypeHeartbeat     Type = "heartbeat"
	TypeComplete      Type = "complete"
)

// Action kinds attached to action events.
const (
	ActionAnalyzeIntent    = "analyze_intent"
	ActionUpdateMemory     = "update_memory"
	ActionSearchFlights    = "search_flights"
	ActionSearchHotels     = "search_hotels"
	ActionSearchActivities = "search_activities"
	ActionGenerateResponse = "generate_response"
	ActionWebSearch        = "web_search"
)

// Payload is implemented only by the types in this file.
type Payload interface {
	eventType() Type
}

type Connected struct {
	SessionID string `json:"session_id"`
}

type Start struct {
	Message string `json:"message"`
}

type ResponseStart struct {
	Message string `json:"message"`
}

type Action struct {
	ActionType  string         `json:"action_type,omitempty"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

type Memory struct {
	Updates types.Values `json:"updates"`
}

type Token struct {
	Content string `json:"content"`
}

type Response struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Typing struct {
	Typing bool `json:"typing"`
}

type Error struct {
	Message string `json:"message"`
}

type Heartbeat struct{}

type Complete struct{}

func (Connected) eventType() Type     { return TypeConnected }
func (Start) eventType() Type         { return TypeStart }
func (ResponseStart) eventType() Type { return TypeResponseStart }
func (Action) eventType() Type        { return TypeAction }
func (Memory) eventType() Type        { return TypeMemory }
func (Token) eventType() Type         { return TypeToken }
func (Response) eventType() Type      { return TypeResponse }
func (Typing) eventType() Type        { return TypeTyping }
func (Error) eventType() Type         { return TypeError }
func (Heartbeat) eventType() Type     { return TypeHeartbeat }
func (Complete) eventType() Type      { return TypeComplete }

type Event struct {
	Type      Type
	Timestamp time.Time
	Payload   Payload
}

func NewEvent(p Payload) Event {
	return Event{Type: p.eventType(), Timestamp: time.Now().UTC(), Payload: p}
}

// MarshalJSON flattens the payload next to type and timestamp.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	typ, _ := json.Marshal(e.Type)
	ts, err := json.Marshal(e.Timestamp)
	if err != nil {
		return nil, err
	}
	fields["type"] = typ
	fields["timestamp"] = ts
	return json.Marshal(fields)
}

var ErrUnknownEventType = errors.New("unknown event type")

func (e *Event) UnmarshalJSON(data []byte) error {
	var head struct {
		Type      Type      `json:"type"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	var (
		p   Payload
		err error
	)
	switch head.Type {
	case TypeConnected:
		p, err = decodePayload[Connected](data)
	case TypeStart:
		p, err = decodePayload[Start](data)
	case TypeResponseStart:
		p, err = decodePayload[ResponseStart](data)
	case TypeAction:
		p, err = decodePayload[Action](data)
	case TypeMemory:
		p, err = decodePayload[Memory](data)
	case TypeToken:
		p, err = decodePayload[Token](data)
	case TypeResponse:
		p, err = decodePayload[Response](data)
	case TypeTyping:
		p, err = decodePayload[Typing](data)
	case TypeError:
		p, err = decodePayload[Error](data)
	case TypeHeartbeat:
		p = Heartbeat{}
	case TypeComplete:
		p = Complete{}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
	}
	if err != nil {
		return err
	}
	*e = Event{Type: head.Type, Timestamp: head.Timestamp, Payload: p}
	return nil
}

func decodePayload[T Payload](data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
