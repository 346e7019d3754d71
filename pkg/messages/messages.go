package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/gameflow/pkg/notify"
)

// MessageType identifies the payload carried by a Message.
type MessageType string

// Message types
const (
	MessageTypePauseChanged MessageType = "pause-changed"
	MessageTypeGameOver     MessageType = "game-over"
	MessageTypeStateChanged MessageType = "state-changed"
	MessageTypeScoreChanged MessageType = "score-changed"
)

// Message is the envelope sent to notification clients.
type Message struct {
	Type MessageType `json:"type"`
	// Timestamp is in unix milliseconds.
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type PauseChanged struct {
	SessionID string `json:"sessionID"`
	Paused    bool   `json:"paused"`
}

type GameOver struct {
	SessionID string `json:"sessionID"`
	Score     int64  `json:"score"`
}

type StateChanged struct {
	Previous string `json:"previous"`
	Mode     string `json:"mode"`
}

type ScoreChanged struct {
	SessionID string `json:"sessionID"`
	Score     int64  `json:"score"`
}

// FromEvent converts a bus event into a message.
func FromEvent(event notify.Event) (*Message, error) {
	var (
		t       MessageType
		payload interface{}
	)
	switch event.Kind {
	case notify.KindPauseChanged:
		t = MessageTypePauseChanged
		payload = PauseChanged{SessionID: event.SessionID, Paused: event.Paused}
	case notify.KindGameOver:
		t = MessageTypeGameOver
		payload = GameOver{SessionID: event.SessionID, Score: event.Score}
	case notify.KindStateChanged:
		t = MessageTypeStateChanged
		payload = StateChanged{Previous: event.Previous.String(), Mode: event.Mode.String()}
	case notify.KindScoreChanged:
		t = MessageTypeScoreChanged
		payload = ScoreChanged{SessionID: event.SessionID, Score: event.Score}
	default:
		return nil, fmt.Errorf("unknown event kind: %d", event.Kind)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}

	return &Message{
		Type:      t,
		Timestamp: event.Timestamp.UnixMilli(),
		Payload:   b,
	}, nil
}
