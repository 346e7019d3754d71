package messages

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/cbodonnell/gameflow/pkg/flow"
	"github.com/cbodonnell/gameflow/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	type args struct {
		message *Message
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
	}{
		{
			name: "Pause changed",
			args: args{
				message: &Message{
					Type:      MessageTypePauseChanged,
					Timestamp: 1718000000123,
					Payload:   json.RawMessage(`{"sessionID":"abc","paused":true}`),
				},
			},
		},
		{
			name: "Empty payload",
			args: args{
				message: &Message{
					Type:      MessageTypeGameOver,
					Timestamp: 1,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.args.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("SerializeMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			got, err := DeserializeMessage(b)
			if (err != nil) != tt.wantErr {
				t.Errorf("DeserializeMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if got.Type != tt.args.message.Type {
				t.Errorf("DeserializeMessage() type = %v, want %v", got.Type, tt.args.message.Type)
			}
			if got.Timestamp != tt.args.message.Timestamp {
				t.Errorf("DeserializeMessage() timestamp = %v, want %v", got.Timestamp, tt.args.message.Timestamp)
			}
			if !bytes.Equal(got.Payload, tt.args.message.Payload) {
				t.Errorf("DeserializeMessage() payload = %s, want %s", got.Payload, tt.args.message.Payload)
			}
		})
	}
}

func TestDeserializeMessage_Malformed(t *testing.T) {
	_, err := DeserializeMessage([]byte("not zstd"))
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{1})
	assert.Error(t, err)

	_, err = DeserializeMessageFlatbuffer([]byte{0xff, 0xff, 0xff, 0x7f})
	assert.Error(t, err)
}

func TestFromEvent(t *testing.T) {
	ts := time.UnixMilli(1718000000000)

	tests := []struct {
		name        string
		event       notify.Event
		wantType    MessageType
		wantPayload string
	}{
		{
			name:        "pause",
			event:       notify.Event{Kind: notify.KindPauseChanged, SessionID: "s1", Paused: true, Timestamp: ts},
			wantType:    MessageTypePauseChanged,
			wantPayload: `{"sessionID":"s1","paused":true}`,
		},
		{
			name:        "game over",
			event:       notify.Event{Kind: notify.KindGameOver, SessionID: "s1", Score: 40, Timestamp: ts},
			wantType:    MessageTypeGameOver,
			wantPayload: `{"sessionID":"s1","score":40}`,
		},
		{
			name:        "state changed",
			event:       notify.Event{Kind: notify.KindStateChanged, Previous: flow.ModeMainMenu, Mode: flow.ModePlayGame, Timestamp: ts},
			wantType:    MessageTypeStateChanged,
			wantPayload: `{"previous":"MainMenu","mode":"PlayGame"}`,
		},
		{
			name:        "score changed",
			event:       notify.Event{Kind: notify.KindScoreChanged, SessionID: "s2", Score: 5, Timestamp: ts},
			wantType:    MessageTypeScoreChanged,
			wantPayload: `{"sessionID":"s2","score":5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromEvent(tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, m.Type)
			assert.Equal(t, ts.UnixMilli(), m.Timestamp)
			assert.JSONEq(t, tt.wantPayload, string(m.Payload))
		})
	}

	_, err := FromEvent(notify.Event{Kind: notify.Kind(99)})
	assert.Error(t, err)
}
