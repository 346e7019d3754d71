package network

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authproviders "github.com/cbodonnell/gameflow/pkg/auth/providers"
	"github.com/cbodonnell/gameflow/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts NewWSServerOptions) (*WSServer, string) {
	t.Helper()
	s := NewWSServer(opts)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + NotificationsPath
}

func TestWSServer_Broadcast(t *testing.T) {
	s, url := newTestServer(t, NewWSServerOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWSClient(ctx, NewWSClientOptions{URL: url})
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		return s.ClientManager().Count() == 1
	}, time.Second, 5*time.Millisecond)

	sent := &messages.Message{
		Type:      messages.MessageTypePauseChanged,
		Timestamp: 42,
		Payload:   json.RawMessage(`{"sessionID":"s1","paused":true}`),
	}
	require.NoError(t, s.Broadcast(ctx, sent))

	received := make(chan *messages.Message, 1)
	listenCtx, stopListening := context.WithCancel(ctx)
	defer stopListening()
	go func() {
		_ = client.Listen(listenCtx, func(m *messages.Message) {
			received <- m
		})
	}()

	select {
	case got := <-received:
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, sent.Timestamp, got.Timestamp)
		assert.JSONEq(t, string(sent.Payload), string(got.Payload))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

func TestWSServer_ClientDisconnect(t *testing.T) {
	s, url := newTestServer(t, NewWSServerOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWSClient(ctx, NewWSClientOptions{URL: url})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.ClientManager().Count() == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())

	assert.Eventually(t, func() bool {
		return s.ClientManager().Count() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWSServer_Auth(t *testing.T) {
	s, url := newTestServer(t, NewWSServerOptions{
		AuthProvider: authproviders.NewStaticAuthProvider("secret", "operator"),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := DialWSClient(ctx, NewWSClientOptions{URL: url, Token: "wrong"})
	assert.Error(t, err)

	client, err := DialWSClient(ctx, NewWSClientOptions{URL: url, Token: "secret"})
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		return s.ClientManager().Count() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "operator", s.ClientManager().GetClients()[0].UserID)
}

func TestClientManager(t *testing.T) {
	cm := NewClientManager()

	id, err := cm.ConnectClient(nil, "127.0.0.1:1", "")
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.True(t, cm.Exists(id))
	assert.Len(t, cm.GetClients(), 1)

	assert.True(t, cm.DisconnectClient(id))
	assert.False(t, cm.DisconnectClient(id))
	assert.Equal(t, 0, cm.Count())
}
