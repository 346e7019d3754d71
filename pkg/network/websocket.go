package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	authproviders "github.com/cbodonnell/gameflow/pkg/auth/providers"
	"github.com/cbodonnell/gameflow/pkg/log"
	"github.com/cbodonnell/gameflow/pkg/messages"
	"nhooyr.io/websocket"
)

const (
	// NotificationsPath is where clients connect to receive session events.
	NotificationsPath = "/notifications"
	// DefaultWriteTimeout bounds a single write to one client.
	DefaultWriteTimeout = 5 * time.Second
)

// WSServer pushes serialized session messages to websocket clients.
type WSServer struct {
	server        *http.Server
	tls           *TLSConfig
	clientManager *ClientManager
	authProvider  authproviders.AuthProvider
	writeTimeout  time.Duration
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port          int
	TLS           *TLSConfig
	ClientManager *ClientManager
	// AuthProvider is optional. When set, clients must present a token in
	// the Authorization header or the token query parameter.
	AuthProvider authproviders.AuthProvider
	WriteTimeout time.Duration
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	clientManager := opts.ClientManager
	if clientManager == nil {
		clientManager = NewClientManager()
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	s := &WSServer{
		tls:           opts.TLS,
		clientManager: clientManager,
		authProvider:  opts.AuthProvider,
		writeTimeout:  writeTimeout,
	}
	mux := http.NewServeMux()
	mux.Handle(NotificationsPath, s.Handler())
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: mux,
	}
	return s
}

func (s *WSServer) ClientManager() *ClientManager {
	return s.clientManager
}

// Handler upgrades the request and keeps the client registered until the
// connection closes. Clients are not expected to send anything.
func (s *WSServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if s.authProvider != nil {
			token := r.URL.Query().Get("token")
			if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
				token = bearer
			}
			claims, err := s.authProvider.VerifyToken(r.Context(), token)
			if err != nil {
				log.Warn("Rejected WebSocket connection from %s: %v", r.RemoteAddr, err)
				http.Error(w, "failed to verify token", http.StatusUnauthorized)
				return
			}
			userID = claims.UID
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}

		clientID, err := s.clientManager.ConnectClient(conn, r.RemoteAddr, userID)
		if err != nil {
			log.Error("Failed to connect client: %v", err)
			conn.Close(websocket.StatusInternalError, "failed to register client")
			return
		}
		log.Info("Client %d connected from %s", clientID, r.RemoteAddr)

		ctx := conn.CloseRead(r.Context())
		<-ctx.Done()

		if s.clientManager.DisconnectClient(clientID) {
			log.Info("Client %d disconnected", clientID)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})
}

// Broadcast serializes the message once and writes it to every client.
// Clients whose write fails are disconnected.
func (s *WSServer) Broadcast(ctx context.Context, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	for _, client := range s.clientManager.GetClients() {
		writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err := client.Conn.Write(writeCtx, websocket.MessageBinary, b)
		cancel()
		if err != nil {
			log.Warn("Failed to write %s to client %d: %v", msg.Type, client.ID, err)
			if s.clientManager.DisconnectClient(client.ID) {
				client.Conn.Close(websocket.StatusGoingAway, "write failed")
			}
		}
	}
	return nil
}

// Start serves until ctx is done. Open connections are released when ctx
// is done as well.
func (s *WSServer) Start(ctx context.Context) error {
	s.server.BaseContext = func(net.Listener) context.Context {
		return ctx
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down WebSocket server: %v", err)
		}
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("websocket server error: %v", err)
	}
	return nil
}

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, error) {
	_, message, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := messages.DeserializeMessage(message)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, nil
}
