package network

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
)

// Client is a connected notification subscriber.
type Client struct {
	ID          uint32
	Conn        *websocket.Conn
	RemoteAddr  string
	UserID      string
	ConnectedAt time.Time
}

// ClientManager tracks the connected notification clients.
type ClientManager struct {
	clients     map[uint32]*Client
	clientsLock sync.RWMutex
}

func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[uint32]*Client),
	}
}

// GetClients returns a snapshot of the connected clients.
func (cm *ClientManager) GetClients() []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		c := *client
		clients = append(clients, &c)
	}
	return clients
}

// ConnectClient registers a connection and returns its ID
func (cm *ClientManager) ConnectClient(conn *websocket.Conn, remoteAddr string, userID string) (uint32, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return 0, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	cm.clients[clientID] = &Client{
		ID:          clientID,
		Conn:        conn,
		RemoteAddr:  remoteAddr,
		UserID:      userID,
		ConnectedAt: time.Now(),
	}

	return clientID, nil
}

// DisconnectClient removes a client. It reports whether the client was known.
func (cm *ClientManager) DisconnectClient(clientID uint32) bool {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	if _, ok := cm.clients[clientID]; !ok {
		return false
	}
	delete(cm.clients, clientID)
	return true
}

func (cm *ClientManager) Exists(clientID uint32) bool {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	_, ok := cm.clients[clientID]
	return ok
}

func (cm *ClientManager) Count() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.clients)
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
