package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Push event names sent to local UI subscribers
const (
	PushSession  = "session"
	PushCatalog  = "catalog"
	PushProfile  = "profile"
	PushChats    = "chats"
	PushOutbox   = "outbox"
	PushNotice   = "notice"
	PushRollback = "rollback"
)

// Client is a local UI subscriber of the push feed.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

// Manager fans cache change notifications out to UI subscribers.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mutex      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-m.Register:
				m.mutex.Lock()
				m.clients[client.ID] = client
				m.mutex.Unlock()
				log.Printf("Push subscriber registered: %s", client.ID)

			case client := <-m.Unregister:
				m.mutex.Lock()
				if _, ok := m.clients[client.ID]; ok {
					delete(m.clients, client.ID)
					close(client.Send)
				}
				m.mutex.Unlock()
				log.Printf("Push subscriber unregistered: %s", client.ID)

			case message := <-m.broadcast:
				m.mutex.Lock()
				for id, client := range m.clients {
					select {
					case client.Send <- message:
					default:
						// slow subscriber, drop it
						close(client.Send)
						delete(m.clients, id)
					}
				}
				m.mutex.Unlock()

			case <-ctx.Done():
				close(m.done)
				m.mutex.Lock()
				for id, client := range m.clients {
					close(client.Send)
					delete(m.clients, id)
				}
				m.mutex.Unlock()
				return
			}
		}
	}()
}

// Publish queues an event for every subscriber. It never blocks the caller;
// when the queue is full the event is dropped.
func (m *Manager) Publish(event string, payload interface{}) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		log.Printf("Push: failed to encode %s event: %v", event, err)
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		log.Printf("Push: failed to encode %s envelope: %v", event, err)
		return
	}

	select {
	case m.broadcast <- raw:
	default:
		log.Printf("Push: queue full, dropping %s event", event)
	}
}

// Add registers a subscriber; it returns false once the manager has stopped.
func (m *Manager) Add(c *Client) bool {
	select {
	case m.Register <- c:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Subscribers() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// ReadPump drains the connection until the subscriber goes away. Subscribers
// never send commands over the feed.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		select {
		case m.Unregister <- c:
		case <-m.done:
		}
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Push: read error from %s: %v", c.ID, err)
			}
			break
		}
	}
}

// WritePump sends queued events to the connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		message, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Push: write error to %s: %v", c.ID, err)
			return
		}
	}
}
