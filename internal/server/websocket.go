package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/climate"
	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Message types on the WebSocket.
const (
	MessageState   = "state"
	MessageTraits  = "traits"
	MessageControl = "control"
	MessageError   = "error"
)

// Message is the envelope of every WebSocket message.
// Clients send {"type":"control","request":{...}}; the server sends state,
// traits and error messages.
type Message struct {
	Type    string            `json:"type"`
	State   *climate.State    `json:"state,omitempty"`
	Traits  *climate.Traits   `json:"traits,omitempty"`
	Request *protocol.Request `json:"request,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type wsClient struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	send       chan Message
	closeOnce  sync.Once
	done       chan struct{}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// queue hands msg to the writer; it gives up once the client is gone.
func (c *wsClient) queue(msg Message) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	client := &wsClient{
		id:         uuid.NewString(),
		remoteAddr: c.Request.RemoteAddr,
		conn:       conn,
		send:       make(chan Message, 8),
		done:       make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()
	s.config.Metrics.ClientConnected(1)
	logging.LogConnection(client.remoteAddr, "websocket_upgraded")

	updates, unsubscribe := s.ctrl.Subscribe()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.writePump(client, updates)
	}()
	go func() {
		defer s.wg.Done()
		defer func() {
			unsubscribe()
			client.close()
			s.mu.Lock()
			delete(s.clients, client.id)
			s.mu.Unlock()
			s.config.Metrics.ClientConnected(-1)
			logging.LogConnection(client.remoteAddr, "websocket_closed")
		}()
		s.readPump(client)
	}()
}

// writePump is the only goroutine writing to the connection.
func (s *Server) writePump(c *wsClient, updates <-chan climate.State) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	traits := s.ctrl.Traits()
	state := s.ctrl.State()
	initial := []Message{
		{Type: MessageTraits, Traits: &traits},
		{Type: MessageState, State: &state},
	}
	for _, msg := range initial {
		if err := c.write(msg); err != nil {
			c.close()
			return
		}
	}

	for {
		select {
		case <-c.done:
			return

		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := c.write(Message{Type: MessageState, State: &st}); err != nil {
				c.close()
				return
			}

		case msg := <-c.send:
			if err := c.write(msg); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *wsClient) write(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		logging.Info("WebSocket write failed",
			zap.String("remote_addr", c.remoteAddr),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// readPump handles control messages until the connection drops.
func (s *Server) readPump(c *wsClient) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("WebSocket closed unexpectedly",
					zap.String("remote_addr", c.remoteAddr),
					zap.Error(err),
				)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.queue(Message{Type: MessageError, Error: "invalid message: " + err.Error()})
			continue
		}

		switch msg.Type {
		case MessageControl:
			if msg.Request == nil {
				c.queue(Message{Type: MessageError, Error: "control message without request"})
				continue
			}
			state, err := s.control(*msg.Request)
			if err != nil {
				c.queue(Message{Type: MessageError, Error: err.Error()})
				continue
			}
			c.queue(Message{Type: MessageState, State: &state})

		default:
			c.queue(Message{Type: MessageError, Error: "unknown message type " + msg.Type})
		}
	}
}
