package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/greeac/internal/logging"
	"github.com/muurk/greeac/internal/protocol"
	"github.com/muurk/greeac/internal/server"
)

const (
	streamWriteWait = 10 * time.Second
	streamBuffer    = 16
)

// ErrStreamClosed is returned by Stream.Control after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a live WebSocket subscription to a bridge.
type Stream struct {
	conn     *websocket.Conn
	messages chan server.Message

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// WebSocketURL turns a bridge base URL into its /ws endpoint.
func WebSocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		baseURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		baseURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	case !strings.Contains(baseURL, "://"):
		baseURL = "ws://" + baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/ws"
}

// Watch dials the bridge's WebSocket. The bridge sends traits and the
// current state first, then every state change.
func (c *Client) Watch(ctx context.Context) (*Stream, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.HTTPClient.Timeout,
		TLSClientConfig:  c.TLSConfig,
	}

	url := WebSocketURL(c.BaseURL)
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, newHTTPError(resp.StatusCode, "websocket handshake rejected")
		}
		return nil, classifyNetworkError("websocket dial "+url+" failed", err)
	}
	logging.Debug("WebSocket connected", zap.String("url", url))

	s := &Stream{
		conn:     conn,
		messages: make(chan server.Message, streamBuffer),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Messages delivers every message from the bridge. It is closed when the
// connection ends; Err then reports why.
func (s *Stream) Messages() <-chan server.Message {
	return s.messages
}

// Err returns the error that ended the stream, or nil while it is open or
// after a clean Close.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Control sends a control request over the socket. The bridge answers with
// a state or error message on Messages.
func (s *Stream) Control(req protocol.Request) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteJSON(server.Message{Type: server.MessageControl, Request: &req})
}

// Close sends a close frame and tears the connection down.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	s.finish(nil)
	return nil
}

func (s *Stream) finish(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Stream) readLoop() {
	defer close(s.messages)

	for {
		var msg server.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			select {
			case <-s.done:
				// closed locally
			default:
				s.finish(err)
			}
			return
		}

		select {
		case s.messages <- msg:
		case <-s.done:
			return
		}
	}
}
