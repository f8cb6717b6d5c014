package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/enfermeria-api/internal/realtime"
)

// EventHandler receives row changes of a subscribed table.
type EventHandler func(realtime.Event)

// Subscription is one live table subscription.
type Subscription struct {
	Table string

	client *Client
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe opens a realtime connection and streams table changes to handler
// until the subscription is closed or ctx ends.
func (c *Client) Subscribe(ctx context.Context, table string, handler EventHandler) (*Subscription, error) {
	session := c.Session()
	if session == nil {
		return nil, ErrNoSession
	}

	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = c.base.Path + c.apiPath("/realtime")
	u.RawQuery = url.Values{"token": {session.AccessToken}}.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: realtime dial: %w", ErrTransport, err)
	}
	if err := conn.WriteJSON(realtime.ClientMessage{Action: "subscribe", Topics: []string{table}}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: realtime subscribe: %w", ErrTransport, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{Table: table, client: c, conn: conn, cancel: cancel, done: make(chan struct{})}
	c.subsMu.Lock()
	c.subs[sub] = struct{}{}
	c.subsMu.Unlock()

	go sub.read(handler)
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Done is closed once the subscription stopped receiving.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
		_ = s.conn.Close()
		s.client.subsMu.Lock()
		delete(s.client.subs, s)
		s.client.subsMu.Unlock()
	})
}

func (s *Subscription) read(handler EventHandler) {
	defer close(s.done)
	defer s.Close()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.client.logger.Warn("realtime subscription dropped", zap.String("table", s.Table), zap.Error(err))
			}
			return
		}
		var event realtime.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			s.client.logger.Debug("ignoring malformed realtime event", zap.Error(err))
			continue
		}
		if event.Table != s.Table || handler == nil {
			continue
		}
		handler(event)
	}
}

// UnsubscribeAll closes every open subscription.
func (c *Client) UnsubscribeAll() {
	c.subsMu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subsMu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
}
