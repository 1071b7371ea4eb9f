package wsrouter

import (
	"context"
	"encoding/json"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is the connection surface the router reads from and writes to.
// Implementations must serialize WriteJSON: handler replies, router error
// envelopes and event pushes all share the connection, and the underlying
// websocket forbids concurrent writers.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

type HandlerFunc func(ctx context.Context, conn Conn, payload json.RawMessage) error

type Middleware func(next HandlerFunc) HandlerFunc

type WSRouter struct {
	routes      map[string]HandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// ServeConn reads messages from the connection until it fails and routes each
// one by its type. Unknown types are reported to the peer but do not end the
// read loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn Conn) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			conn.WriteJSON(map[string]string{"error": "unknown message type"})
			continue
		}

		for i := len(r.middlewares) - 1; i >= 0; i-- {
			handler = r.middlewares[i](handler)
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
		}
	}
}
