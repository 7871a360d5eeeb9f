package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ChangeEvent is a postgres change notification delivered over the Supabase
// Realtime websocket.
type ChangeEvent struct {
	Type    string                 `json:"type"`
	Event   string                 `json:"event"`
	Topic   string                 `json:"topic"`
	Payload map[string]interface{} `json:"payload"`
	Ref     string                 `json:"ref"`
}

// Table returns the table name embedded in the event topic, empty when the
// topic is not a table subscription.
func (e *ChangeEvent) Table() string {
	parts := strings.Split(e.Topic, ":")
	if len(parts) >= 3 && parts[0] == "realtime" {
		return parts[2]
	}
	return ""
}

// ChangeHandler consumes change events.
type ChangeHandler func(event *ChangeEvent)

// Realtime maintains one websocket connection to the Supabase Realtime
// service and fans change events out to table subscribers.
type Realtime struct {
	mu       sync.Mutex
	wsURL    string
	conn     *websocket.Conn
	handlers map[string][]ChangeHandler
	joinRefs map[string]string
	done     chan struct{}
	ref      int

	reconnectWait time.Duration
	maxReconnects int

	// OnDisconnect, when set before Connect, is called once the connection
	// drops and every reconnect attempt has failed.
	OnDisconnect func(error)
}

// NewRealtime creates a realtime subscriber for the project.
func NewRealtime(projectURL, apiKey string) *Realtime {
	wsURL := projectURL
	switch {
	case strings.HasPrefix(wsURL, "https"):
		wsURL = "wss" + wsURL[len("https"):]
	case strings.HasPrefix(wsURL, "http"):
		wsURL = "ws" + wsURL[len("http"):]
	}
	wsURL = strings.TrimSuffix(wsURL, "/") + "/realtime/v1/websocket?apikey=" + apiKey + "&vsn=1.0.0"

	return &Realtime{
		wsURL:         wsURL,
		handlers:      make(map[string][]ChangeHandler),
		joinRefs:      make(map[string]string),
		done:          make(chan struct{}),
		reconnectWait: time.Second,
		maxReconnects: 6,
	}
}

// Connect dials the websocket and starts the read/heartbeat loops.
func (r *Realtime) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.wsURL, nil)
	if err != nil {
		return fmt.Errorf("realtime dial: %w", err)
	}
	r.conn = conn
	r.done = make(chan struct{})

	go r.readLoop(conn)
	go r.heartbeatLoop()
	return nil
}

// Close tears the connection down and stops the background loops.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		return nil
	}
	close(r.done)
	_ = r.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := r.conn.Close()
	r.conn = nil
	return err
}

// WatchTable subscribes to all change events on a public-schema table. The
// returned func leaves the channel and removes the handler; callers must
// invoke it on teardown so handlers do not leak across restarts.
func (r *Realtime) WatchTable(ctx context.Context, table string, handler ChangeHandler) (func(), error) {
	topic := "realtime:public:" + table

	r.mu.Lock()
	if r.conn == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("realtime not connected")
	}
	joinRef := r.nextRefLocked()
	join := phxMessage{Topic: topic, Event: "phx_join", Payload: map[string]interface{}{}, Ref: joinRef, JoinRef: joinRef}
	if err := r.conn.WriteJSON(join); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("realtime join %s: %w", topic, err)
	}
	r.handlers[topic] = append(r.handlers[topic], handler)
	r.joinRefs[topic] = joinRef
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, topic)
		if r.conn != nil {
			leave := phxMessage{Topic: topic, Event: "phx_leave", Payload: map[string]interface{}{}, Ref: r.nextRefLocked(), JoinRef: r.joinRefs[topic]}
			_ = r.conn.WriteJSON(leave)
		}
		delete(r.joinRefs, topic)
	}
	return cancel, nil
}

type phxMessage struct {
	Topic   string                 `json:"topic"`
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
	Ref     string                 `json:"ref"`
	JoinRef string                 `json:"join_ref,omitempty"`
}

func (r *Realtime) nextRefLocked() string {
	r.ref++
	return strconv.Itoa(r.ref)
}

func (r *Realtime) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-r.done:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-r.done:
			default:
				r.reconnect(err)
			}
			return
		}

		var event ChangeEvent
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		r.dispatch(&event)
	}
}

// reconnect dials again after the read loop loses the connection, rejoining
// every watched topic. Gives up after maxReconnects attempts and reports the
// last error through OnDisconnect.
func (r *Realtime) reconnect(cause error) {
	wait := r.reconnectWait
	for attempt := 0; attempt < r.maxReconnects; attempt++ {
		select {
		case <-r.done:
			return
		case <-time.After(wait):
		}
		if wait < 30*time.Second {
			wait *= 2
		}

		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.Dial(r.wsURL, nil)
		if err != nil {
			cause = err
			continue
		}

		r.mu.Lock()
		select {
		case <-r.done:
			// Closed while dialing; drop the fresh connection.
			r.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		r.conn = conn
		for topic := range r.handlers {
			joinRef := r.nextRefLocked()
			r.joinRefs[topic] = joinRef
			join := phxMessage{Topic: topic, Event: "phx_join", Payload: map[string]interface{}{}, Ref: joinRef, JoinRef: joinRef}
			_ = conn.WriteJSON(join)
		}
		r.mu.Unlock()

		go r.readLoop(conn)
		return
	}

	if r.OnDisconnect != nil {
		r.OnDisconnect(cause)
	}
}

func (r *Realtime) dispatch(event *ChangeEvent) {
	r.mu.Lock()
	handlers := append([]ChangeHandler(nil), r.handlers[event.Topic]...)
	r.mu.Unlock()

	for _, h := range handlers {
		go h(event)
	}
}

func (r *Realtime) heartbeatLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.conn != nil {
				beat := phxMessage{Topic: "phoenix", Event: "heartbeat", Payload: map[string]interface{}{}, Ref: r.nextRefLocked()}
				_ = r.conn.WriteJSON(beat)
			}
			r.mu.Unlock()
		}
	}
}
