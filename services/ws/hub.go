package wssvc

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/trezcool/edusense/core"
)

// sendBufSize bounds each session's outbound queue. A session that cannot
// drain in time loses frames rather than stalling the hub.
const sendBufSize = 16

type (
	// envelope is the wire frame: {"event": ..., "data": ...}.
	envelope struct {
		Event string      `json:"event"`
		Data  interface{} `json:"data"`
	}

	// joinFrame is the single inbound control frame a client may send to
	// bind its connection to an identity for targeted pushes.
	joinFrame struct {
		Event    string `json:"event"`
		Identity string `json:"identity"`
	}

	session struct {
		hub      *Hub
		conn     *websocket.Conn
		send     chan envelope
		identity string // set on join; guarded by hub.mu
	}

	// Hub fans events out to connected websocket sessions. Broadcast reaches
	// every session; Notify reaches only sessions joined under the identity.
	// Delivery is fire-and-forget: no acks, no replay for late joiners.
	Hub struct {
		logger   core.Logger
		upgrader websocket.Upgrader

		mu         sync.RWMutex
		sessions   map[*session]struct{}
		byIdentity map[string]map[*session]struct{}
	}
)

var _ core.Notifier = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// auth happens at the API layer before the upgrade
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions:   make(map[*session]struct{}),
		byIdentity: make(map[string]map[*session]struct{}),
	}
}

// Broadcast queues the event on every connected session. Slow sessions drop
// the frame; the caller is never blocked.
func (h *Hub) Broadcast(event string, payload interface{}) {
	env := envelope{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sess := range h.sessions {
		sess.enqueue(env)
	}
}

// Notify queues the event on the sessions joined under identityID. No-op when
// the identity has no live session.
func (h *Hub) Notify(identityID, event string, payload interface{}) {
	env := envelope{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sess := range h.byIdentity[identityID] {
		sess.enqueue(env)
	}
}

// ServeHTTP upgrades the request and runs the session until the peer goes
// away. Mountable as-is on any router.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", err)
		return
	}

	sess := &session{
		hub:  h,
		conn: conn,
		send: make(chan envelope, sendBufSize),
	}
	h.register(sess)

	go sess.writeLoop()
	sess.readLoop()
}

// SessionCount reports live sessions; used by the debug endpoints.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) register(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[sess] = struct{}{}
}

func (h *Hub) unregister(sess *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, sess)
	if sess.identity != "" {
		if peers := h.byIdentity[sess.identity]; peers != nil {
			delete(peers, sess)
			if len(peers) == 0 {
				delete(h.byIdentity, sess.identity)
			}
		}
	}
	close(sess.send)
}

func (h *Hub) join(sess *session, identity string) {
	if identity == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// re-join moves the session to the new identity
	if sess.identity != "" {
		if peers := h.byIdentity[sess.identity]; peers != nil {
			delete(peers, sess)
			if len(peers) == 0 {
				delete(h.byIdentity, sess.identity)
			}
		}
	}
	sess.identity = identity
	peers, ok := h.byIdentity[identity]
	if !ok {
		peers = make(map[*session]struct{})
		h.byIdentity[identity] = peers
	}
	peers[sess] = struct{}{}
}

// enqueue drops the frame when the session buffer is full. Must be called
// with hub.mu held (read or write).
func (s *session) enqueue(env envelope) {
	select {
	case s.send <- env:
	default:
		s.hub.logger.Debug("ws: dropping frame for slow session", env.Event)
	}
}

func (s *session) readLoop() {
	defer func() {
		s.hub.unregister(s)
		_ = s.conn.Close()
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame joinFrame
		if err = json.Unmarshal(raw, &frame); err != nil {
			continue // unknown frames are ignored
		}
		if frame.Event == "join" {
			s.hub.join(s, frame.Identity)
		}
	}
}

func (s *session) writeLoop() {
	for env := range s.send {
		if err := s.conn.WriteJSON(env); err != nil {
			_ = s.conn.Close()
			// readLoop notices the closed conn and unregisters
			for range s.send {
			}
			return
		}
	}
}
