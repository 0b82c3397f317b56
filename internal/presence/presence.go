package presence

import (
	"errors"
	"sync"

	"github.com/example/service-matching/internal/protocol"
)

// ErrNoSession is returned when a party has no live connection. Callers
// treat it as "offline", never as a fault of their own round.
var ErrNoSession = errors.New("no live session")

// Conn is the subset of a websocket connection the registry needs.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session is one authenticated network connection. Writes are
// serialized per session; gorilla/websocket allows one writer at a time.
type Session struct {
	Token string
	mu    sync.Mutex
	conn  Conn
}

func NewSession(token string, conn Conn) *Session {
	return &Session{Token: token, conn: conn}
}

// Send wraps the payload in an event envelope and writes it.
func (s *Session) Send(event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(env)
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Registry maps connection tokens to sessions and party ids to
// connection tokens. Party bindings are last-write-wins so a reconnect
// simply overwrites the stale entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	parties  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		parties:  make(map[string]string),
	}
}

func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
}

// Remove drops the session and any party bindings that point at it.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
	for party, t := range r.parties {
		if t == token {
			delete(r.parties, party)
		}
	}
}

// Bind associates a party id with a connection. An existing binding for
// the same party is overwritten.
func (r *Registry) Bind(partyID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[token]; !ok {
		return
	}
	r.parties[partyID] = token
}

// Session returns the live session for a party, if any.
func (r *Registry) Session(partyID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	token, ok := r.parties[partyID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[token]
	return s, ok
}

// SendTo delivers one event to one party. ErrNoSession when offline.
func (r *Registry) SendTo(partyID, event string, payload any) error {
	s, ok := r.Session(partyID)
	if !ok {
		return ErrNoSession
	}
	return s.Send(event, payload)
}

// SendToConn delivers one event to one connection by token.
func (r *Registry) SendToConn(token, event string, payload any) error {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.Send(event, payload)
}

// Broadcast sends the event to every live connection, best effort.
func (r *Registry) Broadcast(event string, payload any) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()
	for _, s := range sessions {
		_ = s.Send(event, payload)
	}
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
