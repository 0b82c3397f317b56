package relay

import (
	"log/slog"
	"sync"

	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/protocol"
)

// Registry is the presence surface the relay routes through.
// presence.Registry implements it.
type Registry interface {
	SendTo(partyID, event string, payload any) error
	SendToConn(token, event string, payload any) error
	Bind(partyID, token string)
}

// Relay forwards chat and call-signaling traffic between the two
// parties of a started engagement. Payloads are opaque; the relay never
// interprets them. Nothing is persisted or acknowledged.
type Relay struct {
	reg    Registry
	logger *slog.Logger

	mu     sync.Mutex
	rooms  map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
}

func New(reg Registry, logger *slog.Logger) *Relay {
	return &Relay{
		reg:    reg,
		logger: logger,
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// JoinRoom adds the connection to a chat room, conventionally named by
// the provisioned job id.
func (r *Relay) JoinRoom(connToken, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	members[connToken] = struct{}{}

	joined, ok := r.byConn[connToken]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[connToken] = joined
	}
	joined[room] = struct{}{}
}

// LeaveAll removes a disconnected connection from every room it joined.
func (r *Relay) LeaveAll(connToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[connToken] {
		delete(r.rooms[room], connToken)
		if len(r.rooms[room]) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.byConn, connToken)
}

// SendMessage fans a chat message out to every member of the room.
func (r *Relay) SendMessage(p protocol.SendMessage) {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.rooms[p.RoomName]))
	for t := range r.rooms[p.RoomName] {
		tokens = append(tokens, t)
	}
	r.mu.Unlock()

	out := protocol.NewMessage{RoomName: p.RoomName, Message: p.Message}
	for _, t := range tokens {
		if err := r.reg.SendToConn(t, protocol.EvNewMessage, out); err != nil {
			r.logger.Debug("room member unreachable", "room", p.RoomName)
		}
	}
	observability.RelayedTotal.WithLabelValues("chat").Inc()
}

// JoinCall registers the party for direct signaling delivery.
func (r *Relay) JoinCall(partyID, connToken string) {
	r.reg.Bind(partyID, connToken)
}

// CallUser relays a call offer to the target party.
func (r *Relay) CallUser(p protocol.CallUser) {
	out := protocol.IncomingCall{From: p.From, FromID: p.FromID, Offer: p.Offer}
	r.deliver(p.TargetID, protocol.EvIncomingCall, out, "call")
}

// Signal relays an ICE candidate or answer blob to the target party.
func (r *Relay) Signal(p protocol.Signal) {
	out := protocol.SignalOut{Type: p.Type, Candidate: p.Candidate, Answer: p.Answer}
	r.deliver(p.TargetID, protocol.EvSignal, out, "signal")
}

// CallAccepted relays the callee's answer back to the caller.
func (r *Relay) CallAccepted(p protocol.CallAccepted) {
	r.deliver(p.TargetID, protocol.EvCallAccepted, protocol.CallAnswer{Answer: p.Answer}, "call")
}

// CallRejected tells the caller the callee declined.
func (r *Relay) CallRejected(p protocol.CallRejected) {
	r.deliver(p.TargetID, protocol.EvCallRejected, nil, "call")
}

// CallEnded notifies both parties. A party without a live presence
// entry is simply skipped; its absence is not an error for the other.
func (r *Relay) CallEnded(p protocol.CallEnded) {
	for _, id := range []string{p.SeekerID, p.ResponderID} {
		if id == "" {
			continue
		}
		r.deliver(id, protocol.EvCallEndedSignal, nil, "call")
	}
}

func (r *Relay) deliver(partyID, event string, payload any, kind string) {
	if err := r.reg.SendTo(partyID, event, payload); err != nil {
		r.logger.Debug("signaling target offline", "party", partyID, "event", event)
		return
	}
	observability.RelayedTotal.WithLabelValues(kind).Inc()
}
