package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/example/service-matching/internal/presence"
	"github.com/example/service-matching/internal/protocol"
)

type sent struct {
	target  string
	event   string
	payload any
}

type fakeRegistry struct {
	online   map[string]bool
	toParty  []sent
	toConn   []sent
	bindings map[string]string
}

func newFakeRegistry(online ...string) *fakeRegistry {
	f := &fakeRegistry{online: make(map[string]bool), bindings: make(map[string]string)}
	for _, id := range online {
		f.online[id] = true
	}
	return f
}

func (f *fakeRegistry) SendTo(partyID, event string, payload any) error {
	if !f.online[partyID] {
		return presence.ErrNoSession
	}
	f.toParty = append(f.toParty, sent{partyID, event, payload})
	return nil
}

func (f *fakeRegistry) SendToConn(token, event string, payload any) error {
	if !f.online[token] {
		return presence.ErrNoSession
	}
	f.toConn = append(f.toConn, sent{token, event, payload})
	return nil
}

func (f *fakeRegistry) Bind(partyID, token string) { f.bindings[partyID] = token }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestChatFansOutToRoomMembersOnly(t *testing.T) {
	reg := newFakeRegistry("c1", "c2", "c3")
	r := New(reg, quiet())
	r.JoinRoom("c1", "job-9")
	r.JoinRoom("c2", "job-9")
	r.JoinRoom("c3", "job-other")

	r.SendMessage(protocol.SendMessage{RoomName: "job-9", Message: "on my way"})

	if len(reg.toConn) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(reg.toConn))
	}
	for _, s := range reg.toConn {
		if s.target == "c3" {
			t.Fatal("message leaked outside the room")
		}
		if s.event != protocol.EvNewMessage {
			t.Fatalf("unexpected event %s", s.event)
		}
	}
}

func TestLeaveAllRemovesMembership(t *testing.T) {
	reg := newFakeRegistry("c1", "c2")
	r := New(reg, quiet())
	r.JoinRoom("c1", "job-9")
	r.JoinRoom("c2", "job-9")
	r.LeaveAll("c1")

	r.SendMessage(protocol.SendMessage{RoomName: "job-9", Message: "hello"})
	if len(reg.toConn) != 1 || reg.toConn[0].target != "c2" {
		t.Fatalf("expected only c2 to receive, got %+v", reg.toConn)
	}
}

func TestSignalRelayedOpaque(t *testing.T) {
	reg := newFakeRegistry("seeker-1")
	r := New(reg, quiet())

	blob := json.RawMessage(`{"sdpMid":"0","candidate":"candidate:1"}`)
	r.Signal(protocol.Signal{TargetID: "seeker-1", Type: "candidate", Candidate: blob})

	if len(reg.toParty) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(reg.toParty))
	}
	out, ok := reg.toParty[0].payload.(protocol.SignalOut)
	if !ok {
		t.Fatalf("unexpected payload type %T", reg.toParty[0].payload)
	}
	if string(out.Candidate) != string(blob) {
		t.Fatal("candidate blob must pass through untouched")
	}
}

func TestCallUserOfflineTargetIsQuiet(t *testing.T) {
	reg := newFakeRegistry()
	r := New(reg, quiet())
	r.CallUser(protocol.CallUser{TargetID: "nobody", From: "A", FromID: "a1"})
	if len(reg.toParty) != 0 {
		t.Fatalf("expected no deliveries, got %+v", reg.toParty)
	}
}

func TestCallEndedReachesBothPresentParties(t *testing.T) {
	reg := newFakeRegistry("seeker-1")
	r := New(reg, quiet())

	r.CallEnded(protocol.CallEnded{SeekerID: "seeker-1", ResponderID: "responder-1"})

	if len(reg.toParty) != 1 {
		t.Fatalf("expected delivery to the one online party, got %d", len(reg.toParty))
	}
	if reg.toParty[0].target != "seeker-1" || reg.toParty[0].event != protocol.EvCallEndedSignal {
		t.Fatalf("unexpected delivery: %+v", reg.toParty[0])
	}
}

func TestJoinCallBindsPresence(t *testing.T) {
	reg := newFakeRegistry()
	r := New(reg, quiet())
	r.JoinCall("responder-1", "conn-7")
	if reg.bindings["responder-1"] != "conn-7" {
		t.Fatalf("expected binding, got %+v", reg.bindings)
	}
}
