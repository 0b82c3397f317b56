package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/example/service-matching/internal/auth"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/presence"
	"github.com/example/service-matching/internal/protocol"
)

var errIdentityMismatch = errors.New("payload identity does not match the authenticated party")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS authenticates the connection attempt, upgrades it, and runs
// the connection's event loop until disconnect. Events from one
// connection are processed strictly in receipt order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	refresh := r.URL.Query().Get("refreshToken")

	res, err := s.auth.Authenticate(r.Context(), token, refresh)
	if err != nil {
		s.logger.Warn("connection refused", "error", err, "remote_addr", remoteIP(r))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := presence.NewSession(newID(), conn)
	s.registry.Add(sess)
	s.registry.Bind(res.Identity.PartyID, sess.Token)
	observability.ConnectionsActive.Inc()
	s.logger.Info("connection admitted", "party", res.Identity.PartyID, "conn", sess.Token)

	if res.Renewed != nil {
		if err := sess.Send(protocol.EvCredentialsRenewed, *res.Renewed); err != nil {
			s.logger.Warn("renewed credentials push failed", "party", res.Identity.PartyID)
		}
	}

	s.readLoop(r.Context(), sess, conn, res.Identity)
}

func (s *Server) readLoop(ctx context.Context, sess *presence.Session, conn *websocket.Conn, id auth.Identity) {
	defer func() {
		s.registry.Remove(sess.Token)
		s.relay.LeaveAll(sess.Token)
		observability.ConnectionsActive.Dec()
		_ = sess.Close()
		s.logger.Info("connection closed", "party", id.PartyID, "conn", sess.Token)
	}()

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read error", "conn", sess.Token, "error", err)
			}
			return
		}
		s.dispatch(ctx, sess, id, env)
	}
}

// dispatch routes one inbound envelope. Handler errors that matter to
// the caller go back as an error event; dropped reports stay silent.
// Events that name the acting party must name the authenticated one;
// otherwise any admitted connection could steal another party's
// delivery route.
func (s *Server) dispatch(ctx context.Context, sess *presence.Session, id auth.Identity, env protocol.Envelope) {
	switch env.Event {
	case protocol.EvServiceRequest:
		var p protocol.ServiceRequest
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if p.SeekerID != id.PartyID {
			s.sendError(sess, errIdentityMismatch)
			return
		}
		s.registry.Bind(p.SeekerID, sess.Token)
		if err := s.coordinator.RequestMatch(ctx, p); err != nil {
			s.sendError(sess, err)
		}

	case protocol.EvResponderLocation:
		var p protocol.ResponderLocation
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if p.ResponderID != id.PartyID {
			s.sendError(sess, errIdentityMismatch)
			return
		}
		s.registry.Bind(p.ResponderID, sess.Token)
		// unmatched or out-of-radius reports have no observable effect
		if err := s.coordinator.ReportLocation(ctx, p); err != nil {
			s.logger.Debug("location report not matched", "responder", p.ResponderID, "reason", err)
		}

	case protocol.EvResponderOnline:
		var p protocol.ResponderAvailability
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if p.ResponderID != id.PartyID {
			s.sendError(sess, errIdentityMismatch)
			return
		}
		s.registry.Bind(p.ResponderID, sess.Token)
		if err := s.directory.MarkAvailable(ctx, p.ResponderID, p.Category); err != nil {
			s.logger.Error("directory update failed", "responder", p.ResponderID, "error", err)
		}

	case protocol.EvResponderOffline:
		var p protocol.ResponderAvailability
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if p.ResponderID != id.PartyID {
			s.sendError(sess, errIdentityMismatch)
			return
		}
		if err := s.directory.MarkUnavailable(ctx, p.ResponderID, p.Category); err != nil {
			s.logger.Error("directory update failed", "responder", p.ResponderID, "error", err)
		}

	case protocol.EvAcceptService:
		var p protocol.AcceptService
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if _, err := s.handshake.Accept(ctx, p); err != nil {
			s.sendError(sess, err)
		}

	case protocol.EvUserConfirmation:
		var p protocol.UserConfirmation
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if err := s.handshake.SeekerConfirm(ctx, p.JobID); err != nil {
			s.sendError(sess, err)
		}

	case protocol.EvOTPVerified:
		var p protocol.OTPVerified
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if err := s.handshake.VerifyAuthorization(ctx, p); err != nil {
			s.sendError(sess, err)
		}

	case protocol.EvEndJob:
		var p protocol.EndJob
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if err := s.handshake.EndJob(ctx, p.JobID); err != nil {
			s.sendError(sess, err)
		}

	case protocol.EvJoinRoom:
		var p protocol.JoinRoom
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.JoinRoom(sess.Token, p.RoomName)

	case protocol.EvSendMessage:
		var p protocol.SendMessage
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.SendMessage(p)

	case protocol.EvJoinCall:
		var p protocol.JoinCall
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		if p.PartyID != id.PartyID {
			s.sendError(sess, errIdentityMismatch)
			return
		}
		s.relay.JoinCall(p.PartyID, sess.Token)

	case protocol.EvCallUser:
		var p protocol.CallUser
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.CallUser(p)

	case protocol.EvSignal:
		var p protocol.Signal
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.Signal(p)

	case protocol.EvCallAccepted:
		var p protocol.CallAccepted
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.CallAccepted(p)

	case protocol.EvCallRejected:
		var p protocol.CallRejected
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.CallRejected(p)

	case protocol.EvCallEnded:
		var p protocol.CallEnded
		if err := env.Decode(&p); err != nil {
			s.sendError(sess, err)
			return
		}
		s.relay.CallEnded(p)

	default:
		s.logger.Warn("unknown event", "event", env.Event, "conn", sess.Token)
		s.sendError(sess, errors.New("unknown event: "+env.Event))
	}
}

func (s *Server) sendError(sess *presence.Session, err error) {
	if sendErr := sess.Send(protocol.EvError, protocol.ErrorMessage{Message: err.Error()}); sendErr != nil {
		s.logger.Debug("error notice undeliverable", "conn", sess.Token)
	}
}
