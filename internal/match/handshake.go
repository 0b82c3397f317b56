package match

import (
	"context"
	"crypto/rand"
	"log/slog"
	"math/big"
	"time"

	"github.com/example/service-matching/internal/directory"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/payments"
	"github.com/example/service-matching/internal/protocol"
)

// Provisioner creates and starts jobs on the external job-provisioning
// service.
type Provisioner interface {
	CreateJob(ctx context.Context, snap models.EngagementSnapshot) (string, error)
	StartJob(ctx context.Context, jobID string) (string, error)
}

// Handshake drives a matched pair from the accepted offer through
// provisioning, mutual confirmation, and authorization-code verified
// start. It shares the coordinator's engagement table.
type Handshake struct {
	st          *state
	notifier    Notifier
	directory   directory.Directory
	provisioner Provisioner
	payments    payments.Client
	events      Publisher
	logger      *slog.Logger
	currency    string
	newCode     func() int
}

// NewHandshake wires the handshake onto an existing coordinator.
// Payments may be nil; the hold lifecycle is then skipped.
func NewHandshake(c *Coordinator, prov Provisioner, pay payments.Client) *Handshake {
	return &Handshake{
		st:          c.st,
		notifier:    c.notifier,
		directory:   c.directory,
		provisioner: prov,
		payments:    pay,
		events:      c.events,
		logger:      c.logger,
		currency:    "usd",
		newCode:     newAuthorizationCode,
	}
}

// Accept consumes a responder's acceptance of the published offer.
// An engagement already provisioned is returned as-is without a second
// provisioning call; a provisioning failure leaves the offer intact so
// the responder can retry.
func (h *Handshake) Accept(ctx context.Context, p protocol.AcceptService) (models.Engagement, error) {
	h.st.mu.Lock()
	e, ok := h.st.byResponder[p.ResponderID]
	if !ok {
		h.st.mu.Unlock()
		return models.Engagement{}, ErrUnknownEngagement
	}
	switch e.State {
	case models.StateProvisioned:
		v := *e
		h.st.mu.Unlock()
		return v, nil
	case models.StateOffered:
		e.State = models.StateAccepted
		e.TotalAmount = p.TotalAmount
		e.RatePerHour = p.RatePerHour
		e.AuthorizationCode = h.newCode()
		e.UpdatedAt = time.Now()
	default:
		h.st.mu.Unlock()
		return models.Engagement{}, ErrBadState
	}
	snap := e.Snapshot()
	h.st.mu.Unlock()

	if err := h.directory.MarkUnavailable(ctx, e.ResponderID, e.Category); err != nil {
		h.logger.Warn("directory mark-unavailable failed", "responder", e.ResponderID, "error", err)
	}

	jobID, err := h.provisioner.CreateJob(ctx, snap)
	if err != nil {
		h.logger.Error("job creation failed, offer held for retry", "responder", e.ResponderID, "error", err)
		h.st.transition(e, models.StateAccepted, models.StateOffered)
		return models.Engagement{}, &ProvisioningError{Op: "create", Err: err}
	}

	h.st.mu.Lock()
	e.State = models.StateProvisioned
	e.ProvisionedJobID = jobID
	e.UpdatedAt = time.Now()
	h.st.byJob[jobID] = e
	v := *e
	h.st.mu.Unlock()

	h.holdPayment(ctx, e)
	observability.ProvisionedTotal.Inc()
	h.publish(e)
	notice := protocol.JobConfirmation{JobID: jobID, ResponderID: v.ResponderID}
	h.notifyPair(v.SeekerID, v.ResponderID, protocol.EvJobConfirmation, notice)
	return v, nil
}

// SeekerConfirm records the seeker's confirmation of the provisioned
// job and tells the responder.
func (h *Handshake) SeekerConfirm(ctx context.Context, jobID string) error {
	e, ok := h.st.engagementByJob(jobID)
	if !ok {
		return ErrUnknownEngagement
	}
	if !h.st.transition(e, models.StateProvisioned, models.StateSeekerConfirmed) {
		return ErrBadState
	}
	h.publish(e)
	notice := protocol.JobConfirmed{JobID: jobID, SeekerID: e.SeekerID}
	if err := h.notifier.SendTo(e.ResponderID, protocol.EvJobConfirmed, notice); err != nil {
		h.logger.Debug("responder offline for confirmation notice", "responder", e.ResponderID)
	}
	return nil
}

// VerifyAuthorization checks the one-time code and, on success, asks
// provisioning to start the job. A wrong code or a provisioning failure
// leaves the engagement at SeekerConfirmed.
func (h *Handshake) VerifyAuthorization(ctx context.Context, p protocol.OTPVerified) error {
	e, ok := h.st.engagementByJob(p.JobID)
	if !ok {
		return ErrUnknownEngagement
	}

	h.st.mu.Lock()
	if e.State != models.StateSeekerConfirmed {
		h.st.mu.Unlock()
		return ErrBadState
	}
	if p.ResponderID != "" && p.ResponderID != e.ResponderID {
		h.st.mu.Unlock()
		return ErrUnknownEngagement
	}
	if p.Code != e.AuthorizationCode {
		h.st.mu.Unlock()
		observability.AuthMismatchTotal.Inc()
		return ErrCodeMismatch
	}
	e.State = models.StateAuthVerified
	e.UpdatedAt = time.Now()
	h.st.mu.Unlock()

	if _, err := h.provisioner.StartJob(ctx, p.JobID); err != nil {
		h.logger.Error("job start failed", "job", p.JobID, "error", err)
		h.st.transition(e, models.StateAuthVerified, models.StateSeekerConfirmed)
		return &ProvisioningError{Op: "start", Err: err}
	}
	if !h.st.transition(e, models.StateAuthVerified, models.StateStarted) {
		// abandoned while the start call was in flight
		h.logger.Warn("engagement left verification before start completed", "job", p.JobID)
		return ErrBadState
	}

	observability.StartedTotal.Inc()
	h.capturePayment(ctx, e)
	h.publish(e)
	notice := protocol.StartJob{ResponderID: e.ResponderID, SeekerID: e.SeekerID}
	h.notifyPair(e.SeekerID, e.ResponderID, protocol.EvStartJob, notice)
	return nil
}

// EndJob closes a started engagement. Both parties are told the job is
// over, the responder returns to the available pool, and either party
// may enter a new discovery round afterwards.
func (h *Handshake) EndJob(ctx context.Context, jobID string) error {
	e, ok := h.st.engagementByJob(jobID)
	if !ok {
		return ErrUnknownEngagement
	}
	if !h.st.transition(e, models.StateStarted, models.StateEnded) {
		return ErrBadState
	}
	h.st.remove(e)

	if err := h.directory.MarkAvailable(ctx, e.ResponderID, e.Category); err != nil {
		h.logger.Warn("directory mark-available failed", "responder", e.ResponderID, "error", err)
	}
	h.publish(e)
	h.notifyPair(e.SeekerID, e.ResponderID, protocol.EvJobEnded, protocol.JobEnded{JobID: jobID})
	h.logger.Info("engagement ended", "job", jobID, "seeker", e.SeekerID, "responder", e.ResponderID)
	return nil
}

func (h *Handshake) holdPayment(ctx context.Context, e *models.Engagement) {
	if h.payments == nil {
		return
	}
	v := h.st.view(e)
	holdID, err := h.payments.Hold(ctx, int64(v.TotalAmount*100), h.currency, v.SeekerID)
	if err != nil {
		h.logger.Warn("payment hold failed", "seeker", v.SeekerID, "error", err)
		return
	}
	h.st.mu.Lock()
	e.PaymentHoldID = holdID
	h.st.mu.Unlock()
}

func (h *Handshake) capturePayment(ctx context.Context, e *models.Engagement) {
	if h.payments == nil {
		return
	}
	v := h.st.view(e)
	if v.PaymentHoldID == "" {
		return
	}
	if err := h.payments.Capture(ctx, v.PaymentHoldID); err != nil {
		h.logger.Warn("payment capture failed", "hold", v.PaymentHoldID, "error", err)
	}
}

func (h *Handshake) notifyPair(seekerID, responderID, event string, payload any) {
	for _, party := range []string{seekerID, responderID} {
		if err := h.notifier.SendTo(party, event, payload); err != nil {
			h.logger.Debug("party offline for handshake notice", "party", party, "event", event)
		}
	}
}

func (h *Handshake) publish(e *models.Engagement) {
	if h.events == nil {
		return
	}
	v := h.st.view(e)
	ev := models.EngagementEvent{
		JobID:       v.ProvisionedJobID,
		SeekerID:    v.SeekerID,
		ResponderID: v.ResponderID,
		Category:    v.Category,
		State:       v.State,
		DistanceKm:  v.DistanceKm,
		TotalAmount: v.TotalAmount,
		At:          time.Now(),
	}
	if err := h.events.PublishTransition(ev); err != nil {
		h.logger.Warn("lifecycle event publish failed", "state", v.State, "error", err)
	}
}

// newAuthorizationCode draws a uniform 6-digit code from crypto/rand.
func newAuthorizationCode() int {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		// rand.Reader failing means the process is in far worse trouble
		return 100000
	}
	return int(n.Int64()) + 100000
}
