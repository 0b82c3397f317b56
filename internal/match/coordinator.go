package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/service-matching/internal/directory"
	"github.com/example/service-matching/internal/geo"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/observability"
	"github.com/example/service-matching/internal/payments"
	"github.com/example/service-matching/internal/protocol"
)

// Notifier delivers events to parties and connections. The presence
// registry implements it.
type Notifier interface {
	Broadcast(event string, payload any)
	SendTo(partyID, event string, payload any) error
}

// ProfileFetcher looks up the seeker profile attached to an offer.
type ProfileFetcher interface {
	GetProfileSummary(ctx context.Context, partyID string) (models.ProfileSummary, error)
}

// Directions resolves road distance. Optional; when absent the
// great-circle distance stands.
type Directions interface {
	GetRouteDistance(ctx context.Context, origin, destination models.Coord) (float64, error)
}

// Publisher emits engagement lifecycle events for external archiving.
type Publisher interface {
	PublishTransition(ev models.EngagementEvent) error
}

// Coordinator runs discovery rounds: broadcast for candidates, filter
// location reports by proximity, and publish the first qualifying
// responder's offer. One live round per seeker; rounds never share
// state.
type Coordinator struct {
	st         *state
	notifier   Notifier
	directory  directory.Directory
	profiles   ProfileFetcher
	directions Directions
	events     Publisher
	payments   payments.Client
	logger     *slog.Logger

	RadiusKm float64
	Window   time.Duration
}

func NewCoordinator(n Notifier, d directory.Directory, p ProfileFetcher, events Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		st:        newState(),
		notifier:  n,
		directory: d,
		profiles:  p,
		events:    events,
		logger:    logger,
		RadiusKm:  5,
		Window:    20 * time.Second,
	}
}

// WithDirections enables road-distance refinement. A routing failure
// then fails the report closed instead of falling back to haversine.
func (c *Coordinator) WithDirections(d Directions) *Coordinator {
	c.directions = d
	return c
}

// WithPayments lets abandonment release any payment hold.
func (c *Coordinator) WithPayments(p payments.Client) *Coordinator {
	c.payments = p
	return c
}

// RequestMatch opens (or supersedes) the seeker's discovery round and
// broadcasts the available candidate set. If nothing qualifies before
// the window elapses the seeker is told and the round is abandoned.
// A seeker still inside an unfinished engagement is rejected up front
// rather than left waiting on a round that can never produce an offer.
func (c *Coordinator) RequestMatch(ctx context.Context, p protocol.ServiceRequest) error {
	if c.st.seekerEngaged(p.SeekerID) {
		return ErrAlreadyEngaged
	}
	req := models.MatchRequest{
		SeekerID:  p.SeekerID,
		Location:  p.Location,
		Category:  p.Category,
		Notes:     p.Notes,
		CreatedAt: time.Now(),
	}
	c.st.putRequest(req)
	observability.MatchRoundsTotal.Inc()

	ids, err := c.directory.ListAvailable(ctx, p.Category)
	if err != nil {
		c.logger.Error("responder directory lookup failed", "category", p.Category, "error", err)
	}
	if len(ids) > 0 {
		c.notifier.Broadcast(protocol.EvCandidatesAvailable, protocol.CandidatesAvailable{
			SeekerID:     p.SeekerID,
			ResponderIDs: ids,
		})
	} else {
		c.logger.Info("no responders available for category", "category", p.Category, "seeker", p.SeekerID)
	}

	createdAt := req.CreatedAt
	timer := time.AfterFunc(c.Window, func() {
		c.expire(p.SeekerID, createdAt)
	})
	c.st.setTimer(p.SeekerID, timer)
	return nil
}

func (c *Coordinator) expire(seekerID string, createdAt time.Time) {
	if !c.st.dropRequestIf(seekerID, createdAt) {
		return
	}
	observability.NoCandidatesTotal.Inc()
	c.logger.Info("discovery window elapsed with no candidates", "seeker", seekerID)
	if err := c.notifier.SendTo(seekerID, protocol.EvNoCandidates, nil); err != nil {
		c.logger.Debug("seeker offline for no-candidates notice", "seeker", seekerID)
	}
}

// ReportLocation handles one responder's answer to a broadcast. The
// first report inside the radius wins the round; later reports for the
// same seeker, and reports for unknown rounds, are dropped without
// observable effect.
func (c *Coordinator) ReportLocation(ctx context.Context, p protocol.ResponderLocation) error {
	req, err := c.resolveRequest(p)
	if err != nil {
		c.logger.Debug("location report dropped", "responder", p.ResponderID, "reason", err)
		return err
	}
	if _, matched := c.st.engagementBySeeker(req.SeekerID); matched {
		return nil
	}

	loc := models.Coord{Lat: p.Lat, Lng: p.Lng}
	distance := geo.HaversineKm(req.Location, loc)
	if distance > c.RadiusKm {
		return nil
	}
	if c.directions != nil {
		meters, err := c.directions.GetRouteDistance(ctx, req.Location, loc)
		if err != nil {
			c.logger.Warn("route lookup failed, report fails closed", "responder", p.ResponderID, "error", err)
			return &RoutingError{Err: err}
		}
		distance = meters / 1000
	}

	profile, err := c.profiles.GetProfileSummary(ctx, req.SeekerID)
	if err != nil {
		c.logger.Error("seeker profile lookup failed", "seeker", req.SeekerID, "error", err)
		return err
	}

	now := time.Now()
	e := &models.Engagement{
		SeekerID:          req.SeekerID,
		ResponderID:       p.ResponderID,
		Category:          req.Category,
		Notes:             req.Notes,
		SeekerLocation:    req.Location,
		ResponderLocation: loc,
		DistanceKm:        distance,
		Seeker:            profile,
		State:             models.StateOffered,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !c.st.createEngagement(e) {
		// another report won while this one was in flight
		return nil
	}

	observability.OffersTotal.Inc()
	c.publish(e)
	c.notifier.Broadcast(protocol.EvOfferAvailable, c.st.view(e))
	return nil
}

func (c *Coordinator) resolveRequest(p protocol.ResponderLocation) (models.MatchRequest, error) {
	if p.SeekerID != "" {
		req, ok := c.st.liveRequest(p.SeekerID)
		if !ok {
			return models.MatchRequest{}, ErrNoLiveRequest
		}
		return req, nil
	}
	req, ok := c.st.soleLiveRequest()
	if !ok {
		return models.MatchRequest{}, ErrAmbiguousRequest
	}
	return req, nil
}

// SweepStale abandons engagements stuck before Started for longer than
// maxAge. Disconnected pairs are cleaned up here rather than lingering
// forever.
func (c *Coordinator) SweepStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	swept := 0
	for _, e := range c.st.stale(cutoff) {
		if !c.abandon(e, "no progress before start") {
			continue
		}
		swept++
	}
	return swept
}

func (c *Coordinator) abandon(e *models.Engagement, reason string) bool {
	c.st.mu.Lock()
	if e.State.Terminal() || e.State == models.StateStarted {
		c.st.mu.Unlock()
		return false
	}
	e.State = models.StateAbandoned
	e.UpdatedAt = time.Now()
	c.st.mu.Unlock()

	c.st.remove(e)
	if c.payments != nil && e.PaymentHoldID != "" {
		if err := c.payments.Cancel(context.Background(), e.PaymentHoldID); err != nil {
			c.logger.Warn("payment hold release failed", "hold", e.PaymentHoldID, "error", err)
		}
	}
	c.publish(e)
	payload := protocol.Abandoned{Reason: reason}
	for _, party := range []string{e.SeekerID, e.ResponderID} {
		if err := c.notifier.SendTo(party, protocol.EvAbandoned, payload); err != nil {
			c.logger.Debug("party offline for abandonment notice", "party", party)
		}
	}
	c.logger.Info("engagement abandoned", "seeker", e.SeekerID, "responder", e.ResponderID, "reason", reason)
	return true
}

func (c *Coordinator) publish(e *models.Engagement) {
	if c.events == nil {
		return
	}
	v := c.st.view(e)
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
	if err := c.events.PublishTransition(ev); err != nil {
		c.logger.Warn("lifecycle event publish failed", "state", v.State, "error", err)
	}
}
