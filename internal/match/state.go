package match

import (
	"sync"
	"time"

	"github.com/example/service-matching/internal/models"
)

// state is the shared in-flight table for the coordinator and the
// handshake. Everything is keyed per seeker (and per responder and job
// once matched) so concurrent rounds never touch each other; the single
// mutex makes "check and create" one indivisible step.
type state struct {
	mu          sync.Mutex
	requests    map[string]models.MatchRequest
	bySeeker    map[string]*models.Engagement
	byResponder map[string]*models.Engagement
	byJob       map[string]*models.Engagement
	timers      map[string]*time.Timer
}

func newState() *state {
	return &state{
		requests:    make(map[string]models.MatchRequest),
		bySeeker:    make(map[string]*models.Engagement),
		byResponder: make(map[string]*models.Engagement),
		byJob:       make(map[string]*models.Engagement),
		timers:      make(map[string]*time.Timer),
	}
}

// putRequest stores a seeker's request, superseding any prior live one,
// and cancels that prior round's discovery timer.
func (s *state) putRequest(req models.MatchRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[req.SeekerID]; ok {
		t.Stop()
		delete(s.timers, req.SeekerID)
	}
	s.requests[req.SeekerID] = req
}

func (s *state) liveRequest(seekerID string) (models.MatchRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[seekerID]
	return req, ok
}

// soleLiveRequest returns the only live request, if exactly one exists.
// Used to associate legacy reports that carry no seeker id.
func (s *state) soleLiveRequest() (models.MatchRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) != 1 {
		return models.MatchRequest{}, false
	}
	for _, req := range s.requests {
		return req, true
	}
	return models.MatchRequest{}, false
}

// dropRequestIf removes the request only if it is still the one created
// at the given instant. The discovery timer fires through this so a
// superseding request is never expired by its predecessor's timer.
func (s *state) dropRequestIf(seekerID string, createdAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[seekerID]
	if !ok || !req.CreatedAt.Equal(createdAt) {
		return false
	}
	if _, matched := s.bySeeker[seekerID]; matched {
		return false
	}
	delete(s.requests, seekerID)
	delete(s.timers, seekerID)
	return true
}

// createEngagement is the atomic check-and-create behind "first
// qualifying report wins". It refuses when either party already has a
// non-terminal engagement, consumes the seeker's live request, and
// stops the discovery timer.
func (s *state) createEngagement(e *models.Engagement) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.bySeeker[e.SeekerID]; ok && !cur.State.Terminal() {
		return false
	}
	if cur, ok := s.byResponder[e.ResponderID]; ok && !cur.State.Terminal() {
		return false
	}
	s.bySeeker[e.SeekerID] = e
	s.byResponder[e.ResponderID] = e
	delete(s.requests, e.SeekerID)
	if t, ok := s.timers[e.SeekerID]; ok {
		t.Stop()
		delete(s.timers, e.SeekerID)
	}
	return true
}

// seekerEngaged reports whether the seeker is in a non-terminal
// engagement and thus cannot open a new discovery round.
func (s *state) seekerEngaged(seekerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bySeeker[seekerID]
	return ok && !e.State.Terminal()
}

func (s *state) engagementBySeeker(seekerID string) (*models.Engagement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.bySeeker[seekerID]
	return e, ok
}

func (s *state) engagementByResponder(responderID string) (*models.Engagement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byResponder[responderID]
	return e, ok
}

func (s *state) engagementByJob(jobID string) (*models.Engagement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byJob[jobID]
	return e, ok
}

func (s *state) indexJob(jobID string, e *models.Engagement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byJob[jobID] = e
}

// transition advances an engagement from one state to another as a
// single compare-and-set. It fails without side effects when the
// engagement is not in the expected state.
func (s *state) transition(e *models.Engagement, from, to models.EngagementState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.State != from {
		return false
	}
	e.State = to
	e.UpdatedAt = time.Now()
	return true
}

// remove detaches a terminal engagement from every index.
func (s *state) remove(e *models.Engagement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.bySeeker[e.SeekerID]; ok && cur == e {
		delete(s.bySeeker, e.SeekerID)
	}
	if cur, ok := s.byResponder[e.ResponderID]; ok && cur == e {
		delete(s.byResponder, e.ResponderID)
	}
	if e.ProvisionedJobID != "" {
		delete(s.byJob, e.ProvisionedJobID)
	}
}

// view returns a consistent value copy for publishing outside the lock.
func (s *state) view(e *models.Engagement) models.Engagement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *e
}

func (s *state) setTimer(seekerID string, t *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[seekerID]; ok {
		old.Stop()
	}
	s.timers[seekerID] = t
}

// stale returns non-terminal engagements that have not moved past the
// given instant and have not yet started.
func (s *state) stale(before time.Time) []*models.Engagement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Engagement
	for _, e := range s.bySeeker {
		if e.State.Terminal() || e.State == models.StateStarted {
			continue
		}
		if e.UpdatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out
}
