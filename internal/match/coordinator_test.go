package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/example/service-matching/internal/directory"
	"github.com/example/service-matching/internal/models"
	"github.com/example/service-matching/internal/protocol"
)

type note struct {
	party   string
	event   string
	payload any
}

type fakeNotifier struct {
	mu         sync.Mutex
	broadcasts []note
	sends      []note
}

func (f *fakeNotifier) Broadcast(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, note{event: event, payload: payload})
}

func (f *fakeNotifier) SendTo(partyID, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, note{party: partyID, event: event, payload: payload})
	return nil
}

func (f *fakeNotifier) broadcastCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.broadcasts {
		if b.event == event {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) lastBroadcast(event string) (any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.broadcasts) - 1; i >= 0; i-- {
		if f.broadcasts[i].event == event {
			return f.broadcasts[i].payload, true
		}
	}
	return nil, false
}

func (f *fakeNotifier) sentTo(partyID, event string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sends {
		if s.party == partyID && s.event == event {
			return true
		}
	}
	return false
}

type fakeProfiles struct {
	err   error
	calls int
}

func (f *fakeProfiles) GetProfileSummary(ctx context.Context, partyID string) (models.ProfileSummary, error) {
	f.calls++
	if f.err != nil {
		return models.ProfileSummary{}, f.err
	}
	return models.ProfileSummary{Name: "Seeker " + partyID, Contact: partyID + "@example.com"}, nil
}

type fakeDirections struct {
	meters float64
	err    error
}

func (f *fakeDirections) GetRouteDistance(ctx context.Context, origin, destination models.Coord) (float64, error) {
	return f.meters, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.EngagementEvent
}

func (f *fakePublisher) PublishTransition(ev models.EngagementEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeNotifier, *directory.Memory) {
	t.Helper()
	n := &fakeNotifier{}
	dir := directory.NewMemory()
	c := NewCoordinator(n, dir, &fakeProfiles{}, &fakePublisher{}, quiet())
	c.Window = time.Minute
	return c, n, dir
}

func request(t *testing.T, c *Coordinator, seekerID string) {
	t.Helper()
	err := c.RequestMatch(context.Background(), protocol.ServiceRequest{
		SeekerID: seekerID,
		Location: models.Coord{Lat: 0, Lng: 0},
		Category: "plumbing",
		Notes:    "leaking sink",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRequestMatchBroadcastsCandidates(t *testing.T) {
	c, n, dir := newTestCoordinator(t)
	_ = dir.MarkAvailable(context.Background(), "r1", "plumbing")
	_ = dir.MarkAvailable(context.Background(), "r2", "plumbing")

	request(t, c, "s1")

	payload, ok := n.lastBroadcast(protocol.EvCandidatesAvailable)
	if !ok {
		t.Fatal("expected a candidates-available broadcast")
	}
	ca := payload.(protocol.CandidatesAvailable)
	if ca.SeekerID != "s1" || len(ca.ResponderIDs) != 2 {
		t.Fatalf("unexpected broadcast: %+v", ca)
	}
}

func TestNearbyResponderCreatesOffer(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	request(t, c, "s1")

	// ~3.3 km east of the seeker
	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.03, ResponderID: "r1", SeekerID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	payload, ok := n.lastBroadcast(protocol.EvOfferAvailable)
	if !ok {
		t.Fatal("expected an offer-available broadcast")
	}
	e := payload.(models.Engagement)
	if e.SeekerID != "s1" || e.ResponderID != "r1" || e.State != models.StateOffered {
		t.Fatalf("unexpected engagement: %+v", e)
	}
	if math.Abs(e.DistanceKm-3.34) > 0.1 {
		t.Fatalf("expected distance ~3.34 km, got %f", e.DistanceKm)
	}
	if e.Seeker.Name == "" {
		t.Fatal("offer should carry the seeker profile summary")
	}
}

func TestFarResponderNeverCreatesOffer(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	request(t, c, "s1")

	// ~22 km away
	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.2, ResponderID: "r1", SeekerID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if n.broadcastCount(protocol.EvOfferAvailable) != 0 {
		t.Fatal("no offer should be created beyond the radius")
	}
	if _, ok := c.st.engagementBySeeker("s1"); ok {
		t.Fatal("no engagement should exist")
	}
}

func TestSecondQualifyingReportIgnored(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	request(t, c, "s1")

	for _, responder := range []string{"r1", "r2"} {
		_ = c.ReportLocation(context.Background(), protocol.ResponderLocation{
			Lat: 0, Lng: 0.01, ResponderID: responder, SeekerID: "s1",
		})
	}

	if got := n.broadcastCount(protocol.EvOfferAvailable); got != 1 {
		t.Fatalf("expected exactly one offer, got %d", got)
	}
	e, _ := c.st.engagementBySeeker("s1")
	if e.ResponderID != "r1" {
		t.Fatalf("first qualifying report should win, got %s", e.ResponderID)
	}
}

func TestConcurrentReportsProduceOneWinner(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	request(t, c, "s1")

	var wg sync.WaitGroup
	responders := []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8"}
	for _, responder := range responders {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = c.ReportLocation(context.Background(), protocol.ResponderLocation{
				Lat: 0, Lng: 0.02, ResponderID: id, SeekerID: "s1",
			})
		}(responder)
	}
	wg.Wait()

	if got := n.broadcastCount(protocol.EvOfferAvailable); got != 1 {
		t.Fatalf("two responders were both told they won: %d offers", got)
	}
}

func TestConcurrentSeekersAreIsolated(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	request(t, c, "s1")
	request(t, c, "s2")

	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	e, ok := c.st.engagementBySeeker("s1")
	if !ok || e.ResponderID != "r1" {
		t.Fatalf("s1 should be matched to r1: %+v", e)
	}
	if _, ok := c.st.engagementBySeeker("s2"); ok {
		t.Fatal("a report for s1 must never touch s2's round")
	}
	if _, ok := c.st.liveRequest("s2"); !ok {
		t.Fatal("s2's request must stay live")
	}
}

func TestRequestWhileEngagedRejected(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	request(t, c, "s1")
	if err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "s1",
	}); err != nil {
		t.Fatal(err)
	}

	err := c.RequestMatch(context.Background(), protocol.ServiceRequest{
		SeekerID: "s1", Location: models.Coord{}, Category: "plumbing",
	})
	if !errors.Is(err, ErrAlreadyEngaged) {
		t.Fatalf("expected ErrAlreadyEngaged, got %v", err)
	}
	if _, ok := c.st.liveRequest("s1"); ok {
		t.Fatal("a rejected request must not be left live")
	}
}

func TestAmbiguousReportDropped(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	request(t, c, "s1")
	request(t, c, "s2")

	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1",
	})
	if !errors.Is(err, ErrAmbiguousRequest) {
		t.Fatalf("expected ErrAmbiguousRequest, got %v", err)
	}
}

func TestReportWithoutRequestIgnored(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "ghost",
	})
	if !errors.Is(err, ErrNoLiveRequest) {
		t.Fatalf("expected ErrNoLiveRequest, got %v", err)
	}
	if len(n.broadcasts) != 0 {
		t.Fatal("a dropped report must have no observable effect")
	}
}

func TestDiscoveryWindowExpiresToSeeker(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	c.Window = 20 * time.Millisecond
	request(t, c, "s1")

	time.Sleep(80 * time.Millisecond)

	if !n.sentTo("s1", protocol.EvNoCandidates) {
		t.Fatal("seeker should receive no-candidates after the window")
	}
	if _, ok := c.st.liveRequest("s1"); ok {
		t.Fatal("expired request should be gone")
	}
}

func TestOfferCancelsDiscoveryTimer(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	c.Window = 30 * time.Millisecond
	request(t, c, "s1")

	_ = c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "s1",
	})
	time.Sleep(80 * time.Millisecond)

	if n.sentTo("s1", protocol.EvNoCandidates) {
		t.Fatal("matched round must not time out")
	}
}

func TestNewRequestSupersedesOld(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	request(t, c, "s1")
	first, _ := c.st.liveRequest("s1")

	time.Sleep(2 * time.Millisecond)
	request(t, c, "s1")
	second, _ := c.st.liveRequest("s1")
	if !second.CreatedAt.After(first.CreatedAt) {
		t.Fatal("newer request should replace the older one")
	}
}

func TestDirectionsRefinesDistance(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	c.WithDirections(&fakeDirections{meters: 4200})
	request(t, c, "s1")

	_ = c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.03, ResponderID: "r1", SeekerID: "s1",
	})
	payload, _ := n.lastBroadcast(protocol.EvOfferAvailable)
	e := payload.(models.Engagement)
	if math.Abs(e.DistanceKm-4.2) > 0.001 {
		t.Fatalf("expected route distance 4.2 km, got %f", e.DistanceKm)
	}
}

func TestRoutingFailureFailsClosed(t *testing.T) {
	c, n, _ := newTestCoordinator(t)
	c.WithDirections(&fakeDirections{err: errors.New("osrm down")})
	request(t, c, "s1")

	err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "s1",
	})
	var routing *RoutingError
	if !errors.As(err, &routing) {
		t.Fatalf("expected RoutingError, got %v", err)
	}
	if n.broadcastCount(protocol.EvOfferAvailable) != 0 {
		t.Fatal("no engagement may be created when routing fails")
	}
}

func TestProfileFailureAbortsReport(t *testing.T) {
	n := &fakeNotifier{}
	c := NewCoordinator(n, directory.NewMemory(), &fakeProfiles{err: errors.New("identity down")}, nil, quiet())
	request(t, c, "s1")

	if err := c.ReportLocation(context.Background(), protocol.ResponderLocation{
		Lat: 0, Lng: 0.01, ResponderID: "r1", SeekerID: "s1",
	}); err == nil {
		t.Fatal("expected error when the profile lookup fails")
	}
	if n.broadcastCount(protocol.EvOfferAvailable) != 0 {
		t.Fatal("no offer without a profile")
	}
}
