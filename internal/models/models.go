package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// MatchRequest is a seeker's live discovery request. At most one live
// request exists per seeker; a newer request replaces the older one.
type MatchRequest struct {
	SeekerID  string    `json:"seekerId"`
	Location  Coord     `json:"location"`
	Category  string    `json:"category"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchCandidate is one responder's answer to a discovery broadcast.
type MatchCandidate struct {
	ResponderID string `json:"responderId"`
	Location    Coord  `json:"location"`
}

// ProfileSummary is the seeker-facing profile fetched from the identity
// service when an offer is built. It never travels to provisioning.
type ProfileSummary struct {
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	ImageURL string `json:"imageUrl"`
}

type EngagementState string

const (
	StateRequested       EngagementState = "requested"
	StateOffered         EngagementState = "offered"
	StateAccepted        EngagementState = "accepted"
	StateProvisioned     EngagementState = "provisioned"
	StateSeekerConfirmed EngagementState = "seeker_confirmed"
	StateAuthVerified    EngagementState = "authorization_verified"
	StateStarted         EngagementState = "started"
	StateEnded           EngagementState = "ended"
	StateAbandoned       EngagementState = "abandoned"
)

// Terminal reports whether the state admits no further transitions.
func (s EngagementState) Terminal() bool {
	return s == StateEnded || s == StateAbandoned
}

// Engagement is the matched pair's shared negotiation and job record,
// keyed by seeker+responder. It lives only for the session; history is
// archived externally through the event stream.
type Engagement struct {
	SeekerID          string          `json:"seekerId"`
	ResponderID       string          `json:"responderId"`
	Category          string          `json:"category"`
	Notes             string          `json:"notes"`
	SeekerLocation    Coord           `json:"seekerLocation"`
	ResponderLocation Coord           `json:"responderLocation"`
	DistanceKm        float64         `json:"distanceKm"`
	TotalAmount       float64         `json:"totalAmount,omitempty"`
	RatePerHour       float64         `json:"ratePerHour,omitempty"`
	AuthorizationCode int             `json:"-"`
	ProvisionedJobID  string          `json:"jobId,omitempty"`
	PaymentHoldID     string          `json:"-"`
	Seeker            ProfileSummary  `json:"seeker"`
	State             EngagementState `json:"state"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// EngagementSnapshot is what the provisioning service receives. The
// profile summary and authorization code stay out of it.
type EngagementSnapshot struct {
	SeekerID          string  `json:"seekerId"`
	ResponderID       string  `json:"responderId"`
	Category          string  `json:"category"`
	Notes             string  `json:"notes"`
	SeekerLocation    Coord   `json:"seekerLocation"`
	ResponderLocation Coord   `json:"responderLocation"`
	DistanceKm        float64 `json:"distanceKm"`
	TotalAmount       float64 `json:"totalAmount"`
	RatePerHour       float64 `json:"ratePerHour"`
}

func (e *Engagement) Snapshot() EngagementSnapshot {
	return EngagementSnapshot{
		SeekerID:          e.SeekerID,
		ResponderID:       e.ResponderID,
		Category:          e.Category,
		Notes:             e.Notes,
		SeekerLocation:    e.SeekerLocation,
		ResponderLocation: e.ResponderLocation,
		DistanceKm:        e.DistanceKm,
		TotalAmount:       e.TotalAmount,
		RatePerHour:       e.RatePerHour,
	}
}

// Tokens is a credential pair issued by the identity service.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// EngagementEvent is one lifecycle transition published to the event
// stream and consumed by the external ledger.
type EngagementEvent struct {
	JobID       string          `json:"jobId,omitempty"`
	SeekerID    string          `json:"seekerId"`
	ResponderID string          `json:"responderId"`
	Category    string          `json:"category"`
	State       EngagementState `json:"state"`
	DistanceKm  float64         `json:"distanceKm,omitempty"`
	TotalAmount float64         `json:"totalAmount,omitempty"`
	At          time.Time       `json:"at"`
}
