package protocol

import (
	"encoding/json"
	"errors"

	"github.com/example/service-matching/internal/models"
)

// Inbound payloads. Each declares its required fields via Validate.

type ServiceRequest struct {
	SeekerID string       `json:"seekerId"`
	Location models.Coord `json:"location"`
	Category string       `json:"category"`
	Notes    string       `json:"notes"`
}

func (p *ServiceRequest) Validate() error {
	if p.SeekerID == "" {
		return errors.New("seekerId is required")
	}
	if p.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

// ResponderLocation answers a discovery broadcast. SeekerID echoes the
// broadcast that invited the report; it may be empty only when a single
// round is live.
type ResponderLocation struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ResponderID string  `json:"responderId"`
	SeekerID    string  `json:"seekerId,omitempty"`
}

func (p *ResponderLocation) Validate() error {
	if p.ResponderID == "" {
		return errors.New("responderId is required")
	}
	return nil
}

type ResponderAvailability struct {
	ResponderID string `json:"responderId"`
	Category    string `json:"category"`
}

func (p *ResponderAvailability) Validate() error {
	if p.ResponderID == "" {
		return errors.New("responderId is required")
	}
	if p.Category == "" {
		return errors.New("category is required")
	}
	return nil
}

type AcceptService struct {
	ResponderID string  `json:"responderId"`
	TotalAmount float64 `json:"totalAmount"`
	RatePerHour float64 `json:"ratePerHour"`
}

func (p *AcceptService) Validate() error {
	if p.ResponderID == "" {
		return errors.New("responderId is required")
	}
	if p.TotalAmount <= 0 {
		return errors.New("totalAmount must be positive")
	}
	return nil
}

type UserConfirmation struct {
	JobID string `json:"jobId"`
}

func (p *UserConfirmation) Validate() error {
	if p.JobID == "" {
		return errors.New("jobId is required")
	}
	return nil
}

type OTPVerified struct {
	JobID       string `json:"jobId"`
	ResponderID string `json:"responderId"`
	SeekerID    string `json:"seekerId"`
	Code        int    `json:"code"`
}

func (p *OTPVerified) Validate() error {
	if p.JobID == "" {
		return errors.New("jobId is required")
	}
	if p.Code == 0 {
		return errors.New("code is required")
	}
	return nil
}

type EndJob struct {
	JobID string `json:"jobId"`
}

func (p *EndJob) Validate() error {
	if p.JobID == "" {
		return errors.New("jobId is required")
	}
	return nil
}

type JoinRoom struct {
	RoomName string `json:"roomName"`
}

func (p *JoinRoom) Validate() error {
	if p.RoomName == "" {
		return errors.New("roomName is required")
	}
	return nil
}

type SendMessage struct {
	RoomName string `json:"roomName"`
	Message  string `json:"message"`
}

func (p *SendMessage) Validate() error {
	if p.RoomName == "" {
		return errors.New("roomName is required")
	}
	if p.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

type JoinCall struct {
	PartyID string `json:"partyId"`
}

func (p *JoinCall) Validate() error {
	if p.PartyID == "" {
		return errors.New("partyId is required")
	}
	return nil
}

// Call-signaling payloads carry opaque SDP/ICE blobs; the relay never
// looks inside them.

type CallUser struct {
	TargetID string          `json:"targetId"`
	From     string          `json:"from"`
	FromID   string          `json:"fromId"`
	Offer    json.RawMessage `json:"offer"`
}

func (p *CallUser) Validate() error {
	if p.TargetID == "" {
		return errors.New("targetId is required")
	}
	return nil
}

type Signal struct {
	TargetID  string          `json:"targetId"`
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
}

func (p *Signal) Validate() error {
	if p.TargetID == "" {
		return errors.New("targetId is required")
	}
	if p.Type == "" {
		return errors.New("type is required")
	}
	return nil
}

type CallAccepted struct {
	TargetID string          `json:"targetId"`
	Answer   json.RawMessage `json:"answer"`
}

func (p *CallAccepted) Validate() error {
	if p.TargetID == "" {
		return errors.New("targetId is required")
	}
	return nil
}

type CallRejected struct {
	TargetID string `json:"targetId"`
}

func (p *CallRejected) Validate() error {
	if p.TargetID == "" {
		return errors.New("targetId is required")
	}
	return nil
}

type CallEnded struct {
	SeekerID    string `json:"seekerId"`
	ResponderID string `json:"responderId"`
}

func (p *CallEnded) Validate() error {
	if p.SeekerID == "" && p.ResponderID == "" {
		return errors.New("seekerId or responderId is required")
	}
	return nil
}

// Outbound payloads.

type CandidatesAvailable struct {
	SeekerID     string   `json:"seekerId"`
	ResponderIDs []string `json:"responderIds"`
}

type JobConfirmation struct {
	JobID       string `json:"jobId"`
	ResponderID string `json:"responderId"`
}

type JobConfirmed struct {
	JobID    string `json:"jobId"`
	SeekerID string `json:"seekerId"`
}

type StartJob struct {
	ResponderID string `json:"responderId"`
	SeekerID    string `json:"seekerId"`
}

type JobEnded struct {
	JobID string `json:"jobId"`
}

type NewMessage struct {
	RoomName string `json:"roomName"`
	Message  string `json:"message"`
}

type IncomingCall struct {
	From   string          `json:"from"`
	FromID string          `json:"fromId"`
	Offer  json.RawMessage `json:"offer"`
}

type SignalOut struct {
	Type      string          `json:"type"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
}

type CallAnswer struct {
	Answer json.RawMessage `json:"answer"`
}

type Abandoned struct {
	Reason string `json:"reason"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
