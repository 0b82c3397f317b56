package match

import (
	"errors"
	"fmt"
)

var (
	// ErrNoLiveRequest means a location report arrived with no match
	// request to answer. Reports like this are dropped quietly.
	ErrNoLiveRequest = errors.New("no live match request")

	// ErrAmbiguousRequest means a report named no seeker while several
	// rounds were live, so it cannot be associated safely.
	ErrAmbiguousRequest = errors.New("report does not identify a match request")

	// ErrAlreadyEngaged rejects a new match request from a seeker whose
	// current engagement has not finished.
	ErrAlreadyEngaged = errors.New("an engagement is already in progress")

	// ErrUnknownEngagement means no engagement matches the given key.
	ErrUnknownEngagement = errors.New("unknown engagement")

	// ErrBadState rejects an event whose precondition state does not hold.
	ErrBadState = errors.New("engagement is not in a state that allows this action")

	// ErrCodeMismatch rejects an authorization code that differs from
	// the stored one. State is never advanced on mismatch.
	ErrCodeMismatch = errors.New("authorization code mismatch")
)

// RoutingError aborts a round when the directions service cannot
// produce a route. The round fails closed instead of degrading to
// straight-line distance.
type RoutingError struct {
	Err error
}

func (e *RoutingError) Error() string { return fmt.Sprintf("routing: %v", e.Err) }
func (e *RoutingError) Unwrap() error { return e.Err }

// ProvisioningError holds the engagement at its pre-transition state so
// the triggering action can be retried.
type ProvisioningError struct {
	Op  string
	Err error
}

func (e *ProvisioningError) Error() string { return fmt.Sprintf("provisioning %s: %v", e.Op, e.Err) }
func (e *ProvisioningError) Unwrap() error { return e.Err }
