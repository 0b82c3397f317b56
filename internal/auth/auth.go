package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/service-matching/internal/models"
)

// AuthenticationError refuses a connection attempt. It is the only
// error this package returns to the transport layer.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication: " + e.Reason
}

// Identity is the authenticated party behind a connection.
type Identity struct {
	PartyID string
	Role    string
}

// Refresher exchanges a refresh credential for a new pair via the
// external identity service.
type Refresher interface {
	RefreshCredential(ctx context.Context, refreshToken string) (models.Tokens, error)
}

type Authenticator struct {
	secret    []byte
	refresher Refresher
	logger    *slog.Logger
}

func NewAuthenticator(secret []byte, refresher Refresher, logger *slog.Logger) *Authenticator {
	return &Authenticator{secret: secret, refresher: refresher, logger: logger}
}

// Result carries the admit decision. Renewed is set when admission went
// through the refresh path; the transport pushes it to the client
// before any other traffic.
type Result struct {
	Identity Identity
	Renewed  *models.Tokens
}

// Authenticate makes exactly one admit/reject decision for a connection
// attempt. A valid access credential admits directly. An expired or
// absent one falls back to the refresh credential; any other
// verification failure rejects without a refresh attempt.
func (a *Authenticator) Authenticate(ctx context.Context, access, refresh string) (Result, error) {
	if access == "" && refresh == "" {
		return Result{}, &AuthenticationError{Reason: "no credentials presented"}
	}

	if access != "" {
		id, err := a.verify(access)
		if err == nil {
			return Result{Identity: id}, nil
		}
		if !errors.Is(err, jwt.ErrTokenExpired) {
			a.logger.Warn("access credential rejected", "error", err)
			return Result{}, &AuthenticationError{Reason: "invalid access credential"}
		}
		a.logger.Debug("access credential expired, trying refresh")
	}

	if refresh == "" {
		return Result{}, &AuthenticationError{Reason: "access credential expired"}
	}
	if a.refresher == nil {
		return Result{}, &AuthenticationError{Reason: "credential refresh unavailable"}
	}

	tokens, err := a.refresher.RefreshCredential(ctx, refresh)
	if err != nil {
		a.logger.Warn("credential refresh failed", "error", err)
		return Result{}, &AuthenticationError{Reason: "credential refresh failed"}
	}
	id, err := a.verify(tokens.Access)
	if err != nil {
		a.logger.Error("identity service issued an unverifiable credential", "error", err)
		return Result{}, &AuthenticationError{Reason: "credential refresh failed"}
	}
	return Result{Identity: id, Renewed: &tokens}, nil
}

func (a *Authenticator) verify(token string) (Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("credential has no subject")
	}
	role, _ := claims["role"].(string)
	return Identity{PartyID: sub, Role: role}, nil
}
