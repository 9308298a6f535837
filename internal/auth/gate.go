// Package auth decides whether a request may reach a handler.  It verifies
// the session token, checks it against the revocation store, resolves the
// user with its current roles and then applies role or permission rules.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/farm-monitor/internal/model"
	"github.com/iliyamo/farm-monitor/internal/repository"
	"github.com/iliyamo/farm-monitor/internal/utils"
)

var (
	ErrAuthMissing       = errors.New("missing authorization header")
	ErrAuthInvalid       = errors.New("invalid token")
	ErrAuthExpired       = errors.New("expired token")
	ErrAuthRevoked       = errors.New("token has been revoked")
	ErrNotAuthenticated  = errors.New("user not found")
	ErrPermissionDenied  = errors.New("no permission")
	ErrStoreUnavailable  = errors.New("session store unavailable")
	errMissingBearerType = errors.New("missing 'Bearer' type in 'Authorization' header")
)

// SessionStore is the revocation store as seen by the gate and the issuer.
type SessionStore interface {
	StoreSession(ctx context.Context, userID uint64, token string, exp time.Time) error
	Exists(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// UserLookup resolves a user together with its roles.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Gate performs the authentication half of access control.
type Gate struct {
	Secret   string
	Sessions SessionStore
	Users    UserLookup
}

func NewGate(secret string, sessions SessionStore, users UserLookup) *Gate {
	return &Gate{Secret: secret, Sessions: sessions, Users: users}
}

// Session is an authenticated request principal.
type Session struct {
	User  model.User
	Token string
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrAuthMissing
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: %v", ErrAuthInvalid, errMissingBearerType)
	}
	return strings.TrimSpace(token), nil
}

// Authenticate runs, in order: header extraction, signature and expiry
// verification, the revocation lookup and user resolution.  Every failure
// wraps one of the ErrAuth* sentinels or ErrNotAuthenticated.
func (g *Gate) Authenticate(ctx context.Context, header string) (Session, error) {
	token, err := BearerToken(header)
	if err != nil {
		return Session{}, err
	}

	claims, err := utils.ParseAccessToken(g.Secret, token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return Session{}, fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		return Session{}, fmt.Errorf("%w: %v", ErrAuthInvalid, err)
	}

	ok, err := g.Sessions.Exists(ctx, token)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return Session{}, ErrAuthRevoked
	}

	userID, err := claims.UserID()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrAuthInvalid, err)
	}
	user, err := g.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrNotAuthenticated
		}
		return Session{}, err
	}
	return Session{User: user, Token: token}, nil
}

// Reason strips the sentinel prefix from an authentication error so the
// remaining text can be shown to the client.
func Reason(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrAuthInvalid, ErrAuthExpired} {
		if errors.Is(err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}

// AuthorizeRoles allows the user if it holds any of the given roles.
func AuthorizeRoles(u model.User, roles ...model.RoleName) error {
	if u.HasAnyRole(roles...) {
		return nil
	}
	return ErrPermissionDenied
}

// AuthorizePermissions allows the user only if the OR of its role masks
// contains every bit of required.
func AuthorizePermissions(u model.User, required model.Permission) error {
	if u.Can(required) {
		return nil
	}
	return ErrPermissionDenied
}
