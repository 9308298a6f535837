package auth

import (
	"context"
	"time"

	"github.com/iliyamo/farm-monitor/internal/utils"
)

// Issuer mints session tokens and registers them with the revocation
// store.  A token that was signed but never stored is rejected by the gate.
type Issuer struct {
	Secret   string
	TTL      time.Duration
	Sessions SessionStore
}

func NewIssuer(secret string, ttl time.Duration, sessions SessionStore) *Issuer {
	return &Issuer{Secret: secret, TTL: ttl, Sessions: sessions}
}

// Issue signs a token for userID and stores it.
func (i *Issuer) Issue(ctx context.Context, userID uint64) (utils.AccessToken, error) {
	tok, err := utils.NewAccessToken(i.Secret, userID, i.TTL)
	if err != nil {
		return utils.AccessToken{}, err
	}
	if err := i.Sessions.StoreSession(ctx, userID, tok.Token, tok.Exp); err != nil {
		return utils.AccessToken{}, err
	}
	return tok, nil
}

// Revoke ends a single session.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	return i.Sessions.Revoke(ctx, token)
}

// RevokeAll ends every session of the user.
func (i *Issuer) RevokeAll(ctx context.Context, userID uint64) error {
	return i.Sessions.RevokeAllForUser(ctx, userID)
}
