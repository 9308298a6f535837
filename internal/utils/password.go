package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordLength is returned for passwords bcrypt cannot hash faithfully.
var ErrPasswordLength = errors.New("password must be 1 to 72 bytes")

// HashPassword hashes plain with bcrypt.  Costs outside bcrypt's range are
// clamped so a bad BCRYPT_COST cannot lock everyone out.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" || len(plain) > 72 {
		return "", ErrPasswordLength
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the stored hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
