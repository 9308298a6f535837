package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/farm-monitor/internal/utils"
)

// TokenRepo is the session revocation store.  A token is valid only while
// its digest is present; removing it revokes the session immediately even
// though the JWT itself has not expired.
//
// Keys:
//
//	session:<sha256(token)>  -> user id
//	session:user:<user id>   -> set of token digests (for forced logout)
type TokenRepo struct{ RDB *redis.Client }

func NewTokenRepo(rdb *redis.Client) *TokenRepo { return &TokenRepo{RDB: rdb} }

func sessionKey(digest string) string { return "session:" + digest }

func userSessionsKey(userID uint64) string {
	return "session:user:" + strconv.FormatUint(userID, 10)
}

// StoreSession records a freshly issued token.  The key expires together
// with the token so stale entries do not pile up.
func (r *TokenRepo) StoreSession(ctx context.Context, userID uint64, token string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return errors.New("token already expired")
	}
	digest := utils.HashToken(token)
	idx := userSessionsKey(userID)

	pipe := r.RDB.TxPipeline()
	pipe.Set(ctx, sessionKey(digest), strconv.FormatUint(userID, 10), ttl)
	pipe.SAdd(ctx, idx, digest)
	// The index lives as long as its longest session: NX sets the first
	// TTL, GT only ever extends it.
	pipe.ExpireNX(ctx, idx, ttl)
	pipe.ExpireGT(ctx, idx, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Exists reports whether the token is still registered.
func (r *TokenRepo) Exists(ctx context.Context, token string) (bool, error) {
	n, err := r.RDB.Exists(ctx, sessionKey(utils.HashToken(token))).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Revoke removes a single token.  Revoking an unknown token is not an error.
func (r *TokenRepo) Revoke(ctx context.Context, token string) error {
	digest := utils.HashToken(token)
	key := sessionKey(digest)

	owner, err := r.RDB.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := r.RDB.TxPipeline()
	pipe.Del(ctx, key)
	if id, perr := strconv.ParseUint(owner, 10, 64); perr == nil {
		pipe.SRem(ctx, userSessionsKey(id), digest)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAllForUser removes every session issued to the user.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	idx := userSessionsKey(userID)
	digests, err := r.RDB.SMembers(ctx, idx).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(digests)+1)
	for _, d := range digests {
		keys = append(keys, sessionKey(d))
	}
	keys = append(keys, idx)
	return r.RDB.Del(ctx, keys...).Err()
}
