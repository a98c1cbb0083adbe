package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records access tokens that were logged out before expiry.
// A nil client disables revocation: Revoke is a no-op and nothing is revoked.
type RevocationList struct {
	client *redis.Client
	prefix string
}

func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client, prefix: "revoked:access:"}
}

// tokens are stored hashed so the raw bearer value never lands in Redis
func (r *RevocationList) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Revoke stores the token in the list until ttl elapses.
func (r *RevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if r == nil || r.client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.client.Set(ctx, r.key(token), "1", ttl).Err()
}

// IsRevoked returns true when the token is in the list.
func (r *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
