package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Zenkai92/Modelify/internal/users"
)

const roleKeyPrefix = "auth:role:" // last confirmed role per uid: auth:role:{uid}

// RoleCache remembers the last role the profile store confirmed for an
// identity. The TTL is the upper bound on how long a stale role may be
// served when the authoritative lookup is slow or down.
type RoleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRoleCache(client *redis.Client, ttl time.Duration) *RoleCache {
	return &RoleCache{client: client, ttl: ttl}
}

func (c *RoleCache) Get(ctx context.Context, uid string) (users.Role, bool) {
	v, err := c.client.Get(ctx, roleKeyPrefix+uid).Result()
	if errors.Is(err, redis.Nil) || err != nil {
		return users.RoleNone, false
	}
	return users.Role(v), true
}

func (c *RoleCache) Put(ctx context.Context, uid string, role users.Role) error {
	return c.client.Set(ctx, roleKeyPrefix+uid, string(role), c.ttl).Err()
}
