package auth

import (
	"context"
	"time"

	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/users"
)

// ProfileStore is the authoritative role source, keyed by the same uid as the
// identity provider.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*users.User, error)
}

// Resolver turns a verified identity into a Principal. The authoritative
// profile lookup is raced against a bounded timeout; whichever settles first
// wins and the loser is discarded, not aborted. On timeout or lookup failure
// the last role confirmed for the same identity is served instead, so a
// transient backend hiccup never visibly downgrades a user.
type Resolver struct {
	profiles ProfileStore
	cache    *RoleCache
	timeout  time.Duration
}

func NewResolver(profiles ProfileStore, cache *RoleCache, timeout time.Duration) *Resolver {
	return &Resolver{profiles: profiles, cache: cache, timeout: timeout}
}

type lookupResult struct {
	user *users.User
	err  error
}

// Resolve never fails on a profile-store problem: it falls back and logs.
// Unauthenticated callers are rejected earlier, by the token middleware.
func (r *Resolver) Resolve(ctx context.Context, uid, email string) Principal {
	logger := logging.FromContext(ctx)

	ch := make(chan lookupResult, 1)
	go func() {
		// The lookup keeps running on its own if the timer wins; its result
		// is simply dropped.
		u, err := r.profiles.GetByID(context.WithoutCancel(ctx), uid)
		ch <- lookupResult{user: u, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			logger.Warnf("resolve_role", "profile lookup failed for uid=%s: %v", uid, res.err)
			return r.fallback(ctx, uid, email)
		}
		if err := r.cache.Put(ctx, uid, res.user.Role); err != nil {
			logger.Warnf("resolve_role", "role cache write failed for uid=%s: %v", uid, err)
		}
		return Principal{UID: uid, Email: email, Role: res.user.Role}
	case <-timer.C:
		logger.Warnf("resolve_role", "profile lookup timed out after %s for uid=%s", r.timeout, uid)
		return r.fallback(ctx, uid, email)
	}
}

func (r *Resolver) fallback(ctx context.Context, uid, email string) Principal {
	if role, ok := r.cache.Get(ctx, uid); ok {
		return Principal{UID: uid, Email: email, Role: role}
	}
	return Principal{UID: uid, Email: email, Role: users.RoleNone}
}
