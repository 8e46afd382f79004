package permissions

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheSize bounds the number of cached team/resource entries
const DefaultCacheSize = 4096

// DefaultCacheTTL bounds how stale a cached access level may be. Permission
// edits take effect within this window unless the team is invalidated
// explicitly.
const DefaultCacheTTL = 30 * time.Second

type cacheKey struct {
	teamID   int64
	resource ResourceType
}

// Checker resolves and enforces team access levels, caching lookups
type Checker struct {
	store Store
	cache *expirable.LRU[cacheKey, AccessLevel]
}

// NewChecker creates a Checker over the given store. A non-positive size or
// TTL disables caching.
func NewChecker(store Store, cacheSize int, cacheTTL time.Duration) *Checker {
	c := &Checker{store: store}
	if cacheSize > 0 && cacheTTL > 0 {
		c.cache = expirable.NewLRU[cacheKey, AccessLevel](cacheSize, nil, cacheTTL)
	}
	return c
}

// EffectiveLevel returns the access level a team holds for a resource type
func (c *Checker) EffectiveLevel(ctx context.Context, teamID int64, resource ResourceType) (AccessLevel, error) {
	key := cacheKey{teamID: teamID, resource: resource}
	if c.cache != nil {
		if level, ok := c.cache.Get(key); ok {
			return level, nil
		}
	}

	level, err := c.store.GetTeamAccessLevel(ctx, teamID, resource)
	if err != nil {
		return "", err
	}

	if c.cache != nil {
		c.cache.Add(key, level)
	}
	return level, nil
}

// Check verifies the team's access level meets the required level, returning
// a PermissionDeniedError when it does not
func (c *Checker) Check(ctx context.Context, teamID int64, resource ResourceType, required AccessLevel) error {
	level, err := c.EffectiveLevel(ctx, teamID, resource)
	if err != nil {
		return err
	}
	if !level.Satisfies(required) {
		return NewPermissionDeniedError(resource, required, level)
	}
	return nil
}

// InvalidateTeam drops all cached levels for a team. Called after a
// permission edit so the change is visible immediately.
func (c *Checker) InvalidateTeam(teamID int64) {
	if c.cache == nil {
		return
	}
	for rt := range resourceTypes {
		c.cache.Remove(cacheKey{teamID: teamID, resource: rt})
	}
}
