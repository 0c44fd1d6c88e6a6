package cache

import (
	"strings"
	"time"

	"go.uber.org/fx"
)

const (
	defaultDeviceTTL = 5 * time.Minute
	defaultNodeTTL   = 5 * time.Minute
)

var Module = fx.Module("cache",
	fx.Provide(NewIdentityCache),
)

// IdentityCache stores positive device and node lookups for the ingest hot path.
// Only confirmed registrations are cached so a newly registered device is never
// shadowed by a stale miss.
type IdentityCache interface {
	HasDevice(deviceID string) bool
	MarkDevice(deviceID string)
	ForgetDevice(deviceID string)
	// NodeOwner returns the external device id a node is linked to.
	NodeOwner(nodeID string) (string, bool)
	SetNodeOwner(nodeID, deviceID string)
	ForgetNode(nodeID string)
}

type identityCache struct {
	devices   Cache[string, struct{}]
	nodes     Cache[string, string]
	deviceTTL time.Duration
	nodeTTL   time.Duration
}

// NewIdentityCache returns an in-memory identity cache.
func NewIdentityCache() IdentityCache {
	return &identityCache{
		devices:   NewTTLCache[string, struct{}](),
		nodes:     NewTTLCache[string, string](),
		deviceTTL: defaultDeviceTTL,
		nodeTTL:   defaultNodeTTL,
	}
}

func (c *identityCache) HasDevice(deviceID string) bool {
	_, ok := c.devices.Get(cacheKey(deviceID))
	return ok
}

func (c *identityCache) MarkDevice(deviceID string) {
	key := cacheKey(deviceID)
	if key == "" {
		return
	}
	c.devices.Set(key, struct{}{}, c.deviceTTL)
}

func (c *identityCache) ForgetDevice(deviceID string) {
	c.devices.Delete(cacheKey(deviceID))
}

func (c *identityCache) NodeOwner(nodeID string) (string, bool) {
	return c.nodes.Get(cacheKey(nodeID))
}

func (c *identityCache) SetNodeOwner(nodeID, deviceID string) {
	key := cacheKey(nodeID)
	if key == "" || strings.TrimSpace(deviceID) == "" {
		return
	}
	c.nodes.Set(key, deviceID, c.nodeTTL)
}

func (c *identityCache) ForgetNode(nodeID string) {
	c.nodes.Delete(cacheKey(nodeID))
}

// cacheKey keeps identifiers case-sensitive; registry lookups are exact matches.
func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, trimmed)
	}
	return strings.Join(values, "|")
}
