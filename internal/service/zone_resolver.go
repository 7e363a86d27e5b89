package service

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// ZoneLookup fetches a zone identifier from the DNS provider.
type ZoneLookup interface {
	GetZoneID(ctx context.Context, name string) (string, error)
}

// ZoneResolver resolves the parent domain's zone id and caches it. The cache
// starts empty; a zero ttl keeps the id for the life of the process.
// Concurrent cold-start lookups share one provider call.
type ZoneResolver struct {
	api    ZoneLookup
	domain string
	cache  *ttlcache.Cache[string, string]
	group  singleflight.Group
	log    logr.Logger
}

func NewZoneResolver(api ZoneLookup, domain string, ttl time.Duration, log logr.Logger) *ZoneResolver {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	return &ZoneResolver{
		api:    api,
		domain: domain,
		cache: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
		log: log,
	}
}

// Domain returns the parent domain this resolver serves.
func (r *ZoneResolver) Domain() string {
	return r.domain
}

// Resolve returns the zone id, from cache when possible. Errors are never
// cached.
func (r *ZoneResolver) Resolve(ctx context.Context) (string, error) {
	if item := r.cache.Get(r.domain); item != nil {
		return item.Value(), nil
	}

	v, err, _ := r.group.Do(r.domain, func() (interface{}, error) {
		id, err := r.api.GetZoneID(ctx, r.domain)
		if err != nil {
			return "", err
		}
		r.cache.Set(r.domain, id, ttlcache.DefaultTTL)
		r.log.Info("resolved zone", "domain", r.domain, "zone", id)
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached id so the next Resolve asks the provider again.
func (r *ZoneResolver) Invalidate() {
	r.cache.Delete(r.domain)
	r.log.V(1).Info("zone cache invalidated", "domain", r.domain)
}
