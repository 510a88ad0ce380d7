package geolocation

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedGeoLocation memoizes successful lookups of an underlying GeoLocation for a fixed ttl.
// Failed lookups are not cached.
type CachedGeoLocation struct {
	geo   GeoLocation
	cache *cache.Cache
}

// NewCachedGeoLocation wraps geo with a cache. A ttl of zero disables caching.
func NewCachedGeoLocation(geo GeoLocation, ttl time.Duration) GeoLocation {
	if ttl <= 0 {
		return geo
	}
	return &CachedGeoLocation{
		geo:   geo,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (g *CachedGeoLocation) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	if cached, ok := g.cache.Get(ip); ok {
		return cached.(*GeoInfo), nil
	}

	info, err := g.geo.Lookup(ctx, ip)
	if err != nil {
		return nil, err
	}

	g.cache.Set(ip, info, cache.DefaultExpiration)
	return info, nil
}
