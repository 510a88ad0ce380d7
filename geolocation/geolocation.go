package geolocation

import (
	"context"
	"errors"
)

var (
	ErrDatabaseUnavailable = errors.New("database is unavailable")
	ErrLookupIPInvalid     = errors.New("lookup ip is invalid")
)

type GeoInfo struct {
	// Name of the geo location data provider.
	Vendor string

	// Continent code in two-letter format.
	Continent string

	// Country code in ISO-3166-1-alpha-2 format.
	Country string

	// Region code in ISO-3166-2 format.
	Region string

	// Numeric region code.
	RegionCode int

	City     string
	Zip      string
	Lat      float64
	Lon      float64
	TimeZone string
}

// GeoLocation looks up the geographic information of an ip address.
type GeoLocation interface {
	Lookup(ctx context.Context, ip string) (*GeoInfo, error)
}

// NilGeoLocation is used when geo location is disabled.
type NilGeoLocation struct{}

func (g *NilGeoLocation) Lookup(_ context.Context, _ string) (*GeoInfo, error) {
	return nil, ErrDatabaseUnavailable
}

// NewNilGeoLocation returns a GeoLocation which never resolves an address.
func NewNilGeoLocation() *NilGeoLocation {
	return &NilGeoLocation{}
}
