package maxmind

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	geoip2 "github.com/oschwald/geoip2-golang"

	"github.com/prebid/prebid-request-core/geolocation"
)

const Vendor = "maxmind"

const DatabaseFileName = "GeoLite2-City.mmdb"

// GeoLocation implements the geolocation.GeoLocation interface over a MaxMind city database.
type GeoLocation struct {
	reader atomic.Pointer[geoip2.Reader]
}

// New loads the database at path, which is either a .mmdb file or a .tar.gz archive holding one.
func New(path string) (*GeoLocation, error) {
	geo := &GeoLocation{}
	if err := geo.SetDataPath(path); err != nil {
		return nil, err
	}
	return geo, nil
}

func (g *GeoLocation) Lookup(_ context.Context, ipAddress string) (*geolocation.GeoInfo, error) {
	ip := net.ParseIP(ipAddress)
	if len(ip) == 0 {
		return nil, geolocation.ErrLookupIPInvalid
	}

	reader := g.reader.Load()
	if reader == nil {
		return nil, geolocation.ErrDatabaseUnavailable
	}

	record, err := reader.City(ip)
	if err != nil {
		return nil, err
	}

	info := &geolocation.GeoInfo{
		Vendor:    Vendor,
		Continent: record.Continent.Code,
		Country:   record.Country.IsoCode,
		Zip:       record.Postal.Code,
		Lat:       record.Location.Latitude,
		Lon:       record.Location.Longitude,
		TimeZone:  record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].IsoCode
	}
	if len(record.City.Names) > 0 {
		info.City = record.City.Names["en"]
	}
	return info, nil
}

// SetDataPath loads data and updates the reader.
func (g *GeoLocation) SetDataPath(path string) error {
	if strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tgz") {
		return g.loadArchive(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return g.load(data)
}

func (g *GeoLocation) loadArchive(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	if err != nil {
		return err
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		// io.EOF and other errors
		if err != nil {
			return errors.New("failed to read tar file: " + err.Error())
		}

		if filepath.Base(header.Name) == DatabaseFileName {
			buf := new(bytes.Buffer)
			if _, err := io.Copy(buf, tarReader); err != nil {
				return err
			}
			return g.load(buf.Bytes())
		}
	}
}

func (g *GeoLocation) load(data []byte) error {
	reader, err := geoip2.FromBytes(data)
	if err != nil {
		return err
	}
	if previous := g.reader.Swap(reader); previous != nil {
		previous.Close()
	}
	return nil
}
