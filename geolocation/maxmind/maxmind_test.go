package maxmind

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/geolocation"
)

const testIP = "2.125.160.216"

func TestGeoLocationNoReader(t *testing.T) {
	geo := &GeoLocation{}
	_, err := geo.Lookup(context.Background(), testIP)
	assert.Equal(t, geolocation.ErrDatabaseUnavailable, err, "should return error if data path is not set")
}

func TestGeoLocationInvalidIP(t *testing.T) {
	geo := &GeoLocation{}
	for _, ip := range []string{"", "bad ip"} {
		_, err := geo.Lookup(context.Background(), ip)
		assert.Equal(t, geolocation.ErrLookupIPInvalid, err, ip)
	}
}

func TestGeoLocationSetDataPath(t *testing.T) {
	dir := t.TempDir()

	badDatabase := filepath.Join(dir, "nothing.mmdb")
	require.NoError(t, os.WriteFile(badDatabase, []byte("not a maxmind database"), 0644))

	notAnArchive := filepath.Join(dir, "nothing.tar.gz")
	require.NoError(t, os.WriteFile(notAnArchive, []byte("not an archive"), 0644))

	emptyArchive := filepath.Join(dir, "empty.tar.gz")
	writeArchive(t, emptyArchive, map[string][]byte{"README.txt": []byte("hello")})

	badDataArchive := filepath.Join(dir, "bad-data.tar.gz")
	writeArchive(t, badDataArchive, map[string][]byte{"GeoLite2-City_20240101/" + DatabaseFileName: []byte("bad data")})

	tests := []struct {
		name string
		path string
	}{
		{
			name: "File not exists",
			path: filepath.Join(dir, "no_file"),
		},
		{
			name: "File is not a maxmind database",
			path: badDatabase,
		},
		{
			name: "File is not a tar.gz archive",
			path: notAnArchive,
		},
		{
			name: "Archive does not contain GeoLite2-City.mmdb",
			path: emptyArchive,
		},
		{
			name: "Archive contains GeoLite2-City.mmdb, but GeoLite2-City.mmdb has bad data",
			path: badDataArchive,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			geo := &GeoLocation{}
			assert.Error(t, geo.SetDataPath(test.path), "data path %s should return error", test.path)
			assert.Nil(t, geo.reader.Load())
		})
	}
}

func TestNewPropagatesLoadError(t *testing.T) {
	geo, err := New(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Nil(t, geo)
	assert.Error(t, err)
}

func writeArchive(t *testing.T, path string, files map[string][]byte) {
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	tarWriter := tar.NewWriter(gzipWriter)
	for name, content := range files {
		require.NoError(t, tarWriter.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}))
		_, err := tarWriter.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzipWriter.Close())
}
