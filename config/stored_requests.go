package config

import (
	"fmt"
)

// StoredRequests configures the backend used to store requests on the server.
type StoredRequests struct {
	// Files should be used if Stored Requests should be loaded from the filesystem.
	Files FileFetcherConfig `mapstructure:"filesystem"`
	// Database configures Stored Requests loaded from a Postgres or MySQL database.
	Database DatabaseConfig `mapstructure:"database"`
	// HTTP configures Stored Requests loaded from a remote endpoint over HTTP.
	HTTP HTTPFetcherConfig `mapstructure:"http"`
	// InMemoryCache configures an in-memory cache in front of the backend.
	InMemoryCache InMemoryCache `mapstructure:"in_memory_cache"`
	// RedisCache configures a cache shared by every instance, consulted after the in-memory one.
	RedisCache RedisCache `mapstructure:"redis_cache"`
}

// FileFetcherConfig configures a stored_requests.Fetcher reading from the filesystem.
type FileFetcherConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"directorypath"`
}

// HTTPFetcherConfig configures a stored_requests.Fetcher which calls a remote endpoint.
type HTTPFetcherConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	AmpEndpoint string `mapstructure:"amp_endpoint"`
}

// DatabaseConfig configures the database connection and queries for Stored Requests.
type DatabaseConfig struct {
	ConnectionInfo DatabaseConnection     `mapstructure:"connection"`
	FetcherQueries DatabaseFetcherQueries `mapstructure:"fetcher"`
}

// Enabled reports whether enough of the connection is configured to open a database.
func (cfg *DatabaseConfig) Enabled() bool {
	return cfg.ConnectionInfo.Database != ""
}

type DatabaseConnection struct {
	// Driver is "postgres" or "mysql".
	Driver   string `mapstructure:"driver"`
	Database string `mapstructure:"dbname"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type DatabaseFetcherQueries struct {
	// QueryTemplate is the query which can be used to fetch configs from the database.
	// It is a Template, rather than a full Query, because a single HTTP request may reference multiple Stored Requests.
	//
	// In the simplest case, this could be something like:
	//   SELECT id, requestData, 'request' as type
	//     FROM stored_requests
	//     WHERE id in %REQUEST_ID_LIST%
	//     UNION ALL
	//   SELECT id, impData, 'imp' as type
	//     FROM stored_imps
	//     WHERE id in %IMP_ID_LIST%
	//
	// The id lists are expanded into the placeholders of the configured driver, ($1, $2) on
	// postgres and (?, ?) on mysql. For accounts the template uses %ID_LIST% with a single id.
	QueryTemplate string `mapstructure:"query"`

	// AmpQueryTemplate is the same as QueryTemplate, but used in the `/openrtb2/amp` endpoint.
	AmpQueryTemplate string `mapstructure:"amp_query"`
}

type InMemoryCache struct {
	// Type must be "none" or "lru".
	Type string `mapstructure:"type"`
	// TTL is the maximum number of seconds that an unused value will stay in the cache.
	// TTL <= 0 can be used for "no ttl". Elements will still be evicted based on the Size.
	TTL int `mapstructure:"ttl_seconds"`
	// Size is the max total bytes of an account cache.
	Size int `mapstructure:"size_bytes"`
	// RequestCacheSize is the max number of bytes allowed in the cache for Stored Requests.
	RequestCacheSize int `mapstructure:"request_cache_size_bytes"`
	// ImpCacheSize is the max number of bytes allowed in the cache for Stored Imps.
	ImpCacheSize int `mapstructure:"imp_cache_size_bytes"`
}

type RedisCache struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

func (cfg *StoredRequests) validate(section string, errs []error) []error {
	if cfg.HTTP.Endpoint != "" && !isValidURL(cfg.HTTP.Endpoint) {
		errs = append(errs, fmt.Errorf("%s.http.endpoint must be a valid URL. Got %s", section, cfg.HTTP.Endpoint))
	}
	if cfg.HTTP.AmpEndpoint != "" && !isValidURL(cfg.HTTP.AmpEndpoint) {
		errs = append(errs, fmt.Errorf("%s.http.amp_endpoint must be a valid URL. Got %s", section, cfg.HTTP.AmpEndpoint))
	}
	if cfg.Database.Enabled() {
		if cfg.Database.FetcherQueries.QueryTemplate == "" {
			errs = append(errs, fmt.Errorf("%s.database.fetcher.query must be set when %s.database.connection.dbname is", section, section))
		}
		if driver := cfg.Database.ConnectionInfo.Driver; driver != "postgres" && driver != "mysql" {
			errs = append(errs, fmt.Errorf("%s.database.connection.driver must be postgres or mysql. Got %q", section, driver))
		}
	}
	if cfg.Files.Enabled && cfg.Files.Path == "" {
		errs = append(errs, fmt.Errorf("%s.filesystem.directorypath must be set when %s.filesystem.enabled is true", section, section))
	}

	switch cfg.InMemoryCache.Type {
	case "none", "":
	case "lru":
		if section == "accounts" {
			if cfg.InMemoryCache.Size <= 0 {
				errs = append(errs, fmt.Errorf("%s.in_memory_cache.size_bytes must be positive when %s.in_memory_cache.type=lru. Got %d", section, section, cfg.InMemoryCache.Size))
			}
		} else {
			if cfg.InMemoryCache.RequestCacheSize <= 0 {
				errs = append(errs, fmt.Errorf("%s.in_memory_cache.request_cache_size_bytes must be positive when %s.in_memory_cache.type=lru. Got %d", section, section, cfg.InMemoryCache.RequestCacheSize))
			}
			if cfg.InMemoryCache.ImpCacheSize <= 0 {
				errs = append(errs, fmt.Errorf("%s.in_memory_cache.imp_cache_size_bytes must be positive when %s.in_memory_cache.type=lru. Got %d", section, section, cfg.InMemoryCache.ImpCacheSize))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("%s.in_memory_cache.type %s is invalid", section, cfg.InMemoryCache.Type))
	}

	if cfg.RedisCache.Enabled && cfg.RedisCache.Address == "" {
		errs = append(errs, fmt.Errorf("%s.redis_cache.address must be set when %s.redis_cache.enabled is true", section, section))
	}
	return errs
}
