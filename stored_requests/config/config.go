package config

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/stored_requests/backends/db_fetcher"
	"github.com/prebid/prebid-request-core/stored_requests/backends/db_provider"
	"github.com/prebid/prebid-request-core/stored_requests/backends/empty_fetcher"
	"github.com/prebid/prebid-request-core/stored_requests/backends/file_fetcher"
	"github.com/prebid/prebid-request-core/stored_requests/backends/http_fetcher"
	"github.com/prebid/prebid-request-core/stored_requests/caches/memory"
	"github.com/prebid/prebid-request-core/stored_requests/caches/nil_cache"
	redisCache "github.com/prebid/prebid-request-core/stored_requests/caches/redis"
)

// This gets set to the connection used when a database connection is made. We only support a single
// database currently, so all fetchers need to share the same db connection for now.
type dbConnection struct {
	cfg      config.DatabaseConnection
	provider db_provider.DbProvider
	db       *sql.DB
}

// StoredData holds the fetchers of every consumer of stored data.
type StoredData struct {
	// Requests serves /openrtb2/auction and /openrtb2/get.
	Requests stored_requests.Fetcher
	// AMP serves /openrtb2/amp. It is Requests unless an AMP specific backend is configured.
	AMP stored_requests.Fetcher
	// Video serves the pod configs and stored imps of /openrtb2/video.
	Video    stored_requests.Fetcher
	Accounts stored_requests.AccountFetcher

	closers []func() error
}

// Shutdown closes the database and redis connections opened for the fetchers.
func (sd *StoredData) Shutdown() {
	for _, closer := range sd.closers {
		if err := closer(); err != nil {
			glog.Errorf("Error closing a stored data connection: %v", err)
		}
	}
	sd.closers = nil
}

// NewStoredData builds the fetchers described by cfg. Every fetcher reports its backend latency and
// failures to metricsEngine, and sits behind the configured cache layers.
//
// If any errors occur, the program will exit with an error message.
// It probably means you have a bad config or networking issue.
func NewStoredData(cfg *config.Configuration, metricsEngine metrics.MetricsEngine, client *http.Client) *StoredData {
	var dbc dbConnection
	sd := &StoredData{}

	requests := sd.createFetcher(&cfg.StoredRequests, metrics.RequestDataType, metricsEngine, client, &dbc)
	sd.Requests = requests
	sd.Video = requests
	sd.AMP = requests
	if cfg.StoredRequests.HTTP.AmpEndpoint != "" || cfg.StoredRequests.Database.FetcherQueries.AmpQueryTemplate != "" {
		sd.AMP = sd.createFetcher(&cfg.StoredRequests, metrics.AMPDataType, metricsEngine, client, &dbc)
	}
	sd.Accounts = sd.createFetcher(&cfg.Accounts, metrics.AccountDataType, metricsEngine, client, &dbc)

	if dbc.db != nil {
		sd.closers = append(sd.closers, dbc.db.Close)
	}
	return sd
}

func (sd *StoredData) createFetcher(cfg *config.StoredRequests, dataType metrics.StoredDataType, metricsEngine metrics.MetricsEngine, client *http.Client, dbc *dbConnection) stored_requests.AllFetcher {
	if cfg.Database.Enabled() {
		conn := cfg.Database.ConnectionInfo

		if dbc.db == nil {
			provider, ok := db_provider.NewDbProvider(conn)
			if !ok {
				glog.Fatalf("Unsupported database driver %s for Stored %s", conn.Driver, dataType)
			}
			glog.Infof("Connecting to %s for Stored %s. DB=%s, host=%s, port=%d, user=%s",
				provider.DriverName(),
				dataType,
				conn.Database,
				conn.Host,
				conn.Port,
				conn.Username)
			dbc.db = db_provider.Open(string(dataType), provider, conn)
			dbc.provider = provider
			dbc.cfg = conn
		}

		// Error out if config is trying to use multiple database connections for different stored requests (not supported yet)
		if conn != dbc.cfg {
			glog.Fatal("Multiple database connection settings found in config, only a single database connection is currently supported.")
		}
	}

	fetcher := stored_requests.WithMetrics(newFetcher(cfg, dataType, client, dbc), dataType, metricsEngine)

	if cache, enabled := sd.newCache(cfg, dataType); enabled {
		fetcher = stored_requests.WithCache(fetcher, cache, metricsEngine)
	}
	return fetcher
}

func newFetcher(cfg *config.StoredRequests, dataType metrics.StoredDataType, client *http.Client, dbc *dbConnection) stored_requests.AllFetcher {
	idList := make(stored_requests.MultiFetcher, 0, 3)

	if cfg.Files.Enabled {
		idList = append(idList, newFilesystem(dataType, cfg.Files.Path))
	}
	if query := queryTemplate(cfg, dataType); query != "" && dbc.db != nil {
		glog.Infof("Loading Stored %s data via %s.\nQuery: %s", dataType, dbc.provider.DriverName(), query)
		provider := dbc.provider
		idList = append(idList, db_fetcher.NewFetcher(dbc.db, func(numReqs, numImps int) string {
			return db_provider.MakeQuery(provider, query, numReqs, numImps)
		}))
	}
	if endpoint := httpEndpoint(cfg, dataType); endpoint != "" {
		glog.Infof("Loading Stored %s data via HTTP. endpoint=%s", dataType, endpoint)
		idList = append(idList, http_fetcher.NewFetcher(client, endpoint))
	}

	return consolidate(dataType, idList)
}

func queryTemplate(cfg *config.StoredRequests, dataType metrics.StoredDataType) string {
	if dataType == metrics.AMPDataType && cfg.Database.FetcherQueries.AmpQueryTemplate != "" {
		return cfg.Database.FetcherQueries.AmpQueryTemplate
	}
	return cfg.Database.FetcherQueries.QueryTemplate
}

func httpEndpoint(cfg *config.StoredRequests, dataType metrics.StoredDataType) string {
	if dataType == metrics.AMPDataType && cfg.HTTP.AmpEndpoint != "" {
		return cfg.HTTP.AmpEndpoint
	}
	return cfg.HTTP.Endpoint
}

// newCache composes the in-memory and redis layers configured for cfg. The in-memory layer is consulted
// first. It reports false when no layer is configured.
func (sd *StoredData) newCache(cfg *config.StoredRequests, dataType metrics.StoredDataType) (stored_requests.Cache, bool) {
	var requests, imps, accounts stored_requests.ComposedCache

	if cfg.InMemoryCache.Type == "lru" {
		mem := memory.NewCache(&cfg.InMemoryCache)
		requests = append(requests, mem.Requests)
		imps = append(imps, mem.Imps)
		accounts = append(accounts, mem.Accounts)
	} else {
		glog.Warningf("No in-memory %s cache configured. The %s Fetcher backend will be used for all data requests", dataType, dataType)
	}

	if cfg.RedisCache.Enabled {
		client := newRedisClient(cfg.RedisCache)
		sd.closers = append(sd.closers, client.Close)

		ttl := time.Duration(cfg.RedisCache.TTLSeconds) * time.Second
		prefix := cfg.RedisCache.KeyPrefix
		requests = append(requests, redisCache.NewCache(client, fmt.Sprintf("%s:%s:", prefix, dataType), ttl))
		imps = append(imps, redisCache.NewCache(client, fmt.Sprintf("%s:%s-imp:", prefix, dataType), ttl))
		accounts = append(accounts, redisCache.NewCache(client, fmt.Sprintf("%s:%s:", prefix, dataType), ttl))
	}

	if len(requests) == 0 {
		return stored_requests.Cache{
			Requests: &nil_cache.NilCache{},
			Imps:     &nil_cache.NilCache{},
			Accounts: &nil_cache.NilCache{},
		}, false
	}
	return stored_requests.Cache{
		Requests: requests,
		Imps:     imps,
		Accounts: accounts,
	}, true
}

func newRedisClient(cfg config.RedisCache) *redis.Client {
	glog.Infof("Using a redis cache at %s, db %d, key prefix %q", cfg.Address, cfg.DB, cfg.KeyPrefix)
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func newFilesystem(dataType metrics.StoredDataType, configPath string) stored_requests.AllFetcher {
	glog.Infof("Loading Stored %s data from filesystem at path %s", dataType, configPath)
	fetcher, err := file_fetcher.NewFileFetcher(configPath)
	if err != nil {
		glog.Fatalf("Failed to create a %s FileFetcher: %v", dataType, err)
	}
	return fetcher
}

// consolidate returns a single Fetcher from an array of fetchers of any size.
func consolidate(dataType metrics.StoredDataType, fetchers []stored_requests.AllFetcher) stored_requests.AllFetcher {
	switch len(fetchers) {
	case 0:
		if dataType == metrics.RequestDataType {
			glog.Warning("No Stored Request support configured. request.imp[i].ext.prebid.storedrequest will be ignored. If you need this, check your app config")
		} else {
			glog.Warningf("No Stored %s support configured. If you need this, check your app config", dataType)
		}
		return empty_fetcher.EmptyFetcher{}
	case 1:
		return fetchers[0]
	default:
		return stored_requests.MultiFetcher(fetchers)
	}
}
