package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/golang/glog"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/util/iputil"
	"github.com/spf13/viper"
	"golang.org/x/text/currency"
)

// Configuration specifies the static application config.
type Configuration struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	AdminPort      int    `mapstructure:"admin_port"`
	EnableGzip     bool   `mapstructure:"enable_gzip"`
	MaxRequestSize int64  `mapstructure:"max_request_size"`

	AuctionTimeouts  AuctionTimeouts `mapstructure:"auction_timeouts_ms"`
	AdServerCurrency string          `mapstructure:"ad_server_currency"`

	// AccountRequired rejects requests which do not resolve to an account id.
	AccountRequired bool `mapstructure:"account_required"`
	// BlacklistedAccts is the list of publisher account ids which are always rejected.
	BlacklistedAccts   []string `mapstructure:"blacklisted_accts,flow"`
	BlacklistedAcctMap map[string]bool
	// BlacklistedApps is the list of app.id values which are always rejected.
	BlacklistedApps   []string `mapstructure:"blacklisted_apps,flow"`
	BlacklistedAppMap map[string]bool
	// AccountDefaults are applied underneath every account fetched from Accounts.
	AccountDefaults     Account `mapstructure:"account_defaults"`
	accountDefaultsJSON json.RawMessage

	StoredRequests StoredRequests `mapstructure:"stored_requests"`
	Accounts       StoredRequests `mapstructure:"accounts"`

	Video             Video             `mapstructure:"video"`
	Cache             Cache             `mapstructure:"cache"`
	GDPR              GDPR              `mapstructure:"gdpr"`
	Geolocation       Geolocation       `mapstructure:"geolocation"`
	Metrics           Metrics           `mapstructure:"metrics"`
	RequestValidation RequestValidation `mapstructure:"request_validation"`
	AuctionPipeline   AuctionPipeline   `mapstructure:"auction_pipeline"`
}

// AuctionPipeline sizes the worker pool which runs the I/O bound pipeline steps.
type AuctionPipeline struct {
	// MaxWorkers is the number of steps of one endpoint which may run at the same time.
	MaxWorkers int `mapstructure:"max_workers"`
	// MaxQueue is the number of steps which may wait for a worker. A step which finds the queue
	// full runs on its own goroutine.
	MaxQueue int `mapstructure:"max_queue"`
}

func (cfg *AuctionPipeline) validate(errs []error) []error {
	if cfg.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("auction_pipeline.max_workers must be positive. Got %d", cfg.MaxWorkers))
	}
	if cfg.MaxQueue < 0 {
		errs = append(errs, fmt.Errorf("auction_pipeline.max_queue must be >= 0. Got %d", cfg.MaxQueue))
	}
	return errs
}

// AuctionTimeouts bounds the tmax of every assembled request.
type AuctionTimeouts struct {
	// The default timeout is used if the user's request didn't define one. Use 0 if there's no default.
	Default uint64 `mapstructure:"default"`
	// The max timeout is used as an absolute cap, to prevent excessively long ones. Use 0 for no cap
	Max uint64 `mapstructure:"max"`
	// SafetyMargin is kept back from the request budget for the work done after the core hands off.
	SafetyMargin uint64 `mapstructure:"safety_margin"`
}

func (cfg *AuctionTimeouts) validate(errs []error) []error {
	if cfg.Max < cfg.Default && cfg.Max > 0 {
		errs = append(errs, fmt.Errorf("auction_timeouts_ms.max cannot be less than auction_timeouts_ms.default. max=%d, default=%d", cfg.Max, cfg.Default))
	}
	if cfg.SafetyMargin > 0 && cfg.Default > 0 && cfg.SafetyMargin >= cfg.Default {
		errs = append(errs, fmt.Errorf("auction_timeouts_ms.safety_margin must be less than auction_timeouts_ms.default. safety_margin=%d, default=%d", cfg.SafetyMargin, cfg.Default))
	}
	return errs
}

// LimitAuctionTimeout returns the min of requested or cfg.MaxAuctionTimeout.
// Both values treat "0" as "infinite".
func (cfg *AuctionTimeouts) LimitAuctionTimeout(requested time.Duration) time.Duration {
	if requested == 0 && cfg.Default != 0 {
		return time.Duration(cfg.Default) * time.Millisecond
	}
	if cfg.Max > 0 {
		maxTimeout := time.Duration(cfg.Max) * time.Millisecond
		if requested == 0 || requested > maxTimeout {
			return maxTimeout
		}
	}
	return requested
}

// Budget is the time the pipeline may spend on a request whose tmax has already been limited.
// The safety margin is taken off, but never below zero.
func (cfg *AuctionTimeouts) Budget(limited time.Duration) time.Duration {
	margin := time.Duration(cfg.SafetyMargin) * time.Millisecond
	if limited <= margin {
		return limited
	}
	return limited - margin
}

type Video struct {
	// EnforceStoredRequests makes storedrequestid mandatory on the video endpoint.
	EnforceStoredRequests bool `mapstructure:"enforce_stored_requests"`
}

type Cache struct {
	// WinningOnly is the default for ext.prebid.cache.winningonly when a request does not set it.
	WinningOnly bool `mapstructure:"winning_only"`
}

type GDPR struct {
	// DefaultValue decides whether gdpr is enforced when a request leaves it undetermined.
	DefaultValue string `mapstructure:"default_value"`
	// EEACountries are the alpha-2 country codes in which GDPR applies.
	EEACountries    []string `mapstructure:"eea_countries"`
	EEACountriesMap map[string]struct{}
}

func (cfg *GDPR) validate(v *viper.Viper, errs []error) []error {
	if !v.IsSet("gdpr.default_value") {
		errs = append(errs, errors.New("gdpr.default_value is required and must be specified"))
	} else if cfg.DefaultValue != "0" && cfg.DefaultValue != "1" {
		errs = append(errs, errors.New("gdpr.default_value must be 0 or 1"))
	}
	for _, country := range cfg.EEACountries {
		if len(country) != 2 {
			errs = append(errs, fmt.Errorf("gdpr.eea_countries must hold alpha-2 country codes. Got %s", country))
		}
	}
	return errs
}

type Geolocation struct {
	Enabled         bool    `mapstructure:"enabled"`
	MaxMind         MaxMind `mapstructure:"maxmind"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
}

type MaxMind struct {
	DatabasePath string `mapstructure:"database_path"`
}

func (cfg *Geolocation) validate(errs []error) []error {
	if cfg.Enabled && cfg.MaxMind.DatabasePath == "" {
		errs = append(errs, errors.New("geolocation.maxmind.database_path must be set when geolocation.enabled is true"))
	}
	if cfg.CacheTTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("geolocation.cache_ttl_seconds must be >= 0. Got %d", cfg.CacheTTLSeconds))
	}
	return errs
}

type Metrics struct {
	Prometheus PrometheusMetrics `mapstructure:"prometheus"`
	GoMetrics  GoMetrics         `mapstructure:"gometrics"`
}

type PrometheusMetrics struct {
	Port             int    `mapstructure:"port"`
	Namespace        string `mapstructure:"namespace"`
	Subsystem        string `mapstructure:"subsystem"`
	TimeoutMillisRaw int    `mapstructure:"timeout_ms"`
}

func (cfg *PrometheusMetrics) validate(errs []error) []error {
	if cfg.Port > 0 && cfg.TimeoutMillisRaw <= 0 {
		errs = append(errs, fmt.Errorf("metrics.prometheus.timeout_ms must be positive if metrics.prometheus.port is defined. Got timeout=%d and port=%d", cfg.TimeoutMillisRaw, cfg.Port))
	}
	return errs
}

func (m *PrometheusMetrics) Timeout() time.Duration {
	return time.Duration(m.TimeoutMillisRaw) * time.Millisecond
}

// GoMetrics configures the in-process rcrowley/go-metrics registry, which is periodically
// written to the application log.
type GoMetrics struct {
	Enabled            bool `mapstructure:"enabled"`
	LogIntervalSeconds int  `mapstructure:"log_interval_seconds"`
}

type RequestValidation struct {
	IPv4PrivateNetworks       []string `mapstructure:"ipv4_private_networks,flow"`
	IPv4PrivateNetworksParsed []net.IPNet
	IPv6PrivateNetworks       []string `mapstructure:"ipv6_private_networks,flow"`
	IPv6PrivateNetworksParsed []net.IPNet
}

func (cfg *RequestValidation) parse() error {
	var invalid []string
	cfg.IPv4PrivateNetworksParsed, invalid = iputil.ParseNetworks(cfg.IPv4PrivateNetworks)
	if len(invalid) > 0 {
		return fmt.Errorf("Invalid private IPv4 networks: '%s'", strings.Join(invalid, "','"))
	}
	cfg.IPv6PrivateNetworksParsed, invalid = iputil.ParseNetworks(cfg.IPv6PrivateNetworks)
	if len(invalid) > 0 {
		return fmt.Errorf("Invalid private IPv6 networks: '%s'", strings.Join(invalid, "','"))
	}
	return nil
}

// IPValidator returns the validator used to pick a public client address from the request headers.
func (cfg *RequestValidation) IPValidator() iputil.IPValidator {
	return iputil.PublicNetworkIPValidator{
		IPv4PrivateNetworks: cfg.IPv4PrivateNetworksParsed,
		IPv6PrivateNetworks: cfg.IPv6PrivateNetworksParsed,
	}
}

func (cfg *Configuration) validate(v *viper.Viper) []error {
	var errs []error
	if cfg.MaxRequestSize < 0 {
		errs = append(errs, fmt.Errorf("cfg.max_request_size must be >= 0. Got %d", cfg.MaxRequestSize))
	}
	errs = cfg.AuctionTimeouts.validate(errs)
	if _, err := currency.ParseISO(cfg.AdServerCurrency); err != nil {
		errs = append(errs, fmt.Errorf("ad_server_currency must be a valid ISO-4217 currency code. Got %s", cfg.AdServerCurrency))
	}
	errs = cfg.StoredRequests.validate("stored_requests", errs)
	errs = cfg.Accounts.validate("accounts", errs)
	errs = cfg.GDPR.validate(v, errs)
	errs = cfg.Geolocation.validate(errs)
	errs = cfg.Metrics.Prometheus.validate(errs)
	errs = cfg.AuctionPipeline.validate(errs)
	if cfg.Metrics.GoMetrics.Enabled && cfg.Metrics.GoMetrics.LogIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("metrics.gometrics.log_interval_seconds must be positive if metrics.gometrics.enabled is true. Got %d", cfg.Metrics.GoMetrics.LogIntervalSeconds))
	}
	if err := cfg.AccountDefaults.validate(); err != nil {
		errs = append(errs, fmt.Errorf("account_defaults: %v", err))
	}
	return errs
}

// New uses viper to get our server configurations.
func New(v *viper.Viper) (*Configuration, error) {
	var c Configuration
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("viper failed to unmarshal app config: %v", err)
	}

	if err := c.RequestValidation.parse(); err != nil {
		return nil, err
	}

	c.BlacklistedAcctMap = toSet(c.BlacklistedAccts)
	c.BlacklistedAppMap = toSet(c.BlacklistedApps)

	c.GDPR.EEACountriesMap = make(map[string]struct{}, len(c.GDPR.EEACountries))
	for _, country := range c.GDPR.EEACountries {
		c.GDPR.EEACountriesMap[strings.ToUpper(country)] = struct{}{}
	}

	var err error
	if c.accountDefaultsJSON, err = json.Marshal(c.AccountDefaults); err != nil {
		glog.Warningf("converting %+v to json: %v", c.AccountDefaults, err)
	}

	glog.Info("Logging the resolved configuration:")
	logGeneral(c, "  \t")
	if errs := c.validate(v); len(errs) > 0 {
		return &c, errortypes.NewAggregateErrors("validation errors", errs)
	}

	return &c, nil
}

// AccountDefaultsJSON returns the json representation of the account defaults, which is the base
// every fetched account is merged onto.
func (cfg *Configuration) AccountDefaultsJSON() json.RawMessage {
	return cfg.accountDefaultsJSON
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}

// SetupViper sets the defaults, the config file search paths and the environment binding.
// An empty filename skips reading a config file.
func SetupViper(v *viper.Viper, filename string) {
	if filename != "" {
		v.SetConfigName(filename)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/config")
	}

	v.SetDefault("host", "")
	v.SetDefault("port", 8000)
	v.SetDefault("admin_port", 6060)
	v.SetDefault("enable_gzip", false)
	v.SetDefault("max_request_size", 1024*256)
	v.SetDefault("auction_timeouts_ms.default", 1000)
	v.SetDefault("auction_timeouts_ms.max", 0)
	v.SetDefault("auction_timeouts_ms.safety_margin", 0)
	v.SetDefault("ad_server_currency", "USD")
	v.SetDefault("account_required", false)
	v.SetDefault("blacklisted_accts", []string{})
	v.SetDefault("blacklisted_apps", []string{})
	v.SetDefault("account_defaults.disabled", false)
	v.SetDefault("account_defaults.status", string(AccountStatusActive))
	v.SetDefault("account_defaults.events.enabled", false)
	v.SetDefault("account_defaults.default_integration", "")

	v.SetDefault("stored_requests.filesystem.enabled", false)
	v.SetDefault("stored_requests.filesystem.directorypath", "./stored_requests/data/by_id")
	v.SetDefault("stored_requests.http.endpoint", "")
	v.SetDefault("stored_requests.http.amp_endpoint", "")
	v.SetDefault("stored_requests.database.connection.driver", "postgres")
	v.SetDefault("stored_requests.database.connection.dbname", "")
	v.SetDefault("stored_requests.database.connection.host", "")
	v.SetDefault("stored_requests.database.connection.port", 0)
	v.SetDefault("stored_requests.database.connection.user", "")
	v.SetDefault("stored_requests.database.connection.password", "")
	v.SetDefault("stored_requests.database.fetcher.query", "")
	v.SetDefault("stored_requests.database.fetcher.amp_query", "")
	v.SetDefault("stored_requests.in_memory_cache.type", "none")
	v.SetDefault("stored_requests.in_memory_cache.ttl_seconds", 0)
	v.SetDefault("stored_requests.in_memory_cache.request_cache_size_bytes", 0)
	v.SetDefault("stored_requests.in_memory_cache.imp_cache_size_bytes", 0)
	v.SetDefault("stored_requests.redis_cache.enabled", false)
	v.SetDefault("stored_requests.redis_cache.address", "")
	v.SetDefault("stored_requests.redis_cache.password", "")
	v.SetDefault("stored_requests.redis_cache.db", 0)
	v.SetDefault("stored_requests.redis_cache.ttl_seconds", 0)
	v.SetDefault("stored_requests.redis_cache.key_prefix", "pbs")

	v.SetDefault("accounts.filesystem.enabled", false)
	v.SetDefault("accounts.filesystem.directorypath", "./stored_requests/data/by_id")
	v.SetDefault("accounts.http.endpoint", "")
	v.SetDefault("accounts.database.connection.driver", "postgres")
	v.SetDefault("accounts.database.fetcher.query", "")
	v.SetDefault("accounts.in_memory_cache.type", "none")
	v.SetDefault("accounts.in_memory_cache.ttl_seconds", 0)
	v.SetDefault("accounts.in_memory_cache.size_bytes", 0)
	v.SetDefault("accounts.redis_cache.enabled", false)
	v.SetDefault("accounts.redis_cache.key_prefix", "pbs")

	v.SetDefault("video.enforce_stored_requests", false)
	v.SetDefault("cache.winning_only", false)
	v.SetDefault("gdpr.eea_countries", []string{"AX", "AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR", "GF", "DE", "GI", "GR", "GP", "GG", "HU", "IS", "IE", "IM", "IT", "JE", "LV", "LI", "LT", "LU", "MT", "MQ", "YT", "NL", "NO", "PL", "PT", "RE", "RO", "BL", "MF", "PM", "SK", "SI", "ES", "SE", "GB", "CH"})
	v.SetDefault("geolocation.enabled", false)
	v.SetDefault("geolocation.maxmind.database_path", "")
	v.SetDefault("geolocation.cache_ttl_seconds", 3600)
	v.SetDefault("metrics.prometheus.port", 0)
	v.SetDefault("metrics.prometheus.namespace", "")
	v.SetDefault("metrics.prometheus.subsystem", "")
	v.SetDefault("metrics.prometheus.timeout_ms", 10000)
	v.SetDefault("metrics.gometrics.enabled", false)
	v.SetDefault("metrics.gometrics.log_interval_seconds", 60)
	v.SetDefault("request_validation.ipv4_private_networks", []string{"10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8", "169.254.0.0/16", "172.16.0.0/12", "192.168.0.0/16"})
	v.SetDefault("request_validation.ipv6_private_networks", []string{"::1/128", "fc00::/7", "fe80::/10", "ff00::/8", "2001:db8::/32"})

	v.SetDefault("auction_pipeline.max_workers", 256)
	v.SetDefault("auction_pipeline.max_queue", 1024)

	v.SetEnvPrefix("PBS")
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if filename != "" {
		if err := v.ReadInConfig(); err != nil {
			glog.Warningf("Viper couldn't read config file %s: %v. Defaults and environment only.", filename, err)
		}
	}
}

func isValidURL(value string) bool {
	return govalidator.IsURL(value) && govalidator.IsRequestURL(value)
}
