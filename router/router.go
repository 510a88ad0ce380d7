package router

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/endpoints"
	"github.com/prebid/prebid-request-core/endpoints/openrtb2"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/geolocation/maxmind"
	metricsConf "github.com/prebid/prebid-request-core/metrics/config"
	storedRequestsConf "github.com/prebid/prebid-request-core/stored_requests/config"
	"github.com/prebid/prebid-request-core/util/uuidutil"
)

// NoCache wraps a handler so that its responses are never cached by browsers or proxies.
type NoCache struct {
	Handler http.Handler
}

func (m NoCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Add("Pragma", "no-cache")
	w.Header().Add("Expires", "0")
	m.Handler.ServeHTTP(w, r)
}

type Router struct {
	*httprouter.Router
	MetricsEngine *metricsConf.DetailedMetricsEngine
	Shutdown      func()
}

func New(cfg *config.Configuration) (r *Router, err error) {
	r = &Router{
		Router: httprouter.New(),
	}

	generalHttpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r.MetricsEngine = metricsConf.NewMetricsEngine(cfg)
	storedData := storedRequestsConf.NewStoredData(cfg, r.MetricsEngine, generalHttpClient)
	r.Shutdown = storedData.Shutdown

	geo := newGeoLocation(cfg.Geolocation)
	uuidGenerator := uuidutil.UUIDRandomGenerator{}

	openrtbEndpoint, err := openrtb2.NewEndpoint(uuidGenerator, storedData.Requests, storedData.Accounts, geo, cfg, r.MetricsEngine)
	if err != nil {
		glog.Fatalf("Failed to create the openrtb2 endpoint handler. %v", err)
	}

	ampEndpoint, err := openrtb2.NewAmpEndpoint(uuidGenerator, storedData.AMP, storedData.Accounts, geo, cfg, r.MetricsEngine)
	if err != nil {
		glog.Fatalf("Failed to create the amp endpoint handler. %v", err)
	}

	videoEndpoint, err := openrtb2.NewVideoEndpoint(uuidGenerator, storedData.Requests, storedData.Video, storedData.Accounts, geo, cfg, r.MetricsEngine)
	if err != nil {
		glog.Fatalf("Failed to create the video endpoint handler. %v", err)
	}

	getEndpoint, err := openrtb2.NewGetEndpoint(uuidGenerator, storedData.Requests, storedData.Accounts, geo, cfg, r.MetricsEngine)
	if err != nil {
		glog.Fatalf("Failed to create the get endpoint handler. %v", err)
	}

	r.POST("/openrtb2/auction", openrtbEndpoint)
	r.GET("/openrtb2/amp", ampEndpoint)
	r.POST("/openrtb2/video", videoEndpoint)
	r.GET("/openrtb2/get", getEndpoint)
	r.GET("/status", statusEndpoint)

	return r, nil
}

// newGeoLocation returns nil when geolocation is disabled, which turns off GDPR scope inference by country.
// A database which cannot be loaded leaves every lookup failing, so requests still resolve with a warning.
func newGeoLocation(cfg config.Geolocation) geolocation.GeoLocation {
	if !cfg.Enabled {
		return nil
	}

	geo, err := maxmind.New(cfg.MaxMind.DatabasePath)
	if err != nil {
		glog.Errorf("Failed to load the maxmind database at %s: %v", cfg.MaxMind.DatabasePath, err)
		return geolocation.NewNilGeoLocation()
	}
	glog.Infof("Loaded the maxmind database at %s", cfg.MaxMind.DatabasePath)
	return geolocation.NewCachedGeoLocation(geo, time.Duration(cfg.CacheTTLSeconds)*time.Second)
}

func statusEndpoint(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}

// Admin returns the handler of the admin port: the build version and the pprof profiles.
func Admin(version, revision string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/version", endpoints.NewVersionEndpoint(version, revision))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// SupportCORS lets any origin call the endpoints with credentials. AMP pages and publisher sites on any
// domain post to the auction endpoints, and browsers send the consent cookies along.
func SupportCORS(handler http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowCredentials: true,
		AllowOriginFunc: func(string) bool {
			return true
		},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept"}})
	return c.Handler(handler)
}
