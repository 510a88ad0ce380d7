package prometheusmetrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/metrics"
)

// Metrics defines the Prometheus metrics backing the MetricsEngine implementation.
type Metrics struct {
	Registry *prometheus.Registry

	// General Metrics
	connectionsClosed            prometheus.Counter
	connectionsError             *prometheus.CounterVec
	connectionsOpened            prometheus.Counter
	impressions                  *prometheus.CounterVec
	impressionsTruncated         *prometheus.CounterVec
	requests                     *prometheus.CounterVec
	requestsByDemand             *prometheus.CounterVec
	requestsSafari               *prometheus.CounterVec
	requestsTimer                *prometheus.HistogramVec
	storedImpressionsCacheResult *prometheus.CounterVec
	storedRequestCacheResult     *prometheus.CounterVec
	accountCacheResult           *prometheus.CounterVec
	storedDataFetchTimers        map[metrics.StoredDataType]*prometheus.HistogramVec
	storedDataErrors             map[metrics.StoredDataType]*prometheus.CounterVec
	privacyCCPA                  *prometheus.CounterVec
	privacyCOPPA                 *prometheus.CounterVec
	privacyGPP                   *prometheus.CounterVec
	privacyLMT                   *prometheus.CounterVec
	privacyTCF                   *prometheus.CounterVec

	// Account Metrics
	accountRequests *prometheus.CounterVec
}

const (
	accountLabel         = "account"
	cacheResultLabel     = "cache_result"
	connectionErrorLabel = "connection_error"
	demandSourceLabel    = "demand_source"
	isAudioLabel         = "audio"
	isBannerLabel        = "banner"
	isNativeLabel        = "native"
	isVideoLabel         = "video"
	optOutLabel          = "opt_out"
	requestStatusLabel   = "request_status"
	requestTypeLabel     = "request_type"
	sourceLabel          = "source"
	storedDataErrorLabel = "stored_data_error"
	storedDataFetchLabel = "stored_data_fetch_type"
	versionLabel         = "version"
)

const (
	connectionAcceptError = "accept"
	connectionCloseError  = "close"
)

const (
	sourceRequest = "request"
)

// NewMetrics initializes a new Prometheus metrics instance with preloaded label values.
func NewMetrics(cfg config.PrometheusMetrics) *Metrics {
	standardTimeBuckets := []float64{0.05, 0.1, 0.15, 0.20, 0.25, 0.3, 0.4, 0.5, 0.75, 1}

	m := &Metrics{}
	m.Registry = prometheus.NewRegistry()

	m.connectionsClosed = newCounterWithoutLabels(cfg, m.Registry,
		"connections_closed",
		"Count of successful connections closed.")

	m.connectionsError = newCounter(cfg, m.Registry,
		"connections_error",
		"Count of errors for connection open and close attempts labeled by type.",
		[]string{connectionErrorLabel})

	m.connectionsOpened = newCounterWithoutLabels(cfg, m.Registry,
		"connections_opened",
		"Count of successful connections opened.")

	m.impressions = newCounter(cfg, m.Registry,
		"impressions_requests",
		"Count of requested impressions labeled by type.",
		[]string{isBannerLabel, isVideoLabel, isAudioLabel, isNativeLabel})

	m.impressionsTruncated = newCounter(cfg, m.Registry,
		"impressions_truncated",
		"Count of impressions dropped by the per request impression limit labeled by request type.",
		[]string{requestTypeLabel})

	m.requests = newCounter(cfg, m.Registry,
		"requests",
		"Count of total requests labeled by type and status.",
		[]string{requestTypeLabel, requestStatusLabel})

	m.requestsByDemand = newCounter(cfg, m.Registry,
		"requests_by_demand_source",
		"Count of total requests labeled by demand source.",
		[]string{demandSourceLabel})

	m.requestsSafari = newCounter(cfg, m.Registry,
		"requests_safari",
		"Count of total requests from Safari labeled by type.",
		[]string{requestTypeLabel})

	m.requestsTimer = newHistogramVec(cfg, m.Registry,
		"request_time_seconds",
		"Seconds to resolve successful requests labeled by type.",
		[]string{requestTypeLabel},
		standardTimeBuckets)

	m.storedImpressionsCacheResult = newCounter(cfg, m.Registry,
		"stored_impressions_cache_performance",
		"Count of stored impression cache requests attempts by hits or miss.",
		[]string{cacheResultLabel})

	m.storedRequestCacheResult = newCounter(cfg, m.Registry,
		"stored_request_cache_performance",
		"Count of stored request cache requests attempts by hits or miss.",
		[]string{cacheResultLabel})

	m.accountCacheResult = newCounter(cfg, m.Registry,
		"account_cache_performance",
		"Count of account cache lookups by hits or miss.",
		[]string{cacheResultLabel})

	m.storedDataFetchTimers = make(map[metrics.StoredDataType]*prometheus.HistogramVec)
	m.storedDataErrors = make(map[metrics.StoredDataType]*prometheus.CounterVec)
	for _, dataType := range metrics.StoredDataTypes() {
		m.storedDataFetchTimers[dataType] = newHistogramVec(cfg, m.Registry,
			fmt.Sprintf("stored_%s_fetch_time_seconds", dataType),
			fmt.Sprintf("Seconds to fetch stored %s data labeled by fetch type", dataType),
			[]string{storedDataFetchLabel},
			standardTimeBuckets)

		m.storedDataErrors[dataType] = newCounter(cfg, m.Registry,
			fmt.Sprintf("stored_%s_errors", dataType),
			fmt.Sprintf("Count of stored %s data errors by error type", dataType),
			[]string{storedDataErrorLabel})
	}

	m.privacyCCPA = newCounter(cfg, m.Registry,
		"privacy_ccpa",
		"Count of total requests with CCPA information labeled by source and opt out.",
		[]string{sourceLabel, optOutLabel})

	m.privacyCOPPA = newCounter(cfg, m.Registry,
		"privacy_coppa",
		"Count of total requests with COPPA information labeled by source.",
		[]string{sourceLabel})

	m.privacyGPP = newCounter(cfg, m.Registry,
		"privacy_gpp",
		"Count of total requests with a GPP string labeled by source.",
		[]string{sourceLabel})

	m.privacyLMT = newCounter(cfg, m.Registry,
		"privacy_lmt",
		"Count of total requests with LMT information labeled by source.",
		[]string{sourceLabel})

	m.privacyTCF = newCounter(cfg, m.Registry,
		"privacy_tcf",
		"Count of TCF versions for requests where GDPR was enforced labeled by version and source.",
		[]string{versionLabel, sourceLabel})

	m.accountRequests = newCounter(cfg, m.Registry,
		"account_requests",
		"Count of total requests labeled by account.",
		[]string{accountLabel})

	preloadLabelValues(m)

	return m
}

func newCounter(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string) *prometheus.CounterVec {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounterVec(opts, labels)
	registry.MustRegister(counter)
	return counter
}

func newCounterWithoutLabels(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string) prometheus.Counter {
	opts := prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
	}
	counter := prometheus.NewCounter(opts)
	registry.MustRegister(counter)
	return counter
}

func newHistogramVec(cfg config.PrometheusMetrics, registry *prometheus.Registry, name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	opts := prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}
	histogram := prometheus.NewHistogramVec(opts, labels)
	registry.MustRegister(histogram)
	return histogram
}

func (m *Metrics) RecordConnectionAccept(success bool) {
	if success {
		m.connectionsOpened.Inc()
	} else {
		m.connectionsError.With(prometheus.Labels{
			connectionErrorLabel: connectionAcceptError,
		}).Inc()
	}
}

func (m *Metrics) RecordConnectionClose(success bool) {
	if success {
		m.connectionsClosed.Inc()
	} else {
		m.connectionsError.With(prometheus.Labels{
			connectionErrorLabel: connectionCloseError,
		}).Inc()
	}
}

func (m *Metrics) RecordRequest(labels metrics.Labels) {
	m.requests.With(prometheus.Labels{
		requestTypeLabel:   string(labels.RType),
		requestStatusLabel: string(labels.RequestStatus),
	}).Inc()

	if labels.Source != "" {
		m.requestsByDemand.With(prometheus.Labels{
			demandSourceLabel: string(labels.Source),
		}).Inc()
	}

	if labels.Browser == metrics.BrowserSafari {
		m.requestsSafari.With(prometheus.Labels{
			requestTypeLabel: string(labels.RType),
		}).Inc()
	}

	if labels.PubID != metrics.PublisherUnknown && labels.PubID != "" {
		m.accountRequests.With(prometheus.Labels{
			accountLabel: labels.PubID,
		}).Inc()
	}
}

func (m *Metrics) RecordImps(labels metrics.ImpLabels) {
	m.impressions.With(prometheus.Labels{
		isBannerLabel: strconv.FormatBool(labels.BannerImps),
		isVideoLabel:  strconv.FormatBool(labels.VideoImps),
		isAudioLabel:  strconv.FormatBool(labels.AudioImps),
		isNativeLabel: strconv.FormatBool(labels.NativeImps),
	}).Inc()
}

func (m *Metrics) RecordImpsTruncated(requestType metrics.RequestType, dropped int) {
	m.impressionsTruncated.With(prometheus.Labels{
		requestTypeLabel: string(requestType),
	}).Add(float64(dropped))
}

func (m *Metrics) RecordRequestTime(labels metrics.Labels, length time.Duration) {
	if labels.RequestStatus == metrics.RequestStatusOK {
		m.requestsTimer.With(prometheus.Labels{
			requestTypeLabel: string(labels.RType),
		}).Observe(length.Seconds())
	}
}

func (m *Metrics) RecordStoredDataFetchTime(labels metrics.StoredDataLabels, length time.Duration) {
	if timer, ok := m.storedDataFetchTimers[labels.DataType]; ok {
		timer.With(prometheus.Labels{
			storedDataFetchLabel: string(labels.DataFetchType),
		}).Observe(length.Seconds())
	}
}

func (m *Metrics) RecordStoredDataError(labels metrics.StoredDataLabels) {
	if counter, ok := m.storedDataErrors[labels.DataType]; ok {
		counter.With(prometheus.Labels{
			storedDataErrorLabel: string(labels.Error),
		}).Inc()
	}
}

func (m *Metrics) RecordStoredReqCacheResult(cacheResult metrics.CacheResult, inc int) {
	m.storedRequestCacheResult.With(prometheus.Labels{
		cacheResultLabel: string(cacheResult),
	}).Add(float64(inc))
}

func (m *Metrics) RecordStoredImpCacheResult(cacheResult metrics.CacheResult, inc int) {
	m.storedImpressionsCacheResult.With(prometheus.Labels{
		cacheResultLabel: string(cacheResult),
	}).Add(float64(inc))
}

func (m *Metrics) RecordAccountCacheResult(cacheResult metrics.CacheResult, inc int) {
	m.accountCacheResult.With(prometheus.Labels{
		cacheResultLabel: string(cacheResult),
	}).Add(float64(inc))
}

func (m *Metrics) RecordRequestPrivacy(privacy metrics.PrivacyLabels) {
	if privacy.CCPAProvided {
		m.privacyCCPA.With(prometheus.Labels{
			sourceLabel: sourceRequest,
			optOutLabel: strconv.FormatBool(privacy.CCPAEnforced),
		}).Inc()
	}

	if privacy.COPPAEnforced {
		m.privacyCOPPA.With(prometheus.Labels{
			sourceLabel: sourceRequest,
		}).Inc()
	}

	if privacy.GDPREnforced {
		m.privacyTCF.With(prometheus.Labels{
			versionLabel: string(privacy.GDPRTCFVersion),
			sourceLabel:  sourceRequest,
		}).Inc()
	}

	if privacy.GPPProvided {
		m.privacyGPP.With(prometheus.Labels{
			sourceLabel: sourceRequest,
		}).Inc()
	}

	if privacy.LMTEnforced {
		m.privacyLMT.With(prometheus.Labels{
			sourceLabel: sourceRequest,
		}).Inc()
	}
}
