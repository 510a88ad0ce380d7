package prometheusmetrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/metrics"
)

func createMetricsForTesting() *Metrics {
	return NewMetrics(config.PrometheusMetrics{
		Port:      8080,
		Namespace: "prebid",
		Subsystem: "server",
	})
}

func TestMetricCountGatekeeping(t *testing.T) {
	m := createMetricsForTesting()

	count, err := testutil.GatherAndCount(m.Registry)

	assert.NoError(t, err)
	assert.Greater(t, count, 0, "preloaded label values should be exported before any request")
}

func TestConnectionMetrics(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordConnectionAccept(true)
	m.RecordConnectionAccept(false)
	m.RecordConnectionClose(true)
	m.RecordConnectionClose(false)
	m.RecordConnectionClose(false)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectionsOpened))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.connectionsError.With(prometheus.Labels{connectionErrorLabel: connectionAcceptError})))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.connectionsError.With(prometheus.Labels{connectionErrorLabel: connectionCloseError})))
}

func TestRequestMetric(t *testing.T) {
	testCases := []struct {
		description           string
		labels                metrics.Labels
		expectedAccountCount  float64
		expectedSafariCount   float64
		expectedDemandCounted bool
	}{
		{
			description: "known account from safari",
			labels: metrics.Labels{
				Source:        metrics.DemandWeb,
				RType:         metrics.ReqTypeORTB2Web,
				PubID:         "acct",
				Browser:       metrics.BrowserSafari,
				RequestStatus: metrics.RequestStatusOK,
			},
			expectedAccountCount:  1,
			expectedSafariCount:   1,
			expectedDemandCounted: true,
		},
		{
			description: "unknown account",
			labels: metrics.Labels{
				Source:        metrics.DemandWeb,
				RType:         metrics.ReqTypeORTB2Web,
				PubID:         metrics.PublisherUnknown,
				Browser:       metrics.BrowserOther,
				RequestStatus: metrics.RequestStatusOK,
			},
			expectedDemandCounted: true,
		},
	}

	for _, test := range testCases {
		m := createMetricsForTesting()

		m.RecordRequest(test.labels)

		assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.With(prometheus.Labels{
			requestTypeLabel:   string(test.labels.RType),
			requestStatusLabel: string(test.labels.RequestStatus),
		})), test.description)
		assert.Equal(t, test.expectedSafariCount, testutil.ToFloat64(m.requestsSafari.With(prometheus.Labels{
			requestTypeLabel: string(test.labels.RType),
		})), test.description)
		assert.Equal(t, test.expectedAccountCount, testutil.ToFloat64(m.accountRequests.With(prometheus.Labels{
			accountLabel: "acct",
		})), test.description)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.requestsByDemand.With(prometheus.Labels{
			demandSourceLabel: string(test.labels.Source),
		})), test.description)
	}
}

func TestImpressionsMetric(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordImps(metrics.ImpLabels{BannerImps: true, VideoImps: true})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.impressions.With(prometheus.Labels{
		isBannerLabel: "true",
		isVideoLabel:  "true",
		isAudioLabel:  "false",
		isNativeLabel: "false",
	})))
}

func TestImpressionsTruncatedMetric(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordImpsTruncated(metrics.ReqTypeAMP, 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.impressionsTruncated.With(prometheus.Labels{
		requestTypeLabel: string(metrics.ReqTypeAMP),
	})))
}

func TestRequestTimeMetric(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordRequestTime(metrics.Labels{RType: metrics.ReqTypeVideo, RequestStatus: metrics.RequestStatusOK}, 100*time.Millisecond)
	m.RecordRequestTime(metrics.Labels{RType: metrics.ReqTypeVideo, RequestStatus: metrics.RequestStatusBadInput}, 100*time.Millisecond)

	assert.Equal(t, uint64(1), histogramSampleCount(t, m, "prebid_server_request_time_seconds", requestTypeLabel, string(metrics.ReqTypeVideo)))
}

func histogramSampleCount(t *testing.T, m *Metrics, name, labelName, labelValue string) uint64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if !assert.NoError(t, err) {
		return 0
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == labelName && label.GetValue() == labelValue {
					return metric.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestStoredDataMetrics(t *testing.T) {
	testCases := []struct {
		description  string
		dataType     metrics.StoredDataType
		expectedName string
	}{
		{description: "account", dataType: metrics.AccountDataType, expectedName: "stored_account_errors"},
		{description: "amp", dataType: metrics.AMPDataType, expectedName: "stored_amp_errors"},
		{description: "request", dataType: metrics.RequestDataType, expectedName: "stored_request_errors"},
		{description: "video", dataType: metrics.VideoDataType, expectedName: "stored_video_errors"},
	}

	for _, test := range testCases {
		m := createMetricsForTesting()

		m.RecordStoredDataError(metrics.StoredDataLabels{DataType: test.dataType, Error: metrics.StoredDataErrorNetwork})
		m.RecordStoredDataFetchTime(metrics.StoredDataLabels{DataType: test.dataType, DataFetchType: metrics.FetchAll}, time.Millisecond)

		errors := m.storedDataErrors[test.dataType]
		assert.Equal(t, float64(1), testutil.ToFloat64(errors.With(prometheus.Labels{
			storedDataErrorLabel: string(metrics.StoredDataErrorNetwork),
		})), test.description)
		assert.Equal(t, float64(0), testutil.ToFloat64(errors.With(prometheus.Labels{
			storedDataErrorLabel: string(metrics.StoredDataErrorUndefined),
		})), test.description)
		assert.Equal(t, 2, testutil.CollectAndCount(m.storedDataFetchTimers[test.dataType]), test.description)
		count, err := testutil.GatherAndCount(m.Registry, "prebid_server_"+test.expectedName)
		assert.NoError(t, err, test.description)
		assert.Positive(t, count, test.description)
	}
}

func TestStoredDataMetricsUnknownType(t *testing.T) {
	m := createMetricsForTesting()

	assert.NotPanics(t, func() {
		m.RecordStoredDataError(metrics.StoredDataLabels{DataType: "unknown", Error: metrics.StoredDataErrorNetwork})
		m.RecordStoredDataFetchTime(metrics.StoredDataLabels{DataType: "unknown", DataFetchType: metrics.FetchAll}, time.Millisecond)
	})
}

func TestCacheResultMetrics(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordStoredReqCacheResult(metrics.CacheMiss, 2)
	m.RecordStoredImpCacheResult(metrics.CacheHit, 3)
	m.RecordAccountCacheResult(metrics.CacheHit, 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.storedRequestCacheResult.With(prometheus.Labels{cacheResultLabel: string(metrics.CacheMiss)})))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.storedImpressionsCacheResult.With(prometheus.Labels{cacheResultLabel: string(metrics.CacheHit)})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.accountCacheResult.With(prometheus.Labels{cacheResultLabel: string(metrics.CacheHit)})))
}

func TestRecordRequestPrivacy(t *testing.T) {
	m := createMetricsForTesting()

	m.RecordRequestPrivacy(metrics.PrivacyLabels{
		CCPAProvided:   true,
		CCPAEnforced:   true,
		COPPAEnforced:  true,
		GDPREnforced:   true,
		GDPRTCFVersion: metrics.TCFVersionV2,
		GPPProvided:    true,
		LMTEnforced:    true,
	})
	m.RecordRequestPrivacy(metrics.PrivacyLabels{
		CCPAProvided: true,
	})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyCCPA.With(prometheus.Labels{sourceLabel: sourceRequest, optOutLabel: "true"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyCCPA.With(prometheus.Labels{sourceLabel: sourceRequest, optOutLabel: "false"})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyCOPPA.With(prometheus.Labels{sourceLabel: sourceRequest})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyTCF.With(prometheus.Labels{sourceLabel: sourceRequest, versionLabel: string(metrics.TCFVersionV2)})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyGPP.With(prometheus.Labels{sourceLabel: sourceRequest})))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.privacyLMT.With(prometheus.Labels{sourceLabel: sourceRequest})))
}

func TestRegisterLabelPermutations(t *testing.T) {
	testCases := []struct {
		description      string
		labelsWithValues map[string][]string
		expectedCount    int
	}{
		{
			description:      "none",
			labelsWithValues: map[string][]string{},
			expectedCount:    0,
		},
		{
			description:      "one label",
			labelsWithValues: map[string][]string{"a": {"1", "2"}},
			expectedCount:    2,
		},
		{
			description:      "two labels",
			labelsWithValues: map[string][]string{"a": {"1", "2"}, "b": {"x", "y", "z"}},
			expectedCount:    6,
		},
	}

	for _, test := range testCases {
		count := 0
		registerLabelPermutations(test.labelsWithValues, func(prometheus.Labels) { count++ })
		assert.Equal(t, test.expectedCount, count, test.description)
	}
}
