package prometheusmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func preloadLabelValues(m *Metrics) {
	var (
		boolValues            = boolValuesAsString()
		cacheResultValues     = cacheResultsAsString()
		connectionErrorValues = []string{connectionAcceptError, connectionCloseError}
		demandValues          = demandTypesAsString()
		requestStatusValues   = requestStatusesAsString()
		requestTypeValues     = requestTypesAsString()
		storedDataErrorValues = storedDataErrorsAsString()
		storedDataFetchValues = storedDataFetchTypesAsString()
		sourceValues          = []string{sourceRequest}
		tcfVersionValues      = tcfVersionsAsString()
	)

	preloadLabelValuesForCounter(m.connectionsError, map[string][]string{
		connectionErrorLabel: connectionErrorValues,
	})

	preloadLabelValuesForCounter(m.impressions, map[string][]string{
		isBannerLabel: boolValues,
		isVideoLabel:  boolValues,
		isAudioLabel:  boolValues,
		isNativeLabel: boolValues,
	})

	preloadLabelValuesForCounter(m.impressionsTruncated, map[string][]string{
		requestTypeLabel: requestTypeValues,
	})

	preloadLabelValuesForCounter(m.requests, map[string][]string{
		requestTypeLabel:   requestTypeValues,
		requestStatusLabel: requestStatusValues,
	})

	preloadLabelValuesForCounter(m.requestsByDemand, map[string][]string{
		demandSourceLabel: demandValues,
	})

	preloadLabelValuesForCounter(m.requestsSafari, map[string][]string{
		requestTypeLabel: requestTypeValues,
	})

	preloadLabelValuesForHistogram(m.requestsTimer, map[string][]string{
		requestTypeLabel: requestTypeValues,
	})

	for _, counter := range []*prometheus.CounterVec{m.storedImpressionsCacheResult, m.storedRequestCacheResult, m.accountCacheResult} {
		preloadLabelValuesForCounter(counter, map[string][]string{
			cacheResultLabel: cacheResultValues,
		})
	}

	for _, timer := range m.storedDataFetchTimers {
		preloadLabelValuesForHistogram(timer, map[string][]string{
			storedDataFetchLabel: storedDataFetchValues,
		})
	}

	for _, counter := range m.storedDataErrors {
		preloadLabelValuesForCounter(counter, map[string][]string{
			storedDataErrorLabel: storedDataErrorValues,
		})
	}

	preloadLabelValuesForCounter(m.privacyCCPA, map[string][]string{
		sourceLabel: sourceValues,
		optOutLabel: boolValues,
	})

	preloadLabelValuesForCounter(m.privacyCOPPA, map[string][]string{
		sourceLabel: sourceValues,
	})

	preloadLabelValuesForCounter(m.privacyGPP, map[string][]string{
		sourceLabel: sourceValues,
	})

	preloadLabelValuesForCounter(m.privacyLMT, map[string][]string{
		sourceLabel: sourceValues,
	})

	preloadLabelValuesForCounter(m.privacyTCF, map[string][]string{
		sourceLabel:  sourceValues,
		versionLabel: tcfVersionValues,
	})
}

func preloadLabelValuesForCounter(counter *prometheus.CounterVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		counter.With(labels)
	})
}

func preloadLabelValuesForHistogram(histogram *prometheus.HistogramVec, labelsWithValues map[string][]string) {
	registerLabelPermutations(labelsWithValues, func(labels prometheus.Labels) {
		histogram.With(labels)
	})
}

func registerLabelPermutations(labelsWithValues map[string][]string, register func(prometheus.Labels)) {
	if len(labelsWithValues) == 0 {
		return
	}

	keys := make([]string, 0, len(labelsWithValues))
	values := make([][]string, 0, len(labelsWithValues))
	for k, v := range labelsWithValues {
		keys = append(keys, k)
		values = append(values, v)
	}

	labels := prometheus.Labels{}
	registerLabelPermutationsRecursive(0, keys, values, labels, register)
}

func registerLabelPermutationsRecursive(depth int, keys []string, values [][]string, labels prometheus.Labels, register func(prometheus.Labels)) {
	label := keys[depth]
	isLeaf := depth == len(keys)-1

	if isLeaf {
		for _, v := range values[depth] {
			labels[label] = v
			register(cloneLabels(labels))
		}
	} else {
		for _, v := range values[depth] {
			labels[label] = v
			registerLabelPermutationsRecursive(depth+1, keys, values, labels, register)
		}
	}
}

func cloneLabels(labels prometheus.Labels) prometheus.Labels {
	clone := prometheus.Labels{}
	for k, v := range labels {
		clone[k] = v
	}
	return clone
}
