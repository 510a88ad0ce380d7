package prometheusmetrics

import (
	"strconv"

	"github.com/prebid/prebid-request-core/metrics"
)

func valuesAsString[T ~string](values []T) []string {
	valuesAsString := make([]string, len(values))
	for i, v := range values {
		valuesAsString[i] = string(v)
	}
	return valuesAsString
}

func boolValuesAsString() []string {
	return []string{
		strconv.FormatBool(true),
		strconv.FormatBool(false),
	}
}

func cacheResultsAsString() []string {
	return valuesAsString(metrics.CacheResults())
}

func demandTypesAsString() []string {
	return valuesAsString(metrics.DemandTypes())
}

func requestStatusesAsString() []string {
	return valuesAsString(metrics.RequestStatuses())
}

func requestTypesAsString() []string {
	return valuesAsString(metrics.RequestTypes())
}

func storedDataFetchTypesAsString() []string {
	return valuesAsString(metrics.StoredDataFetchTypes())
}

func storedDataErrorsAsString() []string {
	return valuesAsString(metrics.StoredDataErrors())
}

func tcfVersionsAsString() []string {
	return valuesAsString(metrics.TCFVersions())
}
