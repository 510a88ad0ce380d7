package stored_requests

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/prebid/prebid-request-core/metrics"
)

type instrumentedFetcher struct {
	fetcher       AllFetcher
	dataType      metrics.StoredDataType
	metricsEngine metrics.MetricsEngine
	clock         clock.Clock
}

// WithMetrics records the latency of every backend fetch and classifies the failures which are not a
// plain missing id.
func WithMetrics(fetcher AllFetcher, dataType metrics.StoredDataType, metricsEngine metrics.MetricsEngine) AllFetcher {
	return withMetricsClock(fetcher, dataType, metricsEngine, clock.New())
}

func withMetricsClock(fetcher AllFetcher, dataType metrics.StoredDataType, metricsEngine metrics.MetricsEngine, clk clock.Clock) AllFetcher {
	return &instrumentedFetcher{
		fetcher:       fetcher,
		dataType:      dataType,
		metricsEngine: metricsEngine,
		clock:         clk,
	}
}

func (f *instrumentedFetcher) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (map[string]json.RawMessage, map[string]json.RawMessage, []error) {
	start := f.clock.Now()
	requestData, impData, errs := f.fetcher.FetchRequests(ctx, requestIDs, impIDs)
	f.record(start, errs)
	return requestData, impData, errs
}

func (f *instrumentedFetcher) FetchAccount(ctx context.Context, accountDefaultsJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	start := f.clock.Now()
	account, errs := f.fetcher.FetchAccount(ctx, accountDefaultsJSON, accountID)
	f.record(start, errs)
	return account, errs
}

func (f *instrumentedFetcher) record(start time.Time, errs []error) {
	f.metricsEngine.RecordStoredDataFetchTime(metrics.StoredDataLabels{
		DataType:      f.dataType,
		DataFetchType: metrics.FetchDelta,
	}, f.clock.Since(start))

	for _, err := range errs {
		var nfErr NotFoundError
		if errors.As(err, &nfErr) {
			continue
		}
		f.metricsEngine.RecordStoredDataError(metrics.StoredDataLabels{
			DataType: f.dataType,
			Error:    ClassifyError(err),
		})
	}
}

// ClassifyError maps a backend failure to the label it is counted under.
func ClassifyError(err error) metrics.StoredDataError {
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return metrics.StoredDataErrorNetwork
	}
	return metrics.StoredDataErrorUndefined
}
