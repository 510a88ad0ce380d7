package openrtb2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/metrics"
	metricsConf "github.com/prebid/prebid-request-core/metrics/config"
	"github.com/prebid/prebid-request-core/stored_requests"
)

const maxSize = 1024 * 256

type mockStoredReqFetcher struct {
	requests map[string]json.RawMessage
	imps     map[string]json.RawMessage
	err      error

	mu    sync.Mutex
	calls int
}

func (f *mockStoredReqFetcher) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (map[string]json.RawMessage, map[string]json.RawMessage, []error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, nil, []error{f.err}
	}

	var errs []error
	requests := make(map[string]json.RawMessage, len(requestIDs))
	for _, id := range requestIDs {
		if data, ok := f.requests[id]; ok {
			requests[id] = data
		} else {
			errs = append(errs, stored_requests.NotFoundError{ID: id, DataType: "Request"})
		}
	}
	imps := make(map[string]json.RawMessage, len(impIDs))
	for _, id := range impIDs {
		if data, ok := f.imps[id]; ok {
			imps[id] = data
		} else {
			errs = append(errs, stored_requests.NotFoundError{ID: id, DataType: "Imp"})
		}
	}
	return requests, imps, errs
}

func (f *mockStoredReqFetcher) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mockAccountFetcher struct {
	accounts map[string]json.RawMessage

	mu    sync.Mutex
	calls []string
}

func (af *mockAccountFetcher) FetchAccount(ctx context.Context, accountDefaultsJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	af.mu.Lock()
	af.calls = append(af.calls, accountID)
	af.mu.Unlock()

	if account, ok := af.accounts[accountID]; ok {
		return stored_requests.MergeAccountDefaults(accountDefaultsJSON, accountID, account)
	}
	return nil, []error{stored_requests.NotFoundError{ID: accountID, DataType: "Account"}}
}

type fakeUUIDGenerator struct {
	id  string
	err error
}

func (f fakeUUIDGenerator) Generate() (string, error) {
	return f.id, f.err
}

var errUUID = errors.New("uuid generator failed")

func newTestConfig() *config.Configuration {
	return &config.Configuration{
		MaxRequestSize:     maxSize,
		AdServerCurrency:   "USD",
		BlacklistedAcctMap: map[string]bool{"321": true},
		BlacklistedAppMap:  map[string]bool{"blocked_app": true},
		GDPR:               config.GDPR{DefaultValue: "0"},
		AuctionPipeline:    config.AuctionPipeline{MaxWorkers: 2, MaxQueue: 8},
	}
}

type testEndpointOptions struct {
	cfg           *config.Configuration
	stored        *mockStoredReqFetcher
	video         *mockStoredReqFetcher
	accounts      *mockAccountFetcher
	metricsEngine metrics.MetricsEngine
}

func newTestDeps(t *testing.T, opts testEndpointOptions) *endpointDeps {
	t.Helper()

	if opts.cfg == nil {
		opts.cfg = newTestConfig()
	}
	if opts.stored == nil {
		opts.stored = &mockStoredReqFetcher{}
	}
	if opts.accounts == nil {
		opts.accounts = &mockAccountFetcher{}
	}
	if opts.metricsEngine == nil {
		opts.metricsEngine = &metricsConf.NilMetricsEngine{}
	}

	deps, err := newEndpointDeps(fakeUUIDGenerator{id: "generated-id"}, opts.stored, opts.accounts, nil, opts.cfg, opts.metricsEngine)
	require.NoError(t, err)
	if opts.video != nil {
		deps.videoFetcher = opts.video
	}
	return deps
}

// dryRun is the decoded body of a successful response.
type dryRun struct {
	Request      json.RawMessage   `json:"request"`
	Privacy      privacySummary    `json:"privacy"`
	Account      json.RawMessage   `json:"account"`
	Warnings     []responseWarning `json:"warnings"`
	TmaxBudgetMs int64             `json:"tmax_budget_ms"`
}

func doRequest(handle httprouter.Handle, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for key, values := range header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	handle(recorder, request, nil)
	return recorder
}

func decodeDryRun(t *testing.T, recorder *httptest.ResponseRecorder) dryRun {
	t.Helper()
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var response dryRun
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	return response
}

func warningCodes(warnings []responseWarning) []int {
	codes := make([]int, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	return codes
}
