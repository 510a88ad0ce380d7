package http_fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/stored_requests"
)

func TestStoredDataURL(t *testing.T) {
	testCases := []struct {
		description string
		endpoint    string
		requestIDs  []string
		impIDs      []string
		expectedURL string
	}{
		{
			description: "single request",
			endpoint:    "http://prebid.com/stored_requests",
			requestIDs:  []string{"req-1"},
			expectedURL: `http://prebid.com/stored_requests?request-ids=["req-1"]`,
		},
		{
			description: "several requests",
			endpoint:    "http://prebid.com/stored_requests",
			requestIDs:  []string{"req-1", "req-2"},
			expectedURL: `http://prebid.com/stored_requests?request-ids=["req-1","req-2"]`,
		},
		{
			description: "single imp",
			endpoint:    "http://prebid.com/stored_requests",
			impIDs:      []string{"imp-1"},
			expectedURL: `http://prebid.com/stored_requests?imp-ids=["imp-1"]`,
		},
		{
			description: "requests and imps",
			endpoint:    "http://prebid.com/stored_requests",
			requestIDs:  []string{"req-1"},
			impIDs:      []string{"imp-1", "imp-2"},
			expectedURL: `http://prebid.com/stored_requests?request-ids=["req-1"]&imp-ids=["imp-1","imp-2"]`,
		},
		{
			description: "endpoint with a query",
			endpoint:    "http://prebid.com/stored_requests?key=abc",
			requestIDs:  []string{"req-1"},
			expectedURL: `http://prebid.com/stored_requests?key=abc&request-ids=["req-1"]`,
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			fetcher := NewFetcher(http.DefaultClient, test.endpoint)

			unescaped, err := url.QueryUnescape(fetcher.storedDataURL(test.requestIDs, test.impIDs))
			require.NoError(t, err)
			assert.Equal(t, test.expectedURL, unescaped)
		})
	}
}

func TestFetchRequests(t *testing.T) {
	testCases := []struct {
		description     string
		status          int
		body            string
		expectedReqData map[string]json.RawMessage
		expectedImpData map[string]json.RawMessage
		expectedErrs    []error
		expectedErrMsg  string
	}{
		{
			description:     "all found",
			status:          http.StatusOK,
			body:            `{"requests":{"req-1":{"id":"req-1"}},"imps":{"imp-1":{"id":"imp-1"},"imp-2":{"id":"imp-2"}}}`,
			expectedReqData: map[string]json.RawMessage{"req-1": json.RawMessage(`{"id":"req-1"}`)},
			expectedImpData: map[string]json.RawMessage{"imp-1": json.RawMessage(`{"id":"imp-1"}`), "imp-2": json.RawMessage(`{"id":"imp-2"}`)},
		},
		{
			description:     "null and missing values are not found",
			status:          http.StatusOK,
			body:            `{"requests":{"req-1":null},"imps":{"imp-1":{"id":"imp-1"}}}`,
			expectedReqData: map[string]json.RawMessage{},
			expectedImpData: map[string]json.RawMessage{"imp-1": json.RawMessage(`{"id":"imp-1"}`)},
			expectedErrs: []error{
				stored_requests.NotFoundError{ID: "req-1", DataType: "Request"},
				stored_requests.NotFoundError{ID: "imp-2", DataType: "Imp"},
			},
		},
		{
			description:    "malformed",
			status:         http.StatusOK,
			body:           `{`,
			expectedErrMsg: "Error fetching Stored Requests via HTTP: failed to parse response",
		},
		{
			description:    "error status",
			status:         http.StatusBadGateway,
			body:           "Bad response",
			expectedErrMsg: "Error fetching Stored Requests via HTTP: unexpected response status 502",
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, `["req-1"]`, r.URL.Query().Get("request-ids"))
				assert.Equal(t, `["imp-1","imp-2"]`, r.URL.Query().Get("imp-ids"))
				w.WriteHeader(test.status)
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			fetcher := NewFetcher(server.Client(), server.URL)
			reqData, impData, errs := fetcher.FetchRequests(context.Background(), []string{"req-1"}, []string{"imp-1", "imp-2"})

			if test.expectedErrMsg != "" {
				require.Len(t, errs, 1)
				assert.Contains(t, errs[0].Error(), test.expectedErrMsg)
				assert.Nil(t, reqData)
				assert.Nil(t, impData)
				return
			}
			assert.Equal(t, test.expectedErrs, errs)
			assert.Equal(t, test.expectedReqData, reqData)
			assert.Equal(t, test.expectedImpData, impData)
		})
	}
}

func TestFetchRequestsNoIDs(t *testing.T) {
	fetcher := NewFetcher(http.DefaultClient, "http://localhost:0")
	reqData, impData, errs := fetcher.FetchRequests(context.Background(), nil, nil)

	assert.Nil(t, reqData)
	assert.Nil(t, impData)
	assert.Nil(t, errs)
}

func TestFetchAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("account-ids") {
		case `["acc-1"]`:
			w.Write([]byte(`{"accounts":{"acc-1":{"id":"acc-1","disabled":false}}}`))
		case `["missing"]`:
			w.Write([]byte(`{"accounts":{"missing":null}}`))
		case `["absent"]`:
			w.Write([]byte(`{"accounts":{}}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), server.URL)

	account, errs := fetcher.FetchAccount(context.Background(), json.RawMessage(`{"default_integration":"web"}`), "acc-1")
	assert.Empty(t, errs)
	assert.JSONEq(t, `{"id":"acc-1","disabled":false,"default_integration":"web"}`, string(account))

	for _, id := range []string{"missing", "absent"} {
		account, errs = fetcher.FetchAccount(context.Background(), nil, id)
		assert.Nil(t, account, id)
		assert.Equal(t, []error{stored_requests.NotFoundError{ID: id, DataType: "Account"}}, errs, id)
	}

	_, errs = fetcher.FetchAccount(context.Background(), nil, "broken")
	if assert.Len(t, errs, 1) {
		assert.EqualError(t, errs[0], "Error fetching account broken via HTTP: unexpected response status 500")
	}
}

func TestFetchRequestsDeadline(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := NewFetcher(server.Client(), server.URL)
	_, _, errs := fetcher.FetchRequests(ctx, []string{"req-1"}, nil)

	if assert.Len(t, errs, 1) {
		assert.ErrorIs(t, errs[0], context.Canceled)
	}
}
