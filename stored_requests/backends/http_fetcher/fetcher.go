package http_fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"

	"github.com/prebid/prebid-request-core/stored_requests"
)

// NewFetcher returns a Fetcher which uses the Client to pull data from the endpoint.
//
// The endpoint must answer
//
//	GET {endpoint}?request-ids=["req1","req2"]&imp-ids=["imp1","imp2"]
//
// with
//
//	{
//	  "requests": { "req1": { ... }, "req2": { ... } },
//	  "imps": { "imp1": { ... }, "imp2": null }
//	}
//
// and
//
//	GET {endpoint}?account-ids=["acc1"]
//
// with
//
//	{ "accounts": { "acc1": { ... } } }
//
// An id mapped to null, or left out of the response, is reported as not found. Query parameters
// already on the endpoint are kept.
func NewFetcher(client *http.Client, endpoint string) *HttpFetcher {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		glog.Fatalf(`Invalid endpoint "%s": %v`, endpoint, err)
	}
	glog.Infof("Making http_fetcher for endpoint %v", endpoint)

	return &HttpFetcher{
		client:   client,
		endpoint: parsed,
	}
}

type HttpFetcher struct {
	client   *http.Client
	endpoint *url.URL
}

type storedDataResponse struct {
	Requests map[string]json.RawMessage `json:"requests"`
	Imps     map[string]json.RawMessage `json:"imps"`
}

type accountsResponse struct {
	Accounts map[string]json.RawMessage `json:"accounts"`
}

func (fetcher *HttpFetcher) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (map[string]json.RawMessage, map[string]json.RawMessage, []error) {
	if len(requestIDs) == 0 && len(impIDs) == 0 {
		return nil, nil, nil
	}

	var resp storedDataResponse
	if err := fetcher.get(ctx, fetcher.storedDataURL(requestIDs, impIDs), &resp); err != nil {
		return nil, nil, []error{fmt.Errorf("Error fetching Stored Requests via HTTP: %w", err)}
	}

	requests, errs := found(resp.Requests, requestIDs, "Request", nil)
	imps, errs := found(resp.Imps, impIDs, "Imp", errs)
	return requests, imps, errs
}

// FetchAccount returns the account JSON merged over the defaults. The account itself is not validated here.
func (fetcher *HttpFetcher) FetchAccount(ctx context.Context, accountDefaultsJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	var resp accountsResponse
	if err := fetcher.get(ctx, fetcher.withQuery("account-ids", []string{accountID}), &resp); err != nil {
		return nil, []error{fmt.Errorf("Error fetching account %s via HTTP: %w", accountID, err)}
	}

	accounts, errs := found(resp.Accounts, []string{accountID}, "Account", nil)
	if len(errs) > 0 {
		return nil, errs
	}
	return stored_requests.MergeAccountDefaults(accountDefaultsJSON, accountID, accounts[accountID])
}

func (fetcher *HttpFetcher) storedDataURL(requestIDs []string, impIDs []string) string {
	var params []string
	if len(requestIDs) > 0 {
		params = append(params, "request-ids="+url.QueryEscape(idList(requestIDs)))
	}
	if len(impIDs) > 0 {
		params = append(params, "imp-ids="+url.QueryEscape(idList(impIDs)))
	}
	return fetcher.urlWith(strings.Join(params, "&"))
}

func (fetcher *HttpFetcher) withQuery(param string, ids []string) string {
	return fetcher.urlWith(param + "=" + url.QueryEscape(idList(ids)))
}

// urlWith appends params after any query the endpoint was configured with.
func (fetcher *HttpFetcher) urlWith(params string) string {
	u := *fetcher.endpoint
	if u.RawQuery == "" {
		u.RawQuery = params
	} else {
		u.RawQuery += "&" + params
	}
	return u.String()
}

func (fetcher *HttpFetcher) get(ctx context.Context, target string, into interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request failed with %w", err)
	}

	httpResp, err := ctxhttp.Do(ctx, fetcher.client, httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected response status %d", httpResp.StatusCode)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// found keeps the non-null entries of data and reports every requested id without one.
func found(data map[string]json.RawMessage, ids []string, dataType string, errs []error) (map[string]json.RawMessage, []error) {
	result := make(map[string]json.RawMessage, len(ids))
	for _, id := range ids {
		value, ok := data[id]
		if !ok || bytes.Equal(value, []byte("null")) {
			errs = append(errs, stored_requests.NotFoundError{ID: id, DataType: dataType})
			continue
		}
		result[id] = value
	}
	return result, errs
}

func idList(ids []string) string {
	return `["` + strings.Join(ids, `","`) + `"]`
}
