package account

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/stored_requests"
)

var mockAccountData = map[string]json.RawMessage{
	"valid_acct":       json.RawMessage(`{"disabled":false,"default_integration":"pbjs","events":{"enabled":true}}`),
	"disabled_acct":    json.RawMessage(`{"disabled":true}`),
	"inactive_acct":    json.RawMessage(`{"status":"inactive"}`),
	"malformed_acct":   json.RawMessage(`{"disabled":"invalid type"}`),
	"bad_status_acct":  json.RawMessage(`{"status":"paused"}`),
	"parent_acct":      json.RawMessage(`{}`),
	"stored_tmpl_acct": json.RawMessage(`{}`),
}

type mockAccountFetcher struct {
	calls []string
	err   error
}

func (af *mockAccountFetcher) FetchAccount(ctx context.Context, accountDefaultsJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	af.calls = append(af.calls, accountID)
	if af.err != nil {
		return nil, []error{af.err}
	}
	if account, ok := mockAccountData[accountID]; ok {
		return account, nil
	}
	return nil, []error{stored_requests.NotFoundError{ID: accountID, DataType: "Account"}}
}

func newTestConfig(required bool, defaultsDisabled bool) *config.Configuration {
	return &config.Configuration{
		AccountRequired:    required,
		AccountDefaults:    config.Account{Disabled: defaultsDisabled},
		BlacklistedAcctMap: map[string]bool{"321": true},
		BlacklistedAppMap:  map[string]bool{"blocked_app": true},
	}
}

func sitePublisherRequest(pubID string, pubExt string) *openrtb_ext.RequestWrapper {
	pub := &openrtb2.Publisher{ID: pubID}
	if pubExt != "" {
		pub.Ext = json.RawMessage(pubExt)
	}
	return &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{Site: &openrtb2.Site{Publisher: pub}}}
}

func TestResolveID(t *testing.T) {
	testCases := []struct {
		description string
		req         *openrtb_ext.RequestWrapper
		ids         IDSources
		expected    string
	}{
		{
			description: "stored request account wins over everything",
			req:         sitePublisherRequest("pub", `{"prebid":{"parentAccount":"parent"}}`),
			ids:         IDSources{Stored: "stored", Explicit: "explicit"},
			expected:    "stored",
		},
		{
			description: "explicit account wins over the publisher",
			req:         sitePublisherRequest("pub", `{"prebid":{"parentAccount":"parent"}}`),
			ids:         IDSources{Explicit: "explicit"},
			expected:    "explicit",
		},
		{
			description: "parent account wins over publisher id",
			req:         sitePublisherRequest("pub", `{"prebid":{"parentAccount":"parent"}}`),
			expected:    "parent",
		},
		{
			description: "blank parent account falls back to publisher id",
			req:         sitePublisherRequest("pub", `{"prebid":{"parentAccount":"  "}}`),
			expected:    "pub",
		},
		{
			description: "malformed publisher ext falls back to publisher id",
			req:         sitePublisherRequest("pub", `{"prebid":`),
			expected:    "pub",
		},
		{
			description: "app publisher is preferred",
			req: &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{
				App: &openrtb2.App{Publisher: &openrtb2.Publisher{ID: "app_pub"}},
			}},
			expected: "app_pub",
		},
		{
			description: "no publisher",
			req:         &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}},
			expected:    "",
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, ResolveID(test.req, test.ids))
		})
	}
}

func TestResolve(t *testing.T) {
	testCases := []struct {
		description      string
		accountID        string
		required         bool
		defaultsDisabled bool
		fetchErr         error
		expectedStatus   Status
		expectedErr      error
		expectedWarning  bool
	}{
		{description: "valid account", accountID: "valid_acct", expectedStatus: StatusActive},
		{description: "valid account required", accountID: "valid_acct", required: true, expectedStatus: StatusActive},
		{description: "valid account with disabled defaults", accountID: "valid_acct", defaultsDisabled: true, expectedStatus: StatusActive},
		{description: "empty id", accountID: "", expectedStatus: StatusUnknown},
		{description: "empty id required", accountID: "", required: true, expectedErr: &errortypes.AcctRequired{}},
		{description: "empty id with disabled defaults", accountID: "", defaultsDisabled: true, expectedErr: &errortypes.AccountDisabled{}},
		{description: "unknown account falls back", accountID: "doesnt_exist_acct", expectedStatus: StatusUnknown, expectedWarning: true},
		{description: "unknown account required", accountID: "doesnt_exist_acct", required: true, expectedErr: &errortypes.AcctRequired{}},
		{description: "fetch failure falls back", accountID: "valid_acct", fetchErr: errors.New("db down"), expectedStatus: StatusUnknown, expectedWarning: true},
		{description: "fetch failure required", accountID: "valid_acct", fetchErr: errors.New("db down"), required: true, expectedErr: &errortypes.AcctRequired{}},
		{description: "disabled account", accountID: "disabled_acct", expectedErr: &errortypes.AccountDisabled{}},
		{description: "inactive account", accountID: "inactive_acct", expectedErr: &errortypes.AccountDisabled{}},
		{description: "inactive account required", accountID: "inactive_acct", required: true, expectedErr: &errortypes.AccountDisabled{}},
		{description: "malformed account", accountID: "malformed_acct", expectedErr: &errortypes.MalformedAcct{}},
		{description: "unsupported status", accountID: "bad_status_acct", expectedErr: &errortypes.MalformedAcct{}},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			fetcher := &mockAccountFetcher{err: test.fetchErr}
			resolver, err := NewResolver(newTestConfig(test.required, test.defaultsDisabled), fetcher)
			require.NoError(t, err)

			acct, errs := resolver.Resolve(context.Background(), sitePublisherRequest(test.accountID, ""), IDSources{})

			if test.expectedErr != nil {
				require.Len(t, errs, 1)
				assert.IsType(t, test.expectedErr, errs[0])
				assert.Nil(t, acct)
				return
			}
			require.NotNil(t, acct)
			assert.Equal(t, test.accountID, acct.ID)
			assert.Equal(t, test.expectedStatus, acct.Status)
			assert.False(t, acct.Blacklisted)
			if test.expectedWarning {
				require.Len(t, errs, 1)
				assert.Equal(t, errortypes.AccountFallbackWarningCode, errortypes.ReadCode(errs[0]))
				assert.False(t, errortypes.ContainsFatalError(errs))
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestResolveValidAccountFields(t *testing.T) {
	resolver, err := NewResolver(newTestConfig(false, false), &mockAccountFetcher{})
	require.NoError(t, err)

	acct, errs := resolver.Resolve(context.Background(), sitePublisherRequest("valid_acct", ""), IDSources{})

	assert.Empty(t, errs)
	require.NotNil(t, acct)
	assert.Equal(t, "pbjs", acct.DefaultIntegration)
	assert.True(t, acct.EventsEnabled)
	require.NotNil(t, acct.Config)
	assert.Equal(t, "valid_acct", acct.Config.ID)
}

func TestResolveBlacklistBeforeStorage(t *testing.T) {
	testCases := []struct {
		description string
		req         *openrtb_ext.RequestWrapper
		ids         IDSources
		expectedErr error
	}{
		{
			description: "blacklisted publisher id",
			req:         sitePublisherRequest("321", ""),
			expectedErr: &errortypes.BlacklistedAcct{},
		},
		{
			description: "blacklisted explicit account",
			req:         sitePublisherRequest("valid_acct", ""),
			ids:         IDSources{Explicit: "321"},
			expectedErr: &errortypes.BlacklistedAcct{},
		},
		{
			description: "blacklisted app",
			req: &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{
				App: &openrtb2.App{ID: "blocked_app", Publisher: &openrtb2.Publisher{ID: "valid_acct"}},
			}},
			expectedErr: &errortypes.BlacklistedApp{},
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			fetcher := &mockAccountFetcher{}
			resolver, err := NewResolver(newTestConfig(true, false), fetcher)
			require.NoError(t, err)

			acct, errs := resolver.Resolve(context.Background(), test.req, test.ids)

			require.Len(t, errs, 1)
			assert.IsType(t, test.expectedErr, errs[0])
			assert.True(t, errortypes.IsUnauthorized(errs[0]))
			require.NotNil(t, acct)
			assert.True(t, acct.Blacklisted)
			assert.Empty(t, fetcher.calls, "no storage call may happen for a blacklisted request")
		})
	}
}

func TestResolveUsesHighestPrecedenceID(t *testing.T) {
	fetcher := &mockAccountFetcher{}
	resolver, err := NewResolver(newTestConfig(false, false), fetcher)
	require.NoError(t, err)

	acct, errs := resolver.Resolve(context.Background(), sitePublisherRequest("valid_acct", ""), IDSources{Stored: "stored_tmpl_acct"})

	assert.Empty(t, errs)
	require.NotNil(t, acct)
	assert.Equal(t, "stored_tmpl_acct", acct.ID)
	assert.Equal(t, []string{"stored_tmpl_acct"}, fetcher.calls)
}

func TestResolveTimeout(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
	defer cancel()
	resolver, err := NewResolver(newTestConfig(false, false), &mockAccountFetcher{err: context.DeadlineExceeded})
	require.NoError(t, err)

	acct, errs := resolver.Resolve(ctx, sitePublisherRequest("valid_acct", ""), IDSources{})

	assert.Nil(t, acct)
	require.Len(t, errs, 1)
	assert.IsType(t, &errortypes.Timeout{}, errs[0])
}

func TestEnrichRequest(t *testing.T) {
	testCases := []struct {
		description         string
		ext                 string
		acct                *Context
		expectedIntegration string
	}{
		{
			description:         "empty integration is filled",
			ext:                 `{"prebid":{}}`,
			acct:                &Context{DefaultIntegration: "pbjs"},
			expectedIntegration: "pbjs",
		},
		{
			description:         "missing ext is filled",
			acct:                &Context{DefaultIntegration: "pbjs"},
			expectedIntegration: "pbjs",
		},
		{
			description:         "request integration wins",
			ext:                 `{"prebid":{"integration":"amp"}}`,
			acct:                &Context{DefaultIntegration: "pbjs"},
			expectedIntegration: "amp",
		},
		{
			description:         "no account default",
			ext:                 `{"prebid":{}}`,
			acct:                &Context{},
			expectedIntegration: "",
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			req := &openrtb_ext.RequestWrapper{BidRequest: &openrtb2.BidRequest{}}
			if test.ext != "" {
				req.Ext = json.RawMessage(test.ext)
			}

			require.NoError(t, EnrichRequest(req, test.acct))
			require.NoError(t, req.RebuildRequest())

			reqExt, err := req.GetRequestExt()
			require.NoError(t, err)
			integration := ""
			if prebid := reqExt.GetPrebid(); prebid != nil {
				integration = prebid.Integration
			}
			assert.Equal(t, test.expectedIntegration, integration)
		})
	}
}
