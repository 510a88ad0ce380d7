package account

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/xeipuuv/gojsonschema"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/stored_requests"
)

// Status is the lifecycle state of the account resolved for a request.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	// StatusUnknown marks the placeholder account used when no account record could be found.
	StatusUnknown Status = "unknown"
)

// Context is the account resolved for a single request.
type Context struct {
	ID                 string          `json:"id"`
	Status             Status          `json:"status"`
	Blacklisted        bool            `json:"blacklisted"`
	DefaultIntegration string          `json:"default_integration,omitempty"`
	EventsEnabled      bool            `json:"events_enabled"`
	Config             *config.Account `json:"-"`
}

// IDSources carries the account ids which outrank the ones found in the request body.
type IDSources struct {
	// Stored is the publisher account declared by the stored request the body was merged over.
	Stored string
	// Explicit is the account or pubid query parameter.
	Explicit string
}

//go:embed account_schema.json
var accountSchemaJSON string

// Resolver resolves and authorizes the publisher account of a request.
type Resolver struct {
	cfg     *config.Configuration
	fetcher stored_requests.AccountFetcher
	schema  *gojsonschema.Schema
}

// NewResolver builds a Resolver. The configuration must not be mutated afterwards.
func NewResolver(cfg *config.Configuration, fetcher stored_requests.AccountFetcher) (*Resolver, error) {
	if cfg == nil {
		return nil, errors.New("account resolver requires a configuration")
	}
	if fetcher == nil {
		return nil, errors.New("account resolver requires an account fetcher")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(accountSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("loading account schema: %v", err)
	}
	return &Resolver{cfg: cfg, fetcher: fetcher, schema: schema}, nil
}

// ResolveID picks the account id of a request. The stored request account outranks the explicit
// account parameter, which outranks the publisher's parent account and then the publisher id.
func ResolveID(req *openrtb_ext.RequestWrapper, ids IDSources) string {
	if id := strings.TrimSpace(ids.Stored); id != "" {
		return id
	}
	if id := strings.TrimSpace(ids.Explicit); id != "" {
		return id
	}
	if req == nil {
		return ""
	}
	return PublisherID(req.GetPublisher())
}

// PublisherID returns publisher.ext.prebid.parentAccount when present, otherwise publisher.id.
func PublisherID(pub *openrtb2.Publisher) string {
	if pub == nil {
		return ""
	}
	if parent := openrtb_ext.ParentAccountFromPublisherExt(pub.Ext); parent != "" {
		return parent
	}
	return pub.ID
}

// Resolve returns the account of the request, with access rules applied. Non-fatal problems are
// returned as warnings alongside a usable account.
func (r *Resolver) Resolve(ctx context.Context, req *openrtb_ext.RequestWrapper, ids IDSources) (*Context, []error) {
	accountID := ResolveID(req, ids)

	if r.cfg.BlacklistedAcctMap[accountID] {
		return &Context{ID: accountID, Status: StatusUnknown, Blacklisted: true}, []error{&errortypes.BlacklistedAcct{
			Message: fmt.Sprintf("Prebid-server has blacklisted Account ID: %s, please reach out to the prebid server host.", accountID),
		}}
	}
	if req != nil && req.App != nil && r.cfg.BlacklistedAppMap[req.App.ID] {
		return &Context{ID: accountID, Status: StatusUnknown, Blacklisted: true}, []error{&errortypes.BlacklistedApp{
			Message: fmt.Sprintf("Prebid-server does not process requests from App ID: %s", req.App.ID),
		}}
	}
	if accountID == "" {
		if r.cfg.AccountRequired {
			return nil, []error{&errortypes.AcctRequired{
				Message: "Prebid-server has been configured to discard requests without a valid Account ID. Please reach out to the prebid server host.",
			}}
		}
		return r.fallback(accountID, nil)
	}

	accountJSON, fetchErrs := r.fetcher.FetchAccount(ctx, r.cfg.AccountDefaultsJSON(), accountID)
	if len(fetchErrs) > 0 || accountJSON == nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, []error{&errortypes.Timeout{Message: fmt.Sprintf("fetching account %s: %v", accountID, ctx.Err())}}
		}
		for _, err := range fetchErrs {
			if _, notFound := err.(stored_requests.NotFoundError); !notFound {
				glog.Warningf("Error occurred while fetching account %s: %v", accountID, err)
			}
		}
		if r.cfg.AccountRequired {
			return nil, []error{&errortypes.AcctRequired{
				Message: fmt.Sprintf("Unauthorized account id: %s", accountID),
			}}
		}
		return r.fallback(accountID, &errortypes.Warning{
			Message:     fmt.Sprintf("Account %s could not be retrieved, using the default account", accountID),
			WarningCode: errortypes.AccountFallbackWarningCode,
		})
	}

	account, err := r.parse(accountID, accountJSON)
	if err != nil {
		return nil, []error{err}
	}
	return r.authorize(account, StatusActive, nil)
}

func (r *Resolver) parse(accountID string, accountJSON json.RawMessage) (*config.Account, error) {
	malformed := &errortypes.MalformedAcct{
		Message: fmt.Sprintf("The prebid-server account config for account id \"%s\" is malformed. Please reach out to the prebid server host.", accountID),
	}
	result, err := r.schema.Validate(gojsonschema.NewBytesLoader(accountJSON))
	if err != nil || !result.Valid() {
		if result != nil {
			for _, desc := range result.Errors() {
				glog.Warningf("account %s: %s", accountID, desc.String())
			}
		}
		return nil, malformed
	}
	account := &config.Account{}
	if err := json.Unmarshal(accountJSON, account); err != nil {
		return nil, malformed
	}
	// The stored record is keyed by id, so the record itself may omit it.
	account.ID = accountID
	return account, nil
}

// fallback builds the placeholder account from a copy of the host defaults.
func (r *Resolver) fallback(accountID string, warning error) (*Context, []error) {
	account := r.cfg.AccountDefaults
	account.ID = accountID
	return r.authorize(&account, StatusUnknown, warning)
}

func (r *Resolver) authorize(account *config.Account, status Status, warning error) (*Context, []error) {
	if !account.IsActive() {
		return nil, []error{&errortypes.AccountDisabled{
			Message: fmt.Sprintf("Prebid-server has disabled Account ID: %s, please reach out to the prebid server host.", account.ID),
		}}
	}
	acctCtx := &Context{
		ID:                 account.ID,
		Status:             status,
		DefaultIntegration: account.DefaultIntegration,
		EventsEnabled:      account.Events.Enabled,
		Config:             account,
	}
	if warning != nil {
		return acctCtx, []error{warning}
	}
	return acctCtx, nil
}

// EnrichRequest fills ext.prebid.integration from the account when the request leaves it empty.
func EnrichRequest(req *openrtb_ext.RequestWrapper, acct *Context) error {
	if acct == nil || acct.DefaultIntegration == "" {
		return nil
	}
	reqExt, err := req.GetRequestExt()
	if err != nil {
		return err
	}
	prebid := reqExt.GetPrebid()
	if prebid == nil {
		prebid = &openrtb_ext.ExtRequestPrebid{}
	}
	if prebid.Integration != "" {
		return nil
	}
	prebid.Integration = acct.DefaultIntegration
	reqExt.SetPrebid(prebid)
	return nil
}
