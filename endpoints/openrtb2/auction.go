package openrtb2

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benbjohnson/clock"
	"github.com/buger/jsonparser"
	"github.com/julienschmidt/httprouter"
	"github.com/tidwall/gjson"

	"github.com/prebid/prebid-request-core/account"
	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/privacy"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/util/iputil"
	"github.com/prebid/prebid-request-core/util/uuidutil"
)

// NewEndpoint builds the handler of /openrtb2/auction, which assembles a full OpenRTB request posted by
// the caller.
func NewEndpoint(
	uuidGenerator uuidutil.UUIDGenerator,
	requestsByID stored_requests.Fetcher,
	accounts stored_requests.AccountFetcher,
	geo geolocation.GeoLocation,
	cfg *config.Configuration,
	metricsEngine metrics.MetricsEngine,
) (httprouter.Handle, error) {
	deps, err := newEndpointDeps(uuidGenerator, requestsByID, accounts, geo, cfg, metricsEngine)
	if err != nil {
		return nil, fmt.Errorf("NewEndpoint: %v", err)
	}
	return httprouter.Handle(deps.Auction), nil
}

type endpointDeps struct {
	cfg              *config.Configuration
	storedReqFetcher stored_requests.Fetcher
	videoFetcher     stored_requests.Fetcher
	accounts         *account.Resolver
	consent          *privacy.ConsentResolver
	metricsEngine    metrics.MetricsEngine
	uuidGenerator    uuidutil.UUIDGenerator
	ipValidator      iputil.IPValidator
	clock            clock.Clock
	pool             *stepPool
}

func newEndpointDeps(
	uuidGenerator uuidutil.UUIDGenerator,
	requestsByID stored_requests.Fetcher,
	accounts stored_requests.AccountFetcher,
	geo geolocation.GeoLocation,
	cfg *config.Configuration,
	metricsEngine metrics.MetricsEngine,
) (*endpointDeps, error) {
	if uuidGenerator == nil || requestsByID == nil || accounts == nil || cfg == nil || metricsEngine == nil {
		return nil, errors.New("requires non-nil arguments")
	}

	resolver, err := account.NewResolver(cfg, accounts)
	if err != nil {
		return nil, err
	}

	return &endpointDeps{
		cfg:              cfg,
		storedReqFetcher: requestsByID,
		accounts:         resolver,
		consent:          privacy.NewConsentResolver(cfg.GDPR, geo),
		metricsEngine:    metricsEngine,
		uuidGenerator:    uuidGenerator,
		ipValidator:      cfg.RequestValidation.IPValidator(),
		clock:            clock.New(),
		pool:             newStepPool(cfg.AuctionPipeline.MaxWorkers, cfg.AuctionPipeline.MaxQueue),
	}, nil
}

func (deps *endpointDeps) Auction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	deps.serve(KindAuction, w, r)
}

// parseAuctionStep takes the posted OpenRTB request as the partial request. Its stored request id is read
// without unmarshaling the body, since the body is merged over the stored template first.
func (deps *endpointDeps) parseAuctionStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input
	body := input.desc.Body

	if len(body) == 0 {
		return ac, []error{&errortypes.BadInput{Message: "request body is empty"}}
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return ac, []error{&errortypes.BadInput{Message: "request body must be a JSON object"}}
	}

	storedID, err := jsonparser.GetString(body, "ext", "prebid", "storedrequest", "id")
	if err != nil && err != jsonparser.KeyPathNotFoundError {
		return ac, []error{&errortypes.BadInput{Message: fmt.Sprintf("ext.prebid.storedrequest.id must be a string: %v", err)}}
	}

	input.partial = body
	input.storedID = storedID
	input.consent = privacy.ConsentParams{GPC: input.desc.Header.Get("Sec-GPC")}
	input.debug = isDebugBody(body)

	next := ac.withInput(&input)
	next.Debug = input.debug
	return next, nil
}

// isDebugBody is true for test requests and requests asking for ext.prebid.debug.
func isDebugBody(body []byte) bool {
	if test, err := jsonparser.GetInt(body, "test"); err == nil && test == 1 {
		return true
	}
	debug, err := jsonparser.GetBoolean(body, "ext", "prebid", "debug")
	return err == nil && debug
}

func (deps *endpointDeps) privacyStep(ctx context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	p, errs := deps.consent.Resolve(ctx, ac.Request, ac.input.consent)
	if errortypes.ContainsFatalError(errs) {
		return ac, errs
	}
	return ac.withPrivacy(p), errs
}

func (deps *endpointDeps) accountStep(ctx context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	ids := account.IDSources{
		Stored:   ac.input.storedAccount,
		Explicit: ac.input.explicitAccount,
	}
	acct, errs := deps.accounts.Resolve(ctx, ac.Request, ids)
	if acct == nil {
		return ac, errs
	}
	return ac.withAccount(acct), errs
}
