package openrtb2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/buger/jsonparser"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/tidwall/sjson"

	"github.com/prebid/prebid-request-core/amp"
	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/util/jsonutil"
	"github.com/prebid/prebid-request-core/util/ptrutil"
	"github.com/prebid/prebid-request-core/util/uuidutil"
)

// NewAmpEndpoint builds the handler of /openrtb2/amp. The stored request named by tag_id becomes the whole
// OpenRTB request, adjusted by the AMP query parameters.
func NewAmpEndpoint(
	uuidGenerator uuidutil.UUIDGenerator,
	requestsByID stored_requests.Fetcher,
	accounts stored_requests.AccountFetcher,
	geo geolocation.GeoLocation,
	cfg *config.Configuration,
	metricsEngine metrics.MetricsEngine,
) (httprouter.Handle, error) {
	deps, err := newEndpointDeps(uuidGenerator, requestsByID, accounts, geo, cfg, metricsEngine)
	if err != nil {
		return nil, fmt.Errorf("NewAmpEndpoint: %v", err)
	}
	return httprouter.Handle(deps.AmpAuction), nil
}

func (deps *endpointDeps) AmpAuction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	origin := r.URL.Query().Get("__amp_source_origin")
	if len(origin) == 0 {
		origin = r.Header.Get("Origin")
	}

	// Headers "Access-Control-Allow-Origin", "Access-Control-Allow-Headers",
	// and "Access-Control-Allow-Credentials" are handled in CORS middleware
	w.Header().Set("AMP-Access-Control-Allow-Source-Origin", origin)
	w.Header().Set("Access-Control-Expose-Headers", "AMP-Access-Control-Allow-Source-Origin")

	deps.serve(KindAMP, w, r)
}

func (deps *endpointDeps) parseAmpStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input

	ampParams, err := amp.ParseParams(input.desc.Query)
	if err != nil {
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}

	input.ampParams = &ampParams
	input.storedID = ampParams.StoredRequestID
	input.explicitAccount = ampParams.Account
	input.consent = privacy.ConsentParamsFromQuery(input.desc.Query, input.desc.Header)
	input.debug = ampParams.Debug

	next := ac.withInput(&input)
	next.Debug = input.debug
	return next, nil
}

// ampOverrideStep applies the AMP query parameters over the stored request.
func (deps *endpointDeps) ampOverrideStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	params := ac.input.ampParams
	req := ac.Request

	if req.App != nil {
		return ac, []error{&errortypes.BadInput{Message: "request.app must not exist in AMP stored requests."}}
	}
	if len(req.Imp) == 0 {
		return ac, []error{&errortypes.BadInput{Message: fmt.Sprintf("data for tag_id='%s' does not define the required imp array", params.StoredRequestID)}}
	}
	if req.Site == nil {
		req.Site = &openrtb2.Site{}
	}

	var warnings []error
	imp := &req.Imp[0]

	params.Size.Apply(imp.Banner)

	if params.CanonicalURL != "" {
		if govalidator.IsURL(params.CanonicalURL) {
			req.Site.Page = params.CanonicalURL
			if domain := hostOf(params.CanonicalURL); domain != "" {
				req.Site.Domain = domain
			}
		} else {
			warnings = append(warnings, &errortypes.Warning{
				Message:     fmt.Sprintf("curl %q is not a valid url and was ignored", params.CanonicalURL),
				WarningCode: errortypes.InvalidParamWarningCode,
			})
		}
	}

	setAmpExtDirect(req.Site, "1")
	setEffectivePubID(req.BidRequest, params.Account)

	if params.Slot != "" {
		imp.TagID = params.Slot
	}

	if params.Timeout != nil {
		req.TMax = int64(*params.Timeout)
	}

	// AMP requires https, but publishers can forget to set it.
	imp.Secure = ptrutil.ToPtr(int8(1))

	if warning := setTargeting(imp, params.Targeting); warning != nil {
		warnings = append(warnings, warning)
	}

	if params.Debug {
		req.Test = 1
	}
	if err := setAmpRequestExt(req, ac.input.desc.Query, params.Debug); err != nil {
		return ac, append(warnings, &errortypes.BadInput{Message: err.Error()})
	}

	return ac, warnings
}

// setTargeting merges the targeting parameter into imp.ext.data.
func setTargeting(imp *openrtb2.Imp, targeting string) error {
	if len(targeting) == 0 {
		return nil
	}

	targetingData, err := sjson.SetRawBytes([]byte(`{}`), "data", []byte(targeting))
	if err == nil {
		var merged json.RawMessage
		if merged, err = jsonutil.MergePatch(imp.Ext, targetingData); err == nil {
			imp.Ext = merged
			return nil
		}
	}
	return &errortypes.Warning{
		WarningCode: errortypes.InvalidParamWarningCode,
		Message:     fmt.Sprintf("unable to merge imp.ext with targeting data, check targeting data is correct: %s", err.Error()),
	}
}

// setAmpRequestExt records the query parameters under ext.prebid.amp.data and turns on ext.prebid.debug for
// debug requests.
func setAmpRequestExt(req *openrtb_ext.RequestWrapper, query map[string][]string, debug bool) error {
	requestExt, err := req.GetRequestExt()
	if err != nil {
		return err
	}
	prebid := requestExt.GetPrebid()
	if prebid == nil {
		prebid = &openrtb_ext.ExtRequestPrebid{}
	}

	data := make(map[string]string, len(query))
	for key, values := range query {
		if len(values) > 0 {
			data[key] = values[0]
		}
	}
	prebid.AMP = &openrtb_ext.ExtRequestPrebidAMP{Data: data}
	if debug {
		prebid.Debug = true
	}

	requestExt.SetPrebid(prebid)
	return nil
}

func setAmpExtDirect(site *openrtb2.Site, value string) {
	if len(site.Ext) > 0 {
		if _, dataType, _, _ := jsonparser.Get(site.Ext, "amp"); dataType == jsonparser.NotExist {
			if val, err := jsonparser.Set(site.Ext, []byte(value), "amp"); err == nil {
				site.Ext = val
			}
		}
	} else {
		site.Ext = json.RawMessage(`{"amp":` + value + `}`)
	}
}

// setEffectivePubID makes an explicit account the publisher id of the channel in use.
func setEffectivePubID(req *openrtb2.BidRequest, account string) {
	if account == "" {
		return
	}

	var pub **openrtb2.Publisher
	switch {
	case req.App != nil:
		pub = &req.App.Publisher
	case req.Site != nil:
		pub = &req.Site.Publisher
	case req.DOOH != nil:
		pub = &req.DOOH.Publisher
	default:
		return
	}
	if *pub == nil {
		*pub = &openrtb2.Publisher{}
	}
	(*pub).ID = account
}
