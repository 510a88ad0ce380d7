package openrtb2

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang/glog"
	"github.com/tidwall/sjson"

	"github.com/prebid/prebid-request-core/account"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/privacy"
)

// serve assembles a request of the given kind and writes the outcome. Request metrics are recorded once
// the response is written.
func (deps *endpointDeps) serve(kind EndpointKind, w http.ResponseWriter, r *http.Request) {
	start := deps.clock.Now()
	settings := endpointSettingsTable[kind]

	labels := metrics.Labels{
		Source:        metrics.DemandWeb,
		RType:         settings.requestType,
		PubID:         metrics.PublisherUnknown,
		Browser:       metrics.BrowserFromUserAgent(r.Header.Get("User-Agent")),
		RequestStatus: metrics.RequestStatusOK,
	}
	defer func() {
		deps.metricsEngine.RecordRequest(labels)
		deps.metricsEngine.RecordRequestTime(labels, deps.clock.Since(start))
	}()

	desc, err := NewRequestDescriptor(r, deps.cfg.MaxRequestSize)
	if err != nil {
		labels.RequestStatus = writeError(w, []error{err})
		return
	}

	ac, errs := deps.runPipeline(r.Context(), kind, desc)
	if ac != nil && ac.Account != nil && ac.Account.ID != "" && !rejectsAccount(errs) {
		labels.PubID = ac.Account.ID
	}
	if fatal, _ := errortypes.Split(errs); len(fatal) > 0 {
		labels.RequestStatus = writeError(w, fatal)
		return
	}

	labels.Source, labels.RType = requestSource(kind, ac)
	deps.recordRequestDetails(ac)

	if err := writeResponse(w, ac); err != nil {
		glog.Errorf("/openrtb2/%s: writing response: %v", kind, err)
		labels.RequestStatus = metrics.RequestStatusErr
	}
}

// rejectsAccount reports whether the account or app was refused. Refused ids come straight from the caller
// and stay out of the publisher label.
func rejectsAccount(errs []error) bool {
	for _, err := range errs {
		if errortypes.IsUnauthorized(err) {
			return true
		}
	}
	return false
}

// requestSource labels auction requests by their channel object. The other entry points keep their own type.
func requestSource(kind EndpointKind, ac *AuctionContext) (metrics.DemandSource, metrics.RequestType) {
	rType := endpointSettingsTable[kind].requestType
	switch {
	case ac.Request.App != nil:
		if kind == KindAuction {
			rType = metrics.ReqTypeORTB2App
		}
		return metrics.DemandApp, rType
	case ac.Request.DOOH != nil:
		if kind == KindAuction {
			rType = metrics.ReqTypeORTB2DOOH
		}
		return metrics.DemandDOOH, rType
	case ac.Request.Site != nil:
		return metrics.DemandWeb, rType
	}
	return metrics.DemandUnknown, rType
}

func (deps *endpointDeps) recordRequestDetails(ac *AuctionContext) {
	impLabels := metrics.ImpLabels{}
	for _, imp := range ac.Request.Imp {
		impLabels.BannerImps = impLabels.BannerImps || imp.Banner != nil
		impLabels.VideoImps = impLabels.VideoImps || imp.Video != nil
		impLabels.AudioImps = impLabels.AudioImps || imp.Audio != nil
		impLabels.NativeImps = impLabels.NativeImps || imp.Native != nil
	}
	deps.metricsEngine.RecordImps(impLabels)

	p := ac.Privacy
	privacyLabels := metrics.PrivacyLabels{
		CCPAProvided:  p.CCPA != "",
		CCPAEnforced:  p.CCPAOptOut(),
		COPPAEnforced: p.COPPAEnforced(),
		GDPREnforced:  p.GDPREnforced(deps.cfg.GDPR.DefaultValue),
		GPPProvided:   p.GPP != "",
		LMTEnforced:   p.LMT.ShouldEnforce(),
	}
	if privacyLabels.GDPREnforced {
		privacyLabels.GDPRTCFVersion = metrics.TCFVersionV2
		if p.Consent == "" {
			privacyLabels.GDPRTCFVersion = metrics.TCFVersionErr
		}
	}
	deps.metricsEngine.RecordRequestPrivacy(privacyLabels)
}

// writeError writes every fatal error on its own line with the status of the most severe one.
func writeError(w http.ResponseWriter, errs []error) metrics.RequestStatus {
	httpStatus, requestStatus := statusFor(errs)
	w.WriteHeader(httpStatus)
	for _, err := range errs {
		fmt.Fprintf(w, "Invalid request: %s\n", err.Error())
	}
	return requestStatus
}

func statusFor(errs []error) (int, metrics.RequestStatus) {
	httpStatus, requestStatus := http.StatusBadRequest, metrics.RequestStatusBadInput
	for _, err := range errs {
		switch errortypes.ReadCode(err) {
		case errortypes.TimeoutErrorCode:
			return http.StatusGatewayTimeout, metrics.RequestStatusTimeout
		case errortypes.AcctRequiredErrorCode:
			return http.StatusUnauthorized, metrics.RequestStatusBadInput
		case errortypes.BlacklistedAcctErrorCode, errortypes.BlacklistedAppErrorCode, errortypes.AccountDisabledErrorCode:
			return http.StatusServiceUnavailable, metrics.RequestStatusBlacklisted
		case errortypes.BadInputErrorCode:
		default:
			httpStatus, requestStatus = http.StatusInternalServerError, metrics.RequestStatusErr
		}
	}
	return httpStatus, requestStatus
}

type responseWarning struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type privacySummary struct {
	GDPR         *int8  `json:"gdpr,omitempty"`
	Consent      string `json:"consent,omitempty"`
	AddtlConsent string `json:"addtl_consent,omitempty"`
	USPrivacy    string `json:"us_privacy,omitempty"`
	COPPA        int8   `json:"coppa"`
	GPC          bool   `json:"gpc,omitempty"`
	GPP          string `json:"gpp,omitempty"`
	GPPSID       []int8 `json:"gpp_sid,omitempty"`
	LMT          *int   `json:"lmt,omitempty"`
	Country      string `json:"country,omitempty"`
	IPAddress    string `json:"ip,omitempty"`
}

type dryRunResponse struct {
	Privacy      privacySummary    `json:"privacy"`
	Account      *account.Context  `json:"account,omitempty"`
	Warnings     []responseWarning `json:"warnings"`
	TmaxBudgetMs int64             `json:"tmax_budget_ms"`
}

func newPrivacySummary(p privacy.Context) privacySummary {
	summary := privacySummary{
		GDPR:         p.GDPRSignal.Int8(),
		Consent:      p.Consent,
		AddtlConsent: p.AddtlConsent,
		USPrivacy:    p.CCPA,
		COPPA:        p.COPPA,
		GPC:          p.GPC,
		GPP:          p.GPP,
		GPPSID:       p.GPPSID,
		IPAddress:    p.IPAddress,
	}
	if p.LMT.SignalProvided {
		lmt := p.LMT.Signal
		summary.LMT = &lmt
	}
	if p.Geo != nil {
		summary.Country = p.Geo.Country
	}
	return summary
}

// writeResponse hands the assembled request off as the response body.
func writeResponse(w http.ResponseWriter, ac *AuctionContext) error {
	response := dryRunResponse{
		Privacy:      newPrivacySummary(ac.Privacy),
		Account:      ac.Account,
		Warnings:     make([]responseWarning, 0, len(ac.Warnings)),
		TmaxBudgetMs: ac.Timeout.Milliseconds(),
	}
	for _, warning := range ac.Warnings {
		response.Warnings = append(response.Warnings, responseWarning{
			Code:    errortypes.ReadCode(warning),
			Message: warning.Error(),
		})
	}

	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	requestJSON, err := json.Marshal(ac.Request.BidRequest)
	if err != nil {
		return err
	}
	if body, err = sjson.SetRawBytes(body, "request", requestJSON); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}
