package openrtb2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/util/ptrutil"
	"github.com/prebid/prebid-request-core/util/uuidutil"
)

// NewVideoEndpoint builds the handler of /openrtb2/video. Stored video requests come from videoFetcher; the
// stored imps named by the pod configs come from requestsByID.
func NewVideoEndpoint(
	uuidGenerator uuidutil.UUIDGenerator,
	requestsByID stored_requests.Fetcher,
	videoFetcher stored_requests.Fetcher,
	accounts stored_requests.AccountFetcher,
	geo geolocation.GeoLocation,
	cfg *config.Configuration,
	metricsEngine metrics.MetricsEngine,
) (httprouter.Handle, error) {
	if videoFetcher == nil {
		return nil, errors.New("NewVideoEndpoint requires non-nil arguments.")
	}
	deps, err := newEndpointDeps(uuidGenerator, requestsByID, accounts, geo, cfg, metricsEngine)
	if err != nil {
		return nil, fmt.Errorf("NewVideoEndpoint: %v", err)
	}
	deps.videoFetcher = videoFetcher
	return httprouter.Handle(deps.VideoAuctionEndpoint), nil
}

/*
1. Parse the "storedrequestid" field from the simplified video request.
2. Fetch the stored video request and merge the incoming request over it.
3. Unmarshal the merged request and validate its pod configuration. Invalid pods are dropped with a
   warning; the request fails only when no valid pod is left.
4. Copy the simplified fields into an OpenRTB bid request.
5. Build the imps of every pod from the stored imp named by its configid:
	a. NumImps = adpoddurationsec / MIN_VALUE(allowedDurations)
	b. If requireexactduration, imps are spread over the allowed durations with minduration = maxduration.
	   Otherwise maxduration = MAX_VALUE(allowedDurations).
	c. Imp ids are "podid_index".
6. The common pipeline steps complete the request.
*/
func (deps *endpointDeps) VideoAuctionEndpoint(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	deps.serve(KindVideo, w, r)
}

func (deps *endpointDeps) parseVideoStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input
	body := input.desc.Body

	if len(body) == 0 {
		return ac, []error{&errortypes.BadInput{Message: "request body is empty"}}
	}

	storedID, err := getVideoStoredRequestId(body)
	if err != nil && deps.cfg.Video.EnforceStoredRequests {
		return ac, []error{err}
	}

	input.partial = body
	input.storedID = storedID
	input.consent = privacy.ConsentParams{GPC: input.desc.Header.Get("Sec-GPC")}
	input.debug = input.desc.Query.Get("debug") == "1"

	next := ac.withInput(&input)
	next.Debug = input.debug
	return next, nil
}

func getVideoStoredRequestId(request []byte) (string, error) {
	value, dataType, _, err := jsonparser.Get(request, "storedrequestid")
	if dataType != jsonparser.String || err != nil || len(value) == 0 {
		return "", &errortypes.BadInput{Message: "Unable to find required stored request id"}
	}
	return string(value), nil
}

// videoStoredStep merges the request over the stored video request and turns it into an OpenRTB request
// with one imp per pod slot.
func (deps *endpointDeps) videoStoredStep(ctx context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input

	merged, storedAccount, errs := resolveStoredRequest(ctx, deps.videoFetcher, input.partial, input.storedID, deps.cfg.Video.EnforceStoredRequests)
	if errortypes.ContainsFatalError(errs) {
		return ac, errs
	}
	input.storedAccount = storedAccount

	videoReq := &openrtb_ext.BidRequestVideo{}
	if err := json.Unmarshal(merged, videoReq); err != nil {
		return ac, append(errs, &errortypes.BadInput{Message: fmt.Sprintf("malformed video request: %v", err)})
	}

	validationErrs, podErrors := deps.validateVideoRequest(videoReq)
	if len(validationErrs) > 0 {
		return ac, append(errs, validationErrs...)
	}
	errs = append(errs, podWarnings(podErrors)...)
	videoReq = cleanupVideoBidRequest(videoReq, podErrors)
	if len(videoReq.PodConfig.Pods) == 0 {
		return ac, append(errs, &errortypes.BadInput{Message: "request has no valid pods"})
	}

	bidReq := &openrtb2.BidRequest{}
	if err := mergeData(videoReq, bidReq); err != nil {
		return ac, append(errs, &errortypes.BadInput{Message: err.Error()})
	}
	id, err := deps.uuidGenerator.Generate()
	if err != nil {
		return ac, append(errs, fmt.Errorf("generating request id: %v", err))
	}
	bidReq.ID = id

	imps, podErrors, impErrs := deps.createImpressions(ctx, videoReq, nil)
	if len(impErrs) > 0 {
		return ac, append(errs, impErrs...)
	}
	errs = append(errs, podWarnings(podErrors)...)
	if len(imps) == 0 {
		return ac, append(errs, &errortypes.BadInput{Message: "no impressions could be built from the pod configs"})
	}
	bidReq.Imp = imps

	if warning := deps.limitImps(ac.Kind, bidReq); warning != nil {
		errs = append(errs, warning)
	}

	input.video = videoReq
	input.podErrors = podErrors
	return ac.withInput(&input).withRequest(&openrtb_ext.RequestWrapper{BidRequest: bidReq}), errs
}

// videoOverrideStep applies the debug query parameter.
func (deps *endpointDeps) videoOverrideStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	if !ac.input.debug {
		return ac, nil
	}
	ac.Request.Test = 1

	requestExt, err := ac.Request.GetRequestExt()
	if err != nil {
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}
	prebid := requestExt.GetPrebid()
	if prebid == nil {
		prebid = &openrtb_ext.ExtRequestPrebid{}
	}
	prebid.Debug = true
	requestExt.SetPrebid(prebid)
	return ac, nil
}

func cleanupVideoBidRequest(videoReq *openrtb_ext.BidRequestVideo, podErrors []PodError) *openrtb_ext.BidRequestVideo {
	for i := len(podErrors) - 1; i >= 0; i-- {
		videoReq.PodConfig.Pods = append(videoReq.PodConfig.Pods[:podErrors[i].PodIndex], videoReq.PodConfig.Pods[podErrors[i].PodIndex+1:]...)
	}
	return videoReq
}

func podWarnings(podErrors []PodError) []error {
	warnings := make([]error, 0, len(podErrors))
	for _, podErr := range podErrors {
		warnings = append(warnings, &errortypes.Warning{
			Message:     fmt.Sprintf("pod %d was dropped: %s", podErr.PodId, strings.Join(podErr.ErrMsgs, "; ")),
			WarningCode: errortypes.InvalidParamWarningCode,
		})
	}
	return warnings
}

func (deps *endpointDeps) createImpressions(ctx context.Context, videoReq *openrtb_ext.BidRequestVideo, podErrors []PodError) ([]openrtb2.Imp, []PodError, []error) {
	videoDur := videoReq.PodConfig.DurationRangeSec
	minDuration, maxDuration := minMax(videoDur)
	reqExactDur := videoReq.PodConfig.RequireExactDuration
	videoData := videoReq.Video

	storedImps, err := deps.loadStoredImps(ctx, videoReq.PodConfig.Pods)
	if err != nil {
		return nil, podErrors, []error{err}
	}

	finalImpsArray := make([]openrtb2.Imp, 0)
	for ind, pod := range videoReq.PodConfig.Pods {
		storedImp, ok := storedImps[pod.ConfigId]
		if !ok {
			podErrors = append(podErrors, PodError{
				PodId:    pod.PodId,
				PodIndex: ind,
				ErrMsgs:  []string{fmt.Sprintf("unable to load configid %s, Pod id: %d", pod.ConfigId, pod.PodId)},
			})
			continue
		}

		numImps := pod.AdPodDurationSec / minDuration
		if reqExactDur {
			// In case of impressions number is less than durations array, we bump up impressions number up to duration array size
			// with this handler we will have one impression per specified duration
			numImps = max(numImps, len(videoDur))
		}
		impDivNumber := numImps / len(videoDur)

		impsArray := make([]openrtb2.Imp, numImps)
		for impInd := range impsArray {
			impsArray[impInd] = createImpressionTemplate(storedImp, videoData)
			if reqExactDur {
				durationIndex := impInd / impDivNumber
				if durationIndex > len(videoDur)-1 {
					durationIndex = len(videoDur) - 1
				}
				impsArray[impInd].Video.MaxDuration = int64(videoDur[durationIndex])
				impsArray[impInd].Video.MinDuration = int64(videoDur[durationIndex])
			} else {
				impsArray[impInd].Video.MaxDuration = int64(maxDuration)
			}

			impsArray[impInd].ID = fmt.Sprintf("%d_%d", pod.PodId, impInd)
		}
		finalImpsArray = append(finalImpsArray, impsArray...)
	}
	return finalImpsArray, podErrors, nil
}

func createImpressionTemplate(imp openrtb2.Imp, video *openrtb_ext.SimplifiedVideo) openrtb2.Imp {
	imp.Video = &openrtb2.Video{
		W:         video.W,
		H:         video.H,
		Protocols: video.Protocols,
		MIMEs:     video.Mimes,
	}
	return imp
}

// loadStoredImps fetches the stored imp of every pod config at once. Configs which cannot be fetched are
// missing from the result.
func (deps *endpointDeps) loadStoredImps(ctx context.Context, pods []openrtb_ext.Pod) (map[string]openrtb2.Imp, error) {
	ids := make([]string, 0, len(pods))
	for _, pod := range pods {
		ids = append(ids, pod.ConfigId)
	}

	_, storedImps, _ := deps.storedReqFetcher.FetchRequests(ctx, nil, ids)
	if ctx.Err() == context.DeadlineExceeded {
		return nil, &errortypes.Timeout{Message: fmt.Sprintf("fetching stored imps: %v", ctx.Err())}
	}

	imps := make(map[string]openrtb2.Imp, len(storedImps))
	for id, data := range storedImps {
		var imp openrtb2.Imp
		if err := json.Unmarshal(data, &imp); err != nil {
			continue
		}
		imps[id] = imp
	}
	return imps, nil
}

func minMax(array []int) (int, int) {
	var max = array[0]
	var min = array[0]
	for _, value := range array {
		if max < value {
			max = value
		}
		if min > value {
			min = value
		}
	}
	return min, max
}

func mergeData(videoRequest *openrtb_ext.BidRequestVideo, bidRequest *openrtb2.BidRequest) error {
	if videoRequest.Site != nil {
		bidRequest.Site = videoRequest.Site
		if videoRequest.Content != nil {
			bidRequest.Site.Content = videoRequest.Content
		}
	}

	if videoRequest.App != nil {
		bidRequest.App = videoRequest.App
		if videoRequest.Content != nil {
			bidRequest.App.Content = videoRequest.Content
		}
	}

	device := videoRequest.Device
	bidRequest.Device = &device

	if videoRequest.User != nil {
		bidRequest.User = &openrtb2.User{
			Yob:      videoRequest.User.Yob,
			Keywords: videoRequest.User.Keywords,
		}
	}

	bidRequest.Regs = videoRequest.Regs
	if videoRequest.User != nil && videoRequest.User.Gdpr != nil {
		if bidRequest.User.Consent == "" {
			bidRequest.User.Consent = videoRequest.User.Gdpr.ConsentString
		}
		if videoRequest.User.Gdpr.ConsentRequired {
			if bidRequest.Regs == nil {
				bidRequest.Regs = &openrtb2.Regs{}
			}
			if bidRequest.Regs.GDPR == nil {
				bidRequest.Regs.GDPR = ptrutil.ToPtr(int8(1))
			}
		}
	}

	if len(videoRequest.BCat) != 0 {
		bidRequest.BCat = videoRequest.BCat
	}

	if len(videoRequest.BAdv) != 0 {
		bidRequest.BAdv = videoRequest.BAdv
	}

	bidExt, err := createBidExtension(videoRequest)
	if err != nil {
		return err
	}
	if len(bidExt) > 0 {
		bidRequest.Ext = bidExt
	}

	bidRequest.Test = videoRequest.Test
	bidRequest.TMax = videoRequest.TMax

	return nil
}

func createBidExtension(videoRequest *openrtb_ext.BidRequestVideo) ([]byte, error) {
	var inclBrandCat *openrtb_ext.ExtIncludeBrandCategory
	if videoRequest.IncludeBrandCategory != nil {
		inclBrandCat = &openrtb_ext.ExtIncludeBrandCategory{
			PrimaryAdServer:     videoRequest.IncludeBrandCategory.PrimaryAdserver,
			Publisher:           videoRequest.IncludeBrandCategory.Publisher,
			WithCategory:        true,
			TranslateCategories: videoRequest.IncludeBrandCategory.TranslateCategories,
		}
	} else {
		inclBrandCat = &openrtb_ext.ExtIncludeBrandCategory{
			WithCategory: false,
		}
	}

	var durationRangeSec []int
	if !videoRequest.PodConfig.RequireExactDuration {
		durationRangeSec = videoRequest.PodConfig.DurationRangeSec
	}

	priceGranularity := openrtb_ext.NewPriceGranularityDefault()
	if videoRequest.PriceGranularity != nil && len(videoRequest.PriceGranularity.Ranges) > 0 {
		priceGranularity = *videoRequest.PriceGranularity
	}

	targeting := openrtb_ext.ExtRequestTargeting{
		PriceGranularity:     &priceGranularity,
		IncludeWinners:       ptrutil.ToPtr(true),
		IncludeBrandCategory: inclBrandCat,
		DurationRangeSec:     durationRangeSec,
	}

	cache := openrtb_ext.ExtRequestPrebidCache{
		VastXML: &openrtb_ext.ExtRequestPrebidCacheVAST{},
	}

	extReq := openrtb_ext.ExtRequest{Prebid: openrtb_ext.ExtRequestPrebid{
		Cache:     &cache,
		Targeting: &targeting,
	}}
	return json.Marshal(extReq)
}

type PodError struct {
	PodId    int
	PodIndex int
	ErrMsgs  []string
}

func (deps *endpointDeps) validateVideoRequest(req *openrtb_ext.BidRequestVideo) ([]error, []PodError) {
	errL := []error{}

	if len(req.PodConfig.DurationRangeSec) == 0 {
		errL = append(errL, &errortypes.BadInput{Message: "request missing required field: PodConfig.DurationRangeSec"})
	}
	if isZeroOrNegativeDuration(req.PodConfig.DurationRangeSec) {
		errL = append(errL, &errortypes.BadInput{Message: "duration array cannot contain negative or zero values"})
	}
	if len(req.PodConfig.Pods) == 0 {
		errL = append(errL, &errortypes.BadInput{Message: "request missing required field: PodConfig.Pods"})
	}
	podErrors := make([]PodError, 0)
	podIdsSet := make(map[int]bool)
	for ind, pod := range req.PodConfig.Pods {
		podErr := PodError{}

		if podIdsSet[pod.PodId] {
			podErr.ErrMsgs = append(podErr.ErrMsgs, fmt.Sprintf("request duplicated required field: PodConfig.Pods.PodId, Pod id: %d", pod.PodId))
		} else {
			podIdsSet[pod.PodId] = true
		}
		if pod.PodId <= 0 {
			podErr.ErrMsgs = append(podErr.ErrMsgs, fmt.Sprintf("request missing required field: PodConfig.Pods.PodId, Pod index: %d", ind))
		}
		if pod.AdPodDurationSec == 0 {
			podErr.ErrMsgs = append(podErr.ErrMsgs, fmt.Sprintf("request missing or incorrect required field: PodConfig.Pods.AdPodDurationSec, Pod index: %d", ind))
		}
		if pod.AdPodDurationSec < 0 {
			podErr.ErrMsgs = append(podErr.ErrMsgs, fmt.Sprintf("request incorrect required field: PodConfig.Pods.AdPodDurationSec is negative, Pod index: %d", ind))
		}
		if pod.ConfigId == "" {
			podErr.ErrMsgs = append(podErr.ErrMsgs, fmt.Sprintf("request missing or incorrect required field: PodConfig.Pods.ConfigId, Pod index: %d", ind))
		}
		if len(podErr.ErrMsgs) > 0 {
			podErr.PodId = pod.PodId
			podErr.PodIndex = ind
			podErrors = append(podErrors, podErr)
		}
	}

	if req.App == nil && req.Site == nil {
		errL = append(errL, &errortypes.BadInput{Message: "request missing required field: site or app"})
	} else if req.App != nil && req.Site != nil {
		errL = append(errL, &errortypes.BadInput{Message: "request.site or request.app must be defined, but not both"})
	} else if req.Site != nil && req.Site.ID == "" && req.Site.Page == "" {
		errL = append(errL, &errortypes.BadInput{Message: "request.site missing required field: id or page"})
	} else if req.App != nil && req.App.ID == "" && req.App.Bundle == "" {
		errL = append(errL, &errortypes.BadInput{Message: "request.app missing required field: id or bundle"})
	}

	if req.Video == nil || len(req.Video.Mimes) == 0 {
		errL = append(errL, &errortypes.BadInput{Message: "request missing required field: Video.Mimes"})
	} else {
		mimes := make([]string, 0, len(req.Video.Mimes))
		for _, mime := range req.Video.Mimes {
			if mime != "" {
				mimes = append(mimes, mime)
			}
		}
		if len(mimes) == 0 {
			errL = append(errL, &errortypes.BadInput{Message: "request missing required field: Video.Mimes, mime types contains empty strings only"})
		} else {
			req.Video.Mimes = mimes
		}
	}

	if req.Video != nil && len(req.Video.Protocols) == 0 {
		errL = append(errL, &errortypes.BadInput{Message: "request missing required field: Video.Protocols"})
	}

	return errL, podErrors
}

func isZeroOrNegativeDuration(duration []int) bool {
	for _, value := range duration {
		if value <= 0 {
			return true
		}
	}
	return false
}
