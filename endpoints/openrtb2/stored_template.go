package openrtb2

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/prebid/openrtb/v20/openrtb2"
	"github.com/tidwall/gjson"

	"github.com/prebid/prebid-request-core/account"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/util/jsonutil"
)

// storedTemplateStep merges the stored request named by the parse step under the caller's partial
// request, then merges the stored imps referenced by imp[].ext.prebid.storedrequest.id under their imps.
func (deps *endpointDeps) storedTemplateStep(ctx context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input
	settings := endpointSettingsTable[ac.Kind]

	merged, storedAccount, errs := resolveStoredRequest(ctx, deps.storedReqFetcher, input.partial, input.storedID, settings.storedRequired)
	if errortypes.ContainsFatalError(errs) {
		return ac, errs
	}
	input.storedAccount = storedAccount

	req := &openrtb2.BidRequest{}
	if err := json.Unmarshal(merged, req); err != nil {
		return ac, append(errs, &errortypes.BadInput{Message: fmt.Sprintf("malformed request: %v", err)})
	}

	if impErrs := deps.resolveStoredImps(ctx, req); len(impErrs) > 0 {
		return ac, append(errs, impErrs...)
	}

	if warning := deps.limitImps(ac.Kind, req); warning != nil {
		errs = append(errs, warning)
	}

	return ac.withInput(&input).withRequest(&openrtb_ext.RequestWrapper{BidRequest: req}), errs
}

// resolveStoredRequest fetches the stored request id and applies partial over it as a JSON merge patch.
// It also returns the account of the stored request's publisher.
func resolveStoredRequest(ctx context.Context, fetcher stored_requests.Fetcher, partial json.RawMessage, storedID string, required bool) (json.RawMessage, string, []error) {
	if len(partial) == 0 {
		partial = json.RawMessage(`{}`)
	}
	if storedID == "" {
		if required {
			return nil, "", []error{&errortypes.BadInput{Message: "request requires a stored request id"}}
		}
		return partial, "", nil
	}

	storedRequests, _, fetchErrs := fetcher.FetchRequests(ctx, []string{storedID}, nil)
	stored, found := storedRequests[storedID]
	if len(fetchErrs) > 0 || !found || len(stored) == 0 {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, "", []error{&errortypes.Timeout{Message: fmt.Sprintf("fetching stored request %s: %v", storedID, ctx.Err())}}
		}
		if required {
			return nil, "", []error{&errortypes.BadInput{Message: fmt.Sprintf("No stored request found for id '%s'", storedID)}}
		}
		return partial, "", []error{&errortypes.Warning{
			Message:     fmt.Sprintf("stored request %s could not be retrieved and was ignored", storedID),
			WarningCode: errortypes.StoredRequestFallbackWarningCode,
		}}
	}

	merged, err := jsonutil.MergePatch(stored, partial)
	if err != nil {
		return nil, "", []error{&errortypes.BadInput{Message: fmt.Sprintf("merging the request over stored request %s: %v", storedID, err)}}
	}
	return merged, storedPublisherAccount(stored), nil
}

// storedPublisherAccount reads the publisher account of a stored request, looking at app, then site,
// then dooh.
func storedPublisherAccount(stored json.RawMessage) string {
	for _, path := range []string{"app.publisher", "site.publisher", "dooh.publisher"} {
		pub := gjson.GetBytes(stored, path)
		if !pub.Exists() || !pub.IsObject() {
			continue
		}
		publisher := &openrtb2.Publisher{ID: pub.Get("id").String()}
		if ext := pub.Get("ext"); ext.Exists() {
			publisher.Ext = json.RawMessage(ext.Raw)
		}
		return account.PublisherID(publisher)
	}
	return ""
}

// resolveStoredImps merges every imp referencing a stored imp over the stored one. A reference which cannot
// be resolved is a bad request.
func (deps *endpointDeps) resolveStoredImps(ctx context.Context, req *openrtb2.BidRequest) []error {
	impIDs := make([]string, len(req.Imp))
	unique := make([]string, 0, len(req.Imp))
	seen := make(map[string]struct{}, len(req.Imp))
	for i := range req.Imp {
		id, err := jsonparser.GetString(req.Imp[i].Ext, "prebid", "storedrequest", "id")
		if err != nil || id == "" {
			continue
		}
		impIDs[i] = id
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return nil
	}

	_, storedImps, fetchErrs := deps.storedReqFetcher.FetchRequests(ctx, nil, unique)
	if ctx.Err() == context.DeadlineExceeded {
		return []error{&errortypes.Timeout{Message: fmt.Sprintf("fetching stored imps: %v", ctx.Err())}}
	}

	var errs []error
	for i, id := range impIDs {
		if id == "" {
			continue
		}
		storedImp, ok := storedImps[id]
		if !ok {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d] references stored imp %s which was not found", i, id)})
			continue
		}
		if err := mergeStoredImp(&req.Imp[i], storedImp); err != nil {
			errs = append(errs, &errortypes.BadInput{Message: fmt.Sprintf("request.imp[%d]: %v", i, err)})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	for _, err := range fetchErrs {
		if _, notFound := err.(stored_requests.NotFoundError); !notFound {
			errs = append(errs, &errortypes.BadServerResponse{Message: err.Error()})
		}
	}
	return errs
}

// mergeStoredImp applies imp over storedImp. The stored imp id survives when the imp has none.
func mergeStoredImp(imp *openrtb2.Imp, storedImp json.RawMessage) error {
	impJSON, err := json.Marshal(imp)
	if err != nil {
		return err
	}
	merged, err := jsonutil.MergePatch(storedImp, impJSON)
	if err != nil {
		return err
	}
	id := imp.ID
	*imp = openrtb2.Imp{}
	if err := json.Unmarshal(merged, imp); err != nil {
		return err
	}
	if id == "" {
		imp.ID = gjson.GetBytes(storedImp, "id").String()
	}
	return nil
}

// limitImps keeps the first impressions an entry point allows and warns about the rest.
func (deps *endpointDeps) limitImps(kind EndpointKind, req *openrtb2.BidRequest) error {
	settings := endpointSettingsTable[kind]
	if settings.maxImps == 0 || len(req.Imp) <= settings.maxImps {
		return nil
	}
	dropped := len(req.Imp) - settings.maxImps
	req.Imp = req.Imp[:settings.maxImps]
	deps.metricsEngine.RecordImpsTruncated(settings.requestType, dropped)
	return &errortypes.Warning{
		Message:     fmt.Sprintf("Only one impression is allowed for %s endpoint, %d impressions were dropped", kind, dropped),
		WarningCode: errortypes.ImpressionsTruncatedWarningCode,
	}
}

// tmaxFromBody reads request.tmax without unmarshaling the body.
func tmaxFromBody(body []byte) int64 {
	if len(body) == 0 {
		return 0
	}
	return gjson.GetBytes(body, "tmax").Int()
}
