package stored_requests

import (
	"context"
	"encoding/json"
	"errors"
)

// MultiFetcher is a Fetcher composed of multiple sub-Fetchers that are all polled for results.
// A fetcher is only asked for the ids which the fetchers before it did not find.
type MultiFetcher []AllFetcher

// FetchRequests implements the Fetcher interface for MultiFetcher
func (mf MultiFetcher) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (requestData map[string]json.RawMessage, impData map[string]json.RawMessage, errs []error) {
	requestData = make(map[string]json.RawMessage, len(requestIDs))
	impData = make(map[string]json.RawMessage, len(impIDs))

	// Loop over the fetchers
	for _, f := range mf {
		remainingReqIDs := filter(requestIDs, requestData)
		requestIDs = remainingReqIDs
		remainingImpIDs := filter(impIDs, impData)
		impIDs = remainingImpIDs
		if len(requestIDs) == 0 && len(impIDs) == 0 {
			break
		}

		thisReqData, thisImpData, rerrs := f.FetchRequests(ctx, remainingReqIDs, remainingImpIDs)
		// Drop NotFound errors, as other fetchers may have them. Also don't want multiple NotFound errors per ID.
		rerrs = dropMissingIDs(rerrs)
		if len(rerrs) > 0 {
			errs = append(errs, rerrs...)
		}
		addAll(requestData, thisReqData)
		addAll(impData, thisImpData)
	}
	// Add missing ID errors back in for any IDs that are still missing
	errs = appendNotFoundErrors("Request", requestIDs, requestData, errs)
	errs = appendNotFoundErrors("Imp", impIDs, impData, errs)
	return
}

// FetchAccount returns the account from the first fetcher which knows it.
func (mf MultiFetcher) FetchAccount(ctx context.Context, accountDefaultJSON json.RawMessage, accountID string) (account json.RawMessage, errs []error) {
	for _, f := range mf {
		if account, accErrs := f.FetchAccount(ctx, accountDefaultJSON, accountID); len(accErrs) == 0 {
			return account, nil
		} else {
			accErrs = dropMissingIDs(accErrs)
			errs = append(errs, accErrs...)
		}
	}
	errs = append(errs, NotFoundError{accountID, "Account"})
	return nil, errs
}

func addAll(base map[string]json.RawMessage, toAdd map[string]json.RawMessage) {
	for k, v := range toAdd {
		base[k] = v
	}
}

func filter(original []string, exclude map[string]json.RawMessage) (filtered []string) {
	if len(exclude) == 0 {
		filtered = original
		return
	}
	filtered = make([]string, 0, len(original))
	for _, id := range original {
		if _, ok := exclude[id]; !ok {
			filtered = append(filtered, id)
		}
	}
	return
}

func appendNotFoundErrors(dataType string, ids []string, data map[string]json.RawMessage, errs []error) []error {
	for _, id := range ids {
		if _, ok := data[id]; !ok {
			errs = append(errs, NotFoundError{id, dataType})
		}
	}
	return errs
}

func dropMissingIDs(errs []error) []error {
	kept := errs[:0]
	for _, err := range errs {
		var notFound NotFoundError
		if !errors.As(err, &notFound) {
			kept = append(kept, err)
		}
	}
	return kept
}
