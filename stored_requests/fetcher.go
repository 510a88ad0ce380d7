package stored_requests

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prebid/prebid-request-core/util/jsonutil"
)

// Fetcher loads stored request templates and stored imps by id. Implementations are shared by every
// request and must be safe for concurrent use.
type Fetcher interface {
	// FetchRequests returns the data found for each id. Every id which is absent from the returned maps
	// has a matching NotFoundError in errs. The returned maps are read only.
	FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (requestData map[string]json.RawMessage, impData map[string]json.RawMessage, errs []error)
}

type AccountFetcher interface {
	// FetchAccount fetches the host account configuration for a publisher. The returned json is the
	// stored account merged over accountDefaultJSON.
	FetchAccount(ctx context.Context, accountDefaultJSON json.RawMessage, accountID string) (json.RawMessage, []error)
}

// AllFetcher is implemented by every storage backend.
type AllFetcher interface {
	Fetcher
	AccountFetcher
}

// NotFoundError flags an id the backend does not hold, as opposed to a backend failure. MultiFetcher relies
// on it to fall through to the next backend.
type NotFoundError struct {
	ID       string
	DataType string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf(`Stored %s with ID="%s" not found.`, e.DataType, e.ID)
}

// MergeAccountDefaults applies the stored account as a json merge patch over the host defaults.
func MergeAccountDefaults(accountDefaultJSON json.RawMessage, accountID string, account json.RawMessage) (json.RawMessage, []error) {
	if len(accountDefaultJSON) == 0 {
		return account, nil
	}
	merged, err := jsonutil.MergePatch(accountDefaultJSON, account)
	if err != nil {
		return nil, []error{fmt.Errorf("merging account %s over the account defaults: %v", accountID, err)}
	}
	return merged, nil
}
