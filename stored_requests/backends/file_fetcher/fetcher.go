package file_fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/prebid/prebid-request-core/stored_requests"
)

const (
	requestsDirectory = "stored_requests"
	impsDirectory     = "stored_imps"
	accountsDirectory = "accounts"
)

// NewFileFetcher _immediately_ loads stored request data from local files.
// These are stored in memory for low-latency reads.
//
// The directory holds one sub-directory per data type (stored_requests, stored_imps, accounts).
// Each file inside is named "{config_id}.json". Accounts may also be written as "{id}.yaml" or "{id}.yml".
// For example, when asked to fetch the request with ID == "23", it will return the data from "directory/stored_requests/23.json".
func NewFileFetcher(directory string) (stored_requests.AllFetcher, error) {
	storedData := make(map[string]map[string]json.RawMessage)
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := collectStoredData(filepath.Join(directory, entry.Name()), entry.Name() == accountsDirectory)
		if err != nil {
			return nil, err
		}
		storedData[entry.Name()] = data
	}
	return &eagerFetcher{storedData}, nil
}

type eagerFetcher struct {
	storedData map[string]map[string]json.RawMessage
}

func (fetcher *eagerFetcher) FetchRequests(ctx context.Context, requestIDs []string, impIDs []string) (map[string]json.RawMessage, map[string]json.RawMessage, []error) {
	errs := appendErrors("Request", requestIDs, fetcher.storedData[requestsDirectory], nil)
	errs = appendErrors("Imp", impIDs, fetcher.storedData[impsDirectory], errs)
	return fetcher.storedData[requestsDirectory], fetcher.storedData[impsDirectory], errs
}

// FetchAccount fetches the host account configuration for a publisher
func (fetcher *eagerFetcher) FetchAccount(ctx context.Context, accountDefaultsJSON json.RawMessage, accountID string) (json.RawMessage, []error) {
	if len(accountID) == 0 {
		return nil, []error{fmt.Errorf("Cannot look up an empty accountID")}
	}
	accountJSON, ok := fetcher.storedData[accountsDirectory][accountID]
	if !ok {
		return nil, []error{stored_requests.NotFoundError{
			ID:       accountID,
			DataType: "Account",
		}}
	}

	return stored_requests.MergeAccountDefaults(accountDefaultsJSON, accountID, accountJSON)
}

func collectStoredData(directory string, allowYAML bool) (map[string]json.RawMessage, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	data := make(map[string]json.RawMessage, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		isYAML := allowYAML && (ext == ".yaml" || ext == ".yml")
		if ext != ".json" && !isYAML { // Skip the .gitignore
			continue
		}

		fileData, err := os.ReadFile(filepath.Join(directory, name))
		if err != nil {
			return nil, err
		}
		if isYAML {
			if fileData, err = yamlToJSON(fileData); err != nil {
				return nil, fmt.Errorf("%s: %v", filepath.Join(directory, name), err)
			}
		}
		data[strings.TrimSuffix(name, ext)] = json.RawMessage(fileData)
	}
	return data, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var parsed interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return json.Marshal(convertYAMLMaps(parsed))
}

// convertYAMLMaps replaces the map[interface{}]interface{} values produced by yaml.v2 with
// json-encodable map[string]interface{} values.
func convertYAMLMaps(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		converted := make(map[string]interface{}, len(v))
		for key, inner := range v {
			converted[fmt.Sprint(key)] = convertYAMLMaps(inner)
		}
		return converted
	case []interface{}:
		for i, inner := range v {
			v[i] = convertYAMLMaps(inner)
		}
		return v
	default:
		return v
	}
}

func appendErrors(dataType string, ids []string, data map[string]json.RawMessage, errs []error) []error {
	for _, id := range ids {
		if _, ok := data[id]; !ok {
			errs = append(errs, stored_requests.NotFoundError{
				ID:       id,
				DataType: dataType,
			})
		}
	}
	return errs
}
