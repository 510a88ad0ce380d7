package endpoints

import (
	"encoding/json"
	"net/http"
)

const notSet = "not-set"

type buildInfo struct {
	Revision string `json:"revision"`
	Version  string `json:"version"`
}

func orNotSet(value string) string {
	if value == "" {
		return notSet
	}
	return value
}

// NewVersionEndpoint serves the release version and the commit the binary was built from.
func NewVersionEndpoint(version, revision string) http.HandlerFunc {
	// Marshaling two strings cannot fail.
	body, _ := json.Marshal(buildInfo{Revision: orNotSet(revision), Version: orNotSet(version)})

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}
