package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"

	jsonpatch "github.com/evanphx/json-patch"
)

var null = []byte("null")

// IsEmpty reports whether data holds no json value, a json null or an empty object.
func IsEmpty(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, null) || bytes.Equal(trimmed, []byte("{}"))
}

// MergePatch applies patch over base following RFC 7386: objects merge recursively, scalars and
// arrays in patch replace the base value and a null removes the key. Either side may be empty.
func MergePatch(base, patch json.RawMessage) (json.RawMessage, error) {
	if IsEmpty(patch) {
		return base, nil
	}
	if len(bytes.TrimSpace(base)) == 0 || bytes.Equal(bytes.TrimSpace(base), null) {
		return patch, nil
	}
	return jsonpatch.MergePatch(base, patch)
}

// MergeUnder merges data under base: keys already present in base win, keys only present in data are
// added. It is used where existing values must never be overridden.
func MergeUnder(base, data json.RawMessage) (json.RawMessage, error) {
	if IsEmpty(data) {
		return base, nil
	}
	merged, err := MergePatch(data, base)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// ObjectKeys returns the top level keys of a json object in document order.
func ObjectKeys(data json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	token, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("expected a json object")
	}

	var keys []string
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, token.(string))

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
