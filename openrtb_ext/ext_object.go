package openrtb_ext

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
)

var knownFieldsByType sync.Map

// jsonFieldNames returns the json keys modeled by the struct type t.
func jsonFieldNames(t reflect.Type) map[string]struct{} {
	if names, ok := knownFieldsByType.Load(t); ok {
		return names.(map[string]struct{})
	}

	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = t.Field(i).Name
		}
		names[name] = struct{}{}
	}
	knownFieldsByType.Store(t, names)
	return names
}

// unmarshalExtObject decodes data into v, which must be a pointer to a struct, and returns the top
// level keys of data that v does not model.
func unmarshalExtObject(data []byte, v interface{}) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	known := jsonFieldNames(reflect.TypeOf(v).Elem())
	var unknown map[string]json.RawMessage
	for key, value := range all {
		if _, ok := known[key]; ok {
			continue
		}
		if unknown == nil {
			unknown = make(map[string]json.RawMessage)
		}
		unknown[key] = value
	}
	return unknown, nil
}

// marshalExtObject encodes v and adds the unknown keys which v did not write itself.
func marshalExtObject(v interface{}, unknown map[string]json.RawMessage) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(unknown) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = make(map[string]json.RawMessage, len(unknown))
	}
	for key, value := range unknown {
		if _, ok := all[key]; !ok {
			all[key] = value
		}
	}
	return json.Marshal(all)
}

func cloneRawMap(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	clone := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
