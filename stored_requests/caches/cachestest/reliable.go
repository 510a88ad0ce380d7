package cachestest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prebid/prebid-request-core/stored_requests"
)

// AssertCacheRobustness checks a cache whose Save and Invalidate always succeed. newCache must return an
// empty cache on every call.
func AssertCacheRobustness(t *testing.T, newCache func() stored_requests.CacheJSON) {
	stored := map[string]json.RawMessage{
		"stored-req-1": json.RawMessage(`{"id":"stored-req-1","tmax":500}`),
		"stored-req-2": json.RawMessage(`{"id":"stored-req-2","site":{"page":"https://example.com"}}`),
	}

	testCases := []struct {
		description string
		save        map[string]json.RawMessage
		invalidate  []string
		get         []string
		expected    map[string]json.RawMessage
	}{
		{
			description: "miss on an empty cache",
			get:         []string{"stored-req-1"},
			expected:    map[string]json.RawMessage{},
		},
		{
			description: "hit after save",
			save:        stored,
			get:         []string{"stored-req-1", "stored-req-2"},
			expected:    stored,
		},
		{
			description: "partial hit",
			save:        map[string]json.RawMessage{"stored-req-1": stored["stored-req-1"]},
			get:         []string{"stored-req-1", "stored-req-2"},
			expected:    map[string]json.RawMessage{"stored-req-1": stored["stored-req-1"]},
		},
		{
			description: "miss after invalidate",
			save:        stored,
			invalidate:  []string{"stored-req-2"},
			get:         []string{"stored-req-1", "stored-req-2"},
			expected:    map[string]json.RawMessage{"stored-req-1": stored["stored-req-1"]},
		},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			ctx := context.Background()
			cache := newCache()

			if test.save != nil {
				cache.Save(ctx, test.save)
			}
			if test.invalidate != nil {
				cache.Invalidate(ctx, test.invalidate)
			}

			actual := cache.Get(ctx, test.get)
			assert.Len(t, actual, len(test.expected))
			for id, value := range test.expected {
				assert.JSONEq(t, string(value), string(actual[id]), id)
			}
		})
	}
}
