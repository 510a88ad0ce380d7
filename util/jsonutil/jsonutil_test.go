package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(json.RawMessage(" null ")))
	assert.True(t, IsEmpty(json.RawMessage("{}")))
	assert.False(t, IsEmpty(json.RawMessage(`{"a":1}`)))
}

func TestMergePatch(t *testing.T) {
	tests := []struct {
		description string
		base        string
		patch       string
		expected    string
	}{
		{
			description: "Patch Wins For Scalars",
			base:        `{"tmax":500,"cur":["USD"]}`,
			patch:       `{"tmax":1000}`,
			expected:    `{"tmax":1000,"cur":["USD"]}`,
		},
		{
			description: "Arrays Are Replaced Wholesale",
			base:        `{"video":{"mimes":["video/mp4","video/webm"],"w":640}}`,
			patch:       `{"video":{"mimes":["video/ogg"]}}`,
			expected:    `{"video":{"mimes":["video/ogg"],"w":640}}`,
		},
		{
			description: "Null Removes",
			base:        `{"a":1,"b":2}`,
			patch:       `{"b":null}`,
			expected:    `{"a":1}`,
		},
		{
			description: "Empty Base",
			base:        ``,
			patch:       `{"a":1}`,
			expected:    `{"a":1}`,
		},
		{
			description: "Empty Patch",
			base:        `{"a":1}`,
			patch:       ``,
			expected:    `{"a":1}`,
		},
	}

	for _, test := range tests {
		merged, err := MergePatch(json.RawMessage(test.base), json.RawMessage(test.patch))
		require.NoError(t, err, test.description)
		assert.JSONEq(t, test.expected, string(merged), test.description)
	}
}

func TestMergeUnder(t *testing.T) {
	merged, err := MergeUnder(json.RawMessage(`{"placementId":1}`), json.RawMessage(`{"placementId":2,"keywords":"a"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"placementId":1,"keywords":"a"}`, string(merged))
}

func TestObjectKeys(t *testing.T) {
	keys, err := ObjectKeys(json.RawMessage(`{"prebid":{"x":1},"appnexus":{"a":[1,2]},"data":"y"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"prebid", "appnexus", "data"}, keys)

	_, err = ObjectKeys(json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}
