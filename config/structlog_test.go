package config

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type loggedSection struct {
	Cache    RedisCache        `mapstructure:"redis_cache"`
	Enabled  bool              // untagged
	Budget   *int              `mapstructure:"budget"`
	Currency map[string]string `mapstructure:"currency"`
}

func TestLogStructRedactsPasswords(t *testing.T) {
	var lines []string
	logger := func(msg string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(msg, args...))
	}

	section := loggedSection{
		Cache:    RedisCache{Enabled: true, Address: "localhost:6379", Password: "secret", KeyPrefix: "pbs"},
		Currency: map[string]string{"default": "USD"},
	}

	logStructWithLogger(reflect.ValueOf(section), "", logger)
	output := strings.Join(lines, "\n")

	assert.Contains(t, output, "redis_cache.address: localhost:6379")
	assert.Contains(t, output, "redis_cache.password: <REDACTED>")
	assert.NotContains(t, output, "secret")
	assert.Contains(t, output, "((Enabled)): false")
	assert.Contains(t, output, "budget: <nil>")
	assert.Contains(t, output, "currency[default]: USD")
}

func TestAllowedName(t *testing.T) {
	testCases := []struct {
		description string
		name        string
		expected    bool
	}{
		{description: "plain", name: "stored_requests.http.endpoint", expected: true},
		{description: "password", name: "stored_requests.database.connection.password", expected: false},
		{description: "mixed case", name: "Redis.PassWord", expected: false},
	}

	for _, test := range testCases {
		t.Run(test.description, func(t *testing.T) {
			assert.Equal(t, test.expected, allowedName(test.name))
		})
	}
}
