package metrics

import (
	"github.com/mssola/user_agent"
)

// BrowserFromUserAgent classifies the browser family used for the request metrics.
func BrowserFromUserAgent(ua string) Browser {
	if ua == "" {
		return BrowserOther
	}
	name, _ := user_agent.New(ua).Browser()
	if name == "Safari" {
		return BrowserSafari
	}
	return BrowserOther
}
