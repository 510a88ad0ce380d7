package config

import (
	"fmt"
)

// AccountStatus is the lifecycle state of a publisher account.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusInactive AccountStatus = "inactive"
)

// Account represents a publisher account configuration
type Account struct {
	ID       string        `mapstructure:"id" json:"id"`
	Disabled bool          `mapstructure:"disabled" json:"disabled"`
	Status   AccountStatus `mapstructure:"status" json:"status,omitempty"`
	// DefaultIntegration fills ext.prebid.integration when a request leaves it empty.
	DefaultIntegration string        `mapstructure:"default_integration" json:"default_integration"`
	Events             AccountEvents `mapstructure:"events" json:"events"`
	GDPR               AccountPrivacy `mapstructure:"gdpr" json:"gdpr"`
	CCPA               AccountPrivacy `mapstructure:"ccpa" json:"ccpa"`
}

// AccountEvents controls event notifications for the account.
type AccountEvents struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// AccountPrivacy holds the per-account switch of a privacy regime. A nil Enabled defers to the host.
type AccountPrivacy struct {
	Enabled *bool `mapstructure:"enabled" json:"enabled,omitempty"`
}

// IsActive reports whether requests may be served for the account.
func (a *Account) IsActive() bool {
	return !a.Disabled && a.Status != AccountStatusInactive
}

func (a *Account) validate() error {
	switch a.Status {
	case "", AccountStatusActive, AccountStatusInactive:
		return nil
	}
	return fmt.Errorf("status must be one of %s or %s. Got %s", AccountStatusActive, AccountStatusInactive, a.Status)
}
