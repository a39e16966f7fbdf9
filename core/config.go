package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultLiveVerificationURL    = "https://ipnpb.paypal.com/cgi-bin/webscr"
	DefaultSandboxVerificationURL = "https://ipnpb.sandbox.paypal.com/cgi-bin/webscr"
	DefaultVerificationTimeout    = 30 * time.Second
	DefaultUserAgent              = "go-donations/ipn-listener"
	DefaultAnonymousUserID        = int64(1)
	DefaultCorrelationPrefix      = "uid_"
)

type VerificationConfig struct {
	LiveURL           string        `koanf:"live_url" mapstructure:"live_url"`
	SandboxURL        string        `koanf:"sandbox_url" mapstructure:"sandbox_url"`
	Timeout           time.Duration `koanf:"timeout" mapstructure:"timeout"`
	UserAgent         string        `koanf:"user_agent" mapstructure:"user_agent"`
	DisableHTTPClient bool          `koanf:"disable_http_client" mapstructure:"disable_http_client"`
	DisableSocket     bool          `koanf:"disable_socket" mapstructure:"disable_socket"`
}

// SettingsDefaults seeds runtime settings that have never been written to the
// settings store.
type SettingsDefaults struct {
	IPNEnable       bool    `koanf:"ipn_enable" mapstructure:"ipn_enable"`
	IPNLogging      bool    `koanf:"ipn_logging" mapstructure:"ipn_logging"`
	SandboxEnable   bool    `koanf:"sandbox_enable" mapstructure:"sandbox_enable"`
	AccountID       string  `koanf:"account_id" mapstructure:"account_id"`
	SandboxAddress  string  `koanf:"sandbox_address" mapstructure:"sandbox_address"`
	AutogroupEnable bool    `koanf:"autogroup_enable" mapstructure:"autogroup_enable"`
	GroupID         int64   `koanf:"group_id" mapstructure:"group_id"`
	GroupAsDefault  bool    `koanf:"group_as_default" mapstructure:"group_as_default"`
	MinBeforeGroup  float64 `koanf:"min_before_group" mapstructure:"min_before_group"`
}

type Config struct {
	ServiceName       string             `koanf:"service_name" mapstructure:"service_name"`
	Verification      VerificationConfig `koanf:"verification" mapstructure:"verification"`
	Defaults          SettingsDefaults   `koanf:"defaults" mapstructure:"defaults"`
	AnonymousUserID   int64              `koanf:"anonymous_user_id" mapstructure:"anonymous_user_id"`
	CorrelationPrefix string             `koanf:"correlation_prefix" mapstructure:"correlation_prefix"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "donations",
		Verification: VerificationConfig{
			LiveURL:    DefaultLiveVerificationURL,
			SandboxURL: DefaultSandboxVerificationURL,
			Timeout:    DefaultVerificationTimeout,
			UserAgent:  DefaultUserAgent,
		},
		Defaults: SettingsDefaults{
			IPNEnable: true,
		},
		AnonymousUserID:   DefaultAnonymousUserID,
		CorrelationPrefix: DefaultCorrelationPrefix,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := validateEndpoint("verification.live_url", c.Verification.LiveURL); err != nil {
		return err
	}
	if err := validateEndpoint("verification.sandbox_url", c.Verification.SandboxURL); err != nil {
		return err
	}
	if c.Verification.Timeout <= 0 {
		return fmt.Errorf("core: verification.timeout must be positive")
	}
	if c.AnonymousUserID <= 0 {
		return fmt.Errorf("core: anonymous_user_id must be positive")
	}
	if strings.TrimSpace(c.CorrelationPrefix) == "" {
		return fmt.Errorf("core: correlation_prefix is required")
	}
	if c.Defaults.MinBeforeGroup < 0 {
		return fmt.Errorf("core: defaults.min_before_group must not be negative")
	}
	return nil
}

// Endpoint returns the verification URL for live or sandbox notifications.
func (c VerificationConfig) Endpoint(sandbox bool) string {
	if sandbox {
		return strings.TrimSpace(c.SandboxURL)
	}
	return strings.TrimSpace(c.LiveURL)
}

func validateEndpoint(name string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("core: %s is required", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("core: %s is invalid: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("core: %s must use http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("core: %s host is required", name)
	}
	return nil
}
