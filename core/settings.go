package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	SettingIPNEnable       = "ipn_enable"
	SettingIPNLogging      = "ipn_logging"
	SettingSandboxEnable   = "sandbox_enable"
	SettingAccountID       = "account_id"
	SettingSandboxAddress  = "sandbox_address"
	SettingAutogroupEnable = "autogroup_enable"
	SettingGroupID         = "group_id"
	SettingGroupAsDefault  = "group_as_default"
	SettingMinBeforeGroup  = "min_before_group"
)

// Settings is the runtime view of the installation settings for one call.
type Settings struct {
	IPNEnable       bool
	IPNLogging      bool
	SandboxEnable   bool
	AccountID       string
	SandboxAddress  string
	AutogroupEnable bool
	GroupID         int64
	GroupAsDefault  bool
	MinBeforeGroup  float64
}

// UseSandbox mirrors the admin switch: sandbox only applies while
// notifications are enabled.
func (s Settings) UseSandbox() bool {
	return s.IPNEnable && s.SandboxEnable
}

// MerchantIdentity is the receiver the notification must be addressed to.
func (s Settings) MerchantIdentity() string {
	if s.UseSandbox() {
		return strings.TrimSpace(s.SandboxAddress)
	}
	return strings.TrimSpace(s.AccountID)
}

func (d SettingsDefaults) Settings() Settings {
	return Settings{
		IPNEnable:       d.IPNEnable,
		IPNLogging:      d.IPNLogging,
		SandboxEnable:   d.SandboxEnable,
		AccountID:       strings.TrimSpace(d.AccountID),
		SandboxAddress:  strings.TrimSpace(d.SandboxAddress),
		AutogroupEnable: d.AutogroupEnable,
		GroupID:         d.GroupID,
		GroupAsDefault:  d.GroupAsDefault,
		MinBeforeGroup:  d.MinBeforeGroup,
	}
}

// SettingsResolver reads settings from a store and falls back to configured
// defaults for keys that were never written.
type SettingsResolver struct {
	store    SettingsStore
	defaults Settings
}

func NewSettingsResolver(store SettingsStore, defaults SettingsDefaults) *SettingsResolver {
	return &SettingsResolver{store: store, defaults: defaults.Settings()}
}

func (r *SettingsResolver) Load(ctx context.Context) (Settings, error) {
	if r == nil {
		return Settings{}, fmt.Errorf("core: settings resolver is not configured")
	}
	settings := r.defaults
	if r.store == nil {
		return settings, nil
	}

	var err error
	if settings.IPNEnable, err = r.boolSetting(ctx, SettingIPNEnable, settings.IPNEnable); err != nil {
		return Settings{}, err
	}
	if settings.IPNLogging, err = r.boolSetting(ctx, SettingIPNLogging, settings.IPNLogging); err != nil {
		return Settings{}, err
	}
	if settings.SandboxEnable, err = r.boolSetting(ctx, SettingSandboxEnable, settings.SandboxEnable); err != nil {
		return Settings{}, err
	}
	if settings.AccountID, err = r.stringSetting(ctx, SettingAccountID, settings.AccountID); err != nil {
		return Settings{}, err
	}
	if settings.SandboxAddress, err = r.stringSetting(ctx, SettingSandboxAddress, settings.SandboxAddress); err != nil {
		return Settings{}, err
	}
	if settings.AutogroupEnable, err = r.boolSetting(ctx, SettingAutogroupEnable, settings.AutogroupEnable); err != nil {
		return Settings{}, err
	}
	if settings.GroupAsDefault, err = r.boolSetting(ctx, SettingGroupAsDefault, settings.GroupAsDefault); err != nil {
		return Settings{}, err
	}

	raw, ok, err := r.store.GetSetting(ctx, SettingGroupID)
	if err != nil {
		return Settings{}, fmt.Errorf("core: read setting %q: %w", SettingGroupID, err)
	}
	if ok {
		if parsed, parseErr := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); parseErr == nil {
			settings.GroupID = parsed
		}
	}
	raw, ok, err = r.store.GetSetting(ctx, SettingMinBeforeGroup)
	if err != nil {
		return Settings{}, fmt.Errorf("core: read setting %q: %w", SettingMinBeforeGroup, err)
	}
	if ok {
		if parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(raw), 64); parseErr == nil {
			settings.MinBeforeGroup = parsed
		}
	}
	return settings, nil
}

// Bool reads a single flag, used by the audit gate on every entry.
func (r *SettingsResolver) Bool(ctx context.Context, key string) bool {
	if r == nil {
		return false
	}
	fallback := false
	switch key {
	case SettingIPNEnable:
		fallback = r.defaults.IPNEnable
	case SettingIPNLogging:
		fallback = r.defaults.IPNLogging
	case SettingSandboxEnable:
		fallback = r.defaults.SandboxEnable
	case SettingAutogroupEnable:
		fallback = r.defaults.AutogroupEnable
	case SettingGroupAsDefault:
		fallback = r.defaults.GroupAsDefault
	}
	if r.store == nil {
		return fallback
	}
	value, err := r.boolSetting(ctx, key, fallback)
	if err != nil {
		return fallback
	}
	return value
}

func (r *SettingsResolver) Set(ctx context.Context, key string, value string) error {
	if r == nil || r.store == nil {
		return fmt.Errorf("core: settings store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: setting key is required")
	}
	return r.store.SetSetting(ctx, key, value)
}

func (r *SettingsResolver) boolSetting(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, ok, err := r.store.GetSetting(ctx, key)
	if err != nil {
		return fallback, fmt.Errorf("core: read setting %q: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	return ParseSettingBool(raw), nil
}

func (r *SettingsResolver) stringSetting(ctx context.Context, key string, fallback string) (string, error) {
	raw, ok, err := r.store.GetSetting(ctx, key)
	if err != nil {
		return fallback, fmt.Errorf("core: read setting %q: %w", key, err)
	}
	if !ok {
		return fallback, nil
	}
	return strings.TrimSpace(raw), nil
}

func ParseSettingBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func FormatSettingBool(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
