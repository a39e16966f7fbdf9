package core

import (
	"context"
	"errors"
	"testing"
)

func TestSettingsResolver_StoreOverridesDefaults(t *testing.T) {
	store := newMemSettingsStore(map[string]string{
		SettingIPNEnable:      "0",
		SettingSandboxEnable:  "1",
		SettingSandboxAddress: " sandbox@example.com ",
		SettingGroupID:        "12",
		SettingMinBeforeGroup: "5.5",
	})
	resolver := NewSettingsResolver(store, SettingsDefaults{
		IPNEnable:       true,
		AccountID:       "live@example.com",
		AutogroupEnable: true,
		GroupID:         3,
	})

	settings, err := resolver.Load(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.IPNEnable {
		t.Fatalf("expected stored ipn_enable=0 to win over default")
	}
	if !settings.AutogroupEnable || settings.AccountID != "live@example.com" {
		t.Fatalf("expected unset keys to fall back to defaults, got %+v", settings)
	}
	if settings.GroupID != 12 || settings.MinBeforeGroup != 5.5 {
		t.Fatalf("expected numeric settings from store, got %+v", settings)
	}
	if settings.SandboxAddress != "sandbox@example.com" {
		t.Fatalf("expected trimmed sandbox address, got %q", settings.SandboxAddress)
	}
}

func TestSettingsResolver_UnparsableNumbersKeepDefaults(t *testing.T) {
	store := newMemSettingsStore(map[string]string{SettingGroupID: "donors", SettingMinBeforeGroup: "lots"})
	settings, err := NewSettingsResolver(store, SettingsDefaults{GroupID: 3, MinBeforeGroup: 1}).Load(context.Background())
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if settings.GroupID != 3 || settings.MinBeforeGroup != 1 {
		t.Fatalf("expected defaults for unparsable values, got %+v", settings)
	}
}

func TestSettingsResolver_ReadFailure(t *testing.T) {
	store := newMemSettingsStore(nil)
	store.readErr = errors.New("no such table")
	resolver := NewSettingsResolver(store, SettingsDefaults{IPNLogging: true})
	if _, err := resolver.Load(context.Background()); err == nil {
		t.Fatalf("expected read failure")
	}
	if !resolver.Bool(context.Background(), SettingIPNLogging) {
		t.Fatalf("expected Bool to fall back to the default on read failure")
	}
}

func TestSettingsResolver_SetRequiresStore(t *testing.T) {
	resolver := NewSettingsResolver(nil, SettingsDefaults{IPNEnable: true})
	if err := resolver.Set(context.Background(), SettingIPNEnable, "0"); err == nil {
		t.Fatalf("expected error without a store")
	}
	settings, err := resolver.Load(context.Background())
	if err != nil || !settings.IPNEnable {
		t.Fatalf("expected defaults without a store, got %+v %v", settings, err)
	}
}

func TestSettings_MerchantIdentity(t *testing.T) {
	settings := Settings{IPNEnable: true, AccountID: "live@example.com", SandboxAddress: "sandbox@example.com"}
	if settings.MerchantIdentity() != "live@example.com" {
		t.Fatalf("expected live identity, got %q", settings.MerchantIdentity())
	}
	settings.SandboxEnable = true
	if settings.MerchantIdentity() != "sandbox@example.com" {
		t.Fatalf("expected sandbox identity, got %q", settings.MerchantIdentity())
	}
	settings.IPNEnable = false
	if settings.UseSandbox() {
		t.Fatalf("expected sandbox to require notifications enabled")
	}
}

func TestParseSettingBool(t *testing.T) {
	for _, raw := range []string{"1", "true", " YES ", "on"} {
		if !ParseSettingBool(raw) {
			t.Fatalf("expected %q to be true", raw)
		}
	}
	for _, raw := range []string{"", "0", "false", "off", "2"} {
		if ParseSettingBool(raw) {
			t.Fatalf("expected %q to be false", raw)
		}
	}
	if FormatSettingBool(true) != "1" || FormatSettingBool(false) != "0" {
		t.Fatalf("unexpected bool formatting")
	}
}
