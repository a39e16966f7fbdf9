package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-donations/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const (
	settingCacheKeyPrefix = "go-donations::setting::v1"
	userCacheKeyPrefix    = "go-donations::user::v1"
)

type cachedSetting struct {
	Value string
	Found bool
}

// CachedSettingsStore reads settings through a cache and drops the cached
// entry after every write.
type CachedSettingsStore struct {
	base  core.SettingsStore
	cache repositorycache.CacheService
}

func NewCachedSettingsStore(base core.SettingsStore, cacheService repositorycache.CacheService) (*CachedSettingsStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base settings store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: settings cache service is required")
	}
	return &CachedSettingsStore{base: base, cache: cacheService}, nil
}

// SettingCacheKey returns go-donations::setting::v1::<key> with the key
// URL-path escaped.
func SettingCacheKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("sqlstore: setting key is required")
	}
	return settingCacheKeyPrefix + "::" + url.PathEscape(key), nil
}

func (s *CachedSettingsStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return "", false, fmt.Errorf("sqlstore: cached settings store is not configured")
	}
	cacheKey, err := SettingCacheKey(key)
	if err != nil {
		return "", false, err
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedSetting, error) {
		value, found, fetchErr := s.base.GetSetting(ctx, strings.TrimSpace(key))
		if fetchErr != nil {
			return cachedSetting{}, fetchErr
		}
		return cachedSetting{Value: value, Found: found}, nil
	})
	if err != nil {
		return "", false, err
	}
	return entry.Value, entry.Found, nil
}

func (s *CachedSettingsStore) SetSetting(ctx context.Context, key string, value string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached settings store is not configured")
	}
	cacheKey, err := SettingCacheKey(key)
	if err != nil {
		return err
	}
	if err := s.base.SetSetting(ctx, strings.TrimSpace(key), value); err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

// CachedUserDirectory caches member lookups by id. Writes through the
// directory invalidate the member entry.
type CachedUserDirectory struct {
	base  core.UserDirectory
	cache repositorycache.CacheService
}

type cachedUser struct {
	User  core.UserInfo
	Found bool
}

func NewCachedUserDirectory(base core.UserDirectory, cacheService repositorycache.CacheService) (*CachedUserDirectory, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user directory is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserDirectory{base: base, cache: cacheService}, nil
}

func UserCacheKey(userID int64) string {
	return userCacheKeyPrefix + "::" + strconv.FormatInt(userID, 10)
}

func (d *CachedUserDirectory) FindUserByID(ctx context.Context, userID int64) (core.UserInfo, bool, error) {
	if d == nil || d.base == nil || d.cache == nil {
		return core.UserInfo{}, false, fmt.Errorf("sqlstore: cached user directory is not configured")
	}
	entry, err := repositorycache.GetOrFetch(ctx, d.cache, UserCacheKey(userID), func(ctx context.Context) (cachedUser, error) {
		user, found, fetchErr := d.base.FindUserByID(ctx, userID)
		if fetchErr != nil {
			return cachedUser{}, fetchErr
		}
		return cachedUser{User: user, Found: found}, nil
	})
	if err != nil {
		return core.UserInfo{}, false, err
	}
	return entry.User, entry.Found, nil
}

func (d *CachedUserDirectory) FindUserByEmail(ctx context.Context, email string) (core.UserInfo, bool, error) {
	if d == nil || d.base == nil {
		return core.UserInfo{}, false, fmt.Errorf("sqlstore: cached user directory is not configured")
	}
	return d.base.FindUserByEmail(ctx, email)
}

func (d *CachedUserDirectory) UpdateDonatedAmount(ctx context.Context, userID int64, amount float64) error {
	if d == nil || d.base == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached user directory is not configured")
	}
	if err := d.base.UpdateDonatedAmount(ctx, userID, amount); err != nil {
		return err
	}
	return d.cache.Delete(ctx, UserCacheKey(userID))
}

func (d *CachedUserDirectory) AddUserToGroup(ctx context.Context, groupID int64, userID int64, makeDefault bool) error {
	if d == nil || d.base == nil || d.cache == nil {
		return fmt.Errorf("sqlstore: cached user directory is not configured")
	}
	if err := d.base.AddUserToGroup(ctx, groupID, userID, makeDefault); err != nil {
		return err
	}
	return d.cache.Delete(ctx, UserCacheKey(userID))
}
