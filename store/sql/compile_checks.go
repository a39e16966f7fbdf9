package sqlstore

import "github.com/goliatone/go-donations/core"

var (
	_ core.TransactionStore       = (*TransactionStore)(nil)
	_ core.UserDirectory          = (*UserDirectory)(nil)
	_ core.UserDirectory          = (*CachedUserDirectory)(nil)
	_ core.SettingsStore          = (*SettingsStore)(nil)
	_ core.SettingsStore          = (*CachedSettingsStore)(nil)
	_ core.StatsStore             = (*StatsStore)(nil)
	_ core.AuditStore             = (*AuditStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
