package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/uptrace/bun"
)

const (
	StatTransactionsCount    = "transactions_count"
	StatKnownDonorsCount     = "known_donors_count"
	StatAnonymousDonorsCount = "anonymous_donors_count"
	StatRaisedAmount         = "raised"
)

// StatsStore keeps the overview counters. Counters are recomputed from the
// transaction table; the raised amount is a running total.
type StatsStore struct {
	db *bun.DB
}

func NewStatsStore(db *bun.DB) (*StatsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &StatsStore{db: db}, nil
}

// StatName returns the stored key of a statistic for live or sandbox
// transactions.
func StatName(name string, test bool) string {
	return name + core.StatsSuffix(test)
}

func (s *StatsStore) RefreshOverview(ctx context.Context, test bool, anonymousUserID int64) (core.OverviewStats, error) {
	if s == nil || s.db == nil {
		return core.OverviewStats{}, fmt.Errorf("sqlstore: stats store is not configured")
	}
	now := time.Now().UTC()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		completed := func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.confirmed = ?", true).
				Where("?TableAlias.payment_status = ?", core.PaymentStatusCompleted).
				Where("?TableAlias.test_ipn = ?", test)
		}

		transactions, err := tx.NewSelect().
			Model((*transactionRecord)(nil)).
			Apply(completed).
			Count(ctx)
		if err != nil {
			return err
		}

		var known int64
		if err := tx.NewSelect().
			Model((*transactionRecord)(nil)).
			ColumnExpr("COUNT(DISTINCT ?TableAlias.user_id)").
			Apply(completed).
			Where("?TableAlias.user_id <> ?", anonymousUserID).
			Scan(ctx, &known); err != nil {
			return err
		}

		var anonymous int64
		if err := tx.NewSelect().
			Model((*transactionRecord)(nil)).
			ColumnExpr("COUNT(DISTINCT ?TableAlias.payer_id)").
			Apply(completed).
			Where("?TableAlias.user_id = ?", anonymousUserID).
			Scan(ctx, &anonymous); err != nil {
			return err
		}

		values := map[string]float64{
			StatName(StatTransactionsCount, test):    float64(transactions),
			StatName(StatKnownDonorsCount, test):     float64(known),
			StatName(StatAnonymousDonorsCount, test): float64(anonymous),
		}
		for name, value := range values {
			record := &statRecord{Name: name, Value: value, UpdatedAt: now}
			if _, err := tx.NewInsert().
				Model(record).
				On("CONFLICT (stat_name) DO UPDATE").
				Set("stat_value = EXCLUDED.stat_value").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.OverviewStats{}, err
	}
	return s.GetOverview(ctx, test)
}

// AddRaisedAmount increments the raised total atomically and returns the new
// value.
func (s *StatsStore) AddRaisedAmount(ctx context.Context, test bool, amount float64) (float64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: stats store is not configured")
	}
	name := StatName(StatRaisedAmount, test)
	record := &statRecord{Name: name, Value: amount, UpdatedAt: time.Now().UTC()}
	var total float64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(record).
			On("CONFLICT (stat_name) DO UPDATE").
			Set("stat_value = ?TableAlias.stat_value + EXCLUDED.stat_value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().
			Model((*statRecord)(nil)).
			Column("stat_value").
			Where("?TableAlias.stat_name = ?", name).
			Limit(1).
			Scan(ctx, &total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *StatsStore) GetOverview(ctx context.Context, test bool) (core.OverviewStats, error) {
	if s == nil || s.db == nil {
		return core.OverviewStats{}, fmt.Errorf("sqlstore: stats store is not configured")
	}
	names := []string{
		StatName(StatTransactionsCount, test),
		StatName(StatKnownDonorsCount, test),
		StatName(StatAnonymousDonorsCount, test),
		StatName(StatRaisedAmount, test),
	}
	var records []statRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.stat_name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return core.OverviewStats{}, err
	}
	stats := core.OverviewStats{Test: test}
	for _, record := range records {
		switch record.Name {
		case names[0]:
			stats.TransactionsCount = int64(record.Value)
		case names[1]:
			stats.KnownDonorsCount = int64(record.Value)
		case names[2]:
			stats.AnonymousDonorsCount = int64(record.Value)
		case names[3]:
			stats.RaisedAmount = record.Value
		}
		if record.UpdatedAt.After(stats.UpdatedAt) {
			stats.UpdatedAt = record.UpdatedAt
		}
	}
	return stats, nil
}
