package sqlstore

import (
	"time"

	"github.com/goliatone/go-donations/core"
	"github.com/uptrace/bun"
)

type transactionRecord struct {
	bun.BaseModel `bun:"table:donation_transactions,alias:dt"`

	ID               string    `bun:"id,pk"`
	TxnID            string    `bun:"txn_id,notnull"`
	ParentTxnID      string    `bun:"parent_txn_id,notnull"`
	TxnType          string    `bun:"txn_type,notnull"`
	UserID           int64     `bun:"user_id,notnull"`
	Business         string    `bun:"business,notnull"`
	ReceiverID       string    `bun:"receiver_id,notnull"`
	ReceiverEmail    string    `bun:"receiver_email,notnull"`
	ResidenceCountry string    `bun:"residence_country,notnull"`
	ItemName         string    `bun:"item_name,notnull"`
	ItemNumber       string    `bun:"item_number,notnull"`
	Memo             string    `bun:"memo,notnull"`
	PayerID          string    `bun:"payer_id,notnull"`
	PayerEmail       string    `bun:"payer_email,notnull"`
	PayerStatus      string    `bun:"payer_status,notnull"`
	FirstName        string    `bun:"first_name,notnull"`
	LastName         string    `bun:"last_name,notnull"`
	PaymentStatus    string    `bun:"payment_status,notnull"`
	PaymentType      string    `bun:"payment_type,notnull"`
	PaymentDate      time.Time `bun:"payment_date,nullzero"`
	Currency         string    `bun:"mc_currency,notnull"`
	Gross            float64   `bun:"mc_gross,notnull"`
	Fee              float64   `bun:"mc_fee,notnull"`
	NetAmount        float64   `bun:"net_amount,notnull"`
	SettleAmount     float64   `bun:"settle_amount,notnull"`
	SettleCurrency   string    `bun:"settle_currency,notnull"`
	ExchangeRate     string    `bun:"exchange_rate,notnull"`
	Confirmed        bool      `bun:"confirmed,notnull"`
	TestIPN          bool      `bun:"test_ipn,notnull"`
	Errors           string    `bun:"txn_errors,notnull"`
	ErrorsApproved   bool      `bun:"txn_errors_approved,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	Username string `bun:"-"`
}

// transactionUpsertColumns are overwritten when a delivery for a known txn_id
// arrives again. The id, creation time and approval flag are never touched.
var transactionUpsertColumns = []string{
	"parent_txn_id",
	"txn_type",
	"user_id",
	"business",
	"receiver_id",
	"receiver_email",
	"residence_country",
	"item_name",
	"item_number",
	"memo",
	"payer_id",
	"payer_email",
	"payer_status",
	"first_name",
	"last_name",
	"payment_status",
	"payment_type",
	"payment_date",
	"mc_currency",
	"mc_gross",
	"mc_fee",
	"net_amount",
	"settle_amount",
	"settle_currency",
	"exchange_rate",
	"confirmed",
	"test_ipn",
	"txn_errors",
	"updated_at",
}

type userRecord struct {
	bun.BaseModel `bun:"table:donation_users,alias:du"`

	ID             int64     `bun:"user_id,pk,autoincrement"`
	Username       string    `bun:"username,notnull"`
	Email          string    `bun:"user_email,notnull"`
	EmailHash      string    `bun:"user_email_hash,notnull"`
	DonatedAmount  float64   `bun:"donated_amount,notnull"`
	DefaultGroupID int64     `bun:"group_id,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type userGroupRecord struct {
	bun.BaseModel `bun:"table:donation_user_groups,alias:dug"`

	GroupID   int64     `bun:"group_id,pk"`
	UserID    int64     `bun:"user_id,pk"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type settingRecord struct {
	bun.BaseModel `bun:"table:donation_settings,alias:ds"`

	Key       string    `bun:"config_name,pk"`
	Value     string    `bun:"config_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type statRecord struct {
	bun.BaseModel `bun:"table:donation_stats,alias:dst"`

	Name      string    `bun:"stat_name,pk"`
	Value     float64   `bun:"stat_value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type auditRecord struct {
	bun.BaseModel `bun:"table:donation_audit_entries,alias:dae"`

	ID        string         `bun:"id,pk"`
	Message   string         `bun:"message,notnull"`
	IsError   bool           `bun:"is_error,notnull"`
	Context   map[string]any `bun:"context,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newTransactionRecord(txn core.Transaction, now time.Time) *transactionRecord {
	record := &transactionRecord{
		ID:               txn.ID,
		TxnID:            txn.TxnID,
		ParentTxnID:      txn.ParentTxnID,
		TxnType:          txn.TxnType,
		UserID:           txn.UserID,
		Business:         txn.Business,
		ReceiverID:       txn.ReceiverID,
		ReceiverEmail:    txn.ReceiverEmail,
		ResidenceCountry: txn.ResidenceCountry,
		ItemName:         txn.ItemName,
		ItemNumber:       txn.ItemNumber,
		Memo:             txn.Memo,
		PayerID:          txn.PayerID,
		PayerEmail:       txn.PayerEmail,
		PayerStatus:      txn.PayerStatus,
		FirstName:        txn.FirstName,
		LastName:         txn.LastName,
		PaymentStatus:    txn.PaymentStatus,
		PaymentType:      txn.PaymentType,
		Currency:         txn.Currency,
		Gross:            txn.Gross,
		Fee:              txn.Fee,
		NetAmount:        txn.NetAmount,
		SettleAmount:     txn.SettleAmount,
		SettleCurrency:   txn.SettleCurrency,
		ExchangeRate:     txn.ExchangeRate,
		Confirmed:        txn.Confirmed,
		TestIPN:          txn.TestIPN,
		Errors:           txn.Errors,
		ErrorsApproved:   txn.ErrorsApproved,
		CreatedAt:        txn.CreatedAt.UTC(),
		UpdatedAt:        now,
	}
	if !txn.PaymentDate.IsZero() {
		record.PaymentDate = txn.PaymentDate.UTC()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	return record
}

func (r *transactionRecord) toDomain() core.Transaction {
	if r == nil {
		return core.Transaction{}
	}
	return core.Transaction{
		ID:               r.ID,
		TxnID:            r.TxnID,
		ParentTxnID:      r.ParentTxnID,
		TxnType:          r.TxnType,
		UserID:           r.UserID,
		Username:         r.Username,
		Business:         r.Business,
		ReceiverID:       r.ReceiverID,
		ReceiverEmail:    r.ReceiverEmail,
		ResidenceCountry: r.ResidenceCountry,
		ItemName:         r.ItemName,
		ItemNumber:       r.ItemNumber,
		Memo:             r.Memo,
		PayerID:          r.PayerID,
		PayerEmail:       r.PayerEmail,
		PayerStatus:      r.PayerStatus,
		FirstName:        r.FirstName,
		LastName:         r.LastName,
		PaymentStatus:    r.PaymentStatus,
		PaymentType:      r.PaymentType,
		PaymentDate:      r.PaymentDate,
		Currency:         r.Currency,
		Gross:            r.Gross,
		Fee:              r.Fee,
		NetAmount:        r.NetAmount,
		SettleAmount:     r.SettleAmount,
		SettleCurrency:   r.SettleCurrency,
		ExchangeRate:     r.ExchangeRate,
		Confirmed:        r.Confirmed,
		TestIPN:          r.TestIPN,
		Errors:           r.Errors,
		ErrorsApproved:   r.ErrorsApproved,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (r *userRecord) toDomain() core.UserInfo {
	if r == nil {
		return core.UserInfo{}
	}
	return core.UserInfo{
		ID:            r.ID,
		Username:      r.Username,
		Email:         r.Email,
		DonatedAmount: r.DonatedAmount,
	}
}

func (r *auditRecord) toDomain() core.AuditEntry {
	if r == nil {
		return core.AuditEntry{}
	}
	return core.AuditEntry{
		ID:        r.ID,
		Message:   r.Message,
		Persist:   true,
		IsError:   r.IsError,
		Context:   copyAnyMap(r.Context),
		CreatedAt: r.CreatedAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
