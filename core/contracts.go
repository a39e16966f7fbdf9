package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/schema"
)

// TransportRequest is one verification postback.
type TransportRequest struct {
	Endpoint    string
	Body        []byte
	ContentType string
	UserAgent   string
	Timeout     time.Duration
}

type TransportResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// TransportMechanism is an outbound channel able to post a verification body
// to the provider.
type TransportMechanism interface {
	Name() string
	Available(ctx context.Context) bool
	Post(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// TransportSelector picks the mechanism used for the rest of a call.
type TransportSelector interface {
	Select(ctx context.Context) (TransportMechanism, error)
}

type VerificationRequest struct {
	Form      schema.Form
	Sandbox   bool
	Mechanism TransportMechanism
}

type VerificationReport struct {
	Verdict    Verdict
	StatusCode int
	Body       string
	Mechanism  string
	Endpoint   string
	Err        error
}

// Verifier replays a notification to the provider. Verification never fails:
// transport problems surface as VerdictIndeterminate with Err set.
type Verifier interface {
	Verify(ctx context.Context, req VerificationRequest) VerificationReport
}

type TransactionStore interface {
	// UpsertTransaction inserts or updates by TxnID atomically. The stored
	// approval flag is never overwritten.
	UpsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	FindTransactionByTxnID(ctx context.Context, txnID string) (Transaction, bool, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	SetErrorsApproved(ctx context.Context, id string, approved bool) (Transaction, error)
}

type UserDirectory interface {
	FindUserByID(ctx context.Context, userID int64) (UserInfo, bool, error)
	FindUserByEmail(ctx context.Context, email string) (UserInfo, bool, error)
	UpdateDonatedAmount(ctx context.Context, userID int64, amount float64) error
	AddUserToGroup(ctx context.Context, groupID int64, userID int64, makeDefault bool) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key string, value string) error
}

type StatsStore interface {
	RefreshOverview(ctx context.Context, test bool, anonymousUserID int64) (OverviewStats, error)
	AddRaisedAmount(ctx context.Context, test bool, amount float64) (float64, error)
	GetOverview(ctx context.Context, test bool) (OverviewStats, error)
}

type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry)
}

type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// StoreProvider exposes the persistence collaborators of the pipeline.
type StoreProvider interface {
	TransactionStore() TransactionStore
	UserDirectory() UserDirectory
	SettingsStore() SettingsStore
	StatsStore() StatsStore
	AuditStore() AuditStore
}

// RepositoryStoreFactory builds a StoreProvider from a persistence client.
type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// CompletedSnapshot is handed to CompletedHook before the irreversible
// effects of a completed payment run. Only Transaction changes are carried
// forward; gates are computed once per call.
type CompletedSnapshot struct {
	Transaction Transaction
	Gates       TaskGates
	Values      schema.Values
}

type CompletedHook interface {
	BeforeCompleted(ctx context.Context, snapshot CompletedSnapshot) (CompletedSnapshot, error)
}

type CompletedHookFunc func(ctx context.Context, snapshot CompletedSnapshot) (CompletedSnapshot, error)

func (f CompletedHookFunc) BeforeCompleted(ctx context.Context, snapshot CompletedSnapshot) (CompletedSnapshot, error) {
	return f(ctx, snapshot)
}

// GroupAddDecision is the mutable decision passed to GroupAddHook before a
// donor is added to the donors group.
type GroupAddDecision struct {
	CanUseAutogroup bool
	GroupID         int64
	UserID          int64
	Username        string
	MakeDefault     bool
}

type GroupAddHook interface {
	BeforeGroupAdd(ctx context.Context, decision GroupAddDecision) (GroupAddDecision, error)
}

type GroupAddHookFunc func(ctx context.Context, decision GroupAddDecision) (GroupAddDecision, error)

func (f GroupAddHookFunc) BeforeGroupAdd(ctx context.Context, decision GroupAddDecision) (GroupAddDecision, error) {
	return f(ctx, decision)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// NotificationService is the command/query surface of the pipeline.
type NotificationService interface {
	HandleNotification(ctx context.Context, body []byte) (Outcome, error)
	ApproveTransaction(ctx context.Context, id string, approved bool) (Transaction, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	GetOverview(ctx context.Context, test bool) (OverviewStats, error)
}
