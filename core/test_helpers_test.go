package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const testMerchant = "merchant@example.com"

// ipnBody encodes a completed live payment addressed to testMerchant, with
// overrides applied in place. An empty override value removes the key.
func ipnBody(overrides map[string]string) []byte {
	pairs := [][2]string{
		{"txn_id", "9XK12345AB6789012"},
		{"txn_type", "web_accept"},
		{"payment_status", "Completed"},
		{"payment_type", "instant"},
		{"payment_date", "08:52:11 Jan 02, 2024 PST"},
		{"mc_gross", "100.00"},
		{"mc_fee", "3.20"},
		{"mc_currency", "USD"},
		{"business", testMerchant},
		{"receiver_email", testMerchant},
		{"receiver_id", "MERCH12345678"},
		{"payer_email", "donor@example.com"},
		{"payer_id", "PAYER1234567"},
		{"payer_status", "verified"},
		{"first_name", "Ada"},
		{"last_name", "Lovelace"},
		{"residence_country", "GB"},
		{"item_name", "Donation"},
		{"item_number", "uid_482_1704214331"},
		{"test_ipn", "0"},
	}
	seen := map[string]bool{}
	parts := make([]string, 0, len(pairs)+len(overrides))
	for _, pair := range pairs {
		key, value := pair[0], pair[1]
		if override, ok := overrides[key]; ok {
			seen[key] = true
			if override == "" {
				continue
			}
			value = override
		}
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	for key, value := range overrides {
		if seen[key] || value == "" {
			continue
		}
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	return []byte(strings.Join(parts, "&"))
}

type memTransactionStore struct {
	mu        sync.Mutex
	byTxnID   map[string]Transaction
	upserts   int
	upsertErr error
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{byTxnID: map[string]Transaction{}}
}

func (s *memTransactionStore) UpsertTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return Transaction{}, s.upsertErr
	}
	s.upserts++
	if existing, ok := s.byTxnID[txn.TxnID]; ok {
		txn.ID = existing.ID
		txn.CreatedAt = existing.CreatedAt
		txn.ErrorsApproved = existing.ErrorsApproved
	} else {
		txn.ID = fmt.Sprintf("txn_%d", len(s.byTxnID)+1)
		txn.CreatedAt = time.Unix(1700000000, 0).UTC()
	}
	s.byTxnID[txn.TxnID] = txn
	return txn, nil
}

func (s *memTransactionStore) FindTransactionByTxnID(_ context.Context, txnID string) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.byTxnID[txnID]
	return txn, ok, nil
}

func (s *memTransactionStore) GetTransaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.byTxnID {
		if txn.ID == id {
			return txn, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (s *memTransactionStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Transaction{}
	for _, txn := range s.byTxnID {
		if filter.OnlyErrors && !txn.HasErrors() {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

func (s *memTransactionStore) SetErrorsApproved(_ context.Context, id string, approved bool) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, txn := range s.byTxnID {
		if txn.ID == id {
			txn.ErrorsApproved = approved
			s.byTxnID[key] = txn
			return txn, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

type groupAddCall struct {
	groupID     int64
	userID      int64
	makeDefault bool
}

type memUserDirectory struct {
	mu        sync.Mutex
	users     map[int64]UserInfo
	donated   map[int64]float64
	groupAdds []groupAddCall
	groupErr  error
}

func newMemUserDirectory(users ...UserInfo) *memUserDirectory {
	dir := &memUserDirectory{users: map[int64]UserInfo{}, donated: map[int64]float64{}}
	for _, user := range users {
		dir.users[user.ID] = user
	}
	return dir
}

func (d *memUserDirectory) FindUserByID(_ context.Context, userID int64) (UserInfo, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[userID]
	return user, ok, nil
}

func (d *memUserDirectory) FindUserByEmail(_ context.Context, email string) (UserInfo, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, user := range d.users {
		if strings.EqualFold(user.Email, email) {
			return user, true, nil
		}
	}
	return UserInfo{}, false, nil
}

func (d *memUserDirectory) UpdateDonatedAmount(_ context.Context, userID int64, amount float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.donated[userID] = amount
	return nil
}

func (d *memUserDirectory) AddUserToGroup(_ context.Context, groupID int64, userID int64, makeDefault bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.groupErr != nil {
		return d.groupErr
	}
	d.groupAdds = append(d.groupAdds, groupAddCall{groupID: groupID, userID: userID, makeDefault: makeDefault})
	return nil
}

type memSettingsStore struct {
	mu      sync.Mutex
	values  map[string]string
	readErr error
}

func newMemSettingsStore(values map[string]string) *memSettingsStore {
	copied := map[string]string{}
	for key, value := range values {
		copied[key] = value
	}
	return &memSettingsStore{values: copied}
}

func (s *memSettingsStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memSettingsStore) SetSetting(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memSettingsStore) get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

type memStatsStore struct {
	mu        sync.Mutex
	refreshes []bool
	raised    map[bool]float64
	raiseErr  error
}

func newMemStatsStore() *memStatsStore {
	return &memStatsStore{raised: map[bool]float64{}}
}

func (s *memStatsStore) RefreshOverview(_ context.Context, test bool, _ int64) (OverviewStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes = append(s.refreshes, test)
	return OverviewStats{Test: test, RaisedAmount: s.raised[test]}, nil
}

func (s *memStatsStore) AddRaisedAmount(_ context.Context, test bool, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raiseErr != nil {
		return 0, s.raiseErr
	}
	s.raised[test] += amount
	return s.raised[test], nil
}

func (s *memStatsStore) GetOverview(_ context.Context, test bool) (OverviewStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return OverviewStats{Test: test, RaisedAmount: s.raised[test]}, nil
}

type recordingAuditLogger struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (l *recordingAuditLogger) Log(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *recordingAuditLogger) has(message string) bool {
	_, ok := l.find(message)
	return ok
}

func (l *recordingAuditLogger) find(message string) (AuditEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range l.entries {
		if strings.HasPrefix(entry.Message, message) {
			return entry, true
		}
	}
	return AuditEntry{}, false
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []Notification
	fails map[NotificationKind]error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fails[notification.Kind]; err != nil {
		return err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, 0, len(n.sent))
	for _, item := range n.sent {
		out = append(out, item.Kind)
	}
	return out
}

type stubMechanism struct {
	name string
}

func (m stubMechanism) Name() string { return m.name }

func (stubMechanism) Available(context.Context) bool { return true }

func (stubMechanism) Post(context.Context, TransportRequest) (TransportResponse, error) {
	return TransportResponse{}, errors.New("stub mechanism does not post")
}

type stubSelector struct {
	mu        sync.Mutex
	mechanism TransportMechanism
	err       error
	calls     int
}

func (s *stubSelector) Select(context.Context) (TransportMechanism, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.mechanism, s.err
}

func (s *stubSelector) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubVerifier struct {
	mu       sync.Mutex
	verdict  Verdict
	status   int
	err      error
	requests []VerificationRequest
}

func (v *stubVerifier) Verify(_ context.Context, req VerificationRequest) VerificationReport {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, req)
	status := v.status
	if status == 0 {
		status = 200
	}
	return VerificationReport{
		Verdict:    v.verdict,
		StatusCode: status,
		Body:       strings.ToUpper(string(v.verdict)),
		Mechanism:  req.Mechanism.Name(),
		Endpoint:   "https://verify.test/cgi-bin/webscr",
		Err:        v.err,
	}
}

// harness bundles the in-memory collaborators of one pipeline test.
type harness struct {
	svc      *Service
	txns     *memTransactionStore
	users    *memUserDirectory
	settings *memSettingsStore
	stats    *memStatsStore
	audit    *recordingAuditLogger
	notifier *recordingNotifier
	verifier *stubVerifier
	selector *stubSelector
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	verdict   Verdict
	settings  map[string]string
	users     []UserInfo
	selectErr error
	extra     []Option
}

func withVerdict(verdict Verdict) harnessOption {
	return func(c *harnessConfig) { c.verdict = verdict }
}

func withSettings(values map[string]string) harnessOption {
	return func(c *harnessConfig) {
		for key, value := range values {
			c.settings[key] = value
		}
	}
}

func withUsers(users ...UserInfo) harnessOption {
	return func(c *harnessConfig) { c.users = append(c.users, users...) }
}

func withSelectError(err error) harnessOption {
	return func(c *harnessConfig) { c.selectErr = err }
}

func withServiceOptions(opts ...Option) harnessOption {
	return func(c *harnessConfig) { c.extra = append(c.extra, opts...) }
}

func newHarness(opts ...harnessOption) (*harness, error) {
	cfg := harnessConfig{
		verdict: VerdictVerified,
		settings: map[string]string{
			SettingIPNEnable:       "1",
			SettingAccountID:       testMerchant,
			SettingAutogroupEnable: "1",
			SettingGroupID:         "7",
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		txns:     newMemTransactionStore(),
		users:    newMemUserDirectory(cfg.users...),
		settings: newMemSettingsStore(cfg.settings),
		stats:    newMemStatsStore(),
		audit:    &recordingAuditLogger{},
		notifier: &recordingNotifier{},
		verifier: &stubVerifier{verdict: cfg.verdict},
		selector: &stubSelector{mechanism: stubMechanism{name: "http_client"}},
	}
	if cfg.selectErr != nil {
		h.selector = &stubSelector{err: cfg.selectErr}
	}
	serviceOpts := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithTransactionStore(h.txns),
		WithUserDirectory(h.users),
		WithSettingsStore(h.settings),
		WithStatsStore(h.stats),
		WithAuditLogger(h.audit),
		WithNotifier(h.notifier),
		WithVerifier(h.verifier),
		WithTransportSelector(h.selector),
		WithClock(func() time.Time { return time.Unix(1704214331, 0) }),
	}
	serviceOpts = append(serviceOpts, cfg.extra...)
	svc, err := NewService(DefaultConfig(), serviceOpts...)
	if err != nil {
		return nil, err
	}
	h.svc = svc
	return h, nil
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}
