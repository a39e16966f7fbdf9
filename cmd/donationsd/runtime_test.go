package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-donations/adapters/gocommand"
	donationcommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/query"
)

const sampleNotification = "txn_id=RT-1&payment_status=Completed&payment_type=instant&residence_country=US" +
	"&mc_gross=10.00&mc_fee=0.59&mc_currency=USD&receiver_email=merchant%40example.com" +
	"&payer_email=guest%40example.com&payer_id=GUEST1&test_ipn=0"

func TestRuntime_ReceivesVerifiesAndApproves(t *testing.T) {
	ctx := context.Background()
	doer := &stubVerificationDoer{body: "VERIFIED"}
	rt := newTestRuntime(t, doer)

	srv := httptest.NewServer(newServer(rt, rt.cfg.HTTP).Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/ipn", "application/x-www-form-urlencoded", strings.NewReader(sampleNotification))
	if err != nil {
		t.Fatalf("post notification: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if doer.calls() != 1 {
		t.Fatalf("expected one verification round trip, got %d", doer.calls())
	}
	if !strings.HasPrefix(doer.lastBody(), "cmd=_notify-validate&") {
		t.Fatalf("expected validation body to echo the notification, got %q", doer.lastBody())
	}

	txns, err := gocommand.Query[query.ListTransactionsMessage, []core.Transaction](ctx, query.ListTransactionsMessage{
		Filter: core.TransactionFilter{Limit: 10},
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].TxnID != "RT-1" || !txns[0].Confirmed {
		t.Fatalf("expected one confirmed transaction, got %#v", txns)
	}

	if err := gocommand.Dispatch(ctx, donationcommand.ApproveTransactionMessage{TransactionID: txns[0].ID, Approved: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	approved, err := gocommand.Query[query.GetTransactionMessage, core.Transaction](ctx, query.GetTransactionMessage{TransactionID: txns[0].ID})
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if !approved.ErrorsApproved {
		t.Fatalf("expected approval to be stored")
	}

	overview, err := gocommand.Query[query.GetOverviewMessage, core.OverviewStats](ctx, query.GetOverviewMessage{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.TransactionsCount != 1 || overview.RaisedAmount != 9.41 {
		t.Fatalf("unexpected overview %+v", overview)
	}

	delivered, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := rt.worker.ProcessNext(delivered); err != nil {
		t.Fatalf("deliver queued notification: %v", err)
	}
}

func TestRuntime_NotificationWithoutTxnIDIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	doer := &stubVerificationDoer{body: "VERIFIED"}
	rt := newTestRuntime(t, doer)

	srv := httptest.NewServer(newServer(rt, rt.cfg.HTTP).Handler)
	defer srv.Close()

	body := "txn_type=subscr_signup&subscr_id=S-1&receiver_email=merchant%40example.com&payer_email=guest%40example.com"
	resp, err := http.Post(srv.URL+"/ipn", "application/x-www-form-urlencoded", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post notification: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 so the provider stops redelivering, got %d", resp.StatusCode)
	}

	txns, err := gocommand.Query[query.ListTransactionsMessage, []core.Transaction](ctx, query.ListTransactionsMessage{
		Filter: core.TransactionFilter{Limit: 10},
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected nothing stored without a txn_id, got %#v", txns)
	}
}

func TestRuntime_SettingsCommandSwitchesToSandbox(t *testing.T) {
	ctx := context.Background()
	rt := newTestRuntime(t, &stubVerificationDoer{body: "VERIFIED"})

	updates := []donationcommand.UpdateSettingMessage{
		{Key: core.SettingSandboxEnable, Value: "1"},
		{Key: core.SettingSandboxAddress, Value: "sandbox@example.com"},
	}
	for _, msg := range updates {
		if err := gocommand.Dispatch(ctx, msg); err != nil {
			t.Fatalf("update %s: %v", msg.Key, err)
		}
	}
	settings, err := rt.service.Settings().Load(ctx)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !settings.UseSandbox() {
		t.Fatalf("expected sandbox mode after settings update")
	}
	if settings.MerchantIdentity() != "sandbox@example.com" {
		t.Fatalf("expected sandbox merchant identity, got %q", settings.MerchantIdentity())
	}

	if err := gocommand.Dispatch(ctx, donationcommand.UpdateSettingMessage{Key: " "}); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestRootCmd_MigrateAndUsers(t *testing.T) {
	var out bytes.Buffer
	a := &app{stdout: &out, stderr: io.Discard}
	a.configPath = writeTestConfig(t)

	root := newRootCmd(a)
	root.SetArgs([]string{"--config", a.configPath, "migrate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "migrations applied") {
		t.Fatalf("unexpected migrate output %q", out.String())
	}

	out.Reset()
	root = newRootCmd(a)
	root.SetArgs([]string{"--config", a.configPath, "users", "add", "donor", "donor@example.com", "--group", "7"})
	if err := root.Execute(); err != nil {
		t.Fatalf("users add: %v", err)
	}
	if !strings.Contains(out.String(), "user donor saved") {
		t.Fatalf("unexpected users output %q", out.String())
	}
}

func newTestRuntime(t *testing.T, doer *stubVerificationDoer) *runtime {
	t.Helper()
	cfg, err := loadFileConfig(writeTestConfig(t))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	rt, err := openRuntime(context.Background(), cfg, newLogger(cfg.Log, io.Discard), runtimeOptions{
		migrate:    true,
		httpClient: doer,
	})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dsn := fmt.Sprintf("file:donationsd-test-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	content := fmt.Sprintf(`
database:
  driver: sqlite3
  dsn: %q
  auto_migrate: true
cache:
  disabled: true
log:
  level: error
donations:
  verification:
    disable_socket: true
  defaults:
    account_id: merchant@example.com
`, dsn)
	path := filepath.Join(t.TempDir(), "donationsd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

type stubVerificationDoer struct {
	mu     sync.Mutex
	body   string
	count  int
	posted string
}

func (d *stubVerificationDoer) Do(req *http.Request) (*http.Response, error) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.count++
	d.posted = string(payload)
	d.mu.Unlock()
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

func (d *stubVerificationDoer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

func (d *stubVerificationDoer) lastBody() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.posted
}
