package core

import (
	"hash/crc32"
	"math"
	"strconv"
	"strings"
	"time"
)

type Verdict string

const (
	VerdictVerified      Verdict = "verified"
	VerdictInvalid       Verdict = "invalid"
	VerdictIndeterminate Verdict = "indeterminate"
)

func (v Verdict) Verified() bool {
	return v == VerdictVerified
}

// PaymentStatusCompleted is the only status that counts as a completed payment.
const PaymentStatusCompleted = "Completed"

// Transaction is the persisted record of a payment notification, keyed by the
// provider transaction id.
type Transaction struct {
	ID               string
	TxnID            string
	ParentTxnID      string
	TxnType          string
	UserID           int64
	Username         string
	Business         string
	ReceiverID       string
	ReceiverEmail    string
	ResidenceCountry string
	ItemName         string
	ItemNumber       string
	Memo             string
	PayerID          string
	PayerEmail       string
	PayerStatus      string
	FirstName        string
	LastName         string
	PaymentStatus    string
	PaymentType      string
	PaymentDate      time.Time
	Currency         string
	Gross            float64
	Fee              float64
	NetAmount        float64
	SettleAmount     float64
	SettleCurrency   string
	ExchangeRate     string
	Confirmed        bool
	TestIPN          bool
	Errors           string
	ErrorsApproved   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (t Transaction) HasErrors() bool {
	return strings.TrimSpace(t.Errors) != ""
}

// HasUnapprovedErrors reports whether the record still waits for an
// administrator to approve its validation errors.
func (t Transaction) HasUnapprovedErrors() bool {
	return t.HasErrors() && !t.ErrorsApproved
}

func (t Transaction) PaymentCompleted() bool {
	return t.PaymentStatus == PaymentStatusCompleted
}

// Settled reports whether the stored record already counted as a confirmed,
// completed donation with nothing left for an administrator to approve.
func (t Transaction) Settled() bool {
	return t.Confirmed && t.PaymentCompleted() && !t.HasUnapprovedErrors()
}

type TransactionFilter struct {
	UserID      int64
	TestIPN     *bool
	OnlyErrors  bool
	Unapproved  bool
	PayerEmail  string
	Limit       int
	Offset      int
	NewestFirst bool
}

// TaskGates are computed once per call and never persisted.
type TaskGates struct {
	PaymentCompleted bool
	DonorIsMember    bool
	UnapprovedErrors bool
	TestTransaction  bool
}

type UserInfo struct {
	ID            int64
	Username      string
	Email         string
	DonatedAmount float64
}

func (u UserInfo) Known() bool {
	return u.ID > 0
}

type NotificationKind string

const (
	NotificationDonationErrors        NotificationKind = "donation_errors"
	NotificationAdminDonationReceived NotificationKind = "admin_donation_received"
	NotificationDonorDonationReceived NotificationKind = "donor_donation_received"
)

type Notification struct {
	Kind          NotificationKind
	TransactionID string
	TxnID         string
	UserID        int64
	Username      string
	Payload       map[string]any
	CreatedAt     time.Time
}

type AuditEntry struct {
	ID        string
	Message   string
	Persist   bool
	IsError   bool
	Context   map[string]any
	CreatedAt time.Time
}

type OverviewStats struct {
	Test                 bool
	TransactionsCount    int64
	KnownDonorsCount     int64
	AnonymousDonorsCount int64
	RaisedAmount         float64
	UpdatedAt            time.Time
}

// StatsSuffix is appended to statistic keys of sandbox transactions.
func StatsSuffix(test bool) string {
	if test {
		return "_ipn"
	}
	return ""
}

// NetAmount returns gross minus fee. The difference is rounded to the
// decimal places the two amounts carry, so float noise never reaches the
// stored value and no precision the provider sent is dropped.
func NetAmount(gross float64, fee float64) float64 {
	scale := math.Pow10(max(decimalPlaces(gross), decimalPlaces(fee)))
	return math.Round((gross-fee)*scale) / scale
}

func decimalPlaces(amount float64) int {
	formatted := strconv.FormatFloat(amount, 'f', -1, 64)
	if idx := strings.IndexByte(formatted, '.'); idx >= 0 {
		return len(formatted) - idx - 1
	}
	return 0
}

// ParseCorrelationToken extracts the user id from an item number shaped as
// prefix + id + "_" + suffix. Anything else yields anonymous.
func ParseCorrelationToken(itemNumber string, prefix string, anonymous int64) int64 {
	itemNumber = strings.TrimSpace(itemNumber)
	if prefix == "" || !strings.HasPrefix(itemNumber, prefix) {
		return anonymous
	}
	rest := strings.TrimPrefix(itemNumber, prefix)
	raw, _, found := strings.Cut(rest, "_")
	if !found || raw == "" {
		return anonymous
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return anonymous
		}
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return anonymous
	}
	return userID
}

// EmailHash matches the member directory's contact hash: crc32 of the
// lowercased address followed by its byte length.
func EmailHash(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	sum := crc32.ChecksumIEEE([]byte(email))
	return strconv.FormatUint(uint64(sum), 10) + strconv.Itoa(len(email))
}
