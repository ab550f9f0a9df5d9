package payments

import (
	"regexp"
	"strings"
)

const (
	// MaxFeeBps caps merchant fee rates at 10%.
	MaxFeeBps uint16 = 1000
	// MaxNameLen bounds merchant display names.
	MaxNameLen = 64
	// MaxMemoLen bounds the free-form memo attached to a session.
	MaxMemoLen = 256
)

// Merchant is the registered receiving side of payment sessions. Authority
// and FeeBps are immutable after registration; the counters only grow, and
// only through successful settlement.
type Merchant struct {
	Authority     [20]byte `json:"authority"`
	Name          string   `json:"name"`
	FeeBps        uint16   `json:"feeBps"`
	TotalPayments uint64   `json:"totalPayments"`
	TotalVolume   uint64   `json:"totalVolume"`
	Salt          [32]byte `json:"salt"`
}

// Clone returns a copy callers can mutate without affecting the stored record.
func (m *Merchant) Clone() *Merchant {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Payment is a single expected incoming payment. Token is empty for native
// asset sessions and the canonical token symbol otherwise. Paid and Cancelled
// are terminal and mutually exclusive; once Paid flips, the record is
// read-only history.
type Payment struct {
	Merchant    [32]byte  `json:"merchant"`
	Amount      uint64    `json:"amount"`
	Reference   [32]byte  `json:"reference"`
	Memo        string    `json:"memo"`
	Token       string    `json:"token,omitempty"`
	CreatedAt   int64     `json:"createdAt"`
	ExpiresAt   int64     `json:"expiresAt"`
	Paid        bool      `json:"paid"`
	Cancelled   bool      `json:"cancelled"`
	PaidAt      *int64    `json:"paidAt,omitempty"`
	Payer       *[20]byte `json:"payer,omitempty"`
	CancelledAt *int64    `json:"cancelledAt,omitempty"`
	Salt        [32]byte  `json:"salt"`
}

// Clone returns a deep copy of the payment record.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		at := *p.PaidAt
		clone.PaidAt = &at
	}
	if p.Payer != nil {
		payer := *p.Payer
		clone.Payer = &payer
	}
	if p.CancelledAt != nil {
		at := *p.CancelledAt
		clone.CancelledAt = &at
	}
	return &clone
}

// IsNative reports whether the session settles in the chain's native asset.
func (p *Payment) IsNative() bool {
	return p != nil && p.Token == ""
}

var tokenSymbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,16}$`)

// NormalizeToken canonicalises a fungible token identifier to its uppercase
// symbol form. The empty string denotes the native asset and passes through.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", nil
	}
	if !tokenSymbolPattern.MatchString(trimmed) {
		return "", ErrInvalidToken
	}
	return trimmed, nil
}

func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > MaxNameLen {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

func validateMemo(memo string) (string, error) {
	if len(memo) > MaxMemoLen {
		return "", ErrInvalidMemo
	}
	return memo, nil
}
