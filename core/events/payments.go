package events

import (
	"encoding/hex"
	"strconv"

	"paylane/core/types"
	"paylane/crypto"
)

const (
	TypeMerchantRegistered   = "payments.merchant_registered"
	TypePaymentSessionOpened = "payments.session_opened"
	TypePaymentSettled       = "payments.settled"
	TypePaymentCancelled     = "payments.cancelled"
)

// MerchantRegistered is emitted once a merchant record is created.
type MerchantRegistered struct {
	Merchant  [32]byte
	Authority [20]byte
	Name      string
	FeeBps    uint16
}

func (MerchantRegistered) EventType() string { return TypeMerchantRegistered }

func (e MerchantRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeMerchantRegistered,
		Attributes: map[string]string{
			"merchant":  hex.EncodeToString(e.Merchant[:]),
			"authority": crypto.NewAddress(crypto.PayPrefix, e.Authority[:]).String(),
			"name":      e.Name,
			"feeBps":    strconv.FormatUint(uint64(e.FeeBps), 10),
		},
	}
}

// PaymentSessionOpened is emitted when a session becomes payable.
type PaymentSessionOpened struct {
	Payment   [32]byte
	Merchant  [32]byte
	Amount    uint64
	Token     string
	ExpiresAt int64
}

func (PaymentSessionOpened) EventType() string { return TypePaymentSessionOpened }

func (e PaymentSessionOpened) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentSessionOpened,
		Attributes: map[string]string{
			"payment":   hex.EncodeToString(e.Payment[:]),
			"merchant":  hex.EncodeToString(e.Merchant[:]),
			"amount":    strconv.FormatUint(e.Amount, 10),
			"token":     tokenLabel(e.Token),
			"expiresAt": strconv.FormatInt(e.ExpiresAt, 10),
		},
	}
}

// PaymentSettled is emitted exactly once per session, when value moves.
type PaymentSettled struct {
	Payment        [32]byte
	Merchant       [32]byte
	Payer          [20]byte
	GrossAmount    uint64
	MerchantAmount uint64
	FeeAmount      uint64
	Token          string
	PaidAt         int64
}

func (PaymentSettled) EventType() string { return TypePaymentSettled }

func (e PaymentSettled) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentSettled,
		Attributes: map[string]string{
			"payment":        hex.EncodeToString(e.Payment[:]),
			"merchant":       hex.EncodeToString(e.Merchant[:]),
			"payer":          crypto.NewAddress(crypto.PayPrefix, e.Payer[:]).String(),
			"grossAmount":    strconv.FormatUint(e.GrossAmount, 10),
			"merchantAmount": strconv.FormatUint(e.MerchantAmount, 10),
			"feeAmount":      strconv.FormatUint(e.FeeAmount, 10),
			"token":          tokenLabel(e.Token),
			"paidAt":         strconv.FormatInt(e.PaidAt, 10),
		},
	}
}

// PaymentCancelled is emitted when a session is terminally cancelled.
type PaymentCancelled struct {
	Payment     [32]byte
	Merchant    [32]byte
	CancelledAt int64
}

func (PaymentCancelled) EventType() string { return TypePaymentCancelled }

func (e PaymentCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypePaymentCancelled,
		Attributes: map[string]string{
			"payment":     hex.EncodeToString(e.Payment[:]),
			"merchant":    hex.EncodeToString(e.Merchant[:]),
			"cancelledAt": strconv.FormatInt(e.CancelledAt, 10),
		},
	}
}

func tokenLabel(token string) string {
	if token == "" {
		return "native"
	}
	return token
}
