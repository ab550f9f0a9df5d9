package payments

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	merchantSeed = []byte("merchant")
	paymentSeed  = []byte("payment")
)

// MerchantAddress derives the storage address for the merchant controlled by
// the given authority. The derivation is pure, so an authority can own at
// most one merchant record.
func MerchantAddress(authority [20]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(merchantSeed, authority[:]))
}

// PaymentAddress derives the storage address for the session identified by
// (merchant, reference). Two concurrently open sessions for the same merchant
// can therefore never share a reference.
func PaymentAddress(merchant [32]byte, reference [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash(paymentSeed, merchant[:], reference[:]))
}

// NewReference generates a fresh session reference for callers that do not
// supply their own correlation value.
func NewReference() [32]byte {
	id := uuid.New()
	return [32]byte(ethcrypto.Keccak256Hash(id[:]))
}

// boundMerchant verifies the record sits at the address derived from its own
// authority, defending against substitution of an unrelated record of the
// same shape.
func boundMerchant(m *Merchant) error {
	if m == nil {
		return ErrMerchantNotFound
	}
	addr := MerchantAddress(m.Authority)
	if m.Salt != addr {
		return ErrAddressMismatch
	}
	return nil
}

// boundPayment verifies the record against the address recomputed from its
// stored (merchant, reference) tuple and, when non-zero, the caller-supplied
// lookup address.
func boundPayment(p *Payment, lookup [32]byte) error {
	if p == nil {
		return ErrPaymentNotFound
	}
	addr := PaymentAddress(p.Merchant, p.Reference)
	if p.Salt != addr {
		return ErrAddressMismatch
	}
	if lookup != ([32]byte{}) && lookup != addr {
		return ErrAddressMismatch
	}
	return nil
}
