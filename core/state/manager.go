package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"paylane/core/types"
	"paylane/native/payments"
	"paylane/storage"
)

// Key prefixes separate the three record kinds inside the shared KV store.
var (
	merchantPrefix = []byte("pay/merchant/")
	paymentPrefix  = []byte("pay/payment/")
	accountPrefix  = []byte("pay/account/")
)

// Manager exposes the payment engine's state contract over a key-value
// backend: Merchant and Payment records keyed by their derived addresses,
// plus wallet accounts keyed by principal identity. All writes flow through
// an overlay transaction so an aborted operation leaves no partial effect.
type Manager struct {
	kv KV
}

// KV is the narrow store interface the manager needs. Both storage.Database
// and the overlay Txn satisfy it.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
}

// NewManager wraps the given KV backend.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

func merchantKey(addr [32]byte) []byte {
	return append(append([]byte(nil), merchantPrefix...), addr[:]...)
}

func paymentKey(addr [32]byte) []byte {
	return append(append([]byte(nil), paymentPrefix...), addr[:]...)
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

// MerchantPut persists the merchant record at its derived address.
func (m *Manager) MerchantPut(merchant *payments.Merchant) error {
	if merchant == nil {
		return fmt.Errorf("state: nil merchant")
	}
	raw, err := json.Marshal(merchant)
	if err != nil {
		return err
	}
	return m.kv.Put(merchantKey(merchant.Salt), raw)
}

// MerchantGet loads the merchant record stored at the given derived address.
func (m *Manager) MerchantGet(addr [32]byte) (*payments.Merchant, bool, error) {
	raw, err := m.kv.Get(merchantKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	merchant := new(payments.Merchant)
	if err := json.Unmarshal(raw, merchant); err != nil {
		return nil, false, fmt.Errorf("state: corrupt merchant record: %w", err)
	}
	return merchant, true, nil
}

// PaymentPut persists the payment record at its derived address.
func (m *Manager) PaymentPut(payment *payments.Payment) error {
	if payment == nil {
		return fmt.Errorf("state: nil payment")
	}
	raw, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	return m.kv.Put(paymentKey(payment.Salt), raw)
}

// PaymentGet loads the payment record stored at the given derived address.
func (m *Manager) PaymentGet(addr [32]byte) (*payments.Payment, bool, error) {
	raw, err := m.kv.Get(paymentKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	payment := new(payments.Payment)
	if err := json.Unmarshal(raw, payment); err != nil {
		return nil, false, fmt.Errorf("state: corrupt payment record: %w", err)
	}
	return payment, true, nil
}

// GetAccount loads a wallet account, returning an empty account for unknown
// principals so balance checks fail on funds rather than existence.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	raw, err := m.kv.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{Tokens: make(map[string]uint64)}, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: corrupt account record: %w", err)
	}
	if account.Tokens == nil {
		account.Tokens = make(map[string]uint64)
	}
	return account, nil
}

// PutAccount persists a wallet account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	raw, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return m.kv.Put(accountKey(addr), raw)
}
