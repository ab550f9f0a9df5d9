package payments

import (
	"errors"
	"time"

	"paylane/core/events"
	"paylane/core/types"
)

var errNilState = errors.New("payments engine: state not configured")

// engineState is the narrow view of the ledger state the engine mutates.
// Merchant and Payment records are exclusively owned by the engine; wallet
// balances are only touched through the transfer helpers below.
type engineState interface {
	MerchantPut(*Merchant) error
	MerchantGet(addr [32]byte) (*Merchant, bool, error)
	PaymentPut(*Payment) error
	PaymentGet(addr [32]byte) (*Payment, bool, error)
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

// Engine implements the payment session state machine and the fee-split
// settlement logic over an externally supplied state backend. Every exported
// operation assumes it runs as a single serialized unit of work with
// exclusive access to the records it touches; guards re-check terminal flags
// at the start of each mutation, so outcomes depend only on record state at
// invocation, never on caller ordering.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a payments engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// RegisterMerchant creates the merchant record for the given authority.
// Re-registration is not supported: the derived address must be vacant.
func (e *Engine) RegisterMerchant(authority [20]byte, name string, feeBps uint16) (*Merchant, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmedName, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	addr := MerchantAddress(authority)
	if _, ok, err := e.state.MerchantGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAddressOccupied
	}
	merchant := &Merchant{
		Authority: authority,
		Name:      trimmedName,
		FeeBps:    feeBps,
		Salt:      addr,
	}
	if err := e.state.MerchantPut(merchant); err != nil {
		return nil, err
	}
	e.emit(events.MerchantRegistered{
		Merchant:  addr,
		Authority: authority,
		Name:      trimmedName,
		FeeBps:    feeBps,
	})
	return merchant.Clone(), nil
}

// OpenSession creates a payment session for the merchant controlled by the
// caller. The session address derives from (merchant, reference), so a
// merchant cannot hold two open sessions sharing a reference.
func (e *Engine) OpenSession(authority [20]byte, amount uint64, reference [32]byte, memo string, token string, expiresAt int64) (*Payment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	merchantAddr := MerchantAddress(authority)
	merchant, ok, err := e.state.MerchantGet(merchantAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMerchantNotFound
	}
	if err := boundMerchant(merchant); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	normalizedToken, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	trimmedMemo, err := validateMemo(memo)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if expiresAt <= now {
		return nil, ErrInvalidExpiry
	}
	addr := PaymentAddress(merchantAddr, reference)
	if _, ok, err := e.state.PaymentGet(addr); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAddressOccupied
	}
	payment := &Payment{
		Merchant:  merchantAddr,
		Amount:    amount,
		Reference: reference,
		Memo:      trimmedMemo,
		Token:     normalizedToken,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		Salt:      addr,
	}
	if err := e.state.PaymentPut(payment); err != nil {
		return nil, err
	}
	e.emit(events.PaymentSessionOpened{
		Payment:   addr,
		Merchant:  merchantAddr,
		Amount:    amount,
		Token:     normalizedToken,
		ExpiresAt: expiresAt,
	})
	return payment.Clone(), nil
}

// SettleNative settles a native-asset session: the payer funds the merchant
// wallet and, when the fee leg is non-zero, the fee collector, and the
// session flips to paid atomically with the transfers.
func (e *Engine) SettleNative(paymentID [32]byte, payer, merchantWallet, feeCollector [20]byte) (*Payment, error) {
	return e.settle(paymentID, "", true, payer, merchantWallet, feeCollector)
}

// SettleToken settles a token session. The supplied token identifier must
// match the session's recorded asset exactly.
func (e *Engine) SettleToken(paymentID [32]byte, token string, payer, merchantWallet, feeCollector [20]byte) (*Payment, error) {
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	if normalized == "" {
		return nil, ErrInvalidPaymentType
	}
	return e.settle(paymentID, normalized, false, payer, merchantWallet, feeCollector)
}

func (e *Engine) settle(paymentID [32]byte, token string, native bool, payer, merchantWallet, feeCollector [20]byte) (*Payment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	payment, merchant, err := e.loadSession(paymentID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := guardSettle(payment, now, token, native); err != nil {
		return nil, err
	}
	// The merchant leg must land in the authority's wallet, not an arbitrary
	// destination chosen by the payer.
	if merchantWallet != merchant.Authority {
		return nil, ErrUnauthorized
	}
	merchantAmount, feeAmount, err := Split(payment.Amount, merchant.FeeBps)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(payment.Token, payer, merchantWallet, merchantAmount); err != nil {
		return nil, err
	}
	if feeAmount > 0 {
		if err := e.transfer(payment.Token, payer, feeCollector, feeAmount); err != nil {
			return nil, err
		}
	}
	paidAt := now
	payerCopy := payer
	payment.Paid = true
	payment.PaidAt = &paidAt
	payment.Payer = &payerCopy
	totalPayments, err := checkedAdd(merchant.TotalPayments, 1)
	if err != nil {
		return nil, err
	}
	totalVolume, err := checkedAdd(merchant.TotalVolume, payment.Amount)
	if err != nil {
		return nil, err
	}
	merchant.TotalPayments = totalPayments
	merchant.TotalVolume = totalVolume
	if err := e.state.PaymentPut(payment); err != nil {
		return nil, err
	}
	if err := e.state.MerchantPut(merchant); err != nil {
		return nil, err
	}
	e.emit(events.PaymentSettled{
		Payment:        paymentID,
		Merchant:       payment.Merchant,
		Payer:          payer,
		GrossAmount:    payment.Amount,
		MerchantAmount: merchantAmount,
		FeeAmount:      feeAmount,
		Token:          payment.Token,
		PaidAt:         paidAt,
	})
	return payment.Clone(), nil
}

// CancelSession terminally cancels an unpaid session. While the session is
// still live only the merchant authority may cancel; once expired the session
// can no longer be paid, so anyone may perform the cleanup.
func (e *Engine) CancelSession(paymentID [32]byte, caller [20]byte) (*Payment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	payment, merchant, err := e.loadSession(paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Paid {
		return nil, ErrPaymentAlreadyProcessed
	}
	if payment.Cancelled {
		return nil, ErrPaymentAlreadyCancelled
	}
	now := e.now()
	if now <= payment.ExpiresAt && caller != merchant.Authority {
		return nil, ErrUnauthorized
	}
	cancelledAt := now
	payment.Cancelled = true
	payment.CancelledAt = &cancelledAt
	if err := e.state.PaymentPut(payment); err != nil {
		return nil, err
	}
	e.emit(events.PaymentCancelled{
		Payment:     paymentID,
		Merchant:    payment.Merchant,
		CancelledAt: cancelledAt,
	})
	return payment.Clone(), nil
}

// GetMerchant returns the merchant stored at the given derived address.
func (e *Engine) GetMerchant(addr [32]byte) (*Merchant, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	merchant, ok, err := e.state.MerchantGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMerchantNotFound
	}
	if err := boundMerchant(merchant); err != nil {
		return nil, err
	}
	return merchant.Clone(), nil
}

// GetPayment returns the payment stored at the given derived address.
func (e *Engine) GetPayment(addr [32]byte) (*Payment, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	payment, ok, err := e.state.PaymentGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if err := boundPayment(payment, addr); err != nil {
		return nil, err
	}
	return payment.Clone(), nil
}

// loadSession fetches a payment and its owning merchant, verifying both
// records against their derived addresses and the payment's stored ownership
// reference.
func (e *Engine) loadSession(paymentID [32]byte) (*Payment, *Merchant, error) {
	payment, ok, err := e.state.PaymentGet(paymentID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrPaymentNotFound
	}
	if err := boundPayment(payment, paymentID); err != nil {
		return nil, nil, err
	}
	merchant, ok, err := e.state.MerchantGet(payment.Merchant)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrMerchantNotFound
	}
	if err := boundMerchant(merchant); err != nil {
		return nil, nil, err
	}
	if merchant.Salt != payment.Merchant {
		return nil, nil, ErrAddressMismatch
	}
	return payment, merchant, nil
}

// guardSettle enforces the settlement preconditions in contract order: the
// terminal flags first, then expiry, then the asset-kind checks.
func guardSettle(payment *Payment, now int64, token string, native bool) error {
	if payment.Paid {
		return ErrPaymentAlreadyProcessed
	}
	if payment.Cancelled {
		return ErrPaymentAlreadyCancelled
	}
	if now > payment.ExpiresAt {
		return ErrPaymentExpired
	}
	if native {
		if !payment.IsNative() {
			return ErrInvalidPaymentType
		}
		return nil
	}
	if payment.IsNative() {
		return ErrInvalidPaymentType
	}
	if token != payment.Token {
		return ErrTokenMintMismatch
	}
	return nil
}

// transfer moves amount of the given asset between wallet accounts. A zero
// amount is never attempted. The move either completes for both sides or
// fails before any account is written.
func (e *Engine) transfer(token string, from, to [20]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	if from == to {
		// A self-payment nets to zero; only the balance check applies.
		if token == "" {
			if fromAcc.Balance < amount {
				return ErrInsufficientFunds
			}
		} else if fromAcc.TokenBalance(token) < amount {
			return ErrInsufficientFunds
		}
		return nil
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Clone()
	toAcc = toAcc.Clone()
	if token == "" {
		if fromAcc.Balance < amount {
			return ErrInsufficientFunds
		}
		credited, err := checkedAdd(toAcc.Balance, amount)
		if err != nil {
			return err
		}
		fromAcc.Balance -= amount
		toAcc.Balance = credited
	} else {
		balance := fromAcc.TokenBalance(token)
		if balance < amount {
			return ErrInsufficientFunds
		}
		credited, err := checkedAdd(toAcc.TokenBalance(token), amount)
		if err != nil {
			return err
		}
		fromAcc.SetTokenBalance(token, balance-amount)
		toAcc.SetTokenBalance(token, credited)
	}
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}
