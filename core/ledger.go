package core

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"paylane/core/events"
	"paylane/core/state"
	"paylane/core/types"
	"paylane/native/payments"
	"paylane/storage"
)

// Ledger is the execution host around the payments engine. It serializes
// operations with a single mutex (record-level mutual exclusion for the
// duration of one operation) and runs each operation inside a buffered state
// transaction that only commits when the operation succeeds, so a failed
// settlement leaves no partial effect: either both transfer legs and the
// record mutation land, or nothing does.
type Ledger struct {
	mu           sync.Mutex
	db           storage.Database
	recorder     *events.Recorder
	feeCollector [20]byte
	nowFn        func() int64
}

// NewLedger creates a ledger over the given database. Fees collected during
// settlement are routed to feeCollector.
func NewLedger(db storage.Database, feeCollector [20]byte) *Ledger {
	return NewLedgerWithBuffer(db, feeCollector, 512)
}

// NewLedgerWithBuffer creates a ledger that retains up to eventBuffer events
// for reconciliation queries.
func NewLedgerWithBuffer(db storage.Database, feeCollector [20]byte, eventBuffer int) *Ledger {
	return &Ledger{
		db:           db,
		recorder:     events.NewRecorder(eventBuffer),
		feeCollector: feeCollector,
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the ledger clock, primarily for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

// FeeCollector returns the configured fee destination.
func (l *Ledger) FeeCollector() [20]byte { return l.feeCollector }

// Events returns the retained event tail, oldest first.
func (l *Ledger) Events() []events.Event { return l.recorder.Recent() }

// stagedEmitter buffers events raised during an operation so they are only
// published once the transaction commits.
type stagedEmitter struct {
	staged []events.Event
}

func (s *stagedEmitter) Emit(evt events.Event) {
	if evt != nil {
		s.staged = append(s.staged, evt)
	}
}

func (s *stagedEmitter) flush(sink events.Emitter) {
	for _, evt := range s.staged {
		sink.Emit(evt)
	}
	s.staged = nil
}

// execute runs one operation as a single atomic unit of work.
func (l *Ledger) execute(op func(*payments.Engine) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn := state.NewTxn(l.db)
	engine := payments.NewEngine()
	engine.SetState(state.NewManager(txn))
	engine.SetNowFunc(l.nowFn)
	staged := &stagedEmitter{}
	engine.SetEmitter(staged)
	if err := op(engine); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	staged.flush(l.recorder)
	return nil
}

// query runs a read-only view over the committed state.
func (l *Ledger) query(op func(*payments.Engine) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	engine := payments.NewEngine()
	engine.SetState(state.NewManager(state.NewTxn(l.db)))
	engine.SetNowFunc(l.nowFn)
	return op(engine)
}

// RegisterMerchant creates a merchant record for the authority.
func (l *Ledger) RegisterMerchant(authority [20]byte, name string, feeBps uint16) (*payments.Merchant, error) {
	var merchant *payments.Merchant
	err := l.execute(func(engine *payments.Engine) error {
		var opErr error
		merchant, opErr = engine.RegisterMerchant(authority, name, feeBps)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return merchant, nil
}

// OpenSession creates a payment session for the merchant owned by authority.
func (l *Ledger) OpenSession(authority [20]byte, amount uint64, reference [32]byte, memo, token string, expiresAt int64) (*payments.Payment, error) {
	var payment *payments.Payment
	err := l.execute(func(engine *payments.Engine) error {
		var opErr error
		payment, opErr = engine.OpenSession(authority, amount, reference, memo, token, expiresAt)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SettleNative settles a native-asset session from payer into merchantWallet,
// routing any fee leg to the configured collector.
func (l *Ledger) SettleNative(paymentID [32]byte, payer, merchantWallet [20]byte) (*payments.Payment, error) {
	var payment *payments.Payment
	err := l.execute(func(engine *payments.Engine) error {
		var opErr error
		payment, opErr = engine.SettleNative(paymentID, payer, merchantWallet, l.feeCollector)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SettleToken settles a token session; the supplied identifier must match the
// session's recorded asset.
func (l *Ledger) SettleToken(paymentID [32]byte, token string, payer, merchantWallet [20]byte) (*payments.Payment, error) {
	var payment *payments.Payment
	err := l.execute(func(engine *payments.Engine) error {
		var opErr error
		payment, opErr = engine.SettleToken(paymentID, token, payer, merchantWallet, l.feeCollector)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// CancelSession terminally cancels an unpaid session.
func (l *Ledger) CancelSession(paymentID [32]byte, caller [20]byte) (*payments.Payment, error) {
	var payment *payments.Payment
	err := l.execute(func(engine *payments.Engine) error {
		var opErr error
		payment, opErr = engine.CancelSession(paymentID, caller)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetMerchant returns the merchant at the given derived address.
func (l *Ledger) GetMerchant(addr [32]byte) (*payments.Merchant, error) {
	var merchant *payments.Merchant
	err := l.query(func(engine *payments.Engine) error {
		var opErr error
		merchant, opErr = engine.GetMerchant(addr)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return merchant, nil
}

// GetPayment returns the payment at the given derived address.
func (l *Ledger) GetPayment(addr [32]byte) (*payments.Payment, error) {
	var payment *payments.Payment
	err := l.query(func(engine *payments.Engine) error {
		var opErr error
		payment, opErr = engine.GetPayment(addr)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Mint credits a wallet account, a funding facility for deployments and test
// harnesses. Token is empty for the native asset.
func (l *Ledger) Mint(addr [20]byte, token string, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("ledger: mint amount must be positive")
	}
	normalized, err := payments.NormalizeToken(token)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	txn := state.NewTxn(l.db)
	manager := state.NewManager(txn)
	account, err := manager.GetAccount(addr)
	if err != nil {
		return err
	}
	if normalized == "" {
		if amount > math.MaxUint64-account.Balance {
			return errors.New("ledger: mint overflows balance")
		}
		account.Balance += amount
	} else {
		balance := account.TokenBalance(normalized)
		if amount > math.MaxUint64-balance {
			return errors.New("ledger: mint overflows balance")
		}
		account.SetTokenBalance(normalized, balance+amount)
	}
	if err := manager.PutAccount(addr, account); err != nil {
		return err
	}
	return txn.Commit()
}

// Balance returns the account snapshot for a principal.
func (l *Ledger) Balance(addr [20]byte) (*types.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	manager := state.NewManager(state.NewTxn(l.db))
	account, err := manager.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}
