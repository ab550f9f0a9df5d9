package core

import (
	"errors"
	"testing"

	"paylane/core/events"
	"paylane/native/payments"
	"paylane/storage"
)

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testRef(fill byte) [32]byte {
	var ref [32]byte
	for i := range ref {
		ref[i] = fill
	}
	return ref
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger(storage.NewMemDB(), testAddr(0xFE))
	ledger.SetNowFunc(func() int64 { return 1_000 })
	return ledger
}

func TestLedgerEndToEndSettlement(t *testing.T) {
	ledger := newTestLedger(t)
	authority := testAddr(0x01)
	payer := testAddr(0x02)

	if _, err := ledger.RegisterMerchant(authority, "Corner Store", 250); err != nil {
		t.Fatalf("register merchant: %v", err)
	}
	if err := ledger.Mint(payer, "", 20_000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	session, err := ledger.OpenSession(authority, 10_000, testRef(0x10), "order 7", "", 2_000)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := ledger.SettleNative(session.Salt, payer, authority); err != nil {
		t.Fatalf("settle: %v", err)
	}

	merchantAcc, err := ledger.Balance(authority)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if merchantAcc.Balance != 9_750 {
		t.Fatalf("merchant balance = %d, want 9750", merchantAcc.Balance)
	}
	feeAcc, err := ledger.Balance(ledger.FeeCollector())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if feeAcc.Balance != 250 {
		t.Fatalf("fee collector balance = %d, want 250", feeAcc.Balance)
	}

	merchant, err := ledger.GetMerchant(payments.MerchantAddress(authority))
	if err != nil {
		t.Fatalf("get merchant: %v", err)
	}
	if merchant.TotalPayments != 1 || merchant.TotalVolume != 10_000 {
		t.Fatalf("counters = %d/%d, want 1/10000", merchant.TotalPayments, merchant.TotalVolume)
	}
}

func TestLedgerFailedSettlementLeavesNoPartialEffect(t *testing.T) {
	ledger := newTestLedger(t)
	authority := testAddr(0x03)
	payer := testAddr(0x04)

	if _, err := ledger.RegisterMerchant(authority, "Shop", 250); err != nil {
		t.Fatalf("register merchant: %v", err)
	}
	// Enough for the merchant leg but not both legs: the merchant leg that
	// already "moved" inside the transaction must be discarded with it.
	if err := ledger.Mint(payer, "", 9_800); err != nil {
		t.Fatalf("mint: %v", err)
	}
	session, err := ledger.OpenSession(authority, 10_000, testRef(0x11), "", "", 2_000)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := ledger.SettleNative(session.Salt, payer, authority); !errors.Is(err, payments.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	payerAcc, err := ledger.Balance(payer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if payerAcc.Balance != 9_800 {
		t.Fatalf("payer balance = %d, want untouched 9800", payerAcc.Balance)
	}
	merchantAcc, err := ledger.Balance(authority)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if merchantAcc.Balance != 0 {
		t.Fatalf("merchant balance = %d, want 0 after aborted settlement", merchantAcc.Balance)
	}
	refreshed, err := ledger.GetPayment(session.Salt)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if refreshed.Paid {
		t.Fatalf("aborted settlement must leave the session open")
	}
}

func TestLedgerEventsPublishedOnlyOnCommit(t *testing.T) {
	ledger := newTestLedger(t)
	authority := testAddr(0x05)

	if _, err := ledger.RegisterMerchant(authority, "Shop", 0); err != nil {
		t.Fatalf("register merchant: %v", err)
	}
	// Failed operation: no event may leak.
	if _, err := ledger.RegisterMerchant(authority, "Shop", 0); !errors.Is(err, payments.ErrAddressOccupied) {
		t.Fatalf("expected ErrAddressOccupied, got %v", err)
	}

	tail := ledger.Events()
	if len(tail) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(tail))
	}
	if tail[0].EventType() != events.TypeMerchantRegistered {
		t.Fatalf("unexpected event type %q", tail[0].EventType())
	}
}

func TestLedgerTokenSettlement(t *testing.T) {
	ledger := newTestLedger(t)
	authority := testAddr(0x06)
	payer := testAddr(0x07)

	if _, err := ledger.RegisterMerchant(authority, "Token Shop", 100); err != nil {
		t.Fatalf("register merchant: %v", err)
	}
	if err := ledger.Mint(payer, "USDC", 5_000); err != nil {
		t.Fatalf("mint token: %v", err)
	}
	session, err := ledger.OpenSession(authority, 5_000, testRef(0x12), "", "USDC", 2_000)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := ledger.SettleToken(session.Salt, "USDC", payer, authority); err != nil {
		t.Fatalf("settle token: %v", err)
	}

	merchantAcc, err := ledger.Balance(authority)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := merchantAcc.TokenBalance("USDC"); got != 4_950 {
		t.Fatalf("merchant USDC = %d, want 4950", got)
	}
	feeAcc, err := ledger.Balance(ledger.FeeCollector())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := feeAcc.TokenBalance("USDC"); got != 50 {
		t.Fatalf("fee collector USDC = %d, want 50", got)
	}
}
