package state

import (
	"testing"

	"paylane/native/payments"
	"paylane/storage"

	"github.com/stretchr/testify/require"
)

func TestManagerMerchantRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	var authority [20]byte
	authority[0] = 0x7F
	addr := payments.MerchantAddress(authority)
	merchant := &payments.Merchant{Authority: authority, Name: "Shop", FeeBps: 250, Salt: addr}

	require.NoError(t, manager.MerchantPut(merchant))

	got, ok, err := manager.MerchantGet(addr)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, merchant, got)

	_, ok, err = manager.MerchantGet([32]byte{0x01})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerUnknownAccountIsEmpty(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	account, err := manager.GetAccount([20]byte{0xAB})
	require.NoError(t, err)
	require.Zero(t, account.Balance)
	require.Empty(t, account.Tokens)
}

func TestTxnBuffersUntilCommit(t *testing.T) {
	db := storage.NewMemDB()
	txn := NewTxn(db)

	require.NoError(t, txn.Put([]byte("k"), []byte("v")))

	got, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	// Backend untouched before commit.
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, txn.Commit())

	got, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestTxnDiscardLeavesBackendUntouched(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("before")))

	txn := NewTxn(db)
	require.NoError(t, txn.Put([]byte("k"), []byte("after")))
	// Never committed.

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("before"), got)
}

func TestTxnReadsThrough(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put([]byte("base"), []byte("value")))

	txn := NewTxn(db)
	got, err := txn.Get([]byte("base"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	ok, err := txn.Has([]byte("base"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = txn.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}
