package types

// Account holds the balances a settlement can draw on: the native asset plus
// any number of fungible token balances keyed by canonical token symbol.
// Amounts are minor units.
type Account struct {
	Nonce   uint64            `json:"nonce"`
	Balance uint64            `json:"balance"`
	Tokens  map[string]uint64 `json:"tokens,omitempty"`
}

// Clone returns a deep copy so callers can mutate freely before persisting.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Tokens: make(map[string]uint64)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: a.Balance, Tokens: make(map[string]uint64, len(a.Tokens))}
	for sym, amt := range a.Tokens {
		clone.Tokens[sym] = amt
	}
	return clone
}

// TokenBalance returns the balance held for the given token symbol.
func (a *Account) TokenBalance(symbol string) uint64 {
	if a == nil || a.Tokens == nil {
		return 0
	}
	return a.Tokens[symbol]
}

// SetTokenBalance records the balance for the given token symbol, allocating
// the token map on first use.
func (a *Account) SetTokenBalance(symbol string, amount uint64) {
	if a.Tokens == nil {
		a.Tokens = make(map[string]uint64)
	}
	a.Tokens[symbol] = amount
}
