package payments

import "math/bits"

// checkedAdd returns a+b or ErrMathOverflow if the sum wraps. Merchant
// counters and destination balances must reject settlement at the integer
// ceiling rather than silently wrap.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// checkedSub returns a-b or ErrMathOverflow if b exceeds a.
func checkedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}

// mulDivBps computes floor(amount * bps / 10_000) through a 128-bit
// intermediate so the product can never truncate. The division is safe for
// any bps <= 10_000 because the high word of the product stays below the
// divisor; larger rates are rejected before the quotient could overflow.
func mulDivBps(amount uint64, feeBps uint16) (uint64, bool) {
	if feeBps > 10_000 {
		return 0, false
	}
	hi, lo := bits.Mul64(amount, uint64(feeBps))
	if hi >= 10_000 {
		return 0, false
	}
	quo, _ := bits.Div64(hi, lo, 10_000)
	return quo, true
}
