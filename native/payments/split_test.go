package payments

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitExactness(t *testing.T) {
	amounts := []uint64{1, 3, 99, 10_000, 123_456_789, math.MaxUint64 / 2, math.MaxUint64 - 1, math.MaxUint64}
	rates := []uint16{0, 1, 7, 100, 250, 999, 1000}

	for _, amount := range amounts {
		for _, bps := range rates {
			merchant, fee, err := Split(amount, bps)
			require.NoErrorf(t, err, "amount=%d bps=%d", amount, bps)
			require.Equalf(t, amount, merchant+fee, "legs must sum to gross for amount=%d bps=%d", amount, bps)
			require.LessOrEqualf(t, fee, amount, "fee cannot exceed gross for amount=%d bps=%d", amount, bps)
		}
	}
}

func TestSplitReferenceValues(t *testing.T) {
	merchant, fee, err := Split(10_000, 250)
	require.NoError(t, err)
	require.Equal(t, uint64(250), fee)
	require.Equal(t, uint64(9_750), merchant)
}

func TestSplitZeroFee(t *testing.T) {
	merchant, fee, err := Split(5_000, 0)
	require.NoError(t, err)
	require.Zero(t, fee)
	require.Equal(t, uint64(5_000), merchant)
}

func TestSplitRoundsDown(t *testing.T) {
	// 1 bp of 9_999 is 0.9999, which floors to zero.
	merchant, fee, err := Split(9_999, 1)
	require.NoError(t, err)
	require.Zero(t, fee)
	require.Equal(t, uint64(9_999), merchant)
}

func TestSplitLargeAmountsDoNotTruncate(t *testing.T) {
	// The full-width intermediate keeps the product exact even where a
	// narrow intermediate would silently wrap.
	merchant, fee, err := Split(math.MaxUint64, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64/10), fee)
	require.Equal(t, uint64(math.MaxUint64), merchant+fee)
}

func TestCheckedAdd(t *testing.T) {
	sum, err := checkedAdd(math.MaxUint64-1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(math.MaxUint64), sum)

	_, err = checkedAdd(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrMathOverflow)
}

func TestCheckedSub(t *testing.T) {
	diff, err := checkedSub(10, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(7), diff)

	_, err = checkedSub(3, 10)
	require.ErrorIs(t, err, ErrMathOverflow)
}
