package payments

// Split divides a gross amount into the merchant and fee legs for the given
// fee rate. For every valid input the two legs sum back to the gross amount
// exactly; rounding always favours the merchant leg.
func Split(amount uint64, feeBps uint16) (merchantAmount, feeAmount uint64, err error) {
	fee, ok := mulDivBps(amount, feeBps)
	if !ok {
		return 0, 0, ErrFeeTooHigh
	}
	// fee <= amount holds for every feeBps <= 10_000, so the subtraction
	// cannot borrow.
	merchant, subErr := checkedSub(amount, fee)
	if subErr != nil {
		return 0, 0, ErrFeeTooHigh
	}
	return merchant, fee, nil
}
