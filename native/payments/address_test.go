package payments

import "testing"

func TestMerchantAddressDeterminism(t *testing.T) {
	authority := newTestAddress(0x31)
	first := MerchantAddress(authority)
	second := MerchantAddress(authority)
	if first != second {
		t.Fatalf("merchant address must be a pure function of the authority")
	}
	other := MerchantAddress(newTestAddress(0x32))
	if first == other {
		t.Fatalf("distinct authorities must not collide")
	}
}

func TestPaymentAddressDeterminism(t *testing.T) {
	merchant := MerchantAddress(newTestAddress(0x33))
	ref := newTestReference(0x40)
	first := PaymentAddress(merchant, ref)
	if first != PaymentAddress(merchant, ref) {
		t.Fatalf("payment address must be a pure function of (merchant, reference)")
	}
	if first == PaymentAddress(merchant, newTestReference(0x41)) {
		t.Fatalf("distinct references must not collide")
	}
	if first == PaymentAddress(MerchantAddress(newTestAddress(0x34)), ref) {
		t.Fatalf("distinct merchants must not collide")
	}
}

func TestSeedDomainsSeparated(t *testing.T) {
	// A merchant record and a payment record can never be planted at each
	// other's address even with crafted inputs, because the seed labels
	// differ.
	var zero32 [32]byte
	authority := newTestAddress(0x35)
	merchantAddr := MerchantAddress(authority)
	paymentAddr := PaymentAddress(zero32, zero32)
	if merchantAddr == paymentAddr {
		t.Fatalf("seed domains must not overlap")
	}
}

func TestNewReferenceUnique(t *testing.T) {
	seen := make(map[[32]byte]struct{})
	for i := 0; i < 64; i++ {
		ref := NewReference()
		if _, ok := seen[ref]; ok {
			t.Fatalf("duplicate generated reference")
		}
		seen[ref] = struct{}{}
	}
}
