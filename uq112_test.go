// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestEncodeUQ112(t *testing.T) {
	got := EncodeUQ112(uint256.NewInt(1))
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 112)
	if !got.Eq(want) {
		t.Errorf("EncodeUQ112(1) = %s, want %s", got, want)
	}
}

func TestFractionUQ112(t *testing.T) {
	// 4000/1000 = 4.0 exactly.
	got := FractionUQ112(uint256.NewInt(4000), uint256.NewInt(1000))
	want := new(uint256.Int).Lsh(uint256.NewInt(4), 112)
	if !got.Eq(want) {
		t.Errorf("FractionUQ112(4000, 1000) = %s, want %s", got, want)
	}

	// 1/3 truncates: encode(1)/3.
	got = FractionUQ112(uint256.NewInt(1), uint256.NewInt(3))
	want = new(uint256.Int).Div(EncodeUQ112(uint256.NewInt(1)), uint256.NewInt(3))
	if !got.Eq(want) {
		t.Errorf("FractionUQ112(1, 3) = %s, want %s", got, want)
	}
}

func TestMulUQ112RoundTrip(t *testing.T) {
	price := FractionUQ112(uint256.NewInt(2000), uint256.NewInt(1000)) // 2.0
	got := MulUQ112(uint256.NewInt(500), price)
	if got.Uint64() != 1000 {
		t.Errorf("500 * 2.0 = %s, want 1000", got)
	}

	// Fractional price truncates toward zero.
	price = FractionUQ112(uint256.NewInt(1), uint256.NewInt(3))
	got = MulUQ112(uint256.NewInt(10), price)
	if got.Uint64() != 3 {
		t.Errorf("10 * (1/3) = %s, want 3", got)
	}
}
