package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcValueAndCalcAmountRoundTrip(t *testing.T) {
	amount := FromUint(10_000_000_000) // 10 SOL, 9 decimals
	price := MustFromString("100.50")

	value := CalcValue(amount, price, 9, One)
	back := CalcAmount(value, price, 9)

	assert.True(t, back.Sub(amount).Cmp(MustFromString("0.000000001")) <= 0,
		"round trip should recover the original amount within 1 ulp, got %s want %s", back, amount)
}

func TestCalcValueAppliesWeight(t *testing.T) {
	amount := FromUint(1_000_000) // 1 USDC, 6 decimals
	price := MustFromString("1.00")
	weight := MustFromString("0.9")

	value := CalcValue(amount, price, 6, weight)
	assert.True(t, value.Equal(MustFromString("0.9")), "got %s", value)
}

func TestCalcAmountZeroPriceReturnsZero(t *testing.T) {
	amount := CalcAmount(FromInt(100), Zero, 6)
	assert.True(t, amount.IsZero())
}

func TestMaxZeroClampsNegative(t *testing.T) {
	assert.True(t, MaxZero(FromInt(-5)).IsZero())
	assert.True(t, MaxZero(FromInt(5)).Equal(FromInt(5)))
}

func TestFromStringRejectsMalformed(t *testing.T) {
	_, err := FromString("not-a-number")
	require.Error(t, err)
}

func TestMinMax(t *testing.T) {
	a, b := FromInt(3), FromInt(7)
	assert.True(t, Min(a, b).Equal(a))
	assert.True(t, Max(a, b).Equal(b))
}
