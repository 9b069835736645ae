package stateengine

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

func encodePythPrice(t *testing.T, w pythPriceWire) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBinEncoder(&buf).Encode(w))
	return buf.Bytes()
}

func TestPythOracleAdapterPriceBias(t *testing.T) {
	w := pythPriceWire{
		Expo:     -6,
		AggPrice: 100_000_000, // $100.00
		AggConf:  500_000,     // $0.50
		EmaPrice: 99_000_000,
		EmaConf:  400_000,
	}

	adapter, err := NewPythOracleAdapter(&AccountInfo{Pubkey: solana.NewWallet().PublicKey(), Data: encodePythPrice(t, w)})
	require.NoError(t, err)

	low, err := adapter.PriceOfType(marginfi.OraclePriceRealTime, marginfi.PriceBiasLow)
	require.NoError(t, err)
	high, err := adapter.PriceOfType(marginfi.OraclePriceRealTime, marginfi.PriceBiasHigh)
	require.NoError(t, err)
	mid, err := adapter.PriceOfType(marginfi.OraclePriceRealTime, marginfi.PriceBiasNone)
	require.NoError(t, err)

	assert.True(t, low.LessThan(mid))
	assert.True(t, high.GreaterThan(mid))

	weighted, err := adapter.PriceOfType(marginfi.OraclePriceTimeWeighted, marginfi.PriceBiasNone)
	require.NoError(t, err)
	assert.False(t, weighted.Equal(mid))
}

func TestNewPythOracleAdapterRejectsShortData(t *testing.T) {
	_, err := NewPythOracleAdapter(&AccountInfo{Pubkey: solana.NewWallet().PublicKey(), Data: []byte{1, 2, 3}})
	require.Error(t, err)
}
