package stateengine

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

func encodeBank(t *testing.T, w bankWire) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(w))
	return append(append([]byte{}, bankDiscriminator[:]...), buf.Bytes()...)
}

func TestDecodeBankRoundTrip(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	oracle := solana.NewWallet().PublicKey()
	addr := solana.NewWallet().PublicKey()

	w := bankWire{
		Version:               1,
		Mint:                  mint,
		MintDecimals:          9,
		AssetWeightInitMicro:  900_000_000,
		AssetWeightMaintMicro: 950_000_000,
		LiabWeightInitMicro:   1_100_000_000,
		LiabWeightMaintMicro:  1_050_000_000,
		RiskTier:              0,
		OracleKeyCount:        1,
	}
	w.OracleKeys[0] = oracle

	data := encodeBank(t, w)

	bank, err := DecodeBank(addr, data)
	require.NoError(t, err)
	assert.True(t, bank.Mint.Equals(mint))
	assert.Equal(t, uint8(9), bank.MintDecimals)
	assert.Equal(t, marginfi.RiskTierCollateral, bank.Config.RiskTier)
	assert.True(t, bank.Config.AssetWeightInit.Equal(fixedpoint.MustFromString("0.9")))
	assert.True(t, bank.OracleAddress.Equals(oracle))
}

func TestDecodeBankRejectsWrongDiscriminator(t *testing.T) {
	data := make([]byte, 40)
	_, err := DecodeBank(solana.NewWallet().PublicKey(), data)
	require.Error(t, err)
}

func TestDecodeBankRejectsShortData(t *testing.T) {
	_, err := DecodeBank(solana.NewWallet().PublicKey(), []byte{1, 2, 3})
	require.Error(t, err)
}
