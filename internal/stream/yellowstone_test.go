package stream

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountUpdateFrameDecodesToAccountInfo(t *testing.T) {
	pubkey := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})

	frame := accountUpdateFrame{
		Account: &struct {
			Pubkey     string `json:"pubkey"`
			Owner      string `json:"owner"`
			Lamports   uint64 `json:"lamports"`
			Executable bool   `json:"executable"`
			RentEpoch  uint64 `json:"rentEpoch"`
			Data       string `json:"data"`
		}{
			Pubkey:    pubkey.String(),
			Owner:     owner.String(),
			Lamports:  1_000_000,
			RentEpoch: 42,
			Data:      payload,
		},
	}

	info, err := frame.toAccountInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.Pubkey.Equals(pubkey))
	assert.True(t, info.Owner.Equals(owner))
	assert.Equal(t, uint64(1_000_000), info.Lamports)
	assert.Equal(t, uint64(42), info.RentEpoch)
	assert.Equal(t, []byte{1, 2, 3, 4}, info.Data)
}

func TestAccountUpdateFrameNilAccountIsIgnored(t *testing.T) {
	info, err := accountUpdateFrame{}.toAccountInfo()
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestAccountUpdateFrameRejectsInvalidPubkey(t *testing.T) {
	frame := accountUpdateFrame{
		Account: &struct {
			Pubkey     string `json:"pubkey"`
			Owner      string `json:"owner"`
			Lamports   uint64 `json:"lamports"`
			Executable bool   `json:"executable"`
			RentEpoch  uint64 `json:"rentEpoch"`
			Data       string `json:"data"`
		}{Pubkey: "not-a-valid-pubkey"},
	}
	_, err := frame.toAccountInfo()
	assert.Error(t, err)
}
