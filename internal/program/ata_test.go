package program

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreateAssociatedTokenAccountIxAccountOrder(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)

	ix := NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint)
	assert.True(t, ix.ProgramID().Equals(associatedTokenProgramID))

	metas := ix.Accounts()
	require.Len(t, metas, 7)
	assert.True(t, metas[0].PublicKey.Equals(payer))
	assert.True(t, metas[0].IsSigner)
	assert.True(t, metas[1].PublicKey.Equals(ata))
	assert.True(t, metas[2].PublicKey.Equals(owner))
	assert.True(t, metas[3].PublicKey.Equals(mint))

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
}
