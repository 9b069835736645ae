package program

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBankLiquidityVaultIsDeterministic(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	bank := solana.NewWallet().PublicKey()

	a, err := FindBankLiquidityVault(programID, bank)
	require.NoError(t, err)
	b, err := FindBankLiquidityVault(programID, bank)
	require.NoError(t, err)
	assert.True(t, a.Equals(b))
}

func TestBankLiquidityVaultAndAuthorityDiffer(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	bank := solana.NewWallet().PublicKey()

	vault, err := FindBankLiquidityVault(programID, bank)
	require.NoError(t, err)
	authority, err := FindBankLiquidityVaultAuthority(programID, bank)
	require.NoError(t, err)
	assert.False(t, vault.Equals(authority))
}
