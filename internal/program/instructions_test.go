package program

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() Accounts {
	return Accounts{
		MarginfiGroup:      solana.NewWallet().PublicKey(),
		MarginfiAccount:    solana.NewWallet().PublicKey(),
		Signer:             solana.NewWallet().PublicKey(),
		Bank:               solana.NewWallet().PublicKey(),
		SignerTokenAccount: solana.NewWallet().PublicKey(),
		BankLiquidityVault: solana.NewWallet().PublicKey(),
	}
}

func TestDepositInstructionEncodesAmountAndDiscriminator(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	ix, err := Deposit(programID, testAccounts(), 1_000_000)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Len(t, data, 8+8) // discriminator + u64 amount
	assert.Equal(t, programID, ix.ProgramID())
	assert.Len(t, ix.Accounts(), 7)
}

func TestWithdrawInstructionEncodesWithdrawAllFlag(t *testing.T) {
	ix, err := Withdraw(solana.NewWallet().PublicKey(), testAccounts(), 0, true)
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(1), data[len(data)-1], "WithdrawAll bool should borsh-encode as trailing 1 byte")
}

func TestLiquidateInstructionAccountOrder(t *testing.T) {
	acc := testAccounts()
	acc.LiabilityMarginfiAccount = solana.NewWallet().PublicKey()
	acc.AssetBank = solana.NewWallet().PublicKey()
	acc.AssetBankOracle = solana.NewWallet().PublicKey()
	acc.LiabilityBank = solana.NewWallet().PublicKey()
	acc.LiabilityBankOracle = solana.NewWallet().PublicKey()

	ix, err := Liquidate(solana.NewWallet().PublicKey(), acc, 42)
	require.NoError(t, err)
	metas := ix.Accounts()
	require.Len(t, metas, 9)
	assert.True(t, metas[1].PublicKey.Equals(acc.AssetBank))
	assert.True(t, metas[2].PublicKey.Equals(acc.LiabilityBank))
	assert.True(t, metas[5].IsSigner)
}
