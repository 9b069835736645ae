package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// liquidityVaultSeed and liquidityVaultAuthoritySeed match the deployed
// lending program's public PDA convention for a bank's token vault and
// its signing authority. No Anchor IDL client exists in the corpus to
// derive these from, so the seeds are reproduced directly as documented
// constants, the same way this package already reproduces the Anchor
// instruction discriminator.
var (
	liquidityVaultSeed          = []byte("liquidity_vault")
	liquidityVaultAuthoritySeed = []byte("liquidity_vault_auth")
)

// FindBankLiquidityVault derives a bank's token vault PDA.
func FindBankLiquidityVault(programID, bankAddress solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{liquidityVaultSeed, bankAddress.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program: derive liquidity vault for bank %s: %w", bankAddress, err)
	}
	return addr, nil
}

// FindBankLiquidityVaultAuthority derives the PDA authorized to move funds
// out of a bank's liquidity vault.
func FindBankLiquidityVaultAuthority(programID, bankAddress solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{liquidityVaultAuthoritySeed, bankAddress.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("program: derive liquidity vault authority for bank %s: %w", bankAddress, err)
	}
	return addr, nil
}
