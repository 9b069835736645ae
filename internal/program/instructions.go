// Package program builds the four lending-account instructions this bot
// submits on chain: deposit, withdraw, repay, and liquidate (spec §6).
// There is no Anchor IDL client in the retrieved corpus, so instructions
// are hand-built the same way the teacher's solana_ix.go hand-builds SPL
// Token Swap and System Program instructions: an explicit account-meta
// list plus a manually-encoded data buffer.
package program

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// anchorIxDiscriminator is the first 8 bytes of sha256("global:<method>"),
// Anchor's fixed convention for instruction discriminators. Reproduced
// directly with stdlib crypto/sha256 since no Anchor Go SDK exists in the
// corpus to compute it.
func anchorIxDiscriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

func encodeInstruction(discriminator [8]byte, args any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(discriminator[:])
	if args != nil {
		if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
			return nil, fmt.Errorf("program: encode instruction args: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Accounts carries the addresses every lending instruction needs. Not
// every field is used by every instruction; unused fields are simply
// omitted from that instruction's account list.
type Accounts struct {
	MarginfiGroup      solana.PublicKey
	MarginfiAccount    solana.PublicKey
	Signer             solana.PublicKey
	Bank               solana.PublicKey
	SignerTokenAccount solana.PublicKey
	BankLiquidityVault solana.PublicKey

	// Liquidate-only.
	LiabilityMarginfiAccount solana.PublicKey
	AssetBank                solana.PublicKey
	AssetBankOracle          solana.PublicKey
	LiabilityBank            solana.PublicKey
	LiabilityBankOracle      solana.PublicKey
}

type depositArgs struct {
	Amount uint64
}

// Deposit builds a lending_account_deposit instruction (spec §6).
func Deposit(programID solana.PublicKey, acc Accounts, amountNative uint64) (solana.Instruction, error) {
	data, err := encodeInstruction(anchorIxDiscriminator("lending_account_deposit"), depositArgs{Amount: amountNative})
	if err != nil {
		return nil, err
	}
	metas := []*solana.AccountMeta{
		{PublicKey: acc.MarginfiGroup, IsWritable: false, IsSigner: false},
		{PublicKey: acc.MarginfiAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.Signer, IsWritable: false, IsSigner: true},
		{PublicKey: acc.Bank, IsWritable: true, IsSigner: false},
		{PublicKey: acc.SignerTokenAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.BankLiquidityVault, IsWritable: true, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
	}
	return solana.NewInstruction(programID, metas, data), nil
}

type withdrawArgs struct {
	Amount      uint64
	WithdrawAll bool
}

// Withdraw builds a lending_account_withdraw instruction, optionally
// closing the balance entirely (spec §6, §4.3).
func Withdraw(programID solana.PublicKey, acc Accounts, amountNative uint64, withdrawAll bool) (solana.Instruction, error) {
	data, err := encodeInstruction(anchorIxDiscriminator("lending_account_withdraw"), withdrawArgs{Amount: amountNative, WithdrawAll: withdrawAll})
	if err != nil {
		return nil, err
	}
	metas := []*solana.AccountMeta{
		{PublicKey: acc.MarginfiGroup, IsWritable: false, IsSigner: false},
		{PublicKey: acc.MarginfiAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.Signer, IsWritable: false, IsSigner: true},
		{PublicKey: acc.Bank, IsWritable: true, IsSigner: false},
		{PublicKey: acc.SignerTokenAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.BankLiquidityVault, IsWritable: true, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
	}
	return solana.NewInstruction(programID, metas, data), nil
}

type repayArgs struct {
	Amount   uint64
	RepayAll bool
}

// Repay builds a lending_account_repay instruction, optionally
// extinguishing the liability entirely (spec §6, §4.3).
func Repay(programID solana.PublicKey, acc Accounts, amountNative uint64, repayAll bool) (solana.Instruction, error) {
	data, err := encodeInstruction(anchorIxDiscriminator("lending_account_repay"), repayArgs{Amount: amountNative, RepayAll: repayAll})
	if err != nil {
		return nil, err
	}
	metas := []*solana.AccountMeta{
		{PublicKey: acc.MarginfiGroup, IsWritable: false, IsSigner: false},
		{PublicKey: acc.MarginfiAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.Signer, IsWritable: false, IsSigner: true},
		{PublicKey: acc.Bank, IsWritable: true, IsSigner: false},
		{PublicKey: acc.SignerTokenAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.BankLiquidityVault, IsWritable: true, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
	}
	return solana.NewInstruction(programID, metas, data), nil
}

type liquidateArgs struct {
	AssetAmount uint64
}

// Liquidate builds a lending_account_liquidate instruction: the signer
// repays liabBank on behalf of acc.LiabilityMarginfiAccount and seizes
// assetAmount (native units of assetBank's mint) of its collateral (spec
// §4.3, §6).
func Liquidate(programID solana.PublicKey, acc Accounts, assetAmountNative uint64) (solana.Instruction, error) {
	data, err := encodeInstruction(anchorIxDiscriminator("lending_account_liquidate"), liquidateArgs{AssetAmount: assetAmountNative})
	if err != nil {
		return nil, err
	}
	metas := []*solana.AccountMeta{
		{PublicKey: acc.MarginfiGroup, IsWritable: false, IsSigner: false},
		{PublicKey: acc.AssetBank, IsWritable: true, IsSigner: false},
		{PublicKey: acc.LiabilityBank, IsWritable: true, IsSigner: false},
		{PublicKey: acc.LiabilityMarginfiAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.MarginfiAccount, IsWritable: true, IsSigner: false},
		{PublicKey: acc.Signer, IsWritable: false, IsSigner: true},
		{PublicKey: acc.AssetBankOracle, IsWritable: false, IsSigner: false},
		{PublicKey: acc.LiabilityBankOracle, IsWritable: false, IsSigner: false},
		{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
	}
	return solana.NewInstruction(programID, metas, data), nil
}
