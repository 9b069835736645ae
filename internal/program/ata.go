package program

import (
	"github.com/gagliardetto/solana-go"
)

// associatedTokenProgramID is the SPL Associated Token Account program.
var associatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

// NewCreateAssociatedTokenAccountIx builds an instruction that creates the
// ATA for (owner, mint), paid for by payer. Not idempotent on chain: the
// program errors if the account already exists, so callers must only
// include this instruction when AccountExists reports false; Startup's
// AccountExists check is what makes ATA creation idempotent (spec §4.6:
// "idempotently ensure all required associated token accounts exist").
//
// Account order (ATA program): payer, ata, owner, mint, system program,
// token program, rent sysvar.
func NewCreateAssociatedTokenAccountIx(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: ata, IsSigner: false, IsWritable: true},
		{PublicKey: owner, IsSigner: false, IsWritable: false},
		{PublicKey: mint, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.SysVarRentPubkey, IsSigner: false, IsWritable: false},
	}
	return solana.NewInstruction(associatedTokenProgramID, accounts, nil)
}
