package stateengine

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

// TokenAccount is the subset of an SPL token account the engine tracks:
// the mint it's denominated in and its raw (native-unit) balance, read
// straight out of the wire layout's fixed offsets (spec §4.2.2): mint at
// bytes [0,32) and amount at bytes [64,72) little-endian.
type TokenAccount struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Amount  uint64
}

const (
	tokenAccountMintOffset   = 0
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = tokenAccountAmountOffset + 8
)

func decodeTokenAccount(address solana.PublicKey, data []byte) (*TokenAccount, error) {
	if len(data) < tokenAccountMinLen {
		return nil, fmt.Errorf("stateengine: token account %s too short", address)
	}
	var mint solana.PublicKey
	copy(mint[:], data[tokenAccountMintOffset:tokenAccountMintOffset+32])
	amount := binary.LittleEndian.Uint64(data[tokenAccountAmountOffset : tokenAccountAmountOffset+8])
	return &TokenAccount{Address: address, Mint: mint, Amount: amount}, nil
}

// HandleUpdate routes a single raw account update to the matching updater,
// per spec §4.2.2's classifier: a Bank discriminator goes to updateBank, a
// tracked oracle address goes to updateOracle, a MarginfiAccount
// discriminator goes to updateMarginfiAccount, a tracked token account
// address goes to updateTokenAccount, and anything else is dropped. Every
// branch logs and returns rather than panicking; a single bad update must
// never bring down the update executor.
func (e *Engine) HandleUpdate(info *AccountInfo) {
	switch {
	case len(info.Data) >= 8 && hasDiscriminator(info.Data, bankDiscriminator):
		e.updateBank(info)
	case e.trackedOracles.Contains(info.Pubkey):
		e.updateOracle(info)
	case len(info.Data) >= 8 && hasDiscriminator(info.Data, marginfiAccountDiscriminator):
		e.updateMarginfiAccount(info)
	case e.trackedTokenAccounts.Contains(info.Pubkey):
		e.updateTokenAccount(info)
	default:
		e.log.WithField("pubkey", info.Pubkey).Debug("dropping untracked account update")
	}
}

func hasDiscriminator(data []byte, disc [8]byte) bool {
	var got [8]byte
	copy(got[:], data[:8])
	return got == disc
}

func (e *Engine) updateBank(info *AccountInfo) {
	bank, err := DecodeBank(info.Pubkey, info.Data)
	if err != nil {
		e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("dropping malformed bank update")
		return
	}

	entry, existed := e.banks.LoadOrStore(info.Pubkey, *bank)
	if existed {
		if !entry.TryWrite(func(v *marginfi.Bank) {
			adapter := v.OracleAdapter
			*v = *bank
			v.OracleAdapter = adapter
		}) {
			e.log.WithField("pubkey", info.Pubkey).Debug("bank entry contended, skipping this update")
			return
		}
	}

	for _, oracleKey := range bank.Config.OracleKeys {
		e.trackedOracles.Add(oracleKey)
	}

	e.notifyUpdate()
}

// updateOracle re-derives the OracleAdapter for every bank that references
// the updated oracle address and swaps it in whole — spec §9: "replace it
// rather than patch it, to avoid torn state". A single oracle can back more
// than one bank, so this fans out across all matching banks; the fan-out
// is not atomic across banks, matching spec §5's ordering guarantee.
func (e *Engine) updateOracle(info *AccountInfo) {
	adapter, err := e.oracleFactory(info)
	if err != nil {
		e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("dropping malformed oracle update")
		return
	}

	applied := false
	e.banks.Range(func(_ solana.PublicKey, entry *Entry[marginfi.Bank]) bool {
		bank := entry.Snapshot()
		if !bank.OracleAddress.Equals(info.Pubkey) {
			return true
		}
		if !entry.TryWrite(func(v *marginfi.Bank) { v.OracleAdapter = adapter }) {
			e.log.WithField("bank", bank.Address).Debug("bank entry contended during oracle fan-out, skipping")
			return true
		}
		applied = true
		return true
	})

	// An oracle price move is the dominant trigger that can flip an account
	// liquidatable, so this must wake the scan loop even though no bank or
	// account row itself changed shape.
	if applied {
		e.notifyUpdate()
	}
}

func (e *Engine) updateMarginfiAccount(info *AccountInfo) {
	account, err := DecodeMarginfiAccount(info.Pubkey, info.Data)
	if err != nil {
		e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("dropping malformed marginfi account update")
		return
	}

	entry, existed := e.marginfiAccounts.LoadOrStore(info.Pubkey, *account)
	if existed {
		if !entry.TryWrite(func(v *marginfi.LendingAccount) { *v = *account }) {
			e.log.WithField("pubkey", info.Pubkey).Debug("marginfi account entry contended, skipping this update")
			return
		}
	}

	e.notifyUpdate()
}

func (e *Engine) updateTokenAccount(info *AccountInfo) {
	account, err := decodeTokenAccount(info.Pubkey, info.Data)
	if err != nil {
		e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("dropping malformed token account update")
		return
	}

	entry, existed := e.tokenAccounts.LoadOrStore(info.Pubkey, *account)
	if existed {
		if !entry.TryWrite(func(v *TokenAccount) { *v = *account }) {
			e.log.WithField("pubkey", info.Pubkey).Debug("token account entry contended, skipping this update")
			return
		}
	}

	e.notifyUpdate()
}

// notifyUpdate pushes onto the single-slot coalescing notification channel
// (spec §5): a full channel means a scan is already pending, so this send
// is dropped silently rather than blocking the update executor.
func (e *Engine) notifyUpdate() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
