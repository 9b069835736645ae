// Package liquidator implements the single-threaded cooperative loop that
// rebalances the bot's own inventory and liquidates under-collateralized
// lending accounts (spec §4.6). It owns no state of its own: everything it
// reads is borrowed from the state engine via shared references, and every
// on-chain effect goes through the instruction builders in internal/program
// and the aggressive sender in internal/sender.
package liquidator

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/config"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/flags"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/jupiter"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/program"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/sender"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/stateengine"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/telemetry"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/wallet"
)

// sendDeadline bounds a single aggressive-send attempt for the processor's
// own transactions (deposit/withdraw/repay/liquidate/swap).
const sendDeadline = 20 * time.Second

// Processor is the liquidator loop of spec §4.6.
type Processor struct {
	engine *stateengine.Engine
	wallet *wallet.Wallet
	jup    *jupiter.Client
	kill   *flags.KillSwitch
	// telemetry is nil-safe: every call site checks for nil before using
	// it, since telemetry must never affect the liquidation decision path.
	telemetry *telemetry.Sink

	cfg          *config.Config
	programID    solana.PublicKey
	groupAddress solana.PublicKey

	liquidatorAccount solana.PublicKey
	preferredMints    map[solana.PublicKey]bool
	dustThresholdUSD  fixedpoint.Value
	swapMint          solana.PublicKey
	swapBank          solana.PublicKey

	senderCfg sender.Config
	log       *logrus.Logger
}

// Deps bundles the already-constructed collaborators a Processor is wired
// from (spec §6's dependency-ordered startup: config -> wallet -> rpc ->
// engine -> jupiter -> flags -> telemetry -> processor -> stream).
type Deps struct {
	Engine    *stateengine.Engine
	Wallet    *wallet.Wallet
	Jupiter   *jupiter.Client
	KillSwitch *flags.KillSwitch
	Telemetry *telemetry.Sink // optional
	Config    *config.Config
	Log       *logrus.Logger
}

// New constructs a Processor. Call Startup before Run.
func New(deps Deps) (*Processor, error) {
	programID, err := solana.PublicKeyFromBase58(deps.Config.MarginfiProgramID)
	if err != nil {
		return nil, fmt.Errorf("liquidator: invalid marginfi_program_id: %w", err)
	}
	groupAddress, err := solana.PublicKeyFromBase58(deps.Config.MarginfiGroup)
	if err != nil {
		return nil, fmt.Errorf("liquidator: invalid marginfi_group_address: %w", err)
	}
	liquidatorAccount, err := solana.PublicKeyFromBase58(deps.Config.LiquidatorAccount)
	if err != nil {
		return nil, fmt.Errorf("liquidator: invalid liquidator_account: %w", err)
	}
	swapMint, err := solana.PublicKeyFromBase58(deps.Config.SwapMint)
	if err != nil {
		return nil, fmt.Errorf("liquidator: invalid swap_mint: %w", err)
	}

	preferred := make(map[solana.PublicKey]bool, len(deps.Config.PreferredMints))
	for _, m := range deps.Config.PreferredMints {
		key, err := solana.PublicKeyFromBase58(m)
		if err != nil {
			return nil, fmt.Errorf("liquidator: invalid preferred mint %q: %w", m, err)
		}
		preferred[key] = true
	}

	log := deps.Log
	if log == nil {
		log = logrus.New()
	}

	return &Processor{
		engine:            deps.Engine,
		wallet:            deps.Wallet,
		jup:               deps.Jupiter,
		kill:              deps.KillSwitch,
		telemetry:         deps.Telemetry,
		cfg:               deps.Config,
		programID:         programID,
		groupAddress:      groupAddress,
		liquidatorAccount: liquidatorAccount,
		preferredMints:    preferred,
		dustThresholdUSD:  fixedpoint.FromFloat(deps.Config.DustThresholdUSD),
		swapMint:          swapMint,
		senderCfg:         sender.DefaultConfig(sendDeadline),
		log:               log,
	}, nil
}

// Startup locates the configured liquidator lending account, resolves the
// swap bank, and idempotently creates any missing associated token
// accounts for every bank mint (spec §4.6 "Startup"). The engine itself
// must already have completed its own Start bootstrap.
func (p *Processor) Startup(ctx context.Context) error {
	if _, ok := p.engine.LendingAccount(p.liquidatorAccount); !ok {
		return fmt.Errorf("liquidator: configured liquidator_account %s not found among marginfi accounts", p.liquidatorAccount)
	}

	banks := p.engine.Banks()

	var swapBankFound bool
	for _, bank := range banks {
		if bank.Mint.Equals(p.swapMint) {
			p.swapBank = bank.Address
			swapBankFound = true
		}

		ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), bank.Mint)
		if err != nil {
			return fmt.Errorf("liquidator: derive ATA for mint %s: %w", bank.Mint, err)
		}
		exists, err := p.wallet.AccountExists(ctx, ata)
		if err != nil {
			return fmt.Errorf("liquidator: check ATA %s: %w", ata, err)
		}
		if exists {
			continue
		}
		ix := program.NewCreateAssociatedTokenAccountIx(p.wallet.PublicKey(), ata, p.wallet.PublicKey(), bank.Mint)
		if _, err := p.submitInstructions(ctx, []solana.Instruction{ix}); err != nil {
			return fmt.Errorf("liquidator: create ATA for mint %s: %w", bank.Mint, err)
		}
		p.log.WithField("mint", bank.Mint).Info("liquidator: created missing associated token account")
	}

	if !swapBankFound {
		return fmt.Errorf("liquidator: no bank found for configured swap_mint %s", p.swapMint)
	}

	p.log.WithFields(logrus.Fields{
		"liquidator_account": p.liquidatorAccount,
		"swap_bank":          p.swapBank,
	}).Info("liquidator: startup complete")
	return nil
}

// Run is the main loop of spec §4.6: rebalance whenever needed, then block
// on the engine's update channel, re-scanning on every coalesced signal.
// It returns only on ctx cancellation or a fatal setup-class error; every
// other error is logged and swallowed so the loop keeps running (spec §7).
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.maybeRebalance(ctx); err != nil {
			p.log.WithError(err).Warn("liquidator: rebalance cycle failed, continuing")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-p.engine.Updates():
			if !ok {
				return fmt.Errorf("liquidator: update channel closed")
			}
			if err := p.scanAndMaybeLiquidate(ctx); err != nil {
				p.log.WithError(err).Warn("liquidator: scan cycle failed, continuing")
			}
		}
	}
}

func (p *Processor) maybeRebalance(ctx context.Context) error {
	if p.kill.RebalancePaused(ctx) {
		return nil
	}
	needs, err := p.needsRebalance()
	if err != nil {
		return err
	}
	if !needs {
		return nil
	}

	p.log.Info("liquidator: rebalance predicate true, rebalancing")
	if err := p.sellNonPreferredDeposits(ctx); err != nil {
		p.log.WithError(err).Warn("liquidator: sell_non_preferred_deposits failed")
	}
	if err := p.handleTokensInTokenAccounts(ctx); err != nil {
		p.log.WithError(err).Warn("liquidator: handle_tokens_in_token_accounts failed")
	}
	if err := p.repayLiabilities(ctx); err != nil {
		p.log.WithError(err).Warn("liquidator: repay_liabilities failed")
	}
	if err := p.depositPreferredTokens(ctx); err != nil {
		p.log.WithError(err).Warn("liquidator: deposit_preferred_tokens failed")
	}
	return nil
}

// submitInstructions builds, signs, and aggressively sends a transaction
// containing instrs, returning the confirmed signature.
func (p *Processor) submitInstructions(ctx context.Context, instrs []solana.Instruction) (string, error) {
	tx, err := p.wallet.BuildTransaction(ctx, instrs)
	if err != nil {
		return "", fmt.Errorf("liquidator: build transaction: %w", err)
	}
	blockhash := tx.Message.RecentBlockhash
	if err := p.wallet.SignTx(tx); err != nil {
		return "", fmt.Errorf("liquidator: sign transaction: %w", err)
	}
	return sender.AggressiveSend(ctx, p.wallet, tx, blockhash, p.senderCfg, p.log)
}

// bankAccounts builds the on-chain account list for a single-bank
// instruction (deposit/withdraw/repay) against bank.
func (p *Processor) bankAccounts(bank solana.PublicKey, mint solana.PublicKey) (program.Accounts, error) {
	vault, err := program.FindBankLiquidityVault(p.programID, bank)
	if err != nil {
		return program.Accounts{}, err
	}
	ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), mint)
	if err != nil {
		return program.Accounts{}, fmt.Errorf("liquidator: derive ATA for mint %s: %w", mint, err)
	}
	return program.Accounts{
		MarginfiGroup:      p.groupAddress,
		MarginfiAccount:    p.liquidatorAccount,
		Signer:             p.wallet.PublicKey(),
		Bank:               bank,
		SignerTokenAccount: ata,
		BankLiquidityVault: vault,
	}, nil
}
