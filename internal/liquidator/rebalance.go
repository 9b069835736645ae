package liquidator

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/program"
)

// bankByMint finds the bank whose mint matches mint, if any.
func bankByMint(banks []marginfi.Bank, mint solana.PublicKey) (*marginfi.Bank, bool) {
	for i := range banks {
		if banks[i].Mint.Equals(mint) {
			return &banks[i], true
		}
	}
	return nil, false
}

// tokenAccountEquityUSD values a token account's balance at the unweighted
// equity requirement (spec §4.1), using the bank matching its mint as the
// price source.
func (p *Processor) tokenAccountEquityUSD(banks []marginfi.Bank, mint solana.PublicKey) (fixedpoint.Value, error) {
	bank, ok := bankByMint(banks, mint)
	if !ok {
		return fixedpoint.Zero, fmt.Errorf("liquidator: no bank tracks mint %s", mint)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), mint)
	if err != nil {
		return fixedpoint.Zero, err
	}
	account, ok := p.engine.TokenAccount(ata)
	if !ok {
		return fixedpoint.Zero, nil
	}
	return marginfi.CalcWeightedAssetValue(bank, fixedpoint.FromUint(account.Amount), marginfi.RequirementEquity)
}

// needsRebalance implements spec §4.6.1's three-way OR.
func (p *Processor) needsRebalance() (bool, error) {
	banks := p.engine.Banks()

	for _, bank := range banks {
		value, err := p.tokenAccountEquityUSD(banks, bank.Mint)
		if err != nil {
			continue
		}
		if value.GreaterThan(p.dustThresholdUSD) {
			return true, nil
		}
	}

	acct, ok := p.engine.LendingAccount(p.liquidatorAccount)
	if !ok {
		return false, fmt.Errorf("liquidator: liquidator account %s disappeared from state", p.liquidatorAccount)
	}
	for _, bal := range acct.ActiveBalances() {
		switch bal.Side() {
		case marginfi.BalanceSideAssets:
			bank, ok := p.engine.BankLookup()(bal.BankAddress)
			if !ok {
				continue
			}
			if !p.preferredMints[bank.Mint] {
				return true, nil
			}
		case marginfi.BalanceSideLiabilities:
			return true, nil
		}
	}

	return false, nil
}

// sellNonPreferredDeposits implements spec §4.6.2's first rebalance step:
// for every non-preferred asset-side balance, withdraw up to free
// collateral, swap the withdrawn amount to the swap mint, then deposit the
// resulting swap-mint balance into the swap bank.
func (p *Processor) sellNonPreferredDeposits(ctx context.Context) error {
	lookup := p.engine.BankLookup()
	acct, ok := p.engine.LendingAccount(p.liquidatorAccount)
	if !ok {
		return fmt.Errorf("liquidator: liquidator account %s disappeared from state", p.liquidatorAccount)
	}

	freeCollateral, err := marginfi.FreeCollateral(lookup, &acct)
	if err != nil {
		return fmt.Errorf("liquidator: free collateral: %w", err)
	}

	for _, bal := range acct.ActiveBalances() {
		if bal.Side() != marginfi.BalanceSideAssets {
			continue
		}
		bank, ok := lookup(bal.BankAddress)
		if !ok || p.preferredMints[bank.Mint] {
			continue
		}

		amount, withdrawAll, err := marginfi.MaxWithdraw(bank, bal, freeCollateral)
		if err != nil {
			p.log.WithError(err).WithField("bank", bank.Address).Warn("liquidator: max_withdraw failed, skipping bank")
			continue
		}
		if !amount.IsPositive() {
			continue
		}

		accounts, err := p.bankAccounts(bank.Address, bank.Mint)
		if err != nil {
			return err
		}
		ix, err := program.Withdraw(p.programID, accounts, amount.Uint64(), withdrawAll)
		if err != nil {
			return err
		}
		if _, err := p.submitInstructions(ctx, []solana.Instruction{ix}); err != nil {
			p.log.WithError(err).WithField("bank", bank.Address).Warn("liquidator: withdraw failed, skipping bank")
			continue
		}

		sig, err := p.executeSwap(ctx, bank.Mint, p.swapMint, amount.Uint64())
		if err != nil {
			p.log.WithError(err).WithField("bank", bank.Address).Warn("liquidator: swap to swap mint failed")
			continue
		}
		p.log.WithFields(map[string]any{"bank": bank.Address.String(), "signature": sig}).Info("liquidator: sold non-preferred deposit")

		if err := p.depositSwapMintBalance(ctx); err != nil {
			p.log.WithError(err).Warn("liquidator: deposit after sell failed")
		}
	}
	return nil
}

// handleTokensInTokenAccounts implements spec §4.6.2's second rebalance
// step: any non-swap-bank token account holding more than dust is swapped
// entirely into the swap mint (left un-deposited until depositPreferredTokens
// runs, matching the main-loop's step ordering).
func (p *Processor) handleTokensInTokenAccounts(ctx context.Context) error {
	banks := p.engine.Banks()

	for _, bank := range banks {
		if bank.Address.Equals(p.swapBank) {
			continue
		}
		value, err := p.tokenAccountEquityUSD(banks, bank.Mint)
		if err != nil || !value.GreaterThan(p.dustThresholdUSD) {
			continue
		}

		ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), bank.Mint)
		if err != nil {
			return err
		}
		account, ok := p.engine.TokenAccount(ata)
		if !ok || account.Amount == 0 {
			continue
		}

		sig, err := p.executeSwap(ctx, bank.Mint, p.swapMint, account.Amount)
		if err != nil {
			p.log.WithError(err).WithField("bank", bank.Address).Warn("liquidator: swap token-account dust failed")
			continue
		}
		p.log.WithFields(map[string]any{"bank": bank.Address.String(), "signature": sig}).Info("liquidator: swept token-account balance to swap mint")
	}
	return nil
}

// depositPreferredTokens implements spec §4.6.2's third rebalance step.
func (p *Processor) depositPreferredTokens(ctx context.Context) error {
	return p.depositSwapMintBalance(ctx)
}

// depositSwapMintBalance deposits the entire current swap-mint token
// account balance into the swap bank. Shared by depositPreferredTokens and
// sellNonPreferredDeposits's inline deposit.
func (p *Processor) depositSwapMintBalance(ctx context.Context) error {
	ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), p.swapMint)
	if err != nil {
		return err
	}
	account, ok := p.engine.TokenAccount(ata)
	if !ok || account.Amount == 0 {
		return nil
	}

	accounts, err := p.bankAccounts(p.swapBank, p.swapMint)
	if err != nil {
		return err
	}
	ix, err := program.Deposit(p.programID, accounts, account.Amount)
	if err != nil {
		return err
	}
	if _, err := p.submitInstructions(ctx, []solana.Instruction{ix}); err != nil {
		return fmt.Errorf("liquidator: deposit swap mint balance: %w", err)
	}
	return nil
}

// repayLiabilities completes spec §4.6.2's repay-liability step, left a
// parenthetical in the original implementation: for each liability, repay
// directly out of whatever balance of that mint is already on hand; for any
// shortfall, withdraw the equivalent amount of swap-mint from the swap
// bank (capped by free collateral, mirroring sellNonPreferredDeposits in
// the opposite direction), swap it to the liability mint, then repay the
// full held balance.
func (p *Processor) repayLiabilities(ctx context.Context) error {
	lookup := p.engine.BankLookup()
	acct, ok := p.engine.LendingAccount(p.liquidatorAccount)
	if !ok {
		return fmt.Errorf("liquidator: liquidator account %s disappeared from state", p.liquidatorAccount)
	}
	swapBank, ok := lookup(p.swapBank)
	if !ok {
		return fmt.Errorf("liquidator: swap bank %s not found", p.swapBank)
	}

	for _, bal := range acct.ActiveBalances() {
		if bal.Side() != marginfi.BalanceSideLiabilities {
			continue
		}
		liabBank, ok := lookup(bal.BankAddress)
		if !ok {
			continue
		}

		ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), liabBank.Mint)
		if err != nil {
			return err
		}
		held, _ := p.engine.TokenAccount(ata)
		heldNative := fixedpoint.FromUint(held.Amount)

		if heldNative.GreaterThanOrEqual(bal.LiabilityShares) || liabBank.Mint.Equals(p.swapMint) {
			if err := p.repayFromSwapMintBalance(ctx, liabBank, bal); err != nil {
				p.log.WithError(err).WithField("bank", liabBank.Address).Warn("liquidator: repay failed")
			}
			continue
		}

		shortfall := bal.LiabilityShares.Sub(heldNative)
		shortfallUSD, err := marginfi.CalcWeightedLiabilityValue(liabBank, shortfall, marginfi.RequirementInitial)
		if err != nil {
			continue
		}
		neededSwapMintNative, err := marginfi.CalcAmountFromValue(swapBank, shortfallUSD, marginfi.RequirementInitial, marginfi.BalanceSideAssets)
		if err != nil {
			continue
		}

		freeCollateral, err := marginfi.FreeCollateral(lookup, &acct)
		if err != nil {
			return fmt.Errorf("liquidator: free collateral: %w", err)
		}
		swapBankBal, _ := acct.BalanceForBank(p.swapBank)
		maxWithdrawNative, withdrawAll, err := marginfi.MaxWithdraw(swapBank, swapBankBal, freeCollateral)
		if err != nil {
			p.log.WithError(err).WithField("bank", liabBank.Address).Warn("liquidator: max_withdraw for repay failed")
			continue
		}
		withdrawAmount := fixedpoint.Min(neededSwapMintNative, maxWithdrawNative)
		if !withdrawAmount.IsPositive() {
			continue
		}
		withdrawAll = withdrawAll && withdrawAmount.Equal(maxWithdrawNative)

		accounts, err := p.bankAccounts(p.swapBank, p.swapMint)
		if err != nil {
			return err
		}
		ix, err := program.Withdraw(p.programID, accounts, withdrawAmount.Uint64(), withdrawAll)
		if err != nil {
			return err
		}
		if _, err := p.submitInstructions(ctx, []solana.Instruction{ix}); err != nil {
			p.log.WithError(err).WithField("bank", liabBank.Address).Warn("liquidator: withdraw swap mint for repay failed")
			continue
		}

		sig, err := p.executeSwap(ctx, p.swapMint, liabBank.Mint, withdrawAmount.Uint64())
		if err != nil {
			p.log.WithError(err).WithField("bank", liabBank.Address).Warn("liquidator: swap to repay liability failed")
			continue
		}
		p.log.WithFields(map[string]any{"bank": liabBank.Address.String(), "signature": sig}).Info("liquidator: acquired liability mint to repay")

		if err := p.repayFromSwapMintBalance(ctx, liabBank, bal); err != nil {
			p.log.WithError(err).WithField("bank", liabBank.Address).Warn("liquidator: repay after swap failed")
		}
	}
	return nil
}

// repayFromSwapMintBalance repays bank's liability out of whatever token
// account balance is currently on hand for bank's own mint.
func (p *Processor) repayFromSwapMintBalance(ctx context.Context, bank *marginfi.Bank, bal marginfi.Balance) error {
	ata, _, err := solana.FindAssociatedTokenAddress(p.wallet.PublicKey(), bank.Mint)
	if err != nil {
		return err
	}
	held, ok := p.engine.TokenAccount(ata)
	if !ok || held.Amount == 0 {
		return nil
	}

	repayAmount := fixedpoint.Min(fixedpoint.FromUint(held.Amount), bal.LiabilityShares)
	repayAll := repayAmount.GreaterThanOrEqual(bal.LiabilityShares)

	accounts, err := p.bankAccounts(bank.Address, bank.Mint)
	if err != nil {
		return err
	}
	ix, err := program.Repay(p.programID, accounts, repayAmount.Uint64(), repayAll)
	if err != nil {
		return err
	}
	_, err = p.submitInstructions(ctx, []solana.Instruction{ix})
	return err
}
