package liquidator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/program"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/telemetry"
)

// liquidationSafetyMargin is the 2% haircut spec §4.6.6 applies to the
// final seizure amount to absorb price drift between quote and execution.
var liquidationSafetyMargin = fixedpoint.MustFromString("0.98")

// scoredCandidate pairs a target account with its sizing result.
type scoredCandidate struct {
	account   marginfi.LendingAccount
	candidate marginfi.LiquidationCandidate
}

// scanAndMaybeLiquidate implements spec §4.6.3: filter, size, drop
// zero-profit, sort ascending, select the maximum (last element) — the
// corrected behavior per spec's explicit flag that the reference
// implementation's accounts.first() after an ascending sort dispatches the
// least profitable candidate, not the most.
func (p *Processor) scanAndMaybeLiquidate(ctx context.Context) error {
	if p.kill.LiquidationsPaused(ctx) {
		return nil
	}

	lookup := p.engine.BankLookup()
	var scored []scoredCandidate

	for _, acct := range p.engine.LendingAccounts() {
		if acct.Address.Equals(p.liquidatorAccount) {
			continue
		}
		if !marginfi.HasLiabilities(&acct) {
			continue
		}

		assetBank, liabBank, err := marginfi.SelectLiquidationBanks(lookup, &acct)
		if err != nil {
			continue
		}
		candidate, err := marginfi.ComputeMaxLiquidatableAssetAmount(lookup, &acct, assetBank, liabBank)
		if err != nil {
			p.log.WithError(err).WithField("account", acct.Address).Warn("liquidator: scan valuation failed, excluding account this cycle")
			continue
		}
		if !candidate.ExpectedProfitUSD.IsPositive() {
			continue
		}

		scored = append(scored, scoredCandidate{account: acct, candidate: candidate})
	}

	if len(scored) == 0 {
		return nil
	}

	best := selectMostProfitable(scored)
	logTop10(p.log, scored)
	return p.liquidateAccount(ctx, best.account, best.candidate)
}

// selectMostProfitable sorts scored ascending by expected profit and
// returns the last (maximum) element. candidates is mutated in place.
func selectMostProfitable(candidates []scoredCandidate) scoredCandidate {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].candidate.ExpectedProfitUSD.LessThan(candidates[j].candidate.ExpectedProfitUSD)
	})
	return candidates[len(candidates)-1]
}

func logTop10(log *logrus.Logger, scored []scoredCandidate) {
	start := 0
	if len(scored) > 10 {
		start = len(scored) - 10
	}
	for _, s := range scored[start:] {
		log.WithFields(logrus.Fields{
			"account":        s.account.Address.String(),
			"expected_profit": s.candidate.ExpectedProfitUSD.String(),
		}).Debug("liquidator: liquidation candidate")
	}
}

// liquidateAccount implements spec §4.6.6's sizing and submits the
// liquidate instruction.
func (p *Processor) liquidateAccount(ctx context.Context, target marginfi.LendingAccount, candidate marginfi.LiquidationCandidate) error {
	lookup := p.engine.BankLookup()

	assetBank, ok := lookup(candidate.AssetBank)
	if !ok {
		return fmt.Errorf("liquidator: unknown asset bank %s", candidate.AssetBank)
	}
	liabBank, ok := lookup(candidate.LiabilityBank)
	if !ok {
		return fmt.Errorf("liquidator: unknown liability bank %s", candidate.LiabilityBank)
	}

	selfAcct, ok := p.engine.LendingAccount(p.liquidatorAccount)
	if !ok {
		return fmt.Errorf("liquidator: liquidator account %s disappeared from state", p.liquidatorAccount)
	}
	freeCollateral, err := marginfi.FreeCollateral(lookup, &selfAcct)
	if err != nil {
		return fmt.Errorf("liquidator: free collateral: %w", err)
	}

	existingAsset, _ := selfAcct.BalanceForBank(candidate.LiabilityBank)
	maxBorrowNative, err := marginfi.MaxBorrow(liabBank, existingAsset, freeCollateral)
	if err != nil {
		return fmt.Errorf("liquidator: max_borrow: %w", err)
	}

	capacityUSD, err := marginfi.CalcWeightedLiabilityValue(liabBank, maxBorrowNative, marginfi.RequirementInitial)
	if err != nil {
		return fmt.Errorf("liquidator: liability capacity valuation: %w", err)
	}
	selfCapacityAsAsset, err := marginfi.CalcAmountFromValue(assetBank, capacityUSD, marginfi.RequirementInitial, marginfi.BalanceSideAssets)
	if err != nil {
		return fmt.Errorf("liquidator: asset-equivalent capacity: %w", err)
	}

	finalAmount := fixedpoint.Min(candidate.MaxAssetAmount, selfCapacityAsAsset).Mul(liquidationSafetyMargin)
	if !finalAmount.IsPositive() {
		return nil
	}

	accounts := program.Accounts{
		MarginfiGroup:            p.groupAddress,
		MarginfiAccount:          p.liquidatorAccount,
		Signer:                   p.wallet.PublicKey(),
		AssetBank:                assetBank.Address,
		AssetBankOracle:          assetBank.OracleAddress,
		LiabilityBank:            liabBank.Address,
		LiabilityBankOracle:      liabBank.OracleAddress,
		LiabilityMarginfiAccount: target.Address,
	}
	ix, err := program.Liquidate(p.programID, accounts, finalAmount.Uint64())
	if err != nil {
		return fmt.Errorf("liquidator: build liquidate instruction: %w", err)
	}

	sig, sendErr := p.submitInstructions(ctx, []solana.Instruction{ix})
	p.recordLiquidation(target, candidate, finalAmount, sig, sendErr)
	if sendErr != nil {
		return fmt.Errorf("liquidator: liquidate %s failed: %w", target.Address, sendErr)
	}

	p.log.WithFields(logrus.Fields{
		"target":         target.Address.String(),
		"asset_bank":     assetBank.Address.String(),
		"liability_bank": liabBank.Address.String(),
		"signature":      sig,
	}).Info("liquidator: executed liquidation")
	return nil
}

func (p *Processor) recordLiquidation(target marginfi.LendingAccount, candidate marginfi.LiquidationCandidate, assetAmount fixedpoint.Value, sig string, sendErr error) {
	if p.telemetry == nil {
		return
	}
	ev := telemetry.LiquidationEvent{
		Signature:         sig,
		Timestamp:         time.Now(),
		LiquidateeAccount: target.Address.String(),
		AssetBank:         candidate.AssetBank.String(),
		LiabilityBank:     candidate.LiabilityBank.String(),
		AssetAmount:       assetAmount.Float64(),
		ProfitUSD:         candidate.ExpectedProfitUSD.Float64(),
		Success:           sendErr == nil,
	}
	if sendErr != nil {
		ev.Error = sendErr.Error()
	}
	p.telemetry.RecordLiquidation(context.Background(), ev)
}
