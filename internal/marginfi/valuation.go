package marginfi

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
)

// liquidationDiscount is the protocol's fixed discount applied when a
// liquidator seizes collateral: repaying $1 of liability buys
// $(1+liquidationDiscount) of collateral at the current price. spec.md
// names the mechanism ("at the liquidation discount") without pinning a
// number; this value matches the reference marginfi protocol's liquidator
// discount and is recorded as a design decision in DESIGN.md.
var liquidationDiscount = fixedpoint.MustFromString("0.025")

// biasFor returns the oracle price bias a requirement/side pair must be
// evaluated under: conservative-low for assets, conservative-high for
// liabilities, and the unbiased midpoint for equity valuation regardless
// of side (spec §4.1: "equity = real-time, no bias").
func biasFor(req RequirementType, side BalanceSide) PriceBias {
	if req == RequirementEquity {
		return PriceBiasNone
	}
	if side == BalanceSideLiabilities {
		return PriceBiasHigh
	}
	return PriceBiasLow
}

// weightForValuation returns the weight CalcValue should apply: the
// configured per-bank weight, further discounted for initial-requirement
// asset valuations once the bank's total asset USD crosses its configured
// threshold (spec §4.1).
func weightForValuation(bank *Bank, req RequirementType, side BalanceSide) fixedpoint.Value {
	weight := bank.Config.Weight(req, side)
	if side == BalanceSideAssets && req == RequirementInitial && bank.Config.Discount != nil {
		d := bank.Config.Discount
		if bank.TotalAssetUSD.GreaterThan(d.TotalAssetValueInitLimit) {
			weight = weight.Mul(d.DiscountRatio)
		}
	}
	return weight
}

// CalcWeightedAssetValue is the risk-weighted USD value of an asset-side
// amount held in bank, under requirement req. Isolated-risk-tier banks
// always contribute zero (spec §4.1, "isolated deposits contribute no
// collateral").
func CalcWeightedAssetValue(bank *Bank, amount fixedpoint.Value, req RequirementType) (fixedpoint.Value, error) {
	if bank.Config.RiskTier == RiskTierIsolated {
		return fixedpoint.Zero, nil
	}
	if bank.OracleAdapter == nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s has no oracle adapter", bank.Address)
	}
	price, err := bank.OracleAdapter.PriceOfType(OraclePriceTypeOf(req), biasFor(req, BalanceSideAssets))
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: price for bank %s: %w", bank.Address, err)
	}
	weight := weightForValuation(bank, req, BalanceSideAssets)
	return fixedpoint.CalcValue(amount, price, int32(bank.MintDecimals), weight), nil
}

// CalcWeightedLiabilityValue is the risk-weighted USD value of a
// liability-side amount held in bank, under requirement req. Risk tier is
// never consulted (spec §4.1, "risk tier is ignored").
func CalcWeightedLiabilityValue(bank *Bank, amount fixedpoint.Value, req RequirementType) (fixedpoint.Value, error) {
	if bank.OracleAdapter == nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s has no oracle adapter", bank.Address)
	}
	price, err := bank.OracleAdapter.PriceOfType(OraclePriceTypeOf(req), biasFor(req, BalanceSideLiabilities))
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: price for bank %s: %w", bank.Address, err)
	}
	weight := bank.Config.Weight(req, BalanceSideLiabilities)
	return fixedpoint.CalcValue(amount, price, int32(bank.MintDecimals), weight), nil
}

// CalcAmountFromValue converts a USD value back to a native token amount
// for bank, at the oracle price/bias implied by req and side.
func CalcAmountFromValue(bank *Bank, value fixedpoint.Value, req RequirementType, side BalanceSide) (fixedpoint.Value, error) {
	if bank.OracleAdapter == nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s has no oracle adapter", bank.Address)
	}
	price, err := bank.OracleAdapter.PriceOfType(OraclePriceTypeOf(req), biasFor(req, side))
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: price for bank %s: %w", bank.Address, err)
	}
	return fixedpoint.CalcAmount(value, price, int32(bank.MintDecimals)), nil
}

// BankLookup resolves a bank address to its current Bank snapshot. The
// state engine's concurrent map satisfies this via a read-locked copy.
type BankLookup func(address solana.PublicKey) (*Bank, bool)

// CalcWeightedBalanceValue dispatches a single balance to the asset or
// liability valuation by its side, returning the weighted (assets, liabs)
// contribution pair — exactly one of which is non-zero.
func CalcWeightedBalanceValue(lookup BankLookup, bal Balance, req RequirementType) (assets, liabs fixedpoint.Value, err error) {
	switch bal.Side() {
	case BalanceSideAssets:
		bank, ok := lookup(bal.BankAddress)
		if !ok {
			return fixedpoint.Zero, fixedpoint.Zero, fmt.Errorf("marginfi: unknown bank %s", bal.BankAddress)
		}
		v, err := CalcWeightedAssetValue(bank, bal.AssetShares, req)
		return v, fixedpoint.Zero, err
	case BalanceSideLiabilities:
		bank, ok := lookup(bal.BankAddress)
		if !ok {
			return fixedpoint.Zero, fixedpoint.Zero, fmt.Errorf("marginfi: unknown bank %s", bal.BankAddress)
		}
		v, err := CalcWeightedLiabilityValue(bank, bal.LiabilityShares, req)
		return fixedpoint.Zero, v, err
	default:
		return fixedpoint.Zero, fixedpoint.Zero, nil
	}
}

// AccountHealth sums weighted asset and liability value across every
// active balance of acct under requirement req.
func AccountHealth(lookup BankLookup, acct *LendingAccount, req RequirementType) (assets, liabs fixedpoint.Value, err error) {
	for _, bal := range acct.ActiveBalances() {
		a, l, err := CalcWeightedBalanceValue(lookup, bal, req)
		if err != nil {
			return fixedpoint.Zero, fixedpoint.Zero, err
		}
		assets = assets.Add(a)
		liabs = liabs.Add(l)
	}
	return assets, liabs, nil
}

// HasLiabilities reports whether acct carries any active liability balance.
func HasLiabilities(acct *LendingAccount) bool {
	for _, b := range acct.ActiveBalances() {
		if b.Side() == BalanceSideLiabilities {
			return true
		}
	}
	return false
}

// IsLiquidatable reports whether acct's maintenance-weighted liabilities
// exceed its maintenance-weighted assets (spec §4.1's eligibility rule).
func IsLiquidatable(lookup BankLookup, acct *LendingAccount) (bool, error) {
	assets, liabs, err := AccountHealth(lookup, acct, RequirementMaintenance)
	if err != nil {
		return false, err
	}
	return liabs.GreaterThan(assets), nil
}

// FreeCollateral is max(0, weighted_assets_init - weighted_liabs_init)
// (spec §4.6.4, GLOSSARY).
func FreeCollateral(lookup BankLookup, acct *LendingAccount) (fixedpoint.Value, error) {
	assets, liabs, err := AccountHealth(lookup, acct, RequirementInitial)
	if err != nil {
		return fixedpoint.Zero, err
	}
	return fixedpoint.MaxZero(assets.Sub(liabs)), nil
}

// MaxWithdraw computes the maximum native amount withdrawable from an
// assets-side balance without breaching free collateral, and whether the
// withdrawal would be total (spec §4.6.4).
func MaxWithdraw(bank *Bank, balance Balance, freeCollateral fixedpoint.Value) (amount fixedpoint.Value, withdrawAll bool, err error) {
	if balance.Side() != BalanceSideAssets {
		return fixedpoint.Zero, false, nil
	}
	value, err := CalcWeightedAssetValue(bank, balance.AssetShares, RequirementInitial)
	if err != nil {
		return fixedpoint.Zero, false, err
	}
	capped := fixedpoint.Min(value, freeCollateral)
	native, err := CalcAmountFromValue(bank, capped, RequirementInitial, BalanceSideAssets)
	if err != nil {
		return fixedpoint.Zero, false, err
	}
	return native, value.LessThanOrEqual(freeCollateral), nil
}

// MaxBorrow computes the maximum additional native liability amount that
// may be drawn against bank without breaching free collateral (spec
// §4.6.4). existingAsset is the liquidator's current asset-side balance on
// this same bank, if any (BalanceSideInactive if none).
func MaxBorrow(bank *Bank, existingAsset Balance, freeCollateral fixedpoint.Value) (fixedpoint.Value, error) {
	var assetValueHere fixedpoint.Value
	var existingNativeAsset fixedpoint.Value
	if existingAsset.Side() == BalanceSideAssets {
		v, err := CalcWeightedAssetValue(bank, existingAsset.AssetShares, RequirementInitial)
		if err != nil {
			return fixedpoint.Zero, err
		}
		assetValueHere = v
		existingNativeAsset = existingAsset.AssetShares
	}

	untied := fixedpoint.Min(freeCollateral, assetValueHere)
	remaining := freeCollateral.Sub(untied)

	if bank.OracleAdapter == nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s has no oracle adapter", bank.Address)
	}
	priceLow, err := bank.OracleAdapter.PriceOfType(OraclePriceTypeOf(RequirementInitial), PriceBiasLow)
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s price: %w", bank.Address, err)
	}
	priceHigh, err := bank.OracleAdapter.PriceOfType(OraclePriceTypeOf(RequirementInitial), PriceBiasHigh)
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("marginfi: bank %s price: %w", bank.Address, err)
	}

	liabWeightInit := bank.Config.LiabilityWeightInit
	assetWeightInit := bank.Config.AssetWeightInit

	var uiAmount fixedpoint.Value
	secondTerm := remaining.Div(priceHigh.Mul(liabWeightInit))
	if assetWeightInit.IsZero() {
		// Non-collateral bank: only the second term applies (spec
		// §4.6.4 / §8 boundary behavior).
		uiAmount = secondTerm
	} else {
		firstTerm := untied.Div(priceLow.Mul(assetWeightInit))
		uiAmount = firstTerm.Add(secondTerm)
	}

	native := fixedpoint.ScaleByDecimals(uiAmount, int32(bank.MintDecimals))
	return native.Add(existingNativeAsset), nil
}

// LiquidationCandidate names the (asset_bank, liability_bank) pair chosen
// for a liquidation and the sizing results derived from it.
type LiquidationCandidate struct {
	AssetBank         solana.PublicKey
	LiabilityBank     solana.PublicKey
	MaxAssetAmount    fixedpoint.Value // native units of AssetBank's mint
	ExpectedProfitUSD fixedpoint.Value
}

// SelectLiquidationBanks picks the (asset_bank, liability_bank) pair for a
// target account using the deterministic tie-break spec §4.6.5 specifies:
// highest asset USD on side assets, highest liability USD on side
// liabilities (both compared at equity/unweighted valuation, since the
// spec does not tie the tie-break to a weighted requirement).
func SelectLiquidationBanks(lookup BankLookup, target *LendingAccount) (assetBank, liabBank solana.PublicKey, err error) {
	var bestAssetUSD, bestLiabUSD fixedpoint.Value
	var haveAsset, haveLiab bool

	for _, bal := range target.ActiveBalances() {
		bank, ok := lookup(bal.BankAddress)
		if !ok {
			continue
		}
		switch bal.Side() {
		case BalanceSideAssets:
			v, verr := CalcWeightedAssetValue(bank, bal.AssetShares, RequirementEquity)
			if verr != nil {
				continue
			}
			if !haveAsset || v.GreaterThan(bestAssetUSD) {
				bestAssetUSD, assetBank, haveAsset = v, bal.BankAddress, true
			}
		case BalanceSideLiabilities:
			v, verr := CalcWeightedLiabilityValue(bank, bal.LiabilityShares, RequirementEquity)
			if verr != nil {
				continue
			}
			if !haveLiab || v.GreaterThan(bestLiabUSD) {
				bestLiabUSD, liabBank, haveLiab = v, bal.BankAddress, true
			}
		}
	}

	if !haveAsset || !haveLiab {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("marginfi: account %s has no liquidatable asset/liability pair", target.Address)
	}
	return assetBank, liabBank, nil
}

// ComputeMaxLiquidatableAssetAmount derives the asset amount (native units
// of assetBank's mint) whose seizure at the protocol's liquidation
// discount restores target's maintenance health to zero, clamped to the
// target's actual holdings in assetBank (spec §4.6.5), along with the
// expected USD profit of seizing that amount.
func ComputeMaxLiquidatableAssetAmount(lookup BankLookup, target *LendingAccount, assetBankAddr, liabBankAddr solana.PublicKey) (LiquidationCandidate, error) {
	assetBank, ok := lookup(assetBankAddr)
	if !ok {
		return LiquidationCandidate{}, fmt.Errorf("marginfi: unknown asset bank %s", assetBankAddr)
	}
	liabBank, ok := lookup(liabBankAddr)
	if !ok {
		return LiquidationCandidate{}, fmt.Errorf("marginfi: unknown liability bank %s", liabBankAddr)
	}

	assets, liabs, err := AccountHealth(lookup, target, RequirementMaintenance)
	if err != nil {
		return LiquidationCandidate{}, err
	}
	deficit := liabs.Sub(assets)
	if deficit.LessThanOrEqual(fixedpoint.Zero) {
		return LiquidationCandidate{AssetBank: assetBankAddr, LiabilityBank: liabBankAddr}, nil
	}

	assetWeightMaint := assetBank.Config.Weight(RequirementMaintenance, BalanceSideAssets)
	liabWeightMaint := liabBank.Config.Weight(RequirementMaintenance, BalanceSideLiabilities)

	onePlusDiscount := fixedpoint.One.Add(liquidationDiscount)
	denominator := liabWeightMaint.Sub(onePlusDiscount.Mul(assetWeightMaint))
	if denominator.LessThanOrEqual(fixedpoint.Zero) {
		// Degenerate weight configuration: liquidation cannot restore
		// health by seizing this pair. Treat as non-liquidatable
		// rather than divide into a nonsensical negative amount.
		return LiquidationCandidate{AssetBank: assetBankAddr, LiabilityBank: liabBankAddr}, nil
	}

	repaidUSD := deficit.Div(denominator)
	collateralUSD := repaidUSD.Mul(onePlusDiscount)

	assetAmount, err := CalcAmountFromValue(assetBank, collateralUSD, RequirementMaintenance, BalanceSideAssets)
	if err != nil {
		return LiquidationCandidate{}, err
	}

	if bal, ok := target.BalanceForBank(assetBankAddr); ok && bal.Side() == BalanceSideAssets {
		assetAmount = fixedpoint.Min(assetAmount, bal.AssetShares)
	} else {
		assetAmount = fixedpoint.Zero
	}

	profit := repaidUSD.Mul(liquidationDiscount)

	return LiquidationCandidate{
		AssetBank:         assetBankAddr,
		LiabilityBank:     liabBankAddr,
		MaxAssetAmount:    assetAmount,
		ExpectedProfitUSD: profit,
	}, nil
}
