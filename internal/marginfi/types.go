// Package marginfi implements the protocol's risk-weighted valuation model:
// banks, oracle-derived prices, lending-account balances, and the formulas
// that turn raw amounts into USD-denominated collateral and liability
// figures. It mirrors the shape of the on-chain lending program's account
// layout closely enough to deserialize its accounts, but owns no RPC or
// transport concerns of its own.
package marginfi

import (
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
)

// RiskTier classifies how a bank's deposits count toward collateral.
type RiskTier int

const (
	RiskTierCollateral RiskTier = iota
	RiskTierIsolated
)

// BalanceSide is which leg of a balance carries a non-zero share count.
type BalanceSide int

const (
	// BalanceSideInactive means the balance has neither assets nor
	// liabilities and does not participate in valuation.
	BalanceSideInactive BalanceSide = iota
	BalanceSideAssets
	BalanceSideLiabilities
)

// RequirementType selects which weight/bias pair a valuation uses.
type RequirementType int

const (
	// RequirementInitial is the strictest tier, used when opening a new
	// position or withdrawing (free collateral, max borrow/withdraw).
	RequirementInitial RequirementType = iota
	// RequirementMaintenance determines liquidation eligibility.
	RequirementMaintenance
	// RequirementEquity is raw, unweighted valuation used for the bot's
	// own inventory accounting (dust checks, rebalance predicate).
	RequirementEquity
)

// OraclePriceType selects which of the oracle's two price series to read.
type OraclePriceType int

const (
	OraclePriceRealTime OraclePriceType = iota
	OraclePriceTimeWeighted
)

// PriceBias picks the conservative side of an oracle's confidence
// interval, or the midpoint.
type PriceBias int

const (
	PriceBiasNone PriceBias = iota
	PriceBiasLow
	PriceBiasHigh
)

// OraclePriceTypeOf maps a requirement type to the oracle series and bias
// convention it must be evaluated under, per spec §4.1:
//
//	maintenance -> real-time
//	initial     -> time-weighted
//	equity      -> real-time, no bias (midpoint)
func OraclePriceTypeOf(req RequirementType) OraclePriceType {
	switch req {
	case RequirementInitial:
		return OraclePriceTimeWeighted
	default:
		return OraclePriceRealTime
	}
}

// InitialDiscount describes a bank's optional initial-asset-weight
// discount curve: once the bank's total weighted asset USD value exceeds
// TotalAssetValueInitLimit, the initial asset weight is multiplied by
// DiscountRatio rather than used at face value.
type InitialDiscount struct {
	TotalAssetValueInitLimit fixedpoint.Value
	DiscountRatio            fixedpoint.Value
}

// BankConfig carries the weights, oracle wiring, and risk classification
// of a Bank.
type BankConfig struct {
	AssetWeightInit      fixedpoint.Value
	AssetWeightMaint     fixedpoint.Value
	LiabilityWeightInit  fixedpoint.Value
	LiabilityWeightMaint fixedpoint.Value
	RiskTier             RiskTier
	OracleKeys           []solana.PublicKey
	Discount             *InitialDiscount // nil if the bank has no discount curve
}

// Weight returns the configured weight for (requirement, side). Equity is
// always raw and unweighted, regardless of side: it exists for inventory
// valuation, not collateralization math.
func (c BankConfig) Weight(req RequirementType, side BalanceSide) fixedpoint.Value {
	if req == RequirementEquity {
		return fixedpoint.One
	}
	switch side {
	case BalanceSideAssets:
		if req == RequirementInitial {
			return c.AssetWeightInit
		}
		return c.AssetWeightMaint
	case BalanceSideLiabilities:
		if req == RequirementInitial {
			return c.LiabilityWeightInit
		}
		return c.LiabilityWeightMaint
	default:
		return fixedpoint.One
	}
}

// Bank is a per-asset lending pool.
type Bank struct {
	Address       solana.PublicKey
	Mint          solana.PublicKey
	MintDecimals  uint8
	Config        BankConfig
	OracleAddress solana.PublicKey

	// TotalAssetUSD is the bank's total weighted asset value, used only to
	// evaluate the initial-discount threshold. Neither the bank decoder nor
	// the state engine sets it, so it stays zero unless a caller fills it
	// in, and the initial discount is then never applied.
	TotalAssetUSD fixedpoint.Value

	// OracleAdapter is re-derived on every oracle update and swapped in
	// whole, never mutated in place (spec §9: "replace it rather than
	// patch it, to avoid torn state").
	OracleAdapter OracleAdapter
}

// OracleAdapter exposes conservatively-biased prices derived from a raw
// oracle account. Implementations must be safe to call concurrently;
// PriceOfType never mutates adapter state.
type OracleAdapter interface {
	PriceOfType(kind OraclePriceType, bias PriceBias) (fixedpoint.Value, error)
}

// Balance is one leg of a lending account's position against a single bank.
type Balance struct {
	BankAddress     solana.PublicKey
	AssetShares     fixedpoint.Value
	LiabilityShares fixedpoint.Value
	Active          bool
}

// Side reports which leg of the balance is non-zero. Per spec §3's
// invariant, at most one of AssetShares/LiabilityShares is ever non-zero.
func (b Balance) Side() BalanceSide {
	switch {
	case !b.Active:
		return BalanceSideInactive
	case b.AssetShares.IsPositive():
		return BalanceSideAssets
	case b.LiabilityShares.IsPositive():
		return BalanceSideLiabilities
	default:
		return BalanceSideInactive
	}
}

// MaxBalances bounds the fixed-capacity balance list carried by a lending
// account, matching the on-chain account layout's fixed array size.
const MaxBalances = 16

// LendingAccount is a user position: up to MaxBalances balances across
// banks, each on at most one side.
type LendingAccount struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Balances [MaxBalances]Balance
}

// ActiveBalances returns the subset of Balances currently in use.
func (a *LendingAccount) ActiveBalances() []Balance {
	out := make([]Balance, 0, MaxBalances)
	for _, b := range a.Balances {
		if b.Active {
			out = append(out, b)
		}
	}
	return out
}

// BalanceForBank returns the account's balance against bank, if any.
func (a *LendingAccount) BalanceForBank(bank solana.PublicKey) (Balance, bool) {
	for _, b := range a.Balances {
		if b.Active && b.BankAddress.Equals(bank) {
			return b, true
		}
	}
	return Balance{}, false
}
