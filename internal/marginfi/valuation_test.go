package marginfi

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
)

// fixedOracle returns the same price regardless of kind/bias; sufficient
// for tests that don't exercise the bias distinction.
type fixedOracle struct {
	price fixedpoint.Value
}

func (f fixedOracle) PriceOfType(OraclePriceType, PriceBias) (fixedpoint.Value, error) {
	return f.price, nil
}

func newTestBank(mint string, decimals uint8, price string, assetW, liabW fixedpoint.Value, tier RiskTier) *Bank {
	return &Bank{
		Address:      solana.NewWallet().PublicKey(),
		Mint:         solana.MustPublicKeyFromBase58(mint),
		MintDecimals: decimals,
		Config: BankConfig{
			AssetWeightInit:      assetW,
			AssetWeightMaint:     assetW,
			LiabilityWeightInit:  liabW,
			LiabilityWeightMaint: liabW,
			RiskTier:             tier,
		},
		OracleAdapter: fixedOracle{price: fixedpoint.MustFromString(price)},
	}
}

func TestIsolatedRiskTierAlwaysZeroAssetValue(t *testing.T) {
	bank := newTestBank("So11111111111111111111111111111111111111112", 9, "100", fixedpoint.One, fixedpoint.One, RiskTierIsolated)
	v, err := CalcWeightedAssetValue(bank, fixedpoint.FromUint(1_000_000_000), RequirementMaintenance)
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestAccountHealthLiquidationEligibility(t *testing.T) {
	sol := newTestBank("So11111111111111111111111111111111111111112", 9, "100", fixedpoint.MustFromString("0.9"), fixedpoint.One, RiskTierCollateral)
	usdc := newTestBank("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 6, "1", fixedpoint.One, fixedpoint.One, RiskTierCollateral)

	lookup := func(addr solana.PublicKey) (*Bank, bool) {
		switch {
		case addr.Equals(sol.Address):
			return sol, true
		case addr.Equals(usdc.Address):
			return usdc, true
		}
		return nil, false
	}

	acct := &LendingAccount{Address: solana.NewWallet().PublicKey()}
	acct.Balances[0] = Balance{BankAddress: sol.Address, AssetShares: fixedpoint.FromUint(10_000_000_000), Active: true}
	acct.Balances[1] = Balance{BankAddress: usdc.Address, LiabilityShares: fixedpoint.FromUint(950_000_000), Active: true}

	assets, liabs, err := AccountHealth(lookup, acct, RequirementMaintenance)
	require.NoError(t, err)
	assert.True(t, assets.Equal(fixedpoint.MustFromString("900")), "weighted assets: %s", assets)
	assert.True(t, liabs.Equal(fixedpoint.MustFromString("950")), "weighted liabs: %s", liabs)

	eligible, err := IsLiquidatable(lookup, acct)
	require.NoError(t, err)
	assert.True(t, eligible)
}

func TestFreeCollateralNeverNegative(t *testing.T) {
	usdc := newTestBank("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", 6, "1", fixedpoint.One, fixedpoint.One, RiskTierCollateral)
	lookup := func(solana.PublicKey) (*Bank, bool) { return usdc, true }

	acct := &LendingAccount{}
	acct.Balances[0] = Balance{BankAddress: usdc.Address, LiabilityShares: fixedpoint.FromUint(1_000_000), Active: true}

	fc, err := FreeCollateral(lookup, acct)
	require.NoError(t, err)
	assert.True(t, fc.IsZero())
}

func TestMaxBorrowZeroAssetWeightUsesSecondTermOnly(t *testing.T) {
	bank := &Bank{
		Address:      solana.NewWallet().PublicKey(),
		MintDecimals: 6,
		Config: BankConfig{
			AssetWeightInit:     fixedpoint.Zero,
			LiabilityWeightInit: fixedpoint.One,
		},
		OracleAdapter: fixedOracle{price: fixedpoint.MustFromString("1")},
	}
	freeCollateral := fixedpoint.MustFromString("100")
	amount, err := MaxBorrow(bank, Balance{}, freeCollateral)
	require.NoError(t, err)
	// (100 - 0) / (1 * 1) = 100 UI units -> 100_000_000 native at 6 decimals
	assert.True(t, amount.Equal(fixedpoint.FromUint(100_000_000)), "got %s", amount)
}

func TestDustBoundaryIsStrictlyGreaterThan(t *testing.T) {
	dustThreshold := fixedpoint.MustFromString("0.01")
	atThreshold := fixedpoint.MustFromString("0.01")
	aboveThreshold := fixedpoint.MustFromString("0.0100001")

	assert.False(t, atThreshold.GreaterThan(dustThreshold))
	assert.True(t, aboveThreshold.GreaterThan(dustThreshold))
}
