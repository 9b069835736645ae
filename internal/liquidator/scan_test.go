package liquidator

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

func candidateWithProfit(profit string) scoredCandidate {
	return scoredCandidate{
		account: marginfi.LendingAccount{Address: solana.NewWallet().PublicKey()},
		candidate: marginfi.LiquidationCandidate{
			ExpectedProfitUSD: fixedpoint.MustFromString(profit),
		},
	}
}

func TestSelectMostProfitablePicksTheMaximum(t *testing.T) {
	low := candidateWithProfit("1.5")
	high := candidateWithProfit("42.0")
	mid := candidateWithProfit("10")

	best := selectMostProfitable([]scoredCandidate{low, high, mid})

	assert.True(t, best.account.Address.Equals(high.account.Address))
	assert.True(t, best.candidate.ExpectedProfitUSD.Equal(fixedpoint.MustFromString("42.0")))
}

func TestSelectMostProfitableSingleCandidate(t *testing.T) {
	only := candidateWithProfit("5")
	best := selectMostProfitable([]scoredCandidate{only})
	assert.True(t, best.account.Address.Equals(only.account.Address))
}
