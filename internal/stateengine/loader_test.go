package stateengine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls      int32
	failFirstN int32
}

func (f *fakeFetcher) GetMultipleAccounts(_ context.Context, addresses []solana.PublicKey) ([]*AccountInfo, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failFirstN {
		return nil, fmt.Errorf("transient rpc error")
	}
	out := make([]*AccountInfo, len(addresses))
	for i, addr := range addresses {
		out[i] = &AccountInfo{Pubkey: addr, Lamports: 1}
	}
	return out, nil
}

func TestBatchGetMultipleAccountsPreservesOrder(t *testing.T) {
	addrs := make([]solana.PublicKey, 250)
	for i := range addrs {
		addrs[i] = solana.NewWallet().PublicKey()
	}

	results, err := BatchGetMultipleAccounts(context.Background(), &fakeFetcher{}, addrs, BatchLoadingConfig{MaxBatchSize: 10, MaxConcurrentCalls: 4}, nil)
	require.NoError(t, err)
	require.Len(t, results, len(addrs))
	for i, r := range results {
		require.NotNil(t, r)
		assert.True(t, r.Pubkey.Equals(addrs[i]), "result %d out of order", i)
	}
}

func TestBatchGetMultipleAccountsRetriesTransientErrors(t *testing.T) {
	addrs := []solana.PublicKey{solana.NewWallet().PublicKey()}
	fetcher := &fakeFetcher{failFirstN: 2}

	results, err := BatchGetMultipleAccounts(context.Background(), fetcher, addrs, BatchLoadingConfig{MaxBatchSize: 100, MaxConcurrentCalls: 64}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, fetcher.calls, int32(2))
}

func TestBatchGetMultipleAccountsRejectsInvalidConfig(t *testing.T) {
	_, err := BatchGetMultipleAccounts(context.Background(), &fakeFetcher{}, nil, BatchLoadingConfig{}, nil)
	require.Error(t, err)
}
