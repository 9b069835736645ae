package stateengine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

// ProgramAccountLister is the subset of the RPC client the engine needs to
// discover banks and lending accounts by memcmp filter (spec §6: "banks are
// listed via getProgramAccounts with a group-address memcmp filter at
// offset 8+8+1; lending accounts are listed with a discriminator filter at
// offset 0 and a group-address filter at offset 8").
type ProgramAccountLister interface {
	GetProgramAccountsByMemcmp(ctx context.Context, programID solana.PublicKey, filters []MemcmpFilter) ([]*AccountInfo, error)
}

// MemcmpFilter mirrors the getProgramAccounts memcmp filter shape: match
// bytes at a byte offset into the account's data.
type MemcmpFilter struct {
	Offset int
	Bytes  []byte
}

// OracleAdapterFactory builds a concrete OracleAdapter from a raw oracle
// account update. Supplied by the caller so the engine stays agnostic to
// which oracle program (Pyth, Switchboard, ...) backs any given bank.
type OracleAdapterFactory func(info *AccountInfo) (marginfi.OracleAdapter, error)

// Config bundles everything the engine needs to bootstrap and run.
type Config struct {
	ProgramID     solana.PublicKey
	GroupAddress  solana.PublicKey
	Fetcher       AccountFetcher
	Lister        ProgramAccountLister
	OracleFactory OracleAdapterFactory
	BatchConfig   BatchLoadingConfig
	Log           *logrus.Logger
}

// Engine is the state engine: the concurrent maps of banks, oracles,
// lending accounts, and token accounts the rest of the bot reads from, kept
// current by HandleUpdate as raw account updates arrive off the streaming
// feed (spec §4.2).
type Engine struct {
	programID    solana.PublicKey
	groupAddress solana.PublicKey
	fetcher      AccountFetcher
	lister       ProgramAccountLister
	batchConfig  BatchLoadingConfig
	log          *logrus.Logger

	oracleFactory OracleAdapterFactory

	banks            *Map[solana.PublicKey, marginfi.Bank]
	trackedOracles   *Set[solana.PublicKey]
	marginfiAccounts *Map[solana.PublicKey, marginfi.LendingAccount]

	tokenAccounts        *Map[solana.PublicKey, TokenAccount]
	trackedTokenAccounts *Set[solana.PublicKey]

	// updates is the single-slot coalescing notification channel (spec
	// §5): a full buffer means a scan is already queued, so further
	// notifications are dropped rather than blocking.
	updates chan struct{}

	liquidatorWallet solana.PublicKey
}

// New constructs an Engine. Call Start to populate it before using it.
func New(cfg Config) *Engine {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	batchCfg := cfg.BatchConfig
	if batchCfg.MaxBatchSize == 0 {
		batchCfg = DefaultBatchLoadingConfig
	}

	return &Engine{
		programID:            cfg.ProgramID,
		groupAddress:         cfg.GroupAddress,
		fetcher:              cfg.Fetcher,
		lister:               cfg.Lister,
		batchConfig:          batchCfg,
		log:                  log,
		oracleFactory:        cfg.OracleFactory,
		banks:                NewMap[solana.PublicKey, marginfi.Bank](),
		trackedOracles:       NewSet[solana.PublicKey](),
		marginfiAccounts:     NewMap[solana.PublicKey, marginfi.LendingAccount](),
		tokenAccounts:        NewMap[solana.PublicKey, TokenAccount](),
		trackedTokenAccounts: NewSet[solana.PublicKey](),
		updates:              make(chan struct{}, 1),
	}
}

// Updates returns the channel the liquidator processor's main loop drains:
// one pending slot, coalesced (spec §4.6's `while update_rx.recv()`).
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Start runs the five-step bootstrap sequence from spec §4.2: list banks,
// batch-load their oracles, build the bank/oracle maps, derive and
// batch-load the liquidator's token accounts, then list and batch-load
// every lending account in the group. Any failure here is fatal setup
// error (spec §7): the engine is useless half-built.
func (e *Engine) Start(ctx context.Context, liquidatorWallet solana.PublicKey) error {
	e.liquidatorWallet = liquidatorWallet
	if err := e.loadBanks(ctx); err != nil {
		return fmt.Errorf("stateengine: load banks: %w", err)
	}
	if err := e.loadOracles(ctx); err != nil {
		return fmt.Errorf("stateengine: load oracles: %w", err)
	}
	if err := e.loadTokenAccounts(ctx, liquidatorWallet); err != nil {
		return fmt.Errorf("stateengine: load token accounts: %w", err)
	}
	if err := e.loadMarginfiAccounts(ctx); err != nil {
		return fmt.Errorf("stateengine: load marginfi accounts: %w", err)
	}
	return nil
}

func (e *Engine) loadBanks(ctx context.Context) error {
	filters := []MemcmpFilter{{Offset: BankGroupOffset, Bytes: e.groupAddress.Bytes()}}
	infos, err := e.lister.GetProgramAccountsByMemcmp(ctx, e.programID, filters)
	if err != nil {
		return err
	}

	for _, info := range infos {
		bank, err := DecodeBank(info.Pubkey, info.Data)
		if err != nil {
			e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("skipping malformed bank account during bootstrap")
			continue
		}
		e.banks.LoadOrStore(info.Pubkey, *bank)
		for _, oracleKey := range bank.Config.OracleKeys {
			e.trackedOracles.Add(oracleKey)
		}
	}

	e.log.WithField("count", e.banks.Len()).Info("loaded banks")
	return nil
}

func (e *Engine) loadOracles(ctx context.Context) error {
	addresses := e.trackedOracles.Keys()
	infos, err := BatchGetMultipleAccounts(ctx, e.fetcher, addresses, e.batchConfig, e.log)
	if err != nil {
		return err
	}

	adapters := make(map[solana.PublicKey]marginfi.OracleAdapter, len(infos))
	for i, info := range infos {
		if info == nil {
			e.log.WithField("pubkey", addresses[i]).Warn("oracle account missing on chain")
			continue
		}
		adapter, err := e.oracleFactory(info)
		if err != nil {
			e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("skipping malformed oracle during bootstrap")
			continue
		}
		adapters[info.Pubkey] = adapter
	}

	e.banks.Range(func(addr solana.PublicKey, entry *Entry[marginfi.Bank]) bool {
		entry.Write(func(v *marginfi.Bank) {
			if adapter, ok := adapters[v.OracleAddress]; ok {
				v.OracleAdapter = adapter
			}
		})
		return true
	})

	return nil
}

func (e *Engine) loadTokenAccounts(ctx context.Context, liquidatorWallet solana.PublicKey) error {
	mints := make([]solana.PublicKey, 0, e.banks.Len())
	e.banks.Range(func(_ solana.PublicKey, entry *Entry[marginfi.Bank]) bool {
		mints = append(mints, entry.Snapshot().Mint)
		return true
	})

	atas := make([]solana.PublicKey, len(mints))
	for i, mint := range mints {
		ata, _, err := solana.FindAssociatedTokenAddress(liquidatorWallet, mint)
		if err != nil {
			return fmt.Errorf("derive ATA for mint %s: %w", mint, err)
		}
		atas[i] = ata
		e.trackedTokenAccounts.Add(ata)
	}

	infos, err := BatchGetMultipleAccounts(ctx, e.fetcher, atas, e.batchConfig, e.log)
	if err != nil {
		return err
	}

	for _, info := range infos {
		if info == nil {
			continue
		}
		account, err := decodeTokenAccount(info.Pubkey, info.Data)
		if err != nil {
			e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("skipping malformed token account during bootstrap")
			continue
		}
		e.tokenAccounts.LoadOrStore(info.Pubkey, *account)
	}

	e.log.WithField("count", e.tokenAccounts.Len()).Info("loaded token accounts")
	return nil
}

func (e *Engine) loadMarginfiAccounts(ctx context.Context) error {
	filters := []MemcmpFilter{
		{Offset: MarginfiAccountDiscOffset, Bytes: marginfiAccountDiscriminator[:]},
		{Offset: MarginfiAccountGroupOffset, Bytes: e.groupAddress.Bytes()},
	}
	infos, err := e.lister.GetProgramAccountsByMemcmp(ctx, e.programID, filters)
	if err != nil {
		return err
	}

	for _, info := range infos {
		account, err := DecodeMarginfiAccount(info.Pubkey, info.Data)
		if err != nil {
			e.log.WithError(err).WithField("pubkey", info.Pubkey).Warn("skipping malformed marginfi account during bootstrap")
			continue
		}
		e.marginfiAccounts.LoadOrStore(info.Pubkey, *account)
	}

	e.log.WithField("count", e.marginfiAccounts.Len()).Info("loaded marginfi accounts")
	return nil
}

// Reconcile re-runs the full bootstrap sequence against the RPC client,
// correcting any drift the streaming feed missed (spec §1: "kept fresh by
// a streaming account-update feed with periodic RPC reconciliation").
// Safe to call repeatedly; each call fully re-lists and re-loads.
func (e *Engine) Reconcile(ctx context.Context) error {
	if err := e.Start(ctx, e.liquidatorWallet); err != nil {
		return err
	}
	// Start's loaders write straight into the maps via LoadOrStore rather
	// than through updateBank/updateOracle/updateTokenAccount/
	// updateMarginfiAccount, so reconciliation never signals those paths'
	// notifyUpdate calls on its own. A reconcile pass exists precisely to
	// correct drift the streaming feed missed, so it must wake the scan
	// loop itself.
	e.notifyUpdate()
	return nil
}

// TrackedOracles returns every oracle address the engine currently
// expects updates for, for building the streaming subscription filter.
func (e *Engine) TrackedOracles() []solana.PublicKey {
	return e.trackedOracles.Keys()
}

// TrackedTokenAccounts returns every token-account address the engine
// currently expects updates for.
func (e *Engine) TrackedTokenAccounts() []solana.PublicKey {
	return e.trackedTokenAccounts.Keys()
}

// ProgramID and GroupAddress expose the engine's configured program/group,
// for building the streaming subscription filter.
func (e *Engine) ProgramID() solana.PublicKey    { return e.programID }
func (e *Engine) GroupAddress() solana.PublicKey { return e.groupAddress }

// BankLookup returns a marginfi.BankLookup bound to this engine's current
// bank map, for handing to the valuation package.
func (e *Engine) BankLookup() marginfi.BankLookup {
	return func(address solana.PublicKey) (*marginfi.Bank, bool) {
		entry, ok := e.banks.Load(address)
		if !ok {
			return nil, false
		}
		bank := entry.Snapshot()
		return &bank, true
	}
}

// Banks returns a snapshot of every currently-known bank.
func (e *Engine) Banks() []marginfi.Bank {
	out := make([]marginfi.Bank, 0, e.banks.Len())
	e.banks.Range(func(_ solana.PublicKey, entry *Entry[marginfi.Bank]) bool {
		out = append(out, entry.Snapshot())
		return true
	})
	return out
}

// LendingAccounts returns a snapshot of every currently-known lending
// account.
func (e *Engine) LendingAccounts() []marginfi.LendingAccount {
	out := make([]marginfi.LendingAccount, 0, e.marginfiAccounts.Len())
	e.marginfiAccounts.Range(func(_ solana.PublicKey, entry *Entry[marginfi.LendingAccount]) bool {
		out = append(out, entry.Snapshot())
		return true
	})
	return out
}

// LendingAccount returns the current snapshot of a single lending account.
func (e *Engine) LendingAccount(address solana.PublicKey) (marginfi.LendingAccount, bool) {
	entry, ok := e.marginfiAccounts.Load(address)
	if !ok {
		return marginfi.LendingAccount{}, false
	}
	return entry.Snapshot(), true
}

// TokenAccount returns the current snapshot of a single token account.
func (e *Engine) TokenAccount(address solana.PublicKey) (TokenAccount, bool) {
	entry, ok := e.tokenAccounts.Load(address)
	if !ok {
		return TokenAccount{}, false
	}
	return entry.Snapshot(), true
}

// TokenAccounts returns a snapshot of every currently-known token account
// the liquidator holds.
func (e *Engine) TokenAccounts() []TokenAccount {
	out := make([]TokenAccount, 0, e.tokenAccounts.Len())
	e.tokenAccounts.Range(func(_ solana.PublicKey, entry *Entry[TokenAccount]) bool {
		out = append(out, entry.Snapshot())
		return true
	})
	return out
}
