package stateengine

import (
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

// Anchor account discriminators are the first 8 bytes of
// sha256("account:<TypeName>"); this is the fixed convention every Anchor
// program (including the lending program this bot targets) follows, and
// is reproduced here directly since no Anchor Go SDK exists in the
// retrieved corpus to compute it for us.
func anchorAccountDiscriminator(typeName string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + typeName))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

var (
	bankDiscriminator            = anchorAccountDiscriminator("Bank")
	marginfiAccountDiscriminator = anchorAccountDiscriminator("MarginfiAccount")
)

// BankGroupOffset and MarginfiAccountGroupOffset pin the byte offsets spec
// §6 requires the getProgramAccounts memcmp filters to use. Everything
// before the group address in each wire struct is reserved/version bytes
// whose exact meaning belongs to the deployed program (out of scope per
// spec §1); only the offsets themselves are load-bearing.
const (
	BankGroupOffset            = 8 + 8 + 1 // discriminator + reserved u64 + bank-version byte
	MarginfiAccountDiscOffset  = 0
	MarginfiAccountGroupOffset = 8
)

// bankWire is the account's raw layout, decoded with borsh after the
// 8-byte discriminator is stripped off by the caller.
type bankWire struct {
	Reserved              uint64
	Version               uint8
	Group                 solana.PublicKey
	Mint                  solana.PublicKey
	MintDecimals          uint8
	AssetWeightInitMicro  int64
	AssetWeightMaintMicro int64
	LiabWeightInitMicro   int64
	LiabWeightMaintMicro  int64
	RiskTier              uint8
	OracleKeyCount        uint8
	OracleKeys            [5]solana.PublicKey
	HasDiscount           bool
	DiscountLimitMicro    int64
	DiscountRatioMicro    int64
}

const microScale = 1_000_000_000

func microToValue(micro int64) fixedpoint.Value {
	return fixedpoint.FromInt(micro).Div(fixedpoint.FromInt(microScale))
}

// DecodeBank parses a raw Bank account (including its 8-byte
// discriminator) into the domain model.
func DecodeBank(address solana.PublicKey, data []byte) (*marginfi.Bank, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("stateengine: bank account %s too short", address)
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != bankDiscriminator {
		return nil, fmt.Errorf("stateengine: bank account %s has wrong discriminator", address)
	}

	var w bankWire
	dec := bin.NewBorshDecoder(data[8:])
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("stateengine: decode bank %s: %w", address, err)
	}

	riskTier := marginfi.RiskTierCollateral
	if w.RiskTier == 1 {
		riskTier = marginfi.RiskTierIsolated
	}

	cfg := marginfi.BankConfig{
		AssetWeightInit:      microToValue(w.AssetWeightInitMicro),
		AssetWeightMaint:     microToValue(w.AssetWeightMaintMicro),
		LiabilityWeightInit:  microToValue(w.LiabWeightInitMicro),
		LiabilityWeightMaint: microToValue(w.LiabWeightMaintMicro),
		RiskTier:             riskTier,
		OracleKeys:           w.OracleKeys[:w.OracleKeyCount],
	}
	if w.HasDiscount {
		cfg.Discount = &marginfi.InitialDiscount{
			TotalAssetValueInitLimit: microToValue(w.DiscountLimitMicro),
			DiscountRatio:            microToValue(w.DiscountRatioMicro),
		}
	}

	bank := &marginfi.Bank{
		Address:      address,
		Mint:         w.Mint,
		MintDecimals: w.MintDecimals,
		Config:       cfg,
	}
	if len(cfg.OracleKeys) > 0 {
		bank.OracleAddress = cfg.OracleKeys[0]
	}
	return bank, nil
}

// marginfiAccountWire mirrors LendingAccount's on-wire shape: a group
// address at the spec-pinned offset, an owner, and a fixed-size balance
// array.
type marginfiAccountWire struct {
	Group    solana.PublicKey
	Owner    solana.PublicKey
	Balances [marginfi.MaxBalances]balanceWire
}

type balanceWire struct {
	Active           bool
	BankAddress      solana.PublicKey
	AssetSharesMicro int64
	LiabSharesMicro  int64
}

// DecodeMarginfiAccount parses a raw MarginfiAccount account (including
// its 8-byte discriminator) into the domain model.
func DecodeMarginfiAccount(address solana.PublicKey, data []byte) (*marginfi.LendingAccount, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("stateengine: marginfi account %s too short", address)
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != marginfiAccountDiscriminator {
		return nil, fmt.Errorf("stateengine: marginfi account %s has wrong discriminator", address)
	}

	var w marginfiAccountWire
	dec := bin.NewBorshDecoder(data[8:])
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("stateengine: decode marginfi account %s: %w", address, err)
	}

	acct := &marginfi.LendingAccount{Address: address, Owner: w.Owner}
	for i, b := range w.Balances {
		acct.Balances[i] = marginfi.Balance{
			BankAddress:     b.BankAddress,
			AssetShares:     microToValue(b.AssetSharesMicro),
			LiabilityShares: microToValue(b.LiabSharesMicro),
			Active:          b.Active,
		}
	}
	return acct, nil
}
