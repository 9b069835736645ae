package stateengine

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/fixedpoint"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/marginfi"
)

// pythPriceWire is a reduced view of a Pyth price account: a fixed header
// this bot has no use for, followed by the aggregate (real-time) price and
// confidence and the exponentially-weighted-moving-average (time-weighted)
// price and confidence, all as a mantissa scaled by 10^Expo. No Pyth Go SDK
// exists in the retrieved corpus, so this layout is reproduced directly
// from the publicly documented account shape rather than imported.
type pythPriceWire struct {
	Magic     uint32
	Version   uint32
	AcctType  uint32
	Size      uint32
	PriceType uint32
	Expo      int32
	Reserved  [8]byte // padding to the aggregate fields
	AggPrice  int64
	AggConf   uint64
	EmaPrice  int64
	EmaConf   uint64
}

const pythPriceWireMinLen = 4*5 + 4 + 8 + 8 + 8 + 8 + 8

// PythOracleAdapter serves marginfi.OracleAdapter from a decoded Pyth price
// account. RealTime reads the aggregate price; TimeWeighted reads the EMA.
// PriceBiasLow/PriceBiasHigh shift by one confidence interval in the
// conservative direction; PriceBiasNone returns the unshifted price (the
// mantissa scaled by 10^Expo).
type PythOracleAdapter struct {
	address  solana.PublicKey
	expo     int32
	aggPrice int64
	aggConf  uint64
	emaPrice int64
	emaConf  uint64
}

// NewPythOracleAdapter is the stateengine.OracleAdapterFactory for Pyth
// price accounts.
func NewPythOracleAdapter(info *AccountInfo) (marginfi.OracleAdapter, error) {
	if len(info.Data) < pythPriceWireMinLen {
		return nil, fmt.Errorf("stateengine: oracle account %s too short for a Pyth price account", info.Pubkey)
	}

	var w pythPriceWire
	dec := bin.NewBinDecoder(info.Data)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("stateengine: decode oracle %s: %w", info.Pubkey, err)
	}

	return &PythOracleAdapter{
		address:  info.Pubkey,
		expo:     w.Expo,
		aggPrice: w.AggPrice,
		aggConf:  w.AggConf,
		emaPrice: w.EmaPrice,
		emaConf:  w.EmaConf,
	}, nil
}

func (a *PythOracleAdapter) scaled(mantissa int64, conf uint64) fixedpoint.Value {
	price := fixedpoint.FromInt(mantissa)
	if a.expo < 0 {
		price = price.Div(fixedpoint.FromInt(pow10Int64(-a.expo)))
	} else if a.expo > 0 {
		price = price.Mul(fixedpoint.FromInt(pow10Int64(a.expo)))
	}
	_ = conf
	return price
}

func pow10Int64(n int32) int64 {
	v := int64(1)
	for i := int32(0); i < n; i++ {
		v *= 10
	}
	return v
}

// PriceOfType implements marginfi.OracleAdapter.
func (a *PythOracleAdapter) PriceOfType(kind marginfi.OraclePriceType, bias marginfi.PriceBias) (fixedpoint.Value, error) {
	mantissa, conf := a.aggPrice, a.aggConf
	if kind == marginfi.OraclePriceTimeWeighted {
		mantissa, conf = a.emaPrice, a.emaConf
	}

	price := a.scaled(mantissa, conf)
	confValue := a.scaled(int64(conf), 0)

	switch bias {
	case marginfi.PriceBiasLow:
		return fixedpoint.MaxZero(price.Sub(confValue)), nil
	case marginfi.PriceBiasHigh:
		return price.Add(confValue), nil
	default:
		return price, nil
	}
}
