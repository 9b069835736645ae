// Package telemetry persists executed liquidations and rebalance swaps to
// ClickHouse for offline analysis, alongside the bot's structured logs.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

// LiquidationEvent records one executed (or attempted) liquidation.
type LiquidationEvent struct {
	Signature         string
	Timestamp         time.Time
	LiquidateeAccount string
	AssetBank         string
	LiabilityBank     string
	AssetAmount       float64
	LiabilityRepaid   float64
	ProfitUSD         float64
	Success           bool
	Error             string
}

// RebalanceSwapEvent records one swap executed during the rebalance phase.
type RebalanceSwapEvent struct {
	Signature  string
	Timestamp  time.Time
	InputMint  string
	OutputMint string
	InAmount   float64
	OutAmount  float64
	Success    bool
	Error      string
}

// Sink writes telemetry events to ClickHouse.
type Sink struct {
	conn driver.Conn
	log  *logrus.Logger
}

// NewSink connects to ClickHouse at addr/database, the same
// Open-then-Ping pattern used elsewhere for this driver.
func NewSink(addr, database, username, password string, log *logrus.Logger) (*Sink, error) {
	if log == nil {
		log = logrus.New()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("telemetry: ping clickhouse: %w", err)
	}

	log.Info("telemetry: connected to clickhouse")
	return &Sink{conn: conn, log: log}, nil
}

// RecordLiquidation inserts a liquidation event. A write failure is
// logged and swallowed: telemetry is never allowed to affect the
// liquidation decision path (spec §7's error-kind boundaries only cover
// the protocol/RPC surface, not the observability sink).
func (s *Sink) RecordLiquidation(ctx context.Context, ev LiquidationEvent) {
	query := `
		INSERT INTO liquidations (
			signature, timestamp, liquidatee_account, asset_bank, liability_bank,
			asset_amount, liability_repaid, profit_usd, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		ev.Signature, ev.Timestamp, ev.LiquidateeAccount, ev.AssetBank, ev.LiabilityBank,
		ev.AssetAmount, ev.LiabilityRepaid, ev.ProfitUSD, ev.Success, ev.Error,
	)
	if err != nil {
		s.log.WithError(err).Warn("telemetry: failed to record liquidation event")
	}
}

// RecordRebalanceSwap inserts a rebalance-swap event, same swallow-on-error
// policy as RecordLiquidation.
func (s *Sink) RecordRebalanceSwap(ctx context.Context, ev RebalanceSwapEvent) {
	query := `
		INSERT INTO rebalance_swaps (
			signature, timestamp, input_mint, output_mint, in_amount, out_amount, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		ev.Signature, ev.Timestamp, ev.InputMint, ev.OutputMint, ev.InAmount, ev.OutAmount, ev.Success, ev.Error,
	)
	if err != nil {
		s.log.WithError(err).Warn("telemetry: failed to record rebalance swap event")
	}
}

// Close releases the underlying ClickHouse connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}
