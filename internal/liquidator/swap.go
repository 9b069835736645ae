package liquidator

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/jupiter"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/sender"
	"github.com/aman-zulfiqar/marginfi-liquidator/internal/telemetry"
)

// executeSwap implements spec §4.4's full swap client adapter contract:
// quote, build, deserialize, rewrite blockhash, re-sign, submit. Failures
// here are retryable by the processor at its next rebalance cycle, not
// retried inside this call (spec §4.4's last line).
func (p *Processor) executeSwap(ctx context.Context, srcMint, dstMint solana.PublicKey, nativeAmount uint64) (string, error) {
	slippage := uint16(p.cfg.SlippageBps)
	quote, err := p.jup.Quote(ctx, jupiter.QuoteRequest{
		InputMint:   srcMint.String(),
		OutputMint:  dstMint.String(),
		Amount:      strconv.FormatUint(nativeAmount, 10),
		SlippageBps: &slippage,
		SwapMode:    "ExactIn",
	})
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: jupiter quote: %w", err)
	}

	swapResp, err := p.jup.Swap(ctx, jupiter.SwapRequest{
		QuoteResponse:                 *quote,
		UserPublicKey:                 p.wallet.PublicKey().String(),
		ComputeUnitPriceMicroLamports: p.cfg.ComputeUnitPriceUL,
	})
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: jupiter swap: %w", err)
	}

	txBytes, err := base64.StdEncoding.DecodeString(swapResp.SwapTransaction)
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromBytes(txBytes)
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: parse swap transaction: %w", err)
	}

	recentBlockhash, err := p.wallet.GetLatestBlockhash(ctx, "processed")
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: fetch blockhash for swap: %w", err)
	}
	tx.Message.RecentBlockhash = recentBlockhash

	if err := p.wallet.SignTx(tx); err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: sign swap transaction: %w", err)
	}

	sig, err := sender.AggressiveSend(ctx, p.wallet, tx, recentBlockhash, p.senderCfg, p.log)
	if err != nil {
		p.recordSwapOutcome(srcMint, dstMint, nativeAmount, 0, false, err)
		return "", fmt.Errorf("liquidator: submit swap transaction: %w", err)
	}

	outAmount, _ := strconv.ParseFloat(quote.OutAmount, 64)
	p.recordSwapOutcome(srcMint, dstMint, nativeAmount, outAmount, true, nil)
	return sig, nil
}

func (p *Processor) recordSwapOutcome(srcMint, dstMint solana.PublicKey, inAmount uint64, outAmount float64, success bool, err error) {
	if p.telemetry == nil {
		return
	}
	ev := telemetry.RebalanceSwapEvent{
		Timestamp:  time.Now(),
		InputMint:  srcMint.String(),
		OutputMint: dstMint.String(),
		InAmount:   float64(inAmount),
		OutAmount:  outAmount,
		Success:    success,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.telemetry.RecordRebalanceSwap(context.Background(), ev)
}
