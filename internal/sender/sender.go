// Package sender implements the aggressive transaction submission loop
// (spec §4.5): resubmit a signed transaction on a fixed cadence while
// polling for confirmation, until it confirms, the deadline elapses, or
// the blockhash expires.
package sender

import (
	"context"
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/wallet"
)

// ErrBlockhashExpired is returned when the transaction's blockhash is no
// longer valid; the caller must rebuild and re-sign before retrying. The
// sender never mutates the transaction it was given.
var ErrBlockhashExpired = errors.New("sender: transaction blockhash expired")

// ErrDeadlineExceeded is returned when cfg.Deadline elapses with no
// confirmation.
var ErrDeadlineExceeded = errors.New("sender: confirmation deadline exceeded")

// Config bounds one aggressive-send attempt.
type Config struct {
	ResubmitInterval time.Duration // default 500ms
	Deadline         time.Duration
	Commitment       string // default "confirmed"
}

// DefaultConfig matches the standard resubmission cadence.
func DefaultConfig(deadline time.Duration) Config {
	return Config{ResubmitInterval: 500 * time.Millisecond, Deadline: deadline, Commitment: "confirmed"}
}

// AggressiveSend resubmits signedTx through w every cfg.ResubmitInterval
// while polling for confirmation, until it confirms, the deadline elapses
// (ErrDeadlineExceeded, fatal), or the blockhash goes stale
// (ErrBlockhashExpired, caller must rebuild and re-sign).
func AggressiveSend(ctx context.Context, w *wallet.Wallet, signedTx *solana.Transaction, blockhash solana.Hash, cfg Config, log *logrus.Logger) (string, error) {
	if cfg.ResubmitInterval <= 0 {
		cfg.ResubmitInterval = 500 * time.Millisecond
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if log == nil {
		log = logrus.New()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	ticker := time.NewTicker(cfg.ResubmitInterval)
	defer ticker.Stop()

	sendOpts := &wallet.SendOptions{SkipPreflight: true, PreflightCommitment: "processed"}

	var lastSig string
	sendOnce := func() {
		sig, err := w.SendTx(ctx, signedTx, sendOpts)
		if err != nil {
			log.WithError(err).Debug("aggressive send: resubmission failed, will retry")
			return
		}
		lastSig = sig
	}

	sendOnce()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrDeadlineExceeded
			}
			return "", ctx.Err()
		case <-ticker.C:
			if valid, err := w.IsBlockhashValid(ctx, blockhash); err == nil && !valid {
				return "", ErrBlockhashExpired
			}
			sendOnce()
			if lastSig == "" {
				continue
			}
			if err := w.ConfirmTransaction(ctx, lastSig, cfg.Commitment, cfg.ResubmitInterval); err == nil {
				return lastSig, nil
			}
		}
	}
}
