// Package stream implements the account-update streaming feed that keeps
// the state engine current, plus a periodic RPC reconciliation poller
// (spec §1, §5, §6).
package stream

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/stateengine"
)

// Handler is called once per account update received off the feed.
type Handler func(*stateengine.AccountInfo)

// FilterSource supplies the set of addresses/owners the subscription
// should track. *stateengine.Engine satisfies this.
type FilterSource interface {
	ProgramID() solana.PublicKey
	GroupAddress() solana.PublicKey
	TrackedOracles() []solana.PublicKey
	TrackedTokenAccounts() []solana.PublicKey
}

func decodePubkey(s string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(s)
}

// YellowstoneStream subscribes to an account-update websocket endpoint and
// decodes each frame into a stateengine.AccountInfo. Generalized from a
// transaction-subscribe client into a raw account-subscribe one: the same
// dial/subscribe/listen shape, applied to account updates instead of
// transaction mentions.
type YellowstoneStream struct {
	endpoint string
	xToken   string
	conn     *websocket.Conn
	log      *logrus.Logger
}

// NewYellowstoneStream constructs a stream bound to endpoint, authenticated
// with xToken if non-empty (spec §6: yellowstone_endpoint/yellowstone_x_token).
func NewYellowstoneStream(endpoint, xToken string, log *logrus.Logger) *YellowstoneStream {
	if log == nil {
		log = logrus.New()
	}
	return &YellowstoneStream{endpoint: endpoint, xToken: xToken, log: log}
}

// Connect dials the websocket and subscribes to updates for every bank and
// lending account owned by programID within groupAddress, plus the given
// oracle and token-account sets (spec §6's streaming feed filter).
func (s *YellowstoneStream) Connect(ctx context.Context, programID, groupAddress string, oracleAddresses, tokenAddresses []string) error {
	header := map[string][]string{}
	if s.xToken != "" {
		header["x-token"] = []string{s.xToken}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, header)
	if err != nil {
		return fmt.Errorf("stream: websocket dial: %w", err)
	}
	s.conn = conn

	accounts := append([]string{}, oracleAddresses...)
	accounts = append(accounts, tokenAddresses...)

	subscribeMsg := map[string]any{
		"accounts": map[string]any{
			"banks": map[string]any{"owner": []string{programID}, "filters": []map[string]any{
				{"memcmp": map[string]any{"offset": stateengine.BankGroupOffset, "base58": groupAddress}}}},
			"lending_accounts": map[string]any{"owner": []string{programID}, "filters": []map[string]any{
				{"memcmp": map[string]any{"offset": stateengine.MarginfiAccountGroupOffset, "base58": groupAddress}}}},
			"tracked": map[string]any{"account": accounts},
		},
		"commitment": "confirmed",
	}

	if err := conn.WriteJSON(subscribeMsg); err != nil {
		return fmt.Errorf("stream: subscribe: %w", err)
	}

	s.log.Info("stream: connected to account-update feed")
	return nil
}

// Listen reads frames until ctx is cancelled, decoding each into an
// AccountInfo and handing it to handler. Read errors are logged and
// retried after a short backoff rather than killing the stream (spec §7:
// "the update executor swallows per-update errors").
func (s *YellowstoneStream) Listen(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var frame accountUpdateFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			s.log.WithError(err).Warn("stream: read error, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}

		info, err := frame.toAccountInfo()
		if err != nil {
			s.log.WithError(err).Warn("stream: dropping malformed update frame")
			continue
		}
		if info == nil {
			continue
		}
		handler(info)
	}
}

// ConnectToSource is a convenience wrapper that derives the subscription
// filter from a FilterSource (the engine's program ID, group address, and
// currently tracked oracle/token sets) instead of requiring the caller to
// assemble string slices by hand.
func (s *YellowstoneStream) ConnectToSource(ctx context.Context, src FilterSource) error {
	toStrings := func(keys []solana.PublicKey) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			out[i] = k.String()
		}
		return out
	}
	return s.Connect(ctx, src.ProgramID().String(), src.GroupAddress().String(), toStrings(src.TrackedOracles()), toStrings(src.TrackedTokenAccounts()))
}

// Close tears down the underlying websocket connection.
func (s *YellowstoneStream) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type accountUpdateFrame struct {
	Account *struct {
		Pubkey     string `json:"pubkey"`
		Owner      string `json:"owner"`
		Lamports   uint64 `json:"lamports"`
		Executable bool   `json:"executable"`
		RentEpoch  uint64 `json:"rentEpoch"`
		Data       string `json:"data"` // base64, no zstd on the streaming path
	} `json:"account"`
}

func (f accountUpdateFrame) toAccountInfo() (*stateengine.AccountInfo, error) {
	if f.Account == nil {
		return nil, nil
	}
	pubkey, err := decodePubkey(f.Account.Pubkey)
	if err != nil {
		return nil, err
	}
	owner, err := decodePubkey(f.Account.Owner)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(f.Account.Data)
	if err != nil {
		return nil, fmt.Errorf("stream: decode account data: %w", err)
	}
	return &stateengine.AccountInfo{
		Pubkey:     pubkey,
		Owner:      owner,
		Lamports:   f.Account.Lamports,
		Executable: f.Account.Executable,
		RentEpoch:  f.Account.RentEpoch,
		Data:       data,
	}, nil
}
