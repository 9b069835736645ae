package sender

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/wallet"
)

type rpcRequest struct {
	Method string `json:"method"`
}

func startStubRPC(t *testing.T, handler func(method string) (any, bool)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, confirmedError := handler(req.Method)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1}
		if confirmedError {
			resp["error"] = map[string]any{"code": -1, "message": "not found"}
		} else {
			resp["result"] = result
		}
		w.Header().Set("content-type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func newTestWallet(t *testing.T, rpcURL string) *wallet.Wallet {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:     rpcURL,
		PrivateKey: solana.PrivateKey(priv).String(),
	})
	require.NoError(t, err)
	return w
}

func TestAggressiveSendConfirmsOnResubmission(t *testing.T) {
	confirmCalls := 0
	srv := startStubRPC(t, func(method string) (any, bool) {
		switch method {
		case "sendTransaction":
			return "sig1111111111111111111111111111111111111111111111111111111111111", false
		case "isBlockhashValid":
			return map[string]any{"value": true}, false
		case "getSignatureStatuses":
			confirmCalls++
			if confirmCalls < 2 {
				return map[string]any{"value": []any{nil}}, false
			}
			return map[string]any{"value": []any{map[string]any{
				"slot": 1, "confirmations": 10, "err": nil, "confirmationStatus": "confirmed",
			}}}, false
		default:
			t.Fatalf("unexpected method %s", method)
			return nil, false
		}
	})
	defer srv.Close()

	w := newTestWallet(t, srv.URL)
	tx := &solana.Transaction{}
	cfg := Config{ResubmitInterval: 20 * time.Millisecond, Deadline: 2 * time.Second, Commitment: "confirmed"}

	sig, err := AggressiveSend(context.Background(), w, tx, solana.Hash{}, cfg, nil)
	require.NoError(t, err)
	require.NotEmpty(t, sig)
}

func TestAggressiveSendReturnsBlockhashExpired(t *testing.T) {
	srv := startStubRPC(t, func(method string) (any, bool) {
		switch method {
		case "sendTransaction":
			return "sig1111111111111111111111111111111111111111111111111111111111111", false
		case "isBlockhashValid":
			return map[string]any{"value": false}, false
		case "getSignatureStatuses":
			return map[string]any{"value": []any{nil}}, false
		default:
			t.Fatalf("unexpected method %s", method)
			return nil, false
		}
	})
	defer srv.Close()

	w := newTestWallet(t, srv.URL)
	tx := &solana.Transaction{}
	cfg := Config{ResubmitInterval: 10 * time.Millisecond, Deadline: 2 * time.Second}

	_, err := AggressiveSend(context.Background(), w, tx, solana.Hash{}, cfg, nil)
	require.ErrorIs(t, err, ErrBlockhashExpired)
}

func TestAggressiveSendReturnsDeadlineExceeded(t *testing.T) {
	srv := startStubRPC(t, func(method string) (any, bool) {
		switch method {
		case "sendTransaction":
			return "sig1111111111111111111111111111111111111111111111111111111111111", false
		case "isBlockhashValid":
			return map[string]any{"value": true}, false
		case "getSignatureStatuses":
			return map[string]any{"value": []any{nil}}, false
		default:
			t.Fatalf("unexpected method %s", method)
			return nil, false
		}
	})
	defer srv.Close()

	w := newTestWallet(t, srv.URL)
	tx := &solana.Transaction{}
	cfg := Config{ResubmitInterval: 10 * time.Millisecond, Deadline: 60 * time.Millisecond}

	_, err := AggressiveSend(context.Background(), w, tx, solana.Hash{}, cfg, nil)
	require.ErrorIs(t, err, ErrDeadlineExceeded)
}
