package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/klauspost/compress/zstd"

	"github.com/aman-zulfiqar/marginfi-liquidator/internal/stateengine"
)

// accountValue is the shape of a single entry in getMultipleAccounts' and
// getProgramAccounts' "result" arrays.
type accountValue struct {
	Owner      string   `json:"owner"`
	Lamports   uint64   `json:"lamports"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Data       []string `json:"data"` // [base64-or-base64+zstd payload, encoding]
}

type multipleAccountsResult struct {
	Value []*accountValue `json:"value"`
}

// multipleAccountsResponse is the response from getMultipleAccounts.
type multipleAccountsResponse struct {
	Result *multipleAccountsResult `json:"result"`
	Error  *RPCError               `json:"error"`
}

type programAccountEntry struct {
	Pubkey  string        `json:"pubkey"`
	Account *accountValue `json:"account"`
}

// programAccountsResponse is the response from getProgramAccounts.
type programAccountsResponse struct {
	Result []programAccountEntry `json:"result"`
	Error  *RPCError             `json:"error"`
}

func decodeAccountData(entry []string) ([]byte, error) {
	if len(entry) == 0 {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(entry[0])
	if err != nil {
		return nil, fmt.Errorf("decode base64 account data: %w", err)
	}
	if len(entry) > 1 && entry[1] == "base64+zstd" {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("open zstd reader: %w", err)
		}
		defer dec.Close()
		out, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("decompress zstd account data: %w", err)
		}
		return out, nil
	}
	return raw, nil
}

func toAccountInfo(pubkey solana.PublicKey, v *accountValue) (*stateengine.AccountInfo, error) {
	if v == nil {
		return nil, nil
	}
	owner, err := solana.PublicKeyFromBase58(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("parse owner pubkey: %w", err)
	}
	data, err := decodeAccountData(v.Data)
	if err != nil {
		return nil, err
	}
	return &stateengine.AccountInfo{
		Pubkey:     pubkey,
		Owner:      owner,
		Lamports:   v.Lamports,
		Executable: v.Executable,
		RentEpoch:  v.RentEpoch,
		Data:       data,
	}, nil
}

// GetMultipleAccounts implements stateengine.AccountFetcher: a single
// getMultipleAccounts call over at most one chunk's worth of addresses
// (the batched loader is responsible for chunking and retry).
func (c *Client) GetMultipleAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*stateengine.AccountInfo, error) {
	keys := make([]string, len(addresses))
	for i, addr := range addresses {
		keys[i] = addr.String()
	}
	params := []interface{}{keys, map[string]interface{}{"encoding": "base64+zstd"}}

	var resp multipleAccountsResponse
	if err := c.Call(ctx, "getMultipleAccounts", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("rpc: getMultipleAccounts returned no result")
	}

	out := make([]*stateengine.AccountInfo, len(addresses))
	for i, v := range resp.Result.Value {
		info, err := toAccountInfo(addresses[i], v)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}

// GetProgramAccountsByMemcmp implements stateengine.ProgramAccountLister.
func (c *Client) GetProgramAccountsByMemcmp(ctx context.Context, programID solana.PublicKey, filters []stateengine.MemcmpFilter) ([]*stateengine.AccountInfo, error) {
	rpcFilters := make([]interface{}, len(filters))
	for i, f := range filters {
		rpcFilters[i] = map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": f.Offset,
				"bytes":  base64.StdEncoding.EncodeToString(f.Bytes),
			},
		}
	}

	params := []interface{}{
		programID.String(),
		map[string]interface{}{
			"encoding": "base64+zstd",
			"filters":  rpcFilters,
		},
	}

	var resp programAccountsResponse
	if err := c.Call(ctx, "getProgramAccounts", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	out := make([]*stateengine.AccountInfo, 0, len(resp.Result))
	for _, entry := range resp.Result {
		pubkey, err := solana.PublicKeyFromBase58(entry.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("parse program account pubkey: %w", err)
		}
		info, err := toAccountInfo(pubkey, entry.Account)
		if err != nil {
			return nil, err
		}
		if info != nil {
			out = append(out, info)
		}
	}
	return out, nil
}
