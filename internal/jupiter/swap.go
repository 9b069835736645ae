package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SwapRequest is the body of a POST /swap call: the quote to execute plus
// the signer who will pay for and own the resulting transaction (spec §6).
type SwapRequest struct {
	QuoteResponse                 QuoteResponse `json:"quoteResponse"`
	UserPublicKey                 string        `json:"userPublicKey"`
	WrapAndUnwrapSol              bool          `json:"wrapAndUnwrapSol"`
	ComputeUnitPriceMicroLamports uint64        `json:"computeUnitPriceMicroLamports,omitempty"`
}

// SwapResponse carries the unsigned, base64-encoded versioned transaction
// Jupiter built for the quote.
type SwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

// Swap builds an unsigned swap transaction for a previously-fetched quote.
// The caller is responsible for decoding, signing, and submitting it (spec
// §4.4: "quote -> build -> rewrite blockhash -> re-sign -> submit").
func (c *Client) Swap(ctx context.Context, req SwapRequest) (*SwapResponse, error) {
	// wrapAndUnwrapSol is always false: this bot only ever swaps between
	// SPL token accounts it already holds, never raw SOL (spec §4.6.2).
	req.WrapAndUnwrapSol = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("jupiter: marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: respBody}
	}

	var out SwapResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("jupiter: decode swap response: %w", err)
	}
	return &out, nil
}
