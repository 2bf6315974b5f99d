/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"house-ledger-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// TreasuryClient talks to the treasury signer service, the custodial
// component that holds the pooled deposits and signs outbound transfers.
// The ledger never sees private keys; it only asks the signer to move
// value and records the returned transaction reference.
type TreasuryClient struct {
	baseURL    string
	apiKey     string
	httpClient http.Client
}

func NewTreasuryClient(cfg models.TreasuryConfig) (*TreasuryClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("treasury base URL cannot be empty")
	}

	httpClient, err := createCustomHttpClient(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	return &TreasuryClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

func createCustomHttpClient(timeout time.Duration) (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type transferRequest struct {
	Chain string `json:"chain"`
	To    string `json:"to"`
	// Amount is in the chain's base unit (mutez, lamports, wei, ...) as a
	// decimal integer string, avoiding float precision loss on the wire.
	Amount string `json:"amount"`
}

type transferResponse struct {
	TxHash string `json:"tx_hash"`
	Error  string `json:"error,omitempty"`
}

// Transfer asks the signer to move baseUnits of native value on chain to
// toAddress. A definite rejection maps to ErrTransferFailed; a context
// deadline or transport-level ambiguity maps to ErrTransferUnknown since
// the signed transaction may already have been broadcast.
func (c *TreasuryClient) Transfer(ctx context.Context, chainName, toAddress, baseUnits string) (string, error) {
	body, err := json.Marshal(transferRequest{Chain: chainName, To: toAddress, Amount: baseUnits})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTransferFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransferFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	zap.L().Info("Submitting treasury transfer",
		zap.String("chain", chainName),
		zap.String("to", toAddress),
		zap.String("base_units", baseUnits))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Once the request may have reached the signer, a transport error
		// no longer proves the transfer did not happen.
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrTransferUnknown, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", fmt.Errorf("%w: %v", ErrTransferUnknown, err)
		}
		return "", fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTransferUnknown, err)
	}

	if resp.StatusCode >= 500 {
		// The signer may have broadcast before failing.
		return "", fmt.Errorf("%w: signer returned %d: %s", ErrTransferUnknown, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: signer returned %d: %s", ErrTransferFailed, resp.StatusCode, string(respBody))
	}

	var result transferResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTransferUnknown, err)
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("%w: signer returned no transaction hash: %s", ErrTransferFailed, result.Error)
	}

	zap.L().Info("Treasury transfer submitted",
		zap.String("chain", chainName),
		zap.String("tx_hash", result.TxHash))
	return result.TxHash, nil
}
