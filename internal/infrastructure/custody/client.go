// Package custody talks to the escrow program gateway over HTTP. Calls
// are never retried here or anywhere above: the chain-side operations
// are not idempotent.
package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/peerdeal/order-engine/internal/domain"
)

type HTTPCustodyClient struct {
	Address string
	Client  *http.Client
}

func NewHTTPCustodyClient(address string) (*HTTPCustodyClient, error) {
	return &HTTPCustodyClient{
		Address: address,
		Client:  http.DefaultClient,
	}, nil
}

type lockRequest struct {
	AmountCrypto    float64 `json:"amount_crypto"`
	CreatorWallet   string  `json:"creator_wallet"`
	RecipientWallet string  `json:"recipient_wallet,omitempty"`
}

type joinRequest struct {
	TradeID            string `json:"trade_id"`
	CreatorWallet      string `json:"creator_wallet"`
	CounterpartyWallet string `json:"counterparty_wallet"`
}

type settleRequest struct {
	TradeID            string  `json:"trade_id"`
	CreatorWallet      string  `json:"creator_wallet"`
	CounterpartyWallet string  `json:"counterparty_wallet,omitempty"`
	CreatorPct         float64 `json:"creator_pct,omitempty"`
}

type txResponse struct {
	TxHash         string `json:"tx_hash"`
	TradeID        string `json:"trade_id"`
	ProgramAddress string `json:"program_address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPCustodyClient) Lock(ctx context.Context, amountCrypto float64, creatorWallet, recipientWallet string) (*domain.LockResult, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/lock", lockRequest{
		AmountCrypto:    amountCrypto,
		CreatorWallet:   creatorWallet,
		RecipientWallet: recipientWallet,
	}, &result)
	if err != nil {
		return nil, &domain.CustodyCallFailed{Op: "lock", Reason: err.Error(), Err: err}
	}
	return &domain.LockResult{
		TxHash:         result.TxHash,
		TradeID:        result.TradeID,
		ProgramAddress: result.ProgramAddress,
	}, nil
}

func (c *HTTPCustodyClient) Join(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/join", joinRequest{
		TradeID:            tradeID,
		CreatorWallet:      creatorWallet,
		CounterpartyWallet: counterpartyWallet,
	}, &result)
	if err != nil {
		return "", &domain.CustodyCallFailed{Op: "join", Reason: err.Error(), Err: err}
	}
	return result.TxHash, nil
}

func (c *HTTPCustodyClient) Release(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string) (string, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/release", settleRequest{
		TradeID:            tradeID,
		CreatorWallet:      creatorWallet,
		CounterpartyWallet: counterpartyWallet,
	}, &result)
	if err != nil {
		return "", &domain.CustodyCallFailed{Op: "release", Reason: err.Error(), Err: err}
	}
	return result.TxHash, nil
}

func (c *HTTPCustodyClient) Refund(ctx context.Context, tradeID, creatorWallet string) (string, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/refund", settleRequest{
		TradeID:       tradeID,
		CreatorWallet: creatorWallet,
	}, &result)
	if err != nil {
		return "", &domain.CustodyCallFailed{Op: "refund", Reason: err.Error(), Err: err}
	}
	return result.TxHash, nil
}

func (c *HTTPCustodyClient) Split(ctx context.Context, tradeID, creatorWallet, counterpartyWallet string, creatorPct float64) (string, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/split", settleRequest{
		TradeID:            tradeID,
		CreatorWallet:      creatorWallet,
		CounterpartyWallet: counterpartyWallet,
		CreatorPct:         creatorPct,
	}, &result)
	if err != nil {
		return "", &domain.CustodyCallFailed{Op: "split", Reason: err.Error(), Err: err}
	}
	return result.TxHash, nil
}

func (c *HTTPCustodyClient) OpenDisputeMarker(ctx context.Context, tradeID, creatorWallet string) (string, error) {
	var result txResponse
	err := c.post(ctx, "/escrow/dispute", settleRequest{
		TradeID:       tradeID,
		CreatorWallet: creatorWallet,
	}, &result)
	if err != nil {
		return "", &domain.CustodyCallFailed{Op: "open_dispute_marker", Reason: err.Error(), Err: err}
	}
	return result.TxHash, nil
}

// FetchBalance reads the wallet balance from the gateway. It backs the
// balance cache and is not an escrow operation.
func (c *HTTPCustodyClient) FetchBalance(ctx context.Context, wallet string) (*domain.Balance, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/wallets/%s/balance", c.Address, wallet), nil)
	if err != nil {
		return nil, err
	}
	response, err := c.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		var balanceResponse struct {
			Crypto float64 `json:"crypto"`
			Fiat   float64 `json:"fiat"`
		}
		if err := json.Unmarshal(responseBodyBytes, &balanceResponse); err != nil {
			return nil, err
		}
		return &domain.Balance{Crypto: balanceResponse.Crypto, Fiat: balanceResponse.Fiat}, nil
	}
	var errResponse errorResponse
	if err := json.Unmarshal(responseBodyBytes, &errResponse); err != nil {
		return nil, err
	}
	return nil, errors.New(errResponse.Error)
}

func (c *HTTPCustodyClient) post(ctx context.Context, path string, body, out any) error {
	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Address+path, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.Client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return json.Unmarshal(responseBodyBytes, out)
	}
	var errResponse errorResponse
	if err := json.Unmarshal(responseBodyBytes, &errResponse); err != nil {
		return fmt.Errorf("custody gateway returned status %d", response.StatusCode)
	}
	return errors.New(errResponse.Error)
}
