// Package faucet requests test funds for an address.
package faucet

import (
	"context"
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/httpx"
)

type Client struct {
	http *httpx.Client
}

func New(http *httpx.Client) *Client {
	return &Client{http: http}
}

type request struct {
	Address string `json:"address"`
}

type response struct {
	Address         string `json:"address"`
	WaitingRequests int    `json:"waitingRequests"`
}

// RequestFunds enqueues a faucet request and returns the faucet's acknowledgement.
func (c *Client) RequestFunds(ctx context.Context, url, address string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", clierr.New(clierr.CodeUsage, "faucet url is required")
	}
	var resp response
	if err := httpx.PostJSON(ctx, c.http, url, request{Address: address}, &resp); err != nil {
		return "", err
	}
	if resp.Address == "" {
		resp.Address = address
	}
	return fmt.Sprintf("Requested funds for %s (waiting requests: %d)", resp.Address, resp.WaitingRequests), nil
}
