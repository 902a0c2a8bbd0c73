// Package node talks to a ledger node's REST API.
package node

import (
	"context"
	"net/url"
	"time"

	"github.com/ggonzalez94/wallet-cli/internal/cache"
	clierr "github.com/ggonzalez94/wallet-cli/internal/errors"
	"github.com/ggonzalez94/wallet-cli/internal/httpx"
	"github.com/ggonzalez94/wallet-cli/internal/model"
	"github.com/ggonzalez94/wallet-cli/internal/registry"
)

const (
	PathInfo    = "/api/core/v2/info"
	PathOutputs = "/api/core/v2/outputs/"
	PathBlocks  = "/api/core/v2/blocks"
	PathIndexer = "/api/indexer/v1/outputs/"
)

// Inclusion states reported in block metadata.
const (
	StateIncluded    = "included"
	StateConflicting = "conflicting"
	StatePending     = "pending"
)

type BlockMetadata struct {
	BlockID              model.BlockID `json:"blockId"`
	LedgerInclusionState string        `json:"ledgerInclusionState"`
	ConflictReason       string        `json:"conflictReason,omitempty"`
}

type outputResponse struct {
	Metadata model.OutputMetadata `json:"metadata"`
	Output   model.Output         `json:"output"`
}

type indexerResponse struct {
	Items []model.OutputID `json:"items"`
}

type submitRequest struct {
	Payload model.SignedTransaction `json:"payload"`
}

type submitResponse struct {
	BlockID model.BlockID `json:"blockId"`
}

type Client struct {
	http     *httpx.Client
	baseURL  string
	cache    *cache.Store
	infoTTL  time.Duration
	maxStale time.Duration
}

// New builds a client for baseURL. A nil cache disables node info caching.
func New(baseURL string, http *httpx.Client, store *cache.Store, infoTTL time.Duration) *Client {
	return &Client{
		http:     http,
		baseURL:  registry.NormalizeNodeURL(baseURL),
		cache:    store,
		infoTTL:  infoTTL,
		maxStale: time.Hour,
	}
}

func (c *Client) URL() string { return c.baseURL }

func (c *Client) Info(ctx context.Context) (model.NodeInfo, error) {
	fetch := func(ctx context.Context) (model.NodeInfo, error) {
		var info model.NodeInfo
		if err := httpx.GetJSON(ctx, c.http, c.baseURL+PathInfo, &info); err != nil {
			return model.NodeInfo{}, err
		}
		if info.Network.Bech32HRP == "" {
			return model.NodeInfo{}, clierr.New(clierr.CodeUnavailable, "node info is missing the network prefix")
		}
		return info, nil
	}
	if c.infoTTL <= 0 {
		return fetch(ctx)
	}
	return cache.FetchJSON(ctx, c.cache, c.InfoCacheKey(), c.infoTTL, c.maxStale, fetch)
}

func (c *Client) InfoCacheKey() string { return "node-info:" + c.baseURL }

// OutputIDs lists unspent outputs of the given kind owned by address.
func (c *Client) OutputIDs(ctx context.Context, kind model.OutputKind, address string) ([]model.OutputID, error) {
	return c.indexer(ctx, kind, url.Values{"address": {address}})
}

// ExpiringOutputIDs lists unspent basic outputs that fall back to address on expiration.
func (c *Client) ExpiringOutputIDs(ctx context.Context, address string) ([]model.OutputID, error) {
	return c.indexer(ctx, model.OutputBasic, url.Values{"expirationReturnAddress": {address}})
}

func (c *Client) indexer(ctx context.Context, kind model.OutputKind, query url.Values) ([]model.OutputID, error) {
	var resp indexerResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+PathIndexer+string(kind)+"?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Output(ctx context.Context, id model.OutputID) (model.OutputRecord, error) {
	var resp outputResponse
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+PathOutputs+id.String(), &resp); err != nil {
		return model.OutputRecord{}, err
	}
	return model.OutputRecord{OutputID: id, Metadata: resp.Metadata, Output: resp.Output}, nil
}

// SubmitTransaction wraps tx in a block and returns the block id.
func (c *Client) SubmitTransaction(ctx context.Context, tx model.SignedTransaction) (model.BlockID, error) {
	var resp submitResponse
	if err := httpx.PostJSON(ctx, c.http, c.baseURL+PathBlocks, submitRequest{Payload: tx}, &resp); err != nil {
		return model.BlockID{}, err
	}
	return resp.BlockID, nil
}

func (c *Client) BlockMetadata(ctx context.Context, id model.BlockID) (BlockMetadata, error) {
	var meta BlockMetadata
	if err := httpx.GetJSON(ctx, c.http, c.baseURL+PathBlocks+"/"+id.String()+"/metadata", &meta); err != nil {
		return BlockMetadata{}, err
	}
	return meta, nil
}
