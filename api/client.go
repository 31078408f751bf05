// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/cache"
	"github.com/luxfi/xcomm/chain"
	"github.com/luxfi/xcomm/outbox"
	"github.com/luxfi/xcomm/signer"
	"github.com/luxfi/xcomm/utils"
)

const (
	defaultRequestTTL     = time.Minute
	defaultHeightTTL      = 500 * time.Millisecond
	defaultRetryTimeout   = 10 * time.Second
	defaultRetryInterval  = 100 * time.Millisecond
	defaultRequestTimeout = 30 * time.Second
	heightCacheKey        = "height"
)

// Client is a remote chain reached over its HTTP API. Mutating calls are
// signed with the client's signer.
type Client struct {
	log        log.Logger
	baseURL    string
	chainID    xcomm.ChainID
	httpClient *http.Client
	signer     signer.Signer
	requestTTL time.Duration
	now        func() time.Time

	heights *cache.TTLCache[string, uint64]
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRequestTTL sets how long signed requests stay valid.
func WithRequestTTL(ttl time.Duration) ClientOption {
	return func(cl *Client) { cl.requestTTL = ttl }
}

// WithHeightTTL sets how long a fetched chain height is reused.
func WithHeightTTL(ttl time.Duration) ClientOption {
	return func(cl *Client) { cl.heights = cache.NewTTLCache[string, uint64](ttl) }
}

// NewClient creates a client of the chain with id chainID served at baseURL.
// s may be nil for a read-only client.
func NewClient(logger log.Logger, baseURL string, chainID xcomm.ChainID, s signer.Signer, opts ...ClientOption) *Client {
	c := &Client{
		log:        logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chainID:    chainID,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		signer:     s,
		requestTTL: defaultRequestTTL,
		now:        time.Now,
		heights:    cache.NewTTLCache[string, uint64](defaultHeightTTL),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainID returns the id of the remote chain.
func (c *Client) ChainID() xcomm.ChainID {
	return c.chainID
}

// Height returns the latest block number of the remote chain.
func (c *Client) Height(ctx context.Context) (uint64, error) {
	return c.heights.Get(heightCacheKey, func(string) (uint64, error) {
		var resp HeightResponse
		if err := c.get(ctx, HeightPath, &resp); err != nil {
			return 0, err
		}
		return resp.Height, nil
	}, false)
}

// Records returns outbound records of the remote chain starting at from.
func (c *Client) Records(ctx context.Context, from uint64, limit int) ([]*outbox.Record, error) {
	q := url.Values{}
	q.Set("from", strconv.FormatUint(from, 10))
	q.Set("limit", strconv.Itoa(limit))
	var records []*outbox.Record
	if err := c.get(ctx, OutboxPath+"?"+q.Encode(), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReceiptsRoot returns the receipts root of a block of the remote chain.
func (c *Client) ReceiptsRoot(ctx context.Context, number uint64) (common.Hash, error) {
	var b struct {
		ReceiptsRoot common.Hash `json:"receipts-root"`
	}
	if err := c.get(ctx, BlocksPath+strconv.FormatUint(number, 10), &b); err != nil {
		return common.Hash{}, err
	}
	return b.ReceiptsRoot, nil
}

// BlockNumber returns the last block of source committed on the remote chain.
func (c *Client) BlockNumber(ctx context.Context, source xcomm.ChainID) (uint64, error) {
	var resp BlockNumberResponse
	if err := c.get(ctx, ChainsPath+source.String()+"/block-number", &resp); err != nil {
		return 0, err
	}
	return resp.Block, nil
}

// IsDelivered reports whether key has been delivered on the remote chain.
func (c *Client) IsDelivered(ctx context.Context, key xcomm.Key) (bool, error) {
	var resp map[string]bool
	path := ChainsPath + key.SourceChain.String() + "/delivered/" + strconv.FormatUint(key.MessageNumber, 10)
	if err := c.get(ctx, path, &resp); err != nil {
		return false, err
	}
	return resp["delivered"], nil
}

func (c *Client) SetLastBlock(ctx context.Context, source xcomm.ChainID, block uint64) error {
	return c.transact(ctx, chain.MethodSetLastBlock, SetLastBlockParams{
		ChainID: source,
		Block:   block,
	}, nil)
}

func (c *Client) SetRecTrieRoot(ctx context.Context, source xcomm.ChainID, block uint64, root common.Hash) error {
	return c.transact(ctx, chain.MethodSetRecTrieRoot, SetRecTrieRootParams{
		ChainID: source,
		Block:   block,
		Root:    root,
	}, nil)
}

func (c *Client) SetMsgHash(ctx context.Context, source xcomm.ChainID, n uint64, hash common.Hash) error {
	return c.transact(ctx, chain.MethodSetMsgHash, SetMsgHashParams{
		ChainID:       source,
		MessageNumber: n,
		Hash:          hash,
	}, nil)
}

// Deliver submits claim for delivery on the remote chain.
func (c *Client) Deliver(ctx context.Context, claim *xcomm.InboundClaim) error {
	return c.transact(ctx, chain.MethodDeliver, DeliverParams{
		SourceChainID: claim.SourceChain,
		MessageNumber: claim.MessageNumber,
		Payload:       claim.Payload,
		ClaimedHash:   claim.ClaimedHash,
		FinalBlock:    claim.FinalBlock,
		ReceiptsRoot:  claim.ReceiptsRoot,
	}, nil)
}

// SendMessage sends a message from the signer's address.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*SendMessageResponse, error) {
	var resp SendMessageResponse
	if err := c.transact(ctx, chain.MethodSendMessage, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transact sends a signed call of method with params and decodes the result
// into out, which may be nil.
func (c *Client) Transact(ctx context.Context, method string, params any, out any) error {
	return c.transact(ctx, method, params, out)
}

func (c *Client) transact(ctx context.Context, method string, params any, out any) error {
	if c.signer == nil {
		return fmt.Errorf("client of chain %s has no signer", c.chainID)
	}
	req, err := signer.SignRequest(c.signer, method, params, c.now().Add(c.requestTTL))
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodPost, TxPath+method, body, out)
	if err == nil {
		// A mined transaction moves the height.
		c.heights.Invalidate(heightCacheKey)
	}
	return err
}

// get issues a read, retrying transport failures with backoff. Errors
// reported by the server are not retried.
func (c *Client) get(ctx context.Context, path string, out any) error {
	return utils.WithRetriesTimeout(ctx, c.log, func() error {
		err := c.do(ctx, http.MethodGet, path, nil, out)
		var se *statusError
		if errors.As(err, &se) {
			return backoff.Permanent(err)
		}
		return err
	}, defaultRetryTimeout, defaultRetryInterval)
}

// statusError is a non-2xx response. It unwraps to the error kind reported
// by the server so that callers can use errors.Is.
type statusError struct {
	status int
	kind   error
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.msg)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		se := &statusError{status: resp.StatusCode, msg: errResp.Error}
		if kind := xcomm.ErrorFromCode(errResp.Code); kind != nil {
			se.kind = kind
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response of %s: %w", path, err)
	}
	return nil
}
