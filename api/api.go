// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes a chain over HTTP. Mutating calls are signed
// transactions whose recovered signer is the caller; reads are plain GETs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/signer"
	"go.uber.org/zap"
)

const (
	TxPath          = "/v1/tx/"
	ChainsPath      = "/v1/chains/"
	BlocksPath      = "/v1/blocks/"
	HeightPath      = "/v1/height"
	OutboxPath      = "/v1/outbox"
	FeePath         = "/v1/fee"
	HealthCheckPath = "/health"

	maxRequestBodySize = 2 * xcomm.MaxMessageSize
	defaultRecordLimit = 256
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int32  `json:"code"`
}

// ModifyRoleParams are the params of modifyOracleAddresses and
// modifyRelayerAddresses.
type ModifyRoleParams struct {
	Address common.Address `json:"address"`
	Enabled bool           `json:"enabled"`
}

type SetLastBlockParams struct {
	ChainID xcomm.ChainID `json:"chain-id"`
	Block   uint64        `json:"block"`
}

type SetMsgHashParams struct {
	ChainID       xcomm.ChainID `json:"chain-id"`
	MessageNumber uint64        `json:"message-number"`
	Hash          common.Hash   `json:"hash"`
}

type SetRecTrieRootParams struct {
	ChainID xcomm.ChainID `json:"chain-id"`
	Block   uint64        `json:"block"`
	Root    common.Hash   `json:"root"`
}

type UpdateChainAddressesParams struct {
	ChainID   xcomm.ChainID    `json:"chain-id"`
	Addresses []common.Address `json:"addresses"`
	Allowed   bool             `json:"allowed"`
}

type UpdateChainBlockNumbersParams struct {
	ChainID xcomm.ChainID `json:"chain-id"`
	Block   uint64        `json:"block"`
}

// UpdateConsumerParams selects one of the consumers the server was started
// with by name.
type UpdateConsumerParams struct {
	Name string `json:"name"`
}

type SendMessageParams struct {
	// Value is a decimal amount.
	Value              string         `json:"value"`
	Data               hexutil.Bytes  `json:"data"`
	Receiver           common.Address `json:"receiver"`
	DestinationChainID xcomm.ChainID  `json:"destination-chain-id"`
	FinalityBlocks     uint16         `json:"finality-blocks"`
	Taxi               bool           `json:"taxi"`
}

type DeliverParams struct {
	SourceChainID xcomm.ChainID `json:"source-chain-id"`
	MessageNumber uint64        `json:"message-number"`
	Payload       hexutil.Bytes `json:"payload"`
	ClaimedHash   common.Hash   `json:"claimed-hash"`
	FinalBlock    uint64        `json:"final-block,omitempty"`
	ReceiptsRoot  common.Hash   `json:"receipts-root"`
}

func (p *DeliverParams) claim() *xcomm.InboundClaim {
	return &xcomm.InboundClaim{
		SourceChain:   p.SourceChainID,
		MessageNumber: p.MessageNumber,
		Payload:       p.Payload,
		ClaimedHash:   p.ClaimedHash,
		FinalBlock:    p.FinalBlock,
		ReceiptsRoot:  p.ReceiptsRoot,
	}
}

// TxResponse is returned by transactions that have no other result.
type TxResponse struct {
	Height uint64 `json:"height"`
}

type SendMessageResponse struct {
	MessageNumber uint64      `json:"message-number"`
	BlockNumber   uint64      `json:"block-number"`
	Index         uint64      `json:"index"`
	Hash          common.Hash `json:"hash"`
	Fee           string      `json:"fee"`
}

type DeliverResponse struct {
	SourceChainID xcomm.ChainID `json:"source-chain-id"`
	MessageNumber uint64        `json:"message-number"`
	Output        hexutil.Bytes `json:"output"`
}

type BlockNumberResponse struct {
	ChainID xcomm.ChainID `json:"chain-id"`
	Block   uint64        `json:"block"`
}

// ChainResponse is the committed state of a remote chain.
type ChainResponse struct {
	ChainID       xcomm.ChainID          `json:"chain-id"`
	LastBlock     uint64                 `json:"last-block"`
	ReceiptsRoot  common.Hash            `json:"receipts-root"`
	Roots         map[uint64]common.Hash `json:"roots"`
	Peers         []common.Address       `json:"peers"`
	MessageHashes map[uint64]common.Hash `json:"message-hashes"`
	PendingRoots  map[uint64]common.Hash `json:"pending-roots"`
}

type MessageHashResponse struct {
	ChainID       xcomm.ChainID `json:"chain-id"`
	MessageNumber uint64        `json:"message-number"`
	Hash          common.Hash   `json:"hash"`
}

type HeightResponse struct {
	ChainID xcomm.ChainID `json:"chain-id"`
	Height  uint64        `json:"height"`
}

type FeeResponse struct {
	Fee     string `json:"fee"`
	Balance string `json:"balance"`
}

// statusCode maps an error to the HTTP status reported for it.
func statusCode(err error) int {
	switch {
	case errors.Is(err, signer.ErrInvalidSignature),
		errors.Is(err, signer.ErrExpiredRequest),
		errors.Is(err, signer.ErrExpiryTooFar),
		errors.Is(err, signer.ErrCallerMismatch):
		return http.StatusUnauthorized
	case errors.Is(err, signer.ErrReplayedRequest):
		return http.StatusConflict
	}
	switch xcomm.CodeOf(err) {
	case xcomm.CodeUnauthorized:
		return http.StatusForbidden
	case xcomm.CodeStaleBlock, xcomm.CodeHashMismatch, xcomm.CodeAlreadyDelivered:
		return http.StatusConflict
	case xcomm.CodeNotCommitted, xcomm.CodeUnknownPeer:
		return http.StatusNotFound
	case xcomm.CodeInsufficientFee:
		return http.StatusPaymentRequired
	case xcomm.CodeInvalidMessage:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSONError(
	logger log.Logger,
	w http.ResponseWriter,
	httpStatusCode int,
	code int32,
	errorMsg string,
) {
	resp, err := json.Marshal(ErrorResponse{
		Error: errorMsg,
		Code:  code,
	})
	if err != nil {
		msg := "Error marshalling JSON error response"
		logger.Error(msg, zap.Error(err))
		resp = []byte(msg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)

	if _, err = w.Write(resp); err != nil {
		logger.Error("Error writing error response", zap.Error(err))
	}
}

// writeError reports err with the status and code derived from its kind.
func writeError(logger log.Logger, w http.ResponseWriter, err error) {
	writeJSONError(logger, w, statusCode(err), xcomm.CodeOf(err), err.Error())
}

func writeJSON(logger log.Logger, w http.ResponseWriter, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		msg := "Failed to marshal response"
		logger.Error(msg, zap.Error(err))
		writeJSONError(logger, w, http.StatusInternalServerError, xcomm.CodeUnknown, msg)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(resp); err != nil {
		logger.Error("Error writing response", zap.Error(err))
	}
}
