// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/luxfi/xcomm/chain"
	"github.com/luxfi/xcomm/gate"
	"github.com/luxfi/xcomm/signer"
	"go.uber.org/zap"
)

var (
	errBadRequest      = errors.New("bad request")
	errUnknownMethod   = errors.New("unknown method")
	errUnknownConsumer = errors.New("unknown consumer")
)

// txHandler executes one chain method for caller with JSON params.
type txHandler func(r *http.Request, caller common.Address, params []byte) (any, error)

// Server serves the HTTP API of one chain.
type Server struct {
	log       log.Logger
	chain     *chain.Chain
	consumers map[string]gate.Consumer
	now       func() time.Time
	maxTTL    time.Duration
	replay    *signer.ReplayGuard
	methods   map[string]txHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithConsumers registers the consumers updateConsumer may select.
func WithConsumers(consumers map[string]gate.Consumer) ServerOption {
	return func(s *Server) { s.consumers = consumers }
}

// WithMaxRequestTTL bounds how far in the future a signed request may
// expire.
func WithMaxRequestTTL(ttl time.Duration) ServerOption {
	return func(s *Server) { s.maxTTL = ttl }
}

// WithServerClock replaces the clock used to check request expiry.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

func NewServer(logger log.Logger, c *chain.Chain, opts ...ServerOption) *Server {
	s := &Server{
		log:    logger,
		chain:  c,
		now:    time.Now,
		maxTTL: signer.DefaultMaxRequestTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.replay = signer.NewReplayGuard(s.maxTTL)
	s.methods = map[string]txHandler{
		chain.MethodModifyOracleAddresses:   s.modifyOracleAddresses,
		chain.MethodModifyRelayerAddresses:  s.modifyRelayerAddresses,
		chain.MethodSetLastBlock:            s.setLastBlock,
		chain.MethodSetMsgHash:              s.setMsgHash,
		chain.MethodSetRecTrieRoot:          s.setRecTrieRoot,
		chain.MethodSendMessage:             s.sendMessage,
		chain.MethodDeliver:                 s.deliver,
		chain.MethodUpdateChainAddresses:    s.updateChainAddresses,
		chain.MethodUpdateChainBlockNumbers: s.updateChainBlockNumbers,
		chain.MethodUpdateConsumer:          s.updateConsumer,
	}
	return s
}

// RegisterHandlers adds the API routes to mux.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST "+TxPath+"{method}", s.handleTx)
	mux.HandleFunc("GET "+ChainsPath+"{id}", s.handleChain)
	mux.HandleFunc("GET "+ChainsPath+"{id}/block-number", s.handleBlockNumber)
	mux.HandleFunc("GET "+ChainsPath+"{id}/messages/{n}", s.handleMessageHash)
	mux.HandleFunc("GET "+ChainsPath+"{id}/delivered/{n}", s.handleDelivered)
	mux.HandleFunc("GET "+BlocksPath+"{n}", s.handleBlock)
	mux.HandleFunc("GET "+HeightPath, s.handleHeight)
	mux.HandleFunc("GET "+OutboxPath, s.handleOutbox)
	mux.HandleFunc("GET "+FeePath, s.handleFee)
}

// Handler returns a handler serving the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterHandlers(mux)
	return mux
}

func (s *Server) handleTx(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	handler, ok := s.methods[method]
	if !ok {
		writeJSONError(s.log, w, http.StatusNotFound, xcomm.CodeUnknown, fmt.Sprintf("%s: %q", errUnknownMethod, method))
		return
	}

	var req signer.SignedRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		msg := "Could not decode request body"
		s.log.Warn(msg, zap.Error(err))
		writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, msg)
		return
	}
	if err := s.replay.Verify(method, &req, s.now()); err != nil {
		s.log.Warn("Rejected transaction",
			zap.String("method", method),
			zap.Stringer("caller", req.Caller),
			zap.Error(err),
		)
		writeError(s.log, w, err)
		return
	}

	resp, err := handler(r, req.Caller, req.Params)
	if err != nil {
		s.log.Debug("Transaction failed",
			zap.String("method", method),
			zap.Stringer("caller", req.Caller),
			zap.Error(err),
		)
		if errors.Is(err, errBadRequest) {
			writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, err.Error())
			return
		}
		writeError(s.log, w, err)
		return
	}
	writeJSON(s.log, w, resp)
}

func decodeParams(params []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid params: %w", errBadRequest, err)
	}
	return nil
}

func (s *Server) txResponse() TxResponse {
	return TxResponse{Height: s.chain.Height()}
}

func (s *Server) modifyOracleAddresses(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p ModifyRoleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.ModifyOracleAddresses(caller, p.Address, p.Enabled); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) modifyRelayerAddresses(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p ModifyRoleParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.ModifyRelayerAddresses(caller, p.Address, p.Enabled); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) setLastBlock(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p SetLastBlockParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.SetLastBlock(caller, p.ChainID, p.Block); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) setMsgHash(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p SetMsgHashParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.SetMsgHash(caller, p.ChainID, p.MessageNumber, p.Hash); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) setRecTrieRoot(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p SetRecTrieRootParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.SetRecTrieRoot(caller, p.ChainID, p.Block, p.Root); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) updateChainAddresses(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p UpdateChainAddressesParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.UpdateChainAddresses(caller, p.ChainID, p.Addresses, p.Allowed); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) updateChainBlockNumbers(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p UpdateChainBlockNumbersParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := s.chain.UpdateChainBlockNumbers(caller, p.ChainID, p.Block); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) updateConsumer(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p UpdateConsumerParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	consumer, ok := s.consumers[p.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", errBadRequest, errUnknownConsumer, p.Name)
	}
	if err := s.chain.UpdateConsumer(caller, consumer); err != nil {
		return nil, err
	}
	return s.txResponse(), nil
}

func (s *Server) sendMessage(_ *http.Request, caller common.Address, params []byte) (any, error) {
	var p SendMessageParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	value := new(uint256.Int)
	if p.Value != "" {
		var err error
		if value, err = uint256.FromDecimal(p.Value); err != nil {
			return nil, fmt.Errorf("%w: invalid value %q: %w", errBadRequest, p.Value, err)
		}
	}
	rec, err := s.chain.SendMessage(caller, value, p.Data, p.Receiver, p.DestinationChainID, p.FinalityBlocks, p.Taxi)
	if err != nil {
		return nil, err
	}
	return SendMessageResponse{
		MessageNumber: rec.MessageNumber,
		BlockNumber:   rec.BlockNumber,
		Index:         rec.Index,
		Hash:          rec.Hash(),
		Fee:           rec.Fee.Dec(),
	}, nil
}

func (s *Server) deliver(r *http.Request, caller common.Address, params []byte) (any, error) {
	var p DeliverParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	res, err := s.chain.DeliverClaim(r.Context(), caller, p.claim())
	if err != nil {
		return nil, err
	}
	return DeliverResponse{
		SourceChainID: res.Key.SourceChain,
		MessageNumber: res.Key.MessageNumber,
		Output:        res.Output,
	}, nil
}

func (s *Server) pathChainID(w http.ResponseWriter, r *http.Request) (xcomm.ChainID, bool) {
	id, err := xcomm.ParseChainID(r.PathValue("id"))
	if err != nil {
		writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, err.Error())
		return 0, false
	}
	return id, true
}

func (s *Server) pathUint64(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, fmt.Sprintf("invalid %s: %s", name, err))
		return 0, false
	}
	return v, true
}

func (s *Server) handleBlockNumber(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathChainID(w, r)
	if !ok {
		return
	}
	writeJSON(s.log, w, BlockNumberResponse{
		ChainID: id,
		Block:   s.chain.BlocknumberPerChainID(id),
	})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathChainID(w, r)
	if !ok {
		return
	}
	rec, ok := s.chain.Registry().Snapshot(id)
	if !ok {
		writeError(s.log, w, fmt.Errorf("%w: no state for chain %s", xcomm.ErrUnknownPeer, id))
		return
	}
	writeJSON(s.log, w, ChainResponse{
		ChainID:       id,
		LastBlock:     rec.LastBlock,
		ReceiptsRoot:  rec.ReceiptsRoot,
		Roots:         rec.Roots,
		Peers:         rec.Peers.List(),
		MessageHashes: rec.MessageHashes,
		PendingRoots:  rec.PendingRoots,
	})
}

func (s *Server) handleMessageHash(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathChainID(w, r)
	if !ok {
		return
	}
	n, ok := s.pathUint64(w, r, "n")
	if !ok {
		return
	}
	hash, ok := s.chain.Registry().MessageHash(id, n)
	if !ok {
		writeError(s.log, w, fmt.Errorf("%w: message %d of chain %s", xcomm.ErrNotCommitted, n, id))
		return
	}
	writeJSON(s.log, w, MessageHashResponse{
		ChainID:       id,
		MessageNumber: n,
		Hash:          hash,
	})
}

func (s *Server) handleDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathChainID(w, r)
	if !ok {
		return
	}
	n, ok := s.pathUint64(w, r, "n")
	if !ok {
		return
	}
	writeJSON(s.log, w, map[string]bool{
		"delivered": s.chain.Gate().IsDelivered(xcomm.Key{SourceChain: id, MessageNumber: n}),
	})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	n, ok := s.pathUint64(w, r, "n")
	if !ok {
		return
	}
	b, err := s.chain.Block(n)
	if err != nil {
		writeJSONError(s.log, w, http.StatusNotFound, xcomm.CodeUnknown, err.Error())
		return
	}
	writeJSON(s.log, w, b)
}

func (s *Server) handleHeight(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, HeightResponse{
		ChainID: s.chain.ID(),
		Height:  s.chain.Height(),
	})
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var from uint64
	limit := defaultRecordLimit
	if v := query.Get("from"); v != "" {
		var err error
		if from, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, "invalid from")
			return
		}
	}
	if v := query.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l <= 0 {
			writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, "invalid limit")
			return
		}
		limit = min(l, defaultRecordLimit)
	}
	writeJSON(s.log, w, s.chain.Records(from, limit))
}

func (s *Server) handleFee(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	finality, err := strconv.ParseUint(query.Get("finality"), 10, 16)
	if err != nil {
		writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, "invalid finality")
		return
	}
	var taxi bool
	if v := query.Get("taxi"); v != "" {
		if taxi, err = strconv.ParseBool(v); err != nil {
			writeJSONError(s.log, w, http.StatusBadRequest, xcomm.CodeUnknown, "invalid taxi")
			return
		}
	}
	fee, err := s.chain.Fee(uint16(finality), taxi)
	if err != nil {
		writeError(s.log, w, err)
		return
	}
	writeJSON(s.log, w, FeeResponse{
		Fee:     fee.Dec(),
		Balance: s.chain.GetBalance().Dec(),
	})
}
