// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package consumer provides reference consumers for delivered messages.
package consumer

import (
	"context"
	"sync"

	"github.com/luxfi/log"
	"github.com/luxfi/xcomm/gate"
	"go.uber.org/zap"
)

var (
	_ gate.Consumer = Func(nil)
	_ gate.Consumer = (*Recorder)(nil)
)

// Func adapts a function to the gate.Consumer interface.
type Func func(ctx context.Context, msg gate.Inbound) ([]byte, error)

func (f Func) Consume(ctx context.Context, msg gate.Inbound) ([]byte, error) {
	return f(ctx, msg)
}

// Recorder keeps every delivered message in memory and logs it. It is the
// default consumer of a node with no application attached.
type Recorder struct {
	log      log.Logger
	mu       sync.RWMutex
	messages []gate.Inbound
}

func NewRecorder(logger log.Logger) *Recorder {
	return &Recorder{log: logger}
}

func (r *Recorder) Consume(_ context.Context, msg gate.Inbound) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.Payload = append([]byte(nil), msg.Payload...)
	r.messages = append(r.messages, msg)
	r.log.Info("message consumed",
		zap.Stringer("sourceChainID", msg.SourceChain),
		zap.Uint64("messageNumber", msg.MessageNumber),
		zap.Int("size", len(msg.Payload)),
	)
	return nil, nil
}

// Messages returns the consumed messages in delivery order.
func (r *Recorder) Messages() []gate.Inbound {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]gate.Inbound(nil), r.messages...)
}

// Len returns the number of consumed messages.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}
