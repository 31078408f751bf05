// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package access manages the administrator and the two identity sets,
// oracles and relayers, that gate every privileged messaging operation.
package access

import (
	"fmt"
	"sync"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/xcomm"
	"go.uber.org/zap"
)

// Role is an identity set managed by the administrator.
type Role uint8

const (
	RoleOracle Role = iota
	RoleRelayer
)

func (r Role) String() string {
	switch r {
	case RoleOracle:
		return "oracle"
	case RoleRelayer:
		return "relayer"
	default:
		return "unknown"
	}
}

// Checker answers membership queries. Components that only need to verify a
// caller depend on this rather than on *Control.
type Checker interface {
	IsAdmin(addr common.Address) bool
	IsOracle(addr common.Address) bool
	IsRelayer(addr common.Address) bool
}

var _ Checker = (*Control)(nil)

// Control holds the fixed administrator and the toggleable oracle and relayer
// sets.
type Control struct {
	log      log.Logger
	admin    common.Address
	mu       sync.RWMutex
	oracles  set.Set[common.Address]
	relayers set.Set[common.Address]
}

// NewControl creates a Control with the given administrator and initial
// oracle and relayer identities.
func NewControl(logger log.Logger, admin common.Address, oracles, relayers []common.Address) *Control {
	return &Control{
		log:      logger,
		admin:    admin,
		oracles:  set.Of(oracles...),
		relayers: set.Of(relayers...),
	}
}

// Admin returns the administrator fixed at construction.
func (c *Control) Admin() common.Address {
	return c.admin
}

// IsAdmin reports whether addr is the administrator.
func (c *Control) IsAdmin(addr common.Address) bool {
	return addr == c.admin
}

// RequireAdmin returns ErrUnauthorized unless caller is the administrator.
func (c *Control) RequireAdmin(caller common.Address) error {
	if !c.IsAdmin(caller) {
		return fmt.Errorf("%w: %s is not the administrator", xcomm.ErrUnauthorized, caller)
	}
	return nil
}

// RequireOracle returns ErrUnauthorized unless caller is an oracle.
func (c *Control) RequireOracle(caller common.Address) error {
	if !c.IsOracle(caller) {
		return fmt.Errorf("%w: %s is not an oracle", xcomm.ErrUnauthorized, caller)
	}
	return nil
}

// RequireRelayer returns ErrUnauthorized unless caller is a relayer.
func (c *Control) RequireRelayer(caller common.Address) error {
	if !c.IsRelayer(caller) {
		return fmt.Errorf("%w: %s is not a relayer", xcomm.ErrUnauthorized, caller)
	}
	return nil
}

// SetOracle enables or disables addr as an oracle. Setting a role to its
// current value is a no-op.
func (c *Control) SetOracle(caller, addr common.Address, enabled bool) error {
	return c.set(caller, RoleOracle, addr, enabled)
}

// SetRelayer enables or disables addr as a relayer. Setting a role to its
// current value is a no-op.
func (c *Control) SetRelayer(caller, addr common.Address, enabled bool) error {
	return c.set(caller, RoleRelayer, addr, enabled)
}

func (c *Control) set(caller common.Address, role Role, addr common.Address, enabled bool) error {
	if err := c.RequireAdmin(caller); err != nil {
		c.log.Warn("rejected role change",
			zap.Stringer("caller", caller),
			zap.Stringer("role", role),
		)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	members := &c.oracles
	if role == RoleRelayer {
		members = &c.relayers
	}
	if members.Contains(addr) == enabled {
		return nil
	}
	if enabled {
		members.Add(addr)
	} else {
		members.Remove(addr)
	}
	c.log.Info("role updated",
		zap.Stringer("role", role),
		zap.Stringer("address", addr),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// IsOracle reports whether addr is an enabled oracle.
func (c *Control) IsOracle(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.oracles.Contains(addr)
}

// IsRelayer reports whether addr is an enabled relayer.
func (c *Control) IsRelayer(addr common.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relayers.Contains(addr)
}

// Oracles returns the enabled oracles in no particular order.
func (c *Control) Oracles() []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.oracles.List()
}

// Relayers returns the enabled relayers in no particular order.
func (c *Control) Relayers() []common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.relayers.List()
}
