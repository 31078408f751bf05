// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package access

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/xcomm"
	"github.com/stretchr/testify/require"
)

var (
	admin   = common.HexToAddress("0xad")
	oracle  = common.HexToAddress("0x0a")
	relayer = common.HexToAddress("0x0b")
	other   = common.HexToAddress("0x0c")
)

func TestNewControlSeedsRoles(t *testing.T) {
	require := require.New(t)

	c := NewControl(log.NewNoOpLogger(), admin, []common.Address{oracle}, []common.Address{relayer})
	require.Equal(admin, c.Admin())
	require.True(c.IsAdmin(admin))
	require.True(c.IsOracle(oracle))
	require.False(c.IsRelayer(oracle))
	require.True(c.IsRelayer(relayer))
	require.False(c.IsOracle(relayer))
	require.Equal([]common.Address{oracle}, c.Oracles())
	require.Equal([]common.Address{relayer}, c.Relayers())
}

func TestSetRoles(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		caller  common.Address
		enabled bool
		wantErr error
		want    bool
	}{
		{
			name:    "admin enables oracle",
			role:    RoleOracle,
			caller:  admin,
			enabled: true,
			want:    true,
		},
		{
			name:    "admin disables relayer",
			role:    RoleRelayer,
			caller:  admin,
			enabled: false,
			want:    false,
		},
		{
			name:    "non-admin cannot enable oracle",
			role:    RoleOracle,
			caller:  other,
			enabled: true,
			wantErr: xcomm.ErrUnauthorized,
			want:    false,
		},
		{
			name:    "oracle cannot enable relayer",
			role:    RoleRelayer,
			caller:  oracle,
			enabled: true,
			wantErr: xcomm.ErrUnauthorized,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			c := NewControl(log.NewNoOpLogger(), admin, []common.Address{oracle}, nil)
			var (
				err error
				got func(common.Address) bool
			)
			switch tt.role {
			case RoleOracle:
				err = c.SetOracle(tt.caller, other, tt.enabled)
				got = c.IsOracle
			case RoleRelayer:
				err = c.SetRelayer(tt.caller, other, tt.enabled)
				got = c.IsRelayer
			}
			require.ErrorIs(err, tt.wantErr)
			require.Equal(tt.want, got(other))
		})
	}
}

func TestSetRoleIdempotent(t *testing.T) {
	require := require.New(t)

	c := NewControl(log.NewNoOpLogger(), admin, nil, nil)
	require.NoError(c.SetRelayer(admin, relayer, true))
	require.NoError(c.SetRelayer(admin, relayer, true))
	require.True(c.IsRelayer(relayer))
	require.Len(c.Relayers(), 1)

	require.NoError(c.SetRelayer(admin, relayer, false))
	require.NoError(c.SetRelayer(admin, relayer, false))
	require.False(c.IsRelayer(relayer))
	require.Empty(c.Relayers())
}

func TestRequire(t *testing.T) {
	require := require.New(t)

	c := NewControl(log.NewNoOpLogger(), admin, []common.Address{oracle}, []common.Address{relayer})
	require.NoError(c.RequireAdmin(admin))
	require.ErrorIs(c.RequireAdmin(oracle), xcomm.ErrUnauthorized)
	require.NoError(c.RequireOracle(oracle))
	require.ErrorIs(c.RequireOracle(relayer), xcomm.ErrUnauthorized)
	require.NoError(c.RequireRelayer(relayer))
	require.ErrorIs(c.RequireRelayer(oracle), xcomm.ErrUnauthorized)
}
