package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
	"github.com/meridian-pos/meridian-pos/internal/shared"
)

func TestCheckAccessUnauthenticated(t *testing.T) {
	err := CheckAccess(nil, RoleCashier)
	require.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestCheckAccessNoRole(t *testing.T) {
	err := CheckAccess(&shared.Principal{UserID: 1, Active: true}, RoleCashier)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Contains(t, err.Error(), "no role")
}

func TestCheckAccessInactiveAccount(t *testing.T) {
	// Even an admin is rejected once deactivated.
	p := &shared.Principal{UserID: 1, Role: string(RoleAdmin), Active: false}
	err := CheckAccess(p, RoleCashier)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Contains(t, err.Error(), "deactivated")
}

func TestCheckAccessInsufficientRole(t *testing.T) {
	p := &shared.Principal{UserID: 1, Role: string(RoleCashier), Active: true}
	err := CheckAccess(p, RoleAdmin)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.Contains(t, err.Error(), "not sufficient")
}

func TestCheckAccessHigherRolePasses(t *testing.T) {
	p := &shared.Principal{UserID: 1, Role: string(RoleManager), Active: true}
	require.NoError(t, CheckAccess(p, RoleCashier))
}
