package rbac

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gable-pm/gable/pkg/observability"
)

type inviteFixture struct {
	service *InviteService
	mock    sqlmock.Sqlmock
	redis   *miniredis.Miniredis
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, mock := newStoreFixture(t, true)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	return &inviteFixture{
		service: NewInviteService(client, store, logger),
		mock:    mock,
		redis:   mr,
	}
}

func (f *inviteFixture) expectRoleLookup(roleID, name string, status RoleStatus) {
	f.mock.ExpectQuery(`SELECT id, name, description, status, category`).
		WithArgs(roleID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "description", "status", "category", "created_at", "updated_at"}).
			AddRow(roleID, name, "", string(status), nil, time.Now(), time.Now()))
}

func TestInvite_CreateAndRedeem(t *testing.T) {
	f := newInviteFixture(t)
	f.expectRoleLookup(roleFin, "Finance Clerk", StatusActive)

	ctx := context.Background()
	token, err := f.service.CreateInvite(ctx, roleFin, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	roleID, err := f.service.RedeemInvite(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, roleFin, roleID)

	// Single use: a second redemption fails
	_, err = f.service.RedeemInvite(ctx, token)
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestInvite_ExpiresWithTTL(t *testing.T) {
	f := newInviteFixture(t)
	f.expectRoleLookup(roleFin, "Finance Clerk", StatusActive)

	ctx := context.Background()
	token, err := f.service.CreateInvite(ctx, roleFin, time.Minute)
	require.NoError(t, err)

	f.redis.FastForward(2 * time.Minute)

	_, err = f.service.RedeemInvite(ctx, token)
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestInvite_InactiveRoleRejected(t *testing.T) {
	f := newInviteFixture(t)
	f.expectRoleLookup(roleFin, "Finance Clerk", StatusDeprecated)

	_, err := f.service.CreateInvite(context.Background(), roleFin, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestInvite_UnknownRoleRejected(t *testing.T) {
	f := newInviteFixture(t)
	f.mock.ExpectQuery(`SELECT id, name, description, status, category`).
		WithArgs(roleFin).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "description", "status", "category", "created_at", "updated_at"}))

	_, err := f.service.CreateInvite(context.Background(), roleFin, time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role not found")
}

func TestInvite_UnknownToken(t *testing.T) {
	f := newInviteFixture(t)

	_, err := f.service.RedeemInvite(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInviteNotFound)
}
