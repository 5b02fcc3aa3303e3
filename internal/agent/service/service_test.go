package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/events"
)

const testOwner = "0xabababababababababababababababababababab"

func testAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func setupAgentService(t *testing.T) (agentdomain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&agentdomain.Agent{}, &events.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	outbox := events.NewOutbox(events.Params{Log: log, GenID: node})

	svc := NewService(Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Config: config.Config{OwnerAddress: testOwner},
		Outbox: outbox,
	})
	return svc, db
}

func TestRegisterAndGet(t *testing.T) {
	svc, db := setupAgentService(t)
	ctx := context.Background()

	agent, err := svc.Register(ctx, testOwner, testAddr(1), "meter-one")
	require.NoError(t, err)
	assert.Equal(t, testAddr(1), agent.Address)
	assert.Equal(t, agentdomain.StatusActive, agent.Status)

	found, err := svc.Get(ctx, testAddr(1))
	require.NoError(t, err)
	assert.Equal(t, "meter-one", found.DisplayName)

	active, err := svc.IsActive(ctx, testAddr(1))
	require.NoError(t, err)
	assert.True(t, active)

	var eventCount int64
	require.NoError(t, db.Model(&events.Event{}).Where("event_type = ?", "agent.registered").Count(&eventCount).Error)
	assert.EqualValues(t, 1, eventCount)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupAgentService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, testAddr(9), testAddr(1), "meter-one")
	assert.ErrorIs(t, err, agentdomain.ErrNotAuthorized)

	_, err = svc.Register(ctx, testOwner, "not-an-address", "meter-one")
	assert.ErrorIs(t, err, agentdomain.ErrInvalidAddress)

	_, err = svc.Register(ctx, testOwner, testAddr(1), "")
	assert.ErrorIs(t, err, agentdomain.ErrEmptyName)

	_, err = svc.Register(ctx, testOwner, testAddr(1), "meter-one")
	require.NoError(t, err)
	_, err = svc.Register(ctx, testOwner, testAddr(1), "meter-one-again")
	assert.ErrorIs(t, err, agentdomain.ErrAlreadyRegistered)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, _ := setupAgentService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, testOwner, testAddr(1), "meter-one")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, testOwner, testAddr(1), agentdomain.StatusSuspended))
	active, err := svc.IsActive(ctx, testAddr(1))
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, svc.UpdateStatus(ctx, testOwner, testAddr(1), agentdomain.StatusActive))
	active, err = svc.IsActive(ctx, testAddr(1))
	require.NoError(t, err)
	assert.True(t, active)

	err = svc.UpdateStatus(ctx, testOwner, testAddr(2), agentdomain.StatusSuspended)
	assert.ErrorIs(t, err, agentdomain.ErrNotFound)

	err = svc.UpdateStatus(ctx, testOwner, testAddr(1), agentdomain.Status(9))
	assert.ErrorIs(t, err, agentdomain.ErrInvalidStatus)

	err = svc.UpdateStatus(ctx, testAddr(9), testAddr(1), agentdomain.StatusSuspended)
	assert.ErrorIs(t, err, agentdomain.ErrNotAuthorized)
}

func TestIsActiveUnknownAddress(t *testing.T) {
	svc, _ := setupAgentService(t)

	active, err := svc.IsActive(context.Background(), testAddr(7))
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.IsActive(context.Background(), "garbage")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestListAllInsertionOrder(t *testing.T) {
	svc, _ := setupAgentService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := svc.Register(ctx, testOwner, testAddr(i), fmt.Sprintf("meter-%d", i))
		require.NoError(t, err)
	}

	addresses, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{testAddr(1), testAddr(2), testAddr(3)}, addresses)
}
