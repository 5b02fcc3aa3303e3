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
	agentservice "github.com/gridsettle/tributary/internal/agent/service"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/events"
	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
	recordservice "github.com/gridsettle/tributary/internal/record/service"
	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
	"github.com/gridsettle/tributary/pkg/atto"
)

const (
	testOwner = "0xabababababababababababababababababababab"
	testAgent = "0x0000000000000000000000000000000000000a01"
)

func testAddr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

func testHash(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

type unitFixture struct {
	units   unitdomain.Service
	records recorddomain.Service
	agents  agentdomain.Service
	db      *gorm.DB
}

func setupUnitService(t *testing.T) unitFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&agentdomain.Agent{},
		&recorddomain.ConsumptionRecord{},
		&unitdomain.ConsumptionUnit{},
		&unitdomain.ConsumedRecord{},
		&events.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	outbox := events.NewOutbox(events.Params{Log: log, GenID: node})
	cfg := config.Config{OwnerAddress: testOwner}

	agents := agentservice.NewService(agentservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: cfg,
		Outbox: outbox,
	})

	records := recordservice.NewService(recordservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Registry: agents,
		Outbox:   outbox,
	})

	units := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Registry: agents,
		Config:   cfg,
		Outbox:   outbox,
	})
	require.NoError(t, units.SetRecordLedger(testOwner, records))

	ctx := context.Background()
	_, err = agents.Register(ctx, testOwner, testAgent, "meter-agent")
	require.NoError(t, err)

	return unitFixture{units: units, records: records, agents: agents, db: db}
}

func (f unitFixture) seedRecords(t *testing.T, ns ...int) []string {
	t.Helper()
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		_, err := f.records.Submit(context.Background(), testAgent, recorddomain.SubmitRequest{
			ID:    testHash(n),
			Owner: testAddr(5),
		})
		require.NoError(t, err)
		ids = append(ids, testHash(n))
	}
	return ids
}

func unitRequest(n int, linked []string) unitdomain.SubmitRequest {
	return unitdomain.SubmitRequest{
		ID:              testHash(100 + n),
		Owner:           testAddr(5),
		Currency:        840,
		SettlementDay:   20260301,
		AmountBase:      1,
		AmountAtto:      500_000_000_000_000_000,
		LinkedRecordIDs: linked,
	}
}

func TestSubmitUnitConsumesRecords(t *testing.T) {
	f := setupUnitService(t)
	ctx := context.Background()

	linked := f.seedRecords(t, 1, 2)
	created, err := f.units.Submit(ctx, testAgent, unitRequest(1, linked))
	require.NoError(t, err)
	assert.Equal(t, testHash(101), created.ID)

	got, err := created.LinkedRecordIDs()
	require.NoError(t, err)
	assert.Equal(t, linked, got)

	exists, err := f.units.Exists(ctx, testHash(101))
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := f.units.GetByOwner(ctx, testAddr(5))
	require.NoError(t, err)
	assert.Equal(t, []string{testHash(101)}, ids)

	// The consumed mark is permanent: a later unit touching record 1 fails.
	f.seedRecords(t, 3)
	_, err = f.units.Submit(ctx, testAgent, unitRequest(2, []string{testHash(3), testHash(1)}))
	assert.ErrorIs(t, err, unitdomain.ErrRecordAlreadyConsumed)

	// And the failed submission did not consume record 3 either.
	_, err = f.units.Submit(ctx, testAgent, unitRequest(3, []string{testHash(3)}))
	require.NoError(t, err)
}

func TestSubmitUnitValidationLadder(t *testing.T) {
	f := setupUnitService(t)
	ctx := context.Background()

	linked := f.seedRecords(t, 1, 2)

	_, err := f.units.Submit(ctx, testAgent, unitRequest(1, linked[:1]))
	require.NoError(t, err)

	// Duplicate id wins over every later check.
	dup := unitRequest(1, linked)
	dup.Currency = 0
	_, err = f.units.Submit(ctx, testAgent, dup)
	assert.ErrorIs(t, err, unitdomain.ErrAlreadyExists)

	req := unitRequest(2, linked[1:])
	req.Currency = 0
	_, err = f.units.Submit(ctx, testAgent, req)
	assert.ErrorIs(t, err, unitdomain.ErrInvalidCurrency)

	req = unitRequest(2, linked[1:])
	req.AmountBase = 0
	req.AmountAtto = 0
	_, err = f.units.Submit(ctx, testAgent, req)
	assert.ErrorIs(t, err, unitdomain.ErrInvalidAmount)

	req = unitRequest(2, linked[1:])
	req.AmountAtto = atto.Factor
	_, err = f.units.Submit(ctx, testAgent, req)
	assert.ErrorIs(t, err, unitdomain.ErrInvalidAmount)

	_, err = f.units.Submit(ctx, testAgent, unitRequest(2, nil))
	assert.ErrorIs(t, err, unitdomain.ErrEmptyLinkedRecords)

	_, err = f.units.Submit(ctx, testAgent, unitRequest(2, []string{testHash(2), testHash(2)}))
	assert.ErrorIs(t, err, unitdomain.ErrDuplicateLinkedRecord)

	_, err = f.units.Submit(ctx, testAgent, unitRequest(2, []string{testHash(77)}))
	assert.ErrorIs(t, err, unitdomain.ErrRecordNotFound)

	_, err = f.units.Submit(ctx, testAddr(9), unitRequest(2, linked[1:]))
	assert.ErrorIs(t, err, unitdomain.ErrAgentNotActive)
}

func TestSubmitUnitBatchAllOrNothing(t *testing.T) {
	f := setupUnitService(t)
	ctx := context.Background()

	f.seedRecords(t, 1, 2, 3)

	// Item 2 links a record item 1 already consumed inside the same batch, so
	// everything rolls back.
	reqs := []unitdomain.SubmitRequest{
		unitRequest(1, []string{testHash(1), testHash(2)}),
		unitRequest(2, []string{testHash(2), testHash(3)}),
	}
	_, err := f.units.SubmitBatch(ctx, testAgent, reqs)
	assert.ErrorIs(t, err, unitdomain.ErrRecordAlreadyConsumed)

	var unitCount, markCount int64
	require.NoError(t, f.db.Model(&unitdomain.ConsumptionUnit{}).Count(&unitCount).Error)
	require.NoError(t, f.db.Model(&unitdomain.ConsumedRecord{}).Count(&markCount).Error)
	assert.EqualValues(t, 0, unitCount)
	assert.EqualValues(t, 0, markCount)

	created, err := f.units.SubmitBatch(ctx, testAgent, []unitdomain.SubmitRequest{
		unitRequest(1, []string{testHash(1)}),
		unitRequest(2, []string{testHash(2), testHash(3)}),
	})
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestSubmitUnitWithoutRecordLedger(t *testing.T) {
	f := setupUnitService(t)
	ctx := context.Background()

	linked := f.seedRecords(t, 1)
	require.NoError(t, f.units.SetRecordLedger(testOwner, nil))

	_, err := f.units.Submit(ctx, testAgent, unitRequest(1, linked))
	assert.ErrorIs(t, err, unitdomain.ErrNoRecordLedger)
}

func TestSetRecordLedgerAuthorization(t *testing.T) {
	f := setupUnitService(t)

	err := f.units.SetRecordLedger(testAddr(9), f.records)
	assert.ErrorIs(t, err, unitdomain.ErrNotAuthorized)
	assert.NotNil(t, f.units.RecordLedger())
}
