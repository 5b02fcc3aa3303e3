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

type recordFixture struct {
	records recorddomain.Service
	agents  agentdomain.Service
	db      *gorm.DB
}

func setupRecordService(t *testing.T) recordFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&agentdomain.Agent{},
		&recorddomain.ConsumptionRecord{},
		&events.Event{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	outbox := events.NewOutbox(events.Params{Log: log, GenID: node})

	agents := agentservice.NewService(agentservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Config: config.Config{OwnerAddress: testOwner},
		Outbox: outbox,
	})

	records := NewService(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Registry: agents,
		Outbox:   outbox,
	})

	_, err = agents.Register(context.Background(), testOwner, testAgent, "meter-agent")
	require.NoError(t, err)

	return recordFixture{records: records, agents: agents, db: db}
}

func submitRequest(n int, owner string) recorddomain.SubmitRequest {
	return recorddomain.SubmitRequest{
		ID:    testHash(n),
		Owner: owner,
	}
}

func TestSubmitAndGet(t *testing.T) {
	f := setupRecordService(t)
	ctx := context.Background()

	req := recorddomain.SubmitRequest{
		ID:     testHash(1),
		Owner:  testAddr(5),
		Keys:   []string{"site", "meter"},
		Values: []string{"plant-7", "m-42"},
	}
	created, err := f.records.Submit(ctx, testAgent, req)
	require.NoError(t, err)
	assert.Equal(t, testHash(1), created.ID)
	assert.Equal(t, testAgent, created.SubmittedBy)

	exists, err := f.records.Exists(ctx, testHash(1))
	require.NoError(t, err)
	assert.True(t, exists)

	found, err := f.records.Get(ctx, testHash(1))
	require.NoError(t, err)
	pairs, err := found.MetadataPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "site", pairs[0].Key)
	assert.Equal(t, "plant-7", pairs[0].Value)

	ids, err := f.records.GetByOwner(ctx, testAddr(5))
	require.NoError(t, err)
	assert.Equal(t, []string{testHash(1)}, ids)

	var metadataEvents int64
	require.NoError(t, f.db.Model(&events.Event{}).
		Where("event_type = ?", "consumption_record.metadata_added").
		Count(&metadataEvents).Error)
	assert.EqualValues(t, 2, metadataEvents)
}

func TestGetUnknownReturnsZeroValue(t *testing.T) {
	f := setupRecordService(t)

	found, err := f.records.Get(context.Background(), testHash(99))
	require.NoError(t, err)
	assert.Empty(t, found.ID)

	exists, err := f.records.Exists(context.Background(), testHash(99))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSubmitValidation(t *testing.T) {
	f := setupRecordService(t)
	ctx := context.Background()

	_, err := f.records.Submit(ctx, testAddr(9), submitRequest(1, testAddr(5)))
	assert.ErrorIs(t, err, recorddomain.ErrAgentNotActive)

	_, err = f.records.Submit(ctx, testAgent, recorddomain.SubmitRequest{ID: "bogus", Owner: testAddr(5)})
	assert.ErrorIs(t, err, recorddomain.ErrInvalidID)

	_, err = f.records.Submit(ctx, testAgent, recorddomain.SubmitRequest{ID: testHash(1), Owner: "bogus"})
	assert.ErrorIs(t, err, recorddomain.ErrInvalidOwner)

	_, err = f.records.Submit(ctx, testAgent, recorddomain.SubmitRequest{
		ID:    testHash(1),
		Owner: testAddr(5),
		Keys:  []string{"site"},
	})
	assert.ErrorIs(t, err, recorddomain.ErrMetadataMismatch)

	_, err = f.records.Submit(ctx, testAgent, recorddomain.SubmitRequest{
		ID:     testHash(1),
		Owner:  testAddr(5),
		Keys:   []string{""},
		Values: []string{"x"},
	})
	assert.ErrorIs(t, err, recorddomain.ErrEmptyKey)

	_, err = f.records.Submit(ctx, testAgent, submitRequest(1, testAddr(5)))
	require.NoError(t, err)
	_, err = f.records.Submit(ctx, testAgent, submitRequest(1, testAddr(5)))
	assert.ErrorIs(t, err, recorddomain.ErrAlreadyExists)

	// Duplicate id wins over every later check: a resubmission with broken
	// metadata still reports the existing id, not the metadata fault.
	_, err = f.records.Submit(ctx, testAgent, recorddomain.SubmitRequest{
		ID:    testHash(1),
		Owner: testAddr(5),
		Keys:  []string{"site"},
	})
	assert.ErrorIs(t, err, recorddomain.ErrAlreadyExists)
}

func TestSuspendedAgentCannotSubmit(t *testing.T) {
	f := setupRecordService(t)
	ctx := context.Background()

	require.NoError(t, f.agents.UpdateStatus(ctx, testOwner, testAgent, agentdomain.StatusSuspended))
	_, err := f.records.Submit(ctx, testAgent, submitRequest(1, testAddr(5)))
	assert.ErrorIs(t, err, recorddomain.ErrAgentNotActive)

	require.NoError(t, f.agents.UpdateStatus(ctx, testOwner, testAgent, agentdomain.StatusActive))
	_, err = f.records.Submit(ctx, testAgent, submitRequest(1, testAddr(5)))
	require.NoError(t, err)
}

func TestSubmitBatchAllOrNothing(t *testing.T) {
	f := setupRecordService(t)
	ctx := context.Background()

	// Item 3 reuses the id of item 1, so the whole batch must roll back.
	reqs := []recorddomain.SubmitRequest{
		submitRequest(1, testAddr(5)),
		submitRequest(2, testAddr(5)),
		submitRequest(1, testAddr(5)),
		submitRequest(4, testAddr(5)),
		submitRequest(5, testAddr(5)),
	}
	_, err := f.records.SubmitBatch(ctx, testAgent, reqs)
	assert.ErrorIs(t, err, recorddomain.ErrAlreadyExists)

	var count int64
	require.NoError(t, f.db.Model(&recorddomain.ConsumptionRecord{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestSubmitBatchLimits(t *testing.T) {
	f := setupRecordService(t)
	ctx := context.Background()

	_, err := f.records.SubmitBatch(ctx, testAgent, nil)
	assert.ErrorIs(t, err, recorddomain.ErrEmptyBatch)

	reqs := make([]recorddomain.SubmitRequest, recorddomain.MaxBatchSize+1)
	for i := range reqs {
		reqs[i] = submitRequest(i+1, testAddr(5))
	}
	_, err = f.records.SubmitBatch(ctx, testAgent, reqs)
	assert.ErrorIs(t, err, recorddomain.ErrBatchTooLarge)

	created, err := f.records.SubmitBatch(ctx, testAgent, reqs[:recorddomain.MaxBatchSize])
	require.NoError(t, err)
	assert.Len(t, created, recorddomain.MaxBatchSize)
}
