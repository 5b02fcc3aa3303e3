package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/events"
	obsmetrics "github.com/gridsettle/tributary/internal/observability/metrics"
	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
	"github.com/gridsettle/tributary/pkg/db"
	"github.com/gridsettle/tributary/pkg/db/option"
	"github.com/gridsettle/tributary/pkg/hexid"
	"github.com/gridsettle/tributary/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Registry   agentdomain.Service
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	registry   agentdomain.Gate
	records    repository.Repository[recorddomain.ConsumptionRecord]
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) recorddomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("record.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		registry:   p.Registry,
		records:    repository.ProvideStore[recorddomain.ConsumptionRecord](p.DB),
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Submit(ctx context.Context, caller string, req recorddomain.SubmitRequest) (*recorddomain.ConsumptionRecord, error) {
	caller, err := s.requireActiveAgent(ctx, caller)
	if err != nil {
		return nil, err
	}

	record, err := s.buildRecord(caller, req)
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_record", err.Error())
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertRecord(ctx, tx, record, req)
	})
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_record", err.Error())
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "consumption_record", 1)
	s.log.Info("consumption record committed",
		zap.String("id", record.ID),
		zap.String("owner", record.Owner),
		zap.String("submitted_by", caller),
	)
	return record, nil
}

func (s *Service) SubmitBatch(ctx context.Context, caller string, reqs []recorddomain.SubmitRequest) ([]*recorddomain.ConsumptionRecord, error) {
	caller, err := s.requireActiveAgent(ctx, caller)
	if err != nil {
		return nil, err
	}

	if len(reqs) == 0 {
		return nil, recorddomain.ErrEmptyBatch
	}
	if len(reqs) > recorddomain.MaxBatchSize {
		return nil, recorddomain.ErrBatchTooLarge
	}

	records := make([]*recorddomain.ConsumptionRecord, 0, len(reqs))
	for _, req := range reqs {
		record, err := s.buildRecord(caller, req)
		if err != nil {
			s.obsMetrics.RecordRejection(ctx, "consumption_record", err.Error())
			return nil, err
		}
		records = append(records, record)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(records))
		for i, record := range records {
			if err := s.insertRecord(ctx, tx, record, reqs[i]); err != nil {
				return err
			}
			ids = append(ids, record.ID)
		}

		return s.outbox.Emit(ctx, tx, "consumption_record.batch_submitted", caller, map[string]any{
			"submitted_by": caller,
			"count":        len(ids),
			"record_ids":   ids,
		})
	})
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_record", err.Error())
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "consumption_record", int64(len(records)))
	s.log.Info("consumption record batch committed",
		zap.Int("count", len(records)),
		zap.String("submitted_by", caller),
	)
	return records, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	id, err := hexid.ParseHash(id)
	if err != nil {
		return false, nil
	}

	record, err := s.records.FindOne(ctx, &recorddomain.ConsumptionRecord{ID: id})
	if err != nil {
		return false, err
	}
	return record != nil, nil
}

func (s *Service) Get(ctx context.Context, id string) (recorddomain.ConsumptionRecord, error) {
	normalized, err := hexid.ParseHash(id)
	if err != nil {
		return recorddomain.ConsumptionRecord{}, nil
	}

	record, err := s.records.FindOne(ctx, &recorddomain.ConsumptionRecord{ID: normalized})
	if err != nil {
		return recorddomain.ConsumptionRecord{}, err
	}
	if record == nil {
		return recorddomain.ConsumptionRecord{}, nil
	}
	return *record, nil
}

func (s *Service) GetByOwner(ctx context.Context, owner string) ([]string, error) {
	owner, err := hexid.ParseAddress(owner)
	if err != nil {
		return nil, recorddomain.ErrInvalidOwner
	}

	records, err := s.records.Find(ctx,
		&recorddomain.ConsumptionRecord{Owner: owner},
		option.WithOrderBy("ordinal ASC"),
	)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

// buildRecord runs the stateless part of the validation ladder and assembles
// the entity. The duplicate-id and metadata checks need storage order and
// happen in insertRecord.
func (s *Service) buildRecord(caller string, req recorddomain.SubmitRequest) (*recorddomain.ConsumptionRecord, error) {
	id, err := hexid.ParseHash(req.ID)
	if err != nil {
		return nil, recorddomain.ErrInvalidID
	}

	owner, err := hexid.ParseAddress(req.Owner)
	if err != nil {
		return nil, recorddomain.ErrInvalidOwner
	}

	return &recorddomain.ConsumptionRecord{
		ID:          id,
		Owner:       owner,
		SubmittedBy: caller,
		SubmittedAt: s.clock.Now(),
		Ordinal:     s.genID.Generate(),
	}, nil
}

// insertRecord commits one record on tx and emits its events. The duplicate
// check runs before the metadata checks: resubmitting an existing id fails
// with AlreadyExists no matter what arguments ride along.
func (s *Service) insertRecord(ctx context.Context, tx *gorm.DB, record *recorddomain.ConsumptionRecord, req recorddomain.SubmitRequest) error {
	existing, err := s.records.WithTrx(tx).FindOne(ctx, &recorddomain.ConsumptionRecord{ID: record.ID})
	if err != nil {
		return err
	}
	if existing != nil {
		return recorddomain.ErrAlreadyExists
	}

	if len(req.Keys) != len(req.Values) {
		return recorddomain.ErrMetadataMismatch
	}
	pairs := make([]recorddomain.MetadataPair, 0, len(req.Keys))
	for i, key := range req.Keys {
		if key == "" {
			return recorddomain.ErrEmptyKey
		}
		pairs = append(pairs, recorddomain.MetadataPair{Key: key, Value: req.Values[i]})
	}
	if err := record.SetMetadata(pairs); err != nil {
		return err
	}

	if err := s.records.WithTrx(tx).Create(ctx, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return recorddomain.ErrAlreadyExists
		}
		return err
	}

	if err := s.outbox.Emit(ctx, tx, "consumption_record.submitted", record.ID, map[string]any{
		"id":           record.ID,
		"owner":        record.Owner,
		"submitted_by": record.SubmittedBy,
		"submitted_at": record.SubmittedAt,
	}); err != nil {
		return err
	}

	for i, key := range req.Keys {
		if err := s.outbox.Emit(ctx, tx, "consumption_record.metadata_added", record.ID, map[string]any{
			"id":       record.ID,
			"position": i,
			"key":      key,
			"value":    req.Values[i],
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) requireActiveAgent(ctx context.Context, caller string) (string, error) {
	normalized, err := hexid.ParseAddress(caller)
	if err != nil {
		return "", recorddomain.ErrAgentNotActive
	}

	active, err := s.registry.IsActive(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !active {
		return "", recorddomain.ErrAgentNotActive
	}
	return normalized, nil
}
