package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/events"
	obsmetrics "github.com/gridsettle/tributary/internal/observability/metrics"
	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
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
	Config     config.Config
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	registry   agentdomain.Gate
	owner      string
	units      repository.Repository[unitdomain.ConsumptionUnit]
	consumed   repository.Repository[unitdomain.ConsumedRecord]
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics

	mu      sync.RWMutex
	records recorddomain.Reader
}

func NewService(p Params) unitdomain.Service {
	owner, _ := hexid.ParseAddress(p.Config.OwnerAddress)

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("unit.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		registry:   p.Registry,
		owner:      owner,
		units:      repository.ProvideStore[unitdomain.ConsumptionUnit](p.DB),
		consumed:   repository.ProvideStore[unitdomain.ConsumedRecord](p.DB),
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

// SetRecordLedger repoints the upstream record ledger this service validates
// linked records against. Owner-only.
func (s *Service) SetRecordLedger(caller string, ledger recorddomain.Reader) error {
	normalized, err := hexid.ParseAddress(caller)
	if err != nil || s.owner == "" || normalized != s.owner {
		return unitdomain.ErrNotAuthorized
	}

	s.mu.Lock()
	s.records = ledger
	s.mu.Unlock()
	return nil
}

// RecordLedger returns the currently configured upstream ledger.
func (s *Service) RecordLedger() recorddomain.Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

func (s *Service) Submit(ctx context.Context, caller string, req unitdomain.SubmitRequest) (*unitdomain.ConsumptionUnit, error) {
	caller, err := s.requireActiveAgent(ctx, caller)
	if err != nil {
		return nil, err
	}

	unit, linked, err := s.buildUnit(caller, req)
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_unit", err.Error())
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.insertUnit(ctx, tx, unit, linked)
	})
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_unit", err.Error())
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "consumption_unit", 1)
	s.log.Info("consumption unit committed",
		zap.String("id", unit.ID),
		zap.String("owner", unit.Owner),
		zap.Int("linked_records", len(linked)),
	)
	return unit, nil
}

func (s *Service) SubmitBatch(ctx context.Context, caller string, reqs []unitdomain.SubmitRequest) ([]*unitdomain.ConsumptionUnit, error) {
	caller, err := s.requireActiveAgent(ctx, caller)
	if err != nil {
		return nil, err
	}

	if len(reqs) == 0 {
		return nil, unitdomain.ErrEmptyBatch
	}
	if len(reqs) > unitdomain.MaxBatchSize {
		return nil, unitdomain.ErrBatchTooLarge
	}

	units := make([]*unitdomain.ConsumptionUnit, 0, len(reqs))
	linkedSets := make([][]string, 0, len(reqs))
	for _, req := range reqs {
		unit, linked, err := s.buildUnit(caller, req)
		if err != nil {
			s.obsMetrics.RecordRejection(ctx, "consumption_unit", err.Error())
			return nil, err
		}
		units = append(units, unit)
		linkedSets = append(linkedSets, linked)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, 0, len(units))
		for i, unit := range units {
			if err := s.insertUnit(ctx, tx, unit, linkedSets[i]); err != nil {
				return err
			}
			ids = append(ids, unit.ID)
		}

		return s.outbox.Emit(ctx, tx, "consumption_unit.batch_submitted", caller, map[string]any{
			"submitted_by": caller,
			"count":        len(ids),
			"unit_ids":     ids,
		})
	})
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "consumption_unit", err.Error())
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "consumption_unit", int64(len(units)))
	s.log.Info("consumption unit batch committed",
		zap.Int("count", len(units)),
		zap.String("submitted_by", caller),
	)
	return units, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	id, err := hexid.ParseHash(id)
	if err != nil {
		return false, nil
	}

	unit, err := s.units.FindOne(ctx, &unitdomain.ConsumptionUnit{ID: id})
	if err != nil {
		return false, err
	}
	return unit != nil, nil
}

func (s *Service) Get(ctx context.Context, id string) (unitdomain.ConsumptionUnit, error) {
	normalized, err := hexid.ParseHash(id)
	if err != nil {
		return unitdomain.ConsumptionUnit{}, nil
	}

	unit, err := s.units.FindOne(ctx, &unitdomain.ConsumptionUnit{ID: normalized})
	if err != nil {
		return unitdomain.ConsumptionUnit{}, err
	}
	if unit == nil {
		return unitdomain.ConsumptionUnit{}, nil
	}
	return *unit, nil
}

func (s *Service) GetByOwner(ctx context.Context, owner string) ([]string, error) {
	owner, err := hexid.ParseAddress(owner)
	if err != nil {
		return nil, unitdomain.ErrInvalidOwner
	}

	units, err := s.units.Find(ctx,
		&unitdomain.ConsumptionUnit{Owner: owner},
		option.WithOrderBy("ordinal ASC"),
	)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(units))
	for _, unit := range units {
		ids = append(ids, unit.ID)
	}
	return ids, nil
}

// buildUnit runs the stateless part of the validation ladder and assembles
// the entity. The linked-record checks that need storage happen in insertUnit.
func (s *Service) buildUnit(caller string, req unitdomain.SubmitRequest) (*unitdomain.ConsumptionUnit, []string, error) {
	id, err := hexid.ParseHash(req.ID)
	if err != nil {
		return nil, nil, unitdomain.ErrInvalidID
	}

	owner, err := hexid.ParseAddress(req.Owner)
	if err != nil {
		return nil, nil, unitdomain.ErrInvalidOwner
	}

	unit := &unitdomain.ConsumptionUnit{
		ID:            id,
		Owner:         owner,
		SubmittedBy:   caller,
		Currency:      req.Currency,
		SettlementDay: req.SettlementDay,
		AmountBase:    req.AmountBase,
		AmountAtto:    req.AmountAtto,
		SubmittedAt:   s.clock.Now(),
		Ordinal:       s.genID.Generate(),
	}
	return unit, req.LinkedRecordIDs, nil
}

// insertUnit commits one unit on tx: the ordered validation ladder, the
// permanent consumed-marks, the entity row and its event.
func (s *Service) insertUnit(ctx context.Context, tx *gorm.DB, unit *unitdomain.ConsumptionUnit, linkedRecordIDs []string) error {
	existing, err := s.units.WithTrx(tx).FindOne(ctx, &unitdomain.ConsumptionUnit{ID: unit.ID})
	if err != nil {
		return err
	}
	if existing != nil {
		return unitdomain.ErrAlreadyExists
	}

	if unit.Currency == 0 {
		return unitdomain.ErrInvalidCurrency
	}

	amount := unit.Amount()
	if amount.IsZero() || amount.Validate() != nil {
		return unitdomain.ErrInvalidAmount
	}

	if len(linkedRecordIDs) == 0 {
		return unitdomain.ErrEmptyLinkedRecords
	}

	records := s.RecordLedger()
	if records == nil {
		return unitdomain.ErrNoRecordLedger
	}

	seen := make(map[string]struct{}, len(linkedRecordIDs))
	normalized := make([]string, 0, len(linkedRecordIDs))
	for _, raw := range linkedRecordIDs {
		recordID, err := hexid.ParseHash(raw)
		if err != nil {
			return unitdomain.ErrRecordNotFound
		}
		if _, dup := seen[recordID]; dup {
			return unitdomain.ErrDuplicateLinkedRecord
		}
		seen[recordID] = struct{}{}

		mark, err := s.consumed.WithTrx(tx).FindOne(ctx, &unitdomain.ConsumedRecord{RecordID: recordID})
		if err != nil {
			return err
		}
		if mark != nil {
			return unitdomain.ErrRecordAlreadyConsumed
		}

		exists, err := records.Exists(ctx, recordID)
		if err != nil {
			return err
		}
		if !exists {
			return unitdomain.ErrRecordNotFound
		}

		// The primary key on consumed_records is the compare-and-set: a
		// concurrent submission racing on the same record id loses here and
		// rolls back in full.
		err = s.consumed.WithTrx(tx).Create(ctx, &unitdomain.ConsumedRecord{
			RecordID:   recordID,
			UnitID:     unit.ID,
			ConsumedAt: unit.SubmittedAt,
		})
		if err != nil {
			if db.IsDuplicateKeyErr(err) {
				return unitdomain.ErrRecordAlreadyConsumed
			}
			return err
		}
		normalized = append(normalized, recordID)
	}

	if err := unit.SetLinkedRecords(normalized); err != nil {
		return err
	}

	if err := s.units.WithTrx(tx).Create(ctx, unit); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return unitdomain.ErrAlreadyExists
		}
		return err
	}

	return s.outbox.Emit(ctx, tx, "consumption_unit.submitted", unit.ID, map[string]any{
		"id":             unit.ID,
		"owner":          unit.Owner,
		"submitted_by":   unit.SubmittedBy,
		"currency":       unit.Currency,
		"settlement_day": unit.SettlementDay,
		"amount_base":    unit.AmountBase,
		"amount_atto":    unit.AmountAtto,
		"linked_records": len(normalized),
		"submitted_at":   unit.SubmittedAt,
	})
}

func (s *Service) requireActiveAgent(ctx context.Context, caller string) (string, error) {
	normalized, err := hexid.ParseAddress(caller)
	if err != nil {
		return "", unitdomain.ErrAgentNotActive
	}

	active, err := s.registry.IsActive(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !active {
		return "", unitdomain.ErrAgentNotActive
	}
	return normalized, nil
}
