package service

import (
	"context"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	draftdomain "github.com/gridsettle/tributary/internal/draft/domain"
	"github.com/gridsettle/tributary/internal/events"
	obsmetrics "github.com/gridsettle/tributary/internal/observability/metrics"
	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
	"github.com/gridsettle/tributary/pkg/atto"
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
	Config     config.Config
	Outbox     *events.Outbox
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	owner      string
	drafts     repository.Repository[draftdomain.TributeDraft]
	consumed   repository.Repository[draftdomain.ConsumedUnit]
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics

	mu    sync.RWMutex
	units unitdomain.Reader
}

func NewService(p Params) draftdomain.Service {
	owner, _ := hexid.ParseAddress(p.Config.OwnerAddress)

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("draft.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		owner:      owner,
		drafts:     repository.ProvideStore[draftdomain.TributeDraft](p.DB),
		consumed:   repository.ProvideStore[draftdomain.ConsumedUnit](p.DB),
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

// SetUnitLedger repoints the upstream unit ledger this service reads
// referenced units from. Owner-only.
func (s *Service) SetUnitLedger(caller string, ledger unitdomain.Reader) error {
	normalized, err := hexid.ParseAddress(caller)
	if err != nil || s.owner == "" || normalized != s.owner {
		return draftdomain.ErrNotAuthorized
	}

	s.mu.Lock()
	s.units = ledger
	s.mu.Unlock()
	return nil
}

// UnitLedger returns the currently configured upstream ledger.
func (s *Service) UnitLedger() unitdomain.Reader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.units
}

func (s *Service) Submit(ctx context.Context, caller string, linkedUnitIDs []string) (*draftdomain.TributeDraft, error) {
	caller, err := hexid.ParseAddress(caller)
	if err != nil {
		return nil, draftdomain.ErrInvalidOwner
	}

	if len(linkedUnitIDs) == 0 {
		s.obsMetrics.RecordRejection(ctx, "tribute_draft", draftdomain.ErrEmptyLinkedUnits.Error())
		return nil, draftdomain.ErrEmptyLinkedUnits
	}

	units := s.UnitLedger()
	if units == nil {
		return nil, draftdomain.ErrNoUnitLedger
	}

	var draft *draftdomain.TributeDraft
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The duplicate/consumed pass covers every referenced id before any
		// unit is inspected, so a consumed unit anywhere in the list is
		// reported ahead of owner, currency and day faults.
		seen := make(map[string]struct{}, len(linkedUnitIDs))
		normalized := make([]string, 0, len(linkedUnitIDs))
		for _, raw := range linkedUnitIDs {
			unitID, err := hexid.ParseHash(raw)
			if err != nil {
				return draftdomain.ErrUnitNotFound
			}
			if _, dup := seen[unitID]; dup {
				return draftdomain.ErrDuplicateUnit
			}
			seen[unitID] = struct{}{}

			mark, err := s.consumed.WithTrx(tx).FindOne(ctx, &draftdomain.ConsumedUnit{UnitID: unitID})
			if err != nil {
				return err
			}
			if mark != nil {
				return draftdomain.ErrDuplicateUnit
			}

			normalized = append(normalized, unitID)
		}

		var (
			total    atto.Amount
			currency uint32
			day      uint32
		)
		for i, unitID := range normalized {
			unit, err := units.Get(ctx, unitID)
			if err != nil {
				return err
			}
			if unit.ID == "" {
				return draftdomain.ErrUnitNotFound
			}
			if unit.Owner != caller {
				return draftdomain.ErrNotSameOwner
			}

			if i == 0 {
				total = unit.Amount()
				currency = unit.Currency
				day = unit.SettlementDay
				continue
			}
			if unit.Currency != currency {
				return draftdomain.ErrCurrencyMismatch
			}
			if unit.SettlementDay != day {
				return draftdomain.ErrDayMismatch
			}
			// Carry propagates on every addition, not once at the end.
			total, err = total.Add(unit.Amount())
			if err != nil {
				return err
			}
		}

		draftID := draftdomain.DeriveID(caller, day, normalized)
		submittedAt := s.clock.Now()

		for _, unitID := range normalized {
			err := s.consumed.WithTrx(tx).Create(ctx, &draftdomain.ConsumedUnit{
				UnitID:     unitID,
				DraftID:    draftID,
				ConsumedAt: submittedAt,
			})
			if err != nil {
				if db.IsDuplicateKeyErr(err) {
					return draftdomain.ErrDuplicateUnit
				}
				return err
			}
		}

		draft = &draftdomain.TributeDraft{
			ID:            draftID,
			Owner:         caller,
			Currency:      currency,
			SettlementDay: day,
			AmountBase:    total.Base,
			AmountAtto:    total.Atto,
			SubmittedAt:   submittedAt,
			Ordinal:       s.genID.Generate(),
		}
		if err := draft.SetLinkedUnits(normalized); err != nil {
			return err
		}

		if err := s.drafts.WithTrx(tx).Create(ctx, draft); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return draftdomain.ErrDuplicateUnit
			}
			return err
		}

		return s.outbox.Emit(ctx, tx, "tribute_draft.submitted", draftID, map[string]any{
			"id":             draftID,
			"owner":          caller,
			"currency":       currency,
			"settlement_day": day,
			"amount_base":    total.Base,
			"amount_atto":    total.Atto,
			"linked_units":   len(normalized),
			"submitted_at":   submittedAt,
		})
	})
	if err != nil {
		s.obsMetrics.RecordRejection(ctx, "tribute_draft", err.Error())
		return nil, err
	}

	s.obsMetrics.RecordSubmission(ctx, "tribute_draft", 1)
	s.log.Info("tribute draft committed",
		zap.String("id", draft.ID),
		zap.String("owner", draft.Owner),
		zap.Uint64("amount_base", draft.AmountBase),
		zap.Uint64("amount_atto", draft.AmountAtto),
	)
	return draft, nil
}

func (s *Service) Get(ctx context.Context, id string) (*draftdomain.TributeDraft, error) {
	normalized, err := hexid.ParseHash(id)
	if err != nil {
		return nil, draftdomain.ErrNotFound
	}

	draft, err := s.drafts.FindOne(ctx, &draftdomain.TributeDraft{ID: normalized})
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, draftdomain.ErrNotFound
	}
	return draft, nil
}

func (s *Service) GetByOwner(ctx context.Context, owner string, indexFrom, indexTo uint64) ([]string, error) {
	owner, err := hexid.ParseAddress(owner)
	if err != nil {
		return nil, draftdomain.ErrInvalidOwner
	}

	if indexFrom > indexTo {
		return nil, draftdomain.ErrInvalidRange
	}
	window := indexTo - indexFrom + 1
	if window > draftdomain.MaxPageSize {
		return nil, draftdomain.ErrPageTooLarge
	}

	count, err := s.drafts.Count(ctx, &draftdomain.TributeDraft{Owner: owner})
	if err != nil {
		return nil, err
	}
	if indexTo >= uint64(count) {
		return nil, draftdomain.ErrIndexOutOfBounds
	}

	drafts, err := s.drafts.Find(ctx,
		&draftdomain.TributeDraft{Owner: owner},
		option.WithOrderBy("ordinal ASC"),
		option.WithOffset(int(indexFrom)),
		option.WithLimit(int(window)),
	)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(drafts))
	for _, draft := range drafts {
		ids = append(ids, draft.ID)
	}
	return ids, nil
}
