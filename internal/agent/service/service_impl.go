package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	"github.com/gridsettle/tributary/internal/clock"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/events"
	obsmetrics "github.com/gridsettle/tributary/internal/observability/metrics"
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
	agents     repository.Repository[agentdomain.Agent]
	outbox     *events.Outbox
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) agentdomain.Service {
	// A malformed owner address disables every owner-gated operation rather
	// than silently matching arbitrary callers.
	owner, _ := hexid.ParseAddress(p.Config.OwnerAddress)

	return &Service{
		db:         p.DB,
		log:        p.Log.Named("agent.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		owner:      owner,
		agents:     repository.ProvideStore[agentdomain.Agent](p.DB),
		outbox:     p.Outbox,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Register(ctx context.Context, caller, address, displayName string) (*agentdomain.Agent, error) {
	if err := s.requireOwner(caller); err != nil {
		return nil, err
	}

	address, err := hexid.ParseAddress(address)
	if err != nil {
		return nil, agentdomain.ErrInvalidAddress
	}
	if displayName == "" {
		return nil, agentdomain.ErrEmptyName
	}

	agent := &agentdomain.Agent{
		Address:      address,
		DisplayName:  displayName,
		Status:       agentdomain.StatusActive,
		RegisteredAt: s.clock.Now(),
		Ordinal:      s.genID.Generate(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.agents.WithTrx(tx).FindOne(ctx, &agentdomain.Agent{Address: address})
		if err != nil {
			return err
		}
		if existing != nil {
			return agentdomain.ErrAlreadyRegistered
		}

		if err := s.agents.WithTrx(tx).Create(ctx, agent); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return agentdomain.ErrAlreadyRegistered
			}
			return err
		}

		return s.outbox.Emit(ctx, tx, "agent.registered", address, map[string]any{
			"address":       address,
			"display_name":  displayName,
			"status":        agent.Status.String(),
			"registered_at": agent.RegisteredAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordAgentRegistration(ctx)
	s.log.Info("agent registered",
		zap.String("address", address),
		zap.String("display_name", displayName),
	)
	return agent, nil
}

func (s *Service) UpdateStatus(ctx context.Context, caller, address string, status agentdomain.Status) error {
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if !status.Valid() {
		return agentdomain.ErrInvalidStatus
	}

	address, err := hexid.ParseAddress(address)
	if err != nil {
		return agentdomain.ErrInvalidAddress
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agent, err := s.agents.WithTrx(tx).FindOne(ctx, &agentdomain.Agent{Address: address})
		if err != nil {
			return err
		}
		if agent == nil {
			return agentdomain.ErrNotFound
		}

		oldStatus := agent.Status
		if err := tx.WithContext(ctx).
			Model(&agentdomain.Agent{}).
			Where("address = ?", address).
			Update("status", status).Error; err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, "agent.status_changed", address, map[string]any{
			"address":    address,
			"old_status": oldStatus.String(),
			"new_status": status.String(),
		})
	})
}

func (s *Service) IsActive(ctx context.Context, address string) (bool, error) {
	address, err := hexid.ParseAddress(address)
	if err != nil {
		return false, nil
	}

	agent, err := s.agents.FindOne(ctx, &agentdomain.Agent{Address: address})
	if err != nil {
		return false, err
	}
	if agent == nil {
		return false, nil
	}
	return agent.Status == agentdomain.StatusActive, nil
}

func (s *Service) Get(ctx context.Context, address string) (*agentdomain.Agent, error) {
	address, err := hexid.ParseAddress(address)
	if err != nil {
		return nil, agentdomain.ErrNotFound
	}

	agent, err := s.agents.FindOne(ctx, &agentdomain.Agent{Address: address})
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, agentdomain.ErrNotFound
	}
	return agent, nil
}

func (s *Service) ListAll(ctx context.Context) ([]string, error) {
	agents, err := s.agents.Find(ctx, &agentdomain.Agent{}, option.WithOrderBy("ordinal ASC"))
	if err != nil {
		return nil, err
	}

	addresses := make([]string, 0, len(agents))
	for _, agent := range agents {
		addresses = append(addresses, agent.Address)
	}
	return addresses, nil
}

func (s *Service) requireOwner(caller string) error {
	normalized, err := hexid.ParseAddress(caller)
	if err != nil || s.owner == "" || normalized != s.owner {
		return agentdomain.ErrNotAuthorized
	}
	return nil
}
