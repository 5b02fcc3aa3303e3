package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gridsettle/tributary/internal/agent"
	agentdomain "github.com/gridsettle/tributary/internal/agent/domain"
	"github.com/gridsettle/tributary/internal/config"
	"github.com/gridsettle/tributary/internal/draft"
	draftdomain "github.com/gridsettle/tributary/internal/draft/domain"
	"github.com/gridsettle/tributary/internal/events"
	"github.com/gridsettle/tributary/internal/observability"
	obsmiddleware "github.com/gridsettle/tributary/internal/observability/logger"
	obsmetrics "github.com/gridsettle/tributary/internal/observability/metrics"
	obstracing "github.com/gridsettle/tributary/internal/observability/tracing"
	"github.com/gridsettle/tributary/internal/ratelimit"
	"github.com/gridsettle/tributary/internal/record"
	recorddomain "github.com/gridsettle/tributary/internal/record/domain"
	"github.com/gridsettle/tributary/internal/unit"
	unitdomain "github.com/gridsettle/tributary/internal/unit/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	events.Module,
	agent.Module,
	record.Module,
	unit.Module,
	draft.Module,
	ratelimit.Module,
	fx.Invoke(wireLedgers),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

// wireLedgers points each ledger at its upstream before the server accepts
// traffic. The owner can repoint them later through the admin endpoints.
func wireLedgers(cfg config.Config, log *zap.Logger, units unitdomain.Service, drafts draftdomain.Service, records recorddomain.Service) error {
	if cfg.OwnerAddress == "" {
		log.Warn("ledger owner address not configured, cross-ledger wiring skipped")
		return nil
	}
	if err := units.SetRecordLedger(cfg.OwnerAddress, records); err != nil {
		return err
	}
	return drafts.SetUnitLedger(cfg.OwnerAddress, units)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	agentSvc      agentdomain.Service
	recordSvc     recorddomain.Service
	unitSvc       unitdomain.Service
	draftSvc      draftdomain.Service
	submitLimiter *ratelimit.SubmitLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	AgentSvc      agentdomain.Service
	RecordSvc     recorddomain.Service
	UnitSvc       unitdomain.Service
	DraftSvc      draftdomain.Service
	SubmitLimiter *ratelimit.SubmitLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		agentSvc:      p.AgentSvc,
		recordSvc:     p.RecordSvc,
		unitSvc:       p.UnitSvc,
		draftSvc:      p.DraftSvc,
		submitLimiter: p.SubmitLimiter,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1", s.CallerAddress())

	// -------- Agent Registry --------
	v1.POST("/agents", s.RegisterAgent)
	v1.PATCH("/agents/:address/status", s.UpdateAgentStatus)
	v1.GET("/agents", s.ListAgents)
	v1.GET("/agents/:address", s.GetAgent)

	// -------- Consumption Record Ledger --------
	v1.POST("/consumption-records", s.SubmitRateLimit(), s.SubmitRecord)
	v1.POST("/consumption-records/batch", s.SubmitRateLimit(), s.SubmitRecordBatch)
	v1.GET("/consumption-records/:id", s.GetRecord)
	v1.GET("/consumption-records/:id/exists", s.RecordExists)
	v1.GET("/owners/:owner/consumption-records", s.GetRecordsByOwner)

	// -------- Consumption Unit Ledger --------
	v1.POST("/consumption-units", s.SubmitRateLimit(), s.SubmitUnit)
	v1.POST("/consumption-units/batch", s.SubmitRateLimit(), s.SubmitUnitBatch)
	v1.GET("/consumption-units/:id", s.GetUnit)
	v1.GET("/consumption-units/:id/exists", s.UnitExists)
	v1.GET("/owners/:owner/consumption-units", s.GetUnitsByOwner)

	// -------- Tribute Draft Ledger --------
	v1.POST("/tribute-drafts", s.SubmitRateLimit(), s.SubmitDraft)
	v1.GET("/tribute-drafts/:id", s.GetDraft)
	v1.GET("/owners/:owner/tribute-drafts", s.GetDraftsByOwner)
}
