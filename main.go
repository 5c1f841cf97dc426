// Package main wires the vulnerability correlation and risk decision engine:
// database, feed registry, correlation engine, decision services, analytics
// and the REST/GraphQL surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"go.uber.org/zap"

	"github.com/riskhub/riskhub-backend/analytics"
	"github.com/riskhub/riskhub-backend/config"
	"github.com/riskhub/riskhub-backend/correlate"
	"github.com/riskhub/riskhub-backend/database"
	"github.com/riskhub/riskhub-backend/events/modules/feedsync"
	"github.com/riskhub/riskhub-backend/feeds"
	"github.com/riskhub/riskhub-backend/feeds/eol"
	"github.com/riskhub/riskhub-backend/feeds/epss"
	"github.com/riskhub/riskhub-backend/feeds/jvn"
	"github.com/riskhub/riskhub-backend/feeds/kev"
	"github.com/riskhub/riskhub-backend/feeds/nvd"
	"github.com/riskhub/riskhub-backend/feeds/osvdev"
	"github.com/riskhub/riskhub-backend/internal/api"
	internalkafka "github.com/riskhub/riskhub-backend/internal/kafka"
	"github.com/riskhub/riskhub-backend/restapi"
	"github.com/riskhub/riskhub-backend/risk"
	"github.com/riskhub/riskhub-backend/ssvc"
	"github.com/riskhub/riskhub-backend/util"
	"github.com/riskhub/riskhub-backend/vexstmt"
)

func main() {
	logger := database.InitLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	conn := database.InitializeDatabase()
	db := conn.Database

	// Root context cancelled on SIGINT/SIGTERM; every background sync and
	// correlation pass observes it.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := feeds.NewArangoStore(db)
	timeout := time.Duration(cfg.Feeds.TimeoutSeconds) * time.Second
	retry := cfg.Feeds.Retry

	var producer *feedsync.Producer
	var onCompleted feeds.CompletedFunc
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		producer = feedsync.NewProducer([]string{brokers}, util.GetEnvDefault("KAFKA_TOPIC", internalkafka.DefaultTopic), logger)
		defer producer.Close()
		onCompleted = producer.CompletedFunc(ctx)
	}

	registry := feeds.NewRegistry(ctx, store, logger, onCompleted)
	registry.Register(nvd.NewUpdater(
		nvd.WithAPIKey(os.Getenv("NVD_API_KEY")),
		nvd.WithTimeout(timeout),
		nvd.WithRetry(retry),
	))
	registry.Register(osvdev.NewUpdater(
		osvdev.WithTimeout(timeout),
		osvdev.WithRetry(retry),
	))
	registry.Register(jvn.NewUpdater(
		jvn.WithSeverityRules(cfg.Severity.Keywords),
		jvn.WithTimeout(timeout),
		jvn.WithRetry(retry),
	))
	registry.Register(kev.NewUpdater(
		kev.WithTimeout(timeout),
		kev.WithRetry(retry),
	))
	registry.Register(epss.NewUpdater(
		epss.WithTimeout(timeout),
		epss.WithRetry(retry),
	))
	registry.Register(eol.NewUpdater(
		eol.WithTimeout(timeout),
		eol.WithRetry(retry),
	))

	engine := correlate.NewEngine(db, store, correlate.Policy{
		RetainOnUnknown: cfg.Correlation.RetainOnUnknown,
	}, logger)

	vexSvc := vexstmt.NewService(db, logger)
	ssvcSvc := ssvc.NewService(db, cfg.Ssvc, logger)
	riskAgg := risk.NewAggregator(db, vexSvc, logger)
	roller := analytics.NewRoller(db, riskAgg, cfg.Slo, logger)

	if err := internalkafka.RunEventProcessor(ctx, db, engine, ssvcSvc, logger); err != nil {
		logger.Warn("Event processor unavailable", zap.Error(err))
	}

	go runSnapshotRoller(ctx, db, roller, logger)

	app, err := api.NewFiberApp(restapi.Services{
		DB:        db,
		Registry:  registry,
		Engine:    engine,
		Vex:       vexSvc,
		Ssvc:      ssvcSvc,
		Risks:     riskAgg,
		Analytics: roller,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Failed to build app", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	port := util.GetEnvDefault("MS_PORT", "3000")
	logger.Info("Starting server", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		logger.Fatal("Server exited", zap.Error(err))
	}
}

// runSnapshotRoller recomputes today's snapshot rows once at startup and
// then every 24 hours. The upsert is idempotent, so overlapping triggers
// just overwrite today's row.
func runSnapshotRoller(ctx context.Context, db arangodb.Database, roller *analytics.Roller, logger *zap.Logger) {
	roll := func() {
		projects, err := database.ListProjects(ctx, db)
		if err != nil {
			logger.Warn("Snapshot roll skipped", zap.Error(err))
			return
		}
		now := time.Now().UTC()
		tenants := map[string]bool{}
		for _, project := range projects {
			tenants[project.TenantID] = true
			if _, err := roller.RollDaily(ctx, project.TenantID, project.Key, now); err != nil {
				logger.Warn("Project snapshot failed",
					zap.String("project", project.Key), zap.Error(err))
			}
		}
		for tenantID := range tenants {
			if _, err := roller.RollDaily(ctx, tenantID, "", now); err != nil {
				logger.Warn("Tenant snapshot failed",
					zap.String("tenant", tenantID), zap.Error(err))
			}
		}
	}

	roll()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			roll()
		}
	}
}
