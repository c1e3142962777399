// Command server wires the bill verification service: configuration,
// stores, audit trail, token auth, HTTP router, and lifecycle. Business
// logic lives in the internal feature packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
	audithandler "github.com/AshishBhandari123/bvas-project/internal/audit/handler"
	"github.com/AshishBhandari123/bvas-project/internal/audit/publisher"
	auditstore "github.com/AshishBhandari123/bvas-project/internal/audit/store"
	billhandler "github.com/AshishBhandari123/bvas-project/internal/bill/handler"
	billservice "github.com/AshishBhandari123/bvas-project/internal/bill/service"
	billstore "github.com/AshishBhandari123/bvas-project/internal/bill/store"
	"github.com/AshishBhandari123/bvas-project/internal/blob"
	identityhandler "github.com/AshishBhandari123/bvas-project/internal/identity/handler"
	"github.com/AshishBhandari123/bvas-project/internal/identity/revocation"
	identityservice "github.com/AshishBhandari123/bvas-project/internal/identity/service"
	identitystore "github.com/AshishBhandari123/bvas-project/internal/identity/store"
	"github.com/AshishBhandari123/bvas-project/internal/jwttoken"
	"github.com/AshishBhandari123/bvas-project/internal/platform/config"
	"github.com/AshishBhandari123/bvas-project/internal/platform/httpserver"
	"github.com/AshishBhandari123/bvas-project/internal/platform/logger"
	"github.com/AshishBhandari123/bvas-project/internal/platform/metrics"
	"github.com/AshishBhandari123/bvas-project/internal/platform/middleware"
	redisplatform "github.com/AshishBhandari123/bvas-project/internal/platform/redis"
	httptransport "github.com/AshishBhandari123/bvas-project/internal/transport/http"
	"github.com/AshishBhandari123/bvas-project/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres pool init failed", "error", err)
			return err
		}
		defer pool.Close()
	}

	trail, err := buildAuditStore(cfg, pool)
	if err != nil {
		log.Error("audit store init failed", "error", err)
		return err
	}

	recorderOpts := []audit.Option{audit.WithMetrics(m)}
	var (
		auditPub   *publisher.Kafka
		auditInbox chan audit.Entry
	)
	if cfg.KafkaSeeds != "" {
		seeds := strings.Split(cfg.KafkaSeeds, ",")
		auditPub, err = publisher.NewKafka(ctx, seeds, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka publisher init failed", "error", err)
			return err
		}
		defer auditPub.Close()
		auditInbox = make(chan audit.Entry, 256)
		recorderOpts = append(recorderOpts, audit.WithInbox(auditInbox))
	}
	recorder := audit.NewRecorder(trail, log, recorderOpts...)

	users, err := buildUserStore(ctx, pool)
	if err != nil {
		log.Error("user store init failed", "error", err)
		return err
	}
	bills, err := buildBillStore(ctx, pool)
	if err != nil {
		log.Error("bill store init failed", "error", err)
		return err
	}
	blobs, err := blob.NewFilesystem(cfg.UploadDir)
	if err != nil {
		log.Error("blob store init failed", "error", err)
		return err
	}

	redisClient, err := redisplatform.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		return err
	}
	var revoker identityservice.TokenRevoker
	var revocations middleware.RevocationList
	if redisClient != nil {
		defer redisClient.Close()
		trl := revocation.NewRedisTRL(redisClient.Client)
		revoker, revocations = trl, trl
	} else {
		trl := revocation.NewMemoryTRL()
		revoker, revocations = trl, trl
	}

	tokens := jwttoken.NewService(cfg.JWTSigningKey, "bvas", cfg.TokenTTL)
	identitySvc := identityservice.NewService(users, tokens, recorder, log,
		identityservice.WithRevoker(revoker),
		identityservice.WithMetrics(m),
		identityservice.WithBcryptCost(cfg.BcryptCost),
	)
	billSvc := billservice.NewService(bills, blobs, recorder, log,
		billservice.WithMetrics(m),
	)

	if cfg.SeedDemoData {
		if err := seedDemoData(ctx, identitySvc, billSvc); err != nil {
			log.Error("demo data seeding failed", "error", err)
			return err
		}
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        m,
		TokenValidator: jwttoken.NewMiddlewareAdapter(tokens),
		Revocations:    revocations,
		Actors:         identitySvc,
		Identity:       identityhandler.New(identitySvc, log),
		Bills: billhandler.New(billSvc, identitySvc, log,
			billhandler.WithStrictAllocations(cfg.StrictAllocationParsing)),
		Audit: audithandler.New(recorder, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if auditPub != nil {
		g.Go(func() error {
			return auditPub.Run(ctx, auditInbox)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

func buildAuditStore(cfg config.Config, pool *pgxpool.Pool) (audit.Store, error) {
	if pool == nil {
		return auditstore.NewMemory(), nil
	}
	return auditstore.NewPostgres(cfg.DatabaseURL)
}

func buildUserStore(ctx context.Context, pool *pgxpool.Pool) (identitystore.UserStore, error) {
	if pool == nil {
		return identitystore.NewMemory(), nil
	}
	return identitystore.NewPostgres(ctx, pool)
}

func buildBillStore(ctx context.Context, pool *pgxpool.Pool) (billstore.BillStore, error) {
	if pool == nil {
		return billstore.NewMemory(), nil
	}
	return billstore.NewPostgres(ctx, pool)
}

func seedDemoData(ctx context.Context, identitySvc *identityservice.Service, billSvc *billservice.Service) error {
	seeded, err := identitySvc.SeedUsers(ctx)
	if err != nil {
		return err
	}
	vendors := make([]domain.Actor, 0, 2)
	for _, username := range []string{"vendor1", "vendor2"} {
		if user, ok := seeded[username]; ok {
			vendors = append(vendors, user.Actor())
		}
	}
	return billSvc.SeedBills(ctx, vendors)
}
