// Command server runs the credential coordination service: the HTTP surface,
// the consensus-log consumer, and the deposit relay in one process. All
// infrastructure is selected by configuration; with no Postgres, Kafka, or
// Redis configured the process runs self-contained on in-memory stand-ins.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"tessera/internal/coordinator"
	coordmetrics "tessera/internal/coordinator/metrics"
	opstore "tessera/internal/coordinator/store"
	credstore "tessera/internal/credential/store"
	jwttoken "tessera/internal/jwt_token"
	"tessera/internal/ledger"
	ledgermetrics "tessera/internal/ledger/metrics"
	"tessera/internal/orchestrator"
	"tessera/internal/platform/config"
	"tessera/internal/platform/httpserver"
	"tessera/internal/platform/logger"
	platformmetrics "tessera/internal/platform/metrics"
	platformredis "tessera/internal/platform/redis"
	"tessera/internal/platform/stream"
	"tessera/internal/relay"
	relaymetrics "tessera/internal/relay/metrics"
	"tessera/internal/status"
	httptransport "tessera/internal/transport/http"
	"tessera/pkg/platform/circuit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var health []httptransport.HealthCheck

	// Stores.
	var (
		credentials coordinator.CredentialStore
		credReader  status.CredentialReader
		operations  coordinator.OperationStore
		opReader    status.OperationReader
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		pgCreds := credstore.NewPostgres(db)
		if err := pgCreds.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure credential schema: %w", err)
		}
		pgOps := opstore.NewPostgres(db)
		if err := pgOps.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure operation schema: %w", err)
		}
		credentials, credReader = pgCreds, pgCreds
		operations, opReader = pgOps, pgOps
		health = append(health, httptransport.HealthCheck{Name: "postgres", Ping: db.PingContext})
		log.Info("using postgres stores")
	} else {
		memCreds := credstore.NewInMemory()
		memOps := opstore.NewInMemory()
		credentials, credReader = memCreds, memCreds
		operations, opReader = memOps, memOps
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	// Token gateway.
	var gateway ledger.Ledger
	if cfg.Ledger.BaseURL != "" {
		client, err := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.Timeout)
		if err != nil {
			return fmt.Errorf("build ledger client: %w", err)
		}
		breaker := circuit.New("ledger", circuit.WithFailureThreshold(cfg.Ledger.BreakerThreshold))
		gateway = ledger.NewGuarded(client, breaker, cfg.Ledger.BreakerProbeInterval, log)
		log.Info("using remote token gateway", "base_url", cfg.Ledger.BaseURL)
	} else {
		mem := ledger.NewMemory(cfg.Ledger.TreasuryAccount)
		// Dev mode has no external deposit flow filling the vault, so float
		// it here or termination payouts would bounce.
		mem.Credit(ledger.TokenDeposit, cfg.Ledger.VaultAccount, 1_000_000)
		gateway = mem
		log.Warn("LEDGER_BASE_URL not set, using in-memory token gateway")
	}
	gateway = ledger.NewInstrumented(gateway, ledgermetrics.New())

	// Streams: the ordering log plus the two relay topics.
	var intents, deposits, results stream.Log
	if len(cfg.Stream.Brokers) > 0 {
		for _, topic := range []struct {
			name string
			dst  *stream.Log
		}{
			{cfg.Stream.IntentTopic, &intents},
			{cfg.Stream.DepositTopic, &deposits},
			{cfg.Stream.ResultTopic, &results},
		} {
			kl, err := stream.NewKafkaLog(cfg.Stream.Brokers, cfg.Stream.ClientID, topic.name,
				stream.WithLogger(log),
				stream.WithFetchMaxWait(cfg.Stream.FetchMaxWait),
			)
			if err != nil {
				return fmt.Errorf("connect kafka topic %s: %w", topic.name, err)
			}
			defer kl.Close()
			*topic.dst = kl
		}
		if kl, ok := intents.(*stream.KafkaLog); ok {
			health = append(health, httptransport.HealthCheck{Name: "kafka", Ping: kl.Ping})
		}
		log.Info("using kafka streams", "brokers", cfg.Stream.Brokers)
	} else {
		intents = stream.NewMemoryLog()
		deposits = stream.NewMemoryLog()
		results = stream.NewMemoryLog()
		log.Warn("KAFKA_BROKERS not set, using in-memory streams")
	}

	// Relay dedup set.
	var dedup relay.Dedup
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		dedup = relay.NewRedisDedup(redisClient.Client, cfg.Relay.DedupTTL)
		health = append(health, httptransport.HealthCheck{Name: "redis", Ping: redisClient.Health})
		log.Info("using redis deposit dedup")
	} else {
		dedup = relay.NewMemoryDedup(cfg.Relay.DedupTTL)
		log.Warn("REDIS_URL not set, using in-memory deposit dedup")
	}

	// Domain services.
	coordService := coordinator.New(cfg.Coordinator, cfg.Ledger, intents, gateway, credentials, operations,
		coordinator.WithLogger(log),
		coordinator.WithMetrics(coordmetrics.New()),
	)
	consumer := coordinator.NewConsumer(coordService, intents,
		coordinator.WithConsumerLogger(log),
		coordinator.WithWorkers(cfg.Coordinator.ExecutorWorkers),
	)
	relayService := relay.New(cfg.Relay, cfg.Coordinator.IssuePrice, deposits, coordService, dedup,
		relay.NewStreamReporter(results),
		relay.WithLogger(log),
		relay.WithMetrics(relaymetrics.New()),
	)
	statusService := status.New(credReader, opReader, status.WithLogger(log))
	orchService := orchestrator.New(deposits, results, statusService, gateway,
		orchestrator.WithLogger(log),
	)

	// HTTP surface.
	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "tessera", "tessera")
	router := httptransport.NewRouter(log, platformmetrics.New(),
		httptransport.NewHealthHandler(log, health...),
		httptransport.NewCredentialsHandler(coordService, jwtService, log, cfg.Coordinator.AwaitTimeout),
		httptransport.NewStatusHandler(statusService, log),
		httptransport.NewAdminHandler(coordService, orchService, jwtService, cfg.Server.AdminToken, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consensus consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := relayService.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("deposit relay: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
