// Package main runs the copy-trading service: it watches tracked source
// wallets over a log subscription, detects and classifies their swaps,
// reconstructs copyable trades for each following user and submits them.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/happy2099/zap-mono-sub002/internal/cache"
	"github.com/happy2099/zap-mono-sub002/internal/classify"
	"github.com/happy2099/zap-mono-sub002/internal/clone"
	"github.com/happy2099/zap-mono-sub002/internal/config"
	"github.com/happy2099/zap-mono-sub002/internal/detection"
	"github.com/happy2099/zap-mono-sub002/internal/domain"
	"github.com/happy2099/zap-mono-sub002/internal/ingestion"
	"github.com/happy2099/zap-mono-sub002/internal/metadata"
	"github.com/happy2099/zap-mono-sub002/internal/notify"
	"github.com/happy2099/zap-mono-sub002/internal/observability"
	"github.com/happy2099/zap-mono-sub002/internal/orchestrator"
	sol "github.com/happy2099/zap-mono-sub002/internal/solana"
	"github.com/happy2099/zap-mono-sub002/internal/storage"
	chstore "github.com/happy2099/zap-mono-sub002/internal/storage/clickhouse"
	"github.com/happy2099/zap-mono-sub002/internal/storage/memory"
	"github.com/happy2099/zap-mono-sub002/internal/storage/migrations"
	pgstore "github.com/happy2099/zap-mono-sub002/internal/storage/postgres"
	"github.com/happy2099/zap-mono-sub002/internal/submit"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	// .env values feed the config env overrides and the signer key.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("service exited")
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signerKey := os.Getenv("SIGNER_PRIVATE_KEY")
	if signerKey == "" {
		return fmt.Errorf("SIGNER_PRIVATE_KEY is required")
	}
	signer, err := solana.PrivateKeyFromBase58(signerKey)
	if err != nil {
		return fmt.Errorf("parse signer key: %w", err)
	}

	if cfg.Metadata.BaseURL == "" {
		return fmt.Errorf("metadata.base_url is required")
	}

	metrics := observability.NewMetrics("")

	rpc := sol.NewHTTPClient(cfg.RPC.HTTPURL,
		sol.WithTimeout(cfg.RPCTimeout()),
		sol.WithMaxRetries(cfg.RPC.MaxRetries),
	)

	meta := metadata.NewClient(cfg.Metadata.BaseURL,
		metadata.WithRateLimit(cfg.Metadata.RequestsPerSecond, cfg.Metadata.Burst),
	)

	caches := cache.NewManager(cache.Options{
		PacketTTL:     cfg.PacketTTL(),
		SnapshotTTL:   cfg.SnapshotTTL(),
		SweepInterval: cfg.SweepInterval(),
		Logger:        log,
	})

	stores, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	sender, err := submit.NewSender(submit.Options{
		RPC:                      rpc,
		Signer:                   signer,
		Snapshots:                caches.Snapshots,
		ComputeUnitLimit:         cfg.Execution.ComputeUnitLimit,
		PriorityFeeMicroLamports: cfg.Execution.PriorityFeeMicroLamports,
		Logger:                   log,
	})
	if err != nil {
		return fmt.Errorf("create sender: %w", err)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Records:        stores.records,
		Users:          stores.users,
		Cloner:         clone.NewCloner(rpc, meta, log),
		Sender:         sender,
		Notifier:       notify.NewConsole(log),
		Caches:         caches,
		Metrics:        metrics,
		Logger:         log,
		Workers:        cfg.Execution.Workers,
		MaxAttempts:    cfg.Execution.MaxAttempts,
		QueueSize:      cfg.Execution.QueueSize,
		AttemptTimeout: cfg.AttemptTimeout(),
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	stream, err := sol.NewWalletStream(ctx, cfg.RPC.WSURL, nil, log)
	if err != nil {
		return fmt.Errorf("connect log stream: %w", err)
	}
	defer stream.Close()
	metrics.WSConnected.Set(1)

	watcher, err := ingestion.NewWatcher(ingestion.WatcherOptions{
		Stream:     stream,
		Source:     rpc,
		Detector:   detection.NewDetector(cfg.Detection.NativeThresholdLamports, log),
		Classifier: classify.NewClassifier(rpc, meta, log),
		Users:      stores.users,
		Acceptor:   orch,
		Observed:   stores.observed,
		Caches:     caches,
		Metrics:    metrics,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	metricsServer := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metricsMux()}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		caches.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.WithFields(logrus.Fields{
		"wallet":  sender.Wallet().String(),
		"metrics": cfg.Metrics.ListenAddr,
	}).Info("copybot started")

	err = watcher.Run(ctx)
	stop()
	wg.Wait()

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("watcher: %w", err)
	}
	log.Info("copybot stopped")
	return nil
}

type serviceStores struct {
	records  storage.TradeRecordStore
	users    storage.UserStore
	observed storage.ObservedTradeStore
}

// openStores selects Postgres/ClickHouse backends when DSNs are
// configured, falling back to seeded in-memory stores.
func openStores(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*serviceStores, func(), error) {
	stores := &serviceStores{}
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		stores.records = pgstore.NewTradeRecordStore(pool)
		stores.users = pgstore.NewUserStore(pool)
		log.Info("using postgres stores")
	} else {
		users := memory.NewUserStore()
		for _, u := range cfg.Users {
			err := users.Insert(ctx, &domain.User{
				ID:     u.ID,
				Name:   u.Name,
				Wallet: u.Wallet,
				Policy: domain.UserPolicy{
					ScaleFactor: u.ScaleFactor,
					SlippageBps: u.SlippageBps,
				},
				TrackedWallets: u.TrackedWallets,
				Active:         true,
				CreatedAt:      time.Now().UTC(),
			})
			if err != nil {
				return nil, nil, fmt.Errorf("seed user %s: %w", u.ID, err)
			}
		}
		stores.records = memory.NewTradeRecordStore()
		stores.users = users
		log.WithField("users", len(cfg.Users)).Info("using in-memory stores")
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		stores.observed = chstore.NewObservedTradeStore(conn)
		log.Info("archiving observed trades to clickhouse")
	}

	return stores, closeAll, nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
