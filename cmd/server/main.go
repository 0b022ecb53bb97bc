// Command server runs the cardmill backend: a quota-gated proxy in front of
// the OpenAI images API with persistent postcard storage and a small admin
// surface.
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
	"time"

	"golang.org/x/sync/errgroup"

	adminhandler "cardmill/internal/admin/handler"
	"cardmill/internal/audit"
	auditmem "cardmill/internal/audit/store/memory"
	auditpg "cardmill/internal/audit/store/postgres"
	galleryhandler "cardmill/internal/gallery/handler"
	gallerysvc "cardmill/internal/gallery/service"
	genhandler "cardmill/internal/generation/handler"
	"cardmill/internal/generation/openai"
	gensvc "cardmill/internal/generation/service"
	"cardmill/internal/platform/config"
	"cardmill/internal/platform/database"
	"cardmill/internal/platform/httpserver"
	"cardmill/internal/platform/logger"
	platformmetrics "cardmill/internal/platform/metrics"
	platformredis "cardmill/internal/platform/redis"
	"cardmill/internal/quota/gate"
	quotametrics "cardmill/internal/quota/metrics"
	"cardmill/internal/quota/policy"
	"cardmill/internal/quota/ports"
	memstore "cardmill/internal/quota/store/memory"
	pgstore "cardmill/internal/quota/store/postgres"
	redisstore "cardmill/internal/quota/store/redis"
	sqlitestore "cardmill/internal/quota/store/sqlite"
	httptransport "cardmill/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogFormat)
	slog.SetDefault(log)

	// A missing or malformed quota table must never serve requests.
	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return err
	}

	deps, err := buildStores(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	quotaGate := gate.New(deps.counters, pol,
		gate.WithLogger(log),
		gate.WithMetrics(quotametrics.New()),
		gate.WithLocation(cfg.Timezone),
	)

	client := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Size,
		openai.WithHTTPClient(&http.Client{Timeout: cfg.OpenAI.RequestTimeout}))

	generationSvc := gensvc.New(quotaGate, client, cfg.OpenAI.PromptTemplate,
		gensvc.WithLogger(log),
		gensvc.WithAuditStore(deps.auditStore),
	)
	gallerySvc := gallerysvc.New(cfg.PublicDir,
		gallerysvc.WithLogger(log),
		gallerysvc.WithAuditStore(deps.auditStore),
	)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:      log,
		PublicDir:   cfg.PublicDir,
		HealthCheck: deps.health,
		Metrics:     platformmetrics.New(),
	},
		genhandler.New(generationSvc, log),
		galleryhandler.New(gallerySvc, log),
		adminhandler.New(cfg.Admin, deps.counters, pol, deps.auditStore, log),
	)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting cardmill",
		"addr", cfg.Addr,
		"store", cfg.Store.Backend,
		"policy", cfg.PolicyPath,
		"window_start", pol.WindowStart().String(),
		"window_end", pol.WindowEnd().String(),
		"mode", string(pol.Mode()),
	)

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return grp.Wait()
}

// stores bundles the selected counter backend with its audit store, health
// check and teardown.
type stores struct {
	counters   ports.CounterStore
	auditStore audit.Store
	health     func(ctx context.Context) error
	close      func()
}

func buildStores(cfg config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return &stores{
			counters:   memstore.New(),
			auditStore: auditmem.New(),
			close:      func() {},
		}, nil

	case config.StoreSQLite:
		db, err := database.OpenSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		counters, err := sqlitestore.New(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			counters:   counters,
			auditStore: auditmem.New(),
			health:     pingDB(db),
			close:      func() { db.Close() },
		}, nil

	case config.StorePostgres:
		db, err := database.OpenPostgres(cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		counters, err := pgstore.New(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		auditStore, err := auditpg.New(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &stores{
			counters:   counters,
			auditStore: auditStore,
			health:     pingDB(db),
			close:      func() { db.Close() },
		}, nil

	case config.StoreRedis:
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, errors.New("CARDMILL_REDIS_URL is required for the redis store")
		}
		return &stores{
			counters:   redisstore.New(client),
			auditStore: auditmem.New(),
			health:     client.Health,
			close:      func() { client.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func pingDB(db *sql.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}
