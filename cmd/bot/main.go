package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/Snapwave333/klashibot-sub001/internal/api"
	"github.com/Snapwave333/klashibot-sub001/internal/auth"
	"github.com/Snapwave333/klashibot-sub001/internal/config"
	"github.com/Snapwave333/klashibot-sub001/internal/database"
	"github.com/Snapwave333/klashibot-sub001/internal/engine"
	"github.com/Snapwave333/klashibot-sub001/internal/events"
	"github.com/Snapwave333/klashibot-sub001/internal/journal"
	"github.com/Snapwave333/klashibot-sub001/internal/model"
	"github.com/Snapwave333/klashibot-sub001/internal/risk"
	"github.com/Snapwave333/klashibot-sub001/internal/scanner"
	"github.com/Snapwave333/klashibot-sub001/internal/strategy"
	"github.com/Snapwave333/klashibot-sub001/internal/version"
)

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/bot.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting trading bot",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"paper_mode", cfg.Trading.PaperMode,
		"cycle_interval", cfg.Trading.CycleInterval,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Request signer: live trading requires API credentials, paper mode
	// runs unauthenticated against public market data.
	var signer *auth.Signer
	if cfg.API.KeyID != "" {
		signer, err = auth.NewSigner(cfg.API.KeyID, cfg.API.PrivateKeyPath)
		if err != nil {
			logger.Error("failed to load API credentials", "error", err)
			os.Exit(1)
		}
		logger.Info("API credentials loaded", "key_id", cfg.API.KeyID)
	}

	// Create API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		signer,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Check exchange status
	status, err := apiClient.GetExchangeStatus(ctx)
	if err != nil {
		logger.Error("failed to get exchange status", "error", err)
		os.Exit(1)
	}
	logger.Info("exchange status",
		"exchange_active", status.ExchangeActive,
		"trading_active", status.TradingActive,
	)

	// Optional journal database
	var pool *pgxpool.Pool
	var jnl *journal.Journal
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		jnl = journal.New(cfg.Journal, pool, logger)
		if err := jnl.Start(ctx); err != nil {
			logger.Error("failed to start journal", "error", err)
			os.Exit(1)
		}
		logger.Info("journal started")
	} else {
		logger.Info("no database configured, journal disabled")
	}

	// Market scanner
	scan := scanner.New(scanner.Config{
		ListingTTL:            cfg.Trading.ListingTTL,
		CacheCapacity:         cfg.Trading.CacheCapacity,
		DetailConcurrency:     cfg.Trading.DetailConcurrency,
		DetailTimeout:         cfg.Trading.DetailTimeout,
		MinLiquidityContracts: cfg.Trading.MinLiquidityContracts,
		MaxSpreadCents:        cfg.Trading.MaxSpreadCents,
	}, apiClient, logger)

	// Strategies
	strategies, err := strategy.NewManager(cfg.Strategies, logger)
	if err != nil {
		logger.Error("failed to build strategies", "error", err)
		os.Exit(1)
	}
	logger.Info("strategies enabled", "strategies", strategies.Names())

	// Risk manager
	riskManager := risk.New(cfg.Risk, logger)

	// Execution
	var executor engine.Executor
	if cfg.Trading.PaperMode {
		executor = engine.NewPaperExecutor()
		logger.Info("paper trading: orders will be simulated")
	} else {
		executor = engine.NewLiveExecutor(apiClient)
	}

	// Event hub for the dashboard
	hub := events.NewHub(events.DefaultBufferSize, logger)

	// Engine
	eng := engine.New(engine.Config{
		InstanceID:          cfg.Instance.ID,
		CycleInterval:       cfg.Trading.CycleInterval,
		MaxMarkets:          cfg.Trading.MaxMarkets,
		AnalysisConcurrency: cfg.Trading.AnalysisConcurrency,
		OpportunityTTL:      cfg.Trading.OpportunityTTL,
		CacheCapacity:       cfg.Trading.CacheCapacity,
		PaperMode:           cfg.Trading.PaperMode,
		PaperEquityCents:    cfg.Trading.PaperEquityCents,
	}, engine.Deps{
		Markets:    scan,
		Strategies: strategies,
		Risk:       riskManager,
		Balance:    apiClient,
		Status:     apiClient,
		Executor:   executor,
		Events:     hub,
		Journal:    jnl,
	}, logger)

	// Health and dashboard server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Events.Port),
		Handler: createHandler(cfg, eng, riskManager, hub, scan, pool, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Events.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start trading
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("bot running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Events.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := eng.Stop(shutdownCtx); err != nil {
		logger.Warn("engine shutdown incomplete", "error", err)
	}
	if jnl != nil {
		jnl.Stop(shutdownCtx)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("bot stopped")
}

// createHandler wires the health, risk, and dashboard endpoints.
func createHandler(
	cfg *config.BotConfig,
	eng *engine.Engine,
	riskManager *risk.Manager,
	hub *events.Hub,
	scan *scanner.Scanner,
	pool *pgxpool.Pool,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		p := eng.Portfolio()
		health := struct {
			Status     string                 `json:"status"`
			Breaker    risk.Report            `json:"breaker"`
			Portfolio  model.PortfolioState   `json:"portfolio"`
			Cycles     int64                  `json:"cycles"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Breaker:    riskManager.Report(p),
			Portfolio:  p,
			Cycles:     eng.Cycles(),
			Components: make(map[string]interface{}),
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		health.Components["listing_cache"] = scan.CacheStats()
		health.Components["opportunity_cache"] = eng.CacheStats()
		health.Components["dashboard_clients"] = hub.SubscriberCount()

		if riskManager.State() == risk.BreakerHalted {
			health.Status = "halted"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	// Manual circuit-breaker reset. Deliberately the only way out of
	// Halted.
	mux.HandleFunc("/risk/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		logger.Warn("manual halt reset via API", "remote", r.RemoteAddr)
		eng.ResetHalt()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"state": riskManager.State().String()})
	})

	mux.HandleFunc(cfg.Events.Path, hub.ServeWS)

	return mux
}
