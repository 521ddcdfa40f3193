package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"microgrid-market/internal/auth"
	"microgrid-market/internal/config"
	devicesapp "microgrid-market/internal/devices/application"
	deviceshttp "microgrid-market/internal/devices/interfaces/http"
	"microgrid-market/internal/eventing"
	marketapp "microgrid-market/internal/market/application"
	market "microgrid-market/internal/market/domain"
	marketmemory "microgrid-market/internal/market/infrastructure/memory"
	marketpostgres "microgrid-market/internal/market/infrastructure/postgres"
	markethttp "microgrid-market/internal/market/interfaces/http"
	"microgrid-market/internal/notify"
	"microgrid-market/internal/observability/metrics"
	"microgrid-market/internal/registry"
	simulationapp "microgrid-market/internal/simulation/application"
	simulation "microgrid-market/internal/simulation/domain"
	simulationhttp "microgrid-market/internal/simulation/interfaces/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init()

	var history market.HistoryRepository
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		history = marketpostgres.NewHistoryRepository(db)
	} else {
		history = marketmemory.NewHistoryRepository(cfg.HistoryCap)
	}

	households := registry.NewHouseholdRegistry()
	deviceReg := registry.NewDeviceRegistry()
	bus := eventing.NewInMemoryBus()

	scenarios := defaultScenarios()
	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			logger.Fatalf("seed load error: %v", err)
		}
		now := time.Now().UTC()
		for _, sh := range seed.Households {
			if err := households.Upsert(sh.Household(now)); err != nil {
				logger.Fatalf("seed household error: id=%s err=%v", sh.ID, err)
			}
		}
		for _, sd := range seed.Devices {
			if err := deviceReg.Upsert(sd.Device(now)); err != nil {
				logger.Fatalf("seed device error: id=%s err=%v", sd.ID, err)
			}
		}
		if len(seed.Scenarios) > 0 {
			scenarios = scenarios[:0]
			for _, ss := range seed.Scenarios {
				scenarios = append(scenarios, ss.Scenario())
			}
		}
	}

	engine, err := marketapp.NewEngine(households, history, bus, logger, cfg.BasePriceKWh,
		marketapp.WithTradeValidity(cfg.TradeValidity),
		marketapp.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}
	shedding, err := marketapp.NewSheddingController(households, engine, bus, logger)
	if err != nil {
		logger.Fatalf("shedding error: %v", err)
	}
	deviceService, err := devicesapp.NewService(deviceReg, bus, logger)
	if err != nil {
		logger.Fatalf("device service error: %v", err)
	}
	stepper, err := simulationapp.NewStepper(deviceReg, households, bus, logger, scenarios,
		simulationapp.WithStepInterval(cfg.StepInterval))
	if err != nil {
		logger.Fatalf("stepper error: %v", err)
	}

	attachNotifyChannels(cfg, bus, logger)

	marketClock, err := marketapp.NewMarketClock(engine, logger,
		marketapp.WithMarketTick(cfg.MarketTick),
		marketapp.WithPricingTick(cfg.PricingTick),
	)
	if err != nil {
		logger.Fatalf("market clock error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go marketClock.Run(ctx)

	tradesHandler, err := markethttp.NewTradesHandler(engine)
	if err != nil {
		logger.Fatalf("trades handler error: %v", err)
	}
	snapshotHandler, err := markethttp.NewSnapshotHandler(engine)
	if err != nil {
		logger.Fatalf("snapshot handler error: %v", err)
	}
	householdsHandler, err := markethttp.NewHouseholdsHandler(engine)
	if err != nil {
		logger.Fatalf("households handler error: %v", err)
	}
	sheddingHandler, err := markethttp.NewSheddingHandler(shedding)
	if err != nil {
		logger.Fatalf("shedding handler error: %v", err)
	}
	exportHandler, err := markethttp.NewExportHandler(engine)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	devicesHandler, err := deviceshttp.NewHandler(deviceService)
	if err != nil {
		logger.Fatalf("devices handler error: %v", err)
	}
	simulationsHandler, err := simulationhttp.NewHandler(stepper)
	if err != nil {
		logger.Fatalf("simulations handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/trades", tradesHandler)
	mux.Handle("/api/v1/trades/", tradesHandler)
	mux.Handle("/api/v1/market/snapshot", snapshotHandler)
	mux.Handle("/api/v1/households", householdsHandler)
	mux.Handle("/api/v1/households/", householdsHandler)
	mux.Handle("/api/v1/devices", devicesHandler)
	mux.Handle("/api/v1/devices/", devicesHandler)
	mux.Handle("/api/v1/shedding", sheddingHandler)
	mux.Handle("/api/v1/history/", exportHandler)
	mux.Handle("/api/v1/simulations", simulationsHandler)
	mux.Handle("/api/v1/simulations/", simulationsHandler)
	mux.Handle("/api/v1/scenarios", simulationsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := http.Handler(mux)
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(handler)
	} else {
		logger.Printf("auth disabled: no JWT secret configured")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// attachNotifyChannels subscribes the configured notification channels to
// every engine event. The log channel is always on.
func attachNotifyChannels(cfg config.Config, bus eventing.Bus, logger *log.Logger) {
	notify.Attach(bus, notify.NewLogChannel(logger), logger)

	if cfg.WebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.WebhookURL)
		if err != nil {
			logger.Fatalf("webhook channel error: %v", err)
		}
		notify.Attach(bus, channel, logger)
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		channel, err := notify.NewRedisChannel(rdb, cfg.RedisChannelPrefix)
		if err != nil {
			logger.Fatalf("redis channel error: %v", err)
		}
		notify.Attach(bus, channel, logger)
	}
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatalf("nats connect error: %v", err)
		}
		channel, err := notify.NewNATSChannel(conn, cfg.NATSSubjectPrefix)
		if err != nil {
			logger.Fatalf("nats channel error: %v", err)
		}
		notify.Attach(bus, channel, logger)
	}
}

// defaultScenarios covers the common simulation presets when no seed file
// provides its own.
func defaultScenarios() []simulation.Scenario {
	return []simulation.Scenario{
		{ID: "normal-day", Name: "Normal day", DurationHours: 24, LoadVariation: 0.2, GenerationVariation: 0.3, StorageVariation: 0.1, GridLoadCeilingKW: 50},
		{ID: "heat-wave", Name: "Heat wave", DurationHours: 12, LoadVariation: 0.5, GenerationVariation: 0.2, StorageVariation: 0.2, GridLoadCeilingKW: 35},
		{ID: "storm-front", Name: "Storm front", DurationHours: 6, LoadVariation: 0.4, GenerationVariation: 0.7, StorageVariation: 0.3, GridLoadCeilingKW: 40},
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
