package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	config "github.com/davicafu/orderbus/internal/config"
	"github.com/davicafu/orderbus/internal/infra/db/postgres"
	"github.com/davicafu/orderbus/internal/infra/db/sqlite"
	infraEvents "github.com/davicafu/orderbus/internal/infra/events"
	infraHttp "github.com/davicafu/orderbus/internal/infra/http"
	orderApp "github.com/davicafu/orderbus/internal/order/application"
	orderDomain "github.com/davicafu/orderbus/internal/order/domain"
	orderEvents "github.com/davicafu/orderbus/internal/order/infra/inbound/events"
	orderHttp "github.com/davicafu/orderbus/internal/order/infra/inbound/http"
	orderCache "github.com/davicafu/orderbus/internal/order/infra/outbound/cache"
	sharedApp "github.com/davicafu/orderbus/internal/shared/application"
	sharedDomain "github.com/davicafu/orderbus/internal/shared/domain"
	sharedBus "github.com/davicafu/orderbus/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/orderbus/internal/shared/infra/platform/cache"
	"github.com/davicafu/orderbus/internal/shared/infra/relayer"
	"github.com/davicafu/orderbus/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Logger().Fatal("invalid configuration", zap.Error(err))
	}

	logger.Init(cfg.LogLevel) // inicializa zap
	log := logger.Logger()    // obtiene logger estructurado
	defer log.Sync()          // flush buffers al salir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	// ---------------- Dead letters ----------------
	db, deadLetters := openDeadLetterStore(ctx, cfg, log)
	defer db.Close()

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("⚠️ Redis no disponible, cache en memoria:", zap.Error(err))
		memCache := orderCache.NewInMemoryCache(cfg.CacheTTL, 3*cfg.CacheTTL)
		defer memCache.Stop()
		cacheInstance = memCache
	} else {
		cacheInstance = orderCache.NewRedisCache(rdb, cfg.CacheTTL)
		log.Info("✅ Redis conectado, cache habilitado")
	}
	defer rdb.Close()

	// ---------------- Broker ----------------
	var broker sharedBus.BrokerClient
	var memBroker *infraEvents.InMemoryBroker

	if cfg.UseKafka {
		log.Info("🚀 Usando Kafka como broker", zap.Strings("brokers", cfg.KafkaBrokers))
		broker = infraEvents.NewKafkaClient(infraEvents.KafkaClientConfig{
			Brokers:      cfg.KafkaBrokers,
			Connect:      cfg.ConnectPolicy(),
			SendTimeout:  cfg.SendTimeout,
			BatchTimeout: cfg.BatchTimeout,
			ClientID:     "orderbus",
		}, log)
	} else {
		log.Info("⚡️Usando broker en memoria", zap.Int("partitions", cfg.MemoryPartitions))
		memBroker = infraEvents.NewInMemoryBroker(cfg.MemoryPartitions, cfg.SendTimeout)
		broker = memBroker
	}
	defer broker.Close()

	// Si falla, el servidor arranca igualmente: /health responde 503 y cada envío intenta reconectar.
	if err := broker.Connect(ctx); err != nil {
		log.Error("❌ Broker no disponible al arrancar", zap.Error(err))
	}

	// --------------- Publisher / Servicio --------------
	schemas := orderDomain.NewSchemaRegistry(cfg.OrderTopic)
	if cfg.SchemaFile != "" {
		f, err := os.Open(cfg.SchemaFile)
		if err != nil {
			log.Fatal("failed to open schema file", zap.String("path", cfg.SchemaFile), zap.Error(err))
		}
		err = schemas.Load(f)
		f.Close()
		if err != nil {
			log.Fatal("failed to load schema file", zap.String("path", cfg.SchemaFile), zap.Error(err))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	publisher := sharedApp.NewEventPublisher(broker, schemas, deadLetters, cfg.PublishPolicy(), sharedApp.NewMetrics(registry), log)
	orderService := orderApp.NewOrderService(publisher, cacheInstance, cfg.OrderTopic, log)
	replayer := relayer.NewReplayer(deadLetters, publisher, cfg.ReplayBatchSize, log)

	// ---------------- Consumer ----------------
	if cfg.ConsumerEnabled {
		orderConsumer := orderEvents.NewOrderConsumer(cacheInstance, cfg.CacheTTL, log)
		if cfg.UseKafka {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.KafkaBrokers,
				Topic:    cfg.OrderTopic,
				GroupID:  cfg.ConsumerGroup,
				MinBytes: 1,
				MaxBytes: 10e6, // 10MB
			})
			defer reader.Close()
			infraEvents.NewConsumerAdapter(reader, orderConsumer, log).Start(ctx)
		} else {
			log.Info("🎧 Iniciando listener en memoria para eventos de pedidos")
			infraEvents.BackgroundConsumerChan(ctx, memBroker.Subscribe(64), orderConsumer, log)
		}
	}

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := infraHttp.NewRouter(log)
	orderHttp.RegisterOrderRoutes(router, orderHttp.NewOrderHandler(orderService, log))
	infraHttp.RegisterPlatformRoutes(router, infraHttp.NewHealthHandler(broker), infraHttp.NewAdminHandler(replayer), registry)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Apagando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("⚠️ Shutdown incompleto", zap.Error(err))
	}
}

// openDeadLetterStore abre SQLite en local y Postgres en el resto de despliegues.
func openDeadLetterStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sql.DB, sharedDomain.DeadLetterRepository) {
	if cfg.LocalDeployment {
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			log.Fatal("failed to open SQLite", zap.Error(err))
		}
		if err := sqlite.InitSQLite(db); err != nil {
			log.Fatal("failed to initialize SQLite", zap.Error(err))
		}
		log.Info("🗄️ Dead letters en SQLite", zap.String("path", cfg.SQLitePath))
		return db, sqlite.NewDeadLetterRepoSQLite(db)
	}

	db, err := sql.Open(postgres.DriverName, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to open Postgres", zap.Error(err))
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping Postgres", zap.Error(err))
	}
	if err := postgres.InitPostgres(ctx, db); err != nil {
		log.Fatal("failed to initialize Postgres", zap.Error(err))
	}
	log.Info("🗄️ Dead letters en Postgres")
	return db, postgres.NewDeadLetterRepoPostgres(db)
}
