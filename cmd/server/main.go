package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kasuwa/internal/config"
	httpapi "kasuwa/internal/controllers/http"
	"kasuwa/internal/infra"
	"kasuwa/internal/infra/kafka"
	mmysql "kasuwa/internal/infra/mysql"
	"kasuwa/internal/infra/rabbitmq"
	mysqlrepo "kasuwa/internal/repository/mysql"
	"kasuwa/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := &cli.App{
		Name:  "kasuwa",
		Usage: "marketplace order, cart and inventory service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema",
				Action: migrate,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("kasuwa exited")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	db, err := mmysql.NewMySQL(cfg)
	if err != nil {
		return err
	}
	if err := mmysql.Migrate(db); err != nil {
		return err
	}
	log.Info().Msg("schema up to date")
	return nil
}

type closer func()

func newPublisher(cfg *config.Config) (rabbitmq.PublisherInterface, closer, error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		if cfg.RabbitMQURL == "" {
			break
		}
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, err
		}
		return pub, pub.Close, nil
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			break
		}
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		return w, func() { _ = w.Close() }, nil
	case "none", "":
	default:
		return nil, nil, errors.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
	}
	log.Warn().Str("broker", cfg.EventBroker).Msg("event broker not configured, events are dropped")
	return rabbitmq.NopPublisher{}, func() {}, nil
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	db, err := mmysql.NewMySQL(cfg)
	if err != nil {
		return err
	}
	if err := mmysql.Migrate(db); err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           0,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		})
		defer redisClient.Close()
	}

	var images infra.ImageStoreInterface
	if cfg.S3Bucket != "" {
		store, err := infra.NewS3ImageStore(c.Context, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicBase)
		if err != nil {
			return err
		}
		images = store
	}

	rates, err := cfg.ShippingRateTable()
	if err != nil {
		return err
	}

	productRepo := mysqlrepo.NewProductRepository(db)
	cartRepo := mysqlrepo.NewCartRepository(db)
	orderRepo := mysqlrepo.NewOrderRepository(db)
	paymentRepo := mysqlrepo.NewPaymentRepository(db)
	reviewRepo := mysqlrepo.NewReviewRepository(db)

	gateway := infra.NewPaymentGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, cfg.PaymentGatewayTimeout)

	catalog := services.NewCatalogService(productRepo, images)
	orders := services.NewOrderService(orderRepo, cartRepo, productRepo,
		services.FlatRateCharges{Rates: rates, TaxRate: cfg.TaxRate},
		publisher,
		services.OrderOptions{Currency: cfg.Currency, PriceDriftTolerance: cfg.PriceDriftTolerance})
	if redisClient != nil {
		catalog.SetRedisClient(redisClient, cfg.ProductTTL)
		orders.SetRedisClient(redisClient)
	}

	handler := httpapi.NewHandler(httpapi.Services{
		Catalog:  catalog,
		Cart:     services.NewCartService(cartRepo, productRepo),
		Orders:   orders,
		Payments: services.NewPaymentService(paymentRepo, orderRepo, gateway, publisher, cfg.PaymentGatewayTimeout),
		Reviews:  services.NewReviewService(reviewRepo, productRepo, orderRepo, publisher),
	}, cfg.JWTSecret, cfg.PaymentCallbackSecret)

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware())
	r.Use(httpapi.RequestLogger())
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("starting kasuwa")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server run")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
