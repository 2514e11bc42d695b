package main

import (
	"log"
	"strings"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/gateway"
	"checkout-service/kafka"
	"checkout-service/middleware"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] failed to load config:", err)
	}

	var logger *zap.Logger
	if cfg.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatal("[CheckoutService] failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("[CheckoutService] failed to connect to DB:", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("[CheckoutService] failed to migrate models:", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			// Duplicate markers are best-effort; run without them.
			logger.Warn("redis unavailable, webhook duplicate markers disabled", zap.Error(err))
			redisClient = nil
		}
	}

	var producer services.EventProducer
	var kafkaProducer *kafka.PaymentEventProducer
	if cfg.KafkaBrokers != "" {
		kafkaProducer = kafka.NewPaymentEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.PaymentTopic)
		defer kafkaProducer.Close()
		producer = kafkaProducer
	}

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, logger)
	webhookValidator := gateway.NewWebhookValidator(cfg.GatewayWebhookSecret)
	if !webhookValidator.Enabled() {
		logger.Warn("GATEWAY_WEBHOOK_SECRET not set; webhook signatures will not be verified")
	}

	orderRepo := repository.NewGormOrderRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	catalogRepo := repository.NewGormCatalogRepository(db)
	entitlementRepo := repository.NewGormEntitlementRepository(db)

	entitlementSvc := services.NewEntitlementService(entitlementRepo, logger)
	checkoutSvc := services.NewCheckoutService(orderRepo, userRepo, catalogRepo, entitlementSvc, gatewayClient, producer, logger)
	webhookSvc := services.NewWebhookService(orderRepo, entitlementSvc, redisClient, producer, logger)

	checkoutController := controllers.NewCheckoutController(checkoutSvc, logger)
	webhookController := controllers.NewWebhookController(webhookSvc, webhookValidator, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Default())

	routes.RegisterRoutes(r, cfg.JWTSecret, checkoutController, webhookController)

	logger.Info("checkout service running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[CheckoutService] server failed:", err)
	}
}
