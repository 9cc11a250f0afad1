package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brieflycloud/internal/ai"
	appsvc "brieflycloud/internal/app"
	"brieflycloud/internal/cache"
	"brieflycloud/internal/config"
	"brieflycloud/internal/model"
	"brieflycloud/internal/platform/postgres"
	rabbitmqClient "brieflycloud/internal/platform/rabbitmq"
	redisClient "brieflycloud/internal/platform/redis"
	"brieflycloud/internal/provider"
	"brieflycloud/internal/repository"
	"brieflycloud/internal/worker"
)

// App wires configuration, platform clients, services, and background
// workers. The HTTP router only reads from it.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Postgres *gorm.DB
	Redis    *redis.Client
	MQConn   *amqp.Connection

	AuthService       *appsvc.AuthService
	UsageService      *appsvc.UsageService
	BillingService    *appsvc.BillingService
	ConnectionService *appsvc.ConnectionService
	IngestService     *appsvc.IngestService
	ChatService       *appsvc.ChatService
	AdminService      *appsvc.AdminService

	MessageWorker *worker.MessagePersistWorker
	IngestWorker  *worker.IngestWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("build logger failed: %w", err)
	}

	db, err := postgres.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.StorageConnection{},
		&model.File{},
		&model.DocumentChunk{},
		&model.Conversation{},
		&model.ChatMessage{},
		&model.IngestJob{},
		&model.UsageLog{},
		&model.BackupConfig{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	connRepo := repository.NewConnectionRepository(db)
	fileRepo := repository.NewFileRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	jobRepo := repository.NewIngestJobRepository(db)
	usageLogRepo := repository.NewUsageLogRepository(db)
	backupRepo := repository.NewBackupRepository(db)

	historyCache := cache.NewHistoryCache(
		redisCli,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	oauthStates := cache.NewOAuthStateStore(
		redisCli,
		time.Duration(cfg.Redis.OAuthStateTTLSeconds)*time.Second,
	)

	persistPublisher := rabbitmqClient.NewPublisher(mqConn, cfg.RabbitMQ.MessagePersistQueue)
	ingestPublisher := rabbitmqClient.NewPublisher(mqConn, cfg.RabbitMQ.IngestQueue)

	llmClient := ai.NewOpenAICompatibleClient()
	embeddingCfg := ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}

	providers := map[string]provider.Client{
		model.ProviderGoogleDrive: provider.NewGoogleDrive(cfg.Google.ClientID, cfg.Google.ClientSecret),
		model.ProviderOneDrive:    provider.NewOneDrive(cfg.Microsoft.ClientID, cfg.Microsoft.ClientSecret),
	}

	authService := appsvc.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.JWTExpireMinute)
	usageService := appsvc.NewUsageService(userRepo, usageLogRepo)
	billingService := appsvc.NewBillingService(userRepo, cfg.Stripe)
	connectionService := appsvc.NewConnectionService(connRepo, oauthStates, providers, cfg.App.PublicBaseURL)
	ingestService := appsvc.NewIngestService(
		fileRepo,
		chunkRepo,
		jobRepo,
		usageService,
		connectionService,
		llmClient,
		embeddingCfg,
		ingestPublisher,
		cfg.Ingest,
	)
	chatService := appsvc.NewChatService(
		convRepo,
		messageRepo,
		chunkRepo,
		userRepo,
		usageService,
		persistPublisher,
		historyCache,
		llmClient,
		cfg.LLM,
		embeddingCfg,
		cfg.Retrieval,
	)
	adminService := appsvc.NewAdminService(userRepo, fileRepo, chunkRepo, messageRepo, jobRepo, usageLogRepo, backupRepo)

	messageWorker := worker.NewMessagePersistWorker(mqConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, logger)
	if err := messageWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start message worker failed: %w", err)
	}
	ingestWorker := worker.NewIngestWorker(mqConn, ingestService, jobRepo, cfg.RabbitMQ.IngestQueue, cfg.RabbitMQ.IngestWorkers, logger)
	if err := ingestWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start ingest worker failed: %w", err)
	}

	return &App{
		Config:            cfg,
		Logger:            logger,
		Postgres:          db,
		Redis:             redisCli,
		MQConn:            mqConn,
		AuthService:       authService,
		UsageService:      usageService,
		BillingService:    billingService,
		ConnectionService: connectionService,
		IngestService:     ingestService,
		ChatService:       chatService,
		AdminService:      adminService,
		MessageWorker:     messageWorker,
		IngestWorker:      ingestWorker,
		StartedAt:         time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Postgres != nil {
		sqlDB, err := a.Postgres.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return closeErr
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" || env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
