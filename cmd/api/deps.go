package main

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"chreosis/internal/domain/account"
	"chreosis/internal/domain/category"
	"chreosis/internal/domain/mailbox"
	"chreosis/internal/domain/notification"
	"chreosis/internal/domain/transaction"
	"chreosis/internal/domain/user"
	"chreosis/internal/infrastructure/crypto"
	"chreosis/internal/infrastructure/firebase"
	"chreosis/internal/infrastructure/genai"
	"chreosis/internal/infrastructure/gmail"
	"chreosis/internal/infrastructure/postgres"
	"chreosis/internal/infrastructure/postgres/listener"
	"chreosis/internal/infrastructure/redis"
	httphandlers "chreosis/internal/interfaces/http"
	"chreosis/internal/interfaces/scheduler"
	"chreosis/internal/shared/auth"
	"chreosis/internal/shared/config"
	"chreosis/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB    *postgres.DB
	Redis *goredis.Client

	// Handlers
	AuthHandler         *httphandlers.AuthHandler
	UserHandler         *httphandlers.UserHandler
	AccountHandler      *httphandlers.AccountHandler
	CategoryHandler     *httphandlers.CategoryHandler
	TransactionHandler  *httphandlers.TransactionHandler
	NotificationHandler *httphandlers.NotificationHandler
	HealthHandler       *httphandlers.HealthHandler
	// GmailHandler is nil when the Gmail integration is not configured.
	GmailHandler *httphandlers.GmailHandler

	// Auth
	JWT *auth.JWT

	// Background work
	Pool            *scheduler.WorkerPool
	MailboxService  *mailbox.Service
	BalanceListener *listener.BalanceListener
	PushVerifier    *auth.PushVerifier
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}

	db, err := postgres.New(cfg.Database.ConnectionString(), postgres.Pool{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	deps.DB = db
	log.Info().Str("host", cfg.Database.Host).Str("database", cfg.Database.DBName).Msg("Connected to database")

	if cfg.Database.MigrateOnStart {
		migrator, err := postgres.NewMigrator(db)
		if err != nil {
			deps.Close()
			return nil, err
		}
		if err := migrator.Up(); err != nil {
			deps.Close()
			return nil, err
		}
		version, _, _ := migrator.Version()
		log.Info().Uint("version", version).Msg("Database schema up to date")
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	accountRepo := postgres.NewAccountRepository(db)
	categoryRepo := postgres.NewCategoryRepository(db)
	transactionRepo := postgres.NewTransactionRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	mailboxRepo := postgres.NewMailboxRepository(db)
	ledgerStore := postgres.NewLedgerStore(db)

	// Domain services
	userService := user.NewService(userRepo, auth.BcryptHasher{})
	accountService := account.NewService(accountRepo)
	categoryService := category.NewService(categoryRepo)
	transactionService := transaction.NewService(transactionRepo, ledgerStore)
	notificationService := notification.NewService(notificationRepo, nil)

	if cfg.Firebase.CredentialsFile != "" {
		fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile, notificationService.DeactivateToken)
		if err != nil {
			log.Warn().Err(err).Msg("Push notifications disabled")
		} else {
			notificationService.SetMessenger(fcm)
			log.Info().Msg("Firebase messaging initialized")
		}
	}

	deps.BalanceListener = listener.NewBalanceListener(cfg.Database.ConnectionString(), notificationService)

	jwt := auth.NewJWT(cfg.JWT.Secret).WithTTL(cfg.JWT.TTL)
	deps.JWT = jwt

	deps.Pool = scheduler.NewWorkerPool(cfg.Scheduler.WorkerCount, cfg.Scheduler.JobDelay, cfg.Scheduler.QueueSize)

	if cfg.Gmail.Enabled() {
		if err := deps.initGmail(ctx, cfg, mailboxRepo, transactionService, accountService, categoryService, notificationService); err != nil {
			deps.Close()
			return nil, err
		}
	} else {
		log.Info().Msg("Gmail ingestion disabled: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")
	}

	deps.AuthHandler = httphandlers.NewAuthHandler(userService, jwt)
	deps.UserHandler = httphandlers.NewUserHandler(userService)
	deps.AccountHandler = httphandlers.NewAccountHandler(accountService)
	deps.CategoryHandler = httphandlers.NewCategoryHandler(categoryService)
	deps.TransactionHandler = httphandlers.NewTransactionHandler(transactionService)
	deps.NotificationHandler = httphandlers.NewNotificationHandler(notificationService)
	deps.HealthHandler = httphandlers.NewHealthHandler(db)

	return deps, nil
}

func (d *Dependencies) initGmail(
	ctx context.Context,
	cfg *config.Config,
	repo mailbox.Repository,
	booker *transaction.Service,
	accounts *account.Service,
	categories *category.Service,
	notifier *notification.Service,
) error {
	if cfg.GenAI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when Gmail ingestion is enabled")
	}

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return err
	}

	generator, err := genai.NewModelGenerator(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model)
	if err != nil {
		return err
	}
	extractor := genai.NewExtractor(generator, genai.Config{
		Model:       cfg.GenAI.Model,
		Timeout:     cfg.GenAI.Timeout,
		MaxFailures: cfg.GenAI.MaxFailures,
		Cooldown:    cfg.GenAI.Cooldown,
	})

	var texts *messages.Messages
	if cfg.Messages.Path != "" {
		texts, err = messages.Load(cfg.Messages.Path)
		if err != nil {
			return err
		}
	}

	opts := []mailbox.Option{mailbox.WithSubjectMarker(cfg.Gmail.SubjectMarker)}
	if cfg.Redis.URL != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		d.Redis = client
		opts = append(opts,
			mailbox.WithDeduper(redis.NewDeduper(client, 0)),
			mailbox.WithLocker(redis.NewLocker(client, 0)),
		)
		log.Info().Msg("Redis push dedupe and mailbox locks enabled")
	}

	gateway := gmail.NewGateway(gmail.Config{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RedirectURL:  cfg.Gmail.RedirectURL,
		TopicName:    cfg.Gmail.TopicName,
	})

	d.MailboxService = mailbox.NewService(
		repo, gateway, encryptor, d.JWT, booker, accounts, categories, extractor, notifier, texts, opts...,
	)

	var verifier httphandlers.PushVerifier
	if cfg.Gmail.VerifyPush {
		pv, err := auth.NewGooglePushVerifier(ctx, cfg.Gmail.PushAudience, cfg.Gmail.PushAccount)
		if err != nil {
			return err
		}
		d.PushVerifier = pv
		verifier = pv
	} else {
		log.Warn().Msg("Gmail push verification disabled")
	}

	queue := scheduler.NewMailboxQueue(d.Pool, d.MailboxService)
	d.GmailHandler = httphandlers.NewGmailHandler(d.MailboxService, queue, gmail.DecodePush, verifier, cfg.Gmail.SuccessRedirect)
	log.Info().Str("topic", cfg.Gmail.TopicName).Msg("Gmail ingestion enabled")
	return nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.PushVerifier != nil {
		d.PushVerifier.Close()
	}
	if d.Redis != nil {
		d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
