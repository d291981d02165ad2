package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"studydocs-backend/internal/documents"
	"studydocs-backend/internal/extract"
	"studydocs-backend/internal/queue"
	"studydocs-backend/internal/services/health"
	"studydocs-backend/internal/shared/config"
	"studydocs-backend/internal/shared/server"
	"studydocs-backend/internal/shared/storage/db"
	"studydocs-backend/internal/shared/storage/mongodb"
	"studydocs-backend/internal/shared/storage/object"
	localstore "studydocs-backend/internal/shared/storage/object/local"
	s3store "studydocs-backend/internal/shared/storage/object/s3"
	"studydocs-backend/internal/workerproc"
)

// ErrQueueRequired is returned when running in Lambda without SQS_QUEUE_URL.
// The runtime freezes between invocations, so in-process jobs never finish.
var ErrQueueRequired = errors.New("SQS_QUEUE_URL is required in the Lambda runtime")

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Mongo            *mongo.Client
	Store            object.ObjectStore
	Queue            queue.Client
	Pool             *queue.LocalPool
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	Processor        *documents.Processor
	DocumentsHandler *documents.Handler
	Health           *health.Service
}

// Build wires config into stores, repositories, services and the router.
//
// The document repository is Mongo when MONGODB_URI is set, Postgres when
// DATABASE_URL is set, and in-memory otherwise (dev-like environments only).
// Jobs go to SQS when SQS_QUEUE_URL is set and to an in-process pool otherwise.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.PublicFilesPath) == "" {
		cfg.PublicFilesPath = "/uploads/documents"
	}
	if db.IsLambdaRuntime() && strings.TrimSpace(cfg.SQSQueueURL) == "" {
		return nil, ErrQueueRequired
	}
	ctx := context.Background()

	app := &App{Config: cfg, Health: health.NewService()}

	repo, err := buildRepo(ctx, app)
	if err != nil {
		return nil, err
	}
	app.DocumentsRepo = repo

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}
	app.Store = store

	app.Processor = &documents.Processor{
		Repo:      repo,
		Store:     store,
		Extractor: extract.PDFExtractor{},
		MaxBytes:  cfg.MaxUploadBytes,
	}

	if err := buildQueue(ctx, app); err != nil {
		app.Close(ctx)
		return nil, err
	}

	app.DocumentsService = &documents.Service{
		Repo:           repo,
		Store:          store,
		Queue:          app.Queue,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService, cfg.PublicFilesPath)
	app.DocumentsHandler.TrustForwarded = cfg.TrustProxyHeaders

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		DocumentHandler: app.DocumentsHandler,
		Store:           store,
		Health:          app.Health,
	})

	return app, nil
}

// Close drains the in-process pool and releases database connections.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Pool != nil {
		if err := a.Pool.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain job pool: %w", err))
		}
	}
	if a.Mongo != nil {
		mongodb.Disconnect(a.Mongo)
	}
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildRepo(ctx context.Context, app *App) (documents.Repo, error) {
	cfg := app.Config

	if strings.TrimSpace(cfg.MongoURI) != "" {
		client, database, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, mongodb.DefaultOptions())
		if err != nil {
			return fallbackRepo(cfg, "mongo connect failed", err)
		}
		repo := documents.NewMongoRepo(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Printf("bootstrap: ensure mongo indexes: %v", err)
		}
		app.Mongo = client
		app.Health.Register("mongodb", func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		})
		return repo, nil
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		var (
			sqlDB *sql.DB
			err   error
		)
		if db.IsLambdaRuntime() {
			sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.LambdaOptions()))
		} else {
			sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.ServerOptions()))
		}
		if err != nil {
			return fallbackRepo(cfg, "database connect failed", err)
		}
		app.DB = sqlDB
		app.Health.Register("postgres", sqlDB.PingContext)
		return &documents.PGRepo{DB: sqlDB}, nil
	}

	if config.IsDevLike(cfg.Env) {
		log.Printf("bootstrap: MONGODB_URI and DATABASE_URL empty; using in-memory repository")
		return documents.NewMemoryRepo(), nil
	}
	return nil, errors.New("MONGODB_URI or DATABASE_URL is required")
}

func fallbackRepo(cfg config.Config, reason string, err error) (documents.Repo, error) {
	if config.IsDevLike(cfg.Env) {
		log.Printf("bootstrap: %s; using in-memory repository: %v", reason, err)
		return documents.NewMemoryRepo(), nil
	}
	return nil, err
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		dir := cfg.UploadDir
		if strings.TrimSpace(dir) == "" {
			dir = "./uploads/documents"
		}
		return localstore.New(dir), nil
	}
}

func buildQueue(ctx context.Context, app *App) error {
	cfg := app.Config
	if cfg.SQSQueueURL != "" {
		client, err := queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
		if err != nil {
			return err
		}
		app.Queue = client
		return nil
	}

	processor := app.Processor
	app.Pool = queue.NewLocalPool(func(ctx context.Context, msg queue.Message) error {
		return workerproc.Run(ctx, processor, msg)
	}, cfg.WorkerConcurrency, cfg.JobBuffer)
	app.Queue = app.Pool
	return nil
}
