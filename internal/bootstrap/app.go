package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"resumind/internal/analysis"
	"resumind/internal/extract"
	"resumind/internal/llm"
	"resumind/internal/pipeline"
	"resumind/internal/preview"
	"resumind/internal/queue"
	"resumind/internal/resumes"
	"resumind/internal/runs"
	"resumind/internal/services/health"
	"resumind/internal/shared/config"
	"resumind/internal/shared/server"
	"resumind/internal/shared/storage/db"
	"resumind/internal/shared/storage/kv"
	"resumind/internal/shared/storage/object"
	localstore "resumind/internal/shared/storage/object/local"
	s3store "resumind/internal/shared/storage/object/s3"
)

// App holds shared dependencies and the HTTP router built from them.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	KV       kv.Store
	Store    object.ObjectStore
	Queue    queue.Client
	Provider llm.Provider
	Gateway  *analysis.Gateway

	Extractor *extract.Lazy
	Renderer  preview.Renderer
	Resumes   *resumes.Repo
	Sessions  *pipeline.Sessions
	Runs      *runs.Projector

	AnalyzeHandler *analysis.Handler
	ResumesHandler *resumes.Handler
	RunsHandler    *runs.Handler
}

// Build prepares dependencies for the API server.
func Build(cfg config.Config) (*App, error) {
	return build(context.Background(), cfg, db.DefaultServerOptions())
}

// BuildCLI prepares dependencies for one-shot commands (small DB pool).
func BuildCLI(ctx context.Context, cfg config.Config) (*App, error) {
	return build(ctx, cfg, db.DefaultCLIOptions())
}

func build(ctx context.Context, cfg config.Config, dbOpts db.Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	if strings.TrimSpace(cfg.KVBackend) == "" {
		cfg.KVBackend = "memory"
	}

	app := &App{Config: cfg}

	store, sqlDB, err := buildKV(ctx, cfg, dbOpts)
	if err != nil {
		return nil, err
	}
	app.KV, app.DB = store, sqlDB

	if app.Store, err = buildStore(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}
	if app.Provider, err = analysis.NewProvider(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	app.Gateway = analysis.NewGateway(app.Provider)
	app.Extractor = extract.NewLazy(nil)
	app.Renderer = preview.NewPageOneRenderer(app.Store)
	app.Resumes = resumes.NewRepo(app.KV, app.Store)
	app.Runs = runs.NewProjector(app.KV)
	app.Sessions = pipeline.NewSessions(app.PipelineDeps(app.Gateway))

	app.AnalyzeHandler = analysis.NewHandler(app.Gateway)
	app.ResumesHandler = resumes.NewHandler(app.Resumes, app.Sessions, cfg.MaxUploadBytes)
	app.RunsHandler = runs.NewHandler(app.Runs)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:         cfg,
		AnalyzeHandler: app.AnalyzeHandler,
		ResumesHandler: app.ResumesHandler,
		RunsHandler:    app.RunsHandler,
		Health:         health.NewService().With("kv", health.KVCheck(app.KV)),
	})

	return app, nil
}

// PipelineDeps wires the pipeline to this app's collaborators with analyzer
// as the analysis step. Callers may pass a remote client instead of Gateway.
// With a broker configured, status updates go to the queue and cmd/worker
// maintains the run projection; otherwise they are projected in process.
func (a *App) PipelineDeps(analyzer pipeline.Analyzer) pipeline.Deps {
	sink := pipeline.MultiSink{pipeline.LogSink{}}
	switch {
	case a.Queue != nil:
		sink = append(sink, pipeline.QueueSink{Client: a.Queue})
	case a.Runs != nil:
		sink = append(sink, runs.Sink{Projector: a.Runs})
	}
	return pipeline.Deps{
		Extractor: a.Extractor,
		Renderer:  a.Renderer,
		Analyzer:  analyzer,
		Persister: a.Resumes,
		Sink:      sink,
	}
}

// Close releases network clients. It is safe to call on a partially built App.
func (a *App) Close() error {
	var errs []error
	if c, ok := a.KV.(kv.Closer); ok {
		errs = append(errs, c.Close())
	}
	if a.Queue != nil {
		errs = append(errs, a.Queue.Close())
	}
	// The pool from db.GetSingleton is process-wide and stays open.
	return errors.Join(errs...)
}

// OpenKV opens the configured key/value backend. The worker uses it so both
// processes read and write the same run projections.
func OpenKV(ctx context.Context, cfg config.Config) (kv.Store, error) {
	store, _, err := buildKV(ctx, cfg, db.DefaultCLIOptions())
	return store, err
}

func buildKV(ctx context.Context, cfg config.Config, dbOpts db.Options) (kv.Store, *sql.DB, error) {
	switch cfg.KVBackend {
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg, dbOpts)
		if err != nil {
			return nil, nil, err
		}
		if sqlDB == nil {
			return kv.NewMemoryStore(), nil, nil
		}
		return &kv.PGStore{DB: sqlDB}, sqlDB, nil
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return nil, nil, fmt.Errorf("KV_BACKEND=redis requires REDIS_URL")
		}
		store, err := kv.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "firestore":
		if strings.TrimSpace(cfg.FirestoreProjectID) == "" {
			return nil, nil, fmt.Errorf("KV_BACKEND=firestore requires FIRESTORE_PROJECT_ID")
		}
		store, err := kv.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCollection)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "memory", "":
		return kv.NewMemoryStore(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory key/value store")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database unavailable; using in-memory key/value store: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	switch cfg.StatusQueue {
	case "sqs":
		if strings.TrimSpace(cfg.StatusSQSQueueURL) == "" {
			return nil, fmt.Errorf("STATUS_QUEUE=sqs requires STATUS_SQS_QUEUE_URL")
		}
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.StatusSQSQueueURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return nil, fmt.Errorf("STATUS_QUEUE=amqp requires AMQP_URL")
		}
		client, err := queue.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
