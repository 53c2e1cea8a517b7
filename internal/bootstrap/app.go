package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"farmdata-backend/internal/analysis"
	googleauth "farmdata-backend/internal/auth"
	"farmdata-backend/internal/files"
	"farmdata-backend/internal/history"
	"farmdata-backend/internal/llm"
	openai "farmdata-backend/internal/llm/openai"
	"farmdata-backend/internal/services/health"
	"farmdata-backend/internal/shared/config"
	"farmdata-backend/internal/shared/server"
	"farmdata-backend/internal/shared/server/middleware"
	"farmdata-backend/internal/shared/storage/db"
	"farmdata-backend/internal/shared/storage/object"
	localstore "farmdata-backend/internal/shared/storage/object/local"
	s3store "farmdata-backend/internal/shared/storage/object/s3"
	"farmdata-backend/internal/shared/telemetry"
	"farmdata-backend/internal/users"
)

var errLLMNotConfigured = errors.New("OPENAI_API_KEY not configured")

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	LLM             llm.Client
	RunsRepo        history.Repo
	UsersRepo       users.Repo
	FilesService    *files.Service
	AnalysisService *analysis.Service
	UsersService    *users.Service
	GoogleAuth      *googleauth.GoogleService
}

// Build wires storage, repositories, the provider client and the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := BuildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := BuildLLM(cfg)
	if err != nil {
		return nil, err
	}
	llm.SetDefaultCapabilities(llm.NewCapabilities(cfg.ReasoningModelPrefixes...))

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		LLM:    client,
	}
	if sqlDB != nil {
		app.RunsRepo = &history.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.RunsRepo = history.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.FilesService = files.NewService(store)
	app.AnalysisService = analysis.NewService(app.FilesService, client, app.RunsRepo, cfg.LLMModel)
	app.UsersService = users.NewService(app.UsersRepo)
	app.GoogleAuth = googleauth.NewGoogleService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
		app.UsersService,
	)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          health.NewService(sqlDB, cfg.ObjectStoreType),
		FileHandler:     files.NewHandler(app.FilesService),
		AnalysisHandler: analysis.NewHandler(app.AnalysisService),
		UserHandler:     users.NewHandler(app.UsersService),
		GoogleAuth:      app.GoogleAuth,
		Limiter:         middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"database":     sqlDB != nil,
		"model":        cfg.LLMModel,
	})
	return app, nil
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// buildDB connects and migrates. Dev-like envs fall back to in-memory
// repositories when the database is absent or unreachable.
func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	devLike := config.IsDevLike(cfg.Env)
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if devLike {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, errors.New("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if devLike {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

// BuildStore selects the object store named by OBJECT_STORE.
func BuildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			KMSKeyID:        cfg.SSEKMSKeyID,
		})
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	default:
		return nil, fmt.Errorf("unknown OBJECT_STORE %q", cfg.ObjectStoreType)
	}
}

// BuildLLM returns the OpenAI client. Without an API key, dev-like envs get a
// client that fails every call so the rest of the API stays usable.
func BuildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm_unconfigured", nil)
			return unconfiguredLLM{}, nil
		}
		return nil, errLLMNotConfigured
	}
	return openai.NewClient(openai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.OpenAITimeout,
	})
}

type unconfiguredLLM struct{}

func (unconfiguredLLM) Complete(context.Context, llm.ChatRequest) (llm.Response, error) {
	return llm.Response{}, &llm.ProviderError{Err: errLLMNotConfigured}
}
