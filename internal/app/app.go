package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/autovant/RCA-Final-sub001/internal/data/repos/cache"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/detections"
	"github.com/autovant/RCA-Final-sub001/internal/data/repos/fingerprints"
	"github.com/autovant/RCA-Final-sub001/internal/db"
	"github.com/autovant/RCA-Final-sub001/internal/detection"
	"github.com/autovant/RCA-Final-sub001/internal/handlers"
	"github.com/autovant/RCA-Final-sub001/internal/observability"
	"github.com/autovant/RCA-Final-sub001/internal/parsers"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
	"github.com/autovant/RCA-Final-sub001/internal/platform/vectorstore"
	"github.com/autovant/RCA-Final-sub001/internal/server"
	"github.com/autovant/RCA-Final-sub001/internal/services"
)

type Repos struct {
	Cache        cache.EmbeddingCacheRepo
	Detections   detections.DetectionOutcomeRepo
	Fingerprints fingerprints.IncidentFingerprintRepo
	Audits       fingerprints.CrossWorkspaceAuditRepo
}

type Services struct {
	Cache        services.EmbeddingCacheService
	Eviction     *services.EvictionRunner
	Coordinator  *services.EvictionCoordinator
	Search       services.RelatedIncidentService
	Orchestrator *detection.Orchestrator
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	cancel   context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	metrics := observability.Init()

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	log.Info("Wiring repos...")
	repos := Repos{
		Cache:        cache.NewEmbeddingCacheRepo(theDB, log),
		Detections:   detections.NewDetectionOutcomeRepo(theDB, log),
		Fingerprints: fingerprints.NewIncidentFingerprintRepo(theDB, log),
		Audits:       fingerprints.NewCrossWorkspaceAuditRepo(theDB, log),
	}

	log.Info("Wiring services...")
	svcs, err := wireServices(log, cfg, repos, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	log.Info("Wiring handlers and router...")
	router := server.NewRouter(server.RouterConfig{
		DetectionHandler: handlers.NewDetectionHandler(svcs.Orchestrator, repos.Detections, cfg.Probe, log),
		IncidentsHandler: handlers.NewIncidentsHandler(svcs.Search, log),
		CacheHandler:     handlers.NewCacheHandler(svcs.Cache, svcs.Coordinator, log),
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    repos,
		Services: svcs,
	}, nil
}

func wireServices(log *logger.Logger, cfg Config, repos Repos, metrics *observability.Metrics) (Services, error) {
	box, err := services.NewPayloadBox(cfg.Cache)
	if err != nil {
		return Services{}, fmt.Errorf("init payload box: %w", err)
	}

	var vectors vectorstore.VectorStore
	if cfg.Vector.URL != "" {
		vectors, err = vectorstore.NewQdrantStore(log, cfg.Vector)
		if err != nil {
			return Services{}, fmt.Errorf("init qdrant: %w", err)
		}
	} else {
		log.Warn("QDRANT_URL not set; similarity search runs on the in-memory store")
		vectors = vectorstore.NewMemoryStore()
	}

	var embedder services.Embedder
	httpEmbedder, err := services.NewHTTPEmbedder(log)
	if err != nil {
		log.Warn("embeddings client unavailable; free-text search disabled", "error", err)
		embedder = unavailableEmbedder{}
	} else {
		embedder = httpEmbedder
	}

	cacheService := services.NewEmbeddingCacheService(repos.Cache, box, log, metrics)
	runner := services.NewEvictionRunner(repos.Cache, cfg.Eviction, log, metrics)
	coordinator := services.NewEvictionCoordinator(runner, cfg.Eviction, cfg.Flags, log, metrics)
	search := services.NewRelatedIncidentService(repos.Fingerprints, repos.Audits, vectors, embedder, cfg.Search, log, metrics)
	orchestrator := detection.NewOrchestrator(cfg.Detection, cfg.Flags, parsers.NewRegistry(), log, metrics)

	return Services{
		Cache:        cacheService,
		Eviction:     runner,
		Coordinator:  coordinator,
		Search:       search,
		Orchestrator: orchestrator,
	}, nil
}

// Start launches the background metric collectors.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	metrics := observability.Current()
	metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	if a.Cfg.RedisAddr != "" {
		metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// unavailableEmbedder fails every call with a clear message instead of
// crashing startup when no embeddings key is configured.
type unavailableEmbedder struct{}

func (unavailableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings client not configured; set EMBEDDINGS_API_KEY")
}
