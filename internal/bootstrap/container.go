package bootstrap

import (
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"chart-analysis-be/internal/config"
	"chart-analysis-be/internal/constant"
	"chart-analysis-be/internal/controller"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/internal/service"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/fingerprint"
	pktNats "chart-analysis-be/pkg/nats"
	"chart-analysis-be/pkg/prompt"
	"chart-analysis-be/pkg/retry"
	"chart-analysis-be/pkg/similarity"
	"chart-analysis-be/pkg/vision"
	"chart-analysis-be/pkg/vision/gemini"
	"chart-analysis-be/pkg/vision/ollama"
	"chart-analysis-be/pkg/visual"
)

type Container struct {
	// Controllers
	ChartController    controller.IChartController
	AnalysisController controller.IAnalysisController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Artifact cache
	artifactStore := newArtifactStore(cfg)

	// Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	// Embedding provider
	var embeddingProvider embedding.ImageEmbeddingProvider
	if cfg.Embedding.Provider == "signature" {
		embeddingProvider = embedding.NewSignatureProvider()
		log.Printf("[INFO] Using Embedding Provider: SIGNATURE (offline)")
	} else {
		embeddingProvider = embedding.NewClipProvider(cfg.Embedding.ClipBaseURL)
		log.Printf("[INFO] Using Embedding Provider: CLIP (%s)", cfg.Embedding.ClipBaseURL)
	}

	// Vision provider
	var visionProvider vision.Provider
	if cfg.Vision.Provider == "ollama" {
		visionProvider = ollama.NewOllamaProvider(cfg.Vision.OllamaBaseURL, cfg.Vision.OllamaModel)
		log.Printf("[INFO] Using Vision Provider: OLLAMA (%s)", cfg.Vision.OllamaModel)
	} else {
		visionProvider = gemini.NewGeminiProvider(cfg.Vision.GeminiAPIKey, cfg.Vision.GeminiModel)
		log.Printf("[INFO] Using Vision Provider: GEMINI (%s)", cfg.Vision.GeminiModel)
	}

	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialWait,
		PerCallTime: cfg.Retry.PerCallTime,
	}

	mapGenerator := visual.NewGenerator(artifactStore, sysLogger)
	embeddingGenerator := embedding.NewGenerator(embeddingProvider, artifactStore, sysLogger, retryCfg)
	index := similarity.NewIndex(sysLogger, similarity.WithMinSimilarity(cfg.Retrieval.SimilarityFloor))

	basePrompt, promptVersion := loadAnalysisPrompt(cfg)
	promptBuilder := prompt.NewUnifiedBuilder(basePrompt)

	// NATS publisher is optional; the pipeline runs fully without it.
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
		}
	}

	// Repositories
	chartRepo := memory.NewChartRepository()
	bundleRepo := memory.NewBundleRepository()
	analysisRepo := memory.NewAnalysisRepository()

	// Services
	publisherService := service.NewPublisherService(pubSub, cfg.App.EmbedChartTopic)
	consumerService := service.NewConsumerService(pubSub, cfg.App.EmbedChartTopic, chartRepo, embeddingGenerator, index, sysLogger)
	chartService := service.NewChartService(chartRepo, bundleRepo, mapGenerator, publisherService, natsPub, cfg.App.UploadDir, sysLogger)
	analysisService := service.NewAnalysisService(service.AnalysisDeps{
		ChartRepo:          chartRepo,
		BundleRepo:         bundleRepo,
		AnalysisRepo:       analysisRepo,
		MapGenerator:       mapGenerator,
		EmbeddingGenerator: embeddingGenerator,
		Index:              index,
		PromptBuilder:      promptBuilder,
		VisionProvider:     visionProvider,
		VisionName:         cfg.Vision.Provider,
		PromptVersion:      promptVersion,
		EventPublisher:     natsPub,
		DefaultTopK:        cfg.Retrieval.TopK,
		RetryCfg:           retryCfg,
		Temperature:        cfg.Vision.Temperature,
		MaxTokens:          cfg.Vision.MaxTokens,
		Logger:             sysLogger,
	})

	return &Container{
		ChartController:    controller.NewChartController(chartService),
		AnalysisController: controller.NewAnalysisController(analysisService, chartService),
		ConsumerService:    consumerService,
		Logger:             sysLogger,
	}
}

func newArtifactStore(cfg *config.Config) fingerprint.Store {
	switch cfg.Cache.Backend {
	case "disk":
		store, err := fingerprint.NewDiskStore(cfg.Cache.Dir)
		if err != nil {
			log.Fatalf("[FATAL] Failed to initialize disk artifact store: %v", err)
		}
		log.Printf("[INFO] Using Artifact Store: DISK (%s)", cfg.Cache.Dir)
		return store
	case "redis":
		store, err := fingerprint.NewRedisStore(cfg.Cache.RedisURL, 0)
		if err != nil {
			log.Printf("[WARN] Failed to connect to Redis artifact store: %v. Falling back to memory", err)
			return fingerprint.NewMemoryStore()
		}
		log.Printf("[INFO] Using Artifact Store: REDIS")
		return store
	default:
		log.Printf("[INFO] Using Artifact Store: MEMORY")
		return fingerprint.NewMemoryStore()
	}
}

// loadAnalysisPrompt prefers the operator-managed prompt file and falls back
// to the built-in text.
func loadAnalysisPrompt(cfg *config.Config) (text, version string) {
	if cfg.App.AnalysisPromptPath != "" {
		data, err := os.ReadFile(cfg.App.AnalysisPromptPath)
		if err != nil {
			log.Printf("[WARN] Failed to read analysis prompt %s: %v. Using built-in prompt", cfg.App.AnalysisPromptPath, err)
		} else {
			return string(data), cfg.App.AnalysisPromptPath
		}
	}
	return constant.DefaultAnalysisPrompt, constant.DefaultAnalysisPromptVersion
}
