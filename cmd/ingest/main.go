package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"chart-analysis-be/internal/config"
	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/internal/service"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/retry"
	"chart-analysis-be/pkg/similarity"
	"chart-analysis-be/pkg/visual"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// Bulk-registers a directory of chart images through the same pipeline the
// server runs: maps and embeddings land in the artifact cache, so a later
// server process picks them all up as cache hits. Use a persistent cache
// backend (disk or redis) for the results to survive this process.
func main() {
	dir := flag.String("dir", "", "directory of chart images to ingest")
	instrument := flag.String("instrument", "", "instrument symbol for every chart in the directory")
	timeframe := flag.String("timeframe", "1H", "timeframe for every chart in the directory")
	wait := flag.Duration("wait", 5*time.Minute, "how long to wait for embedding to finish")
	flag.Parse()
	if *dir == "" || *instrument == "" {
		log.Fatal("usage: ingest -dir <chart directory> -instrument <symbol> [-timeframe 1H]")
	}

	cfg := config.Load()
	if cfg.Cache.Backend == "memory" {
		log.Println("[WARN] CACHE_BACKEND=memory: cached artifacts will not survive this process")
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, false)
	store := newStore(cfg)
	mapGen := visual.NewGenerator(store, sysLogger)

	var provider embedding.ImageEmbeddingProvider
	if cfg.Embedding.Provider == "signature" {
		provider = embedding.NewSignatureProvider()
	} else {
		provider = embedding.NewClipProvider(cfg.Embedding.ClipBaseURL)
	}
	embedGen := embedding.NewGenerator(provider, store, sysLogger, retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialWait,
		PerCallTime: cfg.Retry.PerCallTime,
	})

	chartRepo := memory.NewChartRepository()
	bundleRepo := memory.NewBundleRepository()
	index := similarity.NewIndex(sysLogger)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisher := service.NewPublisherService(pubSub, cfg.App.EmbedChartTopic)
	consumer := service.NewConsumerService(pubSub, cfg.App.EmbedChartTopic, chartRepo, embedGen, index, sysLogger)
	ctx := context.Background()
	if err := consumer.Consume(ctx); err != nil {
		log.Fatalf("[FATAL] Consumer: %v", err)
	}
	chartSvc := service.NewChartService(chartRepo, bundleRepo, mapGen, publisher, nil, cfg.App.UploadDir, sysLogger)

	var registered []uuid.UUID
	var duplicates, failed int
	err := filepath.WalkDir(*dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("[ERROR] %s: %v", path, err)
			failed++
			return nil
		}

		res, err := chartSvc.Register(ctx, &dto.RegisterChartRequest{
			Instrument: *instrument,
			Timeframe:  *timeframe,
		}, filepath.Base(path), data)
		if err != nil {
			log.Printf("[ERROR] %s: %v", path, err)
			failed++
			return nil
		}
		if res.Cached {
			duplicates++
			return nil
		}
		log.Printf("[INFO] Registered %s (%s)", filepath.Base(path), res.Fingerprint)
		registered = append(registered, res.Id)
		return nil
	})
	if err != nil {
		log.Fatalf("[FATAL] Walk failed: %v", err)
	}

	embedded := waitForEmbedding(chartRepo, registered, *wait)
	log.Printf("Done: %d registered (%d embedded), %d duplicates, %d failed",
		len(registered), embedded, duplicates, failed)
	if embedded < len(registered) {
		os.Exit(1)
	}
}

// waitForEmbedding polls until the consumer has embedded every registered
// chart or the deadline passes. Returns how many completed.
func waitForEmbedding(repo *memory.ChartRepository, ids []uuid.UUID, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		embedded := 0
		for _, id := range ids {
			if chart, found := repo.Get(id); found && chart.Embedded {
				embedded++
			}
		}
		if embedded == len(ids) || time.Now().After(deadline) {
			return embedded
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func newStore(cfg *config.Config) fingerprint.Store {
	switch cfg.Cache.Backend {
	case "redis":
		store, err := fingerprint.NewRedisStore(cfg.Cache.RedisURL, 0)
		if err != nil {
			log.Fatalf("[FATAL] Redis artifact store: %v", err)
		}
		return store
	case "memory":
		return fingerprint.NewMemoryStore()
	default:
		store, err := fingerprint.NewDiskStore(cfg.Cache.Dir)
		if err != nil {
			log.Fatalf("[FATAL] Disk artifact store: %v", err)
		}
		return store
	}
}
