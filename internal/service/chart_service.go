package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/entity"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/pkg/events"
	"chart-analysis-be/pkg/fingerprint"
	pktNats "chart-analysis-be/pkg/nats"
	"chart-analysis-be/pkg/visual"
)

var (
	ErrChartNotFound            = errors.New("chart not found")
	ErrBundleNotFound           = errors.New("bundle not found")
	ErrBundleInstrumentMismatch = errors.New("bundle charts must share one instrument")
	ErrBundleDuplicateTimeframe = errors.New("bundle charts must have distinct timeframes")
)

type IChartService interface {
	Register(ctx context.Context, req *dto.RegisterChartRequest, filename string, imageData []byte) (*dto.RegisterChartResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.ShowChartResponse, error)
	List(ctx context.Context) []*dto.ShowChartResponse
	CreateBundle(ctx context.Context, req *dto.CreateBundleRequest) (*dto.CreateBundleResponse, error)
}

type chartService struct {
	chartRepo        *memory.ChartRepository
	bundleRepo       *memory.BundleRepository
	mapGenerator     *visual.Generator
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	uploadDir        string
	logger           logger.ILogger
}

func NewChartService(
	chartRepo *memory.ChartRepository,
	bundleRepo *memory.BundleRepository,
	mapGenerator *visual.Generator,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	uploadDir string,
	log logger.ILogger,
) IChartService {
	return &chartService{
		chartRepo:        chartRepo,
		bundleRepo:       bundleRepo,
		mapGenerator:     mapGenerator,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		uploadDir:        uploadDir,
		logger:           log,
	}
}

func (c *chartService) Register(ctx context.Context, req *dto.RegisterChartRequest, filename string, imageData []byte) (*dto.RegisterChartResponse, error) {
	hash := fingerprint.Fingerprint(imageData)

	// A chart is its bytes: re-registering the same image returns the
	// existing record instead of duplicating work.
	if existing, found := c.chartRepo.GetByFingerprint(hash); found {
		c.logger.Info("chart_service", "Duplicate registration, returning existing chart", map[string]interface{}{
			"chart_id":    existing.Id,
			"fingerprint": hash,
		})
		return &dto.RegisterChartResponse{
			Id:          existing.Id,
			Fingerprint: hash,
			Cached:      true,
		}, nil
	}

	var bundle *entity.Bundle
	if req.BundleId != nil {
		b, found := c.bundleRepo.Get(*req.BundleId)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrBundleNotFound, *req.BundleId)
		}
		if b.Instrument != req.Instrument {
			return nil, fmt.Errorf("%w: chart is %s, bundle is %s",
				ErrBundleInstrumentMismatch, req.Instrument, b.Instrument)
		}
		for _, tf := range b.Timeframes {
			if tf == req.Timeframe {
				return nil, fmt.Errorf("%w: %s", ErrBundleDuplicateTimeframe, req.Timeframe)
			}
		}
		bundle = b
	}

	maps, err := c.mapGenerator.Generate(ctx, imageData)
	if err != nil {
		return nil, err
	}

	imagePath, err := c.saveOriginal(hash, filename, imageData)
	if err != nil {
		return nil, fmt.Errorf("save chart image: %w", err)
	}

	mapPaths := make(map[string]string, len(fingerprint.MapKinds))
	for _, kind := range fingerprint.MapKinds {
		if maps.Map(kind) == nil {
			continue
		}
		mapPaths[string(kind)] = c.mapGenerator.Location(hash, kind)
	}

	chart := entity.Chart{
		Id:          uuid.New(),
		Fingerprint: hash,
		Filename:    filename,
		Instrument:  req.Instrument,
		Timeframe:   req.Timeframe,
		Session:     req.Session,
		ImagePath:   imagePath,
		MapPaths:    mapPaths,
		CreatedAt:   time.Now(),
	}
	if bundle != nil {
		chart.BundleId = &bundle.Id
		c.bundleRepo.Update(bundle.Id, func(b *entity.Bundle) {
			b.ChartIds = append(b.ChartIds, chart.Id)
			b.Timeframes = append(b.Timeframes, chart.Timeframe)
			sort.Strings(b.Timeframes)
		})
	}
	c.chartRepo.Save(&chart)

	msgJson, err := json.Marshal(dto.PublishEmbedChartMessage{ChartId: chart.Id})
	if err != nil {
		return nil, err
	}
	if err := c.publisherService.Publish(ctx, msgJson); err != nil {
		return nil, err
	}

	if c.eventPublisher != nil {
		evt := events.NewChartRegistered(chart.Id.String(), chart.Instrument, chart.Timeframe)
		if err := c.eventPublisher.Publish(ctx, evt); err != nil {
			c.logger.Warn("chart_service", "Failed to publish CHART_REGISTERED event", map[string]interface{}{
				"chart_id": chart.Id,
				"error":    err.Error(),
			})
		}
	}

	return &dto.RegisterChartResponse{
		Id:          chart.Id,
		Fingerprint: hash,
	}, nil
}

func (c *chartService) Show(ctx context.Context, id uuid.UUID) (*dto.ShowChartResponse, error) {
	chart, found := c.chartRepo.Get(id)
	if !found {
		return nil, ErrChartNotFound
	}

	return &dto.ShowChartResponse{
		Id:          chart.Id,
		Fingerprint: chart.Fingerprint,
		Filename:    chart.Filename,
		Instrument:  chart.Instrument,
		Timeframe:   chart.Timeframe,
		Session:     chart.Session,
		MapPaths:    chart.MapPaths,
		Embedded:    chart.Embedded,
		BundleId:    chart.BundleId,
		CreatedAt:   chart.CreatedAt,
	}, nil
}

func (c *chartService) List(ctx context.Context) []*dto.ShowChartResponse {
	charts := c.chartRepo.List()
	out := make([]*dto.ShowChartResponse, 0, len(charts))
	for _, chart := range charts {
		out = append(out, &dto.ShowChartResponse{
			Id:          chart.Id,
			Fingerprint: chart.Fingerprint,
			Filename:    chart.Filename,
			Instrument:  chart.Instrument,
			Timeframe:   chart.Timeframe,
			Session:     chart.Session,
			MapPaths:    chart.MapPaths,
			Embedded:    chart.Embedded,
			BundleId:    chart.BundleId,
			CreatedAt:   chart.CreatedAt,
		})
	}
	return out
}

func (c *chartService) CreateBundle(ctx context.Context, req *dto.CreateBundleRequest) (*dto.CreateBundleResponse, error) {
	charts := make([]*entity.Chart, 0, len(req.ChartIds))
	seenTimeframes := make(map[string]bool, len(req.ChartIds))
	for _, id := range req.ChartIds {
		chart, found := c.chartRepo.Get(id)
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrChartNotFound, id)
		}
		if chart.Instrument != req.Instrument {
			return nil, fmt.Errorf("%w: chart %s is %s, bundle is %s",
				ErrBundleInstrumentMismatch, id, chart.Instrument, req.Instrument)
		}
		if seenTimeframes[chart.Timeframe] {
			return nil, fmt.Errorf("%w: %s", ErrBundleDuplicateTimeframe, chart.Timeframe)
		}
		seenTimeframes[chart.Timeframe] = true
		charts = append(charts, chart)
	}

	bundle := entity.Bundle{
		Id:         uuid.New(),
		Instrument: req.Instrument,
		ChartIds:   req.ChartIds,
		CreatedAt:  time.Now(),
	}
	for tf := range seenTimeframes {
		bundle.Timeframes = append(bundle.Timeframes, tf)
	}
	sort.Strings(bundle.Timeframes)
	c.bundleRepo.Save(&bundle)

	now := time.Now()
	for _, chart := range charts {
		c.chartRepo.Update(chart.Id, func(ch *entity.Chart) {
			ch.BundleId = &bundle.Id
			ch.UpdatedAt = &now
		})
	}

	return &dto.CreateBundleResponse{
		Id:         bundle.Id,
		Timeframes: bundle.Timeframes,
	}, nil
}

func (c *chartService) saveOriginal(hash, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(c.uploadDir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".png"
	}
	path := filepath.Join(c.uploadDir, hash+ext)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
