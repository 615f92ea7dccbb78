package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/entity"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/pkg/analysis"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/events"
	pktNats "chart-analysis-be/pkg/nats"
	"chart-analysis-be/pkg/prompt"
	"chart-analysis-be/pkg/retry"
	"chart-analysis-be/pkg/similarity"
	"chart-analysis-be/pkg/vision"
	"chart-analysis-be/pkg/visual"
)

type IAnalysisService interface {
	Analyze(ctx context.Context, req *dto.AnalyzeChartRequest) (*dto.AnalyzeChartResponse, error)
	Health(ctx context.Context) *dto.AnalysisHealthResponse
}

type analysisService struct {
	chartRepo          *memory.ChartRepository
	bundleRepo         *memory.BundleRepository
	analysisRepo       *memory.AnalysisRepository
	mapGenerator       *visual.Generator
	embeddingGenerator *embedding.Generator
	index              *similarity.Index
	promptBuilder      *prompt.UnifiedBuilder
	visionProvider     vision.Provider
	visionName         string
	promptVersion      string
	validator          *analysis.Validator
	eventPublisher     *pktNats.Publisher
	defaultTopK        int
	retryCfg           retry.Config
	temperature        float64
	maxTokens          int
	logger             logger.ILogger
}

type AnalysisDeps struct {
	ChartRepo          *memory.ChartRepository
	BundleRepo         *memory.BundleRepository
	AnalysisRepo       *memory.AnalysisRepository
	MapGenerator       *visual.Generator
	EmbeddingGenerator *embedding.Generator
	Index              *similarity.Index
	PromptBuilder      *prompt.UnifiedBuilder
	VisionProvider     vision.Provider
	VisionName         string
	PromptVersion      string
	EventPublisher     *pktNats.Publisher
	DefaultTopK        int
	RetryCfg           retry.Config
	Temperature        float64
	MaxTokens          int
	Logger             logger.ILogger
}

func NewAnalysisService(deps AnalysisDeps) IAnalysisService {
	return &analysisService{
		chartRepo:          deps.ChartRepo,
		bundleRepo:         deps.BundleRepo,
		analysisRepo:       deps.AnalysisRepo,
		mapGenerator:       deps.MapGenerator,
		embeddingGenerator: deps.EmbeddingGenerator,
		index:              deps.Index,
		promptBuilder:      deps.PromptBuilder,
		visionProvider:     deps.VisionProvider,
		visionName:         deps.VisionName,
		promptVersion:      deps.PromptVersion,
		validator:          analysis.NewValidator(deps.Logger),
		eventPublisher:     deps.EventPublisher,
		defaultTopK:        deps.DefaultTopK,
		retryCfg:           deps.RetryCfg,
		temperature:        deps.Temperature,
		maxTokens:          deps.MaxTokens,
		logger:             deps.Logger,
	}
}

// Analyze runs the full retrieval-augmented pipeline for one chart: restore
// its maps and embedding from the artifact cache, retrieve the most similar
// indexed charts, assemble the unified multi-image request, call the vision
// model with retry, and validate the reply into a structured result.
func (s *analysisService) Analyze(ctx context.Context, req *dto.AnalyzeChartRequest) (*dto.AnalyzeChartResponse, error) {
	chart, found := s.chartRepo.Get(req.ChartId)
	if !found {
		return nil, ErrChartNotFound
	}

	imageData, err := os.ReadFile(chart.ImagePath)
	if err != nil {
		return nil, err
	}

	maps, err := s.mapGenerator.Generate(ctx, imageData)
	if err != nil {
		return nil, err
	}

	vec, err := s.embeddingGenerator.Embed(ctx, imageData)
	if err != nil {
		return nil, err
	}

	// Make the target retrievable by later analyses even if the registration
	// consumer has not gotten to it yet. Upsert is last-write-wins, so racing
	// with the consumer is harmless.
	if err := s.index.Upsert(similarity.Record{
		ChartId: chart.Id,
		Vector:  vec,
		Metadata: similarity.RecordMetadata{
			Filename:   chart.Filename,
			Instrument: chart.Instrument,
			Timeframe:  chart.Timeframe,
			MapPaths:   chart.MapPaths,
		},
	}); err != nil {
		s.logger.Warn("analysis_service", "Index upsert rejected", map[string]interface{}{
			"chart_id": chart.Id, "error": err.Error(),
		})
	}

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	// Over-fetch by one so self-retrieval never shrinks the neighbor set.
	matches := s.index.TopK(vec, topK+1)
	neighbors, neighborDTOs := s.loadNeighbors(ctx, chart.Id, matches, topK)

	target := prompt.Target{
		ChartImage: prompt.ChartImage{
			Original:     imageData,
			OriginalMIME: mimeFromPath(chart.ImagePath),
			Maps:         maps,
		},
		Instrument: chart.Instrument,
		Timeframe:  chart.Timeframe,
		Session:    chart.Session,
	}
	if chart.BundleId != nil {
		if bundle, ok := s.bundleRepo.Get(*chart.BundleId); ok {
			target.BundleTimeframes = bundle.Timeframes
		}
	}

	messages := s.promptBuilder.Build(target, neighbors, req.InjectText)

	started := time.Now()
	raw, err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) (string, error) {
		return s.visionProvider.Analyze(ctx, messages,
			vision.WithTemperature(s.temperature),
			vision.WithMaxTokens(s.maxTokens),
		)
	})
	if err != nil {
		if !errors.Is(err, vision.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", vision.ErrUnavailable, err)
		}
		return nil, err
	}

	result := s.validator.Validate(raw)
	s.logger.Info("analysis_service", "Chart analyzed", map[string]interface{}{
		"chart_id":   chart.Id,
		"prediction": result.Prediction,
		"state":      string(result.State),
		"neighbors":  len(neighbors),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})

	record := entity.AnalysisResult{
		Id:         uuid.New(),
		ChartId:    chart.Id,
		Prediction: result.Prediction,
		Session:    result.Session,
		Confidence: result.Confidence,
		Reasoning:  result.Reasoning,
		Score:      result.Score,
		State:      string(result.State),
		Degraded:   result.Degraded(),
		Raw:        result.Raw,
		CreatedAt:  time.Now(),
	}
	s.analysisRepo.Save(&record)

	if s.eventPublisher != nil {
		evt := events.NewChartAnalyzed(chart.Id.String(), record.Prediction, record.Confidence, record.Score, record.Degraded)
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("analysis_service", "Failed to publish CHART_ANALYZED event", map[string]interface{}{
				"chart_id": chart.Id, "error": err.Error(),
			})
		}
	}

	return &dto.AnalyzeChartResponse{
		Id:         record.Id,
		ChartId:    record.ChartId,
		Prediction: record.Prediction,
		Session:    record.Session,
		Confidence: record.Confidence,
		Reasoning:  record.Reasoning,
		Score:      record.Score,
		State:      record.State,
		Degraded:   record.Degraded,
		Neighbors:  neighborDTOs,
	}, nil
}

func (s *analysisService) Health(ctx context.Context) *dto.AnalysisHealthResponse {
	return &dto.AnalysisHealthResponse{
		IndexSize:       s.index.Size(),
		CachedArtifacts: s.chartRepo.Count(),
		VisionProvider:  s.visionName,
		PromptVersion:   s.promptVersion,
	}
}

// loadNeighbors resolves index matches into prompt neighbors, skipping the
// target itself and any neighbor whose image can no longer be read.
func (s *analysisService) loadNeighbors(ctx context.Context, selfId uuid.UUID, matches []similarity.Match, limit int) ([]prompt.Neighbor, []dto.NeighborResponse) {
	neighbors := make([]prompt.Neighbor, 0, limit)
	dtos := make([]dto.NeighborResponse, 0, limit)

	for _, match := range matches {
		if match.Record.ChartId == selfId {
			continue
		}
		if len(neighbors) == limit {
			break
		}
		chart, found := s.chartRepo.Get(match.Record.ChartId)
		if !found {
			continue
		}
		imageData, err := os.ReadFile(chart.ImagePath)
		if err != nil {
			s.logger.Warn("analysis_service", "Neighbor image unreadable, skipping", map[string]interface{}{
				"chart_id": chart.Id, "error": err.Error(),
			})
			continue
		}
		maps, err := s.mapGenerator.Generate(ctx, imageData)
		if err != nil {
			s.logger.Warn("analysis_service", "Neighbor maps unavailable, skipping", map[string]interface{}{
				"chart_id": chart.Id, "error": err.Error(),
			})
			continue
		}

		neighbors = append(neighbors, prompt.Neighbor{
			ChartImage: prompt.ChartImage{
				Original:     imageData,
				OriginalMIME: mimeFromPath(chart.ImagePath),
				Maps:         maps,
			},
			Filename:   chart.Filename,
			Instrument: chart.Instrument,
			Timeframe:  chart.Timeframe,
			Similarity: match.Similarity,
		})
		dtos = append(dtos, dto.NeighborResponse{
			ChartId:    chart.Id,
			Filename:   chart.Filename,
			Instrument: chart.Instrument,
			Timeframe:  chart.Timeframe,
			Score:      clampScore(match.Similarity),
		})
	}

	return neighbors, dtos
}

// clampScore maps raw cosine similarity onto the [0, 1] range exposed over
// the API. Negative correlation carries no extra signal for display.
func clampScore(similarity float64) float64 {
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}

func mimeFromPath(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/png"
}
