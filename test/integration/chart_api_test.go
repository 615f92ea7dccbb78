package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-analysis-be/internal/bootstrap"
	"chart-analysis-be/internal/config"
	"chart-analysis-be/internal/constant"
	"chart-analysis-be/internal/controller"
	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/internal/pkg/serverutils"
	"chart-analysis-be/internal/repository/memory"
	"chart-analysis-be/internal/server"
	"chart-analysis-be/internal/service"
	"chart-analysis-be/pkg/embedding"
	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/prompt"
	"chart-analysis-be/pkg/retry"
	"chart-analysis-be/pkg/similarity"
	"chart-analysis-be/pkg/vision"
	"chart-analysis-be/pkg/visual"
)

type fixedVisionProvider struct {
	reply string
}

func (f *fixedVisionProvider) Analyze(ctx context.Context, messages []vision.Message, opts ...vision.Option) (string, error) {
	return f.reply, nil
}

func chartPNG(t *testing.T, seed int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 48, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 48; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*seed + y) % 256)})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartChart(t *testing.T, data []byte, instrument, timeframe string) (*bytes.Buffer, string) {
	t.Helper()
	return multipartChartFields(t, data, map[string]string{
		"instrument": instrument,
		"timeframe":  timeframe,
	})
}

func multipartChartFields(t *testing.T, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", "chart.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestChartAPIFlow(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Port = "0"
	cfg.App.CorsAllowedOrigins = "http://localhost"
	cfg.App.UploadDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	log := logger.NewNopLogger()
	store := fingerprint.NewMemoryStore()
	chartRepo := memory.NewChartRepository()
	bundleRepo := memory.NewBundleRepository()
	analysisRepo := memory.NewAnalysisRepository()
	mapGen := visual.NewGenerator(store, log)
	embedGen := embedding.NewGenerator(embedding.NewSignatureProvider(), store, log, retry.Config{})
	index := similarity.NewIndex(log)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := service.NewPublisherService(pubSub, "EMBED_CHART")
	consumer := service.NewConsumerService(pubSub, "EMBED_CHART", chartRepo, embedGen, index, log)
	require.NoError(t, consumer.Consume(context.Background()))

	chartSvc := service.NewChartService(chartRepo, bundleRepo, mapGen, publisher, nil, cfg.App.UploadDir, log)
	analysisSvc := service.NewAnalysisService(service.AnalysisDeps{
		ChartRepo:          chartRepo,
		BundleRepo:         bundleRepo,
		AnalysisRepo:       analysisRepo,
		MapGenerator:       mapGen,
		EmbeddingGenerator: embedGen,
		Index:              index,
		PromptBuilder:      prompt.NewUnifiedBuilder(constant.DefaultAnalysisPrompt),
		VisionProvider:     &fixedVisionProvider{reply: `{"prediction": "Sideways", "session": "NY", "confidence": "Medium", "reasoning": "Range-bound structure."}`},
		VisionName:         "fixed",
		PromptVersion:      constant.DefaultAnalysisPromptVersion,
		DefaultTopK:        3,
		Logger:             log,
	})

	container := &bootstrap.Container{
		ChartController:    controller.NewChartController(chartSvc),
		AnalysisController: controller.NewAnalysisController(analysisSvc, chartSvc),
		ConsumerService:    consumer,
		Logger:             log,
	}
	app := server.New(cfg, container).GetApp()

	// 1. Register a historical chart, then the target
	var targetRes serverutils.BaseResponse[dto.RegisterChartResponse]
	for i, seed := range []int{5, 9} {
		body, contentType := multipartChart(t, chartPNG(t, seed), "EURUSD", []string{"4H", "1H"}[i])
		req := httptest.NewRequest(http.MethodPost, "/api/chart/v1", body)
		req.Header.Set("Content-Type", contentType)
		resp, err := app.Test(req, 10000)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &targetRes))
		assert.True(t, targetRes.Success)
		assert.Len(t, targetRes.Data.Fingerprint, fingerprint.HexLength)
	}

	// wait for the background consumer to index both charts
	require.Eventually(t, func() bool {
		return index.Size() == 2
	}, 5*time.Second, 10*time.Millisecond)

	// 2. Show the registered chart
	showReq := httptest.NewRequest(http.MethodGet, "/api/chart/v1/"+targetRes.Data.Id.String(), nil)
	showResp, err := app.Test(showReq, 10000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, showResp.StatusCode)

	var showRes serverutils.BaseResponse[dto.ShowChartResponse]
	raw, err := io.ReadAll(showResp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &showRes))
	assert.Equal(t, "EURUSD", showRes.Data.Instrument)
	assert.True(t, showRes.Data.Embedded)

	// 3. Analyze the target
	analyzeBody, err := json.Marshal(dto.AnalyzeChartRequest{ChartId: targetRes.Data.Id})
	require.NoError(t, err)
	analyzeReq := httptest.NewRequest(http.MethodPost, "/api/analysis/v1", bytes.NewReader(analyzeBody))
	analyzeReq.Header.Set("Content-Type", "application/json")
	analyzeResp, err := app.Test(analyzeReq, 30000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, analyzeResp.StatusCode)

	var analyzeRes serverutils.BaseResponse[dto.AnalyzeChartResponse]
	raw, err = io.ReadAll(analyzeResp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &analyzeRes))
	assert.Equal(t, "Sideways", analyzeRes.Data.Prediction)
	assert.Equal(t, "NY", analyzeRes.Data.Session)
	assert.InDelta(t, 0.7, analyzeRes.Data.Score, 1e-9)
	assert.Len(t, analyzeRes.Data.Neighbors, 1)

	// 4. Health reflects the indexed corpus
	healthResp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/analysis/v1/health", nil), 10000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)

	var healthRes serverutils.BaseResponse[dto.AnalysisHealthResponse]
	raw, err = io.ReadAll(healthResp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &healthRes))
	assert.Equal(t, 2, healthRes.Data.IndexSize)
	assert.Equal(t, "fixed", healthRes.Data.VisionProvider)
}

func TestAnalysisInlineRegistration(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Port = "0"
	cfg.App.CorsAllowedOrigins = "http://localhost"
	cfg.App.UploadDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	log := logger.NewNopLogger()
	store := fingerprint.NewMemoryStore()
	chartRepo := memory.NewChartRepository()
	bundleRepo := memory.NewBundleRepository()
	analysisRepo := memory.NewAnalysisRepository()
	mapGen := visual.NewGenerator(store, log)
	embedGen := embedding.NewGenerator(embedding.NewSignatureProvider(), store, log, retry.Config{})
	index := similarity.NewIndex(log)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := service.NewPublisherService(pubSub, "EMBED_CHART")
	consumer := service.NewConsumerService(pubSub, "EMBED_CHART", chartRepo, embedGen, index, log)
	require.NoError(t, consumer.Consume(context.Background()))

	chartSvc := service.NewChartService(chartRepo, bundleRepo, mapGen, publisher, nil, cfg.App.UploadDir, log)
	analysisSvc := service.NewAnalysisService(service.AnalysisDeps{
		ChartRepo:          chartRepo,
		BundleRepo:         bundleRepo,
		AnalysisRepo:       analysisRepo,
		MapGenerator:       mapGen,
		EmbeddingGenerator: embedGen,
		Index:              index,
		PromptBuilder:      prompt.NewUnifiedBuilder(constant.DefaultAnalysisPrompt),
		VisionProvider:     &fixedVisionProvider{reply: `{"prediction": "Up", "session": "London", "confidence": "High", "reasoning": "Momentum continuation."}`},
		VisionName:         "fixed",
		PromptVersion:      constant.DefaultAnalysisPromptVersion,
		DefaultTopK:        3,
		Logger:             log,
	})

	container := &bootstrap.Container{
		ChartController:    controller.NewChartController(chartSvc),
		AnalysisController: controller.NewAnalysisController(analysisSvc, chartSvc),
		ConsumerService:    consumer,
		Logger:             log,
	}
	app := server.New(cfg, container).GetApp()

	// seed one historical chart and bundle it
	body, contentType := multipartChart(t, chartPNG(t, 3), "EURUSD", "1H")
	req := httptest.NewRequest(http.MethodPost, "/api/chart/v1", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var regRes serverutils.BaseResponse[dto.RegisterChartResponse]
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &regRes))

	require.Eventually(t, func() bool {
		return index.Size() == 1
	}, 5*time.Second, 10*time.Millisecond)

	bundleBody, err := json.Marshal(dto.CreateBundleRequest{
		Instrument: "EURUSD",
		ChartIds:   []uuid.UUID{regRes.Data.Id},
	})
	require.NoError(t, err)
	bundleReq := httptest.NewRequest(http.MethodPost, "/api/chart/v1/bundle", bytes.NewReader(bundleBody))
	bundleReq.Header.Set("Content-Type", "application/json")
	bundleResp, err := app.Test(bundleReq, 10000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, bundleResp.StatusCode)

	var bundleRes serverutils.BaseResponse[dto.CreateBundleResponse]
	raw, err = io.ReadAll(bundleResp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &bundleRes))

	// a malformed bundle id on the inline path is rejected up front
	body, contentType = multipartChartFields(t, chartPNG(t, 8), map[string]string{
		"instrument": "EURUSD",
		"timeframe":  "4H",
		"bundle_id":  "not-a-uuid",
	})
	req = httptest.NewRequest(http.MethodPost, "/api/analysis/v1", body)
	req.Header.Set("Content-Type", contentType)
	resp, err = app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// the analyze upload joins the bundle and carries its session label
	body, contentType = multipartChartFields(t, chartPNG(t, 8), map[string]string{
		"instrument": "EURUSD",
		"timeframe":  "4H",
		"session":    "London",
		"bundle_id":  bundleRes.Data.Id.String(),
	})
	req = httptest.NewRequest(http.MethodPost, "/api/analysis/v1", body)
	req.Header.Set("Content-Type", contentType)
	resp, err = app.Test(req, 30000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analyzeRes serverutils.BaseResponse[dto.AnalyzeChartResponse]
	raw, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &analyzeRes))
	assert.Equal(t, "Up", analyzeRes.Data.Prediction)

	showReq := httptest.NewRequest(http.MethodGet, "/api/chart/v1/"+analyzeRes.Data.ChartId.String(), nil)
	showResp, err := app.Test(showReq, 10000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, showResp.StatusCode)

	var showRes serverutils.BaseResponse[dto.ShowChartResponse]
	raw, err = io.ReadAll(showResp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &showRes))
	require.NotNil(t, showRes.Data.BundleId)
	assert.Equal(t, bundleRes.Data.Id, *showRes.Data.BundleId)
	assert.Equal(t, "London", showRes.Data.Session)
}

func TestChartAPIRejectsMalformedUpload(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Port = "0"
	cfg.App.CorsAllowedOrigins = "http://localhost"
	cfg.App.UploadDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()

	log := logger.NewNopLogger()
	store := fingerprint.NewMemoryStore()
	chartRepo := memory.NewChartRepository()
	bundleRepo := memory.NewBundleRepository()
	mapGen := visual.NewGenerator(store, log)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := service.NewPublisherService(pubSub, "EMBED_CHART")
	chartSvc := service.NewChartService(chartRepo, bundleRepo, mapGen, publisher, nil, cfg.App.UploadDir, log)

	container := &bootstrap.Container{
		ChartController: controller.NewChartController(chartSvc),
		AnalysisController: controller.NewAnalysisController(service.NewAnalysisService(service.AnalysisDeps{
			ChartRepo: chartRepo, Logger: log,
		}), chartSvc),
		Logger: log,
	}
	app := server.New(cfg, container).GetApp()

	body, contentType := multipartChart(t, []byte("not an image at all"), "EURUSD", "1H")
	req := httptest.NewRequest(http.MethodPost, "/api/chart/v1", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, store.ItemCount())
}
