package controller

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/pkg/serverutils"
	"chart-analysis-be/internal/service"
)

type IAnalysisController interface {
	RegisterRoutes(r fiber.Router)
	Analyze(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type analysisController struct {
	analysisService service.IAnalysisService
	chartService    service.IChartService
}

func NewAnalysisController(analysisService service.IAnalysisService, chartService service.IChartService) IAnalysisController {
	return &analysisController{
		analysisService: analysisService,
		chartService:    chartService,
	}
}

func (c *analysisController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/analysis/v1")
	h.Post("", c.Analyze)
	h.Get("health", c.Health)
}

// Analyze accepts either JSON with a registered chart id, or a multipart
// upload (image + instrument/timeframe, optional session and bundle_id)
// which registers the chart inline before running the pipeline.
func (c *analysisController) Analyze(ctx *fiber.Ctx) error {
	var req dto.AnalyzeChartRequest

	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		registered, err := c.registerUpload(ctx)
		if err != nil {
			return err
		}
		if registered == nil {
			return nil // error response already written
		}
		req.ChartId = registered.Id
		req.InjectText = ctx.FormValue("inject_text")
		if raw := ctx.FormValue("top_k"); raw != "" {
			k, err := strconv.Atoi(raw)
			if err != nil {
				return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid top_k"))
			}
			req.TopK = k
		}
	} else if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.analysisService.Analyze(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrChartNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Chart not found"))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chart analysis", res))
}

// registerUpload registers the uploaded chart and returns its record. A nil
// result with nil error means a 4xx response was already written.
func (c *analysisController) registerUpload(ctx *fiber.Ctx) (*dto.RegisterChartResponse, error) {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return nil, ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Image file is required"))
	}

	regReq := dto.RegisterChartRequest{
		Instrument: ctx.FormValue("instrument"),
		Timeframe:  ctx.FormValue("timeframe"),
		Session:    ctx.FormValue("session"),
	}
	if raw := ctx.FormValue("bundle_id"); raw != "" {
		bundleId, err := uuid.Parse(raw)
		if err != nil {
			return nil, ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid bundle ID"))
		}
		regReq.BundleId = &bundleId
	}
	if err := serverutils.ValidateRequest(regReq); err != nil {
		return nil, ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	imageData, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	res, err := c.chartService.Register(ctx.Context(), &regReq, fileHeader.Filename, imageData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBundleNotFound):
			return nil, ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		case errors.Is(err, service.ErrBundleInstrumentMismatch),
			errors.Is(err, service.ErrBundleDuplicateTimeframe):
			return nil, ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return nil, err
	}
	return res, nil
}

func (c *analysisController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Analysis health", c.analysisService.Health(ctx.Context())))
}
