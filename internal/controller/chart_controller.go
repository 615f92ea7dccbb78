package controller

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chart-analysis-be/internal/dto"
	"chart-analysis-be/internal/pkg/serverutils"
	"chart-analysis-be/internal/service"
)

type IChartController interface {
	RegisterRoutes(r fiber.Router)
	Register(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	CreateBundle(ctx *fiber.Ctx) error
}

type chartController struct {
	chartService service.IChartService
}

func NewChartController(chartService service.IChartService) IChartController {
	return &chartController{
		chartService: chartService,
	}
}

func (c *chartController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chart/v1")
	h.Post("", c.Register)
	h.Post("bundle", c.CreateBundle)
	h.Get("", c.List)
	h.Get(":id", c.Show)
}

// Register accepts a multipart upload: the chart image under "image" plus
// "instrument" and "timeframe" form fields, with optional "session" and
// "bundle_id".
func (c *chartController) Register(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("image")
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Image file is required"))
	}

	req := dto.RegisterChartRequest{
		Instrument: ctx.FormValue("instrument"),
		Timeframe:  ctx.FormValue("timeframe"),
		Session:    ctx.FormValue("session"),
	}
	if raw := ctx.FormValue("bundle_id"); raw != "" {
		bundleId, err := uuid.Parse(raw)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid bundle ID"))
		}
		req.BundleId = &bundleId
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()
	imageData, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	res, err := c.chartService.Register(ctx.Context(), &req, fileHeader.Filename, imageData)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBundleNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		case errors.Is(err, service.ErrBundleInstrumentMismatch),
			errors.Is(err, service.ErrBundleDuplicateTimeframe):
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chart registered", res))
}

func (c *chartController) List(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Registered charts", c.chartService.List(ctx.Context())))
}

func (c *chartController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid chart ID"))
	}

	res, err := c.chartService.Show(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrChartNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Chart not found"))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chart details", res))
}

func (c *chartController) CreateBundle(ctx *fiber.Ctx) error {
	var req dto.CreateBundleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.chartService.CreateBundle(ctx.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChartNotFound):
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		case errors.Is(err, service.ErrBundleInstrumentMismatch),
			errors.Is(err, service.ErrBundleDuplicateTimeframe):
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Bundle created", res))
}
