package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// GenerationHandler handles HTTP requests for generation operations.
type GenerationHandler struct {
	service ports.GenerationService
}

func NewGenerationHandler(service ports.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: service}
}

// Create submits a generation whose type is given in the body.
//
// @Summary      Submit a generation
// @Tags         generations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string           false  "Idempotency key to prevent duplicate charges"
// @Param        body             body      generateRequest  true   "Generation request"
// @Success      201              {object}  generateResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      402              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Failure      423              {object}  errorResponse
// @Router       /v1/generations [post]
func (h *GenerationHandler) Create(c echo.Context) error {
	return h.submit(c, "")
}

// CreateImage submits an image generation.
//
// @Summary      Generate an image
// @Tags         generations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string           false  "Idempotency key to prevent duplicate charges"
// @Param        body             body      generateRequest  true   "Image request"
// @Success      201              {object}  generateResponse
// @Failure      400              {object}  errorResponse
// @Failure      402              {object}  errorResponse
// @Router       /v1/generations/image [post]
func (h *GenerationHandler) CreateImage(c echo.Context) error {
	return h.submit(c, domain.GenerationImage)
}

// CreateVideo submits an image-to-video generation.
//
// @Summary      Generate a video
// @Tags         generations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string           false  "Idempotency key to prevent duplicate charges"
// @Param        body             body      generateRequest  true   "Video request"
// @Success      201              {object}  generateResponse
// @Failure      400              {object}  errorResponse
// @Failure      402              {object}  errorResponse
// @Router       /v1/generations/video [post]
func (h *GenerationHandler) CreateVideo(c echo.Context) error {
	return h.submit(c, domain.GenerationVideo)
}

func (h *GenerationHandler) submit(c echo.Context, forced domain.GenerationType) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req generateRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if forced != "" {
		req.Type = string(forced)
	}

	result, err := h.service.Submit(c.Request().Context(), uid,
		toGenerateInput(req, c.Request().Header.Get("Idempotency-Key")))
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, toGenerateResponse(result))
}

// Get returns a single generation owned by the caller.
//
// @Summary      Get a generation
// @Tags         generations
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Generation ID"
// @Success      200  {object}  generationResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/generations/{id} [get]
func (h *GenerationHandler) Get(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	view, err := h.service.Get(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toGenerationResponse(*view))
}

// List returns the caller's generations, newest first.
//
// @Summary      List generations
// @Tags         generations
// @Produce      json
// @Security     BearerAuth
// @Param        type    query     string  false  "image or video"
// @Param        status  query     string  false  "pending, processing, completed or failed"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Page size (default 20, max 100)"
// @Success      200     {object}  listGenerationsResponse
// @Failure      400     {object}  errorResponse
// @Failure      401     {object}  errorResponse
// @Router       /v1/generations [get]
func (h *GenerationHandler) List(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	page, limit, err := pageParams(c)
	if err != nil {
		return err
	}

	result, err := h.service.List(c.Request().Context(), ports.GenerationFilter{
		UserID: uid,
		Type:   domain.GenerationType(c.QueryParam("type")),
		Status: domain.GenerationStatus(c.QueryParam("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListGenerationsResponse(result))
}

// Dashboard returns the caller's balance, counts and recent generations.
//
// @Summary      Dashboard summary
// @Tags         generations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/dashboard [get]
func (h *GenerationHandler) Dashboard(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	d, err := h.service.Dashboard(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDashboardResponse(d))
}

// pageParams reads page and limit; the service applies defaults and caps.
func pageParams(c echo.Context) (page, limit int, err error) {
	if err := echo.QueryParamsBinder(c).
		Int("page", &page).
		Int("limit", &limit).
		BindError(); err != nil {
		return 0, 0, fmt.Errorf("%w: page and limit must be integers", domain.ErrInvalidRequest)
	}
	return page, limit, nil
}
