package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/influencerlab/studio/internal/core/ports"
)

type CharacterHandler struct {
	service ports.CharacterService
}

func NewCharacterHandler(service ports.CharacterService) *CharacterHandler {
	return &CharacterHandler{service: service}
}

// Create stores a new character for the caller.
//
// @Summary      Create a character
// @Tags         characters
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createCharacterRequest  true  "Character attributes"
// @Success      201   {object}  domain.Character
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /v1/characters [post]
func (h *CharacterHandler) Create(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	var req createCharacterRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ch, err := h.service.Create(c.Request().Context(), toCharacterInput(req, uid))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ch)
}

// List returns the caller's characters.
//
// @Summary      List characters
// @Tags         characters
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Character
// @Failure      401  {object}  errorResponse
// @Router       /v1/characters [get]
func (h *CharacterHandler) List(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	items, err := h.service.List(c.Request().Context(), uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one of the caller's characters.
//
// @Summary      Get a character
// @Tags         characters
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Character ID"
// @Success      200  {object}  domain.Character
// @Failure      404  {object}  errorResponse
// @Router       /v1/characters/{id} [get]
func (h *CharacterHandler) Get(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	ch, err := h.service.Get(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ch)
}

// Delete removes one of the caller's characters. Past generations keep the
// dangling reference.
//
// @Summary      Delete a character
// @Tags         characters
// @Security     BearerAuth
// @Param        id   path  string  true  "Character ID"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/characters/{id} [delete]
func (h *CharacterHandler) Delete(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
