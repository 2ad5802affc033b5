package catalog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
)

type Handler struct {
	svc    *Service
	matrix auth.Matrix
}

func NewHandler(svc *Service, matrix auth.Matrix) *Handler {
	return &Handler{svc: svc, matrix: matrix}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalog/categories", h.ListCategories)
	api.GET("/catalog/items", h.ListItems)
	api.GET("/catalog/items/:id", h.GetItem)
	api.PATCH("/catalog/items/:id", h.UpdateItem)
}

func (h *Handler) ListCategories(c echo.Context) error {
	items, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListItems(c echo.Context) error {
	var categoryID *uuid.UUID
	if raw := c.QueryParam("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Respond(c, apperr.E(apperr.Validation, "invalid category_id"))
		}
		categoryID = &id
	}
	items, err := h.svc.ListItems(c.Request().Context(), categoryID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

type updateItemRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

func (h *Handler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceCatalog, auth.ActionUpdate); err != nil {
		return apperr.Respond(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	var req updateItemRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	item, err := h.svc.UpdateItem(ctx, id, req.Name, req.Description, req.Active)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, item)
}
