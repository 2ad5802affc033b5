package document

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc    *Service
	matrix auth.Matrix
}

func NewHandler(svc *Service, matrix auth.Matrix) *Handler {
	return &Handler{svc: svc, matrix: matrix}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/documents", h.SubmitDocument)
	api.GET("/documents/pending", h.ListPending)
	api.GET("/documents/:id", h.GetDocument)
	api.POST("/documents/:id/status", h.SetStatus)
	api.GET("/patients/:id/documents", h.ListByPatient)
}

// SubmitDocument accepts uploads from link holders and token bearers;
// the token path works for guests without any account.
func (h *Handler) SubmitDocument(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok {
		actor = auth.Actor{}
	}
	if in.UploadToken == nil && actor.IsGuest() {
		return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "upload token required for guest uploads"))
	}
	d, err := h.svc.Submit(c.Request().Context(), actor, in)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// GetDocument serves staff and requesters alike; the service decides
// per document who may see it.
func (h *Handler) GetDocument(c echo.Context) error {
	ctx := c.Request().Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "authentication required"))
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	d, err := h.svc.Get(ctx, actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

type setStatusRequest struct {
	Status Status  `json:"status"`
	Reason *string `json:"reason"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceDocument, auth.ActionVerify); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	d, err := h.svc.SetStatus(ctx, actor.UserID, id, req.Status, req.Reason)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	ctx := c.Request().Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.IsGuest() {
		return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "authentication required"))
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	docs, err := h.svc.ListByPatient(ctx, actor, patientID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (h *Handler) ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceDocument, auth.ActionReadAll); err != nil {
		return apperr.Respond(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPending(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
