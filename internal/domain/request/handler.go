package request

import (
	"net/http"
	"time"

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
	api.POST("/requests", h.CreateRequest)
	api.GET("/requests", h.ListRequests)
	api.GET("/requests/:id", h.GetRequest)
	api.GET("/requests/:id/logs", h.GetRequestLogs)
	api.PATCH("/requests/:id", h.UpdateRequest)
	api.POST("/requests/:id/assign", h.AssignCaregiver)
	api.POST("/requests/:id/reject", h.RejectByCaregiver)
	api.POST("/requests/:id/close", h.CloseRequest)
	api.POST("/requests/:id/upload-token", h.MintUploadToken)
	api.POST("/requests/:id/support", h.Escalate)
	api.POST("/requests/:id/support/resolve", h.Resolve)
}

func (h *Handler) actor(c echo.Context, guestPhone string) auth.Actor {
	if actor, ok := auth.ActorFromContext(c.Request().Context()); ok {
		return actor
	}
	return auth.Guest(guestPhone)
}

func (h *Handler) requireActor(c echo.Context) (auth.Actor, error) {
	actor, ok := auth.ActorFromContext(c.Request().Context())
	if !ok || actor.IsGuest() {
		return auth.Actor{}, apperr.E(apperr.Unauthenticated, "authentication required")
	}
	return actor, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.E(apperr.Validation, "invalid id")
	}
	return id, nil
}

// CreateRequest accepts intakes from guests and account holders alike.
func (h *Handler) CreateRequest(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	actor := h.actor(c, in.Phone)
	q, err := h.svc.Create(c.Request().Context(), actor, in)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, q)
}

func (h *Handler) ListRequests(c echo.Context) error {
	actor, err := h.requireActor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var f ListFilter
	if raw := c.QueryParam("status"); raw != "" {
		status := Status(raw)
		f.Status = &status
	}
	f.SupportOnly = c.QueryParam("support") == "true"
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRequest(c echo.Context) error {
	actor, err := h.requireActor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	q, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) GetRequestLogs(c echo.Context) error {
	actor, err := h.requireActor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	logs, err := h.svc.Logs(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *Handler) UpdateRequest(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceRequest, auth.ActionUpdate); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	q, err := h.svc.Update(ctx, actor, id, in)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

type assignRequest struct {
	CaregiverID uuid.UUID `json:"caregiver_id"`
}

func (h *Handler) AssignCaregiver(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceRequest, auth.ActionAssign); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil || req.CaregiverID == uuid.Nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "caregiver_id is required"))
	}
	q, err := h.svc.AssignCaregiver(ctx, actor, id, req.CaregiverID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) RejectByCaregiver(c echo.Context) error {
	actor, err := h.requireActor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	q, err := h.svc.RejectByCaregiver(c.Request().Context(), actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) CloseRequest(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceRequest, auth.ActionClose); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	q, err := h.svc.Close(ctx, actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

type uploadTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) MintUploadToken(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceRequest, auth.ActionMintToken); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	token, expires, err := h.svc.MintUploadToken(ctx, actor, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, uploadTokenResponse{Token: token, ExpiresAt: expires})
}

type escalateRequest struct {
	Type    SupportType `json:"type"`
	Note    *string     `json:"note"`
	Changes Patch       `json:"changes"`
}

func (h *Handler) Escalate(c echo.Context) error {
	actor, err := h.requireActor(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}

	ctx := c.Request().Context()
	var q *Request
	switch req.Type {
	case SupportCancel:
		q, err = h.svc.EscalateCancel(ctx, actor, id, req.Note)
	case SupportChange:
		q, err = h.svc.EscalateChange(ctx, actor, id, req.Changes, req.Note)
	case SupportOther:
		q, err = h.svc.EscalateOther(ctx, actor, id, req.Note)
	default:
		err = apperr.E(apperr.Validation, "type must be CANCEL, CHANGE, or OTHER")
	}
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

type resolveRequest struct {
	Type    SupportType `json:"type"`
	Approve bool        `json:"approve"`
	Changes Patch       `json:"changes"`
}

func (h *Handler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceRequest, auth.ActionResolve); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := parseID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}

	var q *Request
	switch req.Type {
	case SupportCancel:
		q, err = h.svc.ResolveCancel(ctx, actor, id, req.Approve)
	case SupportChange:
		q, err = h.svc.ResolveChange(ctx, actor, id, req.Approve, req.Changes)
	case SupportOther:
		q, err = h.svc.ResolveOther(ctx, actor, id)
	default:
		err = apperr.E(apperr.Validation, "type must be CANCEL, CHANGE, or OTHER")
	}
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, q)
}
