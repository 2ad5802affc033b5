package identity

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/pkg/pagination"
)

type Handler struct {
	svc    *Resolver
	matrix auth.Matrix
}

func NewHandler(svc *Resolver, matrix auth.Matrix) *Handler {
	return &Handler{svc: svc, matrix: matrix}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.RegisterPatient)
	api.GET("/patients/search", h.SearchPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PATCH("/patients/:id", h.UpdatePatient)
	api.POST("/patients/:id/verification", h.SetVerificationStatus)
	api.GET("/patients/:id/requesters", h.ListRequesters)
	api.PATCH("/patients/:id/requesters/:linkId", h.SetLinkStanding)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionReadAll); err != nil {
		return apperr.Respond(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type registerPatientRequest struct {
	Name         string `json:"name"`
	NationalCode string `json:"national_code"`
}

// RegisterPatient admits a patient directly, outside request intake.
// Open to any authenticated account; the caller becomes a requester link.
func (h *Handler) RegisterPatient(c echo.Context) error {
	ctx := c.Request().Context()
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.IsGuest() {
		return apperr.Respond(c, apperr.E(apperr.Unauthenticated, "authentication required"))
	}
	var req registerPatientRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	p, err := h.svc.RegisterPatient(ctx, actor.UserID, actor.Phone, req.Name, req.NationalCode)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionSearch); err != nil {
		return apperr.Respond(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchByNationalCode(ctx, c.QueryParam("national_code"), pg.Limit, pg.Offset)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionReadAll); err != nil {
		return apperr.Respond(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	p, err := h.svc.GetPatient(ctx, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionUpdate); err != nil {
		return apperr.Respond(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	var patch PatientPatch
	if err := c.Bind(&patch); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	p, err := h.svc.UpdatePatient(ctx, id, patch)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type verificationRequest struct {
	Status VerificationStatus `json:"status"`
}

func (h *Handler) SetVerificationStatus(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionVerify); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	var req verificationRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	p, err := h.svc.SetVerificationStatus(ctx, id, actor.UserID, req.Status)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) SetLinkStanding(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionUpdate); err != nil {
		return apperr.Respond(c, err)
	}
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	linkID, err := uuid.Parse(c.Param("linkId"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid link id"))
	}
	var patch LinkStandingPatch
	if err := c.Bind(&patch); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	l, err := h.svc.SetLinkStanding(ctx, patientID, linkID, patch)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListRequesters(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourcePatient, auth.ActionReadAll); err != nil {
		return apperr.Respond(c, err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid id"))
	}
	links, err := h.svc.ListRequesterLinks(ctx, id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, links)
}
