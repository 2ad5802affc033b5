package user

import (
	"net/http"

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
	api.POST("/auth/login", h.Login)
	api.GET("/users", h.ListUsers)
	api.POST("/users", h.CreateUser)
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	u, token, err := h.svc.Authenticate(c.Request().Context(), req.Phone, req.Password)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: u})
}

type createUserRequest struct {
	Phone    string   `json:"phone"`
	Name     *string  `json:"name"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceUser, auth.ActionCreate); err != nil {
		return apperr.Respond(c, err)
	}
	actor, _ := auth.ActorFromContext(ctx)

	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Respond(c, apperr.E(apperr.Validation, "invalid body"))
	}
	roles := make([]auth.Role, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, auth.Role(r))
	}
	u, err := h.svc.Create(ctx, actor, CreateInput{
		Phone:    req.Phone,
		Name:     req.Name,
		Password: req.Password,
		Roles:    roles,
	})
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.matrix.Authorize(ctx, auth.ResourceUser, auth.ActionRead); err != nil {
		return apperr.Respond(c, err)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
