package member

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
)

type Handler struct {
	dir    *Directory
	creds  *CredentialStore
	issuer *auth.Issuer
	logger zerolog.Logger
}

func NewHandler(dir *Directory, creds *CredentialStore, issuer *auth.Issuer, logger zerolog.Logger) *Handler {
	return &Handler{dir: dir, creds: creds, issuer: issuer, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)
	api.POST("/auth/admin/login", h.AdminLogin)

	read := api.Group("", auth.RequireRole(auth.RoleCoordinator))
	read.GET("/members/:medicaid_id", h.GetMember)
}

type loginRequest struct {
	CoordinatorEmail string `json:"coordinator_email" form:"coordinator_email"`
	MedicaidID       string `json:"medicaid_id" form:"medicaid_id"`
	Password         string `json:"password" form:"password"`
}

type loginResponse struct {
	*auth.Token
	Member *Member `json:"member"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m, err := h.dir.Authenticate(c.Request().Context(), req.CoordinatorEmail, req.MedicaidID, req.Password)
	if err != nil {
		return h.lookupError(err)
	}

	name := h.creds.CoordinatorName(req.CoordinatorEmail)
	if name == "" {
		name = m.CoordinatorName
	}
	tok, err := h.issuer.Issue(m.CoordinatorEmail, name, []string{auth.RoleCoordinator}, m.MedicaidID)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue coordinator token")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: tok, Member: m})
}

type adminLoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

func (h *Handler) AdminLogin(c echo.Context) error {
	var req adminLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "username and password are required")
	}

	admin, ok := h.creds.VerifyAdmin(req.Username, req.Password)
	if !ok {
		h.logger.Warn().Str("username", req.Username).Msg("admin login failed")
		return echo.NewHTTPError(http.StatusUnauthorized, ErrAuthFailed.Error())
	}
	tok, err := h.issuer.Issue(admin.Username, admin.Name, []string{auth.RoleAdmin}, "")
	if err != nil {
		h.logger.Error().Err(err).Msg("issue admin token")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not issue token")
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) GetMember(c echo.Context) error {
	ctx := c.Request().Context()
	id := NormalizeMedicaidID(c.Param("medicaid_id"))

	roles := auth.RolesFromContext(ctx)
	if !auth.HasRole(roles, auth.RoleAdmin) && auth.MedicaidIDFromContext(ctx) != id {
		return echo.NewHTTPError(http.StatusForbidden, "member is not bound to this session")
	}

	m, err := h.dir.FindMember(ctx, id)
	if err != nil {
		return h.lookupError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) lookupError(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Reason)
	case errors.Is(err, ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Medicaid ID not found in the member roster")
	case errors.Is(err, ErrAuthFailed):
		return echo.NewHTTPError(http.StatusUnauthorized, ErrAuthFailed.Error())
	case errors.Is(err, ErrRosterUnavailable):
		h.logger.Error().Err(err).Msg("roster unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "member roster is unavailable, try again later")
	}
	h.logger.Error().Err(err).Msg("member lookup failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "member lookup failed")
}
