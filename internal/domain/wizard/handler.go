package wizard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/domain/member"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
)

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/wizard/sessions", auth.RequireRole(auth.RoleCoordinator))
	g.POST("", h.StartSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.AbandonSession)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/category", h.SelectCategory)
	g.POST("/:id/sections/:section", h.SubmitSection)
	g.POST("/:id/back", h.Back)
}

// sessionView is the response shape of every session route.
type sessionView struct {
	*Session
	SectionName string `json:"section_name"`
}

func view(s *Session) sessionView {
	return sessionView{Session: s, SectionName: s.State.Section.String()}
}

type startRequest struct {
	MedicaidID  string `json:"medicaid_id" form:"medicaid_id"`
	ServiceDate string `json:"service_date" form:"service_date"`
}

func parseServiceDate(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	d, ok := fieldmap.ParseDate(v)
	if !ok {
		return time.Time{}, FieldErrors{"service_date": "must be MM/DD/YYYY or YYYY-MM-DD"}
	}
	return d, nil
}

// StartSession opens a session for the member bound to the caller's token.
// Admin tokens are not bound and name the member in the body.
func (h *Handler) StartSession(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()

	medicaidID := auth.MedicaidIDFromContext(ctx)
	if medicaidID == "" {
		medicaidID = req.MedicaidID
	} else if req.MedicaidID != "" && member.NormalizeMedicaidID(req.MedicaidID) != medicaidID {
		return echo.NewHTTPError(http.StatusForbidden, "member is not bound to this session")
	}
	if ok, reason := member.ValidateMedicaidID(medicaidID); !ok {
		return echo.NewHTTPError(http.StatusBadRequest, reason)
	}

	day, err := parseServiceDate(req.ServiceDate)
	if err != nil {
		return h.wizardError(err)
	}
	sess, err := h.svc.Start(ctx, auth.UserIDFromContext(ctx), medicaidID, day)
	if err != nil {
		return h.wizardError(err)
	}
	return c.JSON(http.StatusCreated, view(sess))
}

func (h *Handler) GetSession(c echo.Context) error {
	sess, err := h.svc.Get(auth.UserIDFromContext(c.Request().Context()), c.Param("id"))
	if err != nil {
		return h.wizardError(err)
	}
	return c.JSON(http.StatusOK, view(sess))
}

func (h *Handler) AbandonSession(c echo.Context) error {
	if err := h.svc.Abandon(auth.UserIDFromContext(c.Request().Context()), c.Param("id")); err != nil {
		return h.wizardError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type confirmRequest struct {
	Continue    bool   `json:"continue" form:"continue"`
	ServiceDate string `json:"service_date" form:"service_date"`
}

func (h *Handler) Confirm(c echo.Context) error {
	var req confirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	day, err := parseServiceDate(req.ServiceDate)
	if err != nil {
		return h.wizardError(err)
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Confirm(ctx, auth.UserIDFromContext(ctx), c.Param("id"), req.Continue, day)
	if err != nil {
		return h.wizardError(err)
	}
	return c.JSON(http.StatusOK, view(sess))
}

type categoryRequest struct {
	NoteCategory string `json:"note_category" form:"note_category"`
}

func (h *Handler) SelectCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.SelectCategory(auth.UserIDFromContext(c.Request().Context()), c.Param("id"), req.NoteCategory)
	if err != nil {
		return h.wizardError(err)
	}
	return c.JSON(http.StatusOK, view(sess))
}

func (h *Handler) Back(c echo.Context) error {
	sess, err := h.svc.Back(auth.UserIDFromContext(c.Request().Context()), c.Param("id"))
	if err != nil {
		return h.wizardError(err)
	}
	return c.JSON(http.StatusOK, view(sess))
}

// parseSection accepts the section number or its name.
func parseSection(v string) (Section, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		s := Section(n)
		return s, s.Valid()
	}
	for s, name := range sectionNames {
		if name == v {
			return s, true
		}
	}
	return 0, false
}

// decodePayload reads a section body. Form posts are decoded with the
// schema decoder, anything else is bound as JSON.
func decodePayload(c echo.Context, p Payload) error {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEApplicationForm) {
		form, err := c.FormParams()
		if err != nil {
			return err
		}
		return formDecoder.Decode(p, form)
	}
	return (&echo.DefaultBinder{}).BindBody(c, p)
}

func (h *Handler) SubmitSection(c echo.Context) error {
	section, ok := parseSection(c.Param("section"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown section")
	}
	p, err := NewPayload(section)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := decodePayload(c, p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid section payload")
	}

	ctx := c.Request().Context()
	sess, entry, err := h.svc.Submit(ctx, auth.UserIDFromContext(ctx), c.Param("id"), section, p)
	if err != nil {
		return h.wizardError(err)
	}
	if entry != nil {
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"status": "recorded",
			"entry":  entry,
		})
	}
	return c.JSON(http.StatusOK, view(sess))
}

type fieldErrorBody struct {
	Message string      `json:"message"`
	Fields  FieldErrors `json:"fields"`
}

func (h *Handler) wizardError(err error) error {
	var fe FieldErrors
	switch {
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fieldErrorBody{Message: "please correct the highlighted fields", Fields: fe})
	case errors.Is(err, ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, ErrSessionNotFound.Error())
	case errors.Is(err, ErrSectionMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrCategoryLocked), errors.Is(err, ErrDateLocked), errors.Is(err, ErrAwaitingConfirmation):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSubmitInProgress):
		return echo.NewHTTPError(http.StatusConflict, ErrSubmitInProgress.Error())
	case errors.Is(err, ErrNoPrevious):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrSaveFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrSaveFailed.Error())
	case errors.Is(err, member.ErrMemberNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Medicaid ID not found in the member roster")
	case errors.Is(err, member.ErrRosterUnavailable):
		h.logger.Error().Err(err).Msg("roster unavailable")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "member roster is unavailable, try again later")
	}
	h.logger.Error().Err(err).Msg("wizard request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "wizard request failed")
}
