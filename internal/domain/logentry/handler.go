package logentry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/schema"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/fieldmap"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/export"
	"github.com/shanthivalli/tcm-claims-focus/pkg/pagination"
)

// defaultListWindow is how far back the entry list reaches when no date
// range is given.
const defaultListWindow = 30

var queryDecoder = func() *schema.Decoder {
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
	admin := api.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	admin.GET("/dashboard", h.Dashboard)

	admin.GET("/entries", h.ListEntries)
	admin.GET("/entries/export.xlsx", h.ExportEntries)
	admin.GET("/entries/:index", h.GetEntry)
	admin.PUT("/entries/:index", h.ReplaceEntry)
	admin.GET("/entries/:index/pdf", h.EntryPDF)

	admin.GET("/claims", h.ListClaims)
	admin.POST("/claims/submit", h.SubmitClaims)
	admin.GET("/claims/export.xlsx", h.ExportClaims)

	admin.GET("/payroll", h.Payroll)
	admin.GET("/payroll/export.xlsx", h.ExportPayroll)
}

// filterQuery is the query-string form of a Filter.
type filterQuery struct {
	MedicaidID       string `schema:"medicaid_id"`
	NoteCategory     string `schema:"note_category"`
	CoordinatorEmail string `schema:"coordinator_email"`
	From             string `schema:"from"`
	To               string `schema:"to"`
	ClaimStatus      string `schema:"claim_status"`
	Layout           string `schema:"layout"`
}

func parseDay(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, ok := fieldmap.ParseDate(v)
	if !ok {
		return nil, fmt.Errorf("invalid %s date: %s", name, v)
	}
	return &d, nil
}

// parseFilter decodes the filter parameters. With defaultWindow set and no
// dates given, the range covers the last 30 days.
func (h *Handler) parseFilter(c echo.Context, defaultWindow bool) (Filter, filterQuery, error) {
	var q filterQuery
	if err := queryDecoder.Decode(&q, c.QueryParams()); err != nil {
		return Filter{}, q, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	from, err := parseDay("from", q.From)
	if err != nil {
		return Filter{}, q, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	to, err := parseDay("to", q.To)
	if err != nil {
		return Filter{}, q, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if defaultWindow && from == nil && to == nil {
		today := truncateDay(h.svc.now())
		start := today.AddDate(0, 0, -defaultListWindow)
		from, to = &start, &today
	}
	f := Filter{
		MedicaidID:       q.MedicaidID,
		CoordinatorEmail: q.CoordinatorEmail,
		From:             from,
		To:               to,
		ClaimStatus:      q.ClaimStatus,
	}
	if q.NoteCategory != "" {
		f.NoteCategory = fieldmap.CanonicalCategory(q.NoteCategory)
	}
	return f, q, nil
}

func parseIndex(c echo.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid index")
	}
	return idx, nil
}

func (h *Handler) storeError(err error, action string) error {
	switch {
	case IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "log entry not found")
	}
	h.logger.Error().Err(err).Str("action", action).Msg("record store failure")
	if action == "read" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "record store unavailable, please retry")
	}
	return echo.NewHTTPError(http.StatusServiceUnavailable, "save failed, please retry")
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return h.storeError(err, "read")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListEntries(c echo.Context) error {
	f, _, err := h.parseFilter(c, true)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return h.storeError(err, "read")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

func (h *Handler) GetEntry(c echo.Context) error {
	idx, err := parseIndex(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), idx)
	if err != nil {
		return h.storeError(err, "read")
	}
	return c.JSON(http.StatusOK, &IndexedEntry{Index: idx, LogEntry: e})
}

func (h *Handler) ReplaceEntry(c echo.Context) error {
	idx, err := parseIndex(c)
	if err != nil {
		return err
	}
	var raw map[string]any
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	e, err := FromMap(fieldmap.Normalize(raw))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.Replace(c.Request().Context(), idx, e, actor); err != nil {
		return h.storeError(err, "write")
	}
	return c.JSON(http.StatusOK, &IndexedEntry{Index: idx, LogEntry: e})
}

func (h *Handler) EntryPDF(c echo.Context) error {
	idx, err := parseIndex(c)
	if err != nil {
		return err
	}
	e, err := h.svc.Get(c.Request().Context(), idx)
	if err != nil {
		return h.storeError(err, "read")
	}
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, Document(idx, e)); err != nil {
		h.logger.Error().Err(err).Int("index", idx).Msg("render pdf")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render document")
	}
	return attachment(c, export.ContentTypePDF, fmt.Sprintf("log_entry_%d.pdf", idx), buf.Bytes())
}

func (h *Handler) ExportEntries(c echo.Context) error {
	f, q, err := h.parseFilter(c, true)
	if err != nil {
		return err
	}
	items, _, err := h.svc.List(c.Request().Context(), f, 0, 0)
	if err != nil {
		return h.storeError(err, "read")
	}
	sheet := SubmissionsSheet(items)
	if strings.EqualFold(q.Layout, "full") {
		sheet = FullSubmissionsSheet(items)
	}
	return h.writeWorkbook(c, "form_submissions", sheet)
}

func (h *Handler) ListClaims(c echo.Context) error {
	f, _, err := h.parseFilter(c, false)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Claims(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return h.storeError(err, "read")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

type submitClaimsRequest struct {
	Indices []int `json:"indices"`
}

func (h *Handler) SubmitClaims(c echo.Context) error {
	var req submitClaimsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	actor := auth.UserIDFromContext(c.Request().Context())
	items, err := h.svc.SubmitClaims(c.Request().Context(), req.Indices, actor)
	if err != nil {
		return h.storeError(err, "write")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"submitted": len(items),
		"data":      items,
	})
}

func (h *Handler) ExportClaims(c echo.Context) error {
	f, _, err := h.parseFilter(c, false)
	if err != nil {
		return err
	}
	items, _, err := h.svc.Claims(c.Request().Context(), f, 0, 0)
	if err != nil {
		return h.storeError(err, "read")
	}
	return h.writeWorkbook(c, "claims_report", ClaimsSheet(items))
}

func (h *Handler) payrollReport(c echo.Context) (*PayrollReport, error) {
	period := DefaultPayPeriod(h.svc.now())
	from, err := parseDay("from", c.QueryParam("from"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	to, err := parseDay("to", c.QueryParam("to"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if from != nil {
		period.From = *from
	}
	if to != nil {
		period.To = *to
	}
	r, err := h.svc.Payroll(c.Request().Context(), period, c.QueryParam("coordinator_email"))
	if err != nil {
		return nil, h.storeError(err, "read")
	}
	return r, nil
}

func (h *Handler) Payroll(c echo.Context) error {
	r, err := h.payrollReport(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ExportPayroll(c echo.Context) error {
	r, err := h.payrollReport(c)
	if err != nil {
		return err
	}
	return h.writeWorkbook(c, "payroll_report", PayrollSheets(r)...)
}

func (h *Handler) writeWorkbook(c echo.Context, name string, sheets ...export.Sheet) error {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, sheets...); err != nil {
		h.logger.Error().Err(err).Str("export", name).Msg("render workbook")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not render export")
	}
	filename := fmt.Sprintf("%s_%s.xlsx", name, h.svc.now().Format("20060102_150405"))
	return attachment(c, export.ContentTypeXLSX, filename, buf.Bytes())
}

func attachment(c echo.Context, contentType, filename string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, contentType, body)
}
