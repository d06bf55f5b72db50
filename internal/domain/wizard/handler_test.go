package wizard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shanthivalli/tcm-claims-focus/internal/domain/logentry"
	"github.com/shanthivalli/tcm-claims-focus/internal/platform/auth"
)

func newTestHandler(rec *fakeRecorder) *Handler {
	return NewHandler(newTestService(rec), zerolog.Nop())
}

// coordinatorRequest builds a request carrying a coordinator token bound to
// A123456.
func coordinatorRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	claims := &auth.Claims{Roles: []string{auth.RoleCoordinator}, MedicaidID: "A123456"}
	claims.Subject = "tc@example.org"
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func newContext(req *http.Request, names []string, values []string) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func expectHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d (%v)", code, httpErr.Code, httpErr.Message)
	}
	return httpErr
}

// startSession opens a session through the handler and returns its id.
func startSession(t *testing.T, h *Handler) string {
	t.Helper()
	c, rec := newContext(coordinatorRequest(http.MethodPost, "/", `{"service_date":"03/10/2025"}`), nil, nil)
	if err := h.StartSession(c); err != nil {
		t.Fatalf("StartSession() error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var body struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		SectionName string `json:"section_name"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.SectionName != "demographics" || body.Status != StatusActive {
		t.Errorf("unexpected session view %+v", body)
	}
	return body.ID
}

func postSection(h *Handler, id, section, body string) (echo.Context, *httptest.ResponseRecorder, error) {
	c, rec := newContext(coordinatorRequest(http.MethodPost, "/", body), []string{"id", "section"}, []string{id, section})
	return c, rec, h.SubmitSection(c)
}

func TestRegisterRoutes(t *testing.T) {
	e := echo.New()
	newTestHandler(&fakeRecorder{}).RegisterRoutes(e.Group("/api"))

	want := map[string]bool{
		"POST /api/wizard/sessions":                       false,
		"GET /api/wizard/sessions/:id":                    false,
		"DELETE /api/wizard/sessions/:id":                 false,
		"POST /api/wizard/sessions/:id/confirm":           false,
		"POST /api/wizard/sessions/:id/category":          false,
		"POST /api/wizard/sessions/:id/sections/:section": false,
		"POST /api/wizard/sessions/:id/back":              false,
	}
	for _, r := range e.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		if !found {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestStartSession_Errors(t *testing.T) {
	h := newTestHandler(&fakeRecorder{})

	c, _ := newContext(coordinatorRequest(http.MethodPost, "/", `{"medicaid_id":"B654321","service_date":"03/10/2025"}`), nil, nil)
	expectHTTPError(t, h.StartSession(c), http.StatusForbidden)

	c, _ = newContext(coordinatorRequest(http.MethodPost, "/", `{"service_date":"10th of March"}`), nil, nil)
	expectHTTPError(t, h.StartSession(c), http.StatusUnprocessableEntity)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"medicaid_id":"Z999999","service_date":"2025-03-10"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	claims := &auth.Claims{Roles: []string{auth.RoleAdmin}}
	claims.Subject = "admin"
	c, _ = newContext(req.WithContext(auth.WithClaims(req.Context(), claims)), nil, nil)
	expectHTTPError(t, h.StartSession(c), http.StatusNotFound)
}

func TestStartSession_Duplicate(t *testing.T) {
	h := newTestHandler(&fakeRecorder{entries: []*logentry.LogEntry{{MedicaidID: "A123456", ServiceDate: "03/10/2025"}}})

	c, resp := newContext(coordinatorRequest(http.MethodPost, "/", `{"service_date":"2025-03-10"}`), nil, nil)
	if err := h.StartSession(c); err != nil {
		t.Fatal(err)
	}
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Guard  string `json:"guard"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Status != StatusAwaitingConfirmation || body.Guard != "duplicate_found" {
		t.Fatalf("unexpected session %+v", body)
	}

	_, _, err := postSection(h, body.ID, "demographics", `{"confirmed":true}`)
	expectHTTPError(t, err, http.StatusConflict)

	c, resp = newContext(coordinatorRequest(http.MethodPost, "/", `{"continue":true}`), []string{"id"}, []string{body.ID})
	if err := h.Confirm(c); err != nil {
		t.Fatalf("Confirm() error: %v", err)
	}
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"status":"active"`) {
		t.Errorf("expected an active session, got %d %s", resp.Code, resp.Body.String())
	}
}

func TestSubmitSection_AdministrativeRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	h := newTestHandler(rec)
	id := startSession(t, h)

	_, resp, err := postSection(h, id, "0", `{"confirmed":true}`)
	if err != nil || resp.Code != http.StatusOK {
		t.Fatalf("demographics: %v %d", err, resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"section_name":"classification"`) {
		t.Errorf("expected classification next, got %s", resp.Body.String())
	}

	_, resp, err = postSection(h, id, "classification", `{
		"note_category":"Administrative","note_type":"New Note","traveled_to_client":"No",
		"admin_type":"Training","admin_comments":"Annual refresher"}`)
	if err != nil {
		t.Fatalf("classification: %v", err)
	}
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	var body struct {
		Status string `json:"status"`
		Entry  struct {
			Index     int    `json:"index"`
			AdminType string `json:"admin_type"`
		} `json:"entry"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Status != "recorded" || body.Entry.AdminType != "Training" {
		t.Errorf("unexpected response %s", resp.Body.String())
	}
	if len(rec.entries) != 1 {
		t.Errorf("expected one stored entry, got %d", len(rec.entries))
	}
}

func TestSubmitSection_FormPost(t *testing.T) {
	h := newTestHandler(&fakeRecorder{})
	id := startSession(t, h)
	postSection(h, id, "demographics", `{"confirmed":true}`)
	postSection(h, id, "classification", `{
		"note_category":"Billable-TCM","note_type":"New Note","traveled_to_client":"No",
		"tcm_hours":1,"icd_10_flag":"No","cpt_code":"T1017"}`)
	postSection(h, id, "travel", `{}`)

	form := url.Values{
		"tasks_completed": {"Reviewed lease"},
		"next_steps":      {"Schedule move"},
		"contact_types":   {"CALL", "IN PERSON"},
		"unknown_field":   {"ignored"},
	}
	req := coordinatorRequest(http.MethodPost, "/", "")
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode())).WithContext(req.Context())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	c, resp := newContext(req, []string{"id", "section"}, []string{id, "tasks"})
	if err := h.SubmitSection(c); err != nil {
		t.Fatalf("SubmitSection() error: %v", err)
	}
	if !strings.Contains(resp.Body.String(), `"section_name":"contact_1"`) {
		t.Errorf("expected contact_1 next, got %s", resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"contact_types":["CALL","IN PERSON"]`) {
		t.Errorf("form list not decoded, got %s", resp.Body.String())
	}
}

func TestSubmitSection_Errors(t *testing.T) {
	h := newTestHandler(&fakeRecorder{})
	id := startSession(t, h)

	_, _, err := postSection(h, id, "payment", `{}`)
	expectHTTPError(t, err, http.StatusNotFound)

	_, _, err = postSection(h, id, "tasks", `{"tasks_completed":"x"}`)
	expectHTTPError(t, err, http.StatusConflict)

	_, _, err = postSection(h, id, "demographics", `{"confirmed":false}`)
	httpErr := expectHTTPError(t, err, http.StatusUnprocessableEntity)
	body, ok := httpErr.Message.(fieldErrorBody)
	if !ok || body.Fields["confirmed"] == "" {
		t.Errorf("expected field errors for confirmed, got %#v", httpErr.Message)
	}

	_, _, err = postSection(h, "no-such-session", "demographics", `{"confirmed":true}`)
	expectHTTPError(t, err, http.StatusNotFound)

	_, _, err = postSection(h, id, "demographics", `{"confirmed":`)
	expectHTTPError(t, err, http.StatusBadRequest)
}

func TestSubmitSection_SaveFailed(t *testing.T) {
	rec := &fakeRecorder{recordErr: errors.New("disk full")}
	h := newTestHandler(rec)
	id := startSession(t, h)
	postSection(h, id, "demographics", `{"confirmed":true}`)

	_, _, err := postSection(h, id, "classification", `{
		"note_category":"Administrative","note_type":"New Note","traveled_to_client":"No",
		"admin_type":"Travel","admin_comments":"Mileage"}`)
	httpErr := expectHTTPError(t, err, http.StatusServiceUnavailable)
	if httpErr.Message != ErrSaveFailed.Error() {
		t.Errorf("expected retry message, got %v", httpErr.Message)
	}

	c, resp := newContext(coordinatorRequest(http.MethodGet, "/", ""), []string{"id"}, []string{id})
	if err := h.GetSession(c); err != nil {
		t.Fatalf("session lost: %v", err)
	}
	if !strings.Contains(resp.Body.String(), `"admin_type":"Travel"`) {
		t.Errorf("expected merged draft to survive, got %s", resp.Body.String())
	}
}

func TestSubmitSection_AlreadySaving(t *testing.T) {
	rec := newSlowRecorder()
	svc := NewService(NewSessionStore(time.Hour, zerolog.Nop()), rec, testMembers(), Rules{}, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	id := startSession(t, h)
	postSection(h, id, "demographics", `{"confirmed":true}`)

	body := `{"note_category":"Administrative","note_type":"New Note","traveled_to_client":"No",
		"admin_type":"Meeting","admin_comments":"Team huddle"}`
	done := make(chan error, 1)
	go func() {
		_, _, err := postSection(h, id, "classification", body)
		done <- err
	}()
	<-rec.started

	_, _, err := postSection(h, id, "classification", body)
	httpErr := expectHTTPError(t, err, http.StatusConflict)
	if httpErr.Message != ErrSubmitInProgress.Error() {
		t.Errorf("unexpected message %v", httpErr.Message)
	}

	close(rec.release)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if n := rec.stored(); n != 1 {
		t.Errorf("expected 1 stored entry, got %d", n)
	}
}

func TestCategoryBackAbandon(t *testing.T) {
	h := newTestHandler(&fakeRecorder{})
	id := startSession(t, h)

	c, _ := newContext(coordinatorRequest(http.MethodPost, "/", ""), []string{"id"}, []string{id})
	expectHTTPError(t, h.Back(c), http.StatusBadRequest)

	postSection(h, id, "demographics", `{"confirmed":true}`)
	c, resp := newContext(coordinatorRequest(http.MethodPost, "/", `{"note_category":"Administrative"}`), []string{"id"}, []string{id})
	if err := h.SelectCategory(c); err != nil {
		t.Fatalf("SelectCategory() error: %v", err)
	}
	if !strings.Contains(resp.Body.String(), `"note_category":"Administrative"`) {
		t.Errorf("category not set, got %s", resp.Body.String())
	}

	c, resp = newContext(coordinatorRequest(http.MethodDelete, "/", ""), []string{"id"}, []string{id})
	if err := h.AbandonSession(c); err != nil || resp.Code != http.StatusNoContent {
		t.Fatalf("AbandonSession() = %v, %d", err, resp.Code)
	}
	c, _ = newContext(coordinatorRequest(http.MethodGet, "/", ""), []string{"id"}, []string{id})
	expectHTTPError(t, h.GetSession(c), http.StatusNotFound)
}

func TestParseSection(t *testing.T) {
	tests := []struct {
		in   string
		want Section
		ok   bool
	}{
		{"0", SectionDemographics, true},
		{"8", SectionFinal, true},
		{"contact_3", SectionContact3, true},
		{"9", 0, false},
		{"-1", 0, false},
		{"summary", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseSection(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseSection(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
