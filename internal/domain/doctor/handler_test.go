package doctor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hms/hms/internal/platform/auth"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), svc, echo.New()
}

const doctorBody = `{
	"user": {"email": "bob@hospital.com", "username": "bob", "full_name": "Dr Bob", "password": "password123"},
	"specialization": "Cardiology",
	"qualification": "MD",
	"phone": "+16502530000",
	"consultation_fee": 120.5,
	"available_days": ["Monday", "Thursday"],
	"available_time_start": "09:00",
	"available_time_end": "13:30"
}`

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/doctors/register", strings.NewReader(doctorBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithActor(req.Context(), admin))
	rec := httptest.NewRecorder()

	if err := h.Register(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got["doctor_id"] != "DOC-00001" || got["consultation_fee"] != 120.5 {
		t.Errorf("unexpected body %v", got)
	}
}

func TestHandler_Register_NonAdmin(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/doctors/register", strings.NewReader(doctorBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{UserID: 2, Role: auth.RoleDoctor, DoctorID: 1}))

	err := h.Register(e.NewContext(req, httptest.NewRecorder()))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden || he.Message != "Only admins can register doctors" {
		t.Errorf("expected 403 admin-only, got %v", err)
	}
}

func TestHandler_List_Public(t *testing.T) {
	h, svc, e := newTestHandler()
	_, _ = svc.Register(context.Background(), admin, registration("bob", "Cardiology"))
	_, _ = svc.Register(context.Background(), admin, registration("carol", "Dermatology"))

	req := httptest.NewRequest(http.MethodGet, "/api/doctors?specialization=DERMA", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 || got[0]["specialization"] != "Dermatology" {
		t.Errorf("unexpected list %v", got)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("12")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound || he.Message != "Doctor not found" {
		t.Errorf("expected 404 Doctor not found, got %v", err)
	}
}

func TestHandler_Update_Self(t *testing.T) {
	h, svc, e := newTestHandler()
	d, _ := svc.Register(context.Background(), admin, registration("bob", "Cardiology"))

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"about":"Interventional cardiologist","consultation_fee":90}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithActor(req.Context(), auth.Actor{UserID: d.UserID, Role: auth.RoleDoctor, DoctorID: d.ID}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("1")

	if err := h.Update(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"consultation_fee":90`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}
