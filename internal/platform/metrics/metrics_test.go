package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRouteTemplate(t *testing.T) {
	r := New()
	e := echo.New()
	e.Use(r.Middleware())
	e.GET("/api/appointments/:id", func(c echo.Context) error {
		if c.Param("id") == "404" {
			return echo.NewHTTPError(http.StatusNotFound, "Appointment not found")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"1", "2", "404"} {
		req := httptest.NewRequest(http.MethodGet, "/api/appointments/"+id, nil)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("GET", "/api/appointments/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("GET", "/api/appointments/:id", "404")))
}

func TestDomainCounters(t *testing.T) {
	r := New()
	r.AppointmentCreated()
	r.AppointmentCreated()
	r.StatusTransition("pending", "confirmed")
	r.ProfileRegistered("patient")
	r.SequenceConflict("appointment")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.appointmentsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statusTransitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.registrations.WithLabelValues("patient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sequenceConflicts.WithLabelValues("appointment")))
}

func TestHandler_Exposition(t *testing.T) {
	r := New()
	r.AppointmentCreated()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hms_appointments_created_total 1"))
}

func TestNew_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
