package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/app/apptest"
	apptDomain "github.com/NghiaaPham/ServiceCenter-sub002/internal/domain/appointment"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/models"
	"github.com/NghiaaPham/ServiceCenter-sub002/internal/routes"
	ucPayment "github.com/NghiaaPham/ServiceCenter-sub002/internal/usecase/payment"
)

func router(t *testing.T) (*apptest.Fixture, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := apptest.New(t)
	r := gin.New()
	routes.RegisterRoutes(r, f.C, f.Cfg)
	return f, r
}

func token(t *testing.T, f *apptest.Fixture, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(f.Cfg.JWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func do(r *gin.Engine, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doRaw(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_CapturesIntent(t *testing.T) {
	f, r := router(t)
	svc := f.Service("Oil change", "50.00", 30)
	b := f.Book(svc)

	pi, err := f.C.PrePayment.Execute(context.Background(), ucPayment.PrePaymentInput{
		AppointmentID: b.Appointment.ID,
		Provider:      "sandbox",
	})
	require.NoError(t, err)

	fields, sig := f.Callback(pi, "50.00", true)

	bad := do(r, http.MethodPost, "/api/webhooks/payments/sandbox", fields, map[string]string{"X-Signature": "deadbeef"})
	assert.Equal(t, http.StatusUnprocessableEntity, bad.Code)
	assert.Contains(t, bad.Body.String(), "invalid_signature")

	w := do(r, http.MethodPost, "/api/webhooks/payments/sandbox", fields, map[string]string{"X-Signature": sig})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Status     string `json:"status"`
		IntentCode string `json:"intent_code"`
		Intent     string `json:"intent"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, pi.Code, out.IntentCode)
	assert.Equal(t, "completed", out.Intent)

	// a redelivery is acknowledged without a second capture
	again := do(r, http.MethodPost, "/api/webhooks/payments/sandbox", fields, map[string]string{"X-Signature": sig})
	assert.Equal(t, http.StatusOK, again.Code)

	ap := f.Reload(b.Appointment)
	assert.True(t, ap.PaidAmount.Equal(pi.Amount))
}

func TestWebhook_UnknownIntent(t *testing.T) {
	f, r := router(t)
	fields := map[string]string{"code": "PI-MISSING", "amount": "1.00", "result": "00", "txn": "TX-1"}
	w := do(r, http.MethodPost, "/api/webhooks/payments/sandbox", fields, map[string]string{"X-Signature": f.Sandbox.Sign(fields)})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppointments_RequireToken(t *testing.T) {
	_, r := router(t)
	w := do(r, http.MethodGet, "/api/appointments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAppointments_CustomerBooksForThemselves(t *testing.T) {
	f, r := router(t)
	center := f.Center()
	customer, vehicle := f.Customer()
	other, _ := f.Customer()
	svc := f.Service("Inspection", "30.00", 20)
	slot := f.Slot(center.ID, 24*time.Hour, 1)

	auth := token(t, f, jwt.MapClaims{
		"sub":             float64(99),
		"serviceCenterId": float64(center.ID),
		"role":            "customer",
		"customerId":      float64(customer.ID),
	})

	w := do(r, http.MethodPost, "/api/appointments", map[string]any{
		"customer_id": other.ID,
		"vehicle_id":  vehicle.ID,
		"slot_id":     slot.ID,
		"service_ids": []uint{svc.ID},
	}, map[string]string{"Authorization": auth})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var ap models.Appointment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ap))
	assert.Equal(t, customer.ID, ap.CustomerID)
	assert.Equal(t, slot.ID, ap.SlotID)

	list := do(r, http.MethodGet, "/api/appointments", nil, map[string]string{"Authorization": auth})
	require.Equal(t, http.StatusOK, list.Code)
	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)

	full := do(r, http.MethodPost, "/api/appointments", map[string]any{
		"vehicle_id":  vehicle.ID,
		"slot_id":     slot.ID,
		"service_ids": []uint{svc.ID},
	}, map[string]string{"Authorization": auth})
	assert.Equal(t, http.StatusConflict, full.Code)
}

func TestCancel_OptionalBodyMustBeWellFormed(t *testing.T) {
	f, r := router(t)
	b := f.Book(f.Service("Oil change", "50.00", 30))
	auth := map[string]string{"Authorization": token(t, f, jwt.MapClaims{
		"sub":             float64(1),
		"serviceCenterId": float64(b.Center.ID),
		"role":            "advisor",
	})}
	path := fmt.Sprintf("/api/staff/appointments/%d/cancel", b.Appointment.ID)

	// GIVEN a truncated body WHEN posted THEN it is rejected untouched
	bad := doRaw(r, http.MethodPost, path, `{"reason":`, auth)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Contains(t, bad.Body.String(), "invalid_request")
	assert.Equal(t, int(apptDomain.StatusPending), f.Reload(b.Appointment).Status)

	// GIVEN no body at all WHEN posted THEN the cancel goes through
	ok := doRaw(r, http.MethodPost, path, "", auth)
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	assert.Equal(t, int(apptDomain.StatusCancelled), f.Reload(b.Appointment).Status)
}

func TestOptionalBodies_MalformedIsBadRequest(t *testing.T) {
	f, r := router(t)
	b := f.Book(f.Service("Oil change", "50.00", 30))
	auth := map[string]string{"Authorization": token(t, f, jwt.MapClaims{
		"sub":             float64(1),
		"serviceCenterId": float64(b.Center.ID),
		"role":            "advisor",
	})}

	for _, path := range []string{
		"/api/staff/work-orders/1/cancel",
		"/api/staff/payments/intents/1/cancel",
		fmt.Sprintf("/api/staff/appointments/%d/check-in", b.Appointment.ID),
	} {
		w := doRaw(r, http.MethodPost, path, `not json`, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
