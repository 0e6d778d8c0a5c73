package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"

	"github.com/rtdickson/event-site/internal/api"
)

func loadTestSpec(t *testing.T) *openapi3.T {
	t.Helper()
	spec, err := api.GetSwagger()
	if err != nil {
		t.Fatalf("failed to load openapi spec: %v", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("invalid openapi spec: %v", err)
	}
	return spec
}

func setupValidationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	spec := loadTestSpec(t)

	mw, err := NewOpenAPIValidator(spec)
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}

	r := gin.New()
	r.Use(mw)
	r.POST("/api/rsvps", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func postRSVP(t *testing.T, r *gin.Engine, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/rsvps", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestValidation_ValidRSVP(t *testing.T) {
	r := setupValidationRouter(t)

	w := postRSVP(t, r, map[string]any{
		"name":      "Dana Whitfield",
		"phone":     "+16135550147",
		"attending": "Yes",
		"guests":    2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_InvalidAttendingValue(t *testing.T) {
	r := setupValidationRouter(t)

	w := postRSVP(t, r, map[string]any{
		"name":      "Dana Whitfield",
		"phone":     "+16135550147",
		"attending": "probably",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad attending value, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_MissingRequiredPhone(t *testing.T) {
	r := setupValidationRouter(t)

	w := postRSVP(t, r, map[string]any{
		"name":      "Dana Whitfield",
		"attending": "Yes",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing phone, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_NegativeGuests(t *testing.T) {
	r := setupValidationRouter(t)

	w := postRSVP(t, r, map[string]any{
		"name":      "Dana Whitfield",
		"phone":     "+16135550147",
		"attending": "Yes",
		"guests":    -1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative guests, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValidation_UnknownRoute(t *testing.T) {
	r := setupValidationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/not-in-spec", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown route, got %d", w.Code)
	}
}

func TestValidation_HealthEndpointPassesThrough(t *testing.T) {
	r := setupValidationRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for health, got %d: %s", w.Code, w.Body.String())
	}
}
