package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JonMunkholm/silverload/internal/config"
)

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name    string
		cfg     config.SecurityConfig
		headers map[string]string
		want    int
	}{
		{"disabled", config.SecurityConfig{}, nil, http.StatusNoContent},
		{"missing key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, nil, http.StatusUnauthorized},
		{"wrong key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, map[string]string{"X-API-Key": "nope"}, http.StatusForbidden},
		{"header key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, map[string]string{"X-API-Key": "k2"}, http.StatusNoContent},
		{"bearer key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, map[string]string{"Authorization": "Bearer k1"}, http.StatusNoContent},
		{"no keys configured", config.SecurityConfig{RequireAPIKey: true}, map[string]string{"X-API-Key": "k1"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(&tt.cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLoggerCapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	if rec.Body.String() != "short" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
