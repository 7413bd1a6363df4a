package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := Middleware(Config{Enabled: true, Token: "s3cret"})(ok)
	open := Middleware(Config{Enabled: false, Token: "s3cret"})(ok)

	tests := []struct {
		name    string
		handler http.Handler
		method  string
		path    string
		auth    string
		want    int
	}{
		{"read is public", guarded, http.MethodGet, "/api/v1/mosaic/config", "", http.StatusNoContent},
		{"write without token", guarded, http.MethodPut, "/api/v1/mosaic/config", "", http.StatusUnauthorized},
		{"write wrong token", guarded, http.MethodPut, "/api/v1/mosaic/config", "Bearer nope", http.StatusUnauthorized},
		{"write missing scheme", guarded, http.MethodPut, "/api/v1/mosaic/config", "s3cret", http.StatusUnauthorized},
		{"write with token", guarded, http.MethodPut, "/api/v1/mosaic/config", "Bearer s3cret", http.StatusNoContent},
		{"selection write", guarded, http.MethodPut, "/api/v1/equipment/selection", "", http.StatusUnauthorized},
		{"health check exempt", guarded, http.MethodPost, "/healthz", "", http.StatusNoContent},
		{"non-api write", guarded, http.MethodPost, "/", "", http.StatusNoContent},
		{"auth disabled", open, http.MethodPut, "/api/v1/mosaic/config", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
