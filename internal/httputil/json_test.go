package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadRequest, "bad ra")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "bad ra" {
		t.Errorf("error = %q, want %q", body["error"], "bad ra")
	}
}

func TestDecodeJSON(t *testing.T) {
	type target struct {
		PanelsX int `json:"panels_x"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"ok", `{"panels_x": 4}`, false},
		{"unknown field", `{"panels_z": 4}`, true},
		{"trailing data", `{"panels_x": 4} {}`, true},
		{"not json", `panels_x=4`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(tt.body))
			var v target
			err := DecodeJSON(httptest.NewRecorder(), r, &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && v.PanelsX != 4 {
				t.Errorf("panels_x = %d, want 4", v.PanelsX)
			}
		})
	}
}
