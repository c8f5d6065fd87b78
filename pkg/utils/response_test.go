package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusBadRequest, "audio field is required")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"audio field is required"}` {
		t.Fatalf("unexpected body: %s", body)
	}
}
