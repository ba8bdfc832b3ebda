package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLogResponseWriterStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	w := &logResponseWriter{ResponseWriter: rr, status: 200}

	w.WriteHeader(http.StatusNotFound)

	if w.status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.status, http.StatusNotFound)
	}
	if rr.Code != http.StatusNotFound {
		t.Errorf("recorder code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLogResponseWriterDefaultStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	w := &logResponseWriter{ResponseWriter: rr, status: 200}

	// Writing without an explicit WriteHeader keeps the implicit 200.
	w.Write([]byte("ok"))

	if w.status != http.StatusOK {
		t.Errorf("status = %d, want %d", w.status, http.StatusOK)
	}
}

func TestLogResponseWriterHijackUnsupported(t *testing.T) {
	// httptest.ResponseRecorder does not implement http.Hijacker.
	w := &logResponseWriter{ResponseWriter: httptest.NewRecorder(), status: 200}

	_, _, err := w.Hijack()
	if err == nil {
		t.Error("Hijack() should fail when the underlying writer does not support it")
	}
}
