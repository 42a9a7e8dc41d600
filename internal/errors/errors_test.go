package errors

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteText(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrNotFound.WriteText(rec)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec.Body.String() != "Not found" {
		t.Errorf("expected plain message body, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("disk on fire")
	err := Wrap(underlying, http.StatusNotFound, "Not found")

	if err.Error() != "Not found: disk on fire" {
		t.Errorf("unexpected Error() %q", err.Error())
	}
	if err.Unwrap() != underlying {
		t.Error("expected Unwrap to return the underlying error")
	}

	// The client still only ever sees the short message.
	rec := httptest.NewRecorder()
	err.WriteText(rec)
	if rec.Body.String() != "Not found" {
		t.Errorf("server-side detail leaked: %q", rec.Body.String())
	}
}

func TestLoggable(t *testing.T) {
	if ErrNotFound.Loggable() {
		t.Error("plain not-found must stay quiet")
	}
	if !Wrap(fmt.Errorf("EACCES"), http.StatusNotFound, "Not found").Loggable() {
		t.Error("a wrapped not-found carries detail and should be logged")
	}
	if !ErrForbidden.Loggable() {
		t.Error("forbidden responses should be logged")
	}
	if !ErrBadRequest.Loggable() {
		t.Error("bad requests should be logged")
	}
}

func TestAsError(t *testing.T) {
	if _, ok := AsError(ErrForbidden); !ok {
		t.Error("expected AsError to match a typed error")
	}
	if _, ok := AsError(fmt.Errorf("plain")); ok {
		t.Error("expected AsError to reject a plain error")
	}
}

func TestMessages(t *testing.T) {
	tests := []struct {
		err  *Error
		code int
		msg  string
	}{
		{ErrNotFound, 404, "Not found"},
		{ErrBadRequest, 400, "Bad request"},
		{ErrForbidden, 403, "Request Forbidden"},
		{ErrInternal, 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		if tt.err.Code != tt.code || tt.err.Message != tt.msg {
			t.Errorf("expected %d %q, got %d %q", tt.code, tt.msg, tt.err.Code, tt.err.Message)
		}
	}
}
