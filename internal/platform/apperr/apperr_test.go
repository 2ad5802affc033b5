package apperr

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestKindOf_Tagged(t *testing.T) {
	err := E(Forbidden, "no access")
	if KindOf(err) != Forbidden {
		t.Errorf("expected Forbidden, got %v", KindOf(err))
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", E(NotFound, "request not found"))
	if KindOf(err) != NotFound {
		t.Errorf("expected NotFound through wrapping, got %v", KindOf(err))
	}
}

func TestKindOf_Untagged(t *testing.T) {
	if KindOf(fmt.Errorf("plain")) != KindUnknown {
		t.Error("expected KindUnknown for untagged error")
	}
}

func TestRespond_StatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Unauthenticated, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{InvalidPrecondition, http.StatusConflict},
		{Validation, http.StatusBadRequest},
	}
	e := echo.New()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if err := Respond(c, E(tc.kind, "boom")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != tc.want {
			t.Errorf("kind %v: expected status %d, got %d", tc.kind, tc.want, rec.Code)
		}
	}
}

func TestRespond_UntaggedIsOpaque(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := Respond(c, fmt.Errorf("sensitive detail")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"internal_error\"}\n" {
		t.Errorf("internal message leaked: %s", got)
	}
}
