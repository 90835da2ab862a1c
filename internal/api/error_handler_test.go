package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/influencerlab/studio/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"invalid request", fmt.Errorf("%w: prompt is required", domain.ErrInvalidRequest), http.StatusBadRequest},
		{"unknown character", domain.ErrUnknownCharacter, http.StatusUnprocessableEntity},
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"generation not found", domain.ErrGenerationNotFound, http.StatusNotFound},
		{"character not found", domain.ErrCharacterNotFound, http.StatusNotFound},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{"ledger inconsistency", domain.ErrLedgerInconsistency, http.StatusLocked},
		{"request in flight", domain.ErrRequestInFlight, http.StatusConflict},
		{"user exists", domain.ErrUserExists, http.StatusConflict},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"echo error", echo.NewHTTPError(http.StatusTeapot, "short and stout"), http.StatusTeapot},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handler(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if resp.Error == "" {
				t.Fatal("expected an error message")
			}
		})
	}
}

func TestHTTPErrorHandler_HidesInternals(t *testing.T) {
	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())

	for _, err := range []error{
		errors.New("pq: connection refused on 10.0.0.3"),
		fmt.Errorf("%w: user u1 balance 50, transactions total 45", domain.ErrLedgerInconsistency),
	} {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		handler(err, c)

		var resp errorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Error == err.Error() {
			t.Fatalf("internal detail leaked: %q", resp.Error)
		}
	}
}
