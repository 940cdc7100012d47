package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/Dominux/Pentaract/internal/server/database"
	"github.com/Dominux/Pentaract/internal/server/engine"
	"github.com/Dominux/Pentaract/internal/server/service"
	"github.com/Dominux/Pentaract/internal/server/telegram"
)

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{database.ErrNotFound, http.StatusNotFound},
		{database.ErrAlreadyExists, http.StatusConflict},
		{database.ErrNoStorage, http.StatusNotFound},
		{service.ErrInvalidPath, http.StatusBadRequest},
		{service.ErrInvalidFolderName, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrNotAuthenticated, http.StatusUnauthorized},
		{service.ErrPermissionDenied, http.StatusForbidden},
		{engine.ErrNoWorkers, http.StatusBadRequest},
		{telegram.ErrBackendRejected, http.StatusBadGateway},
		{telegram.ErrBackendUnavailable, http.StatusBadGateway},
		{database.ErrInternal, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			// Wrapped errors must map the same as bare sentinels.
			if err := mapServiceError(c, fmt.Errorf("context: %w", tc.err)); err != nil {
				t.Fatalf("mapServiceError returned %v", err)
			}
			if rec.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
