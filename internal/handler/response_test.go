package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarveyThePooka404/jokes/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("name", "too short"), http.StatusBadRequest, "validation_error", "too short"},
		{"not found", apperror.NotFound("joke", "abc"), http.StatusNotFound, "not_found", "joke not found with id abc"},
		{"unauthenticated", apperror.Unauthenticated("must be logged in to like"), http.StatusUnauthorized, "unauthorized", "must be logged in to like"},
		{"forbidden", apperror.Forbidden("not your joke"), http.StatusForbidden, "forbidden", "not your joke"},
		{"conflict", apperror.Conflict("user", "kody"), http.StatusConflict, "conflict", "user conflict with id kody"},
		{"wrapped", fmt.Errorf("deleting: %w", apperror.Forbidden("not your joke")), http.StatusForbidden, "forbidden", "not your joke"},
		{"unknown", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, logger, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeBody[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestWriteError_DoesNotLeakInternals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	writeError(rec, logger, errors.New("SELECT * FROM users failed"))

	assert.NotContains(t, rec.Body.String(), "SELECT")
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"x","content":"y"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"nmae":"x"}`, true},
		{"two objects", `{"name":"x"}{"name":"y"}`, true},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst createJokeRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "x", dst.Name)
				return
			}
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}
