package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docconvert/internal/conversion"
	"github.com/nikhilbhutani/docconvert/internal/store"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"validation", &conversion.ValidationError{Msg: "chunk_size must be between 100 and 4096"}, http.StatusBadRequest, "chunk_size must be between 100 and 4096"},
		{"not found", fmt.Errorf("get task: %w", store.ErrNotFound), http.StatusNotFound, "task not found"},
		{"in flight", store.ErrTaskInFlight, http.StatusConflict, "task is still pending or processing and cannot be deleted"},
		{"internal", fmt.Errorf("create task: %w", errors.New("dial tcp 10.0.3.7:6379: connect: connection refused")), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/convert", nil), tt.err, "task not found")

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body["error"])
			assert.NotContains(t, rec.Body.String(), "6379")
		})
	}
}
