package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

func newTestContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	return c, rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return body
}

func TestRespondStorageError(t *testing.T) {
	nop := zerolog.Nop()
	srv := &Server{logger: &nop}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        db.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "wrapped not found",
			err:        errors.New("get post by id: " + db.ErrNotFound.Error()),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
		{
			name:       "duplicate",
			err:        db.ErrDuplicate,
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name:       "event full",
			err:        db.ErrEventFull,
			wantStatus: http.StatusConflict,
			wantCode:   "event_full",
		},
		{
			name:       "unexpected",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext(t)

			srv.respondStorageError(c, tt.err, "missing", "duplicate")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.Code)
		})
	}
}

func TestRespondStorageErrorUnwrapsSentinels(t *testing.T) {
	nop := zerolog.Nop()
	srv := &Server{logger: &nop}

	c, rec := newTestContext(t)
	srv.respondStorageError(c, errors.Join(errors.New("get user"), db.ErrNotFound), "user not found", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "not_found", body.Error.Code)
	assert.Equal(t, "user not found", body.Error.Message)
}

func TestBadRequestEnvelope(t *testing.T) {
	c, rec := newTestContext(t)

	badRequest(c, "at least one criterion is required")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Error.Code)
	assert.Equal(t, "at least one criterion is required", body.Error.Message)
	assert.Nil(t, body.Error.Details)
}
