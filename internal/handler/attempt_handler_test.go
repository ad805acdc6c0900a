package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/middleware"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestGinContext создает *gin.Context для тестов с JSON body
func newTestGinContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

// setTestUser кладет аутентифицированного пользователя в контекст,
// как это делает AuthMiddleware.RequireAuth
func setTestUser(c *gin.Context, userID uint, role string) {
	c.Set(middleware.ContextUserIDKey, userID)
	c.Set(middleware.ContextUserKey, &entity.User{ID: userID, Role: role})
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

// ============================================================================
// Тесты маппинга ошибок в HTTP-статусы
// ============================================================================

func TestAttemptHandler_HandleAttemptError_StatusMapping(t *testing.T) {
	handler := &AttemptHandler{} // сервис не нужен для маппинга ошибок

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("%w: bad input", apperrors.ErrValidation), http.StatusBadRequest},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized},
		{"expired token", apperrors.ErrExpiredToken, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("%w: not yours", apperrors.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("%w: attempt #9", apperrors.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: attempt exists", apperrors.ErrConflict), http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodGet, "/", nil)

			handler.handleAttemptError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, float64(tt.wantStatus), resp["status"], "Статус в конверте должен совпадать с HTTP-статусом")
			assert.NotEmpty(t, resp["message"])
		})
	}
}

// ============================================================================
// Тесты разбора query-параметров
// ============================================================================

func TestParseQueryUint(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    uint
		wantErr bool
	}{
		{"valid", "paperId=42", 42, false},
		{"missing", "", 0, true},
		{"zero", "paperId=0", 0, true},
		{"not a number", "paperId=abc", 0, true},
		{"negative", "paperId=-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestGinContext(http.MethodGet, "/analysis?"+tt.query, nil)

			got, err := parseQueryUint(c, "paperId")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// ============================================================================
// Валидация запросов — сервис не вызывается, handler отвечает 400/401 раньше
// ============================================================================

func TestAttemptHandler_SubmitTest_Unauthenticated(t *testing.T) {
	handler := &AttemptHandler{}

	c, w := newTestGinContext(http.MethodPost, "/attempted-tests/submit", map[string]interface{}{"paper_id": 1})

	handler.SubmitTest(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code, "Без пользователя в контексте должен быть 401")
}

func TestAttemptHandler_GetTestAnalysis_MissingPaperID(t *testing.T) {
	handler := &AttemptHandler{}

	c, w := newTestGinContext(http.MethodGet, "/attempted-tests/analysis", nil)
	// Пользователь аутентифицирован, но paperId не передан
	setTestUser(c, 1, "user")

	handler.GetTestAnalysis(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := parseJSONResponse(t, w)
	assert.Contains(t, resp["message"], "paperId")
}
