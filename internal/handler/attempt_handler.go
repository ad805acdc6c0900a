package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/middleware"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service"
)

// AttemptHandler обрабатывает запросы попыток прохождения тестов
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler создает новый обработчик попыток
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// SubmitTestRequest представляет запрос на отправку пройденного теста
type SubmitTestRequest struct {
	PaperID  uint                   `json:"paper_id" binding:"required"`
	Answers  entity.AnswerList      `json:"answers"`
	Metadata entity.AttemptMetadata `json:"metadata"`
}

// UpdateAttemptRequest представляет запрос на обновление результатов попытки
type UpdateAttemptRequest struct {
	AttemptedTestID uint                   `json:"attempted_test_id" binding:"required"`
	Answers         entity.AnswerList      `json:"answers"`
	Metadata        entity.AttemptMetadata `json:"metadata"`
}

// SubmitTest сохраняет новую попытку прохождения теста
// POST /api/v1/attempted-tests/submit
func (h *AttemptHandler) SubmitTest(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAttemptError(c, apperrors.ErrUnauthorized)
		return
	}

	var req SubmitTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	attempt, err := h.attemptService.SubmitTest(user.ID, service.SubmitTestInput{
		PaperID:  req.PaperID,
		Answers:  req.Answers,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	log.Printf("[AttemptHandler] Пользователь ID=%d отправил попытку #%d теста ID=%d",
		user.ID, attempt.AttemptNumber, attempt.TestID)
	c.JSON(http.StatusCreated, dto.NewAPIResponse(http.StatusCreated, attempt, "Test submitted successfully"))
}

// GetTestAnalysis возвращает сводки по всем попыткам текущего пользователя для теста
// GET /api/v1/attempted-tests/analysis?paperId=N
func (h *AttemptHandler) GetTestAnalysis(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAttemptError(c, apperrors.ErrUnauthorized)
		return
	}

	paperID, err := parseQueryUint(c, "paperId")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "paperId query parameter is required"))
		return
	}

	analyses, err := h.attemptService.GetTestAnalysis(user.ID, paperID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, analyses, "Test analysis fetched successfully"))
}

// ExportTestAnalysis экспортирует сводки попыток в CSV или Excel
// GET /api/v1/attempted-tests/analysis/export?paperId=N&format=csv|xlsx
func (h *AttemptHandler) ExportTestAnalysis(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAttemptError(c, apperrors.ErrUnauthorized)
		return
	}

	paperID, err := parseQueryUint(c, "paperId")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "paperId query parameter is required"))
		return
	}

	analyses, err := h.attemptService.GetTestAnalysis(user.ID, paperID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	filename := fmt.Sprintf("test_%d_analysis_%s", paperID, time.Now().Format("2006-01-02"))
	format := c.DefaultQuery("format", "csv")

	switch format {
	case "xlsx":
		h.exportXLSX(c, analyses, filename)
	default:
		h.exportCSV(c, analyses, filename)
	}
}

// UpdateTestResults заменяет ответы и метаданные попытки
// PUT /api/v1/attempted-tests/update
func (h *AttemptHandler) UpdateTestResults(c *gin.Context) {
	var req UpdateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	attempt, ok := h.ownedAttempt(c, req.AttemptedTestID)
	if !ok {
		return
	}

	updated, err := h.attemptService.UpdateTestResults(attempt.ID, req.Answers, req.Metadata)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, updated, "Test results updated successfully"))
}

// DeleteTestResults удаляет попытку
// DELETE /api/v1/attempted-tests/delete/:attemptedTestId
func (h *AttemptHandler) DeleteTestResults(c *gin.Context) {
	attempt, ok := h.ownedAttempt(c, c.MustGet("attemptedTestID").(uint))
	if !ok {
		return
	}

	deleted, err := h.attemptService.DeleteTestResults(attempt.ID)
	if err != nil {
		h.handleAttemptError(c, err)
		return
	}

	log.Printf("[AttemptHandler] Попытка ID=%d удалена пользователем ID=%d", deleted.ID, deleted.UserID)
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, deleted, "Test results deleted successfully"))
}

// ownedAttempt загружает попытку и проверяет,
// что она принадлежит текущему пользователю (админу доступны все)
func (h *AttemptHandler) ownedAttempt(c *gin.Context, attemptID uint) (*entity.AttemptedTest, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAttemptError(c, apperrors.ErrUnauthorized)
		return nil, false
	}

	attempt, err := h.attemptService.GetAttemptByID(attemptID)
	if err != nil {
		h.handleAttemptError(c, err)
		return nil, false
	}

	if attempt.UserID != user.ID && !user.IsAdmin() {
		h.handleAttemptError(c, fmt.Errorf("%w: attempt belongs to another user", apperrors.ErrForbidden))
		return nil, false
	}

	return attempt, true
}

// exportCSV выгружает сводки в CSV с корректным экранированием спецсимволов
func (h *AttemptHandler) exportCSV(c *gin.Context, analyses []dto.AttemptAnalysis, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Попытка", "Правильных", "Неправильных", "Посещено", "Всего вопросов", "Время (мс)", "Дата"})

	for _, a := range analyses {
		writer.Write([]string{
			strconv.Itoa(a.AttemptNumber),
			strconv.Itoa(a.TotalCorrectAnswers),
			strconv.Itoa(a.TotalWrongAnswers),
			strconv.Itoa(a.TotalVisitedQuestions),
			strconv.Itoa(a.TotalQuestions),
			strconv.FormatInt(a.TotalTimeTakenMs, 10),
			a.CreatedAt.Format(time.RFC3339),
		})
	}
}

// exportXLSX выгружает сводки в Excel с использованием StreamWriter
func (h *AttemptHandler) exportXLSX(c *gin.Context, analyses []dto.AttemptAnalysis, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Анализ"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AttemptHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Failed to create Excel file"))
		return
	}

	headers := []interface{}{"Попытка", "Правильных", "Неправильных", "Посещено", "Всего вопросов", "Время (мс)", "Дата"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AttemptHandler] Ошибка записи заголовков: %v", err)
	}

	for i, a := range analyses {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			a.AttemptNumber,
			a.TotalCorrectAnswers,
			a.TotalWrongAnswers,
			a.TotalVisitedQuestions,
			a.TotalQuestions,
			a.TotalTimeTakenMs,
			a.CreatedAt.Format(time.RFC3339),
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AttemptHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AttemptHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AttemptHandler] Ошибка записи Excel в response: %v", err)
	}
}

// parseQueryUint читает обязательный числовой query-параметр
func parseQueryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(value), nil
}

// handleAttemptError преобразует ошибки сервиса в HTTP-статусы
func (h *AttemptHandler) handleAttemptError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(http.StatusUnauthorized, err.Error()))
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.NewErrorResponse(http.StatusForbidden, err.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, err.Error()))
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, err.Error()))
	default:
		log.Printf("[AttemptHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Internal server error"))
	}
}
