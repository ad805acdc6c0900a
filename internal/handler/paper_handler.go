package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/testprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service"
)

// PaperHandler обрабатывает запросы тестов прошлых лет
type PaperHandler struct {
	paperService *service.PaperService
}

// NewPaperHandler создает новый обработчик тестов
func NewPaperHandler(paperService *service.PaperService) *PaperHandler {
	return &PaperHandler{paperService: paperService}
}

// CreatePaperRequest представляет запрос на добавление теста
type CreatePaperRequest struct {
	Title           string `json:"title" binding:"required,max=200"`
	ExamType        string `json:"exam_type" binding:"required,max=50"`
	Year            int    `json:"year" binding:"required,min=1900,max=2100"`
	Shift           string `json:"shift" binding:"omitempty,max=50"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1"`
	QuestionIDs     []uint `json:"question_ids" binding:"required,min=1"`
}

// AddPaper добавляет тест и связывает его с вопросами банка
// POST /api/v1/previous-year-papers/add (admin)
func (h *PaperHandler) AddPaper(c *gin.Context) {
	var req CreatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	paper, err := h.paperService.CreatePaper(service.CreatePaperInput{
		Title:           req.Title,
		ExamType:        req.ExamType,
		Year:            req.Year,
		Shift:           req.Shift,
		DurationMinutes: req.DurationMinutes,
		QuestionIDs:     req.QuestionIDs,
	})
	if err != nil {
		h.handlePaperError(c, err)
		return
	}

	log.Printf("[PaperHandler] Добавлен тест ID=%d (%s)", paper.ID, paper.Title)
	c.JSON(http.StatusCreated, dto.NewAPIResponse(http.StatusCreated, paper, "Previous test added successfully"))
}

// GetPapers возвращает список всех тестов без вопросов
// GET /api/v1/previous-year-papers/get
func (h *PaperHandler) GetPapers(c *gin.Context) {
	papers, err := h.paperService.ListPapers()
	if err != nil {
		h.handlePaperError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, papers, "Previous tests fetched successfully"))
}

// GetPaperByID возвращает тест вместе с вопросами
// GET /api/v1/previous-year-papers/get/:paperId
func (h *PaperHandler) GetPaperByID(c *gin.Context) {
	paperID := c.MustGet("paperID").(uint)

	paper, err := h.paperService.GetPaperByID(paperID)
	if err != nil {
		h.handlePaperError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, paper, "Previous test fetched successfully"))
}

// handlePaperError преобразует ошибки сервиса в HTTP-статусы
func (h *PaperHandler) handlePaperError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, err.Error()))
	default:
		log.Printf("[PaperHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Internal server error"))
	}
}
