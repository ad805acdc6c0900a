package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/testprep-api/internal/domain/repository"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service"
)

// maxImportFileSize ограничивает размер загружаемого файла импорта (8 МБ)
const maxImportFileSize = 8 << 20

// QuestionHandler обрабатывает запросы банка вопросов
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler создает новый обработчик вопросов
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// QuestionRequest представляет запрос на создание или обновление вопроса
type QuestionRequest struct {
	Text          string   `json:"text" binding:"required,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=6"`
	CorrectOption int      `json:"correct_option" binding:"min=0"`
	ExamType      string   `json:"exam_type" binding:"required,max=50"`
	Subject       string   `json:"subject" binding:"required,max=50"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,max=20"`
	Year          int      `json:"year" binding:"omitempty,min=1900,max=2100"`
	LanguageLevel string   `json:"language_level" binding:"omitempty,max=20"`
	SolutionMode  string   `json:"solution_mode" binding:"omitempty,max=50"`
}

func (req *QuestionRequest) toInput() service.CreateQuestionInput {
	return service.CreateQuestionInput{
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		ExamType:      req.ExamType,
		Subject:       req.Subject,
		Difficulty:    req.Difficulty,
		Year:          req.Year,
		LanguageLevel: req.LanguageLevel,
		SolutionMode:  req.SolutionMode,
	}
}

// UploadQuestion добавляет вопрос в банк
// POST /api/v1/questions/upload (admin)
func (h *QuestionHandler) UploadQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	question, err := h.questionService.CreateQuestion(req.toInput())
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAPIResponse(http.StatusCreated, question, "Question uploaded successfully"))
}

// ImportQuestions загружает вопросы из xlsx-файла (поле формы "file")
// POST /api/v1/questions/import (admin)
func (h *QuestionHandler) ImportQuestions(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "file form field is required"))
		return
	}
	if fileHeader.Size > maxImportFileSize {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "import file is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("[QuestionHandler] Ошибка открытия загруженного файла: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Failed to read uploaded file"))
		return
	}
	defer file.Close()

	result, err := h.questionService.ImportFromXLSX(file)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewAPIResponse(http.StatusCreated, result, "Questions imported successfully"))
}

// GetQuestions возвращает вопросы с необязательной фильтрацией
// GET /api/v1/questions/get?exam_type=&subject=
func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	filter := repository.QuestionFilter{
		ExamType: c.Query("exam_type"),
		Subject:  c.Query("subject"),
	}

	questions, err := h.questionService.ListQuestions(filter)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, questions, "Questions fetched successfully"))
}

// GetQuestionByID возвращает вопрос по ID
// GET /api/v1/questions/get/:questionId
func (h *QuestionHandler) GetQuestionByID(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	question, err := h.questionService.GetQuestionByID(questionID)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, question, "Question fetched successfully"))
}

// UpdateQuestionRequest представляет частичное обновление вопроса:
// отсутствующие поля не изменяются
type UpdateQuestionRequest struct {
	Text          *string  `json:"text" binding:"omitempty,max=2000"`
	Options       []string `json:"options" binding:"omitempty,min=2,max=6"`
	CorrectOption *int     `json:"correct_option" binding:"omitempty,min=0"`
	ExamType      *string  `json:"exam_type" binding:"omitempty,max=50"`
	Subject       *string  `json:"subject" binding:"omitempty,max=50"`
	Difficulty    *string  `json:"difficulty" binding:"omitempty,max=20"`
	Year          *int     `json:"year" binding:"omitempty,min=1900,max=2100"`
	LanguageLevel *string  `json:"language_level" binding:"omitempty,max=20"`
	SolutionMode  *string  `json:"solution_mode" binding:"omitempty,max=50"`
}

// UpdateQuestion обновляет переданные поля вопроса
// PATCH /api/v1/questions/update/:questionId (admin)
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	var req UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	question, err := h.questionService.UpdateQuestion(questionID, service.UpdateQuestionInput{
		Text:          req.Text,
		Options:       req.Options,
		CorrectOption: req.CorrectOption,
		ExamType:      req.ExamType,
		Subject:       req.Subject,
		Difficulty:    req.Difficulty,
		Year:          req.Year,
		LanguageLevel: req.LanguageLevel,
		SolutionMode:  req.SolutionMode,
	})
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, question, "Question updated successfully"))
}

// DeleteQuestion удаляет вопрос из банка
// DELETE /api/v1/questions/delete/:questionId (admin)
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	questionID := c.MustGet("questionID").(uint)

	if err := h.questionService.DeleteQuestion(questionID); err != nil {
		h.handleQuestionError(c, err)
		return
	}

	log.Printf("[QuestionHandler] Вопрос ID=%d удален", questionID)
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, nil, "Question deleted successfully"))
}

// handleQuestionError преобразует ошибки сервиса в HTTP-статусы
func (h *QuestionHandler) handleQuestionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, err.Error()))
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, err.Error()))
	default:
		log.Printf("[QuestionHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Internal server error"))
	}
}
