package service

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// QuestionService реализует бизнес-логику банка вопросов
type QuestionService struct {
	questionRepo repository.QuestionRepository
}

// NewQuestionService создает новый сервис вопросов
func NewQuestionService(questionRepo repository.QuestionRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo}
}

// CreateQuestionInput содержит данные нового вопроса
type CreateQuestionInput struct {
	Text          string
	Options       []string
	CorrectOption int
	ExamType      string
	Subject       string
	Difficulty    string
	Year          int
	LanguageLevel string
	SolutionMode  string
}

func (in *CreateQuestionInput) validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("%w: question text is required", apperrors.ErrValidation)
	}
	if len(in.Options) < 2 {
		return fmt.Errorf("%w: question must have at least 2 options", apperrors.ErrValidation)
	}
	if in.CorrectOption < 0 || in.CorrectOption >= len(in.Options) {
		return fmt.Errorf("%w: correct_option must be in range [0, %d)", apperrors.ErrValidation, len(in.Options))
	}
	if strings.TrimSpace(in.ExamType) == "" {
		return fmt.Errorf("%w: exam_type is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(in.Subject) == "" {
		return fmt.Errorf("%w: subject is required", apperrors.ErrValidation)
	}
	return nil
}

func (in *CreateQuestionInput) toEntity() entity.Question {
	return entity.Question{
		Text:          strings.TrimSpace(in.Text),
		Options:       entity.StringArray(in.Options),
		CorrectOption: in.CorrectOption,
		ExamType:      strings.TrimSpace(in.ExamType),
		Subject:       strings.TrimSpace(in.Subject),
		Difficulty:    strings.TrimSpace(in.Difficulty),
		Year:          in.Year,
		LanguageLevel: strings.TrimSpace(in.LanguageLevel),
		SolutionMode:  strings.TrimSpace(in.SolutionMode),
	}
}

// CreateQuestion добавляет вопрос в банк
func (s *QuestionService) CreateQuestion(input CreateQuestionInput) (*entity.Question, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	question := input.toEntity()
	if err := s.questionRepo.Create(&question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return &question, nil
}

// GetQuestionByID возвращает вопрос по ID
func (s *QuestionService) GetQuestionByID(id uint) (*entity.Question, error) {
	return s.questionRepo.GetByID(id)
}

// ListQuestions возвращает вопросы с необязательной фильтрацией
// по типу экзамена и предмету
func (s *QuestionService) ListQuestions(filter repository.QuestionFilter) ([]entity.Question, error) {
	return s.questionRepo.List(filter)
}

// UpdateQuestionInput содержит частичное обновление вопроса.
// Nil-поля остаются без изменений.
type UpdateQuestionInput struct {
	Text          *string
	Options       []string
	CorrectOption *int
	ExamType      *string
	Subject       *string
	Difficulty    *string
	Year          *int
	LanguageLevel *string
	SolutionMode  *string
}

// UpdateQuestion обновляет переданные поля вопроса, остальные сохраняет
func (s *QuestionService) UpdateQuestion(id uint, input UpdateQuestionInput) (*entity.Question, error) {
	question, err := s.questionRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: question #%d", apperrors.ErrNotFound, id)
		}
		return nil, err
	}

	if input.Text != nil {
		question.Text = strings.TrimSpace(*input.Text)
	}
	if input.Options != nil {
		question.Options = entity.StringArray(input.Options)
	}
	if input.CorrectOption != nil {
		question.CorrectOption = *input.CorrectOption
	}
	if input.ExamType != nil {
		question.ExamType = strings.TrimSpace(*input.ExamType)
	}
	if input.Subject != nil {
		question.Subject = strings.TrimSpace(*input.Subject)
	}
	if input.Difficulty != nil {
		question.Difficulty = strings.TrimSpace(*input.Difficulty)
	}
	if input.Year != nil {
		question.Year = *input.Year
	}
	if input.LanguageLevel != nil {
		question.LanguageLevel = strings.TrimSpace(*input.LanguageLevel)
	}
	if input.SolutionMode != nil {
		question.SolutionMode = strings.TrimSpace(*input.SolutionMode)
	}

	// Проверяем согласованность вопроса после слияния
	merged := CreateQuestionInput{
		Text:          question.Text,
		Options:       question.Options,
		CorrectOption: question.CorrectOption,
		ExamType:      question.ExamType,
		Subject:       question.Subject,
	}
	if err := merged.validate(); err != nil {
		return nil, err
	}

	if err := s.questionRepo.Update(question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return question, nil
}

// DeleteQuestion удаляет вопрос из банка
func (s *QuestionService) DeleteQuestion(id uint) error {
	return s.questionRepo.Delete(id)
}

// ImportResult содержит итог импорта вопросов из файла
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// importColumns описывает ожидаемый порядок колонок в файле импорта:
// text, option_1..option_4, correct_option (1-based), exam_type, subject,
// difficulty, year
const importMinColumns = 8

// ImportFromXLSX загружает вопросы из Excel-файла.
// Первая строка считается заголовком и пропускается. Невалидные строки
// пропускаются с накоплением ошибок, валидные сохраняются одним батчем.
func (s *QuestionService) ImportFromXLSX(r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read xlsx file: %v", apperrors.ErrValidation, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx file has no sheets", apperrors.ErrValidation)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read xlsx rows: %v", apperrors.ErrValidation, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: xlsx file has no data rows", apperrors.ErrValidation)
	}

	result := &ImportResult{}
	questions := make([]entity.Question, 0, len(rows)-1)

	for i, row := range rows[1:] {
		rowNum := i + 2 // нумерация строк в файле, 1 - заголовок
		question, err := parseImportRow(row)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
			continue
		}
		questions = append(questions, *question)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no valid rows in xlsx file", apperrors.ErrValidation)
	}

	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return nil, fmt.Errorf("failed to save imported questions: %w", err)
	}

	result.Imported = len(questions)
	log.Printf("[QuestionService] Импортировано %d вопросов, пропущено %d строк", result.Imported, result.Skipped)
	return result, nil
}

// parseImportRow разбирает одну строку файла импорта
func parseImportRow(row []string) (*entity.Question, error) {
	if len(row) < importMinColumns {
		return nil, fmt.Errorf("expected at least %d columns, got %d", importMinColumns, len(row))
	}

	text := strings.TrimSpace(row[0])
	if text == "" {
		return nil, fmt.Errorf("empty question text")
	}

	options := make([]string, 0, 4)
	for _, cell := range row[1:5] {
		if opt := strings.TrimSpace(cell); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		return nil, fmt.Errorf("question must have at least 2 options")
	}

	// В файле номер правильного варианта 1-based
	correct, err := strconv.Atoi(strings.TrimSpace(row[5]))
	if err != nil {
		return nil, fmt.Errorf("invalid correct_option %q", row[5])
	}
	if correct < 1 || correct > len(options) {
		return nil, fmt.Errorf("correct_option %d out of range [1, %d]", correct, len(options))
	}

	examType := strings.TrimSpace(row[6])
	subject := strings.TrimSpace(row[7])
	if examType == "" || subject == "" {
		return nil, fmt.Errorf("exam_type and subject are required")
	}

	question := &entity.Question{
		Text:          text,
		Options:       entity.StringArray(options),
		CorrectOption: correct - 1,
		ExamType:      examType,
		Subject:       subject,
	}

	if len(row) > 8 {
		question.Difficulty = strings.TrimSpace(row[8])
	}
	if len(row) > 9 && strings.TrimSpace(row[9]) != "" {
		year, err := strconv.Atoi(strings.TrimSpace(row[9]))
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", row[9])
		}
		question.Year = year
	}

	return question, nil
}
