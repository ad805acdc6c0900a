package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// ============================================================================
// Моки для QuestionService
// ============================================================================

// MockQuestionRepo реализует repository.QuestionRepository
type MockQuestionRepo struct {
	mock.Mock
}

func (m *MockQuestionRepo) Create(question *entity.Question) error {
	args := m.Called(question)
	return args.Error(0)
}

func (m *MockQuestionRepo) CreateBatch(questions []entity.Question) error {
	args := m.Called(questions)
	return args.Error(0)
}

func (m *MockQuestionRepo) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) GetByIDs(ids []uint) ([]entity.Question, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) List(filter repository.QuestionFilter) ([]entity.Question, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepo) Update(question *entity.Question) error {
	args := m.Called(question)
	return args.Error(0)
}

func (m *MockQuestionRepo) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

// buildImportXLSX собирает xlsx-файл для тестов импорта
func buildImportXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	header := []interface{}{"text", "option_1", "option_2", "option_3", "option_4", "correct_option", "exam_type", "subject", "difficulty", "year"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &header))

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

// ============================================================================
// Тесты для CreateQuestion / UpdateQuestion
// ============================================================================

func TestQuestionService_CreateQuestion_Success(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	mockQuestionRepo.On("Create", mock.AnythingOfType("*entity.Question")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.Question).ID = 1
	}).Return(nil)

	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	question, err := questionService.CreateQuestion(CreateQuestionInput{
		Text:          "What is the SI unit of force?",
		Options:       []string{"Newton", "Joule", "Watt", "Pascal"},
		CorrectOption: 0,
		ExamType:      "jee-main",
		Subject:       "physics",
		Difficulty:    "easy",
		Year:          2023,
	})

	// Assert
	require.NoError(t, err, "Создание вопроса должно быть успешным")
	assert.Equal(t, uint(1), question.ID)
	assert.Equal(t, 4, question.OptionsCount())
	mockQuestionRepo.AssertExpectations(t)
}

func TestQuestionService_CreateQuestion_CorrectOptionOutOfRange(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	_, err := questionService.CreateQuestion(CreateQuestionInput{
		Text:          "Question?",
		Options:       []string{"A", "B"},
		CorrectOption: 2,
		ExamType:      "jee-main",
		Subject:       "physics",
	})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "Индекс за пределами вариантов должен давать ошибку валидации")
	mockQuestionRepo.AssertNotCalled(t, "Create")
}

func TestQuestionService_CreateQuestion_TooFewOptions(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	_, err := questionService.CreateQuestion(CreateQuestionInput{
		Text:          "Question?",
		Options:       []string{"A"},
		CorrectOption: 0,
		ExamType:      "jee-main",
		Subject:       "physics",
	})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestQuestionService_UpdateQuestion_PreservesID(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)

	existing := &entity.Question{ID: 5, Text: "Old text", Options: entity.StringArray{"A", "B"}, ExamType: "neet", Subject: "biology"}
	mockQuestionRepo.On("GetByID", uint(5)).Return(existing, nil)
	mockQuestionRepo.On("Update", mock.AnythingOfType("*entity.Question")).Return(nil)

	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	newText := "New text"
	newCorrect := 2
	updated, err := questionService.UpdateQuestion(5, UpdateQuestionInput{
		Text:          &newText,
		Options:       []string{"A", "B", "C"},
		CorrectOption: &newCorrect,
	})

	// Assert
	require.NoError(t, err, "Обновление вопроса должно быть успешным")
	assert.Equal(t, uint(5), updated.ID, "ID вопроса не должен меняться")
	assert.Equal(t, "New text", updated.Text)
	assert.Equal(t, 3, updated.OptionsCount())
	assert.Equal(t, "neet", updated.ExamType, "Непереданные поля сохраняются")
	mockQuestionRepo.AssertExpectations(t)
}

func TestQuestionService_UpdateQuestion_InvalidMergedState(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)

	existing := &entity.Question{ID: 5, Text: "Text", Options: entity.StringArray{"A", "B"}, CorrectOption: 1, ExamType: "neet", Subject: "biology"}
	mockQuestionRepo.On("GetByID", uint(5)).Return(existing, nil)

	questionService := NewQuestionService(mockQuestionRepo)

	// Act: после замены вариантов старый correct_option выходит за пределы
	outOfRange := 5
	_, err := questionService.UpdateQuestion(5, UpdateQuestionInput{
		CorrectOption: &outOfRange,
	})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	mockQuestionRepo.AssertNotCalled(t, "Update")
}

func TestQuestionService_UpdateQuestion_NotFound(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	mockQuestionRepo.On("GetByID", uint(99)).Return(nil, apperrors.ErrNotFound)

	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	newText := "Text"
	_, err := questionService.UpdateQuestion(99, UpdateQuestionInput{Text: &newText})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockQuestionRepo.AssertNotCalled(t, "Update")
}

// ============================================================================
// Тесты для ImportFromXLSX
// ============================================================================

func TestQuestionService_ImportFromXLSX_Success(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	mockQuestionRepo.On("CreateBatch", mock.AnythingOfType("[]entity.Question")).Return(nil)

	questionService := NewQuestionService(mockQuestionRepo)

	buf := buildImportXLSX(t, [][]interface{}{
		{"What is 2+2?", "3", "4", "5", "6", 2, "jee-main", "maths", "easy", 2023},
		{"Capital of France?", "Berlin", "Paris", "Rome", "Madrid", 2, "upsc", "geography", "", ""},
	})

	// Act
	result, err := questionService.ImportFromXLSX(buf)

	// Assert
	require.NoError(t, err, "Импорт валидного файла должен быть успешным")
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)

	// Номер правильного варианта в файле 1-based, в базе 0-based
	imported := mockQuestionRepo.Calls[0].Arguments.Get(0).([]entity.Question)
	require.Len(t, imported, 2)
	assert.Equal(t, 1, imported[0].CorrectOption)
	assert.Equal(t, 2023, imported[0].Year)
	mockQuestionRepo.AssertExpectations(t)
}

func TestQuestionService_ImportFromXLSX_SkipsInvalidRows(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	mockQuestionRepo.On("CreateBatch", mock.AnythingOfType("[]entity.Question")).Return(nil)

	questionService := NewQuestionService(mockQuestionRepo)

	buf := buildImportXLSX(t, [][]interface{}{
		{"Valid question?", "A", "B", "C", "D", 1, "jee-main", "physics", "", ""},
		// Номер правильного варианта за пределами вариантов
		{"Broken question?", "A", "B", "", "", 5, "jee-main", "physics", "", ""},
		// Пустой текст вопроса
		{"", "A", "B", "C", "D", 1, "jee-main", "physics", "", ""},
	})

	// Act
	result, err := questionService.ImportFromXLSX(buf)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported, "Должна импортироваться только валидная строка")
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Errors, 2, "Каждая пропущенная строка должна дать сообщение об ошибке")
}

func TestQuestionService_ImportFromXLSX_AllRowsInvalid(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	questionService := NewQuestionService(mockQuestionRepo)

	buf := buildImportXLSX(t, [][]interface{}{
		{"", "A", "B", "", "", 1, "jee-main", "physics", "", ""},
	})

	// Act
	_, err := questionService.ImportFromXLSX(buf)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "Файл без валидных строк должен давать ошибку валидации")
	mockQuestionRepo.AssertNotCalled(t, "CreateBatch")
}

func TestQuestionService_ImportFromXLSX_NotAnXLSX(t *testing.T) {
	// Arrange
	mockQuestionRepo := new(MockQuestionRepo)
	questionService := NewQuestionService(mockQuestionRepo)

	// Act
	_, err := questionService.ImportFromXLSX(bytes.NewBufferString("plain text, not a spreadsheet"))

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
