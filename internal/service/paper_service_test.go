package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// ============================================================================
// Моки для PaperService
// ============================================================================

// MockCacheRepo реализует repository.CacheRepository
type MockCacheRepo struct {
	mock.Mock
}

func (m *MockCacheRepo) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepo) Increment(key string) (int64, error) {
	args := m.Called(key)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheRepo) Expire(key string, ttl time.Duration) error {
	args := m.Called(key, ttl)
	return args.Error(0)
}

func (m *MockCacheRepo) TTL(key string) (time.Duration, error) {
	args := m.Called(key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockCacheRepo) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepo) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

// ============================================================================
// Тесты для CreatePaper
// ============================================================================

func TestPaperService_CreatePaper_Success(t *testing.T) {
	// Arrange
	mockTestRepo := new(MockTestRepoForAttemptService)
	mockCacheRepo := new(MockCacheRepo)

	mockTestRepo.On("Create", mock.AnythingOfType("*entity.PreviousTest"), []uint{1, 2, 3}).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.PreviousTest).ID = 1
	}).Return(nil)
	mockCacheRepo.On("Delete", "papers:list").Return(nil)

	paperService := NewPaperService(mockTestRepo, mockCacheRepo)

	// Act
	paper, err := paperService.CreatePaper(CreatePaperInput{
		Title:           "  JEE Main 2023 Shift 1 ",
		ExamType:        "jee-main",
		Year:            2023,
		Shift:           "morning",
		DurationMinutes: 180,
		QuestionIDs:     []uint{1, 2, 3},
	})

	// Assert
	require.NoError(t, err, "Создание теста должно быть успешным")
	assert.Equal(t, uint(1), paper.ID)
	assert.Equal(t, "JEE Main 2023 Shift 1", paper.Title, "Название должно нормализоваться")
	mockTestRepo.AssertExpectations(t)
	mockCacheRepo.AssertExpectations(t)
}

func TestPaperService_CreatePaper_NoQuestions(t *testing.T) {
	// Arrange
	mockTestRepo := new(MockTestRepoForAttemptService)
	paperService := NewPaperService(mockTestRepo, nil)

	// Act
	_, err := paperService.CreatePaper(CreatePaperInput{
		Title:    "Empty paper",
		ExamType: "jee-main",
		Year:     2023,
	})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "Тест без вопросов должен давать ошибку валидации")
	mockTestRepo.AssertNotCalled(t, "Create")
}

func TestPaperService_CreatePaper_UnknownQuestions(t *testing.T) {
	// Тест: репозиторий отклоняет ссылки на несуществующие вопросы
	mockTestRepo := new(MockTestRepoForAttemptService)

	mockTestRepo.On("Create", mock.AnythingOfType("*entity.PreviousTest"), []uint{1, 99}).
		Return(apperrors.ErrValidation)

	paperService := NewPaperService(mockTestRepo, nil)

	// Act
	_, err := paperService.CreatePaper(CreatePaperInput{
		Title:       "Paper",
		ExamType:    "jee-main",
		Year:        2023,
		QuestionIDs: []uint{1, 99},
	})

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

// ============================================================================
// Тесты для GetPaperByID / ListPapers
// ============================================================================

func TestPaperService_GetPaperByID_CacheMissThenStore(t *testing.T) {
	// Arrange
	mockTestRepo := new(MockTestRepoForAttemptService)
	mockCacheRepo := new(MockCacheRepo)

	paper := sampleTest(3)
	mockCacheRepo.On("GetJSON", "paper:1", mock.Anything).Return(apperrors.ErrNotFound)
	mockTestRepo.On("GetByID", uint(1)).Return(paper, nil)
	mockCacheRepo.On("SetJSON", "paper:1", paper, paperCacheTTL).Return(nil)

	paperService := NewPaperService(mockTestRepo, mockCacheRepo)

	// Act
	got, err := paperService.GetPaperByID(1)

	// Assert
	require.NoError(t, err, "Получение теста должно быть успешным")
	assert.Equal(t, uint(1), got.ID)
	assert.Equal(t, 3, got.QuestionCount())
	mockTestRepo.AssertExpectations(t)
	mockCacheRepo.AssertExpectations(t)
}

func TestPaperService_GetPaperByID_CacheHit(t *testing.T) {
	// Тест: при попадании в кеш база не трогается
	mockTestRepo := new(MockTestRepoForAttemptService)
	mockCacheRepo := new(MockCacheRepo)

	cached := sampleTest(2)
	mockCacheRepo.On("GetJSON", "paper:1", mock.Anything).Run(func(args mock.Arguments) {
		dest := args.Get(1).(*entity.PreviousTest)
		data, _ := json.Marshal(cached)
		_ = json.Unmarshal(data, dest)
	}).Return(nil)

	paperService := NewPaperService(mockTestRepo, mockCacheRepo)

	// Act
	got, err := paperService.GetPaperByID(1)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, cached.Title, got.Title)
	mockTestRepo.AssertNotCalled(t, "GetByID")
}

func TestPaperService_GetPaperByID_NotFound(t *testing.T) {
	// Arrange
	mockTestRepo := new(MockTestRepoForAttemptService)
	mockTestRepo.On("GetByID", uint(99)).Return(nil, apperrors.ErrNotFound)

	paperService := NewPaperService(mockTestRepo, nil)

	// Act
	_, err := paperService.GetPaperByID(99)

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPaperService_GetPaperByID_CacheFailureFallsThrough(t *testing.T) {
	// Тест: недоступный кеш не ломает чтение из базы
	mockTestRepo := new(MockTestRepoForAttemptService)
	mockCacheRepo := new(MockCacheRepo)

	paper := sampleTest(1)
	mockCacheRepo.On("GetJSON", "paper:1", mock.Anything).Return(assert.AnError)
	mockTestRepo.On("GetByID", uint(1)).Return(paper, nil)
	mockCacheRepo.On("SetJSON", "paper:1", paper, paperCacheTTL).Return(assert.AnError)

	paperService := NewPaperService(mockTestRepo, mockCacheRepo)

	// Act
	got, err := paperService.GetPaperByID(1)

	// Assert
	require.NoError(t, err, "Сбой кеша не должен проваливать запрос")
	assert.Equal(t, uint(1), got.ID)
}

func TestPaperService_ListPapers_WithoutCache(t *testing.T) {
	// Arrange
	mockTestRepo := new(MockTestRepoForAttemptService)

	papers := []entity.PreviousTest{
		{ID: 1, Title: "JEE Main 2023", ExamType: "jee-main", Year: 2023},
		{ID: 2, Title: "NEET 2022", ExamType: "neet", Year: 2022},
	}
	mockTestRepo.On("List").Return(papers, nil)

	paperService := NewPaperService(mockTestRepo, nil)

	// Act
	got, err := paperService.ListPapers()

	// Assert
	require.NoError(t, err, "Получение списка тестов должно быть успешным")
	assert.Len(t, got, 2)
	mockTestRepo.AssertExpectations(t)
}
