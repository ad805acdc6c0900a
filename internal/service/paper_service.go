package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// paperCacheTTL задает срок жизни кеша теста. Состав вопросов теста
// меняется редко, поэтому TTL достаточно длинный.
const paperCacheTTL = 15 * time.Minute

// paperListCacheKey - ключ кеша списка тестов
const paperListCacheKey = "papers:list"

// PaperService реализует бизнес-логику тестов прошлых лет
type PaperService struct {
	testRepo  repository.PreviousTestRepository
	cacheRepo repository.CacheRepository
}

// NewPaperService создает новый сервис тестов.
// cacheRepo может быть nil - тогда кеширование отключено.
func NewPaperService(testRepo repository.PreviousTestRepository, cacheRepo repository.CacheRepository) *PaperService {
	return &PaperService{
		testRepo:  testRepo,
		cacheRepo: cacheRepo,
	}
}

// CreatePaperInput содержит данные нового теста
type CreatePaperInput struct {
	Title           string
	ExamType        string
	Year            int
	Shift           string
	DurationMinutes int
	QuestionIDs     []uint
}

// CreatePaper сохраняет тест и связывает его с вопросами банка.
// Все перечисленные вопросы должны существовать.
func (s *PaperService) CreatePaper(input CreatePaperInput) (*entity.PreviousTest, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.ExamType = strings.TrimSpace(input.ExamType)

	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.ExamType == "" {
		return nil, fmt.Errorf("%w: exam_type is required", apperrors.ErrValidation)
	}
	if input.Year == 0 {
		return nil, fmt.Errorf("%w: year is required", apperrors.ErrValidation)
	}
	if len(input.QuestionIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one question is required", apperrors.ErrValidation)
	}

	test := &entity.PreviousTest{
		Title:           input.Title,
		ExamType:        input.ExamType,
		Year:            input.Year,
		Shift:           strings.TrimSpace(input.Shift),
		DurationMinutes: input.DurationMinutes,
	}

	if err := s.testRepo.Create(test, input.QuestionIDs); err != nil {
		return nil, err
	}

	// Свежесозданный тест мог попасть в кеш списка - сбрасываем
	s.invalidateListCache()

	return test, nil
}

// GetPaperByID возвращает тест с вопросами, используя кеш
func (s *PaperService) GetPaperByID(id uint) (*entity.PreviousTest, error) {
	cacheKey := paperCacheKey(id)

	if s.cacheRepo != nil {
		var cached entity.PreviousTest
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			// Кеш недоступен - идем в базу, но логируем
			log.Printf("[PaperService] Ошибка чтения кеша %s: %v", cacheKey, err)
		}
	}

	test, err := s.testRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: test paper #%d", apperrors.ErrNotFound, id)
		}
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(cacheKey, test, paperCacheTTL); err != nil {
			log.Printf("[PaperService] Ошибка записи кеша %s: %v", cacheKey, err)
		}
	}

	return test, nil
}

// ListPapers возвращает все тесты без вопросов, используя кеш
func (s *PaperService) ListPapers() ([]entity.PreviousTest, error) {
	if s.cacheRepo != nil {
		var cached []entity.PreviousTest
		if err := s.cacheRepo.GetJSON(paperListCacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[PaperService] Ошибка чтения кеша %s: %v", paperListCacheKey, err)
		}
	}

	tests, err := s.testRepo.List()
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(paperListCacheKey, tests, paperCacheTTL); err != nil {
			log.Printf("[PaperService] Ошибка записи кеша %s: %v", paperListCacheKey, err)
		}
	}

	return tests, nil
}

// paperCacheKey формирует ключ кеша для теста
func paperCacheKey(id uint) string {
	return fmt.Sprintf("paper:%d", id)
}

// invalidateListCache сбрасывает кеш списка тестов
func (s *PaperService) invalidateListCache() {
	if s.cacheRepo == nil {
		return
	}
	if err := s.cacheRepo.Delete(paperListCacheKey); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[PaperService] Ошибка сброса кеша списка тестов: %v", err)
	}
}
