package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// maxAttemptNumberRetries ограничивает число повторов при гонке за номер попытки.
// Конфликт возможен только при конкурентной отправке одним пользователем
// одного теста, поэтому больше пары повторов не требуется.
const maxAttemptNumberRetries = 3

// AttemptService реализует бизнес-логику попыток прохождения тестов:
// назначение номера попытки, подсчет результатов и анализ по прошлым попыткам
type AttemptService struct {
	attemptRepo  repository.AttemptedTestRepository
	testRepo     repository.PreviousTestRepository
	questionRepo repository.QuestionRepository
}

// NewAttemptService создает новый сервис попыток
func NewAttemptService(
	attemptRepo repository.AttemptedTestRepository,
	testRepo repository.PreviousTestRepository,
	questionRepo repository.QuestionRepository,
) *AttemptService {
	return &AttemptService{
		attemptRepo:  attemptRepo,
		testRepo:     testRepo,
		questionRepo: questionRepo,
	}
}

// SubmitTestInput содержит данные отправки теста.
// Номер попытки клиент не передает никогда - он назначается сервисом.
type SubmitTestInput struct {
	PaperID  uint
	Answers  entity.AnswerList
	Metadata entity.AttemptMetadata
}

// SubmitTest сохраняет новую попытку прохождения теста.
// Общее время считается как сумма time_spent_ms по ответам (отсутствующее
// значение дает 0), total_questions в метаданных берется из теста, если
// клиент не прислал свое значение.
func (s *AttemptService) SubmitTest(userID uint, input SubmitTestInput) (*entity.AttemptedTest, error) {
	if input.PaperID == 0 {
		return nil, fmt.Errorf("%w: paper_id is required", apperrors.ErrValidation)
	}
	// nil отличает отсутствующее поле answers от явного пустого списка
	if input.Answers == nil {
		return nil, fmt.Errorf("%w: answers are required", apperrors.ErrValidation)
	}
	if input.Metadata.SelectedLanguage == "" {
		return nil, fmt.Errorf("%w: selected_language is required in metadata", apperrors.ErrValidation)
	}

	// Тест должен существовать; ErrNotFound уходит клиенту как 404
	test, err := s.testRepo.GetByID(input.PaperID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: test paper #%d", apperrors.ErrNotFound, input.PaperID)
		}
		return nil, err
	}

	meta := input.Metadata
	// Значение клиента имеет приоритет над количеством вопросов теста
	if meta.TotalQuestions == 0 {
		meta.TotalQuestions = test.QuestionCount()
	}

	attempt := &entity.AttemptedTest{
		UserID:           userID,
		TestID:           input.PaperID,
		Answers:          input.Answers,
		Metadata:         meta,
		TotalTimeTakenMs: input.Answers.TotalTimeSpent(),
	}

	if err := s.createWithNextAttemptNumber(attempt); err != nil {
		return nil, err
	}

	// Пост-коммитный шаг: ошибки агрегации логируются и не влияют на ответ клиенту
	s.aggregateScores(attempt)

	return attempt, nil
}

// createWithNextAttemptNumber назначает номер попытки и сохраняет документ.
// Последовательность "прочитать максимум - записать максимум+1" закрыта
// составным уникальным индексом: при конфликте номер перечитывается.
func (s *AttemptService) createWithNextAttemptNumber(attempt *entity.AttemptedTest) error {
	for i := 0; i < maxAttemptNumberRetries; i++ {
		last, err := s.attemptRepo.GetLastAttemptNumber(attempt.UserID, attempt.TestID)
		if err != nil {
			return err
		}
		attempt.AttemptNumber = last + 1

		err = s.attemptRepo.Create(attempt)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrConflict) {
			log.Printf("[AttemptService] Номер попытки %d уже занят (user=%d, test=%d), перечитываем максимум",
				attempt.AttemptNumber, attempt.UserID, attempt.TestID)
			continue
		}
		return err
	}

	return fmt.Errorf("%w: failed to assign attempt number after %d retries", apperrors.ErrConflict, maxAttemptNumberRetries)
}

// aggregateScores вычисляет производные счетчики и пишет их напрямую в документ.
// Сбой на любом шаге логируется и проглатывается: попытка остается сохраненной
// с теми значениями, которые успели записаться.
func (s *AttemptService) aggregateScores(attempt *entity.AttemptedTest) {
	correct, wrong, err := s.scoreAnswers(attempt.Answers)
	if err != nil {
		log.Printf("[AttemptService] Ошибка подсчета результатов попытки #%d: %v", attempt.ID, err)
		return
	}
	visited := attempt.Metadata.VisitedCount()

	if err := s.attemptRepo.UpdateDerivedTotals(attempt.ID, correct, wrong, visited); err != nil {
		log.Printf("[AttemptService] Ошибка записи производных полей попытки #%d: %v", attempt.ID, err)
		return
	}

	// Обновляем копию в памяти, чтобы ответ клиенту содержал свежие значения
	attempt.TotalCorrectAnswers = correct
	attempt.TotalWrongAnswers = wrong
	attempt.TotalVisitedQuestions = visited
}

// scoreAnswers сравнивает ответы с правильными вариантами вопросов.
// Ответ на несуществующий вопрос не учитывается ни в одном счетчике.
func (s *AttemptService) scoreAnswers(answers entity.AnswerList) (correct, wrong int, err error) {
	if len(answers) == 0 {
		return 0, 0, nil
	}

	ids := make([]uint, 0, len(answers))
	for _, answer := range answers {
		ids = append(ids, answer.QuestionID)
	}

	questions, err := s.questionRepo.GetByIDs(ids)
	if err != nil {
		return 0, 0, err
	}

	byID := make(map[uint]*entity.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	for _, answer := range answers {
		question, ok := byID[answer.QuestionID]
		if !ok {
			continue
		}
		if question.IsCorrect(answer.AnswerOptionIndex) {
			correct++
		} else {
			wrong++
		}
	}
	return correct, wrong, nil
}

// GetAttemptByID возвращает попытку по ID
func (s *AttemptService) GetAttemptByID(id uint) (*entity.AttemptedTest, error) {
	attempt, err := s.attemptRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: attempted test #%d", apperrors.ErrNotFound, id)
		}
		return nil, err
	}
	return attempt, nil
}

// GetTestAnalysis возвращает сводки по всем попыткам пользователя для теста,
// свежие попытки первыми
func (s *AttemptService) GetTestAnalysis(userID, testID uint) ([]dto.AttemptAnalysis, error) {
	if testID == 0 {
		return nil, fmt.Errorf("%w: paper_id is required", apperrors.ErrValidation)
	}

	attempts, err := s.attemptRepo.GetUserAttempts(userID, testID)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, fmt.Errorf("%w: no attempted tests for user %d and test %d", apperrors.ErrNotFound, userID, testID)
	}

	analyses := make([]dto.AttemptAnalysis, len(attempts))
	for i := range attempts {
		analyses[i] = dto.NewAttemptAnalysis(&attempts[i])
	}
	return analyses, nil
}

// UpdateTestResults заменяет ответы и метаданные попытки, пересчитывает
// общее время (та же нулевая подстановка time_spent_ms, что и при отправке)
// и запускает переагрегацию счетчиков
func (s *AttemptService) UpdateTestResults(attemptedTestID uint, answers entity.AnswerList, metadata entity.AttemptMetadata) (*entity.AttemptedTest, error) {
	if answers == nil {
		return nil, fmt.Errorf("%w: answers are required", apperrors.ErrValidation)
	}

	attempt, err := s.attemptRepo.GetByID(attemptedTestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: attempted test #%d", apperrors.ErrNotFound, attemptedTestID)
		}
		return nil, err
	}

	attempt.Answers = answers
	attempt.Metadata = metadata
	attempt.TotalTimeTakenMs = answers.TotalTimeSpent()

	if err := s.attemptRepo.Update(attempt); err != nil {
		return nil, err
	}

	s.aggregateScores(attempt)

	return attempt, nil
}

// DeleteTestResults удаляет попытку и возвращает удаленный документ
func (s *AttemptService) DeleteTestResults(attemptedTestID uint) (*entity.AttemptedTest, error) {
	attempt, err := s.attemptRepo.GetByID(attemptedTestID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: attempted test #%d", apperrors.ErrNotFound, attemptedTestID)
		}
		return nil, err
	}

	if err := s.attemptRepo.Delete(attemptedTestID); err != nil {
		return nil, err
	}

	return attempt, nil
}
