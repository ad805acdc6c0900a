package repository

import (
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// AttemptedTestRepository определяет методы для работы с попытками прохождения тестов
type AttemptedTestRepository interface {
	// Create сохраняет новую попытку. Возвращает apperrors.ErrConflict,
	// если номер попытки уже занят для пары (user_id, test_id).
	Create(attempt *entity.AttemptedTest) error
	GetByID(id uint) (*entity.AttemptedTest, error)
	// GetLastAttemptNumber возвращает максимальный номер попытки
	// для пары (user_id, test_id); 0, если попыток еще не было.
	GetLastAttemptNumber(userID, testID uint) (int, error)
	// GetUserAttempts возвращает все попытки пользователя по тесту,
	// отсортированные по номеру попытки по убыванию (свежие первыми).
	GetUserAttempts(userID, testID uint) ([]entity.AttemptedTest, error)
	Update(attempt *entity.AttemptedTest) error
	// UpdateDerivedTotals пишет производные поля напрямую, минуя хуки
	// и полное сохранение документа.
	UpdateDerivedTotals(id uint, correct, wrong, visited int) error
	Delete(id uint) error
}
