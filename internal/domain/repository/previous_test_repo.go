package repository

import (
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// PreviousTestRepository определяет методы для работы с тестами прошлых лет
type PreviousTestRepository interface {
	Create(test *entity.PreviousTest, questionIDs []uint) error
	// GetByID возвращает тест вместе с вопросами
	GetByID(id uint) (*entity.PreviousTest, error)
	List() ([]entity.PreviousTest, error)
}
