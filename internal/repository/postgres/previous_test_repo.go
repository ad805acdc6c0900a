package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// PreviousTestRepo реализует repository.PreviousTestRepository
type PreviousTestRepo struct {
	db *gorm.DB
}

// NewPreviousTestRepo создает новый репозиторий тестов прошлых лет
func NewPreviousTestRepo(db *gorm.DB) *PreviousTestRepo {
	return &PreviousTestRepo{db: db}
}

// Create создает тест и привязывает к нему существующие вопросы.
// Несуществующий ID вопроса — ошибка валидации, тест не создается.
func (r *PreviousTestRepo) Create(test *entity.PreviousTest, questionIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if len(questionIDs) > 0 {
			var count int64
			if err := tx.Model(&entity.Question{}).Where("id IN ?", questionIDs).Count(&count).Error; err != nil {
				return err
			}
			if int(count) != len(questionIDs) {
				return fmt.Errorf("%w: some question ids do not exist", apperrors.ErrValidation)
			}

			var questions []entity.Question
			if err := tx.Where("id IN ?", questionIDs).Find(&questions).Error; err != nil {
				return err
			}
			test.Questions = questions
		}

		return tx.Create(test).Error
	})
}

// GetByID возвращает тест вместе с вопросами
func (r *PreviousTestRepo) GetByID(id uint) (*entity.PreviousTest, error) {
	var test entity.PreviousTest
	err := r.db.Preload("Questions").First(&test, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &test, nil
}

// List возвращает все тесты без вопросов (легкий список для каталога)
func (r *PreviousTestRepo) List() ([]entity.PreviousTest, error) {
	var tests []entity.PreviousTest
	err := r.db.Order("year DESC, id DESC").Find(&tests).Error
	return tests, err
}
