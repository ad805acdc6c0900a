package repository

import (
	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// QuestionFilter задает необязательные критерии выборки вопросов
type QuestionFilter struct {
	ExamType string
	Subject  string
}

// QuestionRepository определяет методы для работы с банком вопросов
type QuestionRepository interface {
	Create(question *entity.Question) error
	CreateBatch(questions []entity.Question) error
	GetByID(id uint) (*entity.Question, error)
	GetByIDs(ids []uint) ([]entity.Question, error)
	List(filter QuestionFilter) ([]entity.Question, error)
	Update(question *entity.Question) error
	Delete(id uint) error
}
