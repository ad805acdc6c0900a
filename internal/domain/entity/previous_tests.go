package entity

import (
	"time"
)

// PreviousTest представляет тест по материалам прошлых лет
type PreviousTest struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	ExamType        string     `gorm:"size:50;not null;index" json:"exam_type"`
	Year            int        `gorm:"not null;default:0" json:"year"`
	Shift           string     `gorm:"size:50;not null;default:''" json:"shift"`
	DurationMinutes int        `gorm:"not null;default:180" json:"duration_minutes"`
	Questions       []Question `gorm:"many2many:previous_test_questions" json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (PreviousTest) TableName() string {
	return "previous_tests"
}

// QuestionCount возвращает количество вопросов в тесте
func (t *PreviousTest) QuestionCount() int {
	return len(t.Questions)
}
