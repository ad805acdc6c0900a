package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Answer представляет один ответ пользователя внутри попытки.
// AnswerOptionIndex — индекс выбранного варианта (с нуля),
// TimeSpentMs — время на вопрос в миллисекундах (0, если не передано).
type Answer struct {
	QuestionID        uint  `json:"question_id"`
	AnswerOptionIndex int   `json:"answer_option_index"`
	TimeSpentMs       int64 `json:"time_spent_ms"`
}

// AnswerList - пользовательский тип для хранения списка ответов в JSONB
type AnswerList []Answer

// Scan реализует интерфейс sql.Scanner для AnswerList
func (a *AnswerList) Scan(value interface{}) error {
	if value == nil {
		*a = AnswerList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*a = AnswerList{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Value реализует интерфейс driver.Valuer для AnswerList
func (a AnswerList) Value() (driver.Value, error) {
	if a == nil || len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// TotalTimeSpent возвращает сумму времени по всем ответам в миллисекундах.
// Отсутствующее значение time_spent_ms считается нулем.
func (a AnswerList) TotalTimeSpent() int64 {
	var total int64
	for _, ans := range a {
		total += ans.TimeSpentMs
	}
	return total
}

// AttemptMetadata - денормализованный снимок состояния сессии теста на момент отправки
type AttemptMetadata struct {
	TotalQuestions    int    `json:"total_questions"`
	AnsweredQuestions []uint `json:"answered_questions"`
	VisitedQuestions  []uint `json:"visited_questions"`
	MarkedForReview   []uint `json:"marked_for_review"`
	SelectedLanguage  string `json:"selected_language"`
}

// Scan реализует интерфейс sql.Scanner для AttemptMetadata
func (m *AttemptMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = AttemptMetadata{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*m = AttemptMetadata{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// Value реализует интерфейс driver.Valuer для AttemptMetadata
func (m AttemptMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// VisitedCount возвращает количество посещенных вопросов (0, если список отсутствует)
func (m *AttemptMetadata) VisitedCount() int {
	return len(m.VisitedQuestions)
}

// AttemptedTest представляет одну завершенную попытку прохождения теста.
// AttemptNumber назначается при создании и никогда не приходит от клиента:
// для пары (user_id, test_id) номера образуют непрерывную последовательность с 1.
// Поля Total* являются производными и заполняются шагом агрегации после сохранения.
type AttemptedTest struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	UserID                uint            `gorm:"not null;index;uniqueIndex:idx_user_test_attempt" json:"user_id"`
	TestID                uint            `gorm:"not null;index;uniqueIndex:idx_user_test_attempt" json:"test_id"`
	AttemptNumber         int             `gorm:"not null;uniqueIndex:idx_user_test_attempt" json:"attempt_number"`
	Answers               AnswerList      `gorm:"type:jsonb;not null" json:"answers"`
	Metadata              AttemptMetadata `gorm:"type:jsonb;not null" json:"metadata"`
	TotalCorrectAnswers   int             `gorm:"not null;default:0" json:"total_correct_answers"`
	TotalWrongAnswers     int             `gorm:"not null;default:0" json:"total_wrong_answers"`
	TotalVisitedQuestions int             `gorm:"not null;default:0" json:"total_visited_questions"`
	TotalTimeTakenMs      int64           `gorm:"not null;default:0" json:"total_time_taken_ms"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (AttemptedTest) TableName() string {
	return "attempted_tests"
}
