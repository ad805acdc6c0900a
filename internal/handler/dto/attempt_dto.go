package dto

import (
	"time"

	"github.com/yourusername/testprep-api/internal/domain/entity"
)

// AttemptAnalysis представляет сводку по одной попытке для экрана анализа
type AttemptAnalysis struct {
	AttemptNumber         int       `json:"attempt_number"`
	TestID                uint      `json:"test_id"`
	TotalCorrectAnswers   int       `json:"total_correct_answers"`
	TotalWrongAnswers     int       `json:"total_wrong_answers"`
	TotalVisitedQuestions int       `json:"total_visited_questions"`
	TotalTimeTakenMs      int64     `json:"total_time_taken_ms"`
	TotalQuestions        int       `json:"total_questions"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewAttemptAnalysis создает сводку из сохраненной попытки.
// Производные счетчики берутся из документа: шаг агрегации держит их актуальными.
func NewAttemptAnalysis(attempt *entity.AttemptedTest) AttemptAnalysis {
	return AttemptAnalysis{
		AttemptNumber:         attempt.AttemptNumber,
		TestID:                attempt.TestID,
		TotalCorrectAnswers:   attempt.TotalCorrectAnswers,
		TotalWrongAnswers:     attempt.TotalWrongAnswers,
		TotalVisitedQuestions: attempt.TotalVisitedQuestions,
		TotalTimeTakenMs:      attempt.TotalTimeTakenMs,
		TotalQuestions:        attempt.Metadata.TotalQuestions,
		CreatedAt:             attempt.CreatedAt,
	}
}
