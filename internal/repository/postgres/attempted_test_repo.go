package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
)

// AttemptedTestRepo реализует repository.AttemptedTestRepository
type AttemptedTestRepo struct {
	db *gorm.DB
}

// NewAttemptedTestRepo создает новый репозиторий попыток
func NewAttemptedTestRepo(db *gorm.DB) *AttemptedTestRepo {
	return &AttemptedTestRepo{db: db}
}

// Create сохраняет новую попытку.
// Составной уникальный индекс idx_user_test_attempt гарантирует, что две
// конкурентные отправки не получат одинаковый номер попытки:
// - 23505 (unique violation) → apperrors.ErrConflict, вызывающий код перечитывает максимум и повторяет
// - Другая DB ошибка → возвращается как есть
func (r *AttemptedTestRepo) Create(attempt *entity.AttemptedTest) error {
	err := r.db.Create(attempt).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: attempt #%d for user %d, test %d",
				apperrors.ErrConflict, attempt.AttemptNumber, attempt.UserID, attempt.TestID)
		}
		return err
	}
	return nil
}

// GetByID возвращает попытку по ID
func (r *AttemptedTestRepo) GetByID(id uint) (*entity.AttemptedTest, error) {
	var attempt entity.AttemptedTest
	err := r.db.First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// GetLastAttemptNumber возвращает максимальный номер попытки для пары
// (user_id, test_id); 0, если попыток еще не было или значение некорректно
func (r *AttemptedTestRepo) GetLastAttemptNumber(userID, testID uint) (int, error) {
	var last *int
	err := r.db.Model(&entity.AttemptedTest{}).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Select("MAX(attempt_number)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if last == nil || *last < 0 {
		return 0, nil
	}
	return *last, nil
}

// GetUserAttempts возвращает все попытки пользователя по тесту, свежие первыми
func (r *AttemptedTestRepo) GetUserAttempts(userID, testID uint) ([]entity.AttemptedTest, error) {
	var attempts []entity.AttemptedTest
	err := r.db.Where("user_id = ? AND test_id = ?", userID, testID).
		Order("attempt_number DESC").
		Find(&attempts).Error
	return attempts, err
}

// Update сохраняет измененную попытку целиком
func (r *AttemptedTestRepo) Update(attempt *entity.AttemptedTest) error {
	return r.db.Save(attempt).Error
}

// UpdateDerivedTotals пишет производные поля напрямую.
// Точечный Updates не трогает answers/metadata и не запускает хуки сохранения,
// поэтому агрегация не зацикливается.
func (r *AttemptedTestRepo) UpdateDerivedTotals(id uint, correct, wrong, visited int) error {
	return r.db.Model(&entity.AttemptedTest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"total_correct_answers":   correct,
			"total_wrong_answers":     wrong,
			"total_visited_questions": visited,
		}).Error
}

// Delete удаляет попытку по ID
func (r *AttemptedTestRepo) Delete(id uint) error {
	result := r.db.Delete(&entity.AttemptedTest{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
