package service

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/pkg/auth"
)

// AuthService предоставляет методы для работы с аутентификацией и пользователями
type AuthService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}

	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}, nil
}

// RegisterInput содержит все данные для регистрации
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Avatar   string
	Role     string
}

// TokenPair содержит выданную пару токенов
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterUser регистрирует нового пользователя
func (s *AuthService) RegisterUser(input RegisterInput) (*entity.User, error) {
	// Нормализуем
	input.Email = normalizeEmail(input.Email)
	input.Username = strings.ToLower(strings.TrimSpace(input.Username))
	input.FullName = strings.TrimSpace(input.FullName)

	if input.Username == "" || input.Email == "" || input.FullName == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: username, email, full_name and password are required", apperrors.ErrValidation)
	}
	if !strings.Contains(input.Email, "@") {
		return nil, fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	if len(input.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", apperrors.ErrValidation)
	}
	if input.Role == "" {
		input.Role = "user"
	}
	if input.Role != "user" && input.Role != "admin" {
		return nil, fmt.Errorf("%w: role must be user or admin", apperrors.ErrValidation)
	}

	// Проверяем, существует ли пользователь с таким email
	_, err := s.userRepo.GetByEmail(input.Email)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	// Проверяем, существует ли пользователь с таким username
	_, err = s.userRepo.GetByUsername(input.Username)
	if err == nil {
		return nil, fmt.Errorf("%w: user with this username already exists", apperrors.ErrConflict)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}

	user := &entity.User{
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		Password: input.Password, // хешируется в хуке BeforeSave
		Avatar:   input.Avatar,
		Role:     input.Role,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] Зарегистрирован пользователь ID=%d (%s)", user.ID, user.Email)
	return user, nil
}

// LoginUser аутентифицирует пользователя по email или username
// и возвращает пару токенов. Выданный refresh-токен сохраняется в записи
// пользователя: при обновлении токенов присланное значение сверяется
// с сохраненным.
func (s *AuthService) LoginUser(identifier, password string) (*entity.User, *TokenPair, error) {
	user, err := s.AuthenticateUser(identifier, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[AuthService] Пользователь ID=%d (%s) успешно вошел в систему", user.ID, user.Email)
	return user, pair, nil
}

// AuthenticateUser проверяет учетные данные без создания токенов.
// В качестве идентификатора принимается email или username.
func (s *AuthService) AuthenticateUser(identifier, password string) (*entity.User, error) {
	identifier = normalizeEmail(identifier)

	var (
		user *entity.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(identifier)
	} else {
		user, err = s.userRepo.GetByUsername(identifier)
	}
	if err != nil {
		log.Printf("[AuthService] Пользователь %s не найден: %v", identifier, err)
		// Возвращаем стандартную ошибку, не раскрывая причину
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	if !user.CheckPassword(password) {
		log.Printf("[AuthService] Неверный пароль для пользователя %s", identifier)
		return nil, fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	return user, nil
}

// RefreshTokens обновляет пару токенов, используя refresh-токен.
// Токен должен быть валидным и совпадать с сохраненным у пользователя:
// повторное использование уже замененного токена отклоняется.
func (s *AuthService) RefreshTokens(refreshToken string) (*entity.User, *TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, fmt.Errorf("%w: refresh token is required", apperrors.ErrUnauthorized)
	}

	claims, err := s.jwtService.ParseRefreshToken(refreshToken)
	if err != nil {
		log.Printf("[AuthService] Невалидный refresh-токен: %v", err)
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user no longer exists", apperrors.ErrUnauthorized)
		}
		return nil, nil, err
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		log.Printf("[AuthService] Refresh-токен пользователя ID=%d не совпадает с сохраненным", user.ID)
		return nil, nil, fmt.Errorf("%w: refresh token is expired or already used", apperrors.ErrUnauthorized)
	}

	pair, err := s.issueTokenPair(user)
	if err != nil {
		return nil, nil, err
	}

	log.Printf("[AuthService] Токены успешно обновлены для пользователя ID=%d", user.ID)
	return user, pair, nil
}

// issueTokenPair выпускает пару токенов и сохраняет refresh-токен у пользователя
func (s *AuthService) issueTokenPair(user *entity.User) (*TokenPair, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации access-токена для пользователя ID=%d: %v", user.ID, err)
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		log.Printf("[AuthService] Ошибка генерации refresh-токена для пользователя ID=%d: %v", user.ID, err)
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.userRepo.UpdateRefreshToken(user.ID, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// LogoutUser стирает сохраненный refresh-токен пользователя,
// делая дальнейшее обновление токенов невозможным
func (s *AuthService) LogoutUser(userID uint) error {
	if err := s.userRepo.UpdateRefreshToken(userID, ""); err != nil {
		log.Printf("[AuthService] Ошибка очистки refresh-токена пользователя ID=%d: %v", userID, err)
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	log.Printf("[AuthService] Пользователь ID=%d вышел из системы", userID)
	return nil
}

// ChangePassword изменяет пароль пользователя и отзывает refresh-токен
func (s *AuthService) ChangePassword(userID uint, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: new password must be at least 6 characters", apperrors.ErrValidation)
	}

	// Получаем пользователя для проверки старого пароля
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return err
	}

	if !user.CheckPassword(oldPassword) {
		return fmt.Errorf("%w: incorrect old password", apperrors.ErrUnauthorized)
	}

	// UserRepo.UpdatePassword выполняет хеширование и использует прямой
	// SQL-запрос для обхода хука BeforeSave и предотвращения двойного хеширования
	if err := s.userRepo.UpdatePassword(userID, newPassword); err != nil {
		return err
	}

	// Отзываем refresh-токен: после смены пароля требуется повторный вход
	return s.LogoutUser(userID)
}

// GetUserByID возвращает пользователя по ID
func (s *AuthService) GetUserByID(userID uint) (*entity.User, error) {
	return s.userRepo.GetByID(userID)
}

// UpdateAccountInput содержит обновляемые поля профиля.
// Nil-поле означает "не менять".
type UpdateAccountInput struct {
	FullName   *string
	Avatar     *string
	CoverImage *string
}

// UpdateAccount обновляет профиль пользователя
func (s *AuthService) UpdateAccount(userID uint, input UpdateAccountInput) (*entity.User, error) {
	updates := map[string]interface{}{}
	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", apperrors.ErrValidation)
		}
		updates["full_name"] = name
	}
	if input.Avatar != nil {
		updates["avatar"] = *input.Avatar
	}
	if input.CoverImage != nil {
		updates["cover_image"] = *input.CoverImage
	}

	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", apperrors.ErrValidation)
	}

	if err := s.userRepo.UpdateProfile(userID, updates); err != nil {
		return nil, err
	}

	return s.userRepo.GetByID(userID)
}

// normalizeEmail приводит email к стандартному виду: trim пробелов + lowercase
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
