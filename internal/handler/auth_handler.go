package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/internal/middleware"
	apperrors "github.com/yourusername/testprep-api/internal/pkg/errors"
	"github.com/yourusername/testprep-api/internal/service"
	"github.com/yourusername/testprep-api/pkg/auth/manager"
)

// AuthHandler обрабатывает запросы, связанные с аутентификацией
type AuthHandler struct {
	authService  *service.AuthService
	tokenManager *manager.TokenManager
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService *service.AuthService, tokenManager *manager.TokenManager) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		tokenManager: tokenManager,
	}
}

// Структуры запросов

// RegisterRequest представляет запрос на регистрацию
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required,max=100"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	Avatar   string `json:"avatar" binding:"omitempty,max=255"`
	Role     string `json:"role" binding:"omitempty,oneof=user admin"`
}

// LoginRequest представляет запрос на вход:
// принимается email или username
type LoginRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Username string `json:"username" binding:"omitempty,min=3,max=50"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest представляет запрос на изменение пароля
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// UpdateAccountRequest представляет запрос на обновление профиля.
// Отсутствующее поле не меняется.
type UpdateAccountRequest struct {
	FullName   *string `json:"full_name" binding:"omitempty,max=100"`
	Avatar     *string `json:"avatar" binding:"omitempty,max=255"`
	CoverImage *string `json:"cover_image" binding:"omitempty,max=255"`
}

// Register обрабатывает запрос на регистрацию
// POST /api/v1/users/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	user, err := h.authService.RegisterUser(service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Avatar:   req.Avatar,
		Role:     req.Role,
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	log.Printf("[AuthHandler] Пользователь ID=%d (%s) успешно зарегистрирован", user.ID, user.Email)

	user.Sanitize()
	c.JSON(http.StatusCreated, dto.NewAPIResponse(http.StatusCreated, user, "User registered successfully"))
}

// Login обрабатывает запрос на вход.
// Выданные токены устанавливаются в HttpOnly куки и дублируются в теле ответа.
// POST /api/v1/users/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	identifier := req.Email
	if identifier == "" {
		identifier = req.Username
	}
	if identifier == "" {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, "email or username is required"))
		return
	}

	user, pair, err := h.authService.LoginUser(identifier, req.Password)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.tokenManager.SetAccessTokenCookie(c.Writer, pair.AccessToken)
	h.tokenManager.SetRefreshTokenCookie(c.Writer, pair.RefreshToken)

	user.Sanitize()
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "Logged in successfully"))
}

// RefreshToken обновляет пару токенов.
// Refresh-токен берется из HttpOnly куки или из тела запроса.
// POST /api/v1/users/refresh-token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	refreshToken, err := h.tokenManager.GetRefreshTokenFromCookie(c.Request)
	if err != nil {
		// Fallback на тело запроса для мобильных клиентов без кук
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil || req.RefreshToken == "" {
			h.handleAuthError(c, apperrors.ErrUnauthorized)
			return
		}
		refreshToken = req.RefreshToken
	}

	_, pair, err := h.authService.RefreshTokens(refreshToken)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.tokenManager.SetAccessTokenCookie(c.Writer, pair.AccessToken)
	h.tokenManager.SetRefreshTokenCookie(c.Writer, pair.RefreshToken)

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}, "Tokens refreshed successfully"))
}

// Logout отзывает refresh-токен и очищает куки
// POST /api/v1/users/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAuthError(c, apperrors.ErrUnauthorized)
		return
	}

	if err := h.authService.LogoutUser(user.ID); err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.tokenManager.ClearAuthCookies(c.Writer)
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, nil, "Logged out successfully"))
}

// ChangePassword изменяет пароль текущего пользователя
// POST /api/v1/users/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAuthError(c, apperrors.ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	if err := h.authService.ChangePassword(user.ID, req.OldPassword, req.NewPassword); err != nil {
		h.handleAuthError(c, err)
		return
	}

	// После смены пароля сессия завершается
	h.tokenManager.ClearAuthCookies(c.Writer)
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, nil, "Password changed successfully"))
}

// CurrentUser возвращает профиль текущего пользователя
// GET /api/v1/users/current-user
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAuthError(c, apperrors.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, user, "Current user fetched successfully"))
}

// UpdateAccount обновляет профиль текущего пользователя
// PATCH /api/v1/users/update-account
func (h *AuthHandler) UpdateAccount(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		h.handleAuthError(c, apperrors.ErrUnauthorized)
		return
	}

	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
		return
	}

	updated, err := h.authService.UpdateAccount(user.ID, service.UpdateAccountInput{
		FullName:   req.FullName,
		Avatar:     req.Avatar,
		CoverImage: req.CoverImage,
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	updated.Sanitize()
	c.JSON(http.StatusOK, dto.NewAPIResponse(http.StatusOK, updated, "Account updated successfully"))
}

// handleAuthError преобразует ошибки сервиса в HTTP-статусы
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse(http.StatusBadRequest, err.Error()))
	case errors.Is(err, apperrors.ErrUnauthorized), errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(http.StatusUnauthorized, err.Error()))
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(http.StatusNotFound, err.Error()))
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, dto.NewErrorResponse(http.StatusConflict, err.Error()))
	default:
		log.Printf("[AuthHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(http.StatusInternalServerError, "Internal server error"))
	}
}
