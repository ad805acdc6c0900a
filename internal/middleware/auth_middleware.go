package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/domain/repository"
	"github.com/yourusername/testprep-api/pkg/auth"
	"github.com/yourusername/testprep-api/pkg/auth/manager"
)

// Ключи контекста Gin, под которыми middleware публикует аутентифицированного пользователя
const (
	ContextUserIDKey = "user_id"
	ContextUserKey   = "current_user"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService   *auth.JWTService
	tokenManager *manager.TokenManager
	userRepo     repository.UserRepository
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService, tokenManager *manager.TokenManager, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService:   jwtService,
		tokenManager: tokenManager,
		userRepo:     userRepo,
	}
}

// RequireAuth проверяет, аутентифицирован ли пользователь.
// Токен берется из куки accessToken, затем из заголовка Authorization: Bearer.
// При успехе пользователь (без пароля и refresh-токена) кладется в контекст.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := m.tokenManager.GetAccessTokenFromCookie(c.Request)
		if err != nil {
			// Куки нет — проверяем заголовок для мобильных клиентов
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
				c.Abort()
				return
			}

			// Проверяем формат заголовка Bearer {token}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}", "error_type": "token_format"})
				c.Abort()
				return
			}
			token = parts[1]
		}

		// Проверяем токен
		claims, err := m.jwtService.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "error_type": "token_invalid"})
			c.Abort()
			return
		}

		// Убеждаемся, что пользователь все еще существует
		user, err := m.userRepo.GetByID(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid access token: user not found", "error_type": "user_not_found"})
			c.Abort()
			return
		}
		user.Sanitize()

		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)

		c.Next()
	}
}

// RequireRole проверяет, что роль пользователя входит в список разрешенных.
// Должен применяться ПОСЛЕ RequireAuth.
func (m *AuthMiddleware) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := CurrentUser(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		for _, role := range allowedRoles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have the required permissions"})
		c.Abort()
	}
}

// CurrentUser возвращает аутентифицированного пользователя из контекста Gin
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*entity.User)
	return user, ok
}
