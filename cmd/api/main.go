package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/testprep-api/internal/config"
	"github.com/yourusername/testprep-api/internal/handler"
	"github.com/yourusername/testprep-api/internal/middleware"
	pgRepo "github.com/yourusername/testprep-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/testprep-api/internal/repository/redis"
	"github.com/yourusername/testprep-api/internal/service"
	"github.com/yourusername/testprep-api/pkg/auth"
	"github.com/yourusername/testprep-api/pkg/auth/manager"
	"github.com/yourusername/testprep-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	userRepo := pgRepo.NewUserRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	previousTestRepo := pgRepo.NewPreviousTestRepo(db)
	attemptedTestRepo := pgRepo.NewAttemptedTestRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// --- Инициализация JWTService и TokenManager ---

	accessExpiry := time.Duration(cfg.JWT.AccessExpiryHrs) * time.Hour
	refreshExpiry := time.Duration(cfg.JWT.RefreshExpiryHrs) * time.Hour

	jwtService, err := auth.NewJWTService(cfg.JWT.AccessTokenSecret, cfg.JWT.RefreshTokenSecret, accessExpiry, refreshExpiry)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	tokenManager := manager.NewTokenManager(jwtService.AccessExpiry(), jwtService.RefreshExpiry())

	isProduction := gin.Mode() == gin.ReleaseMode
	tokenManager.SetProductionMode(isProduction) // Secure куки только в продакшене

	// SameSite=None требует Secure=true, поэтому в разработке остаемся на Lax
	sameSitePolicy := http.SameSiteLaxMode
	if isProduction {
		sameSitePolicy = http.SameSiteNoneMode
	}
	tokenManager.SetCookieAttributes("/", "", isProduction, true, sameSitePolicy)

	// Инициализируем сервисы
	authService, err := service.NewAuthService(userRepo, jwtService)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}
	questionService := service.NewQuestionService(questionRepo)
	paperService := service.NewPaperService(previousTestRepo, cacheRepo)
	attemptService := service.NewAttemptService(attemptedTestRepo, previousTestRepo, questionRepo)

	// Инициализируем обработчики
	authHandler := handler.NewAuthHandler(authService, tokenManager)
	questionHandler := handler.NewQuestionHandler(questionService)
	paperHandler := handler.NewPaperHandler(paperService)
	attemptHandler := handler.NewAttemptHandler(attemptService)

	// Инициализируем middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService, tokenManager, userRepo)
	rateLimiter := middleware.NewRateLimiter(cacheRepo)

	// Инициализируем роутер Gin
	router := gin.Default()

	// Настройка доверенных прокси для корректной работы c.ClientIP()
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Настраиваем маршруты API
	api := router.Group("/api/v1")
	{
		// Пользователи и аутентификация
		users := api.Group("/users")
		{
			users.POST("/register", rateLimiter.Limit(middleware.DefaultAuthRateLimitConfig()), authHandler.Register)
			users.POST("/login", rateLimiter.Limit(middleware.StrictAuthRateLimitConfig()), authHandler.Login)
			users.POST("/refresh-token", authHandler.RefreshToken)

			authedUsers := users.Group("")
			authedUsers.Use(authMiddleware.RequireAuth())
			{
				authedUsers.POST("/logout", authHandler.Logout)
				authedUsers.POST("/change-password", authHandler.ChangePassword)
				authedUsers.GET("/current-user", authHandler.CurrentUser)
				authedUsers.PATCH("/update-account", authHandler.UpdateAccount)
			}
		}

		// Банк вопросов
		questions := api.Group("/questions")
		questions.Use(authMiddleware.RequireAuth())
		{
			questions.GET("/get", questionHandler.GetQuestions)
			questions.GET("/get/:questionId", middleware.ExtractUintParam("questionId", "questionID"), questionHandler.GetQuestionByID)

			adminQuestions := questions.Group("")
			adminQuestions.Use(authMiddleware.RequireRole("admin"))
			{
				adminQuestions.POST("/upload", questionHandler.UploadQuestion)
				adminQuestions.POST("/import", questionHandler.ImportQuestions)
				adminQuestions.PATCH("/update/:questionId", middleware.ExtractUintParam("questionId", "questionID"), questionHandler.UpdateQuestion)
				adminQuestions.DELETE("/delete/:questionId", middleware.ExtractUintParam("questionId", "questionID"), questionHandler.DeleteQuestion)
			}
		}

		// Тесты прошлых лет: чтение публичное, добавление только для админов
		papers := api.Group("/previous-year-papers")
		{
			papers.GET("/get", paperHandler.GetPapers)
			papers.GET("/get/:paperId", middleware.ExtractUintParam("paperId", "paperID"), paperHandler.GetPaperByID)

			adminPapers := papers.Group("")
			adminPapers.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole("admin"))
			{
				adminPapers.POST("/add", paperHandler.AddPaper)
			}
		}

		// Попытки прохождения тестов
		attempts := api.Group("/attempted-tests")
		attempts.Use(authMiddleware.RequireAuth())
		{
			attempts.POST("/submit", attemptHandler.SubmitTest)
			attempts.GET("/analysis", attemptHandler.GetTestAnalysis)
			attempts.GET("/analysis/export", attemptHandler.ExportTestAnalysis)
			attempts.PUT("/update", attemptHandler.UpdateTestResults)
			attempts.DELETE("/delete/:attemptedTestId",
				middleware.ExtractUintParam("attemptedTestId", "attemptedTestID"),
				attemptHandler.DeleteTestResults)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}

	log.Println("Server exited properly")
}
