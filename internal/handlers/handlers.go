package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"convflow/api/internal/ai"
	"convflow/api/internal/config"
	"convflow/api/internal/convert"
	"convflow/api/internal/identity"
	"convflow/api/internal/middleware"
	"convflow/api/internal/models"
	"convflow/api/internal/repository"
	"convflow/api/internal/service"
	"convflow/api/internal/storage"
)

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	verifier    identity.Verifier
	authService *service.AuthService
	usage       *service.UsageService
	converts    *service.ConvertService
	users       *repository.UserRepository
	db          *pgxpool.Pool
	cache       *redis.Client
	conversions *repository.ConversionRepository
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	store *storage.ObjectStore,
	verifier identity.Verifier,
	engine convert.Engine,
	annotator ai.Annotator,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	conversionRepo := repository.NewConversionRepository(db)

	auth := service.NewAuthService(userRepo, sessionRepo, verifier, cfg, log)
	usage := service.NewUsageService(conversionRepo, userRepo, log)

	var archive service.DocumentArchive
	if store != nil {
		archive = store
	}
	converts := service.NewConvertService(engine, annotator, usage, archive, cfg, log)

	return HandlerSet{
		log:         log,
		cfg:         cfg,
		verifier:    verifier,
		authService: auth,
		usage:       usage,
		converts:    converts,
		users:       userRepo,
		db:          db,
		cache:       cache,
		conversions: conversionRepo,
	}
}

func (h HandlerSet) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	delegated := h.cfg.Auth.Mode == "oidc"
	authn := middleware.Auth(h.verifier, h.users, delegated)

	v1 := router.Group("/v1")
	{
		v1.GET("/formats", h.SupportedFormats)

		auth := v1.Group("/auth")
		if !delegated {
			// Password and refresh-token management exist only in local
			// mode; the identity provider owns them otherwise.
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/refresh", h.Refresh)
			auth.POST("/logout", h.Logout)
		}

		protected := v1.Group("/auth")
		protected.Use(authn)
		protected.GET("/me", h.Me)
		protected.PUT("/profile", h.UpdateProfile)
		if !delegated {
			protected.POST("/change-password", h.ChangePassword)
		}

		user := v1.Group("/user")
		user.Use(authn)
		user.GET("/usage", h.UsageStats)
		user.GET("/history", h.ConversionHistory)

		conv := v1.Group("/convert")
		conv.Use(authn)
		conv.POST("/file", h.ConvertFile)
		conv.POST("/batch", h.ConvertBatch)

		admin := v1.Group("/admin")
		admin.Use(authn, middleware.RequireRoles(models.UserRoleAdmin))
		admin.GET("/users", h.AdminListUsers)
		admin.GET("/conversions", h.AdminListConversions)
	}
}
