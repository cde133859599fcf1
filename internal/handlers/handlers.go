package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"greenmart/api/internal/apperr"
	"greenmart/api/internal/cache"
	"greenmart/api/internal/config"
	"greenmart/api/internal/mail"
	"greenmart/api/internal/middleware"
	"greenmart/api/internal/repository"
	"greenmart/api/internal/security"
	"greenmart/api/internal/service"
	"greenmart/api/internal/storage"
	"greenmart/api/internal/templates"
)

type HandlerSet struct {
	log     zerolog.Logger
	cfg     *config.AppConfig
	auth    *service.AuthService
	catalog *service.CatalogService
	issuer  *security.TokenIssuer
	users   *repository.UserRepository
	tokens  *repository.TokenRepository
	db      *pgxpool.Pool
	cache   *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) (HandlerSet, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return HandlerSet{}, fmt.Errorf("init templates: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	issuer := security.NewTokenIssuer(cfg.Security)

	auth := service.NewAuthService(service.AuthServiceDeps{
		Users:           userRepo,
		Tokens:          tokenRepo,
		Pending:         cache.NewPendingStore(redisClient),
		Issuer:          issuer,
		Mailer:          mail.NewMailer(cfg.SMTP),
		Renderer:        renderer,
		Avatars:         store,
		VerificationTTL: cfg.Security.VerificationTTL,
		MaxResends:      cfg.Security.MaxResends,
		Log:             log,
	})
	catalog := service.NewCatalogService(productRepo, log)

	return HandlerSet{
		log:     log,
		cfg:     cfg,
		auth:    auth,
		catalog: catalog,
		issuer:  issuer,
		users:   userRepo,
		tokens:  tokenRepo,
		db:      db,
		cache:   redisClient,
	}, nil
}

// TokenRepo exposes the refresh-token repository for the purge job.
func (h HandlerSet) TokenRepo() *repository.TokenRepository { return h.tokens }

func (h HandlerSet) Mount(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/register/google", h.RegisterGoogle)
		auth.POST("/verify", h.VerifyEmail)
		auth.POST("/verify/code", h.VerifyCode)
		auth.POST("/resend", h.Resend)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/forgot-password", h.ForgotPassword)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.issuer, h.users))
		protected.GET("/me", h.Me)
		protected.POST("/change-password", h.ChangePassword)
		protected.PUT("/me/avatar", h.UpdateAvatar)

		product := v1.Group("/product")
		product.GET("/catalog", h.Catalog)
		product.GET("/search/suggestions", h.Suggestions)
		product.POST("/compare", h.Compare)
		product.GET("/stats", h.Stats)
		product.POST("/import", h.Import)
		product.POST("/subscribe", h.Subscribe)
		product.GET("/:id", h.ProductDetail)
		product.GET("/:id/recommended", h.Recommended)
		product.GET("/:id/prices", h.VariationPrices)
	}
}

// respondError maps a service error onto its HTTP status. Unclassified
// errors are logged with their cause and reported generically.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		h.log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
	}
	c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
}
