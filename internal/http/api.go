package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskboard/internal/service"
)

// TokenParser resolves a session token to a user id.
type TokenParser interface {
	Parse(token string) (string, error)
}

type Config struct {
	Users         service.UserService
	Notices       service.NoticeService
	Tokens        TokenParser
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SecureCookies bool
	Logger        *logrus.Logger

	// AllowedOrigins may send credentialed cross-origin requests.
	AllowedOrigins []string
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	users          service.UserService
	notices        service.NoticeService
	tokens         TokenParser
	accessTTL      time.Duration
	refreshTTL     time.Duration
	secureCookies  bool
	allowedOrigins []string
	logger         *logrus.Logger
}

func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Handler{
		users:          cfg.Users,
		notices:        cfg.Notices,
		tokens:         cfg.Tokens,
		accessTTL:      cfg.AccessTTL,
		refreshTTL:     cfg.RefreshTTL,
		secureCookies:  cfg.SecureCookies,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         cfg.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.logger))
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(corsMiddleware(h.allowedOrigins))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		api.PUT("/update-profile", h.protect, h.updateProfile)
		api.PUT("/change-password", h.protect, h.changePassword)
		api.PUT("/activate/:id", h.protect, h.adminOnly, h.activateUser)

		user := api.Group("/user")
		user.POST("/register", h.register)
		user.POST("/login", h.login)
		user.POST("/logout", h.logout)

		user.GET("/team", h.protect, h.teamList)
		user.GET("/notifications", h.protect, h.notificationsList)
		user.PUT("/read-noti", h.protect, h.markNotificationRead)
		user.PUT("/profile", h.protect, h.updateProfile)
		user.PUT("/change-password", h.protect, h.changePassword)

		user.PUT("/:id", h.protect, h.adminOnly, h.activateUser)
		user.DELETE("/:id", h.protect, h.adminOnly, h.deleteUser)
	}
}

// fail converts a service error to the uniform {status:false, message} body.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	entry := h.logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"status": status,
		"kind":   kind.String(),
	}).WithError(err)
	if kind == service.KindInternal {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}

	c.AbortWithStatusJSON(status, gin.H{"status": false, "message": service.MessageOf(err)})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindAuth:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"status": false, "message": message})
}
