package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskboard/internal/auth"
	"taskboard/internal/service"
)

const (
	ctxUserID  = "userID"
	ctxIsAdmin = "isAdmin"

	accessCookie  = "token"
	refreshCookie = "refreshToken"
)

// corsMiddleware grants credentialed access only to allowed origins. Others get "*" without credentials.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		allowOrigin := "*"
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
			if _, ok := origins[origin]; ok {
				allowOrigin = origin
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}).Debug("request")
	}
}

// protect resolves the session token and stores the caller on the context.
func (h *Handler) protect(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		h.unauthorized(c, "Not authorized. Try login again.", nil)
		return
	}

	userID, err := h.tokens.Parse(token)
	if err != nil {
		msg := "Not authorized. Try login again."
		if errors.Is(err, auth.ErrTokenExpired) {
			msg = "Session expired. Try login again."
		}
		h.unauthorized(c, msg, err)
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			h.unauthorized(c, "Not authorized. Try login again.", err)
			return
		}
		h.fail(c, err)
		return
	}
	if !user.IsActive {
		h.fail(c, service.ErrAccountDeactivated)
		return
	}

	c.Set(ctxUserID, user.ID)
	c.Set(ctxIsAdmin, user.IsAdmin)
	c.Next()
}

func (h *Handler) adminOnly(c *gin.Context) {
	if !c.GetBool(ctxIsAdmin) {
		h.unauthorized(c, "Not authorized as admin. Try login as admin.", nil)
		return
	}
	c.Next()
}

func (h *Handler) unauthorized(c *gin.Context, message string, cause error) {
	h.fail(c, &service.Error{Kind: service.KindAuth, Message: message, Err: cause})
}

func callerFrom(c *gin.Context) service.Caller {
	return service.Caller{
		ID:      c.GetString(ctxUserID),
		IsAdmin: c.GetBool(ctxIsAdmin),
	}
}

// bearerToken prefers an explicit Authorization header over the session cookie.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		if token := strings.TrimSpace(header[7:]); token != "" {
			return token
		}
	}
	if cookie, err := c.Cookie(accessCookie); err == nil && cookie != "" {
		return cookie
	}
	return ""
}

func (h *Handler) setAuthCookies(c *gin.Context, token, refreshToken string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(accessCookie, token, int(h.accessTTL/time.Second), "/", "", h.secureCookies, true)
	c.SetCookie(refreshCookie, refreshToken, int(h.refreshTTL/time.Second), "/", "", h.secureCookies, true)
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{accessCookie, refreshCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
