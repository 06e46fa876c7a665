// Package api wires the public JSON routes: auth, chat, and payments.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/config"
	"github.com/inkawebai/inkaweb-backend/internal/http/api/handlers"
	"github.com/inkawebai/inkaweb-backend/internal/llm"
	"github.com/inkawebai/inkaweb-backend/internal/mail"
	"github.com/inkawebai/inkaweb-backend/internal/models"
	"github.com/inkawebai/inkaweb-backend/internal/payments"
	"github.com/inkawebai/inkaweb-backend/internal/ratelimit"
	"github.com/inkawebai/inkaweb-backend/internal/security"
)

// Deps carries the constructed-once services the routes depend on.
type Deps struct {
	DB       *gorm.DB
	Config   config.Config
	Mailer   mail.Sender
	LLM      *llm.Client
	Payments *payments.Service
	Limiter  *ratelimit.Manager
}

// RegisterRoutes registers routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	apiGroup := r.Group("/api")
	if deps.Limiter.Enabled() {
		apiGroup.Use(rateLimitMiddleware(deps.Limiter))
	}

	apiGroup.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is up and running")
	})

	protect := authMiddleware(deps.DB, deps.Config.JWT.Secret)

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Config, deps.Mailer)
	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/", authHandler.Login)
	authGroup.POST("/signup", authHandler.Signup)
	authGroup.POST("/verify-email", authHandler.VerifyEmail)
	authGroup.POST("/forgot-password", authHandler.ForgotPassword)
	authGroup.POST("/reset-password/:token", authHandler.ResetPassword)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/me", protect, authHandler.GetMe)

	chatHandler := handlers.NewChatHandler(deps.DB, deps.LLM, deps.Mailer, deps.Config.Mail.Inbox)
	chatGroup := apiGroup.Group("/chat")
	chatGroup.Use(protect)
	chatGroup.POST("/", chatHandler.Chat)
	chatGroup.POST("/instances", chatHandler.CreateInstance)
	chatGroup.GET("/instances", chatHandler.ListInstances)
	chatGroup.GET("/instances/:id", chatHandler.GetInstance)
	chatGroup.DELETE("/instances/:id", chatHandler.DeleteInstance)

	stripeHandler := handlers.NewStripeHandler(deps.DB, deps.Payments)
	stripeGroup := apiGroup.Group("/stripe")
	stripeGroup.POST("/create-checkout-session", protect, stripeHandler.CreateCheckoutSession)
	stripeGroup.GET("/session/:id", protect, stripeHandler.GetSession)
	// webhook is signature-verified and must stay unauthenticated
	stripeGroup.POST("/webhook", stripeHandler.Webhook)
}

// authMiddleware validates session JWTs and loads the user into context.
// The token is read from the session cookie first, then from the
// Authorization header.
func authMiddleware(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if cookie, errCookie := c.Cookie(handlers.SessionCookieName); errCookie == nil {
			token = cookie
		}
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if bearer := strings.TrimPrefix(authHeader, "Bearer "); bearer != authHeader {
				token = strings.TrimSpace(bearer)
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized access - no token provided"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtSecret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found or token invalid"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		if !user.IsVerified {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "please verify your email first"})
			return
		}

		handlers.SetCurrentUser(c, &user)
		c.Next()
	}
}

// rateLimitMiddleware gates requests per client IP.
func rateLimitMiddleware(limiter *ratelimit.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, errAllow := limiter.Allow(c.Request.Context(), "ip:"+c.ClientIP())
		if errAllow != nil {
			c.Next()
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
