package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/config"
	"github.com/inkawebai/inkaweb-backend/internal/mail"
	"github.com/inkawebai/inkaweb-backend/internal/models"
	"github.com/inkawebai/inkaweb-backend/internal/security"
)

const (
	verificationCodeTTL = 24 * time.Hour
	resetTokenTTL       = time.Hour
	minPasswordLength   = 8
)

// AuthHandler serves signup, login, and account recovery endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cfg    config.Config
	mailer mail.Sender
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg config.Config, mailer mail.Sender) *AuthHandler {
	if mailer == nil {
		mailer = mail.NopSender{}
	}
	return &AuthHandler{db: db, cfg: cfg, mailer: mailer}
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup registers a new local account and emails a verification code.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all fields are required"})
		return
	}

	var existing models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&existing).Error
	if errFind == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
		return
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}

	hashed, errHash := security.HashPassword(req.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	code, errCode := security.VerificationCode()
	if errCode != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate verification code failed"})
		return
	}

	codeExpiry := time.Now().Add(verificationCodeTTL)
	user := models.User{
		Username:                   req.Username,
		Email:                      req.Email,
		Password:                   hashed,
		Phone:                      strings.TrimSpace(req.Phone),
		Provider:                   models.AuthProviderLocal,
		Role:                       models.RoleUser,
		VerificationToken:          &code,
		VerificationTokenExpiresAt: &codeExpiry,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	h.sendAsync(func() mail.Message {
		verifyLink := strings.TrimRight(h.cfg.ClientURL, "/") + "/verify-email"
		msg := mail.VerificationEmail(user.Username, code, verifyLink)
		msg.To = user.Email
		return msg
	})

	if errCookie := h.setSessionCookie(c, user.ID); errCookie != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "user signed up successfully",
		"user":    userJSON(&user),
	})
}

// Login authenticates an account with email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}
	if !security.CheckPassword(user.Password, req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email or password"})
		return
	}

	if errCookie := h.setSessionCookie(c, user.ID); errCookie != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue session failed"})
		return
	}

	user.LastLogin = time.Now()
	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Update("last_login", user.LastLogin).Error; errSave != nil {
		log.Warnf("update last login failed: %v", errSave)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "login successful",
		"user":    userJSON(&user),
	})
}

// VerifyEmail marks an account verified given a valid verification code.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("verification_token = ? AND verification_token_expires_at > ?", req.Token, time.Now()).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}

	updates := map[string]any{
		"is_verified":                   true,
		"verification_token":            nil,
		"verification_token_expires_at": nil,
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verify email failed"})
		return
	}

	h.sendAsync(func() mail.Message {
		msg := mail.WelcomeEmail(user.Username)
		msg.To = user.Email
		return msg
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "email verified successfully"})
}

// ForgotPassword issues a password reset token and emails a reset link.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", req.Email).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no user found with that email"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}

	token, errToken := security.ResetToken()
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate reset token failed"})
		return
	}
	expiry := time.Now().Add(resetTokenTTL)
	updates := map[string]any{
		"reset_password_token":      token,
		"reset_password_expires_at": expiry,
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save reset token failed"})
		return
	}

	h.sendAsync(func() mail.Message {
		resetLink := fmt.Sprintf("%s/reset-password/%s", strings.TrimRight(h.cfg.ClientURL, "/"), token)
		msg := mail.ForgotPasswordEmail(user.Username, resetLink)
		msg.To = user.Email
		return msg
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password reset email sent successfully"})
}

// ResetPassword sets a new password given a valid reset token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	token := c.Param("token")

	var req resetPasswordRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Password == "" || req.PasswordConfirm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "all fields are required"})
		return
	}
	if req.Password != req.PasswordConfirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
		return
	}
	if len(req.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("reset_password_token = ? AND reset_password_expires_at > ?", token, time.Now()).
		First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired reset token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup user failed"})
		return
	}

	hashed, errHash := security.HashPassword(req.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}
	updates := map[string]any{
		"password":                  hashed,
		"reset_password_token":      nil,
		"reset_password_expires_at": nil,
	}
	if errSave := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset password failed"})
		return
	}

	h.sendAsync(func() mail.Message {
		msg := mail.PasswordResetConfirmationEmail(user.Username)
		msg.To = user.Email
		return msg
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password reset successfully"})
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", h.cfg.SecureCookies, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out successfully"})
}

// GetMe returns the authenticated user without internal identifiers.
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	out := userJSON(user)
	delete(out, "stripeCustomerId")
	c.JSON(http.StatusOK, gin.H{"user": out})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, userID uint64) error {
	token, errToken := security.NewSessionToken(h.cfg.JWT.Secret, h.cfg.JWT.Expiry, userID)
	if errToken != nil {
		return errToken
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, token, int(h.cfg.JWT.Expiry.Seconds()), "/", "", h.cfg.SecureCookies, true)
	return nil
}

// sendAsync delivers an email off the request path. Delivery failures are
// logged and never fail the originating request.
func (h *AuthHandler) sendAsync(build func() mail.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msg := build()
		if errSend := h.mailer.Send(ctx, msg); errSend != nil {
			log.Warnf("send email %q to %s failed: %v", msg.Subject, msg.To, errSend)
		}
	}()
}

// userJSON shapes a user for API responses, dropping credentials and
// pending tokens.
func userJSON(user *models.User) gin.H {
	out := gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"phone":      user.Phone,
		"isVerified": user.IsVerified,
		"provider":   user.Provider,
		"role":       user.Role,
		"isPremium":  user.IsPremium,
		"lastLogin":  user.LastLogin,
		"createdAt":  user.CreatedAt,
		"updatedAt":  user.UpdatedAt,
	}
	if user.StripeCustomerID != nil {
		out["stripeCustomerId"] = *user.StripeCustomerID
	}
	return out
}
