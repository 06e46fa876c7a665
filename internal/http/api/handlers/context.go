// Package handlers implements the public JSON API endpoints.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/inkawebai/inkaweb-backend/internal/models"
)

// SessionCookieName is the cookie carrying the session JWT.
const SessionCookieName = "token"

const currentUserKey = "currentUser"

// SetCurrentUser stores the authenticated user on the request context.
func SetCurrentUser(c *gin.Context, user *models.User) {
	c.Set(currentUserKey, user)
}

// CurrentUser returns the authenticated user set by the auth middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
