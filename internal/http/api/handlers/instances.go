package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/inkawebai/inkaweb-backend/internal/models"
)

type createInstanceRequest struct {
	Title string `json:"title"`
}

// CreateInstance starts an empty conversation thread.
func (h *ChatHandler) CreateInstance(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "requiresLogin": true})
		return
	}

	var req createInstanceRequest
	_ = c.ShouldBindJSON(&req)
	title := req.Title
	if title == "" {
		title = models.DefaultChatTitle
	}

	instance := models.ChatInstance{UserID: user.ID, Title: title}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&instance).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat instance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"instanceId": instance.ID, "title": instance.Title})
}

// ListInstances returns the user's conversations, most recently
// updated first.
func (h *ChatHandler) ListInstances(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "requiresLogin": true})
		return
	}

	var instances []models.ChatInstance
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", user.ID).
		Order("updated_at DESC").
		Find(&instances).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chat instances"})
		return
	}

	counts := make(map[uint64]int64, len(instances))
	if len(instances) > 0 {
		ids := make([]uint64, 0, len(instances))
		for _, instance := range instances {
			ids = append(ids, instance.ID)
		}
		var rows []struct {
			ChatInstanceID uint64
			Total          int64
		}
		if errCount := h.db.WithContext(c.Request.Context()).
			Model(&models.ChatMessage{}).
			Select("chat_instance_id, COUNT(*) AS total").
			Where("chat_instance_id IN ?", ids).
			Group("chat_instance_id").
			Scan(&rows).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chat instances"})
			return
		}
		for _, row := range rows {
			counts[row.ChatInstanceID] = row.Total
		}
	}

	out := make([]gin.H, 0, len(instances))
	for _, instance := range instances {
		title := instance.Title
		if title == "" {
			title = "Untitled"
		}
		out = append(out, gin.H{
			"id":           instance.ID,
			"title":        title,
			"createdAt":    instance.CreatedAt,
			"updatedAt":    instance.UpdatedAt,
			"messageCount": counts[instance.ID],
		})
	}

	c.JSON(http.StatusOK, gin.H{"instances": out})
}

// GetInstance returns one conversation with its messages.
func (h *ChatHandler) GetInstance(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "requiresLogin": true})
		return
	}

	id, okID := parseInstanceID(c)
	if !okID {
		return
	}

	var instance models.ChatInstance
	errFind := h.db.WithContext(c.Request.Context()).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("chat_messages.id ASC")
		}).
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&instance).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get chat instance"})
		return
	}

	messages := make([]gin.H, 0, len(instance.Messages))
	for _, message := range instance.Messages {
		messages = append(messages, gin.H{
			"sender":    message.Sender,
			"text":      message.Text,
			"createdAt": message.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"instance": gin.H{
		"id":        instance.ID,
		"title":     instance.Title,
		"messages":  messages,
		"createdAt": instance.CreatedAt,
		"updatedAt": instance.UpdatedAt,
	}})
}

// DeleteInstance removes a conversation and its messages.
func (h *ChatHandler) DeleteInstance(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "requiresLogin": true})
		return
	}

	id, okID := parseInstanceID(c)
	if !okID {
		return
	}

	var instance models.ChatInstance
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", id, user.ID).
		First(&instance).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat instance"})
		return
	}

	errDelete := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMessages := tx.Where("chat_instance_id = ?", instance.ID).Delete(&models.ChatMessage{}).Error; errMessages != nil {
			return errMessages
		}
		return tx.Delete(&instance).Error
	})
	if errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat instance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "chat instance deleted"})
}

func parseInstanceID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid instance id"})
		return 0, false
	}
	return id, true
}
